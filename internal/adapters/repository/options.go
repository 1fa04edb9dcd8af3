package repository

// storeConfig carries construction settings for the in-memory store.
type storeConfig struct {
	shardCount int
}

// Option applies a configuration option to the InMemoryStore.
type Option func(*storeConfig)

// WithShardCount sets the number of shards the keyspace is split across.
func WithShardCount(count int) Option {
	return func(c *storeConfig) {
		if count > 0 {
			c.shardCount = count
		}
	}
}
