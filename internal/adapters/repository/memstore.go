package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/pkg/metrics"
)

// Default number of shards.
const defaultShardCount = 8

// shard holds a slice of the dataset keyspace under its own lock.
type shard struct {
	mu       sync.RWMutex
	datasets map[string]model.Dataset
}

// InMemoryStore implements Store with a sharded map keyed by dataset ID.
type InMemoryStore struct {
	shards []*shard
}

// NewInMemoryStore creates a sharded in-memory store with configuration
// options.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := storeConfig{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &InMemoryStore{
		shards: make([]*shard, cfg.shardCount),
	}
	for i := range s.shards {
		s.shards[i] = &shard{datasets: make(map[string]model.Dataset)}
	}
	return s
}

// shardFor maps an ID onto its shard.
func (s *InMemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Put stores ds under its ID, replacing any previous version.
func (s *InMemoryStore) Put(ctx context.Context, ds model.Dataset) error {
	if ds.ID == "" {
		return ErrEmptyID
	}
	sh := s.shardFor(ds.ID)
	sh.mu.Lock()
	sh.datasets[ds.ID] = ds
	sh.mu.Unlock()

	metrics.UpdateDatasetsStored(s.Count(ctx))
	return nil
}

// Get returns the dataset stored under id.
func (s *InMemoryStore) Get(_ context.Context, id string) (model.Dataset, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	ds, ok := sh.datasets[id]
	if !ok {
		return model.Dataset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ds, nil
}

// List returns up to limit datasets, most recently received first. Ties on
// the timestamp are broken by ID for a stable order.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]model.Dataset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	var all []model.Dataset
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, ds := range sh.datasets {
			all = append(all, ds)
		}
		sh.mu.RUnlock()
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].ReceivedAt.Equal(all[j].ReceivedAt) {
			return all[i].ReceivedAt.After(all[j].ReceivedAt)
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count returns the number of stored datasets.
func (s *InMemoryStore) Count(_ context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.datasets)
		sh.mu.RUnlock()
	}
	return total
}
