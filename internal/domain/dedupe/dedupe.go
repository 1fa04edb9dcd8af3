// Package dedupe tracks seen dataset IDs so ingest is idempotent.
package dedupe

import (
	"context"
	"sync"
)

// Default bound on remembered IDs.
const defaultMaxSize = 100_000

// Deduper records seen dataset IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an ID so it can be retried, used when a dataset was
	// marked seen but could not be enqueued.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of IDs currently remembered.
	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus a FIFO eviction queue.
// When bounded (maxSize > 0) the oldest recorded ID is forgotten first;
// unbounded mode keeps everything.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // FIFO queue; may hold stale entries for unrecorded IDs
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration
// options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
		d.order = append(d.order, id)
	}
	d.seen[id] = struct{}{}
	return false
}

// evictOldest drops queue entries until one that is still recorded has been
// forgotten. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for len(d.order) > 0 {
		oldest := d.order[0]
		d.order = d.order[1:]
		if _, ok := d.seen[oldest]; ok {
			delete(d.seen, oldest)
			return
		}
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The queue entry, if any, goes stale and is skipped at eviction time.
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
