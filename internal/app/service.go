// Package service wires the normalizers, ingest queue, worker pool and
// dataset store into the facade the HTTP API depends on.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/senselab/datakit/internal/adapters/mq/queue"
	workerpool "github.com/senselab/datakit/internal/adapters/mq/worker"
	repository "github.com/senselab/datakit/internal/adapters/repository"
	"github.com/senselab/datakit/internal/domain/comp"
	"github.com/senselab/datakit/internal/domain/dedupe"
	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/internal/domain/raw"
	"github.com/senselab/datakit/internal/domain/record"
	"github.com/senselab/datakit/internal/domain/version"
	"github.com/senselab/datakit/pkg/logger"
)

// Service implements the API dependencies for the normalization toolbox.
type Service struct {
	mu sync.RWMutex

	// Core components.
	compNorm *comp.Normalizer
	rawNorm  *raw.Normalizer
	store    repository.Store
	deduper  dedupe.Deduper
	queue    *jobqueue.InMemoryQueue
	pool     *workerpool.Pool

	// Configuration.
	workerCount    int
	queueSize      int
	dedupeSize     int
	shardCount     int
	maxListLimit   int
	defaultVersion string

	started bool

	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of normalization workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the ingest idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the dataset store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithMaxListLimit caps how many datasets a list call may return.
func WithMaxListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxListLimit = limit
		}
	}
}

// WithDefaultVersion sets the schema version tag assumed for datasets that
// do not declare one.
func WithDefaultVersion(tag string) Option {
	return func(s *Service) {
		if tag != "" {
			s.defaultVersion = tag
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     100_000,
		shardCount:     8,
		maxListLimit:   100,
		defaultVersion: version.LatestTag,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("service")
	}

	s.rawNorm = raw.New()
	s.compNorm = comp.New(comp.WithRawNormalizer(s.rawNorm))
	s.store = repository.NewInMemoryStore(
		repository.WithShardCount(s.shardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.log.Info(ctx, "normalization service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("defaultVersion", s.defaultVersion),
	)
	return nil
}

// Stop gracefully shuts down the service, draining queued datasets.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.log.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	s.started = false
	s.log.Info(ctx, "normalization service stopped")
}

// NormalizeComp normalizes a decomposed record to the given schema version
// tag (empty means the service default).
func (s *Service) NormalizeComp(ctx context.Context, rec record.Comp, tag string) (record.Comp, error) {
	if tag == "" {
		tag = s.defaultVersion
	}
	out, err := s.compNorm.Normalize(ctx, rec, comp.WithVersion(tag))
	if err != nil {
		return record.Comp{}, fmt.Errorf("normalize comp record: %w", err)
	}
	return out, nil
}

// NormalizeRaw normalizes a raw record to the given schema version tag
// (empty means the service default).
func (s *Service) NormalizeRaw(ctx context.Context, rec record.Raw, tag string) (record.Raw, error) {
	if tag == "" {
		tag = s.defaultVersion
	}
	out, err := s.rawNorm.Normalize(ctx, rec, raw.WithVersion(tag))
	if err != nil {
		return record.Raw{}, fmt.Errorf("normalize raw record: %w", err)
	}
	return out, nil
}

// NormalizeDataset runs the kind-appropriate normalization for a dataset
// and rewrites its version to the canonical resolved tag. It implements the
// worker pool's Normalizer dependency.
func (s *Service) NormalizeDataset(ctx context.Context, ds model.Dataset) (model.Dataset, error) {
	tag := ds.Version
	if tag == "" {
		tag = s.defaultVersion
	}
	v, err := version.Parse(tag)
	if err != nil {
		return model.Dataset{}, err
	}

	switch ds.Kind {
	case model.KindComp:
		if ds.Comp == nil {
			return model.Dataset{}, record.MissingField("comp payload")
		}
		out, err := s.NormalizeComp(ctx, *ds.Comp, v.String())
		if err != nil {
			return model.Dataset{}, err
		}
		ds.Comp = &out
	case model.KindRaw:
		if ds.Raw == nil {
			return model.Dataset{}, record.MissingField("raw payload")
		}
		out, err := s.NormalizeRaw(ctx, *ds.Raw, v.String())
		if err != nil {
			return model.Dataset{}, err
		}
		ds.Raw = &out
	default:
		return model.Dataset{}, fmt.Errorf("%w: unknown dataset kind %q", record.ErrMalformed, ds.Kind)
	}
	ds.Version = v.String()
	return ds, nil
}

// SeenAndRecord atomically checks whether a dataset ID was already ingested
// and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord forgets a dataset ID so a failed ingest can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Ingest assigns an ID when missing and enqueues the dataset for async
// normalization. Returns the ID and false when the queue pushed back.
func (s *Service) Ingest(ctx context.Context, ds model.Dataset) (string, bool) {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	if ds.ReceivedAt.IsZero() {
		ds.ReceivedAt = time.Now()
	}
	ok := s.queue.Enqueue(ctx, ds)
	if !ok {
		s.log.Warn(ctx, "ingest rejected by queue", logger.String("dataset", ds.ID))
	}
	return ds.ID, ok
}

// Dataset returns a normalized dataset by ID.
func (s *Service) Dataset(ctx context.Context, id string) (model.Dataset, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return ds, nil
}

// Datasets lists normalized datasets, most recent first. A non-positive
// limit means the configured maximum.
func (s *Service) Datasets(ctx context.Context, limit int) ([]model.Dataset, error) {
	if limit <= 0 || limit > s.maxListLimit {
		limit = s.maxListLimit
	}
	out, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

// Count returns the number of normalized datasets currently stored.
func (s *Service) Count(ctx context.Context) int {
	return s.store.Count(ctx)
}

// Stats exposes coarse service counters for the stats endpoint.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"workers":         s.workerCount,
		"default_version": s.defaultVersion,
	}
	if s.store != nil {
		stats["datasets_stored"] = s.store.Count(ctx)
	}
	if s.queue != nil {
		stats["queue_length"] = s.queue.Len(ctx)
	}
	if s.deduper != nil {
		stats["ids_tracked"] = s.deduper.Size()
	}
	return stats
}
