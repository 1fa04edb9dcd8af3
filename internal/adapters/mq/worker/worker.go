// Package worker defines the workers that drain the ingest queue, run the
// version-aware normalization, and store the result.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/pkg/logger"
	"github.com/senselab/datakit/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Job is what workers read off the queue.
type Job = model.Dataset

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
	Close() error
}

// Normalizer runs the schema normalization for a dataset payload.
type Normalizer interface {
	NormalizeDataset(ctx context.Context, ds model.Dataset) (model.Dataset, error)
}

// Storer persists normalized datasets.
type Storer interface {
	Put(ctx context.Context, ds model.Dataset) error
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is cancelled or the queue
	// closes.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over the in-memory queue.
type InMemoryWorker struct {
	queue      Queue
	normalizer Normalizer
	store      Storer
	name       string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, normalizer Normalizer, store Storer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		normalizer: normalizer,
		store:      store,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.log.Error(ctx, "dataset normalization failed",
					logger.String("dataset", job.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn(ctx, "worker shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob normalizes a single dataset and stores the result.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.ObserveWorkerJobDuration(float64(time.Since(start).Milliseconds()))
	}()

	normalized, err := w.normalizer.NormalizeDataset(ctx, job)
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("normalize dataset %s: %w", job.ID, err)
	}

	if err := w.store.Put(ctx, normalized); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("store dataset %s: %w", job.ID, err)
	}
	return nil
}

// Pool manages multiple workers draining the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	log logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to a
// CPU-proportional number of workers.
func NewPool(workerCount int, queue Queue, normalizer Normalizer, store Storer) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		log:     logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(
			queue,
			normalizer,
			store,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue so no new jobs arrive, then waits for the
// workers to drain what remains.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		return fmt.Errorf("close queue: %w", err)
	}

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.log.Warn(ctx, "worker did not stop in time", logger.String("worker", w.name))
		case <-ctx.Done():
			metrics.UpdateWorkerActiveCount(0)
			return fmt.Errorf("pool shutdown: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
