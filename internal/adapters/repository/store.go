// Package repository defines the normalized-dataset store interface and its
// in-memory implementation.
package repository

import (
	"context"

	"github.com/senselab/datakit/internal/domain/model"
)

// Store provides keyed access to normalized datasets.
type Store interface {
	// Put stores a normalized dataset under its ID, replacing any
	// previous version.
	Put(ctx context.Context, ds model.Dataset) error

	// Get returns the dataset stored under id.
	// Returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id string) (model.Dataset, error)

	// List returns up to limit datasets, most recently received first.
	List(ctx context.Context, limit int) ([]model.Dataset, error)

	// Count returns the number of stored datasets.
	Count(ctx context.Context) int
}
