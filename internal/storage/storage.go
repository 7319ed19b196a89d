package storage

import (
	"context"

	"github.com/confhub/confhub/internal/domain"
)

// RecordStore defines the interface for the record storage layer.
// Implementations must be safe for concurrent use and must provide atomic
// single-record create, update and delete; composite-key uniqueness is
// enforced here (Insert returns domain.ErrAlreadyExists).
type RecordStore interface {
	// Close closes the storage connection.
	Close() error

	// Insert stores a new record. The record's composite key must be
	// unique within its tier.
	Insert(ctx context.Context, rec *domain.ConfigRecord) error

	// Get fetches the record at the composite key.
	Get(ctx context.Context, key domain.ScopeKey) (*domain.ConfigRecord, error)

	// Update applies the patch to the record at the composite key and
	// returns the updated record. The key and created_at are immutable.
	Update(ctx context.Context, key domain.ScopeKey, patch domain.RecordPatch) (*domain.ConfigRecord, error)

	// Delete removes the record at the composite key. Absence is
	// domain.ErrNotFound, never silent success.
	Delete(ctx context.Context, key domain.ScopeKey) error

	// List returns records matching the filter ordered by name ascending,
	// plus the total match count before pagination.
	List(ctx context.Context, filter domain.Filter) ([]*domain.ConfigRecord, int, error)

	// Aggregate evaluates the aggregation query over records matching the
	// filter's scope constraints.
	Aggregate(ctx context.Context, filter domain.Filter, query domain.StatQuery) ([]domain.StatBucket, error)
}
