package storage

import (
	"context"

	"curvepool/internal/domain"
)

// PoolStore provides access to pool records, keyed by
// (creator identity, symbol). Records are created once and never deleted.
type PoolStore interface {
	// Insert adds a new pool. Returns ErrDuplicateKey if the
	// (creator, symbol) pair already has a pool.
	Insert(ctx context.Context, p *domain.Pool) error

	// Get retrieves a pool. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, creatorIdentity, symbol string) (*domain.Pool, error)

	// Update persists a mutated pool. The update succeeds only if the
	// stored version matches p.Version; on success the stored version is
	// incremented. Returns ErrVersionConflict on a stale version and
	// ErrNotFound if the pool does not exist.
	Update(ctx context.Context, p *domain.Pool) error

	// List retrieves all pools, ordered by creation time ascending.
	List(ctx context.Context) ([]*domain.Pool, error)
}
