// Package memory provides an in-memory PoolStore for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"curvepool/internal/domain"
	"curvepool/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Pool // keyed by creator|symbol
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[string]*domain.Pool),
	}
}

// Insert adds a new pool. Returns ErrDuplicateKey if the key exists.
func (s *PoolStore) Insert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.CreatorIdentity == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Key()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = p.Clone()
	return nil
}

// Get retrieves a pool copy. Returns ErrNotFound if it does not exist.
func (s *PoolStore) Get(_ context.Context, creatorIdentity, symbol string) (*domain.Pool, error) {
	if creatorIdentity == "" || symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[domain.PoolKey(creatorIdentity, symbol)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// Update persists a mutated pool under optimistic versioning.
func (s *PoolStore) Update(_ context.Context, p *domain.Pool) error {
	if p == nil || p.CreatorIdentity == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Key()
	current, ok := s.data[key]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != p.Version {
		return storage.ErrVersionConflict
	}

	next := p.Clone()
	next.Version++
	s.data[key] = next
	p.Version = next.Version
	return nil
}

// List retrieves all pools ordered by creation time ascending.
func (s *PoolStore) List(_ context.Context) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pool, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Key() < result[j].Key()
	})

	return result, nil
}

var _ storage.PoolStore = (*PoolStore)(nil)
