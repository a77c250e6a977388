package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
type EntityStore struct {
	mu       sync.RWMutex
	byID     map[int64]*domain.Entity
	byTicker map[string]*domain.Entity // keyed by ticker (unique)
	nextID   int64
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		byID:     make(map[int64]*domain.Entity),
		byTicker: make(map[string]*domain.Entity),
		nextID:   1,
	}
}

// Insert adds a new entity and returns its id. Returns ErrDuplicateKey if the
// ticker already exists.
func (s *EntityStore) Insert(_ context.Context, e *domain.Entity) (int64, error) {
	if e == nil || e.Ticker == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTicker[e.Ticker]; exists {
		return 0, storage.ErrDuplicateKey
	}

	entityCopy := *e
	entityCopy.ID = s.nextID
	s.nextID++

	now := time.Now().UTC()
	entityCopy.CreatedAt = now
	entityCopy.UpdatedAt = now

	s.byID[entityCopy.ID] = &entityCopy
	s.byTicker[entityCopy.Ticker] = &entityCopy
	return entityCopy.ID, nil
}

// Update mutates an existing entity. Returns ErrNotFound if the id does not exist.
func (s *EntityStore) Update(_ context.Context, e *domain.Entity) error {
	if e == nil || e.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.byID[e.ID]
	if !exists {
		return storage.ErrNotFound
	}

	existing.LegalName = e.LegalName
	existing.ListingVenue = e.ListingVenue
	existing.Region = e.Region
	existing.HoldingsBTC = e.HoldingsBTC
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// GetByID retrieves an entity by id. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(_ context.Context, id int64) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entityCopy := *e
	return &entityCopy, nil
}

// GetByTicker retrieves an entity by ticker. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByTicker(_ context.Context, ticker string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.byTicker[ticker]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entityCopy := *e
	return &entityCopy, nil
}

// GetAll retrieves all entities ordered by id.
func (s *EntityStore) GetAll(_ context.Context) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]*domain.Entity, 0, len(s.byID))
	for id := int64(1); id < s.nextID; id++ {
		if e, exists := s.byID[id]; exists {
			entityCopy := *e
			entities = append(entities, &entityCopy)
		}
	}
	return entities, nil
}

var _ storage.EntityStore = (*EntityStore)(nil)
