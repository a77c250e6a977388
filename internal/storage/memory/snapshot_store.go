package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Snapshots are append-only.
type SnapshotStore struct {
	mu       sync.RWMutex
	byEntity map[int64][]*domain.HoldingsSnapshot
	nextID   int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byEntity: make(map[int64][]*domain.HoldingsSnapshot),
		nextID:   1,
	}
}

// Insert appends a new snapshot and returns its id.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.HoldingsSnapshot) (int64, error) {
	if snap == nil || snap.EntityID == 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	snapCopy.ID = s.nextID
	s.nextID++
	snapCopy.CreatedAt = time.Now().UTC()

	s.byEntity[snapCopy.EntityID] = append(s.byEntity[snapCopy.EntityID], &snapCopy)
	return snapCopy.ID, nil
}

// Latest retrieves the snapshot with the most recent disclosure date for an
// entity. Returns ErrNotFound if the entity has none.
func (s *SnapshotStore) Latest(_ context.Context, entityID int64) (*domain.HoldingsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.byEntity[entityID]
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.LastDisclosed.After(latest.LastDisclosed) ||
			(snap.LastDisclosed.Equal(latest.LastDisclosed) && snap.ID > latest.ID) {
			latest = snap
		}
	}

	snapCopy := *latest
	return &snapCopy, nil
}

// GetByEntity retrieves all snapshots for an entity, newest first.
func (s *SnapshotStore) GetByEntity(_ context.Context, entityID int64) ([]*domain.HoldingsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.byEntity[entityID]
	result := make([]*domain.HoldingsSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastDisclosed.Equal(result[j].LastDisclosed) {
			return result[i].LastDisclosed.After(result[j].LastDisclosed)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
