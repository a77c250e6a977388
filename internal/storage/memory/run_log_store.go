package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// RunLogStore is an in-memory implementation of storage.RunLogStore.
// Append-only.
type RunLogStore struct {
	mu     sync.RWMutex
	byJob  map[string][]*domain.ScraperRunLog
	nextID int64
}

// NewRunLogStore creates a new in-memory run log store.
func NewRunLogStore() *RunLogStore {
	return &RunLogStore{
		byJob:  make(map[string][]*domain.ScraperRunLog),
		nextID: 1,
	}
}

// Insert appends a run log record and returns its id.
func (s *RunLogStore) Insert(_ context.Context, rl *domain.ScraperRunLog) (int64, error) {
	if rl == nil || rl.JobID == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logCopy := *rl
	logCopy.ID = s.nextID
	s.nextID++
	logCopy.CreatedAt = time.Now().UTC()

	s.byJob[logCopy.JobID] = append(s.byJob[logCopy.JobID], &logCopy)
	return logCopy.ID, nil
}

// GetByJob retrieves up to limit most recent records for a job.
func (s *RunLogStore) GetByJob(_ context.Context, jobID string, limit int) ([]*domain.ScraperRunLog, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.byJob[jobID]
	result := make([]*domain.ScraperRunLog, 0, limit)
	for i := len(logs) - 1; i >= 0 && len(result) < limit; i-- {
		logCopy := *logs[i]
		result = append(result, &logCopy)
	}
	return result, nil
}

var _ storage.RunLogStore = (*RunLogStore)(nil)
