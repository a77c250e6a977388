package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

type filingKey struct {
	entityID int64
	pdfURL   string
}

// FilingStore is an in-memory implementation of storage.FilingStore.
type FilingStore struct {
	mu     sync.RWMutex
	byID   map[int64]*domain.RawFiling
	byKey  map[filingKey]*domain.RawFiling // keyed by (entity_id, pdf_url)
	nextID int64
}

// NewFilingStore creates a new in-memory filing store.
func NewFilingStore() *FilingStore {
	return &FilingStore{
		byID:   make(map[int64]*domain.RawFiling),
		byKey:  make(map[filingKey]*domain.RawFiling),
		nextID: 1,
	}
}

// Upsert inserts a filing or merges it into the existing row for
// (EntityID, PDFURL). The verified flag is never overwritten on update.
func (s *FilingStore) Upsert(_ context.Context, f *domain.RawFiling) (storage.UpsertOutcome, error) {
	if f == nil || f.EntityID == 0 || f.PDFURL == "" {
		return "", storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := filingKey{entityID: f.EntityID, pdfURL: f.PDFURL}
	now := time.Now().UTC()

	if existing, exists := s.byKey[key]; exists {
		existing.BTC = f.BTC
		existing.BTCDelta = f.BTCDelta
		existing.BTCTotal = f.BTCTotal
		existing.DisclosedAt = f.DisclosedAt
		existing.Source = f.Source
		existing.Title = f.Title
		existing.FilingType = f.FilingType
		existing.Confidence = f.Confidence
		existing.BitcoinRelated = f.BitcoinRelated
		existing.UpdatedAt = now
		f.ID = existing.ID
		return storage.UpsertUpdated, nil
	}

	filingCopy := *f
	filingCopy.ID = s.nextID
	s.nextID++
	filingCopy.CreatedAt = now
	filingCopy.UpdatedAt = now

	s.byID[filingCopy.ID] = &filingCopy
	s.byKey[key] = &filingCopy
	f.ID = filingCopy.ID
	return storage.UpsertInserted, nil
}

// GetByEntity retrieves all filings for an entity, newest first.
func (s *FilingStore) GetByEntity(_ context.Context, entityID int64) ([]*domain.RawFiling, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filings []*domain.RawFiling
	for _, f := range s.byID {
		if f.EntityID == entityID {
			filingCopy := *f
			filings = append(filings, &filingCopy)
		}
	}

	sort.Slice(filings, func(i, j int) bool {
		if !filings[i].DisclosedAt.Equal(filings[j].DisclosedAt) {
			return filings[i].DisclosedAt.After(filings[j].DisclosedAt)
		}
		return filings[i].ID > filings[j].ID
	})
	return filings, nil
}

// GetByURL retrieves the filing for (entityID, pdfURL). Returns ErrNotFound if
// not exists.
func (s *FilingStore) GetByURL(_ context.Context, entityID int64, pdfURL string) (*domain.RawFiling, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.byKey[filingKey{entityID: entityID, pdfURL: pdfURL}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	filingCopy := *f
	return &filingCopy, nil
}

// MarkVerified flips the verified flag. Returns ErrNotFound if not exists.
func (s *FilingStore) MarkVerified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.byID[id]
	if !exists {
		return storage.ErrNotFound
	}

	f.Verified = true
	f.UpdatedAt = time.Now().UTC()
	return nil
}

var _ storage.FilingStore = (*FilingStore)(nil)
