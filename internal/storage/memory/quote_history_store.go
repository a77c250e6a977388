package memory

import (
	"context"
	"sync"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// QuoteHistoryStore is an in-memory implementation of storage.QuoteHistoryStore.
type QuoteHistoryStore struct {
	mu       sync.RWMutex
	byTicker map[string][]*domain.MarketData
}

// NewQuoteHistoryStore creates a new in-memory quote history store.
func NewQuoteHistoryStore() *QuoteHistoryStore {
	return &QuoteHistoryStore{
		byTicker: make(map[string][]*domain.MarketData),
	}
}

// InsertBulk appends quote records.
func (s *QuoteHistoryStore) InsertBulk(_ context.Context, quotes []*domain.MarketData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		if q == nil || q.Ticker == "" {
			return storage.ErrInvalidInput
		}
		quoteCopy := *q
		s.byTicker[q.Ticker] = append(s.byTicker[q.Ticker], &quoteCopy)
	}
	return nil
}

// GetByTicker retrieves all recorded quotes for a ticker, oldest first.
func (s *QuoteHistoryStore) GetByTicker(_ context.Context, ticker string) ([]*domain.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := s.byTicker[ticker]
	result := make([]*domain.MarketData, 0, len(quotes))
	for _, q := range quotes {
		quoteCopy := *q
		result = append(result, &quoteCopy)
	}
	return result, nil
}

var _ storage.QuoteHistoryStore = (*QuoteHistoryStore)(nil)
