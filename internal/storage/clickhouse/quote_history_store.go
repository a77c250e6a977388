package clickhouse

import (
	"context"
	"fmt"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// QuoteHistoryStore implements storage.QuoteHistoryStore using ClickHouse.
// Every successful market-data fetch is appended here; the table is the
// analytics trail behind the in-memory TTL cache.
type QuoteHistoryStore struct {
	conn *Conn
}

// NewQuoteHistoryStore creates a new QuoteHistoryStore.
func NewQuoteHistoryStore(conn *Conn) *QuoteHistoryStore {
	return &QuoteHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteHistoryStore = (*QuoteHistoryStore)(nil)

// InsertBulk appends quote records using a native batch.
func (s *QuoteHistoryStore) InsertBulk(ctx context.Context, quotes []*domain.MarketData) error {
	if len(quotes) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_quote_history (ticker, price, market_cap, shares_outstanding, source, fetched_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare quote history batch: %w", err)
	}

	for _, q := range quotes {
		err := batch.Append(
			q.Ticker,
			q.Price,
			q.MarketCap,
			q.SharesOutstanding,
			q.Source,
			q.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("append quote for %s: %w", q.Ticker, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send quote history batch: %w", err)
	}
	return nil
}

// GetByTicker retrieves all recorded quotes for a ticker, oldest first.
func (s *QuoteHistoryStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.MarketData, error) {
	query := `
		SELECT ticker, price, market_cap, shares_outstanding, source, fetched_at
		FROM market_quote_history
		WHERE ticker = ?
		ORDER BY fetched_at ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("get quotes by ticker: %w", err)
	}
	defer rows.Close()

	var quotes []*domain.MarketData
	for rows.Next() {
		var q domain.MarketData
		err := rows.Scan(
			&q.Ticker,
			&q.Price,
			&q.MarketCap,
			&q.SharesOutstanding,
			&q.Source,
			&q.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}
		quotes = append(quotes, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote rows: %w", err)
	}
	return quotes, nil
}
