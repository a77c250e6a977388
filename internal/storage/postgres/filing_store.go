package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// FilingStore implements storage.FilingStore using PostgreSQL.
type FilingStore struct {
	pool *Pool
}

// NewFilingStore creates a new FilingStore.
func NewFilingStore(pool *Pool) *FilingStore {
	return &FilingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FilingStore = (*FilingStore)(nil)

const filingColumns = `id, entity_id, btc::text, btc_delta::text, btc_total::text,
	disclosed_at, pdf_url, source, title, filing_type, confidence, verified,
	bitcoin_related, created_at, updated_at`

// Upsert inserts a filing or merges it into the existing (entity_id, pdf_url)
// row. Merge keeps a previously verified flag and only overwrites extracted
// fields with the incoming values. (xmax = 0) distinguishes insert from
// update on the conflict path.
func (s *FilingStore) Upsert(ctx context.Context, f *domain.RawFiling) (storage.UpsertOutcome, error) {
	query := `
		INSERT INTO raw_filings (
			entity_id, btc, btc_delta, btc_total, disclosed_at, pdf_url,
			source, title, filing_type, confidence, bitcoin_related
		) VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entity_id, pdf_url) DO UPDATE SET
			btc = EXCLUDED.btc,
			btc_delta = EXCLUDED.btc_delta,
			btc_total = EXCLUDED.btc_total,
			disclosed_at = EXCLUDED.disclosed_at,
			title = EXCLUDED.title,
			filing_type = EXCLUDED.filing_type,
			confidence = EXCLUDED.confidence,
			bitcoin_related = EXCLUDED.bitcoin_related,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted
	`

	var id int64
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		f.EntityID,
		nullableDecimalArg(f.BTC),
		nullableDecimalArg(f.BTCDelta),
		nullableDecimalArg(f.BTCTotal),
		f.DisclosedAt,
		f.PDFURL,
		string(f.Source),
		f.Title,
		string(f.FilingType),
		f.Confidence,
		f.BitcoinRelated,
	).Scan(&id, &inserted)
	if err != nil {
		return "", fmt.Errorf("upsert filing: %w", err)
	}

	f.ID = id
	if inserted {
		return storage.UpsertInserted, nil
	}
	return storage.UpsertUpdated, nil
}

// GetByEntity retrieves all filings for an entity, newest first.
func (s *FilingStore) GetByEntity(ctx context.Context, entityID int64) ([]*domain.RawFiling, error) {
	query := `SELECT ` + filingColumns + ` FROM raw_filings WHERE entity_id = $1 ORDER BY disclosed_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get filings by entity: %w", err)
	}
	defer rows.Close()

	var filings []*domain.RawFiling
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filing row: %w", err)
		}
		filings = append(filings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filing rows: %w", err)
	}
	return filings, nil
}

// GetByURL retrieves the filing for (entityID, pdfURL). Returns ErrNotFound
// if not exists.
func (s *FilingStore) GetByURL(ctx context.Context, entityID int64, pdfURL string) (*domain.RawFiling, error) {
	query := `SELECT ` + filingColumns + ` FROM raw_filings WHERE entity_id = $1 AND pdf_url = $2`

	f, err := scanFiling(s.pool.QueryRow(ctx, query, entityID, pdfURL))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get filing by url: %w", err)
	}
	return f, nil
}

// MarkVerified flips the verified flag. Returns ErrNotFound if the id does
// not exist.
func (s *FilingStore) MarkVerified(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE raw_filings SET verified = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark filing verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanFiling scans a single row into a RawFiling.
func scanFiling(row pgx.Row) (*domain.RawFiling, error) {
	var f domain.RawFiling
	var btc, btcDelta, btcTotal *string
	var source, filingType string

	err := row.Scan(
		&f.ID,
		&f.EntityID,
		&btc,
		&btcDelta,
		&btcTotal,
		&f.DisclosedAt,
		&f.PDFURL,
		&source,
		&f.Title,
		&filingType,
		&f.Confidence,
		&f.Verified,
		&f.BitcoinRelated,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if f.BTC, err = scanNullableDecimal(btc); err != nil {
		return nil, err
	}
	if f.BTCDelta, err = scanNullableDecimal(btcDelta); err != nil {
		return nil, err
	}
	if f.BTCTotal, err = scanNullableDecimal(btcTotal); err != nil {
		return nil, err
	}
	f.Source = domain.FilingSource(source)
	f.FilingType = domain.FilingType(filingType)
	return &f, nil
}
