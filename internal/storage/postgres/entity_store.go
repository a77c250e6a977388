package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// EntityStore implements storage.EntityStore using PostgreSQL.
type EntityStore struct {
	pool *Pool
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(pool *Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

const entityColumns = `id, legal_name, ticker, listing_venue, region, holdings_btc::text, created_at, updated_at`

// Insert adds a new entity. Returns ErrDuplicateKey if the ticker exists.
func (s *EntityStore) Insert(ctx context.Context, e *domain.Entity) (int64, error) {
	query := `
		INSERT INTO entities (legal_name, ticker, listing_venue, region, holdings_btc)
		VALUES ($1, $2, $3, $4, $5::numeric)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		e.LegalName,
		e.Ticker,
		e.ListingVenue,
		e.Region,
		decimalArg(e.HoldingsBTC),
	).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, storage.ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert entity: %w", err)
	}
	return id, nil
}

// Update mutates an existing entity. Returns ErrNotFound if the id does not
// exist.
func (s *EntityStore) Update(ctx context.Context, e *domain.Entity) error {
	query := `
		UPDATE entities
		SET legal_name = $2, ticker = $3, listing_venue = $4, region = $5,
		    holdings_btc = $6::numeric, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		e.ID,
		e.LegalName,
		e.Ticker,
		e.ListingVenue,
		e.Region,
		decimalArg(e.HoldingsBTC),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves an entity by id. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(ctx context.Context, id int64) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	e, err := scanEntity(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by id: %w", err)
	}
	return e, nil
}

// GetByTicker retrieves an entity by ticker. Returns ErrNotFound if not
// exists.
func (s *EntityStore) GetByTicker(ctx context.Context, ticker string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE ticker = $1`

	e, err := scanEntity(s.pool.QueryRow(ctx, query, ticker))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by ticker: %w", err)
	}
	return e, nil
}

// GetAll retrieves all entities ordered by id.
func (s *EntityStore) GetAll(ctx context.Context) ([]*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all entities: %w", err)
	}
	defer rows.Close()

	var entities []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity rows: %w", err)
	}
	return entities, nil
}

// scanEntity scans a single row into an Entity.
func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var e domain.Entity
	var holdings string

	err := row.Scan(
		&e.ID,
		&e.LegalName,
		&e.Ticker,
		&e.ListingVenue,
		&e.Region,
		&holdings,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.HoldingsBTC, err = scanDecimal(holdings)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
