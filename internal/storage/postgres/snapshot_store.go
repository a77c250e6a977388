package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Snapshots are append-only; there is deliberately no update path.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `id, entity_id, btc::text, cost_basis_usd::text, last_disclosed, source_url, provenance, created_at`

// Insert appends a new snapshot and returns its id.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.HoldingsSnapshot) (int64, error) {
	query := `
		INSERT INTO holdings_snapshots (entity_id, btc, cost_basis_usd, last_disclosed, source_url, provenance)
		VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		snap.EntityID,
		decimalArg(snap.BTC),
		nullableDecimalArg(snap.CostBasisUSD),
		snap.LastDisclosed,
		snap.SourceURL,
		string(snap.Provenance),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// Latest retrieves the snapshot with the most recent disclosure date for an
// entity. Returns ErrNotFound if the entity has none.
func (s *SnapshotStore) Latest(ctx context.Context, entityID int64) (*domain.HoldingsSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM holdings_snapshots
		WHERE entity_id = $1 ORDER BY last_disclosed DESC, id DESC LIMIT 1`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, entityID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

// GetByEntity retrieves all snapshots for an entity, newest first.
func (s *SnapshotStore) GetByEntity(ctx context.Context, entityID int64) ([]*domain.HoldingsSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM holdings_snapshots
		WHERE entity_id = $1 ORDER BY last_disclosed DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by entity: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.HoldingsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

// scanSnapshot scans a single row into a HoldingsSnapshot.
func scanSnapshot(row pgx.Row) (*domain.HoldingsSnapshot, error) {
	var snap domain.HoldingsSnapshot
	var btc string
	var costBasis *string
	var provenance string

	err := row.Scan(
		&snap.ID,
		&snap.EntityID,
		&btc,
		&costBasis,
		&snap.LastDisclosed,
		&snap.SourceURL,
		&provenance,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if snap.BTC, err = scanDecimal(btc); err != nil {
		return nil, err
	}
	if snap.CostBasisUSD, err = scanNullableDecimal(costBasis); err != nil {
		return nil, err
	}
	snap.Provenance = domain.Provenance(provenance)
	return &snap, nil
}
