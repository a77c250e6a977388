package storage

import (
	"context"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

// UpsertOutcome reports which operation an upsert performed, for caller-side
// accounting.
type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "inserted"
	UpsertUpdated  UpsertOutcome = "updated"
)

// EntityStore provides access to entities storage. Entities are never
// hard-deleted; holdings history must remain auditable.
type EntityStore interface {
	// Insert adds a new entity and returns its id.
	// Returns ErrDuplicateKey if the ticker already exists.
	Insert(ctx context.Context, e *domain.Entity) (int64, error)

	// Update mutates an existing entity's display name, venue, region and
	// aggregate holdings. Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, e *domain.Entity) error

	// GetByID retrieves an entity by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Entity, error)

	// GetByTicker retrieves an entity by its primary ticker.
	// Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.Entity, error)

	// GetAll retrieves all entities ordered by id.
	GetAll(ctx context.Context) ([]*domain.Entity, error)
}

// FilingStore provides access to raw_filings storage. Rows are unique per
// (entity_id, pdf_url); re-discovery of the same document is an idempotent
// upsert, never a duplicate insert.
type FilingStore interface {
	// Upsert inserts a filing or merges it into the existing row for
	// (EntityID, PDFURL). Reports which operation occurred.
	Upsert(ctx context.Context, f *domain.RawFiling) (UpsertOutcome, error)

	// GetByEntity retrieves all filings for an entity, newest first.
	GetByEntity(ctx context.Context, entityID int64) ([]*domain.RawFiling, error)

	// GetByURL retrieves the filing for (entityID, pdfURL).
	// Returns ErrNotFound if not exists.
	GetByURL(ctx context.Context, entityID int64, pdfURL string) (*domain.RawFiling, error)

	// MarkVerified flips the verified flag. Only an explicit human-review
	// action calls this; the pipeline itself never does.
	MarkVerified(ctx context.Context, id int64) error
}

// SnapshotStore provides access to holdings_snapshots storage. Snapshots are
// immutable once written and only ever superseded by later ones.
type SnapshotStore interface {
	// Insert appends a new snapshot and returns its id.
	Insert(ctx context.Context, s *domain.HoldingsSnapshot) (int64, error)

	// Latest retrieves the snapshot with the most recent disclosure date
	// for an entity. Returns ErrNotFound if the entity has none.
	Latest(ctx context.Context, entityID int64) (*domain.HoldingsSnapshot, error)

	// GetByEntity retrieves all snapshots for an entity, newest first.
	GetByEntity(ctx context.Context, entityID int64) ([]*domain.HoldingsSnapshot, error)
}

// RunLogStore provides access to scraper_run_logs storage. Append-only.
type RunLogStore interface {
	// Insert appends a run log record and returns its id.
	Insert(ctx context.Context, rl *domain.ScraperRunLog) (int64, error)

	// GetByJob retrieves up to limit most recent records for a job.
	GetByJob(ctx context.Context, jobID string, limit int) ([]*domain.ScraperRunLog, error)
}

// AdvisoryLocker is the server-side named mutex used to serialize job runs
// across processes. TryLock returning false is expected contention, not an
// error.
type AdvisoryLocker interface {
	TryLock(ctx context.Context, name string) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// QuoteHistoryStore provides access to the append-only market quote history.
type QuoteHistoryStore interface {
	// InsertBulk appends quote records.
	InsertBulk(ctx context.Context, quotes []*domain.MarketData) error

	// GetByTicker retrieves all recorded quotes for a ticker, oldest first.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.MarketData, error)
}
