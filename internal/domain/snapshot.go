package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance tags how a holdings snapshot entered the system.
type Provenance string

const (
	ProvenanceManual Provenance = "manual"
	ProvenanceFiling Provenance = "filing"
	ProvenanceAuto   Provenance = "auto"
)

// HoldingsSnapshot is one point-in-time disclosed holdings figure for an
// entity. Immutable once written; the "current" holdings of an entity is the
// snapshot with the latest disclosure date. Corresponds to the
// holdings_snapshots table in PostgreSQL.
type HoldingsSnapshot struct {
	ID            int64
	EntityID      int64
	BTC           decimal.Decimal
	CostBasisUSD  *decimal.Decimal // optional
	LastDisclosed time.Time
	SourceURL     string
	Provenance    Provenance
	CreatedAt     time.Time
}
