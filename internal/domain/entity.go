package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity represents a tracked company/issuer.
// Corresponds to the entities table in PostgreSQL.
type Entity struct {
	ID           int64           // PRIMARY KEY
	LegalName    string          // canonical legal name
	Ticker       string          // primary ticker, unique under normal operation
	ListingVenue string          // HKEX | SZSE | ...
	Region       string          // HK | CN | ...
	HoldingsBTC  decimal.Decimal // last-known aggregate holdings
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Placeholder reports whether the entity was auto-registered by a discovery
// pass and still awaits reconciliation of its metadata.
func (e *Entity) Placeholder() bool {
	return e.LegalName == "" || e.Region == ""
}
