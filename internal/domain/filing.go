package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilingType classifies what a disclosure says about holdings.
type FilingType string

const (
	FilingAcquisition FilingType = "acquisition"
	FilingDisposal    FilingType = "disposal"
	FilingUpdate      FilingType = "update"
	FilingDisclosure  FilingType = "disclosure"
)

// FilingSource identifies the filing index a document came from.
type FilingSource string

const (
	SourceHKEX FilingSource = "HKEX"
	SourceSZSE FilingSource = "SZSE"
)

// RawFiling is one discovered source document plus whatever was extracted
// from it. Unique per (EntityID, PDFURL); re-discovery is an idempotent
// upsert. Corresponds to the raw_filings table in PostgreSQL.
type RawFiling struct {
	ID          int64
	EntityID    int64
	BTC         *decimal.Decimal // headline amount: delta if present, else total
	BTCDelta    *decimal.Decimal // signed transaction amount, nil if none extracted
	BTCTotal    *decimal.Decimal // disclosed aggregate holdings, nil if none extracted
	DisclosedAt time.Time
	PDFURL      string
	Source      FilingSource
	Title       string
	FilingType  FilingType
	Confidence  float64 // extraction confidence in [0,1]
	Verified    bool    // flipped true only by explicit human review
	// BitcoinRelated flags topical relevance independently of whether an
	// amount was extracted. A routine announcement is stored with false.
	BitcoinRelated bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
