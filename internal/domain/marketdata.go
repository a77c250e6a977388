package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the normalized quote+profile record for one ticker.
// Vendor-specific field names never leak past the provider adapters; every
// provider maps its own payload shape into this struct.
type MarketData struct {
	Ticker            string
	Price             decimal.Decimal
	MarketCap         decimal.Decimal
	SharesOutstanding decimal.Decimal
	Source            string // provider name that served the quote
	FetchedAt         time.Time
}
