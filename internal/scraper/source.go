// Package scraper runs the advisory-lock-guarded ingestion jobs that walk
// exchange filing indexes, extract holdings facts from announcement titles
// and upsert them through the registry layer.
package scraper

import (
	"context"
	"time"
)

// SourceDocument is one candidate document from a filing index.
type SourceDocument struct {
	Title string
	Date  time.Time
	URL   string
	// IssuerCode identifies the issuer on the source's own numbering
	// (stock code). Empty when the listing is already issuer-scoped.
	IssuerCode string
}

// Source is one exchange filing index.
type Source interface {
	// Name identifies the source; it is also the rate-limiter key.
	Name() string

	// RecentFilings lists an issuer's recent documents since a date. The
	// full list, not just keyword matches, so relevance can be flagged
	// independently of any earlier heuristic.
	RecentFilings(ctx context.Context, issuerCode string, since time.Time) ([]SourceDocument, error)

	// Search lists documents matching keyword across all issuers since a
	// date. Used by the discovery pass to find untracked issuers.
	Search(ctx context.Context, keyword string, since time.Time) ([]SourceDocument, error)
}
