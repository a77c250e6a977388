package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// similarityThreshold is the normalized Levenshtein similarity above which
// two legal names are treated as the same issuer. Best-effort heuristic; a
// match is warn-logged so an operator can later confirm or split the merge.
const similarityThreshold = 0.8

// Resolver maps an incoming (name, ticker) pair onto exactly one entity,
// creating it only when no existing entity plausibly matches.
type Resolver struct {
	entities storage.EntityStore
	logger   *zap.Logger
}

// NewResolver creates a Resolver. A nil logger falls back to a no-op.
func NewResolver(entities storage.EntityStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{entities: entities, logger: logger}
}

// Resolve finds or creates the entity for in. Resolution order: exact ticker
// match, exact case-insensitive name match, Levenshtein similarity above the
// threshold, then create. Returns the entity and whether it was created.
func (r *Resolver) Resolve(ctx context.Context, in *EntityInput) (*domain.Entity, bool, error) {
	if err := ValidateEntityInput(in); err != nil {
		return nil, false, err
	}

	e, err := r.entities.GetByTicker(ctx, in.Ticker)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("resolve by ticker %s: %w", in.Ticker, err)
	}

	if in.LegalName != "" {
		match, err := r.matchByName(ctx, in.LegalName)
		if err != nil {
			return nil, false, err
		}
		if match != nil {
			return match, false, nil
		}
	}

	entity := &domain.Entity{
		LegalName:    in.LegalName,
		Ticker:       in.Ticker,
		ListingVenue: in.ListingVenue,
		Region:       in.Region,
	}
	id, err := r.entities.Insert(ctx, entity)
	if err != nil {
		// Lost a race against a concurrent resolve for the same ticker
		if errors.Is(err, storage.ErrDuplicateKey) {
			existing, getErr := r.entities.GetByTicker(ctx, in.Ticker)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("create entity %s: %w", in.Ticker, err)
	}
	entity.ID = id
	return entity, true, nil
}

// matchByName returns an existing entity whose name matches exactly
// (case-insensitive) or with similarity above the threshold, or nil.
func (r *Resolver) matchByName(ctx context.Context, legalName string) (*domain.Entity, error) {
	all, err := r.entities.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities for name match: %w", err)
	}

	want := normalizeName(legalName)
	for _, e := range all {
		if normalizeName(e.LegalName) == want {
			return e, nil
		}
	}

	var best *domain.Entity
	var bestSim float64
	for _, e := range all {
		if e.LegalName == "" {
			continue
		}
		sim := similarity(want, normalizeName(e.LegalName))
		if sim >= similarityThreshold && sim > bestSim {
			best = e
			bestSim = sim
		}
	}
	if best != nil {
		r.logger.Warn("probable duplicate entity matched by fuzzy name, not created",
			zap.String("incoming_name", legalName),
			zap.String("matched_name", best.LegalName),
			zap.String("matched_ticker", best.Ticker),
			zap.Float64("similarity", bestSim))
		return best, nil
	}
	return nil, nil
}

// normalizeName lowercases and collapses whitespace before comparison.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// similarity is the Levenshtein distance normalized to [0,1] by the longer
// string's length; 1 means identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
