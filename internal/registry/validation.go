// Package registry is the persistence-facing helper layer shared by the
// scraper jobs and the manual-entry path: input validation, fuzzy entity
// resolution, idempotent filing upserts and the chunked batch operator.
package registry

import (
	"fmt"
	"regexp"
)

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EntityInput is the pre-persistence payload for creating or updating an
// entity, from either the manual form or a scraper discovery.
type EntityInput struct {
	LegalName    string
	Ticker       string
	ListingVenue string
	Region       string
}

// Field patterns. Tickers cover the venues the pipeline tracks: 0434.HK,
// 002117.SZ and plain US-style symbols.
var (
	tickerPattern    = regexp.MustCompile(`^[A-Z0-9]{1,8}(\.[A-Z]{2})?$`)
	legalNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\s.,&()\-']{0,254}$`)
	venuePattern     = regexp.MustCompile(`^[A-Z]{2,8}$`)
	regionPattern    = regexp.MustCompile(`^[A-Z]{2}$`)
)

type fieldRule struct {
	name     string
	value    func(*EntityInput) string
	pattern  *regexp.Regexp
	required bool
}

// Ordered so the error always names the first invalid field.
var entityRules = []fieldRule{
	{"ticker", func(in *EntityInput) string { return in.Ticker }, tickerPattern, true},
	{"legal_name", func(in *EntityInput) string { return in.LegalName }, legalNamePattern, false},
	{"listing_venue", func(in *EntityInput) string { return in.ListingVenue }, venuePattern, false},
	{"region", func(in *EntityInput) string { return in.Region }, regionPattern, false},
}

// ValidateEntityInput checks in against the field patterns. Absent optional
// fields are skipped, not defaulted. Returns a ValidationError naming the
// first invalid field, or nil.
func ValidateEntityInput(in *EntityInput) error {
	if in == nil {
		return &ValidationError{Field: "input", Reason: "missing"}
	}

	for _, rule := range entityRules {
		v := rule.value(in)
		if v == "" {
			if rule.required {
				return &ValidationError{Field: rule.name, Reason: "required"}
			}
			continue
		}
		if !rule.pattern.MatchString(v) {
			return &ValidationError{Field: rule.name, Reason: fmt.Sprintf("%q does not match %s", v, rule.pattern)}
		}
	}
	return nil
}
