// Package extraction turns raw disclosure text into structured holdings
// facts. All functions are pure and must never panic on malformed input.
package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

// AmountInfo is the structured result of scanning one disclosure text.
// Delta is signed (negative for disposals). Total is the disclosed aggregate
// holdings. Both are nil when nothing was extracted.
type AmountInfo struct {
	Delta      *decimal.Decimal
	Total      *decimal.Decimal
	IsDisposal bool
	// FallbackTotal marks that Total came from the best-effort
	// largest-number scan rather than an explicit holdings phrase.
	FallbackTotal bool
}

// amountPattern matches a number followed by a BTC unit. Thousands
// separators and decimals are accepted here; scientific notation is rejected
// by the boundary check in findAmounts, not by the pattern itself.
const amountPattern = `(\d[\d,]*(?:\.\d+)?)\s*(?:btc|bitcoins?|比特幣|比特币)`

var (
	disposalRe    = regexp.MustCompile(`(?is)\b(?:sold|disposed\s+of|divested)\b[^.;]{0,120}?` + amountPattern)
	acquisitionRe = regexp.MustCompile(`(?is)\b(?:purchased|acquired|bought)\b[^.;]{0,120}?` + amountPattern)
	totalRe       = regexp.MustCompile(`(?is)(?:total[^.;]{0,60}?holdings\s+of|now\s+holds|current\s+holdings\s*(?::|of)?)\s*(?:approximately\s+)?` + amountPattern)
	anyAmountRe   = regexp.MustCompile(`(?is)` + amountPattern)

	plainNumberRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ExtractAmountInfo scans disclosure text for transaction and holdings
// amounts. Priority: disposal verb, then acquisition verb; a total-holdings
// phrase is matched independently. If neither a transaction verb nor a total
// phrase matched, the largest number-then-unit occurrence is taken as a
// best-effort total. Returns all-nil fields on no match; never panics.
func ExtractAmountInfo(text string) AmountInfo {
	var info AmountInfo
	if strings.TrimSpace(text) == "" {
		return info
	}

	if amounts := findAmounts(disposalRe, text); len(amounts) > 0 {
		neg := amounts[0].Neg()
		info.Delta = &neg
		info.IsDisposal = true
	} else if amounts := findAmounts(acquisitionRe, text); len(amounts) > 0 {
		amt := amounts[0]
		info.Delta = &amt
	}

	if amounts := findAmounts(totalRe, text); len(amounts) > 0 {
		amt := amounts[0]
		info.Total = &amt
	}

	// Ambiguous text more often states an aggregate than a transaction, so
	// fall back to the largest amount mentioned.
	if info.Delta == nil && info.Total == nil {
		if amounts := findAmounts(anyAmountRe, text); len(amounts) > 0 {
			max := amounts[0]
			for _, a := range amounts[1:] {
				if a.GreaterThan(max) {
					max = a
				}
			}
			info.Total = &max
			info.FallbackTotal = true
		}
	}

	return info
}

// findAmounts returns every parseable amount captured by re's last group.
// A match whose number is directly preceded by a letter, digit, dot or comma
// is dropped: that is how scientific notation ("1e2") and run-on tokens are
// kept out without lookbehind support.
func findAmounts(re *regexp.Regexp, text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
		// The number group is the last capture group.
		start, end := idx[len(idx)-2], idx[len(idx)-1]
		if start < 0 {
			continue
		}
		if start > 0 && invalidNumberBoundary(text[start-1]) {
			continue
		}
		if amt, ok := parseAmount(text[start:end]); ok {
			out = append(out, amt)
		}
	}
	return out
}

func invalidNumberBoundary(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '.', b == ',':
		return true
	}
	return false
}

// parseAmount strips thousands separators and parses a plain decimal.
// Scientific notation and anything else non-numeric is rejected.
func parseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	if !plainNumberRe.MatchString(cleaned) {
		return decimal.Decimal{}, false
	}
	amt, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amt, true
}

// DetermineFilingType classifies an extraction result. Delta takes priority
// over total when both are present.
func DetermineFilingType(info AmountInfo) domain.FilingType {
	switch {
	case info.IsDisposal && info.Delta != nil:
		return domain.FilingDisposal
	case info.Delta != nil && !info.Delta.IsZero():
		return domain.FilingAcquisition
	case info.Total != nil:
		return domain.FilingUpdate
	default:
		return domain.FilingDisclosure
	}
}

// Confidence scores an extraction result for downstream review tooling.
// Verb-anchored matches score highest; the largest-amount fallback is
// deliberately low so ambiguous documents surface for verification first.
func Confidence(info AmountInfo) float64 {
	switch {
	case info.Delta != nil:
		return 0.9
	case info.Total != nil && !info.FallbackTotal:
		return 0.8
	case info.Total != nil:
		return 0.5
	default:
		return 0
	}
}
