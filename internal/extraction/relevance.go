package extraction

import "strings"

// relevanceTerms is the curated topical keyword list. HKEX and SZSE filings
// mix English with Traditional and Simplified Chinese, so both locales are
// covered. Matching is case-insensitive substring.
var relevanceTerms = []string{
	"bitcoin",
	"btc",
	"cryptocurrency",
	"crypto asset",
	"digital asset",
	"virtual asset",
	"比特幣",
	"比特币",
	"加密貨幣",
	"加密货币",
	"虛擬資產",
	"虚拟资产",
	"數字資產",
	"数字资产",
}

// IsBitcoinRelated reports whether text is topically relevant to treasury
// bitcoin holdings. Independent of amount extraction: a routine announcement
// by a tracked entity is still stored, just flagged false.
func IsBitcoinRelated(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, term := range relevanceTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// DiscoveryKeywords returns the terms used for the entity-agnostic search
// pass that surfaces previously untracked issuers.
func DiscoveryKeywords() []string {
	return []string{"bitcoin", "btc", "比特幣", "比特币"}
}
