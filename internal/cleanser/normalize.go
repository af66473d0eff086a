// normalize.go - Currency, date and category normalization helpers

package cleanser

import (
	"strings"
	"time"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
	"฿": "THB",
	"¥": "JPY",
	"₹": "INR",
	"₩": "KRW",
}

var knownISOCodes = map[string]bool{
	"USD": true, "GBP": true, "EUR": true, "THB": true, "JPY": true,
	"INR": true, "KRW": true, "AUD": true, "CAD": true, "SGD": true,
	"CHF": true, "CNY": true, "HKD": true, "NZD": true, "SEK": true,
}

// NormalizeCurrency maps a printed currency symbol or code to an ISO 4217
// code, falling back to the configured default when unrecognized.
func NormalizeCurrency(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	if iso, ok := currencySymbols[s]; ok {
		return iso
	}

	upper := strings.ToUpper(s)
	if knownISOCodes[upper] {
		return upper
	}

	// Receipts sometimes print the symbol next to text, e.g. "$ USD" or "£ "
	for symbol, iso := range currencySymbols {
		if strings.Contains(s, symbol) {
			return iso
		}
	}

	return fallback
}

// dateLayouts are tried in order. Day-first layouts come before
// month-first since most receipt locales print day first.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"01/02/2006",
	"2006/01/02",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
}

// NormalizeDate parses a printed transaction date into YYYY-MM-DD.
// Returns ("", false) when no layout matches.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// categoryVocabulary is the fixed set of accepted categories
var categoryVocabulary = map[string]bool{
	"groceries":   true,
	"dining":      true,
	"transport":   true,
	"fuel":        true,
	"pharmacy":    true,
	"electronics": true,
	"clothing":    true,
	"household":   true,
	"services":    true,
	"other":       true,
}

// categoryKeywords maps substrings seen in provider categories or vendor
// names to a vocabulary entry.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"grocer", "groceries"},
	{"supermarket", "groceries"},
	{"market", "groceries"},
	{"food", "groceries"},
	{"restaurant", "dining"},
	{"cafe", "dining"},
	{"coffee", "dining"},
	{"pizza", "dining"},
	{"taxi", "transport"},
	{"uber", "transport"},
	{"train", "transport"},
	{"bus", "transport"},
	{"parking", "transport"},
	{"petrol", "fuel"},
	{"gas station", "fuel"},
	{"shell", "fuel"},
	{"pharma", "pharmacy"},
	{"drug", "pharmacy"},
	{"chemist", "pharmacy"},
	{"electronic", "electronics"},
	{"computer", "electronics"},
	{"phone", "electronics"},
	{"apparel", "clothing"},
	{"fashion", "clothing"},
	{"cloth", "clothing"},
	{"hardware", "household"},
	{"furniture", "household"},
}

// MapCategory resolves the result category: a direct vocabulary match on
// the provider's category, then keyword matching against the category and
// vendor text, else "other".
func MapCategory(category, vendor string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if categoryVocabulary[normalized] {
		return normalized
	}

	haystack := normalized + " " + strings.ToLower(vendor)
	for _, kw := range categoryKeywords {
		if strings.Contains(haystack, kw.keyword) {
			return kw.category
		}
	}

	return "other"
}
