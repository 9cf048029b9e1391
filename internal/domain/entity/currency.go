package entity

import (
	"sort"
	"strings"
	"time"
)

// BaseCurrency is the currency every rate is quoted against
const BaseCurrency = "USD"

// Rate source tags. The tag describes which tier of the provider chain
// satisfied a snapshot.
const (
	SourcePrimary          = "primary"
	SourcePrimarySecondary = "primary+secondary"
	SourcePrimaryPartial   = "primary_partial"
	SourceFallback         = "fallback"
)

// DefaultSupportedCurrencies is the currency set the rate endpoints answer for
var DefaultSupportedCurrencies = []string{
	"AUD", "CAD", "CNY", "EUR", "GBP", "HKD", "JPY", "PHP", "SGD", "TWD", "USD",
}

// DefaultFallbackUSDRates holds approximate USD rates used only when no
// live or cached data exists
var DefaultFallbackUSDRates = map[string]float64{
	"USD": 1.0,
	"CNY": 7.2,
	"TWD": 32.0,
	"EUR": 0.93,
	"GBP": 0.79,
	"JPY": 150.0,
	"HKD": 7.8,
	"SGD": 1.35,
	"AUD": 1.53,
	"CAD": 1.35,
	"PHP": 56.0,
}

// RateSnapshot is a complete USD rate table for the supported currency set.
// Snapshots are shared between readers and must not be modified once built.
type RateSnapshot struct {
	Base         string             `json:"base"`
	Rates        map[string]float64 `json:"rates"`
	LoadedAt     time.Time          `json:"loaded_at"`
	Source       string             `json:"source"`
	MissingCodes []string           `json:"missing_codes"`

	// Expired is set on the copy handed to a caller when the snapshot was
	// served past its TTL because a refresh failed.
	Expired bool `json:"-"`
}

// UpdatedAt returns the load date of the snapshot
func (s RateSnapshot) UpdatedAt() string {
	return s.LoadedAt.UTC().Format("2006-01-02")
}

// Stale reports whether the snapshot is derived partly or wholly from
// fallback or expired data
func (s RateSnapshot) Stale() bool {
	return len(s.MissingCodes) > 0 || s.Source == SourceFallback || s.Expired
}

// CurrencyName pairs a currency code with its display name
type CurrencyName struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// NormalizeCurrencyCode upper-cases a code and validates it is alphanumeric
// with a length between 3 and 10. It returns false for invalid codes.
func NormalizeCurrencyCode(value string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(value))
	if len(code) < 3 || len(code) > 10 {
		return "", false
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return "", false
		}
	}
	return code, true
}

// SortedCodes returns the keys of a rate map in ascending order
func SortedCodes(rates map[string]float64) []string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
