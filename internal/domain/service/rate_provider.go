package service

import "context"

// RateProvider is one tier of the exchange-rate provider chain
type RateProvider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// FetchRates returns USD rates for as many of codes as the provider
	// knows. Omitted codes are simply absent from the result.
	FetchRates(ctx context.Context, codes []string) (map[string]float64, error)
}

// BulkRateSource returns the full USD rate table a provider publishes
type BulkRateSource interface {
	Name() string
	FetchAllRates(ctx context.Context) (map[string]float64, error)
}

// CurrencyNameDirectory returns currency display names keyed by code
type CurrencyNameDirectory interface {
	FetchCurrencyNames(ctx context.Context) (map[string]string, error)
}
