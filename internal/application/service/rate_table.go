package service

import (
	"context"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/cache"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
)

type forceRefreshKey struct{}

// withForcedRefresh marks ctx so cached tables are reloaded instead of reused
func withForcedRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, true)
}

func forcedRefresh(ctx context.Context) bool {
	forced, _ := ctx.Value(forceRefreshKey{}).(bool)
	return forced
}

// RateTable exposes a full USD rate table for direct lookups
type RateTable interface {
	Table(ctx context.Context) (map[string]float64, error)
}

// BulkRateTable caches the full table published by a bulk source and
// serves it both as the primary tier of the provider chain and for
// direct single-code lookups
type BulkRateTable struct {
	source service.BulkRateSource
	cache  *cache.SnapshotCache[map[string]float64]
	logger logger.Logger
}

// NewBulkRateTable creates a cached view of source valid for ttl
func NewBulkRateTable(source service.BulkRateSource, ttl time.Duration, clk clock.Clock, log logger.Logger) *BulkRateTable {
	return &BulkRateTable{
		source: source,
		cache:  cache.NewSnapshotCache[map[string]float64]("rate_table", ttl, clk),
		logger: logger.OrDefault(log).WithField("component", "rate_table"),
	}
}

// Name identifies the underlying source
func (t *BulkRateTable) Name() string {
	return t.source.Name()
}

// Table returns the cached table, fetching it when absent or expired.
// A context from a forced refresh always fetches.
// The returned map must not be modified.
func (t *BulkRateTable) Table(ctx context.Context) (map[string]float64, error) {
	forced := forcedRefresh(ctx)
	if !forced {
		if rates, ok := t.cache.Fresh(); ok {
			return rates, nil
		}
	}

	return t.cache.Refresh(ctx, func(ctx context.Context) (map[string]float64, error) {
		// Another caller may have reloaded the table while this one waited
		if !forced {
			if rates, ok := t.cache.Fresh(); ok {
				return rates, nil
			}
		}

		rates, err := t.source.FetchAllRates(ctx)
		if err != nil {
			return nil, err
		}

		t.cache.Put(rates)
		t.logger.Debug("Rate table refreshed", map[string]interface{}{
			"provider": t.source.Name(),
			"codes":    len(rates),
		})
		return rates, nil
	})
}

// FetchRates returns the subset of the table covering codes
func (t *BulkRateTable) FetchRates(ctx context.Context, codes []string) (map[string]float64, error) {
	table, err := t.Table(ctx)
	if err != nil {
		return nil, err
	}

	rates := make(map[string]float64, len(codes))
	for _, code := range codes {
		if rate, ok := table[code]; ok {
			rates[code] = rate
		}
	}
	return rates, nil
}
