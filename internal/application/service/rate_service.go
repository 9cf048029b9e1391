// Package service internal/application/service/rate_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/cache"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
)

// DefaultRateTTL is how long a live rate snapshot is served without refresh
const DefaultRateTTL = 30 * time.Minute

var errNoProviders = errors.New("no rate providers configured")

// RateServiceConfig configures the rate aggregator
type RateServiceConfig struct {
	SupportedCodes []string
	Fallback       map[string]float64
	TTL            time.Duration
}

// RateQuote is the answer to a single-currency lookup
type RateQuote struct {
	Code    string  `json:"code"`
	USDRate float64 `json:"usdRate"`
	Source  string  `json:"source"`
}

// RateService aggregates the provider chain, the rate snapshot cache and
// the fallback table into one rate table that is always complete
type RateService struct {
	providers []service.RateProvider
	lookup    RateTable
	snapshots *cache.SnapshotCache[*entity.RateSnapshot]
	codes     []string
	fallback  map[string]float64
	clock     clock.Clock
	logger    logger.Logger
}

// NewRateService creates a new rate service. providers is the ordered
// chain; the first entry is the primary tier. lookup serves single-code
// lookups outside the supported set and may be nil.
func NewRateService(cfg RateServiceConfig, providers []service.RateProvider, lookup RateTable, clk clock.Clock, log logger.Logger) *RateService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = entity.DefaultFallbackUSDRates
	}

	if clk == nil {
		clk = clock.Real{}
	}

	codes := cfg.SupportedCodes
	if len(codes) == 0 {
		codes = entity.DefaultSupportedCurrencies
	}

	return &RateService{
		providers: providers,
		lookup:    lookup,
		snapshots: cache.NewSnapshotCache[*entity.RateSnapshot]("rates", ttl, clk),
		codes:     supportedSet(codes, fallback),
		fallback:  fallback,
		clock:     clk,
		logger:    logger.OrDefault(log).WithField("component", "rate_service"),
	}
}

// supportedSet returns the sorted unique codes that have a fallback rate,
// always including the base currency
func supportedSet(codes []string, fallback map[string]float64) []string {
	seen := map[string]struct{}{entity.BaseCurrency: {}}
	out := []string{entity.BaseCurrency}
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		if _, ok := fallback[code]; !ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// SupportedCodes returns the currency set every snapshot covers
func (s *RateService) SupportedCodes() []string {
	return append([]string(nil), s.codes...)
}

// GetRates returns the current rate snapshot. It never fails: provider
// failures degrade to cached or fallback data.
func (s *RateService) GetRates(ctx context.Context) entity.RateSnapshot {
	if snapshot, ok := s.freshSnapshot(); ok {
		metrics.ObserveCache("rates", metrics.OutcomeHit)
		return *snapshot
	}
	metrics.ObserveCache("rates", metrics.OutcomeMiss)

	snapshot, err := s.snapshots.Refresh(ctx, s.refresh)
	if err != nil || snapshot == nil {
		// refresh always degrades instead of failing
		return *s.fallbackSnapshot(s.clock.Now())
	}
	return *snapshot
}

// freshSnapshot returns the cached snapshot when it is live and unexpired
func (s *RateService) freshSnapshot() (*entity.RateSnapshot, bool) {
	entry, ok := s.snapshots.Get()
	if !ok || entry.Value.Source == entity.SourceFallback || s.snapshots.Expired(entry) {
		return nil, false
	}
	return entry.Value, true
}

// Refresh rebuilds the snapshot from the provider chain even when the cached
// one is still live, reloading cached provider tables as well. Failures
// degrade exactly as in GetRates.
func (s *RateService) Refresh(ctx context.Context) entity.RateSnapshot {
	snapshot, err := s.snapshots.Refresh(withForcedRefresh(ctx), s.refresh)
	if err != nil || snapshot == nil {
		return *s.fallbackSnapshot(s.clock.Now())
	}
	return *snapshot
}

func (s *RateService) refresh(ctx context.Context) (*entity.RateSnapshot, error) {
	// A refresh that finished while this one queued may already have
	// published a live snapshot
	if !forcedRefresh(ctx) {
		if snapshot, ok := s.freshSnapshot(); ok {
			return snapshot, nil
		}
	}

	requestID := middleware.GetRequestID(ctx)
	rates, missing, secondaryUsed, err := s.resolveChain(ctx)
	if err != nil {
		if previous, ok := s.snapshots.Get(); ok {
			s.logger.Warn("Primary rate provider failed, serving previous snapshot", map[string]interface{}{
				"request_id": requestID,
				"source":     previous.Value.Source,
				"loaded_at":  previous.Value.LoadedAt.Format(time.RFC3339),
				"error":      err.Error(),
			})
			served := *previous.Value
			served.Expired = s.snapshots.Expired(previous)
			return &served, nil
		}

		s.logger.Warn("Primary rate provider failed, serving fallback table", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		snapshot := s.fallbackSnapshot(s.clock.Now())
		s.snapshots.Put(snapshot)
		s.publish(snapshot)
		return snapshot, nil
	}

	for _, code := range missing {
		rates[code] = s.fallback[code]
	}

	source := entity.SourcePrimary
	switch {
	case len(missing) > 0:
		source = entity.SourcePrimaryPartial
	case secondaryUsed:
		source = entity.SourcePrimarySecondary
	}

	snapshot := &entity.RateSnapshot{
		Base:         entity.BaseCurrency,
		Rates:        rates,
		LoadedAt:     s.clock.Now(),
		Source:       source,
		MissingCodes: missing,
	}
	s.snapshots.Put(snapshot)
	s.publish(snapshot)

	s.logger.Info("Rate snapshot refreshed", map[string]interface{}{
		"request_id":    requestID,
		"source":        source,
		"missing_codes": missing,
	})
	return snapshot, nil
}

// resolveChain walks the provider chain, asking each tier only for the
// codes still missing. An error is returned only when the primary tier
// fails outright.
func (s *RateService) resolveChain(ctx context.Context) (map[string]float64, []string, bool, error) {
	if len(s.providers) == 0 {
		return nil, nil, false, errNoProviders
	}

	rates := map[string]float64{entity.BaseCurrency: 1.0}
	missing := make([]string, 0, len(s.codes))
	for _, code := range s.codes {
		if code != entity.BaseCurrency {
			missing = append(missing, code)
		}
	}

	secondaryUsed := false
	for tier, provider := range s.providers {
		if len(missing) == 0 {
			break
		}

		got, err := provider.FetchRates(ctx, missing)
		if err != nil {
			if tier == 0 {
				return nil, nil, false, fmt.Errorf("primary provider %s: %w", provider.Name(), err)
			}
			s.logger.Warn("Rate provider contributed nothing", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"provider":   provider.Name(),
				"tier":       tier,
				"codes":      missing,
				"error":      err.Error(),
			})
			continue
		}

		still := missing[:0:0]
		for _, code := range missing {
			if rate, ok := got[code]; ok && rate > 0 {
				rates[code] = rate
				continue
			}
			still = append(still, code)
		}

		if tier > 0 && len(still) < len(missing) {
			secondaryUsed = true
		}
		s.logger.Debug("Rate provider merged", map[string]interface{}{
			"provider": provider.Name(),
			"tier":     tier,
			"filled":   len(missing) - len(still),
			"missing":  still,
		})
		missing = still
	}

	return rates, missing, secondaryUsed, nil
}

// fallbackSnapshot builds a snapshot entirely from the fallback table with
// every supported code marked missing
func (s *RateService) fallbackSnapshot(loadedAt time.Time) *entity.RateSnapshot {
	rates := make(map[string]float64, len(s.codes))
	for _, code := range s.codes {
		rates[code] = s.fallback[code]
	}

	return &entity.RateSnapshot{
		Base:         entity.BaseCurrency,
		Rates:        rates,
		LoadedAt:     loadedAt,
		Source:       entity.SourceFallback,
		MissingCodes: append([]string(nil), s.codes...),
	}
}

func (s *RateService) publish(snapshot *entity.RateSnapshot) {
	metrics.RateSnapshotsTotal.WithLabelValues(snapshot.Source).Inc()
	metrics.RateMissingCodes.Set(float64(len(snapshot.MissingCodes)))
}

// GetRateFor returns the USD rate for a single code. It consults the live
// snapshot first, then the direct rate table, then the fallback table.
// Codes that are malformed or unknown to every tier wrap entity.ErrNotSupported.
func (s *RateService) GetRateFor(ctx context.Context, rawCode string) (*RateQuote, error) {
	code, ok := entity.NormalizeCurrencyCode(rawCode)
	if !ok {
		return nil, fmt.Errorf("%w: invalid currency code %q", entity.ErrNotSupported, rawCode)
	}

	if snapshot, ok := s.freshSnapshot(); ok && !contains(snapshot.MissingCodes, code) {
		if rate, ok := snapshot.Rates[code]; ok {
			return &RateQuote{Code: code, USDRate: rate, Source: snapshot.Source}, nil
		}
	}

	if s.lookup != nil {
		table, err := s.lookup.Table(ctx)
		if err != nil {
			s.logger.Warn("Direct rate lookup failed", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"code":       code,
				"error":      err.Error(),
			})
		} else if rate, ok := table[code]; ok {
			return &RateQuote{Code: code, USDRate: rate, Source: entity.SourcePrimary}, nil
		}
	}

	if rate, ok := s.fallback[code]; ok {
		return &RateQuote{Code: code, USDRate: rate, Source: entity.SourceFallback}, nil
	}

	return nil, fmt.Errorf("%w: no rate for %s", entity.ErrNotSupported, code)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
