package service

import (
	"context"
	"sort"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/cache"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"golang.org/x/sync/errgroup"
)

// DefaultCurrencyNamesTTL is how long the currency name directory is cached
const DefaultCurrencyNamesTTL = 24 * time.Hour

// CurrencyService serves currency display names and the list of known codes
type CurrencyService struct {
	directory service.CurrencyNameDirectory
	names     *cache.SnapshotCache[map[string]string]
	table     RateTable
	supported []string
	logger    logger.Logger
}

// NewCurrencyService creates a new currency service. table supplies the
// codes published by the primary provider and may be nil.
func NewCurrencyService(directory service.CurrencyNameDirectory, table RateTable, supported []string, ttl time.Duration, clk clock.Clock, log logger.Logger) *CurrencyService {
	if ttl <= 0 {
		ttl = DefaultCurrencyNamesTTL
	}
	if len(supported) == 0 {
		supported = entity.DefaultSupportedCurrencies
	}

	return &CurrencyService{
		directory: directory,
		names:     cache.NewSnapshotCache[map[string]string]("currency_names", ttl, clk),
		table:     table,
		supported: supported,
		logger:    logger.OrDefault(log).WithField("component", "currency_service"),
	}
}

// GetCurrencyNames returns display names keyed by code. When the directory
// cannot be reached it returns the previously cached names, or an empty map.
// The returned map must not be modified.
func (s *CurrencyService) GetCurrencyNames(ctx context.Context) map[string]string {
	if names, ok := s.names.Fresh(); ok {
		return names
	}

	names, err := s.names.Refresh(ctx, func(ctx context.Context) (map[string]string, error) {
		if names, ok := s.names.Fresh(); ok {
			return names, nil
		}

		names, err := s.directory.FetchCurrencyNames(ctx)
		if err != nil {
			return nil, err
		}
		s.names.Put(names)
		return names, nil
	})
	if err == nil {
		return names
	}

	previous, ok := s.names.Get()
	s.logger.Warn("Currency name directory unavailable", map[string]interface{}{
		"request_id":   middleware.GetRequestID(ctx),
		"has_previous": ok,
		"error":        err.Error(),
	})
	if ok {
		return previous.Value
	}
	return map[string]string{}
}

// ListCurrencies returns the known currency codes in sorted order together
// with their display names. A code without a name is named by itself.
func (s *CurrencyService) ListCurrencies(ctx context.Context) ([]string, []entity.CurrencyName) {
	var (
		table map[string]float64
		names map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.table != nil {
		g.Go(func() error {
			rates, err := s.table.Table(gctx)
			if err != nil {
				s.logger.Warn("Rate table unavailable, listing supported currencies", map[string]interface{}{
					"request_id": middleware.GetRequestID(ctx),
					"error":      err.Error(),
				})
				return nil
			}
			table = rates
			return nil
		})
	}
	g.Go(func() error {
		names = s.GetCurrencyNames(gctx)
		return nil
	})
	_ = g.Wait()

	var codes []string
	if len(table) > 0 {
		codes = entity.SortedCodes(table)
	} else {
		codes = append([]string(nil), s.supported...)
		sort.Strings(codes)
	}

	items := make([]entity.CurrencyName, 0, len(codes))
	for _, code := range codes {
		name := names[code]
		if name == "" {
			name = code
		}
		items = append(items, entity.CurrencyName{Code: code, Name: name})
	}
	return codes, items
}
