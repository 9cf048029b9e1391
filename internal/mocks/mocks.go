// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/stretchr/testify/mock"
)

// MockRateProvider mocks the RateProvider interface
type MockRateProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockRateProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockRateProvider) FetchRates(ctx context.Context, codes []string) (map[string]float64, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// MockBulkRateSource mocks the BulkRateSource interface
type MockBulkRateSource struct {
	mock.Mock
}

func (m *MockBulkRateSource) Name() string {
	return "mock-bulk"
}

func (m *MockBulkRateSource) FetchAllRates(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// MockCurrencyNameDirectory mocks the CurrencyNameDirectory interface
type MockCurrencyNameDirectory struct {
	mock.Mock
}

func (m *MockCurrencyNameDirectory) FetchCurrencyNames(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// MockAppSearch mocks the AppSearch interface
type MockAppSearch struct {
	mock.Mock
}

func (m *MockAppSearch) Name() string {
	return "mock-search"
}

func (m *MockAppSearch) SearchArtwork(ctx context.Context, name, category string) (string, error) {
	args := m.Called(ctx, name, category)
	return args.String(0), args.Error(1)
}

// MockIconProber mocks the IconProber interface
type MockIconProber struct {
	mock.Mock
}

func (m *MockIconProber) Probe(ctx context.Context, url string) bool {
	args := m.Called(ctx, url)
	return args.Bool(0)
}

// MockIconCacheRepository mocks the IconCacheRepository interface
type MockIconCacheRepository struct {
	mock.Mock
}

func (m *MockIconCacheRepository) Find(ctx context.Context, cacheKey string) (*entity.IconCacheEntry, bool, error) {
	args := m.Called(ctx, cacheKey)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.IconCacheEntry), args.Bool(1), args.Error(2)
}

func (m *MockIconCacheRepository) Upsert(ctx context.Context, cacheKey, iconURL, provider string) error {
	args := m.Called(ctx, cacheKey, iconURL, provider)
	return args.Error(0)
}
