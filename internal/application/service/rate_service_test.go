// internal/application/service/rate_service_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testFallback = map[string]float64{
	"USD": 1.0,
	"CNY": 7.2,
	"EUR": 0.93,
	"JPY": 150,
}

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() logger.Logger {
	return logger.NewJSONLogger(nil, logger.ErrorLevel)
}

func newTestRateService(clk clock.Clock, providers ...service.RateProvider) *RateService {
	return NewRateService(RateServiceConfig{
		SupportedCodes: []string{"USD", "CNY", "EUR", "JPY"},
		Fallback:       testFallback,
		TTL:            30 * time.Minute,
	}, providers, nil, clk, testLogger())
}

func TestGetRatesPrimaryComplete(t *testing.T) {
	clk := clock.NewFake(testStart)
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, []string{"CNY", "EUR", "JPY"}).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()

	svc := newTestRateService(clk, primary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimary, snapshot.Source)
	assert.Equal(t, "USD", snapshot.Base)
	assert.Equal(t, 1.0, snapshot.Rates["USD"])
	assert.Equal(t, 7.1, snapshot.Rates["CNY"])
	assert.Empty(t, snapshot.MissingCodes)
	assert.False(t, snapshot.Stale())
	assert.Equal(t, "2024-03-01", snapshot.UpdatedAt())

	// Served from cache within the TTL
	clk.Advance(29 * time.Minute)
	again := svc.GetRates(context.Background())
	assert.Equal(t, snapshot.Rates, again.Rates)
	primary.AssertNumberOfCalls(t, "FetchRates", 1)
}

func TestGetRatesRefreshesAfterTTL(t *testing.T) {
	clk := clock.NewFake(testStart)
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.3, "EUR": 0.95, "JPY": 151}, nil).Once()

	svc := newTestRateService(clk, primary)

	first := svc.GetRates(context.Background())
	assert.Equal(t, 7.1, first.Rates["CNY"])

	clk.Advance(31 * time.Minute)
	second := svc.GetRates(context.Background())
	assert.Equal(t, 7.3, second.Rates["CNY"])
	assert.Equal(t, clk.Now(), second.LoadedAt)
	primary.AssertNumberOfCalls(t, "FetchRates", 2)
}

func TestGetRatesSecondaryFillsGaps(t *testing.T) {
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, []string{"CNY", "EUR", "JPY"}).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92}, nil).Once()

	secondary := &mocks.MockRateProvider{ProviderName: "secondary"}
	secondary.On("FetchRates", mock.Anything, []string{"JPY"}).
		Return(map[string]float64{"JPY": 149.9}, nil).Once()

	svc := newTestRateService(clock.NewFake(testStart), primary, secondary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimarySecondary, snapshot.Source)
	assert.Equal(t, 149.9, snapshot.Rates["JPY"])
	assert.Empty(t, snapshot.MissingCodes)
	assert.False(t, snapshot.Stale())
	secondary.AssertExpectations(t)
}

func TestGetRatesSecondarySkippedWhenPrimaryComplete(t *testing.T) {
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()
	secondary := &mocks.MockRateProvider{ProviderName: "secondary"}

	svc := newTestRateService(clock.NewFake(testStart), primary, secondary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimary, snapshot.Source)
	secondary.AssertNotCalled(t, "FetchRates", mock.Anything, mock.Anything)
}

func TestGetRatesPartialWhenSecondaryFails(t *testing.T) {
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92}, nil).Once()

	secondary := &mocks.MockRateProvider{ProviderName: "secondary"}
	secondary.On("FetchRates", mock.Anything, []string{"JPY"}).
		Return(nil, fmt.Errorf("%w: boom", entity.ErrUnavailable)).Once()

	svc := newTestRateService(clock.NewFake(testStart), primary, secondary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimaryPartial, snapshot.Source)
	assert.Equal(t, []string{"JPY"}, snapshot.MissingCodes)
	assert.Equal(t, 150.0, snapshot.Rates["JPY"])
	assert.Equal(t, 7.1, snapshot.Rates["CNY"])
	assert.True(t, snapshot.Stale())
}

func TestGetRatesIgnoresNonPositiveRates(t *testing.T) {
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0, "JPY": -3}, nil).Once()

	svc := newTestRateService(clock.NewFake(testStart), primary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimaryPartial, snapshot.Source)
	assert.Equal(t, []string{"EUR", "JPY"}, snapshot.MissingCodes)
	assert.Equal(t, 0.93, snapshot.Rates["EUR"])
}

func TestGetRatesFallbackWithoutPriorSnapshot(t *testing.T) {
	clk := clock.NewFake(testStart)
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: timeout", entity.ErrUnavailable))

	svc := newTestRateService(clk, primary)

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourceFallback, snapshot.Source)
	assert.Equal(t, []string{"CNY", "EUR", "JPY", "USD"}, snapshot.MissingCodes)
	assert.Equal(t, testFallback, snapshot.Rates)
	assert.True(t, snapshot.Stale())

	// A fallback snapshot is never served as fresh, so the next call retries
	svc.GetRates(context.Background())
	primary.AssertNumberOfCalls(t, "FetchRates", 2)
}

func TestGetRatesServesPreviousSnapshotWhenPrimaryFails(t *testing.T) {
	clk := clock.NewFake(testStart)
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: down", entity.ErrUnavailable))

	svc := newTestRateService(clk, primary)
	first := svc.GetRates(context.Background())
	require.False(t, first.Stale())

	clk.Advance(time.Hour)
	served := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourcePrimary, served.Source)
	assert.Equal(t, first.Rates, served.Rates)
	assert.Equal(t, first.LoadedAt, served.LoadedAt)
	assert.True(t, served.Stale())

	// Not re-stamped: the next call retries the chain
	svc.GetRates(context.Background())
	primary.AssertNumberOfCalls(t, "FetchRates", 3)
}

func TestGetRatesWithoutProviders(t *testing.T) {
	svc := newTestRateService(clock.NewFake(testStart))

	snapshot := svc.GetRates(context.Background())
	assert.Equal(t, entity.SourceFallback, snapshot.Source)
	assert.Len(t, snapshot.Rates, 4)
}

func TestGetRatesSingleFlight(t *testing.T) {
	release := make(chan struct{})
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-release }).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil)

	svc := newTestRateService(clock.NewFake(testStart), primary)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]entity.RateSnapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetRates(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	primary.AssertNumberOfCalls(t, "FetchRates", 1)
	for _, snapshot := range results {
		assert.Equal(t, entity.SourcePrimary, snapshot.Source)
		assert.Equal(t, 7.1, snapshot.Rates["CNY"])
	}
}

func TestGetRatesRefreshSurvivesCallerCancellation(t *testing.T) {
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
		}).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()

	svc := newTestRateService(clock.NewFake(testStart), primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshot := svc.GetRates(ctx)
	assert.Equal(t, entity.SourcePrimary, snapshot.Source)
}

func TestGetRateFor(t *testing.T) {
	clk := clock.NewFake(testStart)
	primary := &mocks.MockRateProvider{ProviderName: "primary"}
	primary.On("FetchRates", mock.Anything, mock.Anything).
		Return(map[string]float64{"CNY": 7.1, "EUR": 0.92}, nil).Once()

	bulk := &mocks.MockBulkRateSource{}
	bulk.On("FetchAllRates", mock.Anything).
		Return(map[string]float64{"USD": 1, "CNY": 7.1, "EUR": 0.92, "THB": 35.5}, nil).Once()
	table := NewBulkRateTable(bulk, 30*time.Minute, clk, testLogger())

	svc := NewRateService(RateServiceConfig{
		SupportedCodes: []string{"USD", "CNY", "EUR", "JPY"},
		Fallback:       testFallback,
	}, []service.RateProvider{primary}, table, clk, testLogger())
	ctx := context.Background()
	svc.GetRates(ctx)

	t.Run("Live snapshot", func(t *testing.T) {
		quote, err := svc.GetRateFor(ctx, "cny")
		require.NoError(t, err)
		assert.Equal(t, &RateQuote{Code: "CNY", USDRate: 7.1, Source: entity.SourcePrimaryPartial}, quote)
	})

	t.Run("Outside supported set from rate table", func(t *testing.T) {
		quote, err := svc.GetRateFor(ctx, "THB")
		require.NoError(t, err)
		assert.Equal(t, 35.5, quote.USDRate)
		assert.Equal(t, entity.SourcePrimary, quote.Source)
	})

	t.Run("Missing code served from fallback", func(t *testing.T) {
		quote, err := svc.GetRateFor(ctx, "JPY")
		require.NoError(t, err)
		assert.Equal(t, 150.0, quote.USDRate)
		assert.Equal(t, entity.SourceFallback, quote.Source)
	})

	t.Run("Unknown code", func(t *testing.T) {
		_, err := svc.GetRateFor(ctx, "XYZ")
		assert.True(t, errors.Is(err, entity.ErrNotSupported))
	})

	t.Run("Invalid code", func(t *testing.T) {
		_, err := svc.GetRateFor(ctx, "E$R")
		assert.True(t, errors.Is(err, entity.ErrNotSupported))
	})

	bulk.AssertNumberOfCalls(t, "FetchAllRates", 1)
}

func TestGetRateForFallsBackWhenTableUnavailable(t *testing.T) {
	bulk := &mocks.MockBulkRateSource{}
	bulk.On("FetchAllRates", mock.Anything).Return(nil, entity.ErrUnavailable)
	table := NewBulkRateTable(bulk, time.Minute, nil, testLogger())

	svc := NewRateService(RateServiceConfig{Fallback: testFallback, SupportedCodes: []string{"EUR"}},
		nil, table, nil, testLogger())

	quote, err := svc.GetRateFor(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceFallback, quote.Source)
	assert.Equal(t, 0.93, quote.USDRate)
}

func TestBulkRateTable(t *testing.T) {
	clk := clock.NewFake(testStart)
	bulk := &mocks.MockBulkRateSource{}
	bulk.On("FetchAllRates", mock.Anything).
		Return(map[string]float64{"USD": 1, "CNY": 7.1, "EUR": 0.92}, nil).Twice()

	table := NewBulkRateTable(bulk, 30*time.Minute, clk, testLogger())
	assert.Equal(t, "mock-bulk", table.Name())

	rates, err := table.FetchRates(context.Background(), []string{"CNY", "JPY"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"CNY": 7.1}, rates)

	_, err = table.Table(context.Background())
	require.NoError(t, err)
	bulk.AssertNumberOfCalls(t, "FetchAllRates", 1)

	clk.Advance(30 * time.Minute)
	_, err = table.Table(context.Background())
	require.NoError(t, err)
	bulk.AssertNumberOfCalls(t, "FetchAllRates", 2)
}

func TestSupportedCodesAlwaysIncludeBase(t *testing.T) {
	svc := NewRateService(RateServiceConfig{
		SupportedCodes: []string{"EUR", "EUR", "XXX"},
		Fallback:       testFallback,
	}, nil, nil, nil, testLogger())

	assert.Equal(t, []string{"EUR", "USD"}, svc.SupportedCodes())
}

func newTableBackedRateService(clk clock.Clock, bulk *mocks.MockBulkRateSource) *RateService {
	table := NewBulkRateTable(bulk, 30*time.Minute, clk, testLogger())
	return NewRateService(RateServiceConfig{
		SupportedCodes: []string{"USD", "CNY", "EUR", "JPY"},
		Fallback:       testFallback,
		TTL:            30 * time.Minute,
	}, []service.RateProvider{table}, table, clk, testLogger())
}

func TestRefreshReloadsLiveSnapshotAndTable(t *testing.T) {
	clk := clock.NewFake(testStart)
	bulk := &mocks.MockBulkRateSource{}
	bulk.On("FetchAllRates", mock.Anything).
		Return(map[string]float64{"USD": 1, "CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()
	bulk.On("FetchAllRates", mock.Anything).
		Return(map[string]float64{"USD": 1, "CNY": 7.3, "EUR": 0.94, "JPY": 151}, nil).Once()

	svc := newTableBackedRateService(clk, bulk)
	ctx := context.Background()

	first := svc.GetRates(ctx)
	assert.Equal(t, 7.1, first.Rates["CNY"])

	// Both the snapshot and the bulk table are still live here
	clk.Advance(25 * time.Minute)
	refreshed := svc.Refresh(ctx)
	assert.Equal(t, 7.3, refreshed.Rates["CNY"])
	assert.Equal(t, clk.Now(), refreshed.LoadedAt)
	assert.Equal(t, entity.SourcePrimary, refreshed.Source)
	bulk.AssertNumberOfCalls(t, "FetchAllRates", 2)

	// Past the first snapshot's TTL the refreshed one is still served
	clk.Advance(6 * time.Minute)
	served := svc.GetRates(ctx)
	assert.Equal(t, refreshed.Rates, served.Rates)
	assert.False(t, served.Stale())
	bulk.AssertNumberOfCalls(t, "FetchAllRates", 2)
}

func TestRefreshFailureKeepsLiveSnapshot(t *testing.T) {
	clk := clock.NewFake(testStart)
	bulk := &mocks.MockBulkRateSource{}
	bulk.On("FetchAllRates", mock.Anything).
		Return(map[string]float64{"USD": 1, "CNY": 7.1, "EUR": 0.92, "JPY": 149.5}, nil).Once()
	bulk.On("FetchAllRates", mock.Anything).
		Return(nil, fmt.Errorf("%w: down", entity.ErrUnavailable))

	svc := newTableBackedRateService(clk, bulk)
	ctx := context.Background()

	first := svc.GetRates(ctx)

	clk.Advance(5 * time.Minute)
	refreshed := svc.Refresh(ctx)
	assert.Equal(t, first.Rates, refreshed.Rates)
	assert.Equal(t, first.LoadedAt, refreshed.LoadedAt)
	assert.False(t, refreshed.Stale())

	// The live snapshot is untouched and still served from cache
	served := svc.GetRates(ctx)
	assert.Equal(t, first.LoadedAt, served.LoadedAt)
	bulk.AssertNumberOfCalls(t, "FetchAllRates", 2)
}
