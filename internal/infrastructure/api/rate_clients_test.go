// internal/infrastructure/api/rate_clients_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() ClientOptions {
	return ClientOptions{
		Timeout: 2 * time.Second,
		Retries: 1,
		Backoff: time.Millisecond,
		Logger:  logger.NewJSONLogger(nil, logger.ErrorLevel),
	}
}

func TestOpenERAPIClientFetchAllRates(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/latest/USD", r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": "success",
			"base_code": "USD",
			"rates": {"USD": 1, "eur": 0.92, "JPY": "149.5", "BAD": "n/a", "ZERO": 0}
		}`))
	}))
	defer mockServer.Close()

	client := NewOpenERAPIClient(mockServer.URL, testOptions())
	rates, err := client.FetchAllRates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1.0, rates["USD"])
	assert.Equal(t, 0.92, rates["EUR"])
	assert.Equal(t, 149.5, rates["JPY"])
	assert.NotContains(t, rates, "BAD")
	assert.NotContains(t, rates, "ZERO")
	assert.Equal(t, "open-er-api", client.Name())
}

func TestOpenERAPIClientErrors(t *testing.T) {
	t.Run("Malformed payload", func(t *testing.T) {
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": "error", "error-type": "unsupported-code"}`))
		}))
		defer mockServer.Close()

		_, err := NewOpenERAPIClient(mockServer.URL, testOptions()).FetchAllRates(context.Background())
		assert.ErrorIs(t, err, entity.ErrMalformed)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer mockServer.Close()

		_, err := NewOpenERAPIClient(mockServer.URL, testOptions()).FetchAllRates(context.Background())
		assert.ErrorIs(t, err, entity.ErrMalformed)
	})

	t.Run("Server error is retried then reported unavailable", func(t *testing.T) {
		var calls int32
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer mockServer.Close()

		_, err := NewOpenERAPIClient(mockServer.URL, testOptions()).FetchAllRates(context.Background())
		assert.ErrorIs(t, err, entity.ErrUnavailable)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("Client error is not retried", func(t *testing.T) {
		var calls int32
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer mockServer.Close()

		_, err := NewOpenERAPIClient(mockServer.URL, testOptions()).FetchAllRates(context.Background())
		assert.ErrorIs(t, err, entity.ErrUnavailable)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("Timeout", func(t *testing.T) {
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"rates": {}}`))
		}))
		defer mockServer.Close()

		opts := testOptions()
		opts.Timeout = 20 * time.Millisecond
		opts.Retries = 0

		_, err := NewOpenERAPIClient(mockServer.URL, opts).FetchAllRates(context.Background())
		assert.ErrorIs(t, err, entity.ErrUnavailable)
	})
}

func TestFrankfurterClientFetchRates(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "EUR,PHP", r.URL.Query().Get("to"))

		w.Write([]byte(`{"amount": 1.0, "base": "USD", "date": "2024-03-01", "rates": {"EUR": 0.92, "PHP": 56.1, "GBP": 0.8}}`))
	}))
	defer mockServer.Close()

	client := NewFrankfurterClient(mockServer.URL, testOptions())
	rates, err := client.FetchRates(context.Background(), []string{"php", "EUR", "EUR"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"EUR": 0.92, "PHP": 56.1}, rates)
	assert.Equal(t, "frankfurter", client.Name())
}

func TestFrankfurterClientNoCodes(t *testing.T) {
	client := NewFrankfurterClient("http://127.0.0.1:1", testOptions())
	rates, err := client.FetchRates(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestCurrencyNamesClient(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"USD": "United States Dollar", "eur": " Euro ", "XXX": "", "NUM": 5}`))
	}))
	defer mockServer.Close()

	names, err := NewCurrencyNamesClient(mockServer.URL, testOptions()).FetchCurrencyNames(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"USD": "United States Dollar", "EUR": "Euro"}, names)
}

func TestCurrencyNamesClientRejectsNonObject(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["USD", "EUR"]`))
	}))
	defer mockServer.Close()

	_, err := NewCurrencyNamesClient(mockServer.URL, testOptions()).FetchCurrencyNames(context.Background())
	assert.ErrorIs(t, err, entity.ErrMalformed)
}

func TestParseRateValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
		ok    bool
	}{
		{name: "Number", value: 7.19, want: 7.19, ok: true},
		{name: "Numeric string", value: "0.92", want: 0.92, ok: true},
		{name: "Padded string", value: " 151.2 ", want: 151.2, ok: true},
		{name: "Trailing garbage", value: "1.5abc", ok: false},
		{name: "Empty string", value: "", ok: false},
		{name: "Zero", value: 0.0, ok: false},
		{name: "Negative string", value: "-3", ok: false},
		{name: "Boolean", value: true, ok: false},
		{name: "Null", value: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRateValue(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFrankfurterClientSkipsUnparseableRates(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base": "USD", "date": "2024-03-01", "rates": {"EUR": "1.5abc", "JPY": "149.8"}}`))
	}))
	defer mockServer.Close()

	client := NewFrankfurterClient(mockServer.URL, testOptions())
	rates, err := client.FetchRates(context.Background(), []string{"EUR", "JPY"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"JPY": 149.8}, rates)
}
