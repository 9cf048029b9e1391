// Package handler internal/infrastructure/handler/rates_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/damon-houk/subly-resolution-service/internal/application/service"
	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// RateReader is the rate behaviour the handler depends on
type RateReader interface {
	GetRates(ctx context.Context) entity.RateSnapshot
	GetRateFor(ctx context.Context, code string) (*service.RateQuote, error)
}

// CurrencyLister is the currency metadata behaviour the handler depends on
type CurrencyLister interface {
	ListCurrencies(ctx context.Context) ([]string, []entity.CurrencyName)
}

// RatesHandler handles HTTP requests for exchange rates and currency metadata
type RatesHandler struct {
	rates      RateReader
	currencies CurrencyLister
	logger     logger.Logger
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(rates RateReader, currencies CurrencyLister, log logger.Logger) *RatesHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RatesHandler{
		rates:      rates,
		currencies: currencies,
		logger:     log,
	}
}

// GetRates returns the aggregated USD rate table
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	// Rates are always USD based; the requested base is echoed back
	requestedBase := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("base")))
	if requestedBase == "" {
		requestedBase = entity.BaseCurrency
	}

	snapshot := h.rates.GetRates(r.Context())

	h.logger.Debug("Rates served", map[string]interface{}{
		"request_id":     requestID,
		"source":         snapshot.Source,
		"stale":          snapshot.Stale(),
		"requested_base": requestedBase,
	})

	sendJSON(w, h.logger, http.StatusOK, NewRatesResponse(snapshot, requestedBase), requestID)
}

// ListCurrencies returns known currency codes and their display names
func (h *RatesHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	codes, items := h.currencies.ListCurrencies(r.Context())

	sendJSON(w, h.logger, http.StatusOK, CurrenciesResponse{Codes: codes, Items: items}, requestID)
}

// GetCurrencyRate returns the USD rate for a single currency code
func (h *RatesHandler) GetCurrencyRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	if code == "" {
		sendErrorResponse(w, h.logger, "Missing code",
			"The 'code' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	if _, ok := entity.NormalizeCurrencyCode(code); !ok {
		h.logger.Warn("Invalid currency code", map[string]interface{}{
			"request_id": requestID,
			"code":       code,
		})
		sendErrorResponse(w, h.logger, "Invalid code",
			"Currency code must be 3 to 10 letters or digits", http.StatusBadRequest, requestID)
		return
	}

	quote, err := h.rates.GetRateFor(r.Context(), code)
	if err != nil {
		if errors.Is(err, entity.ErrNotSupported) {
			h.logger.Info("Rate not found", map[string]interface{}{
				"request_id": requestID,
				"code":       code,
			})
			sendErrorResponse(w, h.logger, "Rate not found",
				"No live or fallback rate is known for "+code, http.StatusNotFound, requestID)
			return
		}

		h.logger.Error("Unexpected error in rate lookup", map[string]interface{}{
			"request_id": requestID,
			"code":       code,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Internal server error",
			"An unexpected error occurred. Please try again later.", http.StatusInternalServerError, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, CurrencyRateResponse{
		Code:    quote.Code,
		USDRate: quote.USDRate,
		Source:  quote.Source,
	}, requestID)
}

// RegisterRoutes registers the rates handler routes
func (h *RatesHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/rates", h.GetRates).Methods("GET")
	router.HandleFunc("/api/currencies", h.ListCurrencies).Methods("GET")
	router.HandleFunc("/api/currency-rate", h.GetCurrencyRate).Methods("GET")

	h.logger.Info("Rate routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/rates",
			"GET /api/currencies",
			"GET /api/currency-rate",
		},
	})
}
