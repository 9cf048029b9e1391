package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
)

// RatesResponse represents the response for the rates endpoint
type RatesResponse struct {
	Base          string             `json:"base"`
	Rates         map[string]float64 `json:"rates"`
	UpdatedAt     string             `json:"updatedAt"`
	Source        string             `json:"source"`
	Stale         bool               `json:"stale"`
	MissingCodes  []string           `json:"missingCodes"`
	RequestedBase string             `json:"requestedBase"`
}

// NewRatesResponse maps a snapshot onto the wire shape of GET /api/rates
func NewRatesResponse(snapshot entity.RateSnapshot, requestedBase string) RatesResponse {
	missing := snapshot.MissingCodes
	if missing == nil {
		missing = []string{}
	}

	return RatesResponse{
		Base:          snapshot.Base,
		Rates:         snapshot.Rates,
		UpdatedAt:     snapshot.UpdatedAt(),
		Source:        snapshot.Source,
		Stale:         snapshot.Stale(),
		MissingCodes:  missing,
		RequestedBase: requestedBase,
	}
}

// CurrenciesResponse represents the response for the currencies endpoint
type CurrenciesResponse struct {
	Codes []string              `json:"codes"`
	Items []entity.CurrencyName `json:"items"`
}

// CurrencyRateResponse represents the response for the single-rate endpoint
type CurrencyRateResponse struct {
	Code    string  `json:"code"`
	USDRate float64 `json:"usdRate"`
	Source  string  `json:"source"`
}

// ResolveIconRequest represents the request body for icon resolution.
// Fields accept any JSON value; see formText.
type ResolveIconRequest struct {
	Name     interface{} `json:"name"`
	Category interface{} `json:"category,omitempty"`
}

// formText renders a loosely typed JSON field as text. Null, false, zero
// and empty values become "".
func formText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
		return "True"
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		if len(v) == 0 {
			return ""
		}
	case map[string]interface{}:
		if len(v) == 0 {
			return ""
		}
	}
	return fmt.Sprint(value)
}

// ResolveIconResponse represents the response for icon resolution
type ResolveIconResponse struct {
	IconURL  string `json:"iconUrl"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func sendJSON(w http.ResponseWriter, log logger.Logger, statusCode int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	sendJSON(w, log, statusCode, resp, requestID)
}
