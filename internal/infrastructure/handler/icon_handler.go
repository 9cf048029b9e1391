package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

const maxIconRequestBytes = 64 << 10

// IconResolver is the icon behaviour the handler depends on
type IconResolver interface {
	Resolve(ctx context.Context, name, category string) entity.IconResolution
}

// IconHandler handles HTTP requests for icon resolution
type IconHandler struct {
	resolver IconResolver
	logger   logger.Logger
}

// NewIconHandler creates a new icon handler
func NewIconHandler(resolver IconResolver, log logger.Logger) *IconHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &IconHandler{
		resolver: resolver,
		logger:   log,
	}
}

// ResolveIcon resolves a service name to an icon URL
func (h *IconHandler) ResolveIcon(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req ResolveIconRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIconRequestBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid JSON",
			"The request body could not be parsed as valid JSON", http.StatusBadRequest, requestID)
		return
	}

	name := strings.TrimSpace(formText(req.Name))
	category := strings.TrimSpace(formText(req.Category))
	if name == "" {
		sendErrorResponse(w, h.logger, "Missing name",
			"The 'name' field is required", http.StatusBadRequest, requestID)
		return
	}

	result := h.resolver.Resolve(r.Context(), name, category)

	h.logger.Info("Icon resolved", map[string]interface{}{
		"request_id": requestID,
		"name":       name,
		"category":   category,
		"provider":   result.Provider,
		"cached":     result.Cached,
	})

	sendJSON(w, h.logger, http.StatusOK, ResolveIconResponse{
		IconURL:  result.IconURL,
		Provider: result.Provider,
		Cached:   result.Cached,
	}, requestID)
}

// RegisterRoutes registers the icon handler routes
func (h *IconHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/icons/resolve", h.ResolveIcon).Methods("POST")

	h.logger.Info("Icon routes registered", map[string]interface{}{
		"routes": []string{
			"POST /api/icons/resolve",
		},
	})
}
