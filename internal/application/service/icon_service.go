package service

import (
	"context"
	"strconv"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/domain/repository"
	"github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"golang.org/x/sync/singleflight"
)

// IconService resolves a subscription service to an icon URL
type IconService struct {
	repo   repository.IconCacheRepository
	search service.AppSearch
	prober service.IconProber
	hints  entity.IconHintTable
	flight singleflight.Group
	logger logger.Logger
}

// NewIconService creates a new icon service. search may be nil to skip the
// app directory lookup.
func NewIconService(repo repository.IconCacheRepository, search service.AppSearch, prober service.IconProber, hints entity.IconHintTable, log logger.Logger) *IconService {
	return &IconService{
		repo:   repo,
		search: search,
		prober: prober,
		hints:  hints,
		logger: logger.OrDefault(log).WithField("component", "icon_service"),
	}
}

// Resolve returns the icon for a service name and optional category.
// It never fails; when nothing validates the result carries provider "none".
func (s *IconService) Resolve(ctx context.Context, name, category string) entity.IconResolution {
	key := entity.IconCacheKey(name, category)
	if key == "" {
		return s.record(entity.NoIcon())
	}

	if result, ok := s.cached(ctx, key); ok {
		return s.record(result)
	}

	// Concurrent misses for one key share a single resolution
	detached := context.WithoutCancel(ctx)
	v, _, _ := s.flight.Do(key, func() (interface{}, error) {
		if result, ok := s.cached(detached, key); ok {
			return result, nil
		}
		return s.resolve(detached, key, name, category), nil
	})
	return s.record(v.(entity.IconResolution))
}

func (s *IconService) cached(ctx context.Context, key string) (entity.IconResolution, bool) {
	entry, ok, err := s.repo.Find(ctx, key)
	if err != nil {
		s.logger.Warn("Icon cache read failed", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"cache_key":  key,
			"error":      err.Error(),
		})
		return entity.IconResolution{}, false
	}
	if !ok || entry == nil || entry.IconURL == "" {
		return entity.IconResolution{}, false
	}

	return entity.IconResolution{IconURL: entry.IconURL, Provider: entry.Provider, Cached: true}, true
}

func (s *IconService) resolve(ctx context.Context, key, name, category string) entity.IconResolution {
	requestID := middleware.GetRequestID(ctx)

	if s.search != nil {
		artwork, err := s.search.SearchArtwork(ctx, name, category)
		if err != nil {
			s.logger.Warn("App search failed", map[string]interface{}{
				"request_id": requestID,
				"provider":   s.search.Name(),
				"name":       name,
				"error":      err.Error(),
			})
		}
		if artwork != "" {
			return s.store(ctx, key, artwork, s.search.Name())
		}
	}

	candidates := GenerateIconCandidates(name, category, s.hints)
	for _, candidate := range candidates {
		if s.prober.Probe(ctx, candidate.URL) {
			return s.store(ctx, key, candidate.URL, candidate.Provider)
		}
	}

	s.logger.Info("No icon candidate validated", map[string]interface{}{
		"request_id": requestID,
		"cache_key":  key,
		"candidates": len(candidates),
	})
	return entity.NoIcon()
}

// store persists a winning URL. A failed write still returns the result.
func (s *IconService) store(ctx context.Context, key, iconURL, provider string) entity.IconResolution {
	if err := s.repo.Upsert(ctx, key, iconURL, provider); err != nil {
		s.logger.Error("Failed to cache icon", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"cache_key":  key,
			"provider":   provider,
			"error":      err.Error(),
		})
	}

	s.logger.Debug("Icon resolved", map[string]interface{}{
		"cache_key": key,
		"provider":  provider,
		"icon_url":  iconURL,
	})
	return entity.IconResolution{IconURL: iconURL, Provider: provider}
}

func (s *IconService) record(result entity.IconResolution) entity.IconResolution {
	metrics.IconResolutionsTotal.WithLabelValues(result.Provider, strconv.FormatBool(result.Cached)).Inc()
	return result
}
