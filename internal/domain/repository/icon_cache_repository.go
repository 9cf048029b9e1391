// Package repository internal/domain/repository/icon_cache_repository.go
package repository

import (
	"context"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

// IconCacheRepository defines the interface for persisted icon resolutions
type IconCacheRepository interface {
	// Find returns the entry for key. Entries older than the repository TTL
	// are reported as not found even though they are still stored.
	Find(ctx context.Context, cacheKey string) (*entity.IconCacheEntry, bool, error)

	// Upsert stores an entry for key, stamping the current time.
	// The last write wins.
	Upsert(ctx context.Context, cacheKey, iconURL, provider string) error
}
