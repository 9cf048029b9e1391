// Package db internal/infrastructure/db/badger_icon_cache_repository.go
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
	"github.com/dgraph-io/badger/v3"
)

const iconKeyPrefix = "icon:"

// DefaultIconTTL is how long a resolved icon is trusted
const DefaultIconTTL = 30 * 24 * time.Hour

// BadgerIconCacheRepository implements the icon cache repository using BadgerDB.
// Each row is stored as JSON under "icon:<cache_key>". Rows are never
// deleted on expiry; reads older than the TTL are reported as misses.
type BadgerIconCacheRepository struct {
	db    *badger.DB
	ttl   time.Duration
	clock clock.Clock
}

// NewBadgerIconCacheRepository creates a new BadgerDB icon cache repository
func NewBadgerIconCacheRepository(db *badger.DB, ttl time.Duration, clk clock.Clock) *BadgerIconCacheRepository {
	if ttl <= 0 {
		ttl = DefaultIconTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &BadgerIconCacheRepository{db: db, ttl: ttl, clock: clk}
}

// Find retrieves a fresh entry for cacheKey
func (r *BadgerIconCacheRepository) Find(ctx context.Context, cacheKey string) (*entity.IconCacheEntry, bool, error) {
	entry, err := r.read(cacheKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.ObserveCache("icons", metrics.OutcomeMiss)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve icon cache entry: %w", err)
	}

	if r.clock.Now().Sub(entry.UpdatedAt) > r.ttl {
		metrics.ObserveCache("icons", metrics.OutcomeStale)
		return nil, false, nil
	}

	metrics.ObserveCache("icons", metrics.OutcomeHit)
	return entry, true, nil
}

// Upsert stores the entry for cacheKey, replacing any previous row
func (r *BadgerIconCacheRepository) Upsert(ctx context.Context, cacheKey, iconURL, provider string) error {
	entry := entity.IconCacheEntry{
		CacheKey:  cacheKey,
		IconURL:   iconURL,
		Provider:  provider,
		UpdatedAt: r.clock.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal icon cache entry: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(iconKeyPrefix+cacheKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store icon cache entry: %w", err)
	}

	return nil
}

// Raw returns the stored row for cacheKey regardless of its age
func (r *BadgerIconCacheRepository) Raw(cacheKey string) (*entity.IconCacheEntry, error) {
	return r.read(cacheKey)
}

func (r *BadgerIconCacheRepository) read(cacheKey string) (*entity.IconCacheEntry, error) {
	var entry entity.IconCacheEntry

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(iconKeyPrefix + cacheKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// OpenBadger opens a BadgerDB at path with Badger's own logger disabled
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}
