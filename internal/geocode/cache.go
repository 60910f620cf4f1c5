package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

const (
	memoryTTL     = 6 * time.Hour
	memoryCleanup = 30 * time.Minute
)

// Store persists resolved locations keyed by rounded coordinates and
// precision.
type Store interface {
	GetGeocode(ctx context.Context, lat, lon float64, precision int) (Location, bool, error)
	PutGeocode(ctx context.Context, lat, lon float64, precision int, loc Location) error
}

// Resolver looks up a location for coordinates.
type Resolver interface {
	Reverse(ctx context.Context, lat, lon float64) (Location, error)
}

// CacheStats reports lookup counters since the cache was created.
type CacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	MemoryEntries int     `json:"memoryEntries"`
}

// Cache resolves coordinates through an in-memory layer, the persistent
// store, and finally the remote resolver. Concurrent misses for the same
// rounded coordinates share one remote lookup.
type Cache struct {
	store     Store
	resolver  Resolver
	precision int
	memory    *gocache.Cache
	flight    singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache rounding coordinates to precision decimal places.
// store may be nil, in which case only the memory layer is used.
func NewCache(store Store, resolver Resolver, precision int) *Cache {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Cache{
		store:     store,
		resolver:  resolver,
		precision: precision,
		memory:    gocache.New(memoryTTL, memoryCleanup),
	}
}

// Resolve returns the location for coordinates, or false when it could not
// be determined. Failures are not cached, so a later call retries.
func (c *Cache) Resolve(ctx context.Context, lat, lon float64) (Location, bool) {
	lat, lon = Round(lat, c.precision), Round(lon, c.precision)
	key := cacheKey(lat, lon, c.precision)

	if v, ok := c.memory.Get(key); ok {
		c.hits.Add(1)
		metrics.GeocodeCacheLookups.WithLabelValues("memory_hit").Inc()
		return v.(Location), true
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if v, ok := c.memory.Get(key); ok {
			c.hits.Add(1)
			metrics.GeocodeCacheLookups.WithLabelValues("memory_hit").Inc()
			return v, nil
		}

		if c.store != nil {
			loc, found, err := c.store.GetGeocode(ctx, lat, lon, c.precision)
			if err != nil {
				logging.Warn("Geocode cache read failed for %s: %v", key, err)
			} else if found {
				c.hits.Add(1)
				metrics.GeocodeCacheLookups.WithLabelValues("store_hit").Inc()
				c.memory.SetDefault(key, loc)
				return loc, nil
			}
		}

		c.misses.Add(1)
		metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()

		loc, err := c.resolver.Reverse(ctx, lat, lon)
		if err != nil {
			return nil, err
		}

		if c.store != nil {
			if err := c.store.PutGeocode(ctx, lat, lon, c.precision, loc); err != nil {
				logging.Warn("Geocode cache write failed for %s: %v", key, err)
			}
		}
		c.memory.SetDefault(key, loc)
		return loc, nil
	})
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			logging.Debug("Geocode lookup for %s failed: %v", key, err)
		}
		return Location{}, false
	}
	return v.(Location), true
}

// Stats returns lookup counters and the in-memory entry count.
func (c *Cache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Hits:          hits,
		Misses:        misses,
		HitRate:       rate,
		MemoryEntries: c.memory.ItemCount(),
	}
}

// Flush clears the in-memory layer. The persistent store is untouched.
func (c *Cache) Flush() {
	c.memory.Flush()
}
