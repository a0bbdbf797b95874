// internal/store/vendor_cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"proco-workers/internal/agent"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/models"
)

const (
	vendorKeyPrefix = "vendors:specialty:"
	vendorKeyAll    = "vendors:all"
)

// CachedVendors is a cache-aside VendorSource. Redis failures are logged and
// the read goes to the underlying source, so the cache can never fail a turn.
type CachedVendors struct {
	source agent.VendorSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedVendors(source agent.VendorSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedVendors {
	return &CachedVendors{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "vendor_cache"}),
	}
}

func (c *CachedVendors) VendorsBySpecialty(ctx context.Context, specialty models.Specialty) ([]models.Vendor, error) {
	return c.load(ctx, vendorKeyPrefix+string(specialty), func(ctx context.Context) ([]models.Vendor, error) {
		return c.source.VendorsBySpecialty(ctx, specialty)
	})
}

func (c *CachedVendors) AllVendors(ctx context.Context) ([]models.Vendor, error) {
	return c.load(ctx, vendorKeyAll, c.source.AllVendors)
}

func (c *CachedVendors) load(ctx context.Context, key string, fetch func(context.Context) ([]models.Vendor, error)) ([]models.Vendor, error) {
	if c.redis != nil && c.ttl > 0 {
		val, err := c.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var vendors []models.Vendor
			if jsonErr := json.Unmarshal(val, &vendors); jsonErr == nil {
				return vendors, nil
			}
			c.logger.Warn("discarding unreadable vendor cache entry", map[string]interface{}{"key": key})
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("vendor cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	vendors, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if c.redis != nil && c.ttl > 0 {
		data, _ := json.Marshal(vendors)
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("vendor cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return vendors, nil
}
