package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-service/models"
)

const (
	ProductCachePrefix     = "catalog:product:"
	ProductListCachePrefix = "catalog:products:v:"
	CacheVersionKey        = "catalog:version"

	DefaultCacheTTL = 10 * time.Minute
)

// CatalogCache caches product pages and product rows in Redis. List entries
// are keyed by a version counter, so bumping the counter invalidates every
// page at once. A nil *CatalogCache is a valid, always-missing cache.
type CatalogCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CatalogCache{redis: client, ttl: ttl, logger: logger}
}

// GetProductList retrieves a cached product page.
func (cm *CatalogCache) GetProductList(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, bool) {
	if cm == nil {
		return nil, false
	}
	version, err := cm.getCacheVersion(ctx)
	if err != nil {
		return nil, false
	}

	cached, err := cm.redis.Get(ctx, listCacheKey(version, filter)).Bytes()
	if err != nil {
		return nil, false
	}

	var page models.ProductPage
	if err := json.Unmarshal(cached, &page); err != nil {
		cm.logger.Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return &page, true
}

// SetProductListAsync caches a product page in the background.
func (cm *CatalogCache) SetProductListAsync(filter models.ProductFilter, page *models.ProductPage) {
	if cm == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := cm.getCacheVersion(bgCtx)
		if err != nil {
			return
		}
		data, err := json.Marshal(page)
		if err != nil {
			cm.logger.Warn("Failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := cm.redis.Set(bgCtx, listCacheKey(version, filter), data, cm.ttl).Err(); err != nil {
			cm.logger.Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

func (cm *CatalogCache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, bool) {
	if cm == nil {
		return nil, false
	}
	cached, err := cm.redis.Get(ctx, ProductCachePrefix+id.String()).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(cached, &p); err != nil {
		cm.logger.Warn("Failed to unmarshal cached product", zap.Error(err), zap.String("product_id", id.String()))
		return nil, false
	}
	return &p, true
}

func (cm *CatalogCache) SetProductAsync(product *models.Product) {
	if cm == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(product)
		if err != nil {
			cm.logger.Warn("Failed to marshal product for cache", zap.Error(err))
			return
		}
		if err := cm.redis.Set(bgCtx, ProductCachePrefix+product.ID.String(), data, cm.ttl).Err(); err != nil {
			cm.logger.Warn("Failed to cache product", zap.Error(err), zap.String("product_id", product.ID.String()))
		}
	}()
}

// Invalidate drops every cached list by bumping the version.
func (cm *CatalogCache) Invalidate(ctx context.Context) error {
	if cm == nil {
		return nil
	}
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	cm.logger.Info("Catalog cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

// InvalidateProduct drops the lists and the product's own entry. Stock
// changes after a payment come through here too.
func (cm *CatalogCache) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	if cm == nil {
		return
	}
	if err := cm.Invalidate(ctx); err != nil {
		cm.logger.Error("Failed to invalidate catalog cache", zap.Error(err), zap.String("product_id", id.String()))
	}
	if err := cm.redis.Del(ctx, ProductCachePrefix+id.String()).Err(); err != nil {
		cm.logger.Warn("Failed to delete product cache", zap.Error(err), zap.String("product_id", id.String()))
	}
}

// getCacheVersion reads the version counter, initialising it on first use.
func (cm *CatalogCache) getCacheVersion(ctx context.Context) (int64, error) {
	ver, err := cm.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil && ver > 0 {
		return ver, nil
	}
	if errors.Is(err, redis.Nil) {
		// SETNX so a concurrent Invalidate is never overwritten
		if err := cm.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return cm.redis.Get(ctx, CacheVersionKey).Int64()
	}
	if err == nil {
		err = fmt.Errorf("invalid cache version %d", ver)
	}
	return 0, err
}

// listCacheKey derives a page key from the version and the normalised filter.
func listCacheKey(version int64, filter models.ProductFilter) string {
	return fmt.Sprintf(
		"%s%d:p:%d:l:%d:q:%s:c:%s",
		ProductListCachePrefix,
		version,
		filter.Page,
		filter.PerPage,
		strings.ToLower(strings.TrimSpace(filter.Query)),
		filter.CategorySlug,
	)
}
