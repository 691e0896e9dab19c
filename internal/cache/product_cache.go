package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
)

const (
	DefaultTTL = 5 * time.Minute

	keyPrefix = "catalog:"
	allKey    = keyPrefix + "all"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// ProductCache holds the "all products" list and per-id products. Entries
// expire lazily on read. When a Redis client is supplied the entries are
// mirrored there so that instances share warm data; Redis errors degrade
// to the in-process layer.
type ProductCache struct {
	ttl    time.Duration
	client *redis.Client
	logger *logrus.Entry
	now    func() time.Time

	mu   sync.Mutex
	all  *entry[[]models.Product]
	byID map[int64]entry[models.Product]
}

// NewProductCache creates a cache. client may be nil.
func NewProductCache(ttl time.Duration, client *redis.Client, logger *logrus.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProductCache{
		ttl:    ttl,
		client: client,
		logger: logger.WithField("component", "product_cache"),
		now:    time.Now,
		byID:   make(map[int64]entry[models.Product]),
	}
}

// GetAll returns the cached product list
func (c *ProductCache) GetAll(ctx context.Context) ([]models.Product, bool) {
	c.mu.Lock()
	if c.all != nil {
		if c.now().Before(c.all.expiresAt) {
			products := cloneProducts(c.all.value)
			c.mu.Unlock()
			return products, true
		}
		c.all = nil
	}
	c.mu.Unlock()

	var products []models.Product
	if !c.remoteGet(ctx, allKey, &products) {
		return nil, false
	}

	c.mu.Lock()
	c.all = &entry[[]models.Product]{value: products, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return cloneProducts(products), true
}

// SetAll stores the product list
func (c *ProductCache) SetAll(ctx context.Context, products []models.Product) {
	c.mu.Lock()
	c.all = &entry[[]models.Product]{value: cloneProducts(products), expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.remoteSet(ctx, allKey, products)
}

// Get returns a cached product by internal id
func (c *ProductCache) Get(ctx context.Context, id int64) (*models.Product, bool) {
	c.mu.Lock()
	if e, ok := c.byID[id]; ok {
		if c.now().Before(e.expiresAt) {
			product := e.value
			c.mu.Unlock()
			return &product, true
		}
		delete(c.byID, id)
	}
	c.mu.Unlock()

	var product models.Product
	if !c.remoteGet(ctx, productKey(id), &product) {
		return nil, false
	}

	c.mu.Lock()
	c.byID[id] = entry[models.Product]{value: product, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return &product, true
}

// Set stores a single product
func (c *ProductCache) Set(ctx context.Context, product *models.Product) {
	if product == nil {
		return
	}
	c.mu.Lock()
	c.byID[product.ID] = entry[models.Product]{value: *product, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.remoteSet(ctx, productKey(product.ID), product)
}

// Clear drops every entry, locally and in Redis
func (c *ProductCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.all = nil
	c.byID = make(map[int64]entry[models.Product])
	c.mu.Unlock()

	if c.client == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("failed to scan cached catalog keys")
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.WithError(err).Warn("failed to clear cached catalog keys")
		}
	}
}

// Len returns the number of live per-id entries
func (c *ProductCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

func (c *ProductCache) remoteGet(ctx context.Context, key string, dest interface{}) bool {
	if c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("redis read failed")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

func (c *ProductCache) remoteSet(ctx context.Context, key string, value interface{}) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("redis write failed")
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("%sproduct:%d", keyPrefix, id)
}

func cloneProducts(in []models.Product) []models.Product {
	if in == nil {
		return nil
	}
	out := make([]models.Product, len(in))
	copy(out, in)
	return out
}
