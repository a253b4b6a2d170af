package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"catalog/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedProductRepository decorates a ProductRepository with a Redis cache-aside layer.
// Only single-product lookups are cached; every write invalidates the product's key.
// Each key has a version counter bumped on invalidation, and a fill only lands if
// the version it read before loading is still current.
// Redis failures are logged and fall through to the backing repository.
type CachedProductRepository struct {
	next   ProductRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedProductRepository wraps next with a Redis cache.
func NewCachedProductRepository(next ProductRepository, client *redis.Client, prefix string, ttl time.Duration, log zerolog.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		next:   next,
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "product_cache").Logger(),
	}
}

var errStaleFill = errors.New("cache fill raced with a write")

func (r *CachedProductRepository) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

func (r *CachedProductRepository) versionKey(id int64) string {
	return r.key(id) + ":version"
}

// GetAll always reads through to the backing repository.
func (r *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	return r.next.GetAll(ctx)
}

// GetByID serves the product from Redis when present, otherwise loads and caches it.
func (r *CachedProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	switch {
	case err == nil:
		var product models.Product
		jsonErr := json.Unmarshal(data, &product)
		if jsonErr == nil {
			return &product, nil
		}
		r.log.Warn().Err(jsonErr).Int64("product_id", id).Msg("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		r.log.Warn().Err(err).Int64("product_id", id).Msg("cache get failed")
	}

	version, versionErr := r.version(ctx, r.client, id)
	product, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if versionErr == nil {
		r.store(ctx, product, version)
	}
	return product, nil
}

// Save writes through to the backing repository and drops the cached entry.
func (r *CachedProductRepository) Save(ctx context.Context, product *models.Product) error {
	if err := r.next.Save(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID)
	return nil
}

// DeleteByID deletes from the backing repository and drops the cached entry.
func (r *CachedProductRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Ping checks if the Redis connection is healthy.
func (r *CachedProductRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *CachedProductRepository) version(ctx context.Context, c redis.Cmdable, id int64) (int64, error) {
	v, err := c.Get(ctx, r.versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *CachedProductRepository) store(ctx context.Context, product *models.Product, version int64) {
	data, err := json.Marshal(product)
	if err != nil {
		r.log.Warn().Err(err).Int64("product_id", product.ID).Msg("cache marshal failed")
		return
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.version(ctx, tx, product.ID)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(product.ID), data, r.ttl)
			return nil
		})
		return err
	}, r.versionKey(product.ID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		r.log.Debug().Int64("product_id", product.ID).Msg("skipping stale cache fill")
	default:
		r.log.Warn().Err(err).Int64("product_id", product.ID).Msg("cache set failed")
	}
}

func (r *CachedProductRepository) invalidate(ctx context.Context, id int64) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(id))
		pipe.Expire(ctx, r.versionKey(id), 2*r.ttl)
		pipe.Del(ctx, r.key(id))
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Int64("product_id", id).Msg("cache invalidation failed")
	}
}
