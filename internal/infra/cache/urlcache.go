package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const urlCachePrefix = "dam:url:"

// URLCache keeps presigned URLs for half of their lifetime so that repeated
// view/download hits do not re-sign. A nil client disables caching.
type URLCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewURLCache(rdb *redis.Client, log *zap.Logger) *URLCache {
	return &URLCache{rdb: rdb, log: log}
}

// GetOrMint returns the cached URL for name or calls mint and stores its result.
// Redis failures fall through to mint.
func (c *URLCache) GetOrMint(ctx context.Context, name string, ttl time.Duration, mint func(ctx context.Context) (string, error)) (string, error) {
	if c == nil || c.rdb == nil {
		return mint(ctx)
	}
	key := urlCachePrefix + name

	u, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return u, nil
	case !errors.Is(err, redis.Nil):
		c.log.Warn("url cache read failed", zap.String("key", key), zap.Error(err))
	}

	u, err = mint(ctx)
	if err != nil {
		return "", err
	}

	if keep := ttl / 2; keep > 0 {
		if err := c.rdb.Set(ctx, key, u, keep).Err(); err != nil {
			c.log.Warn("url cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return u, nil
}
