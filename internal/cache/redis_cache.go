package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

const referenceKeyPrefix = "ref:"

type RedisReferenceCache struct {
	client *redis.Client
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisReferenceCache(client *redis.Client) *RedisReferenceCache {
	return &RedisReferenceCache{client: client}
}

func (c *RedisReferenceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReferenceCache) Get(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, bool, error) {
	val, err := c.client.Get(ctx, referenceKeyPrefix+string(category)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []domain.ReferenceEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *RedisReferenceCache) Set(ctx context.Context, category domain.ReferenceCategory, entries []domain.ReferenceEntry, ttl time.Duration) error {
	if entries == nil {
		entries = []domain.ReferenceEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, referenceKeyPrefix+string(category), payload, ttl).Err()
}

func (c *RedisReferenceCache) Invalidate(ctx context.Context, category domain.ReferenceCategory) error {
	return c.client.Del(ctx, referenceKeyPrefix+string(category)).Err()
}
