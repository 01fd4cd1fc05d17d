package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// RedisCounter keeps sequence counters as integer keys in Redis. It supports
// both the atomic INCR path and a WATCH based compare-and-swap.
type RedisCounter struct {
	client *redis.Client
	prefix string

	source Loader
	seeded sync.Map
}

// Loader reads the last issued value of a counter.
type Loader interface {
	LoadSequence(ctx context.Context, key string) (int64, error)
}

type RedisOption func(*RedisCounter)

// SeedFrom makes the counter raise each key to the value held by src the
// first time the key is touched, so every year moved over from the
// relational store continues where it stopped.
func SeedFrom(src Loader) RedisOption {
	return func(c *RedisCounter) {
		c.source = src
	}
}

func NewRedisCounter(client *redis.Client, prefix string, opts ...RedisOption) *RedisCounter {
	if prefix == "" {
		prefix = "seq:"
	}
	c := &RedisCounter{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) IncrementSequence(ctx context.Context, key string) (int64, error) {
	if err := c.ensureSeeded(ctx, key); err != nil {
		return 0, err
	}
	return c.client.Incr(ctx, c.prefix+key).Result()
}

func (c *RedisCounter) LoadSequence(ctx context.Context, key string) (int64, error) {
	if err := c.ensureSeeded(ctx, key); err != nil {
		return 0, err
	}
	return c.load(ctx, key)
}

func (c *RedisCounter) load(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (c *RedisCounter) CompareAndSwapSequence(ctx context.Context, key string, expected int64, next int64) (bool, error) {
	if err := c.ensureSeeded(ctx, key); err != nil {
		return false, err
	}
	return c.compareAndSwap(ctx, key, expected, next)
}

func (c *RedisCounter) compareAndSwap(ctx context.Context, key string, expected int64, next int64) (bool, error) {
	k := c.prefix + key
	swapped := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expected {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return nil
		}
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, k)
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Seed raises the counter to at least value, used when moving counters from
// the relational store into Redis. It never lowers an existing counter.
func (c *RedisCounter) Seed(ctx context.Context, key string, value int64) error {
	for {
		current, err := c.load(ctx, key)
		if err != nil {
			return err
		}
		if current >= value {
			return nil
		}
		swapped, err := c.compareAndSwap(ctx, key, current, value)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
}

// ensureSeeded runs Seed once per key with the source's value. Concurrent
// first touches may both seed; Seed only raises, so that is harmless.
func (c *RedisCounter) ensureSeeded(ctx context.Context, key string) error {
	if c.source == nil {
		return nil
	}
	if _, done := c.seeded.Load(key); done {
		return nil
	}
	last, err := c.source.LoadSequence(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s from seed source: %w", key, err)
	}
	if err := c.Seed(ctx, key, last); err != nil {
		return fmt.Errorf("seed %s: %w", key, err)
	}
	c.seeded.Store(key, struct{}{})
	return nil
}
