package sequence

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "backoffice:seq:"

// RedisCounter uses INCR, which redis executes atomically.
type RedisCounter struct {
	client *redis.Client
	seeds  map[string]SeedFunc
	seeded sync.Map
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, seeds: map[string]SeedFunc{}}
}

func (c *RedisCounter) WithSeed(name string, seed SeedFunc) *RedisCounter {
	c.seeds[name] = seed
	return c
}

func (c *RedisCounter) Next(ctx context.Context, name string) (int64, error) {
	key := redisKeyPrefix + name
	if err := c.ensureSeeded(ctx, name, key); err != nil {
		return 0, err
	}
	return c.client.Incr(ctx, key).Result()
}

// ensureSeeded sets the key to the seed value unless it already exists.
func (c *RedisCounter) ensureSeeded(ctx context.Context, name, key string) error {
	if _, done := c.seeded.Load(name); done {
		return nil
	}
	seed, ok := c.seeds[name]
	if !ok {
		c.seeded.Store(name, struct{}{})
		return nil
	}
	current, err := seed(ctx)
	if err != nil {
		return err
	}
	if err := c.client.SetNX(ctx, key, current, 0).Err(); err != nil {
		return err
	}
	c.seeded.Store(name, struct{}{})
	return nil
}
