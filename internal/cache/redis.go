package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of go-redis commands the backend relies on.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type Redis struct {
	client redisClient
}

// NewRedis dials Redis and pings it once so a bad address fails at startup.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Redis{client: client}, nil
}

func newRedisWithClient(client redisClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SetMany issues a single MSET, so every key lands or none does.
func (r *Redis) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(entries))
	for k, v := range entries {
		values[k] = v
	}
	return r.client.MSet(ctx, values).Err()
}

func (r *Redis) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.client.Del(ctx, keys...).Result()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
