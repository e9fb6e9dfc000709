package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chainvote/pkg/config"
)

// BackendRedis shares one session record between terminals through Redis
const BackendRedis = "redis"

// redisClient is the part of redis.Cmdable the backend needs
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisBackend stores the session as a JSON string under a single key.
// Every save refreshes the TTL.
type RedisBackend struct {
	client  redisClient
	key     string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisBackend connects to the configured server and checks it answers
func NewRedisBackend(cfg config.RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return newRedisBackend(client, cfg), nil
}

func newRedisBackend(client redisClient, cfg config.RedisConfig) *RedisBackend {
	return &RedisBackend{client: client, key: cfg.Key, ttl: cfg.TTL, timeout: cfg.Timeout}
}

func (r *RedisBackend) Load() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session from redis: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return values, nil
}

func (r *RedisBackend) Save(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving session to redis: %w", err)
	}
	return nil
}
