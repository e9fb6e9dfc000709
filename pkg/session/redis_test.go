package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chainvote/pkg/config"
	"chainvote/pkg/data"
)

// fakeRedis answers Get and Set from a map, recording the TTL of each Set
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls []time.Duration
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls = append(f.ttls, expiration)
	return redis.NewStatusResult("OK", nil)
}

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{Key: "chainvote:session", TTL: time.Hour, Timeout: time.Second}
}

func TestRedisBackend(t *testing.T) {
	t.Run("EmptyKeyLoadsEmptySession", func(t *testing.T) {
		b := newRedisBackend(&fakeRedis{data: map[string]string{}}, testRedisConfig())
		values, err := b.Load()
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("SharedBetweenStores", func(t *testing.T) {
		fake := &fakeRedis{data: map[string]string{}}
		logger := zaptest.NewLogger(t)

		first, err := NewStore(newRedisBackend(fake, testRedisConfig()), logger)
		require.NoError(t, err)
		require.NoError(t, first.Set(data.RoleAdmin, data.Identity{Email: adminEmail, Role: data.RoleAdmin}))

		second, err := NewStore(newRedisBackend(fake, testRedisConfig()), logger)
		require.NoError(t, err)
		id, ok := second.Get(data.RoleAdmin)
		require.True(t, ok)
		assert.Equal(t, adminEmail, id.Email)

		assert.Equal(t, []time.Duration{time.Hour}, fake.ttls, "ttl refreshed on save")
	})

	t.Run("ServerErrors", func(t *testing.T) {
		fake := &fakeRedis{data: map[string]string{}, err: errors.New("connection reset")}
		b := newRedisBackend(fake, testRedisConfig())

		_, err := b.Load()
		assert.ErrorContains(t, err, "connection reset")
		assert.ErrorContains(t, b.Save(map[string]string{"a": "b"}), "connection reset")
	})

	t.Run("CorruptValue", func(t *testing.T) {
		fake := &fakeRedis{data: map[string]string{"chainvote:session": "{not json"}}
		_, err := newRedisBackend(fake, testRedisConfig()).Load()
		assert.ErrorContains(t, err, "decoding session")
	})
}
