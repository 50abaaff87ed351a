//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"storyteller-api/internal/config"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client := NewClientFromRedis(goredis.NewClient(opts))
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.HealthCheck(ctx))
	return client
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(startRedis(t))
	key := BuildRateLimitKey("10.0.0.1", "generate")

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	other, err := limiter.Remaining(ctx, BuildRateLimitKey("10.0.0.2", "generate"), 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, other)
}

func TestCache_GetOrLoadSafe(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(startRedis(t))
	key := BuildTreeKey("root-1")

	var loads atomic.Int32
	loader := func(context.Context) (any, error) {
		loads.Add(1)
		return map[string]string{"id": "root-1"}, nil
	}

	for i := 0; i < 2; i++ {
		raw, err := cache.GetOrLoadSafe(ctx, key, time.Minute, loader)
		require.NoError(t, err)
		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "root-1", got["id"])
	}
	assert.EqualValues(t, 1, loads.Load())

	require.NoError(t, cache.Delete(ctx, key))
	_, err := cache.GetOrLoadSafe(ctx, key, time.Minute, loader)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads.Load())

	_, err = cache.GetOrLoadSafe(ctx, BuildTreeKey("root-2"), time.Minute, loader)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidatePattern(ctx, TreeKeyPattern()))
	_, err = cache.GetOrLoadSafe(ctx, key, time.Minute, loader)
	require.NoError(t, err)
	assert.EqualValues(t, 4, loads.Load())
}

func TestProviderInvalidationBus(t *testing.T) {
	client := startRedis(t)
	cfg := &config.Config{LLM: config.LLMConfig{InvalidationChannel: "storyteller:test:providers"}}
	bus := NewProviderInvalidationBus(client, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.Listen(ctx, func(id string) { received <- id })
	}()

	// 订阅确认前发布的消息会丢失，重试直到收到
	require.Eventually(t, func() bool {
		require.NoError(t, bus.Publish(context.Background(), "provider-1"))
		select {
		case id := <-received:
			return id == "provider-1"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}
