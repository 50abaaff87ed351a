//go:build integration

package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"storyteller-api/internal/config"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAudioJobRoundTrip(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer := NewProducer(client, &config.Config{})
	consumer := NewConsumer(client, ConsumerConfig{
		Stream:       StreamEpisodeAudio,
		Group:        ConsumerGroupAudioWorker,
		ConsumerName: "worker-1",
		BlockTimeout: 200 * time.Millisecond,
		RetryLimit:   2,
		Backoff:      BackoffConfig{Initial: 50 * time.Millisecond, Max: 200 * time.Millisecond, Multiplier: 2},
	})

	var (
		mu   sync.Mutex
		seen []AudioJobMessage
	)
	consumer.RegisterHandler(MessageTypeEpisodeAudio, func(_ context.Context, msg *Message) error {
		var job AudioJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		if job.EpisodeID == "poison" {
			return errors.New("synthesis failed")
		}
		mu.Lock()
		seen = append(seen, job)
		mu.Unlock()
		return nil
	})
	require.NoError(t, consumer.Start(ctx))
	t.Cleanup(consumer.Stop)

	_, err := producer.PublishAudioJob(ctx, &AudioJobMessage{JobID: "j1", StoryID: "s1", EpisodeID: "e1", Voice: "af_bella"})
	require.NoError(t, err)
	_, err = producer.PublishAudioJob(ctx, &AudioJobMessage{JobID: "j2", StoryID: "s1", EpisodeID: "poison"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 10*time.Second, 50*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "af_bella", seen[0].Voice)
	mu.Unlock()

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, StreamEpisodeAudio.DLQStream()).Result()
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, string(StreamEpisodeAudio), string(ConsumerGroupAudioWorker)).Result()
		return err == nil && pending.Count == 0
	}, 5*time.Second, 100*time.Millisecond)
}
