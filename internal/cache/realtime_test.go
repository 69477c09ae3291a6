package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"owlet-bridge/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRealtimePublisher_Publish(t *testing.T) {
	mr, client := setupTestRedis(t)

	publisher := NewRealtimePublisher(client, "owlet:realtime:", "owlet:data:stream", 120*time.Second, zap.NewNop())

	hr := 135
	row := &models.Reading{
		ID:              "test-id",
		SourceDeviceID:  "AC000W001234567",
		SourceSessionID: "AC000W001234567:1700000000000",
		RecordedAt:      1700000000000,
		HeartRateBpm:    &hr,
		SleepState:      models.SleepStateAwake,
		SyncStatus:      models.SyncStatusSynced,
	}

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, row))

	// 实时键：行 JSON + TTL
	stored, err := mr.Get("owlet:realtime:AC000W001234567")
	require.NoError(t, err)

	var decoded models.Reading
	require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
	assert.Equal(t, "test-id", decoded.ID)
	require.NotNil(t, decoded.HeartRateBpm)
	assert.Equal(t, 135, *decoded.HeartRateBpm)

	assert.Equal(t, 120*time.Second, mr.TTL("owlet:realtime:AC000W001234567"))

	// 流消息：{"data": 行JSON, "timestamp": 秒}
	msgs, err := client.XRange(ctx, "owlet:data:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	data, ok := msgs[0].Values["data"].(string)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, "AC000W001234567", decoded.SourceDeviceID)
	assert.Contains(t, msgs[0].Values, "timestamp")
}

func TestRealtimePublisher_Publish_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	publisher := NewRealtimePublisher(client, "owlet:realtime:", "owlet:data:stream", time.Minute, zap.NewNop())

	mr.Close()

	err := publisher.Publish(context.Background(), &models.Reading{SourceDeviceID: "D1"})
	require.Error(t, err)
}
