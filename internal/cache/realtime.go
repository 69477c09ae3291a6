// Package cache 提供读数的 Redis 实时缓存与流发布
//
// 桥接服务成功 upsert 后把标准化行镜像到 Redis：
// - SET owlet:realtime:{dsn}（带 TTL），供下游实时卡片层读取
// - XADD owlet:data:stream，供下游 transformer 消费
// 缓存是旁路功能，发布失败只记日志，不影响轮询周期。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"owlet-bridge/internal/models"
)

// RealtimePublisher 实时读数发布器
type RealtimePublisher struct {
	client    *redis.Client
	keyPrefix string        // 实时缓存键前缀，如 "owlet:realtime:"
	stream    string        // 输出流，如 "owlet:data:stream"
	ttl       time.Duration // 实时键的过期时间
	logger    *zap.Logger
}

// NewRealtimePublisher 创建实时发布器
func NewRealtimePublisher(client *redis.Client, keyPrefix, stream string, ttl time.Duration, logger *zap.Logger) *RealtimePublisher {
	return &RealtimePublisher{
		client:    client,
		keyPrefix: keyPrefix,
		stream:    stream,
		ttl:       ttl,
		logger:    logger,
	}
}

// Publish 发布一条标准化读数
//
// 写实时键并追加到流；任一步失败都返回错误，由调用方决定
// 是否忽略（桥接循环按旁路处理）。
func (p *RealtimePublisher) Publish(ctx context.Context, row *models.Reading) error {
	jsonBytes, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := p.keyPrefix + row.SourceDeviceID
	if err := p.client.Set(ctx, key, string(jsonBytes), p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set realtime key: %w", err)
	}

	// 与下游 transformer 约定的流消息格式：{"data": 行JSON, "timestamp": 秒}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	return nil
}
