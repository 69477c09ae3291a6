package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"owlet-bridge/internal/cache"
	"owlet-bridge/internal/config"
	"owlet-bridge/internal/normalizer"
	"owlet-bridge/internal/owlet"
	"owlet-bridge/internal/repository"

	_ "github.com/lib/pq"
)

// ErrNoDevices 账号下没有任何设备
var ErrNoDevices = errors.New("no Owlet devices found for this account")

// DeviceAPI Owlet 厂家云客户端接口（用于测试替换）
type DeviceAPI interface {
	Authenticate(ctx context.Context) error
	GetDevices(ctx context.Context) ([]owlet.Device, error)
	GetProperties(ctx context.Context, dsn string) (map[string]any, error)
}

// BridgeService Owlet 桥接服务
//
// 固定间隔轮询单台设备：拉取属性快照 → 标准化 → upsert →
// （可选）发布到 Redis。周期内任何错误只记日志并尝试恢复会话
// （重新认证 + 重新选设备），循环本身永不因单次失败退出。
type BridgeService struct {
	config    *config.Config
	logger    *zap.Logger
	api       DeviceAPI
	sink      repository.ReadingSink
	publisher *cache.RealtimePublisher // 可为 nil（未配置 Redis）

	db          *sql.DB
	redisClient *redis.Client

	// 当前会话选中的设备，恢复时整体重绑
	dsn string
}

// NewBridgeService 创建桥接服务
func NewBridgeService(cfg *config.Config, logger *zap.Logger) (*BridgeService, error) {
	s := &BridgeService{
		config: cfg,
		logger: logger,
	}

	region := owlet.ResolveRegion(cfg.Owlet.Region)
	s.api = owlet.NewClient(region, cfg.Owlet.Email, cfg.Owlet.Password,
		cfg.Owlet.UserURL, cfg.Owlet.APIURL, logger)

	switch cfg.Sink {
	case "postgres":
		db, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		s.db = db
		s.sink = repository.NewPostgresSink(db, logger)
	default:
		s.sink = repository.NewSupabaseSink(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey, logger)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s.redisClient = client
		s.publisher = cache.NewRealtimePublisher(client,
			cfg.Redis.RealtimeKeyPrefix, cfg.Redis.Stream,
			time.Duration(cfg.Redis.RealtimeTTL)*time.Second, logger)
	}

	return s, nil
}

// Start 启动轮询循环
//
// 启动阶段的认证 / 选设备失败直接返回错误（此时还没有可用会话，
// 不重试）；进入稳态后运行到 ctx 取消为止。
func (s *BridgeService) Start(ctx context.Context) error {
	if err := s.api.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with Owlet: %w", err)
	}
	s.logger.Info("Owlet authentication succeeded",
		zap.String("region", s.config.Owlet.Region),
	)

	dsn, err := s.selectDevice(ctx)
	if err != nil {
		return err
	}
	s.dsn = dsn
	s.logger.Info("Owlet device selected", zap.String("dsn", dsn))

	interval := time.Duration(s.config.PollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Bridge loop started",
		zap.Int("poll_seconds", s.config.PollSeconds),
		zap.String("sink", s.config.Sink),
	)

	// 立即执行一次
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Bridge loop stopped")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// Stop 停止服务并释放连接
func (s *BridgeService) Stop(ctx context.Context) error {
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}
	s.logger.Info("Bridge service stopped")
	return nil
}

// runTick 执行一个轮询周期，错误隔离在周期内
func (s *BridgeService) runTick(ctx context.Context) {
	if err := s.tick(ctx); err != nil {
		s.logger.Error("Bridge loop error", zap.Error(err))
		s.recoverSession(ctx)
	}
}

// tick 单个轮询周期：拉取 → 标准化 → upsert → 发布
func (s *BridgeService) tick(ctx context.Context) error {
	props, err := s.api.GetProperties(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to fetch device properties: %w", err)
	}

	row := normalizer.BuildRow(s.config.ChildID, s.dsn, props)

	if err := s.sink.Upsert(ctx, row); err != nil {
		return err
	}

	if s.publisher != nil {
		// 旁路发布，失败不影响本周期
		if err := s.publisher.Publish(ctx, row); err != nil {
			s.logger.Warn("Failed to publish reading to redis", zap.Error(err))
		}
	}

	s.logger.Info("Upserted reading",
		zap.String("recorded_at", time.UnixMilli(row.RecordedAt).UTC().Format(time.RFC3339)),
		zap.Any("heart_rate_bpm", row.HeartRateBpm),
		zap.Any("oxygen_saturation_pct", row.OxygenSaturationPct),
		zap.Any("movement_level", row.MovementLevel),
		zap.Any("sock_connected", row.SockConnected),
	)

	return nil
}

// recoverSession 会话恢复：重新认证并重新选设备
//
// 恢复失败也只记日志，等下一个周期再试——瞬时网络/认证故障
// 的代价是丢一个间隔的数据，而不是进程退出。
func (s *BridgeService) recoverSession(ctx context.Context) {
	if err := s.api.Authenticate(ctx); err != nil {
		s.logger.Error("Owlet re-auth failed", zap.Error(err))
		return
	}
	dsn, err := s.selectDevice(ctx)
	if err != nil {
		s.logger.Error("Owlet device re-select failed", zap.Error(err))
		return
	}
	s.dsn = dsn
	s.logger.Info("Re-authenticated with Owlet after error")
}

// selectDevice 从账号设备列表选出目标设备
func (s *BridgeService) selectDevice(ctx context.Context) (string, error) {
	devices, err := s.api.GetDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list Owlet devices: %w", err)
	}
	return SelectDevice(devices, s.config.Owlet.DeviceDSN)
}

// SelectDevice 设备选择规则
//
// 未配置 DSN 时取列表第一台；配置了 DSN 必须精确命中，
// 不命中时报错指名未匹配的值，绝不悄悄回退到别的设备。
func SelectDevice(devices []owlet.Device, configuredDSN string) (string, error) {
	if len(devices) == 0 {
		return "", ErrNoDevices
	}

	if configuredDSN == "" {
		return devices[0].DSN, nil
	}

	for _, d := range devices {
		if d.DSN == configuredDSN {
			return d.DSN, nil
		}
	}
	return "", fmt.Errorf("configured OWLET_DEVICE_DSN not found: %s", configuredDSN)
}
