package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"owlet-bridge/internal/config"
	"owlet-bridge/internal/logger"
	"owlet-bridge/internal/service"
)

func main() {
	// 加载配置（必填项缺失在这里失败，不发起任何网络请求）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-owlet")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting wisefido-owlet bridge",
		zap.String("version", "1.0.0"),
		zap.String("region", cfg.Owlet.Region),
		zap.String("sink", cfg.Sink),
		zap.Int("poll_seconds", cfg.PollSeconds),
	)

	// 创建服务
	bridge, err := service.NewBridgeService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create bridge service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 在 goroutine 中启动服务（启动阶段的认证/选设备失败是致命的）
	go func() {
		if err := bridge.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start bridge service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := bridge.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
