package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"owlet-bridge/internal/models"
)

// PostgresSink 直连 Postgres 的读数 upsert 仓库
//
// 面向已自建 Postgres（不经 Supabase REST）的部署；
// 列名与 Supabase 的 owlet_readings 表保持一致（camelCase 引号列）。
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink 创建 Postgres sink
func NewPostgresSink(db *sql.DB, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: logger,
	}
}

// Upsert 写入一行读数（INSERT … ON CONFLICT (id) DO UPDATE）
func (s *PostgresSink) Upsert(ctx context.Context, row *models.Reading) error {
	rawPayload, err := json.Marshal(row.RawPayload)
	if err != nil {
		// safeRawPayload 保证可序列化，这里只是兜底
		return fmt.Errorf("failed to marshal raw payload: %w", err)
	}

	query := `
		INSERT INTO owlet_readings (
			id, "childId", "recordedAt", "heartRateBpm", "oxygenSaturationPct",
			"movementLevel", "sleepState", "sockConnected", "batteryPct",
			"sourceDeviceId", "sourceSessionId", "rawPayload",
			"createdAt", "updatedAt", "syncStatus", "_deleted"
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			"heartRateBpm" = EXCLUDED."heartRateBpm",
			"oxygenSaturationPct" = EXCLUDED."oxygenSaturationPct",
			"movementLevel" = EXCLUDED."movementLevel",
			"sleepState" = EXCLUDED."sleepState",
			"sockConnected" = EXCLUDED."sockConnected",
			"batteryPct" = EXCLUDED."batteryPct",
			"rawPayload" = EXCLUDED."rawPayload",
			"updatedAt" = EXCLUDED."updatedAt",
			"syncStatus" = EXCLUDED."syncStatus"
	`

	_, err = s.db.ExecContext(ctx, query,
		row.ID,
		row.ChildID,
		row.RecordedAt,
		row.HeartRateBpm,
		row.OxygenSaturationPct,
		row.MovementLevel,
		row.SleepState,
		row.SockConnected,
		row.BatteryPct,
		row.SourceDeviceID,
		row.SourceSessionID,
		rawPayload,
		row.CreatedAt,
		row.UpdatedAt,
		row.SyncStatus,
		row.Deleted,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reading: %w", err)
	}

	return nil
}
