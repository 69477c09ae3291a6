// Package repository 提供读数行的持久化 sink
//
// 两种实现：Supabase REST upsert（默认）和直连 Postgres upsert。
// 两者都以行的 id 为冲突键，重复提交覆盖而不是产生重复行。
package repository

import (
	"context"

	"owlet-bridge/internal/models"
)

// ReadingSink 读数行写入接口
type ReadingSink interface {
	// Upsert 写入一行；同 id 的行被覆盖（insert-or-update）
	Upsert(ctx context.Context, row *models.Reading) error
}
