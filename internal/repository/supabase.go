package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"owlet-bridge/internal/models"
)

// upsertEndpoint owlet_readings 表的 upsert 端点（冲突键 id）
const upsertEndpoint = "/rest/v1/owlet_readings?on_conflict=id"

// 错误响应正文的截断长度
const errorBodyLimit = 400

// SupabaseSink Supabase REST upsert 客户端
//
// 需要 service_role 级别的密钥：桥接服务的写入绕过行级安全策略，
// anon / authenticated 密钥会被拒绝。
type SupabaseSink struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewSupabaseSink 创建 Supabase sink
func NewSupabaseSink(baseURL, serviceRoleKey string, logger *zap.Logger) *SupabaseSink {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(20 * time.Second).
		SetHeader("apikey", serviceRoleKey).
		SetHeader("Authorization", "Bearer "+serviceRoleKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal")

	return &SupabaseSink{
		httpClient: client,
		logger:     logger,
	}
}

// Upsert 上传一行读数
//
// 正文是单元素数组；merge-duplicates 语义下同 id 重复提交幂等。
// 状态 ≥ 400 时返回带状态码、正文摘录和诊断提示的错误。
func (s *SupabaseSink) Upsert(ctx context.Context, row *models.Reading) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody([]*models.Reading{row}).
		Post(upsertEndpoint)
	if err != nil {
		return fmt.Errorf("failed to call Supabase upsert: %w", err)
	}

	if resp.StatusCode() >= 400 {
		body := resp.String()
		excerpt := body
		if len(excerpt) > errorBodyLimit {
			excerpt = excerpt[:errorBodyLimit]
		}
		if hint := errorHint(resp.StatusCode(), body); hint != "" {
			return fmt.Errorf("Supabase upsert failed (%d): %s | Hint: %s", resp.StatusCode(), excerpt, hint)
		}
		return fmt.Errorf("Supabase upsert failed (%d): %s", resp.StatusCode(), excerpt)
	}

	return nil
}

// errorHint 把已知的失败特征映射为可操作的提示
//
// Supabase 的原始错误对运维不友好，这里按正文模式补充诊断：
// 密钥与项目不匹配、用了低权限密钥触发行级安全等。
func errorHint(statusCode int, responseText string) string {
	lowered := strings.ToLower(responseText)
	if strings.Contains(lowered, "invalid api key") {
		return "Check that SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are from the same project, " +
			"and that the key was copied completely."
	}
	if strings.Contains(lowered, "42501") || strings.Contains(lowered, "row-level security") {
		return "Bridge upserts require a service_role key. Do not use anon/authenticated keys for " +
			"SUPABASE_SERVICE_ROLE_KEY."
	}
	if statusCode == 401 || statusCode == 403 {
		return "Auth failed. Bridge writes require SUPABASE_SERVICE_ROLE_KEY (service_role), not anon."
	}
	return ""
}
