// Package owlet 提供 Owlet 厂家云 API 客户端
//
// Owlet 云基于 Ayla Networks 平台：按区域分用户认证域和设备 API 域。
// 客户端负责登录（取 access/refresh token）、列设备、拉取设备当前
// 属性快照；属性快照原样透传给 normalizer，两种 API 版本的字段
// 差异由 normalizer 解析。
package owlet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Region 区域端点配置
type Region struct {
	UserURL   string // 用户认证域
	APIURL    string // 设备 API 域
	AppID     string // 应用公开标识
	AppSecret string
}

// 区域表（厂家公开的应用端点）
var regions = map[string]Region{
	"world": {
		UserURL:   "https://user-field-1a2039d9.aylanetworks.com",
		APIURL:    "https://ads-field-1a2039d9.aylanetworks.com",
		AppID:     "sso-prod-3g-id",
		AppSecret: "sso-prod-UEjlmPCtFZjrRdU76O6SM26Xh8U",
	},
	"europe": {
		UserURL:   "https://user-field-eu.aylanetworks.com",
		APIURL:    "https://ads-eu.aylanetworks.com",
		AppID:     "OwletCare-Android-EU-fw-id",
		AppSecret: "OwletCare-Android-EU-JKupMPBoj_Npce_9a95Pc8Qo0Mw",
	},
}

// ResolveRegion 解析区域名，未知区域回退 world
func ResolveRegion(name string) Region {
	if r, ok := regions[name]; ok {
		return r
	}
	return regions["world"]
}

// Device 账号下的一台设备
type Device struct {
	DSN              string `json:"dsn"`
	ProductName      string `json:"product_name"`
	Model            string `json:"model"`
	ConnectionStatus string `json:"connection_status"`
}

// deviceEnvelope 设备列表响应的单个元素
type deviceEnvelope struct {
	Device Device `json:"device"`
}

// propertyEnvelope 属性列表响应的单个元素
type propertyEnvelope struct {
	Property struct {
		Name          string `json:"name"`
		Value         any    `json:"value"`
		DataUpdatedAt string `json:"data_updated_at"`
	} `json:"property"`
}

// signInResponse 登录/刷新响应
type signInResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Client Owlet 厂家云 API 客户端
type Client struct {
	userClient *resty.Client
	apiClient  *resty.Client
	region     Region
	email      string
	password   string
	logger     *zap.Logger

	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewClient 创建 Owlet 客户端
//
// userURL / apiURL 非空时覆盖区域默认端点（测试用）。
func NewClient(region Region, email, password, userURL, apiURL string, logger *zap.Logger) *Client {
	if userURL == "" {
		userURL = region.UserURL
	}
	if apiURL == "" {
		apiURL = region.APIURL
	}

	newHTTP := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}

	return &Client{
		userClient: newHTTP(userURL),
		apiClient:  newHTTP(apiURL),
		region:     region,
		email:      email,
		password:   password,
		logger:     logger,
	}
}

// Authenticate 登录 Owlet 云
//
// 已有 refresh token 时优先走刷新；刷新失败退回密码登录。
func (c *Client) Authenticate(ctx context.Context) error {
	if c.refreshToken != "" {
		if err := c.refresh(ctx); err == nil {
			return nil
		}
		c.logger.Warn("Owlet token refresh failed, falling back to sign-in")
	}
	return c.signIn(ctx)
}

// signIn 密码登录
func (c *Client) signIn(ctx context.Context) error {
	body := map[string]any{
		"user": map[string]any{
			"email":    c.email,
			"password": c.password,
			"application": map[string]any{
				"app_id":     c.region.AppID,
				"app_secret": c.region.AppSecret,
			},
		},
	}

	var result signInResponse
	resp, err := c.userClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/users/sign_in.json")
	if err != nil {
		return fmt.Errorf("failed to call Owlet sign-in: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("Owlet sign-in failed (%d): %s", resp.StatusCode(), resp.String())
	}
	if result.AccessToken == "" {
		return fmt.Errorf("Owlet sign-in returned no access token")
	}

	c.storeTokens(&result)
	c.logger.Info("Owlet authentication succeeded")
	return nil
}

// refresh 用 refresh token 换新 access token
func (c *Client) refresh(ctx context.Context) error {
	body := map[string]any{
		"user": map[string]any{
			"refresh_token": c.refreshToken,
		},
	}

	var result signInResponse
	resp, err := c.userClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/users/refresh_token.json")
	if err != nil {
		return fmt.Errorf("failed to call Owlet token refresh: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("Owlet token refresh failed (%d): %s", resp.StatusCode(), resp.String())
	}
	if result.AccessToken == "" {
		return fmt.Errorf("Owlet token refresh returned no access token")
	}

	c.storeTokens(&result)
	return nil
}

func (c *Client) storeTokens(result *signInResponse) {
	c.accessToken = result.AccessToken
	if result.RefreshToken != "" {
		c.refreshToken = result.RefreshToken
	}
	c.expiresAt = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	c.apiClient.SetHeader("Authorization", "auth_token "+c.accessToken)
}

// ensureToken 请求前检查 token 有效期，过期先刷新
func (c *Client) ensureToken(ctx context.Context) error {
	if c.accessToken == "" {
		return fmt.Errorf("not authenticated")
	}
	// 留 30 秒余量
	if time.Now().After(c.expiresAt.Add(-30 * time.Second)) {
		return c.Authenticate(ctx)
	}
	return nil
}

// GetDevices 获取账号下的设备列表
//
// 顺序为账号 API 返回的顺序，不另行定义。
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var envelopes []deviceEnvelope
	resp, err := c.apiClient.R().
		SetContext(ctx).
		SetResult(&envelopes).
		Get("/apiv1/devices.json")
	if err != nil {
		return nil, fmt.Errorf("failed to call Owlet devices API: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("Owlet devices request failed (%d): %s", resp.StatusCode(), resp.String())
	}

	devices := make([]Device, 0, len(envelopes))
	for _, e := range envelopes {
		devices = append(devices, e.Device)
	}

	c.logger.Debug("Fetched Owlet device list", zap.Int("device_count", len(devices)))
	return devices, nil
}

// GetProperties 获取设备当前属性快照
//
// 返回按属性名索引的原始映射，每个值保留 {"value": …} 包装；
// 另注入顶层 data_updated_at（最新属性更新时间，epoch 秒），
// 供 normalizer 的时间戳解析使用。
func (c *Client) GetProperties(ctx context.Context, dsn string) (map[string]any, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var envelopes []propertyEnvelope
	resp, err := c.apiClient.R().
		SetContext(ctx).
		SetResult(&envelopes).
		Get(fmt.Sprintf("/apiv1/dsns/%s/properties.json", dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to call Owlet properties API: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("Owlet properties request failed (%d): %s", resp.StatusCode(), resp.String())
	}

	props := make(map[string]any, len(envelopes)+1)
	var latest time.Time
	for _, e := range envelopes {
		p := e.Property
		if p.Name == "" {
			continue
		}
		props[p.Name] = map[string]any{"value": p.Value}
		if t, err := time.Parse(time.RFC3339, p.DataUpdatedAt); err == nil && t.After(latest) {
			latest = t
		}
	}
	if !latest.IsZero() {
		props["data_updated_at"] = float64(latest.Unix())
	}

	return props, nil
}
