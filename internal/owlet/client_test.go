package owlet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer 同时扮演认证域和设备 API 域
func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	mux := http.NewServeMux()

	mux.HandleFunc("/users/sign_in.json", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		user, _ := body["user"].(map[string]any)
		if user["password"] != "good-password" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid email or password"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tok-1",
			"refresh_token": "refresh-1",
			"expires_in":    86400,
		})
	})

	mux.HandleFunc("/apiv1/devices.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "auth_token tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"device": map[string]any{"dsn": "AC000W001234567", "product_name": "Owlet Sock", "connection_status": "Online"}},
			{"device": map[string]any{"dsn": "AC000W007654321", "product_name": "Owlet Sock", "connection_status": "Offline"}},
		})
	})

	mux.HandleFunc("/apiv1/dsns/AC000W001234567/properties.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "auth_token tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"property": map[string]any{"name": "HEART_RATE", "value": 120, "data_updated_at": "2023-11-14T22:13:20Z"}},
			{"property": map[string]any{"name": "OXYGEN_LEVEL", "value": "97", "data_updated_at": "2023-11-14T22:10:00Z"}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(ResolveRegion("world"), "parent@example.com", "good-password",
		server.URL, server.URL, zap.NewNop())
	return server, client
}

func TestClient_Authenticate(t *testing.T) {
	_, client := newTestServer(t)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, "tok-1", client.accessToken)
	assert.Equal(t, "refresh-1", client.refreshToken)
	assert.False(t, client.expiresAt.IsZero())
}

func TestClient_Authenticate_BadPassword(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient(ResolveRegion("world"), "parent@example.com", "wrong",
		server.URL, server.URL, zap.NewNop())

	err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_GetDevices(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	devices, err := client.GetDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	// 顺序与账号 API 返回一致
	assert.Equal(t, "AC000W001234567", devices[0].DSN)
	assert.Equal(t, "AC000W007654321", devices[1].DSN)
}

func TestClient_GetDevices_NotAuthenticated(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.GetDevices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated")
}

func TestClient_GetProperties(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	props, err := client.GetProperties(ctx, "AC000W001234567")
	require.NoError(t, err)

	// 属性按名索引，值保留 {"value": …} 包装
	hr, ok := props["HEART_RATE"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(120), hr["value"])

	ox, ok := props["OXYGEN_LEVEL"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "97", ox["value"])

	// 注入最新属性更新时间（epoch 秒）
	assert.Equal(t, float64(1700000000), props["data_updated_at"])
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, regions["world"], ResolveRegion("world"))
	assert.Equal(t, regions["europe"], ResolveRegion("europe"))
	// 未知区域回退 world
	assert.Equal(t, regions["world"], ResolveRegion("mars"))
}
