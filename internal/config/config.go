package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultChildID 未配置时使用的占位 child UUID
const DefaultChildID = "00000000-0000-0000-0000-000000000001"

// 轮询间隔下限（秒），避免打爆厂家 API
const minPollSeconds = 5

// Config Owlet 桥接服务配置
type Config struct {
	// Owlet 厂家云
	Owlet struct {
		Email     string // 账号邮箱
		Password  string // 账号密码
		Region    string // 区域："world"（默认）或 "europe"
		DeviceDSN string // 目标设备 DSN，空则取账号下第一台
		UserURL   string // 覆盖认证域（测试用，空则按区域）
		APIURL    string // 覆盖设备 API 域（测试用）
	}

	// 轮询
	ChildID     string // 读数行归属的 child ID
	PollSeconds int    // 轮询间隔（秒），下限 5

	// 输出 sink："supabase"（默认）或 "postgres"
	Sink string

	Supabase struct {
		URL            string // 项目 base URL
		ServiceRoleKey string // service_role 密钥（必须是后端密钥，非 anon）
	}

	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}

	// Redis 实时缓存（Addr 为空则禁用）
	Redis struct {
		Addr              string
		Password          string
		DB                int
		RealtimeKeyPrefix string
		Stream            string
		RealtimeTTL       int // 秒
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
//
// 必填项缺失立即报错（进程启动前失败，不产生任何网络活动）；
// 轮询间隔在这里夹到下限。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Owlet.Email = getEnv("OWLET_EMAIL", "")
	cfg.Owlet.Password = getEnv("OWLET_PASSWORD", "")
	cfg.Owlet.Region = strings.ToLower(getEnv("OWLET_REGION", "world"))
	cfg.Owlet.DeviceDSN = getEnv("OWLET_DEVICE_DSN", "")
	cfg.Owlet.UserURL = getEnv("OWLET_USER_URL", "")
	cfg.Owlet.APIURL = getEnv("OWLET_API_URL", "")

	cfg.ChildID = getEnv("TOMBSTONE_CHILD_ID", DefaultChildID)
	cfg.PollSeconds = getEnvInt("OWLET_POLL_SECONDS", 30)
	if cfg.PollSeconds < minPollSeconds {
		cfg.PollSeconds = minPollSeconds
	}

	cfg.Sink = strings.ToLower(getEnv("BRIDGE_SINK", "supabase"))

	cfg.Supabase.URL = getEnv("SUPABASE_URL", "")
	cfg.Supabase.ServiceRoleKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", "")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.RealtimeKeyPrefix = getEnv("OWLET_REALTIME_KEY_PREFIX", "owlet:realtime:")
	cfg.Redis.Stream = getEnv("OWLET_STREAM", "owlet:data:stream")
	cfg.Redis.RealtimeTTL = getEnvInt("OWLET_REALTIME_TTL", 120)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验必填项
func (c *Config) validate() error {
	if c.Owlet.Email == "" {
		return fmt.Errorf("missing required env var: OWLET_EMAIL")
	}
	if c.Owlet.Password == "" {
		return fmt.Errorf("missing required env var: OWLET_PASSWORD")
	}

	switch c.Sink {
	case "supabase":
		if c.Supabase.URL == "" {
			return fmt.Errorf("missing required env var: SUPABASE_URL")
		}
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("missing required env var: SUPABASE_SERVICE_ROLE_KEY")
		}
	case "postgres":
		// DB_* 都有默认值
	default:
		return fmt.Errorf("invalid BRIDGE_SINK: %s (expected supabase or postgres)", c.Sink)
	}

	return nil
}

// GetDSN 获取数据库连接字符串
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
