package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// OnConflict 已存在玩家时的导入策略
type OnConflict string

const (
	// OnConflictSkip 玩家已存在则整次导入为空操作
	OnConflictSkip OnConflict = "skip"
	// OnConflictMergeEvents 玩家基础信息不动，仅补充未见过的赛事
	OnConflictMergeEvents OnConflict = "merge_events"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL配置
	Sync     SyncConfig     `mapstructure:"sync"`     // 导入调度配置
	Source   SourceConfig   `mapstructure:"source"`   // gomafia 源站配置

	Telemetry TelemetryConfig `mapstructure:"telemetry"` // OpenTelemetry 链路追踪
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL 形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// SyncConfig 导入调度配置
type SyncConfig struct {
	OnConflict   OnConflict `mapstructure:"on_conflict"`   // skip / merge_events
	Cron         string     `mapstructure:"cron"`          // 定时刷新已知玩家的 Cron 表达式，空则不启用
	RefreshLimit int        `mapstructure:"refresh_limit"` // 单次刷新最多处理的玩家数
}

// SourceConfig 源站抓取配置
type SourceConfig struct {
	BaseURL          string  `mapstructure:"base_url"`          // 站点地址，如 https://gomafia.pro
	Timeout          int     `mapstructure:"timeout"`           // 请求超时（秒）
	Proxy            string  `mapstructure:"proxy"`             // 代理地址
	UserAgent        string  `mapstructure:"user_agent"`        // 请求 UA
	RateLimit        float64 `mapstructure:"rate_limit"`        // 每秒最多请求数
	CloudflareBypass bool    `mapstructure:"cloudflare_bypass"` // 是否启用 cloudflare 绕过
}

// TelemetryConfig 链路追踪配置，两个 endpoint 都为空时只在进程内生成 trace（不导出）
type TelemetryConfig struct {
	ServiceName  string            `mapstructure:"service_name"`
	HTTPEndpoint string            `mapstructure:"otlp_http_endpoint"` // 完整 URL，如 http://localhost:4318/v1/traces
	GRPCEndpoint string            `mapstructure:"otlp_grpc_endpoint"` // 如 http://localhost:4317，优先于 HTTP
	Headers      map[string]string `mapstructure:"otlp_headers"`
	SampleRatio  float64           `mapstructure:"sample_ratio"` // 0~1
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// LoadConfigFile 从指定路径加载配置（CLI 使用）
func LoadConfigFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetTypeByDefaultValue(true)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("sync.on_conflict", string(OnConflictSkip))
	v.SetDefault("sync.refresh_limit", 100)
	v.SetDefault("source.base_url", "https://gomafia.pro")
	v.SetDefault("source.timeout", 30)
	v.SetDefault("source.rate_limit", 2.0)
	v.SetDefault("source.user_agent", DefaultUserAgent)
	v.SetDefault("telemetry.service_name", "gomafia-sync")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// DefaultUserAgent 源站会拦截非浏览器 UA
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("GOMAFIA_PROXY"); v != "" {
		cfg.Source.Proxy = v
	}
	if v := os.Getenv("GOMAFIA_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); v != "" {
		cfg.Telemetry.HTTPEndpoint = v
	}
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	c.Sync.OnConflict = OnConflict(strings.ToLower(strings.TrimSpace(string(c.Sync.OnConflict))))
	if c.Sync.OnConflict == "" {
		c.Sync.OnConflict = OnConflictSkip
	}
	if !c.Sync.OnConflict.Valid() {
		return fmt.Errorf("sync.on_conflict 取值非法: %q（可选 skip / merge_events）", c.Sync.OnConflict)
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url 不能为空")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio 取值非法: %v（0~1）", c.Telemetry.SampleRatio)
	}
	return nil
}

// Valid 是否为受支持的策略
func (o OnConflict) Valid() bool {
	return o == OnConflictSkip || o == OnConflictMergeEvents
}
