package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Lmstfy     LmstfyConfig     `mapstructure:"lmstfy"`
	Validation ValidationConfig `mapstructure:"validation"`
	Update     UpdateConfig     `mapstructure:"update"`
	Bulk       BulkConfig       `mapstructure:"bulk"`
	Workers    []WorkerConfig   `mapstructure:"workers"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置（apiserver 使用）
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LmstfyConfig Lmstfy 配置
type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
	Queue     string `mapstructure:"queue"` // apiserver 投递任务的队列
}

// ValidationConfig EWB 校验服务配置
type ValidationConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AccountGSTIN string        `mapstructure:"account_gstin"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheBackend string        `mapstructure:"cache_backend"` // redis / memory
}

// UpdateConfig 承运人更新服务配置
type UpdateConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccountGSTIN    string `mapstructure:"account_gstin"`
	DocumentBaseURL string `mapstructure:"document_base_url"` // 相对文档链接的前缀
}

// BulkConfig 批量更新配置
type BulkConfig struct {
	ItemDelay       time.Duration `mapstructure:"item_delay"`     // 每条之间的固定间隔
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"` // >0 时使用令牌桶代替固定间隔
	CallTimeout     time.Duration `mapstructure:"call_timeout"`   // 单次外部调用超时，0 表示不限制
	ProgressChannel string        `mapstructure:"progress_channel"`
	CancelChannel   string        `mapstructure:"cancel_channel"`
	CallbackQueue   string        `mapstructure:"callback_queue"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name       string           `mapstructure:"name"`
	QueueName  string           `mapstructure:"queue_name"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // Time-To-Run
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时，0 表示不限制
}

// 默认值
const (
	DefaultItemDelay       = 1500 * time.Millisecond
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheBackend    = "redis"
	DefaultProgressChannel = "ewb_bulk_progress"
	DefaultCancelChannel   = "ewb_bulk_cancel"
	DefaultServerPort      = "8080"
)

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("validation.cache_ttl", DefaultCacheTTL)
	v.SetDefault("validation.cache_backend", DefaultCacheBackend)
	v.SetDefault("bulk.item_delay", DefaultItemDelay)
	v.SetDefault("bulk.progress_channel", DefaultProgressChannel)
	v.SetDefault("bulk.cancel_channel", DefaultCancelChannel)
}

// Validate 验证 worker 所需配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy.host is required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required")
	}
	if c.Validation.BaseURL == "" {
		return fmt.Errorf("validation.base_url is required")
	}
	if c.Update.Endpoint == "" {
		return fmt.Errorf("update.endpoint is required")
	}
	if err := c.validateCacheBackend(); err != nil {
		return err
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	return nil
}

// ValidateServer 验证 apiserver 所需配置
func (c *Config) ValidateServer() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy host is required")
	}
	if c.Lmstfy.Queue == "" {
		return fmt.Errorf("lmstfy queue is required")
	}
	return c.validateCacheBackend()
}

// validateCacheBackend 校验缓存后端取值
func (c *Config) validateCacheBackend() error {
	switch c.Validation.CacheBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("validation.cache_backend must be redis or memory, got %q", c.Validation.CacheBackend)
	}
	if c.Validation.CacheBackend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for redis cache backend")
	}
	return nil
}
