// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bitvex/marketcenter/pkg/logger"
)

// Config 行情中心配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// MongoDB 配置（行情历史、委托单）
	Mongo MongoConfig `mapstructure:"mongo"`
	// MySQL 配置（交易对目录）
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置（最新行情缓存）
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 撮合引擎配置
	Engine EngineConfig `mapstructure:"engine"`
	// 汇率服务配置
	Rate RateConfig `mapstructure:"rate"`
	// 推送配置
	Push PushConfig `mapstructure:"push"`
	// K 线配置
	KLine KLineConfig `mapstructure:"kline"`
	// WebSocket 推送服务配置
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	// 原生网关推送服务配置
	Gateway GatewayConfig `mapstructure:"gateway"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	// 连接 URI
	URI string `mapstructure:"uri"`
	// 数据库名
	Database string `mapstructure:"database"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
}

// DatabaseConfig MySQL 配置
type DatabaseConfig struct {
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// Consumer Group ID
	GroupID string `mapstructure:"group_id"`
	// 成交消息主题
	TradeTopic string `mapstructure:"trade_topic"`
	// 盘口增量消息主题
	PlateTopic string `mapstructure:"plate_topic"`
	// 订单完成通知主题
	OrderCompletedTopic string `mapstructure:"order_completed_topic"`
	// 消费者会话超时（秒）
	SessionTimeout int `mapstructure:"session_timeout"`
}

// EngineConfig 撮合引擎配置
type EngineConfig struct {
	// 引擎监控接口基地址
	BaseURL string `mapstructure:"base_url"`
	// 交易对状态同步周期（秒）
	ReconcileInterval int `mapstructure:"reconcile_interval"`
	// 请求超时（秒）
	RequestTimeout int `mapstructure:"request_timeout"`
}

// RateConfig 汇率服务配置
type RateConfig struct {
	// 汇率接口基地址
	BaseURL string `mapstructure:"base_url"`
	// 汇率刷新周期（秒）
	RefreshInterval int `mapstructure:"refresh_interval"`
	// 请求超时（秒）
	RequestTimeout int `mapstructure:"request_timeout"`
}

// PushConfig 推送配置
type PushConfig struct {
	// 成交推送周期（毫秒）
	TradeInterval int `mapstructure:"trade_interval"`
	// 盘口推送周期（毫秒）
	PlateInterval int `mapstructure:"plate_interval"`
	// 简况推送周期（毫秒）
	ThumbInterval int `mapstructure:"thumb_interval"`
	// 盘口浅档位
	ShallowDepth int `mapstructure:"shallow_depth"`
	// 盘口深档位
	DeepDepth int `mapstructure:"deep_depth"`
}

// KLineConfig K 线配置
type KLineConfig struct {
	// 启用的周期，如 1min, 5min, 1hour, 1day
	Periods []string `mapstructure:"periods"`
}

// WebSocketConfig WebSocket 推送服务配置
type WebSocketConfig struct {
	// 监听地址
	Addr string `mapstructure:"addr"`
	// WebSocket 路径
	Path string `mapstructure:"path"`
}

// GatewayConfig 原生网关推送服务配置
type GatewayConfig struct {
	// TCP 监听地址
	Addr string `mapstructure:"addr"`
	// 单帧最大字节数
	MaxFrameSize int `mapstructure:"max_frame_size"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("MARKET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("engine.base_url is required")
	}
	if len(c.KLine.Periods) == 0 {
		return fmt.Errorf("kline.periods is required")
	}
	if c.Push.TradeInterval <= 0 {
		return fmt.Errorf("push.trade_interval must be positive")
	}
	if c.Push.PlateInterval <= 0 {
		return fmt.Errorf("push.plate_interval must be positive")
	}
	if c.Push.ThumbInterval <= 0 {
		return fmt.Errorf("push.thumb_interval must be positive")
	}
	if c.Push.ShallowDepth <= 0 {
		return fmt.Errorf("push.shallow_depth must be positive")
	}
	if c.Push.DeepDepth <= 0 {
		return fmt.Errorf("push.deep_depth must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("mongo.database", "bitvex")
	v.SetDefault("mongo.conn_timeout", 10)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)

	v.SetDefault("kafka.group_id", "marketcenter")
	v.SetDefault("kafka.trade_topic", "exchange-trade")
	v.SetDefault("kafka.plate_topic", "exchange-trade-plate")
	v.SetDefault("kafka.order_completed_topic", "exchange-order-completed")
	v.SetDefault("kafka.session_timeout", 10)

	v.SetDefault("engine.reconcile_interval", 60)
	v.SetDefault("engine.request_timeout", 10)

	v.SetDefault("rate.refresh_interval", 60)
	v.SetDefault("rate.request_timeout", 10)

	v.SetDefault("push.trade_interval", 500)
	v.SetDefault("push.plate_interval", 2000)
	v.SetDefault("push.thumb_interval", 500)
	v.SetDefault("push.shallow_depth", 24)
	v.SetDefault("push.deep_depth", 50)

	v.SetDefault("kline.periods", []string{"1min", "5min", "15min", "30min", "1hour", "1day"})

	v.SetDefault("websocket.addr", ":8090")
	v.SetDefault("websocket.path", "/market/ws")

	v.SetDefault("gateway.addr", ":28901")
	v.SetDefault("gateway.max_frame_size", 1<<20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/marketcenter.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}
