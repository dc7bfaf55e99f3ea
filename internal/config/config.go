package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	TLS      TLSConfig      `yaml:"tls"`
	Log      LogConfig      `yaml:"log"`
	Fleet    FleetConfig    `yaml:"fleet"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	HTTP3Port    int    `yaml:"http3_port"`   // HTTP/3 (QUIC) 端口
	Mode         string `yaml:"mode"`         // debug, release
	EnableHTTP3  bool   `yaml:"enable_http3"` // 启用 HTTP/3
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	JWTExpiration int    `yaml:"jwt_expiration"` // 单位：小时
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"` // 首次启动时写入管理员表
}

// TLSConfig TLS配置
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputPath string `yaml:"output_path"` // 日志文件路径
	MaxSize    int    `yaml:"max_size"`    // 单个日志文件大小(MB)
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `yaml:"max_age"`     // 保留天数
	Compress   bool   `yaml:"compress"`    // 是否压缩
}

// FleetConfig 节点编排配置
type FleetConfig struct {
	HeartbeatInterval    int `yaml:"heartbeat_interval"`     // Agent 期望心跳间隔（秒）
	StalenessMultiplier  int `yaml:"staleness_multiplier"`   // 离线阈值 = 心跳间隔 × 倍数
	SweepInterval        int `yaml:"sweep_interval"`         // 离线扫描间隔（秒）
	ProfileCacheTTL      int `yaml:"profile_cache_ttl"`      // 档案缓存时长（秒）
	UsageLogRetentionDay int `yaml:"usage_log_retention_day"` // 上报日志保留天数
}

// StalenessThreshold 心跳过期阈值
func (f FleetConfig) StalenessThreshold() time.Duration {
	return time.Duration(f.HeartbeatInterval*f.StalenessMultiplier) * time.Second
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault 加载配置或使用默认值
func LoadConfigOrDefault(path string) *Config {
	if path == "" {
		return DefaultConfig()
	}

	config, err := LoadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v, using defaults\n", err)
		return DefaultConfig()
	}

	return config
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			HTTP3Port:    8443,
			Mode:         "debug",
			EnableHTTP3:  false, // 默认关闭 HTTP/3
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			SQLitePath:    "./data/niuss.db",
			RedisAddr:     "localhost:6379",
			RedisPassword: "",
			RedisDB:       0,
		},
		Auth: AuthConfig{
			JWTSecret:     "change-this-secret-in-production",
			JWTExpiration: 24,
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "./logs/niuss.log",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Fleet: FleetConfig{
			HeartbeatInterval:    60,
			StalenessMultiplier:  3,
			SweepInterval:        30,
			ProfileCacheTTL:      300, // 5分钟
			UsageLogRetentionDay: 3,
		},
	}
}
