package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config Agent 配置
type Config struct {
	Node   NodeConfig   `yaml:"node"`
	Panel  PanelConfig  `yaml:"panel"`
	Engine EngineConfig `yaml:"engine"`
	Tasks  TasksConfig  `yaml:"tasks"`
	Log    LogConfig    `yaml:"log"`

	StatePath string `yaml:"state_path"` // 本地状态文件
}

// NodeConfig 节点身份
type NodeConfig struct {
	ID     int64  `yaml:"id"`
	Secret string `yaml:"secret"`
}

// PanelConfig 面板连接配置
type PanelConfig struct {
	URL               string `yaml:"url"`    // http(s)://host:port
	WSURL             string `yaml:"ws_url"` // 配置推送通道，可留空
	Timeout           int    `yaml:"timeout"`
	ReconnectInterval int    `yaml:"reconnect_interval"`
}

// EngineConfig 本地代理引擎配置
type EngineConfig struct {
	Binary     string   `yaml:"binary"`      // 引擎可执行文件
	Args       []string `yaml:"args"`        // 附加启动参数
	ConfigPath string   `yaml:"config_path"` // 引擎配置文件路径
	StatsURL   string   `yaml:"stats_url"`   // 引擎统计接口
}

// TasksConfig 周期任务间隔（秒）
type TasksConfig struct {
	HeartbeatInterval int `yaml:"heartbeat_interval"`
	UsageInterval     int `yaml:"usage_interval"`
	SyncInterval      int `yaml:"sync_interval"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Panel.Timeout == 0 {
		c.Panel.Timeout = 10
	}
	if c.Panel.ReconnectInterval == 0 {
		c.Panel.ReconnectInterval = 10
	}
	if c.Tasks.HeartbeatInterval == 0 {
		c.Tasks.HeartbeatInterval = 60
	}
	if c.Tasks.UsageInterval == 0 {
		c.Tasks.UsageInterval = 30
	}
	if c.Tasks.SyncInterval == 0 {
		c.Tasks.SyncInterval = 60
	}
	if c.StatePath == "" {
		c.StatePath = "./agent-state.json"
	}
	if c.Engine.ConfigPath == "" {
		c.Engine.ConfigPath = "./engine-config.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Node.ID <= 0 {
		return fmt.Errorf("node.id 必须大于0")
	}
	if c.Node.Secret == "" {
		return fmt.Errorf("node.secret 不能为空")
	}
	if c.Panel.URL == "" {
		return fmt.Errorf("panel.url 不能为空")
	}
	return nil
}
