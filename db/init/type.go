package init

import (
	"time"
)

// Node 节点信息
type Node struct {
	ID             int64     `json:"id" db:"id"`                           // 节点ID
	Name           string    `json:"name" db:"name"`                       // 节点名称（唯一）
	Host           string    `json:"host" db:"host"`                       // 节点地址
	Port           int       `json:"port" db:"port"`                       // 节点端口
	Protocol       string    `json:"protocol" db:"protocol"`               // 协议: shadowsocks/vmess/trojan/hysteria2/vless
	Secret         string    `json:"-" db:"secret"`                        // 节点密钥（不下发到前端）
	ProtocolConfig string    `json:"protocol_config" db:"protocol_config"` // 协议配置（JSON）
	Status         string    `json:"status" db:"status"`                   // 状态: online/offline/maintenance
	MaxUsers       int       `json:"max_users" db:"max_users"`             // 最大用户数（软限制）
	CurrentUsers   int       `json:"current_users" db:"current_users"`     // 当前用户数
	TotalUpload    int64     `json:"total_upload" db:"total_upload"`       // 累计上行流量(bytes)
	TotalDownload  int64     `json:"total_download" db:"total_download"`   // 累计下行流量(bytes)
	LastHeartbeat  time.Time `json:"last_heartbeat" db:"last_heartbeat"`   // 最后心跳时间
	IncludeInClash bool      `json:"include_in_clash" db:"include_in_clash"`
	SortOrder      int       `json:"sort_order" db:"sort_order"`           // 档案排序键
	ConfigVersion  int64     `json:"config_version" db:"config_version"`   // Agent 配置版本
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SubscriberQuota 订阅配额（每个订阅者-套餐组合一条活跃记录）
type SubscriberQuota struct {
	ID           int64     `json:"id" db:"id"`
	SubscriberID int64     `json:"subscriber_id" db:"subscriber_id"`
	PackageID    int64     `json:"package_id" db:"package_id"`
	Token        string    `json:"token" db:"token"`                 // 订阅令牌（唯一）
	TrafficQuota int64     `json:"traffic_quota" db:"traffic_quota"` // 流量上限(bytes)，周期内不变
	TrafficUsed  int64     `json:"traffic_used" db:"traffic_used"`   // 已用流量(bytes)，只增不减
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`       // 到期时间
	Status       string    `json:"status" db:"status"`               // active/expired/exhausted
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UsageLog 流量上报日志（短期保留，仅用于回放排查）
type UsageLog struct {
	ID            string    `json:"id" db:"id"` // UUID
	NodeID        int64     `json:"node_id" db:"node_id"`
	SubscriberID  int64     `json:"subscriber_id" db:"subscriber_id"`
	UploadDelta   int64     `json:"upload_delta" db:"upload_delta"`
	DownloadDelta int64     `json:"download_delta" db:"download_delta"`
	ObservedAt    time.Time `json:"observed_at" db:"observed_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ProxyGroup 档案代理组（管理员维护）
type ProxyGroup struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`       // select/url-test/fallback
	Proxies   string    `json:"proxies" db:"proxies"` // 组内代理名列表（JSON数组）
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProfileRule 档案路由规则（管理员维护）
type ProfileRule struct {
	ID        int64     `json:"id" db:"id"`
	Rule      string    `json:"rule" db:"rule"` // 完整的 Clash 规则行
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Admin 管理员账户
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
