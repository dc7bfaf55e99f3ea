package model

import (
	"time"
)

// NodeStatus 节点状态
type NodeStatus string

const (
	NodeStatusOnline      NodeStatus = "online"
	NodeStatusOffline     NodeStatus = "offline"
	NodeStatusMaintenance NodeStatus = "maintenance"
)

// Protocol 节点协议
type Protocol string

const (
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolVMess       Protocol = "vmess"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolHysteria2   Protocol = "hysteria2"
	ProtocolVLESS       Protocol = "vless"
)

// Valid 检查协议是否在支持范围内
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolShadowsocks, ProtocolVMess, ProtocolTrojan, ProtocolHysteria2, ProtocolVLESS:
		return true
	}
	return false
}

// ClashType 协议到 Clash 节点类型的固定映射
// 不在映射表中的协议返回空字符串，调用方负责排除该节点
func (p Protocol) ClashType() string {
	switch p {
	case ProtocolShadowsocks:
		return "ss"
	case ProtocolVMess:
		return "vmess"
	case ProtocolTrojan:
		return "trojan"
	case ProtocolHysteria2:
		return "hysteria2"
	case ProtocolVLESS:
		return "vless"
	}
	return ""
}

// SecretField 协议密钥在 Clash 条目中的字段名
func (p Protocol) SecretField() string {
	switch p {
	case ProtocolVMess, ProtocolVLESS:
		return "uuid"
	default:
		return "password"
	}
}

// NodeMetrics 心跳附带的节点指标
type NodeMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`    // 百分比
	MemoryUsage float64 `json:"memory_usage"` // 百分比
	Connections int     `json:"connections"`  // 连接数
	Uptime      int64   `json:"uptime"`       // 秒
}

// HeartbeatRequest 心跳请求
type HeartbeatRequest struct {
	NodeID  int64       `json:"node_id"`
	Secret  string      `json:"secret"`
	Metrics NodeMetrics `json:"metrics"`
}

// UsageReport 流量增量上报
type UsageReport struct {
	NodeID        int64     `json:"node_id"`
	Secret        string    `json:"secret"`
	SubscriberID  int64     `json:"subscriber_id"`
	UploadDelta   int64     `json:"upload_delta"`
	DownloadDelta int64     `json:"download_delta"`
	ObservedAt    time.Time `json:"observed_at"`
}

// AgentConfig 下发给节点 Agent 的配置
// 只包含 Agent 关心的字段，Clash 档案相关的元数据不在其中
type AgentConfig struct {
	NodeID         int64                  `json:"node_id"`
	Protocol       Protocol               `json:"protocol"`
	Port           int                    `json:"port"`
	Secret         string                 `json:"secret"`
	ProtocolConfig map[string]interface{} `json:"protocol_config"`
	Version        int64                  `json:"version"`
}
