package ws

import (
	"encoding/json"
	"time"
)

// MessageType 消息类型
type MessageType string

const (
	// Agent -> 服务器
	MsgTypeAgentRegister MessageType = "agent_register" // Agent 注册
	MsgTypePong          MessageType = "pong"           // Pong

	// 服务器 -> Agent
	MsgTypeRegisterAck  MessageType = "register_ack"  // 注册确认
	MsgTypeConfigUpdate MessageType = "config_update" // 配置版本变更通知
	MsgTypePing         MessageType = "ping"          // Ping
	MsgTypeError        MessageType = "error"         // 错误消息
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// AgentRegisterRequest Agent 注册请求
// 首条消息必须是注册，密钥验证失败直接断开
type AgentRegisterRequest struct {
	NodeID  int64  `json:"node_id"`
	Secret  string `json:"secret"`
	Version string `json:"version"` // Agent 程序版本
}

// AgentRegisterResponse Agent 注册响应
type AgentRegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	NodeID  int64  `json:"node_id"`
}

// ConfigUpdateNotice 配置版本变更通知
// 只携带版本号，Agent 收到后走正常的拉取流程获取完整配置
type ConfigUpdateNotice struct {
	NodeID  int64 `json:"node_id"`
	Version int64 `json:"version"`
}

// ErrorMessage 错误消息
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage 创建新消息
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      dataBytes,
	}, nil
}

// ParseData 解析消息数据
func (m *Message) ParseData(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}
