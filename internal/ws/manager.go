package ws

import (
	"sync"
	"time"

	"github.com/cod3vil/niuss-sub001/internal/metrics"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AgentConnection Agent 连接
type AgentConnection struct {
	NodeID   int64
	Conn     *websocket.Conn
	Send     chan *Message
	LastSeen time.Time
	mu       sync.RWMutex
}

// Manager WebSocket 连接管理器
type Manager struct {
	connections map[int64]*AgentConnection // nodeID -> connection
	register    chan *AgentConnection
	unregister  chan *AgentConnection
	mu          sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{
		connections: make(map[int64]*AgentConnection),
		register:    make(chan *AgentConnection, 10),
		unregister:  make(chan *AgentConnection, 10),
	}
}

// Run 运行管理器
func (m *Manager) Run() {
	logger.Info("WebSocket 管理器已启动")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case conn := <-m.register:
			m.registerAgent(conn)

		case conn := <-m.unregister:
			m.unregisterAgent(conn)

		case <-ticker.C:
			m.checkDeadConnections()
		}
	}
}

// registerAgent 注册 Agent 连接
func (m *Manager) registerAgent(conn *AgentConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 同一节点重复连接时关闭旧连接
	// 旧连接的 readPump 退场时会走 unregisterAgent，那里靠指针比对跳过它
	if oldConn, exists := m.connections[conn.NodeID]; exists {
		close(oldConn.Send)
		oldConn.Close()
	}

	m.connections[conn.NodeID] = conn
	metrics.WSConnections.Set(float64(len(m.connections)))

	logger.Info("Agent 已连接",
		zap.Int64("nodeID", conn.NodeID),
		zap.Int("totalAgents", len(m.connections)))
}

// unregisterAgent 注销 Agent 连接
// 必须是同一个连接对象才摘除：Agent 重连后旧连接的退场
// 不能挤掉新连接，旧连接的 Send 在注册替换时已经关闭过
func (m *Manager) unregisterAgent(conn *AgentConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connections[conn.NodeID] != conn {
		return
	}

	delete(m.connections, conn.NodeID)
	close(conn.Send)
	metrics.WSConnections.Set(float64(len(m.connections)))

	logger.Info("Agent 已断开",
		zap.Int64("nodeID", conn.NodeID),
		zap.Int("totalAgents", len(m.connections)))
}

// SendToNode 发送消息到指定节点的 Agent
func (m *Manager) SendToNode(nodeID int64, msg *Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[nodeID]
	if !exists {
		return ErrAgentNotConnected
	}

	select {
	case conn.Send <- msg:
		return nil
	case <-time.After(5 * time.Second):
		return ErrSendTimeout
	}
}

// GetNodeCount 获取在线 Agent 数量
func (m *Manager) GetNodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.connections)
}

// checkDeadConnections 检查死连接
func (m *Manager) checkDeadConnections() {
	m.mu.RLock()
	deadConns := make([]*AgentConnection, 0)
	now := time.Now()

	for _, conn := range m.connections {
		conn.mu.RLock()
		if now.Sub(conn.LastSeen) > 90*time.Second {
			deadConns = append(deadConns, conn)
		}
		conn.mu.RUnlock()
	}
	m.mu.RUnlock()

	// 直接注销，经由自己的 unregister 通道在死连接多于缓冲时会把 Run 卡死
	for _, conn := range deadConns {
		logger.Warn("Agent 连接超时，断开",
			zap.Int64("nodeID", conn.NodeID),
			zap.Duration("idle", now.Sub(conn.LastSeen)))
		m.unregisterAgent(conn)
		conn.Close()
	}
}

// UpdateLastSeen 更新最后活跃时间
func (ac *AgentConnection) UpdateLastSeen() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.LastSeen = time.Now()
}

// Close 关闭连接
func (ac *AgentConnection) Close() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.Conn != nil {
		ac.Conn.Close()
	}
}

// Errors
var (
	ErrAgentNotConnected = &WSError{Code: "AGENT_NOT_CONNECTED", Message: "Agent 未连接"}
	ErrSendTimeout       = &WSError{Code: "SEND_TIMEOUT", Message: "发送消息超时"}
)

// WSError WebSocket 错误
type WSError struct {
	Code    string
	Message string
}

func (e *WSError) Error() string {
	return e.Message
}
