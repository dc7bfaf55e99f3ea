package ws

import (
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler WebSocket 消息处理器
type Handler struct {
	manager *Manager
	db      *db.Manager
}

// NewHandler 创建处理器
func NewHandler(manager *Manager, dbManager *db.Manager) *Handler {
	return &Handler{
		manager: manager,
		db:      dbManager,
	}
}

// HandleConnection 处理新连接
// 首条消息必须是注册消息，密钥比对失败即断开
func (h *Handler) HandleConnection(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		logger.Error("读取注册消息失败", zap.Error(err))
		conn.Close()
		return
	}

	if msg.Type != MsgTypeAgentRegister {
		h.sendError(conn, "INVALID_FIRST_MESSAGE", "首条消息必须是注册消息")
		conn.Close()
		return
	}
	var req AgentRegisterRequest
	if err := msg.ParseData(&req); err != nil {
		h.sendError(conn, "INVALID_REQUEST", "无效的注册请求")
		conn.Close()
		return
	}

	if !h.authenticate(req.NodeID, req.Secret) {
		h.sendError(conn, "AUTH_FAILED", "节点密钥验证失败")
		conn.Close()
		return
	}

	agentConn := &AgentConnection{
		NodeID:   req.NodeID,
		Conn:     conn,
		Send:     make(chan *Message, 64),
		LastSeen: time.Now(),
	}
	h.manager.register <- agentConn
	h.sendRegisterAck(agentConn, req.NodeID)
	go h.readPump(agentConn)
	go h.writePump(agentConn)
}

// authenticate 比对节点密钥
func (h *Handler) authenticate(nodeID int64, secret string) bool {
	node, err := h.db.DB.SQLite.GetNode(nodeID)
	if err != nil {
		logger.Error("查询节点失败", zap.Int64("nodeID", nodeID), zap.Error(err))
		return false
	}
	if node == nil {
		logger.Warn("未知节点尝试连接", zap.Int64("nodeID", nodeID))
		return false
	}
	return node.Secret == secret
}

func (h *Handler) readPump(conn *AgentConnection) {
	defer func() {
		h.manager.unregister <- conn
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.UpdateLastSeen()
		return nil
	})

	for {
		var msg Message
		err := conn.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket 读取错误",
					zap.Int64("nodeID", conn.NodeID),
					zap.Error(err))
			}
			break
		}

		conn.Conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.UpdateLastSeen()
		h.handleMessage(conn, &msg)
	}
}

// writePump 发送消息
func (h *Handler) writePump(conn *AgentConnection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(msg); err != nil {
				logger.Error("发送消息失败",
					zap.Int64("nodeID", conn.NodeID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 分发消息
// 心跳和流量上报走 HTTP 接口，这里只处理连接维持类消息
func (h *Handler) handleMessage(conn *AgentConnection, msg *Message) {
	switch msg.Type {
	case MsgTypePong:
		// 已在 readPump 里更新过活跃时间
	default:
		logger.Warn("未知消息类型",
			zap.Int64("nodeID", conn.NodeID),
			zap.String("type", string(msg.Type)))
	}
}

func (h *Handler) sendRegisterAck(conn *AgentConnection, nodeID int64) {
	msg, err := NewMessage(MsgTypeRegisterAck, &AgentRegisterResponse{
		Success: true,
		Message: "注册成功",
		NodeID:  nodeID,
	})
	if err != nil {
		return
	}
	conn.Send <- msg
}

func (h *Handler) sendError(conn *websocket.Conn, code, message string) {
	msg, err := NewMessage(MsgTypeError, &ErrorMessage{
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	conn.WriteJSON(msg)
}
