package ws

import (
	"net/http"

	"github.com/cod3vil/niuss-sub001/db"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Agent 客户端不带 Origin 头，浏览器一律拒绝
		return r.Header.Get("Origin") == ""
	},
}

// Server WebSocket 服务器
// 承载配置变更推送通道，Agent 不连接时退化为纯拉取
type Server struct {
	manager *Manager
	handler *Handler
	db      *db.Manager
}

// NewServer 创建 WebSocket 服务器
func NewServer(dbManager *db.Manager) *Server {
	manager := NewManager()
	handler := NewHandler(manager, dbManager)

	return &Server{
		manager: manager,
		handler: handler,
		db:      dbManager,
	}
}

// Start 启动服务器
func (s *Server) Start() {
	go s.manager.Run()
	logger.Info("✓ WebSocket 服务器已启动")
}

// HandleWebSocket WebSocket 处理函数
func (s *Server) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}

	s.handler.HandleConnection(conn)
}

// NotifyConfigUpdate 推送配置版本变更通知
// Agent 不在线时静默跳过，周期拉取会兜底
func (s *Server) NotifyConfigUpdate(nodeID int64) {
	node, err := s.db.DB.SQLite.GetNode(nodeID)
	if err != nil || node == nil {
		return
	}

	msg, err := NewMessage(MsgTypeConfigUpdate, &ConfigUpdateNotice{
		NodeID:  nodeID,
		Version: node.ConfigVersion,
	})
	if err != nil {
		return
	}

	if err := s.manager.SendToNode(nodeID, msg); err != nil {
		logger.Debug("配置变更推送跳过",
			zap.Int64("nodeID", nodeID),
			zap.Error(err))
	}
}

// GetManager 获取管理器（用于外部调用）
func (s *Server) GetManager() *Manager {
	return s.manager
}
