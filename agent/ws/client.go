package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/config"
	wsproto "github.com/cod3vil/niuss-sub001/internal/ws"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 配置推送通道客户端
// 纯加速通道：连不上或断开都不影响正确性，周期拉取会兜底
type Client struct {
	cfg       *config.Config
	conn      *websocket.Conn
	stopChan  chan struct{}
	connected atomic.Bool
	mu        sync.Mutex

	// 收到配置变更通知时的回调
	onConfigUpdate func()
}

// NewClient 创建推送通道客户端
func NewClient(cfg *config.Config, onConfigUpdate func()) *Client {
	return &Client{
		cfg:            cfg,
		stopChan:       make(chan struct{}),
		onConfigUpdate: onConfigUpdate,
	}
}

// Start 启动连接维持循环
func (c *Client) Start() {
	if c.cfg.Panel.WSURL == "" {
		logger.Info("未配置推送通道，仅使用周期拉取")
		return
	}
	go c.connectLoop()
}

// Stop 关闭连接
func (c *Client) Stop() {
	close(c.stopChan)
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
}

// connectLoop 断线重连循环
func (c *Client) connectLoop() {
	interval := time.Duration(c.cfg.Panel.ReconnectInterval) * time.Second

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.connect(); err != nil {
			logger.Warn("推送通道连接失败",
				zap.String("url", c.cfg.Panel.WSURL),
				zap.Error(err))
		} else {
			c.readLoop()
		}

		select {
		case <-time.After(interval):
		case <-c.stopChan:
			return
		}
	}
}

func (c *Client) connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(c.cfg.Panel.Timeout) * time.Second,
	}

	conn, _, err := dialer.Dial(c.cfg.Panel.WSURL, nil)
	if err != nil {
		return err
	}

	// 首条消息必须是注册
	registerMsg, err := wsproto.NewMessage(wsproto.MsgTypeAgentRegister, &wsproto.AgentRegisterRequest{
		NodeID: c.cfg.Node.ID,
		Secret: c.cfg.Node.Secret,
	})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteJSON(registerMsg); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	logger.Info("推送通道已连接", zap.String("url", c.cfg.Panel.WSURL))
	return nil
}

// readLoop 消息接收循环，退出即视为断线
func (c *Client) readLoop() {
	defer func() {
		c.connected.Store(false)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		var msg wsproto.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			logger.Warn("推送通道断开", zap.Error(err))
			return
		}

		switch msg.Type {
		case wsproto.MsgTypeRegisterAck:
			logger.Debug("推送通道注册成功")
		case wsproto.MsgTypeConfigUpdate:
			var notice wsproto.ConfigUpdateNotice
			if err := msg.ParseData(&notice); err != nil {
				logger.Warn("解析配置变更通知失败", zap.Error(err))
				continue
			}
			logger.Info("收到配置变更通知", zap.Int64("version", notice.Version))
			if c.onConfigUpdate != nil {
				c.onConfigUpdate()
			}
		case wsproto.MsgTypeError:
			var errMsg wsproto.ErrorMessage
			_ = msg.ParseData(&errMsg)
			logger.Error("推送通道错误",
				zap.String("code", errMsg.Code),
				zap.String("message", errMsg.Message))
			return
		}
	}
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}
