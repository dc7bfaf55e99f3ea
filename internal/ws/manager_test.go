package ws

import (
	"testing"
	"time"

	"github.com/cod3vil/niuss-sub001/pkg/logger"
)

func init() {
	_ = logger.Init(&logger.Config{Level: "error", Format: "console"})
}

func newTestConn(nodeID int64, lastSeen time.Time) *AgentConnection {
	return &AgentConnection{
		NodeID:   nodeID,
		Send:     make(chan *Message, 4),
		LastSeen: lastSeen,
	}
}

// Agent 重连后旧连接的退场不能挤掉新连接，旧通道也不能被关闭两次
func TestReconnectKeepsNewConnection(t *testing.T) {
	m := NewManager()

	old := newTestConn(7, time.Now())
	m.registerAgent(old)

	fresh := newTestConn(7, time.Now())
	m.registerAgent(fresh) // 替换并关闭旧连接

	// 旧连接的 readPump 退出后会触发这次注销
	m.unregisterAgent(old)

	if got := m.GetNodeCount(); got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}
	if err := m.SendToNode(7, &Message{Type: MsgTypeConfigUpdate}); err != nil {
		t.Fatalf("SendToNode after reconnect: %v", err)
	}
	select {
	case msg := <-fresh.Send:
		if msg.Type != MsgTypeConfigUpdate {
			t.Errorf("message type = %s, want %s", msg.Type, MsgTypeConfigUpdate)
		}
	default:
		t.Fatal("message not delivered to the new connection")
	}

	// 新连接自身的注销正常生效
	m.unregisterAgent(fresh)
	if got := m.GetNodeCount(); got != 0 {
		t.Fatalf("connections = %d after unregister, want 0", got)
	}
}

// 重复注销同一个连接是幂等的
func TestUnregisterIdempotent(t *testing.T) {
	m := NewManager()

	conn := newTestConn(3, time.Now())
	m.registerAgent(conn)
	m.unregisterAgent(conn)
	m.unregisterAgent(conn)

	if got := m.GetNodeCount(); got != 0 {
		t.Fatalf("connections = %d, want 0", got)
	}
}

// 空闲超时的连接由巡检直接摘除，不经过注销通道
func TestDeadConnectionSweep(t *testing.T) {
	m := NewManager()

	stale := newTestConn(1, time.Now().Add(-5*time.Minute))
	live := newTestConn(2, time.Now())
	m.registerAgent(stale)
	m.registerAgent(live)

	m.checkDeadConnections()

	if got := m.GetNodeCount(); got != 1 {
		t.Fatalf("connections = %d after sweep, want 1", got)
	}
	if err := m.SendToNode(2, &Message{Type: MsgTypePing}); err != nil {
		t.Fatalf("live connection lost in sweep: %v", err)
	}
	if err := m.SendToNode(1, &Message{Type: MsgTypePing}); err != ErrAgentNotConnected {
		t.Fatalf("stale node send err = %v, want ErrAgentNotConnected", err)
	}
}
