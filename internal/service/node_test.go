package service

import (
	"testing"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

type recordingNotifier struct {
	notified []int64
}

func (r *recordingNotifier) NotifyConfigUpdate(nodeID int64) {
	r.notified = append(r.notified, nodeID)
}

// 密钥轮换要真正落盘：版本递增、推送触发，且存储里是新密钥
func TestUpdateNodeSecretRotation(t *testing.T) {
	manager := newTestManager(t)
	svc := NewNodeService(manager)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	node := seedNode(t, manager, "hk-01", "old-secret")

	node.Secret = "new-secret"
	if err := svc.UpdateNode(node); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	got, err := manager.DB.SQLite.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Secret != "new-secret" {
		t.Fatalf("stored secret = %q, want new-secret", got.Secret)
	}
	if got.ConfigVersion != 2 {
		t.Errorf("config_version = %d, want 2", got.ConfigVersion)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != node.ID {
		t.Errorf("notified = %v, want [%d]", notifier.notified, node.ID)
	}

	// 原样重发同一份配置不再递增版本
	if err := svc.UpdateNode(node); err != nil {
		t.Fatalf("UpdateNode repeat: %v", err)
	}
	got, _ = manager.DB.SQLite.GetNode(node.ID)
	if got.ConfigVersion != 2 {
		t.Errorf("config_version after no-op update = %d, want 2", got.ConfigVersion)
	}
	if len(notifier.notified) != 1 {
		t.Errorf("notified = %v after no-op update, want one entry", notifier.notified)
	}
}

// 节点名称唯一
func TestCreateNodeDuplicateName(t *testing.T) {
	manager := newTestManager(t)
	svc := NewNodeService(manager)

	seedNode(t, manager, "hk-01", "s1")

	dup := &dbinit.Node{
		Name:     "hk-01",
		Host:     "hk-01b.example.com",
		Port:     8389,
		Protocol: "shadowsocks",
		Secret:   "s2",
	}
	if err := svc.CreateNode(dup); err == nil {
		t.Fatal("expected error creating node with duplicate name")
	}
}
