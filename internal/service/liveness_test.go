package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/db/sqlite"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"
)

func init() {
	_ = logger.Init(&logger.Config{Level: "error", Format: "console"})
}

func newTestManager(t *testing.T) *db.Manager {
	t.Helper()
	sqliteDB, err := sqlite.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { sqliteDB.Close() })
	return &db.Manager{DB: db.NewDB(sqliteDB)}
}

func seedNode(t *testing.T, manager *db.Manager, name, secret string) *dbinit.Node {
	t.Helper()
	node := &dbinit.Node{
		Name:     name,
		Host:     name + ".example.com",
		Port:     8388,
		Protocol: "shadowsocks",
		Secret:   secret,
		Status:   "offline",
	}
	if err := manager.DB.SQLite.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return node
}

func TestHandleHeartbeat(t *testing.T) {
	manager := newTestManager(t)
	svc := NewLivenessService(manager, 180*time.Second, 30*time.Second)
	node := seedNode(t, manager, "hk-01", "good-secret")

	tests := []struct {
		name    string
		req     *model.HeartbeatRequest
		wantErr error
	}{
		{
			name: "正常心跳",
			req:  &model.HeartbeatRequest{NodeID: node.ID, Secret: "good-secret"},
		},
		{
			name:    "密钥错误",
			req:     &model.HeartbeatRequest{NodeID: node.ID, Secret: "bad-secret"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "未知节点不被隐式创建",
			req:     &model.HeartbeatRequest{NodeID: 9999, Secret: "good-secret"},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := svc.HandleHeartbeat(tt.req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("HandleHeartbeat: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// 认证失败与不存在必须是可区分的错误
	errAuth := svc.HandleHeartbeat(&model.HeartbeatRequest{NodeID: node.ID, Secret: "x"})
	errMissing := svc.HandleHeartbeat(&model.HeartbeatRequest{NodeID: 9999, Secret: "x"})
	if errors.Is(errAuth, ErrNotFound) || errors.Is(errMissing, ErrUnauthorized) {
		t.Error("auth and not-found errors must be distinguishable")
	}

	got, _ := manager.DB.SQLite.GetNode(node.ID)
	if got.Status != "online" {
		t.Errorf("status = %q, want online after heartbeat", got.Status)
	}
}

func TestSweepMarksStaleOffline(t *testing.T) {
	manager := newTestManager(t)
	svc := NewLivenessService(manager, 180*time.Second, 30*time.Second)

	fresh := seedNode(t, manager, "fresh", "s1")
	stale := seedNode(t, manager, "stale", "s2")

	now := time.Now()
	if err := manager.DB.SQLite.TouchNodeHeartbeat(fresh.ID, now.Add(-10*time.Second), 0); err != nil {
		t.Fatalf("TouchNodeHeartbeat: %v", err)
	}
	if err := manager.DB.SQLite.TouchNodeHeartbeat(stale.ID, now.Add(-200*time.Second), 0); err != nil {
		t.Fatalf("TouchNodeHeartbeat: %v", err)
	}

	marked, err := svc.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if marked != 1 {
		t.Fatalf("marked = %d, want 1", marked)
	}

	got, _ := manager.DB.SQLite.GetNode(fresh.ID)
	if got.Status != "online" {
		t.Errorf("fresh status = %q, want online", got.Status)
	}
	got, _ = manager.DB.SQLite.GetNode(stale.ID)
	if got.Status != "offline" {
		t.Errorf("stale status = %q, want offline", got.Status)
	}
}
