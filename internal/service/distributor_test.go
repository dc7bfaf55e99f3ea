package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/model"
)

func TestGetAgentConfig(t *testing.T) {
	manager := newTestManager(t)
	svc := NewDistributorService(manager)

	node := seedNode(t, manager, "hk-01", "good-secret")
	node.ProtocolConfig = `{"cipher":"aes-256-gcm","udp":true}`
	if err := manager.DB.SQLite.UpdateNode(node, true); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	cfg, err := svc.GetAgentConfig(node.ID, "good-secret")
	if err != nil {
		t.Fatalf("GetAgentConfig: %v", err)
	}
	if cfg.NodeID != node.ID || cfg.Port != 8388 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Secret != "good-secret" {
		t.Errorf("secret = %q", cfg.Secret)
	}
	// 创建时版本1，配置更新后递增
	if cfg.Version != 2 {
		t.Errorf("version = %d, want 2", cfg.Version)
	}
	if cfg.ProtocolConfig["cipher"] != "aes-256-gcm" {
		t.Errorf("protocol config = %v", cfg.ProtocolConfig)
	}

	if _, err := svc.GetAgentConfig(node.ID, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.GetAgentConfig(9999, "good-secret"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func seedQuota(t *testing.T, manager *db.Manager, subscriberID int64, quotaBytes int64) *dbinit.SubscriberQuota {
	t.Helper()
	quota := &dbinit.SubscriberQuota{
		SubscriberID: subscriberID,
		PackageID:    1,
		Token:        fmt.Sprintf("tok-%d", subscriberID),
		TrafficQuota: quotaBytes,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Status:       QuotaStatusActive,
	}
	if err := manager.DB.SQLite.CreateQuota(quota); err != nil {
		t.Fatalf("CreateQuota: %v", err)
	}
	return quota
}

func TestHandleReport(t *testing.T) {
	manager := newTestManager(t)
	svc := NewUsageService(manager)

	node := seedNode(t, manager, "hk-01", "s")
	quota := seedQuota(t, manager, 7, 1_000_000)

	report := &model.UsageReport{
		NodeID:        node.ID,
		Secret:        "s",
		SubscriberID:  7,
		UploadDelta:   100_000,
		DownloadDelta: 300_000,
		ObservedAt:    time.Now(),
	}
	if err := svc.HandleReport(report); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}

	gotQuota, _ := manager.DB.SQLite.GetQuota(quota.ID)
	if gotQuota.TrafficUsed != 400_000 {
		t.Errorf("traffic_used = %d, want 400000", gotQuota.TrafficUsed)
	}
	gotNode, _ := manager.DB.SQLite.GetNode(node.ID)
	if gotNode.TotalUpload != 100_000 || gotNode.TotalDownload != 300_000 {
		t.Errorf("node traffic = %d/%d", gotNode.TotalUpload, gotNode.TotalDownload)
	}

	// 第二笔入账后越过配额边界，派生状态变为耗尽
	report.UploadDelta = 200_000
	report.DownloadDelta = 500_000
	if err := svc.HandleReport(report); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	gotQuota, _ = manager.DB.SQLite.GetQuota(quota.ID)
	if gotQuota.TrafficUsed != 1_100_000 {
		t.Errorf("traffic_used = %d, want 1100000", gotQuota.TrafficUsed)
	}
	if gotQuota.Status != QuotaStatusExhausted {
		t.Errorf("status = %q, want exhausted", gotQuota.Status)
	}
}

func TestHandleReportErrors(t *testing.T) {
	manager := newTestManager(t)
	svc := NewUsageService(manager)

	node := seedNode(t, manager, "hk-01", "s")
	seedQuota(t, manager, 7, 1_000_000)

	tests := []struct {
		name    string
		report  *model.UsageReport
		wantErr error
	}{
		{
			name: "负增量被拒绝",
			report: &model.UsageReport{
				NodeID: node.ID, Secret: "s", SubscriberID: 7,
				UploadDelta: -1, DownloadDelta: 100,
			},
			wantErr: ErrNonMonotonic,
		},
		{
			name: "密钥错误",
			report: &model.UsageReport{
				NodeID: node.ID, Secret: "bad", SubscriberID: 7,
				UploadDelta: 1, DownloadDelta: 1,
			},
			wantErr: ErrUnauthorized,
		},
		{
			name: "未知订阅者",
			report: &model.UsageReport{
				NodeID: node.ID, Secret: "s", SubscriberID: 999,
				UploadDelta: 1, DownloadDelta: 1,
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.HandleReport(tt.report); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
