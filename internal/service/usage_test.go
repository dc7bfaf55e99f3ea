package service

import (
	"testing"
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

func TestEvaluateQuotaStatus(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		quota  *dbinit.SubscriberQuota
		status string
	}{
		{
			name: "未用尽未到期",
			quota: &dbinit.SubscriberQuota{
				TrafficQuota: 1_000_000,
				TrafficUsed:  400_000,
				ExpiresAt:    future,
			},
			status: QuotaStatusActive,
		},
		{
			name: "刚好用满不算耗尽",
			quota: &dbinit.SubscriberQuota{
				TrafficQuota: 1_000_000,
				TrafficUsed:  1_000_000,
				ExpiresAt:    future,
			},
			status: QuotaStatusActive,
		},
		{
			name: "超出配额即耗尽",
			quota: &dbinit.SubscriberQuota{
				TrafficQuota: 1_000_000,
				TrafficUsed:  1_100_000,
				ExpiresAt:    future,
			},
			status: QuotaStatusExhausted,
		},
		{
			name: "到期优先于耗尽",
			quota: &dbinit.SubscriberQuota{
				TrafficQuota: 1_000_000,
				TrafficUsed:  1_100_000,
				ExpiresAt:    past,
			},
			status: QuotaStatusExpired,
		},
		{
			name: "到期但未用尽",
			quota: &dbinit.SubscriberQuota{
				TrafficQuota: 1_000_000,
				TrafficUsed:  100,
				ExpiresAt:    past,
			},
			status: QuotaStatusExpired,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateQuotaStatus(tt.quota, now); got != tt.status {
				t.Errorf("EvaluateQuotaStatus = %q, want %q", got, tt.status)
			}
		})
	}
}

// 两个节点对同一订阅的增量依次入账后跨过边界
func TestQuotaCrossesBoundaryAfterSecondReport(t *testing.T) {
	now := time.Now()
	quota := &dbinit.SubscriberQuota{
		TrafficQuota: 1_000_000,
		ExpiresAt:    now.Add(time.Hour),
	}

	quota.TrafficUsed += 400_000
	if got := EvaluateQuotaStatus(quota, now); got != QuotaStatusActive {
		t.Fatalf("after first report: %q, want active", got)
	}

	quota.TrafficUsed += 700_000
	if got := EvaluateQuotaStatus(quota, now); got != QuotaStatusExhausted {
		t.Fatalf("after second report: %q, want exhausted", got)
	}
}
