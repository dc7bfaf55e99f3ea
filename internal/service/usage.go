package service

import (
	"fmt"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/metrics"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 配额状态
const (
	QuotaStatusActive    = "active"
	QuotaStatusExpired   = "expired"
	QuotaStatusExhausted = "exhausted"
)

// UsageService 用量聚合服务
// 把 Agent 上报的增量折叠进节点与订阅配额的累计计数器。
// 每条上报独立处理，服务本身不做去重：幂等性由 Agent 的
// "最后确认累计值" 机制保证
type UsageService struct {
	db *db.Manager
}

// NewUsageService 创建用量聚合服务
func NewUsageService(dbManager *db.Manager) *UsageService {
	return &UsageService{
		db: dbManager,
	}
}

// HandleReport 处理一条流量增量上报
// 存储失败返回 ErrTransient，由上报方在下个周期合并重传
func (s *UsageService) HandleReport(report *model.UsageReport) error {
	// 负增量意味着 Agent 计数器回退，拒绝并记录数据完整性告警
	if report.UploadDelta < 0 || report.DownloadDelta < 0 {
		metrics.UsageReportsTotal.WithLabelValues("rejected").Inc()
		logger.Warn("拒绝回退的流量上报",
			zap.Int64("nodeID", report.NodeID),
			zap.Int64("subscriberID", report.SubscriberID),
			zap.Int64("uploadDelta", report.UploadDelta),
			zap.Int64("downloadDelta", report.DownloadDelta))
		return ErrNonMonotonic
	}

	node, err := s.db.DB.SQLite.GetNode(report.NodeID)
	if err != nil {
		metrics.UsageReportsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if node == nil {
		metrics.UsageReportsTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: node %d", ErrNotFound, report.NodeID)
	}
	if node.Secret != report.Secret {
		metrics.UsageReportsTotal.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorized
	}

	quota, err := s.db.DB.SQLite.GetQuotaBySubscriber(report.SubscriberID)
	if err != nil {
		metrics.UsageReportsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if quota == nil {
		metrics.UsageReportsTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: subscriber %d", ErrNotFound, report.SubscriberID)
	}

	// 节点与配额两侧计数器在同一事务内自增：半程失败会整体回滚，
	// 上报方按 ErrTransient 重传时不会把节点侧增量记两次
	if err := s.db.DB.SQLite.ApplyUsageDelta(node.ID, quota.ID, report.UploadDelta, report.DownloadDelta); err != nil {
		metrics.UsageReportsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	metrics.TrafficBytes.WithLabelValues("upload").Add(float64(report.UploadDelta))
	metrics.TrafficBytes.WithLabelValues("download").Add(float64(report.DownloadDelta))

	// 上报日志只用于排查，失败不影响主流程
	usageLog := &dbinit.UsageLog{
		ID:            uuid.New().String(),
		NodeID:        report.NodeID,
		SubscriberID:  report.SubscriberID,
		UploadDelta:   report.UploadDelta,
		DownloadDelta: report.DownloadDelta,
		ObservedAt:    report.ObservedAt,
	}
	if err := s.db.DB.SQLite.CreateUsageLog(usageLog); err != nil {
		logger.Warn("写入上报日志失败", zap.Error(err))
	}

	// 应用增量后重新评估配额状态
	if err := s.ReevaluateQuota(quota.ID); err != nil {
		logger.Error("配额状态评估失败",
			zap.Int64("quotaID", quota.ID),
			zap.Error(err))
	}

	metrics.UsageReportsTotal.WithLabelValues("ok").Inc()
	return nil
}

// EvaluateQuotaStatus 按不变式派生配额状态
// 到期优先于耗尽，未到期时超额即耗尽
func EvaluateQuotaStatus(quota *dbinit.SubscriberQuota, now time.Time) string {
	if now.After(quota.ExpiresAt) {
		return QuotaStatusExpired
	}
	if quota.TrafficUsed > quota.TrafficQuota {
		return QuotaStatusExhausted
	}
	return QuotaStatusActive
}

// ReevaluateQuota 重新读取配额并落盘派生状态
// 刚越过耗尽边界时写入准入侧可见的耗尽标记
func (s *UsageService) ReevaluateQuota(quotaID int64) error {
	quota, err := s.db.DB.SQLite.GetQuota(quotaID)
	if err != nil {
		return err
	}
	if quota == nil {
		return fmt.Errorf("%w: quota %d", ErrNotFound, quotaID)
	}

	status := EvaluateQuotaStatus(quota, time.Now())
	if status == quota.Status {
		return nil
	}

	if err := s.db.DB.SQLite.SetQuotaStatus(quota.ID, status); err != nil {
		return err
	}

	if status == QuotaStatusExhausted {
		metrics.QuotasExhausted.Inc()
		logger.Info("订阅配额耗尽",
			zap.Int64("subscriberID", quota.SubscriberID),
			zap.Int64("trafficUsed", quota.TrafficUsed),
			zap.Int64("trafficQuota", quota.TrafficQuota))

		if s.db.HasCache() {
			if err := s.db.Cache.Redis.SetQuotaExhausted(quota.SubscriberID, true); err != nil {
				logger.Warn("写入配额耗尽标记失败", zap.Error(err))
			}
		}
	}

	return nil
}
