package service

import (
	"fmt"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	"github.com/cod3vil/niuss-sub001/internal/metrics"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// LivenessService 节点存活跟踪服务
// 心跳只负责写入时间戳并置为在线，离线判定由周期扫描完成，
// 不为每个节点单独起定时器
type LivenessService struct {
	db            *db.Manager
	staleness     time.Duration
	sweepInterval time.Duration
	stopChan      chan struct{}
}

// NewLivenessService 创建存活跟踪服务
func NewLivenessService(dbManager *db.Manager, staleness, sweepInterval time.Duration) *LivenessService {
	return &LivenessService{
		db:            dbManager,
		staleness:     staleness,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动离线扫描
func (s *LivenessService) Start() {
	logger.Info("存活跟踪服务启动",
		zap.Duration("staleness", s.staleness),
		zap.Duration("sweepInterval", s.sweepInterval))

	go s.sweepLoop()
}

// Stop 停止服务
func (s *LivenessService) Stop() {
	close(s.stopChan)
}

// HandleHeartbeat 处理一次心跳
// 未知节点或密钥不匹配直接拒绝，不会隐式创建节点
func (s *LivenessService) HandleHeartbeat(req *model.HeartbeatRequest) error {
	node, err := s.db.DB.SQLite.GetNode(req.NodeID)
	if err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if node == nil {
		metrics.HeartbeatsTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: node %d", ErrNotFound, req.NodeID)
	}
	if node.Secret != req.Secret {
		metrics.HeartbeatsTotal.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorized
	}

	now := time.Now()
	if err := s.db.DB.SQLite.TouchNodeHeartbeat(node.ID, now, req.Metrics.Connections); err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// 缓存节点状态，准入侧低成本读取
	if s.db.HasCache() {
		_ = s.db.Cache.Redis.SetNodeStatus(node.ID, string(model.NodeStatusOnline), s.staleness)
	}

	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()

	logger.Debug("心跳已接收",
		zap.Int64("nodeID", node.ID),
		zap.Float64("cpuUsage", req.Metrics.CPUUsage),
		zap.Int("connections", req.Metrics.Connections))

	return nil
}

// Sweep 执行一次离线扫描，返回被置为离线的节点数
func (s *LivenessService) Sweep(now time.Time) (int64, error) {
	cutoff := now.Add(-s.staleness)
	marked, err := s.db.DB.SQLite.MarkStaleNodesOffline(cutoff)
	if err != nil {
		return 0, err
	}

	if marked > 0 {
		logger.Info("离线扫描完成", zap.Int64("markedOffline", marked))
	}

	// 刷新在线节点数指标
	count, err := s.db.DB.SQLite.CountNodesByStatus(string(model.NodeStatusOnline))
	if err == nil {
		metrics.NodesOnline.Set(float64(count))
	}

	return marked, nil
}

// sweepLoop 周期扫描循环
func (s *LivenessService) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			logger.Info("存活跟踪服务停止")
			return
		case <-ticker.C:
			if _, err := s.Sweep(time.Now()); err != nil {
				logger.Error("离线扫描失败", zap.Error(err))
			}
		}
	}
}
