package service

import (
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// CleanupService 过期数据清理服务
// 上报日志只作短期排查用途，超过保留期的定期删除
type CleanupService struct {
	db        *db.Manager
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
}

// NewCleanupService 创建清理服务
func NewCleanupService(dbManager *db.Manager, retention time.Duration) *CleanupService {
	return &CleanupService{
		db:        dbManager,
		retention: retention,
		interval:  1 * time.Hour,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动清理服务
func (c *CleanupService) Start() {
	logger.Info("清理服务已启动",
		zap.Duration("retention", c.retention),
		zap.Duration("interval", c.interval))
	go c.cleanupLoop()
}

// Stop 停止清理服务
func (c *CleanupService) Stop() {
	close(c.stopChan)
	logger.Info("清理服务已停止")
}

func (c *CleanupService) cleanupLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *CleanupService) cleanup() {
	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.db.DB.SQLite.DeleteUsageLogsBefore(cutoff)
	if err != nil {
		logger.Error("清理上报日志失败", zap.Error(err))
		return
	}
	if deleted > 0 {
		logger.Info("清理过期上报日志",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}
