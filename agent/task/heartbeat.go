package task

import (
	"context"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/api"
	"github.com/cod3vil/niuss-sub001/agent/monitor"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// HeartbeatTask 心跳任务
// 失败只记日志，下个周期重试，不影响其他任务
type HeartbeatTask struct {
	client   *api.Client
	monitor  *monitor.SystemMonitor
	interval time.Duration
	stopChan chan struct{}
}

// NewHeartbeatTask 创建心跳任务
func NewHeartbeatTask(client *api.Client, sysMonitor *monitor.SystemMonitor, interval time.Duration) *HeartbeatTask {
	return &HeartbeatTask{
		client:   client,
		monitor:  sysMonitor,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 启动心跳循环
func (t *HeartbeatTask) Start() {
	go t.loop()
	logger.Info("心跳任务已启动", zap.Duration("interval", t.interval))
}

// Stop 停止心跳循环
func (t *HeartbeatTask) Stop() {
	close(t.stopChan)
}

func (t *HeartbeatTask) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.beat()
	for {
		select {
		case <-ticker.C:
			t.beat()
		case <-t.stopChan:
			return
		}
	}
}

func (t *HeartbeatTask) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	metrics := model.NodeMetrics{
		CPUUsage:    t.monitor.CPUUsage(),
		MemoryUsage: t.monitor.MemoryUsage(),
		Connections: int(t.monitor.Connections()),
		Uptime:      t.monitor.Uptime(),
	}

	if err := t.client.Heartbeat(ctx, metrics); err != nil {
		logger.Warn("心跳发送失败", zap.Error(err))
		return
	}

	logger.Debug("心跳已发送",
		zap.Float64("cpuUsage", metrics.CPUUsage),
		zap.Int("connections", metrics.Connections))
}
