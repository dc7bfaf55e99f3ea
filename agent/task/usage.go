package task

import (
	"context"
	"errors"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/api"
	"github.com/cod3vil/niuss-sub001/agent/engine"
	"github.com/cod3vil/niuss-sub001/agent/monitor"
	"github.com/cod3vil/niuss-sub001/agent/state"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// UsageTask 流量上报任务
// 增量相对"最后被面板确认的累计值"计算：上报失败不推进基线，
// 未送达的增量自然并入下个周期，既不丢也不重复计
type UsageTask struct {
	client     *api.Client
	supervisor *engine.Supervisor
	store      *state.Store
	monitor    *monitor.SystemMonitor
	interval   time.Duration
	stopChan   chan struct{}
}

// NewUsageTask 创建流量上报任务
func NewUsageTask(client *api.Client, supervisor *engine.Supervisor, store *state.Store, sysMonitor *monitor.SystemMonitor, interval time.Duration) *UsageTask {
	return &UsageTask{
		client:     client,
		supervisor: supervisor,
		store:      store,
		monitor:    sysMonitor,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动上报循环
func (t *UsageTask) Start() {
	go t.loop()
	logger.Info("流量上报任务已启动", zap.Duration("interval", t.interval))
}

// Stop 停止上报循环
func (t *UsageTask) Stop() {
	close(t.stopChan)
}

func (t *UsageTask) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.report()
		case <-t.stopChan:
			return
		}
	}
}

func (t *UsageTask) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stats, err := t.supervisor.Stats(ctx)
	if err != nil {
		logger.Warn("读取引擎统计失败", zap.Error(err))
		return
	}

	// 引擎侧活跃订阅数同步给心跳用的连接计数
	t.monitor.SetConnections(int64(len(stats)))

	now := time.Now()
	for subscriberID, current := range stats {
		t.reportSubscriber(ctx, subscriberID, current, now)
	}
}

func (t *UsageTask) reportSubscriber(ctx context.Context, subscriberID int64, current engine.SubscriberStats, now time.Time) {
	acked := t.store.LastAcked(subscriberID)

	uploadDelta := current.Upload - acked.Upload
	downloadDelta := current.Download - acked.Download

	// 引擎重启后计数器归零，把当前累计值当作本周期增量并重置基线
	if uploadDelta < 0 || downloadDelta < 0 {
		logger.Warn("引擎计数器回退，按重启处理",
			zap.Int64("subscriberID", subscriberID),
			zap.Int64("ackedUpload", acked.Upload),
			zap.Int64("currentUpload", current.Upload))
		uploadDelta = current.Upload
		downloadDelta = current.Download
	}

	if uploadDelta == 0 && downloadDelta == 0 {
		return
	}

	err := t.client.ReportUsage(ctx, subscriberID, uploadDelta, downloadDelta, now)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound) {
			// 需要管理员介入，重试无意义但基线保留
			logger.Error("流量上报被拒绝",
				zap.Int64("subscriberID", subscriberID),
				zap.Error(err))
			return
		}
		// 瞬时失败：基线不动，增量并入下个周期
		logger.Warn("流量上报失败，下个周期合并重传",
			zap.Int64("subscriberID", subscriberID),
			zap.Error(err))
		return
	}

	// 面板已确认，推进基线
	if err := t.store.Ack(subscriberID, state.Counters{
		Upload:   current.Upload,
		Download: current.Download,
	}); err != nil {
		logger.Error("保存上报基线失败", zap.Error(err))
	}
}
