package task

import (
	"context"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/api"
	"github.com/cod3vil/niuss-sub001/agent/engine"
	"github.com/cod3vil/niuss-sub001/agent/state"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// SyncTask 配置同步任务
// 周期比对面板的配置版本，不同则原子写入并触发引擎重载。
// 重载失败时保留旧配置，记日志等下个周期重试
type SyncTask struct {
	client     *api.Client
	supervisor *engine.Supervisor
	store      *state.Store
	interval   time.Duration
	trigger    chan struct{}
	stopChan   chan struct{}
}

// NewSyncTask 创建配置同步任务
func NewSyncTask(client *api.Client, supervisor *engine.Supervisor, store *state.Store, interval time.Duration) *SyncTask {
	return &SyncTask{
		client:     client,
		supervisor: supervisor,
		store:      store,
		interval:   interval,
		trigger:    make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
}

// Start 启动同步循环
func (t *SyncTask) Start() {
	go t.loop()
	logger.Info("配置同步任务已启动", zap.Duration("interval", t.interval))
}

// Stop 停止同步循环
func (t *SyncTask) Stop() {
	close(t.stopChan)
}

// Trigger 立即触发一次同步（来自推送通道）
// 已有待处理触发时合并
func (t *SyncTask) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

func (t *SyncTask) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.sync()
	for {
		select {
		case <-ticker.C:
			t.sync()
		case <-t.trigger:
			t.sync()
		case <-t.stopChan:
			return
		}
	}
}

func (t *SyncTask) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := t.client.PullConfig(ctx)
	if err != nil {
		logger.Warn("拉取配置失败", zap.Error(err))
		return
	}

	applied := t.store.AppliedVersion()
	if cfg.Version == applied {
		return
	}

	logger.Info("检测到配置变更",
		zap.Int64("appliedVersion", applied),
		zap.Int64("newVersion", cfg.Version))

	if err := t.supervisor.ApplyConfig(cfg); err != nil {
		// 旧配置仍在生效，下个周期重试
		logger.Error("应用新配置失败", zap.Error(err))
		return
	}

	if err := t.store.SetAppliedVersion(cfg.Version); err != nil {
		logger.Error("保存配置版本失败", zap.Error(err))
		return
	}

	logger.Info("配置已更新", zap.Int64("version", cfg.Version))
}
