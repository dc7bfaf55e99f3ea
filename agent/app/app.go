package app

import (
	"fmt"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/api"
	"github.com/cod3vil/niuss-sub001/agent/config"
	"github.com/cod3vil/niuss-sub001/agent/engine"
	"github.com/cod3vil/niuss-sub001/agent/monitor"
	"github.com/cod3vil/niuss-sub001/agent/state"
	"github.com/cod3vil/niuss-sub001/agent/task"
	"github.com/cod3vil/niuss-sub001/agent/ws"
	"github.com/cod3vil/niuss-sub001/pkg/logger"
)

// App Agent 应用装配
// 三个周期任务彼此独立，任何一个失败都不阻塞其他任务
type App struct {
	cfg        *config.Config
	store      *state.Store
	supervisor *engine.Supervisor
	sysMonitor *monitor.SystemMonitor
	heartbeat  *task.HeartbeatTask
	usage      *task.UsageTask
	sync       *task.SyncTask
	wsClient   *ws.Client
}

// New 装配 Agent
func New(cfg *config.Config) (*App, error) {
	store, err := state.Load(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("加载本地状态失败: %w", err)
	}

	client := api.NewClient(cfg)
	supervisor := engine.NewSupervisor(&cfg.Engine)
	sysMonitor := monitor.NewSystemMonitor()

	syncTask := task.NewSyncTask(client, supervisor, store,
		time.Duration(cfg.Tasks.SyncInterval)*time.Second)

	return &App{
		cfg:        cfg,
		store:      store,
		supervisor: supervisor,
		sysMonitor: sysMonitor,
		heartbeat: task.NewHeartbeatTask(client, sysMonitor,
			time.Duration(cfg.Tasks.HeartbeatInterval)*time.Second),
		usage: task.NewUsageTask(client, supervisor, store, sysMonitor,
			time.Duration(cfg.Tasks.UsageInterval)*time.Second),
		sync:     syncTask,
		wsClient: ws.NewClient(cfg, syncTask.Trigger),
	}, nil
}

// Start 启动所有组件
func (a *App) Start() {
	a.sysMonitor.Start()
	a.supervisor.Start()
	a.sync.Start()
	a.heartbeat.Start()
	a.usage.Start()
	a.wsClient.Start()

	logger.Info("Agent 已启动")
}

// Stop 停止所有组件
func (a *App) Stop() {
	a.wsClient.Stop()
	a.usage.Stop()
	a.heartbeat.Stop()
	a.sync.Stop()
	a.supervisor.Stop()
	a.sysMonitor.Stop()

	logger.Info("Agent 已停止")
}
