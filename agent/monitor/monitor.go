package monitor

import (
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMonitor 系统指标监控
// 后台周期采样，心跳任务读取最近一次快照
type SystemMonitor struct {
	cpuUsage    atomic.Value // float64
	memUsage    atomic.Value // float64
	connections atomic.Int64
	stopChan    chan struct{}
}

// NewSystemMonitor 创建系统监控
func NewSystemMonitor() *SystemMonitor {
	sm := &SystemMonitor{
		stopChan: make(chan struct{}),
	}
	sm.cpuUsage.Store(float64(0))
	sm.memUsage.Store(float64(0))
	return sm
}

// Start 启动采样
func (sm *SystemMonitor) Start() {
	go sm.collectLoop()
}

// Stop 停止采样
func (sm *SystemMonitor) Stop() {
	close(sm.stopChan)
}

func (sm *SystemMonitor) collectLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	sm.collect()
	for {
		select {
		case <-ticker.C:
			sm.collect()
		case <-sm.stopChan:
			return
		}
	}
}

func (sm *SystemMonitor) collect() {
	if cpuPercent, err := cpu.Percent(time.Second, false); err == nil && len(cpuPercent) > 0 {
		sm.cpuUsage.Store(cpuPercent[0])
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		sm.memUsage.Store(vmStat.UsedPercent)
	}
}

// CPUUsage 最近一次采样的CPU使用率（百分比）
func (sm *SystemMonitor) CPUUsage() float64 {
	return sm.cpuUsage.Load().(float64)
}

// MemoryUsage 最近一次采样的内存使用率（百分比）
func (sm *SystemMonitor) MemoryUsage() float64 {
	return sm.memUsage.Load().(float64)
}

// SetConnections 更新连接数（由引擎统计同步）
func (sm *SystemMonitor) SetConnections(count int64) {
	sm.connections.Store(count)
}

// Connections 当前连接数
func (sm *SystemMonitor) Connections() int64 {
	return sm.connections.Load()
}

// Uptime 系统运行时长（秒）
func (sm *SystemMonitor) Uptime() int64 {
	uptime, err := host.Uptime()
	if err != nil {
		return 0
	}
	return int64(uptime)
}
