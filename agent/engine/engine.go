package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/config"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// SubscriberStats 引擎统计接口返回的累计计数
type SubscriberStats struct {
	Upload   int64 `json:"upload"`
	Download int64 `json:"download"`
}

// Supervisor 代理引擎监督器
// 负责引擎进程的启停与重启、配置文件的原子写入和重载触发。
// 引擎挂掉时用最后一次成功应用的配置拉起，绝不让引擎无配置运行
type Supervisor struct {
	cfg        *config.EngineConfig
	httpClient *http.Client

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopChan chan struct{}
	stopped  bool
}

// NewSupervisor 创建引擎监督器
func NewSupervisor(cfg *config.EngineConfig) *Supervisor {
	return &Supervisor{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		stopChan: make(chan struct{}),
	}
}

// Start 启动监督循环
// 配置文件不存在时先等待首次同步写入
func (s *Supervisor) Start() {
	go s.superviseLoop()
	logger.Info("引擎监督器已启动", zap.String("binary", s.cfg.Binary))
}

// Stop 停止监督并终止引擎进程
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	close(s.stopChan)
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
	s.mu.Unlock()
	logger.Info("引擎监督器已停止")
}

// superviseLoop 进程存活检查循环
func (s *Supervisor) superviseLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ensureRunning()
		case <-s.stopChan:
			return
		}
	}
}

// ensureRunning 引擎不在运行时用最后应用的配置拉起
func (s *Supervisor) ensureRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.cmd != nil && s.cmd.ProcessState == nil {
		return
	}

	if _, err := os.Stat(s.cfg.ConfigPath); err != nil {
		// 尚未有可用配置，等首次同步
		return
	}

	if err := s.startProcess(); err != nil {
		logger.Error("拉起引擎进程失败", zap.Error(err))
	}
}

func (s *Supervisor) startProcess() error {
	args := append([]string{}, s.cfg.Args...)
	args = append(args, "-c", s.cfg.ConfigPath)

	cmd := exec.Command(s.cfg.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	s.cmd = cmd
	logger.Info("引擎进程已启动", zap.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warn("引擎进程退出", zap.Error(err))
		}
	}()
	return nil
}

// ApplyConfig 原子写入引擎配置并触发重载
// 先写临时文件再改名，重载失败时旧配置仍然生效
func (s *Supervisor) ApplyConfig(cfg *model.AgentConfig) error {
	engineConf := map[string]interface{}{
		"protocol": cfg.Protocol,
		"port":     cfg.Port,
		"secret":   cfg.Secret,
		"settings": cfg.ProtocolConfig,
	}
	data, err := json.MarshalIndent(engineConf, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化引擎配置失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.ConfigPath), 0o755); err != nil {
		return err
	}
	tmp := s.cfg.ConfigPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("写入引擎配置失败: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.ConfigPath); err != nil {
		return fmt.Errorf("替换引擎配置失败: %w", err)
	}

	return s.reload()
}

// reload 通知引擎重新加载配置
func (s *Supervisor) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil || s.cmd.ProcessState != nil {
		// 进程不在，监督循环会用新配置拉起
		return nil
	}
	if err := s.cmd.Process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("发送重载信号失败: %w", err)
	}
	logger.Info("已触发引擎配置重载")
	return nil
}

// Stats 读取引擎的累计流量统计
// 返回 subscriberID -> 累计计数
func (s *Supervisor) Stats(ctx context.Context) (map[int64]SubscriberStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.StatsURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求引擎统计接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("引擎统计接口返回 %d", resp.StatusCode)
	}

	var stats map[int64]SubscriberStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("解析引擎统计失败: %w", err)
	}
	return stats, nil
}
