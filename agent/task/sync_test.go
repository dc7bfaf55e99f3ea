package task

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/api"
	"github.com/cod3vil/niuss-sub001/agent/config"
	"github.com/cod3vil/niuss-sub001/agent/engine"
	"github.com/cod3vil/niuss-sub001/agent/state"
	"github.com/cod3vil/niuss-sub001/internal/model"
)

// fakeConfigPanel 返回可变版本的节点配置
type fakeConfigPanel struct {
	mu  sync.Mutex
	cfg model.AgentConfig
}

func (f *fakeConfigPanel) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    f.cfg,
		})
	}
}

func (f *fakeConfigPanel) setVersion(v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.Version = v
}

func newSyncFixture(t *testing.T, panel *fakeConfigPanel) (*SyncTask, *state.Store, string) {
	t.Helper()

	panelSrv := httptest.NewServer(panel.handler())
	t.Cleanup(panelSrv.Close)

	engineConfigPath := filepath.Join(t.TempDir(), "engine.json")
	cfg := &config.Config{
		Node:  config.NodeConfig{ID: 1, Secret: "s"},
		Panel: config.PanelConfig{URL: panelSrv.URL, Timeout: 5},
		Engine: config.EngineConfig{
			ConfigPath: engineConfigPath,
		},
		StatePath: filepath.Join(t.TempDir(), "state.json"),
	}

	store, err := state.Load(cfg.StatePath)
	if err != nil {
		t.Fatalf("state.Load: %v", err)
	}

	task := NewSyncTask(api.NewClient(cfg), engine.NewSupervisor(&cfg.Engine), store, time.Minute)
	return task, store, engineConfigPath
}

func TestSyncAppliesNewVersion(t *testing.T) {
	panel := &fakeConfigPanel{
		cfg: model.AgentConfig{
			NodeID:   1,
			Protocol: "shadowsocks",
			Port:     8388,
			Secret:   "node-secret",
			ProtocolConfig: map[string]interface{}{
				"cipher": "aes-256-gcm",
			},
			Version: 3,
		},
	}
	task, store, engineConfigPath := newSyncFixture(t, panel)

	task.sync()

	if got := store.AppliedVersion(); got != 3 {
		t.Fatalf("applied version = %d, want 3", got)
	}

	// 引擎配置已原子写入
	data, err := os.ReadFile(engineConfigPath)
	if err != nil {
		t.Fatalf("read engine config: %v", err)
	}
	var engineConf map[string]interface{}
	if err := json.Unmarshal(data, &engineConf); err != nil {
		t.Fatalf("parse engine config: %v", err)
	}
	if engineConf["protocol"] != "shadowsocks" {
		t.Errorf("protocol = %v", engineConf["protocol"])
	}
	if engineConf["secret"] != "node-secret" {
		t.Errorf("secret = %v", engineConf["secret"])
	}
}

func TestSyncSkipsSameVersion(t *testing.T) {
	panel := &fakeConfigPanel{
		cfg: model.AgentConfig{NodeID: 1, Protocol: "trojan", Port: 443, Version: 1},
	}
	task, store, engineConfigPath := newSyncFixture(t, panel)

	task.sync()
	if store.AppliedVersion() != 1 {
		t.Fatalf("applied version = %d", store.AppliedVersion())
	}

	// 同版本不重写配置
	info1, err := os.Stat(engineConfigPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	task.sync()
	info2, _ := os.Stat(engineConfigPath)
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("engine config rewritten for unchanged version")
	}

	// 版本变化触发重新应用
	panel.setVersion(2)
	task.sync()
	if store.AppliedVersion() != 2 {
		t.Errorf("applied version = %d, want 2", store.AppliedVersion())
	}
}
