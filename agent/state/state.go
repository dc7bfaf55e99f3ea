package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Counters 累计流量计数
type Counters struct {
	Upload   int64 `json:"upload"`
	Download int64 `json:"download"`
}

// persisted 落盘格式
type persisted struct {
	AppliedVersion int64              `json:"applied_version"`
	LastAcked      map[int64]Counters `json:"last_acked"` // subscriberID -> 最后确认的累计值
}

// Store Agent 本地状态
// 记录最后一次被面板确认的累计计数和已应用的配置版本，
// 重启后据此继续计算增量，不重复也不丢失
type Store struct {
	path string

	mu             sync.Mutex
	appliedVersion int64
	lastAcked      map[int64]Counters
}

// Load 从文件加载状态，文件不存在时返回空状态
func Load(path string) (*Store, error) {
	s := &Store{
		path:      path,
		lastAcked: make(map[int64]Counters),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("读取状态文件失败: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("解析状态文件失败: %w", err)
	}

	s.appliedVersion = p.AppliedVersion
	if p.LastAcked != nil {
		s.lastAcked = p.LastAcked
	}
	return s, nil
}

// AppliedVersion 读取已应用的配置版本
func (s *Store) AppliedVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appliedVersion
}

// SetAppliedVersion 记录已应用的配置版本并落盘
func (s *Store) SetAppliedVersion(version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliedVersion = version
	return s.save()
}

// LastAcked 读取订阅者最后确认的累计值
func (s *Store) LastAcked(subscriberID int64) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAcked[subscriberID]
}

// Ack 记录订阅者已被确认的累计值并落盘
// 只在面板确认收到后调用，失败的上报不推进该值
func (s *Store) Ack(subscriberID int64, counters Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAcked[subscriberID] = counters
	return s.save()
}

// save 原子写入状态文件，崩溃时不会留下半个文件
func (s *Store) save() error {
	p := persisted{
		AppliedVersion: s.appliedVersion,
		LastAcked:      s.lastAcked,
	}

	data, err := json.MarshalIndent(&p, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
