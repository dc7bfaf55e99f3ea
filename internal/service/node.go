package service

import (
	"fmt"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// ConfigNotifier 配置变更推送通道
// 为空时 Agent 只能靠周期拉取感知变更
type ConfigNotifier interface {
	NotifyConfigUpdate(nodeID int64)
}

// NodeService 节点管理服务（管理员侧）
type NodeService struct {
	db       *db.Manager
	notifier ConfigNotifier
}

// NewNodeService 创建节点管理服务
func NewNodeService(dbManager *db.Manager) *NodeService {
	return &NodeService{
		db: dbManager,
	}
}

// SetNotifier 挂接配置推送通道
func (s *NodeService) SetNotifier(notifier ConfigNotifier) {
	s.notifier = notifier
}

// CreateNode 创建节点
func (s *NodeService) CreateNode(node *dbinit.Node) error {
	if !model.Protocol(node.Protocol).Valid() {
		return fmt.Errorf("不支持的协议: %s", node.Protocol)
	}
	if node.ProtocolConfig != "" {
		if _, err := model.ParseProtocolConfig(node.ProtocolConfig); err != nil {
			return fmt.Errorf("协议配置无效: %w", err)
		}
	}
	if node.Status == "" {
		node.Status = string(model.NodeStatusOffline)
	}

	existing, err := s.db.DB.SQLite.GetNodeByName(node.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if existing != nil {
		return fmt.Errorf("节点名称已存在: %s", node.Name)
	}

	if err := s.db.DB.SQLite.CreateNode(node); err != nil {
		return err
	}

	logger.Info("节点已创建",
		zap.Int64("nodeID", node.ID),
		zap.String("name", node.Name),
		zap.String("protocol", node.Protocol))
	return nil
}

// UpdateNode 更新节点
// 只有 Agent 关心的字段（协议、端口、密钥、协议配置）变化时才递增配置版本，
// 档案侧元数据（include_in_clash、sort_order）的变化不触发 Agent 重载
func (s *NodeService) UpdateNode(node *dbinit.Node) error {
	existing, err := s.db.DB.SQLite.GetNode(node.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if existing == nil {
		return fmt.Errorf("%w: node %d", ErrNotFound, node.ID)
	}

	if !model.Protocol(node.Protocol).Valid() {
		return fmt.Errorf("不支持的协议: %s", node.Protocol)
	}
	if node.ProtocolConfig != "" {
		if _, err := model.ParseProtocolConfig(node.ProtocolConfig); err != nil {
			return fmt.Errorf("协议配置无效: %w", err)
		}
	}

	bumpVersion := existing.Protocol != node.Protocol ||
		existing.Port != node.Port ||
		existing.Secret != node.Secret ||
		existing.ProtocolConfig != node.ProtocolConfig

	if err := s.db.DB.SQLite.UpdateNode(node, bumpVersion); err != nil {
		return err
	}

	if bumpVersion {
		logger.Info("节点配置版本递增",
			zap.Int64("nodeID", node.ID),
			zap.Int64("previousVersion", existing.ConfigVersion))
		if s.notifier != nil {
			s.notifier.NotifyConfigUpdate(node.ID)
		}
	}
	return nil
}

// DeleteNode 删除节点
func (s *NodeService) DeleteNode(id int64) error {
	node, err := s.db.DB.SQLite.GetNode(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if node == nil {
		return fmt.Errorf("%w: node %d", ErrNotFound, id)
	}
	if err := s.db.DB.SQLite.DeleteNode(id); err != nil {
		return err
	}
	logger.Info("节点已删除", zap.Int64("nodeID", id), zap.String("name", node.Name))
	return nil
}

// SetMaintenance 切换节点维护状态
// 维护状态由管理员显式设置，心跳不会把维护中的节点改回在线
func (s *NodeService) SetMaintenance(id int64, maintenance bool) error {
	node, err := s.db.DB.SQLite.GetNode(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if node == nil {
		return fmt.Errorf("%w: node %d", ErrNotFound, id)
	}

	status := string(model.NodeStatusMaintenance)
	if !maintenance {
		// 退出维护后先标离线，由下一次心跳恢复在线
		status = string(model.NodeStatusOffline)
	}
	if err := s.db.DB.SQLite.SetNodeStatus(id, status); err != nil {
		return err
	}
	logger.Info("节点维护状态变更",
		zap.Int64("nodeID", id),
		zap.String("status", status))
	return nil
}
