package service

import (
	"encoding/json"
	"fmt"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// DistributorService 节点配置下发服务
// Agent 拉取自身配置时返回带版本号的快照，
// 版本号只在 Agent 相关字段变化时递增，Agent 据此判断是否需要重载
type DistributorService struct {
	db *db.Manager
}

// NewDistributorService 创建配置下发服务
func NewDistributorService(dbManager *db.Manager) *DistributorService {
	return &DistributorService{
		db: dbManager,
	}
}

// GetAgentConfig 认证并返回节点的当前配置快照
func (s *DistributorService) GetAgentConfig(nodeID int64, secret string) (*model.AgentConfig, error) {
	node, err := s.db.DB.SQLite.GetNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	if node.Secret != secret {
		return nil, ErrUnauthorized
	}

	return BuildAgentConfig(node)
}

// BuildAgentConfig 从节点记录构建 Agent 配置快照
func BuildAgentConfig(node *dbinit.Node) (*model.AgentConfig, error) {
	protocolConfig := make(map[string]interface{})
	if node.ProtocolConfig != "" {
		if err := json.Unmarshal([]byte(node.ProtocolConfig), &protocolConfig); err != nil {
			// 协议配置损坏时仍下发基础字段，避免节点彻底失联
			logger.Warn("节点协议配置解析失败",
				zap.Int64("nodeID", node.ID),
				zap.Error(err))
			protocolConfig = make(map[string]interface{})
		}
	}

	return &model.AgentConfig{
		NodeID:         node.ID,
		Protocol:       model.Protocol(node.Protocol),
		Port:           node.Port,
		Secret:         node.Secret,
		ProtocolConfig: protocolConfig,
		Version:        node.ConfigVersion,
	}, nil
}
