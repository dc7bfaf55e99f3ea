package api

import (
	"errors"
	"strconv"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/internal/service"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NodeHandler 节点管理处理器（管理员侧）
type NodeHandler struct {
	app *App
}

// NewNodeHandler 创建节点管理处理器
func NewNodeHandler(app *App) *NodeHandler {
	return &NodeHandler{app: app}
}

// NodeRequest 节点创建/更新请求
type NodeRequest struct {
	Name           string `json:"name" binding:"required"`
	Host           string `json:"host" binding:"required"`
	Port           int    `json:"port" binding:"required,min=1,max=65535"`
	Protocol       string `json:"protocol" binding:"required"`
	Secret         string `json:"secret" binding:"required"`
	ProtocolConfig string `json:"protocol_config"`
	MaxUsers       int    `json:"max_users"`
	IncludeInClash *bool  `json:"include_in_clash"`
	SortOrder      int    `json:"sort_order"`
}

// ListNodes 列出节点
func (h *NodeHandler) ListNodes(c *gin.Context) {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	nodes, err := h.app.DB.DB.SQLite.ListNodes(status, limit, offset)
	if err != nil {
		logger.Error("列出节点失败", zap.Error(err))
		response.GinInternalError(c, "数据库错误", nil)
		return
	}

	response.GinSuccess(c, nodes)
}

// GetNode 获取单个节点
func (h *NodeHandler) GetNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的节点ID", err)
		return
	}

	node, err := h.app.DB.DB.SQLite.GetNode(id)
	if err != nil {
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	if node == nil {
		response.GinNotFound(c, "节点不存在")
		return
	}

	response.GinSuccess(c, node)
}

// CreateNode 创建节点
func (h *NodeHandler) CreateNode(c *gin.Context) {
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	node := h.buildNode(&req)
	if err := h.app.Nodes.CreateNode(node); err != nil {
		response.GinBadRequest(c, "创建节点失败", err)
		return
	}

	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, node)
}

// UpdateNode 更新节点
func (h *NodeHandler) UpdateNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的节点ID", err)
		return
	}

	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	node := h.buildNode(&req)
	node.ID = id
	if err := h.app.Nodes.UpdateNode(node); err != nil {
		h.writeNodeError(c, err)
		return
	}

	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, gin.H{"updated": true})
}

// DeleteNode 删除节点
func (h *NodeHandler) DeleteNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的节点ID", err)
		return
	}

	if err := h.app.Nodes.DeleteNode(id); err != nil {
		h.writeNodeError(c, err)
		return
	}

	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, gin.H{"deleted": true})
}

// MaintenanceRequest 维护状态请求
type MaintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}

// SetMaintenance 切换节点维护状态
func (h *NodeHandler) SetMaintenance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的节点ID", err)
		return
	}

	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	if err := h.app.Nodes.SetMaintenance(id, *req.Maintenance); err != nil {
		h.writeNodeError(c, err)
		return
	}

	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, gin.H{"maintenance": *req.Maintenance})
}

func (h *NodeHandler) buildNode(req *NodeRequest) *dbinit.Node {
	includeInClash := true
	if req.IncludeInClash != nil {
		includeInClash = *req.IncludeInClash
	}
	return &dbinit.Node{
		Name:           req.Name,
		Host:           req.Host,
		Port:           req.Port,
		Protocol:       req.Protocol,
		Secret:         req.Secret,
		ProtocolConfig: req.ProtocolConfig,
		MaxUsers:       req.MaxUsers,
		IncludeInClash: includeInClash,
		SortOrder:      req.SortOrder,
	}
}

func (h *NodeHandler) writeNodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.GinNotFound(c, "节点不存在")
	case errors.Is(err, service.ErrTransient):
		response.GinServiceUnavailable(c, "存储暂时不可用", nil)
	default:
		response.GinBadRequest(c, "操作失败", err)
	}
}
