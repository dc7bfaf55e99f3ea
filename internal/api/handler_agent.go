package api

import (
	"errors"
	"strconv"

	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// AgentHandler Agent 侧接口处理器
// 心跳、流量上报、配置拉取，认证都基于节点密钥
type AgentHandler struct {
	app *App
}

// NewAgentHandler 创建 Agent 处理器
func NewAgentHandler(app *App) *AgentHandler {
	return &AgentHandler{app: app}
}

// Heartbeat 处理节点心跳
func (h *AgentHandler) Heartbeat(c *gin.Context) {
	var req model.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的心跳请求", err)
		return
	}

	if err := h.app.Liveness.HandleHeartbeat(&req); err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.GinSuccess(c, gin.H{"acknowledged": true})
}

// ReportUsage 处理流量增量上报
func (h *AgentHandler) ReportUsage(c *gin.Context) {
	var req model.UsageReport
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的上报请求", err)
		return
	}

	if err := h.app.Usage.HandleReport(&req); err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.GinSuccess(c, gin.H{"acknowledged": true})
}

// PullConfig 拉取节点配置
// 密钥放在请求头，避免出现在访问日志的 query 串里
func (h *AgentHandler) PullConfig(c *gin.Context) {
	nodeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的节点ID", err)
		return
	}
	secret := c.GetHeader("X-Node-Secret")

	cfg, err := h.app.Distributor.GetAgentConfig(nodeID, secret)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.GinSuccess(c, cfg)
}

// writeServiceError 服务层错误到HTTP状态码的映射
// 认证失败与不存在必须可区分，瞬时错误由 Agent 下个周期重试
func (h *AgentHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.GinUnauthorized(c, "节点密钥验证失败")
	case errors.Is(err, service.ErrNotFound):
		response.GinNotFound(c, "节点或订阅者不存在")
	case errors.Is(err, service.ErrNonMonotonic):
		response.GinBadRequest(c, "计数器增量非法")
	case errors.Is(err, service.ErrTransient):
		response.GinServiceUnavailable(c, "存储暂时不可用", nil)
	default:
		response.GinInternalError(c, "请求处理失败", err)
	}
}
