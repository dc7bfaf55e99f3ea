package api

import (
	"strconv"
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/internal/service"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuotaHandler 订阅配额管理处理器（管理员侧）
type QuotaHandler struct {
	app *App
}

// NewQuotaHandler 创建配额管理处理器
func NewQuotaHandler(app *App) *QuotaHandler {
	return &QuotaHandler{app: app}
}

// QuotaRequest 配额创建请求
type QuotaRequest struct {
	SubscriberID int64 `json:"subscriber_id" binding:"required"`
	PackageID    int64 `json:"package_id" binding:"required"`
	TrafficQuota int64 `json:"traffic_quota" binding:"required,min=1"`
	ExpiresAt    int64 `json:"expires_at" binding:"required"` // Unix秒
}

// ListQuotas 列出配额
func (h *QuotaHandler) ListQuotas(c *gin.Context) {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	quotas, err := h.app.DB.DB.SQLite.ListQuotas(status, limit, offset)
	if err != nil {
		logger.Error("列出配额失败", zap.Error(err))
		response.GinInternalError(c, "数据库错误", nil)
		return
	}

	response.GinSuccess(c, quotas)
}

// CreateQuota 创建配额
// 订阅令牌服务端生成，不接受外部指定
func (h *QuotaHandler) CreateQuota(c *gin.Context) {
	var req QuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	active, err := h.app.DB.DB.SQLite.GetActiveQuotaBySubscriber(req.SubscriberID)
	if err != nil {
		logger.Error("查询活跃配额失败", zap.Error(err))
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	if active != nil && active.PackageID == req.PackageID {
		response.GinBadRequest(c, "该订阅者在此套餐下已有活跃配额")
		return
	}

	quota := &dbinit.SubscriberQuota{
		SubscriberID: req.SubscriberID,
		PackageID:    req.PackageID,
		Token:        uuid.New().String(),
		TrafficQuota: req.TrafficQuota,
		ExpiresAt:    time.Unix(req.ExpiresAt, 0),
		Status:       service.QuotaStatusActive,
	}

	if err := h.app.DB.DB.SQLite.CreateQuota(quota); err != nil {
		response.GinBadRequest(c, "创建配额失败", err)
		return
	}

	response.GinSuccess(c, quota)
}

// GetQuota 获取单个配额
func (h *QuotaHandler) GetQuota(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的配额ID", err)
		return
	}

	quota, err := h.app.DB.DB.SQLite.GetQuota(id)
	if err != nil {
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	if quota == nil {
		response.GinNotFound(c, "配额不存在")
		return
	}

	response.GinSuccess(c, quota)
}

// ListUsageLogs 列出订阅者的上报日志
func (h *QuotaHandler) ListUsageLogs(c *gin.Context) {
	subscriberID, err := strconv.ParseInt(c.Param("subscriber_id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的订阅者ID", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := h.app.DB.DB.SQLite.ListUsageLogs(subscriberID, limit)
	if err != nil {
		logger.Error("列出上报日志失败", zap.Error(err))
		response.GinInternalError(c, "数据库错误", nil)
		return
	}

	response.GinSuccess(c, logs)
}
