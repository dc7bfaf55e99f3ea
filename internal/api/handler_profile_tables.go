package api

import (
	"strconv"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/api/response"

	"github.com/gin-gonic/gin"
)

// ProfileTablesHandler 档案代理组与路由规则管理处理器
type ProfileTablesHandler struct {
	app *App
}

// NewProfileTablesHandler 创建档案表管理处理器
func NewProfileTablesHandler(app *App) *ProfileTablesHandler {
	return &ProfileTablesHandler{app: app}
}

// ListProxyGroups 列出代理组
func (h *ProfileTablesHandler) ListProxyGroups(c *gin.Context) {
	groups, err := h.app.DB.DB.SQLite.ListProxyGroups()
	if err != nil {
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	response.GinSuccess(c, groups)
}

// ProxyGroupRequest 代理组创建请求
type ProxyGroupRequest struct {
	Name      string `json:"name" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=select url-test fallback"`
	Proxies   string `json:"proxies"` // JSON数组，空串表示全部代理
	SortOrder int    `json:"sort_order"`
}

// CreateProxyGroup 创建代理组
func (h *ProfileTablesHandler) CreateProxyGroup(c *gin.Context) {
	var req ProxyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	group := &dbinit.ProxyGroup{
		Name:      req.Name,
		Type:      req.Type,
		Proxies:   req.Proxies,
		SortOrder: req.SortOrder,
	}
	if err := h.app.DB.DB.SQLite.CreateProxyGroup(group); err != nil {
		response.GinBadRequest(c, "创建代理组失败", err)
		return
	}
	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, group)
}

// DeleteProxyGroup 删除代理组
func (h *ProfileTablesHandler) DeleteProxyGroup(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的代理组ID", err)
		return
	}
	if err := h.app.DB.DB.SQLite.DeleteProxyGroup(id); err != nil {
		response.GinInternalError(c, "删除代理组失败", nil)
		return
	}
	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, gin.H{"deleted": true})
}

// ListRules 列出路由规则
func (h *ProfileTablesHandler) ListRules(c *gin.Context) {
	rules, err := h.app.DB.DB.SQLite.ListProfileRules()
	if err != nil {
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	response.GinSuccess(c, rules)
}

// RuleRequest 路由规则创建请求
type RuleRequest struct {
	Rule      string `json:"rule" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

// CreateRule 创建路由规则
func (h *ProfileTablesHandler) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	rule := &dbinit.ProfileRule{
		Rule:      req.Rule,
		SortOrder: req.SortOrder,
	}
	if err := h.app.DB.DB.SQLite.CreateProfileRule(rule); err != nil {
		response.GinBadRequest(c, "创建规则失败", err)
		return
	}
	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, rule)
}

// DeleteRule 删除路由规则
func (h *ProfileTablesHandler) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.GinBadRequest(c, "无效的规则ID", err)
		return
	}
	if err := h.app.DB.DB.SQLite.DeleteProfileRule(id); err != nil {
		response.GinInternalError(c, "删除规则失败", nil)
		return
	}
	h.app.Profile.InvalidateAll()
	response.GinSuccess(c, gin.H{"deleted": true})
}
