package api

import (
	"github.com/cod3vil/niuss-sub001/internal/api/middleware"
	"github.com/cod3vil/niuss-sub001/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 设置路由
func SetupRouter(app *App, wsServer *ws.Server) *gin.Engine {
	if app.Config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"cache":  app.DB.HasCache(),
		})
	})

	// Prometheus 监控指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket 端点（Agent 配置推送通道）
	router.GET("/ws/agent", wsServer.HandleWebSocket)

	// 订阅档案（令牌即凭证，无需JWT）
	subscriptionHandler := NewSubscriptionHandler(app)
	router.GET("/sub/:token", subscriptionHandler.GetProfile)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Agent 侧接口（节点密钥认证）
		agentHandler := NewAgentHandler(app)
		agent := v1.Group("/agent")
		{
			agent.POST("/heartbeat", agentHandler.Heartbeat)
			agent.POST("/usage", agentHandler.ReportUsage)
			agent.GET("/config/:id", agentHandler.PullConfig)
		}

		// 管理员登录（无需JWT）
		authHandler := NewAuthHandler(app)
		v1.POST("/auth/login", authHandler.Login)

		// 管理员接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(app.Config.Auth.JWTSecret))
		{
			nodeHandler := NewNodeHandler(app)
			nodes := authorized.Group("/nodes")
			{
				nodes.GET("", nodeHandler.ListNodes)
				nodes.POST("", nodeHandler.CreateNode)
				nodes.GET("/:id", nodeHandler.GetNode)
				nodes.PUT("/:id", nodeHandler.UpdateNode)
				nodes.DELETE("/:id", nodeHandler.DeleteNode)
				nodes.PUT("/:id/maintenance", nodeHandler.SetMaintenance)
			}

			quotaHandler := NewQuotaHandler(app)
			quotas := authorized.Group("/quotas")
			{
				quotas.GET("", quotaHandler.ListQuotas)
				quotas.POST("", quotaHandler.CreateQuota)
				quotas.GET("/:id", quotaHandler.GetQuota)
			}
			authorized.GET("/usage-logs/:subscriber_id", quotaHandler.ListUsageLogs)

			profileTablesHandler := NewProfileTablesHandler(app)
			groups := authorized.Group("/proxy-groups")
			{
				groups.GET("", profileTablesHandler.ListProxyGroups)
				groups.POST("", profileTablesHandler.CreateProxyGroup)
				groups.DELETE("/:id", profileTablesHandler.DeleteProxyGroup)
			}
			rules := authorized.Group("/rules")
			{
				rules.GET("", profileTablesHandler.ListRules)
				rules.POST("", profileTablesHandler.CreateRule)
				rules.DELETE("/:id", profileTablesHandler.DeleteRule)
			}
		}
	}

	return router
}
