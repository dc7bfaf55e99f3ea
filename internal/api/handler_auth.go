package api

import (
	"time"

	"github.com/cod3vil/niuss-sub001/internal/api/middleware"
	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	app *App
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(app *App) *AuthHandler {
	return &AuthHandler{app: app}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
}

// Login 管理员登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "无效的请求", err)
		return
	}

	admin, err := h.app.DB.DB.SQLite.GetAdminByUsername(req.Username)
	if err != nil {
		logger.Error("获取管理员失败",
			zap.String("username", req.Username),
			zap.Error(err))
		response.GinInternalError(c, "数据库错误", nil)
		return
	}
	if admin == nil {
		response.GinUnauthorized(c, "用户名或密码错误")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		response.GinUnauthorized(c, "用户名或密码错误")
		return
	}

	expiresAt := time.Now().Add(time.Duration(h.app.Config.Auth.JWTExpiration) * time.Hour)
	claims := &middleware.JWTClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(h.app.Config.Auth.JWTSecret))
	if err != nil {
		logger.Error("签发token失败", zap.Error(err))
		response.GinInternalError(c, "签发token失败", nil)
		return
	}

	logger.Info("管理员登录", zap.String("username", admin.Username))

	response.GinSuccess(c, &LoginResponse{
		Token:     tokenString,
		Username:  admin.Username,
		ExpiresAt: expiresAt.Unix(),
	})
}
