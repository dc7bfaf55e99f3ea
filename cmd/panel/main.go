package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/api"
	"github.com/cod3vil/niuss-sub001/internal/config"
	"github.com/cod3vil/niuss-sub001/internal/server"
	"github.com/cod3vil/niuss-sub001/internal/service"
	"github.com/cod3vil/niuss-sub001/internal/ws"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	configPath = flag.String("config", "./config.yaml", "Path to config file")
	port       = flag.Int("port", 0, "Override server port")
)

func main() {
	flag.Parse()
	if err := logger.Init(&logger.Config{
		Level:  "info",
		Format: "console",
	}); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}
	defer logger.Sync()

	cfg := config.LoadConfigOrDefault(*configPath)
	if *port > 0 {
		cfg.Server.Port = *port
	}

	// 重新初始化日志系统（使用配置）
	if err := logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logger.Fatal("重新初始化日志系统失败", zap.Error(err))
	}

	dbManager, err := db.NewManager(&db.Config{
		SQLitePath:    cfg.Database.SQLitePath,
		RedisAddr:     cfg.Database.RedisAddr,
		RedisPassword: cfg.Database.RedisPassword,
		RedisDB:       cfg.Database.RedisDB,
	})
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer dbManager.Close()

	logger.Info("✓ 数据库初始化成功")

	if err := seedAdmin(dbManager, cfg); err != nil {
		logger.Fatal("初始化管理员账户失败", zap.Error(err))
	}

	// 创建应用实例
	app := api.NewApp(cfg, dbManager)

	app.Liveness.Start()
	defer app.Liveness.Stop()

	cleanupService := service.NewCleanupService(dbManager,
		time.Duration(cfg.Fleet.UsageLogRetentionDay)*24*time.Hour)
	cleanupService.Start()
	defer cleanupService.Stop()

	wsServer := ws.NewServer(dbManager)
	wsServer.Start()
	app.Nodes.SetNotifier(wsServer)

	router := api.SetupRouter(app, wsServer)
	http2Addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled && cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	// 创建 HTTP/2 服务器
	http2Server := server.NewHTTP2Server(
		http2Addr,
		router,
		tlsConfig,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second,
	)
	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = http2Server.Start(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = http2Server.StartInsecure()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器错误", zap.Error(err))
		}
	}()

	var http3Server *server.HTTP3Server
	if cfg.Server.EnableHTTP3 && cfg.TLS.Enabled {
		http3Addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTP3Port)
		http3Server = server.NewHTTP3Server(http3Addr, router, tlsConfig)

		go func() {
			if err := http3Server.Start(); err != nil {
				logger.Error("HTTP/3 服务器错误", zap.Error(err))
			}
		}()
	} else if cfg.Server.EnableHTTP3 {
		logger.Warn("HTTP/3 需要启用 TLS，已跳过")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := http2Server.Shutdown(ctx); err != nil {
		logger.Error("关闭 HTTP/2 服务器失败", zap.Error(err))
	}
	if http3Server != nil {
		if err := http3Server.Shutdown(ctx); err != nil {
			logger.Error("关闭 HTTP/3 服务器失败", zap.Error(err))
		}
	}

	logger.Info("✓ 所有服务器已停止")
}

// seedAdmin 首次启动时写入管理员账户
func seedAdmin(dbManager *db.Manager, cfg *config.Config) error {
	count, err := dbManager.DB.SQLite.CountAdmins()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Auth.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &dbinit.Admin{
		Username:     cfg.Auth.AdminUsername,
		PasswordHash: string(hash),
	}
	if err := dbManager.DB.SQLite.CreateAdmin(admin); err != nil {
		return err
	}

	logger.Info("已创建初始管理员账户",
		zap.String("username", cfg.Auth.AdminUsername))
	return nil
}
