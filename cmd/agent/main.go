package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cod3vil/niuss-sub001/agent/app"
	"github.com/cod3vil/niuss-sub001/agent/config"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

var configPath = flag.String("config", "./agent.yaml", "Path to config file")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}
	defer logger.Sync()

	agentApp, err := app.New(cfg)
	if err != nil {
		logger.Fatal("装配 Agent 失败", zap.Error(err))
	}

	agentApp.Start()
	logger.Info("Agent 运行中",
		zap.Int64("nodeID", cfg.Node.ID),
		zap.String("panel", cfg.Panel.URL))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	agentApp.Stop()
}
