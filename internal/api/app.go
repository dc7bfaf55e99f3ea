package api

import (
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	"github.com/cod3vil/niuss-sub001/internal/config"
	"github.com/cod3vil/niuss-sub001/internal/service"
)

// App 应用实例，聚合配置、存储和核心服务
type App struct {
	Config      *config.Config
	DB          *db.Manager
	Liveness    *service.LivenessService
	Usage       *service.UsageService
	Distributor *service.DistributorService
	Profile     *service.ProfileService
	Nodes       *service.NodeService
}

// NewApp 创建新的应用实例
func NewApp(cfg *config.Config, dbManager *db.Manager) *App {
	fleet := cfg.Fleet
	return &App{
		Config:      cfg,
		DB:          dbManager,
		Liveness:    service.NewLivenessService(dbManager, fleet.StalenessThreshold(), time.Duration(fleet.SweepInterval)*time.Second),
		Usage:       service.NewUsageService(dbManager),
		Distributor: service.NewDistributorService(dbManager),
		Profile:     service.NewProfileService(dbManager, time.Duration(fleet.ProfileCacheTTL)*time.Second),
		Nodes:       service.NewNodeService(dbManager),
	}
}
