package db

import (
	"fmt"

	"github.com/cod3vil/niuss-sub001/db/cache"
	"github.com/cod3vil/niuss-sub001/db/sqlite"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
)

// Manager 数据库管理器
// SQLite 是数据源，Redis 仅做缓存，连不上时整体降级为无缓存模式
type Manager struct {
	DB    *DB
	Cache *Cache
}

// DB SQLite 存储入口
type DB struct {
	SQLite *sqlite.SQLiteDB
}

// NewDB 包装 SQLite 存储
func NewDB(store *sqlite.SQLiteDB) *DB {
	return &DB{SQLite: store}
}

// Close 关闭 SQLite 连接
func (db *DB) Close() error {
	if db.SQLite != nil {
		return db.SQLite.Close()
	}
	return nil
}

// Cache Redis 缓存入口
type Cache struct {
	Redis *cache.RedisCache
}

// NewCache 包装 Redis 缓存
func NewCache(redisCache *cache.RedisCache) *Cache {
	return &Cache{Redis: redisCache}
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}

// Config 数据库配置
type Config struct {
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewManager 创建新的数据库管理器
func NewManager(cfg *Config) (*Manager, error) {
	store, err := sqlite.NewSQLiteDB(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to init SQLite: %w", err)
	}
	logger.Info("✓ SQLite 已初始化", zap.String("path", cfg.SQLitePath))

	manager := &Manager{DB: NewDB(store)}

	redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("⚠ Redis 连接失败，以无缓存模式继续", zap.Error(err))
		return manager, nil
	}
	logger.Info("✓ Redis 已连接", zap.String("addr", cfg.RedisAddr))
	manager.Cache = NewCache(redisCache)

	return manager, nil
}

// Close 关闭所有数据库连接
func (m *Manager) Close() error {
	var errs []error
	if m.DB != nil {
		if err := m.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite close: %w", err))
		}
	}
	if m.Cache != nil {
		if err := m.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// HasCache 检查是否有缓存可用
func (m *Manager) HasCache() bool {
	return m.Cache != nil && m.Cache.Redis != nil
}
