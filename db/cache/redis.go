package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache Redis缓存客户端
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache 创建新的Redis缓存客户端
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close 关闭Redis连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// === Profile 缓存 ===

// SetProfile 缓存渲染好的订阅档案
func (r *RedisCache) SetProfile(token string, document []byte, ttl time.Duration) error {
	key := fmt.Sprintf("profile:%s", token)
	return r.client.Set(r.ctx, key, document, ttl).Err()
}

// GetProfile 读取缓存的订阅档案，未命中返回 nil
func (r *RedisCache) GetProfile(token string) ([]byte, error) {
	key := fmt.Sprintf("profile:%s", token)
	data, err := r.client.Get(r.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteAllProfiles 失效全部订阅档案缓存
// 节点或档案表变更影响所有令牌，逐键扫描删除
func (r *RedisCache) DeleteAllProfiles() error {
	iter := r.client.Scan(r.ctx, 0, "profile:*", 100).Iterator()
	for iter.Next(r.ctx) {
		if err := r.client.Del(r.ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// === 配额耗尽标记 ===
// 供连接准入侧低成本查询，写入方是用量聚合器

// SetQuotaExhausted 标记/取消订阅者的配额耗尽状态
func (r *RedisCache) SetQuotaExhausted(subscriberID int64, exhausted bool) error {
	key := fmt.Sprintf("quota:exhausted:%d", subscriberID)
	if !exhausted {
		return r.client.Del(r.ctx, key).Err()
	}
	return r.client.Set(r.ctx, key, 1, 0).Err()
}

// IsQuotaExhausted 查询订阅者是否已耗尽配额
func (r *RedisCache) IsQuotaExhausted(subscriberID int64) (bool, error) {
	key := fmt.Sprintf("quota:exhausted:%d", subscriberID)
	_, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// === 节点状态缓存 ===

// SetNodeStatus 缓存节点状态
func (r *RedisCache) SetNodeStatus(nodeID int64, status string, ttl time.Duration) error {
	key := fmt.Sprintf("node:status:%d", nodeID)
	return r.client.Set(r.ctx, key, status, ttl).Err()
}

// GetNodeStatus 读取节点状态缓存，未命中返回空字符串
func (r *RedisCache) GetNodeStatus(nodeID int64) (string, error) {
	key := fmt.Sprintf("node:status:%d", nodeID)
	status, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return status, err
}
