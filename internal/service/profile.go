package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"
	"github.com/cod3vil/niuss-sub001/internal/metrics"
	"github.com/cod3vil/niuss-sub001/internal/model"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// clashDocument Clash 档案文档
// 三个顶级段固定存在，代理列表为空时输出空数组而不是缺键
type clashDocument struct {
	Proxies     []map[string]interface{} `yaml:"proxies"`
	ProxyGroups []map[string]interface{} `yaml:"proxy-groups"`
	Rules       []string                 `yaml:"rules"`
}

type cachedProfile struct {
	document  []byte
	expiresAt time.Time
}

// ProfileService 订阅档案生成服务
// 生成是注册表状态的纯函数，并发重复生成无害，
// 只有缓存写入需要互斥（后写者胜）
type ProfileService struct {
	db  *db.Manager
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]*cachedProfile // Redis 不可用时的进程内回退缓存
}

// NewProfileService 创建档案生成服务
func NewProfileService(dbManager *db.Manager, ttl time.Duration) *ProfileService {
	return &ProfileService{
		db:    dbManager,
		ttl:   ttl,
		cache: make(map[string]*cachedProfile),
	}
}

// GetProfile 按订阅令牌返回档案文档
// 缓存未命中时惰性生成，TTL 内不感知节点变更
func (p *ProfileService) GetProfile(token string) ([]byte, error) {
	quota, err := p.db.DB.SQLite.GetQuotaByToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if quota == nil {
		return nil, fmt.Errorf("%w: token", ErrNotFound)
	}

	if doc := p.cacheGet(token); doc != nil {
		metrics.ProfileGenerations.WithLabelValues("hit").Inc()
		return doc, nil
	}

	doc, err := p.Generate()
	if err != nil {
		return nil, err
	}

	p.cacheSet(token, doc)
	metrics.ProfileGenerations.WithLabelValues("miss").Inc()
	return doc, nil
}

// InvalidateAll 清空档案缓存
// 节点或档案表的管理端变更对所有令牌生效，不等 TTL 到期
func (p *ProfileService) InvalidateAll() {
	if p.db.HasCache() {
		if err := p.db.Cache.Redis.DeleteAllProfiles(); err != nil {
			logger.Warn("清空档案缓存失败", zap.Error(err))
		}
	}
	p.mu.Lock()
	p.cache = make(map[string]*cachedProfile)
	p.mu.Unlock()
}

// Generate 从当前节点注册表渲染档案文档
// 单个坏节点只告警跳过，不会让整次生成失败
func (p *ProfileService) Generate() ([]byte, error) {
	nodes, err := p.db.DB.SQLite.ListProfileNodes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	proxies := make([]map[string]interface{}, 0, len(nodes))
	proxyNames := make([]string, 0, len(nodes))
	for _, node := range nodes {
		// 维护中的节点不进档案，离线节点保留（客户端可等它恢复）
		if node.Status == string(model.NodeStatusMaintenance) {
			continue
		}

		entry, err := buildProxyEntry(node)
		if err != nil {
			logger.Warn("节点被排除出档案",
				zap.Int64("nodeID", node.ID),
				zap.String("name", node.Name),
				zap.Error(err))
			continue
		}
		proxies = append(proxies, entry)
		proxyNames = append(proxyNames, node.Name)
	}

	groups, err := p.db.DB.SQLite.ListProxyGroups()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	rules, err := p.db.DB.SQLite.ListProfileRules()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	doc := &clashDocument{
		Proxies:     proxies,
		ProxyGroups: buildProxyGroups(groups, proxyNames),
		Rules:       make([]string, 0, len(rules)),
	}
	for _, rule := range rules {
		doc.Rules = append(doc.Rules, rule.Rule)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("渲染档案失败: %w", err)
	}
	return out, nil
}

// buildProxyEntry 把单个节点映射为 Clash 代理条目
// 密钥字段写在协议配置之后，配置里的同名键覆盖不了注册表里的密钥
func buildProxyEntry(node *dbinit.Node) (map[string]interface{}, error) {
	protocol := model.Protocol(node.Protocol)
	clashType := protocol.ClashType()
	if clashType == "" {
		return nil, fmt.Errorf("不支持的协议: %s", node.Protocol)
	}

	cfg, err := model.ParseProtocolConfig(node.ProtocolConfig)
	if err != nil {
		return nil, fmt.Errorf("协议配置解析失败: %w", err)
	}

	entry := cfg.Flatten()
	entry["name"] = node.Name
	entry["type"] = clashType
	entry["server"] = node.Host
	entry["port"] = node.Port
	entry[protocol.SecretField()] = node.Secret
	return entry, nil
}

// buildProxyGroups 渲染代理组段
// 组内代理列表为空时展开为全部代理名
func buildProxyGroups(groups []*dbinit.ProxyGroup, allNames []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		var names []string
		if group.Proxies != "" {
			if err := json.Unmarshal([]byte(group.Proxies), &names); err != nil {
				logger.Warn("代理组成员解析失败",
					zap.String("group", group.Name),
					zap.Error(err))
				names = nil
			}
		}
		if len(names) == 0 {
			names = allNames
		}
		members := make([]string, 0, len(names))
		members = append(members, names...)

		out = append(out, map[string]interface{}{
			"name":    group.Name,
			"type":    group.Type,
			"proxies": members,
		})
	}
	return out
}

func (p *ProfileService) cacheGet(token string) []byte {
	if p.db.HasCache() {
		doc, err := p.db.Cache.Redis.GetProfile(token)
		if err != nil {
			logger.Warn("读取档案缓存失败", zap.Error(err))
		} else if doc != nil {
			return doc
		}
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cached, ok := p.cache[token]
	if !ok || time.Now().After(cached.expiresAt) {
		delete(p.cache, token)
		return nil
	}
	return cached.document
}

func (p *ProfileService) cacheSet(token string, document []byte) {
	if p.db.HasCache() {
		if err := p.db.Cache.Redis.SetProfile(token, document, p.ttl); err != nil {
			logger.Warn("写入档案缓存失败", zap.Error(err))
		}
		return
	}

	p.mu.Lock()
	p.cache[token] = &cachedProfile{
		document:  document,
		expiresAt: time.Now().Add(p.ttl),
	}
	p.mu.Unlock()
}
