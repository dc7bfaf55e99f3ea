package init

import (
	"database/sql"
	"fmt"
)

const (
	// SQLite 初始化脚本
	SQLiteInitSchema = `
-- 节点表
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    protocol TEXT NOT NULL CHECK(protocol IN ('shadowsocks', 'vmess', 'trojan', 'hysteria2', 'vless')),
    secret TEXT NOT NULL,
    protocol_config TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'offline' CHECK(status IN ('online', 'offline', 'maintenance')),
    max_users INTEGER NOT NULL DEFAULT 0,
    current_users INTEGER NOT NULL DEFAULT 0,
    total_upload INTEGER NOT NULL DEFAULT 0,
    total_download INTEGER NOT NULL DEFAULT 0,
    last_heartbeat DATETIME NOT NULL DEFAULT '0001-01-01 00:00:00',
    include_in_clash INTEGER NOT NULL DEFAULT 1,
    sort_order INTEGER NOT NULL DEFAULT 0,
    config_version INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_nodes_status ON nodes(status);
CREATE INDEX IF NOT EXISTS idx_nodes_last_heartbeat ON nodes(last_heartbeat);
CREATE INDEX IF NOT EXISTS idx_nodes_include_in_clash ON nodes(include_in_clash);

-- 订阅配额表
CREATE TABLE IF NOT EXISTS subscriber_quotas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subscriber_id INTEGER NOT NULL,
    package_id INTEGER NOT NULL,
    token TEXT NOT NULL UNIQUE,
    traffic_quota INTEGER NOT NULL,
    traffic_used INTEGER NOT NULL DEFAULT 0,
    expires_at DATETIME NOT NULL,
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'expired', 'exhausted')),
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(subscriber_id, package_id)
);

CREATE INDEX IF NOT EXISTS idx_quotas_subscriber_id ON subscriber_quotas(subscriber_id);
CREATE INDEX IF NOT EXISTS idx_quotas_token ON subscriber_quotas(token);
CREATE INDEX IF NOT EXISTS idx_quotas_status ON subscriber_quotas(status);

-- 流量上报日志表（短期保留）
CREATE TABLE IF NOT EXISTS usage_logs (
    id TEXT PRIMARY KEY,
    node_id INTEGER NOT NULL,
    subscriber_id INTEGER NOT NULL,
    upload_delta INTEGER NOT NULL,
    download_delta INTEGER NOT NULL,
    observed_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_usage_logs_created_at ON usage_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_logs_subscriber_id ON usage_logs(subscriber_id);

-- 档案代理组表
CREATE TABLE IF NOT EXISTS proxy_groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL CHECK(type IN ('select', 'url-test', 'fallback')),
    proxies TEXT NOT NULL DEFAULT '[]',
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- 档案路由规则表
CREATE TABLE IF NOT EXISTS profile_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    rule TEXT NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- 管理员表
CREATE TABLE IF NOT EXISTS admins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- 默认代理组与规则，保证空库也能生成完整档案
INSERT OR IGNORE INTO proxy_groups (name, type, proxies, sort_order)
VALUES ('PROXY', 'select', '[]', 0);

INSERT OR IGNORE INTO profile_rules (rule, sort_order)
SELECT 'MATCH,PROXY', 0
WHERE NOT EXISTS (SELECT 1 FROM profile_rules);
`
)

// InitSQLiteSchema 初始化 SQLite 数据库schema
func InitSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(SQLiteInitSchema)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite schema: %w", err)
	}
	return nil
}

// CreateTriggers 创建触发器
func CreateTriggers(db *sql.DB) error {
	triggers := []string{
		// 节点更新时间触发器
		`CREATE TRIGGER IF NOT EXISTS update_nodes_timestamp
		 AFTER UPDATE ON nodes
		 BEGIN
		     UPDATE nodes SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		 END;`,

		// 配额更新时间触发器
		`CREATE TRIGGER IF NOT EXISTS update_quotas_timestamp
		 AFTER UPDATE ON subscriber_quotas
		 BEGIN
		     UPDATE subscriber_quotas SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		 END;`,

		// 流量计数器只增不减，回退写入直接拒绝
		`CREATE TRIGGER IF NOT EXISTS nodes_traffic_monotonic
		 BEFORE UPDATE OF total_upload, total_download ON nodes
		 WHEN NEW.total_upload < OLD.total_upload OR NEW.total_download < OLD.total_download
		 BEGIN
		     SELECT RAISE(ABORT, 'node traffic counters must not decrease');
		 END;`,

		`CREATE TRIGGER IF NOT EXISTS quotas_traffic_monotonic
		 BEFORE UPDATE OF traffic_used ON subscriber_quotas
		 WHEN NEW.traffic_used < OLD.traffic_used
		 BEGIN
		     SELECT RAISE(ABORT, 'quota traffic_used must not decrease');
		 END;`,
	}

	for _, trigger := range triggers {
		if _, err := db.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create trigger: %w", err)
		}
	}

	return nil
}
