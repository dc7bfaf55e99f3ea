package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

const nodeColumns = `id, name, host, port, protocol, secret, protocol_config, status,
	max_users, current_users, total_upload, total_download, last_heartbeat,
	include_in_clash, sort_order, config_version, created_at, updated_at`

func scanNode(row interface{ Scan(...interface{}) error }) (*dbinit.Node, error) {
	node := &dbinit.Node{}
	err := row.Scan(
		&node.ID, &node.Name, &node.Host, &node.Port, &node.Protocol, &node.Secret,
		&node.ProtocolConfig, &node.Status, &node.MaxUsers, &node.CurrentUsers,
		&node.TotalUpload, &node.TotalDownload, &node.LastHeartbeat,
		&node.IncludeInClash, &node.SortOrder, &node.ConfigVersion,
		&node.CreatedAt, &node.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// === Node 操作 ===

// CreateNode 创建节点
func (s *SQLiteDB) CreateNode(node *dbinit.Node) error {
	query := `
		INSERT INTO nodes (name, host, port, protocol, secret, protocol_config, status,
			max_users, include_in_clash, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query, node.Name, node.Host, node.Port, node.Protocol,
		node.Secret, node.ProtocolConfig, node.Status, node.MaxUsers,
		node.IncludeInClash, node.SortOrder)
	if err != nil {
		return err
	}

	node.ID, err = result.LastInsertId()
	return err
}

// GetNode 获取节点
func (s *SQLiteDB) GetNode(id int64) (*dbinit.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`
	return scanNode(s.db.QueryRow(query, id))
}

// GetNodeByName 通过名称获取节点
func (s *SQLiteDB) GetNodeByName(name string) (*dbinit.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE name = ?`
	return scanNode(s.db.QueryRow(query, name))
}

// ListNodes 列出节点
func (s *SQLiteDB) ListNodes(status string, limit, offset int) ([]*dbinit.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE 1=1`
	args := []interface{}{}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY sort_order ASC, name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []*dbinit.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

// ListProfileNodes 列出参与档案生成的节点
// 按 (sort_order, name) 升序，保证相同输入产生相同输出
func (s *SQLiteDB) ListProfileNodes() ([]*dbinit.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes
		WHERE include_in_clash = 1
		ORDER BY sort_order ASC, name ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []*dbinit.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

// UpdateNode 更新节点
// bumpVersion 为 true 时同时递增 Agent 配置版本（协议、端口、密钥或协议配置变化时）
func (s *SQLiteDB) UpdateNode(node *dbinit.Node, bumpVersion bool) error {
	query := `
		UPDATE nodes
		SET name=?, host=?, port=?, protocol=?, secret=?, protocol_config=?,
		    max_users=?, include_in_clash=?, sort_order=?,
		    config_version = config_version + ?
		WHERE id=?
	`
	bump := 0
	if bumpVersion {
		bump = 1
	}
	result, err := s.db.Exec(query, node.Name, node.Host, node.Port, node.Protocol,
		node.Secret, node.ProtocolConfig, node.MaxUsers, node.IncludeInClash,
		node.SortOrder, bump, node.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	return nil
}

// DeleteNode 删除节点
func (s *SQLiteDB) DeleteNode(id int64) error {
	result, err := s.db.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	return nil
}

// === 状态与心跳 ===

// SetNodeStatus 设置节点状态（维护状态只能从这里进入）
func (s *SQLiteDB) SetNodeStatus(id int64, status string) error {
	result, err := s.db.Exec(`UPDATE nodes SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	return nil
}

// TouchNodeHeartbeat 记录心跳：刷新时间戳、连接数并置为在线
// 维护状态的节点只刷新时间戳，不改变状态
func (s *SQLiteDB) TouchNodeHeartbeat(id int64, at time.Time, connections int) error {
	query := `
		UPDATE nodes
		SET last_heartbeat = ?,
		    current_users = ?,
		    status = CASE WHEN status = 'maintenance' THEN status ELSE 'online' END
		WHERE id = ?
	`
	result, err := s.db.Exec(query, at, connections, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	return nil
}

// MarkStaleNodesOffline 将心跳超过阈值的在线节点批量置为离线
// 返回受影响的节点数
func (s *SQLiteDB) MarkStaleNodesOffline(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE nodes SET status = 'offline' WHERE status = 'online' AND last_heartbeat < ?`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountNodesByStatus 按状态统计节点数量
func (s *SQLiteDB) CountNodesByStatus(status string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE status = ?`, status).Scan(&count)
	return count, err
}

// === 流量计数器 ===

// ApplyUsageDelta 在同一事务内累加节点与订阅配额两侧的计数器
// 任一侧失败整体回滚，上报方重传时重放的是一条从未落库的上报
func (s *SQLiteDB) ApplyUsageDelta(nodeID, quotaID, upload, download int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE nodes
		SET total_upload = total_upload + ?, total_download = total_download + ?
		WHERE id = ?
	`, upload, download, nodeID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	result, err = tx.Exec(
		`UPDATE subscriber_quotas SET traffic_used = traffic_used + ? WHERE id = ?`,
		upload+download, quotaID)
	if err != nil {
		return err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("quota not found")
	}

	return tx.Commit()
}

// AddNodeTraffic 累加节点流量计数器（单行原子自增）
func (s *SQLiteDB) AddNodeTraffic(id int64, upload, download int64) error {
	query := `
		UPDATE nodes
		SET total_upload = total_upload + ?, total_download = total_download + ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query, upload, download, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("node not found")
	}

	return nil
}
