package sqlite

import (
	"fmt"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

// === ProxyGroup 操作 ===

// CreateProxyGroup 创建代理组
func (s *SQLiteDB) CreateProxyGroup(group *dbinit.ProxyGroup) error {
	query := `INSERT INTO proxy_groups (name, type, proxies, sort_order) VALUES (?, ?, ?, ?)`
	result, err := s.db.Exec(query, group.Name, group.Type, group.Proxies, group.SortOrder)
	if err != nil {
		return err
	}
	group.ID, err = result.LastInsertId()
	return err
}

// ListProxyGroups 按排序键列出代理组
func (s *SQLiteDB) ListProxyGroups() ([]*dbinit.ProxyGroup, error) {
	query := `
		SELECT id, name, type, proxies, sort_order, created_at
		FROM proxy_groups
		ORDER BY sort_order ASC, name ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []*dbinit.ProxyGroup{}
	for rows.Next() {
		group := &dbinit.ProxyGroup{}
		err := rows.Scan(&group.ID, &group.Name, &group.Type, &group.Proxies,
			&group.SortOrder, &group.CreatedAt)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// DeleteProxyGroup 删除代理组
func (s *SQLiteDB) DeleteProxyGroup(id int64) error {
	result, err := s.db.Exec(`DELETE FROM proxy_groups WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("proxy group not found")
	}

	return nil
}

// === ProfileRule 操作 ===

// CreateProfileRule 创建路由规则
func (s *SQLiteDB) CreateProfileRule(rule *dbinit.ProfileRule) error {
	query := `INSERT INTO profile_rules (rule, sort_order) VALUES (?, ?)`
	result, err := s.db.Exec(query, rule.Rule, rule.SortOrder)
	if err != nil {
		return err
	}
	rule.ID, err = result.LastInsertId()
	return err
}

// ListProfileRules 按排序键列出路由规则
func (s *SQLiteDB) ListProfileRules() ([]*dbinit.ProfileRule, error) {
	query := `
		SELECT id, rule, sort_order, created_at
		FROM profile_rules
		ORDER BY sort_order ASC, id ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []*dbinit.ProfileRule{}
	for rows.Next() {
		rule := &dbinit.ProfileRule{}
		err := rows.Scan(&rule.ID, &rule.Rule, &rule.SortOrder, &rule.CreatedAt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteProfileRule 删除路由规则
func (s *SQLiteDB) DeleteProfileRule(id int64) error {
	result, err := s.db.Exec(`DELETE FROM profile_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("profile rule not found")
	}

	return nil
}
