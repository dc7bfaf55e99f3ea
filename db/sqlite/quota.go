package sqlite

import (
	"database/sql"
	"fmt"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

const quotaColumns = `id, subscriber_id, package_id, token, traffic_quota, traffic_used,
	expires_at, status, created_at, updated_at`

func scanQuota(row interface{ Scan(...interface{}) error }) (*dbinit.SubscriberQuota, error) {
	quota := &dbinit.SubscriberQuota{}
	err := row.Scan(
		&quota.ID, &quota.SubscriberID, &quota.PackageID, &quota.Token,
		&quota.TrafficQuota, &quota.TrafficUsed, &quota.ExpiresAt, &quota.Status,
		&quota.CreatedAt, &quota.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return quota, nil
}

// === SubscriberQuota 操作 ===

// CreateQuota 创建订阅配额
func (s *SQLiteDB) CreateQuota(quota *dbinit.SubscriberQuota) error {
	query := `
		INSERT INTO subscriber_quotas
		(subscriber_id, package_id, token, traffic_quota, traffic_used, expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query, quota.SubscriberID, quota.PackageID, quota.Token,
		quota.TrafficQuota, quota.TrafficUsed, quota.ExpiresAt, quota.Status)
	if err != nil {
		return err
	}

	quota.ID, err = result.LastInsertId()
	return err
}

// GetQuota 获取配额记录
func (s *SQLiteDB) GetQuota(id int64) (*dbinit.SubscriberQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM subscriber_quotas WHERE id = ?`
	return scanQuota(s.db.QueryRow(query, id))
}

// GetQuotaByToken 通过订阅令牌获取配额记录
func (s *SQLiteDB) GetQuotaByToken(token string) (*dbinit.SubscriberQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM subscriber_quotas WHERE token = ?`
	return scanQuota(s.db.QueryRow(query, token))
}

// GetActiveQuotaBySubscriber 获取订阅者的活跃配额记录
func (s *SQLiteDB) GetActiveQuotaBySubscriber(subscriberID int64) (*dbinit.SubscriberQuota, error) {
	query := `
		SELECT ` + quotaColumns + ` FROM subscriber_quotas
		WHERE subscriber_id = ? AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanQuota(s.db.QueryRow(query, subscriberID))
}

// GetQuotaBySubscriber 获取订阅者最新的配额记录（不限状态）
func (s *SQLiteDB) GetQuotaBySubscriber(subscriberID int64) (*dbinit.SubscriberQuota, error) {
	query := `
		SELECT ` + quotaColumns + ` FROM subscriber_quotas
		WHERE subscriber_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanQuota(s.db.QueryRow(query, subscriberID))
}

// AddQuotaUsage 累加已用流量（单行原子自增）
func (s *SQLiteDB) AddQuotaUsage(id int64, delta int64) error {
	result, err := s.db.Exec(
		`UPDATE subscriber_quotas SET traffic_used = traffic_used + ? WHERE id = ?`,
		delta, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("quota not found")
	}

	return nil
}

// SetQuotaStatus 更新派生状态
func (s *SQLiteDB) SetQuotaStatus(id int64, status string) error {
	result, err := s.db.Exec(
		`UPDATE subscriber_quotas SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("quota not found")
	}

	return nil
}

// ListQuotas 列出配额记录
func (s *SQLiteDB) ListQuotas(status string, limit, offset int) ([]*dbinit.SubscriberQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM subscriber_quotas WHERE 1=1`
	args := []interface{}{}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotas := []*dbinit.SubscriberQuota{}
	for rows.Next() {
		quota, err := scanQuota(rows)
		if err != nil {
			return nil, err
		}
		quotas = append(quotas, quota)
	}

	return quotas, rows.Err()
}
