package sqlite

import (
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

// === UsageLog 操作 ===

// CreateUsageLog 追加流量上报日志
func (s *SQLiteDB) CreateUsageLog(log *dbinit.UsageLog) error {
	query := `
		INSERT INTO usage_logs (id, node_id, subscriber_id, upload_delta, download_delta, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, log.ID, log.NodeID, log.SubscriberID,
		log.UploadDelta, log.DownloadDelta, log.ObservedAt)
	return err
}

// ListUsageLogs 查询某订阅者最近的上报日志
func (s *SQLiteDB) ListUsageLogs(subscriberID int64, limit int) ([]*dbinit.UsageLog, error) {
	query := `
		SELECT id, node_id, subscriber_id, upload_delta, download_delta, observed_at, created_at
		FROM usage_logs
		WHERE subscriber_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, subscriberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*dbinit.UsageLog{}
	for rows.Next() {
		log := &dbinit.UsageLog{}
		err := rows.Scan(&log.ID, &log.NodeID, &log.SubscriberID,
			&log.UploadDelta, &log.DownloadDelta, &log.ObservedAt, &log.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeleteUsageLogsBefore 清理超过保留期的上报日志，返回删除的行数
func (s *SQLiteDB) DeleteUsageLogsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM usage_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
