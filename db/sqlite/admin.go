package sqlite

import (
	"database/sql"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

// === Admin 操作 ===

// CreateAdmin 创建管理员账户
func (s *SQLiteDB) CreateAdmin(admin *dbinit.Admin) error {
	query := `INSERT INTO admins (username, password_hash) VALUES (?, ?)`
	result, err := s.db.Exec(query, admin.Username, admin.PasswordHash)
	if err != nil {
		return err
	}
	admin.ID, err = result.LastInsertId()
	return err
}

// GetAdminByUsername 通过用户名获取管理员
func (s *SQLiteDB) GetAdminByUsername(username string) (*dbinit.Admin, error) {
	admin := &dbinit.Admin{}
	query := `SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`
	err := s.db.QueryRow(query, username).Scan(
		&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// CountAdmins 统计管理员数量（用于首次启动初始化）
func (s *SQLiteDB) CountAdmins() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}
