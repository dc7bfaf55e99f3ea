package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB SQLite数据库客户端
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB 打开数据库并初始化 schema 与触发器
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := dbinit.InitSQLiteSchema(db); err != nil {
		return nil, err
	}
	if err := dbinit.CreateTriggers(db); err != nil {
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

// Close 关闭数据库连接
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Get 获取底层的 *sql.DB
func (s *SQLiteDB) Get() *sql.DB {
	return s.db
}
