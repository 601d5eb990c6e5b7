package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS icons (
	host TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	content_type TEXT,
	fetched_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_icons_fetched_at ON icons(fetched_at);
`

// Open 打开图标缓存数据库并初始化表结构。
// 单连接 + WAL：写入量很小，只需避免与并发读互相阻塞。
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("数据库路径不能为空")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("数据库不可用: %w", err)
	}

	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema 创建缓存表（幂等）
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化数据库 Schema 失败: %w", err)
	}
	return nil
}

// IsBusy 判断错误是否为 SQLite 锁冲突（供上层决定是否稍后重试）
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	return isSQLiteBusyError(err) || strings.Contains(strings.ToLower(err.Error()), "locked")
}
