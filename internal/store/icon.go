// Package store 提供数据存储层实现
// 图标缓存存储：按主机名缓存 favicon 字节，避免每次启动都请求图标服务
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// IconRecord 表示数据库中的图标缓存记录
type IconRecord struct {
	Host        string    `json:"host"`
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// IconStore 定义图标缓存存储接口
type IconStore interface {
	Get(ctx context.Context, host string) (*IconRecord, error)
	Put(ctx context.Context, record *IconRecord) error
	Delete(ctx context.Context, host string) error
	List(ctx context.Context) ([]*IconRecord, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	WithTx(tx *sql.Tx) IconStore
}

// SQLiteIconStore 实现 IconStore 接口
type SQLiteIconStore struct {
	db *sql.DB
	mu sync.RWMutex
	tx *sql.Tx
}

func NewSQLiteIconStore(db *sql.DB) *SQLiteIconStore {
	return &SQLiteIconStore{db: db}
}

func (s *SQLiteIconStore) WithTx(tx *sql.Tx) IconStore {
	return &SQLiteIconStore{db: s.db, tx: tx}
}

func (s *SQLiteIconStore) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLiteIconStore) queryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *SQLiteIconStore) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *SQLiteIconStore) Get(ctx context.Context, host string) (*IconRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT host, data, COALESCE(content_type, ''), fetched_at
		FROM icons
		WHERE host = ?
	`

	var record IconRecord
	var fetchedAt string
	err := s.queryRowContext(ctx, query, host).Scan(
		&record.Host,
		&record.Data,
		&record.ContentType,
		&fetchedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("获取图标缓存失败: %w", err)
	}
	record.FetchedAt = parseSQLiteDateTime(fetchedAt)
	return &record, nil
}

func (s *SQLiteIconStore) Put(ctx context.Context, record *IconRecord) error {
	if record == nil {
		return fmt.Errorf("record 不能为空")
	}
	if record.Host == "" {
		return fmt.Errorf("主机名不能为空")
	}
	if len(record.Data) == 0 {
		return fmt.Errorf("图标数据不能为空")
	}
	if record.FetchedAt.IsZero() {
		record.FetchedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO icons (host, data, content_type, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			data = excluded.data,
			content_type = excluded.content_type,
			fetched_at = excluded.fetched_at
	`
	_, err := withBusyRetry(ctx, func() (sql.Result, error) {
		return s.execContext(ctx, query,
			record.Host,
			record.Data,
			nullIfEmpty(record.ContentType),
			formatSQLiteDateTime(record.FetchedAt),
		)
	})
	if err != nil {
		return fmt.Errorf("写入图标缓存失败: %w", err)
	}
	return nil
}

func (s *SQLiteIconStore) Delete(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execContext(ctx, `DELETE FROM icons WHERE host = ?`, host)
	if err != nil {
		return fmt.Errorf("删除图标缓存失败: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("图标缓存不存在: %s", host)
	}
	return nil
}

func (s *SQLiteIconStore) List(ctx context.Context) ([]*IconRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT host, data, COALESCE(content_type, ''), fetched_at
		FROM icons
		ORDER BY host ASC
	`
	rows, err := withBusyRetry(ctx, func() (*sql.Rows, error) {
		return s.queryContext(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("列出图标缓存失败: %w", err)
	}
	defer rows.Close()

	var result []*IconRecord
	for rows.Next() {
		var record IconRecord
		var fetchedAt string
		if err := rows.Scan(&record.Host, &record.Data, &record.ContentType, &fetchedAt); err != nil {
			return nil, fmt.Errorf("读取图标缓存失败: %w", err)
		}
		record.FetchedAt = parseSQLiteDateTime(fetchedAt)
		result = append(result, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取图标缓存失败: %w", err)
	}
	return result, nil
}

// PurgeBefore 删除 cutoff 之前抓取的缓存，返回删除条数
func (s *SQLiteIconStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := withBusyRetry(ctx, func() (sql.Result, error) {
		return s.execContext(ctx, `DELETE FROM icons WHERE fetched_at < ?`, formatSQLiteDateTime(cutoff))
	})
	if err != nil {
		return 0, fmt.Errorf("清理图标缓存失败: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
