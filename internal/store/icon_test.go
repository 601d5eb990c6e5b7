package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDB 创建测试用的 SQLite 数据库
func createTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "icons.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIconStore_PutGet(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))
	ctx := context.Background()

	fetched := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	err := store.Put(ctx, &IconRecord{
		Host:        "example.com",
		Data:        []byte{0x89, 'P', 'N', 'G'},
		ContentType: "image/png",
		FetchedAt:   fetched,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.Data)
	assert.Equal(t, "image/png", got.ContentType)
	assert.True(t, fetched.Equal(got.FetchedAt), "fetched_at = %v", got.FetchedAt)
}

func TestIconStore_GetMissing(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))

	got, err := store.Get(context.Background(), "missing.example")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIconStore_PutUpserts(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &IconRecord{Host: "a.example", Data: []byte("old")}))
	require.NoError(t, store.Put(ctx, &IconRecord{Host: "a.example", Data: []byte("new"), ContentType: "image/x-icon"}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("new"), records[0].Data)
	assert.Equal(t, "image/x-icon", records[0].ContentType)
}

func TestIconStore_PutValidates(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, nil))
	assert.Error(t, store.Put(ctx, &IconRecord{Data: []byte("x")}))
	assert.Error(t, store.Put(ctx, &IconRecord{Host: "a.example"}))
}

func TestIconStore_Delete(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &IconRecord{Host: "a.example", Data: []byte("x")}))
	require.NoError(t, store.Delete(ctx, "a.example"))
	assert.Error(t, store.Delete(ctx, "a.example"))
}

func TestIconStore_PurgeBefore(t *testing.T) {
	store := NewSQLiteIconStore(createTestDB(t))
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Put(ctx, &IconRecord{Host: "old.example", Data: []byte("x"), FetchedAt: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, store.Put(ctx, &IconRecord{Host: "new.example", Data: []byte("y"), FetchedAt: now}))

	n, err := store.PurgeBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new.example", records[0].Host)
}

func TestIconStore_WithTxRollback(t *testing.T) {
	db := createTestDB(t)
	store := NewSQLiteIconStore(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.WithTx(tx).Put(ctx, &IconRecord{Host: "tx.example", Data: []byte("x")}))
	require.NoError(t, tx.Rollback())

	got, err := store.Get(ctx, "tx.example")
	require.NoError(t, err)
	assert.Nil(t, got)
}
