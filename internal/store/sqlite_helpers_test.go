package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithBusyRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := withBusyRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("SQLITE_BUSY: database is locked")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestWithBusyRetry_OtherErrorReturnsImmediately(t *testing.T) {
	calls := 0
	_, err := withBusyRetry(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("no such table: icons")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBusyRetry_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := withBusyRetry(ctx, func() (int, error) {
		return 0, errors.New("database is locked")
	})
	require.Error(t, err)
	assert.True(t, IsBusy(err))
}

func TestSQLiteDateTime(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	formatted := formatSQLiteDateTime(ts)
	assert.Equal(t, "2026-03-04 05:06:07.890", formatted)
	assert.True(t, ts.Equal(parseSQLiteDateTime(formatted)))

	assert.True(t, parseSQLiteDateTime("2026-03-04 05:06:07").Equal(ts.Truncate(time.Second)))
	assert.True(t, parseSQLiteDateTime("2026-03-04T13:06:07+08:00").Equal(ts.Truncate(time.Second)))
	assert.True(t, parseSQLiteDateTime("").IsZero())
	assert.True(t, parseSQLiteDateTime("garbage").IsZero())
}
