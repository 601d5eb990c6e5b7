package store

import (
	"context"
	"strings"
	"time"
)

const (
	busyInitialBackoff = 20 * time.Millisecond
	busyMaxBackoff     = 400 * time.Millisecond
)

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	// driver 错误类型不导出，按消息判断
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked")
}

// withBusyRetry 在 SQLite 返回 busy 时指数退避重试，直到成功、遇到其他错误或 ctx 结束。
// ctx 结束时返回最后一次的 busy 错误。
func withBusyRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	backoff := busyInitialBackoff
	for {
		result, err := fn()
		if err == nil || !isSQLiteBusyError(err) || ctx.Err() != nil {
			return result, err
		}

		timer := time.NewTimer(min(backoff, busyMaxBackoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
		backoff *= 2
	}
}
