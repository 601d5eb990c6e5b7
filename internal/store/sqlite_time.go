package store

import (
	"strings"
	"time"
)

// sqliteDateTimeLayout 固定宽度 UTC 格式，SQL 中按字符串比较即按时间比较
const sqliteDateTimeLayout = "2006-01-02 15:04:05.000"

func formatSQLiteDateTime(t time.Time) string {
	return t.UTC().Format(sqliteDateTimeLayout)
}

// parseSQLiteDateTime 解析 fetched_at。
// 除本包写入的格式外，也接受手工写入的 CURRENT_TIMESTAMP 与 RFC3339；无法解析时返回零值。
func parseSQLiteDateTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}

	for _, layout := range []string{sqliteDateTimeLayout, time.DateTime, time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
