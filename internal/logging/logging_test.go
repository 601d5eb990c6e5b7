package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSimpleHandler_Format(t *testing.T) {
	var console syncBuffer
	logger := slog.New(NewSimpleHandler(slog.LevelInfo, &console, nil))

	logger.Debug("hidden")
	logger.With("component", "tray").Warn("⚠️ 图标解析失败", "id", "site-1")

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] ⚠️ 图标解析失败 component=tray id=site-1")
	assert.Contains(t, out, "[PID:")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestSimpleHandler_LevelVar(t *testing.T) {
	var console syncBuffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelError)
	logger := slog.New(NewSimpleHandler(level, &console, nil))

	logger.Info("before")
	level.Set(slog.LevelDebug)
	logger.Debug("after")

	out := console.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "[DEBUG] after")
}

func TestSimpleHandler_TruncatesConsoleOnly(t *testing.T) {
	var console syncBuffer
	path := filepath.Join(t.TempDir(), "app.log")
	file := NewFileWriter(RotationOptions{Path: path, MaxSizeMB: 1, MaxFiles: 1})
	h := NewSimpleHandler(slog.LevelInfo, &console, file)
	logger := slog.New(h)

	long := strings.Repeat("x", 800)
	logger.Info(long)
	require.NoError(t, h.Close())

	assert.Contains(t, console.String(), "(显示截断)")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), long)
}

func TestBroadcastHandler_RecentLogs(t *testing.T) {
	h := NewBroadcastHandler(NewSimpleHandler(slog.LevelDebug, nil, nil), 3)
	logger := slog.New(h)

	for _, msg := range []string{"a", "b", "c", "d"} {
		logger.Info(msg, "n", msg)
	}

	recent := h.GetRecentLogs(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "b", recent[0].Message)
	assert.Equal(t, "d", recent[2].Message)
	assert.Equal(t, "d", recent[2].Attrs["n"])
	assert.Equal(t, "INFO", recent[2].Level)

	last := h.GetRecentLogs(1)
	require.Len(t, last, 1)
	assert.Equal(t, "d", last[0].Message)
}

func TestBroadcastHandler_WithAttrsSharesBuffer(t *testing.T) {
	h := NewBroadcastHandler(NewSimpleHandler(slog.LevelDebug, nil, nil), 10)
	slog.New(h).With("site", "main").Error("boom")

	recent := h.GetRecentLogs(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "main", recent[0].Attrs["site"])
	assert.Equal(t, "ERROR", recent[0].Level)
}

func TestEventEmitter_Batches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]LogEntry
	emit := func(name string, data any) {
		assert.Equal(t, EventLogBatch, name)
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, data.([]LogEntry))
	}

	e := NewEventEmitter()
	e.Emit(LogEntry{Message: "dropped before start"})
	e.Start(context.Background(), emit)
	assert.True(t, e.IsEnabled())

	for i := 0; i < 25; i++ {
		e.Emit(LogEntry{Message: "m", Level: "INFO"})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, b := range batches {
			assert.LessOrEqual(t, len(b), 10)
			total += len(b)
		}
		return total == 25
	}, 2*time.Second, 20*time.Millisecond)

	e.Stop()
	assert.False(t, e.IsEnabled())
}
