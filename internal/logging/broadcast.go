package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogEntry 推送给控制面板的日志条目
type LogEntry struct {
	Time    string            `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// logRing 最近日志的环形缓冲
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func newLogRing(size int) *logRing {
	if size <= 0 {
		size = 1000
	}
	return &logRing{entries: make([]LogEntry, size)}
}

func (r *logRing) add(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// recent 按时间顺序返回最近 limit 条
func (r *logRing) recent(limit int) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]LogEntry, 0, limit)
	start := r.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}

// BroadcastHandler 包装下游处理器：保存最近日志供查询，并通过 Emitter 推送给前端
type BroadcastHandler struct {
	next    slog.Handler
	ring    *logRing
	attrs   []slog.Attr
	Emitter *EventEmitter
}

// NewBroadcastHandler 创建广播处理器，bufferSize 为保留的最近日志条数
func NewBroadcastHandler(next slog.Handler, bufferSize int) *BroadcastHandler {
	return &BroadcastHandler{
		next:    next,
		ring:    newLogRing(bufferSize),
		Emitter: NewEventEmitter(),
	}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Time:    r.Time.Format(time.RFC3339Nano),
		Level:   levelName(r.Level),
		Message: r.Message,
	}
	if n := len(h.attrs) + r.NumAttrs(); n > 0 {
		entry.Attrs = make(map[string]string, n)
		for _, a := range h.attrs {
			entry.Attrs[a.Key] = fmt.Sprint(a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			entry.Attrs[a.Key] = fmt.Sprint(a.Value)
			return true
		})
	}

	h.ring.add(entry)
	h.Emitter.Emit(entry)
	return h.next.Handle(ctx, r)
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{
		next:    h.next.WithAttrs(attrs),
		ring:    h.ring,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
		Emitter: h.Emitter,
	}
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{
		next:    h.next.WithGroup(name),
		ring:    h.ring,
		attrs:   h.attrs,
		Emitter: h.Emitter,
	}
}

// GetRecentLogs 返回最近的日志（旧的在前）
func (h *BroadcastHandler) GetRecentLogs(limit int) []LogEntry {
	return h.ring.recent(limit)
}
