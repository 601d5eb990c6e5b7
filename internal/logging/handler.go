package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationOptions 日志文件轮转参数
type RotationOptions struct {
	Path       string
	MaxSizeMB  int
	MaxFiles   int
	MaxAgeDays int
	Compress   bool
}

// NewFileWriter 创建按大小轮转的日志文件
func NewFileWriter(opts RotationOptions) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxFiles,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  true,
	}
}

const maxDisplayLen = 500

// SimpleHandler 简化的日志处理器：[时间] [PID] [GID] [级别] 消息 k=v
type SimpleHandler struct {
	level   slog.Leveler
	console io.Writer
	file    io.WriteCloser

	mu    *sync.Mutex
	attrs []slog.Attr
}

// NewSimpleHandler console 为空时不输出到控制台，file 为空时不写文件
func NewSimpleHandler(level slog.Leveler, console io.Writer, file io.WriteCloser) *SimpleHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &SimpleHandler{
		level:   level,
		console: console,
		file:    file,
		mu:      &sync.Mutex{},
	}
}

func (h *SimpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *SimpleHandler) Handle(_ context.Context, r slog.Record) error {
	message := formatMessage(r, h.attrs)

	timestamp := r.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	prefix := fmt.Sprintf("[%s] [PID:%d] [GID:%d] [%s] ",
		timestamp.Format("2006-01-02 15:04:05.000"), os.Getpid(), getGoroutineID(), levelName(r.Level))

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil {
		if _, err := io.WriteString(h.file, prefix+message+"\n"); err != nil {
			return err
		}
	}

	if h.console != nil {
		display := message
		if len(display) > maxDisplayLen {
			display = display[:maxDisplayLen] + "... (显示截断)"
		}
		if _, err := io.WriteString(h.console, prefix+display+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *SimpleHandler) WithGroup(_ string) slog.Handler {
	return h
}

// Close 关闭日志文件
func (h *SimpleHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}

func formatMessage(r slog.Record, extra []slog.Attr) string {
	var attrs []string
	for _, a := range extra {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})
	if len(attrs) == 0 {
		return r.Message
	}
	return r.Message + " " + strings.Join(attrs, " ")
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func getGoroutineID() int {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	fields := strings.Fields(string(buf))
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return id
}
