// main.go - TraySites 应用入口
// 桌面应用（托盘站点）与命令行客户端共用一个二进制

package main

import (
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"traysites/config"
	"traysites/internal/logging"
)

// 版本信息
var (
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// 嵌入前端资源（控制面板）
//
//go:embed all:frontend/dist
var assets embed.FS

// 嵌入控制面板托盘图标
//
//go:embed build/appicon.png
var appIcon []byte

// 嵌入站点默认图标（favicon 获取失败时使用）
//
//go:embed build/siteicon.png
var defaultSiteIcon []byte

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================
// 日志
// ============================================================

// logSetup 日志组件，配置重载时整体替换
type logSetup struct {
	logger    *slog.Logger
	level     *slog.LevelVar
	simple    *logging.SimpleHandler
	broadcast *logging.BroadcastHandler
}

// setupLogger 配置结构化日志：控制台 + 可选的轮转文件，外层包装日志广播
func setupLogger(cfg *config.Config, console io.Writer) *logSetup {
	level := new(slog.LevelVar)
	level.Set(cfg.Logging.SlogLevel())

	var file io.WriteCloser
	if cfg.Logging.FileEnabled {
		file = logging.NewFileWriter(logging.RotationOptions{
			Path:       cfg.LogFilePath(),
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxFiles:   cfg.Logging.MaxFiles,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
	}

	simple := logging.NewSimpleHandler(level, console, file)
	broadcast := logging.NewBroadcastHandler(simple, 1000)

	if cfg.Logging.FileEnabled {
		fmt.Fprintf(console, "🔧 文件日志已启用: 路径=%s\n", cfg.LogFilePath())
	}

	return &logSetup{
		logger:    slog.New(broadcast),
		level:     level,
		simple:    simple,
		broadcast: broadcast,
	}
}
