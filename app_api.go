// app_api.go - 暴露给控制面板的 API 方法 (Wails Bindings)
// 这些方法会被自动生成为 JavaScript 调用

package main

import (
	"context"
	"fmt"
	"time"

	"traysites/internal/controlapi"
	"traysites/internal/logging"
	"traysites/internal/site"
)

// apiTimeout 单次调用等待事件循环的上限
const apiTimeout = 10 * time.Second

// ============================================================
// 站点管理 API
// ============================================================

// AddSite 添加站点：创建托盘并保存站点列表
func (a *App) AddSite(url string) (site.View, error) {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Add(ctx, url)
}

// GetSite 返回单个站点的快照
func (a *App) GetSite(id string) (site.View, error) {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Get(ctx, id)
}

// InitializeSite 创建站点托盘但不打开窗口（延迟初始化的站点）
func (a *App) InitializeSite(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Initialize(ctx, id)
}

// OpenSite 打开站点窗口（未初始化时先创建托盘）
func (a *App) OpenSite(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Open(ctx, id)
}

// StopSite 关闭站点窗口，保留托盘
func (a *App) StopSite(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Stop(ctx, id)
}

// ExitSite 移除站点托盘和窗口，站点仍保留在列表中
func (a *App) ExitSite(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Exit(ctx, id)
}

// DeleteSite 删除站点并更新站点列表
func (a *App) DeleteSite(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.Delete(ctx, id)
}

// ListSites 返回全部站点（含控制面板）
func (a *App) ListSites() ([]site.View, error) {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controller.List(ctx)
}

// ============================================================
// 系统状态 API
// ============================================================

// SystemStatus 系统状态结构（与控制接口 /api/status 一致）
type SystemStatus = controlapi.Status

// GetSystemStatus 获取系统状态
func (a *App) GetSystemStatus() SystemStatus {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return a.controlStatus(ctx)
}

// controlStatus 统计站点数量；事件循环不可用时计数为 0
func (a *App) controlStatus(ctx context.Context) controlapi.Status {
	status := controlapi.Status{
		Version:   Version,
		StartTime: a.startTime.Format(time.RFC3339),
		Uptime:    formatDuration(time.Since(a.startTime)),
	}

	a.mu.RLock()
	if a.controlServer != nil {
		status.ControlAddr = a.controlServer.Addr()
	}
	controller := a.controller
	a.mu.RUnlock()

	if controller == nil {
		return status
	}
	views, err := controller.List(ctx)
	if err != nil {
		return status
	}
	status.SiteCount, status.ShownCount = countSites(views)
	return status
}

// countSites 统计普通站点数与窗口正在显示的站点数
func countSites(views []site.View) (total, shown int) {
	for _, v := range views {
		if v.Main {
			continue
		}
		total++
		if v.State == site.StatusReadyShown {
			shown++
		}
	}
	return total, shown
}

// ConfigInfo 配置与数据位置
type ConfigInfo struct {
	ConfigPath  string `json:"config_path"`
	SitesFile   string `json:"sites_file"`
	IconDB      string `json:"icon_db"`
	LogFile     string `json:"log_file"`
	LazyInit    bool   `json:"lazy_init"`
	IconCache   bool   `json:"icon_cache"`
	ControlAddr string `json:"control_addr"`
}

// GetConfig 获取配置信息
func (a *App) GetConfig() ConfigInfo {
	cfg := a.currentConfig()
	info := ConfigInfo{
		ConfigPath: a.configPath,
		SitesFile:  cfg.SitesFilePath(),
		IconDB:     cfg.IconDBPath(),
		LazyInit:   cfg.Sites.LazyInit,
		IconCache:  cfg.Icon.CacheEnabled,
	}
	if cfg.Logging.FileEnabled {
		info.LogFile = cfg.LogFilePath()
	}
	if cfg.Control.Enabled {
		info.ControlAddr = cfg.Control.Addr()
	}
	return info
}

// GetRecentLogs 获取最近的日志（控制面板打开时回填）
func (a *App) GetRecentLogs(limit int) []logging.LogEntry {
	if a.logs == nil {
		return nil
	}
	return a.logs.broadcast.GetRecentLogs(limit)
}

// ============================================================
// 辅助函数
// ============================================================

// formatDuration 格式化时长
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
