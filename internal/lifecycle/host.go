// Package lifecycle 驱动每个站点的生命周期状态机：
// 托盘构建、窗口显示/隐藏、停止、退出与删除。
package lifecycle

import (
	"context"

	"traysites/internal/placement"
	"traysites/internal/site"
)

// MenuItem 托盘右键菜单项
type MenuItem struct {
	Label     string
	Separator bool
	OnClick   func()
}

// TraySpec 创建托盘图标所需参数
type TraySpec struct {
	ID      string
	Tooltip string
	Icon    []byte
	Menu    []MenuItem
	OnClick func()
}

// WindowSpec 创建站点窗口所需参数。回调可能在任意 goroutine 上触发。
type WindowSpec struct {
	ID        string
	URL       string
	Frameless bool
	OnReady   func()
	OnBlur    func()
	OnClosed  func()
}

// Tray 托盘图标句柄
type Tray interface {
	SetIcon(icon []byte)
	Bounds() (placement.Rect, error)
	Destroy()
}

// Window 站点窗口句柄
type Window interface {
	Show()
	Hide()
	Close()
	SetBounds(b placement.Bounds)
}

// Host 桌面宿主环境（托盘、窗口、屏幕）
type Host interface {
	NewTray(spec TraySpec) (Tray, error)
	NewWindow(spec WindowSpec) (Window, error)
	PrimaryWorkArea() (placement.Rect, error)
	Quit()
}

// Notifier 状态通知接收方（控制面板）
type Notifier interface {
	SiteAdded(v site.View)
	StatusChanged(v site.View)
	SitesLoaded(urls []string)
}

// SiteListStore 站点列表持久化
type SiteListStore interface {
	Save(urls []string) error
}

// IconSource 站点图标来源
type IconSource interface {
	Resolve(ctx context.Context, siteURL string) ([]byte, error)
	Fallback() []byte
}

type nopNotifier struct{}

func (nopNotifier) SiteAdded(site.View)     {}
func (nopNotifier) StatusChanged(site.View) {}
func (nopNotifier) SitesLoaded([]string)    {}
