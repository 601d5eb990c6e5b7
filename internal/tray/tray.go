// Package tray 基于 Wails v3 的桌面宿主实现：每个站点一个托盘图标、一个按需创建的窗口。
package tray

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"traysites/internal/lifecycle"
	"traysites/internal/placement"
)

// ErrNoScreen 无法获取主显示器
var ErrNoScreen = errors.New("未找到主显示器")

// Options 宿主参数
type Options struct {
	// ReadyTimeout 外部网页不一定加载 Wails 运行时，超时后仍然触发 ready
	ReadyTimeout time.Duration

	// WindowTitle 站点窗口标题前缀
	WindowTitle string
}

// Host 实现 lifecycle.Host。
// 窗口按站点 ID 登记，便于把事件只发给控制面板窗口。
type Host struct {
	app    *application.App
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	windows map[string]*application.WebviewWindow
}

var _ lifecycle.Host = (*Host)(nil)

// NewHost 创建宿主
func NewHost(app *application.App, opts Options, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 3 * time.Second
	}
	if opts.WindowTitle == "" {
		opts.WindowTitle = "TraySites"
	}
	return &Host{
		app:     app,
		opts:    opts,
		logger:  logger,
		windows: make(map[string]*application.WebviewWindow),
	}
}

// NewTray 创建托盘图标：左键点击回调 spec.OnClick，右键弹出菜单
func (h *Host) NewTray(spec lifecycle.TraySpec) (lifecycle.Tray, error) {
	if h.app == nil {
		return nil, fmt.Errorf("创建托盘失败: 应用未初始化")
	}

	st := h.app.SystemTray.New()
	if len(spec.Icon) > 0 {
		st.SetIcon(spec.Icon)
	}
	if spec.Tooltip != "" {
		st.SetTooltip(spec.Tooltip)
	}
	if len(spec.Menu) > 0 {
		st.SetMenu(h.buildMenu(spec.Menu))
	}
	if spec.OnClick != nil {
		st.OnClick(spec.OnClick)
	}
	st.OnRightClick(func() {
		st.OpenMenu()
	})

	h.logger.Debug("托盘已创建", "id", spec.ID)
	return &siteTray{id: spec.ID, tray: st, logger: h.logger}, nil
}

func (h *Host) buildMenu(items []lifecycle.MenuItem) *application.Menu {
	menu := h.app.Menu.New()
	for _, item := range items {
		if item.Separator {
			menu.AddSeparator()
			continue
		}
		onClick := item.OnClick
		menu.Add(item.Label).OnClick(func(_ *application.Context) {
			if onClick != nil {
				onClick()
			}
		})
	}
	return menu
}

// NewWindow 创建隐藏的站点窗口并开始加载地址，加载完成后回调 OnReady
func (h *Host) NewWindow(spec lifecycle.WindowSpec) (lifecycle.Window, error) {
	if h.app == nil {
		return nil, fmt.Errorf("创建窗口失败: 应用未初始化")
	}

	win := h.app.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:        windowName(spec.ID),
		Title:       h.opts.WindowTitle + " - " + spec.URL,
		URL:         spec.URL,
		Frameless:   spec.Frameless,
		Hidden:      true,
		AlwaysOnTop: true,
		Mac: application.MacWindow{
			TitleBar: application.MacTitleBarHiddenInset,
		},
	})

	w := &siteWindow{id: spec.ID, window: win, host: h}
	h.track(spec.ID, win)

	var readyOnce sync.Once
	ready := func() {
		readyOnce.Do(func() {
			if spec.OnReady != nil {
				spec.OnReady()
			}
		})
	}
	win.OnWindowEvent(events.Common.WindowRuntimeReady, func(_ *application.WindowEvent) {
		ready()
	})
	time.AfterFunc(h.opts.ReadyTimeout, ready)

	win.OnWindowEvent(events.Common.WindowLostFocus, func(_ *application.WindowEvent) {
		if spec.OnBlur != nil {
			spec.OnBlur()
		}
	})
	win.RegisterHook(events.Common.WindowClosing, func(_ *application.WindowEvent) {
		h.untrack(spec.ID, win)
		if spec.OnClosed != nil {
			spec.OnClosed()
		}
	})

	h.logger.Debug("站点窗口已创建", "id", spec.ID, "url", spec.URL)
	return w, nil
}

// PrimaryWorkArea 主显示器工作区（不含任务栏/菜单栏）
func (h *Host) PrimaryWorkArea() (placement.Rect, error) {
	if h.app == nil {
		return placement.Rect{}, ErrNoScreen
	}
	screen := h.app.Screen.GetPrimary()
	if screen == nil {
		return placement.Rect{}, ErrNoScreen
	}
	return toRect(screen.WorkArea), nil
}

// Quit 退出应用
func (h *Host) Quit() {
	if h.app != nil {
		h.app.Quit()
	}
}

// Emit 向指定站点的窗口发送事件；窗口不存在时返回 false
func (h *Host) Emit(id, name string, data any) bool {
	h.mu.Lock()
	win := h.windows[id]
	h.mu.Unlock()

	if win == nil {
		return false
	}
	win.EmitEvent(name, data)
	return true
}

func (h *Host) track(id string, win *application.WebviewWindow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.windows[id] = win
}

// untrack 只移除仍然登记为该站点当前窗口的句柄
func (h *Host) untrack(id string, win *application.WebviewWindow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.windows[id] == win {
		delete(h.windows, id)
	}
}

func windowName(id string) string {
	return "site-" + id
}

func toRect(r application.Rect) placement.Rect {
	return placement.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
