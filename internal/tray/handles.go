package tray

import (
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"

	"traysites/internal/placement"
)

// siteTray 包装 application.SystemTray
type siteTray struct {
	id     string
	tray   *application.SystemTray
	logger *slog.Logger
}

func (t *siteTray) SetIcon(icon []byte) {
	if len(icon) == 0 {
		return
	}
	t.tray.SetIcon(icon)
}

// Bounds 托盘图标在屏幕上的位置（部分平台不支持）
func (t *siteTray) Bounds() (placement.Rect, error) {
	r, err := t.tray.Bounds()
	if err != nil {
		return placement.Rect{}, err
	}
	if r == nil {
		return placement.Rect{}, fmt.Errorf("托盘 %s 位置未知", t.id)
	}
	return toRect(*r), nil
}

func (t *siteTray) Destroy() {
	t.tray.Destroy()
	t.logger.Debug("托盘已销毁", "id", t.id)
}

// siteWindow 包装 application.WebviewWindow
type siteWindow struct {
	id     string
	window *application.WebviewWindow
	host   *Host
}

func (w *siteWindow) Show() {
	w.window.Show()
	w.window.Focus()
}

func (w *siteWindow) Hide() {
	w.window.Hide()
}

func (w *siteWindow) Close() {
	w.host.untrack(w.id, w.window)
	w.window.Close()
}

func (w *siteWindow) SetBounds(b placement.Bounds) {
	w.window.SetSize(b.Width, b.Height)
	w.window.SetPosition(b.X, b.Y)
}
