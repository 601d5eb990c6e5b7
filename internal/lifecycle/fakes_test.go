package lifecycle

import (
	"context"
	"errors"
	"slices"
	"sync"

	"traysites/internal/placement"
	"traysites/internal/site"
)

type fakeTray struct {
	mu        sync.Mutex
	spec      TraySpec
	icon      []byte
	bounds    placement.Rect
	destroyed bool
}

func (t *fakeTray) SetIcon(icon []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.icon = icon
}

func (t *fakeTray) Bounds() (placement.Rect, error) {
	return t.bounds, nil
}

func (t *fakeTray) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}

func (t *fakeTray) Icon() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.icon
}

func (t *fakeTray) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

type fakeWindow struct {
	mu      sync.Mutex
	spec    WindowSpec
	visible bool
	closed  bool
	shows   int
	bounds  placement.Bounds
}

func (w *fakeWindow) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = true
	w.shows++
}

func (w *fakeWindow) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.visible = false
}

func (w *fakeWindow) SetBounds(b placement.Bounds) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bounds = b
}

func (w *fakeWindow) state() (visible, closed bool, shows int, bounds placement.Bounds) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible, w.closed, w.shows, w.bounds
}

type fakeHost struct {
	mu       sync.Mutex
	trays    []*fakeTray
	windows  []*fakeWindow
	workArea placement.Rect
	trayAt   placement.Rect
	quit     chan struct{}
	trayErr  error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		workArea: placement.Rect{Width: 1200, Height: 800},
		trayAt:   placement.Rect{X: 1100, Y: 10, Width: 24, Height: 24},
		quit:     make(chan struct{}),
	}
}

func (h *fakeHost) NewTray(spec TraySpec) (Tray, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.trayErr != nil {
		return nil, h.trayErr
	}
	t := &fakeTray{spec: spec, icon: spec.Icon, bounds: h.trayAt}
	h.trays = append(h.trays, t)
	return t, nil
}

func (h *fakeHost) NewWindow(spec WindowSpec) (Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := &fakeWindow{spec: spec}
	h.windows = append(h.windows, w)
	return w, nil
}

func (h *fakeHost) PrimaryWorkArea() (placement.Rect, error) {
	return h.workArea, nil
}

func (h *fakeHost) Quit() {
	close(h.quit)
}

// traysFor 返回为指定站点创建过的全部托盘
func (h *fakeHost) traysFor(id string) []*fakeTray {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*fakeTray
	for _, t := range h.trays {
		if t.spec.ID == id {
			out = append(out, t)
		}
	}
	return out
}

func (h *fakeHost) windowsFor(id string) []*fakeWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*fakeWindow
	for _, w := range h.windows {
		if w.spec.ID == id {
			out = append(out, w)
		}
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	added    []site.View
	statuses []site.View
	loaded   [][]string
	// order 按到达顺序记录的通知，形如 "added:id"、"status:id:hidden"
	order []string
}

func (n *fakeNotifier) SiteAdded(v site.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, v)
	n.order = append(n.order, "added:"+v.ID)
}

func (n *fakeNotifier) StatusChanged(v site.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, v)
	n.order = append(n.order, "status:"+v.ID+":"+v.State.String())
}

func (n *fakeNotifier) SitesLoaded(urls []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded = append(n.loaded, slices.Clone(urls))
}

func (n *fakeNotifier) Order() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.order)
}

func (n *fakeNotifier) Added() []site.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.added)
}

func (n *fakeNotifier) Statuses(id string) []site.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []site.Status
	for _, v := range n.statuses {
		if v.ID == id {
			out = append(out, v.State)
		}
	}
	return out
}

type fakeStore struct {
	mu    sync.Mutex
	saves [][]string
	err   error
}

func (s *fakeStore) Save(urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, slices.Clone(urls))
	return nil
}

func (s *fakeStore) Last() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil, 0
	}
	return s.saves[len(s.saves)-1], len(s.saves)
}

var errIconUnavailable = errors.New("icon unavailable")

type fakeIcons struct {
	fallback []byte
	data     []byte
	err      error
	// release 非空时 Resolve 阻塞直到关闭
	release chan struct{}
}

func (f *fakeIcons) Resolve(ctx context.Context, _ string) ([]byte, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeIcons) Fallback() []byte {
	return f.fallback
}
