package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"traysites/internal/placement"
	"traysites/internal/site"
)

// ErrNotRunning 站点托盘尚未构建，无法停止
var ErrNotRunning = errors.New("站点未运行")

// entry 站点运行时句柄，只在事件循环内读写
type entry struct {
	site *site.Site

	tray   Tray
	window Window
	ready  bool

	// constructing 窗口已创建但尚未 ready-to-show，期间的重复点击被合并
	constructing bool

	// windowGen 每次创建或销毁窗口时递增，用于丢弃旧窗口的迟到回调
	windowGen uint64
}

// Config 控制器依赖
type Config struct {
	Registry  *site.Registry
	Host      Host
	Icons     IconSource
	Notifier  Notifier
	SiteStore SiteListStore
	Logger    *slog.Logger

	Placement   placement.Options
	Frameless   bool
	IconTimeout time.Duration
}

// Controller 站点生命周期控制器
type Controller struct {
	registry  *site.Registry
	host      Host
	icons     IconSource
	notifier  Notifier
	siteStore SiteListStore
	logger    *slog.Logger

	loop    *eventLoop
	baseCtx context.Context
	entries map[string]*entry

	lastSaved []string
	saved     bool

	optsMu      sync.RWMutex
	placement   placement.Options
	frameless   bool
	iconTimeout time.Duration
}

// New 创建控制器；需要调用 Run 启动事件循环
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	registry := cfg.Registry
	if registry == nil {
		registry = site.NewRegistry(nil)
	}
	iconTimeout := cfg.IconTimeout
	if iconTimeout <= 0 {
		iconTimeout = 15 * time.Second
	}

	return &Controller{
		registry:    registry,
		host:        cfg.Host,
		icons:       cfg.Icons,
		notifier:    notifier,
		siteStore:   cfg.SiteStore,
		logger:      logger,
		loop:        newEventLoop(logger),
		baseCtx:     context.Background(),
		entries:     make(map[string]*entry),
		placement:   cfg.Placement,
		frameless:   cfg.Frameless,
		iconTimeout: iconTimeout,
	}
}

// Run 运行事件循环，直到 ctx 取消
func (c *Controller) Run(ctx context.Context) {
	c.baseCtx = ctx
	c.loop.run(ctx)
}

// SetPlacement 运行时更新窗口放置参数（配置热重载）
func (c *Controller) SetPlacement(opts placement.Options, frameless bool) {
	c.optsMu.Lock()
	defer c.optsMu.Unlock()
	c.placement = opts
	c.frameless = frameless
}

func (c *Controller) placementOptions() (placement.Options, bool) {
	c.optsMu.RLock()
	defer c.optsMu.RUnlock()
	return c.placement, c.frameless
}

// ============================================================
// 控制面板命令
// ============================================================

// RegisterMain 注册控制面板实体并立即构建它的托盘
func (c *Controller) RegisterMain(ctx context.Context, url string, icon []byte) error {
	return c.loop.call(ctx, func() error {
		s := c.registry.AddMain(url, icon)
		e := c.entryFor(s)
		return c.initialize(e)
	})
}

// Restore 启动时恢复已保存的站点。没有任何站点时自动显示控制面板（首次运行）。
func (c *Controller) Restore(ctx context.Context, urls []string, lazy bool) (int, error) {
	var restored int
	err := c.loop.call(ctx, func() error {
		var loaded []string
		for _, u := range urls {
			s, err := c.registry.Add(u)
			if err != nil {
				c.logger.Warn("⚠️ 跳过无效的已保存站点", "url", u, "error", err)
				continue
			}
			e := c.entryFor(s)
			loaded = append(loaded, s.URL)
			if !lazy {
				if err := c.initialize(e); err != nil {
					c.logger.Error("❌ 站点初始化失败", "id", s.ID, "url", s.URL, "error", err)
				}
			}
		}
		restored = len(loaded)

		c.lastSaved = c.registry.VisibleURLs()
		c.saved = true

		if restored > 0 {
			c.notifier.SitesLoaded(loaded)
			return nil
		}

		// 首次运行：自动打开控制面板
		if main, ok := c.entries[site.MainID]; ok {
			c.logger.Info("📭 没有已保存的站点，显示控制面板")
			c.click(main)
		}
		return nil
	})
	return restored, err
}

// Add 注册新站点、构建托盘、通知控制面板并持久化
func (c *Controller) Add(ctx context.Context, url string) (site.View, error) {
	var view site.View
	err := c.loop.call(ctx, func() error {
		s, err := c.registry.Add(url)
		if err != nil {
			return err
		}
		e := c.entryFor(s)
		c.logger.Info("➕ 已添加站点", "id", s.ID, "url", s.URL)

		// 先通知新增，控制面板才能接收随后的状态变更
		c.notifier.SiteAdded(s.View())
		if err := c.initialize(e); err != nil {
			c.logger.Error("❌ 站点初始化失败", "id", s.ID, "url", s.URL, "error", err)
		}

		view = s.View()
		c.persist()
		return nil
	})
	return view, err
}

// Initialize 构建站点托盘（已构建时为空操作）
func (c *Controller) Initialize(ctx context.Context, id string) error {
	return c.loop.call(ctx, func() error {
		e, err := c.lookup(id)
		if err != nil {
			return err
		}
		return c.initialize(e)
	})
}

// Open 必要时先初始化，再模拟一次托盘点击
func (c *Controller) Open(ctx context.Context, id string) error {
	return c.loop.call(ctx, func() error {
		return c.open(id)
	})
}

// Stop 销毁窗口，保留托盘
func (c *Controller) Stop(ctx context.Context, id string) error {
	return c.loop.call(ctx, func() error {
		return c.stop(id)
	})
}

// Exit 销毁窗口与托盘
func (c *Controller) Exit(ctx context.Context, id string) error {
	return c.loop.call(ctx, func() error {
		return c.exit(id)
	})
}

// Delete 退出站点并永久移除
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.loop.call(ctx, func() error {
		return c.delete(id)
	})
}

// ExitAll 关闭所有站点并退出应用
func (c *Controller) ExitAll(ctx context.Context) error {
	return c.loop.call(ctx, func() error {
		c.exitAll()
		return nil
	})
}

// List 按注册顺序返回全部站点快照（控制面板在首位）
func (c *Controller) List(ctx context.Context) ([]site.View, error) {
	var views []site.View
	err := c.loop.call(ctx, func() error {
		for _, s := range c.registry.All() {
			views = append(views, s.View())
		}
		return nil
	})
	return views, err
}

// Get 返回单个站点快照
func (c *Controller) Get(ctx context.Context, id string) (site.View, error) {
	var view site.View
	err := c.loop.call(ctx, func() error {
		e, err := c.lookup(id)
		if err != nil {
			return err
		}
		view = e.site.View()
		return nil
	})
	return view, err
}

// ============================================================
// 状态机（只在事件循环内调用）
// ============================================================

func (c *Controller) entryFor(s *site.Site) *entry {
	if e, ok := c.entries[s.ID]; ok {
		return e
	}
	e := &entry{site: s}
	c.entries[s.ID] = e
	return e
}

func (c *Controller) lookup(id string) (*entry, error) {
	s, err := c.registry.Find(id)
	if err != nil {
		return nil, err
	}
	e, ok := c.entries[s.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", site.ErrNotFound, id)
	}
	return e, nil
}

func (c *Controller) setStatus(e *entry, status site.Status) {
	if e.site.Status == status {
		return
	}
	old := e.site.Status
	e.site.Status = status
	c.logger.Debug("站点状态变更", "id", e.site.ID, "from", old.String(), "to", status.String())
	c.notifier.StatusChanged(e.site.View())
}

func (c *Controller) initialize(e *entry) error {
	if e.site.Status == site.StatusDeleted {
		return fmt.Errorf("%w: %s", site.ErrNotFound, e.site.ID)
	}
	if e.ready {
		return nil
	}

	icon := e.site.Icon
	if len(icon) == 0 && c.icons != nil {
		icon = c.icons.Fallback()
	}

	id := e.site.ID
	tray, err := c.host.NewTray(TraySpec{
		ID:      id,
		Tooltip: e.site.URL,
		Icon:    icon,
		Menu:    c.menuFor(e),
		OnClick: func() {
			c.loop.post(func() { c.handleClick(id) })
		},
	})
	if err != nil {
		return fmt.Errorf("创建托盘失败: %w", err)
	}

	e.tray = tray
	e.ready = true
	c.setStatus(e, site.StatusReadyHidden)

	if len(e.site.Icon) == 0 && !e.site.Main {
		c.resolveIcon(e)
	}
	return nil
}

// resolveIcon 异步解析图标，结果回到事件循环再应用
func (c *Controller) resolveIcon(e *entry) {
	if c.icons == nil {
		return
	}
	id, url := e.site.ID, e.site.URL
	parent := c.baseCtx
	timeout := c.iconTimeout

	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		data, err := c.icons.Resolve(ctx, url)
		if err != nil {
			c.logger.Warn("⚠️ 图标解析失败，使用默认图标", "id", id, "url", url, "error", err)
			return
		}
		if len(data) == 0 {
			return
		}
		c.loop.post(func() { c.handleIcon(id, data) })
	}()
}

func (c *Controller) handleIcon(id string, data []byte) {
	e, ok := c.entries[id]
	if !ok || e.site.Status == site.StatusDeleted {
		c.logger.Debug("站点已删除，丢弃图标结果", "id", id)
		return
	}
	e.site.Icon = data
	if e.tray != nil {
		e.tray.SetIcon(data)
	}
}

func (c *Controller) open(id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	if !e.ready {
		if err := c.initialize(e); err != nil {
			return err
		}
	}
	c.click(e)
	return nil
}

func (c *Controller) handleClick(id string) {
	e, ok := c.entries[id]
	if !ok || e.site.Status == site.StatusDeleted || !e.ready {
		return
	}
	c.click(e)
}

func (c *Controller) click(e *entry) {
	if e.constructing {
		c.logger.Debug("窗口正在创建，忽略重复点击", "id", e.site.ID)
		return
	}
	if e.window != nil {
		c.show(e)
		return
	}

	_, frameless := c.placementOptions()
	e.windowGen++
	gen := e.windowGen
	id := e.site.ID

	window, err := c.host.NewWindow(WindowSpec{
		ID:        id,
		URL:       e.site.URL,
		Frameless: frameless,
		OnReady: func() {
			c.loop.post(func() { c.handleReady(id, gen) })
		},
		OnBlur: func() {
			c.loop.post(func() { c.handleBlur(id, gen) })
		},
		OnClosed: func() {
			c.loop.post(func() { c.handleClosed(id, gen) })
		},
	})
	if err != nil {
		c.logger.Error("❌ 创建站点窗口失败", "id", id, "url", e.site.URL, "error", err)
		return
	}
	e.window = window
	e.constructing = true
}

func (c *Controller) current(id string, gen uint64) (*entry, bool) {
	e, ok := c.entries[id]
	if !ok || e.window == nil || e.windowGen != gen {
		return nil, false
	}
	return e, true
}

func (c *Controller) handleReady(id string, gen uint64) {
	e, ok := c.current(id, gen)
	if !ok {
		return
	}
	e.constructing = false
	c.show(e)
}

func (c *Controller) handleBlur(id string, gen uint64) {
	e, ok := c.current(id, gen)
	if !ok || e.constructing || e.site.Status != site.StatusReadyShown {
		return
	}
	e.window.Hide()
	c.setStatus(e, site.StatusReadyHidden)
}

func (c *Controller) handleClosed(id string, gen uint64) {
	e, ok := c.current(id, gen)
	if !ok {
		return
	}
	e.window = nil
	e.constructing = false
	e.windowGen++
	if e.site.Status == site.StatusReadyShown {
		c.setStatus(e, site.StatusReadyHidden)
	}
}

// show 每次显示都重新计算位置（屏幕与托盘位置可能已变化）
func (c *Controller) show(e *entry) {
	if bounds, ok := c.bounds(e); ok {
		e.window.SetBounds(bounds)
	}
	e.window.Show()
	c.setStatus(e, site.StatusReadyShown)
}

func (c *Controller) bounds(e *entry) (placement.Bounds, bool) {
	workArea, err := c.host.PrimaryWorkArea()
	if err != nil {
		c.logger.Warn("⚠️ 获取屏幕工作区失败，保持窗口原位置", "error", err)
		return placement.Bounds{}, false
	}

	var anchor placement.Point
	if e.tray != nil {
		if rect, err := e.tray.Bounds(); err == nil {
			anchor = placement.Point{X: rect.X, Y: rect.Y}
		} else {
			c.logger.Debug("获取托盘位置失败，按左上角放置", "id", e.site.ID, "error", err)
		}
	}

	opts, _ := c.placementOptions()
	return placement.Calculate(workArea, anchor, opts), true
}

func (c *Controller) destroyWindow(e *entry) {
	if e.window == nil {
		return
	}
	w := e.window
	e.window = nil
	e.constructing = false
	e.windowGen++
	w.Close()
}

func (c *Controller) destroyTray(e *entry) {
	if e.tray != nil {
		e.tray.Destroy()
		e.tray = nil
	}
	e.ready = false
}

func (c *Controller) stop(id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	if e.site.Main {
		return fmt.Errorf("%w: stop", site.ErrReservedID)
	}

	switch e.site.Status {
	case site.StatusReadyHidden, site.StatusReadyShown:
		c.destroyWindow(e)
		c.setStatus(e, site.StatusStopped)
		c.logger.Info("⏹️ 站点已停止", "id", id)
		c.persist()
		return nil
	case site.StatusStopped:
		return nil
	default:
		return fmt.Errorf("%w: %s (%s)", ErrNotRunning, id, e.site.Status)
	}
}

func (c *Controller) exit(id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	if e.site.Main {
		return fmt.Errorf("%w: exit", site.ErrReservedID)
	}
	if !e.ready {
		return nil
	}

	c.destroyWindow(e)
	c.destroyTray(e)
	c.setStatus(e, site.StatusExited)
	c.logger.Info("⏏️ 站点已退出", "id", id)
	c.persist()
	return nil
}

func (c *Controller) delete(id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	if e.site.Main {
		return fmt.Errorf("%w: delete", site.ErrReservedID)
	}

	c.destroyWindow(e)
	c.destroyTray(e)
	c.setStatus(e, site.StatusDeleted)

	c.registry.Remove(id)
	delete(c.entries, id)
	c.logger.Info("🗑️ 站点已删除", "id", id, "url", e.site.URL)
	c.persist()
	return nil
}

func (c *Controller) exitAll() {
	for _, s := range c.registry.All() {
		e, ok := c.entries[s.ID]
		if !ok || !e.ready {
			continue
		}
		c.destroyWindow(e)
		c.destroyTray(e)
		c.setStatus(e, site.StatusExited)
	}
	c.logger.Info("👋 已关闭全部站点，正在退出")

	// Quit 可能同步触发宿主的关闭回调，不能在事件循环内阻塞
	go c.host.Quit()
}

// persist 可见站点列表有变化时整体写入
func (c *Controller) persist() {
	if c.siteStore == nil {
		return
	}
	urls := c.registry.VisibleURLs()
	if c.saved && slices.Equal(urls, c.lastSaved) {
		return
	}
	if err := c.siteStore.Save(urls); err != nil {
		c.logger.Error("❌ 保存站点列表失败", "error", err)
		return
	}
	c.lastSaved = urls
	c.saved = true
	c.logger.Debug("站点列表已保存", "count", len(urls))
}

// ============================================================
// 托盘菜单
// ============================================================

func (c *Controller) menuFor(e *entry) []MenuItem {
	id := e.site.ID
	if e.site.Main {
		return []MenuItem{
			{Label: "显示控制面板", OnClick: func() { c.loop.post(func() { c.handleClick(id) }) }},
			{Separator: true},
			{Label: "全部退出", OnClick: func() { c.loop.post(c.exitAll) }},
		}
	}

	command := func(name string, fn func(string) error) func() {
		return func() {
			c.loop.post(func() {
				if err := fn(id); err != nil {
					c.logger.Warn("⚠️ 托盘菜单命令失败", "command", name, "id", id, "error", err)
				}
			})
		}
	}
	return []MenuItem{
		{Label: "打开", OnClick: command("open", c.open)},
		{Label: "停止", OnClick: command("stop", c.stop)},
		{Label: "退出", OnClick: command("exit", c.exit)},
		{Separator: true},
		{Label: "删除", OnClick: command("delete", c.delete)},
	}
}
