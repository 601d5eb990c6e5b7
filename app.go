// app.go - Wails 应用核心结构
// 封装所有业务组件，提供生命周期管理

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"traysites/config"
	"traysites/internal/controlapi"
	"traysites/internal/icon"
	"traysites/internal/lifecycle"
	"traysites/internal/persist"
	"traysites/internal/placement"
	"traysites/internal/service"
	"traysites/internal/site"
	"traysites/internal/store"
	"traysites/internal/tray"
	"traysites/internal/utils"
)

// App 是 Wails 应用的核心结构
// 它封装了所有业务组件，并作为 Service 暴露方法给控制面板调用
type App struct {
	app *application.App

	// 核心组件
	config        *config.Config
	configWatcher *config.ConfigWatcher
	logger        *slog.Logger
	logs          *logSetup

	registry   *site.Registry
	host       *tray.Host
	controller *lifecycle.Controller
	siteStore  *persist.FileStore

	// 图标缓存 (SQLite)
	iconDB    *sql.DB
	iconCache *service.IconCacheService
	resolver  *icon.Resolver

	controlServer *controlapi.Server

	// 应用状态
	startTime  time.Time
	configPath string
	cancel     context.CancelFunc

	mu        sync.RWMutex
	isRunning bool
}

// NewApp 创建新的应用实例
func NewApp(configPath string) *App {
	return &App{
		startTime:  time.Now(),
		configPath: configPath,
	}
}

// runDesktop 启动桌面应用，阻塞直到退出
func runDesktop(configPath string) error {
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	a := NewApp(configPath)

	// 1. 加载配置
	if err := a.loadConfig(); err != nil {
		return err
	}

	// 2. 初始化日志
	a.setupLogger()

	a.app = application.New(application.Options{
		Name:        "TraySites",
		Description: "把网站变成系统托盘常驻的小应用",
		Services: []application.Service{
			application.NewService(a),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// 没有窗口时仍然常驻托盘
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// 托盘与窗口要等事件循环启动后再创建
	a.app.Event.OnApplicationEvent(events.Common.ApplicationStarted, func(_ *application.ApplicationEvent) {
		go a.bootstrap()
	})

	return a.app.Run()
}

// ServiceStartup 在 Wails 应用启动时调用
func (a *App) ServiceStartup(ctx context.Context, _ application.ServiceOptions) error {
	a.startup(ctx)
	return nil
}

// ServiceShutdown 在 Wails 应用关闭时调用
func (a *App) ServiceShutdown() error {
	a.shutdown(context.Background())
	return nil
}

// startup 初始化所有组件
func (a *App) startup(ctx context.Context) {
	a.logger.Info("🚀 TraySites 启动中...",
		"version", Version,
		"config_file", a.configPath)

	// 3. 图标缓存与解析器
	a.setupIconCache(ctx)
	a.setupIconResolver()

	// 4. 站点注册表、持久化与生命周期控制器
	a.setupController()

	// 5. 本机控制接口
	a.startControlServer()

	// 6. 配置热重载
	a.setupConfigReload()

	// 7. 日志推送到控制面板
	a.logs.broadcast.Emitter.Start(ctx, a.emitLog)

	a.mu.Lock()
	a.isRunning = true
	a.mu.Unlock()

	a.logger.Info("✅ TraySites 启动完成")
}

// bootstrap 注册控制面板托盘并恢复已保存的站点
func (a *App) bootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.controller.RegisterMain(ctx, "/", appIcon); err != nil {
		a.logger.Error("❌ 控制面板托盘创建失败", "error", err)
	}

	urls := a.loadSavedSites()
	restored, err := a.controller.Restore(ctx, urls, a.currentConfig().Sites.LazyInit)
	if err != nil {
		a.logger.Error("❌ 恢复站点失败", "error", err)
		return
	}
	a.logger.Info("📋 站点恢复完成", "count", restored, "file", a.siteStore.Path())
}

// loadSavedSites 读取站点列表；文件缺失或损坏都按首次运行处理
func (a *App) loadSavedSites() []string {
	urls, err := a.siteStore.Load()
	if err == nil {
		return urls
	}

	var parseErr *persist.ParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.logger.Info("📭 站点列表不存在，按首次运行处理", "file", a.siteStore.Path())
	case errors.As(err, &parseErr):
		a.logger.Warn("⚠️ 站点列表已损坏，按首次运行处理", "error", err)
	default:
		a.logger.Warn("⚠️ 无法读取站点列表，按首次运行处理", "error", err)
	}
	return nil
}

// shutdown 关闭所有组件
func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	logger := a.logger
	cancel := a.cancel
	controlServer := a.controlServer
	iconDB := a.iconDB
	configWatcher := a.configWatcher
	logs := a.logs
	a.isRunning = false
	a.mu.Unlock()

	if logger != nil {
		logger.Info("🛑 正在关闭 TraySites...")
	}

	// 1. 停止控制接口
	if controlServer != nil {
		shutdownCtx, stop := context.WithTimeout(ctx, 3*time.Second)
		defer stop()
		if err := controlServer.Shutdown(shutdownCtx); err != nil && logger != nil {
			logger.Error("控制接口关闭失败", "error", err)
		}
	}

	// 2. 停止生命周期事件循环
	if cancel != nil {
		cancel()
	}

	// 3. 关闭图标缓存
	if iconDB != nil {
		if err := iconDB.Close(); err != nil && logger != nil {
			logger.Error("图标缓存数据库关闭失败", "error", err)
		}
	}

	// 4. 关闭配置监听
	if configWatcher != nil {
		_ = configWatcher.Close()
	}

	if logger != nil {
		logger.Info("✅ TraySites 已关闭")
	}

	// 5. 停止日志推送并关闭日志文件
	if logs != nil {
		logs.broadcast.Emitter.Stop()
		_ = logs.simple.Close()
	}
}

// loadConfig 加载配置（不存在时写入默认配置）
func (a *App) loadConfig() error {
	tempLogger := slog.Default()

	if err := utils.EnsureAppDirs(); err != nil {
		tempLogger.Warn("⚠️ 无法创建应用目录", "error", err)
	} else {
		tempLogger.Info("📁 应用目录已就绪",
			"appdir", utils.GetAppDataDir(),
			"data", utils.GetDataDir(),
			"logs", utils.GetLogDir())
	}

	created, err := config.EnsureConfigFile(a.configPath)
	if err != nil {
		return fmt.Errorf("无法创建配置文件: %w", err)
	}
	if created {
		tempLogger.Info("📝 已写入默认配置", "path", a.configPath)
	}

	configWatcher, err := config.NewConfigWatcher(a.configPath, tempLogger)
	if err != nil {
		return fmt.Errorf("无法加载配置: %w", err)
	}

	a.configWatcher = configWatcher
	a.config = configWatcher.GetConfig()
	return nil
}

// setupLogger 设置日志
func (a *App) setupLogger() {
	a.logs = setupLogger(a.config, os.Stdout)
	a.logger = a.logs.logger
	slog.SetDefault(a.logger)
	a.configWatcher.UpdateLogger(a.logger)

	a.logger.Info("✅ 日志系统初始化完成",
		"level", a.config.Logging.Level,
		"file_enabled", a.config.Logging.FileEnabled)
}

// setupIconCache 打开图标缓存数据库并清理过期条目；失败时不使用缓存
func (a *App) setupIconCache(ctx context.Context) {
	cfg := a.config.Icon
	if !cfg.CacheEnabled {
		return
	}

	dbPath := a.config.IconDBPath()
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := store.Open(openCtx, dbPath)
	if err != nil {
		if store.IsBusy(err) {
			a.logger.Warn("⚠️ 图标缓存数据库被占用，本次不使用缓存（是否有另一个实例在运行？）", "error", err)
		} else {
			a.logger.Warn("⚠️ 图标缓存数据库不可用，本次不使用缓存", "error", err)
		}
		return
	}

	a.iconDB = db
	a.iconCache = service.NewIconCacheService(store.NewSQLiteIconStore(db), cfg.CacheTTL)

	if purged, err := a.iconCache.PurgeExpired(openCtx); err != nil {
		a.logger.Warn("⚠️ 清理过期图标失败", "error", err)
	} else if purged > 0 {
		a.logger.Info("🧹 已清理过期图标", "count", purged)
	}
	a.logger.Info("✅ 图标缓存已就绪", "db", dbPath)
}

// setupIconResolver 创建站点图标解析器
func (a *App) setupIconResolver() {
	var cache icon.Cache
	if a.iconCache != nil {
		cache = a.iconCache
	}

	cfg := a.config.Icon
	a.resolver = icon.NewResolver(&http.Client{}, icon.Options{
		ServiceURL: cfg.ServiceURL,
		Timeout:    cfg.Timeout,
		MaxBytes:   cfg.MaxBytes,
	}, cache, defaultSiteIcon, a.logger)
}

// setupController 创建宿主与生命周期控制器，并启动事件循环
func (a *App) setupController() {
	a.registry = site.NewRegistry(nil)
	a.siteStore = persist.NewFileStore(a.config.SitesFilePath())

	host := tray.NewHost(a.app, tray.Options{WindowTitle: "TraySites"}, a.logger)

	a.controller = lifecycle.New(lifecycle.Config{
		Registry:    a.registry,
		Host:        host,
		Icons:       a.resolver,
		Notifier:    &panelNotifier{emitter: host, logger: a.logger},
		SiteStore:   a.siteStore,
		Logger:      a.logger,
		Placement:   placementOptions(a.config.Window),
		Frameless:   a.config.Window.Frameless,
		IconTimeout: a.config.Icon.Timeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go a.controller.Run(ctx)

	a.mu.Lock()
	a.host = host
	a.cancel = cancel
	a.mu.Unlock()
}

// startControlServer 启动本机控制接口；端口被占用时只记录警告
func (a *App) startControlServer() {
	cfg := a.config.Control
	if !cfg.Enabled {
		a.logger.Info("🌐 控制接口未启用")
		return
	}

	gin.SetMode(gin.ReleaseMode)
	handler := controlapi.NewHandler(a.controller, a.controlStatus, a.logger)
	server := controlapi.NewServer(cfg.Addr(), controlapi.NewRouter(handler), a.logger)
	if err := server.Start(); err != nil {
		a.logger.Warn("⚠️ 控制接口启动失败，命令行子命令不可用", "error", err)
		return
	}

	a.mu.Lock()
	a.controlServer = server
	a.mu.Unlock()
}

// setupConfigReload 配置变更后更新放置参数与日志级别
func (a *App) setupConfigReload() {
	a.configWatcher.AddReloadCallback(func(newCfg *config.Config) {
		a.mu.Lock()
		a.config = newCfg
		a.mu.Unlock()

		a.logs.level.Set(newCfg.Logging.SlogLevel())
		a.controller.SetPlacement(placementOptions(newCfg.Window), newCfg.Window.Frameless)

		a.logger.Info("🔄 配置已重新加载")
	})

	a.logger.Info("🔄 配置热重载已启用")
}

func (a *App) currentConfig() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func placementOptions(cfg config.WindowConfig) placement.Options {
	return placement.Options{
		Margin:        cfg.Margin,
		WidthDivisor:  cfg.WidthDivisor,
		HeightDivisor: cfg.HeightDivisor,
	}
}
