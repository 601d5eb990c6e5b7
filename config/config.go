package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"traysites/internal/utils"
)

//go:embed config.yaml
var defaultConfigYAML []byte

type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Icon    IconConfig    `yaml:"icon"`
	Storage StorageConfig `yaml:"storage"`
	Sites   SitesConfig   `yaml:"sites"`
	Control ControlConfig `yaml:"control"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig 站点弹窗尺寸与位置
type WindowConfig struct {
	Margin        int     `yaml:"margin"`         // 与工作区边缘的距离
	WidthDivisor  float64 `yaml:"width_divisor"`  // 宽度 = 工作区宽 / width_divisor
	HeightDivisor float64 `yaml:"height_divisor"` // 高度 = 工作区高 / height_divisor
	Frameless     bool    `yaml:"frameless"`
}

// IconConfig 站点图标解析
type IconConfig struct {
	ServiceURL   string        `yaml:"service_url"` // 含一个 %s，替换为站点地址
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// StorageConfig 本地文件位置（相对路径基于数据目录）
type StorageConfig struct {
	SitesFile string `yaml:"sites_file"`
	IconDB    string `yaml:"icon_db"`
}

// SitesConfig 启动行为
type SitesConfig struct {
	// LazyInit 启动时只登记站点，首次打开时才构建托盘
	LazyInit bool `yaml:"lazy_init"`
}

// ControlConfig 本机控制接口（命令行客户端使用）
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr 监听地址
func (c ControlConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	FileEnabled bool   `yaml:"file_enabled"`
	FilePath    string `yaml:"file_path"`
	MaxSizeMB   int    `yaml:"max_size_mb"`  // 单个日志文件上限
	MaxFiles    int    `yaml:"max_files"`    // 保留的轮转文件数
	MaxAgeDays  int    `yaml:"max_age_days"` // 轮转文件保留天数，0 表示不按时间清理
	Compress    bool   `yaml:"compress"`
}

// defaultMargin 0 是合法值，只能在解码前预置
const defaultMargin = 50

// Default 返回内置默认配置
func Default() *Config {
	cfg := Config{Window: WindowConfig{Margin: defaultMargin}}
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("内置配置无效: %v", err))
	}
	cfg.setDefaults()
	return &cfg
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 未出现的键保留预置值
	config := Config{Window: WindowConfig{Margin: defaultMargin}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// EnsureConfigFile 配置文件不存在时写入内置默认配置，返回是否新建
func EnsureConfigFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, defaultConfigYAML, 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// DefaultConfigPath 应用数据目录下的 config.yaml
func DefaultConfigPath() string {
	return filepath.Join(utils.GetAppDataDir(), "config.yaml")
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Window.WidthDivisor == 0 {
		c.Window.WidthDivisor = 3
	}
	if c.Window.HeightDivisor == 0 {
		c.Window.HeightDivisor = 1.2
	}

	if c.Icon.ServiceURL == "" {
		c.Icon.ServiceURL = "https://www.google.com/s2/favicons?domain_url=%s"
	}
	if c.Icon.Timeout == 0 {
		c.Icon.Timeout = 15 * time.Second
	}
	if c.Icon.MaxBytes == 0 {
		c.Icon.MaxBytes = 1 << 20
	}
	if c.Icon.CacheTTL == 0 {
		c.Icon.CacheTTL = 7 * 24 * time.Hour
	}

	if c.Storage.SitesFile == "" {
		c.Storage.SitesFile = "sites.json"
	}
	if c.Storage.IconDB == "" {
		c.Storage.IconDB = "icons.db"
	}

	if c.Control.Host == "" {
		c.Control.Host = "127.0.0.1"
	}
	if c.Control.Port == 0 {
		c.Control.Port = 17321
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "traysites.log"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = 5
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Window.Margin < 0 {
		return fmt.Errorf("window.margin must not be negative")
	}
	if c.Window.WidthDivisor < 1 || c.Window.HeightDivisor < 1 {
		return fmt.Errorf("window.width_divisor and window.height_divisor must be >= 1")
	}

	if strings.Count(c.Icon.ServiceURL, "%s") != 1 {
		return fmt.Errorf("icon.service_url must contain exactly one %%s placeholder")
	}
	if c.Icon.Timeout < 0 || c.Icon.CacheTTL < 0 {
		return fmt.Errorf("icon durations must not be negative")
	}
	if c.Icon.MaxBytes < 0 {
		return fmt.Errorf("icon.max_bytes must not be negative")
	}

	if c.Control.Port < 0 || c.Control.Port > 65535 {
		return fmt.Errorf("control.port must be between 0 and 65535")
	}
	if ip := net.ParseIP(c.Control.Host); c.Control.Host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("control.host must be a loopback address")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must not be negative")
	}

	return nil
}

// SitesFilePath 站点列表文件的绝对路径
func (c *Config) SitesFilePath() string {
	return resolvePath(utils.GetDataDir(), c.Storage.SitesFile)
}

// IconDBPath 图标缓存数据库的绝对路径
func (c *Config) IconDBPath() string {
	return resolvePath(utils.GetDataDir(), c.Storage.IconDB)
}

// LogFilePath 日志文件的绝对路径
func (c *Config) LogFilePath() string {
	return resolvePath(utils.GetLogDir(), c.Logging.FilePath)
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// SlogLevel 转换日志级别
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigWatcher handles automatic configuration reloading
type ConfigWatcher struct {
	configPath    string
	config        *Config
	mutex         sync.RWMutex
	watcher       *fsnotify.Watcher
	logger        *slog.Logger
	callbacks     []func(*Config)
	lastModTime   time.Time
	debounce      time.Duration
	debounceTimer *time.Timer
}

// NewConfigWatcher 加载配置并开始监听。
// 监听的是配置文件所在目录：编辑器原子保存（写临时文件再重命名）会让文件级监听失效。
func NewConfigWatcher(configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	configPath = filepath.Clean(configPath)
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	cw := &ConfigWatcher{
		configPath:  configPath,
		config:      config,
		watcher:     watcher,
		logger:      logger,
		lastModTime: fileInfo.ModTime(),
		debounce:    500 * time.Millisecond,
	}
	go cw.watchLoop()

	return cw, nil
}

// GetConfig returns the current configuration (thread-safe)
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.config
}

// UpdateLogger 启动后切换到正式的日志器
func (cw *ConfigWatcher) UpdateLogger(logger *slog.Logger) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.logger = logger
}

func (cw *ConfigWatcher) log() *slog.Logger {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.logger
}

// AddReloadCallback 注册重新加载成功后的回调，按注册顺序调用
func (cw *ConfigWatcher) AddReloadCallback(callback func(*Config)) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if cw.modified() {
				cw.scheduleReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log().Error(fmt.Sprintf("⚠️ 配置文件监听错误: %v", err))
		}
	}
}

// modified 文件存在且修改时间晚于上次加载（只在 watchLoop 中调用）
func (cw *ConfigWatcher) modified() bool {
	fileInfo, err := os.Stat(cw.configPath)
	if err != nil {
		// 重命名保存的中间状态，等待后续 Create 事件
		return false
	}
	if !fileInfo.ModTime().After(cw.lastModTime) {
		return false
	}
	cw.lastModTime = fileInfo.ModTime()
	return true
}

// scheduleReload 合并短时间内的多次写入
func (cw *ConfigWatcher) scheduleReload() {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(cw.debounce, func() {
		logger := cw.log()
		logger.Info("🔄 检测到配置文件变更，正在重新加载...", "file", cw.configPath)
		if err := cw.reloadConfig(); err != nil {
			logger.Error("❌ 配置文件重新加载失败，继续使用原配置", "error", err)
			return
		}
		logger.Info("✅ 配置文件重新加载成功")
	})
}

// reloadConfig reloads the configuration from file
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}

	cw.mutex.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mutex.Unlock()

	for _, callback := range callbacks {
		callback(newConfig)
	}

	cw.logConfigChanges(oldConfig, newConfig)

	return nil
}

// logConfigChanges logs the key differences between old and new configurations
func (cw *ConfigWatcher) logConfigChanges(oldConfig, newConfig *Config) {
	logger := cw.log()

	if oldConfig.Window != newConfig.Window {
		logger.Info("🪟 窗口放置参数变更",
			"margin", newConfig.Window.Margin,
			"width_divisor", newConfig.Window.WidthDivisor,
			"height_divisor", newConfig.Window.HeightDivisor,
			"frameless", newConfig.Window.Frameless)
	}

	if oldConfig.Logging.Level != newConfig.Logging.Level {
		logger.Info("📝 日志级别变更",
			"old_level", oldConfig.Logging.Level,
			"new_level", newConfig.Logging.Level)
	}

	if oldConfig.Icon.ServiceURL != newConfig.Icon.ServiceURL {
		logger.Info("🖼️ 图标服务地址变更（重启后生效）",
			"old_url", oldConfig.Icon.ServiceURL,
			"new_url", newConfig.Icon.ServiceURL)
	}

	if oldConfig.Control != newConfig.Control {
		logger.Info("🌐 控制接口配置变更（重启后生效）",
			"old_addr", oldConfig.Control.Addr(),
			"new_addr", newConfig.Control.Addr())
	}
}

// Close stops the configuration watcher
func (cw *ConfigWatcher) Close() error {
	cw.mutex.Lock()
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.mutex.Unlock()
	return cw.watcher.Close()
}
