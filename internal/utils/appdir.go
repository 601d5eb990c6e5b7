package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppDirEnv 覆盖应用数据目录（测试与便携模式）
const AppDirEnv = "TRAYSITES_HOME"

// GetAppDataDir 获取应用数据目录（跨平台）
// Windows: %APPDATA%\TraySites
// macOS: ~/Library/Application Support/TraySites
// Linux: ~/.local/share/traysites
func GetAppDataDir() string {
	if dir := os.Getenv(AppDirEnv); dir != "" {
		return dir
	}
	return platformAppDataDir(runtime.GOOS)
}

func platformAppDataDir(goos string) string {
	switch goos {
	case "windows":
		baseDir := os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(baseDir, "TraySites")

	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", "TraySites")

	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "traysites")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "share", "traysites")

	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".traysites")
	}
}

// GetDataDir 数据文件目录（站点列表、图标缓存）
func GetDataDir() string {
	return filepath.Join(GetAppDataDir(), "data")
}

// GetLogDir 日志目录
func GetLogDir() string {
	return filepath.Join(GetAppDataDir(), "logs")
}

// EnsureAppDirs 创建应用所需的目录
func EnsureAppDirs() error {
	for _, dir := range []string{GetAppDataDir(), GetDataDir(), GetLogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}
