package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAppDataDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(AppDirEnv, dir)

	assert.Equal(t, dir, GetAppDataDir())
	assert.Equal(t, filepath.Join(dir, "data"), GetDataDir())
	assert.Equal(t, filepath.Join(dir, "logs"), GetLogDir())

	require.NoError(t, EnsureAppDirs())
	for _, sub := range []string{"data", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPlatformAppDataDir_LinuxXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "traysites"), platformAppDataDir("linux"))
}

func TestPlatformAppDataDir_WindowsAppData(t *testing.T) {
	t.Setenv("APPDATA", "/appdata")
	assert.Equal(t, filepath.Join("/appdata", "TraySites"), platformAppDataDir("windows"))
}
