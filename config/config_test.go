package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-card-cli/service"
)

func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", root)
	return root
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, service.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, service.DefaultTimeout, cfg.API.Timeout)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Storage.SnapshotDelay)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := isolate(t)
	path := filepath.Join(root, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://file.example/api
  timeout: 5s
log:
  level: debug
`), 0o600))
	t.Setenv("CITIZEN_API_BASE_URL", "https://env.example/api")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ReadsUserConfigDir(t *testing.T) {
	root := isolate(t)
	dir := filepath.Join(root, "citizen-card")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("metrics:\n  addr: \":9090\"\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	root := isolate(t)
	_, err := Load(filepath.Join(root, "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	isolate(t)
	t.Setenv("CITIZEN_STORAGE_DRIVER", "sqlite")
	t.Setenv("CITIZEN_LOG_FORMAT", "xml")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "log.format")
}
