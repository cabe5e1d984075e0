package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, 5*time.Second, cfg.Sessions.LockWait)
	assert.Equal(t, "*/15 * * * *", cfg.Sessions.SweepSchedule)
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custos.toml")
	content := `
[server]
port = 9090
host = "0.0.0.0"

[storage.badger]
path = "/tmp/custos-test"

[sessions]
owner_scan_cap = 50

[automation]
base_url = "http://backend:5055"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/tmp/custos-test", cfg.Storage.Badger.Path)
	assert.Equal(t, 50, cfg.Sessions.OwnerScanCap)
	assert.Equal(t, "http://backend:5055", cfg.Automation.BaseURL)
	// Untouched settings keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, "https://accounts.google.com/ServiceLogin", cfg.Automation.LoginURL)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/custos.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CUSTOS_SERVER_PORT", "7070")
	t.Setenv("CUSTOS_SESSION_TTL", "12h")
	t.Setenv("CUSTOS_AUTOMATION_URL", "http://other:5055")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, "http://other:5055", cfg.Automation.BaseURL)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 6060, "127.0.0.1")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	// Zero values leave the config untouched
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}
