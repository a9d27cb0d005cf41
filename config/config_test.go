package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, int64(_const.DefaultLimiter), cfg.Scheduler.Limiter)
	assert.Equal(t, _const.DefaultQueryTimeout, cfg.Scheduler.QueryTimeout)
	assert.True(t, cfg.Scheduler.AutoLoad)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Empty(t, cfg.File())

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, _const.ReplaceConnectionPolicy, policy)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 8080
  mode: debug
database:
  driver: postgres
  dsn: host=localhost user=notify dbname=notify
  retry_count: 2
logger:
  level: debug
scheduler:
  limiter: 4
  fire_timeout: 30s
websocket:
  connection_policy: close-old
  allowed_origins:
    - https://app.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Database.RetryCount)
	assert.Equal(t, int64(4), cfg.Scheduler.Limiter)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.FireTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.WebSocket.AllowedOrigins)
	// 未配置的字段保留默认值
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, _const.CloseOldConnectionPolicy, policy)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server:\n  port: 8080\n")
	t.Setenv("NOTIFY_SERVER_PORT", "9090")
	t.Setenv("NOTIFY_WEBSOCKET_CONNECTION_POLICY", "reject-new")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, _const.RejectNewConnectionPolicy, policy)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "port", content: "server:\n  port: 70000\n", wantErr: "invalid server.port"},
		{name: "driver", content: "database:\n  driver: oracle\n", wantErr: "unsupported database.driver"},
		{name: "limiter", content: "scheduler:\n  limiter: 0\n", wantErr: "scheduler.limiter"},
		{name: "policy", content: "websocket:\n  connection_policy: newest-wins\n", wantErr: "newest-wins"},
		{name: "yaml", content: "server: [\n", wantErr: "failed to read config file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tc.content))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "logger:\n  level: info\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		level string
	)
	cfg.Watch(func(fresh *Config) {
		mu.Lock()
		defer mu.Unlock()
		level = fresh.Logger.Level
	}, nil)

	writeConfig(t, dir, "logger:\n  level: debug\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return level == "debug"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConfig_WatchWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg.Watch(func(*Config) {}, nil)
	})
}
