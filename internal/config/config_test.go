package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	t.Setenv("WALLET_DATABASE_PATH", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DatabasePath)
	assert.Equal(t, DefaultNode, cfg.DefaultNode)
	assert.True(t, cfg.Notifications)
	assert.Equal(t, 64, cfg.EventQueueSize)
	assert.Equal(t, 15*time.Second, cfg.NodeRequestTimeout)
	assert.Equal(t, 10, cfg.NodeRateLimit)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.File)
}

func TestLoadDefaultDatabasePath(t *testing.T) {
	t.Setenv("WALLET_DATABASE_PATH", "")
	os.Unsetenv("WALLET_DATABASE_PATH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabasePath, cfg.DatabasePath)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("WALLET_DATABASE_PATH", t.TempDir())
	t.Setenv("WALLET_DEFAULT_NODE", "https://node.example")
	t.Setenv("WALLET_NOTIFICATIONS", "false")
	t.Setenv("WALLET_NODE_REQUEST_TIMEOUT", "3s")
	t.Setenv("WALLET_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://node.example", cfg.DefaultNode)
	assert.False(t, cfg.Notifications)
	assert.Equal(t, 3*time.Second, cfg.NodeRequestTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WALLET_DATABASE_PATH", dir)
	t.Setenv("WALLET_NODE_RATE_LIMIT", "3")

	content := "DEFAULT_NODE: https://file.example\nNODE_RATE_LIMIT: 50\nEVENT_QUEUE_SIZE: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FileName), cfg.File)
	assert.Equal(t, "https://file.example", cfg.DefaultNode)
	assert.Equal(t, 8, cfg.EventQueueSize)
	// environment wins over the file
	assert.Equal(t, 3, cfg.NodeRateLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("WALLET_DATABASE_PATH", string([]byte{0xff, 0xfe}))
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidDatabasePath)

	t.Setenv("WALLET_DATABASE_PATH", t.TempDir())
	t.Setenv("WALLET_LOG_LEVEL", "chatty")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("WALLET_LOG_LEVEL", "info")
	t.Setenv("WALLET_EVENT_QUEUE_SIZE", "0")
	_, err = Load()
	assert.Error(t, err)
}
