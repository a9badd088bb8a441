// Package config resolves wallet CLI settings from WALLET_* environment
// variables and an optional config file in the storage directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every key when reading the environment
	EnvPrefix = "WALLET"

	// DatabasePathKey is the directory holding the keystore and account database
	DatabasePathKey = "DATABASE_PATH"
	// DefaultNodeKey is the node used by `new` when no --node is given
	DefaultNodeKey = "DEFAULT_NODE"
	// NotificationsKey enables desktop notifications; false prints events instead
	NotificationsKey = "NOTIFICATIONS"
	// EventQueueSizeKey is the capacity of the notification queue
	EventQueueSizeKey = "EVENT_QUEUE_SIZE"
	// NodeRequestTimeoutKey bounds each HTTP request to a node
	NodeRequestTimeoutKey = "NODE_REQUEST_TIMEOUT"
	// NodeRateLimitKey is the maximum number of node requests per second
	NodeRateLimitKey = "NODE_RATE_LIMIT"
	// LogLevelKey is one of debug, info, warn, error
	LogLevelKey = "LOG_LEVEL"

	// FileName is the optional config file inside the storage directory
	FileName = "wallet-cli.yaml"

	DefaultDatabasePath = "./wallet-cli-database"
	DefaultNode         = "http://localhost:14265"
)

// ErrInvalidDatabasePath is returned when WALLET_DATABASE_PATH is not valid UTF-8.
var ErrInvalidDatabasePath = errors.New("invalid WALLET_DATABASE_PATH")

// Config holds the resolved settings.
type Config struct {
	DatabasePath       string
	DefaultNode        string
	Notifications      bool
	EventQueueSize     int
	NodeRequestTimeout time.Duration
	NodeRateLimit      int
	LogLevel           slog.Level
	// File is the config file that was merged, if any
	File string
}

func newViper() *viper.Viper {
	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(DatabasePathKey, DefaultDatabasePath)
	vip.SetDefault(DefaultNodeKey, DefaultNode)
	vip.SetDefault(NotificationsKey, true)
	vip.SetDefault(EventQueueSizeKey, 64)
	vip.SetDefault(NodeRequestTimeoutKey, "15s")
	vip.SetDefault(NodeRateLimitKey, 10)
	vip.SetDefault(LogLevelKey, "info")
	return vip
}

// Load reads the environment and, when present, <database path>/wallet-cli.yaml.
// Environment variables take precedence over the file.
func Load() (*Config, error) {
	vip := newViper()

	dbPath := vip.GetString(DatabasePathKey)
	if !utf8.ValidString(dbPath) {
		return nil, ErrInvalidDatabasePath
	}

	cfg := &Config{DatabasePath: dbPath}

	file := filepath.Join(dbPath, FileName)
	if _, err := os.Stat(file); err == nil {
		vip.SetConfigFile(file)
		if err := vip.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		cfg.File = file
	}

	cfg.DefaultNode = vip.GetString(DefaultNodeKey)
	cfg.Notifications = vip.GetBool(NotificationsKey)
	cfg.EventQueueSize = vip.GetInt(EventQueueSizeKey)
	cfg.NodeRequestTimeout = vip.GetDuration(NodeRequestTimeoutKey)
	cfg.NodeRateLimit = vip.GetInt(NodeRateLimitKey)

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToLower(vip.GetString(LogLevelKey)))); err != nil {
		return nil, fmt.Errorf("invalid %s_%s: %w", EnvPrefix, LogLevelKey, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%s_%s must not be empty", EnvPrefix, DatabasePathKey)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("%s_%s must be positive", EnvPrefix, EventQueueSizeKey)
	}
	if c.NodeRequestTimeout <= 0 {
		return fmt.Errorf("%s_%s must be positive", EnvPrefix, NodeRequestTimeoutKey)
	}
	if c.NodeRateLimit <= 0 {
		return fmt.Errorf("%s_%s must be positive", EnvPrefix, NodeRateLimitKey)
	}
	return nil
}
