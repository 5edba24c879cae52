package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Config represents the application configuration
type Config struct {
	DataDir    string `yaml:"data_dir"`    // default ~/.central
	DBPath     string `yaml:"db_path"`     // default <data_dir>/central.db
	SocketPath string `yaml:"socket_path"` // default <data_dir>/daemon.sock
	LogPath    string `yaml:"log_path"`    // default <data_dir>/logs/central.log
	LogLevel   string `yaml:"log_level"`
	PointScale string `yaml:"point_scale"` // for new projects
	RedisURL   string `yaml:"redis_url"`   // empty disables the relay

	User   UserConfig   `yaml:"user"`
	Daemon DaemonConfig `yaml:"daemon"`

	KeyMappings KeyMappings `yaml:"key_mappings"`
	ColorScheme ColorScheme `yaml:"theme"`
}

// UserConfig identifies the local user. Authentication lives elsewhere; the
// board only needs an id and the write capability.
type UserConfig struct {
	ID       int  `yaml:"id"`
	ReadOnly bool `yaml:"read_only"`
}

// DaemonConfig tunes the event daemon and its clients.
type DaemonConfig struct {
	BroadcastBuffer int           `yaml:"broadcast_buffer"`
	ClientBuffer    int           `yaml:"client_buffer"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	Debounce        time.Duration `yaml:"debounce"` // client batching window
}

// Actor returns the configured user as a board actor.
func (c *Config) Actor() models.Actor {
	return models.Actor{ID: types.UserID(c.User.ID), CanWrite: !c.User.ReadOnly}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// loadThemeFile loads and merges theme from CENTRAL_THEME_FILE environment variable
func loadThemeFile(config *Config) {
	themeFile := os.Getenv("CENTRAL_THEME_FILE")
	if themeFile == "" {
		return
	}

	themeData, err := os.ReadFile(themeFile)
	if err != nil {
		return
	}

	var themeConfig struct {
		Theme ColorScheme `yaml:"theme"`
	}

	if yaml.Unmarshal(themeData, &themeConfig) == nil {
		config.ColorScheme.MergeFrom(themeConfig.Theme)
	}
}

// Load loads config from the user's config directory
// Returns default config if file doesn't exist
func Load() (*Config, error) {
	var config Config

	configPath, err := getConfigPath()
	if err == nil {
		data, readErr := os.ReadFile(configPath)
		switch {
		case errors.Is(readErr, os.ErrNotExist):
			// defaults only
		case readErr != nil:
			return nil, readErr
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		}
	}

	config.applyEnv()
	loadThemeFile(&config)
	config.applyDefaults()

	if _, err := models.ParsePointScale(config.PointScale); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save saves the config to the user's config directory
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o644)
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "central", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".config", "central", "config.yaml"), nil
}

// applyEnv overrides file values with CENTRAL_* variables.
func (c *Config) applyEnv() {
	c.DataDir = getenv("CENTRAL_DATA_DIR", c.DataDir)
	c.DBPath = getenv("CENTRAL_DB", c.DBPath)
	c.SocketPath = getenv("CENTRAL_SOCKET", c.SocketPath)
	c.LogPath = getenv("CENTRAL_LOG_FILE", c.LogPath)
	c.LogLevel = getenv("CENTRAL_LOG_LEVEL", c.LogLevel)
	c.PointScale = getenv("CENTRAL_POINT_SCALE", c.PointScale)
	c.RedisURL = getenv("CENTRAL_REDIS_URL", c.RedisURL)

	c.User.ID = getenvInt("CENTRAL_USER_ID", c.User.ID)
	c.User.ReadOnly = getenvBool("CENTRAL_READ_ONLY", c.User.ReadOnly)

	c.Daemon.BroadcastBuffer = getenvInt("CENTRAL_DAEMON_BROADCAST_BUFFER", c.Daemon.BroadcastBuffer)
	c.Daemon.ClientBuffer = getenvInt("CENTRAL_DAEMON_CLIENT_BUFFER", c.Daemon.ClientBuffer)
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".central")
		} else {
			c.DataDir = ".central"
		}
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "central.db")
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "daemon.sock")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(c.DataDir, "logs", "central.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PointScale == "" {
		c.PointScale = string(models.DefaultPointScale)
	}
	if c.User.ID == 0 {
		c.User.ID = 1
	}
	if c.Daemon.BroadcastBuffer <= 0 {
		c.Daemon.BroadcastBuffer = 100
	}
	if c.Daemon.ClientBuffer <= 0 {
		c.Daemon.ClientBuffer = 10
	}
	if c.Daemon.PingInterval <= 0 {
		c.Daemon.PingInterval = 30 * time.Second
	}
	if c.Daemon.Debounce <= 0 {
		c.Daemon.Debounce = 100 * time.Millisecond
	}
	c.KeyMappings.applyDefaults()
	c.ColorScheme.ApplyDefaults()
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
