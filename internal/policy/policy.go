// Package policy loads the YAML configuration and exposes it to the rest of the process.
package policy

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable that overrides the config file location.
const ConfigEnv = "AGENTBAR_CONFIG"

// Defaults.
const (
	DefaultHTTPHost                = "127.0.0.1"
	DefaultHTTPPort                = 31415
	DefaultHeartbeatTimeoutSeconds = 15
)

// GlobalStateDir returns the default state directory (~/.config/agentbar).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "agentbar")
}

// DefaultConfigFile returns ~/.config/agentbar/config.yaml.
func DefaultConfigFile() string {
	return filepath.Join(GlobalStateDir(), "config.yaml")
}

// ResolveConfigPath picks the config file: explicit flag, then $AGENTBAR_CONFIG, then the default.
func ResolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return DefaultConfigFile()
}

// Config holds the file configuration.
type Config struct {
	HTTPHost          string `yaml:"http_host"`
	HTTPPort          int    `yaml:"http_port"`
	BlockPluginStatus bool   `yaml:"block_plugin_status"`

	// HeartbeatTimeoutSeconds is how long a task survives without a heartbeat.
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`

	LogFile    string `yaml:"log_file"`  // "none" or "off" disables file logging
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error
	SettingsDB string `yaml:"settings_db"`
}

// DefaultConfig returns sensible defaults. Plugin status writes are blocked by default:
// hooks and MCP are the trusted channels, plugins mostly report focus.
func DefaultConfig() *Config {
	return &Config{
		HTTPHost:                DefaultHTTPHost,
		HTTPPort:                DefaultHTTPPort,
		BlockPluginStatus:       true,
		HeartbeatTimeoutSeconds: DefaultHeartbeatTimeoutSeconds,
		LogLevel:                "info",
	}
}

// LoadConfig loads configuration from a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault is LoadConfig, except that a missing file yields DefaultConfig.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.HTTPHost == "" {
		return fmt.Errorf("invalid config: http_host must not be empty")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid config: http_port %d out of range", c.HTTPPort)
	}
	if c.HeartbeatTimeoutSeconds < 0 {
		return fmt.Errorf("invalid config: heartbeat_timeout_seconds must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log_level %q (want debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// Policy is the runtime view of the configuration. Reload swaps the config in place.
type Policy struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a Policy over cfg.
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// Reload replaces the config. Listen address and log settings are read at startup only.
func (p *Policy) Reload(cfg *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = cfg
}

// Config returns a copy of the current config.
func (p *Policy) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.config
}

// HTTPAddr returns host:port for the listener.
func (p *Policy) HTTPAddr() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return net.JoinHostPort(p.config.HTTPHost, strconv.Itoa(p.config.HTTPPort))
}

// BlockPluginStatus reports whether plugin-channel status writes are dropped.
func (p *Policy) BlockPluginStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.BlockPluginStatus
}

// HeartbeatTimeout returns the liveness timeout. Zero or unset means the default.
func (p *Policy) HeartbeatTimeout() time.Duration {
	p.mu.RLock()
	secs := p.config.HeartbeatTimeoutSeconds
	p.mu.RUnlock()
	if secs <= 0 {
		secs = DefaultHeartbeatTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// LogFile returns the configured log file path.
// If unset, defaults to ~/.config/agentbar/agentbar.log.
// Set to "none" or "off" to disable file logging entirely.
func (p *Policy) LogFile() string {
	p.mu.RLock()
	lf := p.config.LogFile
	p.mu.RUnlock()
	if lf == "" {
		return filepath.Join(GlobalStateDir(), "agentbar.log")
	}
	return lf
}

// LogLevel returns the configured level name, "info" if unset.
func (p *Policy) LogLevel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.config.LogLevel == "" {
		return "info"
	}
	return strings.ToLower(p.config.LogLevel)
}

// SettingsDB returns the settings database path, or "" when persistence is disabled.
// If unset, defaults to ~/.config/agentbar/settings.sqlite.
func (p *Policy) SettingsDB() string {
	p.mu.RLock()
	db := p.config.SettingsDB
	p.mu.RUnlock()
	switch db {
	case "":
		return filepath.Join(GlobalStateDir(), "settings.sqlite")
	case "none", "off":
		return ""
	}
	return db
}
