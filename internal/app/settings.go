package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jaakkos/agentbar/internal/domain"
)

// SettingsPatch is a partial settings update. Nil fields are left alone.
type SettingsPatch struct {
	HTTPHost          *string `json:"http_host,omitempty"`
	HTTPPort          *int    `json:"http_port,omitempty"`
	BlockPluginStatus *bool   `json:"block_plugin_status,omitempty"`
}

// SettingsService owns the effective settings. Stored settings overlay the configured
// defaults; block_plugin_status is pushed into the registry on every change while host
// and port only take effect on the next start.
type SettingsService struct {
	mu       sync.Mutex
	repo     SettingsRepository // optional
	registry *Registry
	current  Settings
	logger   *log.Logger
}

// NewSettingsService loads stored settings over defaults and applies them to registry.
// repo may be nil, in which case updates live only in memory.
func NewSettingsService(repo SettingsRepository, registry *Registry, defaults Settings, logger *log.Logger) (*SettingsService, error) {
	s := &SettingsService{repo: repo, registry: registry, current: defaults, logger: logger}
	if repo != nil {
		stored, err := repo.LoadSettings()
		switch {
		case errors.Is(err, ErrNoSettings):
		case err != nil:
			return nil, fmt.Errorf("load settings: %w", err)
		default:
			s.current = *stored
			logger.Debug("loaded stored settings", "host", stored.HTTPHost, "port", stored.HTTPPort,
				"block_plugin_status", stored.BlockPluginStatus)
		}
	}
	registry.SetBlockPluginStatus(s.current.BlockPluginStatus)
	return s, nil
}

// Get returns the effective settings.
func (s *SettingsService) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update validates and applies patch, persists the result and returns it.
func (s *SettingsService) Update(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	if patch.HTTPHost != nil {
		if *patch.HTTPHost == "" {
			return s.current, fmt.Errorf("%w: http_host must not be empty", domain.ErrValidation)
		}
		next.HTTPHost = *patch.HTTPHost
	}
	if patch.HTTPPort != nil {
		if *patch.HTTPPort < 1 || *patch.HTTPPort > 65535 {
			return s.current, fmt.Errorf("%w: http_port must be between 1 and 65535", domain.ErrValidation)
		}
		next.HTTPPort = *patch.HTTPPort
	}
	if patch.BlockPluginStatus != nil {
		next.BlockPluginStatus = *patch.BlockPluginStatus
	}
	if s.repo != nil {
		if err := s.repo.SaveSettings(&next); err != nil {
			return s.current, fmt.Errorf("save settings: %w", err)
		}
	}
	if next.HTTPHost != s.current.HTTPHost || next.HTTPPort != s.current.HTTPPort {
		s.logger.Info("listen address changed, restart to apply", "host", next.HTTPHost, "port", next.HTTPPort)
	}
	s.current = next
	s.registry.SetBlockPluginStatus(next.BlockPluginStatus)
	return next, nil
}

// SetBlockPluginStatus applies a live flag change from a config reload. It is not persisted.
func (s *SettingsService) SetBlockPluginStatus(block bool) {
	s.mu.Lock()
	changed := s.current.BlockPluginStatus != block
	s.current.BlockPluginStatus = block
	s.mu.Unlock()
	if changed {
		s.logger.Info("block_plugin_status reloaded", "value", block)
	}
	s.registry.SetBlockPluginStatus(block)
}
