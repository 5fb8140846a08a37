// Package app implements the task registry and its use cases and defines ports (repository interfaces).
package app

import "errors"

// ErrNoSettings is returned by a SettingsRepository that has nothing stored yet.
var ErrNoSettings = errors.New("no stored settings")

// Settings are the user-editable knobs persisted across restarts.
type Settings struct {
	HTTPHost          string `json:"http_host"`
	HTTPPort          int    `json:"http_port"`
	BlockPluginStatus bool   `json:"block_plugin_status"`
}

// SettingsRepository loads and saves Settings.
// Implementation: internal/repository/sqlite.
type SettingsRepository interface {
	LoadSettings() (*Settings, error)
	SaveSettings(*Settings) error
}

// Activator brings an IDE window to the foreground. Implementations are
// platform-specific; the registry never calls one.
type Activator interface {
	Activate(ide, windowTitle, projectPath, activeFile string) error
}
