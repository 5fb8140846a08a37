package repository

import (
	"github.com/jaakkos/agentbar/internal/app"
	"github.com/jaakkos/agentbar/internal/repository/sqlite"
)

// NewSettingsRepository returns a SettingsRepository backed by SQLite at the given path.
// The path is typically from policy.SettingsDB() (default ~/.config/agentbar/settings.sqlite).
// The returned closer releases the database.
func NewSettingsRepository(path string) (app.SettingsRepository, func() error, error) {
	store, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
