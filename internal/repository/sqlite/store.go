package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/agentbar/internal/app"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Setting keys. Values are stored as text.
const (
	keyHTTPHost          = "http_host"
	keyHTTPPort          = "http_port"
	keyBlockPluginStatus = "block_plugin_status"
)

// Store implements app.SettingsRepository using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path (creating parent dirs and schema).
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection. Safe to call twice.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// LoadSettings implements app.SettingsRepository. Returns app.ErrNoSettings on an empty store.
// Keys missing from a partially written store keep their zero value.
func (s *Store) LoadSettings() (*app.Settings, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var (
		out   app.Settings
		found int
	)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		switch key {
		case keyHTTPHost:
			out.HTTPHost = value
		case keyHTTPPort:
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("settings %s: parse %q: %w", key, value, err)
			}
			out.HTTPPort = port
		case keyBlockPluginStatus:
			block, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("settings %s: parse %q: %w", key, value, err)
			}
			out.BlockPluginStatus = block
		default:
			continue
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, app.ErrNoSettings
	}
	return &out, nil
}

// SaveSettings implements app.SettingsRepository. All keys are written in one transaction.
func (s *Store) SaveSettings(settings *app.Settings) error {
	if settings == nil {
		return fmt.Errorf("settings is nil")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	values := map[string]string{
		keyHTTPHost:          settings.HTTPHost,
		keyHTTPPort:          strconv.Itoa(settings.HTTPPort),
		keyBlockPluginStatus: strconv.FormatBool(settings.BlockPluginStatus),
	}
	for k, v := range values {
		if _, err := tx.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, k, v, now); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}
