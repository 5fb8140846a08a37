package policy

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes and hands the new config to onChange.
// A file that fails to parse is logged and the previous config stays in force.
type Watcher struct {
	path     string
	policy   *Policy
	onChange func(*Config)
	logger   *log.Logger
	debounce time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle (default 200ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for path. onChange may be nil.
func NewWatcher(path string, policy *Policy, onChange func(*Config), logger *log.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		policy:   policy,
		onChange: onChange,
		logger:   logger,
		debounce: defaultDebounce,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start watches the config file's directory until ctx is cancelled. The directory is
// watched rather than the file so editors that replace the file are still seen.
// Returns an error only if the watcher cannot be set up.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		w.watchLoop(ctx, watcher)
	}()
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reloadDebounced()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "err", err)
		}
	}
}

func (w *Watcher) reloadDebounced() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.Reload)
}

// Reload reads the file once and applies it. Exported for manual triggers and tests.
func (w *Watcher) Reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", "path", w.path, "err", err)
		return
	}
	w.policy.Reload(cfg)
	w.logger.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
