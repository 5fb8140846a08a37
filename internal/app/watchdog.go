package app

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// defaultWatchdogInterval is how often the watchdog sweeps.
const defaultWatchdogInterval = 5 * time.Second

// Watchdog sweeps the registry on a timer so tasks whose reporter went away are
// evicted, and subscribers told, even when nobody is reading the status.
type Watchdog struct {
	registry *Registry
	logger   *log.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatchdogOption configures the watchdog.
type WatchdogOption func(*Watchdog)

// WithWatchdogInterval sets the sweep interval.
func WithWatchdogInterval(d time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatchdog creates a new Watchdog.
func NewWatchdog(registry *Registry, logger *log.Logger, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		registry: registry,
		logger:   logger,
		interval: defaultWatchdogInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start begins the watchdog loop. Returns when ctx is cancelled or Stop is called.
func (w *Watchdog) Start(ctx context.Context) {
	defer close(w.doneCh)
	w.logger.Debug("watchdog started", "interval", w.interval, "timeout", w.registry.HeartbeatTimeout())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watchdog stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Debug("watchdog stopped")
			return
		case <-ticker.C:
			w.CheckOnce()
		}
	}
}

// Stop signals the watchdog to stop and waits for the loop to exit.
// Only valid after Start has been called.
func (w *Watchdog) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// CheckOnce runs one sweep and returns the evicted ids.
func (w *Watchdog) CheckOnce() []string {
	return w.registry.Sweep()
}
