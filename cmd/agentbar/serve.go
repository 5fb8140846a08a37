package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/agentbar/internal/app"
	"github.com/jaakkos/agentbar/internal/dashboard"
	"github.com/jaakkos/agentbar/internal/policy"
	"github.com/jaakkos/agentbar/internal/repository"
	"github.com/jaakkos/agentbar/internal/tools/status"
)

// serverBundle holds the long-lived components shared by the HTTP routes.
type serverBundle struct {
	pol       *policy.Policy
	logger    *log.Logger
	registry  *app.Registry
	settings  *app.SettingsService
	hub       *dashboard.EventHub
	mcpServer *server.MCPServer
	closeRepo func() error
}

// newServerBundle wires the registry, settings, event hub and MCP server.
// A settings store that cannot be opened is logged and settings stay in memory.
func newServerBundle(pol *policy.Policy, logger *log.Logger, opts ...app.RegistryOption) *serverBundle {
	cfg := pol.Config()
	opts = append([]app.RegistryOption{app.WithHeartbeatTimeout(pol.HeartbeatTimeout())}, opts...)
	registry := app.NewRegistry(logger, opts...)

	var (
		repo      app.SettingsRepository
		closeRepo func() error
	)
	if path := pol.SettingsDB(); path != "" {
		r, closer, err := repository.NewSettingsRepository(path)
		if err != nil {
			logger.Warn("settings store unavailable, settings will not persist", "path", path, "err", err)
		} else {
			repo, closeRepo = r, closer
		}
	}

	defaults := app.Settings{
		HTTPHost:          cfg.HTTPHost,
		HTTPPort:          cfg.HTTPPort,
		BlockPluginStatus: cfg.BlockPluginStatus,
	}
	settings, err := app.NewSettingsService(repo, registry, defaults, logger)
	if err != nil {
		logger.Warn("stored settings unreadable, using config values", "err", err)
		settings, _ = app.NewSettingsService(nil, registry, defaults, logger)
	}

	hub := dashboard.NewEventHub(registry.List, logger)
	registry.SetNotifier(hub)

	return &serverBundle{
		pol:       pol,
		logger:    logger,
		registry:  registry,
		settings:  settings,
		hub:       hub,
		mcpServer: status.NewServer(registry, logger, Version),
		closeRepo: closeRepo,
	}
}

// handler returns the full route set wrapped in the CORS and logging middleware.
func (b *serverBundle) handler(port int) http.Handler {
	mux := http.NewServeMux()
	dash := dashboard.NewHandler(b.registry, b.logger,
		dashboard.WithSettings(b.settings),
		dashboard.WithEventHub(b.hub),
		dashboard.WithPort(port),
	)
	dash.RegisterRoutes(mux)
	mux.Handle("/mcp", status.Endpoint(b.mcpServer, b.logger))
	return dashboard.Middleware(mux, b.logger)
}

// applyConfig is the config watcher callback.
func (b *serverBundle) applyConfig(cfg *policy.Config) {
	b.logger.SetLevel(parseLevel(cfg.LogLevel))
	b.settings.SetBlockPluginStatus(cfg.BlockPluginStatus)
}

func (b *serverBundle) cleanup() {
	if b.closeRepo != nil {
		if err := b.closeRepo(); err != nil {
			b.logger.Warn("close settings store", "err", err)
		}
	}
}

func runServe(ctx context.Context, configFlag string) error {
	configPath := policy.ResolveConfigPath(configFlag)
	cfg, cfgErr := policy.LoadConfigOrDefault(configPath)
	if cfgErr != nil {
		cfg = policy.DefaultConfig()
	}
	pol := policy.New(cfg)

	logger := setupLogger(pol.LogFile(), pol.LogLevel())
	if cfgErr != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "err", cfgErr)
	}
	logger.Info("starting agentbar", "version", Version, "config", configPath, "log_file", pol.LogFile())

	bundle := newServerBundle(pol, logger)
	defer bundle.cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go bundle.hub.Run(ctx)
	go app.NewWatchdog(bundle.registry, logger).Start(ctx)

	watcher := policy.NewWatcher(configPath, pol, bundle.applyConfig, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", "path", configPath, "err", err)
	}

	st := bundle.settings.Get()
	addr := net.JoinHostPort(st.HTTPHost, strconv.Itoa(st.HTTPPort))
	errCh, shutdown, err := startHTTPServer(bundle, addr)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("HTTP server error", "err", err)
	}
	shutdown()
	logger.Info("server stopped")
	return err
}

// startHTTPServer listens on addr and serves in the background. Uses net.Listen so
// port 0 picks a free port. Serve errors are delivered on the returned channel.
func startHTTPServer(bundle *serverBundle, addr string) (<-chan error, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://%s", ln.Addr().String())

	bundle.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	bundle.logger.Info("endpoints", "rest", baseURL+"/api/status", "mcp", baseURL+"/mcp", "dashboard", baseURL+"/dashboard")

	httpServer := &http.Server{
		Handler:           bundle.handler(actualPort),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			bundle.logger.Warn("HTTP shutdown error", "err", err)
		}
	}, nil
}

// serverURL is the base URL the CLI subcommands use to reach a running server.
func serverURL(configFlag string) string {
	cfg, err := policy.LoadConfigOrDefault(policy.ResolveConfigPath(configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentbar: warning: %v, using defaults\n", err)
		cfg = policy.DefaultConfig()
	}
	return "http://" + policy.New(cfg).HTTPAddr()
}
