// Command hadash is the dashboard configuration daemon. It persists the
// layout and appearance settings, guards changes behind an optional PIN and
// syncs named profiles with a profile backend.
package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianhealey/hadash/internal/api"
	"github.com/brianhealey/hadash/internal/config"
	"github.com/brianhealey/hadash/internal/dashboard"
	"github.com/brianhealey/hadash/internal/events"
	"github.com/brianhealey/hadash/internal/gate"
	"github.com/brianhealey/hadash/internal/i18n"
	"github.com/brianhealey/hadash/internal/identity"
	"github.com/brianhealey/hadash/internal/kv"
	"github.com/brianhealey/hadash/internal/maintenance"
	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/snapshot"
	"github.com/brianhealey/hadash/internal/zeroconf"
)

// closingStore is a kv.Store the daemon closes on shutdown.
type closingStore interface {
	kv.Store
	io.Closer
}

func main() {
	cfg, err := config.Load(config.Default(), "hadash", os.Args[1:], os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		slog.Error("cannot create data directory", "path", cfg.DataDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Settings store
	var raw closingStore
	switch cfg.Store {
	case config.StoreSQLite:
		raw, err = kv.NewSQLiteStore(filepath.Join(cfg.DataDir, "settings.db"))
	default:
		raw, err = kv.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		slog.Error("settings store initialization failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	store := kv.Prefixed(raw, cfg.KeyPrefix)

	info := identity.Load(cfg.DataDir, cfg.DeviceLabel, cfg.UserID)

	// Event bus and live settings
	bus := events.NewBus()
	builder := snapshot.NewBuilder(store, nil)
	live := dashboard.NewLive(builder.Collect(), bus)
	g := gate.New(store, i18n.Translator(live.Language))

	// Profile manager, when a backend is configured
	var manager *profiles.Manager
	if cfg.ProfilesURL != "" {
		client := profiles.NewClient(cfg.ProfilesURL)
		client.APIKey = cfg.APIKey
		manager = profiles.NewManager(client, builder, cfg.UserID)
	}

	svc := dashboard.NewService(dashboard.Options{
		Gate:        g,
		Builder:     builder,
		Manager:     manager,
		Live:        live,
		Bus:         bus,
		DeviceLabel: info.DeviceLabel,
	})
	if fs, ok := raw.(*kv.FileStore); ok {
		fs.OnReload(svc.StoreReloaded)
	}

	// Maintenance goroutines (backend reachability, snapshot backups)
	var online atomic.Bool
	maint := maintenance.New(cfg.DataDir, builder, backendAddr(cfg.ProfilesURL), func(up bool) {
		slog.Info("profile backend reachability changed", "online", up)
		online.Store(up)
		if up {
			if err := svc.RefreshProfiles(ctx); err != nil {
				slog.Warn("profile refresh failed", "err", err)
			}
		}
	})
	go maint.Start(ctx)

	// Zeroconf mDNS registration
	if cfg.MDNS {
		zc := zeroconf.New(info.DeviceLabel, listenPort(cfg.Addr), info.Version, cfg.UserID)
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	// HTTP server
	opts := api.Options{Info: info, DataDir: cfg.DataDir, Backups: maint}
	if manager != nil {
		opts.Online = online.Load
	}
	router := api.NewRouter(svc, bus, opts)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("hadash listening", "addr", cfg.Addr, "store", cfg.Store, "data", cfg.DataDir, "profiles", cfg.ProfilesURL != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	// Flush pending settings writes
	if err := raw.Close(); err != nil {
		slog.Warn("failed to close settings store", "err", err)
	}

	slog.Info("shutdown complete")
}

// backendAddr returns host:port of the profile backend URL, or "" when it
// has none.
func backendAddr(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// listenPort extracts the port from a listen address, 80 when absent.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 80
	}
	return port
}
