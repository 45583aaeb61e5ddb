// Command hadash-profiles is the profile backend: a small HTTP service that
// stores dashboard profiles per user in SQLite.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianhealey/hadash/internal/auth"
	"github.com/brianhealey/hadash/internal/config"
	"github.com/brianhealey/hadash/internal/profileserver"
)

func main() {
	cfg, err := config.Load(config.DefaultBackend(), "hadash-profiles", os.Args[1:], os.Getenv)
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := profileserver.OpenStore(cfg.DBPath)
	if err != nil {
		slog.Error("profile store initialization failed", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// Auth service (clients.json in the data directory)
	authSvc, err := auth.NewService(cfg.DataDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: profileserver.NewRouter(profileserver.Options{
			Store:      store,
			Auth:       authSvc,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("profile backend listening", "addr", cfg.Addr, "db", cfg.DBPath, "open_mode", authSvc.IsOpenMode())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	slog.Info("shutdown complete")
}
