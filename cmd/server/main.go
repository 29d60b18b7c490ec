package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/TayDaGreatDIY/phase-2-complete/internal/config"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/logging"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/realtime"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/server"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/version"
)

func runGracefulShutdown(srv *server.Server, registry *realtime.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		registry.Stop()

		close(done)
	}()

	return done
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting realtime server",
		"version", version.Version,
		"env", cfg.AppEnv,
	)

	registry := realtime.NewRegistry(clockwork.NewRealClock())

	srv := server.NewServer(cfg, registry)
	done := runGracefulShutdown(srv, registry)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
