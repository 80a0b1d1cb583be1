package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caioniehues/clibridge/internal/cli"
	"github.com/caioniehues/clibridge/internal/config"
	"github.com/caioniehues/clibridge/internal/journal"
	"github.com/caioniehues/clibridge/internal/logger"
	"github.com/caioniehues/clibridge/internal/server"
	"github.com/caioniehues/clibridge/internal/tracing"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println("clibridge", version)
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	configPath := os.Getenv("CLIBRIDGE_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting clibridge", "version", version, "cli_path", cfg.CLI.Path)

	// Setup tracing
	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		ServiceName:  "clibridge",
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	// Open session journal
	var jrnl *journal.Journal
	if cfg.Journal.Path != "" {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening session journal: %w", err)
		}
		defer jrnl.Close()

		if cfg.Journal.RetentionDays > 0 {
			retention := time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
			if pruned, err := jrnl.Prune(context.Background(), retention); err != nil {
				slog.Warn("journal prune failed", "error", err)
			} else if pruned > 0 {
				slog.Info("journal pruned", "entries", pruned)
			}
		}
	}

	// Initialize the CLI integration service
	svc := cli.NewService(cfg.CLI.Path, cfg.CLI.ProbeTimeout(), jrnl)
	defer svc.Close()

	// Probe the tool once up front; an unavailable tool is not fatal
	// since the host may install it later and re-probe via the API.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.CLI.ProbeTimeout())
	if svc.ProbeAvailability(probeCtx) {
		slog.Info("cli tool available", "path", cfg.CLI.Path)
	} else {
		slog.Warn("cli tool unavailable; sessions will fail until it is installed", "path", cfg.CLI.Path)
	}
	probeCancel()

	// Create and start the HTTP server
	srv := server.New(cfg, svc, jrnl, version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown: stop accepting requests, then tear down the
	// in-flight session (if any) and flush traces.
	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	svc.Cancel()

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
