package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikDhanave/repo-activity-service/internal/auth"
	"github.com/PratikDhanave/repo-activity-service/internal/backup"
	"github.com/PratikDhanave/repo-activity-service/internal/config"
	"github.com/PratikDhanave/repo-activity-service/internal/httpserver"
	"github.com/PratikDhanave/repo-activity-service/internal/ingest"
	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/monitor"
	"github.com/PratikDhanave/repo-activity-service/internal/normalize"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
	"github.com/PratikDhanave/repo-activity-service/internal/telemetry"
)

// main boots the service: config → telemetry → store → pipeline → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		slog.Error("failed to setup telemetry", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	if cfg.IsDevelopment() {
		fmt.Print(banner)
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open event store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if !cfg.SignatureEnabled() {
		slog.WarnContext(ctx, "GITHUB_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	exporter := backup.NewExporter(st, cfg.Backup.Dir, cfg.Backup.Retention)
	pipeline := ingest.NewPipeline(normalize.New(), st, exporter)

	mon := monitor.New(st, cfg.Monitor.Interval)
	mon.Start()

	router := httpserver.NewRouter(cfg, st, auth.NewVerifier(cfg.WebhookSecret), pipeline)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting",
			"port", cfg.Port,
			"store", cfg.Store.Driver,
			"backup_dir", cfg.Backup.Dir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	mon.Stop()
	// Let in-flight snapshots finish before the store closes.
	exporter.Wait()

	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.EventStore, error) {
	if cfg.Driver == config.StoreDriverMemory {
		slog.WarnContext(ctx, "using in-memory event store, events are lost on restart")
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		DSN:      cfg.DBURL,
		Table:    cfg.Table,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	})
	if err != nil {
		return nil, err
	}

	// Tables and indexes are created on boot.
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

const banner = `
 ____                        _        _   _       _ _
|  _ \ ___ _ __   ___       / \   ___| |_(_)_   _(_) |_ _   _
| |_) / _ \ '_ \ / _ \     / _ \ / __| __| \ \ / / | __| | | |
|  _ <  __/ |_) | (_) |   / ___ \ (__| |_| |\ V /| | |_| |_| |
|_| \_\___| .__/ \___/   /_/   \_\___|\__|_| \_/ |_|\__|\__, |
          |_|                                           |___/
`
