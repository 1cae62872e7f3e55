// Command cocoad serves the cocoa ledger over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/api"
	audithook "github.com/xraph/cocoa/audit_hook"
	"github.com/xraph/cocoa/config"
	"github.com/xraph/cocoa/observability"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", ".", "Directory holding .env files")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile, *envPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("cocoad stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := config.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}()

	opts := append(rt.Options,
		cocoa.WithPlugin(observability.NewMetricsExtension(observability.NewOtelFactory(nil))),
		cocoa.WithPlugin(audithook.New(audithook.RecorderFunc(logRecorder(logger)))),
	)
	ledger := cocoa.New(rt.Store, opts...)
	if err := ledger.Start(ctx); err != nil {
		_ = ledger.Stop()
		return err
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Warn("failed to stop ledger", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.New(ledger, api.WithLogger(logger), api.WithTimeout(cfg.Server.RequestTimeout)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cocoad listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("cocoad stopped cleanly")
	return nil
}

// logRecorder writes audit events to the structured log.
func logRecorder(logger *slog.Logger) func(ctx context.Context, evt *audithook.AuditEvent) error {
	return func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	}
}
