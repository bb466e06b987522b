package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"droplink/internal/app"
	"droplink/internal/config"
	"droplink/internal/link"
	"droplink/internal/logging"
	"droplink/internal/notify"
	"droplink/internal/otel"
	"droplink/internal/service"
)

const shutdownTimeout = 15 * time.Second

// @title droplink API
// @version 1.0
// @description Expiring-link file transfer.
// @BasePath /
func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	issuer, err := link.NewIssuer(cfg.Link.BaseURL)
	if err != nil {
		return err
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	transport, err := app.NewNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(transport, logger, cfg.Notify.QueueSize,
		time.Duration(cfg.Notify.TimeoutSec)*time.Second, reg)

	svc := service.NewArtifactService(stores.Blobs, stores.Repo, issuer,
		service.WithLogger(logger),
		service.WithNotifier(dispatcher),
		service.WithTTL(cfg.LinkTTL()),
		service.WithStoreTimeout(cfg.StoreTimeout()),
		service.WithRegisterer(reg),
	)

	sweeper := service.NewSweeper(stores.Blobs, stores.Repo, cfg.Sweep.Interval, cfg.StoreTimeout(), logger, reg)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	httpApp, err := app.NewHTTPApp(cfg, stores.DB, svc, logger, reg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("server_listening", slog.String("addr", addr), slog.String("base_url", cfg.Link.BaseURL))
		errCh <- httpApp.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	}

	if err := httpApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http_shutdown_failed", slog.String("error", err.Error()))
	}

	dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(dctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
