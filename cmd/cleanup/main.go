// Command cleanup runs one reclamation sweep and exits. It is meant for an
// external scheduler when the in-process sweeper is not enough.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"

	"droplink/internal/app"
	"droplink/internal/config"
	"droplink/internal/logging"
	"droplink/internal/service"
)

func main() {
	timeout := pflag.DurationP("timeout", "t", 10*time.Minute, "maximum duration of the sweep")
	pflag.Parse()

	if err := run(*timeout); err != nil {
		slog.Error("cleanup_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	slog.SetDefault(logger)

	if cfg.MetadataBackend == config.BackendMemory {
		return fmt.Errorf("cleanup needs a persistent metadata backend, METADATA_BACKEND is %q", cfg.MetadataBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	sweeper := service.NewSweeper(stores.Blobs, stores.Repo, cfg.Sweep.Interval, cfg.StoreTimeout(), logger, nil)
	res := sweeper.RunOnce(ctx)

	logger.Info("cleanup_finished", slog.Int("purged", res.Purged), slog.Int("errors", res.Errors))
	if res.Errors > 0 {
		return fmt.Errorf("%d artifact(s) could not be purged", res.Errors)
	}
	return nil
}
