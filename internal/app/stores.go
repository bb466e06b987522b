// Package app assembles the stores, notifier and HTTP application from
// configuration. Both commands build through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"droplink/internal/config"
	"droplink/internal/database"
	"droplink/internal/database/migration"
	"droplink/internal/notify"
	"droplink/internal/repository"
	"droplink/internal/repository/memory"
	"droplink/internal/repository/postgres"
	"droplink/internal/storage"
)

// Stores bundles the metadata and blob stores selected by configuration.
type Stores struct {
	// DB is nil when the metadata backend is in memory.
	DB    *sql.DB
	Repo  repository.ArtifactRepository
	Blobs storage.Storage
}

// OpenStores connects to the configured backends and bootstraps the schema.
func OpenStores(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.MetadataBackend {
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		s.DB = db
		s.Repo = postgres.NewArtifactPostgres(db)
	case config.BackendMemory:
		logger.Warn("metadata_backend_memory", slog.String("detail", "records are lost on restart"))
		s.Repo = memory.NewArtifactMemory()
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}

	blobs, err := openBlobs(ctx, cfg.Storage)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Blobs = blobs
	return s, nil
}

func openBlobs(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		st, err := storage.NewLocal(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return st, nil
	case config.BackendMinIO:
		st, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("initialize object storage: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// NewNotifier picks the delivery transport: SMTP when credentials are set,
// else the webhook when configured, else the log sink.
func NewNotifier(cfg config.NotifyConfig, logger *slog.Logger) (notify.Notifier, error) {
	switch {
	case cfg.SMTP.SMTPEnabled():
		n, err := notify.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		logger.Info("notifier_configured", slog.String("transport", "smtp"), slog.String("host", cfg.SMTP.Host))
		return n, nil
	case cfg.WebhookURL != "":
		n, err := notify.NewWebhookNotifier(cfg.WebhookURL, nil)
		if err != nil {
			return nil, err
		}
		logger.Info("notifier_configured", slog.String("transport", "webhook"))
		return n, nil
	case cfg.SMTP.Host != "":
		return nil, errors.New("SMTP_HOST is set but SMTP_USER or SMTP_PASSWORD is missing")
	default:
		logger.Info("notifier_configured", slog.String("transport", "log"))
		return notify.NewLogNotifier(logger), nil
	}
}
