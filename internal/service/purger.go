package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"droplink/internal/model"
	"droplink/internal/repository"
	"droplink/internal/storage"
)

// purger holds the destruction pair shared by the engine and the sweeper.
type purger struct {
	store   storage.Storage
	repo    repository.ArtifactRepository
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

func (p *purger) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// purge deletes the blob, then the record. A missing blob or record counts as
// already purged. When force is false a failed blob delete keeps the record so
// a later purge can retry; when true the record is removed regardless.
func (p *purger) purge(ctx context.Context, a *model.Artifact, force bool) error {
	// Destruction must finish once started, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	bctx, cancel := p.storeCtx(ctx)
	err := p.store.Delete(bctx, a.StorageHandle)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrObjectNotFound):
		p.logger.WarnContext(ctx, "blob_already_missing",
			slog.String("public_id", a.PublicID),
			slog.String("storage_handle", a.StorageHandle),
		)
	default:
		p.logger.ErrorContext(ctx, "blob_delete_failed",
			slog.String("public_id", a.PublicID),
			slog.String("storage_handle", a.StorageHandle),
			slog.String("error", err.Error()),
		)
		if !force {
			return fmt.Errorf("%w: delete blob %s: %v", ErrStorageWrite, a.StorageHandle, err)
		}
	}

	return p.deleteRecord(ctx, a.PublicID)
}

// deleteRecord removes the metadata record. A concurrent purge that got there
// first is not an error.
func (p *purger) deleteRecord(ctx context.Context, publicID string) error {
	rctx, cancel := p.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := p.repo.Delete(rctx, publicID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete record %s: %w", publicID, err)
	}
	return nil
}
