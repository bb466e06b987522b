package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"droplink/internal/model"
	"droplink/internal/repository"
)

// ArtifactPostgres is a PostgreSQL implementation of repository.ArtifactRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Conditional UPDATE ... WHERE state = $n statements make each transition a
// single compare-and-set.
type ArtifactPostgres struct {
	db *sql.DB
}

// NewArtifactPostgres creates a new ArtifactPostgres repository.
func NewArtifactPostgres(db *sql.DB) *ArtifactPostgres {
	return &ArtifactPostgres{db: db}
}

var _ repository.ArtifactRepository = (*ArtifactPostgres)(nil)

const artifactColumns = `public_id, original_name, mime_type, size_bytes, storage_handle,
		COALESCE(owner_identity, ''), COALESCE(recipient_identity, ''),
		created_at, expires_at, access_count, lifecycle_state, deleted_at`

// IsNoRowsError reports whether err is sql.ErrNoRows.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	var (
		a         model.Artifact
		state     string
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&a.PublicID,
		&a.OriginalName,
		&a.MimeType,
		&a.SizeBytes,
		&a.StorageHandle,
		&a.OwnerIdentity,
		&a.RecipientIdentity,
		&a.CreatedAt,
		&a.ExpiresAt,
		&a.AccessCount,
		&state,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	var at *time.Time
	if deletedAt.Valid {
		at = &deletedAt.Time
	}
	lc, err := model.NewLifecycle(model.State(state), at)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.PublicID, err)
	}
	a.Lifecycle = lc
	return &a, nil
}

func scanOne(row *sql.Row) (*model.Artifact, error) {
	a, err := scanArtifact(row)
	if err != nil {
		if IsNoRowsError(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new artifact row unless the public id is live or tombstoned.
func (r *ArtifactPostgres) Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	const q = `
		INSERT INTO artifacts (public_id, original_name, mime_type, size_bytes, storage_handle,
			owner_identity, recipient_identity, created_at, expires_at, access_count, lifecycle_state, deleted_at)
		SELECT $1::uuid, $2::text, $3::text, $4::bigint, $5::text, $6::text, $7::text,
			$8::timestamptz, $9::timestamptz, $10::bigint, $11::text, $12::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM artifact_tombstones WHERE public_id = $1::uuid)
		ON CONFLICT DO NOTHING
		RETURNING ` + artifactColumns

	row := r.db.QueryRowContext(ctx, q,
		a.PublicID,
		a.OriginalName,
		a.MimeType,
		a.SizeBytes,
		a.StorageHandle,
		nullable(a.OwnerIdentity),
		nullable(a.RecipientIdentity),
		a.CreatedAt,
		a.ExpiresAt,
		a.AccessCount,
		string(a.Lifecycle.State()),
		a.Lifecycle.DeletedAtPtr(),
	)
	out, err := scanOne(row)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrDuplicateID
	}
	return out, err
}

// FindByPublicID fetches a single artifact by its public id.
func (r *ArtifactPostgres) FindByPublicID(ctx context.Context, publicID string) (*model.Artifact, error) {
	q := `SELECT ` + artifactColumns + ` FROM artifacts WHERE public_id = $1`
	return scanOne(r.db.QueryRowContext(ctx, q, publicID))
}

// IncrementAccess bumps access_count on an active, unexpired row.
func (r *ArtifactPostgres) IncrementAccess(ctx context.Context, publicID string, now time.Time) (*model.Artifact, error) {
	q := `
		UPDATE artifacts SET access_count = access_count + 1
		WHERE public_id = $1 AND lifecycle_state = 'active' AND expires_at >= $2
		RETURNING ` + artifactColumns
	return scanOne(r.db.QueryRowContext(ctx, q, publicID, now))
}

// Transition moves a row from one lifecycle state to another.
func (r *ArtifactPostgres) Transition(ctx context.Context, publicID string, from model.State, to model.Lifecycle) (*model.Artifact, error) {
	q := `
		UPDATE artifacts SET lifecycle_state = $2, deleted_at = $3
		WHERE public_id = $1 AND lifecycle_state = $4 AND NOT purging
		RETURNING ` + artifactColumns
	return scanOne(r.db.QueryRowContext(ctx, q, publicID, string(to.State()), to.DeletedAtPtr(), string(from)))
}

// ClaimPurge flags a soft-deleted row so Restore can no longer move it.
func (r *ArtifactPostgres) ClaimPurge(ctx context.Context, publicID string) (*model.Artifact, error) {
	q := `
		UPDATE artifacts SET purging = true
		WHERE public_id = $1 AND lifecycle_state = 'soft_deleted'
		RETURNING ` + artifactColumns
	return scanOne(r.db.QueryRowContext(ctx, q, publicID))
}

// ReleasePurge clears the purging flag. A row that is already gone is not an error.
func (r *ArtifactPostgres) ReleasePurge(ctx context.Context, publicID string) error {
	const q = `UPDATE artifacts SET purging = false WHERE public_id = $1 AND purging`
	_, err := r.db.ExecContext(ctx, q, publicID)
	return err
}

// ListByOwner lists an owner's rows in one state, newest first.
func (r *ArtifactPostgres) ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error) {
	order := "created_at DESC, public_id DESC"
	if state == model.StateSoftDeleted {
		order = "deleted_at DESC, public_id DESC"
	}
	q := `SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE owner_identity = $1 AND lifecycle_state = $2
		ORDER BY ` + order
	return r.query(ctx, q, owner, string(state))
}

// ListExpired lists rows whose expiry is at or before now, regardless of state,
// paging by keyset on (expires_at, public_id).
func (r *ArtifactPostgres) ListExpired(ctx context.Context, now time.Time, after repository.ExpiryCursor, limit int) ([]model.Artifact, error) {
	if after.IsZero() {
		q := `SELECT ` + artifactColumns + `
			FROM artifacts
			WHERE expires_at <= $1
			ORDER BY expires_at ASC, public_id ASC
			LIMIT $2`
		return r.query(ctx, q, now, limit)
	}
	q := `SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE expires_at <= $1 AND (expires_at, public_id) > ($2, $3::uuid)
		ORDER BY expires_at ASC, public_id ASC
		LIMIT $4`
	return r.query(ctx, q, now, after.ExpiresAt, after.PublicID, limit)
}

// Delete removes the row and records a tombstone in the same statement.
func (r *ArtifactPostgres) Delete(ctx context.Context, publicID string) error {
	const q = `
		WITH removed AS (
			DELETE FROM artifacts WHERE public_id = $1 RETURNING public_id
		)
		INSERT INTO artifact_tombstones (public_id, purged_at)
		SELECT public_id, now() FROM removed
		ON CONFLICT (public_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, publicID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ArtifactPostgres) query(ctx context.Context, q string, args ...any) ([]model.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
