package repository

import (
	"context"
	"errors"
	"time"

	"droplink/internal/model"
)

var (
	// ErrNotFound means no record matched the public id (and, for conditional
	// operations, the required state).
	ErrNotFound = errors.New("artifact record not found")
	// ErrDuplicateID means the public id is in use or was used by a purged record.
	ErrDuplicateID = errors.New("public id already used")
)

// ExpiryCursor is a position in ListExpired order. The zero value starts at
// the beginning.
type ExpiryCursor struct {
	ExpiresAt time.Time
	PublicID  string
}

// IsZero reports whether the cursor is at the beginning.
func (c ExpiryCursor) IsZero() bool {
	return c.PublicID == ""
}

// CursorAfter returns the cursor positioned at a.
func CursorAfter(a model.Artifact) ExpiryCursor {
	return ExpiryCursor{ExpiresAt: a.ExpiresAt, PublicID: a.PublicID}
}

// ArtifactRepository defines data access for artifact records.
// No business logic here; strictly persistence operations. Every mutating
// call is a single atomic conditional update keyed by public id, so
// implementations must be safe for concurrent use.
type ArtifactRepository interface {
	// Create inserts a new record. It returns ErrDuplicateID when the public id
	// is taken by a live record or a tombstone.
	Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error)

	// FindByPublicID returns a record by its public id.
	FindByPublicID(ctx context.Context, publicID string) (*model.Artifact, error)

	// IncrementAccess bumps access_count of an Active record that is not
	// expired at now and returns the updated record.
	IncrementAccess(ctx context.Context, publicID string, now time.Time) (*model.Artifact, error)

	// Transition replaces the lifecycle with to if the current state is from.
	// A record claimed by ClaimPurge never transitions.
	Transition(ctx context.Context, publicID string, from model.State, to model.Lifecycle) (*model.Artifact, error)

	// ListByOwner returns the owner's records in the given state, newest first
	// (by creation for Active, by deletion for SoftDeleted).
	ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error)

	// ListExpired returns up to limit records with expires_at <= now in any
	// state, ordered by (expires_at, public_id) and strictly after the cursor.
	ListExpired(ctx context.Context, now time.Time, after ExpiryCursor, limit int) ([]model.Artifact, error)

	// ClaimPurge marks a SoftDeleted record as being purged and returns it.
	// It returns ErrNotFound unless the record exists and is SoftDeleted.
	// Claiming twice is allowed; the purge that follows is idempotent.
	ClaimPurge(ctx context.Context, publicID string) (*model.Artifact, error)

	// ReleasePurge clears the ClaimPurge mark after a purge that did not finish.
	ReleasePurge(ctx context.Context, publicID string) error

	// Delete removes the record and tombstones its public id.
	// It returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, publicID string) error
}
