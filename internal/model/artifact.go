package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the persisted lifecycle state of an artifact. Purging is not a
// state: a purged artifact has no record at all.
type State string

const (
	StateActive      State = "active"
	StateSoftDeleted State = "soft_deleted"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == StateActive || s == StateSoftDeleted
}

// Lifecycle is the tagged lifecycle of an artifact. The deletion timestamp
// exists only in the soft-deleted variant. The zero value is Active.
type Lifecycle struct {
	state     State
	deletedAt time.Time
}

// Active returns the active lifecycle.
func Active() Lifecycle {
	return Lifecycle{state: StateActive}
}

// SoftDeletedAt returns the soft-deleted lifecycle stamped with at.
func SoftDeletedAt(at time.Time) Lifecycle {
	return Lifecycle{state: StateSoftDeleted, deletedAt: at}
}

// NewLifecycle rebuilds a lifecycle from its stored columns.
func NewLifecycle(state State, deletedAt *time.Time) (Lifecycle, error) {
	switch state {
	case StateActive:
		if deletedAt != nil {
			return Lifecycle{}, fmt.Errorf("active lifecycle with deleted_at %s", deletedAt.Format(time.RFC3339))
		}
		return Active(), nil
	case StateSoftDeleted:
		if deletedAt == nil {
			return Lifecycle{}, fmt.Errorf("soft_deleted lifecycle without deleted_at")
		}
		return SoftDeletedAt(*deletedAt), nil
	default:
		return Lifecycle{}, fmt.Errorf("unknown lifecycle state %q", state)
	}
}

// State returns the variant tag.
func (l Lifecycle) State() State {
	if l.state == "" {
		return StateActive
	}
	return l.state
}

// IsSoftDeleted reports whether the artifact is in the recycle bin.
func (l Lifecycle) IsSoftDeleted() bool {
	return l.state == StateSoftDeleted
}

// DeletedAt returns the soft-deletion time; ok is false for Active.
func (l Lifecycle) DeletedAt() (at time.Time, ok bool) {
	if l.state != StateSoftDeleted {
		return time.Time{}, false
	}
	return l.deletedAt, true
}

// DeletedAtPtr is DeletedAt in nullable-column form.
func (l Lifecycle) DeletedAtPtr() *time.Time {
	if at, ok := l.DeletedAt(); ok {
		return &at
	}
	return nil
}

type lifecycleJSON struct {
	State     State      `json:"state"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(lifecycleJSON{State: l.State(), DeletedAt: l.DeletedAtPtr()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifecycle) UnmarshalJSON(b []byte) error {
	var v lifecycleJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := NewLifecycle(v.State, v.DeletedAt)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Artifact is one uploaded file's metadata record.
// This is a pure domain model with no database-specific dependencies or tags.
type Artifact struct {
	PublicID          string    `json:"public_id"`
	OriginalName      string    `json:"original_name"`
	MimeType          string    `json:"mime_type"`
	SizeBytes         int64     `json:"size_bytes"`
	StorageHandle     string    `json:"-"`
	OwnerIdentity     string    `json:"owner,omitempty"`
	RecipientIdentity string    `json:"recipient,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AccessCount       int64     `json:"access_count"`
	Lifecycle         Lifecycle `json:"lifecycle"`
}

// Expired reports whether the artifact is past expiry at now. An artifact
// whose expiry equals now is still live for access.
func (a *Artifact) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
