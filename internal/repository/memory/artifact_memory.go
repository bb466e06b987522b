// Package memory is an in-process implementation of repository.ArtifactRepository.
// Records are kept in a mutex-guarded map and lost on restart; it backs
// METADATA_BACKEND=memory and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"droplink/internal/model"
	"droplink/internal/repository"
)

// ArtifactMemory stores artifact records in memory.
type ArtifactMemory struct {
	mu         sync.RWMutex
	records    map[string]*model.Artifact
	tombstones map[string]time.Time
	purging    map[string]struct{}
}

// NewArtifactMemory creates an empty store.
func NewArtifactMemory() *ArtifactMemory {
	return &ArtifactMemory{
		records:    make(map[string]*model.Artifact),
		tombstones: make(map[string]time.Time),
		purging:    make(map[string]struct{}),
	}
}

var _ repository.ArtifactRepository = (*ArtifactMemory)(nil)

func (r *ArtifactMemory) Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[a.PublicID]; ok {
		return nil, repository.ErrDuplicateID
	}
	if _, ok := r.tombstones[a.PublicID]; ok {
		return nil, repository.ErrDuplicateID
	}
	stored := *a
	r.records[a.PublicID] = &stored
	out := stored
	return &out, nil
}

func (r *ArtifactMemory) FindByPublicID(ctx context.Context, publicID string) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.records[publicID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *ArtifactMemory) IncrementAccess(ctx context.Context, publicID string, now time.Time) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[publicID]
	if !ok || a.Lifecycle.State() != model.StateActive || a.Expired(now) {
		return nil, repository.ErrNotFound
	}
	a.AccessCount++
	out := *a
	return &out, nil
}

func (r *ArtifactMemory) Transition(ctx context.Context, publicID string, from model.State, to model.Lifecycle) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[publicID]
	if !ok || a.Lifecycle.State() != from {
		return nil, repository.ErrNotFound
	}
	if _, claimed := r.purging[publicID]; claimed {
		return nil, repository.ErrNotFound
	}
	a.Lifecycle = to
	out := *a
	return &out, nil
}

func (r *ArtifactMemory) ClaimPurge(ctx context.Context, publicID string) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[publicID]
	if !ok || !a.Lifecycle.IsSoftDeleted() {
		return nil, repository.ErrNotFound
	}
	r.purging[publicID] = struct{}{}
	out := *a
	return &out, nil
}

func (r *ArtifactMemory) ReleasePurge(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.purging, publicID)
	return nil
}

func (r *ArtifactMemory) ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	items := make([]model.Artifact, 0)
	for _, a := range r.records {
		if a.OwnerIdentity == owner && a.Lifecycle.State() == state {
			items = append(items, *a)
		}
	}
	r.mu.RUnlock()

	key := func(a model.Artifact) time.Time {
		if at, ok := a.Lifecycle.DeletedAt(); ok {
			return at
		}
		return a.CreatedAt
	}
	sort.Slice(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return items[i].PublicID > items[j].PublicID
	})
	return items, nil
}

func (r *ArtifactMemory) ListExpired(ctx context.Context, now time.Time, after repository.ExpiryCursor, limit int) ([]model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	items := make([]model.Artifact, 0)
	for _, a := range r.records {
		if a.ExpiresAt.After(now) {
			continue
		}
		if !after.IsZero() && !expiryLess(after.ExpiresAt, after.PublicID, a.ExpiresAt, a.PublicID) {
			continue
		}
		items = append(items, *a)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return expiryLess(items[i].ExpiresAt, items[i].PublicID, items[j].ExpiresAt, items[j].PublicID)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *ArtifactMemory) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[publicID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, publicID)
	delete(r.purging, publicID)
	r.tombstones[publicID] = time.Now().UTC()
	return nil
}

func expiryLess(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return id < bid
}

// Len returns the number of live records.
func (r *ArtifactMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
