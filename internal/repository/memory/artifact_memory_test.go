package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"droplink/internal/model"
	"droplink/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact(id, owner string, created, expires time.Time) *model.Artifact {
	return &model.Artifact{
		PublicID:      id,
		OriginalName:  id + ".txt",
		MimeType:      "text/plain",
		StorageHandle: "artifacts/" + id,
		OwnerIdentity: owner,
		CreatedAt:     created,
		ExpiresAt:     expires,
	}
}

func TestCreateRejectsReusedIDs(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()

	_, err := r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	assert.ErrorIs(t, err, repository.ErrDuplicateID)

	require.NoError(t, r.Delete(ctx, "a"))
	_, err = r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	assert.ErrorIs(t, err, repository.ErrDuplicateID, "purged ids are never reused")
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	_, err := r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	got, err := r.FindByPublicID(ctx, "a")
	require.NoError(t, err)
	got.AccessCount = 99

	again, err := r.FindByPublicID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.AccessCount)
}

func TestIncrementAccess(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	_, err := r.Create(ctx, artifact("live", "", now, now.Add(time.Hour)))
	require.NoError(t, err)
	_, err = r.Create(ctx, artifact("stale", "", now, now.Add(-time.Hour)))
	require.NoError(t, err)

	got, err := r.IncrementAccess(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)

	_, err = r.IncrementAccess(ctx, "stale", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = r.Transition(ctx, "live", model.StateActive, model.SoftDeletedAt(now))
	require.NoError(t, err)
	_, err = r.IncrementAccess(ctx, "live", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConcurrentIncrementAccess(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	_, err := r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.IncrementAccess(ctx, "a", now)
		}()
	}
	wg.Wait()

	got, err := r.FindByPublicID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.AccessCount)
}

func TestTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	_, err := r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Transition(ctx, "a", model.StateActive, model.SoftDeletedAt(now)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestClaimPurgeBlocksRestore(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	_, err := r.Create(ctx, artifact("a", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = r.ClaimPurge(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound, "active records cannot be claimed")

	_, err = r.Transition(ctx, "a", model.StateActive, model.SoftDeletedAt(now))
	require.NoError(t, err)

	claimed, err := r.ClaimPurge(ctx, "a")
	require.NoError(t, err)
	assert.True(t, claimed.Lifecycle.IsSoftDeleted())

	_, err = r.Transition(ctx, "a", model.StateSoftDeleted, model.Active())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, r.ReleasePurge(ctx, "a"))
	restored, err := r.Transition(ctx, "a", model.StateSoftDeleted, model.Active())
	require.NoError(t, err)
	assert.False(t, restored.Lifecycle.IsSoftDeleted())
}

func TestListByOwnerOrdering(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		_, err := r.Create(ctx, artifact(id, "alice", base.Add(time.Duration(i)*time.Hour), base.Add(48*time.Hour)))
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, artifact("other", "bob", base, base.Add(48*time.Hour)))
	require.NoError(t, err)

	active, err := r.ListByOwner(ctx, "alice", model.StateActive)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, []string{"third", "second", "first"}, ids(active))

	_, err = r.Transition(ctx, "third", model.StateActive, model.SoftDeletedAt(base.Add(10*time.Hour)))
	require.NoError(t, err)
	_, err = r.Transition(ctx, "first", model.StateActive, model.SoftDeletedAt(base.Add(20*time.Hour)))
	require.NoError(t, err)

	deleted, err := r.ListByOwner(ctx, "alice", model.StateSoftDeleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, ids(deleted))
}

func TestListExpired(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()

	_, err := r.Create(ctx, artifact("old", "", now, now.Add(-2*time.Hour)))
	require.NoError(t, err)
	_, err = r.Create(ctx, artifact("edge", "", now, now))
	require.NoError(t, err)
	_, err = r.Create(ctx, artifact("future", "", now, now.Add(time.Hour)))
	require.NoError(t, err)

	items, err := r.ListExpired(ctx, now, repository.ExpiryCursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "edge"}, ids(items))

	items, err = r.ListExpired(ctx, now, repository.ExpiryCursor{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids(items))

	items, err = r.ListExpired(ctx, now, repository.CursorAfter(items[0]), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, ids(items))
}

func TestListExpiredCursorBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	r := NewArtifactMemory()
	now := time.Now()
	at := now.Add(-time.Hour)

	for _, id := range []string{"c", "a", "b"} {
		_, err := r.Create(ctx, artifact(id, "", now, at))
		require.NoError(t, err)
	}

	items, err := r.ListExpired(ctx, now, repository.ExpiryCursor{ExpiresAt: at, PublicID: "a"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(items))
}

func TestDeleteMissing(t *testing.T) {
	r := NewArtifactMemory()
	assert.ErrorIs(t, r.Delete(context.Background(), "nope"), repository.ErrNotFound)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewArtifactMemory().FindByPublicID(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func ids(items []model.Artifact) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.PublicID)
	}
	return out
}
