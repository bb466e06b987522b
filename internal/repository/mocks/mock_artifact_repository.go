package mocks

import (
	"context"
	"time"

	"droplink/internal/model"
	"droplink/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockArtifactRepository struct {
	mock.Mock
}

func (m *MockArtifactRepository) Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) FindByPublicID(ctx context.Context, publicID string) (*model.Artifact, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) IncrementAccess(ctx context.Context, publicID string, now time.Time) (*model.Artifact, error) {
	args := m.Called(ctx, publicID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) Transition(ctx context.Context, publicID string, from model.State, to model.Lifecycle) (*model.Artifact, error) {
	args := m.Called(ctx, publicID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error) {
	args := m.Called(ctx, owner, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) ListExpired(ctx context.Context, now time.Time, after repository.ExpiryCursor, limit int) ([]model.Artifact, error) {
	args := m.Called(ctx, now, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) ClaimPurge(ctx context.Context, publicID string) (*model.Artifact, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) ReleasePurge(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockArtifactRepository) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}
