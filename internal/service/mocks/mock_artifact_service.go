package mocks

import (
	"context"

	"droplink/internal/model"
	"droplink/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockArtifactService struct {
	mock.Mock
}

func (m *MockArtifactService) CreateArtifact(ctx context.Context, in service.CreateInput) (*service.CreateResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateResult), args.Error(1)
}

func (m *MockArtifactService) GetMetadata(ctx context.Context, publicID string) (*service.MetadataView, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MetadataView), args.Error(1)
}

func (m *MockArtifactService) AccessContent(ctx context.Context, publicID string, mode service.Mode) (*service.Content, error) {
	args := m.Called(ctx, publicID, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Content), args.Error(1)
}

func (m *MockArtifactService) ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error) {
	args := m.Called(ctx, owner, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Artifact), args.Error(1)
}

func (m *MockArtifactService) SoftDelete(ctx context.Context, publicID string) (*model.Artifact, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactService) Restore(ctx context.Context, publicID string) (*model.Artifact, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactService) PurgePermanently(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}
