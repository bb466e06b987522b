package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"droplink/internal/link"
	"droplink/internal/logging"
	"droplink/internal/model"
	"droplink/internal/notify"
	notifyMocks "droplink/internal/notify/mocks"
	"droplink/internal/repository"
	repoMocks "droplink/internal/repository/mocks"
	"droplink/internal/storage"
	storeMocks "droplink/internal/storage/mocks"
)

func testIssuer(t *testing.T) *link.Issuer {
	t.Helper()
	iss, err := link.NewIssuer("http://localhost:8080")
	require.NoError(t, err)
	return iss
}

func echoPut(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	n, _ := io.Copy(io.Discard, r)
	return storage.ObjectInfo{Key: key, Size: n, ContentType: opt.ContentType}
}

func TestArtifactService_CreateArtifact(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      func() CreateInput
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "happy path",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("hello world"), OriginalName: "test.txt", MimeType: "text/plain", SizeBytes: 11}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {
				mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "artifacts/") && strings.HasSuffix(key, ".txt")
				}), mock.Anything, storage.PutObjectOptions{
					Size:        11,
					ContentType: "text/plain",
					Metadata:    map[string]string{"original-filename": "test.txt"},
				}).Return(echoPut, nil)

				mRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *model.Artifact) bool {
					return a.PublicID != "" && strings.HasPrefix(a.StorageHandle, "artifacts/") &&
						a.SizeBytes == 11 && a.AccessCount == 0 && !a.Lifecycle.IsSoftDeleted()
				})).Return(&model.Artifact{PublicID: "gen-id"}, nil)
			},
		},
		{
			name: "validation error - nil body",
			input: func() CreateInput {
				return CreateInput{OriginalName: "test.txt"}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {},
			wantErr:    ErrValidation,
		},
		{
			name: "validation error - empty name",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("x"), OriginalName: "  "}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {},
			wantErr:    ErrValidation,
		},
		{
			name: "storage error leaves no record",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("hello"), OriginalName: "test.txt", MimeType: "text/plain"}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full"))
			},
			wantErr: ErrStorageWrite,
		},
		{
			name: "repository error with successful rollback",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("hello"), OriginalName: "test.txt", MimeType: "text/plain"}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", mock.Anything, mock.Anything).Return(nil)
			},
			wantErrMsg: "save metadata: db fail",
		},
		{
			name: "repository error with failed rollback",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("hello"), OriginalName: "test.txt", MimeType: "text/plain"}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", mock.Anything, mock.Anything).Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
		{
			name: "duplicate public id is retried",
			input: func() CreateInput {
				return CreateInput{Body: strings.NewReader("hello"), OriginalName: "test.txt", MimeType: "text/plain"}
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockArtifactRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, repository.ErrDuplicateID).Once()
				mRepo.On("Create", mock.Anything, mock.Anything).Return(&model.Artifact{PublicID: "second"}, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockArtifactRepository)
			svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()))

			tt.setupMocks(mStore, mRepo)

			res, err := svc.CreateArtifact(ctx, tt.input())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, res)
				assert.Equal(t, "http://localhost:8080/files/"+res.Artifact.PublicID+"/download", res.Links.Download)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestArtifactService_CreateArtifactNotifies(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockArtifactRepository)
	mNotify := new(notifyMocks.MockNotifier)

	mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
	mRepo.On("Create", mock.Anything, mock.Anything).Return(&model.Artifact{
		PublicID:          "abc",
		OriginalName:      "a.txt",
		OwnerIdentity:     "alice@example.com",
		RecipientIdentity: "bob@example.com",
	}, nil)
	view := "http://localhost:8080/files/abc/view"
	mNotify.On("Notify", mock.Anything, mock.MatchedBy(func(n notify.Notification) bool {
		return n.Kind == notify.KindSenderConfirmation && n.To == "alice@example.com" && n.Link == view && n.TTL == 2*time.Hour
	})).Return(nil)
	mNotify.On("Notify", mock.Anything, mock.MatchedBy(func(n notify.Notification) bool {
		return n.Kind == notify.KindRecipientLink && n.To == "bob@example.com" && n.Link == view
	})).Return(errors.New("smtp down"))

	svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()), WithNotifier(mNotify), WithTTL(2*time.Hour))
	_, err := svc.CreateArtifact(ctx, CreateInput{
		Body:         strings.NewReader("hi"),
		OriginalName: "a.txt",
		MimeType:     "text/plain",
		Owner:        "alice@example.com",
		Recipient:    "bob@example.com",
	})

	assert.NoError(t, err, "notification failure must not fail the upload")
	mNotify.AssertExpectations(t)
}

func TestArtifactService_AccessContentReadError(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockArtifactRepository)

	now := time.Now()
	mRepo.On("FindByPublicID", mock.Anything, "abc").Return(&model.Artifact{
		PublicID:      "abc",
		StorageHandle: "artifacts/abc.txt",
		ExpiresAt:     now.Add(time.Hour),
	}, nil)
	mStore.On("Get", mock.Anything, "artifacts/abc.txt").Return(nil, storage.ObjectInfo{}, errors.New("io timeout"))

	svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()))
	_, err := svc.AccessContent(ctx, "abc", ModeView)

	assert.ErrorIs(t, err, ErrStorageRead)
	mRepo.AssertNotCalled(t, "IncrementAccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestArtifactService_LazyExpiryBlobFailureStillRemovesRecord(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockArtifactRepository)

	mRepo.On("FindByPublicID", mock.Anything, "abc").Return(&model.Artifact{
		PublicID:      "abc",
		StorageHandle: "artifacts/abc.txt",
		ExpiresAt:     time.Now().Add(-time.Minute),
	}, nil)
	mStore.On("Delete", mock.Anything, "artifacts/abc.txt").Return(errors.New("permission denied"))
	mRepo.On("Delete", mock.Anything, "abc").Return(nil)

	svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()))
	_, err := svc.AccessContent(ctx, "abc", ModeDownload)

	assert.ErrorIs(t, err, ErrGone)
	mRepo.AssertExpectations(t)
}

func TestArtifactService_PurgePermanentlyKeepsRecordOnBlobFailure(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockArtifactRepository)

	mRepo.On("ClaimPurge", mock.Anything, "abc").Return(&model.Artifact{
		PublicID:      "abc",
		StorageHandle: "artifacts/abc.txt",
		ExpiresAt:     time.Now().Add(time.Hour),
		Lifecycle:     model.SoftDeletedAt(time.Now()),
	}, nil)
	mRepo.On("ReleasePurge", mock.Anything, "abc").Return(nil).Once()
	mStore.On("Delete", mock.Anything, "artifacts/abc.txt").Return(errors.New("permission denied"))

	svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()))
	err := svc.PurgePermanently(ctx, "abc")

	assert.ErrorIs(t, err, ErrStorageWrite)
	mRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mRepo.AssertExpectations(t)
}

func TestArtifactService_PurgePermanentlyRequiresClaim(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockArtifactRepository)
	mRepo.On("ClaimPurge", mock.Anything, "abc").Return(nil, repository.ErrNotFound)

	svc := NewArtifactService(mStore, mRepo, testIssuer(t), WithLogger(logging.Discard()))
	err := svc.PurgePermanently(context.Background(), "abc")

	assert.ErrorIs(t, err, ErrNotFound)
	mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestArtifactService_ListByOwnerValidation(t *testing.T) {
	svc := NewArtifactService(nil, new(repoMocks.MockArtifactRepository), testIssuer(t), WithLogger(logging.Discard()))

	_, err := svc.ListByOwner(context.Background(), "", model.StateActive)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ListByOwner(context.Background(), "alice", model.State("purged"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDetectMimeType(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

	tests := []struct {
		name     string
		declared string
		content  []byte
		want     string
	}{
		{name: "declared type kept", declared: "text/csv", content: []byte("a,b\n"), want: "text/csv"},
		{name: "missing type sniffed", declared: "", content: png, want: "image/png"},
		{name: "octet-stream sniffed", declared: "application/octet-stream", content: []byte("%PDF-1.4\n..."), want: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, got, err := detectMimeType(bytes.NewReader(tt.content), tt.declared)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			replayed, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.content, replayed)
		})
	}
}

func TestStorageKey(t *testing.T) {
	k := storageKey("Report.PDF")
	assert.True(t, strings.HasPrefix(k, "artifacts/"))
	assert.True(t, strings.HasSuffix(k, ".pdf"))
	assert.NotEqual(t, k, storageKey("Report.PDF"))

	assert.NotContains(t, storageKey("archive.this-extension-is-far-too-long"), ".this")
	assert.Equal(t, len("artifacts/")+36, len(storageKey("README")))
}
