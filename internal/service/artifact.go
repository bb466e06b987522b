package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"droplink/internal/link"
	"droplink/internal/model"
	"droplink/internal/notify"
	"droplink/internal/repository"
	"droplink/internal/storage"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrGone         = errors.New("artifact link expired")
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorageRead  = errors.New("storage read failed")
	ErrValidation   = errors.New("validation failed")
)

const (
	storagePrefix   = "artifacts"
	defaultMimeType = "application/octet-stream"
	sniffLen        = 3072
	maxExtLen       = 16
	createAttempts  = 3
)

// Mode selects how content is delivered to the client.
type Mode int

const (
	ModeView Mode = iota
	ModeDownload
)

func (m Mode) String() string {
	if m == ModeDownload {
		return "download"
	}
	return "view"
}

// CreateInput carries an upload. TTL zero means the configured default.
type CreateInput struct {
	Body         io.Reader
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Owner        string
	Recipient    string
	TTL          time.Duration
}

// CreateResult is the stored record plus its public links.
type CreateResult struct {
	Artifact *model.Artifact
	Links    link.Links
}

// MetadataView is the read-only view returned by GetMetadata.
type MetadataView struct {
	PublicID     string      `json:"public_id"`
	OriginalName string      `json:"original_name"`
	MimeType     string      `json:"mime_type"`
	SizeBytes    int64       `json:"size_bytes"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	Expired      bool        `json:"expired"`
	AccessCount  int64       `json:"access_count"`
	State        model.State `json:"state"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`
}

// Content is an open blob stream. The caller must close Body.
type Content struct {
	Body         io.ReadCloser
	MimeType     string
	OriginalName string
	SizeBytes    int64
	Mode         Mode
}

// ArtifactService is the lifecycle engine. Every content read funnels through
// AccessContent, which owns the expiry-on-access policy.
type ArtifactService interface {
	// CreateArtifact writes the blob, then the record. A failed blob write
	// never leaves a record; a failed record write removes the blob.
	CreateArtifact(ctx context.Context, in CreateInput) (*CreateResult, error)

	// GetMetadata reports the record without mutating it, including for
	// soft-deleted and expired artifacts.
	GetMetadata(ctx context.Context, publicID string) (*MetadataView, error)

	// AccessContent opens the blob and counts the access. Expired artifacts
	// are destroyed and reported as ErrGone; soft-deleted ones as ErrNotFound.
	AccessContent(ctx context.Context, publicID string, mode Mode) (*Content, error)

	// ListByOwner lists the owner's records in state, newest first.
	ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error)

	// SoftDelete moves an Active record to the recycle bin.
	SoftDelete(ctx context.Context, publicID string) (*model.Artifact, error)

	// Restore moves a SoftDeleted record back to Active. Expiry is kept.
	Restore(ctx context.Context, publicID string) (*model.Artifact, error)

	// PurgePermanently destroys a SoftDeleted artifact.
	PurgePermanently(ctx context.Context, publicID string) error
}

// Option configures the engine.
type Option func(*artifactService)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *artifactService) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *artifactService) { s.logger = l }
}

// WithNotifier sets the notification boundary. Pass a *notify.Dispatcher in
// production so delivery never blocks the upload.
func WithNotifier(n notify.Notifier) Option {
	return func(s *artifactService) { s.notifier = n }
}

// WithStoreTimeout bounds each metadata and blob store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *artifactService) { s.timeout = d }
}

// WithTTL sets the default link lifetime.
func WithTTL(d time.Duration) Option {
	return func(s *artifactService) { s.ttl = d }
}

// WithRegisterer registers the engine metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *artifactService) { s.reg = reg }
}

type artifactService struct {
	purger
	links    *link.Issuer
	notifier notify.Notifier
	ttl      time.Duration
	reg      prometheus.Registerer

	lazyExpired prometheus.Counter
}

// NewArtifactService constructs the lifecycle engine.
func NewArtifactService(store storage.Storage, repo repository.ArtifactRepository, links *link.Issuer, opts ...Option) ArtifactService {
	s := &artifactService{
		purger: purger{
			store:   store,
			repo:    repo,
			now:     time.Now,
			timeout: 10 * time.Second,
		},
		links: links,
		ttl:   24 * time.Hour,
		lazyExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "droplink_lazy_expired_total",
			Help: "Artifacts destroyed on access after expiry.",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "lifecycle"))
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.reg != nil {
		s.reg.MustRegister(s.lazyExpired)
	}
	return s
}

func (s *artifactService) CreateArtifact(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}
	name := strings.TrimSpace(filepath.Base(in.OriginalName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: original name is required", ErrValidation)
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = s.ttl
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrValidation)
	}

	body, mimeType, err := detectMimeType(in.Body, in.MimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ErrStorageWrite, err)
	}

	key := storageKey(name)
	putCtx, cancel := s.storeCtx(ctx)
	info, err := s.store.Put(putCtx, key, body, storage.PutObjectOptions{
		Size:        sizeOrUnknown(in.SizeBytes),
		ContentType: mimeType,
		Metadata:    map[string]string{"original-filename": name},
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	now := s.now().UTC()
	a := &model.Artifact{
		OriginalName:      name,
		MimeType:          mimeType,
		SizeBytes:         info.Size,
		StorageHandle:     info.Key,
		OwnerIdentity:     strings.TrimSpace(in.Owner),
		RecipientIdentity: strings.TrimSpace(in.Recipient),
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
		Lifecycle:         model.Active(),
	}

	stored, err := s.insert(ctx, a)
	if err != nil {
		// Rollback: the blob must not outlive a failed record write.
		delCtx, cancel := s.storeCtx(context.WithoutCancel(ctx))
		defer cancel()
		if delErr := s.store.Delete(delCtx, info.Key); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("save metadata: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	links := s.links.For(stored.PublicID)
	s.notifyUpload(ctx, stored, links, ttl)

	s.logger.InfoContext(ctx, "artifact_created",
		slog.String("public_id", stored.PublicID),
		slog.Int64("size_bytes", stored.SizeBytes),
		slog.Time("expires_at", stored.ExpiresAt),
	)
	return &CreateResult{Artifact: stored, Links: links}, nil
}

// insert retries with a fresh public id while the candidate is taken.
func (s *artifactService) insert(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	var err error
	for range createAttempts {
		a.PublicID = uuid.NewString()
		rctx, cancel := s.storeCtx(ctx)
		var stored *model.Artifact
		stored, err = s.repo.Create(rctx, a)
		cancel()
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, repository.ErrDuplicateID) {
			return nil, err
		}
	}
	return nil, err
}

func (s *artifactService) notifyUpload(ctx context.Context, a *model.Artifact, links link.Links, ttl time.Duration) {
	base := notify.Notification{
		Link:         links.View,
		OriginalName: a.OriginalName,
		SizeBytes:    a.SizeBytes,
		TTL:          ttl,
	}
	if a.OwnerIdentity != "" {
		n := base
		n.Kind, n.To = notify.KindSenderConfirmation, a.OwnerIdentity
		s.dispatch(ctx, n)
	}
	if a.RecipientIdentity != "" {
		n := base
		n.Kind, n.To = notify.KindRecipientLink, a.RecipientIdentity
		s.dispatch(ctx, n)
	}
}

func (s *artifactService) dispatch(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		s.logger.WarnContext(ctx, "notification_failed",
			slog.String("kind", string(n.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *artifactService) GetMetadata(ctx context.Context, publicID string) (*MetadataView, error) {
	a, err := s.find(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return &MetadataView{
		PublicID:     a.PublicID,
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		CreatedAt:    a.CreatedAt,
		ExpiresAt:    a.ExpiresAt,
		Expired:      a.Expired(s.now()),
		AccessCount:  a.AccessCount,
		State:        a.Lifecycle.State(),
		DeletedAt:    a.Lifecycle.DeletedAtPtr(),
	}, nil
}

func (s *artifactService) AccessContent(ctx context.Context, publicID string, mode Mode) (*Content, error) {
	a, err := s.find(ctx, publicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if a.Expired(now) {
		trace.SpanFromContext(ctx).AddEvent("lazy_expiry", trace.WithAttributes(attribute.String("public_id", a.PublicID)))
		if err := s.purge(ctx, a, true); err != nil {
			s.logger.ErrorContext(ctx, "lazy_expiry_failed",
				slog.String("public_id", a.PublicID),
				slog.String("error", err.Error()),
			)
		} else {
			s.lazyExpired.Inc()
		}
		return nil, ErrGone
	}
	if a.Lifecycle.IsSoftDeleted() {
		return nil, ErrNotFound
	}

	// The stream outlives this call, so it is opened on the caller's context.
	body, _, err := s.store.Get(ctx, a.StorageHandle)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.WarnContext(ctx, "dangling_record_removed", slog.String("public_id", a.PublicID))
			if err := s.deleteRecord(ctx, a.PublicID); err != nil {
				s.logger.ErrorContext(ctx, "dangling_record_delete_failed", slog.String("error", err.Error()))
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	rctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.repo.IncrementAccess(rctx, a.PublicID, now); err != nil {
		_ = body.Close()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record access: %w", err)
	}

	return &Content{
		Body:         body,
		MimeType:     a.MimeType,
		OriginalName: a.OriginalName,
		SizeBytes:    a.SizeBytes,
		Mode:         mode,
	}, nil
}

func (s *artifactService) ListByOwner(ctx context.Context, owner string, state model.State) ([]model.Artifact, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrValidation, state)
	}
	rctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.ListByOwner(rctx, owner, state)
}

func (s *artifactService) SoftDelete(ctx context.Context, publicID string) (*model.Artifact, error) {
	return s.transition(ctx, publicID, model.StateActive, model.SoftDeletedAt(s.now().UTC()))
}

func (s *artifactService) Restore(ctx context.Context, publicID string) (*model.Artifact, error) {
	return s.transition(ctx, publicID, model.StateSoftDeleted, model.Active())
}

func (s *artifactService) transition(ctx context.Context, publicID string, from model.State, to model.Lifecycle) (*model.Artifact, error) {
	rctx, cancel := s.storeCtx(ctx)
	defer cancel()
	a, err := s.repo.Transition(rctx, publicID, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "artifact_transitioned",
		slog.String("public_id", publicID),
		slog.String("from", string(from)),
		slog.String("to", string(to.State())),
	)
	return a, nil
}

// PurgePermanently claims the record first so a concurrent Restore either
// wins before the claim or fails with ErrNotFound after it.
func (s *artifactService) PurgePermanently(ctx context.Context, publicID string) error {
	if publicID == "" {
		return ErrNotFound
	}
	rctx, cancel := s.storeCtx(ctx)
	a, err := s.repo.ClaimPurge(rctx, publicID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.purge(ctx, a, false); err != nil {
		s.releasePurge(ctx, publicID)
		return err
	}
	s.logger.InfoContext(ctx, "artifact_purged", slog.String("public_id", publicID))
	return nil
}

// releasePurge makes a record whose purge failed restorable again.
func (s *artifactService) releasePurge(ctx context.Context, publicID string) {
	rctx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.repo.ReleasePurge(rctx, publicID); err != nil {
		s.logger.ErrorContext(ctx, "purge_release_failed",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *artifactService) find(ctx context.Context, publicID string) (*model.Artifact, error) {
	if publicID == "" {
		return nil, ErrNotFound
	}
	rctx, cancel := s.storeCtx(ctx)
	defer cancel()
	a, err := s.repo.FindByPublicID(rctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// detectMimeType sniffs the content when the client sent no useful type and
// returns a reader that replays the sniffed prefix.
func detectMimeType(r io.Reader, declared string) (io.Reader, string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != defaultMimeType {
		return r, declared, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head).String(), nil
}

// storageKey is a fresh uuid plus the original extension.
func storageKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > maxExtLen || strings.ContainsAny(ext, " \\") {
		ext = ""
	}
	return storagePrefix + "/" + uuid.NewString() + ext
}

func sizeOrUnknown(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}
