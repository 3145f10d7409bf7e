package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docviewer/internal/model"
	"docviewer/internal/repository"
	"docviewer/internal/storage"
)

// UploadGrantRequest asks for a write URL for one new object.
type UploadGrantRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,max=255"`
}

// UploadGrant is a time-limited URL the client PUTs the object to.
type UploadGrant struct {
	UploadURL   string `json:"uploadUrl"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// RegisterRequest records an object that the client has uploaded.
type RegisterRequest struct {
	Key      string `json:"key" validate:"required,max=1024"`
	Title    string `json:"title" validate:"required"`
	Category string `json:"category"`
	Size     *int64 `json:"size" validate:"omitempty,min=0"`
	ID       string `json:"id" validate:"omitempty,max=128"`
}

// SignedURL is a short-lived read URL for a document.
type SignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// PresignService delegates document bytes to an object store through presigned URLs.
type PresignService interface {
	List(ctx context.Context) ([]model.Document, error)

	// CreateUploadGrant issues a write URL under a fresh key. No record is created.
	CreateUploadGrant(ctx context.Context, req UploadGrantRequest) (*UploadGrant, error)

	// Register creates, or overwrites when req.ID names an existing record, an s3 record.
	// The object is stat'ed for its true size; a failed stat is logged and ignored.
	Register(ctx context.Context, req RegisterRequest) (string, error)

	// ResolveURL issues a read URL for the record's key.
	ResolveURL(ctx context.Context, id string) (*SignedURL, error)

	// Delete removes the object best-effort, then the record.
	Delete(ctx context.Context, id string) error
}

// PresignOptions tunes PresignService.
type PresignOptions struct {
	KeyPrefix string
	PutExpiry time.Duration
	GetExpiry time.Duration
	Now       func() time.Time
}

type presignService struct {
	repo     repository.DocumentRepository
	store    storage.Storage
	opts     PresignOptions
	log      *zap.Logger
	validate *validator.Validate
}

// NewPresignService wires the presigned-URL variant.
func NewPresignService(repo repository.DocumentRepository, store storage.Storage, opts PresignOptions, log *zap.Logger) PresignService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PutExpiry <= 0 {
		opts.PutExpiry = 900 * time.Second
	}
	if opts.GetExpiry <= 0 {
		opts.GetExpiry = 120 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &presignService{
		repo:     repo,
		store:    store,
		opts:     opts,
		log:      log.With(zap.String("component", "presign_service")),
		validate: newValidator(),
	}
}

func (s *presignService) List(ctx context.Context) ([]model.Document, error) {
	return s.repo.List(ctx)
}

func (s *presignService) CreateUploadGrant(ctx context.Context, req UploadGrantRequest) (*UploadGrant, error) {
	req.Filename = strings.TrimSpace(req.Filename)
	req.ContentType = strings.TrimSpace(req.ContentType)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.ContentType == "" {
		req.ContentType = AcceptedContentType
	}

	key := objectKey(s.opts.KeyPrefix, req.Filename, s.opts.Now())
	url, err := s.store.PresignPut(ctx, key, s.opts.PutExpiry)
	if err != nil {
		upstreamFailuresTotal.WithLabelValues("s3_presign_put").Inc()
		return nil, fmt.Errorf("%w: presign upload: %w", ErrUpstream, err)
	}
	return &UploadGrant{UploadURL: url, Key: key, ContentType: req.ContentType}, nil
}

func (s *presignService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	req.Key = strings.TrimSpace(req.Key)
	req.Title = strings.TrimSpace(req.Title)
	req.ID = strings.TrimSpace(req.ID)
	if err := s.validate.Struct(req); err != nil {
		return "", validationError(err)
	}

	size := req.Size
	info, err := s.store.Stat(ctx, req.Key)
	switch {
	case err == nil:
		size = model.Int64(info.Size)
	case errors.Is(err, storage.ErrObjectNotFound):
		s.log.Warn("registered object not found", zap.String("key", req.Key))
	default:
		upstreamFailuresTotal.WithLabelValues("s3_stat").Inc()
		s.log.Warn("object stat failed", zap.String("key", req.Key), zap.Error(err))
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	doc := model.Document{
		ID:       id,
		Title:    req.Title,
		Category: firstNonEmpty(req.Category, model.DefaultCategory),
		Source:   model.SourceS3,
		Date:     s.opts.Now().UnixMilli(),
		Size:     size,
		Key:      req.Key,
	}
	if err := s.repo.Add(ctx, doc); err != nil {
		return "", fmt.Errorf("save metadata: %w", err)
	}
	return id, nil
}

func (s *presignService) ResolveURL(ctx context.Context, id string) (*SignedURL, error) {
	doc, err := lookup(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if doc.Key == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, doc.Source)
	}

	url, err := s.store.PresignGet(ctx, doc.Key, s.opts.GetExpiry)
	if err != nil {
		upstreamFailuresTotal.WithLabelValues("s3_presign_get").Inc()
		return nil, fmt.Errorf("%w: presign download: %w", ErrUpstream, err)
	}
	if doc.Size == nil {
		s.refreshSize(ctx, doc)
	}
	return &SignedURL{URL: url, ExpiresIn: int(s.opts.GetExpiry / time.Second)}, nil
}

// refreshSize fills a missing size from the object store. Failures are logged only.
func (s *presignService) refreshSize(ctx context.Context, doc *model.Document) {
	info, err := s.store.Stat(ctx, doc.Key)
	if err != nil {
		s.log.Debug("size refresh skipped", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	if err := s.repo.Update(ctx, doc.ID, model.DocumentPatch{Size: model.Int64(info.Size)}); err != nil {
		s.log.Warn("size refresh failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

func (s *presignService) Delete(ctx context.Context, id string) error {
	doc, err := lookup(ctx, s.repo, id)
	if err != nil {
		return err
	}
	if doc.Key != "" {
		if err := s.store.Delete(ctx, doc.Key); err != nil {
			upstreamFailuresTotal.WithLabelValues("s3_delete").Inc()
			s.log.Warn("remove object failed",
				zap.String("document_id", doc.ID),
				zap.String("key", doc.Key),
				zap.Error(err))
		}
	}
	return s.repo.Remove(ctx, id)
}
