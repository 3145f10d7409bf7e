package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docviewer/internal/model"
	"docviewer/internal/repository"
	"docviewer/internal/telegram"
)

// AcceptedContentType is the only media type accepted by direct uploads.
const AcceptedContentType = "application/pdf"

// DiskStore keeps document bytes on the local filesystem.
type DiskStore interface {
	Save(ctx context.Context, name string, r io.Reader, limit int64) (string, int64, error)
	Open(path string) (io.ReadCloser, int64, error)
	Remove(path string) error
}

// BotFiles resolves and downloads files held by the bot platform.
type BotFiles interface {
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	Download(ctx context.Context, filePath string) (io.ReadCloser, error)
}

// UploadInput is a single multipart file plus its form fields.
type UploadInput struct {
	Body        io.Reader
	Filename    string
	ContentType string
	// Size is the length declared by the client, or 0 if unknown.
	Size     int64
	Title    string
	Category string
}

// Delivery is an open document body ready to stream. The caller closes Body.
type Delivery struct {
	Body  io.ReadCloser
	Size  int64
	Title string
}

// LocalService serves documents from local disk, filling the cache from the bot platform on demand.
type LocalService interface {
	// List returns every record in insertion order.
	List(ctx context.Context) ([]model.Document, error)

	// Upload stores a PDF on disk and records it. The file is removed again if the record cannot be saved.
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)

	// Open returns the document body, downloading and caching a bot platform file on first access.
	Open(ctx context.Context, id string) (*Delivery, error)

	// IngestTelegram records the document attached to msg. It returns nil, nil when msg carries no document.
	IngestTelegram(ctx context.Context, msg *telegram.Message) (*model.Document, error)

	// Delete removes the record and its local file, if any.
	Delete(ctx context.Context, id string) error
}

// LocalOptions tunes LocalService.
type LocalOptions struct {
	// MaxUploadBytes caps direct uploads. Zero disables the cap.
	MaxUploadBytes    int64
	PrecacheOnWebhook bool
	// Now is overridable for tests.
	Now func() time.Time
}

type localService struct {
	repo   repository.DocumentRepository
	disk   DiskStore
	bot    BotFiles
	opts   LocalOptions
	log    *zap.Logger
	flight singleflight.Group
}

// NewLocalService wires the local variant. bot may be nil when no bot token is configured;
// bot platform records then fail with ErrConfiguration until they are cached.
func NewLocalService(repo repository.DocumentRepository, disk DiskStore, bot BotFiles, opts LocalOptions, log *zap.Logger) LocalService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &localService{
		repo: repo,
		disk: disk,
		bot:  bot,
		opts: opts,
		log:  log.With(zap.String("component", "local_service")),
	}
}

func (s *localService) List(ctx context.Context) ([]model.Document, error) {
	return s.repo.List(ctx)
}

func (s *localService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}
	if mt, _, err := mime.ParseMediaType(in.ContentType); err != nil || mt != AcceptedContentType {
		return nil, fmt.Errorf("%w: only %s files are accepted", ErrValidation, AcceptedContentType)
	}
	limit := s.opts.MaxUploadBytes
	if limit > 0 && in.Size > limit {
		return nil, s.tooLarge()
	}

	now := s.opts.Now()
	id := uuid.NewString()
	path, n, err := s.disk.Save(ctx, fmt.Sprintf("%d-%s.pdf", now.UnixMilli(), id), in.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if limit > 0 && n > limit {
		s.discard(path, id)
		return nil, s.tooLarge()
	}

	doc := model.Document{
		ID:        id,
		Title:     firstNonEmpty(in.Title, in.Filename, "Untitled"),
		Name:      in.Filename,
		Category:  firstNonEmpty(in.Category, model.DefaultCategory),
		Source:    model.SourceUpload,
		Date:      now.UnixMilli(),
		Size:      model.Int64(n),
		LocalPath: path,
	}
	if err := s.repo.Add(ctx, doc); err != nil {
		// Rollback: the file would otherwise be unreachable
		s.discard(path, id)
		return nil, fmt.Errorf("save metadata: %w", err)
	}
	return &doc, nil
}

func (s *localService) tooLarge() error {
	return fmt.Errorf("%w: file exceeds the %d MB limit", ErrValidation, s.opts.MaxUploadBytes>>20)
}

func (s *localService) Open(ctx context.Context, id string) (*Delivery, error) {
	doc, err := lookup(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	if doc.LocalPath != "" {
		body, size, err := s.disk.Open(doc.LocalPath)
		if err == nil {
			if doc.Source == model.SourceTelegram {
				proxyCacheTotal.WithLabelValues("hit").Inc()
				trace.SpanFromContext(ctx).AddEvent("proxy_cache_hit", trace.WithAttributes(attribute.String("document.id", doc.ID)))
			}
			return &Delivery{Body: body, Size: size, Title: doc.Title}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open document file: %w", err)
		}
		s.log.Warn("document file missing",
			zap.String("document_id", doc.ID),
			zap.String("local_path", doc.LocalPath))
	}

	switch doc.Source {
	case model.SourceTelegram:
		path, err := s.fill(ctx, doc)
		if err != nil {
			return nil, err
		}
		body, size, err := s.disk.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open cached file: %w", err)
		}
		return &Delivery{Body: body, Size: size, Title: doc.Title}, nil
	case model.SourceUpload:
		return nil, fmt.Errorf("%w: file for %s is gone", ErrNotFound, doc.ID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, doc.Source)
	}
}

// fill downloads a bot platform file once per id, however many requests wait on it.
// The download outlives the first caller's context so a disconnect does not abort it for the others.
func (s *localService) fill(ctx context.Context, doc *model.Document) (string, error) {
	if s.bot == nil {
		return "", fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is not set", ErrConfiguration)
	}
	if doc.FileID == "" {
		return "", fmt.Errorf("%w: record %s has no file id", ErrUnsupportedSource, doc.ID)
	}
	proxyCacheTotal.WithLabelValues("miss").Inc()
	span := trace.SpanFromContext(ctx)
	span.AddEvent("proxy_cache_miss", trace.WithAttributes(attribute.String("document.id", doc.ID)))

	snapshot := doc.Clone()
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.flight.Do(doc.ID, func() (any, error) {
		return s.download(detached, snapshot)
	})
	if err != nil {
		proxyCacheTotal.WithLabelValues("fill_error").Inc()
		span.RecordError(err)
		return "", err
	}
	if shared {
		s.log.Debug("cache fill shared", zap.String("document_id", doc.ID))
	}
	return v.(string), nil
}

func (s *localService) download(ctx context.Context, doc model.Document) (string, error) {
	start := time.Now()
	f, err := s.bot.GetFile(ctx, doc.FileID)
	if err != nil {
		upstreamFailuresTotal.WithLabelValues("telegram_get_file").Inc()
		return "", fmt.Errorf("%w: resolve telegram file: %w", ErrUpstream, err)
	}
	body, err := s.bot.Download(ctx, f.FilePath)
	if err != nil {
		upstreamFailuresTotal.WithLabelValues("telegram_download").Inc()
		return "", fmt.Errorf("%w: download telegram file: %w", ErrUpstream, err)
	}
	defer body.Close()

	now := s.opts.Now()
	name := fmt.Sprintf("tg-%d-%s%s", now.UnixMilli(), doc.ID, fileExt(f.FilePath, ".pdf"))
	path, n, err := s.disk.Save(ctx, name, upstreamReader{body}, 0)
	if err != nil {
		if errors.Is(err, ErrUpstream) {
			upstreamFailuresTotal.WithLabelValues("telegram_download").Inc()
		}
		return "", fmt.Errorf("cache telegram file: %w", err)
	}

	patch := model.DocumentPatch{LocalPath: model.String(path), CachedAt: model.Int64(now.UnixMilli())}
	if doc.Size == nil {
		patch.Size = model.Int64(n)
	}
	if err := s.repo.Update(ctx, doc.ID, patch); err != nil {
		s.discard(path, doc.ID)
		return "", fmt.Errorf("record cached file: %w", err)
	}

	s.log.Info("document cached",
		zap.String("document_id", doc.ID),
		zap.String("local_path", path),
		zap.Int64("size_bytes", n),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return path, nil
}

func (s *localService) IngestTelegram(ctx context.Context, msg *telegram.Message) (*model.Document, error) {
	if msg == nil || msg.Document == nil || msg.Document.FileID == "" {
		return nil, nil
	}
	att := msg.Document
	doc := model.Document{
		ID:       uuid.NewString(),
		Title:    firstNonEmpty(att.FileName, msg.Caption, fmt.Sprintf("telegram-%d.pdf", msg.MessageID)),
		Name:     att.FileName,
		Category: model.DefaultCategory,
		Source:   model.SourceTelegram,
		Date:     s.opts.Now().UnixMilli(),
		FileID:   att.FileID,
	}
	if att.FileSize > 0 {
		doc.Size = model.Int64(att.FileSize)
	}
	if err := s.repo.Add(ctx, doc); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}
	s.log.Info("telegram document registered",
		zap.String("document_id", doc.ID),
		zap.Int64("message_id", msg.MessageID))

	if !s.opts.PrecacheOnWebhook || s.bot == nil {
		return &doc, nil
	}
	if _, err := s.fill(ctx, &doc); err != nil {
		s.log.Warn("precache failed", zap.String("document_id", doc.ID), zap.Error(err))
		return &doc, nil
	}
	if fresh, err := s.repo.Find(ctx, doc.ID); err == nil {
		return fresh, nil
	}
	return &doc, nil
}

func (s *localService) Delete(ctx context.Context, id string) error {
	doc, err := lookup(ctx, s.repo, id)
	if err != nil {
		return err
	}
	if doc.LocalPath != "" {
		s.discard(doc.LocalPath, doc.ID)
	}
	return s.repo.Remove(ctx, id)
}

// discard removes a local file. Failures are logged and otherwise ignored.
func (s *localService) discard(path, id string) {
	err := s.disk.Remove(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.log.Debug("document file already gone", zap.String("document_id", id), zap.String("local_path", path))
	default:
		s.log.Warn("remove document file failed",
			zap.String("document_id", id),
			zap.String("local_path", path),
			zap.Error(err))
	}
}

// upstreamReader marks read failures as upstream errors.
type upstreamReader struct {
	r io.Reader
}

func (u upstreamReader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: read telegram file: %w", ErrUpstream, err)
	}
	return n, err
}

// lookup maps the repository's miss to ErrNotFound.
func lookup(ctx context.Context, repo repository.DocumentRepository, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	doc, err := repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
