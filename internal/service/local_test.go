package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docviewer/internal/model"
	"docviewer/internal/repository"
	"docviewer/internal/repository/memory"
	repoMocks "docviewer/internal/repository/mocks"
	"docviewer/internal/storage/disk"
	"docviewer/internal/telegram"
	botMocks "docviewer/internal/telegram/mocks"
)

var fixedNow = func() time.Time { return time.UnixMilli(1700000000000) }

type localFixture struct {
	svc   LocalService
	repo  repository.DocumentRepository
	store *memory.Store
	disk  *disk.Store
	bot   *botMocks.MockBot
}

func newLocalFixture(t *testing.T, withBot bool, opts LocalOptions, docs ...model.Document) *localFixture {
	t.Helper()
	d, err := disk.New(t.TempDir())
	require.NoError(t, err)
	store := memory.New(docs...)
	repo := repository.NewSnapshotRepository(store)

	f := &localFixture{repo: repo, store: store, disk: d}
	var bot BotFiles
	if withBot {
		f.bot = &botMocks.MockBot{}
		bot = f.bot
	}
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	f.svc = NewLocalService(repo, d, bot, opts, nil)
	return f
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readAll(t *testing.T, d *Delivery) string {
	t.Helper()
	defer d.Body.Close()
	b, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return string(b)
}

func TestLocalService_UploadListDelete(t *testing.T) {
	f := newLocalFixture(t, false, LocalOptions{MaxUploadBytes: 1 << 20})
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, UploadInput{
		Body:        strings.NewReader("%PDF-1.7 q1"),
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Title:       "Q1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Q1", doc.Title)
	assert.Equal(t, "report.pdf", doc.Name)
	assert.Equal(t, model.DefaultCategory, doc.Category)
	assert.Equal(t, model.SourceUpload, doc.Source)
	assert.Equal(t, int64(1700000000000), doc.Date)
	require.NotNil(t, doc.Size)
	assert.Equal(t, int64(11), *doc.Size)
	assert.Equal(t, filepath.Join(f.disk.Dir(), "1700000000000-"+doc.ID+".pdf"), doc.LocalPath)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q1", items[0].Title)
	assert.Equal(t, model.SourceUpload, items[0].Source)

	d, err := f.svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 q1", readAll(t, d))
	assert.Equal(t, int64(11), d.Size)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	items, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoFileExists(t, doc.LocalPath)
}

func TestLocalService_UploadValidation(t *testing.T) {
	tests := []struct {
		name  string
		input UploadInput
		msg   string
	}{
		{
			name:  "no file",
			input: UploadInput{ContentType: "application/pdf"},
			msg:   "file is required",
		},
		{
			name:  "not a pdf",
			input: UploadInput{Body: strings.NewReader("hello"), Filename: "a.txt", ContentType: "text/plain"},
			msg:   "only application/pdf files are accepted",
		},
		{
			name:  "declared size over limit",
			input: UploadInput{Body: strings.NewReader("x"), Filename: "a.pdf", ContentType: "application/pdf", Size: 2 << 20},
			msg:   "file exceeds the 1 MB limit",
		},
		{
			name:  "body over limit",
			input: UploadInput{Body: strings.NewReader(strings.Repeat("x", 1<<20+1)), Filename: "a.pdf", ContentType: "application/pdf"},
			msg:   "file exceeds the 1 MB limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLocalFixture(t, false, LocalOptions{MaxUploadBytes: 1 << 20})

			doc, err := f.svc.Upload(context.Background(), tt.input)

			assert.Nil(t, doc)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Empty(t, dirEntries(t, f.disk.Dir()))
		})
	}
}

func TestLocalService_UploadAcceptsContentTypeParams(t *testing.T) {
	f := newLocalFixture(t, false, LocalOptions{})

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		Body:        strings.NewReader("%PDF"),
		Filename:    "scan.pdf",
		ContentType: "application/pdf; charset=binary",
		Category:    "Reports",
	})

	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", doc.Title)
	assert.Equal(t, "Reports", doc.Category)
}

func TestLocalService_UploadRollsBackFileOnRepoError(t *testing.T) {
	d, err := disk.New(t.TempDir())
	require.NoError(t, err)
	repo := &repoMocks.MockDocumentRepository{}
	repo.On("Add", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc := NewLocalService(repo, d, nil, LocalOptions{Now: fixedNow}, nil)

	_, err = svc.Upload(context.Background(), UploadInput{
		Body:        strings.NewReader("%PDF"),
		Filename:    "a.pdf",
		ContentType: "application/pdf",
	})

	assert.EqualError(t, err, "save metadata: disk full")
	assert.Empty(t, dirEntries(t, d.Dir()))
	repo.AssertExpectations(t)
}

func TestLocalService_OpenErrors(t *testing.T) {
	docs := []model.Document{
		{ID: "tg", Title: "T", Source: model.SourceTelegram, FileID: "file-1"},
		{ID: "gone", Title: "G", Source: model.SourceUpload, LocalPath: "/nonexistent/gone.pdf"},
		{ID: "obj", Title: "O", Source: model.SourceS3, Key: "uploads/o.pdf"},
	}
	f := newLocalFixture(t, false, LocalOptions{}, docs...)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Open(ctx, "tg")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = f.svc.Open(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Open(ctx, "obj")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = f.svc.Open(ctx, " ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLocalService_OpenFillsCacheOnce(t *testing.T) {
	f := newLocalFixture(t, true, LocalOptions{},
		model.Document{ID: "tg", Title: "Scan", Source: model.SourceTelegram, FileID: "file-1"})
	ctx := context.Background()

	f.bot.On("GetFile", mock.Anything, "file-1").
		Return(telegram.File{FileID: "file-1", FilePath: "documents/file_7.pdf"}, nil).Once()
	f.bot.On("Download", mock.Anything, "documents/file_7.pdf").
		Return(io.NopCloser(strings.NewReader("%PDF-remote")), nil).Once()

	miss := testutil.ToFloat64(proxyCacheTotal.WithLabelValues("miss"))
	hit := testutil.ToFloat64(proxyCacheTotal.WithLabelValues("hit"))

	d, err := f.svc.Open(ctx, "tg")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-remote", readAll(t, d))
	assert.Equal(t, "Scan", d.Title)

	doc, err := f.repo.Find(ctx, "tg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.disk.Dir(), "tg-1700000000000-tg.pdf"), doc.LocalPath)
	require.NotNil(t, doc.CachedAt)
	assert.Equal(t, int64(1700000000000), *doc.CachedAt)
	require.NotNil(t, doc.Size)
	assert.Equal(t, int64(11), *doc.Size)

	d, err = f.svc.Open(ctx, "tg")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-remote", readAll(t, d))

	assert.Equal(t, miss+1, testutil.ToFloat64(proxyCacheTotal.WithLabelValues("miss")))
	assert.Equal(t, hit+1, testutil.ToFloat64(proxyCacheTotal.WithLabelValues("hit")))
	f.bot.AssertExpectations(t)
}

func TestLocalService_ConcurrentOpensShareOneDownload(t *testing.T) {
	f := newLocalFixture(t, true, LocalOptions{},
		model.Document{ID: "tg", Title: "Scan", Source: model.SourceTelegram, FileID: "file-1", Size: model.Int64(4)})

	release := make(chan struct{})
	f.bot.On("GetFile", mock.Anything, "file-1").
		Run(func(mock.Arguments) { <-release }).
		Return(telegram.File{FilePath: "documents/file_7.pdf"}, nil)
	f.bot.On("Download", mock.Anything, "documents/file_7.pdf").
		Return(io.NopCloser(strings.NewReader("%PDF")), nil).Once()

	const n = 8
	var wg sync.WaitGroup
	bodies := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.svc.Open(context.Background(), "tg")
			if err != nil {
				errs[i] = err
				return
			}
			defer d.Body.Close()
			b, err := io.ReadAll(d.Body)
			bodies[i], errs[i] = string(b), err
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "%PDF", bodies[i])
	}
	f.bot.AssertNumberOfCalls(t, "GetFile", 1)
	f.bot.AssertNumberOfCalls(t, "Download", 1)
	assert.Len(t, dirEntries(t, f.disk.Dir()), 1)
}

func TestLocalService_OpenSurvivesCancelledCaller(t *testing.T) {
	f := newLocalFixture(t, true, LocalOptions{},
		model.Document{ID: "tg", Title: "Scan", Source: model.SourceTelegram, FileID: "file-1"})

	ctx, cancel := context.WithCancel(context.Background())
	f.bot.On("GetFile", mock.Anything, "file-1").
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(telegram.File{FilePath: "documents/file_7.pdf"}, nil)
	f.bot.On("Download", mock.Anything, "documents/file_7.pdf").
		Return(io.NopCloser(strings.NewReader("%PDF")), nil)

	d, err := f.svc.Open(ctx, "tg")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", readAll(t, d))
}

func TestLocalService_OpenRefetchesMissingCache(t *testing.T) {
	f := newLocalFixture(t, true, LocalOptions{},
		model.Document{ID: "tg", Title: "Scan", Source: model.SourceTelegram, FileID: "file-1", LocalPath: "/nonexistent/tg.pdf"})

	f.bot.On("GetFile", mock.Anything, "file-1").Return(telegram.File{FilePath: "documents/file_7"}, nil)
	f.bot.On("Download", mock.Anything, "documents/file_7").Return(io.NopCloser(strings.NewReader("%PDF")), nil)

	d, err := f.svc.Open(context.Background(), "tg")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", readAll(t, d))

	doc, err := f.repo.Find(context.Background(), "tg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.disk.Dir(), "tg-1700000000000-tg.pdf"), doc.LocalPath)
}

func TestLocalService_OpenUpstreamFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(bot *botMocks.MockBot)
	}{
		{
			name: "get file",
			setup: func(bot *botMocks.MockBot) {
				bot.On("GetFile", mock.Anything, "file-1").Return(telegram.File{}, telegram.ErrUnusableFile)
			},
		},
		{
			name: "download",
			setup: func(bot *botMocks.MockBot) {
				bot.On("GetFile", mock.Anything, "file-1").Return(telegram.File{FilePath: "documents/x.pdf"}, nil)
				bot.On("Download", mock.Anything, "documents/x.pdf").Return(nil, &telegram.APIError{Status: 404})
			},
		},
		{
			name: "body read",
			setup: func(bot *botMocks.MockBot) {
				bot.On("GetFile", mock.Anything, "file-1").Return(telegram.File{FilePath: "documents/x.pdf"}, nil)
				bot.On("Download", mock.Anything, "documents/x.pdf").
					Return(io.NopCloser(io.MultiReader(strings.NewReader("%PD"), errReader{})), nil)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLocalFixture(t, true, LocalOptions{},
				model.Document{ID: "tg", Title: "Scan", Source: model.SourceTelegram, FileID: "file-1"})
			tt.setup(f.bot)
			fillErrors := testutil.ToFloat64(proxyCacheTotal.WithLabelValues("fill_error"))

			_, err := f.svc.Open(context.Background(), "tg")

			assert.ErrorIs(t, err, ErrUpstream)
			assert.Equal(t, fillErrors+1, testutil.ToFloat64(proxyCacheTotal.WithLabelValues("fill_error")))
			assert.Empty(t, dirEntries(t, f.disk.Dir()))

			doc, err := f.repo.Find(context.Background(), "tg")
			require.NoError(t, err)
			assert.Empty(t, doc.LocalPath)
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalService_IngestTelegram(t *testing.T) {
	ctx := context.Background()

	t.Run("no document", func(t *testing.T) {
		f := newLocalFixture(t, false, LocalOptions{})

		doc, err := f.svc.IngestTelegram(ctx, &telegram.Message{MessageID: 1, Caption: "hi"})
		require.NoError(t, err)
		assert.Nil(t, doc)

		doc, err = f.svc.IngestTelegram(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, 0, f.store.Saves())
	})

	t.Run("title fallbacks", func(t *testing.T) {
		f := newLocalFixture(t, false, LocalOptions{})

		named, err := f.svc.IngestTelegram(ctx, &telegram.Message{
			MessageID: 1,
			Caption:   "caption",
			Document:  &telegram.Document{FileID: "f1", FileName: "scan.pdf", FileSize: 99},
		})
		require.NoError(t, err)
		assert.Equal(t, "scan.pdf", named.Title)
		assert.Equal(t, "f1", named.FileID)
		assert.Equal(t, model.SourceTelegram, named.Source)
		require.NotNil(t, named.Size)
		assert.Equal(t, int64(99), *named.Size)

		captioned, err := f.svc.IngestTelegram(ctx, &telegram.Message{
			MessageID: 2, Caption: " Minutes ", Document: &telegram.Document{FileID: "f2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Minutes", captioned.Title)
		assert.Nil(t, captioned.Size)

		bare, err := f.svc.IngestTelegram(ctx, &telegram.Message{MessageID: 3, Document: &telegram.Document{FileID: "f3"}})
		require.NoError(t, err)
		assert.Equal(t, "telegram-3.pdf", bare.Title)

		items, err := f.svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("precache", func(t *testing.T) {
		f := newLocalFixture(t, true, LocalOptions{PrecacheOnWebhook: true})
		f.bot.On("GetFile", mock.Anything, "f1").Return(telegram.File{FilePath: "documents/file_1.pdf"}, nil)
		f.bot.On("Download", mock.Anything, "documents/file_1.pdf").Return(io.NopCloser(strings.NewReader("%PDF")), nil)

		doc, err := f.svc.IngestTelegram(ctx, &telegram.Message{MessageID: 1, Document: &telegram.Document{FileID: "f1"}})

		require.NoError(t, err)
		assert.NotEmpty(t, doc.LocalPath)
		assert.FileExists(t, doc.LocalPath)
		require.NotNil(t, doc.Size)
		assert.Equal(t, int64(4), *doc.Size)
	})

	t.Run("precache failure is swallowed", func(t *testing.T) {
		f := newLocalFixture(t, true, LocalOptions{PrecacheOnWebhook: true})
		f.bot.On("GetFile", mock.Anything, "f1").Return(telegram.File{}, errors.New("timeout"))

		doc, err := f.svc.IngestTelegram(ctx, &telegram.Message{MessageID: 1, Document: &telegram.Document{FileID: "f1"}})

		require.NoError(t, err)
		assert.Empty(t, doc.LocalPath)
		_, err = f.repo.Find(ctx, doc.ID)
		assert.NoError(t, err)
	})
}

func TestLocalService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("file already gone", func(t *testing.T) {
		f := newLocalFixture(t, false, LocalOptions{},
			model.Document{ID: "a", Title: "A", Source: model.SourceUpload, LocalPath: "/nonexistent/a.pdf"})

		require.NoError(t, f.svc.Delete(ctx, "a"))

		_, err := f.repo.Find(ctx, "a")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("telegram record without cache", func(t *testing.T) {
		f := newLocalFixture(t, false, LocalOptions{},
			model.Document{ID: "tg", Title: "T", Source: model.SourceTelegram, FileID: "f"})

		require.NoError(t, f.svc.Delete(ctx, "tg"))
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newLocalFixture(t, false, LocalOptions{})

		assert.ErrorIs(t, f.svc.Delete(ctx, "nope"), ErrNotFound)
	})
}
