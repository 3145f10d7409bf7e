package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docviewer/internal/model"
	"docviewer/internal/repository"
)

var columns = []string{"id", "title", "name", "category", "source", "date", "size", "local_path", "file_id", "object_key", "cached_at"}

func newRepo(t *testing.T) (*DocumentPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentPostgres(db), mock
}

func TestDocumentPostgres_Add(t *testing.T) {
	repo, mock := newRepo(t)

	doc := model.Document{
		ID:       "doc-1",
		Title:    "Doc",
		Category: model.DefaultCategory,
		Source:   model.SourceS3,
		Date:     1700000000000,
		Key:      "uploads/a-b.pdf",
	}

	mock.ExpectExec("INSERT INTO documents (.+) ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(doc.ID, doc.Title, "", doc.Category, "s3", doc.Date,
			sql.NullInt64{}, sql.NullString{}, sql.NullString{},
			sql.NullString{String: "uploads/a-b.pdf", Valid: true}, sql.NullInt64{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Add(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Find(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).
			AddRow("doc-1", "Doc", "doc.pdf", "Reports", "telegram", int64(5), nil, "/srv/doc.pdf", "tg-file", nil, int64(9))

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("doc-1").
			WillReturnRows(rows)

		doc, err := repo.Find(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, model.SourceTelegram, doc.Source)
		assert.Nil(t, doc.Size)
		assert.Equal(t, "/srv/doc.pdf", doc.LocalPath)
		assert.Equal(t, "tg-file", doc.FileID)
		assert.Empty(t, doc.Key)
		require.NotNil(t, doc.CachedAt)
		assert.Equal(t, int64(9), *doc.CachedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.Find(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	repo, mock := newRepo(t)

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).
			AddRow("a", "A", "", "X", "upload", int64(1), int64(10), "/srv/a.pdf", nil, nil, nil).
			AddRow("b", "B", "", "X", "s3", int64(2), nil, nil, nil, "uploads/b.pdf", nil)

		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY date ASC, id ASC").
			WillReturnRows(rows)

		items, err := repo.List(context.Background())

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(10), *items[0].Size)
		assert.Equal(t, "uploads/b.pdf", items[1].Key)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
			WillReturnError(errors.New("db down"))

		items, err := repo.List(context.Background())

		assert.EqualError(t, err, "db down")
		assert.Nil(t, items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Update(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("UPDATE documents SET (.+) WHERE id = \\$1").
		WithArgs("doc-1", sql.NullString{String: "/srv/x.pdf", Valid: true}, sql.NullInt64{Int64: 7, Valid: true}, sql.NullInt64{}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "doc-1", model.DocumentPatch{
		LocalPath: model.String("/srv/x.pdf"),
		CachedAt:  model.Int64(7),
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Remove(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("DELETE FROM documents WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Remove(context.Background(), "test-id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
