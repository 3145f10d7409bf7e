package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docviewer/internal/model"
	"docviewer/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// Each operation is a single statement, so mutations to different records never overwrite each other.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const selectColumns = `id, title, name, category, source, date, size, local_path, file_id, object_key, cached_at`

// Add inserts doc, or replaces every column of the row with the same id.
func (r *DocumentPostgres) Add(ctx context.Context, doc model.Document) error {
	const q = `
		INSERT INTO documents (id, title, name, category, source, date, size, local_path, file_id, object_key, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			source = EXCLUDED.source,
			date = EXCLUDED.date,
			size = EXCLUDED.size,
			local_path = EXCLUDED.local_path,
			file_id = EXCLUDED.file_id,
			object_key = EXCLUDED.object_key,
			cached_at = EXCLUDED.cached_at
	`
	_, err := r.db.ExecContext(ctx, q,
		doc.ID,
		doc.Title,
		doc.Name,
		doc.Category,
		string(doc.Source),
		doc.Date,
		nullInt(doc.Size),
		nullString(doc.LocalPath),
		nullString(doc.FileID),
		nullString(doc.Key),
		nullInt(doc.CachedAt),
	)
	return err
}

// Find fetches a single document by its ID.
func (r *DocumentPostgres) Find(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns all documents oldest first.
func (r *DocumentPostgres) List(ctx context.Context) ([]model.Document, error) {
	q := `SELECT ` + selectColumns + ` FROM documents ORDER BY date ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update patches the non-nil fields. An unknown id affects no rows and is not an error.
func (r *DocumentPostgres) Update(ctx context.Context, id string, patch model.DocumentPatch) error {
	const q = `
		UPDATE documents SET
			local_path = COALESCE($2, local_path),
			cached_at = COALESCE($3, cached_at),
			size = COALESCE($4, size)
		WHERE id = $1
	`
	var localPath sql.NullString
	if patch.LocalPath != nil {
		localPath = sql.NullString{String: *patch.LocalPath, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q, id, localPath, nullInt(patch.CachedAt), nullInt(patch.Size))
	return err
}

// Remove deletes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Remove(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d         model.Document
		source    string
		size      sql.NullInt64
		localPath sql.NullString
		fileID    sql.NullString
		key       sql.NullString
		cachedAt  sql.NullInt64
	)
	if err := row.Scan(
		&d.ID,
		&d.Title,
		&d.Name,
		&d.Category,
		&source,
		&d.Date,
		&size,
		&localPath,
		&fileID,
		&key,
		&cachedAt,
	); err != nil {
		return nil, err
	}
	d.Source = model.Source(source)
	if size.Valid {
		d.Size = model.Int64(size.Int64)
	}
	if cachedAt.Valid {
		d.CachedAt = model.Int64(cachedAt.Int64)
	}
	d.LocalPath = localPath.String
	d.FileID = fileID.String
	d.Key = key.String
	return &d, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
