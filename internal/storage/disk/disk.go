// Package disk stores document bytes as files under one directory.
// Writes go to a temp file that is renamed into place, so a failed or
// interrupted write never leaves a truncated document behind.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested file does not exist. It matches fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("file not found: %w", fs.ErrNotExist)

// Store writes and reads files below a base directory.
type Store struct {
	dir string
}

// New creates the base directory if missing.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute base directory.
func (s *Store) Dir() string { return s.dir }

// Save writes r to name under the base directory and returns the full path and the byte count.
// Writing stops at limit+1 bytes when limit is positive, so callers can detect oversized input
// without buffering it.
func (s *Store) Save(ctx context.Context, name string, r io.Reader, limit int64) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}
	target := filepath.Join(s.dir, clean)

	tmp, err := os.CreateTemp(s.dir, ".t"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		return "", 0, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", 0, fmt.Errorf("rename file: %w", err)
	}
	success = true
	return target, n, nil
}

// Open opens the file at path for reading and reports its size.
func (s *Store) Open(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}
	return f, st.Size(), nil
}

// Remove deletes the file at path. Returns ErrNotFound if it is already gone.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Check verifies the base directory is still writable.
func (s *Store) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("storage dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
