// Package jsonfile persists the record set as a single pretty-printed JSON document.
// Each save rewrites the whole file through a temp file and rename, so readers
// never observe a partially written set.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"docviewer/internal/model"
	"docviewer/internal/repository"
)

// Store is a flat-file RecordSetStore.
type Store struct {
	path string
	log  *zap.Logger
}

var _ repository.RecordSetStore = (*Store)(nil)

// New returns a store backed by the file at path. The file need not exist yet.
func New(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.With(zap.String("component", "metadata_file"))}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Load reads and parses the file. A missing, empty or malformed file yields an empty
// set: an empty store is a valid initial state. Other read errors are returned.
func (s *Store) Load(ctx context.Context) (model.RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return model.RecordSet{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptySet(), nil
		}
		return model.RecordSet{}, fmt.Errorf("read metadata file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return emptySet(), nil
	}

	var rs model.RecordSet
	if err := json.Unmarshal(data, &rs); err != nil {
		s.log.Warn("metadata file is malformed, starting from an empty set",
			zap.String("path", s.path), zap.Error(err))
		return emptySet(), nil
	}
	if rs.Items == nil {
		rs.Items = []model.Document{}
	}
	return rs, nil
}

// Save serializes rs and atomically replaces the file.
func (s *Store) Save(ctx context.Context, rs model.RecordSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rs.Items == nil {
		rs.Items = []model.Document{}
	}

	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.log.Warn("failed to remove temp metadata file", zap.String("path", tmp.Name()), zap.Error(rmErr))
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace metadata file: %w", err)
	}
	success = true
	return nil
}

func emptySet() model.RecordSet {
	return model.RecordSet{Items: []model.Document{}}
}
