// Package memory is an in-process record set store, used by tests and ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"docviewer/internal/model"
	"docviewer/internal/repository"
)

// Store keeps the record set in memory. Load and Save copy, so snapshots never alias.
type Store struct {
	mu    sync.RWMutex
	set   model.RecordSet
	saves int
}

var _ repository.RecordSetStore = (*Store)(nil)

// New returns a store seeded with docs.
func New(docs ...model.Document) *Store {
	return &Store{set: model.RecordSet{Items: docs}.Clone()}
}

// Load returns a deep copy of the current set.
func (s *Store) Load(ctx context.Context) (model.RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return model.RecordSet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Clone(), nil
}

// Save replaces the current set with a deep copy of rs.
func (s *Store) Save(ctx context.Context, rs model.RecordSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = rs.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
