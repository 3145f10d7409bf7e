// Package repository contains the metadata store abstraction.
// Backends live in subpackages (jsonfile, memory, postgres).
package repository

import (
	"context"
	"errors"

	"docviewer/internal/model"
)

// ErrNotFound is returned by Find when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// DocumentRepository is the metadata store contract used by the services.
type DocumentRepository interface {
	// List returns every record in stored order.
	List(ctx context.Context) ([]model.Document, error)

	// Find returns the record with the given id, or ErrNotFound.
	Find(ctx context.Context, id string) (*model.Document, error)

	// Add stores doc. A record with the same id is replaced in place.
	Add(ctx context.Context, doc model.Document) error

	// Update shallow-merges patch into the record with the given id.
	// A missing id is a no-op, not an error.
	Update(ctx context.Context, id string, patch model.DocumentPatch) error

	// Remove deletes the record with the given id. A missing id is a no-op.
	Remove(ctx context.Context, id string) error
}

// RecordSetStore persists the whole record set at once.
type RecordSetStore interface {
	// Load returns the persisted record set. Absent or unreadable state yields an empty set.
	Load(ctx context.Context) (model.RecordSet, error)
	// Save overwrites the persisted record set.
	Save(ctx context.Context, rs model.RecordSet) error
}
