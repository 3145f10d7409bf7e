package repository

import (
	"context"
	"sync"

	"docviewer/internal/model"
)

// snapshotRepository derives the record operations from whole-set Load/Save.
// Every mutation is a full load-modify-save cycle; nothing is cached between calls.
// The mutex only serializes cycles inside this process.
type snapshotRepository struct {
	mu    sync.Mutex
	store RecordSetStore
}

// NewSnapshotRepository wraps store with the DocumentRepository operations.
func NewSnapshotRepository(store RecordSetStore) DocumentRepository {
	return &snapshotRepository{store: store}
}

func (r *snapshotRepository) List(ctx context.Context) ([]model.Document, error) {
	rs, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rs.Items == nil {
		return []model.Document{}, nil
	}
	return rs.Items, nil
}

func (r *snapshotRepository) Find(ctx context.Context, id string) (*model.Document, error) {
	rs, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(rs.Items, id); i >= 0 {
		d := rs.Items[i]
		return &d, nil
	}
	return nil, ErrNotFound
}

func (r *snapshotRepository) Add(ctx context.Context, doc model.Document) error {
	return r.mutate(ctx, func(rs *model.RecordSet) bool {
		if i := indexOf(rs.Items, doc.ID); i >= 0 {
			rs.Items[i] = doc
			return true
		}
		rs.Items = append(rs.Items, doc)
		return true
	})
}

func (r *snapshotRepository) Update(ctx context.Context, id string, patch model.DocumentPatch) error {
	return r.mutate(ctx, func(rs *model.RecordSet) bool {
		i := indexOf(rs.Items, id)
		if i < 0 {
			return false
		}
		rs.Items[i].Apply(patch)
		return true
	})
}

func (r *snapshotRepository) Remove(ctx context.Context, id string) error {
	return r.mutate(ctx, func(rs *model.RecordSet) bool {
		i := indexOf(rs.Items, id)
		if i < 0 {
			return false
		}
		rs.Items = append(rs.Items[:i], rs.Items[i+1:]...)
		return true
	})
}

// mutate runs fn against a freshly loaded set and saves it when fn reports a change.
func (r *snapshotRepository) mutate(ctx context.Context, fn func(rs *model.RecordSet) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	if !fn(&rs) {
		return nil
	}
	return r.store.Save(ctx, rs)
}

func indexOf(items []model.Document, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
