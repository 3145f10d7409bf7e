package model

// Source identifies where a document's bytes originate. It is set at creation and never changes.
type Source string

const (
	SourceUpload   Source = "upload"
	SourceTelegram Source = "telegram"
	SourceS3       Source = "s3"
)

// DefaultCategory is used when a document is created without a category.
const DefaultCategory = "Uncategorized"

// Document is the persisted metadata record for one viewable file.
// Exactly one location field is authoritative per Source: LocalPath for uploads,
// FileID for telegram and Key for s3. A telegram record may additionally carry
// LocalPath once it has been cached to disk.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category"`
	Source    Source `json:"source"`
	Date      int64  `json:"date"` // epoch milliseconds
	Size      *int64 `json:"size"`
	LocalPath string `json:"localPath,omitempty"`
	FileID    string `json:"file_id,omitempty"`
	Key       string `json:"key,omitempty"`
	CachedAt  *int64 `json:"cachedAt,omitempty"`
}

// RecordSet is the whole persisted metadata state.
type RecordSet struct {
	Items []Document `json:"items"`
}

// Clone returns a deep copy, so callers can mutate it without aliasing another snapshot.
func (rs RecordSet) Clone() RecordSet {
	items := make([]Document, len(rs.Items))
	for i, d := range rs.Items {
		items[i] = d.Clone()
	}
	return RecordSet{Items: items}
}

// Clone returns a copy of d that shares no pointers with it.
func (d Document) Clone() Document {
	if d.Size != nil {
		d.Size = Int64(*d.Size)
	}
	if d.CachedAt != nil {
		d.CachedAt = Int64(*d.CachedAt)
	}
	return d
}

// DocumentPatch is a shallow merge applied by update. Nil fields are left untouched.
// Only the fields that may change after creation are patchable.
type DocumentPatch struct {
	LocalPath *string
	CachedAt  *int64
	Size      *int64
}

// Apply merges p into d.
func (d *Document) Apply(p DocumentPatch) {
	if p.LocalPath != nil {
		d.LocalPath = *p.LocalPath
	}
	if p.CachedAt != nil {
		d.CachedAt = Int64(*p.CachedAt)
	}
	if p.Size != nil {
		d.Size = Int64(*p.Size)
	}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
