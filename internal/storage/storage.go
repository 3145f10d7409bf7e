// Package storage contains the object store abstraction used by the presigned-URL variant.
// Clients move bytes directly to and from the store via presigned URLs, so the
// contract carries no data-path methods.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Stat when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is an S3-compatible object store client.
type Storage interface {
	// PresignPut returns a time-limited URL that accepts a PUT of the object body.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Stat fetches object metadata without the body.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping verifies the bucket is reachable.
	Ping(ctx context.Context) error
}
