// Package filestore is the object storage backend of unidb.
//
// A Store is the provider-neutral interface (see the minio subpackage). A
// Client scopes a Store to one bucket and exposes it with the same
// get/set/keys/remove shape and the same connection discipline as the
// key-value client: one call at a time, Busy on contention, silent no-ops
// once closed.
//
// Usage:
//
//	cfg := filestore.DefaultConfig()
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	client := filestore.NewClient(store, cfg.Bucket, log)
//	defer client.Close()
//
//	ok, err := client.Set(ctx, "notes/today", value.Text("hello"))
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is implemented by every object storage provider.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases held resources.
	Close() error

	ListBuckets(ctx context.Context) ([]BucketInfo, error)
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens the object at key. The caller must close it.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata without downloading content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PutObject uploads size bytes from r to key, replacing any existing
	// object. A negative size streams until EOF.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// RemoveObject deletes key. Removing a missing key is not an error.
	RemoveObject(ctx context.Context, bucket, key string) error

	// PresignGetURL returns a URL that downloads key without credentials
	// until ttl elapses.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
