package filestore

import (
	"io"
	"time"
)

// BucketInfo describes a bucket.
type BucketInfo struct {
	Name string `json:"name"`

	// CreatedAt is zero when the backend does not report it.
	CreatedAt time.Time `json:"created_at"`
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the full path inside the bucket, e.g. "reports/2024/q1.csv".
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`

	// IsDir marks a common prefix returned by a non-recursive listing.
	IsDir bool `json:"is_dir,omitempty"`
}

// Object is a streaming handle to an object's content. Callers must Close it.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions filters ListObjects.
type ListOptions struct {
	Prefix string

	// Recursive lists every object under Prefix. Otherwise common prefixes
	// are returned once each, as IsDir entries.
	Recursive bool

	// Limit caps the number of entries; 0 means no cap.
	Limit int
}

// PutOptions carries object metadata for PutObject.
type PutOptions struct {
	// ContentType defaults to application/octet-stream.
	ContentType string
}
