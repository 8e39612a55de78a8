package filestore

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/guard"
	"github.com/koustreak/unidb/internal/logger"
	"github.com/koustreak/unidb/internal/value"
)

// MaxValueSize bounds how much of an object Get reads into a Value.
const MaxValueSize = 16 << 20

const textContentType = "text/plain; charset=utf-8"

// Client treats one bucket as a key-value store of text objects. At most
// one call runs at a time; a concurrent call fails with errs.ErrKindBusy.
// After Close every call is a silent no-op.
type Client struct {
	guard  guard.Guard
	log    *logger.Logger
	bucket string

	mu    sync.Mutex
	store Store
}

// NewClient scopes store to bucket. A nil log discards diagnostics.
func NewClient(store Store, bucket string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		store:  store,
		bucket: bucket,
		log:    log.Component(logger.TagObject),
	}
}

// Bucket returns the bucket the client is scoped to.
func (c *Client) Bucket() string { return c.bucket }

// IsConnected reports whether the client still holds its store.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store != nil
}

// Close releases the store. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}

// acquire takes the guard and returns the store, or a nil store when closed.
func (c *Client) acquire() (*guard.Lease, Store, error) {
	lease, err := c.guard.Acquire()
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	return lease, store, nil
}

// Ping checks the backend.
func (c *Client) Ping(ctx context.Context) error {
	lease, store, err := c.acquire()
	if err != nil {
		return err
	}
	defer lease.Release()

	if store == nil {
		return errs.New(errs.ErrKindNotConnected, "object store closed")
	}
	return store.Ping(ctx)
}

// Get reads the object at key as Text. found is false when the key does
// not exist.
func (c *Client) Get(ctx context.Context, key string) (value.Value, bool, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return value.Nil(), false, err
	}
	defer lease.Release()

	if store == nil {
		return value.Nil(), false, nil
	}

	obj, err := store.GetObject(ctx, c.bucket, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return value.Nil(), false, nil
		}
		c.log.ErrorWith("get failed", err, map[string]interface{}{"bucket": c.bucket, "key": key})
		return value.Nil(), false, err
	}
	defer obj.Close()

	body, err := io.ReadAll(io.LimitReader(obj, MaxValueSize+1))
	if err != nil {
		return value.Nil(), false, errs.Wrap(errs.ErrKindConnectionFailed, "read object", err)
	}
	if len(body) > MaxValueSize {
		return value.Nil(), false, errs.New(errs.ErrKindInvalidInput, "object too large: "+key)
	}
	return value.Text(string(body)), true, nil
}

// Set writes the text form of v to key.
func (c *Client) Set(ctx context.Context, key string, v value.Value) (bool, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return false, err
	}
	defer lease.Release()

	if store == nil {
		return false, nil
	}

	body := v.AsString()
	_, err = store.PutObject(ctx, c.bucket, key, strings.NewReader(body), int64(len(body)), PutOptions{ContentType: textContentType})
	if err != nil {
		c.log.ErrorWith("put failed", err, map[string]interface{}{"bucket": c.bucket, "key": key})
		return false, err
	}
	return true, nil
}

// Keys lists the object keys under prefix, recursively. An empty prefix
// lists the whole bucket.
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	if store == nil {
		return []string{}, nil
	}

	infos, err := store.ListObjects(ctx, c.bucket, ListOptions{Prefix: prefix, Recursive: true})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir {
			keys = append(keys, info.Key)
		}
	}
	return keys, nil
}

// Stat returns the metadata of key. found is false when it does not exist.
func (c *Client) Stat(ctx context.Context, key string) (*ObjectInfo, bool, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return nil, false, err
	}
	defer lease.Release()

	if store == nil {
		return nil, false, nil
	}

	info, err := store.StatObject(ctx, c.bucket, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info, true, nil
}

// Remove deletes keys and returns how many were removed before the first
// failure.
func (c *Client) Remove(ctx context.Context, keys ...string) (int64, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	if store == nil {
		return 0, nil
	}

	var n int64
	for _, key := range keys {
		if err := store.RemoveObject(ctx, c.bucket, key); err != nil {
			c.log.ErrorWith("remove failed", err, map[string]interface{}{"bucket": c.bucket, "key": key})
			return n, err
		}
		n++
	}
	return n, nil
}

// URL returns a presigned download URL for key valid for ttl.
func (c *Client) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	lease, store, err := c.acquire()
	if err != nil {
		return "", err
	}
	defer lease.Release()

	if store == nil {
		return "", nil
	}
	return store.PresignGetURL(ctx, c.bucket, key, ttl)
}
