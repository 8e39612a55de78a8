package minio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"not found status", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"unauthorized", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindAuthFailed},
		{"bad key id", miniogo.ErrorResponse{Code: "InvalidAccessKeyId"}, errs.ErrKindAuthFailed},
		{"forbidden", miniogo.ErrorResponse{StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad bucket", miniogo.ErrorResponse{Code: "InvalidBucketName"}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"other s3 error", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.ErrKindQueryFailed},
		{"transport", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "op")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, mapError(nil, "op"))
}

// fakeS3 answers the handful of requests the driver tests make.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Owner><ID>owner</ID><DisplayName>owner</DisplayName></Owner>
<Buckets>
<Bucket><Name>unidb</Name><CreationDate>2024-01-02T03:04:05.000Z</CreationDate></Bucket>
</Buckets>
</ListAllMyBucketsResult>`))
		case r.Method == http.MethodHead && r.URL.Path == "/unidb/notes/today":
			w.Header().Set("Content-Length", "5")
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("ETag", `"abc123"`)
			w.Header().Set("Last-Modified", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	srv := fakeS3(t)
	cfg := filestore.DefaultConfig()
	cfg.Endpoint = strings.TrimPrefix(srv.URL, "http://")

	d, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return d
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), &filestore.Config{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDriver_ListBuckets(t *testing.T) {
	d := newTestDriver(t)

	buckets, err := d.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "unidb", buckets[0].Name)
	assert.Equal(t, 2024, buckets[0].CreatedAt.Year())
}

func TestDriver_StatObject(t *testing.T) {
	d := newTestDriver(t)

	info, err := d.StatObject(context.Background(), "unidb", "notes/today")
	require.NoError(t, err)
	assert.Equal(t, "notes/today", info.Key)
	assert.EqualValues(t, 5, info.Size)
	assert.Equal(t, "abc123", info.ETag)
	assert.Equal(t, "text/plain", info.ContentType)

	_, err = d.StatObject(context.Background(), "unidb", "missing")
	assert.True(t, errs.IsNotFound(err))
}
