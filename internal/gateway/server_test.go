package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/filestore"
	"github.com/koustreak/unidb/internal/kv"
	"github.com/koustreak/unidb/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQL struct {
	dialect database.Dialect
	queries []string
	rs      database.ResultSet
	err     error
}

func (f *fakeSQL) IsConnected() bool         { return true }
func (f *fakeSQL) Dialect() database.Dialect { return f.dialect }
func (f *fakeSQL) RunRaw(_ context.Context, q string) (database.ResultSet, error) {
	f.queries = append(f.queries, q)
	return f.rs, f.err
}

type fakeKV struct {
	values  map[string]value.Value
	hashes  map[string]*kv.FieldMap
	pattern string
	err     error
}

func (f *fakeKV) IsConnected() bool { return false }

func (f *fakeKV) Keys(_ context.Context, pattern string) ([]string, error) {
	f.pattern = pattern
	var keys []string
	for k := range f.values {
		keys = append(keys, k)
	}
	return keys, f.err
}

func (f *fakeKV) Get(_ context.Context, key string) (value.Value, bool, error) {
	if f.err != nil {
		return value.Nil(), false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) HGetAll(_ context.Context, key string) (*kv.FieldMap, error) {
	if m, ok := f.hashes[key]; ok {
		return m, nil
	}
	return kv.NewFieldMap(), f.err
}

type fakeObjects struct {
	objects map[string]string
}

func (f *fakeObjects) IsConnected() bool { return true }

func (f *fakeObjects) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeObjects) Get(_ context.Context, key string) (value.Value, bool, error) {
	body, ok := f.objects[key]
	if !ok {
		return value.Nil(), false, nil
	}
	return value.Text(body), true, nil
}

func (f *fakeObjects) Stat(_ context.Context, key string) (*filestore.ObjectInfo, bool, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, false, nil
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(body))}, true, nil
}

func (f *fakeObjects) URL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "http://objects.local/" + key + "?ttl=" + ttl.String(), nil
}

func do(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	s := New(&fakeSQL{}, &fakeKV{}, nil, nil)

	rec, body := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["sql"])
	assert.Equal(t, false, body["kv"])
	assert.NotContains(t, body, "object")
}

func TestSelect(t *testing.T) {
	sql := &fakeSQL{rs: database.ResultSet{
		Affected: 1,
		Rows:     []value.Row{{value.Int(1), value.Text("ada"), value.Nil()}},
	}}
	s := New(sql, nil, nil, nil)

	rec, body := do(t, s, "/sql/users?age=%3E30&city=Oslo&limit=5&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["affected"])
	assert.Equal(t, []any{[]any{float64(1), "ada", nil}}, body["rows"])

	require.Len(t, sql.queries, 1)
	assert.Equal(t, "SELECT * FROM `users` WHERE ((`age`>30 and `city`=\"Oslo\")) LIMIT 10,5", sql.queries[0])
}

func TestSelect_DefaultsAndPostgres(t *testing.T) {
	sql := &fakeSQL{dialect: database.DialectPostgres}
	s := New(sql, nil, nil, nil)

	rec, body := do(t, s, "/sql/events?kind=login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["rows"])
	assert.Equal(t, `SELECT * FROM "events" WHERE (("kind"=$q$login$q$)) LIMIT 1000 OFFSET 0`, sql.queries[0])
}

func TestSelect_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"table", "/sql/users%3Bdrop"},
		{"field", "/sql/users?a%20b=1"},
		{"offset", "/sql/users?offset=-1"},
		{"limit", "/sql/users?limit=999999"},
		{"quote", "/sql/users?name=%22x"},
		{"empty", "/sql/users?age=%3E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := &fakeSQL{}
			rec, body := do(t, New(sql, nil, nil, nil), tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, sql.queries)
		})
	}
}

func TestBackendErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.ErrBusy, http.StatusConflict},
		{errs.New(errs.ErrKindNotFound, "gone"), http.StatusNotFound},
		{errs.New(errs.ErrKindTimeout, "slow"), http.StatusGatewayTimeout},
		{errs.New(errs.ErrKindQueryFailed, "syntax"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := New(&fakeSQL{err: tt.err}, nil, nil, nil)
			rec, _ := do(t, s, "/sql/users")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestKV(t *testing.T) {
	store := &fakeKV{
		values: map[string]value.Value{"greeting": value.Text("hello")},
		hashes: map[string]*kv.FieldMap{
			"user:1": kv.NewFieldMap().Set("name", value.Text("ada")).Set("age", value.Text("36")),
		},
	}
	s := New(nil, store, nil, nil)

	rec, body := do(t, s, "/kv/greeting")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", body["value"])

	rec, _ = do(t, s, "/kv/absent")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, s, "/kv/keys?pattern=gree*")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"greeting"}, body["keys"])
	assert.Equal(t, "gree*", store.pattern)

	req := httptest.NewRequest(http.MethodGet, "/kv/hash/user:1", nil)
	raw := httptest.NewRecorder()
	s.ServeHTTP(raw, req)
	require.Equal(t, http.StatusOK, raw.Code)
	assert.Contains(t, raw.Body.String(), `"fields":{"name":"ada","age":"36"}`)

	rec, _ = do(t, s, "/kv/hash/none")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = errs.ErrBusy
	rec, _ = do(t, s, "/kv/greeting")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestObjects(t *testing.T) {
	s := New(nil, nil, &fakeObjects{objects: map[string]string{"notes/today": "hi"}}, nil)

	rec, body := do(t, s, "/objects?prefix=notes/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"notes/today"}, body["keys"])

	rec, body = do(t, s, "/objects/notes/today")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notes/today", body["key"])
	assert.Equal(t, "hi", body["value"])

	rec, body = do(t, s, "/objects/notes/today?view=stat")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["size"])

	rec, body = do(t, s, "/objects/notes/today?view=url&ttl=1h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://objects.local/notes/today?ttl=1h0m0s", body["url"])

	rec, _ = do(t, s, "/objects/notes/today?view=url&ttl=-1s")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, "/objects/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingBackend(t *testing.T) {
	s := New(nil, nil, nil, nil)

	for _, target := range []string{"/sql/users", "/kv/k", "/objects"} {
		rec, body := do(t, s, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Contains(t, body["error"], "not configured")
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		raw     string
		dialect database.Dialect
		want    string
		wantErr bool
	}{
		{raw: ">=18", want: ">=18"},
		{raw: "-2.5", want: "=-2.5"},
		{raw: "Oslo", want: `="Oslo"`},
		{raw: "!=closed", want: `!="closed"`},
		{raw: "<>x", want: `<>"x"`},
		{raw: "O'Brien", want: `="O'Brien"`},
		{raw: "Oslo", dialect: database.DialectPostgres, want: "=$q$Oslo$q$"},
		{raw: "O'Brien", dialect: database.DialectPostgres, wantErr: true},
		{raw: `a"b`, wantErr: true},
		{raw: `a\b`, wantErr: true},
		{raw: "=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseFilter(tt.dialect, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
