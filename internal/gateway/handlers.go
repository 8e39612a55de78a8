package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/kv"
	"github.com/koustreak/unidb/internal/value"
)

const (
	maxLimit        = 10000
	defaultURLTTL   = 15 * time.Minute
	maxURLTTL       = 7 * 24 * time.Hour
	contentTypeJSON = "application/json"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type healthResponse struct {
	SQL    *bool `json:"sql,omitempty"`
	KV     *bool `json:"kv,omitempty"`
	Object *bool `json:"object,omitempty"`
}

type selectResponse struct {
	Affected int64       `json:"affected"`
	Rows     []value.Row `json:"rows"`
}

type keysResponse struct {
	Keys []string `json:"keys"`
}

type valueResponse struct {
	Key   string      `json:"key"`
	Value value.Value `json:"value"`
}

type hashResponse struct {
	Key    string       `json:"key"`
	Fields *kv.FieldMap `json:"fields"`
}

type urlResponse struct {
	Key     string    `json:"key"`
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var resp healthResponse
	if s.sql != nil {
		ok := s.sql.IsConnected()
		resp.SQL = &ok
	}
	if s.kv != nil {
		ok := s.kv.IsConnected()
		resp.KV = &ok
	}
	if s.objects != nil {
		ok := s.objects.IsConnected()
		resp.Object = &ok
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSelect answers GET /sql/{table}. offset and limit page the result;
// every other query parameter is an AND-ed filter, see parseFilter.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !identPattern.MatchString(table) {
		writeError(w, http.StatusBadRequest, "invalid table name")
		return
	}

	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), database.DefaultOffset)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(q.Get("limit"), database.DefaultLimit)
	if err != nil || limit < 0 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	dialect := s.sql.Dialect()
	var clause database.Clause
	for field, vals := range q {
		if field == "offset" || field == "limit" {
			continue
		}
		if !identPattern.MatchString(field) {
			writeError(w, http.StatusBadRequest, "invalid filter field: "+field)
			return
		}
		expr, err := parseFilter(dialect, vals[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		clause = append(clause, database.Cond(field, expr))
	}
	sortFields(clause)

	var p database.Predicate
	if len(clause) > 0 {
		p = database.Predicate{clause}
	}

	query := database.Builder{Dialect: dialect, Table: table}.Select(p, offset, limit)
	rs, err := s.sql.RunRaw(r.Context(), query)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	rows := rs.Rows
	if rows == nil {
		rows = []value.Row{}
	}
	writeJSON(w, http.StatusOK, selectResponse{Affected: rs.Affected, Rows: rows})
}

func (s *Server) handleKVKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.kv.Keys(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{Keys: nonNil(keys)})
}

func (s *Server) handleKVGet(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	v, found, err := s.kv.Get(r.Context(), key)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "key not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: v})
}

func (s *Server) handleKVHash(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	fields, err := s.kv.HGetAll(r.Context(), key)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if fields == nil || fields.Len() == 0 {
		writeError(w, http.StatusNotFound, "hash not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, hashResponse{Key: key, Fields: fields})
}

func (s *Server) handleObjectKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.objects.Keys(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{Keys: nonNil(keys)})
}

// handleObjectGet answers GET /objects/{key...}. view=stat returns metadata
// and view=url a presigned download URL valid for ttl.
func (s *Server) handleObjectGet(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, "object key is required")
		return
	}
	q := r.URL.Query()

	switch q.Get("view") {
	case "":
		v, found, err := s.objects.Get(r.Context(), key)
		if err != nil {
			s.writeBackendError(w, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "object not found: "+key)
			return
		}
		writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: v})

	case "stat":
		info, found, err := s.objects.Stat(r.Context(), key)
		if err != nil {
			s.writeBackendError(w, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "object not found: "+key)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case "url":
		ttl := defaultURLTTL
		if raw := q.Get("ttl"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 || d > maxURLTTL {
				writeError(w, http.StatusBadRequest, "invalid ttl")
				return
			}
			ttl = d
		}
		u, err := s.objects.URL(r.Context(), key, ttl)
		if err != nil {
			s.writeBackendError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, urlResponse{Key: key, URL: u, Expires: time.Now().Add(ttl).UTC()})

	default:
		writeError(w, http.StatusBadRequest, "unknown view: "+q.Get("view"))
	}
}

// writeBackendError maps an errs kind to a status code.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errs.IsBusy(err):
		status = http.StatusConflict
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errs.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errs.IsNotConnected(err):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.ErrorWith("backend error", err, map[string]interface{}{"status": status})
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathParam returns the unescaped route parameter; chi matches on the raw
// path when the request has one.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
