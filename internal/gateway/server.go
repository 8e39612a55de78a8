// Package gateway exposes the three unidb backends over a small read-only
// HTTP API built on chi.
//
//	GET /healthz                      backend connection state
//	GET /sql/{table}?offset=&limit=   rows of table, other params filter
//	GET /kv/keys?pattern=             keys matching pattern
//	GET /kv/{key}                     string value
//	GET /kv/hash/{key}                hash fields in reply order
//	GET /objects?prefix=              object keys under prefix
//	GET /objects/{key...}             object content; ?view=stat or ?view=url&ttl=
//
// Every backend call is subject to the backend's Busy rule, so concurrent
// requests against the same backend may be answered with 409.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/unidb/internal/config"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/filestore"
	"github.com/koustreak/unidb/internal/kv"
	"github.com/koustreak/unidb/internal/logger"
	"github.com/koustreak/unidb/internal/value"
)

// SQL is the part of database.Client the gateway uses.
type SQL interface {
	IsConnected() bool
	Dialect() database.Dialect
	RunRaw(ctx context.Context, query string) (database.ResultSet, error)
}

// KV is the part of kv.Client the gateway uses.
type KV interface {
	IsConnected() bool
	Keys(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) (value.Value, bool, error)
	HGetAll(ctx context.Context, key string) (*kv.FieldMap, error)
}

// Objects is the part of filestore.Client the gateway uses.
type Objects interface {
	IsConnected() bool
	Keys(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (value.Value, bool, error)
	Stat(ctx context.Context, key string) (*filestore.ObjectInfo, bool, error)
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Server routes requests to whichever backends it was given. Routes of a
// missing backend answer 503.
type Server struct {
	sql     SQL
	kv      KV
	objects Objects
	log     *logger.Logger
	router  chi.Router
}

// New builds the router. Any backend may be nil.
func New(sql SQL, kvc KV, objects Objects, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		sql:     sql,
		kv:      kvc,
		objects: objects,
		log:     log.Component(logger.TagHTTP),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/sql", func(r chi.Router) {
		r.Use(s.require(func() bool { return s.sql != nil }, "sql"))
		r.Get("/{table}", s.handleSelect)
	})

	r.Route("/kv", func(r chi.Router) {
		r.Use(s.require(func() bool { return s.kv != nil }, "kv"))
		r.Get("/keys", s.handleKVKeys)
		r.Get("/hash/{key}", s.handleKVHash)
		r.Get("/{key}", s.handleKVGet)
	})

	r.Route("/objects", func(r chi.Router) {
		r.Use(s.require(func() bool { return s.objects != nil }, "object"))
		r.Get("/", s.handleObjectKeys)
		r.Get("/*", s.handleObjectGet)
	})

	return r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down within
// cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context, cfg config.HTTPConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWith("listening", map[string]interface{}{"addr": cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) require(present func() bool, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !present() {
				writeError(w, http.StatusServiceUnavailable, name+" backend not configured")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
