// Package postgres implements database.Conn for PostgreSQL with a single
// pgx connection. Statements go out over the simple query protocol, so the
// literal SQL produced by database.Builder is sent verbatim and nothing is
// prepared or cached.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/value"
)

const defaultPort = 5432

// Session is the part of *pgx.Conn that Conn uses.
type Session interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a Session. The default dials with pgx.ConnectConfig.
type Dialer func(ctx context.Context, cfg *pgx.ConnConfig) (Session, error)

// Conn is a PostgreSQL implementation of database.Conn.
type Conn struct {
	dial Dialer

	mu   sync.Mutex
	sess Session
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the default pgx dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dial = d }
}

// New returns a closed Conn.
func New(opts ...Option) *Conn {
	c := &Conn{
		dial: func(ctx context.Context, cfg *pgx.ConnConfig) (Session, error) {
			conn, err := pgx.ConnectConfig(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the server, replacing any previous session.
func (c *Conn) Open(ctx context.Context, cfg database.Config) error {
	connCfg, err := ParseConfig(cfg)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres config", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(ctx)

	sess, err := c.dial(ctx, connCfg)
	if err != nil {
		return mapError(err, "failed to connect")
	}
	if err := sess.Ping(ctx); err != nil {
		_ = sess.Close(ctx)
		return mapError(err, "ping failed")
	}
	c.sess = sess
	return nil
}

// Close terminates the session. Closing twice is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(context.Background())
}

func (c *Conn) closeLocked(ctx context.Context) error {
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close(ctx)
	c.sess = nil
	return err
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

func (c *Conn) Dialect() database.Dialect { return database.DialectPostgres }

// Run executes query and reads every returned row. The affected count is
// the one reported by the command tag (rows returned for SELECT).
func (c *Conn) Run(ctx context.Context, query string) (int64, []value.Row, error) {
	sess := c.session()
	if sess == nil {
		return 0, nil, errs.New(errs.ErrKindNotConnected, "postgres connection is closed")
	}

	rows, err := sess.Query(ctx, query)
	if err != nil {
		return 0, nil, mapError(err, "query failed")
	}
	defer rows.Close()

	var out []value.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return 0, nil, mapError(err, "failed to decode row")
		}
		row := make(value.Row, len(vals))
		for i, v := range vals {
			row[i] = value.FromAny(v)
		}
		out = append(out, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, mapError(err, "error during row iteration")
	}
	return rows.CommandTag().RowsAffected(), out, nil
}

// Rollback aborts the session's open transaction, if any.
func (c *Conn) Rollback(ctx context.Context) error {
	sess := c.session()
	if sess == nil {
		return errs.New(errs.ErrKindNotConnected, "postgres connection is closed")
	}
	if _, err := sess.Exec(ctx, "ROLLBACK"); err != nil {
		return mapError(err, "rollback failed")
	}
	return nil
}

func (c *Conn) session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// ParseConfig turns cfg into a pgx connection config using the simple
// query protocol.
func ParseConfig(cfg database.Config) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, err
	}
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	return connCfg, nil
}

// BuildDSN constructs the keyword/value connection string.
func BuildDSN(cfg database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	dsn := fmt.Sprintf("host=%s port=%d sslmode=disable", quoteDSN(cfg.Host), port)
	if cfg.User != "" {
		dsn += " user=" + quoteDSN(cfg.User)
	}
	if cfg.Password != "" {
		dsn += " password=" + quoteDSN(cfg.Password)
	}
	if cfg.Schema != "" {
		dsn += " dbname=" + quoteDSN(cfg.Schema)
	}
	return dsn
}

// quoteDSN single-quotes a keyword/value setting, escaping ' and \.
func quoteDSN(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
