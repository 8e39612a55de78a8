// Package mysql implements database.Conn for MySQL on top of database/sql and
// go-sql-driver/mysql.
//
// The pool behind the *sql.DB is capped at one connection and that
// connection is pinned with (*sql.DB).Conn, so every statement of a Client
// runs on the same session. Rollback therefore affects exactly the
// transaction the caller opened through RunRaw.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"strings"
	"sync"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/value"
)

const defaultPort = 3306

// Opener opens a *sql.DB for a DSN. Tests swap it for sqlmock.
type Opener func(dsn string) (*sql.DB, error)

// Conn is a MySQL implementation of database.Conn.
type Conn struct {
	open Opener

	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
}

// Option configures a Conn.
type Option func(*Conn)

// WithOpener replaces the default sql.Open("mysql", dsn).
func WithOpener(o Opener) Option {
	return func(c *Conn) { c.open = o }
}

// New returns a closed Conn.
func New(opts ...Option) *Conn {
	c := &Conn{
		open: func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the server and pins one session.
func (c *Conn) Open(ctx context.Context, cfg database.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	db, err := c.open(BuildDSN(cfg))
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return mapError(err, "failed to open connection")
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return mapError(err, "ping failed")
	}

	c.db, c.conn = db, conn
	return nil
}

// Close releases the session and the pool.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.db == nil {
		return nil
	}
	_ = c.conn.Close()
	err := c.db.Close()
	c.db, c.conn = nil, nil
	return err
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Conn) Dialect() database.Dialect { return database.DialectMySQL }

// Run executes query. Statements that produce a result set are read fully
// and report their row count as affected; all others report RowsAffected.
func (c *Conn) Run(ctx context.Context, query string) (int64, []value.Row, error) {
	conn := c.session()
	if conn == nil {
		return 0, nil, errs.New(errs.ErrKindNotConnected, "mysql connection is closed")
	}

	if !returnsRows(query) {
		res, err := conn.ExecContext(ctx, query)
		if err != nil {
			return 0, nil, mapError(err, "exec failed")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, nil, mapError(err, "rows affected unavailable")
		}
		return n, nil, nil
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return 0, nil, mapError(err, "query failed")
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return 0, nil, err
	}
	return int64(len(out)), out, nil
}

// Rollback aborts the session's open transaction, if any.
func (c *Conn) Rollback(ctx context.Context) error {
	conn := c.session()
	if conn == nil {
		return errs.New(errs.ErrKindNotConnected, "mysql connection is closed")
	}
	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return mapError(err, "rollback failed")
	}
	return nil
}

func (c *Conn) session() *sql.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// scanRows reads every row column by column into value.Rows.
func scanRows(rows *sql.Rows) ([]value.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, mapError(err, "failed to read column names")
	}

	var out []value.Row
	for rows.Next() {
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}
		if err := rows.Scan(destPtrs...); err != nil {
			return nil, mapError(err, "failed to scan row")
		}

		row := make(value.Row, len(columns))
		for i := range dest {
			row[i] = value.FromAny(dest[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error during row iteration")
	}
	return out, nil
}

// returnsRows guesses from the leading keyword whether query yields a result set.
func returnsRows(query string) bool {
	fields := strings.Fields(skipLeadingComments(query))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES", "TABLE", "CALL":
		return true
	}
	return false
}

// skipLeadingComments drops opening parentheses, whitespace and any /* */,
// -- or # comments ahead of the first keyword. An unterminated comment
// leaves nothing.
func skipLeadingComments(query string) string {
	for {
		query = strings.TrimLeft(query, "( \t\r\n")
		switch {
		case strings.HasPrefix(query, "/*"):
			end := strings.Index(query[2:], "*/")
			if end < 0 {
				return ""
			}
			query = query[2+end+2:]
		case strings.HasPrefix(query, "--"), strings.HasPrefix(query, "#"):
			end := strings.IndexByte(query, '\n')
			if end < 0 {
				return ""
			}
			query = query[end+1:]
		default:
			return query
		}
	}
}

// BuildDSN renders cfg as a go-sql-driver DSN.
func BuildDSN(cfg database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	mc := gomysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Schema
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	return mc.FormatDSN()
}
