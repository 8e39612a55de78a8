package database

import (
	"context"
	"sync"

	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/guard"
	"github.com/koustreak/unidb/internal/logger"
	"github.com/koustreak/unidb/internal/value"
)

// Client runs builder-generated SQL over one Conn. At most one statement is
// in flight at a time: a concurrent call fails at once with an
// errs.ErrKindBusy error instead of waiting.
//
// Against a disconnected client every operation is a silent no-op returning
// an empty ResultSet and a nil error. Backend failures also yield an empty
// ResultSet, together with an errs.ErrKindQueryFailed error.
type Client struct {
	conn  Conn
	guard guard.Guard
	log   *logger.Logger

	mu  sync.RWMutex
	cfg Config
}

// NewClient creates a disconnected Client over conn. A nil log discards
// diagnostics.
func NewClient(cfg *Config, conn Conn, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		conn: conn,
		log:  log.Component(logger.TagSQL),
		cfg:  *cfg,
	}
}

// SetHost changes the server address used by the next Connect.
func (c *Client) SetHost(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Host = host
	c.cfg.Port = port
}

// SetAuth changes the credentials used by the next Connect.
func (c *Client) SetAuth(user, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.User = user
	c.cfg.Password = password
}

// SetDefaultSchema changes the schema selected by the next Connect.
func (c *Client) SetDefaultSchema(schema string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Schema = schema
}

// SetTable selects the table the builder operations target.
func (c *Client) SetTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Table = table
}

// Table returns the currently selected table.
func (c *Client) Table() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Table
}

// Location renders the qualified target in the connection's dialect, e.g.
// `shop`.`users` or "shop"."users". Either part is omitted when unset.
func (c *Client) Location() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b := Builder{Dialect: c.conn.Dialect()}
	loc := ""
	if c.cfg.Schema != "" {
		loc = b.quoteIdent(c.cfg.Schema)
	}
	if c.cfg.Table != "" {
		loc += "." + b.quoteIdent(c.cfg.Table)
	}
	return loc
}

// Dialect reports the SQL flavour of the underlying connection.
func (c *Client) Dialect() Dialect {
	return c.conn.Dialect()
}

// Connect opens the connection. On failure the client stays disconnected.
func (c *Client) Connect(ctx context.Context) error {
	lease, err := c.guard.Acquire()
	if err != nil {
		return err
	}
	defer lease.Release()

	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := c.conn.Open(ctx, cfg); err != nil {
		_ = c.conn.Close()
		c.log.ErrorWith("connect failed", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return err
	}

	c.log.InfoWith("connected", map[string]interface{}{
		"host":    cfg.Host,
		"schema":  cfg.Schema,
		"dialect": c.conn.Dialect().String(),
	})
	return nil
}

// Disconnect closes the connection. It is idempotent and never blocks on
// the connection lock.
func (c *Client) Disconnect() {
	if err := c.conn.Close(); err != nil {
		c.log.Log("disconnect: "+err.Error(), logger.LevelWarn, logger.TagSQL, false)
	}
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.conn.IsOpen()
}

// Rollback aborts the current connection's pending transaction. It reports
// false when disconnected or when the backend refuses.
func (c *Client) Rollback(ctx context.Context) (bool, error) {
	lease, err := c.guard.Acquire()
	if err != nil {
		return false, err
	}
	defer lease.Release()

	if !c.conn.IsOpen() {
		return false, nil
	}
	if err := c.conn.Rollback(ctx); err != nil {
		c.log.Log("rollback failed: "+err.Error(), logger.LevelWarn, logger.TagSQL, false)
		return false, nil
	}
	return true, nil
}

// RunRaw executes query as-is. Every builder operation goes through here.
func (c *Client) RunRaw(ctx context.Context, query string) (ResultSet, error) {
	lease, err := c.guard.Acquire()
	if err != nil {
		return ResultSet{}, err
	}
	defer lease.Release()

	if !c.conn.IsOpen() {
		return ResultSet{}, nil
	}

	c.mu.RLock()
	timeout := c.cfg.QueryTimeout
	c.mu.RUnlock()
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	affected, rows, err := c.conn.Run(ctx, query)
	if err != nil {
		c.log.ErrorWith("statement failed", err, map[string]interface{}{"sql": query})
		if errs.KindOf(err) == errs.ErrKindUnknown {
			err = errs.Wrap(errs.ErrKindQueryFailed, "statement failed", err)
		}
		return ResultSet{}, err
	}

	c.log.DebugWith("statement done", map[string]interface{}{
		"sql":      query,
		"affected": affected,
		"rows":     len(rows),
	})
	return ResultSet{Affected: affected, Rows: rows}, nil
}

// Select returns the rows matching p within the [offset, offset+limit)
// window. Pass NoLimit to either bound to drop the LIMIT clause.
func (c *Client) Select(ctx context.Context, p Predicate, offset, limit int) (ResultSet, error) {
	return c.RunRaw(ctx, c.builder().Select(p, offset, limit))
}

// Insert writes rows, optionally naming the columns. An empty rows slice
// returns an empty ResultSet without touching the backend.
func (c *Client) Insert(ctx context.Context, rows []value.Row, columns []string) (ResultSet, error) {
	if len(rows) == 0 {
		return ResultSet{}, nil
	}
	return c.RunRaw(ctx, c.builder().Insert(rows, columns))
}

// Remove deletes the rows matching p. An empty p deletes every row.
func (c *Client) Remove(ctx context.Context, p Predicate) (ResultSet, error) {
	return c.RunRaw(ctx, c.builder().Delete(p))
}

// Modify updates the rows matching p with set. It refuses (empty result, no
// backend call) when p or set is empty.
func (c *Client) Modify(ctx context.Context, p Predicate, set []Field, offset, limit int) (ResultSet, error) {
	if len(p) == 0 || len(set) == 0 {
		return ResultSet{}, nil
	}
	return c.RunRaw(ctx, c.builder().Update(p, set, offset, limit))
}

func (c *Client) builder() Builder {
	return Builder{Dialect: c.conn.Dialect(), Table: c.Table()}
}
