// Package kv is the key-value half of unidb: a client for a RESP server
// (Redis and compatibles) that speaks in space-delimited command text.
//
// Every high-level operation builds its command text, runs it through
// RunCommand under the connection guard, decodes the reply with Decode and
// projects the decoded values into a plain Go result.
//
// Usage:
//
//	client := kv.New(kv.DefaultConfig(), kv.WithLogger(log))
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Disconnect()
//
//	ok, err := client.Set(ctx, "greeting", value.Text("hello"), 60)
//	v, found, err := client.Get(ctx, "greeting")
package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gomodule/redigo/redis"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/guard"
	"github.com/koustreak/unidb/internal/logger"
	"github.com/koustreak/unidb/internal/value"
)

// Conn is one RESP connection. redigo's connections satisfy it.
type Conn interface {
	DoContext(ctx context.Context, cmd string, args ...any) (any, error)
	Err() error
	Close() error
}

// Dialer opens a Conn for cfg.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the default redigo dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger sets the diagnostics sink.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l.Component(logger.TagKV) }
}

// Client owns a single connection. Commands never interleave on it: a call
// made while another is in flight fails at once with an errs.ErrKindBusy
// error. Against a disconnected client every operation is a silent no-op
// returning zero values and a nil error.
type Client struct {
	dial  Dialer
	guard guard.Guard
	log   *logger.Logger

	mu   sync.Mutex
	cfg  Config
	conn Conn
}

// New returns a disconnected Client.
func New(cfg *Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Client{
		dial: dialRedigo,
		log:  logger.Nop(),
		cfg:  *cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func dialRedigo(ctx context.Context, cfg Config) (Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	rc, err := redis.DialContext(ctx, "tcp", addr,
		redis.DialConnectTimeout(cfg.ConnectTimeout),
		redis.DialReadTimeout(cfg.ReadTimeout),
		redis.DialWriteTimeout(cfg.WriteTimeout),
	)
	if err != nil {
		return nil, err
	}
	cc, ok := rc.(redis.ConnWithContext)
	if !ok {
		_ = rc.Close()
		return nil, errors.New("redigo connection does not support contexts")
	}
	return cc, nil
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

// IsConnected reports whether a connection is held.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the server, authenticates when a password is configured and
// selects the configured database. Calling it on a connected client
// reconnects. Any failure leaves the client disconnected; a rejected
// credential is reported as errs.ErrKindAuthFailed.
func (c *Client) Connect(ctx context.Context) error {
	lease, err := c.guard.Acquire()
	if err != nil {
		return err
	}
	defer lease.Release()

	c.Disconnect()

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	conn, err := c.dial(ctx, cfg)
	if err != nil {
		c.log.ErrorWith("connect failed", err, map[string]interface{}{"host": cfg.Host, "port": cfg.Port})
		return errs.Wrap(errs.ErrKindConnectionFailed, "connect failed", err)
	}

	if cfg.Password != "" {
		vals, err := do(ctx, conn, cmdAuth(cfg.User, cfg.Password))
		if err != nil {
			_ = conn.Close()
			return err
		}
		if reply := first(vals); !reply.IsOK() {
			_ = conn.Close()
			c.log.Log("authentication rejected", logger.LevelError, logger.TagKV, false)
			return errs.New(errs.ErrKindAuthFailed, "authentication failed: "+reply.AsString())
		}
	}

	if cfg.DB > 0 {
		vals, err := do(ctx, conn, fmt.Sprintf("select %d", cfg.DB))
		if err != nil {
			_ = conn.Close()
			return err
		}
		if reply := first(vals); !reply.IsOK() {
			_ = conn.Close()
			return errs.New(errs.ErrKindConnectionFailed, "select db failed: "+reply.AsString())
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.InfoWith("connected", map[string]interface{}{"host": cfg.Host, "port": cfg.Port, "db": cfg.DB})
	return nil
}

// Disconnect closes the connection. It is idempotent and never waits for
// the connection lock.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		c.log.Log("disconnect: "+err.Error(), logger.LevelWarn, logger.TagKV, false)
	}
}

// RunCommand sends text and returns the decoded reply. Error replies come
// back as ErrorMsg values with a nil error; the error is reserved for
// Busy, malformed input and transport failures. A transport failure drops
// the connection.
func (c *Client) RunCommand(ctx context.Context, text string) ([]value.Value, error) {
	lease, err := c.guard.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return []value.Value{}, nil
	}

	vals, err := do(ctx, conn, text)
	if err != nil {
		c.log.ErrorWith("command failed", err, map[string]interface{}{"command": commandName(text)})
		if conn.Err() != nil {
			c.Disconnect()
		}
		return []value.Value{}, err
	}
	return vals, nil
}

// do splits text into arguments and decodes the reply. Consecutive spaces
// produce no empty arguments.
func do(ctx context.Context, conn Conn, text string) ([]value.Value, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "empty command")
	}
	args := make([]any, len(fields)-1)
	for i, f := range fields[1:] {
		args[i] = f
	}

	reply, err := conn.DoContext(ctx, fields[0], args...)
	if err != nil {
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return Decode(replyErr), nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, errs.Wrap(errs.ErrKindTimeout, "command timed out", err)
		}
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "command failed", err)
	}
	return Decode(reply), nil
}

func commandName(text string) string {
	if f := strings.Fields(text); len(f) > 0 {
		return strings.ToLower(f[0])
	}
	return ""
}

// query runs text and turns a top-level error reply into an
// errs.ErrKindQueryFailed error.
func (c *Client) query(ctx context.Context, text string) ([]value.Value, error) {
	vals, err := c.RunCommand(ctx, text)
	if err != nil {
		return vals, err
	}
	if v := first(vals); v.IsError() {
		return vals, errs.New(errs.ErrKindQueryFailed, commandName(text)+": "+v.AsString())
	}
	return vals, nil
}

func (c *Client) queryFirst(ctx context.Context, text string) (value.Value, error) {
	vals, err := c.query(ctx, text)
	if err != nil {
		return value.Nil(), err
	}
	return first(vals), nil
}

func (c *Client) queryOK(ctx context.Context, text string) (bool, error) {
	v, err := c.queryFirst(ctx, text)
	return v.IsOK(), err
}

func (c *Client) queryInt(ctx context.Context, text string) (int64, error) {
	v, err := c.queryFirst(ctx, text)
	return v.AsInt(), err
}

func (c *Client) queryBool(ctx context.Context, text string) (bool, error) {
	v, err := c.queryFirst(ctx, text)
	return v.AsBool(), err
}

// queryOptional returns the first value and whether the reply was non-nil.
func (c *Client) queryOptional(ctx context.Context, text string) (value.Value, bool, error) {
	vals, err := c.query(ctx, text)
	if err != nil || len(vals) == 0 {
		return value.Nil(), false, err
	}
	return vals[0], true, nil
}

func (c *Client) queryList(ctx context.Context, text string) ([]value.Value, error) {
	vals, err := c.query(ctx, text)
	if err != nil {
		return nil, err
	}
	return flatten(vals), nil
}
