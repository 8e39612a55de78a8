package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/unidb/internal/value"
)

// ---------------------------------------------------------------------------
// Server and keyspace
// ---------------------------------------------------------------------------

// Ping reports whether the server answered PONG.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	v, err := c.queryFirst(ctx, "ping")
	return v.AsString() == "PONG", err
}

// Select switches the connection to database db. The index is remembered
// and reselected by the next Connect.
func (c *Client) Select(ctx context.Context, db int) (bool, error) {
	ok, err := c.queryOK(ctx, fmt.Sprintf("select %d", db))
	if ok {
		c.mu.Lock()
		c.cfg.DB = db
		c.mu.Unlock()
	}
	return ok, err
}

// DBSize returns the number of keys in the selected database.
func (c *Client) DBSize(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, "dbsize")
}

// FlushDB removes every key of the selected database.
func (c *Client) FlushDB(ctx context.Context) (bool, error) {
	return c.queryOK(ctx, "flushdb")
}

// FlushAll removes every key of every database.
func (c *Client) FlushAll(ctx context.Context) (bool, error) {
	return c.queryOK(ctx, "flushall")
}

// Keys returns the keys matching pattern. An empty pattern matches all.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	vals, err := c.queryList(ctx, "keys "+pattern)
	return strs(vals), err
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.queryBool(ctx, "exists "+key)
}

// Del removes keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return c.queryInt(ctx, "del "+strings.Join(keys, " "))
}

// Move transfers key to database db.
func (c *Client) Move(ctx context.Context, key string, db int) (bool, error) {
	return c.queryBool(ctx, fmt.Sprintf("move %s %d", key, db))
}

// Type reports the kind of value stored at key. Unknown names map to
// TypeNone.
func (c *Client) Type(ctx context.Context, key string) (DataType, error) {
	v, err := c.queryFirst(ctx, "type "+key)
	if err != nil {
		return TypeNone, err
	}
	return dataTypes[v.AsString()], nil
}

// Expire sets a timeout of seconds on key.
func (c *Client) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	return c.queryBool(ctx, fmt.Sprintf("expire %s %d", key, seconds))
}

// PExpire sets a timeout of milliseconds on key.
func (c *Client) PExpire(ctx context.Context, key string, millis int64) (bool, error) {
	return c.queryBool(ctx, fmt.Sprintf("pexpire %s %d", key, millis))
}

// TTL returns the remaining time to live of key in seconds, -1 without a
// timeout and -2 when key is absent.
func (c *Client) TTL(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "ttl "+key)
}

// PTTL is TTL in milliseconds.
func (c *Client) PTTL(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "pttl "+key)
}

// Persist removes the timeout of key.
func (c *Client) Persist(ctx context.Context, key string) (bool, error) {
	return c.queryBool(ctx, "persist "+key)
}

// Scan runs one SCAN iteration from cursor and returns the next cursor and
// the keys of this batch. match is omitted when empty and count when not
// positive. A zero next cursor ends the iteration.
func (c *Client) Scan(ctx context.Context, match string, count, cursor int64) (int64, []string, error) {
	vals, err := c.query(ctx, cmdScan(match, count, cursor))
	if err != nil || len(vals) < 2 {
		return 0, nil, err
	}
	next := vals[0].First().AsInt()
	keys := make([]string, 0, vals[1].Len())
	for _, item := range vals[1].Items() {
		keys = append(keys, item.First().AsString())
	}
	return next, keys, nil
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// Get returns the value at key. found is false when key is absent.
func (c *Client) Get(ctx context.Context, key string) (value.Value, bool, error) {
	return c.queryOptional(ctx, "get "+key)
}

// Set stores v at key, expiring after expireSeconds when it is positive.
func (c *Client) Set(ctx context.Context, key string, v value.Value, expireSeconds int64) (bool, error) {
	return c.queryOK(ctx, cmdSet(key, v, expireSeconds))
}

// SetNX stores v only when key is absent.
func (c *Client) SetNX(ctx context.Context, key string, v value.Value) (bool, error) {
	return c.queryBool(ctx, fmt.Sprintf("setnx %s %s", key, v.AsString()))
}

// GetSet stores v and returns the previous value, if any.
func (c *Client) GetSet(ctx context.Context, key string, v value.Value) (value.Value, bool, error) {
	return c.queryOptional(ctx, fmt.Sprintf("getset %s %s", key, v.AsString()))
}

// Append appends v to the string at key and returns the new length.
func (c *Client) Append(ctx context.Context, key string, v value.Value) (int64, error) {
	return c.queryInt(ctx, fmt.Sprintf("append %s %s", key, v.AsString()))
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "incr "+key)
}

func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "decr "+key)
}

func (c *Client) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.queryInt(ctx, fmt.Sprintf("incrby %s %d", key, n))
}

func (c *Client) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.queryInt(ctx, fmt.Sprintf("decrby %s %d", key, n))
}

// IncrByFloat adds f to the number at key and returns the result.
func (c *Client) IncrByFloat(ctx context.Context, key string, f float64) (float64, error) {
	v, err := c.queryFirst(ctx, fmt.Sprintf("incrbyfloat %s %s", key, formatFloat(f)))
	return v.AsFloat(), err
}

func (c *Client) StrLen(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "strlen "+key)
}

// GetRange returns the substring of the value at key between start and end,
// both inclusive.
func (c *Client) GetRange(ctx context.Context, key string, start, end int64) (string, error) {
	v, err := c.queryFirst(ctx, fmt.Sprintf("getrange %s %d %d", key, start, end))
	return v.AsString(), err
}

// SetRange overwrites part of the value at key from offset and returns the
// new length.
func (c *Client) SetRange(ctx context.Context, key string, offset int64, s string) (int64, error) {
	return c.queryInt(ctx, fmt.Sprintf("setrange %s %d %s", key, offset, s))
}

// ---------------------------------------------------------------------------
// Hashes
// ---------------------------------------------------------------------------

// HSet stores v under field of the hash at key. It reports whether field
// was newly created.
func (c *Client) HSet(ctx context.Context, key, field string, v value.Value) (bool, error) {
	return c.queryBool(ctx, fmt.Sprintf("hset %s %s %s", key, field, v.AsString()))
}

// HMSet stores every field of fields in the hash at key.
func (c *Client) HMSet(ctx context.Context, key string, fields *FieldMap) (bool, error) {
	if fields == nil || fields.Len() == 0 {
		return false, nil
	}
	return c.queryOK(ctx, cmdWithPairs("hmset "+key, fields))
}

// HGet returns field of the hash at key.
func (c *Client) HGet(ctx context.Context, key, field string) (value.Value, bool, error) {
	return c.queryOptional(ctx, fmt.Sprintf("hget %s %s", key, field))
}

// HMGet returns the values of fields in request order; missing fields are
// Nil.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) ([]value.Value, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return c.queryList(ctx, fmt.Sprintf("hmget %s %s", key, strings.Join(fields, " ")))
}

// HGetAll returns the whole hash at key in reply order.
func (c *Client) HGetAll(ctx context.Context, key string) (*FieldMap, error) {
	vals, err := c.query(ctx, "hgetall "+key)
	if err != nil {
		return NewFieldMap(), err
	}
	return pairs(vals), nil
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

// LPush prepends vals to the list at key and returns its new length.
func (c *Client) LPush(ctx context.Context, key string, vals ...value.Value) (int64, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	return c.queryInt(ctx, cmdWithValues("lpush "+key, vals))
}

// RPush appends vals to the list at key and returns its new length.
func (c *Client) RPush(ctx context.Context, key string, vals ...value.Value) (int64, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	return c.queryInt(ctx, cmdWithValues("rpush "+key, vals))
}

func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return c.queryInt(ctx, "llen "+key)
}

// LIndex returns the element at index of the list at key.
func (c *Client) LIndex(ctx context.Context, key string, index int64) (value.Value, bool, error) {
	return c.queryOptional(ctx, fmt.Sprintf("lindex %s %d", key, index))
}

// LSet overwrites the element at index of the list at key.
func (c *Client) LSet(ctx context.Context, key string, index int64, v value.Value) (bool, error) {
	return c.queryOK(ctx, fmt.Sprintf("lset %s %d %s", key, index, v.AsString()))
}

// LRange returns the elements between start and end, both inclusive.
func (c *Client) LRange(ctx context.Context, key string, start, end int64) ([]value.Value, error) {
	return c.queryList(ctx, fmt.Sprintf("lrange %s %d %d", key, start, end))
}

// LPop removes and returns up to count elements from the head of the list.
// A count below 1 pops a single element.
func (c *Client) LPop(ctx context.Context, key string, count int64) ([]value.Value, error) {
	return c.pop(ctx, "lpop", key, count)
}

// RPop is LPop from the tail.
func (c *Client) RPop(ctx context.Context, key string, count int64) ([]value.Value, error) {
	return c.pop(ctx, "rpop", key, count)
}

func (c *Client) pop(ctx context.Context, cmd, key string, count int64) ([]value.Value, error) {
	text := cmd + " " + key
	if count > 0 {
		text = fmt.Sprintf("%s %d", text, count)
	}
	vals, err := c.query(ctx, text)
	if err != nil {
		return nil, err
	}
	// Without a count the reply is a single bulk string, not an array.
	if len(vals) == 1 && vals[0].Kind() != value.KindList {
		return vals, nil
	}
	return flatten(vals), nil
}

// ---------------------------------------------------------------------------
// Streams
// ---------------------------------------------------------------------------

// XAdd appends an entry to stream and returns its ID. An empty id lets the
// server assign one.
func (c *Client) XAdd(ctx context.Context, stream string, fields *FieldMap, id string) (string, error) {
	if id == "" {
		id = "*"
	}
	v, err := c.queryFirst(ctx, cmdWithPairs(fmt.Sprintf("xadd %s %s", stream, id), fields))
	return v.AsString(), err
}

// XRead reads the entries of stream from the start. block (milliseconds)
// and count are sent only when positive.
func (c *Client) XRead(ctx context.Context, stream string, block, count int64) ([]StreamEntry, error) {
	vals, err := c.query(ctx, cmdXRead(stream, block, count))
	if err != nil || len(vals) == 0 || vals[0].Len() == 0 {
		return nil, err
	}
	// [List(List(name), List(List(entry)...))] for the single stream read.
	return entries(vals[0].Index(1).Items()), nil
}

// XRange returns the entries of key with IDs between start and end. Empty
// bounds default to the whole stream.
func (c *Client) XRange(ctx context.Context, key, start, end string) ([]StreamEntry, error) {
	if start == "" {
		start = "-"
	}
	if end == "" {
		end = "+"
	}
	vals, err := c.query(ctx, fmt.Sprintf("xrange %s %s %s", key, start, end))
	if err != nil {
		return nil, err
	}
	return entries(vals), nil
}

// XDel removes entries by ID and returns how many were deleted.
func (c *Client) XDel(ctx context.Context, key string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return c.queryInt(ctx, fmt.Sprintf("xdel %s %s", key, strings.Join(ids, " ")))
}

// entries projects decoded stream entries, each List(List(id), List(fields...)).
func entries(vals []value.Value) []StreamEntry {
	out := make([]StreamEntry, 0, len(vals))
	for _, v := range vals {
		if v.Len() < 2 {
			continue
		}
		out = append(out, StreamEntry{
			ID:     v.Index(0).First().AsString(),
			Fields: pairs(v.Index(1).Items()),
		})
	}
	return out
}

func strs(vals []value.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.AsString()
	}
	return out
}
