package kv

import (
	"fmt"

	"github.com/gomodule/redigo/redis"
	"github.com/koustreak/unidb/internal/value"
)

// Decode converts a native reply tree into a sequence of Values. A node
// always decodes to a sequence, even a scalar:
//
//	nil             -> []
//	bulk string     -> [Text]
//	status          -> [Status]
//	error reply     -> [ErrorMsg]
//	integer         -> [Integer]
//	array of n      -> [List(decode(child0)), ..., List(decode(childN-1))]
//
// So every leaf inside an array sits one List deeper than its position
// suggests, and callers unwrap it with Value.First. The projections in
// Client hide this from their callers.
//
// Replies come from redigo and are plain Go values; nothing is retained
// from the connection's read buffer.
func Decode(reply any) []value.Value {
	switch r := reply.(type) {
	case nil:
		return []value.Value{}
	case []byte:
		return []value.Value{value.Text(string(r))}
	case string:
		return []value.Value{value.Status(r)}
	case redis.Error:
		return []value.Value{value.Error(r.Error())}
	case int64:
		return []value.Value{value.Int(r)}
	case []any:
		out := make([]value.Value, len(r))
		for i, child := range r {
			out[i] = value.List(Decode(child)...)
		}
		return out
	default:
		// redigo produces no other types for RESP2 replies.
		return []value.Value{value.Text(fmt.Sprint(r))}
	}
}

// first returns the unwrapped first decoded element, or Nil.
func first(vals []value.Value) value.Value {
	if len(vals) == 0 {
		return value.Nil()
	}
	return vals[0]
}

// flatten unwraps one List level from each element, dropping elements that
// are not Lists.
func flatten(vals []value.Value) []value.Value {
	out := make([]value.Value, 0, len(vals))
	for _, v := range vals {
		if v.Kind() == value.KindList {
			out = append(out, v.First())
		}
	}
	return out
}

// pairs folds an alternating [List(f1), List(v1), List(f2), List(v2)] run
// into an ordered field map. A trailing unpaired field is ignored.
func pairs(vals []value.Value) *FieldMap {
	m := NewFieldMap()
	for i := 1; i < len(vals); i += 2 {
		m.Set(vals[i-1].First().AsString(), vals[i].First())
	}
	return m
}
