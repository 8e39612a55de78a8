// Package value defines the neutral result type shared by every backend.
//
// A Value is a closed tagged union: exactly one of Nil, Integer, Float, Bool,
// Text, Status, ErrorMsg or List. Text, Status and ErrorMsg all carry a string
// but keep their provenance (bulk string, simple status, error reply), so an
// "OK" status can be told apart from an error without re-parsing.
//
// Conversions never fail. Asking a non-numeric Text for an integer yields 0,
// asking a List for a string yields "".
package value

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the active variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindText
	KindStatus
	KindError
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is the universal result type. The zero Value is Nil.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	b     bool
	s     string
	items []Value
}

// Row is one result row; column order equals the backend's reply order.
type Row []Value

func Nil() Value              { return Value{} }
func Int(i int64) Value       { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Text(s string) Value     { return Value{kind: KindText, s: s} }
func Status(s string) Value   { return Value{kind: KindStatus, s: s} }
func Error(msg string) Value  { return Value{kind: KindError, s: msg} }
func List(vs ...Value) Value  { return Value{kind: KindList, items: vs} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNil() bool   { return v.kind == KindNil }
func (v Value) IsError() bool { return v.kind == KindError }

// FromAny converts a scanned driver value into a Value. Unknown types are
// rendered through their string form.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Nil()
	case Value:
		return t
	case []byte:
		return Text(string(t))
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint:
		return fromUint(uint64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case time.Time:
		return Text(t.Format("2006-01-02 15:04:05"))
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return List(items...)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return Nil()
		}
		if _, again := dv.(driver.Valuer); again {
			return Text(fmt.Sprint(dv))
		}
		return FromAny(dv)
	case fmt.Stringer:
		return Text(t.String())
	default:
		return Text(fmt.Sprint(t))
	}
}

// fromUint keeps unsigned values above MaxInt64 as decimal text so the sign
// never flips.
func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Text(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

// AsInt returns the integer form of v, or 0 when v has none.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindText, KindStatus, KindError:
		s := strings.TrimSpace(v.s)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	case KindNil, KindList:
		return 0
	}
	return 0
}

// AsFloat returns the floating point form of v, or 0 when v has none.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInteger:
		return float64(v.i)
	case KindFloat:
		return v.f
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindText, KindStatus, KindError:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0
		}
		return f
	case KindNil, KindList:
		return 0
	}
	return 0
}

// AsString returns the textual form of v. Booleans render as "1"/"0";
// Nil and List render as "".
func (v Value) AsString() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	case KindText, KindStatus, KindError:
		return v.s
	case KindNil, KindList:
		return ""
	}
	return ""
}

// AsBool reports the truth of v: non-zero numbers, and the texts "1", "true"
// and "OK" are true. Everything else is false.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInteger:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindText, KindStatus:
		return v.s == "1" || v.s == "OK" || strings.EqualFold(v.s, "true")
	case KindNil, KindList, KindError:
		return false
	}
	return false
}

// IsOK reports whether v is the textual acknowledgement "OK".
func (v Value) IsOK() bool {
	return (v.kind == KindStatus || v.kind == KindText) && v.s == "OK"
}

// Items returns the elements of a List, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.items
}

// Len is the number of items of a List, 0 otherwise.
func (v Value) Len() int {
	return len(v.Items())
}

// First unwraps one list level: it returns the first item of a List, or v
// itself for a scalar. An empty List yields Nil.
func (v Value) First() Value {
	if v.kind != KindList {
		return v
	}
	if len(v.items) == 0 {
		return Nil()
	}
	return v.items[0]
}

// Index returns item i of a List, or Nil when out of range.
func (v Value) Index(i int) Value {
	items := v.Items()
	if i < 0 || i >= len(items) {
		return Nil()
	}
	return items[i]
}

// Equal reports deep equality, including the variant tag.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindText, KindStatus, KindError:
		return v.s == o.s
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindList:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindNil:
		return "(nil)"
	case KindError:
		return "(error) " + v.s
	default:
		return v.AsString()
	}
}

// MarshalJSON renders scalars as their JSON counterparts and error replies
// as {"error": msg}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNil:
		return []byte("null"), nil
	case KindInteger:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindText, KindStatus:
		return json.Marshal(v.s)
	case KindError:
		return json.Marshal(map[string]string{"error": v.s})
	case KindList:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return []byte("null"), nil
}
