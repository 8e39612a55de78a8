package kv

import (
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/koustreak/unidb/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		reply any
		want  []value.Value
	}{
		{"nil", nil, []value.Value{}},
		{"bulk", []byte("hello"), []value.Value{value.Text("hello")}},
		{"status", "OK", []value.Value{value.Status("OK")}},
		{"error", redis.Error("ERR wrong type"), []value.Value{value.Error("ERR wrong type")}},
		{"integer", int64(42), []value.Value{value.Int(42)}},
		{"empty array", []any{}, []value.Value{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.reply)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.True(t, tt.want[i].Equal(got[i]), "got %s, want %s", got[i], tt.want[i])
			}
		})
	}
}

func TestDecode_StatusAndErrorKeepProvenance(t *testing.T) {
	status := Decode("OK")[0]
	bulk := Decode([]byte("OK"))[0]
	failed := Decode(redis.Error("OK"))[0]

	assert.Equal(t, value.KindStatus, status.Kind())
	assert.Equal(t, value.KindText, bulk.Kind())
	assert.Equal(t, value.KindError, failed.Kind())
	assert.False(t, failed.IsOK())
}

func TestDecode_ArrayWrapsEachChild(t *testing.T) {
	got := Decode([]any{[]byte("a"), int64(1), nil})

	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(value.List(value.Text("a"))))
	assert.True(t, got[1].Equal(value.List(value.Int(1))))
	assert.True(t, got[2].Equal(value.List()))
	assert.True(t, got[2].First().IsNil())
}

// nest wraps leaf in depth single-element arrays.
func nest(leaf any, depth int) any {
	r := leaf
	for i := 0; i < depth; i++ {
		r = []any{r}
	}
	return r
}

func TestDecode_NestedDepthRoundTrip(t *testing.T) {
	for depth := 1; depth <= 6; depth++ {
		vals := Decode(nest([]byte("leaf"), depth))
		require.Len(t, vals, 1)

		// One List per array level.
		v := vals[0]
		for i := 0; i < depth; i++ {
			require.Equal(t, value.KindList, v.Kind(), "depth %d level %d", depth, i)
			require.Equal(t, 1, v.Len())
			v = v.First()
		}
		assert.True(t, v.Equal(value.Text("leaf")), "depth %d", depth)
	}
}

func TestDecode_StreamShape(t *testing.T) {
	reply := []any{
		[]any{
			[]byte("events"),
			[]any{
				[]any{[]byte("1-0"), []any{[]byte("a"), []byte("1")}},
			},
		},
	}

	vals := Decode(reply)
	got := entries(vals[0].Index(1).Items())

	require.Len(t, got, 1)
	assert.Equal(t, "1-0", got[0].ID)
	v, ok := got[0].Fields.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v.AsString())
}

func TestPairs(t *testing.T) {
	vals := Decode([]any{[]byte("f1"), []byte("v1"), []byte("f2"), []byte("v2"), []byte("f1"), []byte("v3"), []byte("dangling")})

	m := pairs(vals)
	assert.Equal(t, []string{"f1", "f2"}, m.Keys())
	v, _ := m.Get("f1")
	assert.Equal(t, "v3", v.AsString())
	v, _ = m.Get("f2")
	assert.Equal(t, "v2", v.AsString())
}

func TestFlatten(t *testing.T) {
	vals := []value.Value{
		value.List(value.Text("a")),
		value.Text("skipped"),
		value.List(),
	}
	got := flatten(vals)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].AsString())
	assert.True(t, got[1].IsNil())
}
