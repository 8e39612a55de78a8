package kv

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/koustreak/unidb/internal/value"
)

// Config holds the settings for the single connection a Client owns.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// DB is the numeric database index selected after connecting. 0 keeps
	// the server default.
	DB int `yaml:"db"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           6379,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// DataType is the kind of value stored under a key, as reported by TYPE.
type DataType int

const (
	TypeNone DataType = iota
	TypeString
	TypeList
	TypeSet
	TypeZSet
	TypeHash
	TypeStream
)

var dataTypes = map[string]DataType{
	"none":   TypeNone,
	"string": TypeString,
	"list":   TypeList,
	"set":    TypeSet,
	"zset":   TypeZSet,
	"hash":   TypeHash,
	"stream": TypeStream,
}

func (t DataType) String() string {
	for name, dt := range dataTypes {
		if dt == t {
			return name
		}
	}
	return "none"
}

// FieldMap is a field -> value mapping that remembers the order in which
// fields were first set.
type FieldMap struct {
	keys []string
	vals map[string]value.Value
}

// NewFieldMap returns an empty map.
func NewFieldMap() *FieldMap {
	return &FieldMap{vals: make(map[string]value.Value)}
}

// Set stores v under field. A repeated field keeps its original position.
func (m *FieldMap) Set(field string, v value.Value) *FieldMap {
	if _, ok := m.vals[field]; !ok {
		m.keys = append(m.keys, field)
	}
	m.vals[field] = v
	return m
}

// Get returns the value stored under field.
func (m *FieldMap) Get(field string) (value.Value, bool) {
	v, ok := m.vals[field]
	return v, ok
}

// Keys returns the fields in insertion order.
func (m *FieldMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *FieldMap) Len() int {
	return len(m.keys)
}

// MarshalJSON writes an object whose keys keep insertion order.
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StreamEntry is one stream message.
type StreamEntry struct {
	ID     string    `json:"id"`
	Fields *FieldMap `json:"fields"`
}
