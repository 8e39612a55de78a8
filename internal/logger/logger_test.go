package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSON(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, Format: "json", Output: buf}), buf
}

func entry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var e map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e), buf.String())
	return e
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	for _, cfg := range []*Config{nil, {}, {Level: "verbose", Format: "xml"}, {Format: "console"}} {
		assert.NotNil(t, New(cfg))
	}
}

func TestLogger_Fields(t *testing.T) {
	log, buf := newJSON("info")

	log.With().Str("backend", "kv").Int("db", 2).Logger().Info("selected")

	e := entry(t, buf)
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "selected", e["message"])
	assert.Equal(t, "kv", e["backend"])
	assert.Equal(t, float64(2), e["db"])
	assert.NotEmpty(t, e["time"])
}

func TestLogger_ErrorWith(t *testing.T) {
	log, buf := newJSON("error")

	log.ErrorWith("command failed", errors.New("broken pipe"), map[string]interface{}{
		"command": "hgetall",
	})

	e := entry(t, buf)
	assert.Equal(t, "error", e["level"])
	assert.Equal(t, "broken pipe", e["error"])
	assert.Equal(t, "hgetall", e["command"])
}

func TestLogger_Context(t *testing.T) {
	log, buf := newJSON("info")

	FromContext(log.WithContext(context.Background())).Info("from context")

	assert.Equal(t, "from context", entry(t, buf)["message"])
}

func TestLogger_Threshold(t *testing.T) {
	tests := []struct {
		name  string
		level string
		emit  Level
		want  bool
	}{
		{"debug passes at debug", "debug", LevelDebug, true},
		{"debug dropped at info", "info", LevelDebug, false},
		{"warn passes at info", "info", LevelWarn, true},
		{"warn dropped at error", "error", LevelWarn, false},
		{"critical passes at error", "error", LevelCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newJSON(tt.level)
			log.Log("probe", tt.emit, TagCore, false)
			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		tag       Tag
		unbuffer  bool
		wantLevel string
		critical  bool
	}{
		{"warn kv", LevelWarn, TagKV, false, "warn", false},
		{"error sql unbuffered", LevelError, TagSQL, true, "error", false},
		{"critical maps to error", LevelCritical, TagCore, false, "error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newJSON("debug")

			log.Log("flush failed", tt.level, tt.tag, tt.unbuffer)

			e := entry(t, buf)
			assert.Equal(t, tt.wantLevel, e["level"])
			assert.Equal(t, string(tt.tag), e["tag"])
			assert.Equal(t, "flush failed", e["message"])
			if tt.critical {
				assert.Equal(t, true, e["critical"])
			} else {
				assert.NotContains(t, e, "critical")
			}
			if tt.unbuffer {
				assert.Equal(t, true, e["unbuffered"])
			}
		})
	}
}

func TestLogger_Component(t *testing.T) {
	log, buf := newJSON("info")

	log.Component(TagSQL).Info("connected")

	assert.Equal(t, "sql", entry(t, buf)["component"])
}

func TestLogger_HTTPEvent(t *testing.T) {
	log, buf := newJSON("info")

	log.HTTPEvent().Str("method", "GET").Int("status", 200).Msg("request")

	e := entry(t, buf)
	assert.Equal(t, "GET", e["method"])
	assert.Equal(t, float64(200), e["status"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Log("ignored", LevelCritical, TagCore, true)
	})
	assert.Equal(t, "critical", LevelCritical.String())
}

func BenchmarkLogger_Log(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Log("benchmark message", LevelInfo, TagKV, false)
	}
}
