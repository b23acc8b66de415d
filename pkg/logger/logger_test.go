package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
	l.Info("查询完成", "word", "hello")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "hello", m["word"])
	_, hasSource := m["source"]
	assert.False(t, hasSource)
}

func TestNewWithWriter_TextHasSource(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})
	l.Debug("调试")
	assert.Contains(t, buf.String(), "source=")
}

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, config.LogConfig{Level: tt.level, Format: "text"})

			l.Log(context.Background(), tt.want, "should appear")
			assert.NotZero(t, buf.Len())

			buf.Reset()
			l.Log(context.Background(), tt.want-1, "should be suppressed")
			assert.Zero(t, buf.Len())
		})
	}
}

func TestNew_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := New(config.LogConfig{Level: "info", Format: "json"})
	assert.Equal(t, l.Handler(), slog.Default().Handler())
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), OrDefault(nil))
	d := Discard()
	assert.Same(t, d, OrDefault(d))
}
