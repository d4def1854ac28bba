package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/xyz/metabo.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLogger_FieldsAreTyped(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("search completed",
		String("strategy", "identifier"),
		Strings("markers", []string{"OM:0001"}),
		Int("results", 3),
		Int64("entity_id", 42),
		Float64("threshold", 0.7),
		Bool("fallback", false),
		Duration("elapsed", 15*time.Millisecond),
		Err(errors.New("boom")),
		Any("filters", map[string]float64{"mw_max": 500}),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "search completed", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "identifier", ctx["strategy"])
	assert.Equal(t, int64(3), ctx["results"])
	assert.Equal(t, int64(42), ctx["entity_id"])
	assert.Equal(t, 0.7, ctx["threshold"])
	assert.Equal(t, false, ctx["fallback"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	child := l.Named("search").With(String("search_id", "abc"))
	child.Debug("filtered out")
	child.Warn("fallback")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "search", entry.LoggerName)
	assert.Equal(t, "abc", entry.ContextMap()["search_id"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.NotNil(t, l.With(String("k", "v")))
	assert.NotNil(t, l.Named("n"))
}

func TestDefault_SetAndGet(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	l, _ := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}

func TestFromContext(t *testing.T) {
	l, _ := newObservedLogger(zapcore.InfoLevel)
	fallback := NewNopLogger()

	assert.Equal(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, l, FromContext(WithContext(context.Background(), l), fallback))
}
