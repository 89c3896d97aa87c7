package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("verbose")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	debug := New("debug", "console")
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestContextLogger_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithConnectionID(context.Background(), "conn-1")
	ctx = WithRequestID(ctx, "req-9")
	cl.LogRequest(ctx, "POST", "/analyze", 200, 12)
	cl.Sugar(context.Background()).Errorw("write failed", "error", errors.New("boom"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "conn-1", fields["connection_id"])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "http_request", entries[0].Message)
		assert.Equal(t, int64(200), fields["status_code"])

		assert.Equal(t, "boom", entries[1].ContextMap()["error"])
		assert.NotContains(t, entries[1].ContextMap(), "connection_id")
	}
}
