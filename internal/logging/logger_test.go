package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pdfchat/internal/config"
)

func jsonLogger(t *testing.T, level zapcore.Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Level = level
	cfg.Output.Sink = zapcore.AddSync(&buf)

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger_WritesContextFields(t *testing.T) {
	logger, buf := jsonLogger(t, zapcore.InfoLevel)

	ctx := WithSessionID(context.Background(), "3f1c9a52-6a1e-4a0b-9d1e-2b3c4d5e6f70")
	ctx = WithAskID(ctx, "ask-1")
	logger.Info(ctx, "answered", zap.Int("sources", 5))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "answered", lines[0]["msg"])
	assert.Equal(t, "pdfchat", lines[0]["service"])
	assert.Equal(t, "3f1c9a52-6a1e-4a0b-9d1e-2b3c4d5e6f70", lines[0]["session.id"])
	assert.Equal(t, "ask-1", lines[0]["ask.id"])
	assert.EqualValues(t, 5, lines[0]["sources"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := jsonLogger(t, zapcore.WarnLevel)
	ctx := context.Background()

	logger.Trace(ctx, "trace")
	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	var msgs []string
	for _, l := range decodeLines(t, buf) {
		msgs = append(msgs, l["msg"].(string))
	}
	assert.Equal(t, []string{"warn", "error"}, msgs)
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_Redaction(t *testing.T) {
	logger, buf := jsonLogger(t, zapcore.InfoLevel)
	ctx := context.Background()

	logger.Info(ctx, "calling upstream with Bearer abc.def.ghi",
		zap.String("api_key", "sk-live"),
		zap.String("header", "api_key=hunter2"),
		zap.Error(errors.New("401 from sk-abcdefghijklmnopqrstuvwxyz")),
		Secret("generation_key", config.Secret("sk-123456")),
	)
	logger.With(zap.String("token", "t0k3n")).Info(ctx, "child")

	out := buf.String()
	for _, leaked := range []string{"abc.def.ghi", "sk-live", "hunter2", "sk-abcdefghijklmnop", "sk-123456", "t0k3n"} {
		assert.NotContains(t, out, leaked)
	}
	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, map[string]any{"generation_key": "[REDACTED:9]"}, lines[0]["generation_key"])
	assert.Equal(t, "[REDACTED]", lines[1]["token"])
}

func TestLogger_TraceCorrelation(t *testing.T) {
	rec := NewRecorder()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	rec.Info(ctx, "retrieved")
	fields := rec.Fields("retrieved")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, true, fields["trace_sampled"])
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Output.Console = false
	_, err = NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestNewCore_OTELWithoutProviderFallsBackToConsole(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = true

	core, err := newCore(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)

	cfg.Output.Console = false
	_, err = newCore(cfg, nil)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.LoggingConfig{Level: "trace", Format: "json", Sampling: true})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Sampling.Enabled)
	assert.True(t, cfg.Output.Console)

	_, err = FromConfig(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)

	_, err = FromConfig(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"trace": TraceLevel,
		"DEBUG": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		" warn": zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
