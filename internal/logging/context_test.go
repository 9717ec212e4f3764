package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextIDs(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess_1")
	ctx = WithAskID(ctx, "ask_2")
	ctx = WithRequestID(ctx, "req-3")

	assert.Equal(t, "sess_1", SessionIDFromContext(ctx))
	assert.Equal(t, "ask_2", AskIDFromContext(ctx))
	assert.Equal(t, "req-3", RequestIDFromContext(ctx))

	keys := make([]string, 0, 3)
	for _, f := range ContextFields(ctx) {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"session.id", "ask.id", "request.id"}, keys)
}

func TestWithIDs_RejectInvalid(t *testing.T) {
	bad := []string{"", "has space", "semi;colon", strings.Repeat("a", maxIDLen+1), "\xff"}
	for _, id := range bad {
		assert.Panics(t, func() { WithSessionID(context.Background(), id) }, "%q", id)
		assert.Panics(t, func() { WithAskID(context.Background(), id) }, "%q", id)
	}
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	rec := NewRecorder()
	ctx := WithLogger(context.Background(), rec.Logger)
	FromContext(ctx).Warn(ctx, "stored")
	assert.True(t, rec.Has(zapcore.WarnLevel, "stored"))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("req-123_abc"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("has space"))
	assert.False(t, ValidID(strings.Repeat("a", maxIDLen+1)))
}
