package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("keeps a provided trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-123")
		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})

	t.Run("generates a UUID when empty", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")
		assert.Len(t, GetTraceID(ctx), 36)
	})

	t.Run("preserves other values", func(t *testing.T) {
		type testKey string
		ctx := context.WithValue(context.Background(), testKey("k"), "v")
		ctx = WithTraceID(ctx, "trace-456")

		assert.Equal(t, "trace-456", GetTraceID(ctx))
		assert.Equal(t, "v", ctx.Value(testKey("k")))
	})
}

func TestGetTraceID_Missing(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNewTraceID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewTraceID()
		assert.False(t, seen[id], "duplicate trace id %s", id)
		seen[id] = true
	}
}
