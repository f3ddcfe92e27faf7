package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, NewID(), "IDs should be unique")
}

func TestWithIDAndID(t *testing.T) {
	ctx := context.Background()

	_, ok := ID(ctx)
	assert.False(t, ok)

	ctx = WithID(ctx, "abcd1234")
	id, ok := ID(ctx)
	require.True(t, ok)
	assert.Equal(t, "abcd1234", id)
}

func TestHandler_InjectsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithID(context.Background(), "abcd1234")
	logger.InfoContext(ctx, "hello")

	assert.Contains(t, buf.String(), "correlation_id=abcd1234")
}

func TestHandler_NoIDNoAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "hello")

	assert.NotContains(t, buf.String(), "correlation_id")
}
