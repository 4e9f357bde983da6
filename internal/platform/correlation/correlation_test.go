package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		require.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestID(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{"missing", context.Background(), "", false},
		{"empty", WithID(context.Background(), ""), "", false},
		{"present", WithID(context.Background(), "abc12345"), "abc12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ID(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestFromExternal(t *testing.T) {
	ctx, id := FromExternal(context.Background(), "upstream-42")
	assert.Equal(t, "upstream-42", id)
	got, _ := ID(ctx)
	assert.Equal(t, "upstream-42", got)

	_, id = FromExternal(context.Background(), "")
	assert.Len(t, id, 8)

	_, id = FromExternal(context.Background(), strings.Repeat("x", MaxExternalIDLength+1))
	assert.Len(t, id, 8)
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(WithID(context.Background(), "delivery1"))
	detached := Detach(parent)
	cancel()

	assert.NoError(t, detached.Err())
	id, ok := ID(detached)
	require.True(t, ok)
	assert.NotEqual(t, "delivery1", id)
	p, ok := Parent(detached)
	require.True(t, ok)
	assert.Equal(t, "delivery1", p)
}

func TestDetach_WithoutParentID(t *testing.T) {
	detached := Detach(context.Background())

	_, ok := ID(detached)
	assert.True(t, ok)
	_, ok = Parent(detached)
	assert.False(t, ok)
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.InfoContext(WithID(context.Background(), "test1234"), "Session live", "room", "main-stage")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=test1234")
	assert.Contains(t, output, "room=main-stage")
	assert.NotContains(t, output, "parent_correlation_id")
}

func TestHandler_AddsParentForDetachedWork(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := Detach(WithID(context.Background(), "hook0001"))
	logger.InfoContext(ctx, "Reconciliation finished")

	assert.Contains(t, buf.String(), "parent_correlation_id=hook0001")
}

func TestHandler_NoCorrelationID_WhenMissing(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.InfoContext(context.Background(), "no correlation")

	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrs_PreservesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "coordinator")

	logger.InfoContext(WithID(context.Background(), "attr1234"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=attr1234")
	assert.Contains(t, output, "component=coordinator")
}
