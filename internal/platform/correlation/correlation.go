// Package correlation tags contexts with short ids that the slog handler writes
// on every record, so a webhook delivery and the end reconciliation it
// schedules can be followed through the logs.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const (
	// MaxExternalIDLength bounds ids accepted from inbound headers.
	MaxExternalIDLength = 64

	attrID     = "correlation_id"
	attrParent = "parent_correlation_id"
)

type (
	idKey     struct{}
	parentKey struct{}
)

// NewID generates an 8-character hex id.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// ID returns the id carried by ctx, if any.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

// FromExternal tags ctx with an id supplied by a caller, falling back to a
// fresh one when it is empty or too long. It returns the id in use.
func FromExternal(ctx context.Context, external string) (context.Context, string) {
	id := external
	if id == "" || len(id) > MaxExternalIDLength {
		id = NewID()
	}
	return WithID(ctx, id), id
}

// Detach returns a context for work that outlives ctx: it is never cancelled
// with ctx, gets its own id and remembers the id of ctx as its parent.
func Detach(ctx context.Context) context.Context {
	detached := context.WithoutCancel(ctx)
	if parent, ok := ID(ctx); ok {
		detached = context.WithValue(detached, parentKey{}, parent)
	}
	return WithID(detached, NewID())
}

// Parent returns the id of the context a detached context was derived from.
func Parent(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(parentKey{}).(string)
	return id, ok && id != ""
}

// Handler wraps a slog.Handler and adds the correlation ids found in the
// record's context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String(attrID, id))
	}
	if parent, ok := Parent(ctx); ok {
		r.AddAttrs(slog.String(attrParent, parent))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
