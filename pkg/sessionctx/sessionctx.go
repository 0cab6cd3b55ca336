// Package sessionctx carries the session id and active model through a
// context, and tags log records with them. It has no dependencies so both
// pkg/agent and pkg/engine can import it.
package sessionctx

import (
	"context"
	"log/slog"
)

type sessionIDCtxKey struct{}

type modelCtxKey struct{}

// WithSessionID returns a new context carrying the given session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDCtxKey{}, id)
}

// SessionID extracts the session id from the context, or "".
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDCtxKey{}).(string)
	return v
}

// WithModel returns a new context carrying the active model id.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelCtxKey{}, model)
}

// Model extracts the model id from the context, or "".
func Model(ctx context.Context) string {
	v, _ := ctx.Value(modelCtxKey{}).(string)
	return v
}

// Handler adds session_id and model attributes to every record logged with a
// context that carries them.
type Handler struct {
	slog.Handler
}

// NewHandler wraps h.
func NewHandler(h slog.Handler) *Handler {
	return &Handler{Handler: h}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id := SessionID(ctx); id != "" {
		r.AddAttrs(slog.String("session_id", id))
	}
	if m := Model(ctx); m != "" {
		r.AddAttrs(slog.String("model", m))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}
