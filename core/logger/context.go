package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRID
	keyUpdate
	keyHandler
)

// updateMeta identifies the Telegram update being handled.
type updateMeta struct {
	updateID int
	userID   int64
	chatID   int64
}

func value[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func with(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

// WithLogger stores log in ctx. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := value[*slog.Logger](ctx, keyLogger); ok && l != nil {
		return l
	}
	return L
}

// WithRID attaches a request correlation ID.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, keyRID, rid)
}

// RIDFrom returns the correlation ID, if any.
func RIDFrom(ctx context.Context) string {
	rid, _ := value[string](ctx, keyRID)
	return rid
}

// WithUpdateMeta attaches the update, user and chat IDs of the current update.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, keyUpdate, updateMeta{updateID: updateID, userID: userID, chatID: chatID})
}

// UpdateIDFrom returns the update ID attached by WithUpdateMeta.
func UpdateIDFrom(ctx context.Context) int {
	m, _ := value[updateMeta](ctx, keyUpdate)
	return m.updateID
}

// UserIDFrom returns the sender ID attached by WithUpdateMeta.
func UserIDFrom(ctx context.Context) int64 {
	m, _ := value[updateMeta](ctx, keyUpdate)
	return m.userID
}

// ChatIDFrom returns the chat ID attached by WithUpdateMeta.
func ChatIDFrom(ctx context.Context) int64 {
	m, _ := value[updateMeta](ctx, keyUpdate)
	return m.chatID
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, keyHandler, handler)
}

// HandlerFrom returns the handler name, if any.
func HandlerFrom(ctx context.Context) string {
	h, _ := value[string](ctx, keyHandler)
	return h
}
