// Package helpers connects handlers to the shared outbound dispatcher and the
// per-update request context.
package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the dispatcher used by Enqueue and SendText. nil
// makes every call synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Enqueue schedules run on the dispatcher. When there is none, or it is full
// or closed, run is executed in the caller's goroutine and its error returned.
func Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	err := d.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("op", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	default:
		return err
	}
}

// SendText queues a plain text reply to the chat of the update.
func SendText(c tele.Context, text string, opts ...any) error {
	return Enqueue(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text, opts...)
	})
}
