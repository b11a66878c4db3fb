package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic wraps a value recovered from a handler panic.
type ErrPanic struct{ Value any }

func (e ErrPanic) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// Code implements the error code hook of the handler summary.
func (ErrPanic) Code() string { return "PANIC" }

// RecoverMiddleware turns a handler panic into an ErrPanic so one bad update
// cannot stop the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "panic",
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			err = ErrPanic{Value: r}
		}()
		return next(c)
	}
}
