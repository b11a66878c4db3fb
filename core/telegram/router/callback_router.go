package router

import (
	"log/slog"

	tg "github.com/m3rciful/sharebot/core/telegram"
	"github.com/m3rciful/sharebot/core/telegram/callbacks"
	"github.com/m3rciful/sharebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Handlers are looked up by the telebot unique of the button or, for raw
// "<category>:<value>" data, by the category. Handlers answer the callback
// themselves so they can attach a toast.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		if c.Callback().Unique != "" {
			key = c.Callback().Unique
		}
		name := handlerName("callback.", key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			if fallback == nil {
				fallback = answerEmpty
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handled(c, name, fallback, extras...)
		}

		return handled(c, name, cbHandler, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// answerEmpty stops the client spinner for callbacks nobody handles.
func answerEmpty(c tele.Context) error {
	return c.Respond()
}
