package telegram

import (
	"github.com/m3rciful/sharebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain for bots. Extra
// middlewares run after logging, so they see the request context.
func DefaultMiddlewares(extra ...Middleware) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
	for _, mw := range extra {
		if mw.Use == nil {
			continue
		}
		mws = append(mws, mw)
	}
	return mws
}

// UseFunc adapts a plain hook into a Middleware that runs before the handler.
func UseFunc(name string, hook func(c tele.Context)) Middleware {
	return Middleware{
		Name: name,
		Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				hook(c)
				return next(c)
			}
		},
	}
}
