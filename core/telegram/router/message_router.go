package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/sharebot/core/telegram"
	"github.com/m3rciful/sharebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls routing of non-command messages.
type MessageOptions struct {
	// Media receives every media message: photos, videos, documents and the
	// kinds telebot reports through OnMedia.
	Media tele.HandlerFunc
	// Flow and Pending intercept text from users with a flow in progress.
	Flow    middleware.PendingChecker
	Pending tele.HandlerFunc

	AdminIDs      []int64
	OnAdminReject tele.HandlerFunc

	UnknownText tele.HandlerFunc
}

// MessageRoutes builds handlers for text and media routing.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	cmdOpts := CommandRouteOptions{AdminIDs: opts.AdminIDs, OnAdminReject: opts.OnAdminReject}

	textHandler := func(c tele.Context) error {
		start := time.Now()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(commandWord(c.Text())); ok && cmd.Handler != nil {
				// Logging and recovery already wrap this route.
				return guardCommand(key, cmd, cmdOpts)(c)
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", fb)
			}
		}

		if opts.UnknownText != nil {
			return handled(c, "unknown_text", opts.UnknownText)
		}

		summarize(c, "unknown_text", start, "skip", nil)
		return nil
	}

	var text tele.HandlerFunc = textHandler
	if opts.Flow != nil && opts.Pending != nil {
		pending := func(c tele.Context) error {
			return handled(c, "pending_text", opts.Pending)
		}
		text = middleware.WhilePending(opts.Flow, pending)(text)
	}

	routes := []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(text)),
	}}

	if opts.Media != nil {
		mediaHandler := func(c tele.Context) error {
			return handled(c, "media", opts.Media)
		}
		wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler))
		for _, ep := range []string{tele.OnPhoto, tele.OnVideo, tele.OnDocument, tele.OnMedia} {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: wrapped})
		}
	}

	return routes
}

// commandSummary logs a handler.handled line for a command.
func commandSummary(name string, h tele.HandlerFunc) tele.HandlerFunc {
	name = handlerName("cmd.", name)
	return func(c tele.Context) error {
		return handled(c, name, h)
	}
}

// commandWord extracts "/cmd" from "/cmd@bot payload".
func commandWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	word, _, _ := strings.Cut(fields[0], "@")
	return word
}
