package router

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"
	"github.com/m3rciful/sharebot/core/telegram/middleware"
	"github.com/m3rciful/sharebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// handled runs h under the given handler name and logs one summary line.
func handled(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := h(c)
	summarize(c, name, start, "", err, extras...)
	return err
}

// summarize writes the handler.handled line. status defaults to the outcome.
func summarize(c tele.Context, name string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	replies := middleware.RepliesFrom(c)

	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	attrs := make([]slog.Attr, 0, 9+len(extras))
	attrs = append(attrs,
		slog.String("status", cmp.Or(status, outcome)),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", replies.Messages),
		slog.Bool("kb", replies.Keyboard),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", name),
		)
	}
	attrs = append(attrs, extras...)
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns "/Start" or "link exp" into "start" and "link_exp".
func handlerName(prefix, key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		key = "unknown"
	}
	return prefix + strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// errorCode prefers a Code() the error carries, then the transport kind, then
// the Go type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	if kind := netutil.Classify(err); kind != netutil.KindUnknown {
		return kind
	}
	return strings.TrimLeft(fmt.Sprintf("%T", err), "*")
}
