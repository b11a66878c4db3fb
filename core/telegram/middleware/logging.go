package middleware

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Route handlers carry LoggerMiddleware on top of the global chain, so an
// update can pass through it twice. Only the first pass logs the receipt.
var receipts = expirable.NewLRU[int, struct{}](4096, nil, 10*time.Second)

func firstReceipt(updateID int) bool {
	if receipts.Contains(updateID) {
		return false
	}
	receipts.Add(updateID, struct{}{})
	return true
}

// LoggerMiddleware stores the request context (rid plus update, user and chat
// ids) on the update and logs a sampled update.received line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && firstReceipt(upd.ID) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		if kind := messageKind(upd.Message); kind != "" {
			attrs = append(attrs, slog.String("kind", kind))
		}
	}
	return attrs
}

func messageKind(m *tele.Message) string {
	switch {
	case m.Photo != nil:
		return "photo"
	case m.Video != nil:
		return "video"
	case m.Animation != nil:
		return "animation"
	case m.Document != nil:
		return "document"
	case m.Audio != nil:
		return "audio"
	case m.Voice != nil:
		return "voice"
	case m.VideoNote != nil:
		return "video_note"
	case m.Sticker != nil:
		return "sticker"
	}
	return ""
}
