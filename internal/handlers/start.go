package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/delivery"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onStart(c tele.Context) error {
	payload := ""
	if m := c.Message(); m != nil {
		payload = m.Payload
	}
	reply, err := h.start(contextFor(c), delivery.Recipient{UserID: senderID(c), ChatID: chatID(c)}, payload)
	if reply != "" {
		if sendErr := tghelpers.SendText(c, reply); sendErr != nil && err == nil {
			err = sendErr
		}
	}
	return err
}

// start redeems a token when one is given. It returns the text to answer with;
// an empty reply means the files were delivered.
func (h *Handlers) start(ctx context.Context, to delivery.Recipient, payload string) (string, error) {
	token := strings.TrimSpace(payload)
	if token == "" {
		return msgWelcome, nil
	}
	if !bundle.ValidToken(token) {
		logger.Debug(ctx, "delivery", "token.malformed",
			slog.String("token", logger.SanitizeLimit(token, 64)),
		)
		return msgLinkExpired, nil
	}

	res, err := h.Resolver.Redeem(ctx, token, to)
	switch {
	case err == nil:
		logger.Info(ctx, "delivery", "link.redeemed",
			slog.String("delivery_id", res.DeliveryID),
			slog.Int("files", res.Delivered),
			slog.Int("failed", res.Failed),
		)
		return "", nil
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, delivery.ErrExpired):
		return msgLinkExpired, nil
	default:
		return msgDeliveryFailed, err
	}
}

func (h *Handlers) onHelp(c tele.Context) error {
	return tghelpers.SendText(c, h.helpText(senderID(c)))
}

func (h *Handlers) helpText(userID int64) string {
	if h.registry == nil {
		return msgSendMedia
	}
	list := h.registry.Menu(h.isAdmin(userID))
	var b strings.Builder
	b.WriteString(msgHelpHeader)
	for _, cmd := range list {
		b.WriteString("\n/")
		b.WriteString(cmd.Text)
		b.WriteString(" - ")
		b.WriteString(cmd.Description)
	}
	b.WriteString("\n\n")
	b.WriteString(msgSendMedia)
	return b.String()
}
