package handlers

import (
	"context"
	"errors"

	"github.com/m3rciful/sharebot/internal/upload"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onButton(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	ev := upload.ButtonEvent{UserID: senderID(c), ChatID: chatID(c), Data: cb.Data}
	if cb.Message != nil {
		ev.MessageID = cb.Message.ID
		if cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
	}
	// Telebot strips the routing key for its own buttons; ours carry raw data.
	if cb.Unique != "" {
		ev.Data = cb.Unique + ":" + cb.Data
	}

	toast, err := h.button(contextFor(c), ev)
	if respErr := c.Respond(&tele.CallbackResponse{Text: toast}); respErr != nil && err == nil {
		err = respErr
	}
	return err
}

// button applies a prompt choice and returns the toast shown to the user.
// Stale presses are answered silently.
func (h *Handlers) button(ctx context.Context, ev upload.ButtonEvent) (string, error) {
	step, err := h.Flow.HandleButtonPress(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, upload.ErrStaleCallback):
		return "", nil
	case errors.Is(err, upload.ErrEmptySession):
		return toastNoFiles, nil
	case errors.Is(err, upload.ErrBadPayload):
		return toastUnsupported, err
	default:
		// The flow already told the user what went wrong.
		return "", err
	}
	switch step {
	case upload.StepLinkExpiry:
		return toastLinkExpirySet, nil
	case upload.StepDeleteAfter:
		return toastLinkCreated, nil
	}
	return "", nil
}
