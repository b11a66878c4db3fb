package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onUsers(c tele.Context) error {
	chunks, err := h.usersReport(contextFor(c))
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := tghelpers.SendText(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

// usersReport lists known users, one per line, split into messages that fit
// Telegram's size limit. The first message starts with the total.
func (h *Handlers) usersReport(ctx context.Context) ([]string, error) {
	list, err := h.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	header := fmt.Sprintf(msgUsersHeaderFmt, len(list))

	var (
		chunks []string
		b      strings.Builder
	)
	b.WriteString(header)
	for _, u := range list {
		line := h.Names.Name(ctx, u)
		if b.Len() > 0 && b.Len()+len(line)+1 > maxMessageLen {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks, nil
}

func (h *Handlers) onBroadcast(c tele.Context) error {
	text := ""
	if m := c.Message(); m != nil {
		text = m.Payload
	}
	queued, err := h.broadcast(contextFor(c), senderID(c), text)
	if err != nil {
		return err
	}
	if queued < 0 {
		return tghelpers.SendText(c, msgBroadcastUsage)
	}
	return tghelpers.SendText(c, fmt.Sprintf(msgBroadcastQueuedFmt, queued))
}

// broadcast queues "Admin message: <text>" for every known user except the
// sender. It returns -1 when there is nothing to send.
func (h *Handlers) broadcast(ctx context.Context, from int64, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return -1, nil
	}
	list, err := h.Users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	body := broadcastPrefix + text
	queued := 0
	for _, u := range list {
		if u.ID == from {
			continue
		}
		err := tghelpers.Enqueue(ctx, "broadcast", "sendMessage", func() error {
			_, err := h.Transport.SendText(ctx, u.ID, body)
			return err
		})
		if err != nil {
			logger.Warn(ctx, "users", "broadcast.enqueue_failed",
				slog.Int64("user_id", u.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		queued++
	}
	logger.Info(ctx, "users", "broadcast.queued",
		slog.Int("count", queued),
	)
	return queued, nil
}
