package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/callbacks"
	"github.com/m3rciful/sharebot/core/telegram/keyboard"
	"github.com/m3rciful/sharebot/internal/media"
)

// ErrNotReady is returned while no bot is attached.
var ErrNotReady = errors.New("transport: bot not attached")

// Telebot implements Transport on top of a telebot bot. The bot is attached once
// the runtime has built it.
type Telebot struct {
	bot atomic.Pointer[tele.Bot]
}

// NewTelebot returns an adapter with no bot attached.
func NewTelebot() *Telebot {
	return &Telebot{}
}

// Attach sets the bot used for all calls.
func (t *Telebot) Attach(b *tele.Bot) {
	t.bot.Store(b)
}

func (t *Telebot) ready(ctx context.Context) (*tele.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := t.bot.Load()
	if b == nil {
		return nil, ErrNotReady
	}
	return b, nil
}

func (t *Telebot) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	b, err := t.ready(ctx)
	if err != nil {
		return 0, err
	}
	msg, err := b.Send(tele.ChatID(chatID), text)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}
	return msg.ID, nil
}

func (t *Telebot) SendPrompt(ctx context.Context, chatID int64, p Prompt) (int, error) {
	b, err := t.ready(ctx)
	if err != nil {
		return 0, err
	}
	msg, err := b.Send(tele.ChatID(chatID), p.Text, PromptMarkup(p))
	if err != nil {
		return 0, fmt.Errorf("send prompt %s: %w", p.Category, err)
	}
	return msg.ID, nil
}

// PromptMarkup builds the inline keyboard for p. Buttons carry raw callback data
// without telebot's unique prefix.
func PromptMarkup(p Prompt) *tele.ReplyMarkup {
	perRow := p.PerRow
	if perRow <= 0 {
		perRow = 2
	}
	btns := make([]keyboard.Button, 0, len(p.Options))
	for _, o := range p.Options {
		btns = append(btns, keyboard.Button{
			Text: o.Label,
			Data: callbacks.EncodeChoice(p.Category, o.Value),
		})
	}
	return keyboard.Grid(btns, perRow)
}

func (t *Telebot) SendMedia(ctx context.Context, chatID int64, items []media.Outgoing) ([]int, error) {
	if len(items) > MediaGroupLimit {
		return nil, fmt.Errorf("%w: %d", ErrTooManyItems, len(items))
	}
	b, err := t.ready(ctx)
	if err != nil {
		return nil, err
	}
	to := tele.ChatID(chatID)
	ids := make([]int, 0, len(items))
	for _, run := range albumRuns(items) {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if len(run) == 1 {
			msg, err := b.Send(to, inputFor(run[0]))
			if err != nil {
				return ids, fmt.Errorf("send %s: %w", run[0].Kind, err)
			}
			ids = append(ids, msg.ID)
			continue
		}
		album := make(tele.Album, 0, len(run))
		for _, it := range run {
			album = append(album, inputFor(it))
		}
		msgs, err := b.SendAlbum(to, album)
		if err != nil {
			return ids, fmt.Errorf("send album of %d: %w", len(run), err)
		}
		for _, m := range msgs {
			ids = append(ids, m.ID)
		}
	}
	logger.Debug(ctx, "tg", "media.sent",
		slog.Int64("chat_id", chatID),
		slog.Int("items", len(items)),
		slog.Int("messages", len(ids)),
	)
	return ids, nil
}

// albumRuns splits items into consecutive runs Telegram accepts as one album:
// photos and videos mix, documents only group with documents.
func albumRuns(items []media.Outgoing) [][]media.Outgoing {
	var runs [][]media.Outgoing
	for i, it := range items {
		if i > 0 && isDocument(it) == isDocument(items[i-1]) {
			runs[len(runs)-1] = append(runs[len(runs)-1], it)
			continue
		}
		runs = append(runs, []media.Outgoing{it})
	}
	return runs
}

func isDocument(it media.Outgoing) bool {
	return it.Kind != media.KindPhoto && it.Kind != media.KindVideo
}

func inputFor(it media.Outgoing) tele.Inputtable {
	file := tele.FromReader(it.Body)
	switch it.Kind {
	case media.KindPhoto:
		return &tele.Photo{File: file}
	case media.KindVideo:
		return &tele.Video{File: file, FileName: it.FileName, MIME: it.MIME}
	default:
		return &tele.Document{File: file, FileName: it.FileName, MIME: it.MIME}
	}
}

func (t *Telebot) Delete(ctx context.Context, chatID int64, messageID int) error {
	b, err := t.ready(ctx)
	if err != nil {
		return err
	}
	err = b.Delete(&tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
	if err != nil && !errors.Is(err, tele.ErrNotFoundToDelete) {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

func (t *Telebot) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	b, err := t.ready(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := b.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	return rc, nil
}

func (t *Telebot) Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	b, err := t.ready(ctx)
	if err != nil {
		return err
	}
	src := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChatID}
	if _, err := b.Forward(tele.ChatID(toChatID), src); err != nil {
		return fmt.Errorf("forward message %d: %w", messageID, err)
	}
	return nil
}

// DisplayName returns "@username" when the user has one, else the full name, else the ID.
func (t *Telebot) DisplayName(ctx context.Context, userID int64) (string, error) {
	b, err := t.ready(ctx)
	if err != nil {
		return "", err
	}
	chat, err := b.ChatByID(userID)
	if err != nil {
		return "", fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if chat.Username != "" {
		return "@" + chat.Username, nil
	}
	if name := strings.TrimSpace(chat.FirstName + " " + chat.LastName); name != "" {
		return name, nil
	}
	return strconv.FormatInt(userID, 10), nil
}

func (t *Telebot) Username() string {
	b := t.bot.Load()
	if b == nil || b.Me == nil {
		return ""
	}
	return b.Me.Username
}
