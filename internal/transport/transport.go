// Package transport is the bot's view of the messaging platform.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/m3rciful/sharebot/internal/media"
)

// MediaGroupLimit is the largest number of items accepted by one SendMedia call.
const MediaGroupLimit = 10

// ErrTooManyItems is returned by SendMedia for batches above MediaGroupLimit.
var ErrTooManyItems = errors.New("transport: too many items in one batch")

// Option is one button of a prompt. Its callback payload is "<category>:<value>".
type Option struct {
	Label string
	Value string
}

// Prompt is a text message with an inline keyboard.
type Prompt struct {
	Text     string
	Category string
	Options  []Option
	// PerRow is the number of buttons per keyboard row; 0 means 2.
	PerRow int
}

// Transport performs the platform calls the bot needs.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendPrompt(ctx context.Context, chatID int64, p Prompt) (int, error)
	// SendMedia sends up to MediaGroupLimit items in order. On error it returns the
	// IDs of the leading items that were delivered before the failure.
	SendMedia(ctx context.Context, chatID int64, items []media.Outgoing) ([]int, error)
	// Delete removes a message. A message that is already gone is not an error.
	Delete(ctx context.Context, chatID int64, messageID int) error
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error
	DisplayName(ctx context.Context, userID int64) (string, error)
	// Username is the bot's public username, used to build share links.
	Username() string
}
