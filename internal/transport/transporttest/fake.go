// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/transport"
)

// ErrUnknownFile is returned by Download for file IDs that were never added.
var ErrUnknownFile = errors.New("transporttest: unknown file")

// Sent is a message recorded by the fake.
type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Prompt    *transport.Prompt
	Item      *Item
}

// Item is a media item with its body read into memory.
type Item struct {
	Kind     media.Kind
	FileName string
	MIME     string
	Body     []byte
}

// Forwarded records one Forward call.
type Forwarded struct {
	To, From  int64
	MessageID int
}

// Fake is a goroutine-safe Transport that records every call.
type Fake struct {
	mu sync.Mutex

	nextID    int
	files     map[string][]byte
	names     map[int64]string
	sent      []Sent
	batches   [][]int
	deleted   map[int64][]int
	forwarded []Forwarded

	// BotUsername is returned by Username.
	BotUsername string
	// FailText, FailPrompt, FailDelete and FailDownload make the matching call fail when set.
	FailText     error
	FailPrompt   error
	FailDelete   error
	FailDownload map[string]error
	// FailMedia decides per item whether SendMedia fails on it. Items before the
	// failing one are delivered.
	FailMedia func(it Item, batchSize int) error
}

var _ transport.Transport = (*Fake)(nil)

// New returns an empty fake with bot username "sharebot".
func New() *Fake {
	return &Fake{
		nextID:       100,
		files:        make(map[string][]byte),
		names:        make(map[int64]string),
		deleted:      make(map[int64][]int),
		FailDownload: make(map[string]error),
		BotUsername:  "sharebot",
	}
}

// AddFile registers content for a file ID.
func (f *Fake) AddFile(fileID string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = body
}

// SetName registers the display name for a user.
func (f *Fake) SetName(userID int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[userID] = name
}

func (f *Fake) record(s Sent) int {
	f.nextID++
	s.MessageID = f.nextID
	f.sent = append(f.sent, s)
	return s.MessageID
}

func (f *Fake) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailText != nil {
		return 0, f.FailText
	}
	return f.record(Sent{ChatID: chatID, Text: text}), nil
}

func (f *Fake) SendPrompt(ctx context.Context, chatID int64, p transport.Prompt) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPrompt != nil {
		return 0, f.FailPrompt
	}
	cp := p
	cp.Options = append([]transport.Option(nil), p.Options...)
	return f.record(Sent{ChatID: chatID, Text: p.Text, Prompt: &cp}), nil
}

func (f *Fake) SendMedia(ctx context.Context, chatID int64, items []media.Outgoing) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) > transport.MediaGroupLimit {
		return nil, fmt.Errorf("%w: %d", transport.ErrTooManyItems, len(items))
	}
	read := make([]Item, 0, len(items))
	for _, it := range items {
		body, err := io.ReadAll(it.Body)
		if err != nil {
			return nil, err
		}
		read = append(read, Item{Kind: it.Kind, FileName: it.FileName, MIME: it.MIME, Body: body})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(read))
	for _, it := range read {
		if f.FailMedia != nil {
			if err := f.FailMedia(it, len(read)); err != nil {
				if len(ids) > 0 {
					f.batches = append(f.batches, ids)
				}
				return ids, err
			}
		}
		item := it
		ids = append(ids, f.record(Sent{ChatID: chatID, Item: &item}))
	}
	f.batches = append(f.batches, ids)
	return ids, nil
}

func (f *Fake) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete != nil {
		return f.FailDelete
	}
	f.deleted[chatID] = append(f.deleted[chatID], messageID)
	return nil
}

func (f *Fake) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailDownload[fileID]; err != nil {
		return nil, err
	}
	body, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *Fake) Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, Forwarded{To: toChatID, From: fromChatID, MessageID: messageID})
	return nil
}

func (f *Fake) DisplayName(ctx context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	return strconv.FormatInt(userID, 10), nil
}

func (f *Fake) Username() string {
	return f.BotUsername
}

// Sent returns every recorded message in send order.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentTo returns the messages sent to one chat.
func (f *Fake) SentTo(chatID int64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Texts returns the plain texts and prompt texts sent to a chat.
func (f *Fake) Texts(chatID int64) []string {
	var out []string
	for _, s := range f.SentTo(chatID) {
		if s.Item == nil {
			out = append(out, s.Text)
		}
	}
	return out
}

// Items returns the media items sent to a chat.
func (f *Fake) Items(chatID int64) []Item {
	var out []Item
	for _, s := range f.SentTo(chatID) {
		if s.Item != nil {
			out = append(out, *s.Item)
		}
	}
	return out
}

// Prompts returns the prompts sent to a chat.
func (f *Fake) Prompts(chatID int64) []Sent {
	var out []Sent
	for _, s := range f.SentTo(chatID) {
		if s.Prompt != nil {
			out = append(out, s)
		}
	}
	return out
}

// Batches returns the message IDs of each successful or partial SendMedia call.
func (f *Fake) Batches() [][]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]int, len(f.batches))
	for i, b := range f.batches {
		out[i] = append([]int(nil), b...)
	}
	return out
}

// Deleted returns the message IDs deleted in a chat.
func (f *Fake) Deleted(chatID int64) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleted[chatID]...)
}

// Forwarded returns every Forward call.
func (f *Fake) Forwarded() []Forwarded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Forwarded(nil), f.forwarded...)
}
