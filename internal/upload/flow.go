// Package upload drives a user's upload from the first media item to a shareable bundle.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/callbacks"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/metrics"
	"github.com/m3rciful/sharebot/internal/session"
	"github.com/m3rciful/sharebot/internal/transport"
)

var (
	// ErrStaleCallback is returned for button presses that do not match the live prompt.
	ErrStaleCallback = errors.New("upload: stale callback")
	// ErrEmptySession is returned when the final choice arrives with nothing collected.
	ErrEmptySession = errors.New("upload: no files in session")
	// ErrBadPayload is returned for callback data that cannot be parsed.
	ErrBadPayload = errors.New("upload: bad callback payload")
	// ErrNothingToShare is returned when every collected item has an unsupported kind.
	ErrNothingToShare = errors.New("upload: nothing to share")
	// ErrFinalizeFailed is returned when the bundle could not be stored.
	ErrFinalizeFailed = errors.New("upload: finalize failed")
)

// MediaEvent is an incoming media message.
type MediaEvent struct {
	UserID int64
	ChatID int64
	Item   media.Ref
}

// ButtonEvent is a press on an inline keyboard button.
type ButtonEvent struct {
	UserID int64
	ChatID int64
	// MessageID identifies the message carrying the pressed button.
	MessageID int
	Data      string
}

// Step reports which choice a button press completed.
type Step int

const (
	StepNone Step = iota
	StepLinkExpiry
	StepDeleteAfter
)

// Flow is the per-user upload state machine.
type Flow struct {
	sessions  *session.Store
	tr        transport.Transport
	finalizer *Finalizer
	obs       metrics.Observer
}

// NewFlow wires a state machine. A nil observer disables metrics.
func NewFlow(sessions *session.Store, tr transport.Transport, finalizer *Finalizer, obs metrics.Observer) *Flow {
	if obs == nil {
		obs = metrics.Nop{}
	}
	return &Flow{
		sessions:  sessions,
		tr:        tr,
		finalizer: finalizer,
		obs:       obs,
	}
}

// HandleIncomingMedia adds an item to the sender's upload and asks for the link
// expiry when no prompt is showing yet.
func (f *Flow) HandleIncomingMedia(ctx context.Context, ev MediaEvent) error {
	f.obs.SessionItem(ev.Item.Kind)
	return f.sessions.With(ev.UserID, func(u *session.Upload) error {
		u.Items = append(u.Items, ev.Item)
		if u.Stage != session.Collecting || u.Prompt != nil {
			logger.Debug(ctx, "session", "item.added",
				slog.String("kind", string(ev.Item.Kind)),
				slog.Int("items", len(u.Items)),
				slog.String("stage", u.Stage.String()),
			)
			return nil
		}

		id, err := f.tr.SendPrompt(ctx, ev.ChatID, LinkExpiryPrompt())
		if err != nil {
			return fmt.Errorf("ask link expiry: %w", err)
		}
		u.Prompt = &session.PromptRef{ChatID: ev.ChatID, MessageID: id}
		u.Stage = session.AwaitingLinkExpiry
		logger.Debug(ctx, "session", "stage.changed",
			slog.String("stage", u.Stage.String()),
			slog.Int("items", len(u.Items)),
		)
		return nil
	})
}

// HandleButtonPress parses "<category>:<value>" and applies the choice.
func (f *Flow) HandleButtonPress(ctx context.Context, ev ButtonEvent) (Step, error) {
	ch, err := callbacks.ParseChoice(ev.Data)
	if err != nil {
		return StepNone, fmt.Errorf("%w: %q", ErrBadPayload, ev.Data)
	}
	l, err := lifetime.Parse(ch.Value)
	if err != nil {
		return StepNone, fmt.Errorf("%w: %q", ErrBadPayload, ev.Data)
	}
	switch ch.Category {
	case CategoryLinkExpiry:
		return StepLinkExpiry, f.ChooseLinkExpiry(ctx, ev, l)
	case CategoryDeleteAfter:
		_, err := f.ChooseDeleteAfter(ctx, ev, l)
		return StepDeleteAfter, err
	}
	return StepNone, fmt.Errorf("%w: unknown category %q", ErrBadPayload, ch.Category)
}

// ChooseLinkExpiry records the link expiry and asks the delete-after question.
func (f *Flow) ChooseLinkExpiry(ctx context.Context, ev ButtonEvent, l lifetime.Lifetime) error {
	return f.sessions.With(ev.UserID, func(u *session.Upload) error {
		if u.Stage != session.AwaitingLinkExpiry || !livePrompt(u, ev) {
			return ErrStaleCallback
		}
		f.retract(ctx, u.Prompt)
		u.Prompt = nil
		u.LinkExpiry = l

		id, err := f.tr.SendPrompt(ctx, ev.ChatID, DeleteAfterPrompt())
		if err != nil {
			// Items are kept; the next media message asks again.
			u.Stage = session.Collecting
			return fmt.Errorf("ask delete after: %w", err)
		}
		u.Prompt = &session.PromptRef{ChatID: ev.ChatID, MessageID: id}
		u.Stage = session.AwaitingDeleteAfter
		logger.Debug(ctx, "session", "stage.changed",
			slog.String("stage", u.Stage.String()),
			slog.String("link_expiry", l.Value()),
		)
		return nil
	})
}

// ChooseDeleteAfter records the delete-after choice and finalizes the upload.
// The session is reset whether or not finalizing succeeds.
func (f *Flow) ChooseDeleteAfter(ctx context.Context, ev ButtonEvent, l lifetime.Lifetime) (Receipt, error) {
	var receipt Receipt
	err := f.sessions.With(ev.UserID, func(u *session.Upload) error {
		if len(u.Items) == 0 {
			return ErrEmptySession
		}
		if u.Stage != session.AwaitingDeleteAfter || !livePrompt(u, ev) {
			return ErrStaleCallback
		}
		u.DeleteAfter = l
		f.retract(ctx, u.Prompt)
		pending := u.Clone()
		u.Reset()

		r, err := f.finalizer.Finalize(ctx, ev.UserID, pending)
		if err != nil {
			f.notify(ctx, ev.ChatID, failureText(err))
			return err
		}
		receipt = r
		f.notify(ctx, ev.ChatID, msgLinkReady)
		f.notify(ctx, ev.ChatID, r.Text())
		return nil
	})
	return receipt, err
}

func livePrompt(u *session.Upload, ev ButtonEvent) bool {
	return u.Prompt != nil && u.Prompt.ChatID == ev.ChatID && u.Prompt.MessageID == ev.MessageID
}

func (f *Flow) retract(ctx context.Context, p *session.PromptRef) {
	if p == nil {
		return
	}
	if err := f.tr.Delete(ctx, p.ChatID, p.MessageID); err != nil {
		logger.Debug(ctx, "session", "prompt.retract_failed",
			slog.Int("message_id", p.MessageID),
			slog.String("err", err.Error()),
		)
	}
}

func (f *Flow) notify(ctx context.Context, chatID int64, text string) {
	if _, err := f.tr.SendText(ctx, chatID, text); err != nil {
		logger.Warn(ctx, "session", "notify.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

func failureText(err error) string {
	if errors.Is(err, ErrNothingToShare) {
		return msgNothingToShare
	}
	return msgFinalizeFailed
}
