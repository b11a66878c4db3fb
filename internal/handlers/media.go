package handlers

import (
	"context"
	"log/slog"

	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/upload"

	tele "gopkg.in/telebot.v4"
)

// mediaRef maps a telebot message onto a media reference. ok is false for
// messages without any media.
func mediaRef(m *tele.Message) (ref media.Ref, ok bool) {
	if m == nil {
		return media.Ref{}, false
	}
	ref = media.Ref{MessageID: m.ID}
	if m.Chat != nil {
		ref.ChatID = m.Chat.ID
	}
	switch {
	case m.Photo != nil:
		ref.Kind = media.KindPhoto
		ref.FileID = m.Photo.FileID
		ref.Size = m.Photo.FileSize
	case m.Video != nil:
		ref.Kind = media.KindVideo
		ref.FileID = m.Video.FileID
		ref.FileName = m.Video.FileName
		ref.MIME = m.Video.MIME
		ref.Size = m.Video.FileSize
	case m.Animation != nil:
		// Animations also carry a document; they are not shared.
		ref.Kind = media.KindUnsupported
		ref.Source = "animation"
		ref.FileID = m.Animation.FileID
	case m.Document != nil:
		ref.Kind = media.KindDocument
		ref.FileID = m.Document.FileID
		ref.FileName = m.Document.FileName
		ref.MIME = m.Document.MIME
		ref.Size = m.Document.FileSize
	case m.Audio != nil:
		ref.Kind = media.KindUnsupported
		ref.Source = "audio"
		ref.FileID = m.Audio.FileID
	case m.Voice != nil:
		ref.Kind = media.KindUnsupported
		ref.Source = "voice"
		ref.FileID = m.Voice.FileID
	case m.Sticker != nil:
		ref.Kind = media.KindUnsupported
		ref.Source = "sticker"
		ref.FileID = m.Sticker.FileID
	case m.VideoNote != nil:
		ref.Kind = media.KindUnsupported
		ref.Source = "video_note"
		ref.FileID = m.VideoNote.FileID
	default:
		return media.Ref{}, false
	}
	return ref, true
}

func (h *Handlers) onMedia(c tele.Context) error {
	ref, ok := mediaRef(c.Message())
	if !ok {
		return nil
	}
	reply, err := h.media(contextFor(c), upload.MediaEvent{UserID: senderID(c), ChatID: chatID(c), Item: ref})
	if reply != "" {
		return tghelpers.SendText(c, reply)
	}
	return err
}

// media adds an item to the sender's upload. It returns a reply only when the
// upload is refused.
func (h *Handlers) media(ctx context.Context, ev upload.MediaEvent) (string, error) {
	if !h.mayUpload(ev.UserID) {
		logger.Info(ctx, "session", "upload.refused",
			slog.Int64("user_id", ev.UserID),
		)
		return msgUploadNotAllowed, nil
	}
	if h.ForwardToAdmins && !h.isAdmin(ev.UserID) {
		h.forwardToAdmins(ctx, ev.Item)
	}
	return "", h.Flow.HandleIncomingMedia(ctx, ev)
}

func (h *Handlers) forwardToAdmins(ctx context.Context, item media.Ref) {
	if item.MessageID == 0 || item.ChatID == 0 {
		return
	}
	for _, adminID := range h.AdminIDs {
		if err := h.Transport.Forward(ctx, adminID, item.ChatID, item.MessageID); err != nil {
			logger.Debug(ctx, "session", "forward.failed",
				slog.Int64("chat_id", adminID),
				slog.String("err", err.Error()),
			)
		}
	}
}
