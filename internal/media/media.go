// Package media describes the files that flow through the bot: what arrives from
// users and what is sent back on delivery.
package media

import (
	"io"
	"path/filepath"
	"strings"
)

// Kind tags a media item.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	// KindUnsupported covers media the bot accepts into a session but cannot share,
	// such as voice notes or stickers.
	KindUnsupported Kind = "unsupported"
)

// Shareable reports whether items of this kind are persisted into bundles.
func (k Kind) Shareable() bool {
	switch k {
	case KindPhoto, KindVideo, KindDocument:
		return true
	}
	return false
}

// DefaultExt is the file extension used when neither a file name nor a sniffed type provides one.
func (k Kind) DefaultExt() string {
	switch k {
	case KindPhoto:
		return ".jpg"
	case KindVideo:
		return ".mp4"
	}
	return ".bin"
}

// Ref is an inbound media item still held by the transport.
type Ref struct {
	Kind Kind
	// FileID is the transport handle used to download the content.
	FileID   string
	FileName string
	MIME     string
	Size     int64
	// Source is the transport-specific type when Kind is KindUnsupported (e.g. "voice").
	Source    string
	ChatID    int64
	MessageID int
}

// Ext returns the extension carried by the original file name, lowercased.
func (r Ref) Ext() string {
	return strings.ToLower(filepath.Ext(r.FileName))
}

// Outgoing is a file ready to be sent to a chat.
type Outgoing struct {
	Kind     Kind
	FileName string
	MIME     string
	Body     io.Reader
}
