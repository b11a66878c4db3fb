package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands or callbacks, or arrive mid-flow.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	// PendingText answers text sent while the user still has a choice to make.
	PendingText() tele.HandlerFunc
}
