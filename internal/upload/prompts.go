package upload

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/transport"
)

// Button categories as they appear in callback data.
const (
	CategoryLinkExpiry  = "linkexp"
	CategoryDeleteAfter = "delafter"
)

const (
	msgAskLinkExpiry  = "⏳ How long should the link stay active? Pick an option below."
	msgAskDeleteAfter = "🧹 How long after delivery should the files be deleted automatically?"
	msgLinkReady      = "✅ Your share link is ready!\nAnyone who opens it before it expires will receive the files."
	msgFinalizeFailed = "❌ Could not save your files. Please send them again."
	msgNothingToShare = "❌ None of the items you sent can be shared. Send photos, videos or documents."
)

func presetPrompt(text, category string) transport.Prompt {
	opts := make([]transport.Option, 0, len(lifetime.Presets))
	for _, p := range lifetime.Presets {
		opts = append(opts, transport.Option{Label: p.Label, Value: p.Lifetime.Value()})
	}
	return transport.Prompt{Text: text, Category: category, Options: opts, PerRow: 2}
}

// LinkExpiryPrompt is the first question asked after media arrives.
func LinkExpiryPrompt() transport.Prompt {
	return presetPrompt(msgAskLinkExpiry, CategoryLinkExpiry)
}

// DeleteAfterPrompt is the second question.
func DeleteAfterPrompt() transport.Prompt {
	return presetPrompt(msgAskDeleteAfter, CategoryDeleteAfter)
}

// ShareLink builds the deep link that redeems token.
func ShareLink(botUsername, token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, token)
}

// Receipt summarises a created bundle for the uploader.
type Receipt struct {
	Token       string
	Link        string
	LinkExpiry  string
	DeleteAfter string
	Files       int
	Skipped     int
	Bytes       int64
}

// Text renders the receipt message.
func (r Receipt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔗 Share link: %s\n", r.Link)
	fmt.Fprintf(&b, "⏳ Link expiry: %s\n", r.LinkExpiry)
	fmt.Fprintf(&b, "🧹 Deleted after delivery: %s\n", r.DeleteAfter)
	fmt.Fprintf(&b, "📦 Files: %d (%s)", r.Files, humanize.Bytes(uint64(r.Bytes)))
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "\n⚠️ Skipped %d unsupported item(s).", r.Skipped)
	}
	return b.String()
}
