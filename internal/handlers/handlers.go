// Package handlers adapts Telegram updates to the upload flow, link delivery
// and admin commands.
package handlers

import (
	"context"
	"log/slog"
	"slices"

	"github.com/m3rciful/sharebot/core/logger"
	tg "github.com/m3rciful/sharebot/core/telegram"
	"github.com/m3rciful/sharebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"
	"github.com/m3rciful/sharebot/core/telegram/middleware"
	"github.com/m3rciful/sharebot/core/telegram/router"
	"github.com/m3rciful/sharebot/core/telegram/ui"
	"github.com/m3rciful/sharebot/internal/delivery"
	"github.com/m3rciful/sharebot/internal/session"
	"github.com/m3rciful/sharebot/internal/transport"
	"github.com/m3rciful/sharebot/internal/upload"
	"github.com/m3rciful/sharebot/internal/users"

	tele "gopkg.in/telebot.v4"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Flow      *upload.Flow
	Sessions  *session.Store
	Resolver  *delivery.Resolver
	Transport transport.Transport
	Users     users.Directory
	Names     *users.NameResolver

	AdminIDs []int64
	// ForwardToAdmins forwards every upload from a non-admin to each admin.
	ForwardToAdmins bool
	// AllowedUploaders restricts uploads when non-empty.
	AllowedUploaders []int64
}

// Handlers serves every update the bot reacts to.
type Handlers struct {
	Deps
	registry *tg.Registry
}

var _ ui.FallbackProvider = (*Handlers)(nil)

// New builds handlers. A nil Users directory keeps users in memory.
func New(d Deps) *Handlers {
	if d.Users == nil {
		d.Users = users.NewMemory()
	}
	if d.Names == nil {
		d.Names = users.NewNameResolver(d.Transport.DisplayName, 0, 0)
	}
	return &Handlers{Deps: d}
}

// Register adds the bot commands and button callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	h.registry = reg
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{
			Handler:     h.onStart,
			Description: "Start the bot or open a share link",
		}},
		{"/help", commands.Command{
			Handler:     h.onHelp,
			Description: "Show available commands",
		}},
		{"/users", commands.Command{
			Handler:     h.onUsers,
			Description: "List known users",
			AdminOnly:   true,
			Aliases:     []string{"/user"},
		}},
		{"/broadcast", commands.Command{
			Handler:     h.onBroadcast,
			Description: "Send a message to every user",
			AdminOnly:   true,
			Aliases:     []string{"/msg"},
		}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	for _, category := range []string{upload.CategoryLinkExpiry, upload.CategoryDeleteAfter} {
		if err := reg.RegisterCallback(category, h.onButton); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	return nil
}

// Routes returns every bot route: commands, callbacks, text and media.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs:      h.AdminIDs,
		OnAdminReject: h.rejectNonAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: h.UnknownCallback()}))
	var flow middleware.PendingChecker
	if h.Sessions != nil {
		flow = h.Sessions
	}
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Media:         h.onMedia,
		Flow:          flow,
		Pending:       h.PendingText(),
		AdminIDs:      h.AdminIDs,
		OnAdminReject: h.rejectNonAdmin,
		UnknownText:   h.UnknownText(),
	})...)
	return routes
}

// Middleware records every sender in the users directory.
func (h *Handlers) Middleware() tg.Middleware {
	return tg.UseFunc("users", h.touch)
}

func (h *Handlers) touch(c tele.Context) {
	s := c.Sender()
	if s == nil || s.IsBot {
		return
	}
	ctx := tghelpers.BuildContext(c)
	err := h.Users.Touch(ctx, users.User{ID: s.ID, Username: s.Username, FirstName: s.FirstName})
	if err != nil {
		logger.Warn(ctx, "users", "touch.failed",
			slog.Int64("user_id", s.ID),
			slog.String("err", err.Error()),
		)
	}
}

// UnknownText answers text that is neither a command nor part of a flow.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgSendMedia)
	}
}

// UnknownCallback answers buttons the bot no longer knows.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: toastUnsupported})
	}
}

// PendingText reminds users with a live prompt to press a button.
func (h *Handlers) PendingText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgPickOption)
	}
}

func (h *Handlers) rejectNonAdmin(c tele.Context) error {
	return tghelpers.SendText(c, msgNotAdmin)
}

func (h *Handlers) isAdmin(userID int64) bool {
	return userID != 0 && slices.Contains(h.AdminIDs, userID)
}

func (h *Handlers) mayUpload(userID int64) bool {
	return len(h.AllowedUploaders) == 0 || slices.Contains(h.AllowedUploaders, userID) || h.isAdmin(userID)
}

func senderID(c tele.Context) int64 {
	if s := c.Sender(); s != nil {
		return s.ID
	}
	return 0
}

func chatID(c tele.Context) int64 {
	if ch := c.Chat(); ch != nil {
		return ch.ID
	}
	return senderID(c)
}

func contextFor(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}
