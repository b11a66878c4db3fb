package router

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/sharebot/core/logger"
	tg "github.com/m3rciful/sharebot/core/telegram"
	"github.com/m3rciful/sharebot/core/telegram/commands"
	"github.com/m3rciful/sharebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminIDs      []int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command, in name order.
// Aliases have no route of their own; MessageRoutes resolves them from text.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		h := guardCommand(name, cmds[name], opts)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}
	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// guardCommand adds the handler summary and, for admin-only commands, the admin check.
func guardCommand(name string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	h := commandSummary(name, def.Handler)
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminIDs: opts.AdminIDs,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	return h
}
