// Package commands describes slash commands kept in the bot registry.
package commands

import (
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	// Hidden commands work but never appear in menus.
	Hidden bool
	// Aliases are extra names, with or without the leading slash.
	Aliases []string
}

// InMenu reports whether the command is listed in the menu shown to a user
// with the given role.
func (c Command) InMenu(admin bool) bool {
	return !c.Hidden && (admin || !c.AdminOnly)
}

// HasAlias reports whether name ("/x" or "x") is one of the aliases.
func (c Command) HasAlias(name string) bool {
	name = strings.TrimPrefix(name, "/")
	return slices.ContainsFunc(c.Aliases, func(a string) bool {
		return strings.TrimPrefix(a, "/") == name
	})
}
