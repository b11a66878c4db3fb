package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRegistration is returned for empty names or nil handlers.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicate is returned when a name is already taken.
	ErrDuplicate = errors.New("telegram: already registered")
)

// Registry holds the bot's commands, callback handlers and fallbacks.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks get an
// "Unsupported action" toast until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds a command under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		wireWarn("register.command.skip", slog.String("name", name))
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		wireWarn("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("%w: command %s", ErrDuplicate, name)
	}
	r.commands[name] = cmd
	return nil
}

// LookupCommand finds a command by name or alias, with or without the slash,
// and returns its canonical name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands["/"+name]; ok {
		return "/" + name, cmd, true
	}
	for key, cmd := range r.commands {
		if cmd.HasAlias(name) {
			return key, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// Menu returns the commands shown to a user of the given role, sorted, without
// the leading slash as the Bot API expects.
func (r *Registry) Menu(admin bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var menu []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		if cmd := r.commands[name]; cmd.InMenu(admin) {
			menu = append(menu, tele.Command{Text: name[1:], Description: cmd.Description})
		}
	}
	return menu
}

// RegisterCallback binds a handler to a callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		wireWarn("register.callback.skip", slog.String("key", key))
		return fmt.Errorf("%w: callback %q", ErrInvalidRegistration, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		wireWarn("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("%w: callback %s", ErrDuplicate, key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callbacks. nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matches no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// SetupCommands publishes the command menus: the public one for everybody and
// the full one in each admin's private chat.
func SetupCommands(bot *tele.Bot, reg *Registry, adminIDs []int64) {
	if bot == nil || reg == nil {
		return
	}
	if err := bot.SetCommands(reg.Menu(false)); err != nil {
		logger.Error(context.Background(), "tg.wire", "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	adminMenu := reg.Menu(true)
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		if err := bot.SetCommands(adminMenu, scope); err != nil {
			wireWarn("register.commands.admin_scope_failed",
				slog.Int64("chat_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.Warn(context.Background(), "tg.wire", event, attrs...)
}
