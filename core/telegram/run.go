package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/sharebot/core/config"
	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"
	tgsender "github.com/m3rciful/sharebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to any endpoint tele.Bot.Handle accepts.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// DispatcherOptions override the sender section of Config field by field.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook leaves a registered webhook in place when long polling.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, runs it until ctx is done and then shuts it down.
// Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, rt.Bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if stopErr != nil {
		return stopErr
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// setup creates the bot and installs the dispatcher, middlewares, routes and
// command menus. Nothing is started yet.
func setup(ctx context.Context, opts RunOptions) (Runtime, error) {
	cfg := opts.Config
	poller, modeAttrs := newPoller(cfg)

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(),
		OnError: logBotError,
	})
	if err != nil {
		return Runtime{}, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.Info(ctx, "tg", "mode",
		append(modeAttrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))...)

	if _, polling := poller.(*tele.LongPoller); polling && !opts.KeepWebhook {
		removeWebhook(ctx, bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(dispatcherOptions(cfg, opts.DispatcherOptions))
	}
	tghelpers.SetDispatcher(dispatcher)

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	SetupCommands(bot, opts.Registry, cfg.Telegram.AdminIDs)

	return Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}, nil
}

// serve blocks until the poller returns or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

// A webhook left behind by an earlier deployment makes getUpdates fail.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("outcome", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "tg", "delete_webhook", slog.String("outcome", "ok"))
}

// dispatcherOptions starts from the sender config section and applies every
// non-zero field of override on top.
func dispatcherOptions(cfg *coreconfig.Config, override tgsender.Options) tgsender.Options {
	var o tgsender.Options
	if cfg != nil {
		o = tgsender.Options{
			QueueSize:    cfg.Sender.QueueSize,
			Workers:      cfg.Sender.Workers,
			MaxRetries:   cfg.Sender.MaxRetries,
			RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
		}
	}
	if override.QueueSize > 0 {
		o.QueueSize = override.QueueSize
	}
	if override.Workers > 0 {
		o.Workers = override.Workers
	}
	if override.MaxRetries > 0 {
		o.MaxRetries = override.MaxRetries
	}
	if override.RetryBackoff > 0 {
		o.RetryBackoff = override.RetryBackoff
	}
	if override.MaxDuration > 0 {
		o.MaxDuration = override.MaxDuration
	}
	if override.Observer != nil {
		o.Observer = override.Observer
	}
	return o
}

func logBotError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "bot.error",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
