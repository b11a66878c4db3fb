// Package app wires the share bot together: storage, upload flow, delivery,
// handlers and the Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/m3rciful/sharebot/core/bootstrap"
	"github.com/m3rciful/sharebot/core/logger"
	tg "github.com/m3rciful/sharebot/core/telegram"
	tgsender "github.com/m3rciful/sharebot/core/telegram/sender"
	"github.com/m3rciful/sharebot/internal/blob"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/clock"
	"github.com/m3rciful/sharebot/internal/delivery"
	"github.com/m3rciful/sharebot/internal/handlers"
	"github.com/m3rciful/sharebot/internal/metrics"
	"github.com/m3rciful/sharebot/internal/session"
	"github.com/m3rciful/sharebot/internal/transport"
	"github.com/m3rciful/sharebot/internal/upload"
	"github.com/m3rciful/sharebot/internal/users"
)

const shutdownTimeout = 5 * time.Second

// App is a configured bot ready to run.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	transport *transport.Telebot
	scheduler *clock.Scheduler
	metrics   *metrics.Server
	outbound  tgsender.Observer
	registry  *tg.Registry
	handlers  *handlers.Handlers
}

// Bootstrap initializes logging and the optional database, then builds the app
// on the local filesystem.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: &cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, infra, afero.NewOsFs())
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

// New builds the app from already initialized infrastructure. Bundle files are
// stored on fs under share.storage_dir.
func New(cfg *Config, infra *bootstrap.Result, fs afero.Fs) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}
	a := &App{
		cfg:       cfg,
		infra:     infra,
		transport: transport.NewTelebot(),
		registry:  tg.NewRegistry(),
	}

	var obs metrics.Observer = metrics.Nop{}
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		p, err := metrics.NewPrometheusObserver(cfg.Metrics.Namespace, reg)
		if err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
		obs = p
		a.outbound = p
		a.metrics = metrics.NewServer(cfg.Metrics.Listen, reg)
	}

	blobs, err := blob.NewStore(fs, cfg.Share.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	bundles := bundle.NewStore(bundle.WithReleaser(blobs))
	sessions := session.NewStore()
	a.scheduler = clock.NewScheduler(clock.Real(), clock.WithPendingHook(obs.PendingDeletions))

	finalizer := upload.NewFinalizer(a.transport, blobs, bundles,
		upload.WithWorkers(cfg.Share.Workers),
		upload.WithObserver(obs),
	)

	var dir users.Directory = users.NewMemory()
	if infra.DB != nil {
		dir = users.NewPostgres(infra.DB)
	}

	a.handlers = handlers.New(handlers.Deps{
		Flow:             upload.NewFlow(sessions, a.transport, finalizer, obs),
		Sessions:         sessions,
		Resolver:         delivery.NewResolver(bundles, blobs, a.transport, a.scheduler, delivery.WithObserver(obs)),
		Transport:        a.transport,
		Users:            dir,
		AdminIDs:         cfg.Telegram.AdminIDs,
		ForwardToAdmins:  cfg.Share.ForwardToAdmins,
		AllowedUploaders: cfg.Share.AllowedUploaders,
	})
	if err := a.handlers.Register(a.registry); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	return a, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a == nil || a.handlers == nil {
		return tg.RunOptions{}, fmt.Errorf("app: not initialized")
	}
	return tg.RunOptions{
		Config:            &a.cfg.Config,
		Registry:          a.registry,
		DispatcherOptions: tgsender.Options{Observer: a.outbound},
		Middlewares:       tg.DefaultMiddlewares(a.handlers.Middleware()),
		Routes:            a.handlers.Routes(a.registry),
		OnStart:           a.start,
		OnStop:            a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	a.transport.Attach(rt.Bot)
	if a.metrics != nil {
		a.metrics.Start(ctx)
	}
	usersBackend := "memory"
	if a.infra.DB != nil {
		usersBackend = "postgres"
	}
	logger.Info(ctx, "app", "app.configured",
		slog.String("storage_dir", a.cfg.Share.StorageDir),
		slog.String("users", usersBackend),
		slog.Bool("metrics", a.metrics != nil),
		slog.Int("admins", len(a.cfg.Telegram.AdminIDs)),
		slog.Bool("forward_to_admins", a.cfg.Share.ForwardToAdmins),
	)
	return nil
}

// stop cancels pending deletions and releases the app's resources. Messages
// still scheduled for deletion stay in their chats.
func (a *App) stop(_ context.Context, _ tg.Runtime) error {
	pending := a.scheduler.Pending()
	a.scheduler.Close()
	if pending > 0 {
		logger.Warn(context.Background(), "scheduler", "deletions.dropped",
			slog.Int("count", pending),
		)
	}

	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.metrics.Shutdown(ctx))
		cancel()
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}
