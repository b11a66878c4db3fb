// Package bootstrap prepares process-wide infrastructure before the bot
// starts: logging first, then the optional Postgres database.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/sharebot/core/config"
	coredatabase "github.com/m3rciful/sharebot/core/database"
	"github.com/m3rciful/sharebot/core/logger"
)

// Options select what Run sets up. The function fields default to the real
// implementations and exist for tests.
type Options struct {
	Config *coreconfig.Config
	// Database may be nil or have no host; then no connection is made.
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Migrate    func(coredatabase.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
}

// Result holds what Run opened.
type Result struct {
	// DB is nil when no database is configured.
	DB *sqlx.DB
}

// Close releases the infrastructure opened by Run.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, with a database configured, applies the
// migrations and opens the connection pool.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if opts.Database == nil || !opts.Database.Enabled() {
		return &Result{}, nil
	}

	// Migrations wait for the server to accept connections, so they go first.
	if err := opts.Migrate(*opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	db, err := opts.Connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return &Result{DB: db}, nil
}
