package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/sharebot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens the pool and checks that the server answers.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(logger.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("target", cfg.String()),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxConns())
	db.SetMaxIdleConns(cfg.maxConns())
	logger.Info(ctx, "db", "db.connect",
		slog.String("target", cfg.String()),
		slog.Int("pool_open", cfg.maxConns()),
		slog.Duration("duration", took),
	)
	return db, nil
}

// waitReady pings the server until it answers or ctx ends. Used before
// migrations, which may run while the database container is still starting.
func waitReady(ctx context.Context, dsn string) error {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	tick := time.NewTicker(readyInterval)
	defer tick.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready: %w", err)
		case <-tick.C:
		}
	}
}
