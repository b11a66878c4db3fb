package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/sharebot/core/logger"
)

// RunMigrations waits for the server and applies every pending up migration.
func RunMigrations(cfg Config) error {
	ctx, cancel := context.WithTimeout(logger.Background(), readyTimeout)
	defer cancel()

	if err := waitReady(ctx, cfg.URL()); err != nil {
		logger.Error(ctx, "db.migrate", "db.ready", slog.String("err", err.Error()))
		return err
	}

	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	set := loadMigrations(dir)
	preview, truncated := logger.SummarizeStrings(set.files, 6)
	logger.Debug(ctx, "db.migrate", "resolve",
		slog.String("path", dir),
		slog.Int("files_total", len(set.files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		logger.Error(ctx, "db.migrate", "init", slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "apply",
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	to, _, _ := m.Version()

	applied := set.between(uint64(from), uint64(to))
	if len(applied) > 0 {
		names, cut := logger.SummarizeStrings(applied, 6)
		logger.Debug(ctx, "db.migrate", "apply",
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", names),
			slog.Bool("files_truncated", cut),
		)
	}
	logger.Info(ctx, "db.migrate", "summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	return filepath.Abs(dir)
}

// migrationSet is the sorted list of up files in a migrations directory.
type migrationSet struct {
	files []string
}

// loadMigrations lists *.up.sql files. A missing directory yields an empty set
// and leaves the error to golang-migrate.
func loadMigrations(dir string) migrationSet {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return migrationSet{}
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return migrationSet{files: files}
}

// between returns the files with versions in (from, to].
func (s migrationSet) between(from, to uint64) []string {
	var out []string
	for _, f := range s.files {
		if v := migrationVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func migrationVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}
