// Package logger provides the bot's structured logging: a slog handler writing
// key=value or JSON lines asynchronously, request correlation through context,
// and component-scoped helpers.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/sharebot/core/buildinfo"
	coreconfig "github.com/m3rciful/sharebot/core/config"
)

var defaultDebugSample = ratio{Keep: 1, Every: 50}

var (
	initOnce sync.Once

	shutdownMu sync.Mutex
	closed     bool
	logWriter  *asyncWriter
	logFiles   []io.Closer

	levelVar     slog.LevelVar
	debugSampler sampler
	traceAll     bool

	// L is the process-wide logger. It is slog.Default() until InitLogger runs.
	L *slog.Logger
)

func init() {
	L = slog.Default()
	debugSampler.set(defaultDebugSample)
}

// settings is the logging configuration after defaults are applied.
type settings struct {
	level   slog.Level
	format  logFormat
	order   []string
	sample  ratio
	file    string
	profile string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		level:   slog.LevelInfo,
		format:  formatJSON,
		order:   defaultKeyOrder,
		sample:  defaultDebugSample,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		if r, ok := parseRatio(spec); ok {
			// "0" or "0/n" disables sampling.
			s.sample = r
		}
	}

	if dir, file := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && file != "" {
		s.file = filepath.Join(dir, file)
	}
	return s
}

// InitLogger installs the structured logger as slog's default. Only the first
// call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		debugSampler.set(s.sample)
		traceAll = envFlag("LOG_TRACE") || envFlag("TRACE")

		sinks := []io.Writer{os.Stdout}
		if s.file != "" {
			f, openErr := openLogFile(s.file)
			if openErr != nil {
				// Stdout alone is still useful.
				log.Printf("logger: %v", openErr)
			} else {
				sinks = append(sinks, f)
				logFiles = append(logFiles, f)
			}
		}
		logWriter = newAsyncWriter(sinks, defaultWriterBuffer)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   s.format,
			keyOrder: s.order,
		}))
		slog.SetDefault(L)

		Info(Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown flushes pending lines and closes log files. Later calls do nothing.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, f := range logFiles {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background is context.Background, for call sites without a request context.
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs under the given event name. A nil logg falls back to the
// one carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to a component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name != "" {
		return L.With("component", name)
	}
	return L
}

// Event logs one event for a component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug detail should be logged.
// LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceAll || debugSampler.allow()
}
