package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sharebot/core/config"
)

// capture runs fn against a handler writing to a buffer and returns the lines.
func capture(t *testing.T, format logFormat, component string, fn func(log *slog.Logger)) []string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	fn(slog.New(h).With("component", component))
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-123"), 42, 7, 9)
	lines := capture(t, formatKV, "session", func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "stage.changed",
			slog.String("stage", "awaiting_link_expiry"),
			slog.String("status", "OK"),
		)
	})
	require.Len(t, lines, 1)
	tokens := strings.Split(lines[0], " ")
	want := []string{"ts=", "level=INFO", "component=session", "event=stage.changed", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(want))
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
	assert.Contains(t, lines[0], "stage=awaiting_link_expiry")
}

func TestJSONLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-json"), 11, 22, 33)
	lines := capture(t, formatJSON, "upload", func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelError, "finalize.failed",
			slog.String("status", "fail"),
			slog.String("err", "download failed"),
		)
	})
	require.Len(t, lines, 1)
	pos := -1
	for _, pref := range []string{`{"ts":`, `"level":"ERROR"`, `"component":"upload"`, `"event":"finalize.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"download failed"`} {
		idx := strings.Index(lines[0], pref)
		require.Greater(t, idx, pos, "%s out of order in %s", pref, lines[0])
		pos = idx
	}
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "3f.co.lx", CompactRID("123:456:789"))
	assert.Equal(t, "not-a-rid", CompactRID(" not-a-rid "))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))

	ctx := WithRID(Background(), "12:34:56")
	kv := capture(t, formatKV, "app", func(log *slog.Logger) { LogEvent(ctx, log, slog.LevelInfo, "rid.test") })
	assert.Contains(t, kv[0], "rid="+CompactRID("12:34:56"))
	assert.NotContains(t, kv[0], "rid_full=")

	js := capture(t, formatJSON, "app", func(log *slog.Logger) { LogEvent(ctx, log, slog.LevelInfo, "rid.test") })
	assert.Contains(t, js[0], `"rid":"`+CompactRID("12:34:56")+`"`)
	assert.Contains(t, js[0], `"rid_full":"12:34:56"`)
	assert.Contains(t, js[0], `"ts_unix_nano"`)
}

func TestOutcomeNormalization(t *testing.T) {
	lines := capture(t, formatKV, "delivery", func(log *slog.Logger) {
		LogEvent(Background(), log, slog.LevelInfo, "bundle.redeemed", slog.String("outcome", "PARTIAL"))
		LogEvent(Background(), log, slog.LevelInfo, "bundle.redeemed", slog.String("outcome", "exploded"))
	})
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "outcome=partial")
	assert.NotContains(t, lines[1], "outcome=")
}

func TestValueNormalization(t *testing.T) {
	lines := capture(t, formatKV, "delivery", func(log *slog.Logger) {
		LogEvent(Background(), log, slog.LevelWarn, "",
			slog.Duration("duration", 1500*time.Microsecond),
			slog.Duration("backoff", 2*time.Second),
			slog.Any("err", errors.New("Post https://api.telegram.org/bot123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0/sendMessage: timeout")),
			slog.String("empty", "   "),
			slog.String("text", `say "hi"`),
			slog.Group("req", slog.Int("n", 3)),
		)
	})
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Contains(t, line, "event=unknown")
	assert.Contains(t, line, "duration_ms=2")
	assert.Contains(t, line, "backoff_ms=2000")
	assert.Contains(t, line, "bot<redacted>/sendMessage")
	assert.NotContains(t, line, "AAHdqTcv")
	assert.NotContains(t, line, "empty=")
	assert.Contains(t, line, `text="say \"hi\""`)
	assert.Contains(t, line, "req.n=3")
}

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 0)
	log := slog.New(newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: aw, format: formatKV}))
	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, aw.Close())
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "event=kept")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "plain text", Redact("plain text"))
	assert.Equal(t, "time 12:30", Redact("time 12:30"))
	assert.Equal(t, "token <redacted> leaked", Redact("token 7000000001:AAF-abcdefghijklmnopqrstuvwxyz_0123 leaked"))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\tc\n", Sanitize("a\x00b\tc\x7f\n\u200b"))
	assert.Equal(t, "héll", SanitizeLimit("héllo", 4))
	assert.Equal(t, "hi", SanitizeLimit("hi", 10))
	assert.Equal(t, "", SanitizeLimit("hi", 0))
}

func TestSampler(t *testing.T) {
	var s sampler
	assert.True(t, s.allow(), "unset sampler passes everything")

	s.set(ratio{Keep: 2, Every: 5})
	passed := 0
	for i := 0; i < 20; i++ {
		if s.allow() {
			passed++
		}
	}
	assert.Equal(t, 8, passed)

	s.set(ratio{})
	assert.True(t, s.allow())
}

func TestParseRatio(t *testing.T) {
	cases := map[string]ratio{
		"1/50": {Keep: 1, Every: 50},
		"10":   {Keep: 1, Every: 10},
		"9/3":  {Keep: 3, Every: 3},
	}
	for spec, want := range cases {
		got, ok := parseRatio(spec)
		assert.True(t, ok, spec)
		assert.Equal(t, want, got, spec)
	}
	_, ok := parseRatio("often")
	assert.False(t, ok)
}

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(nil)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelInfo, s.level)
	assert.Equal(t, defaultDebugSample, s.sample)

	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "Warning",
		Profile:     "DEV",
		KeysOrder:   "event, ts ,",
		DebugSample: "1/5",
		Dir:         "logs",
		BotFile:     "bot.log",
	}}
	s = settingsFrom(cfg)
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, formatKV, s.format, "dev profile prefers kv")
	assert.Equal(t, []string{"event", "ts"}, s.order)
	assert.Equal(t, ratio{Keep: 1, Every: 5}, s.sample)
	assert.Equal(t, "logs/bot.log", s.file)
	assert.Equal(t, "dev", s.profile)

	cfg.Logging.Format = "json"
	assert.Equal(t, formatJSON, settingsFrom(cfg).format)
}

func TestContextHelpers(t *testing.T) {
	var nilCtx context.Context
	assert.Equal(t, "", RIDFrom(nilCtx))
	assert.Equal(t, int64(0), UserIDFrom(nilCtx))

	ctx := WithHandler(WithUpdateMeta(nilCtx, 5, 6, 7), "cmd.start")
	assert.Equal(t, 5, UpdateIDFrom(ctx))
	assert.Equal(t, int64(6), UserIDFrom(ctx))
	assert.Equal(t, int64(7), ChatIDFrom(ctx))
	assert.Equal(t, "cmd.start", HandlerFrom(ctx))
	assert.Same(t, ctx, WithHandler(ctx, ""))

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, FromContext(WithLogger(ctx, custom)))
	assert.Same(t, L, FromContext(ctx))
}
