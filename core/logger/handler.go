package logger

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one line each, either key=value pairs or
// JSON, with well-known keys first in a fixed order.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	asJSON := h.cfg.format == formatJSON

	e := entry{}
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	e["level"] = normalizeLevel(r.Level.String())
	if asJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		e.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(h.prefix, a)
		return true
	})
	e.fromContext(ctx)

	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if asJSON {
				e.setDefault("rid_full", rid)
			}
			e["rid"] = short
		}
	}
	if e.str("event") == "" {
		e["event"] = cmp.Or(r.Message, "unknown")
	}
	if e.str("component") == "" {
		e["component"] = "app"
	}
	e.normalize()

	var buf bytes.Buffer
	keys := e.keys(h.cfg.keyOrder)
	if asJSON {
		if err := e.writeJSON(&buf, keys); err != nil {
			return err
		}
	} else {
		e.writeKV(&buf, keys)
	}
	buf.WriteByte('\n')
	return h.cfg.writer.Write(buf.Bytes())
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// entry holds the fields of one log line.
type entry map[string]any

func (e entry) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeAttr(key, v); ok {
		e[k] = val
	}
}

func (e entry) setDefault(key string, v any) {
	if _, ok := e[key]; !ok {
		e[key] = v
	}
}

func (e entry) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (e entry) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		e.setDefault("rid", rid)
	}
	if m, ok := value[updateMeta](ctx, keyUpdate); ok {
		if m.updateID != 0 {
			e.setDefault("update_id", int64(m.updateID))
		}
		if m.userID != 0 {
			e.setDefault("user_id", m.userID)
		}
		if m.chatID != 0 {
			e.setDefault("chat_id", m.chatID)
		}
	}
	if h := HandlerFrom(ctx); h != "" {
		e.setDefault("handler", h)
	}
}

// normalize canonicalizes enumerated values and drops empty ones.
func (e entry) normalize() {
	e["level"] = normalizeLevel(e.str("level"))
	if s := e.str("status"); s != "" {
		e["status"] = normalizeStatus(s)
	}
	if o := e.str("outcome"); o != "" {
		if canon, ok := normalizeOutcome(o); ok {
			e["outcome"] = canon
		} else {
			delete(e, "outcome")
		}
	}
	maps.DeleteFunc(e, func(_ string, v any) bool {
		switch x := v.(type) {
		case nil:
			return true
		case string:
			return x == ""
		}
		return false
	})
}

// keys returns the known keys in order, then the rest alphabetically.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	seen := make(map[string]bool, len(e))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(e)-len(out))
	for k := range e {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (e entry) writeJSON(buf *bytes.Buffer, keys []string) error {
	buf.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(e[k])
		if err != nil {
			return fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return nil
}

func (e entry) writeKV(buf *bytes.Buffer, keys []string) {
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(e[k]))
	}
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func normalizeAttr(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, cleanString(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case error:
		return key, cleanString(x.Error()), true
	case fmt.Stringer:
		return key, cleanString(x.String()), true
	case string:
		return key, cleanString(x), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func cleanString(s string) string {
	return Redact(strings.TrimSpace(s))
}

// durationKey appends the millisecond unit to key.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}
