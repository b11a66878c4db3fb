package logger

import (
	"slices"
	"strings"
)

// Level names as they appear in log lines.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Outcomes recognised in the "outcome" field. Others are dropped.
var knownOutcomes = []string{
	"ok", "fail", "cancelled", "stale",
	"delivered", "partial", "expired", "not_found",
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, slices.Contains(knownOutcomes, outcome)
}

// defaultKeyOrder puts correlation fields first, then the fields the bot's
// components log most.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"kind",
	"outcome",
	"duration_ms",
	"token",
	"delivery_id",
	"stage",
	"items",
	"files",
	"bytes",
	"count",
	"pending_count",
	"task_id",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
