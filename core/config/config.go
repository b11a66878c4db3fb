// Package config loads the settings shared by every bot: Telegram access,
// update delivery mode, logging and the outbound sender.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook receives updates through a webhook listener.
	RunModeWebhook = "webhook"
	// RunModeLongpoll receives updates with getUpdates.
	RunModeLongpoll = "longpoll"
)

// TelegramConfig holds the bot token and who administers the bot.
type TelegramConfig struct {
	Token    string  `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"TELEGRAM_ADMIN_IDS"`
	RunMode  string  `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 selects the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// IsAdmin reports whether userID is listed in AdminIDs.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	return userID != 0 && slices.Contains(t.AdminIDs, userID)
}

// WebhookConfig is required in webhook mode only.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig selects level, format and destinations of the logs.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile is "debug" or "prod"; debug forces the debug level.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// SenderConfig tunes the outbound dispatcher. Zero values select defaults.
type SenderConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

// Config is the part of a bot's configuration owned by core.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sender   SenderConfig   `yaml:"sender"`
}

// Load decodes and normalizes a core-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path, then lets environment variables
// override it. A missing file is fine; the bot can run from the environment.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize canonicalizes the run mode and reports every invalid setting at
// once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	cfg.Telegram.RunMode = canonicalRunMode(cfg.Telegram.RunMode)
	return errors.Join(
		cfg.Telegram.validate(),
		cfg.Webhook.validate(cfg.Telegram.RunMode),
		cfg.Sender.validate(),
	)
}

func canonicalRunMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "", "polling":
		return RunModeLongpoll
	default:
		return m
	}
}

func (t TelegramConfig) validate() error {
	var errs []error
	if strings.TrimSpace(t.Token) == "" {
		errs = append(errs, errors.New("telegram token is required"))
	}
	switch t.RunMode {
	case RunModeLongpoll, RunModeWebhook:
	default:
		errs = append(errs, fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode))
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}
	for _, id := range t.AdminIDs {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("telegram.admin_ids must contain positive user IDs, got %d", id))
		}
	}
	return errors.Join(errs...)
}

func (w WebhookConfig) validate(mode string) error {
	if mode != RunModeWebhook {
		return nil
	}
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
	}
	if w.Port <= 0 {
		errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
	}
	return errors.Join(errs...)
}

func (s SenderConfig) validate() error {
	if min(s.QueueSize, s.Workers, s.MaxRetries, s.RetryBackoffMS) < 0 {
		return errors.New("sender settings must be >= 0")
	}
	return nil
}
