package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = &Config{Telegram: TelegramConfig{Token: "t"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"missing token":     {},
		"unknown mode":      {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook no url":    {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{Listen: "0.0.0.0", Port: 8443}},
		"webhook no port":   {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{URL: "https://x", Listen: "0.0.0.0"}},
		"negative timeout":  {Telegram: TelegramConfig{Token: "t", LongPollTimeoutSeconds: -1}},
		"bad admin id":      {Telegram: TelegramConfig{Token: "t", AdminIDs: []int64{42, 0}}},
		"negative workers":  {Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{Workers: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

func TestNormalizeReportsAllProblems(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{RunMode: "webhook", AdminIDs: []int64{-1}},
		Sender:   SenderConfig{QueueSize: -5},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, want := range []string{"token is required", "webhook.url", "webhook.port", "admin_ids", "sender settings"} {
		assert.ErrorContains(t, err, want)
	}
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
}

func TestIsAdmin(t *testing.T) {
	tc := TelegramConfig{AdminIDs: []int64{7, 9}}
	assert.True(t, tc.IsAdmin(9))
	assert.False(t, tc.IsAdmin(8))
	assert.False(t, tc.IsAdmin(0))
	assert.False(t, TelegramConfig{}.IsAdmin(7))
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: from-file
  admin_ids: [1, 2]
sender:
  workers: 2
`), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_ADMIN_IDS", "5,6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []int64{5, 6}, cfg.Telegram.AdminIDs)
	assert.Equal(t, 2, cfg.Sender.Workers)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestDecodeMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "only-env")
	var cfg Config
	require.NoError(t, Decode(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
	assert.Equal(t, "only-env", cfg.Telegram.Token)
}

func TestDecodeBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram: [unclosed"), 0o600))
	var cfg Config
	assert.Error(t, Decode(path, &cfg))
}
