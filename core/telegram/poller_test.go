package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sharebot/core/config"
	tgsender "github.com/m3rciful/sharebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

func TestNewPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll

	p, attrs := newPoller(cfg)
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
	assert.Equal(t, "longpoll", attrs[0].Value.String())

	cfg.Telegram.LongPollTimeoutSeconds = 25
	p, _ = newPoller(cfg)
	assert.Equal(t, 25*time.Second, p.(*tele.LongPoller).Timeout)
}

func TestNewPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{URL: "https://bot.example.org/hook", Listen: "0.0.0.0", Port: 8443}

	p, attrs := newPoller(cfg)
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.org/hook", wh.Endpoint.PublicURL)
	assert.Len(t, attrs, 3)
}

type nopObserver struct{}

func (nopObserver) JobDone(string, int, error) {}

func TestDispatcherOptionsOverlay(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Sender = coreconfig.SenderConfig{QueueSize: 64, Workers: 2, MaxRetries: 1, RetryBackoffMS: 500}

	got := dispatcherOptions(cfg, tgsender.Options{Workers: 8, Observer: nopObserver{}})
	assert.Equal(t, 64, got.QueueSize)
	assert.Equal(t, 8, got.Workers)
	assert.Equal(t, 1, got.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, got.RetryBackoff)
	assert.NotNil(t, got.Observer)

	assert.Equal(t, tgsender.Options{}, dispatcherOptions(nil, tgsender.Options{}))
}
