package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun, "dry run is the default so a bare start never trades")
	assert.Equal(t, "https://clob.polymarket.com", cfg.CLOBURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 6, cfg.MarketReloadEvery)
	assert.Equal(t, 15*time.Second, cfg.MarkerTimeout)
	assert.Equal(t, "data/poly-maker.db", cfg.DatabasePath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("MARKET_RELOAD_EVERY", "3")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")
	t.Setenv("DEBUG", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MarketReloadEvery)
	assert.Equal(t, int64(123456), cfg.TelegramChatID)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadLiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("DRY_RUN", "false")

	_, err := Load()
	require.Error(t, err, "live trading without credentials must not start")

	t.Setenv("CLOB_API_KEY", "k")
	t.Setenv("CLOB_API_SECRET", "s")
	t.Setenv("CLOB_PASSPHRASE", "p")
	t.Setenv("FUNDER_ADDRESS", "0xabc")

	_, err = Load()
	assert.NoError(t, err)
}
