package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the maker
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Venue endpoints
	CLOBURL     string
	DataAPIURL  string
	MarketWSURL string
	UserWSURL   string

	// CLOB credentials (L2 auth)
	CLOBApiKey     string
	CLOBApiSecret  string
	CLOBPassphrase string

	// Wallet
	WalletPrivateKey string
	FunderAddress    string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Engine timing. The suppression window and marker timeout are empirical
	// venue constants; keep them tunable.
	PollInterval      time.Duration
	MarketReloadEvery int // reload config every Nth poll tick
	KeepaliveInterval time.Duration
	ReconnectDelay    time.Duration
	MarkerTimeout     time.Duration
	StreamFreshWindow time.Duration

	// Database (postgres:// URL or sqlite path)
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		CLOBURL:     getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		DataAPIURL:  getEnv("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
		MarketWSURL: getEnv("POLYMARKET_WS_MARKET_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		UserWSURL:   getEnv("POLYMARKET_WS_USER_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/user"),

		CLOBApiKey:     os.Getenv("CLOB_API_KEY"),
		CLOBApiSecret:  os.Getenv("CLOB_API_SECRET"),
		CLOBPassphrase: os.Getenv("CLOB_PASSPHRASE"),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		FunderAddress:    os.Getenv("FUNDER_ADDRESS"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		PollInterval:      getEnvDuration("POLL_INTERVAL", 5*time.Second),
		MarketReloadEvery: getEnvInt("MARKET_RELOAD_EVERY", 6),
		KeepaliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 5*time.Second),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		MarkerTimeout:     getEnvDuration("MARKER_TIMEOUT", 15*time.Second),
		StreamFreshWindow: getEnvDuration("STREAM_FRESH_WINDOW", 5*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "data/poly-maker.db"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if !cfg.DryRun {
		if cfg.CLOBApiKey == "" || cfg.CLOBApiSecret == "" || cfg.CLOBPassphrase == "" {
			return nil, fmt.Errorf("CLOB_API_KEY, CLOB_API_SECRET and CLOB_PASSPHRASE are required outside dry-run")
		}
		if cfg.FunderAddress == "" {
			return nil, fmt.Errorf("FUNDER_ADDRESS is required outside dry-run")
		}
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
