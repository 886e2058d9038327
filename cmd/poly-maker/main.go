// poly-maker - Market-making agent for Polymarket binary-outcome markets
//
// Maintains a live order book view over the market websocket channel, tracks
// fills and order echoes over the user channel, and continuously quotes both
// sides of each configured market through the rate-limited CLOB API. A 5s
// poll reconciles positions and orders against the venue's REST snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/bot"
	"github.com/shaumne/poly-maker/config"
	"github.com/shaumne/poly-maker/core"
	"github.com/shaumne/poly-maker/exec"
	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/storage"
	"github.com/shaumne/poly-maker/strategy"
)

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("                    POLY-MAKER MARKET MAKER")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. Storage (market roster + trade log)
	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// 2. Venue client behind the rate gate
	gate := exec.NewRateGate()
	venue, err := exec.NewClient(exec.ClientConfig{
		CLOBURL:    cfg.CLOBURL,
		DataAPIURL: cfg.DataAPIURL,
		APIKey:     cfg.CLOBApiKey,
		APISecret:  cfg.CLOBApiSecret,
		Passphrase: cfg.CLOBPassphrase,
		PrivateKey: cfg.WalletPrivateKey,
		Funder:     cfg.FunderAddress,
		DryRun:     cfg.DryRun,
	}, gate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize venue client")
	}

	// 3. Shared engine state and book store
	state := core.NewState()
	books := feeds.NewBookStore()
	reconciler := core.NewReconciler(state, venue, cfg.StreamFreshWindow)

	// 4. Telegram bot (optional)
	var tgBot *bot.TelegramBot
	var alerter strategy.Alerter
	var notifier core.FillNotifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		balance := func() (decimal.Decimal, error) { return venue.GetBalance(ctx) }
		tgBot, err = bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, db, balance, cfg.DryRun)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram bot unavailable, continuing without it")
			tgBot = nil
		} else {
			alerter = tgBot
			notifier = tgBot
		}
	}

	// 5. Strategy evaluator and driver
	evaluator := strategy.NewEvaluator(state, books, venue, alerter, db)
	engine := core.NewEngine(core.EngineConfig{
		PollInterval:      cfg.PollInterval,
		MarketReloadEvery: cfg.MarketReloadEvery,
		MarkerTimeout:     cfg.MarkerTimeout,
		Wallet:            cfg.FunderAddress,
	}, state, books, reconciler, evaluator, db, notifier, db)
	if tgBot != nil {
		tgBot.SetEngine(engine)
	}

	// 6. Streaming channels
	marketChan := feeds.NewMarketChannel(
		cfg.MarketWSURL, state.AllTokens, books, engine.TriggerMarket,
		cfg.KeepaliveInterval, cfg.ReconnectDelay,
	)
	engine.SetMarketChannel(marketChan)

	userChan := feeds.NewUserChannel(
		cfg.UserWSURL,
		feeds.Credentials{APIKey: cfg.CLOBApiKey, Secret: cfg.CLOBApiSecret, Passphrase: cfg.CLOBPassphrase},
		engine,
		cfg.KeepaliveInterval, cfg.ReconnectDelay,
	)

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}

	go marketChan.Run(ctx)
	go userChan.Run(ctx)

	if tgBot != nil {
		tgBot.Start()
		tgBot.NotifyStartup()
	}

	log.Info().Bool("dry_run", cfg.DryRun).Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Received shutdown signal")
	cancel()
	engine.Wait()

	if tgBot != nil {
		tgBot.Stop()
	}

	log.Info().Msg("👋 Goodbye!")
}
