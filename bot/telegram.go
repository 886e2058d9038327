package bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/core"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Operator notifications & control
// ═══════════════════════════════════════════════════════════════════════════════
//
// Features:
//   💰 Fill notifications
//   🛑 Suspension alerts (account restriction) with manual /resume clear
//   📊 /status, /positions, /trades snapshots
//
// ═══════════════════════════════════════════════════════════════════════════════

// EngineControl is the engine surface the bot drives.
type EngineControl interface {
	Status() core.StatusSnapshot
	Resume()
}

// TradeSource supplies trade history for /trades.
type TradeSource interface {
	GetRecentTrades(limit int) ([]types.TradeRecord, error)
}

// TelegramBot manages the Telegram interface.
type TelegramBot struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	engine  EngineControl
	trades  TradeSource
	balance func() (decimal.Decimal, error)
	dryRun  bool
}

// NewTelegramBot creates a Telegram bot bound to one authorized chat.
// trades and balance may be nil; the engine is attached with SetEngine once
// wiring completes.
func NewTelegramBot(token string, chatID int64, trades TradeSource, balance func() (decimal.Decimal, error), dryRun bool) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:     api,
		chatID:  chatID,
		stopCh:  make(chan struct{}),
		trades:  trades,
		balance: balance,
		dryRun:  dryRun,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")

	return bot, nil
}

// SetEngine attaches the engine control surface. Called once during wiring,
// before Start.
func (b *TelegramBot) SetEngine(engine EngineControl) {
	b.engine = engine
}

// Start begins listening for commands.
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot.
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// FillReceived sends a fill alert. Implements core.FillNotifier.
func (b *TelegramBot) FillReceived(question, side string, price, size decimal.Decimal) {
	emoji := "🟢"
	if side == types.Sell {
		emoji = "🔴"
	}

	msg := fmt.Sprintf(`%s *FILL* — %s

📊 %s
💵 Price: *%s¢*
📦 Size: *%s*`,
		emoji, side,
		question,
		price.Mul(decimal.NewFromInt(100)).StringFixed(1),
		size.StringFixed(2),
	)

	b.sendMarkdown(msg)
}

// OrderPlaced logs quote placements without messaging; only fills and
// suspensions reach the chat. Implements part of strategy.Alerter.
func (b *TelegramBot) OrderPlaced(question, token, side string, price, size decimal.Decimal) {
	log.Debug().Str("question", question).Str("side", side).Msg("Order placed")
}

// TradingSuspended sends the account-restriction alert. Implements part of
// strategy.Alerter.
func (b *TelegramBot) TradingSuspended(reason string) {
	msg := fmt.Sprintf(`🛑 *TRADING SUSPENDED*
━━━━━━━━━━━━━━━━━━━━

⚠️ %s

All order placement is halted.
Use /resume to clear after investigating.`, reason)

	b.sendMarkdown(msg)
}

// NotifyStartup sends the startup notification.
func (b *TelegramBot) NotifyStartup() {
	mode := "LIVE"
	if b.dryRun {
		mode = "DRY RUN"
	}

	balanceStr := "N/A"
	if b.balance != nil {
		if bal, err := b.balance(); err == nil {
			balanceStr = "$" + bal.StringFixed(2)
		}
	}

	msg := fmt.Sprintf(`🚀 *POLY-MAKER STARTED*
━━━━━━━━━━━━━━━━━━━━

📊 Mode: *%s*
💰 Balance: *%s*

Use /help for commands`, mode, balanceStr)

	b.sendMarkdown(msg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Only respond to the authorized chat
			if update.Message.Chat.ID != b.chatID {
				continue
			}

			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())

	switch cmd {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "balance":
		b.cmdBalance()
	case "positions":
		b.cmdPositions()
	case "trades":
		b.cmdTrades()
	case "resume":
		b.cmdResume()
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	msg := `🤖 *POLY-MAKER COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — Engine status
💰 /balance — Account balance
💼 /positions — Held positions
📜 /trades — Last 10 order actions
▶️ /resume — Clear trading suspension
🏓 /ping — Test connection`

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdStatus() {
	if b.engine == nil {
		b.send("❌ Engine not attached")
		return
	}
	snap := b.engine.Status()

	mode := "LIVE"
	if b.dryRun {
		mode = "DRY RUN"
	}

	state := "🟢 QUOTING"
	if snap.Suspended {
		state = "🛑 SUSPENDED — " + snap.SuspendedReason
	}

	msg := fmt.Sprintf(`📊 *ENGINE STATUS*
━━━━━━━━━━━━━━━━━━━━

%s
📊 Mode: *%s*
📋 Markets: *%d*
💼 Positions: *%d*`,
		state, mode, snap.Markets, len(snap.Positions))

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdBalance() {
	if b.balance == nil {
		b.send("❌ Balance not available")
		return
	}

	balance, err := b.balance()
	if err != nil {
		b.send("❌ Failed to fetch balance")
		return
	}

	b.sendMarkdown(fmt.Sprintf(`💰 *ACCOUNT BALANCE*
━━━━━━━━━━━━━━━━━━━━

💵 Available: *$%s*`,
		balance.StringFixed(2)))
}

func (b *TelegramBot) cmdPositions() {
	if b.engine == nil {
		b.send("❌ Engine not attached")
		return
	}
	snap := b.engine.Status()

	if len(snap.Positions) == 0 {
		b.send("📭 No held positions")
		return
	}

	msg := "💼 *HELD POSITIONS*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for i, pos := range snap.Positions {
		msg += fmt.Sprintf(`📊 *%s*
📦 Size: %s @ %s¢ avg

`,
			pos.Question,
			pos.Size.StringFixed(2),
			pos.AvgPrice.Mul(decimal.NewFromInt(100)).StringFixed(1),
		)

		if i >= 9 {
			msg += fmt.Sprintf("_... and %d more_", len(snap.Positions)-10)
			break
		}
	}

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdTrades() {
	if b.trades == nil {
		b.send("❌ Trade log not available")
		return
	}

	trades, err := b.trades.GetRecentTrades(10)
	if err != nil {
		b.send("❌ Failed to fetch trades")
		return
	}

	if len(trades) == 0 {
		b.send("📭 No trade history yet")
		return
	}

	msg := "📜 *LAST 10 ACTIONS*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for _, t := range trades {
		emoji := "📌"
		switch t.Action {
		case "PLACE":
			emoji = "✅"
		case "CANCEL":
			emoji = "🗑️"
		case "FILL":
			emoji = "🤝"
		case "SUSPEND":
			emoji = "🛑"
		}

		msg += fmt.Sprintf("%s %s %s @ %s¢ x%s\n   _%s_\n\n",
			emoji, t.Action, t.Side,
			t.Price.Mul(decimal.NewFromInt(100)).StringFixed(1),
			t.Size.StringFixed(2),
			t.Timestamp.Format("Jan 2 15:04"),
		)
	}

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdResume() {
	if b.engine == nil {
		b.send("❌ Engine not attached")
		return
	}
	b.engine.Resume()
	b.send("▶️ Trading resumed")
	log.Info().Msg("Trading resumed via Telegram")
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
