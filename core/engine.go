package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Central orchestrator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Market channel → Book store → eval queue → Evaluator → Venue
//   User channel   → Engine state (fills, orders) → eval queue
//   Poll loop      → Reconciler → Engine state
//
// Strategy evaluation is level-triggered: every qualifying book or user event
// enqueues the market for re-evaluation. Each market has its own queue of
// capacity one with latest-wins coalescing, so a burst of triggers costs at
// most one pending evaluation and nothing queues without bound.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketSource supplies the active market roster on each reload cycle.
type MarketSource interface {
	LoadActiveMarkets() ([]types.Market, error)
}

// Evaluator recomputes and maintains quotes for one market.
type Evaluator interface {
	Evaluate(ctx context.Context, market types.Market)
}

// FillNotifier receives fill notifications for the operator surface.
// May be nil.
type FillNotifier interface {
	FillReceived(question, side string, price, size decimal.Decimal)
}

// TradeRecorder appends to the trade activity log. May be nil.
type TradeRecorder interface {
	RecordTrade(rec types.TradeRecord)
}

// EngineConfig holds the driver's timing knobs.
type EngineConfig struct {
	PollInterval      time.Duration
	MarketReloadEvery int // reload roster every Nth poll tick
	MarkerTimeout     time.Duration
	Wallet            string // our address, for maker-leg matching
}

type evalQueue struct {
	ch   chan types.Market
	stop chan struct{}
}

// Engine drives the poll loop and reacts to user-channel events.
type Engine struct {
	cfg        EngineConfig
	state      *State
	books      *feeds.BookStore
	reconciler *Reconciler
	evaluator  Evaluator
	markets    MarketSource
	marketChan *feeds.MarketChannel
	notifier   FillNotifier
	recorder   TradeRecorder

	mu     sync.Mutex
	queues map[string]*evalQueue
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewEngine creates the driver. notifier may be nil.
func NewEngine(
	cfg EngineConfig,
	state *State,
	books *feeds.BookStore,
	reconciler *Reconciler,
	evaluator Evaluator,
	markets MarketSource,
	notifier FillNotifier,
	recorder TradeRecorder,
) *Engine {
	return &Engine{
		cfg:        cfg,
		state:      state,
		books:      books,
		reconciler: reconciler,
		evaluator:  evaluator,
		markets:    markets,
		notifier:   notifier,
		recorder:   recorder,
		queues:     make(map[string]*evalQueue),
	}
}

// SetMarketChannel hands the engine the market channel so roster changes can
// force a resubscribe. Called once during wiring, before Start.
func (e *Engine) SetMarketChannel(c *feeds.MarketChannel) {
	e.marketChan = c
}

// Start loads the roster, runs the initial full sync, and launches the poll
// loop. Blocks only for the initial sync.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx = ctx

	if err := e.reloadMarkets(); err != nil {
		return err
	}

	// Initial sync overwrites everything; nothing is in flight yet.
	if err := e.reconciler.RefreshPositions(ctx, false); err != nil {
		return err
	}
	if err := e.reconciler.RefreshOrders(ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.pollLoop(ctx)

	log.Info().Msg("⚡ Engine started")
	return nil
}

// Wait blocks until the poll loop and all eval workers have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ═══════════════════════════════════════════════════════════════════════════════
// POLL LOOP
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tick++

		e.state.EvictStaleMarkers(e.cfg.MarkerTimeout)

		if err := e.reconciler.RefreshPositions(ctx, true); err != nil {
			log.Warn().Err(err).Msg("Position refresh failed")
		}
		if err := e.reconciler.RefreshOrders(ctx); err != nil {
			log.Warn().Err(err).Msg("Order refresh failed")
		}

		if tick%e.cfg.MarketReloadEvery == 0 {
			if err := e.reloadMarkets(); err != nil {
				log.Warn().Err(err).Msg("Market reload failed, keeping current roster")
			}
		}
	}
}

// reloadMarkets rebuilds the roster wholesale from the config store. When
// the token set changes the market channel is kicked so the next connection
// subscribes to the new set.
func (e *Engine) reloadMarkets() error {
	before := tokenSet(e.state.AllTokens())

	markets, err := e.markets.LoadActiveMarkets()
	if err != nil {
		return err
	}
	e.state.SetMarkets(markets)
	e.pruneQueues(markets)

	after := tokenSet(e.state.AllTokens())
	if e.marketChan != nil && !sameSet(before, after) {
		log.Info().Int("tokens", len(after)).Msg("🔁 Token set changed, resubscribing")
		e.marketChan.Resubscribe()
	}
	return nil
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════
// EVALUATION QUEUES
// ═══════════════════════════════════════════════════════════════════════════════

// TriggerMarket enqueues a market for evaluation by condition id. Unknown
// markets are ignored; this is the callback wired into the market channel.
func (e *Engine) TriggerMarket(conditionID string) {
	market, ok := e.state.MarketByID(conditionID)
	if !ok {
		return
	}
	e.trigger(market)
}

// trigger enqueues with latest-wins coalescing: if the single slot is full,
// the stale entry is dropped in favor of the newer market snapshot.
func (e *Engine) trigger(market types.Market) {
	q := e.queue(market.ConditionID)

	select {
	case q.ch <- market:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- market:
	default:
	}
}

func (e *Engine) queue(conditionID string) *evalQueue {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[conditionID]
	if !ok {
		q = &evalQueue{ch: make(chan types.Market, 1), stop: make(chan struct{})}
		e.queues[conditionID] = q
		e.wg.Add(1)
		go e.evalWorker(q)
	}
	return q
}

func (e *Engine) evalWorker(q *evalQueue) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-q.stop:
			return
		case market := <-q.ch:
			e.evaluator.Evaluate(e.ctx, market)
		}
	}
}

// pruneQueues stops workers for markets no longer on the roster.
func (e *Engine) pruneQueues(markets []types.Market) {
	live := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		live[m.ConditionID] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, q := range e.queues {
		if _, ok := live[id]; !ok {
			close(q.stop)
			delete(e.queues, id)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// USER CHANNEL EVENTS
// ═══════════════════════════════════════════════════════════════════════════════

// HandleTrade folds a fill lifecycle event into engine state. Implements
// feeds.UserHandler.
func (e *Engine) HandleTrade(t feeds.UserTrade) {
	token, side, price, size := e.resolvePerspective(t)
	if token == "" {
		log.Warn().Str("trade", t.ID).Str("asset", t.AssetID).Msg("⚠️ Trade on unknown token pair, ignoring")
		return
	}

	switch t.Status {
	case types.TradeMatched:
		e.state.RecordFillMatched(token, side, t.ID)
		pos := e.state.ApplyFill(token, side, price, size)
		log.Info().
			Str("trade", t.ID).
			Str("token", token).
			Str("side", side).
			Str("price", price.String()).
			Str("size", size.String()).
			Str("position", pos.Size.String()).
			Msg("🤝 Fill matched")
		if e.recorder != nil {
			marketID := ""
			if m, ok := e.state.MarketForToken(token); ok {
				marketID = m.ConditionID
			}
			e.recorder.RecordTrade(types.TradeRecord{
				ID: t.ID, Market: marketID, Asset: token, Side: side,
				Action: "FILL", Price: price, Size: size, Timestamp: time.Now(),
			})
		}
		if e.notifier != nil {
			question := ""
			if m, ok := e.state.MarketForToken(token); ok {
				question = m.Question
			}
			e.notifier.FillReceived(question, side, price, size)
		}
		e.triggerToken(token)

	case types.TradeMined, types.TradeConfirmed:
		e.state.ResolveFill(token, side, t.ID)
		log.Debug().Str("trade", t.ID).Str("status", t.Status).Msg("Fill settled")
		e.triggerToken(token)

	case types.TradeFailed:
		e.state.ResolveFill(token, side, t.ID)
		log.Warn().Str("trade", t.ID).Msg("💥 Fill failed, resyncing positions")
		// The optimistic ApplyFill is now wrong; pull the authoritative
		// snapshot unconditionally.
		if err := e.reconciler.RefreshPositions(e.ctx, false); err != nil {
			log.Warn().Err(err).Msg("Position resync failed")
		}
		e.triggerToken(token)

	case types.TradeRetrying:
		log.Debug().Str("trade", t.ID).Msg("Fill retrying")

	default:
		log.Warn().Str("trade", t.ID).Str("status", t.Status).Msg("Unknown trade status")
	}
}

// resolvePerspective maps a trade event to our own economic leg. The venue
// reports a single trade from either party's viewpoint: when our wallet
// appears among the maker orders, the maker leg's amount and price are ours,
// and the side or token must be flipped depending on whether the maker
// outcome matches the taker outcome.
func (e *Engine) resolvePerspective(t feeds.UserTrade) (token, side string, price, size decimal.Decimal) {
	token, side, price, size = t.AssetID, t.Side, t.Price, t.Size

	for _, maker := range t.MakerOrders {
		if !strings.EqualFold(maker.MakerAddress, e.cfg.Wallet) {
			continue
		}
		price, size = maker.Price, maker.MatchedAmount
		if strings.EqualFold(maker.Outcome, t.Outcome) {
			side = oppositeSide(t.Side)
		} else {
			token = e.state.ReverseToken(t.AssetID)
		}
		break
	}

	if _, ok := e.state.MarketForToken(token); !ok {
		return "", "", decimal.Zero, decimal.Zero
	}
	return token, side, price, size
}

func oppositeSide(side string) string {
	if side == types.Buy {
		return types.Sell
	}
	return types.Buy
}

// HandleOrder keeps the resting slot pair in sync with our own order echo
// events. Implements feeds.UserHandler.
func (e *Engine) HandleOrder(o feeds.UserOrder) {
	switch o.Type {
	case types.OrderPlacement, types.OrderUpdate:
		remaining := o.OriginalSize.Sub(o.SizeMatched)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		e.state.SetOrder(o.AssetID, o.Side, o.Price, remaining)

	case types.OrderCancellation:
		e.state.SetOrder(o.AssetID, o.Side, decimal.Zero, decimal.Zero)

	default:
		log.Warn().Str("order", o.ID).Str("type", o.Type).Msg("Unknown order event type")
		return
	}

	log.Debug().
		Str("order", o.ID).
		Str("type", o.Type).
		Str("side", o.Side).
		Msg("📜 Order event")
	e.triggerToken(o.AssetID)
}

func (e *Engine) triggerToken(token string) {
	if market, ok := e.state.MarketForToken(token); ok {
		e.trigger(market)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// OPERATOR SURFACE
// ═══════════════════════════════════════════════════════════════════════════════

// PositionLine is one held position for display.
type PositionLine struct {
	Question string
	Token    string
	Size     decimal.Decimal
	AvgPrice decimal.Decimal
}

// StatusSnapshot summarizes engine state for the operator surface.
type StatusSnapshot struct {
	Markets         int
	Positions       []PositionLine
	Suspended       bool
	SuspendedReason string
}

// Status returns a read-only snapshot for display.
func (e *Engine) Status() StatusSnapshot {
	markets := e.state.Markets()
	suspended, reason := e.state.Suspended()

	snap := StatusSnapshot{
		Markets:         len(markets),
		Suspended:       suspended,
		SuspendedReason: reason,
	}
	for _, m := range markets {
		for _, token := range []string{m.Token1, m.Token2} {
			pos := e.state.Position(token)
			if pos.Size.IsPositive() {
				snap.Positions = append(snap.Positions, PositionLine{
					Question: m.Question,
					Token:    token,
					Size:     pos.Size,
					AvgPrice: pos.AvgPrice,
				})
			}
		}
	}
	return snap
}

// Resume clears a manual trading suspension.
func (e *Engine) Resume() {
	e.state.Resume()
}
