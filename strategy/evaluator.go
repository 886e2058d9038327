package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/exec"
	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PER-MARKET EVALUATOR
// ═══════════════════════════════════════════════════════════════════════════════
//
// One evaluation takes the current book, position and resting orders for each
// quoted token of a market, computes the desired quote pair, and replaces the
// resting orders when they differ. Evaluations are level-triggered and may
// fire redundantly; unchanged quotes are detected and skipped before any
// venue call.
//
// ═══════════════════════════════════════════════════════════════════════════════

// EngineState is the slice of shared engine state evaluation reads and the
// order slots it writes back.
type EngineState interface {
	Position(token string) types.Position
	Orders(token string) types.OrderPair
	SetOrder(token, side string, price, size decimal.Decimal)
	ResetOrders(token string)
	TokenPerforming(token string) bool
	ReverseToken(token string) string
	Suspended() (bool, string)
	Suspend(reason string)
}

// Venue is the order surface evaluation drives.
type Venue interface {
	CreateOrder(ctx context.Context, tokenID, side string, price, size decimal.Decimal, negRisk bool) (exec.OrderResult, error)
	CancelAllAsset(ctx context.Context, tokenID string) error
}

// Alerter receives operator-facing notifications. May be nil.
type Alerter interface {
	TradingSuspended(reason string)
	OrderPlaced(question, token, side string, price, size decimal.Decimal)
}

// Recorder appends to the trade activity log. May be nil.
type Recorder interface {
	RecordTrade(rec types.TradeRecord)
}

// Evaluator computes and maintains quotes for markets.
type Evaluator struct {
	state    EngineState
	books    *feeds.BookStore
	venue    Venue
	alerter  Alerter
	recorder Recorder
}

// NewEvaluator wires an evaluator over shared state. alerter and recorder
// may be nil.
func NewEvaluator(state EngineState, books *feeds.BookStore, venue Venue, alerter Alerter, recorder Recorder) *Evaluator {
	return &Evaluator{state: state, books: books, venue: venue, alerter: alerter, recorder: recorder}
}

// Evaluate recomputes quotes for every quoted token of one market.
func (e *Evaluator) Evaluate(ctx context.Context, market types.Market) {
	if suspended, reason := e.state.Suspended(); suspended {
		log.Debug().Str("market", market.Question).Str("reason", reason).Msg("Evaluation skipped, trading suspended")
		return
	}
	if !market.Active {
		return
	}

	for _, token := range market.Tokens() {
		e.evaluateToken(ctx, market, token)
	}
}

func (e *Evaluator) evaluateToken(ctx context.Context, market types.Market, token string) {
	// Fills still settling for this token mean the position we'd size
	// against is in motion; the next trigger re-evaluates.
	if e.state.TokenPerforming(token) {
		log.Debug().Str("token", token).Msg("Evaluation skipped, fills settling")
		return
	}

	book := BookDetailsFor(e.books, market, token, market.Params.MinSize)
	if !book.Ready() {
		return
	}

	pos := e.state.Position(token)
	pairPos := e.state.Position(e.state.ReverseToken(token))

	bid, ask := ComputeQuotePrices(book, market.Params, pos.AvgPrice)
	buySize, sellSize := ComputeOrderSizes(SizingInputs{
		Mode:         market.TradingMode,
		Params:       market.Params,
		Target:       market.TargetPosition,
		Position:     pos.Size,
		PairPosition: pairPos.Size,
		BidPrice:     bid,
	})

	desired := types.OrderPair{}
	if buySize.IsPositive() {
		desired.Buy = types.OpenOrder{Price: bid, Size: buySize}
	}
	if sellSize.IsPositive() {
		desired.Sell = types.OpenOrder{Price: ask, Size: sellSize}
	}

	current := e.state.Orders(token)
	if quotesEqual(current, desired) {
		return
	}

	if err := e.replaceQuotes(ctx, market, token, current, desired); err != nil {
		log.Error().Err(err).Str("token", token).Msg("❌ Quote replacement failed")
	}
}

// replaceQuotes cancels the token's resting orders and places the desired
// pair. Venue rejections are not retried here; the next trigger recomputes
// from scratch. An account-restriction rejection suspends all trading.
func (e *Evaluator) replaceQuotes(ctx context.Context, market types.Market, token string, current, desired types.OrderPair) error {
	if current.Buy.Size.IsPositive() || current.Sell.Size.IsPositive() {
		if err := e.venue.CancelAllAsset(ctx, token); err != nil {
			return err
		}
	}
	e.state.ResetOrders(token)

	sides := []struct {
		side  string
		order types.OpenOrder
	}{
		{types.Buy, desired.Buy},
		{types.Sell, desired.Sell},
	}
	for _, s := range sides {
		if !s.order.Size.IsPositive() || !s.order.Price.IsPositive() {
			continue
		}
		result, err := e.venue.CreateOrder(ctx, token, s.side, s.order.Price, s.order.Size, market.NegRisk)
		if err != nil {
			return err
		}
		if !result.Success {
			e.handleRejection(market, token, s.side, result.ErrorCode)
			continue
		}
		e.state.SetOrder(token, s.side, s.order.Price, s.order.Size)
		e.record(types.TradeRecord{
			Market: market.ConditionID, Asset: token, Side: s.side,
			Action: "PLACE", Price: s.order.Price, Size: s.order.Size,
			Timestamp: time.Now(),
		})
		if e.alerter != nil {
			e.alerter.OrderPlaced(market.Question, token, s.side, s.order.Price, s.order.Size)
		}
	}
	return nil
}

func (e *Evaluator) handleRejection(market types.Market, token, side, code string) {
	if exec.IsRestriction(code) {
		e.state.Suspend(exec.DescribeCode(code))
		if e.alerter != nil {
			e.alerter.TradingSuspended(exec.DescribeCode(code))
		}
		e.record(types.TradeRecord{
			Market: market.ConditionID, Asset: token, Side: side,
			Action: "SUSPEND", Timestamp: time.Now(),
		})
	}
}

func (e *Evaluator) record(rec types.TradeRecord) {
	if e.recorder != nil {
		e.recorder.RecordTrade(rec)
	}
}

func quotesEqual(a, b types.OrderPair) bool {
	return openOrderEqual(a.Buy, b.Buy) && openOrderEqual(a.Sell, b.Sell)
}

func openOrderEqual(a, b types.OpenOrder) bool {
	return a.Price.Equal(b.Price) && a.Size.Equal(b.Size)
}
