package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Trading modes
const (
	ModeMarketMaking     = "MARKET_MAKING"
	ModePositionBuilding = "POSITION_BUILDING"
	ModeHybrid           = "HYBRID"
	ModeSellOnly         = "SELL_ONLY"
)

// Side restrictions (which outcome tokens of a market to quote)
const (
	SideYes  = "YES"
	SideNo   = "NO"
	SideBoth = "BOTH"
)

// Order sides
const (
	Buy  = "BUY"
	Sell = "SELL"
)

// Trade event lifecycle statuses (user channel)
const (
	TradeMatched   = "MATCHED"
	TradeMined     = "MINED"
	TradeConfirmed = "CONFIRMED"
	TradeRetrying  = "RETRYING"
	TradeFailed    = "FAILED"
)

// Order event types (user channel)
const (
	OrderPlacement    = "PLACEMENT"
	OrderUpdate       = "UPDATE"
	OrderCancellation = "CANCELLATION"
)

// StrategyParams holds the per-market quoting parameters. Immutable between
// config reloads.
type StrategyParams struct {
	TradeSize           decimal.Decimal
	MaxSize             decimal.Decimal
	MinSize             decimal.Decimal
	TickSize            decimal.Decimal
	MaxSpread           decimal.Decimal
	Multiplier          int // scales buy size on sub-0.10 quotes; 0 = disabled
	StopLossThreshold   decimal.Decimal
	TakeProfitThreshold decimal.Decimal
	VolatilityThreshold decimal.Decimal
	SpreadThreshold     decimal.Decimal
	SleepPeriod         int
	QuickCancelThresh   decimal.Decimal
	PositionPatience    int
}

// Market is one tradable binary market as loaded from the config store.
// Token1 is the YES outcome token, Token2 the NO outcome token.
type Market struct {
	ConditionID    string
	Question       string
	Token1         string
	Token2         string
	SideToTrade    string // YES, NO or BOTH
	TradingMode    string
	TargetPosition decimal.Decimal
	NegRisk        bool
	Active         bool
	Params         StrategyParams
}

// Tokens returns the outcome tokens the engine should quote for this market,
// honoring the side restriction.
func (m Market) Tokens() []string {
	switch m.SideToTrade {
	case SideYes:
		return []string{m.Token1}
	case SideNo:
		return []string{m.Token2}
	default:
		return []string{m.Token1, m.Token2}
	}
}

// Position is the running inventory for one outcome token.
// AvgPrice is recomputed only on size increases; reductions leave it alone.
type Position struct {
	Size     decimal.Decimal
	AvgPrice decimal.Decimal
}

// OpenOrder is the single resting order per token per side. A zero Size means
// the slot is empty.
type OpenOrder struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderPair groups the one allowed resting order per side for a token.
type OrderPair struct {
	Buy  OpenOrder
	Sell OpenOrder
}

// PositionRow is one entry of the authoritative position snapshot.
type PositionRow struct {
	Asset    string
	Size     decimal.Decimal
	AvgPrice decimal.Decimal
}

// OrderRow is one entry of the authoritative open-order snapshot.
type OrderRow struct {
	ID           string
	AssetID      string
	Side         string
	Price        decimal.Decimal
	OriginalSize decimal.Decimal
	SizeMatched  decimal.Decimal
}

// Remaining returns the unfilled portion of the order.
func (o OrderRow) Remaining() decimal.Decimal {
	return o.OriginalSize.Sub(o.SizeMatched)
}

// TradeRecord is a row of the trade activity log (storage + Telegram display).
type TradeRecord struct {
	ID        string
	Market    string
	Asset     string
	Side      string
	Action    string // PLACE, CANCEL, FILL, SKIP, SUSPEND
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}
