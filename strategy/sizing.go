package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER SIZING
// ═══════════════════════════════════════════════════════════════════════════════

var (
	two            = decimal.NewFromInt(2)
	half           = decimal.NewFromFloat(0.5)
	profitFraction = decimal.NewFromFloat(0.2)
	profitCap      = decimal.NewFromFloat(0.3)
	roundUpFloor   = decimal.NewFromFloat(0.7)
	lowPriceCutoff = decimal.NewFromFloat(0.10)
)

// SizingInputs carries everything ComputeOrderSizes needs for one token.
type SizingInputs struct {
	Mode         string
	Params       types.StrategyParams
	Target       decimal.Decimal // target position for the building modes
	Position     decimal.Decimal // current size on this token
	PairPosition decimal.Decimal // current size on the complementary token
	BidPrice     decimal.Decimal // computed quote bid, for the low-price scaling
}

// ComputeOrderSizes dispatches on trading mode and returns the buy and sell
// sizes to quote. A zero size means do not quote that side.
func ComputeOrderSizes(in SizingInputs) (buy, sell decimal.Decimal) {
	p := in.Params

	switch in.Mode {
	case types.ModeSellOnly:
		sell = sellDown(in.Position, p.TradeSize)

	case types.ModePositionBuilding:
		if in.Position.LessThan(in.Target) {
			buy = decimal.Min(p.TradeSize, in.Target.Sub(in.Position))
		} else {
			sell = sellDown(in.Position, p.TradeSize)
		}

	case types.ModeHybrid:
		if in.Position.LessThan(in.Target) {
			buy = decimal.Min(p.TradeSize, in.Target.Sub(in.Position))
			// Take a little profit along the way once the position is
			// meaningful: 20% of it, capped at 0.3x the trade size.
			if in.Position.GreaterThanOrEqual(p.TradeSize.Mul(half)) {
				sell = decimal.Min(in.Position.Mul(profitFraction), p.TradeSize.Mul(profitCap))
			}
		} else {
			buy, sell = marketMakingSizes(in)
		}

	default: // MARKET_MAKING
		buy, sell = marketMakingSizes(in)
	}

	buy = adjustBuySize(buy, in.BidPrice, p)
	return buy, sell
}

func marketMakingSizes(in SizingInputs) (buy, sell decimal.Decimal) {
	p := in.Params

	if in.Position.LessThan(p.MaxSize) {
		buy = decimal.Min(p.TradeSize, p.MaxSize.Sub(in.Position))
	} else {
		// At the cap, keep quoting only while total two-sided exposure
		// stays under twice the cap.
		exposure := in.Position.Add(in.PairPosition)
		if exposure.LessThan(p.MaxSize.Mul(two)) {
			buy = p.TradeSize
		}
	}

	sell = sellDown(in.Position, p.TradeSize)
	return buy, sell
}

func sellDown(position, tradeSize decimal.Decimal) decimal.Decimal {
	if !position.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(position, tradeSize)
}

// adjustBuySize applies the venue-friendliness corrections: a near-miss of
// the minimum order size (above 70%, under 100% of minSize) rounds up to
// exactly minSize, and sub-0.10 bids scale the size by the configured
// multiplier to clear minimum-notional rules.
func adjustBuySize(buy, bidPrice decimal.Decimal, p types.StrategyParams) decimal.Decimal {
	if buy.IsZero() {
		return buy
	}

	if buy.LessThan(p.MinSize) && buy.GreaterThan(p.MinSize.Mul(roundUpFloor)) {
		buy = p.MinSize
	}

	if p.Multiplier > 0 && bidPrice.IsPositive() && bidPrice.LessThan(lowPriceCutoff) {
		buy = buy.Mul(decimal.NewFromInt(int64(p.Multiplier)))
	}

	return buy
}
