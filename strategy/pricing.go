package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUOTE PRICING
// ═══════════════════════════════════════════════════════════════════════════════

var (
	one           = decimal.NewFromInt(1)
	thinThreshold = decimal.NewFromFloat(1.5)
)

// BookDetails is the per-token view of a market's book that pricing consumes.
// For the complementary (NO) token the quotes are derived from the primary
// book with price' = 1-price and the sides swapped.
type BookDetails struct {
	Bid feeds.LevelQuote
	Ask feeds.LevelQuote
}

// Ready reports whether both sides have at least a top-of-book level.
func (b BookDetails) Ready() bool {
	return b.Bid.HasTop && b.Ask.HasTop
}

// BookDetailsFor resolves book quotes for one outcome token of a market.
// The store holds a single book per market keyed by the primary token;
// the complement token reads the same book through the 1-price transform.
func BookDetailsFor(store *feeds.BookStore, market types.Market, token string, minSize decimal.Decimal) BookDetails {
	bids := store.BestBids(market.ConditionID, minSize)
	asks := store.BestAsks(market.ConditionID, minSize)

	if token == market.Token2 {
		// A bid for NO is an ask for YES at the complementary price.
		return BookDetails{Bid: complement(asks), Ask: complement(bids)}
	}
	return BookDetails{Bid: bids, Ask: asks}
}

func complement(q feeds.LevelQuote) feeds.LevelQuote {
	out := q
	if q.HasBest {
		out.Best = one.Sub(q.Best)
	}
	if q.HasSecond {
		out.SecondBest = one.Sub(q.SecondBest)
	}
	if q.HasTop {
		out.Top = one.Sub(q.Top)
	}
	return out
}

// ComputeQuotePrices derives the bid and ask to quote from book details.
//
// The candidate bid improves the best qualifying bid by one tick, and the
// candidate ask undercuts the best qualifying ask by one tick, unless the
// level being improved is thin (resting size below 1.5x minSize) in which
// case we join it instead of stepping past it. Both quotes are then
// clamped so the bid never crosses the opposing top-of-book and the ask
// never crosses the top bid. If the two collapse onto each other, both fall
// back to their own top-of-book. Finally, while holding inventory, the ask
// is never allowed below the average entry price.
func ComputeQuotePrices(book BookDetails, params types.StrategyParams, avgPrice decimal.Decimal) (bid, ask decimal.Decimal) {
	threshold := params.MinSize.Mul(thinThreshold)

	bid = book.Bid.Best
	if book.Bid.BestSize.GreaterThanOrEqual(threshold) {
		bid = bid.Add(params.TickSize)
	}

	ask = book.Ask.Best
	if book.Ask.BestSize.GreaterThanOrEqual(threshold) {
		ask = ask.Sub(params.TickSize)
	}

	if bid.GreaterThanOrEqual(book.Ask.Top) {
		bid = book.Bid.Top
	}
	if ask.LessThanOrEqual(book.Bid.Top) {
		ask = book.Ask.Top
	}
	if bid.Equal(ask) {
		bid = book.Bid.Top
		ask = book.Ask.Top
	}

	if avgPrice.IsPositive() && ask.LessThanOrEqual(avgPrice) {
		ask = avgPrice
	}

	return bid, ask
}
