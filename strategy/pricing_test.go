package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quote(best, size, top string) feeds.LevelQuote {
	return feeds.LevelQuote{
		Best:     d(best),
		BestSize: d(size),
		Top:      d(top),
		HasBest:  true,
		HasTop:   true,
	}
}

func testParams() types.StrategyParams {
	return types.StrategyParams{
		TradeSize: d("10"),
		MaxSize:   d("100"),
		MinSize:   d("5"),
		TickSize:  d("0.01"),
	}
}

func TestComputeQuotePricesImprovesDeepLevels(t *testing.T) {
	book := BookDetails{
		Bid: quote("0.40", "50", "0.40"),
		Ask: quote("0.45", "50", "0.45"),
	}

	bid, ask := ComputeQuotePrices(book, testParams(), decimal.Zero)

	assert.True(t, bid.Equal(d("0.41")), "bid %s", bid)
	assert.True(t, ask.Equal(d("0.44")), "ask %s", ask)
}

func TestComputeQuotePricesJoinsThinLevels(t *testing.T) {
	// Resting size 5 is below the 1.5x minSize threshold of 7.5, so we join
	// rather than step past a level we'd immediately strand.
	book := BookDetails{
		Bid: quote("0.40", "5", "0.40"),
		Ask: quote("0.45", "50", "0.45"),
	}

	bid, ask := ComputeQuotePrices(book, testParams(), decimal.Zero)

	assert.True(t, bid.Equal(d("0.40")), "bid %s", bid)
	assert.True(t, ask.Equal(d("0.44")), "ask %s", ask)
}

func TestComputeQuotePricesImprovesAtExactThreshold(t *testing.T) {
	// A level resting exactly 1.5x minSize is deep enough to improve.
	book := BookDetails{
		Bid: quote("0.40", "7.5", "0.40"),
		Ask: quote("0.45", "7.5", "0.45"),
	}

	bid, ask := ComputeQuotePrices(book, testParams(), decimal.Zero)

	assert.True(t, bid.Equal(d("0.41")), "bid %s", bid)
	assert.True(t, ask.Equal(d("0.44")), "ask %s", ask)
}

func TestComputeQuotePricesClampsCrossingBid(t *testing.T) {
	// Improving the deep bid at 0.49 would land on the top ask. The bid
	// falls back to the top bid instead of crossing.
	book := BookDetails{
		Bid: quote("0.49", "50", "0.49"),
		Ask: quote("0.50", "3", "0.50"),
	}

	bid, ask := ComputeQuotePrices(book, testParams(), decimal.Zero)

	assert.True(t, bid.Equal(d("0.49")), "bid %s", bid)
	assert.True(t, bid.LessThan(book.Ask.Top), "bid must stay below top ask")
	assert.True(t, ask.Equal(d("0.50")), "ask %s", ask)
}

func TestComputeQuotePricesCollapseFallsBackToTops(t *testing.T) {
	// Both improvements land on 0.50; quoting bid==ask would self-cross, so
	// both sides retreat to their own top of book.
	book := BookDetails{
		Bid: quote("0.49", "50", "0.49"),
		Ask: quote("0.51", "50", "0.51"),
	}

	bid, ask := ComputeQuotePrices(book, testParams(), decimal.Zero)

	assert.True(t, bid.Equal(d("0.49")), "bid %s", bid)
	assert.True(t, ask.Equal(d("0.51")), "ask %s", ask)
}

func TestComputeQuotePricesSleepGuardHoldsAskAtEntry(t *testing.T) {
	book := BookDetails{
		Bid: quote("0.40", "50", "0.40"),
		Ask: quote("0.45", "50", "0.45"),
	}

	_, ask := ComputeQuotePrices(book, testParams(), d("0.60"))
	assert.True(t, ask.Equal(d("0.60")), "ask below entry must lift to avg, got %s", ask)

	// Not holding: guard is inert.
	_, ask = ComputeQuotePrices(book, testParams(), decimal.Zero)
	assert.True(t, ask.Equal(d("0.44")), "ask %s", ask)
}

func TestBookDetailsForComplementToken(t *testing.T) {
	store := feeds.NewBookStore()
	market := types.Market{ConditionID: "cond-1", Token1: "yes-token", Token2: "no-token"}

	store.ApplySnapshot("cond-1", "yes-token",
		[]feeds.Level{{Price: d("0.40"), Size: d("50")}},
		[]feeds.Level{{Price: d("0.45"), Size: d("50")}},
	)

	yes := BookDetailsFor(store, market, "yes-token", d("5"))
	require.True(t, yes.Ready())
	assert.True(t, yes.Bid.Best.Equal(d("0.40")))
	assert.True(t, yes.Ask.Best.Equal(d("0.45")))

	// The NO token reads the same book through 1-price with sides swapped:
	// a YES ask at 0.45 is a NO bid at 0.55.
	no := BookDetailsFor(store, market, "no-token", d("5"))
	require.True(t, no.Ready())
	assert.True(t, no.Bid.Best.Equal(d("0.55")), "no bid %s", no.Bid.Best)
	assert.True(t, no.Ask.Best.Equal(d("0.60")), "no ask %s", no.Ask.Best)
	assert.True(t, no.Bid.BestSize.Equal(d("50")), "sizes carry over unchanged")
}

func TestBookDetailsReady(t *testing.T) {
	assert.False(t, BookDetails{}.Ready())
	assert.False(t, BookDetails{Bid: quote("0.40", "50", "0.40")}.Ready())
	assert.True(t, BookDetails{
		Bid: quote("0.40", "50", "0.40"),
		Ask: quote("0.45", "50", "0.45"),
	}.Ready())
}
