package feeds

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lvl(price, size string) Level {
	return Level{Price: d(price), Size: d(size)}
}

func seedBook(t *testing.T) *BookStore {
	t.Helper()
	s := NewBookStore()
	s.ApplySnapshot("cond-1", "yes-1",
		[]Level{lvl("0.38", "200"), lvl("0.39", "3"), lvl("0.40", "50")},
		[]Level{lvl("0.45", "50"), lvl("0.46", "3"), lvl("0.47", "200")},
	)
	return s
}

func TestBestBidsScansForDepth(t *testing.T) {
	s := seedBook(t)

	q := s.BestBids("cond-1", d("5"))
	require.True(t, q.HasTop)
	require.True(t, q.HasBest)
	require.True(t, q.HasSecond)
	assert.True(t, q.Top.Equal(d("0.40")))
	assert.True(t, q.Best.Equal(d("0.40")), "top level is deep enough to qualify")
	assert.True(t, q.SecondBest.Equal(d("0.39")), "second best is the next level regardless of size")
}

func TestBestBidsSkipsThinTop(t *testing.T) {
	s := NewBookStore()
	s.ApplySnapshot("cond-1", "yes-1",
		[]Level{lvl("0.38", "200"), lvl("0.40", "2")},
		[]Level{lvl("0.45", "50")},
	)

	q := s.BestBids("cond-1", d("5"))
	assert.True(t, q.Top.Equal(d("0.40")), "top of book ignores size")
	assert.True(t, q.Best.Equal(d("0.38")), "best qualifying level skips the thin top")
}

func TestBestQuotesUnknownMarketAllEmpty(t *testing.T) {
	s := NewBookStore()

	q := s.BestBids("nope", d("5"))
	assert.False(t, q.HasTop)
	assert.False(t, q.HasBest)
	assert.False(t, q.HasSecond)
	assert.False(t, s.Ready("nope"))
}

func TestApplyDeltaUpsertsAndDeletes(t *testing.T) {
	s := seedBook(t)

	// Upsert an existing level.
	s.ApplyDelta("cond-1", "SELL", d("0.45"), d("80"), "yes-1")
	q := s.BestAsks("cond-1", d("5"))
	assert.True(t, q.BestSize.Equal(d("80")))

	// Insert a new better ask.
	s.ApplyDelta("cond-1", "SELL", d("0.44"), d("60"), "yes-1")
	q = s.BestAsks("cond-1", d("5"))
	assert.True(t, q.Best.Equal(d("0.44")))

	// Zero size deletes; deleting again is a no-op.
	s.ApplyDelta("cond-1", "SELL", d("0.44"), decimal.Zero, "yes-1")
	s.ApplyDelta("cond-1", "SELL", d("0.44"), decimal.Zero, "yes-1")
	q = s.BestAsks("cond-1", d("5"))
	assert.True(t, q.Best.Equal(d("0.45")))

	// Deleting a price that was never there changes nothing.
	s.ApplyDelta("cond-1", "BUY", d("0.33"), decimal.Zero, "yes-1")
	assert.True(t, s.BestBids("cond-1", d("5")).Best.Equal(d("0.40")))
}

func TestApplyDeltaIgnoresMismatchedAsset(t *testing.T) {
	s := seedBook(t)

	// The paired outcome token reports the same book mirrored; applying it
	// here would double-count, so the delta is dropped.
	s.ApplyDelta("cond-1", "BUY", d("0.55"), d("100"), "no-1")
	assert.True(t, s.BestBids("cond-1", d("5")).Best.Equal(d("0.40")))

	s.ApplyDelta("cond-1", "BUY", d("0.41"), d("100"), "unknown-market-token")
	assert.True(t, s.BestBids("cond-1", d("5")).Best.Equal(d("0.40")))
}

func TestApplySnapshotReplacesWholesale(t *testing.T) {
	s := seedBook(t)

	s.ApplySnapshot("cond-1", "yes-1",
		[]Level{lvl("0.30", "10")},
		[]Level{lvl("0.60", "10"), lvl("0.55", "0")},
	)

	bids := s.BestBids("cond-1", d("1"))
	asks := s.BestAsks("cond-1", d("1"))
	assert.True(t, bids.Best.Equal(d("0.30")), "old levels are gone")
	assert.True(t, asks.Best.Equal(d("0.60")), "zero-size levels are never stored")
	assert.False(t, asks.HasSecond)
}

func TestReady(t *testing.T) {
	s := NewBookStore()
	assert.False(t, s.Ready("cond-1"))

	s.ApplySnapshot("cond-1", "yes-1", []Level{lvl("0.40", "50")}, nil)
	assert.False(t, s.Ready("cond-1"), "one-sided book is not ready")

	s.ApplySnapshot("cond-1", "yes-1", []Level{lvl("0.40", "50")}, []Level{lvl("0.45", "50")})
	assert.True(t, s.Ready("cond-1"))
}
