package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaumne/poly-maker/exec"
	"github.com/shaumne/poly-maker/types"
)

// fakeVenue satisfies VenueClient with canned snapshots and call recording.
type fakeVenue struct {
	positions []types.PositionRow
	orders    []types.OrderRow
	cancelled []string
}

func (f *fakeVenue) CreateOrder(_ context.Context, tokenID, side string, price, size decimal.Decimal, negRisk bool) (exec.OrderResult, error) {
	return exec.OrderResult{Success: true, OrderID: "fake", Status: exec.StatusLive}, nil
}

func (f *fakeVenue) CancelAllAsset(_ context.Context, tokenID string) error {
	f.cancelled = append(f.cancelled, tokenID)
	return nil
}

func (f *fakeVenue) CancelAllMarket(_ context.Context, marketID string) error { return nil }

func (f *fakeVenue) GetAllPositions(_ context.Context) ([]types.PositionRow, error) {
	return f.positions, nil
}

func (f *fakeVenue) GetAllOrders(_ context.Context) ([]types.OrderRow, error) {
	return f.orders, nil
}

func (f *fakeVenue) GetBalance(_ context.Context) (decimal.Decimal, error) {
	return d("1000"), nil
}

func newTestReconciler(venue *fakeVenue) (*Reconciler, *State) {
	s := NewState()
	s.SetMarkets(testMarkets())
	return NewReconciler(s, venue, 5*time.Second), s
}

func TestRefreshPositionsOverwritesFromSnapshot(t *testing.T) {
	venue := &fakeVenue{positions: []types.PositionRow{
		{Asset: "yes-1", Size: d("40"), AvgPrice: d("0.42")},
	}}
	r, s := newTestReconciler(venue)

	require.NoError(t, r.RefreshPositions(context.Background(), false))

	pos := s.Position("yes-1")
	assert.True(t, pos.Size.Equal(d("40")))
	assert.True(t, pos.AvgPrice.Equal(d("0.42")))
	assert.True(t, s.Position("no-1").Size.IsZero())
}

func TestRefreshPositionsDustCountsAsFlat(t *testing.T) {
	venue := &fakeVenue{positions: []types.PositionRow{
		{Asset: "yes-1", Size: d("0.4"), AvgPrice: d("0.42")},
	}}
	r, s := newTestReconciler(venue)

	s.SetPosition("yes-1", types.Position{Size: d("0.4"), AvgPrice: d("0.42")})
	require.NoError(t, r.RefreshPositions(context.Background(), false))

	assert.True(t, s.Position("yes-1").Size.IsZero(), "sub-share residue is flat")
}

func TestRefreshPositionsAvgOnlyKeepsStreamedSizeWhileSettling(t *testing.T) {
	venue := &fakeVenue{positions: []types.PositionRow{
		{Asset: "yes-1", Size: d("10"), AvgPrice: d("0.45")},
	}}
	r, s := newTestReconciler(venue)

	// Stream got the fill first: 30 shares locally, snapshot lags at 10.
	s.SetPosition("yes-1", types.Position{Size: d("30"), AvgPrice: d("0.40")})
	s.RecordFillMatched("yes-1", types.Buy, "trade-a")

	require.NoError(t, r.RefreshPositions(context.Background(), true))

	pos := s.Position("yes-1")
	assert.True(t, pos.Size.Equal(d("30")), "streamed size wins while settling, got %s", pos.Size)
	assert.True(t, pos.AvgPrice.Equal(d("0.45")), "snapshot average is still authoritative")

	// Once the marker clears the snapshot overwrites everything again.
	s.ResolveFill("yes-1", types.Buy, "trade-a")
	require.NoError(t, r.RefreshPositions(context.Background(), true))
	assert.True(t, s.Position("yes-1").Size.Equal(d("10")))
}

func TestRefreshPositionsAvgOnlyRespectsStreamFreshWindow(t *testing.T) {
	venue := &fakeVenue{positions: []types.PositionRow{
		{Asset: "yes-1", Size: d("10"), AvgPrice: d("0.45")},
	}}
	r, s := newTestReconciler(venue)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.ApplyFill("yes-1", types.Buy, d("0.40"), d("30"))

	require.NoError(t, r.RefreshPositions(context.Background(), true))
	assert.True(t, s.Position("yes-1").Size.Equal(d("30")), "fresh stream write suppresses the poll")

	now = now.Add(6 * time.Second)
	require.NoError(t, r.RefreshPositions(context.Background(), true))
	assert.True(t, s.Position("yes-1").Size.Equal(d("10")), "stale stream write yields to the snapshot")
}

func TestRefreshPositionsAvgOnlyKeepsPositionsAbsentFromSnapshot(t *testing.T) {
	// The data-api can lag a settled fill by well over the fresh window.
	venue := &fakeVenue{}
	r, s := newTestReconciler(venue)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RecordFillMatched("yes-1", types.Buy, "trade-a")
	s.ApplyFill("yes-1", types.Buy, d("0.40"), d("30"))
	s.ResolveFill("yes-1", types.Buy, "trade-a")
	now = now.Add(6 * time.Second)

	require.NoError(t, r.RefreshPositions(context.Background(), true))
	assert.True(t, s.Position("yes-1").Size.Equal(d("30")),
		"a row the snapshot hasn't surfaced yet is no news, not flat")

	// The initial full sync is still authoritative for absent tokens.
	require.NoError(t, r.RefreshPositions(context.Background(), false))
	assert.True(t, s.Position("yes-1").Size.IsZero())
}

func TestRefreshOrdersRebuildsSlots(t *testing.T) {
	venue := &fakeVenue{orders: []types.OrderRow{
		{ID: "o-1", AssetID: "yes-1", Side: types.Buy, Price: d("0.41"), OriginalSize: d("10"), SizeMatched: d("4")},
		{ID: "o-2", AssetID: "yes-1", Side: types.Sell, Price: d("0.44"), OriginalSize: d("10")},
	}}
	r, s := newTestReconciler(venue)

	// A stale slot from an order the venue no longer reports.
	s.SetOrder("no-1", types.Buy, d("0.30"), d("10"))

	require.NoError(t, r.RefreshOrders(context.Background()))

	pair := s.Orders("yes-1")
	assert.True(t, pair.Buy.Price.Equal(d("0.41")))
	assert.True(t, pair.Buy.Size.Equal(d("6")), "slot tracks the unfilled remainder")
	assert.True(t, pair.Sell.Size.Equal(d("10")))
	assert.True(t, s.Orders("no-1").Buy.Size.IsZero(), "vanished orders clear their slot")
}

func TestRefreshOrdersHealsDuplicates(t *testing.T) {
	venue := &fakeVenue{orders: []types.OrderRow{
		{ID: "o-1", AssetID: "yes-1", Side: types.Buy, Price: d("0.41"), OriginalSize: d("10")},
		{ID: "o-2", AssetID: "yes-1", Side: types.Buy, Price: d("0.40"), OriginalSize: d("10")},
	}}
	r, s := newTestReconciler(venue)

	require.NoError(t, r.RefreshOrders(context.Background()))

	assert.Equal(t, []string{"yes-1"}, venue.cancelled, "duplicate slot cancels the whole asset")
	assert.True(t, s.Orders("yes-1").Buy.Size.IsZero(), "slot reset for a clean requote")
}
