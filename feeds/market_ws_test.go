package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testChannel(store *BookStore, triggers *[]string) *MarketChannel {
	return NewMarketChannel(
		"wss://unused.example",
		func() []string { return nil },
		store,
		func(market string) { *triggers = append(*triggers, market) },
		time.Second, time.Second,
	)
}

func TestProcessPriceChangeWithoutSnapshotDoesNotTrigger(t *testing.T) {
	store := NewBookStore()
	var triggers []string
	c := testChannel(store, &triggers)

	c.process([]byte(`{"event_type": "price_change", "market": "cond-1", "price_changes": [
		{"asset_id": "yes-1", "price": "0.41", "size": "25", "side": "BUY"}
	]}`))

	assert.Empty(t, triggers, "no book yet, nothing to evaluate")
	assert.False(t, store.Ready("cond-1"))
}

func TestProcessTriggersOnceBookIsTwoSided(t *testing.T) {
	store := NewBookStore()
	var triggers []string
	c := testChannel(store, &triggers)

	// One-sided snapshot: stored, but not evaluable.
	c.process([]byte(`{"event_type": "book", "market": "cond-1", "asset_id": "yes-1",
		"bids": [{"price": "0.40", "size": "50"}], "asks": []}`))
	assert.Empty(t, triggers)

	c.process([]byte(`{"event_type": "book", "market": "cond-1", "asset_id": "yes-1",
		"bids": [{"price": "0.40", "size": "50"}], "asks": [{"price": "0.45", "size": "50"}]}`))
	assert.Equal(t, []string{"cond-1"}, triggers)

	// With a two-sided book in place, deltas trigger too.
	c.process([]byte(`{"event_type": "price_change", "market": "cond-1", "price_changes": [
		{"asset_id": "yes-1", "price": "0.41", "size": "25", "side": "BUY"}
	]}`))
	assert.Equal(t, []string{"cond-1", "cond-1"}, triggers)
}

func TestProcessDropsUnparseableFrames(t *testing.T) {
	store := NewBookStore()
	var triggers []string
	c := testChannel(store, &triggers)

	c.process([]byte(`not json`))
	c.process([]byte(`{"event_type": "book", "market": "cond-1", "bids": [], "asks": []}`))

	assert.Empty(t, triggers)
}
