package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shaumne/poly-maker/types"
)

func sizingInputs(mode string) SizingInputs {
	return SizingInputs{
		Mode:     mode,
		Params:   testParams(),
		BidPrice: d("0.40"),
	}
}

func TestComputeOrderSizesMarketMaking(t *testing.T) {
	tests := []struct {
		name         string
		position     string
		pairPosition string
		wantBuy      string
		wantSell     string
	}{
		{"flat quotes full trade size", "0", "0", "10", "0"},
		{"holding quotes both sides", "40", "0", "10", "10"},
		{"near cap buys only the headroom", "95", "0", "5", "10"},
		{"at cap keeps buying while exposure allows", "100", "50", "10", "10"},
		{"at cap stops once exposure hits twice the cap", "100", "100", "0", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sizingInputs(types.ModeMarketMaking)
			in.Position = d(tt.position)
			in.PairPosition = d(tt.pairPosition)

			buy, sell := ComputeOrderSizes(in)
			assert.True(t, buy.Equal(d(tt.wantBuy)), "buy %s want %s", buy, tt.wantBuy)
			assert.True(t, sell.Equal(d(tt.wantSell)), "sell %s want %s", sell, tt.wantSell)
		})
	}
}

func TestComputeOrderSizesPositionBuilding(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		position string
		wantBuy  string
		wantSell string
	}{
		{"below target buys toward it", "50", "20", "10", "0"},
		{"almost there buys the exact remainder", "50", "43", "7", "0"},
		{"over target sells down", "50", "60", "0", "10"},
		{"at target sells the trade size", "50", "50", "0", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sizingInputs(types.ModePositionBuilding)
			in.Target = d(tt.target)
			in.Position = d(tt.position)

			buy, sell := ComputeOrderSizes(in)
			assert.True(t, buy.Equal(d(tt.wantBuy)), "buy %s want %s", buy, tt.wantBuy)
			assert.True(t, sell.Equal(d(tt.wantSell)), "sell %s want %s", sell, tt.wantSell)
		})
	}
}

func TestComputeOrderSizesSellOnly(t *testing.T) {
	in := sizingInputs(types.ModeSellOnly)
	in.Position = d("25")

	buy, sell := ComputeOrderSizes(in)
	assert.True(t, buy.IsZero(), "sell-only never buys")
	assert.True(t, sell.Equal(d("10")), "sell %s", sell)

	in.Position = decimal.Zero
	buy, sell = ComputeOrderSizes(in)
	assert.True(t, buy.IsZero())
	assert.True(t, sell.IsZero(), "nothing held, nothing to sell")
}

func TestComputeOrderSizesHybridTakesProfitWhileBuilding(t *testing.T) {
	in := sizingInputs(types.ModeHybrid)
	in.Target = d("50")
	in.Position = d("20")

	buy, sell := ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("10")), "buy %s", buy)
	// 20% of the 20-share position is 4, under the 0.3x trade-size cap of 3,
	// so the cap binds.
	assert.True(t, sell.Equal(d("3")), "sell %s", sell)
}

func TestComputeOrderSizesHybridNoProfitTakeOnSmallPosition(t *testing.T) {
	in := sizingInputs(types.ModeHybrid)
	in.Target = d("50")
	in.Position = d("4") // under half a trade size

	buy, sell := ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("10")), "buy %s", buy)
	assert.True(t, sell.IsZero(), "position too small for profit taking")
}

func TestComputeOrderSizesHybridAtTargetMakesMarkets(t *testing.T) {
	in := sizingInputs(types.ModeHybrid)
	in.Target = d("50")
	in.Position = d("50")

	buy, sell := ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("10")), "buy %s", buy)
	assert.True(t, sell.Equal(d("10")), "sell %s", sell)
}

func TestAdjustBuySizeRoundsNearMissesUp(t *testing.T) {
	// A remainder above 70% of minSize but under it rounds up to minSize;
	// anything at or below 70% is left alone for the venue to reject or fill.
	in := sizingInputs(types.ModePositionBuilding)
	in.Target = d("50")
	in.Position = d("46") // remainder 4, band is (3.5, 5)

	buy, _ := ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("5")), "buy %s", buy)

	in.Position = d("46.5") // remainder exactly 3.5, on the boundary
	buy, _ = ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("3.5")), "buy %s", buy)

	in.Position = d("47") // remainder 3, below the band
	buy, _ = ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("3")), "buy %s", buy)
}

func TestAdjustBuySizeScalesLowPricedBids(t *testing.T) {
	in := sizingInputs(types.ModeMarketMaking)
	in.Params.Multiplier = 4
	in.BidPrice = d("0.08")

	buy, _ := ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("40")), "buy %s", buy)

	// At or above the cutoff the multiplier stays out of it.
	in.BidPrice = d("0.10")
	buy, _ = ComputeOrderSizes(in)
	assert.True(t, buy.Equal(d("10")), "buy %s", buy)
}
