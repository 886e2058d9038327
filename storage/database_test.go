package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaumne/poly-maker/types"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func sampleMarket(conditionID string, active bool) *MarketRow {
	return &MarketRow{
		ConditionID: conditionID,
		Question:    "Will it rain?",
		Token1:      "yes-" + conditionID,
		Token2:      "no-" + conditionID,
		SideToTrade: types.SideBoth,
		TradingMode: types.ModeMarketMaking,
		Active:      active,
		TradeSize:   decimal.RequireFromString("10"),
		MaxSize:     decimal.RequireFromString("100"),
		MinSize:     decimal.RequireFromString("5"),
		TickSize:    decimal.RequireFromString("0.01"),
	}
}

func TestLoadActiveMarketsFiltersInactive(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveMarket(sampleMarket("cond-1", true)))
	require.NoError(t, db.SaveMarket(sampleMarket("cond-2", false)))

	markets, err := db.LoadActiveMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, "cond-1", m.ConditionID)
	assert.Equal(t, "yes-cond-1", m.Token1)
	assert.True(t, m.Params.TradeSize.Equal(decimal.RequireFromString("10")))
	assert.True(t, m.Params.TickSize.Equal(decimal.RequireFromString("0.01")))
}

func TestSaveMarketUpserts(t *testing.T) {
	db := testDB(t)

	row := sampleMarket("cond-1", true)
	require.NoError(t, db.SaveMarket(row))

	row.Active = false
	require.NoError(t, db.SaveMarket(row))

	markets, err := db.LoadActiveMarkets()
	require.NoError(t, err)
	assert.Empty(t, markets, "the second save deactivated the market, not duplicated it")
}

func TestTradeLogRoundTrip(t *testing.T) {
	db := testDB(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"PLACE", "FILL", "CANCEL"} {
		db.RecordTrade(types.TradeRecord{
			Market:    "cond-1",
			Asset:     "yes-cond-1",
			Side:      types.Buy,
			Action:    action,
			Price:     decimal.RequireFromString("0.41"),
			Size:      decimal.RequireFromString("10"),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	trades, err := db.GetRecentTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "CANCEL", trades[0].Action, "newest first")
	assert.Equal(t, "FILL", trades[1].Action)
	assert.True(t, trades[0].Price.Equal(decimal.RequireFromString("0.41")))
}
