// add-market - Admin tool to add or update a market in the config store.
//
// The engine only reads market rows; this is the write side. Example:
//
//	go run ./cmd/add-market \
//	  -condition 0xabc... -question "Will X happen?" \
//	  -token1 123... -token2 456... \
//	  -mode MARKET_MAKING -trade-size 10 -max-size 100 -min-size 5
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/storage"
	"github.com/shaumne/poly-maker/types"
)

func main() {
	godotenv.Load()

	var (
		conditionID = flag.String("condition", "", "market condition id (required)")
		question    = flag.String("question", "", "market question")
		token1      = flag.String("token1", "", "YES outcome token id (required)")
		token2      = flag.String("token2", "", "NO outcome token id (required)")
		side        = flag.String("side", types.SideBoth, "side to trade: YES, NO or BOTH")
		mode        = flag.String("mode", types.ModeMarketMaking, "trading mode")
		target      = flag.String("target", "0", "target position for building modes")
		negRisk     = flag.Bool("neg-risk", false, "negative-risk market flag")
		active      = flag.Bool("active", true, "active flag")
		tradeSize   = flag.String("trade-size", "10", "order size per quote")
		maxSize     = flag.String("max-size", "100", "max position size")
		minSize     = flag.String("min-size", "5", "venue minimum order size")
		tickSize    = flag.String("tick-size", "0.01", "price tick size")
		multiplier  = flag.Int("multiplier", 0, "low-price size multiplier (0 = off)")
	)
	flag.Parse()

	if *conditionID == "" || *token1 == "" || *token2 == "" {
		fmt.Println("❌ -condition, -token1 and -token2 are required")
		flag.Usage()
		os.Exit(1)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/poly-maker.db"
	}

	db, err := storage.New(dbPath)
	if err != nil {
		fmt.Printf("❌ Database error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	row := &storage.MarketRow{
		ConditionID:    *conditionID,
		Question:       *question,
		Token1:         *token1,
		Token2:         *token2,
		SideToTrade:    *side,
		TradingMode:    *mode,
		TargetPosition: mustDecimal(*target),
		NegRisk:        *negRisk,
		Active:         *active,
		TradeSize:      mustDecimal(*tradeSize),
		MaxSize:        mustDecimal(*maxSize),
		MinSize:        mustDecimal(*minSize),
		TickSize:       mustDecimal(*tickSize),
		Multiplier:     *multiplier,
	}

	if err := db.SaveMarket(row); err != nil {
		fmt.Printf("❌ Save failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Market saved: %s (%s, %s)\n", row.ConditionID, row.TradingMode, row.SideToTrade)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		fmt.Printf("❌ Invalid decimal %q: %v\n", s, err)
		os.Exit(1)
	}
	return d
}
