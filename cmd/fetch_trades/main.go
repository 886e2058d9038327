// fetch_trades - Prints and summarizes the trade activity log.
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

	limit := flag.Int("limit", 100, "number of entries to analyze")
	flag.Parse()

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

	trades, err := db.GetRecentTrades(*limit)
	if err != nil {
		fmt.Printf("❌ Query failed: %v\n", err)
		os.Exit(1)
	}

	if len(trades) == 0 {
		fmt.Println("📭 No trade history yet")
		return
	}

	fmt.Printf("📊 TRADE LOG - Last %d actions\n\n", len(trades))
	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	fmt.Println("│ TIME                │ ACTION  │ SIDE │ SIZE     │ PRICE  │ ASSET")
	fmt.Println("═══════════════════════════════════════════════════════════════════════")

	var bought, sold, buyNotional, sellNotional decimal.Decimal
	for _, t := range trades {
		fmt.Printf("│ %s │ %-7s │ %-4s │ %8s │ %s │ %s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"),
			t.Action, t.Side,
			t.Size.StringFixed(2), t.Price.StringFixed(3),
			shorten(t.Asset),
		)

		if t.Action != "FILL" {
			continue
		}
		if t.Side == types.Buy {
			bought = bought.Add(t.Size)
			buyNotional = buyNotional.Add(t.Size.Mul(t.Price))
		} else {
			sold = sold.Add(t.Size)
			sellNotional = sellNotional.Add(t.Size.Mul(t.Price))
		}
	}

	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	fmt.Printf("\n🟢 Bought: %s shares ($%s)\n", bought.StringFixed(2), buyNotional.StringFixed(2))
	fmt.Printf("🔴 Sold:   %s shares ($%s)\n", sold.StringFixed(2), sellNotional.StringFixed(2))
	fmt.Printf("💵 Net flow: $%s\n", sellNotional.Sub(buyNotional).StringFixed(2))
}

func shorten(id string) string {
	if len(id) > 16 {
		return id[:16] + "..."
	}
	return id
}
