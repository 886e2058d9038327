package feeds

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER BOOK STORE - Per-market bid/ask price levels
// ═══════════════════════════════════════════════════════════════════════════════
//
// Fed by the market channel: full snapshots replace both sides wholesale,
// price_change deltas upsert or delete a single level. Each book records the
// asset id of the snapshot that created it; deltas reported against the paired
// outcome token are ignored so the same book is never applied twice.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Level is a single price level
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// LevelQuote is the result of scanning one side of a book from the best price
// outward. Best is the first level with size above the requested minimum,
// SecondBest the next qualifying level after it, Top the absolute top of book
// regardless of size. The Has* flags distinguish "no such level" from a zero
// price.
type LevelQuote struct {
	Best           decimal.Decimal
	BestSize       decimal.Decimal
	SecondBest     decimal.Decimal
	SecondBestSize decimal.Decimal
	Top            decimal.Decimal
	HasBest        bool
	HasSecond      bool
	HasTop         bool
}

type book struct {
	mu      sync.RWMutex
	assetID string // primary outcome token this book is keyed by
	bids    []Level // ascending by price; best bid is the last element
	asks    []Level // ascending by price; best ask is the first element
}

// BookStore holds one order book per market condition id
type BookStore struct {
	mu    sync.RWMutex
	books map[string]*book
}

// NewBookStore creates an empty store
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[string]*book)}
}

// ApplySnapshot replaces both sides of the market's book and records the
// snapshot's asset id as the book's primary token.
func (s *BookStore) ApplySnapshot(market, assetID string, bids, asks []Level) {
	b := s.getOrCreate(market)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.assetID = assetID
	b.bids = sortedLevels(bids)
	b.asks = sortedLevels(asks)
}

// ApplyDelta upserts or deletes a single level. side is "BUY" for bids and
// "SELL" for asks. Deltas for an unknown market, or whose asset id does not
// match the book's primary token, are dropped. A zero size deletes the level;
// deleting an absent level is a no-op.
func (s *BookStore) ApplyDelta(market, side string, price, size decimal.Decimal, eventAssetID string) {
	s.mu.RLock()
	b, ok := s.books[market]
	s.mu.RUnlock()
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if eventAssetID != "" && eventAssetID != b.assetID {
		return
	}

	levels := &b.asks
	if side == "BUY" {
		levels = &b.bids
	}

	idx := sort.Search(len(*levels), func(i int) bool {
		return (*levels)[i].Price.GreaterThanOrEqual(price)
	})
	found := idx < len(*levels) && (*levels)[idx].Price.Equal(price)

	if size.IsZero() {
		if found {
			*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
		}
		return
	}

	if found {
		(*levels)[idx].Size = size
	} else {
		*levels = append(*levels, Level{})
		copy((*levels)[idx+1:], (*levels)[idx:])
		(*levels)[idx] = Level{Price: price, Size: size}
	}
}

// Ready reports whether the market's book holds data on both sides. Pricing
// must not run before this is true.
func (s *BookStore) Ready(market string) bool {
	s.mu.RLock()
	b, ok := s.books[market]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids) > 0 && len(b.asks) > 0
}

// BestBids scans the bid side from the highest price down for the first level
// with size above minSize. Returns an all-empty quote when the market has no
// book or no bids.
func (s *BookStore) BestBids(market string, minSize decimal.Decimal) LevelQuote {
	s.mu.RLock()
	b, ok := s.books[market]
	s.mu.RUnlock()
	if !ok {
		return LevelQuote{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return scanLevels(b.bids, minSize, true)
}

// BestAsks scans the ask side from the lowest price up for the first level
// with size above minSize.
func (s *BookStore) BestAsks(market string, minSize decimal.Decimal) LevelQuote {
	s.mu.RLock()
	b, ok := s.books[market]
	s.mu.RUnlock()
	if !ok {
		return LevelQuote{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return scanLevels(b.asks, minSize, false)
}

func (s *BookStore) getOrCreate(market string) *book {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[market]
	if !ok {
		b = &book{}
		s.books[market] = b
	}
	return b
}

// sortedLevels copies and sorts levels ascending by price, dropping zero sizes
// so an empty level is never stored.
func sortedLevels(in []Level) []Level {
	out := make([]Level, 0, len(in))
	for _, lvl := range in {
		if lvl.Size.GreaterThan(decimal.Zero) {
			out = append(out, lvl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// scanLevels walks the side from the best price outward. fromHigh walks the
// ascending slice backwards (bids); otherwise forwards (asks).
func scanLevels(levels []Level, minSize decimal.Decimal, fromHigh bool) LevelQuote {
	var q LevelQuote

	idx := func(i int) Level {
		if fromHigh {
			return levels[len(levels)-1-i]
		}
		return levels[i]
	}

	for i := 0; i < len(levels); i++ {
		lvl := idx(i)

		if !q.HasTop {
			q.Top = lvl.Price
			q.HasTop = true
		}

		if q.HasBest {
			q.SecondBest, q.SecondBestSize = lvl.Price, lvl.Size
			q.HasSecond = true
			break
		}

		if lvl.Size.GreaterThan(minSize) {
			q.Best, q.BestSize = lvl.Price, lvl.Size
			q.HasBest = true
		}
	}

	return q
}
