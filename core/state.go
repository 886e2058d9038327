package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE STATE
// ═══════════════════════════════════════════════════════════════════════════════
//
// In-memory mirror of our venue-side footprint: positions, resting order
// slots, performing-fill markers and the market roster. The streaming channels
// and the reconciliation poll both write here; strategy evaluation only
// reads. All access goes through the mutex, and every accessor returns
// copies so callers never hold references into guarded maps.
//
// ═══════════════════════════════════════════════════════════════════════════════

// marker tracks an in-flight fill burst for one token+side. It suppresses the
// position poll from clobbering stream-derived sizes while trades settle.
type marker struct {
	trades   map[string]struct{}
	lastSeen time.Time
}

// State is the shared engine state.
type State struct {
	mu sync.RWMutex

	positions map[string]types.Position  // token -> position
	orders    map[string]types.OrderPair // token -> resting order slots

	performing      map[string]*marker   // token_side -> in-flight fill marker
	lastTradeUpdate map[string]time.Time // token -> last stream-derived position write

	markets       []types.Market
	marketByID    map[string]types.Market // condition id -> market
	marketByToken map[string]types.Market // either outcome token -> market
	reverseTokens map[string]string       // token -> complementary token

	suspended       bool
	suspendedReason string

	now func() time.Time
}

// NewState creates empty engine state.
func NewState() *State {
	return &State{
		positions:       make(map[string]types.Position),
		orders:          make(map[string]types.OrderPair),
		performing:      make(map[string]*marker),
		lastTradeUpdate: make(map[string]time.Time),
		marketByID:      make(map[string]types.Market),
		marketByToken:   make(map[string]types.Market),
		reverseTokens:   make(map[string]string),
		now:             time.Now,
	}
}

func markerKey(token, side string) string {
	return token + "_" + side
}

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET ROSTER
// ═══════════════════════════════════════════════════════════════════════════════

// SetMarkets replaces the market roster wholesale. The token lookup tables
// are rebuilt from scratch so removed markets leave no stale mappings.
func (s *State) SetMarkets(markets []types.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markets = make([]types.Market, len(markets))
	copy(s.markets, markets)

	s.marketByID = make(map[string]types.Market, len(markets))
	s.marketByToken = make(map[string]types.Market, len(markets)*2)
	s.reverseTokens = make(map[string]string, len(markets)*2)
	for _, m := range markets {
		s.marketByID[m.ConditionID] = m
		s.marketByToken[m.Token1] = m
		s.marketByToken[m.Token2] = m
		s.reverseTokens[m.Token1] = m.Token2
		s.reverseTokens[m.Token2] = m.Token1
	}

	log.Info().Int("markets", len(markets)).Msg("📋 Market roster updated")
}

// Markets returns a copy of the current roster.
func (s *State) Markets() []types.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Market, len(s.markets))
	copy(out, s.markets)
	return out
}

// MarketByID resolves a market by its condition identifier.
func (s *State) MarketByID(conditionID string) (types.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.marketByID[conditionID]
	return m, ok
}

// MarketForToken resolves the market either outcome token belongs to.
func (s *State) MarketForToken(token string) (types.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.marketByToken[token]
	return m, ok
}

// ReverseToken returns the complementary outcome token, or "" if unknown.
func (s *State) ReverseToken(token string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reverseTokens[token]
}

// AllTokens returns every outcome token across the roster, quoted sides first.
func (s *State) AllTokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]string, 0, len(s.markets)*2)
	seen := make(map[string]struct{}, len(s.markets)*2)
	for _, m := range s.markets {
		for _, t := range []string{m.Token1, m.Token2} {
			if _, dup := seen[t]; !dup && t != "" {
				seen[t] = struct{}{}
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSITIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Position returns the tracked position for a token.
func (s *State) Position(token string) types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.positions[token]
}

// SetPosition overwrites a token's position from an authoritative snapshot.
func (s *State) SetPosition(token string, pos types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos.Size.IsZero() {
		delete(s.positions, token)
		return
	}
	s.positions[token] = pos
}

// SetAvgPrice overwrites only the average price, keeping the streamed size.
// Used by the avg-only reconciliation pass.
func (s *State) SetAvgPrice(token string, avg decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[token]
	if !ok {
		return
	}
	pos.AvgPrice = avg
	s.positions[token] = pos
}

// ApplyFill folds a matched trade into the tracked position. Buys grow the
// position and recompute the average entry price; sells only shrink size.
// The token is stamped so the poll loop leaves it alone while fresh.
func (s *State) ApplyFill(token, side string, price, size decimal.Decimal) types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[token]

	if side == types.Buy {
		newSize := pos.Size.Add(size)
		if newSize.IsPositive() {
			// avg' = (avg*prev + price*fill) / (prev+fill)
			pos.AvgPrice = pos.AvgPrice.Mul(pos.Size).Add(price.Mul(size)).Div(newSize)
		}
		pos.Size = newSize
	} else {
		pos.Size = pos.Size.Sub(size)
		if pos.Size.IsNegative() {
			pos.Size = decimal.Zero
		}
	}

	if pos.Size.IsZero() {
		delete(s.positions, token)
	} else {
		s.positions[token] = pos
	}
	s.lastTradeUpdate[token] = s.now()

	return pos
}

// StreamFresh reports whether the token's position was written from the
// stream within the given window. Fresh positions are skipped by the poll.
func (s *State) StreamFresh(token string, window time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last, ok := s.lastTradeUpdate[token]
	return ok && s.now().Sub(last) < window
}

// ═══════════════════════════════════════════════════════════════════════════════
// RESTING ORDER SLOTS
// ═══════════════════════════════════════════════════════════════════════════════

// Orders returns the tracked buy/sell slots for a token.
func (s *State) Orders(token string) types.OrderPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.orders[token]
}

// SetOrder records the resting order on one side of a token's slot pair.
// A zero size clears the side.
func (s *State) SetOrder(token, side string, price, size decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := s.orders[token]
	entry := types.OpenOrder{Price: price, Size: size}
	if size.IsZero() {
		entry = types.OpenOrder{}
	}
	if side == types.Buy {
		pair.Buy = entry
	} else {
		pair.Sell = entry
	}
	s.orders[token] = pair
}

// ResetOrders clears both slots for a token.
func (s *State) ResetOrders(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orders, token)
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERFORMING MARKERS
// ═══════════════════════════════════════════════════════════════════════════════

// RecordFillMatched marks a trade as in flight for token+side.
func (s *State) RecordFillMatched(token, side, tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := markerKey(token, side)
	m, ok := s.performing[key]
	if !ok {
		m = &marker{trades: make(map[string]struct{})}
		s.performing[key] = m
	}
	m.trades[tradeID] = struct{}{}
	m.lastSeen = s.now()
}

// ResolveFill removes one trade from the marker; the marker itself goes away
// once its last trade resolves. Used on both CONFIRMED and FAILED.
func (s *State) ResolveFill(token, side, tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := markerKey(token, side)
	m, ok := s.performing[key]
	if !ok {
		return
	}
	delete(m.trades, tradeID)
	if len(m.trades) == 0 {
		delete(s.performing, key)
	}
}

// IsPerforming reports whether any fill is still settling for token+side.
func (s *State) IsPerforming(token, side string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.performing[markerKey(token, side)]
	return ok
}

// TokenPerforming reports whether either side of a token has a live marker.
func (s *State) TokenPerforming(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, buy := s.performing[markerKey(token, types.Buy)]
	_, sell := s.performing[markerKey(token, types.Sell)]
	return buy || sell
}

// EvictStaleMarkers drops markers whose last activity predates the timeout.
// A marker that never resolves would otherwise suppress reconciliation
// forever.
func (s *State) EvictStaleMarkers(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	cutoff := s.now().Add(-timeout)
	for key, m := range s.performing {
		if m.lastSeen.Before(cutoff) {
			delete(s.performing, key)
			evicted++
			log.Warn().Str("key", key).Msg("⏰ Evicted stale fill marker")
		}
	}
	return evicted
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUSPENSION
// ═══════════════════════════════════════════════════════════════════════════════

// Suspend halts all new order placement until Resume is called.
func (s *State) Suspend(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.suspended {
		log.Error().Str("reason", reason).Msg("🛑 Trading suspended")
	}
	s.suspended = true
	s.suspendedReason = reason
}

// Resume lifts a suspension.
func (s *State) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.suspended {
		log.Info().Msg("▶️ Trading resumed")
	}
	s.suspended = false
	s.suspendedReason = ""
}

// Suspended returns the suspension flag and its reason.
func (s *State) Suspended() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.suspended, s.suspendedReason
}
