package exec

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RATE GATE - Sliding-window admission for venue calls
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every outbound venue call is keyed by operation and admitted against that
// operation's documented budget. Admission blocks until the call would fit in
// the trailing window; the caller records the timestamp after a successful
// call. Budgets mirror the venue's published per-endpoint limits - this is
// configuration data, not behavior.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Operation keys for the venue endpoints the engine touches
const (
	OpPostOrder          = "clob_post_order"
	OpCancelAll          = "clob_cancel_all"
	OpCancelMarketOrders = "clob_cancel_market_orders"
	OpBook               = "clob_book"
	OpOrders             = "clob_data_orders"
	OpPositions          = "data_api_general"
	OpBalance            = "clob_balance_allowance_get"
)

// safetyMargin is added to every computed wait so a retry lands safely inside
// the window.
const safetyMargin = 100 * time.Millisecond

type budget struct {
	maxRequests int
	window      time.Duration
}

// defaultBudgets mirrors https://docs.polymarket.com published per-endpoint
// rate limits.
var defaultBudgets = map[string]budget{
	OpPostOrder:          {maxRequests: 40, window: time.Second},
	OpCancelAll:          {maxRequests: 5, window: time.Second},
	OpCancelMarketOrders: {maxRequests: 20, window: time.Second},
	OpBook:               {maxRequests: 200, window: 10 * time.Second},
	OpOrders:             {maxRequests: 300, window: 10 * time.Second},
	OpPositions:          {maxRequests: 200, window: 10 * time.Second},
	OpBalance:            {maxRequests: 125, window: 10 * time.Second},
}

type opWindow struct {
	mu    sync.Mutex
	times []time.Time
}

// RateGate enforces independent sliding windows per operation key
type RateGate struct {
	mu      sync.Mutex
	budgets map[string]budget
	windows map[string]*opWindow
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRateGate creates a gate with the default venue budgets
func NewRateGate() *RateGate {
	return &RateGate{
		budgets: defaultBudgets,
		windows: make(map[string]*opWindow),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *RateGate) window(op string) *opWindow {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[op]
	if !ok {
		w = &opWindow{}
		g.windows[op] = w
	}
	return w
}

// Admit blocks until the operation fits its budget or ctx is cancelled.
// Operations with no configured budget are admitted immediately.
func (g *RateGate) Admit(ctx context.Context, op string) error {
	b, ok := g.budgets[op]
	if !ok {
		return nil
	}
	w := g.window(op)

	for {
		wait := g.admissionWait(w, b)
		if wait <= 0 {
			return nil
		}
		log.Debug().Str("op", op).Dur("wait", wait).Msg("Rate gate waiting")
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// admissionWait prunes expired timestamps and returns how long the caller
// must wait, or zero for immediate admission.
func (g *RateGate) admissionWait(w *opWindow, b budget) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-b.window)
	keep := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	w.times = keep

	if len(w.times) < b.maxRequests {
		return 0
	}

	oldest := w.times[0]
	return oldest.Add(b.window).Sub(now) + safetyMargin
}

// Record timestamps a completed call. Call it immediately after the venue
// request succeeds.
func (g *RateGate) Record(op string) {
	if _, ok := g.budgets[op]; !ok {
		return
	}
	w := g.window(op)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.times = append(w.times, g.now())
}
