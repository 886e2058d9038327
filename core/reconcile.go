package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/exec"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION
// ═══════════════════════════════════════════════════════════════════════════════
//
// Periodic resync of engine state against the venue's REST snapshots. The
// stream is the fast path; these polls repair anything the stream missed.
// Positions mid-fill (performing marker set, or written from the stream
// within the fresh window) keep their streamed size and only take the
// authoritative average price.
//
// ═══════════════════════════════════════════════════════════════════════════════

// dustThreshold filters residual sub-share positions the venue reports after
// rounding. Anything below one share counts as flat.
var dustThreshold = decimal.NewFromInt(1)

// VenueClient is the venue surface reconciliation and strategy evaluation
// depend on. *exec.Client satisfies it; tests substitute fakes.
type VenueClient interface {
	CreateOrder(ctx context.Context, tokenID, side string, price, size decimal.Decimal, negRisk bool) (exec.OrderResult, error)
	CancelAllAsset(ctx context.Context, tokenID string) error
	CancelAllMarket(ctx context.Context, marketID string) error
	GetAllPositions(ctx context.Context) ([]types.PositionRow, error)
	GetAllOrders(ctx context.Context) ([]types.OrderRow, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// Reconciler repairs engine state from venue snapshots.
type Reconciler struct {
	state       *State
	venue       VenueClient
	freshWindow time.Duration
}

// NewReconciler creates a reconciler over shared state.
func NewReconciler(state *State, venue VenueClient, freshWindow time.Duration) *Reconciler {
	return &Reconciler{state: state, venue: venue, freshWindow: freshWindow}
}

// RefreshPositions pulls the authoritative position snapshot and folds it
// into state. With avgOnly set, tokens that are mid-fill or recently updated
// from the stream keep their streamed size and only take the snapshot's
// average price; the initial sync passes avgOnly=false to overwrite
// everything.
func (r *Reconciler) RefreshPositions(ctx context.Context, avgOnly bool) error {
	rows, err := r.venue.GetAllPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	byAsset := make(map[string]types.PositionRow, len(rows))
	for _, row := range rows {
		byAsset[row.Asset] = row
	}

	updated := 0
	for _, token := range r.state.AllTokens() {
		row, held := byAsset[token]

		// The data-api trails the stream: a confirmed fill may not have a
		// row yet. On the periodic pass a missing row means "no news", not
		// "flat" - only the initial full sync zeroes absent tokens.
		if avgOnly && !held {
			continue
		}

		size := row.Size
		if held && size.LessThan(dustThreshold) {
			size = decimal.Zero
		}

		settling := avgOnly &&
			(r.state.TokenPerforming(token) || r.state.StreamFresh(token, r.freshWindow))

		if settling {
			// Streamed size wins while trades settle; only the venue's
			// average price is authoritative here.
			if held && r.state.Position(token).Size.IsPositive() {
				r.state.SetAvgPrice(token, row.AvgPrice)
			}
			continue
		}

		if size.IsZero() {
			r.state.SetPosition(token, types.Position{})
		} else {
			r.state.SetPosition(token, types.Position{Size: size, AvgPrice: row.AvgPrice})
		}
		updated++
	}

	log.Debug().Int("updated", updated).Bool("avg_only", avgOnly).Msg("🔄 Positions reconciled")
	return nil
}

// RefreshOrders pulls all open orders and rebuilds the resting slot pairs.
// The engine quotes at most one order per token per side; finding more means
// placement raced a cancel, so every order on that asset is cancelled and
// the slot reset for the next evaluation to requote cleanly.
func (r *Reconciler) RefreshOrders(ctx context.Context) error {
	rows, err := r.venue.GetAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}

	type slot struct {
		order types.OrderRow
		count int
	}
	bySide := make(map[string]*slot)
	for _, row := range rows {
		key := markerKey(row.AssetID, row.Side)
		if s, ok := bySide[key]; ok {
			s.count++
		} else {
			bySide[key] = &slot{order: row, count: 1}
		}
	}

	for _, token := range r.state.AllTokens() {
		for _, side := range []string{types.Buy, types.Sell} {
			s, ok := bySide[markerKey(token, side)]
			if !ok {
				r.state.SetOrder(token, side, decimal.Zero, decimal.Zero)
				continue
			}
			if s.count > 1 {
				log.Warn().
					Str("token", token).
					Str("side", side).
					Int("orders", s.count).
					Msg("⚠️ Duplicate resting orders, cancelling asset")
				if err := r.venue.CancelAllAsset(ctx, token); err != nil {
					return fmt.Errorf("heal duplicate orders for %s: %w", token, err)
				}
				r.state.ResetOrders(token)
				break
			}
			r.state.SetOrder(token, side, s.order.Price, s.order.Remaining())
		}
	}

	log.Debug().Int("open_orders", len(rows)).Msg("🔄 Orders reconciled")
	return nil
}
