package feeds

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET CHANNEL - Order book stream
// ═══════════════════════════════════════════════════════════════════════════════
//
// One persistent connection. On connect, a single subscription frame lists all
// tracked outcome tokens. Keepalive is the application-level "PING" text frame
// every 5s; "PONG" replies are filtered before JSON parsing. On any failure
// the channel routine ends and Run reconnects after a fixed delay with a fresh
// subscription - no partial resume.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketChannel maintains the market-data stream and feeds the book store
type MarketChannel struct {
	url            string
	tokens         func() []string // current subscription set, re-read on each connect
	store          *BookStore
	onBookUpdate   func(market string)
	keepalive      time.Duration
	reconnectDelay time.Duration
	kick           chan struct{}
}

// NewMarketChannel creates a market channel bound to the given book store.
// onBookUpdate fires whenever a market's book has data on both sides after an
// update; it must be cheap and non-blocking.
func NewMarketChannel(url string, tokens func() []string, store *BookStore, onBookUpdate func(market string), keepalive, reconnectDelay time.Duration) *MarketChannel {
	return &MarketChannel{
		url:            url,
		tokens:         tokens,
		store:          store,
		onBookUpdate:   onBookUpdate,
		keepalive:      keepalive,
		reconnectDelay: reconnectDelay,
		kick:           make(chan struct{}, 1),
	}
}

// Resubscribe drops the current connection so the reconnect loop redials
// with the latest token set. Safe to call from any goroutine.
func (c *MarketChannel) Resubscribe() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run connects and processes events until ctx is cancelled, reconnecting
// after every failure.
func (c *MarketChannel) Run(ctx context.Context) {
	for {
		if err := c.connectAndServe(ctx); err != nil {
			log.Warn().Err(err).Msg("Market channel disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *MarketChannel) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := struct {
		AssetsIDs []string `json:"assets_ids"`
		Type      string   `json:"type"`
	}{AssetsIDs: c.tokens(), Type: "market"}

	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Info().Int("tokens", len(sub.AssetsIDs)).Msg("📡 Market channel subscribed")

	// Writer goroutine owns the connection for writes after the subscribe
	// frame; the read loop below never writes.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	go func() {
		select {
		case <-pingCtx.Done():
		case <-c.kick:
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if IsKeepalive(data) {
			continue
		}
		c.process(data)
	}
}

func (c *MarketChannel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				return
			}
		}
	}
}

func (c *MarketChannel) process(data []byte) {
	events, errs, err := ParseMarketEvents(data)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping unparseable market frame")
		return
	}
	for _, perr := range errs {
		log.Warn().Err(perr).Msg("Dropping malformed market message")
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case BookSnapshot:
			c.store.ApplySnapshot(e.Market, e.AssetID, e.Bids, e.Asks)
			log.Debug().
				Str("market", e.Market).
				Int("bids", len(e.Bids)).
				Int("asks", len(e.Asks)).
				Msg("📊 Book snapshot")
			if len(e.Bids) > 0 && len(e.Asks) > 0 {
				c.onBookUpdate(e.Market)
			}

		case PriceChange:
			for _, d := range e.Changes {
				c.store.ApplyDelta(e.Market, d.Side, d.Price, d.Size, d.AssetID)
			}
			if c.store.Ready(e.Market) {
				c.onBookUpdate(e.Market)
			}

		case TickSizeChange:
			log.Info().
				Str("market", e.Market).
				Str("old", e.OldTickSize.String()).
				Str("new", e.NewTickSize.String()).
				Msg("📏 Tick size change")

		case LastTradePrice:
			log.Debug().
				Str("market", e.Market).
				Str("side", e.Side).
				Str("price", e.Price.String()).
				Msg("💵 Last trade")
		}
	}
}
