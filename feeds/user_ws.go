package feeds

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// USER CHANNEL - Private fills and order updates
// ═══════════════════════════════════════════════════════════════════════════════

// Credentials are the L2 API credentials sent in the user subscription frame
type Credentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// UserHandler consumes parsed user-channel events
type UserHandler interface {
	HandleTrade(ev UserTrade)
	HandleOrder(ev UserOrder)
}

// UserChannel maintains the private stream of trade and order events
type UserChannel struct {
	url            string
	creds          Credentials
	handler        UserHandler
	keepalive      time.Duration
	reconnectDelay time.Duration
}

// NewUserChannel creates a user channel delivering events to handler
func NewUserChannel(url string, creds Credentials, handler UserHandler, keepalive, reconnectDelay time.Duration) *UserChannel {
	return &UserChannel{
		url:            url,
		creds:          creds,
		handler:        handler,
		keepalive:      keepalive,
		reconnectDelay: reconnectDelay,
	}
}

// Run connects and processes events until ctx is cancelled, reconnecting
// after every failure.
func (c *UserChannel) Run(ctx context.Context) {
	for {
		if err := c.connectAndServe(ctx); err != nil {
			log.Warn().Err(err).Msg("User channel disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *UserChannel) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// An empty markets list subscribes to every market for this identity.
	sub := struct {
		Markets []string    `json:"markets"`
		Type    string      `json:"type"`
		Auth    Credentials `json:"auth"`
	}{Markets: []string{}, Type: "user", Auth: c.creds}

	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Info().Msg("🔐 User channel subscribed")

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	go func() {
		<-pingCtx.Done()
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

func (c *UserChannel) pingLoop(ctx context.Context, conn *websocket.Conn) {
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

func (c *UserChannel) process(data []byte) {
	events, errs, err := ParseUserEvents(data)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping unparseable user frame")
		return
	}
	for _, perr := range errs {
		log.Warn().Err(perr).Msg("Dropping malformed user message")
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case UserTrade:
			c.handler.HandleTrade(e)
		case UserOrder:
			c.handler.HandleOrder(e)
		}
	}
}
