package feeds

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STREAM EVENTS - Strict parsing at the channel boundary
// ═══════════════════════════════════════════════════════════════════════════════
//
// The venue sends loosely shaped JSON (single objects or arrays, numbers as
// strings). Everything is validated into one variant per event kind here so
// nothing downstream ever touches a raw map. Malformed messages are dropped
// by the channels, never fatal.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketEvent is one parsed market-channel event
type MarketEvent interface{ marketEvent() }

// BookSnapshot is a full order book replacement for one outcome token
type BookSnapshot struct {
	Market  string
	AssetID string
	Bids    []Level
	Asks    []Level
}

// PriceDelta is a single level update within a price_change event
type PriceDelta struct {
	AssetID string
	Side    string // BUY or SELL
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// PriceChange carries one or more level updates for a market
type PriceChange struct {
	Market  string
	Changes []PriceDelta
}

// TickSizeChange is informational; subsequent order prices must respect the
// new tick.
type TickSizeChange struct {
	Market      string
	AssetID     string
	Side        string
	OldTickSize decimal.Decimal
	NewTickSize decimal.Decimal
}

// LastTradePrice is informational; it is not applied to the local book.
type LastTradePrice struct {
	Market  string
	AssetID string
	Side    string
	Price   decimal.Decimal
	Size    decimal.Decimal
}

func (BookSnapshot) marketEvent()   {}
func (PriceChange) marketEvent()    {}
func (TickSizeChange) marketEvent() {}
func (LastTradePrice) marketEvent() {}

// UserEvent is one parsed user-channel event
type UserEvent interface{ userEvent() }

// MakerOrder is one maker leg of a trade event
type MakerOrder struct {
	MakerAddress  string
	Outcome       string
	MatchedAmount decimal.Decimal
	Price         decimal.Decimal
}

// UserTrade is a fill lifecycle event (MATCHED -> MINED -> CONFIRMED, or
// FAILED). Side and asset may describe the counterparty leg; the engine
// resolves them to our own perspective.
type UserTrade struct {
	ID          string
	Market      string
	AssetID     string
	Outcome     string
	Status      string
	Side        string
	Size        decimal.Decimal
	Price       decimal.Decimal
	MakerOrders []MakerOrder
}

// UserOrder is a PLACEMENT/UPDATE/CANCELLATION event for one of our orders
type UserOrder struct {
	ID           string
	Market       string
	AssetID      string
	Type         string
	Side         string
	Price        decimal.Decimal
	OriginalSize decimal.Decimal
	SizeMatched  decimal.Decimal
}

func (UserTrade) userEvent() {}
func (UserOrder) userEvent() {}

// IsKeepalive reports whether the frame is the venue's text-level PING/PONG
// probe. These are not JSON and must be filtered before parsing.
func IsKeepalive(data []byte) bool {
	s := string(data)
	return strings.HasPrefix(s, "PING") || strings.HasPrefix(s, "PONG")
}

// splitMessages normalizes a frame into a list of raw JSON objects. The venue
// sends both single objects and arrays on the same connection.
func splitMessages(data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("frame is neither object nor array: %w", err)
	}
	return []json.RawMessage{single}, nil
}

type rawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func parseLevels(raw []rawLevel) ([]Level, error) {
	levels := make([]Level, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("bad level price %q: %w", r.Price, err)
		}
		size, err := decimal.NewFromString(r.Size)
		if err != nil {
			return nil, fmt.Errorf("bad level size %q: %w", r.Size, err)
		}
		levels = append(levels, Level{Price: price, Size: size})
	}
	return levels, nil
}

// ParseMarketEvents decodes a market-channel frame into typed events. The
// returned error covers only an unparseable frame; individually malformed
// messages inside an array are reported through errs and skipped.
func ParseMarketEvents(data []byte) (events []MarketEvent, errs []error, err error) {
	msgs, err := splitMessages(data)
	if err != nil {
		return nil, nil, err
	}

	for _, msg := range msgs {
		ev, perr := parseMarketEvent(msg)
		if perr != nil {
			errs = append(errs, perr)
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, errs, nil
}

func parseMarketEvent(msg json.RawMessage) (MarketEvent, error) {
	var envelope struct {
		EventType string `json:"event_type"`
		Market    string `json:"market"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return nil, fmt.Errorf("market message is not an object: %w", err)
	}

	switch envelope.EventType {
	case "book":
		var raw struct {
			AssetID string     `json:"asset_id"`
			Bids    []rawLevel `json:"bids"`
			Asks    []rawLevel `json:"asks"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad book message: %w", err)
		}
		if raw.AssetID == "" {
			return nil, fmt.Errorf("book message missing asset_id")
		}
		bids, err := parseLevels(raw.Bids)
		if err != nil {
			return nil, fmt.Errorf("book bids: %w", err)
		}
		asks, err := parseLevels(raw.Asks)
		if err != nil {
			return nil, fmt.Errorf("book asks: %w", err)
		}
		return BookSnapshot{Market: envelope.Market, AssetID: raw.AssetID, Bids: bids, Asks: asks}, nil

	case "price_change":
		var raw struct {
			PriceChanges []struct {
				AssetID string `json:"asset_id"`
				Price   string `json:"price"`
				Size    string `json:"size"`
				Side    string `json:"side"`
			} `json:"price_changes"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad price_change message: %w", err)
		}
		ev := PriceChange{Market: envelope.Market}
		for _, c := range raw.PriceChanges {
			if c.AssetID == "" || c.Side == "" {
				return nil, fmt.Errorf("price_change entry missing asset_id or side")
			}
			price, err := decimal.NewFromString(c.Price)
			if err != nil {
				return nil, fmt.Errorf("price_change entry price %q: %w", c.Price, err)
			}
			size, err := decimal.NewFromString(c.Size)
			if err != nil {
				return nil, fmt.Errorf("price_change entry size %q: %w", c.Size, err)
			}
			ev.Changes = append(ev.Changes, PriceDelta{AssetID: c.AssetID, Side: c.Side, Price: price, Size: size})
		}
		return ev, nil

	case "tick_size_change":
		var raw struct {
			AssetID     string `json:"asset_id"`
			Side        string `json:"side"`
			OldTickSize string `json:"old_tick_size"`
			NewTickSize string `json:"new_tick_size"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad tick_size_change message: %w", err)
		}
		if raw.AssetID == "" || raw.OldTickSize == "" || raw.NewTickSize == "" {
			return nil, fmt.Errorf("tick_size_change missing required fields")
		}
		oldTick, err := decimal.NewFromString(raw.OldTickSize)
		if err != nil {
			return nil, fmt.Errorf("tick_size_change old tick %q: %w", raw.OldTickSize, err)
		}
		newTick, err := decimal.NewFromString(raw.NewTickSize)
		if err != nil {
			return nil, fmt.Errorf("tick_size_change new tick %q: %w", raw.NewTickSize, err)
		}
		return TickSizeChange{
			Market:      envelope.Market,
			AssetID:     raw.AssetID,
			Side:        raw.Side,
			OldTickSize: oldTick,
			NewTickSize: newTick,
		}, nil

	case "last_trade_price":
		var raw struct {
			AssetID string `json:"asset_id"`
			Price   string `json:"price"`
			Size    string `json:"size"`
			Side    string `json:"side"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad last_trade_price message: %w", err)
		}
		if raw.AssetID == "" || raw.Price == "" {
			return nil, fmt.Errorf("last_trade_price missing required fields")
		}
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("last_trade_price price %q: %w", raw.Price, err)
		}
		size := decimal.Zero
		if raw.Size != "" {
			if size, err = decimal.NewFromString(raw.Size); err != nil {
				return nil, fmt.Errorf("last_trade_price size %q: %w", raw.Size, err)
			}
		}
		return LastTradePrice{Market: envelope.Market, AssetID: raw.AssetID, Side: raw.Side, Price: price, Size: size}, nil

	case "":
		return nil, fmt.Errorf("market message missing event_type")
	default:
		// Unknown kinds (e.g. subscription acks) are ignored, not errors.
		return nil, nil
	}
}

// ParseUserEvents decodes a user-channel frame into typed events, mirroring
// ParseMarketEvents.
func ParseUserEvents(data []byte) (events []UserEvent, errs []error, err error) {
	msgs, err := splitMessages(data)
	if err != nil {
		return nil, nil, err
	}

	for _, msg := range msgs {
		ev, perr := parseUserEvent(msg)
		if perr != nil {
			errs = append(errs, perr)
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, errs, nil
}

func parseUserEvent(msg json.RawMessage) (UserEvent, error) {
	var envelope struct {
		EventType string `json:"event_type"`
		Market    string `json:"market"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return nil, fmt.Errorf("user message is not an object: %w", err)
	}
	if envelope.EventType == "" {
		return nil, fmt.Errorf("user message missing event_type")
	}
	if envelope.Market == "" {
		return nil, fmt.Errorf("user message missing market")
	}

	switch envelope.EventType {
	case "trade":
		var raw struct {
			ID          string `json:"id"`
			AssetID     string `json:"asset_id"`
			Status      string `json:"status"`
			Side        string `json:"side"`
			Size        string `json:"size"`
			Price       string `json:"price"`
			Outcome     string `json:"outcome"`
			MakerOrders []struct {
				MakerAddress  string `json:"maker_address"`
				Outcome       string `json:"outcome"`
				MatchedAmount string `json:"matched_amount"`
				Price         string `json:"price"`
			} `json:"maker_orders"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad trade message: %w", err)
		}
		if raw.ID == "" || raw.AssetID == "" || raw.Status == "" || raw.Side == "" {
			return nil, fmt.Errorf("trade message missing required fields")
		}
		size, err := decimal.NewFromString(raw.Size)
		if err != nil {
			return nil, fmt.Errorf("trade size %q: %w", raw.Size, err)
		}
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("trade price %q: %w", raw.Price, err)
		}
		ev := UserTrade{
			ID:      raw.ID,
			Market:  envelope.Market,
			AssetID: raw.AssetID,
			Outcome: raw.Outcome,
			Status:  raw.Status,
			Side:    strings.ToUpper(raw.Side),
			Size:    size,
			Price:   price,
		}
		for _, mo := range raw.MakerOrders {
			amount, err := decimal.NewFromString(mo.MatchedAmount)
			if err != nil {
				return nil, fmt.Errorf("maker order matched_amount %q: %w", mo.MatchedAmount, err)
			}
			mprice, err := decimal.NewFromString(mo.Price)
			if err != nil {
				return nil, fmt.Errorf("maker order price %q: %w", mo.Price, err)
			}
			ev.MakerOrders = append(ev.MakerOrders, MakerOrder{
				MakerAddress:  mo.MakerAddress,
				Outcome:       mo.Outcome,
				MatchedAmount: amount,
				Price:         mprice,
			})
		}
		return ev, nil

	case "order":
		var raw struct {
			ID           string `json:"id"`
			AssetID      string `json:"asset_id"`
			Type         string `json:"type"`
			Side         string `json:"side"`
			Price        string `json:"price"`
			OriginalSize string `json:"original_size"`
			SizeMatched  string `json:"size_matched"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("bad order message: %w", err)
		}
		if raw.ID == "" || raw.AssetID == "" || raw.Type == "" {
			return nil, fmt.Errorf("order message missing required fields")
		}
		switch raw.Type {
		case "PLACEMENT", "UPDATE", "CANCELLATION":
		default:
			return nil, fmt.Errorf("unknown order type %q", raw.Type)
		}
		price := decimal.Zero
		if raw.Price != "" {
			var err error
			if price, err = decimal.NewFromString(raw.Price); err != nil {
				return nil, fmt.Errorf("order price %q: %w", raw.Price, err)
			}
		}
		originalSize, err := decimal.NewFromString(raw.OriginalSize)
		if err != nil {
			return nil, fmt.Errorf("order original_size %q: %w", raw.OriginalSize, err)
		}
		sizeMatched, err := decimal.NewFromString(raw.SizeMatched)
		if err != nil {
			return nil, fmt.Errorf("order size_matched %q: %w", raw.SizeMatched, err)
		}
		return UserOrder{
			ID:           raw.ID,
			Market:       envelope.Market,
			AssetID:      raw.AssetID,
			Type:         raw.Type,
			Side:         strings.ToUpper(raw.Side),
			Price:        price,
			OriginalSize: originalSize,
			SizeMatched:  sizeMatched,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q in user channel", envelope.EventType)
	}
}
