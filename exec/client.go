package exec

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/poly-maker/feeds"
	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// VENUE CLIENT - Rate-gated CLOB REST wrapper
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every call passes through the rate gate keyed by operation. Venue rejections
// come back as typed results, not errors, so the strategy layer can branch on
// the rejection code. Dry-run logs the full order it would have submitted and
// fabricates a success result.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ClientConfig is the subset of runtime config the venue client needs.
type ClientConfig struct {
	CLOBURL    string
	DataAPIURL string
	APIKey     string
	APISecret  string
	Passphrase string
	PrivateKey string // hex-encoded wallet key for order signing
	Funder     string // address that holds the collateral
	DryRun     bool
}

// OrderResult is the typed outcome of an order placement.
type OrderResult struct {
	Success   bool
	OrderID   string
	Status    string
	ErrorCode string
}

// Client issues venue calls through the rate gate.
type Client struct {
	clobURL    string
	dataAPIURL string
	apiKey     string
	apiSecret  string
	passphrase string
	funder     string
	privateKey *ecdsa.PrivateKey
	dryRun     bool
	gate       *RateGate
	httpClient *http.Client
}

// NewClient creates a venue client.
func NewClient(cfg ClientConfig, gate *RateGate) (*Client, error) {
	c := &Client{
		clobURL:    cfg.CLOBURL,
		dataAPIURL: cfg.DataAPIURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		passphrase: cfg.Passphrase,
		funder:     cfg.Funder,
		dryRun:     cfg.DryRun,
		gate:       gate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if cfg.PrivateKey != "" {
		pk, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = pk
	}

	mode := "LIVE"
	if c.dryRun {
		mode = "DRY RUN"
	}
	log.Info().
		Str("mode", mode).
		Str("funder", c.funder).
		Msg("🚀 Venue client initialized")

	return c, nil
}

// CreateOrder places a limit order for the given outcome token.
func (c *Client) CreateOrder(ctx context.Context, tokenID, side string, price, size decimal.Decimal, negRisk bool) (OrderResult, error) {
	if c.dryRun {
		orderID := fmt.Sprintf("DRY_%d", time.Now().UnixNano())
		log.Info().
			Str("order_id", orderID).
			Str("token", shorten(tokenID)).
			Str("side", side).
			Str("price", price.String()).
			Str("size", size.String()).
			Bool("neg_risk", negRisk).
			Msg("📝 DRY RUN: Order would be placed")
		return OrderResult{Success: true, OrderID: orderID, Status: StatusLive}, nil
	}

	if err := c.gate.Admit(ctx, OpPostOrder); err != nil {
		return OrderResult{}, err
	}

	order := map[string]interface{}{
		"tokenID":       tokenID,
		"price":         price.String(),
		"size":          size.String(),
		"side":          side,
		"negRisk":       negRisk,
		"maker":         c.funder,
		"expiration":    "0",
		"nonce":         time.Now().UnixNano(),
		"feeRateBps":    "0",
		"signatureType": 2, // EIP-712
	}

	signature, err := c.signOrder(order)
	if err != nil {
		return OrderResult{}, fmt.Errorf("signing failed: %w", err)
	}
	order["signature"] = signature

	body, status, err := c.post(ctx, c.clobURL+"/order", order)
	if err != nil {
		return OrderResult{}, err
	}
	c.gate.Record(OpPostOrder)

	var result struct {
		Success bool   `json:"success"`
		OrderID string `json:"orderID"`
		Status  string `json:"status"`
		Error   string `json:"errorMsg"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return OrderResult{}, fmt.Errorf("parse order response: %w", err)
	}

	if status >= 400 || !result.Success || result.Error != "" {
		code := result.Error
		if code == "" {
			code = ErrInvalidOrder
		}
		log.Warn().
			Str("token", shorten(tokenID)).
			Str("side", side).
			Str("code", code).
			Msg("🚫 Order rejected: " + DescribeCode(code))
		return OrderResult{Success: false, Status: result.Status, ErrorCode: code}, nil
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("token", shorten(tokenID)).
		Str("side", side).
		Str("price", price.String()).
		Str("size", size.String()).
		Str("status", result.Status).
		Msg("✅ Order placed")

	return OrderResult{Success: true, OrderID: result.OrderID, Status: result.Status}, nil
}

// CancelAllAsset cancels every resting order for one outcome token.
func (c *Client) CancelAllAsset(ctx context.Context, tokenID string) error {
	if c.dryRun {
		log.Info().Str("token", shorten(tokenID)).Msg("📝 DRY RUN: Asset orders would be cancelled")
		return nil
	}

	if err := c.gate.Admit(ctx, OpCancelMarketOrders); err != nil {
		return err
	}
	if _, _, err := c.delete(ctx, c.clobURL+"/cancel-market-orders", map[string]interface{}{"asset_id": tokenID}); err != nil {
		return err
	}
	c.gate.Record(OpCancelMarketOrders)

	log.Info().Str("token", shorten(tokenID)).Msg("🗑️ Asset orders cancelled")
	return nil
}

// CancelAllMarket cancels every resting order in a market.
func (c *Client) CancelAllMarket(ctx context.Context, marketID string) error {
	if c.dryRun {
		log.Info().Str("market", shorten(marketID)).Msg("📝 DRY RUN: Market orders would be cancelled")
		return nil
	}

	if err := c.gate.Admit(ctx, OpCancelMarketOrders); err != nil {
		return err
	}
	if _, _, err := c.delete(ctx, c.clobURL+"/cancel-market-orders", map[string]interface{}{"market": marketID}); err != nil {
		return err
	}
	c.gate.Record(OpCancelMarketOrders)

	log.Info().Str("market", shorten(marketID)).Msg("🗑️ Market orders cancelled")
	return nil
}

// GetOrderBook fetches the venue's current book for one token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (bids, asks []feeds.Level, err error) {
	if err := c.gate.Admit(ctx, OpBook); err != nil {
		return nil, nil, err
	}

	body, _, err := c.get(ctx, c.clobURL+"/book?token_id="+tokenID)
	if err != nil {
		return nil, nil, err
	}
	c.gate.Record(OpBook)

	var result struct {
		Bids []wireLevel `json:"bids"`
		Asks []wireLevel `json:"asks"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, nil, fmt.Errorf("parse book response: %w", err)
	}

	bids, err = parseLevels(result.Bids)
	if err != nil {
		return nil, nil, err
	}
	asks, err = parseLevels(result.Asks)
	if err != nil {
		return nil, nil, err
	}
	return bids, asks, nil
}

// GetAllPositions fetches the authoritative position snapshot for our wallet.
func (c *Client) GetAllPositions(ctx context.Context) ([]types.PositionRow, error) {
	if err := c.gate.Admit(ctx, OpPositions); err != nil {
		return nil, err
	}

	body, _, err := c.get(ctx, c.dataAPIURL+"/positions?user="+c.funder)
	if err != nil {
		return nil, err
	}
	c.gate.Record(OpPositions)

	var result []struct {
		Asset    string          `json:"asset"`
		Size     decimal.Decimal `json:"size"`
		AvgPrice decimal.Decimal `json:"avgPrice"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse positions response: %w", err)
	}

	rows := make([]types.PositionRow, 0, len(result))
	for _, r := range result {
		rows = append(rows, types.PositionRow{Asset: r.Asset, Size: r.Size, AvgPrice: r.AvgPrice})
	}
	return rows, nil
}

// GetAllOrders fetches all open orders for our identity.
func (c *Client) GetAllOrders(ctx context.Context) ([]types.OrderRow, error) {
	if err := c.gate.Admit(ctx, OpOrders); err != nil {
		return nil, err
	}

	body, _, err := c.get(ctx, c.clobURL+"/data/orders")
	if err != nil {
		return nil, err
	}
	c.gate.Record(OpOrders)

	var result []struct {
		ID           string `json:"id"`
		AssetID      string `json:"asset_id"`
		Side         string `json:"side"`
		Price        string `json:"price"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse orders response: %w", err)
	}

	rows := make([]types.OrderRow, 0, len(result))
	for _, r := range result {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("order price %q: %w", r.Price, err)
		}
		originalSize, err := decimal.NewFromString(r.OriginalSize)
		if err != nil {
			return nil, fmt.Errorf("order original_size %q: %w", r.OriginalSize, err)
		}
		sizeMatched, err := decimal.NewFromString(r.SizeMatched)
		if err != nil {
			return nil, fmt.Errorf("order size_matched %q: %w", r.SizeMatched, err)
		}
		rows = append(rows, types.OrderRow{
			ID:           r.ID,
			AssetID:      r.AssetID,
			Side:         r.Side,
			Price:        price,
			OriginalSize: originalSize,
			SizeMatched:  sizeMatched,
		})
	}
	return rows, nil
}

// GetBalance returns the current collateral balance.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	if c.dryRun {
		return decimal.NewFromInt(100), nil // simulated balance
	}

	if err := c.gate.Admit(ctx, OpBalance); err != nil {
		return decimal.Zero, err
	}

	body, _, err := c.get(ctx, c.clobURL+"/balance-allowance?asset_type=COLLATERAL")
	if err != nil {
		return decimal.Zero, err
	}
	c.gate.Record(OpBalance)

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("parse balance response: %w", err)
	}

	balance, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %q: %w", result.Balance, err)
	}
	// Collateral is reported in 6-decimal base units
	return balance.Shift(-6), nil
}

// IsDryRun returns true if in dry run mode.
func (c *Client) IsDryRun() bool {
	return c.dryRun
}

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) post(ctx context.Context, url string, body interface{}) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) delete(ctx context.Context, url string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) addHeaders(req *http.Request) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)

	// Generate HMAC signature
	if c.apiSecret != "" {
		message := timestamp + req.Method + req.URL.Path
		req.Header.Set("POLY_SIGNATURE", c.hmacSign(message))
	}
}

func (c *Client) doRequest(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	// 4xx bodies carry venue rejection payloads the caller parses; only
	// 5xx becomes a transport error here.
	if resp.StatusCode >= 500 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, resp.StatusCode, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNING
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) signOrder(order map[string]interface{}) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	orderBytes, err := json.Marshal(order)
	if err != nil {
		return "", err
	}
	hash := crypto.Keccak256(orderBytes)

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

func (c *Client) hmacSign(message string) string {
	hash := crypto.Keccak256([]byte(message + c.apiSecret))
	return hexutil.Encode(hash)
}

type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func parseLevels(raw []wireLevel) ([]feeds.Level, error) {
	levels := make([]feeds.Level, 0, len(raw))
	for _, l := range raw {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, fmt.Errorf("level price %q: %w", l.Price, err)
		}
		size, err := decimal.NewFromString(l.Size)
		if err != nil {
			return nil, fmt.Errorf("level size %q: %w", l.Size, err)
		}
		levels = append(levels, feeds.Level{Price: price, Size: size})
	}
	return levels, nil
}

func shorten(id string) string {
	if len(id) > 16 {
		return id[:16] + "..."
	}
	return id
}
