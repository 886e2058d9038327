package exec

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dryRunClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		CLOBURL:    "https://clob.example",
		DataAPIURL: "https://data.example",
		Funder:     "0xFunder",
		DryRun:     true,
	}, NewRateGate())
	require.NoError(t, err)
	return c
}

func TestDryRunCreateOrderFabricatesResult(t *testing.T) {
	c := dryRunClient(t)
	require.True(t, c.IsDryRun())

	result, err := c.CreateOrder(context.Background(), "token-1", "BUY", decimal.RequireFromString("0.41"), decimal.RequireFromString("10"), false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusLive, result.Status)
	assert.True(t, strings.HasPrefix(result.OrderID, "DRY_"), "order id %s", result.OrderID)
}

func TestDryRunCancelsNeverTouchTheVenue(t *testing.T) {
	c := dryRunClient(t)

	assert.NoError(t, c.CancelAllAsset(context.Background(), "token-1"))
	assert.NoError(t, c.CancelAllMarket(context.Background(), "cond-1"))
}

func TestNewClientRejectsBadPrivateKey(t *testing.T) {
	_, err := NewClient(ClientConfig{PrivateKey: "not-hex"}, NewRateGate())
	assert.Error(t, err)
}

func TestDescribeCode(t *testing.T) {
	assert.Equal(t, "not enough balance or allowance", DescribeCode(ErrNotEnoughBalance))
	assert.Equal(t, "SOME_NEW_CODE", DescribeCode("SOME_NEW_CODE"), "unknown codes pass through")
}

func TestIsRestriction(t *testing.T) {
	assert.True(t, IsRestriction(ErrTradingRestricted))
	assert.False(t, IsRestriction(ErrNotEnoughBalance))
	assert.False(t, IsRestriction(""))
}

func TestShorten(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef"
	assert.Equal(t, "0123456789abcdef...", shorten(long))
	assert.Equal(t, "short", shorten("short"))
}
