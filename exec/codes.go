package exec

// Venue rejection codes returned by order placement.
// Source: https://docs.polymarket.com/developers/CLOB/orders/create-order
const (
	ErrInvalidMinTickSize   = "INVALID_ORDER_MIN_TICK_SIZE"
	ErrInvalidMinSize       = "INVALID_ORDER_MIN_SIZE"
	ErrDuplicated           = "INVALID_ORDER_DUPLICATED"
	ErrNotEnoughBalance     = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrInvalidExpiration    = "INVALID_ORDER_EXPIRATION"
	ErrInvalidOrder         = "INVALID_ORDER_ERROR"
	ErrExecution            = "EXECUTION_ERROR"
	ErrOrderDelayed         = "ORDER_DELAYED"
	ErrDelayingOrder        = "DELAYING_ORDER_ERROR"
	ErrFOKNotFilled         = "FOK_ORDER_NOT_FILLED_ERROR"
	ErrMarketNotReady       = "MARKET_NOT_READY"
	ErrTradingRestricted    = "TRADING_RESTRICTED"
)

// Order placement statuses
const (
	StatusMatched   = "matched"
	StatusLive      = "live"
	StatusDelayed   = "delayed"
	StatusUnmatched = "unmatched"
)

// codeDescriptions maps rejection codes to human-readable explanations for
// logs and notifications.
var codeDescriptions = map[string]string{
	ErrInvalidMinTickSize: "order price breaks minimum tick size rules",
	ErrInvalidMinSize:     "order size lower than the minimum",
	ErrDuplicated:         "same order has already been placed",
	ErrNotEnoughBalance:   "not enough balance or allowance",
	ErrInvalidExpiration:  "invalid expiration",
	ErrInvalidOrder:       "could not insert order",
	ErrExecution:          "could not run the execution",
	ErrOrderDelayed:       "order match delayed due to market conditions",
	ErrDelayingOrder:      "error delaying the order",
	ErrFOKNotFilled:       "FOK order could not be fully filled",
	ErrMarketNotReady:     "market is not yet ready to process new orders",
	ErrTradingRestricted:  "account-level trading restriction",
}

// DescribeCode returns the documentation text for a rejection code, or the
// code itself when unknown.
func DescribeCode(code string) string {
	if d, ok := codeDescriptions[code]; ok {
		return d
	}
	return code
}

// IsRestriction reports whether a rejection code indicates an account-level
// trading restriction. Such a rejection suspends all order submission until
// manually cleared.
func IsRestriction(code string) bool {
	return code == ErrTradingRestricted
}
