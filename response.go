package broker

import (
	"github.com/shopspring/decimal"
)

// ParseContext carries request details a broker does not echo back, such as
// the symbol of a placed order
type ParseContext struct {
	Symbol  string
	OrderID string
}

// OrderResponse is the normalized result of place, modify and cancel calls
type OrderResponse struct {
	Status        int
	Message       string
	OrderID       string
	Symbol        string
	UniqueOrderID string
}

// OrderBookEntry is one order as reported by the broker's order book.
// Decimal and count fields are null when the broker omitted them.
type OrderBookEntry struct {
	Variety            string
	OrderType          string
	ProductType        string
	Duration           string
	Price              decimal.NullDecimal
	Quantity           *int64
	DisclosedQuantity  *int64
	Symbol             string
	TransactionType    string
	Exchange           string
	AveragePrice       decimal.NullDecimal
	FilledShares       *int64
	UnfilledShares     *int64
	OrderID            string
	OrderStatus        string
	OrderStatusMessage string
	// OrderUpdateTime is ISO-8601 when the broker format is recognised
	OrderUpdateTime string
	LotSize         *int64
	OptionType      string
	InstrumentType  string
	UniqueOrderID   string
}

// OrderBookResponse wraps the order book
type OrderBookResponse struct {
	Status  int
	Message string
	Orders  []OrderBookEntry
}

// TradeBookEntry is one fill from the trade book
type TradeBookEntry struct {
	Exchange        string
	ProductType     string
	Symbol          string
	Multiplier      decimal.NullDecimal
	TransactionType string
	Price           decimal.NullDecimal
	FilledShares    *int64
	OrderID         string
	Quantity        *int64
	UnfilledShares  *int64
}

// TradeBookResponse wraps the trade book
type TradeBookResponse struct {
	Status  int
	Message string
	Trades  []TradeBookEntry
}

// OrderStatusResponse is the current state of a single order
type OrderStatusResponse struct {
	Status  int
	Message string
	OrderBookEntry
}

// HoldingEntry is one demat holding
type HoldingEntry struct {
	Symbol   string
	Exchange string
	Quantity *int64
	LTP      decimal.NullDecimal
	PnL      decimal.NullDecimal
	AvgPrice decimal.NullDecimal
}

// HoldingResponse wraps holdings
type HoldingResponse struct {
	Status   int
	Message  string
	Holdings []HoldingEntry
}

// PositionEntry is one open or closed position for the day
type PositionEntry struct {
	Exchange     string
	Symbol       string
	Name         string
	Multiplier   decimal.NullDecimal
	BuyQuantity  *int64
	SellQuantity *int64
	BuyAmount    decimal.NullDecimal
	SellAmount   decimal.NullDecimal
	BuyAvgPrice  decimal.NullDecimal
	SellAvgPrice decimal.NullDecimal
	NetQuantity  *int64
}

// PositionResponse wraps positions
type PositionResponse struct {
	Status    int
	Message   string
	Positions []PositionEntry
}

// FundsResponse is the normalized margin/RMS summary
type FundsResponse struct {
	Status                 int
	Message                string
	AvailableCash          decimal.NullDecimal
	AvailableIntradayPayin decimal.NullDecimal
	AvailableLimitMargin   decimal.NullDecimal
	Collateral             decimal.NullDecimal
	M2MRealized            decimal.NullDecimal
	M2MUnrealized          decimal.NullDecimal
	Net                    decimal.NullDecimal
	UtilisedDebits         decimal.NullDecimal
	UtilisedPayout         decimal.NullDecimal
}

// ProfileResponse is the account profile of the logged-in user
type ProfileResponse struct {
	Status    int
	Message   string
	ClientID  string
	Name      string
	Email     string
	Mobile    string
	Broker    string
	Exchanges []string
	Products  []string
}

// HoldingSummaryResponse is the portfolio-level total across all holdings
type HoldingSummaryResponse struct {
	Status        int
	Message       string
	HoldingValue  decimal.NullDecimal
	InvestedValue decimal.NullDecimal
	PnL           decimal.NullDecimal
	PnLPercentage decimal.NullDecimal
}

// Result is the outcome of parsing one broker response: either a normalized
// value or an ErrorResponse, never both.
type Result[T any] struct {
	value   T
	failure *ErrorResponse
}

// Success wraps a parsed value
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps an error, classifying it into an ErrorResponse
func Failure[T any](err error) Result[T] {
	er := AsErrorResponse(err)
	if er == nil {
		er = NewErrorResponse(nil, CodeInternal, "unknown failure", nil)
	}
	return Result[T]{failure: er}
}

// OK reports whether the result holds a value
func (r Result[T]) OK() bool {
	return r.failure == nil
}

// Value returns the parsed value, the zero value on failure
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, nil on success
func (r Result[T]) Err() *ErrorResponse {
	return r.failure
}

// Get unpacks the result into the usual Go pair
func (r Result[T]) Get() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}

// Int64 returns a pointer to v, for building responses with optional counts
func Int64(v int64) *int64 {
	return &v
}

// Dec returns a valid NullDecimal parsed from s, panicking on bad input.
// Intended for literals in tests and examples.
func Dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
