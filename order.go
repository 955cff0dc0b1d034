package broker

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// Exchange identifies a trading venue
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
	ExchangeMCX Exchange = "MCX"
	ExchangeNFO Exchange = "NFO"
	ExchangeCDS Exchange = "CDS"
	ExchangeBFO Exchange = "BFO"
)

// Segment identifies the market segment within an exchange
type Segment string

const (
	SegmentEquity    Segment = "EQUITY"
	SegmentFNO       Segment = "FNO"
	SegmentCurrency  Segment = "CURRENCY"
	SegmentCommodity Segment = "COMMODITY"
)

// TransactionType is the order side
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// OrderType is the pricing style of an order
type OrderType string

const (
	Market         OrderType = "MARKET"
	Limit          OrderType = "LIMIT"
	StopLossLimit  OrderType = "STOPLOSS_LIMIT"
	StopLossMarket OrderType = "STOPLOSS_MARKET"
)

// ProductType is the margin product an order is placed under
type ProductType string

const (
	Intraday     ProductType = "INTRADAY"
	Delivery     ProductType = "DELIVERY"
	CarryForward ProductType = "CARRYFORWARD"
	Margin       ProductType = "MARGIN"
	Bracket      ProductType = "BO"
)

// Duration is the order validity
type Duration string

const (
	DurationDay Duration = "DAY"
	DurationIOC Duration = "IOC"
	DurationGTC Duration = "GTC"
	DurationGTD Duration = "GTD"
)

// Variety is the order variety
type Variety string

const (
	VarietyNormal   Variety = "NORMAL"
	VarietyAMO      Variety = "AMO"
	VarietyROBO     Variety = "ROBO"
	VarietyStopLoss Variety = "STOPLOSS"
)

// Order is the broker-independent order model built by callers.
// Enum fields are free text and are mapped through each broker's field table.
type Order struct {
	TradingSymbol     string `validate:"notblank"`
	Exchange          Exchange
	Segment           Segment
	TransactionType   TransactionType
	OrderType         OrderType
	ProductType       ProductType
	Duration          Duration
	Price             decimal.Decimal `validate:"gte=0"`
	Quantity          int64           `validate:"gt=0"`
	DisclosedQuantity int64           `validate:"gte=0"`
	TriggerPrice      decimal.Decimal `validate:"gte=0"`
	Variety           Variety
}

var (
	validate     *validator.Validate
	onceValidate sync.Once
)

func orderValidator() *validator.Validate {
	onceValidate.Do(func() {
		validate = validator.New()
		// decimals are compared by value
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("notblank", validators.NotBlank)
	})
	return validate
}

// Validate checks the fields that have no safe default. The first failing
// field is reported as ErrInvalidOrderField.
func (o Order) Validate() error {
	err := orderValidator().Struct(o)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidOrderField, err)
	}
	fe := fields[0]
	switch fe.Tag() {
	case "notblank":
		return fmt.Errorf("%w: %s is required", ErrInvalidOrderField, fe.Field())
	case "gt":
		return fmt.Errorf("%w: %s must be greater than %s, got %v", ErrInvalidOrderField, fe.Field(), fe.Param(), fe.Value())
	case "gte":
		return fmt.Errorf("%w: %s must not be less than %s, got %v", ErrInvalidOrderField, fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalidOrderField, fe.Field(), fe.Tag())
	}
}

// ValidatePricing checks price and trigger against the order type the order
// was mapped to. MARKET variants may carry a zero price; stop-loss variants
// need a positive trigger.
func ValidatePricing(kind OrderType, price, trigger decimal.Decimal) error {
	switch kind {
	case Limit, StopLossLimit:
		if !price.IsPositive() {
			return fmt.Errorf("%w: %s order requires a positive price", ErrInvalidOrderField, kind)
		}
	case Market, StopLossMarket:
		if price.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", ErrInvalidOrderField)
		}
	}

	if kind == StopLossLimit || kind == StopLossMarket {
		if !trigger.IsPositive() {
			return fmt.Errorf("%w: %s order requires a positive trigger price", ErrInvalidOrderField, kind)
		}
	}
	return nil
}

// IsStopLoss reports whether the order type needs a trigger price
func (t OrderType) IsStopLoss() bool {
	return t == StopLossLimit || t == StopLossMarket
}
