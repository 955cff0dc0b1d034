package broker

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validOrder() Order {
	return Order{
		TradingSymbol:   "SBIN-EQ",
		Exchange:        ExchangeNSE,
		Segment:         SegmentEquity,
		TransactionType: Buy,
		OrderType:       Limit,
		ProductType:     Delivery,
		Duration:        DurationDay,
		Price:           decimal.RequireFromString("500.50"),
		Quantity:        10,
	}
}

func TestOrderValidate(t *testing.T) {
	assert.NoError(t, validOrder().Validate())

	for name, mutate := range map[string]func(*Order){
		"blank symbol":       func(o *Order) { o.TradingSymbol = "  " },
		"zero quantity":      func(o *Order) { o.Quantity = 0 },
		"negative price":     func(o *Order) { o.Price = decimal.NewFromInt(-1) },
		"negative disclosed": func(o *Order) { o.DisclosedQuantity = -5 },
		"negative trigger":   func(o *Order) { o.TriggerPrice = decimal.RequireFromString("-0.05") },
	} {
		o := validOrder()
		mutate(&o)
		assert.ErrorIs(t, o.Validate(), ErrInvalidOrderField, name)
	}
}

func TestOrderValidateNamesFirstField(t *testing.T) {
	o := validOrder()
	o.TradingSymbol = ""
	o.Quantity = -1

	err := o.Validate()
	assert.ErrorIs(t, err, ErrInvalidOrderField)
	assert.Contains(t, err.Error(), "TradingSymbol is required")

	o = validOrder()
	o.Quantity = 0
	assert.Contains(t, o.Validate().Error(), "Quantity must be greater than 0")

	o = validOrder()
	o.Price = decimal.Zero
	assert.NoError(t, o.Validate(), "zero price is left to ValidatePricing")
}

func TestValidatePricing(t *testing.T) {
	zero := decimal.Zero
	five := decimal.NewFromInt(5)

	assert.NoError(t, ValidatePricing(Market, zero, zero))
	assert.NoError(t, ValidatePricing(Limit, five, zero))
	assert.NoError(t, ValidatePricing(StopLossMarket, zero, five))
	assert.NoError(t, ValidatePricing(StopLossLimit, five, five))

	assert.ErrorIs(t, ValidatePricing(Limit, zero, zero), ErrInvalidOrderField)
	assert.ErrorIs(t, ValidatePricing(StopLossMarket, zero, zero), ErrInvalidOrderField)
	assert.ErrorIs(t, ValidatePricing(StopLossLimit, zero, five), ErrInvalidOrderField)
	assert.ErrorIs(t, ValidatePricing(Market, decimal.NewFromInt(-1), zero), ErrInvalidOrderField)
}

func TestIsStopLoss(t *testing.T) {
	assert.True(t, StopLossLimit.IsStopLoss())
	assert.True(t, StopLossMarket.IsStopLoss())
	assert.False(t, Limit.IsStopLoss())
}
