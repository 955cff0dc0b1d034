package dhan

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
)

// Fields is the Dhan v2 order field table
var Fields = []mapping.Field{
	{Name: "transactionType", Key: "transactionType", Values: []mapping.Value{{Wire: "BUY"}, {Wire: "SELL"}}},
	{
		Name: "orderType",
		Key:  "orderType",
		Values: []mapping.Value{
			{Wire: "MARKET"},
			{Wire: "LIMIT"},
			{Wire: "STOP_LOSS", Accept: []string{"STOPLOSS_LIMIT", "STOPLOSS", "SL"}},
			{Wire: "STOP_LOSS_MARKET", Accept: []string{"STOPLOSS_MARKET", "SL-M"}},
		},
		Default: "LIMIT",
	},
	{
		Name: "productType",
		Key:  "productType",
		Values: []mapping.Value{
			{Wire: "CNC", Accept: []string{"DELIVERY"}},
			{Wire: "INTRADAY"},
			{Wire: "MARGIN", Accept: []string{"CARRYFORWARD"}},
			{Wire: "MTF"},
			{Wire: "CO"},
			{Wire: "BO"},
		},
		Default: "CNC",
	},
	{Name: "duration", Key: "validity", Values: []mapping.Value{{Wire: "DAY"}, {Wire: "IOC"}}, Default: "DAY"},
	{Name: "amoTime", Key: "amoTime", Values: []mapping.Value{{Wire: "OPEN"}, {Wire: "OPEN_30"}, {Wire: "OPEN_60"}}, Default: "OPEN"},
	{
		Name:    "legName",
		Key:     "legName",
		Values:  []mapping.Value{{Wire: "ENTRY_LEG"}, {Wire: "STOP_LOSS_LEG"}, {Wire: "TARGET_LEG"}, {Wire: "NA"}},
		Default: "NA",
	},
}

// orderKinds maps Dhan order types back to the normalized ones for price checks
var orderKinds = map[string]broker.OrderType{
	"MARKET":           broker.Market,
	"LIMIT":            broker.Limit,
	"STOP_LOSS":        broker.StopLossLimit,
	"STOP_LOSS_MARKET": broker.StopLossMarket,
}

// Segment maps an exchange/segment pair to Dhan's exchangeSegment
func Segment(exchange, segment string) (string, error) {
	switch exchange + "/" + segment {
	case "NSE/", "NSE/EQUITY":
		return "NSE_EQ", nil
	case "NSE/FNO", "NFO/", "NFO/FNO":
		return "NSE_FNO", nil
	case "NSE/CURRENCY", "CDS/", "CDS/CURRENCY":
		return "NSE_CURRENCY", nil
	case "BSE/", "BSE/EQUITY":
		return "BSE_EQ", nil
	case "BSE/FNO", "BFO/", "BFO/FNO":
		return "BSE_FNO", nil
	case "BSE/CURRENCY":
		return "BSE_CURRENCY", nil
	case "MCX/", "MCX/COMMODITY":
		return "MCX_COMM", nil
	}
	return "", broker.NewErrorResponse(broker.ErrInvalidSymbolQuery, "",
		"dhan does not support exchange "+exchange+" segment "+segment, nil)
}

// CorrelationID builds the tag Dhan echoes back on order updates: the UTC
// timestamp to the microsecond, symbol and client id, cut to the last 25
// characters.
func CorrelationID(now time.Time, symbol, clientID string) string {
	id := now.UTC().Format("20060102150405.000000") + "_" + symbol + "_" + clientID
	id = strings.Replace(id, ".", "", 1)
	if len(id) > 25 {
		id = id[len(id)-25:]
	}
	return id
}

// Mapper turns normalized orders into Dhan v2 payloads
type Mapper struct {
	table    *mapping.Table
	resolver symbols.Lookup
	now      func() time.Time
}

// NewMapper creates a mapper. now seeds correlation IDs.
func NewMapper(table *mapping.Table, resolver symbols.Lookup, now func() time.Time) *Mapper {
	if now == nil {
		now = time.Now
	}
	return &Mapper{table: table, resolver: resolver, now: now}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type field struct{ name, value string }

// mapFields maps fields in order, so strict mode always reports the first
// offending field
func (m *Mapper) mapFields(fields ...field) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		w, err := m.table.Map(f.name, f.value)
		if err != nil {
			return nil, err
		}
		out[f.name] = w
	}
	return out, nil
}

func checkPricing(f map[string]string, order broker.Order) error {
	return broker.ValidatePricing(orderKinds[f["orderType"]], order.Price, order.TriggerPrice)
}

// PlaceOrder builds the POST /v2/orders payload
func (m *Mapper) PlaceOrder(ctx context.Context, order broker.Order, cred auth.Credential) (map[string]any, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	f, err := m.mapFields(
		field{"transactionType", string(order.TransactionType)},
		field{"orderType", string(order.OrderType)},
		field{"productType", string(order.ProductType)},
		field{"duration", string(order.Duration)},
	)
	if err != nil {
		return nil, err
	}
	if err := checkPricing(f, order); err != nil {
		return nil, err
	}

	rec, err := m.resolver.Resolve(ctx, order.TradingSymbol, order.Exchange, order.Segment)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"dhanClientId":      cred.ClientID,
		"correlationId":     CorrelationID(m.now(), order.TradingSymbol, cred.ClientID),
		"transactionType":   f["transactionType"],
		"exchangeSegment":   rec.ExchangeSegment,
		"productType":       f["productType"],
		"orderType":         f["orderType"],
		"validity":          f["duration"],
		"securityId":        rec.InstrumentID,
		"quantity":          order.Quantity,
		"disclosedQuantity": order.DisclosedQuantity,
		"price":             number(order.Price),
		"triggerPrice":      number(order.TriggerPrice),
		"afterMarketOrder":  false,
	}
	if strings.EqualFold(string(order.Variety), string(broker.VarietyAMO)) {
		amo, err := m.table.Map("amoTime", "OPEN")
		if err != nil {
			return nil, err
		}
		payload["afterMarketOrder"] = true
		payload["amoTime"] = amo
	}
	return payload, nil
}

// ModifyOrder builds the PUT /v2/orders/{order-id} payload. Symbol and side
// cannot change on a modify, so the resolver is not consulted.
func (m *Mapper) ModifyOrder(_ context.Context, orderID string, order broker.Order, cred auth.Credential) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	f, err := m.mapFields(
		field{"orderType", string(order.OrderType)},
		field{"duration", string(order.Duration)},
		field{"legName", "NA"},
	)
	if err != nil {
		return nil, err
	}
	if err := checkPricing(f, order); err != nil {
		return nil, err
	}

	return map[string]any{
		"dhanClientId":      cred.ClientID,
		"orderId":           orderID,
		"orderType":         f["orderType"],
		"legName":           f["legName"],
		"quantity":          order.Quantity,
		"price":             number(order.Price),
		"disclosedQuantity": order.DisclosedQuantity,
		"triggerPrice":      number(order.TriggerPrice),
		"validity":          f["duration"],
	}, nil
}
