package angelone

import (
	"context"
	"strconv"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
)

func values(wire ...string) []mapping.Value {
	out := make([]mapping.Value, len(wire))
	for i, w := range wire {
		out[i] = mapping.Value{Wire: w}
	}
	return out
}

// Fields is the SmartAPI order field table
var Fields = []mapping.Field{
	{Name: "transactionType", Key: "transactiontype", Values: values("BUY", "SELL")},
	{Name: "orderType", Key: "ordertype", Values: values("MARKET", "LIMIT", "STOPLOSS_LIMIT", "STOPLOSS_MARKET"), Default: "LIMIT"},
	{Name: "productType", Key: "producttype", Values: values("INTRADAY", "DELIVERY", "CARRYFORWARD", "MARGIN", "BO"), Default: "DELIVERY"},
	{Name: "duration", Key: "duration", Values: values("DAY", "IOC"), Default: "DAY"},
	{Name: "exchange", Key: "exchange", Values: values("NSE", "BSE", "MCX", "NFO", "CDS", "BFO")},
	{Name: "variety", Key: "variety", Values: values("NORMAL", "AMO", "ROBO", "STOPLOSS"), Default: "NORMAL"},
}

// Segment maps an exchange/segment pair to the scrip master exch_seg
func Segment(exchange, segment string) (string, error) {
	switch exchange + "/" + segment {
	case "NSE/", "NSE/EQUITY":
		return "NSE", nil
	case "BSE/", "BSE/EQUITY":
		return "BSE", nil
	case "NSE/FNO", "NFO/", "NFO/FNO":
		return "NFO", nil
	case "BSE/FNO", "BFO/", "BFO/FNO":
		return "BFO", nil
	case "NSE/CURRENCY", "CDS/", "CDS/CURRENCY":
		return "CDS", nil
	case "MCX/", "MCX/COMMODITY":
		return "MCX", nil
	}
	return "", broker.NewErrorResponse(broker.ErrInvalidSymbolQuery, "",
		"angelone does not support exchange "+exchange+" segment "+segment, nil)
}

// Mapper turns normalized orders into SmartAPI payloads. It performs no
// network calls other than a possible scrip master reload in the resolver.
type Mapper struct {
	table    *mapping.Table
	resolver symbols.Lookup
}

// NewMapper creates a mapper over table and resolver
func NewMapper(table *mapping.Table, resolver symbols.Lookup) *Mapper {
	return &Mapper{table: table, resolver: resolver}
}

type mapped struct {
	fields map[string]string
	record symbols.Record
}

func (m *Mapper) common(ctx context.Context, order broker.Order, names ...string) (*mapped, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	inputs := map[string]string{
		"transactionType": string(order.TransactionType),
		"orderType":       string(order.OrderType),
		"productType":     string(order.ProductType),
		"duration":        string(order.Duration),
		"exchange":        string(order.Exchange),
		"variety":         string(order.Variety),
	}

	out := &mapped{fields: make(map[string]string, len(names))}
	for _, name := range names {
		v, err := m.table.Map(name, inputs[name])
		if err != nil {
			return nil, err
		}
		out.fields[name] = v
	}

	if err := broker.ValidatePricing(broker.OrderType(out.fields["orderType"]), order.Price, order.TriggerPrice); err != nil {
		return nil, err
	}

	rec, err := m.resolver.Resolve(ctx, order.TradingSymbol, order.Exchange, order.Segment)
	if err != nil {
		return nil, err
	}
	out.record = rec
	return out, nil
}

// PlaceOrder builds the placeOrder payload. Prices and quantities are
// strings on the wire.
func (m *Mapper) PlaceOrder(ctx context.Context, order broker.Order, _ auth.Credential) (map[string]any, error) {
	f, err := m.common(ctx, order, "variety", "transactionType", "exchange", "orderType", "productType", "duration")
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"variety":           f.fields["variety"],
		"tradingsymbol":     f.record.TradingSymbol,
		"symboltoken":       f.record.InstrumentID,
		"transactiontype":   f.fields["transactionType"],
		"exchange":          exchangeFor(f),
		"ordertype":         f.fields["orderType"],
		"producttype":       f.fields["productType"],
		"duration":          f.fields["duration"],
		"price":             order.Price.String(),
		"triggerprice":      order.TriggerPrice.String(),
		"quantity":          strconv.FormatInt(order.Quantity, 10),
		"disclosedquantity": strconv.FormatInt(order.DisclosedQuantity, 10),
		"squareoff":         "0",
		"stoploss":          "0",
	}, nil
}

// ModifyOrder builds the modifyOrder payload for orderID
func (m *Mapper) ModifyOrder(ctx context.Context, orderID string, order broker.Order, _ auth.Credential) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	f, err := m.common(ctx, order, "variety", "exchange", "orderType", "productType", "duration")
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"variety":       f.fields["variety"],
		"orderid":       orderID,
		"ordertype":     f.fields["orderType"],
		"producttype":   f.fields["productType"],
		"duration":      f.fields["duration"],
		"price":         order.Price.String(),
		"quantity":      strconv.FormatInt(order.Quantity, 10),
		"tradingsymbol": f.record.TradingSymbol,
		"symboltoken":   f.record.InstrumentID,
		"exchange":      exchangeFor(f),
	}
	if broker.OrderType(f.fields["orderType"]).IsStopLoss() {
		payload["triggerprice"] = order.TriggerPrice.String()
	}
	return payload, nil
}

// CancelOrder builds the cancelOrder payload
func (m *Mapper) CancelOrder(orderID string, variety broker.Variety) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	v, err := m.table.Map("variety", string(variety))
	if err != nil {
		return nil, err
	}
	return map[string]any{"variety": v, "orderid": orderID}, nil
}

// exchangeFor prefers the derivative exchange the symbol resolved on, so an
// NSE/FNO order goes out as NFO
func exchangeFor(f *mapped) string {
	seg := strings.ToUpper(f.record.ExchangeSegment)
	switch seg {
	case "NSE", "BSE", "MCX", "NFO", "CDS", "BFO":
		return seg
	}
	return f.fields["exchange"]
}
