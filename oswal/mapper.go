package oswal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
)

// Fields is the OpenAPI order field table
var Fields = []mapping.Field{
	{Name: "transactionType", Key: "buyorsell", Values: []mapping.Value{{Wire: "BUY"}, {Wire: "SELL"}}},
	{
		Name: "orderType",
		Key:  "ordertype",
		Values: []mapping.Value{
			{Wire: "LIMIT"},
			{Wire: "MARKET"},
			{Wire: "STOPLOSS", Accept: []string{"STOPLOSS_LIMIT", "STOPLOSS_MARKET", "SL", "SL-M"}},
		},
		Default: "LIMIT",
	},
	{
		Name: "productType",
		Key:  "producttype",
		Values: []mapping.Value{
			{Wire: "NORMAL", Accept: []string{"INTRADAY", "CARRYFORWARD"}},
			{Wire: "DELIVERY"},
			{Wire: "VALUEPLUS", Accept: []string{"MARGIN"}},
			{Wire: "BTST"},
			{Wire: "MTF"},
		},
		Default: "DELIVERY",
	},
	{
		Name:    "duration",
		Key:     "orderduration",
		Values:  []mapping.Value{{Wire: "DAY"}, {Wire: "IOC"}, {Wire: "GTC"}, {Wire: "GTD"}},
		Default: "DAY",
	},
	{
		Name: "variety",
		Key:  "amoorder",
		Values: []mapping.Value{
			{Wire: "Y", Accept: []string{"AMO"}},
			{Wire: "N", Accept: []string{"NORMAL", "ROBO", "STOPLOSS", ""}},
		},
		Default: "N",
	},
}

// Segment maps an exchange/segment pair to the scrip master exchangename
func Segment(exchange, segment string) (string, error) {
	switch exchange + "/" + segment {
	case "NSE/", "NSE/EQUITY":
		return "NSE", nil
	case "BSE/", "BSE/EQUITY":
		return "BSE", nil
	case "NSE/FNO", "NFO/", "NFO/FNO":
		return "NSEFO", nil
	case "BSE/FNO", "BFO/", "BFO/FNO":
		return "BSEFO", nil
	case "NSE/CURRENCY", "CDS/", "CDS/CURRENCY":
		return "NSECD", nil
	case "MCX/", "MCX/COMMODITY":
		return "MCX", nil
	}
	return "", broker.NewErrorResponse(broker.ErrInvalidSymbolQuery, "",
		"oswal does not support exchange "+exchange+" segment "+segment, nil)
}

// OrderState is what a modify must echo back from the live order
type OrderState struct {
	LastModifiedTime string
	QtyTradedToday   int64
}

// Mapper turns normalized orders into OpenAPI payloads
type Mapper struct {
	table    *mapping.Table
	resolver symbols.Lookup
}

// NewMapper creates a mapper over table and resolver
func NewMapper(table *mapping.Table, resolver symbols.Lookup) *Mapper {
	return &Mapper{table: table, resolver: resolver}
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

// checkPricing validates prices against the order kind. OpenAPI has a
// single STOPLOSS type, so the caller's stop-loss flavour decides whether a
// limit price is needed.
func checkPricing(mapped string, order broker.Order) error {
	kind := broker.OrderType(mapped)
	if mapped == "STOPLOSS" {
		kind = broker.StopLossLimit
		if order.OrderType.IsStopLoss() {
			kind = order.OrderType
		}
	}
	return broker.ValidatePricing(kind, order.Price, order.TriggerPrice)
}

// lots converts a share quantity into lots of the instrument's market lot
func lots(qty int64, rec symbols.Record) (int64, error) {
	if rec.LotSize <= 1 {
		return qty, nil
	}
	if qty%rec.LotSize != 0 {
		return 0, broker.NewErrorResponse(broker.ErrInvalidOrderField, "",
			fmt.Sprintf("quantity %d is not a multiple of lot size %d for %s", qty, rec.LotSize, rec.TradingSymbol), nil)
	}
	return qty / rec.LotSize, nil
}

// PlaceOrder builds the placeorder payload. Quantities are sent in lots.
func (m *Mapper) PlaceOrder(ctx context.Context, order broker.Order, cred auth.Credential) (map[string]any, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	f, err := m.mapFields(
		field{"transactionType", string(order.TransactionType)},
		field{"orderType", string(order.OrderType)},
		field{"productType", string(order.ProductType)},
		field{"duration", string(order.Duration)},
		field{"variety", string(order.Variety)},
	)
	if err != nil {
		return nil, err
	}
	if err := checkPricing(f["orderType"], order); err != nil {
		return nil, err
	}

	rec, err := m.resolver.Resolve(ctx, order.TradingSymbol, order.Exchange, order.Segment)
	if err != nil {
		return nil, err
	}
	token, err := strconv.ParseInt(rec.InstrumentID, 10, 64)
	if err != nil {
		return nil, broker.NewErrorResponse(broker.ErrReferenceDataUnavailable, "",
			fmt.Sprintf("oswal scripcode %q for %s is not numeric", rec.InstrumentID, rec.TradingSymbol), nil)
	}
	qty, err := lots(order.Quantity, rec)
	if err != nil {
		return nil, err
	}
	disclosed, err := lots(order.DisclosedQuantity, rec)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"clientcode":        cred.ClientID,
		"exchange":          rec.ExchangeSegment,
		"symboltoken":       token,
		"buyorsell":         f["transactionType"],
		"ordertype":         f["orderType"],
		"producttype":       f["productType"],
		"orderduration":     f["duration"],
		"price":             number(order.Price),
		"triggerprice":      number(order.TriggerPrice),
		"quantityinlot":     qty,
		"disclosedquantity": disclosed,
		"amoorder":          f["variety"],
		"algoid":            "",
		"goodtilldate":      "",
		"tag":               "",
	}, nil
}

// ModifyOrder builds the v2 modifyorder payload. The live order state is
// added afterwards with SetOrderState.
func (m *Mapper) ModifyOrder(ctx context.Context, orderID string, order broker.Order, cred auth.Credential) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	f, err := m.mapFields(
		field{"orderType", string(order.OrderType)},
		field{"duration", string(order.Duration)},
	)
	if err != nil {
		return nil, err
	}
	if err := checkPricing(f["orderType"], order); err != nil {
		return nil, err
	}

	rec, err := m.resolver.Resolve(ctx, order.TradingSymbol, order.Exchange, order.Segment)
	if err != nil {
		return nil, err
	}
	qty, err := lots(order.Quantity, rec)
	if err != nil {
		return nil, err
	}
	disclosed, err := lots(order.DisclosedQuantity, rec)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"clientcode":           cred.ClientID,
		"uniqueorderid":        orderID,
		"newordertype":         f["orderType"],
		"neworderduration":     f["duration"],
		"newquantityinlot":     qty,
		"newdisclosedquantity": disclosed,
		"newprice":             number(order.Price),
		"newtriggerprice":      number(order.TriggerPrice),
		"newgoodtilldate":      "",
	}, nil
}

// SetOrderState stamps a modify payload with the order detail it was based
// on. The upstream rejects a modify whose lastmodifiedtime is stale.
func SetOrderState(payload map[string]any, prev OrderState) {
	payload["lastmodifiedtime"] = prev.LastModifiedTime
	payload["qtytradedtoday"] = prev.QtyTradedToday
}

// CancelOrder builds the cancelorder payload
func (m *Mapper) CancelOrder(orderID string, cred auth.Credential) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	return map[string]any{"clientcode": cred.ClientID, "uniqueorderid": orderID}, nil
}
