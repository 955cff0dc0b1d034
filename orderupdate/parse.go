package orderupdate

import (
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/internal/jsonx"
)

const (
	brokerName     = "dhan"
	typeOrderAlert = "order_alert"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
}

var txnTypes = map[string]string{"B": "BUY", "S": "SELL"}

var productTypes = map[string]string{
	"C": "CNC",
	"I": "INTRADAY",
	"M": "MARGIN",
	"F": "MTF",
	"V": "CO",
	"B": "BO",
}

// expand maps single-letter codes and passes full names through
func expand(codes map[string]string, v string) string {
	if full, ok := codes[strings.ToUpper(v)]; ok {
		return full
	}
	return v
}

// ParseOrderAlert normalizes one stream frame. ok is false for frames that
// are not order alerts, which callers skip.
func ParseOrderAlert(data []byte) (entry broker.OrderBookEntry, ok bool, err error) {
	msg, derr := jsonx.DecodeObject(data)
	if derr != nil {
		return entry, false, broker.ParseFailure(brokerName, data)
	}
	if !strings.EqualFold(msg.String("Type"), typeOrderAlert) {
		return entry, false, nil
	}
	d, found := msg.Object("Data")
	if !found {
		return entry, false, broker.ParseFailure(brokerName, data)
	}

	variety := string(broker.VarietyNormal)
	if amo, set := d.Bool("afterMarketOrder"); set && amo {
		variety = string(broker.VarietyAMO)
	}
	return broker.OrderBookEntry{
		Variety:            variety,
		OrderType:          d.First("OrderType", "orderType"),
		ProductType:        expand(productTypes, d.First("Product", "productType")),
		Duration:           d.First("Validity", "validity"),
		Price:              d.Decimal("Price"),
		Quantity:           d.Int("Quantity"),
		DisclosedQuantity:  d.Int("DiscQuantity"),
		Symbol:             d.First("Symbol", "DisplayName", "tradingSymbol"),
		TransactionType:    expand(txnTypes, d.First("TxnType", "transactionType")),
		Exchange:           d.First("Exchange", "exchangeSegment"),
		AveragePrice:       d.Decimal("AvgTradedPrice"),
		FilledShares:       d.Int("TradedQty"),
		UnfilledShares:     d.Int("RemainingQuantity"),
		OrderID:            d.First("OrderNo", "orderNo"),
		OrderStatus:        d.First("Status", "orderStatus"),
		OrderStatusMessage: d.String("ReasonDescription"),
		OrderUpdateTime:    jsonx.Timestamp(d.First("LastUpdatedTime", "OrderDateTime"), timeLayouts...),
		LotSize:            d.Int("LotSize"),
		OptionType:         d.String("OptType"),
		InstrumentType:     d.String("Instrument"),
		UniqueOrderID:      d.String("ExchOrderNo"),
	}, true, nil
}
