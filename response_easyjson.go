package broker

import (
	"github.com/mailru/easyjson/jwriter"
	"github.com/shopspring/decimal"
)

// Hand-written easyjson marshalers. Key names match the wire format the
// routing layer has always exposed, so responses can be passed through as-is.

type objectWriter struct {
	w     *jwriter.Writer
	first bool
}

func beginObject(w *jwriter.Writer) objectWriter {
	w.RawByte('{')
	return objectWriter{w: w, first: true}
}

func (o *objectWriter) key(k string) {
	if !o.first {
		o.w.RawByte(',')
	}
	o.first = false
	o.w.String(k)
	o.w.RawByte(':')
}

func (o *objectWriter) str(k, v string) {
	o.key(k)
	o.w.String(v)
}

func (o *objectWriter) int(k string, v int) {
	o.key(k)
	o.w.Int(v)
}

func (o *objectWriter) count(k string, v *int64) {
	o.key(k)
	if v == nil {
		o.w.RawString("null")
		return
	}
	o.w.Int64(*v)
}

// dec writes decimals as canonical strings so no precision is lost in transit
func (o *objectWriter) dec(k string, v decimal.NullDecimal) {
	o.key(k)
	if !v.Valid {
		o.w.RawString("null")
		return
	}
	o.w.String(v.Decimal.String())
}

func (o *objectWriter) end() {
	o.w.RawByte('}')
}

func writeList[T any](o *objectWriter, k string, items []T, each func(*jwriter.Writer, *T)) {
	o.key(k)
	o.w.RawByte('[')
	for i := range items {
		if i > 0 {
			o.w.RawByte(',')
		}
		each(o.w, &items[i])
	}
	o.w.RawByte(']')
}

func build(fn func(*jwriter.Writer)) ([]byte, error) {
	w := jwriter.Writer{}
	fn(&w)
	return w.BuildBytes()
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v OrderResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	o.str("orderId", v.OrderID)
	o.str("symbol", v.Symbol)
	o.str("uniqueOrderId", v.UniqueOrderID)
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v OrderResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

func writeOrderEntryFields(o *objectWriter, e *OrderBookEntry) {
	o.str("variety", e.Variety)
	o.str("orderType", e.OrderType)
	o.str("productType", e.ProductType)
	o.str("duration", e.Duration)
	o.dec("price", e.Price)
	o.count("quantity", e.Quantity)
	o.count("disclosedQuantity", e.DisclosedQuantity)
	o.str("symbol", e.Symbol)
	o.str("transactionType", e.TransactionType)
	o.str("exchange", e.Exchange)
	o.dec("averagePrice", e.AveragePrice)
	o.count("filledShares", e.FilledShares)
	o.count("unfilledShares", e.UnfilledShares)
	o.str("orderId", e.OrderID)
	o.str("orderStatus", e.OrderStatus)
	o.str("orderStatusMessage", e.OrderStatusMessage)
	o.str("orderUpdateTime", e.OrderUpdateTime)
	o.count("lotsize", e.LotSize)
	o.str("optionType", e.OptionType)
	o.str("instrumentType", e.InstrumentType)
	o.str("uniqueOrderId", e.UniqueOrderID)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v OrderBookEntry) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	writeOrderEntryFields(&o, &v)
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v OrderBookEntry) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v OrderBookResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	writeList(&o, "orderBook", v.Orders, func(w *jwriter.Writer, e *OrderBookEntry) { e.MarshalEasyJSON(w) })
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v OrderBookResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v TradeBookEntry) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.str("exchange", v.Exchange)
	o.str("productType", v.ProductType)
	o.str("symbol", v.Symbol)
	o.dec("multiplier", v.Multiplier)
	o.str("transactionType", v.TransactionType)
	o.dec("price", v.Price)
	o.count("filledShares", v.FilledShares)
	o.str("orderId", v.OrderID)
	o.count("quantity", v.Quantity)
	o.count("unfilledShares", v.UnfilledShares)
	o.end()
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v TradeBookResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	writeList(&o, "tradeBook", v.Trades, func(w *jwriter.Writer, e *TradeBookEntry) { e.MarshalEasyJSON(w) })
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v TradeBookResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v OrderStatusResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	writeOrderEntryFields(&o, &v.OrderBookEntry)
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v OrderStatusResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v HoldingEntry) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.str("symbol", v.Symbol)
	o.str("exchange", v.Exchange)
	o.count("quantity", v.Quantity)
	o.dec("ltp", v.LTP)
	o.dec("pnl", v.PnL)
	o.dec("avgPrice", v.AvgPrice)
	o.end()
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v HoldingResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	writeList(&o, "holding", v.Holdings, func(w *jwriter.Writer, e *HoldingEntry) { e.MarshalEasyJSON(w) })
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v HoldingResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v PositionEntry) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.str("exchange", v.Exchange)
	o.str("symbol", v.Symbol)
	o.str("name", v.Name)
	o.dec("multiplier", v.Multiplier)
	o.count("buyQuantity", v.BuyQuantity)
	o.count("sellQuantity", v.SellQuantity)
	o.dec("buyAmount", v.BuyAmount)
	o.dec("sellAmount", v.SellAmount)
	o.dec("buyAvgPrice", v.BuyAvgPrice)
	o.dec("sellAvgPrice", v.SellAvgPrice)
	o.count("netQuantity", v.NetQuantity)
	o.end()
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v PositionResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	writeList(&o, "position", v.Positions, func(w *jwriter.Writer, e *PositionEntry) { e.MarshalEasyJSON(w) })
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v PositionResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v FundsResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	o.dec("availablecash", v.AvailableCash)
	o.dec("availableintradaypayin", v.AvailableIntradayPayin)
	o.dec("availablelimitmargin", v.AvailableLimitMargin)
	o.dec("collateral", v.Collateral)
	o.dec("m2mrealized", v.M2MRealized)
	o.dec("m2munrealized", v.M2MUnrealized)
	o.dec("net", v.Net)
	o.dec("utiliseddebits", v.UtilisedDebits)
	o.dec("utilisedpayout", v.UtilisedPayout)
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v FundsResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

func writeStrings(o *objectWriter, k string, items []string) {
	writeList(o, k, items, func(w *jwriter.Writer, s *string) { w.String(*s) })
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v ProfileResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	o.str("clientId", v.ClientID)
	o.str("name", v.Name)
	o.str("email", v.Email)
	o.str("mobile", v.Mobile)
	o.str("broker", v.Broker)
	writeStrings(&o, "exchanges", v.Exchanges)
	writeStrings(&o, "products", v.Products)
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v ProfileResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v HoldingSummaryResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	o.key("totalHoldings")
	t := beginObject(w)
	t.dec("totalholdingvalue", v.HoldingValue)
	t.dec("totalinvvalue", v.InvestedValue)
	t.dec("totalprofitandloss", v.PnL)
	t.dec("totalpnlpercentage", v.PnLPercentage)
	t.end()
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v HoldingSummaryResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v ErrorResponse) MarshalEasyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.int("status", v.Status)
	o.str("message", v.Message)
	o.str("errorCode", v.ErrorCode)
	o.key("data")
	if len(v.Data) == 0 {
		w.RawString("null")
	} else {
		w.Raw(v.Data, nil)
	}
	o.end()
}

// MarshalJSON supports json.Marshaler interface
func (v ErrorResponse) MarshalJSON() ([]byte, error) {
	return build(v.MarshalEasyJSON)
}
