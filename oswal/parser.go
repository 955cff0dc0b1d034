package oswal

import (
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/internal/jsonx"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
}

// envelope decodes an OpenAPI response. Success is status "SUCCESS"; any
// other value carries message and errorcode.
func envelope(status int, body []byte) (jsonx.Object, *broker.ErrorResponse) {
	obj, er := adapter.Decode(BrokerName, status, body)
	if er != nil {
		return nil, er
	}
	if !obj.Has("status") {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	if !strings.EqualFold(obj.String("status"), "SUCCESS") {
		return nil, broker.UpstreamFailure(obj.First("errorcode", "errorCode"), obj.String("message"), broker.RawData(body))
	}
	return obj, nil
}

func items(status int, body []byte) (jsonx.Object, []jsonx.Object, *broker.ErrorResponse) {
	obj, er := envelope(status, body)
	if er != nil {
		return nil, nil, er
	}
	list, er := adapter.List(BrokerName, body, obj, "data")
	if er != nil {
		return nil, nil, er
	}
	return obj, list, nil
}

// ParseOrderResponse parses place, modify and cancel responses
func ParseOrderResponse(status int, body []byte, pctx broker.ParseContext) broker.Result[*broker.OrderResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderResponse](er)
		}

		id := obj.String("uniqueorderid")
		if id == "" {
			id = pctx.OrderID
		}
		return broker.Success(&broker.OrderResponse{
			Status:        broker.StatusSuccess,
			Message:       obj.String("message"),
			OrderID:       id,
			Symbol:        pctx.Symbol,
			UniqueOrderID: id,
		})
	})
}

func orderEntry(o jsonx.Object) broker.OrderBookEntry {
	variety := string(broker.VarietyNormal)
	if strings.EqualFold(o.String("amoorder"), "Y") {
		variety = string(broker.VarietyAMO)
	}
	id := o.String("uniqueorderid")
	return broker.OrderBookEntry{
		Variety:            variety,
		OrderType:          o.String("ordertype"),
		ProductType:        o.String("producttype"),
		Duration:           o.String("orderduration"),
		Price:              o.Decimal("price"),
		Quantity:           o.Int("orderqty"),
		DisclosedQuantity:  o.Int("disclosedqty"),
		Symbol:             o.String("symbol"),
		TransactionType:    o.String("buyorsell"),
		Exchange:           o.String("exchange"),
		AveragePrice:       o.Decimal("averageprice"),
		FilledShares:       o.Int("qtytradedtoday"),
		UnfilledShares:     o.Int("totalqtyremaining"),
		OrderID:            id,
		OrderStatus:        o.String("orderstatus"),
		OrderStatusMessage: o.String("error"),
		OrderUpdateTime:    jsonx.Timestamp(o.First("lastmodifiedtime", "recordinserttime"), timeLayouts...),
		LotSize:            o.Int("marketlot"),
		OptionType:         o.String("optiontype"),
		InstrumentType:     o.String("series"),
		UniqueOrderID:      id,
	}
}

// ParseOrderBook parses getorderbook
func ParseOrderBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.OrderBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderBookResponse] {
		obj, list, er := items(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderBookResponse](er)
		}
		book := make([]broker.OrderBookEntry, 0, len(list))
		for _, o := range list {
			book = append(book, orderEntry(o))
		}
		return broker.Success(&broker.OrderBookResponse{
			Status:  broker.StatusSuccess,
			Message: obj.String("message"),
			Orders:  book,
		})
	})
}

// latest picks the newest state from an order detail, which lists every
// state change oldest first
func latest(status int, body []byte, orderID string) (jsonx.Object, jsonx.Object, *broker.ErrorResponse) {
	obj, er := envelope(status, body)
	if er != nil {
		return nil, nil, er
	}
	if data, ok := obj.Object("data"); ok {
		return obj, data, nil
	}
	list, er := adapter.List(BrokerName, body, obj, "data")
	if er != nil {
		return nil, nil, er
	}
	if len(list) == 0 {
		return nil, nil, broker.UpstreamFailure(broker.CodeUpstream, "order "+orderID+" not found", broker.RawData(body))
	}
	return obj, list[len(list)-1], nil
}

// ParseOrderStatus parses getorderdetailbyuniqueorderid
func ParseOrderStatus(status int, body []byte, pctx broker.ParseContext) broker.Result[*broker.OrderStatusResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderStatusResponse] {
		obj, o, er := latest(status, body, pctx.OrderID)
		if er != nil {
			return broker.Failure[*broker.OrderStatusResponse](er)
		}
		return broker.Success(&broker.OrderStatusResponse{
			Status:         broker.StatusSuccess,
			Message:        obj.String("message"),
			OrderBookEntry: orderEntry(o),
		})
	})
}

// ParseOrderState extracts the fields a modify has to echo back
func ParseOrderState(status int, body []byte, pctx broker.ParseContext) broker.Result[OrderState] {
	return adapter.Parse(BrokerName, body, func() broker.Result[OrderState] {
		_, o, er := latest(status, body, pctx.OrderID)
		if er != nil {
			return broker.Failure[OrderState](er)
		}
		if !o.Has("lastmodifiedtime") {
			return broker.Failure[OrderState](broker.ParseFailure(BrokerName, body))
		}
		var traded int64
		if n := o.Int("qtytradedtoday"); n != nil {
			traded = *n
		}
		return broker.Success(OrderState{LastModifiedTime: o.String("lastmodifiedtime"), QtyTradedToday: traded})
	})
}

// ParseTradeBook parses gettradebook. Each row is one fill.
func ParseTradeBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.TradeBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.TradeBookResponse] {
		obj, list, er := items(status, body)
		if er != nil {
			return broker.Failure[*broker.TradeBookResponse](er)
		}
		trades := make([]broker.TradeBookEntry, 0, len(list))
		for _, t := range list {
			trades = append(trades, broker.TradeBookEntry{
				Exchange:        t.String("exchange"),
				ProductType:     t.String("producttype"),
				Symbol:          t.String("symbol"),
				Multiplier:      decimal.NewNullDecimal(decimal.NewFromInt(1)),
				TransactionType: t.String("buyorsell"),
				Price:           t.Decimal("tradeprice"),
				FilledShares:    t.Int("tradeqty"),
				OrderID:         t.String("uniqueorderid"),
				Quantity:        t.Int("tradeqty"),
				UnfilledShares:  broker.Int64(0),
			})
		}
		return broker.Success(&broker.TradeBookResponse{
			Status:  broker.StatusSuccess,
			Message: obj.String("message"),
			Trades:  trades,
		})
	})
}

// ParseHolding parses getdpholding. DP holdings carry both exchange tokens;
// NSE is reported when the scrip is listed there.
func ParseHolding(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.HoldingResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.HoldingResponse] {
		obj, list, er := items(status, body)
		if er != nil {
			return broker.Failure[*broker.HoldingResponse](er)
		}
		holdings := make([]broker.HoldingEntry, 0, len(list))
		for _, h := range list {
			ex := "BSE"
			if tok := h.String("nsesymboltoken"); tok != "" && tok != "0" {
				ex = "NSE"
			}
			holdings = append(holdings, broker.HoldingEntry{
				Symbol:   h.String("scripname"),
				Exchange: ex,
				Quantity: h.Int("dpquantity"),
				LTP:      h.Decimal("ltp"),
				PnL:      h.Decimal("pnl"),
				AvgPrice: h.Decimal("buyavgprice"),
			})
		}
		return broker.Success(&broker.HoldingResponse{
			Status:   broker.StatusSuccess,
			Message:  obj.String("message"),
			Holdings: holdings,
		})
	})
}

// average divides amount by qty; zero quantity gives zero
func average(amount decimal.NullDecimal, qty *int64) decimal.NullDecimal {
	if !amount.Valid || qty == nil {
		return decimal.NullDecimal{}
	}
	if *qty == 0 {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	return decimal.NewNullDecimal(amount.Decimal.Div(decimal.NewFromInt(*qty)).Round(2))
}

// ParsePosition parses getposition. Averages and net quantity are derived
// from the reported buy and sell totals.
func ParsePosition(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.PositionResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.PositionResponse] {
		obj, list, er := items(status, body)
		if er != nil {
			return broker.Failure[*broker.PositionResponse](er)
		}
		positions := make([]broker.PositionEntry, 0, len(list))
		for _, p := range list {
			buyQty, sellQty := p.Int("buyquantity"), p.Int("sellquantity")
			buyAmt, sellAmt := p.Decimal("buyamount"), p.Decimal("sellamount")

			var net *int64
			if buyQty != nil && sellQty != nil {
				net = broker.Int64(*buyQty - *sellQty)
			}
			name := p.String("scripname")
			if name == "" {
				name = p.String("symbol")
			}
			positions = append(positions, broker.PositionEntry{
				Exchange:     p.String("exchange"),
				Symbol:       p.String("symbol"),
				Name:         name,
				Multiplier:   p.Decimal("multiplier"),
				BuyQuantity:  buyQty,
				SellQuantity: sellQty,
				BuyAmount:    buyAmt,
				SellAmount:   sellAmt,
				BuyAvgPrice:  average(buyAmt, buyQty),
				SellAvgPrice: average(sellAmt, sellQty),
				NetQuantity:  net,
			})
		}
		return broker.Success(&broker.PositionResponse{
			Status:    broker.StatusSuccess,
			Message:   obj.String("message"),
			Positions: positions,
		})
	})
}

// particulars maps margin summary rows onto fund fields. Rows are matched
// by the first rule whose phrase appears in the lower-cased particular, so
// more specific phrases come first.
var particulars = []struct {
	phrase string
	set    func(*broker.FundsResponse, decimal.NullDecimal)
}{
	{"available margin for cash", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.AvailableCash = d }},
	{"payin", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.AvailableIntradayPayin = d }},
	{"total available margin", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.AvailableLimitMargin = d }},
	{"collateral", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.Collateral = d }},
	{"unrealized", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.M2MUnrealized = d }},
	{"realized", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.M2MRealized = d }},
	{"payout", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.UtilisedPayout = d }},
	{"margin used", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.UtilisedDebits = d }},
	{"ledger balance", func(f *broker.FundsResponse, d decimal.NullDecimal) { f.Net = d }},
}

// ParseFunds parses getreportmarginsummary, a list of {particulars, amount}
// rows. Rows not recognised are ignored.
func ParseFunds(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.FundsResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.FundsResponse] {
		obj, list, er := items(status, body)
		if er != nil {
			return broker.Failure[*broker.FundsResponse](er)
		}

		funds := &broker.FundsResponse{Status: broker.StatusSuccess, Message: obj.String("message")}
		for _, row := range list {
			name := strings.ToLower(row.String("particulars"))
			for _, p := range particulars {
				if strings.Contains(name, p.phrase) {
					p.set(funds, row.Decimal("amount"))
					break
				}
			}
		}
		return broker.Success(funds)
	})
}

// stringList accepts either a JSON array or a comma separated string
func stringList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(t, ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseProfile parses login/v1/getprofile
func ParseProfile(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.ProfileResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.ProfileResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.ProfileResponse](er)
		}
		data, ok := obj.Object("data")
		if !ok {
			return broker.Failure[*broker.ProfileResponse](broker.ParseFailure(BrokerName, body))
		}
		return broker.Success(&broker.ProfileResponse{
			Status:    broker.StatusSuccess,
			Message:   obj.String("message"),
			ClientID:  data.String("clientcode"),
			Name:      data.First("name", "clientname"),
			Email:     data.First("email", "emailid"),
			Mobile:    data.First("mobileno", "mobile"),
			Broker:    data.First("brokername", "usertype"),
			Exchanges: stringList(data["exchanges"]),
			Products:  stringList(data["products"]),
		})
	})
}
