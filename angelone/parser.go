package angelone

import (
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/internal/jsonx"
)

var timeLayouts = []string{
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
}

// envelope decodes a SmartAPI response and checks its boolean status
func envelope(status int, body []byte) (jsonx.Object, *broker.ErrorResponse) {
	obj, er := adapter.Decode(BrokerName, status, body)
	if er != nil {
		return nil, er
	}

	ok, present := obj.Bool("status")
	if !present {
		ok, present = obj.Bool("success")
	}
	if !present {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	if !ok {
		return nil, broker.UpstreamFailure(obj.First("errorcode", "errorCode"), obj.String("message"), broker.RawData(body))
	}
	return obj, nil
}

func dataObject(obj jsonx.Object, body []byte) (jsonx.Object, *broker.ErrorResponse) {
	data, ok := obj.Object("data")
	if !ok {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	return data, nil
}

// ParseOrderResponse parses place, modify and cancel responses
func ParseOrderResponse(status int, body []byte, pctx broker.ParseContext) broker.Result[*broker.OrderResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderResponse](er)
		}
		data, er := dataObject(obj, body)
		if er != nil {
			return broker.Failure[*broker.OrderResponse](er)
		}

		orderID := data.String("orderid")
		if orderID == "" {
			orderID = pctx.OrderID
		}
		symbol := data.String("script")
		if symbol == "" {
			symbol = pctx.Symbol
		}
		return broker.Success(&broker.OrderResponse{
			Status:        broker.StatusSuccess,
			Message:       obj.String("message"),
			OrderID:       orderID,
			Symbol:        symbol,
			UniqueOrderID: data.String("uniqueorderid"),
		})
	})
}

func orderEntry(o jsonx.Object) broker.OrderBookEntry {
	updated := o.First("exchorderupdatetime", "updatetime")
	return broker.OrderBookEntry{
		Variety:            o.String("variety"),
		OrderType:          o.String("ordertype"),
		ProductType:        o.String("producttype"),
		Duration:           o.String("duration"),
		Price:              o.Decimal("price"),
		Quantity:           o.Int("quantity"),
		DisclosedQuantity:  o.Int("disclosedquantity"),
		Symbol:             o.String("tradingsymbol"),
		TransactionType:    o.String("transactiontype"),
		Exchange:           o.String("exchange"),
		AveragePrice:       o.Decimal("averageprice"),
		FilledShares:       o.Int("filledshares"),
		UnfilledShares:     o.Int("unfilledshares"),
		OrderID:            o.String("orderid"),
		OrderStatus:        o.String("status"),
		OrderStatusMessage: o.String("text"),
		OrderUpdateTime:    jsonx.Timestamp(updated, timeLayouts...),
		LotSize:            o.Int("lotsize"),
		OptionType:         o.String("optiontype"),
		InstrumentType:     o.String("instrumenttype"),
		UniqueOrderID:      o.String("uniqueorderid"),
	}
}

// ParseOrderBook parses getOrderBook
func ParseOrderBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.OrderBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderBookResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderBookResponse](er)
		}
		items, er := adapter.List(BrokerName, body, obj, "data")
		if er != nil {
			return broker.Failure[*broker.OrderBookResponse](er)
		}

		book := make([]broker.OrderBookEntry, 0, len(items))
		for _, o := range items {
			book = append(book, orderEntry(o))
		}
		return broker.Success(&broker.OrderBookResponse{
			Status:  broker.StatusSuccess,
			Message: obj.String("message"),
			Orders:  book,
		})
	})
}

// ParseTradeBook parses getTradeBook. SmartAPI reports fills only, so
// quantity and unfilled shares are null.
func ParseTradeBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.TradeBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.TradeBookResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.TradeBookResponse](er)
		}
		items, er := adapter.List(BrokerName, body, obj, "data")
		if er != nil {
			return broker.Failure[*broker.TradeBookResponse](er)
		}

		trades := make([]broker.TradeBookEntry, 0, len(items))
		for _, t := range items {
			trades = append(trades, broker.TradeBookEntry{
				Exchange:        t.String("exchange"),
				ProductType:     t.String("producttype"),
				Symbol:          t.String("tradingsymbol"),
				Multiplier:      t.Decimal("multiplier"),
				TransactionType: t.String("transactiontype"),
				Price:           t.Decimal("fillprice"),
				FilledShares:    t.Int("fillsize"),
				OrderID:         t.String("orderid"),
			})
		}
		return broker.Success(&broker.TradeBookResponse{
			Status:  broker.StatusSuccess,
			Message: obj.String("message"),
			Trades:  trades,
		})
	})
}

// ParseOrderStatus parses order/v1/details
func ParseOrderStatus(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.OrderStatusResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderStatusResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderStatusResponse](er)
		}
		data, er := dataObject(obj, body)
		if er != nil {
			return broker.Failure[*broker.OrderStatusResponse](er)
		}
		return broker.Success(&broker.OrderStatusResponse{
			Status:         broker.StatusSuccess,
			Message:        obj.String("message"),
			OrderBookEntry: orderEntry(data),
		})
	})
}

// ParseHolding parses portfolio/v1/getHolding
func ParseHolding(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.HoldingResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.HoldingResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.HoldingResponse](er)
		}
		items, er := adapter.List(BrokerName, body, obj, "data")
		if er != nil {
			return broker.Failure[*broker.HoldingResponse](er)
		}

		holdings := make([]broker.HoldingEntry, 0, len(items))
		for _, h := range items {
			holdings = append(holdings, broker.HoldingEntry{
				Symbol:   h.String("tradingsymbol"),
				Exchange: h.String("exchange"),
				Quantity: h.Int("quantity"),
				LTP:      h.Decimal("ltp"),
				PnL:      h.Decimal("profitandloss"),
				AvgPrice: h.Decimal("averageprice"),
			})
		}
		return broker.Success(&broker.HoldingResponse{
			Status:   broker.StatusSuccess,
			Message:  obj.String("message"),
			Holdings: holdings,
		})
	})
}

// ParsePosition parses order/v1/getPosition
func ParsePosition(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.PositionResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.PositionResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.PositionResponse](er)
		}
		items, er := adapter.List(BrokerName, body, obj, "data")
		if er != nil {
			return broker.Failure[*broker.PositionResponse](er)
		}

		positions := make([]broker.PositionEntry, 0, len(items))
		for _, p := range items {
			positions = append(positions, broker.PositionEntry{
				Exchange:     p.String("exchange"),
				Symbol:       p.String("tradingsymbol"),
				Name:         p.String("symbolname"),
				Multiplier:   p.Decimal("multiplier"),
				BuyQuantity:  p.Int("buyqty"),
				SellQuantity: p.Int("sellqty"),
				BuyAmount:    p.Decimal("buyamount"),
				SellAmount:   p.Decimal("sellamount"),
				BuyAvgPrice:  p.Decimal("buyavgprice"),
				SellAvgPrice: p.Decimal("sellavgprice"),
				NetQuantity:  p.Int("netqty"),
			})
		}
		return broker.Success(&broker.PositionResponse{
			Status:    broker.StatusSuccess,
			Message:   obj.String("message"),
			Positions: positions,
		})
	})
}

// ParseFunds parses user/v1/getRMS
func ParseFunds(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.FundsResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.FundsResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.FundsResponse](er)
		}
		data, er := dataObject(obj, body)
		if er != nil {
			return broker.Failure[*broker.FundsResponse](er)
		}
		return broker.Success(&broker.FundsResponse{
			Status:                 broker.StatusSuccess,
			Message:                obj.String("message"),
			AvailableCash:          data.Decimal("availablecash"),
			AvailableIntradayPayin: data.Decimal("availableintradaypayin"),
			AvailableLimitMargin:   data.Decimal("availablelimitmargin"),
			Collateral:             data.Decimal("collateral"),
			M2MRealized:            data.Decimal("m2mrealized"),
			M2MUnrealized:          data.Decimal("m2munrealized"),
			Net:                    data.Decimal("net"),
			UtilisedDebits:         data.Decimal("utiliseddebits"),
			UtilisedPayout:         data.Decimal("utilisedpayout"),
		})
	})
}

func stringList(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseProfile parses user/v1/getProfile
func ParseProfile(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.ProfileResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.ProfileResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.ProfileResponse](er)
		}
		data, er := dataObject(obj, body)
		if er != nil {
			return broker.Failure[*broker.ProfileResponse](er)
		}
		return broker.Success(&broker.ProfileResponse{
			Status:    broker.StatusSuccess,
			Message:   obj.String("message"),
			ClientID:  data.String("clientcode"),
			Name:      data.String("name"),
			Email:     data.String("email"),
			Mobile:    data.String("mobileno"),
			Broker:    data.String("brokerid"),
			Exchanges: stringList(data["exchanges"]),
			Products:  stringList(data["products"]),
		})
	})
}

// ParseHoldingSummary parses the totalholding block of
// portfolio/v1/getAllHolding
func ParseHoldingSummary(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.HoldingSummaryResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.HoldingSummaryResponse] {
		obj, er := envelope(status, body)
		if er != nil {
			return broker.Failure[*broker.HoldingSummaryResponse](er)
		}
		data, er := dataObject(obj, body)
		if er != nil {
			return broker.Failure[*broker.HoldingSummaryResponse](er)
		}
		total, ok := data.Object("totalholding")
		if !ok {
			return broker.Failure[*broker.HoldingSummaryResponse](broker.ParseFailure(BrokerName, body))
		}
		return broker.Success(&broker.HoldingSummaryResponse{
			Status:        broker.StatusSuccess,
			Message:       obj.String("message"),
			HoldingValue:  total.Decimal("totalholdingvalue"),
			InvestedValue: total.Decimal("totalinvvalue"),
			PnL:           total.Decimal("totalprofitandloss"),
			PnLPercentage: total.Decimal("totalpnlpercentage"),
		})
	})
}
