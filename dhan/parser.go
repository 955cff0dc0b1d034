package dhan

import (
	"fmt"
	"net/http"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/internal/jsonx"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02",
}

// decode parses a Dhan body. Dhan signals failure with errorCode/errorType
// in an object, or with a bare HTTP error status.
func decode(status int, body []byte) (any, *broker.ErrorResponse) {
	v, err := jsonx.Decode(body)
	if err != nil {
		if status >= http.StatusBadRequest {
			return nil, broker.UpstreamFailure(broker.CodeUpstream,
				fmt.Sprintf("%s returned HTTP %d", BrokerName, status), broker.RawData(body))
		}
		return nil, broker.ParseFailure(BrokerName, body)
	}

	if obj, ok := v.(map[string]any); ok {
		o := jsonx.Object(obj)
		if !o.IsNull("errorCode") || !o.IsNull("errorType") {
			return nil, broker.UpstreamFailure(o.String("errorCode"),
				o.First("errorMessage", "message", "internalErrorMessage"), broker.RawData(body))
		}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, broker.UpstreamFailure(broker.CodeUpstream,
			fmt.Sprintf("%s returned HTTP %d", BrokerName, status), broker.RawData(body))
	}
	return v, nil
}

func object(status int, body []byte) (jsonx.Object, *broker.ErrorResponse) {
	v, er := decode(status, body)
	if er != nil {
		return nil, er
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	return obj, nil
}

// list accepts a top-level array; null is an empty list
func list(status int, body []byte) ([]jsonx.Object, *broker.ErrorResponse) {
	v, er := decode(status, body)
	if er != nil {
		return nil, er
	}
	if v == nil {
		return []jsonx.Object{}, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	items, err := jsonx.Objects(arr)
	if err != nil {
		return nil, broker.ParseFailure(BrokerName, body)
	}
	return items, nil
}

// exchange strips the segment half of NSE_EQ style values
func exchange(seg string) string {
	ex, _, _ := strings.Cut(seg, "_")
	return ex
}

// ParseOrderResponse parses place, modify and cancel responses
func ParseOrderResponse(status int, body []byte, pctx broker.ParseContext) broker.Result[*broker.OrderResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderResponse] {
		obj, er := object(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderResponse](er)
		}
		if !obj.Has("orderId") && !obj.Has("orderStatus") {
			return broker.Failure[*broker.OrderResponse](broker.ParseFailure(BrokerName, body))
		}

		orderID := obj.String("orderId")
		if orderID == "" {
			orderID = pctx.OrderID
		}
		return broker.Success(&broker.OrderResponse{
			Status:  broker.StatusSuccess,
			Message: "Your order status is " + obj.String("orderStatus"),
			OrderID: orderID,
			Symbol:  pctx.Symbol,
		})
	})
}

func orderEntry(o jsonx.Object) broker.OrderBookEntry {
	variety := string(broker.VarietyNormal)
	if amo, ok := o.Bool("afterMarketOrder"); ok && amo {
		variety = string(broker.VarietyAMO)
	}
	return broker.OrderBookEntry{
		Variety:            variety,
		OrderType:          o.String("orderType"),
		ProductType:        o.String("productType"),
		Duration:           o.String("validity"),
		Price:              o.Decimal("price"),
		Quantity:           o.Int("quantity"),
		DisclosedQuantity:  o.Int("disclosedQuantity"),
		Symbol:             o.String("tradingSymbol"),
		TransactionType:    o.String("transactionType"),
		Exchange:           exchange(o.String("exchangeSegment")),
		AveragePrice:       o.Decimal("averageTradedPrice"),
		FilledShares:       o.Int("filledQty"),
		UnfilledShares:     o.Int("remainingQuantity"),
		OrderID:            o.String("orderId"),
		OrderStatus:        o.String("orderStatus"),
		OrderStatusMessage: o.String("omsErrorDescription"),
		OrderUpdateTime:    jsonx.Timestamp(o.String("updateTime"), timeLayouts...),
		OptionType:         o.String("drvOptionType"),
		UniqueOrderID:      o.String("exchangeOrderId"),
	}
}

// ParseOrderBook parses GET /v2/orders
func ParseOrderBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.OrderBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderBookResponse] {
		items, er := list(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderBookResponse](er)
		}
		book := make([]broker.OrderBookEntry, 0, len(items))
		for _, o := range items {
			book = append(book, orderEntry(o))
		}
		return broker.Success(&broker.OrderBookResponse{
			Status:  broker.StatusSuccess,
			Message: "Order book fetched successfully",
			Orders:  book,
		})
	})
}

// ParseOrderStatus parses GET /v2/orders/{order-id}, which answers with
// either a single object or a one-element array
func ParseOrderStatus(status int, body []byte, pctx broker.ParseContext) broker.Result[*broker.OrderStatusResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.OrderStatusResponse] {
		v, er := decode(status, body)
		if er != nil {
			return broker.Failure[*broker.OrderStatusResponse](er)
		}

		var o jsonx.Object
		switch t := v.(type) {
		case map[string]any:
			o = t
		case []any:
			items, err := jsonx.Objects(t)
			if err != nil || len(items) == 0 {
				return broker.Failure[*broker.OrderStatusResponse](broker.UpstreamFailure(broker.CodeUpstream,
					"order "+pctx.OrderID+" not found", broker.RawData(body)))
			}
			o = items[0]
		default:
			return broker.Failure[*broker.OrderStatusResponse](broker.ParseFailure(BrokerName, body))
		}

		entry := orderEntry(o)
		entry.UniqueOrderID = entry.OrderID
		msg := "Order fetched successfully"
		if cid := o.String("correlationId"); cid != "" {
			msg += " (Correlation ID: " + cid + ")"
		}
		return broker.Success(&broker.OrderStatusResponse{
			Status:         broker.StatusSuccess,
			Message:        msg,
			OrderBookEntry: entry,
		})
	})
}

// ParseTradeBook parses GET /v2/trades. Each trade is a full fill of its
// quantity, so unfilled is zero.
func ParseTradeBook(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.TradeBookResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.TradeBookResponse] {
		items, er := list(status, body)
		if er != nil {
			return broker.Failure[*broker.TradeBookResponse](er)
		}
		trades := make([]broker.TradeBookEntry, 0, len(items))
		for _, t := range items {
			trades = append(trades, broker.TradeBookEntry{
				Exchange:        exchange(t.String("exchangeSegment")),
				ProductType:     t.String("productType"),
				Symbol:          t.String("tradingSymbol"),
				Multiplier:      decimal.NewNullDecimal(decimal.NewFromInt(1)),
				TransactionType: t.String("transactionType"),
				Price:           t.Decimal("tradedPrice"),
				FilledShares:    t.Int("tradedQuantity"),
				OrderID:         t.String("orderId"),
				Quantity:        t.Int("tradedQuantity"),
				UnfilledShares:  broker.Int64(0),
			})
		}
		return broker.Success(&broker.TradeBookResponse{
			Status:  broker.StatusSuccess,
			Message: "Trade book successfully fetched",
			Trades:  trades,
		})
	})
}

// ParseHolding parses GET /v2/holdings. P&L is not reported and stays null.
func ParseHolding(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.HoldingResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.HoldingResponse] {
		items, er := list(status, body)
		if er != nil {
			return broker.Failure[*broker.HoldingResponse](er)
		}
		holdings := make([]broker.HoldingEntry, 0, len(items))
		for _, h := range items {
			holdings = append(holdings, broker.HoldingEntry{
				Symbol:   h.String("tradingSymbol"),
				Exchange: h.String("exchange"),
				Quantity: h.Int("totalQty"),
				LTP:      h.Decimal("lastTradedPrice"),
				AvgPrice: h.Decimal("avgCostPrice"),
			})
		}
		return broker.Success(&broker.HoldingResponse{
			Status:   broker.StatusSuccess,
			Message:  "Holdings successfully fetched",
			Holdings: holdings,
		})
	})
}

// ParsePosition parses GET /v2/positions
func ParsePosition(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.PositionResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.PositionResponse] {
		items, er := list(status, body)
		if er != nil {
			return broker.Failure[*broker.PositionResponse](er)
		}
		positions := make([]broker.PositionEntry, 0, len(items))
		for _, p := range items {
			name := p.String("symbolname")
			if name == "" {
				name = p.String("tradingSymbol")
			}
			positions = append(positions, broker.PositionEntry{
				Exchange:     exchange(p.String("exchangeSegment")),
				Symbol:       p.String("tradingSymbol"),
				Name:         name,
				Multiplier:   p.Decimal("multiplier"),
				BuyQuantity:  p.Int("buyQty"),
				SellQuantity: p.Int("sellQty"),
				BuyAmount:    p.Decimal("dayBuyValue"),
				SellAmount:   p.Decimal("daySellValue"),
				BuyAvgPrice:  p.Decimal("buyAvg"),
				SellAvgPrice: p.Decimal("sellAvg"),
				NetQuantity:  p.Int("netQty"),
			})
		}
		return broker.Success(&broker.PositionResponse{
			Status:    broker.StatusSuccess,
			Message:   "Positions fetched successfully",
			Positions: positions,
		})
	})
}

// ParseFunds parses GET /v2/fundlimit. The upstream key is spelled
// availabelBalance.
func ParseFunds(status int, body []byte, _ broker.ParseContext) broker.Result[*broker.FundsResponse] {
	return adapter.Parse(BrokerName, body, func() broker.Result[*broker.FundsResponse] {
		obj, er := object(status, body)
		if er != nil {
			return broker.Failure[*broker.FundsResponse](er)
		}

		avail := obj.Decimal("availabelBalance")
		if !avail.Valid {
			avail = obj.Decimal("availableBalance")
		}
		if !avail.Valid && !obj.Has("withdrawableBalance") {
			return broker.Failure[*broker.FundsResponse](broker.ParseFailure(BrokerName, body))
		}

		zero := decimal.NewNullDecimal(decimal.Zero)
		return broker.Success(&broker.FundsResponse{
			Status:                 broker.StatusSuccess,
			Message:                "SUCCESS",
			AvailableCash:          avail,
			AvailableIntradayPayin: avail,
			AvailableLimitMargin:   avail,
			Collateral:             obj.Decimal("collateralAmount"),
			M2MRealized:            zero,
			M2MUnrealized:          zero,
			Net:                    obj.Decimal("withdrawableBalance"),
			UtilisedDebits:         obj.Decimal("utilizedAmount"),
			UtilisedPayout:         obj.Decimal("blockedPayoutAmount"),
		})
	})
}
