package oswal

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRecords = []symbols.Record{
	{TradingSymbol: "SBIN", ExchangeSegment: "NSE", InstrumentID: "3045", LotSize: 1},
	{TradingSymbol: "SBIN", ExchangeSegment: "BSE", InstrumentID: "500112", LotSize: 1},
	{TradingSymbol: "NIFTY 25JAN2024 22000 CE", ExchangeSegment: "NSEFO", InstrumentID: "35001", LotSize: 50},
	{TradingSymbol: "BADTOKEN", ExchangeSegment: "NSE", InstrumentID: "x-1", LotSize: 1},
}

func testResolver() *symbols.Resolver {
	src := symbols.SourceFunc(func(context.Context) ([]symbols.Record, error) {
		return testRecords, nil
	})
	return symbols.NewResolver(BrokerName, src, Segment)
}

func testMapper(opts ...mapping.Option) *Mapper {
	return NewMapper(mapping.NewTable(BrokerName, Fields, opts...), testResolver())
}

var testCred = auth.Credential{ClientID: "EMUM755714", AccessToken: "tok"}

func sbinOrder() broker.Order {
	return broker.Order{
		TradingSymbol:   "SBIN-EQ",
		Exchange:        broker.ExchangeNSE,
		Segment:         broker.SegmentEquity,
		TransactionType: broker.Buy,
		OrderType:       broker.Limit,
		ProductType:     broker.Delivery,
		Duration:        broker.DurationDay,
		Price:           decimal.RequireFromString("500.50"),
		Quantity:        10,
	}
}

func TestPlaceOrderPayload(t *testing.T) {
	p, err := testMapper().PlaceOrder(context.Background(), sbinOrder(), testCred)
	require.NoError(t, err)

	assert.Equal(t, "EMUM755714", p["clientcode"])
	assert.Equal(t, "NSE", p["exchange"])
	assert.EqualValues(t, 3045, p["symboltoken"])
	assert.Equal(t, "BUY", p["buyorsell"])
	assert.Equal(t, "LIMIT", p["ordertype"])
	assert.Equal(t, "DELIVERY", p["producttype"])
	assert.Equal(t, "DAY", p["orderduration"])
	assert.Equal(t, "N", p["amoorder"])

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":500.5`)
	assert.Contains(t, string(raw), `"quantityinlot":10`)
	assert.Contains(t, string(raw), `"symboltoken":3045`)
}

func TestPlaceOrderProductAliases(t *testing.T) {
	m := testMapper()
	for in, want := range map[broker.ProductType]string{
		broker.Intraday:     "NORMAL",
		broker.CarryForward: "NORMAL",
		broker.Margin:       "VALUEPLUS",
		broker.Delivery:     "DELIVERY",
	} {
		order := sbinOrder()
		order.ProductType = in
		p, err := m.PlaceOrder(context.Background(), order, testCred)
		require.NoError(t, err, in)
		assert.Equal(t, want, p["producttype"], in)
	}
}

func TestPlaceOrderStopLoss(t *testing.T) {
	m := testMapper()

	order := sbinOrder()
	order.OrderType = broker.StopLossMarket
	order.Price = decimal.Zero
	order.TriggerPrice = decimal.RequireFromString("495")
	order.Variety = broker.VarietyAMO

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	assert.Equal(t, "STOPLOSS", p["ordertype"])
	assert.Equal(t, "Y", p["amoorder"])

	// a stop-loss limit still needs its limit price
	order.OrderType = broker.StopLossLimit
	_, err = m.PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestPlaceOrderSendsLots(t *testing.T) {
	m := testMapper()
	order := sbinOrder()
	order.TradingSymbol = "NIFTY 25JAN2024 22000 CE"
	order.Exchange = broker.ExchangeNFO
	order.Segment = broker.SegmentFNO
	order.Quantity = 150

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	assert.Equal(t, "NSEFO", p["exchange"])
	assert.EqualValues(t, 3, p["quantityinlot"])

	order.Quantity = 75
	_, err = m.PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestPlaceOrderNonNumericToken(t *testing.T) {
	order := sbinOrder()
	order.TradingSymbol = "BADTOKEN"

	_, err := testMapper().PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrReferenceDataUnavailable)
}

func TestMappedValuesStayInAllowList(t *testing.T) {
	tbl := mapping.NewTable(BrokerName, Fields)
	m := NewMapper(tbl, testResolver())

	order := sbinOrder()
	order.ProductType = "HOLD_FOREVER"
	order.OrderType = "ICEBERG"
	order.Variety = "SOMETIMES"

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	for name, key := range map[string]string{
		"productType": "producttype",
		"orderType":   "ordertype",
		"duration":    "orderduration",
		"variety":     "amoorder",
	} {
		v, _ := p[key].(string)
		assert.True(t, slices.Contains(tbl.Allowed(name), v), "%s=%q", key, v)
	}
}

func TestStrictMappingReportsFirstField(t *testing.T) {
	m := testMapper(mapping.WithMode(mapping.Strict))
	order := sbinOrder()
	order.ProductType = broker.ProductType("XYZ")
	order.Duration = broker.Duration("WEEK")

	for i := 0; i < 20; i++ {
		_, err := m.PlaceOrder(context.Background(), order, testCred)
		require.ErrorIs(t, err, broker.ErrInvalidOrderField)
		assert.Contains(t, err.Error(), "productType")
	}
}

func TestStrictMappingRejects(t *testing.T) {
	m := testMapper(mapping.WithMode(mapping.Strict))
	order := sbinOrder()
	order.ProductType = broker.Bracket

	_, err := m.PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)

	// an unset variety is a plain order even in strict mode
	order = sbinOrder()
	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	assert.Equal(t, "N", p["amoorder"])
}

func TestModifyOrderPayload(t *testing.T) {
	m := testMapper()
	prev := OrderState{LastModifiedTime: "10-Jan-2024 09:20:11", QtyTradedToday: 4}

	p, err := m.ModifyOrder(context.Background(), "1300000012345678", sbinOrder(), testCred)
	require.NoError(t, err)
	assert.NotContains(t, p, "lastmodifiedtime")
	SetOrderState(p, prev)
	assert.Equal(t, "1300000012345678", p["uniqueorderid"])
	assert.Equal(t, "LIMIT", p["newordertype"])
	assert.Equal(t, "DAY", p["neworderduration"])
	assert.EqualValues(t, 10, p["newquantityinlot"])
	assert.Equal(t, "10-Jan-2024 09:20:11", p["lastmodifiedtime"])
	assert.EqualValues(t, 4, p["qtytradedtoday"])

	_, err = m.ModifyOrder(context.Background(), " ", sbinOrder(), testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestCancelOrderPayload(t *testing.T) {
	m := testMapper()
	p, err := m.CancelOrder("1300000012345678", testCred)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"clientcode": "EMUM755714", "uniqueorderid": "1300000012345678"}, p)

	_, err = m.CancelOrder("", testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestSegment(t *testing.T) {
	seg, err := Segment("NSE", "FNO")
	require.NoError(t, err)
	assert.Equal(t, "NSEFO", seg)

	seg, err = Segment("CDS", "")
	require.NoError(t, err)
	assert.Equal(t, "NSECD", seg)

	_, err = Segment("MCX", "EQUITY")
	assert.ErrorIs(t, err, broker.ErrInvalidSymbolQuery)
}

func TestHashPassword(t *testing.T) {
	assert.Equal(t, "ad165b11320bc91501ab08613cc3a48a62a6caca4d5c8b14ca82cc313b3b96cd", HashPassword("secret", "key"))
}
