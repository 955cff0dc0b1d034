package dhan

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seed = time.Date(2024, 1, 10, 9, 15, 0, 123456000, time.UTC)

var testRecords = []symbols.Record{
	{TradingSymbol: "SBIN", ExchangeSegment: "NSE_EQ", InstrumentID: "3045", LotSize: 1},
	{TradingSymbol: "TCS", ExchangeSegment: "NSE_EQ", InstrumentID: "11536", LotSize: 1},
	{TradingSymbol: "SBIN", ExchangeSegment: "BSE_EQ", InstrumentID: "500112", LotSize: 1},
}

func testResolver() *symbols.Resolver {
	src := symbols.SourceFunc(func(context.Context) ([]symbols.Record, error) {
		return testRecords, nil
	})
	return symbols.NewResolver(BrokerName, src, Segment)
}

func testMapper(opts ...mapping.Option) *Mapper {
	return NewMapper(mapping.NewTable(BrokerName, Fields, opts...), testResolver(), func() time.Time { return seed })
}

var testCred = auth.Credential{ClientID: "1000000001", AccessToken: "tok"}

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

func TestCorrelationID(t *testing.T) {
	id := CorrelationID(seed, "SBIN", "1000000001")
	assert.Equal(t, "500123456_SBIN_1000000001", id)
	assert.Len(t, id, 25)

	assert.Equal(t, "20240110091500123456_A_1", CorrelationID(seed, "A", "1"))
}

func TestPlaceOrderPayload(t *testing.T) {
	m := testMapper()

	p, err := m.PlaceOrder(context.Background(), sbinOrder(), testCred)
	require.NoError(t, err)

	assert.Equal(t, "1000000001", p["dhanClientId"])
	assert.Equal(t, "NSE_EQ", p["exchangeSegment"])
	assert.Equal(t, "3045", p["securityId"])
	assert.Equal(t, "CNC", p["productType"])
	assert.Equal(t, "LIMIT", p["orderType"])
	assert.Equal(t, "DAY", p["validity"])
	assert.Equal(t, false, p["afterMarketOrder"])

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":500.5`)
	assert.Contains(t, string(raw), `"quantity":10`)
	assert.Contains(t, string(raw), `"triggerPrice":0`)
}

func TestPlaceOrderDeterministicForSeed(t *testing.T) {
	m := testMapper()

	a, err := m.PlaceOrder(context.Background(), sbinOrder(), testCred)
	require.NoError(t, err)
	b, err := m.PlaceOrder(context.Background(), sbinOrder(), testCred)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlaceOrderAliases(t *testing.T) {
	m := testMapper()
	order := sbinOrder()
	order.OrderType = broker.StopLossMarket
	order.ProductType = broker.CarryForward
	order.Price = decimal.Zero
	order.TriggerPrice = decimal.RequireFromString("495")
	order.Variety = broker.VarietyAMO

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	assert.Equal(t, "STOP_LOSS_MARKET", p["orderType"])
	assert.Equal(t, "MARGIN", p["productType"])
	assert.Equal(t, true, p["afterMarketOrder"])
	assert.Equal(t, "OPEN", p["amoTime"])
}

func TestStopLossNeedsTrigger(t *testing.T) {
	m := testMapper()
	order := sbinOrder()
	order.OrderType = broker.StopLossLimit

	_, err := m.PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestMappedValuesStayInAllowList(t *testing.T) {
	tbl := mapping.NewTable(BrokerName, Fields)
	m := NewMapper(tbl, testResolver(), func() time.Time { return seed })

	order := sbinOrder()
	order.ProductType = "HOLD_FOREVER"
	order.Duration = broker.DurationGTD

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	for name, key := range map[string]string{
		"productType": "productType",
		"duration":    "validity",
		"orderType":   "orderType",
	} {
		v, _ := p[key].(string)
		assert.True(t, slices.Contains(tbl.Allowed(name), v), "%s=%q", key, v)
	}
	assert.Equal(t, "CNC", p["productType"])
}

func TestStrictMappingReportsFirstField(t *testing.T) {
	m := testMapper(mapping.WithMode(mapping.Strict))
	order := sbinOrder()
	order.ProductType = broker.ProductType("XYZ")
	order.Duration = broker.DurationGTC

	for i := 0; i < 20; i++ {
		_, err := m.PlaceOrder(context.Background(), order, testCred)
		require.ErrorIs(t, err, broker.ErrInvalidOrderField)
		assert.Contains(t, err.Error(), "productType")
	}
}

func TestStrictMappingRejects(t *testing.T) {
	m := testMapper(mapping.WithMode(mapping.Strict))
	order := sbinOrder()
	order.Duration = broker.DurationGTC

	_, err := m.PlaceOrder(context.Background(), order, testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestBSEResolvesSeparately(t *testing.T) {
	m := testMapper()
	order := sbinOrder()
	order.Exchange = broker.ExchangeBSE

	p, err := m.PlaceOrder(context.Background(), order, testCred)
	require.NoError(t, err)
	assert.Equal(t, "BSE_EQ", p["exchangeSegment"])
	assert.Equal(t, "500112", p["securityId"])
}

func TestModifyOrderPayload(t *testing.T) {
	m := testMapper()

	p, err := m.ModifyOrder(context.Background(), "112111182198", sbinOrder(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "112111182198", p["orderId"])
	assert.Equal(t, "NA", p["legName"])
	assert.Equal(t, "LIMIT", p["orderType"])
	assert.NotContains(t, p, "securityId")

	_, err = m.ModifyOrder(context.Background(), "", sbinOrder(), testCred)
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestSegment(t *testing.T) {
	seg, err := Segment("NSE", "FNO")
	require.NoError(t, err)
	assert.Equal(t, "NSE_FNO", seg)

	seg, err = Segment("MCX", "COMMODITY")
	require.NoError(t, err)
	assert.Equal(t, "MCX_COMM", seg)

	_, err = Segment("MCX", "EQUITY")
	assert.ErrorIs(t, err, broker.ErrInvalidSymbolQuery)
}
