package orderupdate

import (
	"testing"

	broker "github.com/samarthkathal/broker-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertFrame = `{"Type":"order_alert","Data":{"Exchange":"NSE","Segment":"E","SecurityId":"3045",
	"ClientId":"1000000001","ExchOrderNo":"1100000012345","OrderNo":"112111182045","Product":"C",
	"TxnType":"B","OrderType":"LMT","Validity":"DAY","Quantity":10,"DiscQuantity":0,"TradedQty":4,
	"RemainingQuantity":6,"Price":500.5,"AvgTradedPrice":500.25,"Status":"PENDING",
	"LastUpdatedTime":"2024-01-10 09:20:11","ReasonDescription":"CONFIRMED","Symbol":"SBIN",
	"LotSize":1,"Instrument":"EQUITY","OptType":"XX"}}`

func TestParseOrderAlert(t *testing.T) {
	e, ok, err := ParseOrderAlert([]byte(alertFrame))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "112111182045", e.OrderID)
	assert.Equal(t, "1100000012345", e.UniqueOrderID)
	assert.Equal(t, "BUY", e.TransactionType)
	assert.Equal(t, "CNC", e.ProductType)
	assert.Equal(t, "NORMAL", e.Variety)
	assert.Equal(t, "SBIN", e.Symbol)
	assert.Equal(t, "500.5", e.Price.Decimal.String())
	assert.EqualValues(t, 4, *e.FilledShares)
	assert.EqualValues(t, 6, *e.UnfilledShares)
	assert.Equal(t, "2024-01-10T09:20:11+05:30", e.OrderUpdateTime)
	assert.True(t, IsPartiallyFilled(e))
	assert.False(t, IsTerminal(e.OrderStatus))
}

func TestParseOrderAlertSkipsOtherFrames(t *testing.T) {
	_, ok, err := ParseOrderAlert([]byte(`{"Type":"login_ack","Data":{}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseOrderAlertMalformed(t *testing.T) {
	for _, frame := range []string{`not json`, `{"Type":"order_alert"}`, `[1,2]`} {
		_, ok, err := ParseOrderAlert([]byte(frame))
		assert.False(t, ok, frame)
		er := broker.AsErrorResponse(err)
		require.NotNil(t, er, frame)
		assert.Equal(t, broker.CodeParse, er.ErrorCode, frame)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal("traded"))
	assert.True(t, IsTerminal(StatusRejected))
	assert.False(t, IsTerminal(StatusTransit))
}
