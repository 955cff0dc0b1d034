package benchmarks

import (
	"strings"
	"testing"

	"github.com/mailru/easyjson"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/angelone"
	"github.com/samarthkathal/broker-go/dhan"
	"github.com/samarthkathal/broker-go/orderupdate"
	"github.com/samarthkathal/broker-go/oswal"
)

const angelRow = `{"variety":"NORMAL","ordertype":"LIMIT","producttype":"DELIVERY","duration":"DAY",
	"price":"500.5","quantity":"10","disclosedquantity":"0","tradingsymbol":"SBIN-EQ",
	"transactiontype":"BUY","exchange":"NSE","averageprice":0,"filledshares":"0",
	"unfilledshares":"10","orderid":"111","status":"open","text":"",
	"updatetime":"10-Jan-2024 09:15:00","lotsize":"1","instrumenttype":"","uniqueorderid":"u1"}`

const dhanRow = `{"dhanClientId":"1000000003","orderId":"112111182198","orderStatus":"PENDING",
	"transactionType":"BUY","exchangeSegment":"NSE_EQ","productType":"INTRADAY","orderType":"MARKET",
	"validity":"DAY","tradingSymbol":"SBIN","securityId":"3045","quantity":5,"disclosedQuantity":0,
	"price":0.0,"triggerPrice":0,"afterMarketOrder":false,"updateTime":"2021-11-24 13:33:03",
	"omsErrorDescription":"","filledQty":0,"remainingQuantity":5,"averageTradedPrice":0,"exchangeOrderId":"1100000012"}`

const oswalRow = `{"clientid":"EMUM755714","exchange":"NSE","symbol":"SBIN EQ","symboltoken":3045,"series":"EQ",
	"buyorsell":"BUY","ordertype":"LIMIT","producttype":"DELIVERY","orderduration":"DAY","price":500.5,
	"orderqty":10,"disclosedqty":0,"qtytradedtoday":4,"totalqtyremaining":6,"orderstatus":"Confirm",
	"uniqueorderid":"1300000012345678","lastmodifiedtime":"10-Jan-2024 09:20:11","averageprice":500.25,"amoorder":"N"}`

const alertFrame = `{"Type":"order_alert","Data":{"Exchange":"NSE","OrderNo":"112111182045","ExchOrderNo":"1100000012345",
	"Product":"C","TxnType":"B","OrderType":"LMT","Validity":"DAY","Quantity":10,"TradedQty":4,
	"RemainingQuantity":6,"Price":500.5,"AvgTradedPrice":500.25,"Status":"PENDING",
	"LastUpdatedTime":"2024-01-10 09:20:11","Symbol":"SBIN"}}`

func rows(row string, n int) string {
	return strings.TrimSuffix(strings.Repeat(row+",", n), ",")
}

// BenchmarkParseOrderBook parses a 100 order book for each broker
func BenchmarkParseOrderBook(b *testing.B) {
	pctx := broker.ParseContext{}
	cases := []struct {
		name  string
		body  []byte
		parse func(int, []byte, broker.ParseContext) broker.Result[*broker.OrderBookResponse]
	}{
		{"angelone", []byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":[` + rows(angelRow, 100) + `]}`), angelone.ParseOrderBook},
		{"dhan", []byte(`[` + rows(dhanRow, 100) + `]`), dhan.ParseOrderBook},
		{"oswal", []byte(`{"status":"SUCCESS","message":"Order Book","data":[` + rows(oswalRow, 100) + `]}`), oswal.ParseOrderBook},
	}

	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			b.SetBytes(int64(len(tc.body)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if r := tc.parse(200, tc.body, pctx); !r.OK() {
					b.Fatal(r.Err())
				}
			}
		})
	}
}

// BenchmarkParseOrderAlert parses one websocket order alert
func BenchmarkParseOrderAlert(b *testing.B) {
	frame := []byte(alertFrame)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok, err := orderupdate.ParseOrderAlert(frame); err != nil || !ok {
			b.Fatal(err)
		}
	}
}

// BenchmarkMarshalOrderBook serializes a parsed book back to JSON
func BenchmarkMarshalOrderBook(b *testing.B) {
	body := []byte(`{"status":"SUCCESS","data":[` + rows(oswalRow, 100) + `]}`)
	book, err := oswal.ParseOrderBook(200, body, broker.ParseContext{}).Get()
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := easyjson.Marshal(book); err != nil {
			b.Fatal(err)
		}
	}
}
