package oswal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nseCSV = `ultoken,scripshortname,scripname,expirydate,strikeprice,marketlot,instrumentname,exchange,ticksize,exchangename,scripcode,issuspended,optiontype
3045,SBIN,STATE BANK OF INDIA,0,0,1,EQ,1,5,NSE,3045,0,
11536,TCS,TATA CONSULTANCY SERV LT,0,0,1,EQ,1,5,NSE,11536,0,
`

const foCSV = `ultoken,scripshortname,scripname,expirydate,strikeprice,marketlot,instrumentname,exchange,ticksize,exchangename,scripcode,issuspended,optiontype
35001,NIFTY 25JAN2024 22000 CE,NIFTY,1390657800,22000,50,OPTIDX,2,5,NSEFO,35001,0,CE
,MISSINGCODE,NOPE,0,0,1,EQ,2,5,NSEFO,,0,
`

func TestDecodeScripMaster(t *testing.T) {
	records, err := DecodeScripMaster(strings.NewReader(foCSV))
	require.NoError(t, err)
	require.Len(t, records, 1)

	opt := records[0]
	assert.Equal(t, "NSEFO", opt.ExchangeSegment)
	assert.Equal(t, "35001", opt.InstrumentID)
	assert.Equal(t, "CE", opt.OptionType)
	assert.Equal(t, "22000", opt.Strike.String())
	assert.EqualValues(t, 50, opt.LotSize)

	_, err = DecodeScripMaster(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestScripMasterMergesExchanges(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Query().Get("name") {
		case "NSE":
			w.Write([]byte(nseCSV))
		case "NSEFO":
			w.Write([]byte(foCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewScripMaster(srv.Client(), srv.URL, "NSE", "NSEFO")
	r := symbols.NewResolver(BrokerName, src, Segment)

	rec, err := r.Resolve(context.Background(), "SBIN-EQ", broker.ExchangeNSE, broker.SegmentEquity)
	require.NoError(t, err)
	assert.Equal(t, "3045", rec.InstrumentID)

	rec, err = r.Resolve(context.Background(), "NIFTY 25JAN2024 22000 CE", broker.ExchangeNFO, broker.SegmentFNO)
	require.NoError(t, err)
	assert.Equal(t, "35001", rec.InstrumentID)
	assert.EqualValues(t, 2, hits.Load())
}

func TestScripMasterFailsWhole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "BSE" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(nseCSV))
	}))
	defer srv.Close()

	_, err := NewScripMaster(srv.Client(), srv.URL, "NSE", "BSE").Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BSE")
}
