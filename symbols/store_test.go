package symbols

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreReplaceIsFullReplace(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "symbols.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	angel := NewSQLiteStore(db, "angelone")
	dhan := NewSQLiteStore(db, "dhan")

	require.NoError(t, angel.Replace(ctx, []Record{
		{TradingSymbol: "SBIN-EQ", ExchangeSegment: "nse", InstrumentID: "3045", LotSize: 1, TickSize: decimal.RequireFromString("0.05")},
		{TradingSymbol: "NIFTY24JAN21000CE", ExchangeSegment: "NFO", InstrumentID: "43210", LotSize: 50, Strike: decimal.RequireFromString("21000"), OptionType: "CE"},
	}))
	require.NoError(t, dhan.Replace(ctx, []Record{{TradingSymbol: "SBIN", ExchangeSegment: "NSE_EQ", InstrumentID: "3045"}}))

	all, err := angel.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]Record{}
	for _, r := range all {
		byID[r.InstrumentID] = r
	}
	assert.Equal(t, "NSE", byID["3045"].ExchangeSegment)
	assert.Equal(t, "0.05", byID["3045"].TickSize.String())
	assert.Equal(t, "21000", byID["43210"].Strike.String())
	assert.Equal(t, int64(50), byID["43210"].LotSize)

	require.NoError(t, angel.Replace(ctx, []Record{{TradingSymbol: "TCS-EQ", ExchangeSegment: "NSE", InstrumentID: "11536"}}))

	all, err = angel.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "11536", all[0].InstrumentID)

	n, err := dhan.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "other brokers are untouched")
}

func TestOpenDBInMemory(t *testing.T) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, "x")
	require.NoError(t, s.Replace(context.Background(), []Record{{TradingSymbol: "A", ExchangeSegment: "NSE", InstrumentID: "1"}}))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffID,Symbol,Seg\n1, SBIN ,NSE\n2,,NSE\n3,TCS\n"
	recs, err := ReadCSV(strings.NewReader(in), []string{"id", "symbol"}, func(row CSVRow) (Record, bool) {
		if row.Get("symbol") == "" {
			return Record{}, false
		}
		return Record{InstrumentID: row.Get("ID"), TradingSymbol: row.Get("Symbol"), ExchangeSegment: row.Get("seg")}, true
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "SBIN", recs[0].TradingSymbol)
	assert.Equal(t, "NSE", recs[0].ExchangeSegment)
	assert.Equal(t, "", recs[1].ExchangeSegment, "short rows read as blank")

	_, err = ReadCSV(strings.NewReader("a,b\n"), []string{"c"}, nil)
	assert.Error(t, err)
}

func TestIntAndDecimal(t *testing.T) {
	assert.Equal(t, int64(50), Int("50"))
	assert.Equal(t, int64(50), Int("50.0"))
	assert.Equal(t, int64(0), Int(""))
	assert.True(t, Decimal("x").IsZero())
	assert.Equal(t, "0.05", Decimal(" 0.05 ").String())
}
