package dhan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
)

var scripColumns = []string{
	"SEM_EXM_EXCH_ID",
	"SEM_SEGMENT",
	"SEM_SMST_SECURITY_ID",
	"SEM_TRADING_SYMBOL",
}

// segmentCodes maps SEM_EXM_EXCH_ID + SEM_SEGMENT to an exchangeSegment
var segmentCodes = map[string]string{
	"NSE/E": "NSE_EQ",
	"NSE/D": "NSE_FNO",
	"NSE/C": "NSE_CURRENCY",
	"BSE/E": "BSE_EQ",
	"BSE/D": "BSE_FNO",
	"BSE/C": "BSE_CURRENCY",
	"MCX/M": "MCX_COMM",
}

func scripRow(row symbols.CSVRow) (symbols.Record, bool) {
	seg, ok := segmentCodes[strings.ToUpper(row.Get("SEM_EXM_EXCH_ID"))+"/"+strings.ToUpper(row.Get("SEM_SEGMENT"))]
	if !ok {
		return symbols.Record{}, false
	}
	id := row.Get("SEM_SMST_SECURITY_ID")
	sym := row.Get("SEM_TRADING_SYMBOL")
	if id == "" || sym == "" {
		return symbols.Record{}, false
	}

	optionType := row.Get("SEM_OPTION_TYPE")
	if optionType == "XX" {
		optionType = ""
	}
	strike := symbols.Decimal(row.Get("SEM_STRIKE_PRICE"))
	if !strike.IsPositive() {
		strike = decimal.Zero
	}

	return symbols.Record{
		TradingSymbol:   sym,
		ExchangeSegment: seg,
		InstrumentID:    id,
		Name:            row.Get("SM_SYMBOL_NAME"),
		LotSize:         symbols.Int(row.Get("SEM_LOT_UNITS")),
		TickSize:        symbols.Decimal(row.Get("SEM_TICK_SIZE")),
		InstrumentType:  row.Get("SEM_INSTRUMENT_NAME"),
		Expiry:          row.Get("SEM_EXPIRY_DATE"),
		Strike:          strike,
		OptionType:      optionType,
	}, true
}

// DecodeScripMaster reads the compact scrip master CSV
func DecodeScripMaster(r io.Reader) ([]symbols.Record, error) {
	records, err := symbols.ReadCSV(r, scripColumns, scripRow)
	if err != nil {
		return nil, fmt.Errorf("decode dhan scrip master: %w", err)
	}
	return records, nil
}

// ScripMaster downloads and decodes the published instrument CSV
type ScripMaster struct {
	client *http.Client
	url    string
}

// NewScripMaster creates a source reading url with client
func NewScripMaster(client *http.Client, url string) *ScripMaster {
	return &ScripMaster{client: client, url: url}
}

// Fetch implements symbols.Source
func (s *ScripMaster) Fetch(ctx context.Context) ([]symbols.Record, error) {
	body, err := symbols.Download(ctx, s.client, s.url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeScripMaster(body)
}
