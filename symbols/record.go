// Package symbols resolves human trading symbols to broker instrument
// identifiers from a locally cached scrip master.
package symbols

import (
	"context"
	"strconv"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/shopspring/decimal"
)

// Record is one instrument from a broker scrip master
type Record struct {
	TradingSymbol   string
	ExchangeSegment string
	InstrumentID    string
	Name            string
	LotSize         int64
	TickSize        decimal.Decimal
	InstrumentType  string
	Expiry          string
	Strike          decimal.Decimal
	OptionType      string
}

// Source loads the full reference dataset, typically from the broker's
// published scrip master
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]Record, error)

// Fetch calls f(ctx)
func (f SourceFunc) Fetch(ctx context.Context) ([]Record, error) {
	return f(ctx)
}

// Lookup is what order mappers need from a Resolver
type Lookup interface {
	Resolve(ctx context.Context, symbol string, exchange broker.Exchange, segment broker.Segment) (Record, error)
}

// Store persists the reference table with full-replace semantics
type Store interface {
	Replace(ctx context.Context, records []Record) error
	All(ctx context.Context) ([]Record, error)
}

// SegmentFunc turns a normalized exchange/segment pair into the broker's
// segment key (NSE_EQ, NFO, NSEFO, ...). It returns an error wrapping
// broker.ErrInvalidSymbolQuery for unsupported combinations.
type SegmentFunc func(exchange, segment string) (string, error)

var seriesSuffixes = []string{"-EQ", "-BE", "-BL"}

// NormalizeSymbol upper-cases a symbol and strips a trailing series marker
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range seriesSuffixes {
		if strings.HasSuffix(s, suffix) {
			return s[:len(s)-len(suffix)]
		}
	}
	return s
}

// seriesRank orders records sharing a stripped symbol: plain and -EQ
// listings win over other series
func seriesRank(symbol string) int {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, "-EQ"):
		return 1
	case NormalizeSymbol(s) == s:
		return 0
	default:
		return 2
	}
}

// Decimal parses a scrip master numeric column, zero when blank or malformed
func Decimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int parses a scrip master count column such as lot size. Values like
// "50.0" are accepted.
func Int(s string) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return Decimal(s).IntPart()
}
