package oswal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/samarthkathal/broker-go/symbols"
	"golang.org/x/sync/errgroup"
)

var scripColumns = []string{"scripcode", "scripshortname", "exchangename"}

func scripRow(row symbols.CSVRow) (symbols.Record, bool) {
	code := row.Get("scripcode")
	sym := row.Get("scripshortname")
	ex := strings.ToUpper(row.Get("exchangename"))
	if code == "" || sym == "" || ex == "" {
		return symbols.Record{}, false
	}

	name := row.Get("scripname")
	if name == "" {
		name = row.Get("scripfullname")
	}
	optionType := strings.ToUpper(row.Get("optiontype"))
	if optionType != "CE" && optionType != "PE" {
		optionType = ""
	}

	return symbols.Record{
		TradingSymbol:   sym,
		ExchangeSegment: ex,
		InstrumentID:    code,
		Name:            name,
		LotSize:         symbols.Int(row.Get("marketlot")),
		TickSize:        symbols.Decimal(row.Get("ticksize")),
		InstrumentType:  row.Get("instrumentname"),
		Expiry:          row.Get("expirydate"),
		Strike:          symbols.Decimal(row.Get("strikeprice")),
		OptionType:      optionType,
	}, true
}

// DecodeScripMaster reads one exchange's scrip CSV
func DecodeScripMaster(r io.Reader) ([]symbols.Record, error) {
	records, err := symbols.ReadCSV(r, scripColumns, scripRow)
	if err != nil {
		return nil, fmt.Errorf("decode oswal scrip master: %w", err)
	}
	return records, nil
}

// ScripMaster downloads the per-exchange CSVs concurrently and merges them
type ScripMaster struct {
	client    *http.Client
	url       string
	exchanges []string
}

// NewScripMaster creates a source fetching url?name=<exchange> for each
// exchange. No exchanges means DefaultScripExchanges.
func NewScripMaster(client *http.Client, url string, exchanges ...string) *ScripMaster {
	if len(exchanges) == 0 {
		exchanges = DefaultScripExchanges
	}
	return &ScripMaster{client: client, url: url, exchanges: exchanges}
}

func (s *ScripMaster) exchangeURL(exchange string) string {
	sep := "?"
	if strings.Contains(s.url, "?") {
		sep = "&"
	}
	return s.url + sep + url.Values{"name": {exchange}}.Encode()
}

// Fetch implements symbols.Source. One failed exchange fails the reload so
// a partial table never replaces a complete one.
func (s *ScripMaster) Fetch(ctx context.Context) ([]symbols.Record, error) {
	parts := make([][]symbols.Record, len(s.exchanges))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, ex := range s.exchanges {
		g.Go(func() error {
			body, err := symbols.Download(ctx, s.client, s.exchangeURL(ex))
			if err != nil {
				return fmt.Errorf("oswal %s: %w", ex, err)
			}
			defer body.Close()

			recs, err := DecodeScripMaster(body)
			if err != nil {
				return fmt.Errorf("oswal %s: %w", ex, err)
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []symbols.Record
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
