package angelone

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mailru/easyjson/jlexer"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// scripEntry is one element of OpenAPIScripMaster.json. Every value is kept
// as text; the file mixes quoted and bare numbers.
type scripEntry struct {
	Token          string
	Symbol         string
	Name           string
	Expiry         string
	Strike         string
	LotSize        string
	InstrumentType string
	ExchSeg        string
	TickSize       string
}

// UnmarshalEasyJSON decodes one entry, skipping unknown keys
func (e *scripEntry) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "token":
			e.Token = string(in.JsonNumber())
		case "symbol":
			e.Symbol = string(in.JsonNumber())
		case "name":
			e.Name = string(in.JsonNumber())
		case "expiry":
			e.Expiry = string(in.JsonNumber())
		case "strike":
			e.Strike = string(in.JsonNumber())
		case "lotsize":
			e.LotSize = string(in.JsonNumber())
		case "instrumenttype":
			e.InstrumentType = string(in.JsonNumber())
		case "exch_seg":
			e.ExchSeg = string(in.JsonNumber())
		case "tick_size":
			e.TickSize = string(in.JsonNumber())
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// record converts the entry. Strike and tick size are published in paise.
func (e *scripEntry) record() (symbols.Record, bool) {
	if e.Token == "" || e.Symbol == "" || e.ExchSeg == "" {
		return symbols.Record{}, false
	}

	strike := symbols.Decimal(e.Strike)
	if strike.IsPositive() {
		strike = strike.Div(hundred)
	} else {
		strike = decimal.Zero
	}

	var optionType string
	if strings.HasPrefix(e.InstrumentType, "OPT") {
		switch {
		case strings.HasSuffix(e.Symbol, "CE"):
			optionType = "CE"
		case strings.HasSuffix(e.Symbol, "PE"):
			optionType = "PE"
		}
	}

	return symbols.Record{
		TradingSymbol:   strings.TrimSpace(e.Symbol),
		ExchangeSegment: strings.ToUpper(strings.TrimSpace(e.ExchSeg)),
		InstrumentID:    strings.TrimSpace(e.Token),
		Name:            strings.TrimSpace(e.Name),
		LotSize:         symbols.Int(e.LotSize),
		TickSize:        symbols.Decimal(e.TickSize).Div(hundred),
		InstrumentType:  e.InstrumentType,
		Expiry:          e.Expiry,
		Strike:          strike,
		OptionType:      optionType,
	}, true
}

// DecodeScripMaster parses the scrip master JSON array
func DecodeScripMaster(data []byte) ([]symbols.Record, error) {
	in := jlexer.Lexer{Data: data}

	var out []symbols.Record
	in.Delim('[')
	for !in.IsDelim(']') {
		var e scripEntry
		e.UnmarshalEasyJSON(&in)
		if rec, ok := e.record(); ok {
			out = append(out, rec)
		}
		in.WantComma()
		if !in.Ok() {
			break
		}
	}
	in.Delim(']')
	in.Consumed()

	if err := in.Error(); err != nil {
		return nil, fmt.Errorf("decode angelone scrip master: %w", err)
	}
	return out, nil
}

// ScripMaster downloads and decodes the published instrument list
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

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read angelone scrip master: %w", err)
	}
	return DecodeScripMaster(data)
}
