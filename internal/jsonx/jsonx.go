// Package jsonx gives lenient, typed access to broker payloads whose shape
// varies between brokers and API versions.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Object is a decoded JSON object
type Object map[string]any

// Decode parses data keeping numbers as json.Number so decimals are not
// rounded through float64.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeObject parses data and requires a top-level object
func DecodeObject(data []byte) (Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

// Has reports whether key is present, even if null
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// IsNull reports whether key is absent or explicitly null
func (o Object) IsNull(key string) bool {
	v, ok := o[key]
	return !ok || v == nil
}

// String returns the value at key as a string. Numbers and booleans are
// formatted; absent and null values give "".
func (o Object) String(key string) string {
	return toString(o[key])
}

// First returns the first non-empty string among keys
func (o Object) First(keys ...string) string {
	for _, k := range keys {
		if s := o.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Bool interprets booleans, "true"/"false" strings and 0/1 numbers
func (o Object) Bool(key string) (value, ok bool) {
	switch v := o[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	case json.Number:
		return v.String() != "0", true
	default:
		return false, false
	}
}

// Decimal parses a string-or-number value. Absent, empty or malformed
// values give an invalid NullDecimal.
func (o Object) Decimal(key string) decimal.NullDecimal {
	return ToDecimal(o[key])
}

// Int parses a string-or-number value into an integer count. Values with a
// zero fractional part ("10.00") are accepted.
func (o Object) Int(key string) *int64 {
	d := o.Decimal(key)
	if !d.Valid || !d.Decimal.Equal(d.Decimal.Truncate(0)) {
		return nil
	}
	n := d.Decimal.IntPart()
	return &n
}

// Object returns the nested object at key
func (o Object) Object(key string) (Object, bool) {
	v, ok := o[key].(map[string]any)
	return v, ok
}

// Array returns the nested array at key. A present null yields an empty,
// ok array; an absent key or a non-array value is not ok.
func (o Object) Array(key string) ([]any, bool) {
	v, present := o[key]
	if !present {
		return nil, false
	}
	if v == nil {
		return []any{}, true
	}
	arr, ok := v.([]any)
	return arr, ok
}

// Objects converts an array of objects, failing on the first non-object
func Objects(arr []any) ([]Object, error) {
	out := make([]Object, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected object, got %T", i, item)
		}
		out = append(out, obj)
	}
	return out, nil
}

// ToDecimal converts a decoded JSON scalar into a NullDecimal
func ToDecimal(v any) decimal.NullDecimal {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.ReplaceAll(strings.TrimSpace(t), ",", "")
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(t))
	default:
		return decimal.NullDecimal{}
	}
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// IST is the exchange timezone all three brokers report in
var IST = time.FixedZone("IST", 5*3600+1800)

// Timestamp converts a broker timestamp into RFC 3339 in IST. Values that
// match none of the layouts are returned unchanged.
func Timestamp(s string, layouts ...string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, IST); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return s
}
