// Package mapping translates normalized order enums into a broker's wire
// values through a declarative allow-list table.
package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
)

// Mode controls what happens when an input matches no allowed value
type Mode int

const (
	// Lenient falls back to the field default and logs a warning
	Lenient Mode = iota
	// Strict rejects the value with broker.ErrInvalidOrderField
	Strict
)

// Value is one allowed wire value and the input spellings that select it.
// The wire value itself is always accepted.
type Value struct {
	Wire   string
	Accept []string
}

// Field describes one mapped order field
type Field struct {
	// Name is the normalized field name, e.g. "productType"
	Name string
	// Key is the broker payload key, e.g. "producttype"
	Key    string
	Values []Value
	// Default is the wire value used on mismatch; empty means there is no
	// safe default and a mismatch is always an error
	Default string
}

type compiledField struct {
	Field
	patterns []*regexp.Regexp
}

// FallbackHook is notified every time a lenient default is applied
type FallbackHook func(brokerName, field, value, fallback string)

// Table maps fields for one broker
type Table struct {
	broker   string
	fields   map[string]*compiledField
	mode     Mode
	logger   zerolog.Logger
	fallback FallbackHook
}

// Option configures a Table
type Option func(*Table)

// WithMode sets strict or lenient matching
func WithMode(mode Mode) Option {
	return func(t *Table) {
		t.mode = mode
	}
}

// WithLogger sets the logger used for fallback warnings
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithFallbackHook registers a hook called on every lenient fallback
func WithFallbackHook(hook FallbackHook) Option {
	return func(t *Table) {
		t.fallback = hook
	}
}

// NewTable compiles the field definitions. It panics on a definition whose
// default is not one of its own wire values, since that is a programming error.
func NewTable(brokerName string, fields []Field, opts ...Option) *Table {
	t := &Table{
		broker: brokerName,
		fields: make(map[string]*compiledField, len(fields)),
		mode:   Lenient,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, f := range fields {
		cf := &compiledField{Field: f}
		defaultKnown := f.Default == ""
		for _, v := range f.Values {
			alts := append([]string{v.Wire}, v.Accept...)
			for i, a := range alts {
				alts[i] = regexp.QuoteMeta(a)
			}
			cf.patterns = append(cf.patterns, regexp.MustCompile(`(?i)^(?:`+strings.Join(alts, "|")+`)$`))
			if v.Wire == f.Default {
				defaultKnown = true
			}
		}
		if !defaultKnown {
			panic(fmt.Sprintf("mapping: %s.%s default %q is not an allowed value", brokerName, f.Name, f.Default))
		}
		t.fields[f.Name] = cf
	}

	return t
}

// Broker returns the broker this table maps for
func (t *Table) Broker() string {
	return t.broker
}

// Mode returns the configured matching mode
func (t *Table) Mode() Mode {
	return t.mode
}

// Key returns the payload key for a field, or the field name if unknown
func (t *Table) Key(name string) string {
	if f, ok := t.fields[name]; ok && f.Key != "" {
		return f.Key
	}
	return name
}

// Allowed returns the wire values a field can produce
func (t *Table) Allowed(name string) []string {
	f, ok := t.fields[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		out = append(out, v.Wire)
	}
	return out
}

// Fields returns the names of all mapped fields
func (t *Table) Fields() []string {
	out := make([]string, 0, len(t.fields))
	for name := range t.fields {
		out = append(out, name)
	}
	return out
}

// Map translates value into the field's wire value. The result is always
// one of Allowed(name).
func (t *Table) Map(name, value string) (string, error) {
	f, ok := t.fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %s has no mapping for field %q", broker.ErrInvalidOrderField, t.broker, name)
	}

	input := strings.TrimSpace(value)
	for i, p := range f.patterns {
		if p.MatchString(input) {
			return f.Values[i].Wire, nil
		}
	}

	if t.mode == Strict || f.Default == "" {
		return "", fmt.Errorf("%w: %s %s %q not in %v", broker.ErrInvalidOrderField, t.broker, name, value, t.Allowed(name))
	}

	t.logger.Warn().
		Str("broker", t.broker).
		Str("field", name).
		Str("value", value).
		Str("default", f.Default).
		Msg("unrecognised order field value, using default")
	if t.fallback != nil {
		t.fallback(t.broker, name, value, f.Default)
	}

	return f.Default, nil
}
