// Package config loads adapter settings from BROKER_ prefixed environment
// variables and turns them into adapter options.
package config

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/angelone"
	"github.com/samarthkathal/broker-go/dhan"
	"github.com/samarthkathal/broker-go/metrics"
	"github.com/samarthkathal/broker-go/oswal"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/samarthkathal/broker-go/transport"
)

// Prefix is prepended to every variable name
const Prefix = "BROKER_"

// AngelOne holds SmartAPI credentials
type AngelOne struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
}

// Dhan holds a pre-issued access token and the partner pair for consent login
type Dhan struct {
	ClientID      string
	AccessToken   string
	PartnerID     string
	PartnerSecret string
}

// Oswal holds Motilal Oswal OpenAPI credentials
type Oswal struct {
	APIKey     string
	ClientCode string
	Password   string
	TwoFA      string
	TOTPSecret string
}

// Config is the full environment configuration
type Config struct {
	ClientContext broker.ClientContext
	AngelOne      AngelOne
	Dhan          Dhan
	Oswal         Oswal

	// SymbolDB is the SQLite path for the scrip master cache; empty disables it
	SymbolDB       string
	RequestTimeout time.Duration
	StrictMapping  bool
	RateLimit      bool
	LogLevel       zerolog.Level
}

// Lookup matches os.LookupEnv
type Lookup func(key string) (string, bool)

// Load reads the process environment
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads configuration through lookup, which makes tests independent
// of the process environment
func FromLookup(lookup Lookup) (*Config, error) {
	e := env{lookup: lookup}

	cc := broker.DefaultClientContext()
	cc.LocalIP = e.str("CLIENT_LOCAL_IP", cc.LocalIP)
	cc.PublicIP = e.str("CLIENT_PUBLIC_IP", cc.PublicIP)
	cc.MACAddress = e.str("CLIENT_MAC_ADDRESS", cc.MACAddress)
	cc.UserType = e.str("CLIENT_USER_TYPE", cc.UserType)
	cc.SourceID = e.str("CLIENT_SOURCE_ID", cc.SourceID)
	cc.UserAgent = e.str("CLIENT_USER_AGENT", cc.UserAgent)

	cfg := &Config{
		ClientContext: cc,
		AngelOne: AngelOne{
			APIKey:     e.str("ANGELONE_API_KEY", ""),
			ClientCode: e.str("ANGELONE_CLIENT_CODE", ""),
			Password:   e.str("ANGELONE_PASSWORD", ""),
			TOTPSecret: e.str("ANGELONE_TOTP_SECRET", ""),
		},
		Dhan: Dhan{
			ClientID:      e.str("DHAN_CLIENT_ID", ""),
			AccessToken:   e.str("DHAN_ACCESS_TOKEN", ""),
			PartnerID:     e.str("DHAN_PARTNER_ID", ""),
			PartnerSecret: e.str("DHAN_PARTNER_SECRET", ""),
		},
		Oswal: Oswal{
			APIKey:     e.str("OSWAL_API_KEY", ""),
			ClientCode: e.str("OSWAL_CLIENT_CODE", ""),
			Password:   e.str("OSWAL_PASSWORD", ""),
			TwoFA:      e.str("OSWAL_2FA", ""),
			TOTPSecret: e.str("OSWAL_TOTP_SECRET", ""),
		},
		SymbolDB:       e.str("SYMBOL_DB", ""),
		RequestTimeout: e.duration("REQUEST_TIMEOUT", transport.DefaultTimeout),
		StrictMapping:  e.bool("STRICT_MAPPING", false),
		RateLimit:      e.bool("RATE_LIMIT", false),
		LogLevel:       e.level("LOG_LEVEL", zerolog.InfoLevel),
	}
	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

// Logger builds a zerolog logger at the configured level
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(c.LogLevel).With().Timestamp().Logger()
}

// OpenSymbolDB opens the scrip master cache. It returns nil, nil when no
// path is configured.
func (c *Config) OpenSymbolDB() (*sql.DB, error) {
	if c.SymbolDB == "" {
		return nil, nil
	}
	return symbols.OpenDB(c.SymbolDB)
}

// Shared carries the runtime pieces every adapter is built with
type Shared struct {
	Logger  zerolog.Logger
	Metrics *metrics.Collector
	DB      *sql.DB
}

func (s Shared) store(brokerName string) symbols.Store {
	if s.DB == nil {
		return nil
	}
	return symbols.NewSQLiteStore(s.DB, brokerName)
}

// AngelOneOptions returns the options for angelone.New
func (c *Config) AngelOneOptions(s Shared) []angelone.Option {
	opts := []angelone.Option{
		angelone.WithLogger(s.Logger),
		angelone.WithMetrics(s.Metrics),
		angelone.WithTimeout(c.RequestTimeout),
		angelone.WithClientContext(c.ClientContext),
	}
	if st := s.store(angelone.BrokerName); st != nil {
		opts = append(opts, angelone.WithSymbolStore(st))
	}
	if c.StrictMapping {
		opts = append(opts, angelone.WithStrictMapping())
	}
	if c.RateLimit {
		opts = append(opts, angelone.WithDefaultRateLimiter())
	}
	return opts
}

// DhanOptions returns the options for dhan.New
func (c *Config) DhanOptions(s Shared) []dhan.Option {
	opts := []dhan.Option{
		dhan.WithLogger(s.Logger),
		dhan.WithMetrics(s.Metrics),
		dhan.WithTimeout(c.RequestTimeout),
	}
	if c.Dhan.PartnerID != "" {
		opts = append(opts, dhan.WithPartner(c.Dhan.PartnerID, c.Dhan.PartnerSecret))
	}
	if st := s.store(dhan.BrokerName); st != nil {
		opts = append(opts, dhan.WithSymbolStore(st))
	}
	if c.StrictMapping {
		opts = append(opts, dhan.WithStrictMapping())
	}
	if c.RateLimit {
		opts = append(opts, dhan.WithDefaultRateLimiter())
	}
	return opts
}

// OswalOptions returns the options for oswal.New
func (c *Config) OswalOptions(s Shared) []oswal.Option {
	opts := []oswal.Option{
		oswal.WithLogger(s.Logger),
		oswal.WithMetrics(s.Metrics),
		oswal.WithTimeout(c.RequestTimeout),
		oswal.WithClientContext(c.ClientContext),
	}
	if st := s.store(oswal.BrokerName); st != nil {
		opts = append(opts, oswal.WithSymbolStore(st))
	}
	if c.StrictMapping {
		opts = append(opts, oswal.WithStrictMapping())
	}
	if c.RateLimit {
		opts = append(opts, oswal.WithDefaultRateLimiter())
	}
	return opts
}

// env collects the first parse error so Load reports one failure
type env struct {
	lookup Lookup
	err    error
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(Prefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s%s=%q: %w", Prefix, key, v, err)
	}
}

func (e *env) str(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e *env) bool(key string, fallback bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return b
}

// duration accepts Go durations or a bare number of seconds
func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	if d <= 0 {
		e.fail(key, v, fmt.Errorf("must be positive"))
		return fallback
	}
	return d
}

func (e *env) level(key string, fallback zerolog.Level) zerolog.Level {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(v))
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return lvl
}
