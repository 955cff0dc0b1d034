package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samarthkathal/broker-go/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, transport.DefaultTimeout, cfg.RequestTimeout)
	assert.False(t, cfg.StrictMapping)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "MOSL/V.1.1.0", cfg.ClientContext.UserAgent)

	db, err := cfg.OpenSymbolDB()
	assert.NoError(t, err)
	assert.Nil(t, db)
}

func TestFromLookup(t *testing.T) {
	cfg, err := FromLookup(envMap(map[string]string{
		"BROKER_ANGELONE_API_KEY":  "smart-key",
		"BROKER_DHAN_ACCESS_TOKEN": " dhan-token ",
		"BROKER_OSWAL_API_KEY":     "mo-key",
		"BROKER_OSWAL_2FA":         "18/06/1990",
		"BROKER_CLIENT_PUBLIC_IP":  "203.0.113.7",
		"BROKER_REQUEST_TIMEOUT":   "15",
		"BROKER_STRICT_MAPPING":    "true",
		"BROKER_LOG_LEVEL":         "DEBUG",
		"ANGELONE_API_KEY":         "unprefixed",
	}))
	require.NoError(t, err)

	assert.Equal(t, "smart-key", cfg.AngelOne.APIKey)
	assert.Equal(t, "dhan-token", cfg.Dhan.AccessToken)
	assert.Equal(t, "mo-key", cfg.Oswal.APIKey)
	assert.Equal(t, "18/06/1990", cfg.Oswal.TwoFA)
	assert.Equal(t, "203.0.113.7", cfg.ClientContext.PublicIP)
	assert.Equal(t, "127.0.0.1", cfg.ClientContext.LocalIP)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.StrictMapping)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestDurationForms(t *testing.T) {
	cfg, err := FromLookup(envMap(map[string]string{"BROKER_REQUEST_TIMEOUT": "1500ms"}))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
}

func TestInvalidValues(t *testing.T) {
	for key, v := range map[string]string{
		"BROKER_REQUEST_TIMEOUT": "soon",
		"BROKER_STRICT_MAPPING":  "maybe",
		"BROKER_LOG_LEVEL":       "loud",
	} {
		_, err := FromLookup(envMap(map[string]string{key: v}))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoggerLevel(t *testing.T) {
	cfg, err := FromLookup(envMap(map[string]string{"BROKER_LOG_LEVEL": "warn"}))
	require.NoError(t, err)

	var buf bytes.Buffer
	log := cfg.Logger(&buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestAdapterOptions(t *testing.T) {
	cfg, err := FromLookup(envMap(map[string]string{
		"BROKER_SYMBOL_DB":       filepath.Join(t.TempDir(), "symbols.db"),
		"BROKER_STRICT_MAPPING":  "1",
		"BROKER_RATE_LIMIT":      "true",
		"BROKER_DHAN_PARTNER_ID": "p-1",
	}))
	require.NoError(t, err)

	db, err := cfg.OpenSymbolDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	shared := Shared{Logger: zerolog.Nop(), DB: db}
	assert.Len(t, cfg.AngelOneOptions(shared), 7)
	assert.Len(t, cfg.DhanOptions(shared), 7)
	assert.Len(t, cfg.OswalOptions(shared), 7)

	shared.DB = nil
	cfg.StrictMapping, cfg.RateLimit = false, false
	assert.Len(t, cfg.OswalOptions(shared), 4)
}
