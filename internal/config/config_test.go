package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 24, cfg.Auth.JWTExpiryHours)
	assert.Equal(t, 5, cfg.Payment.TimeoutSeconds)
	assert.Equal(t, 300, cfg.Payment.MaxTimeoutSeconds)
	assert.Equal(t, 10, cfg.RateLimit.PassMultiplier)
	assert.False(t, cfg.Payment.AllowDegraded)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": "9000", "environment": "production"},
		"store": {"backend": "redis"},
		"redis": {"host": "localhost", "port": "6379"},
		"payment": {
			"pay_to": "0xabc",
			"network": "base",
			"asset": "0xusdc",
			"facilitator_url": "http://facilitator:9090"
		},
		"pricing": [
			{"endpoint": "/api/v1/coins", "price_usd": "0.02", "category": "market", "requests_per_window": 30}
		],
		"tiers": [
			{"name": "free", "requests_per_day": 100}
		]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.GetRedisAddr())
	assert.Equal(t, "0xabc", cfg.Payment.PayTo)
	require.Len(t, cfg.Pricing, 1)
	require.Len(t, cfg.Tiers, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "topsecret")
	t.Setenv("FACILITATOR_URL", "http://override:9090")
	t.Setenv("PAY_TO_ADDRESS", "0xoverride")

	path := writeConfig(t, `{"payment": {"pay_to": "0xfile", "facilitator_url": "http://file:9090"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "topsecret", cfg.Auth.JWTSecret)
	assert.Equal(t, "http://override:9090", cfg.Payment.FacilitatorURL)
	assert.Equal(t, "0xoverride", cfg.Payment.PayTo)
}

func TestPricingRecords(t *testing.T) {
	cfg := &Config{Pricing: []PricingEntry{
		{Endpoint: "/api/v1/coins", PriceUSD: "0.02", Category: "market", RequestsPerWindow: 30},
		{Endpoint: "/api/v1/pass", PriceUSD: "1.00", Category: "pass", RequestsPerWindow: 10, GrantDurationSeconds: 3600, PassTier: "pro"},
	}}

	records, err := cfg.PricingRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "0.02", records[0].PriceUSD.String())
	assert.False(t, records[0].Pass())
	assert.True(t, records[1].Pass())
	assert.Equal(t, "pro", records[1].PassTier)
}

func TestPricingRecordsRejectsBadPrice(t *testing.T) {
	_, err := (&Config{Pricing: []PricingEntry{{Endpoint: "/a", PriceUSD: "abc"}}}).PricingRecords()
	assert.Error(t, err)

	_, err = (&Config{Pricing: []PricingEntry{{Endpoint: "/a", PriceUSD: "-0.01"}}}).PricingRecords()
	assert.Error(t, err)
}
