package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/chainfeed/gateway/internal/pricing"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	Store     StoreConfig     `json:"store"`
	Auth      AuthConfig      `json:"auth"`
	Payment   PaymentConfig   `json:"payment"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Pricing   []PricingEntry  `json:"pricing"`
	Tiers     []TierEntry     `json:"tiers"`
	Upstreams []UpstreamEntry `json:"upstreams"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r *RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// StoreConfig selects the backend for rate-limit windows and access passes.
type StoreConfig struct {
	Backend string `json:"backend"` // "memory" (single process) or "redis" (shared)
}

type AuthConfig struct {
	JWTSecret      string `json:"-"`
	JWTExpiryHours int    `json:"jwt_expiry_hours"`
}

type PaymentConfig struct {
	PayTo             string `json:"pay_to"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	FacilitatorURL    string `json:"facilitator_url"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
	MaxTimeoutSeconds int    `json:"max_timeout_seconds"`

	// AllowDegraded accepts unconfirmed proofs on facilitator outage based
	// on signature shape alone. Never enable in production.
	AllowDegraded bool `json:"allow_degraded"`
}

type RateLimitConfig struct {
	// PassMultiplier scales an endpoint's per-minute limit for wallets
	// holding a valid access pass.
	PassMultiplier       int `json:"pass_multiplier"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

type PricingEntry struct {
	Endpoint             string `json:"endpoint"`
	PriceUSD             string `json:"price_usd"`
	Category             string `json:"category"`
	RequestsPerWindow    int    `json:"requests_per_window"`
	GrantDurationSeconds int    `json:"grant_duration_seconds,omitempty"`
	PassTier             string `json:"pass_tier,omitempty"`
	Description          string `json:"description"`
	FreeAlternative      string `json:"free_alternative,omitempty"`
}

type TierEntry struct {
	Name           string `json:"name"`
	RequestsPerDay int    `json:"requests_per_day"`
	Features       string `json:"features"`
}

type UpstreamEntry struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// Secrets and deploy-specific values come from the environment, never the
// config file.
func (c *Config) applyEnv() {
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if url := os.Getenv("FACILITATOR_URL"); url != "" {
		c.Payment.FacilitatorURL = url
	}
	if payTo := os.Getenv("PAY_TO_ADDRESS"); payTo != "" {
		c.Payment.PayTo = payTo
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Auth.JWTExpiryHours == 0 {
		c.Auth.JWTExpiryHours = 24
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 5
	}
	if c.Payment.MaxTimeoutSeconds == 0 {
		c.Payment.MaxTimeoutSeconds = 300
	}
	if c.RateLimit.PassMultiplier == 0 {
		c.RateLimit.PassMultiplier = 10
	}
	if c.RateLimit.SweepIntervalSeconds == 0 {
		c.RateLimit.SweepIntervalSeconds = 300
	}
}

// PricingRecords converts the configured pricing table into catalog records.
func (c *Config) PricingRecords() ([]pricing.Record, error) {
	records := make([]pricing.Record, 0, len(c.Pricing))

	for _, entry := range c.Pricing {
		price, err := decimal.NewFromString(entry.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for endpoint %s: %w", entry.PriceUSD, entry.Endpoint, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("negative price for endpoint %s", entry.Endpoint)
		}

		records = append(records, pricing.Record{
			Endpoint:             entry.Endpoint,
			PriceUSD:             price,
			Category:             pricing.Category(entry.Category),
			RequestsPerWindow:    entry.RequestsPerWindow,
			GrantDurationSeconds: entry.GrantDurationSeconds,
			PassTier:             entry.PassTier,
			Description:          entry.Description,
			FreeAlternative:      entry.FreeAlternative,
		})
	}

	return records, nil
}
