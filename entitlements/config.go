// CLAUDE:SUMMARY Service configuration: variant, listen address, body/CORS/rate limits, store backend and sheet settings; YAML file plus environment overlay.
package entitlements

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/entitlemate/sheet"
	"github.com/hazyhaar/entitlemate/snapstore"
)

// Variant selects which route set the service exposes.
type Variant string

const (
	// VariantRelay serves GET/POST /api/entitlements and GET /test.
	VariantRelay Variant = "relay"
	// VariantUpload serves POST /upload, GET /data and GET /.
	VariantUpload Variant = "upload"
)

// DefaultMaxBodyBytes caps ingress bodies when max_body_bytes is unset.
const DefaultMaxBodyBytes int64 = 10 << 20

// Config holds the entitlements service configuration.
type Config struct {
	Variant Variant `yaml:"variant" env:"ENTITLEMATE_VARIANT"`

	// Addr is the full listen address. When empty, the service listens on
	// ":"+Port.
	Addr string `yaml:"addr" env:"ENTITLEMATE_ADDR"`

	// Port defaults to 5050 for relay and 5000 for upload.
	Port int `yaml:"port" env:"PORT"`

	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`

	// CORSOrigins lists allowed browser origins. Empty allows all.
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Store     snapstore.Config `yaml:"store"`
	Sheet     sheet.Config     `yaml:"sheet"`
}

// RateLimitConfig configures per-IP limiting. A nil RPS means the default
// of 20 requests per second; an explicit 0 disables limiting.
type RateLimitConfig struct {
	RPS   *float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int      `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

func (c *Config) defaults() {
	if c.Variant == "" {
		c.Variant = VariantRelay
	}
	if c.Port == 0 {
		if c.Variant == VariantUpload {
			c.Port = 5000
		} else {
			c.Port = 5050
		}
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RateLimit.RPS == nil {
		rps := 20.0
		c.RateLimit.RPS = &rps
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	c.Store.Defaults()
	c.Sheet.Defaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	switch c.Variant {
	case VariantRelay, VariantUpload:
	default:
		return fmt.Errorf("entitlements: unknown variant %q (want relay or upload)", c.Variant)
	}
	if c.Addr == "" && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("entitlements: port %d out of range", c.Port)
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("entitlements: max_body_bytes must not be negative")
	}
	if c.RateLimit.RPS != nil && *c.RateLimit.RPS < 0 {
		return errors.New("entitlements: rate_limit.rps must not be negative")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Sheet.Validate()
}

// ListenAddr returns the address the HTTP server binds.
func (c *Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return ":" + strconv.Itoa(c.Port)
}

// RPS returns the effective rate limit, 0 meaning disabled.
func (c *Config) RPS() float64 {
	if c.RateLimit.RPS == nil {
		return 0
	}
	return *c.RateLimit.RPS
}

// LoadConfigFile reads a YAML config file. Defaults are not applied.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("entitlements: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Variables that are not
// set leave the current values alone.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("entitlements: parse env: %w", err)
	}
	return nil
}

// Prepare applies defaults and validates.
func (c *Config) Prepare() error {
	c.defaults()
	return c.Validate()
}
