// Package config loads the server configuration from the environment,
// an optional config file and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration
type Config struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`

	SessionPassword   string        `mapstructure:"session_password"`
	SessionCookieName string        `mapstructure:"session_cookie_name"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`

	RedisURL string `mapstructure:"redis_url"`
	RPCURL   string `mapstructure:"rpc_url"`
	ChainID  int    `mapstructure:"chain_id"`

	AllowedDomains     []string `mapstructure:"allowed_domains"`
	BurnNonceOnFailure bool     `mapstructure:"burn_nonce_on_failure"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	EthUSDPrice float64 `mapstructure:"eth_usd_price"`
}

// MinPasswordLength is the shortest accepted session password
const MinPasswordLength = 32

var defaults = map[string]any{
	"env":                   "development",
	"listen_addr":           ":9000",
	"session_password":      "",
	"session_cookie_name":   "basetips_siwe",
	"session_ttl":           14 * 24 * time.Hour,
	"redis_url":             "",
	"rpc_url":               "https://mainnet.base.org",
	"chain_id":              8453,
	"allowed_domains":       []string{},
	"burn_nonce_on_failure": false,
	"log_level":             "info",
	"log_format":            "json",
	"eth_usd_price":         2400.0,
}

// New returns a viper instance with defaults, reading upper-case
// environment variables such as SESSION_PASSWORD.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, if any, and decodes and validates the settings
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	c.AllowedDomains = cleanList(c.AllowedDomains)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation error: %w", err)
	}
	return &c, nil
}

// Validate ensures the settings are usable
func (c *Config) Validate() error {
	if len(c.SessionPassword) < MinPasswordLength {
		return fmt.Errorf("session_password must be at least %d characters", MinPasswordLength)
	}
	if c.SessionCookieName == "" {
		return errors.New("session_cookie_name cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive, got %d", c.ChainID)
	}
	if c.EthUSDPrice < 0 {
		return errors.New("eth_usd_price cannot be negative")
	}
	return nil
}

// Production reports whether cookies must be Secure
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Env values may hold a comma separated list in a single element
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
