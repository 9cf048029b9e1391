// Package config loads service configuration from defaults, an optional
// YAML file and SUBLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. SUBLY_SERVER_PORT
const EnvPrefix = "SUBLY"

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Rates   RatesConfig   `mapstructure:"rates"`
	Icons   IconsConfig   `mapstructure:"icons"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"` // "debug", "info", "warn", "error"
}

// StorageConfig holds the icon cache store location
type StorageConfig struct {
	BadgerPath string `mapstructure:"badger_path"`
	InMemory   bool   `mapstructure:"in_memory"`
}

// HTTPConfig holds outbound HTTP behaviour shared by provider clients
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	Backoff   time.Duration `mapstructure:"backoff"`
	UserAgent string        `mapstructure:"user_agent"`
}

// RatesConfig holds exchange-rate settings
type RatesConfig struct {
	TTL            time.Duration      `mapstructure:"ttl"`
	NamesTTL       time.Duration      `mapstructure:"names_ttl"`
	SupportedCodes []string           `mapstructure:"supported_codes"`
	Fallback       map[string]float64 `mapstructure:"fallback"`
	PrimaryURL     string             `mapstructure:"primary_url"`
	SecondaryURL   string             `mapstructure:"secondary_url"`
	NamesURL       string             `mapstructure:"names_url"`
	WarmSchedule   string             `mapstructure:"warm_schedule"` // cron expression, empty disables warming
}

// IconsConfig holds icon resolution settings
type IconsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	SearchURL       string        `mapstructure:"search_url"`
	SearchCountries []string      `mapstructure:"search_countries"`
	SearchLimit     int           `mapstructure:"search_limit"`
	HintsFile       string        `mapstructure:"hints_file"`
}

// Load reads the configuration. When path is empty, config.yaml is looked
// up in ./config and the working directory; a missing file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("log.level", "info")

	v.SetDefault("storage.badger_path", "./data")
	v.SetDefault("storage.in_memory", false)

	v.SetDefault("http.timeout", 6*time.Second)
	v.SetDefault("http.retries", 1)
	v.SetDefault("http.backoff", 200*time.Millisecond)
	v.SetDefault("http.user_agent", "Subly/1.0 (+https://localhost)")

	v.SetDefault("rates.ttl", 30*time.Minute)
	v.SetDefault("rates.names_ttl", 24*time.Hour)
	v.SetDefault("rates.supported_codes", entity.DefaultSupportedCurrencies)
	v.SetDefault("rates.fallback", entity.DefaultFallbackUSDRates)
	v.SetDefault("rates.primary_url", "https://open.er-api.com")
	v.SetDefault("rates.secondary_url", "https://api.frankfurter.app")
	v.SetDefault("rates.names_url", "https://openexchangerates.org/api/currencies.json")
	v.SetDefault("rates.warm_schedule", "@every 25m")

	v.SetDefault("icons.ttl", 30*24*time.Hour)
	v.SetDefault("icons.probe_timeout", 4*time.Second)
	v.SetDefault("icons.search_url", "https://itunes.apple.com/search")
	v.SetDefault("icons.search_countries", []string{"cn", "us"})
	v.SetDefault("icons.search_limit", 8)
	v.SetDefault("icons.hints_file", "")
}

// normalize upper-cases currency codes, which viper lowercases in map keys
func (c *Config) normalize() {
	codes := make([]string, 0, len(c.Rates.SupportedCodes)+1)
	seen := make(map[string]struct{})
	for _, raw := range append(c.Rates.SupportedCodes, entity.BaseCurrency) {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	c.Rates.SupportedCodes = codes

	fallback := make(map[string]float64, len(c.Rates.Fallback))
	for code, rate := range c.Rates.Fallback {
		fallback[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	fallback[entity.BaseCurrency] = 1.0
	c.Rates.Fallback = fallback
}

// Validate checks invariants the services rely on
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Rates.TTL <= 0 || c.Rates.NamesTTL <= 0 || c.Icons.TTL <= 0 {
		return errors.New("rates.ttl, rates.names_ttl and icons.ttl must be positive")
	}

	for _, code := range c.Rates.SupportedCodes {
		if _, ok := entity.NormalizeCurrencyCode(code); !ok {
			return fmt.Errorf("rates.supported_codes contains invalid code %q", code)
		}
		if rate, ok := c.Rates.Fallback[code]; !ok || rate <= 0 {
			return fmt.Errorf("rates.fallback has no positive rate for supported code %s", code)
		}
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
