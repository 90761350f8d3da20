package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MINECALC_SERVER_PORT
const EnvPrefix = "MINECALC"

// CORSConfig defines cross-origin access. An empty origin list disables CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"` // 0 disables inbound limiting
	StreamInterval     time.Duration `mapstructure:"stream_interval"`       // WebSocket push interval, 0 disables /ws
	CORS               CORSConfig    `mapstructure:"cors"`
}

// PricingConfig defines the market data feeds
type PricingConfig struct {
	Sources              []string      `mapstructure:"sources"` // Price sources, tried in order
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"` // Per feed, 0 disables
	BinanceURL           string        `mapstructure:"binance_url"`
	CoinGeckoURL         string        `mapstructure:"coingecko_url"`
	CoinDeskURL          string        `mapstructure:"coindesk_url"`
	DifficultyURL        string        `mapstructure:"difficulty_url"`
}

// MetricsConfig defines the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig defines logger output
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json or console
}

// Config is the main configuration structure
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			RequestTimeout:     20 * time.Second,
			RateLimitPerMinute: 120,
			StreamInterval:     30 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{},
			},
		},
		Pricing: PricingConfig{
			Sources:              []string{"binance", "coingecko"},
			Timeout:              5 * time.Second,
			MaxRequestsPerMinute: 60,
			BinanceURL:           "https://api.binance.com",
			CoinGeckoURL:         "https://api.coingecko.com",
			CoinDeskURL:          "https://api.coindesk.com/v1/bpi/currentprice/BTC.json",
			DifficultyURL:        "https://blockchain.info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads configuration from an optional file and MINECALC_* environment
// variables, on top of DefaultConfig. An empty path searches ./config.yaml
// and ./config/config.yaml; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// when no config file mentions them
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.rate_limit_per_minute", d.Server.RateLimitPerMinute)
	v.SetDefault("server.stream_interval", d.Server.StreamInterval)
	v.SetDefault("server.cors.allowed_origins", d.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.allow_credentials", d.Server.CORS.AllowCredentials)

	v.SetDefault("pricing.sources", d.Pricing.Sources)
	v.SetDefault("pricing.timeout", d.Pricing.Timeout)
	v.SetDefault("pricing.max_requests_per_minute", d.Pricing.MaxRequestsPerMinute)
	v.SetDefault("pricing.binance_url", d.Pricing.BinanceURL)
	v.SetDefault("pricing.coingecko_url", d.Pricing.CoinGeckoURL)
	v.SetDefault("pricing.coindesk_url", d.Pricing.CoinDeskURL)
	v.SetDefault("pricing.difficulty_url", d.Pricing.DifficultyURL)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute cannot be negative")
	}
	if c.Server.StreamInterval < 0 {
		return fmt.Errorf("server.stream_interval cannot be negative")
	}
	if len(c.Pricing.Sources) == 0 {
		return fmt.Errorf("pricing.sources cannot be empty")
	}
	for _, s := range c.Pricing.Sources {
		switch s {
		case "binance", "coingecko", "coindesk":
		default:
			return fmt.Errorf("unknown pricing source %q", s)
		}
	}
	if c.Pricing.Timeout <= 0 {
		return fmt.Errorf("pricing.timeout must be positive")
	}
	if c.Pricing.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("pricing.max_requests_per_minute cannot be negative")
	}
	if c.Pricing.DifficultyURL == "" {
		return fmt.Errorf("pricing.difficulty_url is required")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding)
	}
	return nil
}

// Addr returns the host:port the server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
