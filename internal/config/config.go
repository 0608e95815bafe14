package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url" envconfig:"API_BASE_URL"`
	Token          string        `mapstructure:"token" envconfig:"API_TOKEN"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"API_REQUEST_TIMEOUT"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" envconfig:"API_RETRY_BACKOFF"`
	RateLimit      float64       `mapstructure:"rate_limit" envconfig:"API_RATE_LIMIT"`
	RateBurst      int           `mapstructure:"rate_burst" envconfig:"API_RATE_BURST"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" envconfig:"API_CACHE_TTL"`
}

type PrefsConfig struct {
	// Backend is "memory" or "redis".
	Backend  string `mapstructure:"backend" envconfig:"PREFS_BACKEND"`
	RedisURL string `mapstructure:"redis_url" envconfig:"PREFS_REDIS_URL"`
}

type StubServerConfig struct {
	Port              int     `mapstructure:"port" envconfig:"STUB_PORT"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"STUB_RPS"`
	Burst             int     `mapstructure:"burst" envconfig:"STUB_BURST"`
	Seed              bool    `mapstructure:"seed" envconfig:"STUB_SEED"`
}

type LogConfig struct {
	Level string `mapstructure:"level" envconfig:"LOG_LEVEL"`
}

type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Prefs      PrefsConfig      `mapstructure:"prefs"`
	StubServer StubServerConfig `mapstructure:"stub_server"`
	Log        LogConfig        `mapstructure:"log"`
}

// Load reads config.yml from the working directory or ./config, then
// applies environment overrides. Missing files fall back to defaults so
// schedctl works out of the box against a local stub server.
func Load() (*Config, error) {
	cfg := defaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := asConfigNotFound(err, &notFound); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("schedclient", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api/v1",
			RequestTimeout: 10 * time.Second,
			RetryBackoff:   500 * time.Millisecond,
			RateLimit:      20,
			RateBurst:      10,
			CacheTTL:       30 * time.Second,
		},
		Prefs: PrefsConfig{
			Backend:  "memory",
			RedisURL: "redis://localhost:6379/0",
		},
		StubServer: StubServerConfig{
			Port:              8080,
			RequestsPerSecond: 50,
			Burst:             25,
			Seed:              true,
		},
		Log: LogConfig{Level: "info"},
	}
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
