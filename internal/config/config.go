package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the alerting engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DocStore    DocStoreConfig    `yaml:"docstore"`
	Email       EmailConfig       `yaml:"email"`
	Logging     LoggingConfig     `yaml:"logging"`
	Rules       RulesConfig       `yaml:"rules"`
	Cache       CacheConfig       `yaml:"cache"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Forecast    ForecastConfig    `yaml:"forecast"`
}

// ServerConfig controls the API and operational HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	OpsAddress      string        `yaml:"opsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DocStoreConfig configures access to the hosted document store.
type DocStoreConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls alert rule pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of tenant configuration reads.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
	TLS            bool          `yaml:"tls"`
	PreferencesTTL time.Duration `yaml:"preferencesTTL"`
	ChannelsTTL    time.Duration `yaml:"channelsTTL"`
}

// CorrelationConfig tunes alert-to-incident grouping.
type CorrelationConfig struct {
	TimeWindowMinutes int `yaml:"timeWindowMinutes"`
}

// ForecastConfig sets forecasting defaults for rule evaluation.
type ForecastConfig struct {
	HorizonDays     int     `yaml:"horizonDays"`
	ConfidenceLevel float64 `yaml:"confidenceLevel"`
	Method          string  `yaml:"method"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PULSE_ALERTING_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			OpsAddress:      ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		DocStore: DocStoreConfig{Timeout: 5 * time.Second},
		Email:    EmailConfig{Timeout: 10 * time.Second},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Rules:    RulesConfig{Path: "configs/rules/default.yaml"},
		Cache: CacheConfig{
			Enabled:        false,
			PreferencesTTL: 2 * time.Minute,
			ChannelsTTL:    5 * time.Minute,
			DialTimeout:    2 * time.Second,
			ReadTimeout:    500 * time.Millisecond,
			WriteTimeout:   500 * time.Millisecond,
			MaxRetries:     2,
		},
		Correlation: CorrelationConfig{TimeWindowMinutes: 10},
		Forecast: ForecastConfig{
			HorizonDays:     7,
			ConfidenceLevel: 0.95,
			Method:          "ewma",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_ALERTING_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PULSE_ALERTING_OPS_ADDRESS"); v != "" {
		cfg.Server.OpsAddress = v
	}
	if v := os.Getenv("PULSE_DOCSTORE_ENDPOINT"); v != "" {
		cfg.DocStore.Endpoint = v
	}
	if v := os.Getenv("PULSE_DOCSTORE_API_KEY"); v != "" {
		cfg.DocStore.APIKey = v
	}
	if v := os.Getenv("PULSE_EMAIL_ENDPOINT"); v != "" {
		cfg.Email.Endpoint = v
	}
	if v := os.Getenv("PULSE_EMAIL_API_KEY"); v != "" {
		cfg.Email.APIKey = v
	}
	if v := os.Getenv("PULSE_EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("PULSE_ALERTING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_ALERTING_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PULSE_ALERTING_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_PREFERENCES_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PreferencesTTL = d
		}
	}
	if v := os.Getenv("PULSE_ALERTING_CACHE_CHANNELS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ChannelsTTL = d
		}
	}
	if v := os.Getenv("PULSE_ALERTING_CORRELATION_WINDOW_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.Correlation.TimeWindowMinutes = minutes
		}
	}
	if v := os.Getenv("PULSE_ALERTING_FORECAST_HORIZON_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Forecast.HorizonDays = days
		}
	}
	if v := os.Getenv("PULSE_ALERTING_FORECAST_METHOD"); v != "" {
		cfg.Forecast.Method = v
	}
}
