package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Centers string       `yaml:"centers" mapstructure:"centers"`
	CRM     CRMConfig    `yaml:"crm" mapstructure:"crm"`
	Ads     AdsConfig    `yaml:"ads" mapstructure:"ads"`
	Fetch   FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Cache   CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig `yaml:"server" mapstructure:"server"`
	Log     LogConfig    `yaml:"log" mapstructure:"log"`
}

// CRMConfig configures the HighLevel CRM client.
type CRMConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// AdsConfig configures the Meta Graph API client.
type AdsConfig struct {
	AccessToken   string  `yaml:"access_token" mapstructure:"access_token"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// FetchConfig configures trend fetching behavior.
type FetchConfig struct {
	PoolSize   int `yaml:"pool_size" mapstructure:"pool_size"`
	Retries    int `yaml:"retries" mapstructure:"retries"`
	CooldownMS int `yaml:"cooldown_ms" mapstructure:"cooldown_ms"`
}

// CacheConfig configures the trend result cache.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLMinutes  int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENTERBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("centers", "centers.yaml")
	v.SetDefault("crm.base_url", "https://rest.gohighlevel.com/v1")
	v.SetDefault("crm.rate_per_second", 10)
	v.SetDefault("crm.rate_burst", 10)
	v.SetDefault("ads.access_token", "")
	v.SetDefault("ads.base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("ads.rate_per_second", 5)
	v.SetDefault("ads.rate_burst", 5)
	v.SetDefault("fetch.pool_size", 10)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.cooldown_ms", 300)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "centerboard.db")
	v.SetDefault("cache.ttl_minutes", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
