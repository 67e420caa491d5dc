package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all pipeline configuration. Values come from config.yaml when
// present, overridden by environment variables (MENU_ANALYZER_* prefix).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Inference InferenceConfig `mapstructure:"inference"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	Mode               string        `mapstructure:"mode"` // gin mode: debug or release
}

// InferenceConfig describes the single trusted inference endpoint. The host
// is the only one requests may be sent to; anything else fails closed.
type InferenceConfig struct {
	Endpoint          string   `mapstructure:"endpoint"`
	AllowedPathPrefix string   `mapstructure:"allowed_path_prefix"`
	APIKey            string   `mapstructure:"api_key"`
	SigningKey        string   `mapstructure:"signing_key"`
	Model             string   `mapstructure:"model"`
	ProtocolVersion   string   `mapstructure:"protocol_version"`
	PinnedCertHashes  []string `mapstructure:"pinned_cert_hashes"`
	DefaultPreset     string   `mapstructure:"default_preset"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxEntries  int           `mapstructure:"max_entries"`
	MaxCostSize int64         `mapstructure:"max_cost_size"`
}

// StorageConfig selects where menu photos are fetched from when the caller
// passes a URL instead of inline bytes.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"` // "http" or "azure"
	AzureAccountName string `mapstructure:"azure_account_name"`
	AzureAccountKey  string `mapstructure:"azure_account_key"`
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// Load reads configuration from ./config/config.yaml (optional) and the
// environment, applying defaults for everything not set.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MENU_ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 90*time.Second)
	v.SetDefault("server.max_request_body_size", 10*1024*1024)
	v.SetDefault("server.mode", "release")

	v.SetDefault("inference.endpoint", "https://api.menuvision.example.com")
	v.SetDefault("inference.allowed_path_prefix", "/v1/")
	v.SetDefault("inference.model", "menu-vision-1")
	v.SetDefault("inference.protocol_version", "2024-06-01")
	v.SetDefault("inference.default_preset", "balanced")

	v.SetDefault("rate_limit.max_requests", 20)
	v.SetDefault("rate_limit.window", 60*time.Second)

	v.SetDefault("cache.ttl", 300*time.Second)
	v.SetDefault("cache.max_entries", 20)
	v.SetDefault("cache.max_cost_size", 10*1024*1024)

	v.SetDefault("storage.backend", "http")
}

// Validate rejects configurations that would make the pipeline misbehave
// rather than letting them fail deep inside a request.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Inference.Endpoint, "https://") {
		return fmt.Errorf("inference endpoint must use https, got %q", c.Inference.Endpoint)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be > 0 (got %d)", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be > 0 (got %s)", c.RateLimit.Window)
	}
	if c.Cache.TTL <= 0 || c.Cache.MaxEntries <= 0 || c.Cache.MaxCostSize <= 0 {
		return fmt.Errorf("cache ttl, max_entries and max_cost_size must be > 0")
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("server.max_request_body_size must be > 0 (got %d)", c.Server.MaxRequestBodySize)
	}
	return nil
}
