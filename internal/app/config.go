package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/intervita/sessiond/internal/token"
)

// Config represents the runtime configuration for sessiond.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Room       RoomConfig       `mapstructure:"room"`
	LiveKit    LiveKitConfig    `mapstructure:"livekit"`
	Manual     ManualConfig     `mapstructure:"manual"`
	Cloud      CloudConfig      `mapstructure:"cloud"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Store      StoreConfig      `mapstructure:"store"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig controls the fixed-window limiter on the token endpoint.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// AuthConfig captures credential signing settings.
type AuthConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	APISecret        string        `mapstructure:"api_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	RequireResume    bool          `mapstructure:"require_resume"`
	MaxMetadataBytes int           `mapstructure:"max_metadata_bytes"`
}

// RoomConfig holds the optional static room and participant names used by the
// broker's env mode.
type RoomConfig struct {
	Name        string `mapstructure:"name"`
	Participant string `mapstructure:"participant"`
}

// LiveKitConfig holds the transport endpoint consumed by env mode.
type LiveKitConfig struct {
	URL string `mapstructure:"url"`
}

// ManualConfig holds a static endpoint/token pair for manual mode.
type ManualConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// CloudConfig points at the managed token-generation collaborator. Its
// contents are opaque to the core.
type CloudConfig struct {
	URL string `mapstructure:"url"`
}

// ParserConfig configures the document parsing gateway client.
type ParserConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig describes the durable document store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	CacheKey string `mapstructure:"cache_key"`
}

// MonitoringConfig enables metrics endpoints.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// TokenServiceConfig converts the auth section into a token service configuration.
func (c AuthConfig) TokenServiceConfig() token.Config {
	return token.Config{
		APIKey:           strings.TrimSpace(c.APIKey),
		APISecret:        strings.TrimSpace(c.APISecret),
		TTL:              c.TokenTTL,
		RequireDocument:  c.RequireResume,
		MaxMetadataBytes: c.MaxMetadataBytes,
	}
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SESSIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.max_requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("auth.token_ttl", "6h")
	v.SetDefault("auth.require_resume", true)
	v.SetDefault("auth.max_metadata_bytes", 65536)

	v.SetDefault("parser.timeout", "60s")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/sessiond.sqlite")
	v.SetDefault("store.cache_key", "documents")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
