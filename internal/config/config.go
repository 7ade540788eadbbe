// Package config loads and validates all runtime configuration for the
// gateway.
//
// Configuration is read from environment variables (preferred for
// containers) or from a config.yaml file in the working directory.
// Environment variables take precedence over the YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is the top-level configuration container.
type Config struct {
	Gateway GatewayConfig

	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	Ollama    ProviderConfig
	Mistral   ProviderConfig
	Cohere    ProviderConfig

	Cache   CacheConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

// GatewayConfig controls the process's listeners and default log level.
type GatewayConfig struct {
	// Port is the data-plane HTTP listener port. Default: 8080.
	Port int
	// AdminPort is the admin control-plane listener port. Default: 8081.
	AdminPort int
	// LogLevel controls the minimum console log level. One of: debug, info,
	// warn, error. Default: info.
	LogLevel string
	// VerboseLogging additionally enables DEBUG-level records at startup;
	// this can also be toggled at runtime via the admin surface.
	VerboseLogging bool
	// CORSOrigins is the list of allowed CORS origins on the data plane.
	CORSOrigins []string
}

// ProviderConfig holds per-provider configuration. A provider is enabled
// iff Endpoint is non-empty.
type ProviderConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// CacheConfig controls the Prompt Cache.
type CacheConfig struct {
	// Mode selects the cache backend: "redis", "memory", or "none".
	// Default: "memory".
	Mode string
	// TTLSeconds is the entry lifetime. Default: 3600.
	TTLSeconds int64
}

// RedisConfig holds the connection URL used by both the Redis-backed cache
// and the Redis-backed rate limiter, when selected.
type RedisConfig struct {
	URL string
}

// LoggingConfig controls the Structured Logger's sink fan-out.
type LoggingConfig struct {
	SplunkEnabled         bool
	SplunkEndpoint        string
	DatadogEnabled        bool
	DatadogEndpoint       string
	ElasticsearchEnabled  bool
	ElasticsearchEndpoint string

	ClickHouseEnabled  bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
	ClickHouseTable    string
}

// Load reads configuration from environment variables and (optionally) from
// config.yaml in the current working directory. At least one provider must
// be configured.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", 8080)
	v.SetDefault("ADMIN_PORT", 8081)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERBOSE_LOGGING", false)
	v.SetDefault("CORS_ORIGINS", []string{"*"})
	v.SetDefault("CACHE_MODE", "memory")
	v.SetDefault("CACHE_TTL_SECONDS", 3600)

	cfg := &Config{
		Gateway: GatewayConfig{
			Port:           v.GetInt("PORT"),
			AdminPort:      v.GetInt("ADMIN_PORT"),
			LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
			VerboseLogging: v.GetBool("VERBOSE_LOGGING"),
			CORSOrigins:    v.GetStringSlice("CORS_ORIGINS"),
		},

		OpenAI:    ProviderConfig{Endpoint: v.GetString("OPENAI_ENDPOINT"), APIKey: v.GetString("OPENAI_API_KEY"), Model: v.GetString("OPENAI_MODEL")},
		Anthropic: ProviderConfig{Endpoint: v.GetString("ANTHROPIC_ENDPOINT"), APIKey: v.GetString("ANTHROPIC_API_KEY"), Model: v.GetString("ANTHROPIC_MODEL")},
		Gemini:    ProviderConfig{Endpoint: v.GetString("GEMINI_ENDPOINT"), APIKey: v.GetString("GEMINI_API_KEY"), Model: v.GetString("GEMINI_MODEL")},
		Ollama:    ProviderConfig{Endpoint: v.GetString("OLLAMA_ENDPOINT"), APIKey: v.GetString("OLLAMA_API_KEY"), Model: v.GetString("OLLAMA_MODEL")},
		Mistral:   ProviderConfig{Endpoint: v.GetString("MISTRAL_ENDPOINT"), APIKey: v.GetString("MISTRAL_API_KEY"), Model: v.GetString("MISTRAL_MODEL")},
		Cohere:    ProviderConfig{Endpoint: v.GetString("COHERE_ENDPOINT"), APIKey: v.GetString("COHERE_API_KEY"), Model: v.GetString("COHERE_MODEL")},

		Cache: CacheConfig{
			Mode:       strings.ToLower(v.GetString("CACHE_MODE")),
			TTLSeconds: v.GetInt64("CACHE_TTL_SECONDS"),
		},
		Redis: RedisConfig{URL: v.GetString("REDIS_URL")},

		Logging: LoggingConfig{
			SplunkEnabled:         v.GetBool("SPLUNK_ENABLED"),
			SplunkEndpoint:        v.GetString("SPLUNK_ENDPOINT"),
			DatadogEnabled:        v.GetBool("DATADOG_ENABLED"),
			DatadogEndpoint:       v.GetString("DATADOG_ENDPOINT"),
			ElasticsearchEnabled:  v.GetBool("ELASTICSEARCH_ENABLED"),
			ElasticsearchEndpoint: v.GetString("ELASTICSEARCH_ENDPOINT"),
			ClickHouseEnabled:     v.GetBool("CLICKHOUSE_ENABLED"),
			ClickHouseAddr:        v.GetString("CLICKHOUSE_ADDR"),
			ClickHouseDatabase:    v.GetString("CLICKHOUSE_DATABASE"),
			ClickHouseUsername:    v.GetString("CLICKHOUSE_USERNAME"),
			ClickHousePassword:    v.GetString("CLICKHOUSE_PASSWORD"),
			ClickHouseTable:       v.GetString("CLICKHOUSE_TABLE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.AtLeastOneProviderEnabled() {
		return fmt.Errorf(
			"config: at least one provider endpoint is required " +
				"(OPENAI_ENDPOINT, ANTHROPIC_ENDPOINT, GEMINI_ENDPOINT, OLLAMA_ENDPOINT, MISTRAL_ENDPOINT, or COHERE_ENDPOINT)",
		)
	}

	if c.Cache.Mode == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("config: REDIS_URL is required when CACHE_MODE=redis")
	}

	switch c.Cache.Mode {
	case "redis", "memory", "none":
	default:
		return fmt.Errorf("config: invalid CACHE_MODE %q; must be one of: redis, memory, none", c.Cache.Mode)
	}

	switch c.Gateway.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid LOG_LEVEL %q; must be one of: debug, info, warn, error", c.Gateway.LogLevel)
	}

	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("config: CACHE_TTL_SECONDS must be positive, got %d", c.Cache.TTLSeconds)
	}

	return nil
}

// AtLeastOneProviderEnabled reports whether any of the six providers has a
// non-empty Endpoint.
func (c *Config) AtLeastOneProviderEnabled() bool {
	return c.OpenAI.Endpoint != "" ||
		c.Anthropic.Endpoint != "" ||
		c.Gemini.Endpoint != "" ||
		c.Ollama.Endpoint != "" ||
		c.Mistral.Endpoint != "" ||
		c.Cohere.Endpoint != ""
}

// CacheTTL returns the cache TTL as a time.Duration, for callers that
// prefer it over the raw seconds count.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}
