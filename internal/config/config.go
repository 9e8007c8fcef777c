package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         App         `mapstructure:"app"`
	LLM         LLM         `mapstructure:"llm"`
	Database    Database    `mapstructure:"database"`
	Redis       Redis       `mapstructure:"redis"`
	Feeds       Feeds       `mapstructure:"feeds"`
	Correlation Correlation `mapstructure:"correlation"`
	Server      Server      `mapstructure:"server"`
	PostHog     PostHog     `mapstructure:"posthog"`
	Logging     Logging     `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	ConfigFile string `mapstructure:"config_file"`
}

// LLM holds structured-generation provider configuration
type LLM struct {
	Provider    string       `mapstructure:"provider"`     // gemini or openai
	Model       string       `mapstructure:"model"`        // triage and comparative model
	DeepModel   string       `mapstructure:"deep_model"`   // deep analysis model, falls back to Model
	Timeout     string       `mapstructure:"timeout"`      // per-request HTTP timeout
	Temperature float32      `mapstructure:"temperature"`  // triage temperature
	MaxTokens   int32        `mapstructure:"max_tokens"`   // triage budget; values below 1000 are clamped by schema size
	Gemini      GeminiConfig `mapstructure:"gemini"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// OpenAIConfig holds configuration for any OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DisableTools bool   `mapstructure:"disable_tools"` // use response_format json_object instead of forced tool calls
}

// Database holds the Postgres connection settings
type Database struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

// Redis holds cache configuration. An empty Addr disables caching.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	FeedTTL  string `mapstructure:"feed_ttl"`
	StatsTTL string `mapstructure:"stats_ttl"`
}

// Feeds holds RSS/feed configuration
type Feeds struct {
	URLs            []string `mapstructure:"urls"`
	UserAgent       string   `mapstructure:"user_agent"`
	Timeout         string   `mapstructure:"timeout"`
	MaxItemsPerFeed int      `mapstructure:"max_items_per_feed"`
	ExtractFullText bool     `mapstructure:"extract_full_text"`
}

// Correlation holds tunables for the same-story engine
type Correlation struct {
	Threshold  int    `mapstructure:"threshold"`
	MaxRelated int    `mapstructure:"max_related"`
	DateWindow string `mapstructure:"date_window"`
}

// Server holds HTTP server configuration
type Server struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
	RequestTimeout string   `mapstructure:"request_timeout"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	APIKey         string   `mapstructure:"api_key"` // bearer token for mutating endpoints, empty disables the check
}

// PostHog holds product analytics configuration
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultFeedURLs are the outlets polled when no feeds are configured.
var DefaultFeedURLs = []string{
	"https://www.perfil.com/feed",
	"https://www.lanacion.com.ar/arc/outboundfeeds/rss/",
	"https://www.clarin.com/rss/lo-ultimo/",
	"https://www.infobae.com/arc/outboundfeeds/rss/",
	"https://www.cronista.com/rss/",
	"https://www.pagina12.com.ar/rss/portada",
	"https://www.ambito.com/rss/pages/home.xml",
	"https://www.laizquierdadiario.com/spip.php?page=backend_portada",
	"https://derechadiario.com.ar/rss/last-posts",
	"https://www.lavoz.com.ar/arc/outboundfeeds/feeds/rss/noticias/",
	"https://www.diarioregistrado.com/rss.xml",
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newslens")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the loaded configuration and viper state. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.model", "gemini-flash-lite-latest")
	viper.SetDefault("llm.deep_model", "")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 0)
	viper.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.feed_ttl", "10m")
	viper.SetDefault("redis.stats_ttl", "1m")

	viper.SetDefault("feeds.urls", DefaultFeedURLs)
	viper.SetDefault("feeds.user_agent", "newslens/1.0")
	viper.SetDefault("feeds.timeout", "30s")
	viper.SetDefault("feeds.max_items_per_feed", 50)
	viper.SetDefault("feeds.extract_full_text", false)

	viper.SetDefault("correlation.threshold", 5)
	viper.SetDefault("correlation.max_related", 10)
	viper.SetDefault("correlation.date_window", "72h")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.request_timeout", "110s")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("posthog.enabled", false)
	viper.SetDefault("posthog.host", "https://app.posthog.com")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("llm.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("llm.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys("llm.openai.base_url", []string{
		"OPENAI_BASE_URL",
	})

	bindEnvKeys("llm.provider", []string{
		"LLM_PROVIDER",
	})

	bindEnvKeys("database.url", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	bindEnvKeys("redis.addr", []string{
		"REDIS_ADDR",
		"REDIS_URL",
	})

	bindEnvKeys("server.api_key", []string{
		"ADMIN_API_KEY",
	})

	bindEnvKeys("posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSLENS_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.LLM.Provider = strings.ToLower(strings.TrimSpace(config.LLM.Provider))
	if config.LLM.DeepModel == "" {
		config.LLM.DeepModel = config.LLM.Model
	}
	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"llm.timeout":                config.LLM.Timeout,
		"database.conn_max_lifetime": config.Database.ConnMaxLifetime,
		"redis.feed_ttl":             config.Redis.FeedTTL,
		"redis.stats_ttl":            config.Redis.StatsTTL,
		"feeds.timeout":              config.Feeds.Timeout,
		"correlation.date_window":    config.Correlation.DateWindow,
		"server.read_timeout":        config.Server.ReadTimeout,
		"server.write_timeout":       config.Server.WriteTimeout,
		"server.request_timeout":     config.Server.RequestTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// validateConfig ensures configuration values are usable
func validateConfig(config *Config) error {
	var errors []string

	switch config.LLM.Provider {
	case "gemini", "openai":
	default:
		errors = append(errors, fmt.Sprintf("Unknown LLM provider: %s. Supported: gemini, openai", config.LLM.Provider))
	}

	if config.Correlation.Threshold < 1 {
		errors = append(errors, "correlation.threshold must be at least 1")
	}
	if config.Correlation.MaxRelated < 1 {
		errors = append(errors, "correlation.max_related must be at least 1")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", config.Server.Port))
	}
	if config.PostHog.Enabled && config.PostHog.APIKey == "" {
		errors = append(errors, "PostHog is enabled but no API key is set. Set POSTHOG_API_KEY")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration parses a validated duration string, returning fallback when empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetLLM() LLM                 { return Get().LLM }
func GetDatabase() Database       { return Get().Database }
func GetRedis() Redis             { return Get().Redis }
func GetFeeds() Feeds             { return Get().Feeds }
func GetCorrelation() Correlation { return Get().Correlation }
func GetServer() Server           { return Get().Server }
func GetPostHog() PostHog         { return Get().PostHog }
func GetLogging() Logging         { return Get().Logging }
func IsDebugMode() bool           { return Get().App.Debug }
