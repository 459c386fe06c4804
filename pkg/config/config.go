package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ProviderSettings describes one upstream completion vendor. CredentialKey
// is the secrets-manager key; the vendor is enabled iff it resolves.
type ProviderSettings struct {
	CredentialKey string
	BaseURL       string
	Model         string
	ExtraHeaders  map[string]string
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Completion provider configuration
	Providers struct {
		// Order is the fixed failover order of the enabled providers
		Order     []string
		OpenAI    ProviderSettings
		Anthropic ProviderSettings
		Gemini    ProviderSettings
		Groq      ProviderSettings
	}

	// Chat orchestration settings
	Chat struct {
		ContextWindow int
		CallTimeout   time.Duration
		MaxTokens     int
		Temperature   float64
	}

	// Assignment engine settings
	Assignment struct {
		DefaultMaxConcurrent int
	}

	// Redis cache settings
	Cache struct {
		Addr     string
		Enabled  bool
		StatsTTL time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		TrustedProxies []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "support-desk")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Provider config; the credential itself is resolved through the
		// secrets manager, only endpoint and model tuning lives here
		instance.Providers.Order = getEnvStringSlice("PROVIDER_ORDER", []string{"openai", "anthropic", "gemini", "groq"})
		instance.Providers.OpenAI = ProviderSettings{
			CredentialKey: "openai-api-key",
			BaseURL:       getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:         getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		}
		instance.Providers.Anthropic = ProviderSettings{
			CredentialKey: "anthropic-api-key",
			BaseURL:       getEnvString("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
			Model:         getEnvString("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		}
		instance.Providers.Gemini = ProviderSettings{
			CredentialKey: "gemini-api-key",
			BaseURL:       getEnvString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:         getEnvString("GEMINI_MODEL", "gemini-2.0-flash"),
		}
		instance.Providers.Groq = ProviderSettings{
			CredentialKey: "groq-api-key",
			BaseURL:       getEnvString("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:         getEnvString("GROQ_MODEL", "llama-3.1-8b-instant"),
		}

		// Chat settings
		instance.Chat.ContextWindow = getEnvInt("CHAT_CONTEXT_WINDOW", 10)
		instance.Chat.CallTimeout = getEnvDuration("CHAT_CALL_TIMEOUT", 30*time.Second)
		instance.Chat.MaxTokens = getEnvInt("CHAT_MAX_TOKENS", 1024)
		instance.Chat.Temperature = getEnvFloat("CHAT_TEMPERATURE", 0.7)

		// Assignment settings
		instance.Assignment.DefaultMaxConcurrent = getEnvInt("ASSIGNMENT_MAX_CONCURRENT", 3)

		// Cache settings
		instance.Cache.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.StatsTTL = getEnvDuration("CACHE_STATS_TTL", 5*time.Minute)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Settings returns the provider settings registered under the given name
func (c *Config) Settings(name string) (ProviderSettings, bool) {
	switch name {
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "gemini":
		return c.Providers.Gemini, true
	case "groq":
		return c.Providers.Groq, true
	}
	return ProviderSettings{}, false
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
