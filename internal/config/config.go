package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	CORS       CORSConfig
	Upload     UploadConfig
	Confidence ConfidenceConfig
	Retry      RetryConfig
	OpenAI     OpenAIConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ParseTimeout time.Duration `mapstructure:"parse_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// UploadConfig holds upload validation settings.
type UploadConfig struct {
	MaxFileSizeBytes int64    `mapstructure:"max_file_size_bytes"`
	AllowedTypes     []string `mapstructure:"allowed_types"`
}

// ConfidenceConfig holds confidence gate thresholds.
type ConfidenceConfig struct {
	RejectionThreshold float64 `mapstructure:"rejection_threshold"`
	WarningThreshold   float64 `mapstructure:"warning_threshold"`
	MaxLineItems       int     `mapstructure:"max_line_items"`
}

// RetryConfig holds retry and circuit breaker settings for remote model calls.
type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	Multiplier     float64       `mapstructure:"multiplier"`
	Jitter         bool          `mapstructure:"jitter"`
	BreakerEnabled bool          `mapstructure:"breaker_enabled"`

	BreakerMinRequests      uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio     float64       `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
	BreakerHalfOpenMaxCalls uint32        `mapstructure:"breaker_half_open_max_calls"`
}

// OpenAIConfig holds settings for the OpenAI extraction backend.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Endpoint    string        `mapstructure:"endpoint"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DefaultAllowedTypes lists the MIME types accepted for invoice uploads:
// PDFs, common raster image formats, and text documents.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/tiff",
	"image/bmp",
	"image/webp",
	"image/heic",
	"image/heif",
	"image/gif",
	"text/plain",
	"text/markdown",
}

// Load reads configuration from environment variables with the INVOX_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INVOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.parse_timeout", "20s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Upload defaults (5 MB cap)
	v.SetDefault("upload.max_file_size_bytes", int64(5*1024*1024))
	v.SetDefault("upload.allowed_types", strings.Join(DefaultAllowedTypes, ","))

	// Confidence gate defaults
	v.SetDefault("confidence.rejection_threshold", 0.50)
	v.SetDefault("confidence.warning_threshold", 0.90)
	v.SetDefault("confidence.max_line_items", 50)

	// Retry defaults
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", true)
	v.SetDefault("retry.breaker_enabled", true)
	v.SetDefault("retry.breaker_min_requests", 10)
	v.SetDefault("retry.breaker_failure_ratio", 0.5)
	v.SetDefault("retry.breaker_open_timeout", "30s")
	v.SetDefault("retry.breaker_half_open_max_calls", 2)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.endpoint", "")
	v.SetDefault("openai.temperature", 0.4)
	v.SetDefault("openai.max_tokens", 4096)
	v.SetDefault("openai.timeout", "20s")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":          "INVOX_SERVER_PORT",
		"server.read_timeout":  "INVOX_SERVER_READ_TIMEOUT",
		"server.write_timeout": "INVOX_SERVER_WRITE_TIMEOUT",
		"server.parse_timeout": "INVOX_SERVER_PARSE_TIMEOUT",
		"server.environment":   "INVOX_SERVER_ENVIRONMENT",
		"log.level":            "INVOX_LOG_LEVEL",
		"log.format":           "INVOX_LOG_FORMAT",
		"cors.allowed_origins": "INVOX_CORS_ALLOWED_ORIGINS",

		"upload.max_file_size_bytes": "INVOX_UPLOAD_MAX_FILE_SIZE_BYTES",
		"upload.allowed_types":       "INVOX_UPLOAD_ALLOWED_TYPES",

		"confidence.rejection_threshold": "INVOX_CONFIDENCE_REJECTION_THRESHOLD",
		"confidence.warning_threshold":   "INVOX_CONFIDENCE_WARNING_THRESHOLD",
		"confidence.max_line_items":      "INVOX_CONFIDENCE_MAX_LINE_ITEMS",

		"retry.max_retries":                 "INVOX_RETRY_MAX_RETRIES",
		"retry.initial_delay":               "INVOX_RETRY_INITIAL_DELAY",
		"retry.multiplier":                  "INVOX_RETRY_MULTIPLIER",
		"retry.jitter":                      "INVOX_RETRY_JITTER",
		"retry.breaker_enabled":             "INVOX_RETRY_BREAKER_ENABLED",
		"retry.breaker_min_requests":        "INVOX_RETRY_BREAKER_MIN_REQUESTS",
		"retry.breaker_failure_ratio":       "INVOX_RETRY_BREAKER_FAILURE_RATIO",
		"retry.breaker_open_timeout":        "INVOX_RETRY_BREAKER_OPEN_TIMEOUT",
		"retry.breaker_half_open_max_calls": "INVOX_RETRY_BREAKER_HALF_OPEN_MAX_CALLS",

		"openai.api_key":     "INVOX_OPENAI_API_KEY",
		"openai.model":       "INVOX_OPENAI_MODEL",
		"openai.endpoint":    "INVOX_OPENAI_ENDPOINT",
		"openai.temperature": "INVOX_OPENAI_TEMPERATURE",
		"openai.max_tokens":  "INVOX_OPENAI_MAX_TOKENS",
		"openai.timeout":     "INVOX_OPENAI_TIMEOUT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if INVOX_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("INVOX_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		ParseTimeout: v.GetDuration("server.parse_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitCommaList(v.GetString("cors.allowed_origins")),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeBytes: v.GetInt64("upload.max_file_size_bytes"),
		AllowedTypes:     splitCommaList(v.GetString("upload.allowed_types")),
	}
	cfg.Confidence = ConfidenceConfig{
		RejectionThreshold: v.GetFloat64("confidence.rejection_threshold"),
		WarningThreshold:   v.GetFloat64("confidence.warning_threshold"),
		MaxLineItems:       v.GetInt("confidence.max_line_items"),
	}
	cfg.Retry = RetryConfig{
		MaxRetries:              v.GetInt("retry.max_retries"),
		InitialDelay:            v.GetDuration("retry.initial_delay"),
		Multiplier:              v.GetFloat64("retry.multiplier"),
		Jitter:                  v.GetBool("retry.jitter"),
		BreakerEnabled:          v.GetBool("retry.breaker_enabled"),
		BreakerMinRequests:      uint32(v.GetUint("retry.breaker_min_requests")),
		BreakerFailureRatio:     v.GetFloat64("retry.breaker_failure_ratio"),
		BreakerOpenTimeout:      v.GetDuration("retry.breaker_open_timeout"),
		BreakerHalfOpenMaxCalls: uint32(v.GetUint("retry.breaker_half_open_max_calls")),
	}
	cfg.OpenAI = OpenAIConfig{
		APIKey:      v.GetString("openai.api_key"),
		Model:       v.GetString("openai.model"),
		Endpoint:    v.GetString("openai.endpoint"),
		Temperature: v.GetFloat64("openai.temperature"),
		MaxTokens:   v.GetInt("openai.max_tokens"),
		Timeout:     v.GetDuration("openai.timeout"),
	}

	return cfg, nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
