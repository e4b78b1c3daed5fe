package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invox/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ParseTimeout)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxFileSizeBytes)
	assert.Equal(t, config.DefaultAllowedTypes, cfg.Upload.AllowedTypes)

	assert.Equal(t, 0.50, cfg.Confidence.RejectionThreshold)
	assert.Equal(t, 0.90, cfg.Confidence.WarningThreshold)
	assert.Equal(t, 50, cfg.Confidence.MaxLineItems)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.True(t, cfg.Retry.Jitter)
	assert.True(t, cfg.Retry.BreakerEnabled)

	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 0.4, cfg.OpenAI.Temperature)
	assert.Equal(t, 4096, cfg.OpenAI.MaxTokens)
	assert.Equal(t, 20*time.Second, cfg.OpenAI.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVOX_SERVER_PORT", ":9090")
	t.Setenv("INVOX_SERVER_PARSE_TIMEOUT", "45s")
	t.Setenv("INVOX_LOG_LEVEL", "warn")
	t.Setenv("INVOX_LOG_FORMAT", "json")
	t.Setenv("INVOX_UPLOAD_MAX_FILE_SIZE_BYTES", "1048576")
	t.Setenv("INVOX_CONFIDENCE_REJECTION_THRESHOLD", "0.6")
	t.Setenv("INVOX_RETRY_MAX_RETRIES", "5")
	t.Setenv("INVOX_RETRY_JITTER", "false")
	t.Setenv("INVOX_OPENAI_API_KEY", "sk-test")
	t.Setenv("INVOX_OPENAI_MODEL", "gpt-4o-mini")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ParseTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(1048576), cfg.Upload.MaxFileSizeBytes)
	assert.Equal(t, 0.6, cfg.Confidence.RejectionThreshold)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestLoad_CommaSeparatedLists(t *testing.T) {
	t.Setenv("INVOX_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")
	t.Setenv("INVOX_UPLOAD_ALLOWED_TYPES", "application/pdf,image/png")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"application/pdf", "image/png"}, cfg.Upload.AllowedTypes)
}

func TestLoad_PlatformPortFallback(t *testing.T) {
	t.Setenv("PORT", "7777")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Port)
}
