package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads so host settings cannot
// leak into a test. t.Setenv restores the previous values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "PORT", "REQUEST_TIMEOUT", "CORS_ALLOWED_ORIGINS",
		"PREDICT_BASE_URL", "PREDICT_TIMEOUT",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_MESSAGING_SERVICE_SID",
		"TWILIO_BASE_URL", "SMS_TIMEOUT", "ALERT_DEFAULT_PHONE",
		"SUPPRESSION_WINDOW", "SUPPRESSION_SWEEP_FACTOR",
		"METRICS_BACKEND", "METRIC_NAMESPACE", "AWS_REGION",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// noDotenv points the loader at a file that does not exist.
func noDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.Security.CorsAllowedOrigins)
	assert.Equal(t, "http://localhost:8000", cfg.Prediction.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Suppression.Window)
	assert.Equal(t, 10, cfg.Suppression.SweepFactor)
	assert.Equal(t, "prometheus", cfg.Metrics.Backend)
	assert.Equal(t, "dev", cfg.Build.Version)
}

// TestLoadConfig_MissingProviderCredentials verifies that the bridge still
// starts without SMS credentials.
func TestLoadConfig_MissingProviderCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(noDotenv(t))
	require.NoError(t, err)
	assert.False(t, cfg.SMS.Configured())
	assert.Empty(t, cfg.SMS.DefaultRecipient)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("PREDICT_BASE_URL", "https://predict.example/")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_MESSAGING_SERVICE_SID", "MG123")
	t.Setenv("ALERT_DEFAULT_PHONE", " +15550001111 ")
	t.Setenv("SUPPRESSION_WINDOW", "2m")

	cfg, err := LoadConfig(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CorsAllowedOrigins)
	assert.Equal(t, "https://predict.example", cfg.Prediction.BaseURL)
	assert.True(t, cfg.SMS.Configured())
	assert.Equal(t, "AC123", cfg.SMS.AccountSID.Unmask())
	assert.Equal(t, "+15550001111", cfg.SMS.DefaultRecipient)
	assert.Equal(t, 2*time.Minute, cfg.Suppression.Window)
}

func TestLoadConfig_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7070")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=6060\nALERT_DEFAULT_PHONE=+15559998888\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ALERT_DEFAULT_PHONE") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "+15559998888", cfg.SMS.DefaultRecipient)
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRICS_BACKEND", "statsd")

	_, err := LoadConfig(noDotenv(t))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_ParsingFailure(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPPRESSION_WINDOW", "ninety seconds")

	_, err := LoadConfig(noDotenv(t))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
}
