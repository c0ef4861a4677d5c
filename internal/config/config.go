// Package config defines the configuration of the impact alert bridge.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Missing SMS provider credentials are not an error: the bridge starts and
// every dispatch fails with sms_provider_not_configured instead.
package config

import (
	"time"

	"impactalert/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import the types package for credential fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server      ServerConfig
	Security    SecurityConfig
	Prediction  PredictionConfig
	SMS         SMSConfig
	Suppression SuppressionConfig
	Metrics     MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
}

// SecurityConfig holds the browser-facing boundary settings shared by the
// HTTP API and the WebSocket endpoint.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
}

// PredictionConfig locates the external hazard prediction service.
type PredictionConfig struct {
	BaseURL string        `envconfig:"PREDICT_BASE_URL" default:"http://localhost:8000" validate:"required,url"`
	Timeout time.Duration `envconfig:"PREDICT_TIMEOUT" default:"15s" validate:"gt=0"`
}

// SMSConfig holds the messaging provider identity and the default recipient.
type SMSConfig struct {
	AccountSID          SecretString  `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken           SecretString  `envconfig:"TWILIO_AUTH_TOKEN"`
	MessagingServiceSID string        `envconfig:"TWILIO_MESSAGING_SERVICE_SID"`
	BaseURL             string        `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com" validate:"required,url"`
	Timeout             time.Duration `envconfig:"SMS_TIMEOUT" default:"10s" validate:"gt=0"`
	DefaultRecipient    string        `envconfig:"ALERT_DEFAULT_PHONE"`
}

// Configured reports whether every provider credential is present.
func (c SMSConfig) Configured() bool {
	return c.AccountSID.IsSet() && c.AuthToken.IsSet() && c.MessagingServiceSID != ""
}

// SuppressionConfig tunes the duplicate-notification window.
type SuppressionConfig struct {
	Window      time.Duration `envconfig:"SUPPRESSION_WINDOW" default:"90s" validate:"gt=0"`
	SweepFactor int           `envconfig:"SUPPRESSION_SWEEP_FACTOR" default:"10" validate:"min=1"`
}

// MetricsConfig selects where request and dispatch metrics go.
type MetricsConfig struct {
	Backend   string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"ImpactAlert"`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
