// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so scheduled send times are rendered consistently.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Normalize list values (trim whitespace, drop empty origins).
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the bridge configuration from the process
// environment, optionally seeded from the given dotenv files (".env" when none
// are named). Variables already present in the environment win over dotenv.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	time.Local = time.UTC

	// godotenv.Load fails when a file is missing; a missing .env is normal.
	if len(dotenvFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range dotenvFiles {
			_ = godotenv.Load(f)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Security.CorsAllowedOrigins = normalizeList(cfg.Security.CorsAllowedOrigins)
	cfg.SMS.DefaultRecipient = strings.TrimSpace(cfg.SMS.DefaultRecipient)
	cfg.Prediction.BaseURL = strings.TrimSuffix(cfg.Prediction.BaseURL, "/")
	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// normalizeList trims each entry and drops empty ones, so that
// "a, b,,c" becomes [a b c].
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
