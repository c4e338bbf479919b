package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads and validates the process configuration.
//
// Sequence:
//  1. Enforce UTC as the process default timezone; schedule arithmetic uses
//     explicit user timezones, never the host zone.
//  2. Load a .env file if present (non-fatal when absent; never overrides
//     values already set in the environment).
//  3. Process envconfig struct tags into the Config struct.
//  4. Validate the populated struct.
func Load() (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate runs struct-tag validation and renders failures as one
// field-per-line diagnostic so startup logs pinpoint the broken variable.
func validate(cfg *Config) error {
	v := validator.New()
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msg := "invalid configuration:"
	for _, fe := range verrs {
		msg += fmt.Sprintf(" %s (rule %q);", fe.Namespace(), fe.Tag())
	}
	return errors.New(msg)
}
