package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateStoreBackend(); err != nil {
		return err
	}
	return c.validateDurations()
}

// validateStoreBackend checks the backend-specific required fields.
func (c *Config) validateStoreBackend() error {
	switch c.Store.Backend {
	case "postgres":
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			return errors.New("store: postgres_dsn is required when backend is postgres")
		}
	case "sqlite":
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store: sqlite_path is required when backend is sqlite")
		}
	}
	return nil
}

// validateDurations parses every duration-typed string field so a typo fails
// at startup instead of at first use.
func (c *Config) validateDurations() error {
	fields := map[string]string{
		"server.shutdown_timeout":      c.Server.ShutdownTimeout,
		"overrides.consumption_window": c.Overrides.ConsumptionWindow,
		"notify.send_timeout":          c.Notify.SendTimeout,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}
	return nil
}

// ConsumptionWindowDuration returns the parsed consumption window. Call only
// after Validate.
func (c *Config) ConsumptionWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.Overrides.ConsumptionWindow)
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout. Call only
// after Validate.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// SendTimeoutDuration returns the parsed notification send timeout. Call
// only after Validate.
func (c *Config) SendTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Notify.SendTimeout)
	return d
}

// formatValidationErrors converts validator.ValidationErrors to actionable
// messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
