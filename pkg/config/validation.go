package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules checks the backend option maps, which struct tags
// cannot reach.
func validateCustomRules(cfg *Config) error {
	switch cfg.Metadata.Type {
	case "badger":
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		if !inMemory && isEmpty(cfg.Metadata.Badger["db_path"]) {
			return fmt.Errorf("metadata.badger: db_path is required unless in_memory is set")
		}
	case "sql":
		switch cfg.Metadata.SQL["dialect"] {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("metadata.sql: dialect must be one of sqlite, postgres, mysql (got %v)", cfg.Metadata.SQL["dialect"])
		}
		if isEmpty(cfg.Metadata.SQL["dsn"]) {
			return fmt.Errorf("metadata.sql: dsn is required")
		}
	}

	switch cfg.Content.Type {
	case "filesystem":
		if isEmpty(cfg.Content.Filesystem["path"]) {
			return fmt.Errorf("content.filesystem: path is required")
		}
	case "s3":
		if isEmpty(cfg.Content.S3["bucket"]) {
			return fmt.Errorf("content.s3: bucket is required")
		}
		if isEmpty(cfg.Content.S3["region"]) {
			return fmt.Errorf("content.s3: region is required")
		}
	}

	if cfg.GC.Enabled && cfg.GC.Interval <= 0 {
		return fmt.Errorf("gc: interval must be positive when enabled")
	}
	if cfg.Retention.Enabled && cfg.Retention.Interval <= 0 {
		return fmt.Errorf("retention: interval must be positive when enabled")
	}

	return nil
}

func isEmpty(v any) bool {
	s, ok := v.(string)
	return !ok || s == ""
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
