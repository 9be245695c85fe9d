package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/retention"
	"github.com/spf13/viper"
)

// Config represents the complete DittoDrive configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODRIVE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The metadata
// and content sections carry one option map per backend and only the map
// matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metadata selects and configures the metadata store
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Content selects and configures the payload store
	Content ContentConfig `mapstructure:"content"`

	// Drive tunes the drive engines
	Drive DriveConfig `mapstructure:"drive"`

	// GC configures the orphan payload collector
	GC gc.Config `mapstructure:"gc"`

	// Retention configures pruning of old notifications and audit entries
	Retention retention.Config `mapstructure:"retention"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the /metrics endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port of the metrics server (default: 9090)
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// MetadataConfig specifies metadata store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, sql
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sql"`

	// Memory contains memory-specific configuration (Type = "memory")
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration (Type = "badger")
	Badger map[string]any `mapstructure:"badger"`

	// SQL contains gorm-specific configuration (Type = "sql")
	SQL map[string]any `mapstructure:"sql"`
}

// ContentConfig specifies payload store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific configuration (Type = "filesystem")
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration (Type = "memory")
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration (Type = "s3")
	S3 map[string]any `mapstructure:"s3"`
}

// DriveConfig tunes the drive engines.
type DriveConfig struct {
	// DefaultQuota is the byte quota of newly registered accounts
	DefaultQuota int64 `mapstructure:"default_quota" validate:"gte=0"`

	// NotifyOnUpload emits an upload_complete notification after each upload
	NotifyOnUpload bool `mapstructure:"notify_on_upload"`

	// MinSearchLength is the shortest accepted name search query
	MinSearchLength int `mapstructure:"min_search_length" validate:"gte=1"`

	// AccountDeletesPerSecond paces payload removal when an account is
	// deleted (0 = unlimited)
	AccountDeletesPerSecond uint `mapstructure:"account_deletes_per_second"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error; defaults are used instead.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTODRIVE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment overrides only apply to keys viper knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the scalar settings that can be set from the environment
// without a config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"metadata.type",
	"content.type",
	"drive.default_quota",
	"drive.notify_on_upload",
	"drive.min_search_length",
	"drive.account_deletes_per_second",
	"gc.enabled",
	"gc.interval",
	"gc.batch_size",
	"gc.dry_run",
	"gc.deletes_per_second",
	"gc.grace_period",
	"retention.enabled",
	"retention.interval",
	"retention.notification_max_age",
	"retention.audit_max_age",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/dittodrive, ~/.config/dittodrive,
// or "." when the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodrive")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
