package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/retention"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// Backend-specific defaults beyond the ones below are applied by the store
// constructors themselves.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyDriveDefaults(&cfg.Drive)
	applyGCDefaults(cfg)
	applyRetentionDefaults(&cfg.Retention)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQL == nil {
		cfg.SQL = make(map[string]any)
	}

	// Defaults for every backend, so generated config files are complete
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittodrive-metadata"
	}
	if _, ok := cfg.SQL["dialect"]; !ok {
		cfg.SQL["dialect"] = "sqlite"
	}
	if _, ok := cfg.SQL["dsn"]; !ok {
		cfg.SQL["dsn"] = "/tmp/dittodrive-metadata.db"
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittodrive-content"
	}
}

func applyDriveDefaults(cfg *DriveConfig) {
	if cfg.DefaultQuota == 0 {
		cfg.DefaultQuota = metadata.DefaultStorageQuota
	}
	if cfg.MinSearchLength == 0 {
		cfg.MinSearchLength = hierarchy.DefaultMinSearchLength
	}
}

func applyGCDefaults(cfg *Config) {
	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = 24 * time.Hour
	}
	if cfg.GC.BatchSize == 0 {
		cfg.GC.BatchSize = 1000
	}
	if cfg.GC.GracePeriod == 0 {
		cfg.GC.GracePeriod = time.Hour
	}
}

func applyRetentionDefaults(cfg *retention.Config) {
	if cfg.Interval == 0 {
		cfg.Interval = retention.DefaultInterval
	}
	if cfg.NotificationMaxAge == 0 {
		cfg.NotificationMaxAge = retention.DefaultNotificationMaxAge
	}
	if cfg.AuditMaxAge == 0 {
		cfg.AuditMaxAge = retention.DefaultAuditMaxAge
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// The background workers are enabled here, unlike a bare ApplyDefaults, so
// generated config files start with a sensible daemon setup.
func GetDefaultConfig() *Config {
	cfg := &Config{
		GC:        gc.Config{Enabled: true},
		Retention: retention.Config{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
