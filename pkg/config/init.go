package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `DittoDrive Configuration File

Every value below is a default. Environment variables override file values
using the DITTODRIVE_ prefix, e.g. DITTODRIVE_LOGGING_LEVEL=DEBUG.`

// sectionComments are written above each top-level key.
var sectionComments = map[string]string{
	"logging":   "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, file path)",
	"server":    "Graceful shutdown deadline and the Prometheus endpoint (/metrics, /healthz)",
	"metadata":  "Metadata store: memory, badger or sql (sqlite, postgres, mysql)",
	"content":   "Payload store: memory, filesystem or s3",
	"drive":     "Default quota in bytes for new accounts and engine tuning",
	"gc":        "Orphan payload collector",
	"retention": "Age-based pruning of notifications and audit entries",
}

// sectionOrder fixes the order of top-level keys in generated files.
var sectionOrder = []string{"logging", "server", "metadata", "content", "drive", "gc", "retention"}

// InitConfig writes a default config file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default config file to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := GenerateDefaultYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefaultYAML renders GetDefaultConfig as a commented YAML document.
func GenerateDefaultYAML() ([]byte, error) {
	sections := defaultSections(GetDefaultConfig())

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range sectionOrder {
		var value yaml.Node
		if err := value.Encode(sections[name]); err != nil {
			return nil, fmt.Errorf("failed to encode %s section: %w", name, err)
		}
		key := &yaml.Node{
			Kind:        yaml.ScalarNode,
			Value:       name,
			HeadComment: sectionComments[name],
		}
		root.Content = append(root.Content, key, &value)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, HeadComment: configHeader, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// defaultSections mirrors cfg with durations as strings, the form viper
// reads back.
func defaultSections(cfg *Config) map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
		"server": map[string]any{
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
			"metrics": map[string]any{
				"enabled": cfg.Server.Metrics.Enabled,
				"port":    cfg.Server.Metrics.Port,
			},
		},
		"metadata": map[string]any{
			"type":   cfg.Metadata.Type,
			"badger": cfg.Metadata.Badger,
			"sql":    cfg.Metadata.SQL,
		},
		"content": map[string]any{
			"type":       cfg.Content.Type,
			"filesystem": cfg.Content.Filesystem,
			"s3": map[string]any{
				"region":     "us-east-1",
				"bucket":     "",
				"key_prefix": "payloads/",
			},
		},
		"drive": map[string]any{
			"default_quota":              cfg.Drive.DefaultQuota,
			"notify_on_upload":           cfg.Drive.NotifyOnUpload,
			"min_search_length":          cfg.Drive.MinSearchLength,
			"account_deletes_per_second": cfg.Drive.AccountDeletesPerSecond,
		},
		"gc": map[string]any{
			"enabled":            cfg.GC.Enabled,
			"interval":           cfg.GC.Interval.String(),
			"batch_size":         cfg.GC.BatchSize,
			"dry_run":            cfg.GC.DryRun,
			"deletes_per_second": cfg.GC.DeletesPerSecond,
			"grace_period":       cfg.GC.GracePeriod.String(),
		},
		"retention": map[string]any{
			"enabled":              cfg.Retention.Enabled,
			"interval":             cfg.Retention.Interval.String(),
			"notification_max_age": cfg.Retention.NotificationMaxAge.String(),
			"audit_max_age":        cfg.Retention.AuditMaxAge.String(),
		},
	}
}
