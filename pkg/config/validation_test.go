package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_StructRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"metrics port", func(c *Config) { c.Server.Metrics.Port = 70000 }, "Port"},
		{"metadata type", func(c *Config) { c.Metadata.Type = "etcd" }, "Metadata.Type"},
		{"content type", func(c *Config) { c.Content.Type = "ftp" }, "Content.Type"},
		{"negative quota", func(c *Config) { c.Drive.DefaultQuota = -1 }, "DefaultQuota"},
		{"search length", func(c *Config) { c.Drive.MinSearchLength = 0 }, "MinSearchLength"},
		{"gc batch", func(c *Config) { c.GC.BatchSize = 5000 }, "BatchSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_BackendOptions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "badger without path",
			mutate: func(c *Config) {
				c.Metadata.Type = "badger"
				c.Metadata.Badger = map[string]any{}
			},
			wantErr: "db_path",
		},
		{
			name: "badger in memory",
			mutate: func(c *Config) {
				c.Metadata.Type = "badger"
				c.Metadata.Badger = map[string]any{"in_memory": true}
			},
		},
		{
			name: "sql unknown dialect",
			mutate: func(c *Config) {
				c.Metadata.Type = "sql"
				c.Metadata.SQL = map[string]any{"dialect": "oracle", "dsn": "x"}
			},
			wantErr: "dialect",
		},
		{
			name: "sql without dsn",
			mutate: func(c *Config) {
				c.Metadata.Type = "sql"
				c.Metadata.SQL = map[string]any{"dialect": "mysql"}
			},
			wantErr: "dsn",
		},
		{
			name: "filesystem without path",
			mutate: func(c *Config) {
				c.Content.Filesystem = map[string]any{}
			},
			wantErr: "path",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Content.Type = "s3"
				c.Content.S3 = map[string]any{"region": "us-east-1"}
			},
			wantErr: "bucket",
		},
		{
			name: "s3 without region",
			mutate: func(c *Config) {
				c.Content.Type = "s3"
				c.Content.S3 = map[string]any{"bucket": "drive"}
			},
			wantErr: "region",
		},
		{
			name: "s3 complete",
			mutate: func(c *Config) {
				c.Content.Type = "s3"
				c.Content.S3 = map[string]any{"bucket": "drive", "region": "us-east-1"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
