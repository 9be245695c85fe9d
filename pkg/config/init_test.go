package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != filepath.Join(tmpDir, "dittodrive", "config.yaml") {
		t.Errorf("Unexpected config path: %s", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DittoDrive Configuration File",
		"logging:",
		"server:",
		"metadata:",
		"content:",
		"drive:",
		"gc:",
		"retention:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Unexpected error: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Errorf("Expected --force to overwrite, got: %v", err)
	}
}

func TestInitConfigToPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	if !cfg.GC.Enabled || cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Unexpected gc section: %+v", cfg.GC)
	}
	if !cfg.Retention.Enabled || cfg.Retention.AuditMaxAge != 2160*time.Hour {
		t.Errorf("Unexpected retention section: %+v", cfg.Retention)
	}
	if cfg.Drive.DefaultQuota != 104857600 {
		t.Errorf("Expected default quota 104857600, got %d", cfg.Drive.DefaultQuota)
	}
	if cfg.Content.Filesystem["path"] != "/tmp/dittodrive-content" {
		t.Errorf("Unexpected filesystem path: %v", cfg.Content.Filesystem["path"])
	}
}
