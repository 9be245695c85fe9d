package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestConfigure_TextFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.log")
	require.NoError(t, Configure(Config{Level: "INFO", Format: "text", Output: path}))
	t.Cleanup(func() { _ = Configure(Config{Level: "INFO", Format: "text", Output: "stdout"}) })

	Debug("hidden %d", 1)
	Info("upload stored %s", "a.txt")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "upload stored a.txt")
	assert.NotContains(t, out, "hidden")
}

func TestConfigure_JSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.json")
	require.NoError(t, Configure(Config{Level: "DEBUG", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Configure(Config{Level: "INFO", Format: "text", Output: "stdout"}) })

	assert.Equal(t, LevelDebug, CurrentLevel())
	Warn("payload delete failed: %s", "ref-1")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "payload delete failed: ref-1", entry["msg"])
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	SetLevel("ERROR")
	SetLevel("nonsense")
	assert.Equal(t, LevelError, CurrentLevel())
	SetLevel("INFO")
}
