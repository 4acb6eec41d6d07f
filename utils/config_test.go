package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := &Config{
		APIURL:    "http://h:3000",
		Hotkey:    "ctrl+k",
		CreatedAt: "2024-05-01T10:00:00.000000",
	}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfigFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(path, &Config{APIURL: "http://h:3000", Hotkey: "ctrl+k", CreatedAt: "x"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_url":"http://h:3000","hotkey":"ctrl+k","created_at":"x"}`, string(data))
}

func TestLoadConfigToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  // server address
  "api_url": "http://10.0.0.5:3000",
  "hotkey": "ctrl+shift+k", /* global */
  "created_at": "2024-01-01T00:00:00",
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	if cfg.APIURL != "http://10.0.0.5:3000" {
		t.Errorf("Expected api_url http://10.0.0.5:3000, got %q", cfg.APIURL)
	}
	if cfg.Hotkey != "ctrl+shift+k" {
		t.Errorf("Expected hotkey ctrl+shift+k, got %q", cfg.Hotkey)
	}
}

func TestLoadConfigIfExistsMissing(t *testing.T) {
	cfg, err := LoadConfigIfExists(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{APIURL: "  http://host:3000/// "}
	cfg.Normalize()

	assert.Equal(t, "http://host:3000", cfg.APIURL)
	assert.Equal(t, DefaultHotkey, cfg.Hotkey)
}

func TestNewConfigStampsCreatedAt(t *testing.T) {
	cfg := NewConfig("http://host/")
	assert.Equal(t, "http://host", cfg.APIURL)
	assert.Equal(t, "ctrl+k", cfg.Hotkey)
	assert.NotEmpty(t, cfg.CreatedAt)
}

func TestHistoryDBPath(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, filepath.Join(AppDir(), "history.db"), cfg.HistoryDBPath())

	cfg.HistoryDB = "relative/history.db"
	assert.True(t, filepath.IsAbs(cfg.HistoryDBPath()))
}
