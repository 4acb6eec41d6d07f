package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	// AppName names the per-user application directory.
	AppName = "AskForge-AI"

	// DefaultHotkey is used when the config file does not name one.
	DefaultHotkey = "ctrl+k"
)

// Config represents the client configuration file.
//
// The first three fields are shared with older installs and must round-trip
// unchanged; the rest are optional and omitted when unset.
type Config struct {
	APIURL    string `json:"api_url"`
	Hotkey    string `json:"hotkey"`
	CreatedAt string `json:"created_at"`

	WindowWidth  int    `json:"window_width,omitempty"`
	WindowHeight int    `json:"window_height,omitempty"`
	HistoryDB    string `json:"history_db,omitempty"`
	DisableTray  bool   `json:"disable_tray,omitempty"`
}

// NewConfig returns a config for apiURL stamped with the current time.
func NewConfig(apiURL string) *Config {
	cfg := &Config{
		APIURL:    apiURL,
		Hotkey:    DefaultHotkey,
		CreatedAt: time.Now().Format("2006-01-02T15:04:05.000000"),
	}
	cfg.Normalize()
	return cfg
}

// Normalize trims the API URL and fills defaults.
func (c *Config) Normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.Hotkey = strings.TrimSpace(c.Hotkey)
	if c.Hotkey == "" {
		c.Hotkey = DefaultHotkey
	}
}

// HistoryDBPath returns the local history database location.
func (c *Config) HistoryDBPath() string {
	if c.HistoryDB != "" {
		return expandPath(c.HistoryDB)
	}
	return filepath.Join(AppDir(), "history.db")
}

// LoadConfig loads configuration from file. Comments and trailing commas are
// tolerated so the file can be edited by hand.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfigIfExists returns (nil, nil) when the file is absent, which is the
// first-run case.
func LoadConfigIfExists(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

// AppDir returns the per-user directory holding config, credentials, logs
// and the history database.
func AppDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", AppName)
	}
	return filepath.Join(configDir, AppName)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(AppDir(), "config.json")
}
