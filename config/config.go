// Package config holds the frontend settings stored in config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName       = "retrobridge"
	configFile    = "config.json"
	screenshotDir = "screenshots"
)

// Config is the on-disk settings document.
type Config struct {
	Version       int         `json:"version"`
	CorePath      string      `json:"corePath,omitempty"` // shared library to load when -core is not given
	RDBPath       string      `json:"rdbPath,omitempty"`
	ScreenshotDir string      `json:"screenshotDir,omitempty"` // empty means <data dir>/screenshots
	Video         VideoConfig `json:"video"`
	Audio         AudioConfig `json:"audio"`
	Input         InputConfig `json:"input"`
}

// VideoConfig sizes the window and the bridge frame buffer.
type VideoConfig struct {
	Scale     int `json:"scale"` // window scale, 1-8
	MaxWidth  int `json:"maxWidth"`
	MaxHeight int `json:"maxHeight"`
}

// AudioConfig contains audio output settings.
type AudioConfig struct {
	Enabled bool    `json:"enabled"`
	Volume  float64 `json:"volume"` // 0.0-2.0
	Batch   bool    `json:"batch"`  // deliver core batches whole instead of per sample
}

// InputConfig holds binding overrides by button name ("A", "Start", "Up", ...).
// Nil maps mean the host defaults.
type InputConfig struct {
	Keyboard   map[string]string `json:"keyboard,omitempty"` // button name -> ebiten key name
	Gamepad    map[string]string `json:"gamepad,omitempty"`  // button name -> standard pad button name
	AnalogDpad bool              `json:"analogDpad"`         // left stick mirrors the d-pad
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Video: VideoConfig{
			Scale:     3,
			MaxWidth:  256,
			MaxHeight: 240,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  1.0,
		},
		Input: InputConfig{
			AnalogDpad: true,
		},
	}
}

// GetBaseDir returns the per-OS data directory:
// - macOS: ~/Library/Application Support/retrobridge
// - Linux: $XDG_DATA_HOME/retrobridge or ~/.local/share/retrobridge
// - Windows: %APPDATA%/retrobridge
func GetBaseDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, appName), nil
	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// DefaultPath returns the full path to config.json.
func DefaultPath() (string, error) {
	baseDir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, configFile), nil
}

// ScreenshotPath returns the directory screenshots are written to.
func (c *Config) ScreenshotPath() (string, error) {
	if c.ScreenshotDir != "" {
		return c.ScreenshotDir, nil
	}
	baseDir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, screenshotDir), nil
}

// Load reads the configuration at path.
// A missing file yields defaults and a corrupt file is an error. Keys absent
// from the file are defaulted while present zero values are kept.
func Load(path string) (*Config, error) {
	jsonBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	applyMissingDefaults(cfg, detectPresentKeys(jsonBytes))
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	return atomicWriteJSON(path, cfg)
}

// atomicWriteJSON writes to a temporary file in the same directory and
// renames it over path so the file is never partially written.
func atomicWriteJSON(path string, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
