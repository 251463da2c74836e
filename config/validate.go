package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// defaultedKeys are the dotted paths whose absence from the file is
// filled from DefaultConfig. Maps and optional strings are left alone.
var defaultedKeys = []string{
	"version",
	"video.scale",
	"video.maxWidth",
	"video.maxHeight",
	"audio.enabled",
	"audio.volume",
	"input.analogDpad",
}

// Limits checked by Validate.
const (
	MinScale     = 1
	MaxScale     = 8
	MaxDimension = 4096
	MaxVolume    = 2.0
)

// detectPresentKeys returns the set of defaultedKeys present in jsonBytes.
func detectPresentKeys(jsonBytes []byte) map[string]bool {
	present := make(map[string]bool)

	var root map[string]json.RawMessage
	if err := json.Unmarshal(jsonBytes, &root); err != nil {
		return present
	}

	for _, key := range defaultedKeys {
		parent, child, nested := strings.Cut(key, ".")
		raw, ok := root[parent]
		if !ok {
			continue
		}
		if !nested {
			present[key] = true
			continue
		}
		var section map[string]json.RawMessage
		if json.Unmarshal(raw, &section) != nil {
			continue
		}
		if _, ok := section[child]; ok {
			present[key] = true
		}
	}
	return present
}

func applyMissingDefaults(cfg *Config, present map[string]bool) {
	defaults := DefaultConfig()

	if !present["version"] {
		cfg.Version = defaults.Version
	}
	if !present["video.scale"] {
		cfg.Video.Scale = defaults.Video.Scale
	}
	if !present["video.maxWidth"] {
		cfg.Video.MaxWidth = defaults.Video.MaxWidth
	}
	if !present["video.maxHeight"] {
		cfg.Video.MaxHeight = defaults.Video.MaxHeight
	}
	if !present["audio.enabled"] {
		cfg.Audio.Enabled = defaults.Audio.Enabled
	}
	if !present["audio.volume"] {
		cfg.Audio.Volume = defaults.Audio.Volume
	}
	if !present["input.analogDpad"] {
		cfg.Input.AnalogDpad = defaults.Input.AnalogDpad
	}
}

// Validate checks every ranged field and returns human-readable problems.
// An empty slice means the config is valid.
func Validate(cfg *Config) []string {
	var problems []string

	if cfg.Version != 1 {
		problems = append(problems, fmt.Sprintf("version: %d (valid: 1)", cfg.Version))
	}
	if cfg.Video.Scale < MinScale || cfg.Video.Scale > MaxScale {
		problems = append(problems, fmt.Sprintf("video.scale: %d (valid: %d-%d)", cfg.Video.Scale, MinScale, MaxScale))
	}
	if cfg.Video.MaxWidth < 1 || cfg.Video.MaxWidth > MaxDimension {
		problems = append(problems, fmt.Sprintf("video.maxWidth: %d (valid: 1-%d)", cfg.Video.MaxWidth, MaxDimension))
	}
	if cfg.Video.MaxHeight < 1 || cfg.Video.MaxHeight > MaxDimension {
		problems = append(problems, fmt.Sprintf("video.maxHeight: %d (valid: 1-%d)", cfg.Video.MaxHeight, MaxDimension))
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > MaxVolume {
		problems = append(problems, fmt.Sprintf("audio.volume: %.2f (valid: 0.0-%.1f)", cfg.Audio.Volume, MaxVolume))
	}
	return problems
}

// Sanitize resets invalid fields to their defaults and keeps valid ones.
func Sanitize(cfg *Config) *Config {
	defaults := DefaultConfig()

	if cfg.Version != 1 {
		cfg.Version = defaults.Version
	}
	if cfg.Video.Scale < MinScale || cfg.Video.Scale > MaxScale {
		cfg.Video.Scale = defaults.Video.Scale
	}
	if cfg.Video.MaxWidth < 1 || cfg.Video.MaxWidth > MaxDimension {
		cfg.Video.MaxWidth = defaults.Video.MaxWidth
	}
	if cfg.Video.MaxHeight < 1 || cfg.Video.MaxHeight > MaxDimension {
		cfg.Video.MaxHeight = defaults.Video.MaxHeight
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > MaxVolume {
		cfg.Audio.Volume = defaults.Audio.Volume
	}
	return cfg
}
