package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
)

type inspectConfig struct {
	// PreviewBytes caps the body hex preview; 0 disables the preview.
	PreviewBytes int
	// ShowOrigin includes descriptor origin hints in the listing.
	ShowOrigin bool
}

type fileConfig struct {
	PreviewBytes int    `toml:"preview_bytes"`
	ShowOrigin   bool   `toml:"show_origin"`
	LogLevel     string `toml:"log_level"`
}

func defaultInspectConfig() inspectConfig {
	return inspectConfig{PreviewBytes: 0, ShowOrigin: true}
}

// loadInspectConfig reads the optional tool config. A missing file
// yields defaults.
func loadInspectConfig(path string) (inspectConfig, string, error) {
	cfg := defaultInspectConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, "", nil
		}
		return inspectConfig{}, "", fmt.Errorf("load scopectl config: %w", err)
	}

	if meta.IsDefined("preview_bytes") {
		if raw.PreviewBytes < 0 {
			return inspectConfig{}, "", fmt.Errorf("load scopectl config: negative preview_bytes")
		}
		cfg.PreviewBytes = raw.PreviewBytes
	}
	if meta.IsDefined("show_origin") {
		cfg.ShowOrigin = raw.ShowOrigin
	}

	return cfg, strings.TrimSpace(raw.LogLevel), nil
}
