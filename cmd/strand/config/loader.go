// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config location.
const DefaultPath = "~/.strand/strand.yaml"

var validate = validator.New()

// Load reads the configuration at path, layered over Default(). An empty
// path means DefaultPath; a missing file at the default location is not
// an error and yields the defaults.
//
// # Outputs
//
//   - Config: validated configuration.
//   - error: read, parse, or validation failure.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	resolved := ExpandPath(path)

	cfg := Default()
	raw, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No file at the default location; defaults plus env apply.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", resolved, err)
	}
	applyEnv(&cfg)
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return cfg, nil
}

// applyEnv layers environment overrides on top of file values. Env wins
// so containerized deployments can adjust a baked-in config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STRAND_LISTEN_ADDR"); v != "" {
		cfg.Service.ListenAddr = v
	}
	if v := os.Getenv("STRAND_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STRAND_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("STRAND_STORM_LEVEL"); v != "" {
		cfg.Engine.StormLevel = v
	}
	if v := os.Getenv("STRAND_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
}

// CreateDefaultIfMissing writes Default() to DefaultPath on first run.
//
// # Outputs
//
//   - string: the resolved config path.
//   - bool: true if the file was created by this call.
//   - error: stat, mkdir, or write failure.
func CreateDefaultIfMissing() (string, bool, error) {
	path := ExpandPath(DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return path, false, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return path, false, fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return path, false, fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return path, false, fmt.Errorf("write default config: %w", err)
	}
	return path, true, nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
