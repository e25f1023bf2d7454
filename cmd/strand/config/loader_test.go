// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Default location missing: defaults apply without error.
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Service.ListenAddr)
	require.Equal(t, "default", cfg.Engine.StormLevel)
	require.Equal(t, 512, cfg.Reason.ChunkSize)
}

func TestLoad_OverridesLayerOverDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  listen_addr: ":9090"
engine:
  storm_level: aggressive
  max_idle: 10m
reason:
  chunk_size: 256
  carryover_size: 64
  max_iterations: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Service.ListenAddr)
	require.Equal(t, "aggressive", cfg.Engine.StormLevel)
	require.Equal(t, 10*time.Minute, cfg.Engine.MaxIdle.Duration)
	require.Equal(t, 256, cfg.Reason.ChunkSize)
	// Untouched sections keep their defaults.
	require.Equal(t, "ollama", cfg.LLM.Backend)
	require.True(t, cfg.Archive.Enabled)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad storm level", "engine:\n  storm_level: extreme\n"},
		{"carryover exceeds chunk", "reason:\n  chunk_size: 64\n  carryover_size: 64\n  max_iterations: 3\n"},
		{"bad lattice", "reason:\n  chunk_size: 64\n  carryover_size: 8\n  max_iterations: 3\n  lattice_type: hexagonal\n"},
		{"malformed yaml", "service: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "service:\n  listen_addr: \":9090\"\n")
	t.Setenv("STRAND_LISTEN_ADDR", ":7070")
	t.Setenv("STRAND_STORM_LEVEL", "lenient")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Service.ListenAddr)
	require.Equal(t, "lenient", cfg.Engine.StormLevel)
}

func TestLoad_EnvValuesAreValidated(t *testing.T) {
	path := writeConfig(t, "service:\n  listen_addr: \":9090\"\n")
	t.Setenv("STRAND_STORM_LEVEL", "extreme")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultConfigRoundTrips(t *testing.T) {
	// A written default config must parse back, durations included.
	data, err := yaml.Marshal(Default())
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	require.Equal(t, Default().Engine.MaxIdle.Duration, cfg.Engine.MaxIdle.Duration)
	require.Equal(t, Default().Engine.SweepInterval.Duration, cfg.Engine.SweepInterval.Duration)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".strand"), ExpandPath("~/.strand"))
	require.Equal(t, "/etc/strand.yaml", ExpandPath("/etc/strand.yaml"))
}
