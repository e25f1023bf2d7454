// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the strand YAML configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration struct {
	time.Duration
}

// MarshalYAML emits the duration in time.Duration string form so a
// written config round-trips through UnmarshalYAML.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the full strand configuration tree.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Logging LoggingConfig `yaml:"logging"`
	LLM     LLMConfig     `yaml:"llm"`
	Engine  EngineConfig  `yaml:"engine"`
	Archive ArchiveConfig `yaml:"archive"`
	Reason  ReasonConfig  `yaml:"reason"`
}

// ServiceConfig covers the HTTP server.
type ServiceConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

// LoggingConfig covers the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir    string `yaml:"dir"`
	JSON   bool   `yaml:"json"`
	Pretty bool   `yaml:"pretty"`
}

// LLMConfig selects and configures the sampling backend.
type LLMConfig struct {
	Backend string `yaml:"backend" validate:"omitempty,oneof=ollama openai"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// EngineConfig covers session lifecycle and storm defaults. Non-positive
// durations fall back to the scheduler defaults.
type EngineConfig struct {
	StormLevel    string   `yaml:"storm_level" validate:"omitempty,oneof=aggressive default lenient disabled"`
	MaxIdle       Duration `yaml:"max_idle"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ArchiveConfig covers the trace archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ReasonConfig holds default reasoning budgets for CLI sessions. The
// carryover must stay strictly below the chunk budget.
type ReasonConfig struct {
	ChunkSize     int    `yaml:"chunk_size" validate:"required,gt=0"`
	CarryoverSize int    `yaml:"carryover_size" validate:"gte=0,ltfield=ChunkSize"`
	MaxIterations int    `yaml:"max_iterations" validate:"required,gte=1"`
	GoalSignal    string `yaml:"goal_signal"`
	LatticeType   string `yaml:"lattice_type" validate:"omitempty,oneof=hypercubic close_packing e8 leech"`
	LatticeDim    int    `yaml:"lattice_dimension" validate:"gte=0"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Service: ServiceConfig{ListenAddr: ":8080"},
		Logging: LoggingConfig{Level: "info", Pretty: true},
		LLM:     LLMConfig{Backend: "ollama", BaseURL: "http://localhost:11434"},
		Engine: EngineConfig{
			StormLevel:    "default",
			MaxIdle:       Duration{30 * time.Minute},
			SweepInterval: Duration{time.Minute},
		},
		Archive: ArchiveConfig{Enabled: true, Path: "~/.strand/archive"},
		Reason: ReasonConfig{
			ChunkSize:     512,
			CarryoverSize: 128,
			MaxIterations: 25,
			GoalSignal:    "QED",
		},
	}
}
