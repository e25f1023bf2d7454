// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storm

import (
	"fmt"
	"time"
)

// Level selects a mitigation preset. The set is closed; there is no
// free-form tuning surface at the session API.
type Level string

const (
	// LevelAggressive trips early and fuses eagerly. For callers running
	// many untrusted or bursty sessions.
	LevelAggressive Level = "aggressive"

	// LevelDefault is the balanced preset.
	LevelDefault Level = "default"

	// LevelLenient tolerates long failure runs and fuses only
	// near-identical triggers. For trusted, low-volume callers.
	LevelLenient Level = "lenient"

	// LevelDisabled passes every check unconditionally. Development only.
	LevelDisabled Level = "disabled"
)

// ParseLevel validates a level name. An empty name maps to LevelDefault.
func ParseLevel(name string) (Level, error) {
	switch Level(name) {
	case LevelAggressive, LevelDefault, LevelLenient, LevelDisabled:
		return Level(name), nil
	case "":
		return LevelDefault, nil
	default:
		return "", fmt.Errorf("unknown storm level %q", name)
	}
}

// Config holds the tuning knobs behind a preset.
type Config struct {
	RateCapacity     int
	RefillRate       float64 // tokens per second
	FailureThreshold int
	ResetTimeout     time.Duration
	FusionCapacity   int
	FusionThreshold  float64
	FusionWindow     time.Duration
	Disabled         bool
}

// PresetConfig maps a level to its tuning values.
//
// Aggressive: tight limiter, a two-failure trip wire, and a low fusion
// threshold so loosely similar triggers collapse. Lenient is the inverse.
func PresetConfig(level Level) Config {
	switch level {
	case LevelAggressive:
		return Config{
			RateCapacity:     5,
			RefillRate:       0.5,
			FailureThreshold: 2,
			ResetTimeout:     10 * time.Second,
			FusionCapacity:   16,
			FusionThreshold:  0.5,
			FusionWindow:     2 * time.Second,
		}
	case LevelLenient:
		return Config{
			RateCapacity:     100,
			RefillRate:       10,
			FailureThreshold: 10,
			ResetTimeout:     60 * time.Second,
			FusionCapacity:   32,
			FusionThreshold:  0.9,
			FusionWindow:     10 * time.Second,
		}
	case LevelDisabled:
		return Config{Disabled: true}
	default:
		return Config{
			RateCapacity:     20,
			RefillRate:       2,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			FusionCapacity:   32,
			FusionThreshold:  0.7,
			FusionWindow:     5 * time.Second,
		}
	}
}
