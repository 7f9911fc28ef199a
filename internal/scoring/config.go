// Package scoring compares two pose sequences and produces a similarity score
// with a per-frame breakdown.
//
// Each frame is normalized (centering, scaling, optional rotation), the two
// sequences are aligned by linear resampling, every aligned pair is scored on
// landmark positions and joint angles, and the pair scores are aggregated with
// a timing score into a ScoringResult.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const weightTolerance = 1e-6

// Default visibility threshold applied when no config is supplied.
const DefaultVisibilityThreshold = 0.5

type Normalization struct {
	Center   bool `json:"center"`
	Scale    bool `json:"scale"`
	Rotation bool `json:"rotation"`
}

// Config selects how two sequences are compared. The zero value is invalid;
// use DefaultConfig or a preset.
type Config struct {
	Normalization       Normalization `json:"normalization"`
	PositionWeight      float64       `json:"positionWeight"`
	AngularWeight       float64       `json:"angularWeight"`
	VisibilityThreshold float64       `json:"visibilityThreshold"`
}

func DefaultConfig() Config {
	return Config{
		Normalization:       Normalization{Center: true, Scale: true},
		PositionWeight:      0.5,
		AngularWeight:       0.5,
		VisibilityThreshold: DefaultVisibilityThreshold,
	}
}

// UnmarshalJSON starts from DefaultConfig, so omitted fields keep their
// defaults instead of zeroing normalization and the visibility threshold.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	p := plain(DefaultConfig())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// Validate rejects configs whose weights do not sum to one.
func (c Config) Validate() error {
	if c.PositionWeight < 0 || c.PositionWeight > 1 || c.AngularWeight < 0 || c.AngularWeight > 1 {
		return fmt.Errorf("%w: weights must be within [0,1]", ErrInvalidInput)
	}
	if math.Abs(c.PositionWeight+c.AngularWeight-1) > weightTolerance {
		return fmt.Errorf("%w: positionWeight + angularWeight = %g, want 1", ErrInvalidInput, c.PositionWeight+c.AngularWeight)
	}
	if math.IsNaN(c.VisibilityThreshold) || c.VisibilityThreshold < 0 || c.VisibilityThreshold > 1 {
		return fmt.Errorf("%w: visibilityThreshold must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

// Preset names a fixed comparison config.
type Preset string

const (
	PresetDance  Preset = "dance"
	PresetYoga   Preset = "yoga"
	PresetSports Preset = "sports"
)

var presets = map[Preset]Config{
	PresetDance: {
		Normalization:       Normalization{Center: true, Scale: true},
		PositionWeight:      0.5,
		AngularWeight:       0.5,
		VisibilityThreshold: DefaultVisibilityThreshold,
	},
	PresetYoga: {
		Normalization:       Normalization{Center: true, Scale: true, Rotation: true},
		PositionWeight:      0.4,
		AngularWeight:       0.6,
		VisibilityThreshold: DefaultVisibilityThreshold,
	},
	PresetSports: {
		Normalization:       Normalization{Center: true, Scale: true},
		PositionWeight:      0.7,
		AngularWeight:       0.3,
		VisibilityThreshold: 0.7,
	},
}

// PresetConfig returns the config registered under name.
func PresetConfig(name Preset) (Config, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}

// Presets lists every preset name in a stable order.
func Presets() []Preset {
	names := make([]Preset, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ResolveConfig picks the explicit config if given, then the named preset,
// then the defaults. The result is validated.
func ResolveConfig(preset string, explicit *Config) (Config, error) {
	var cfg Config
	switch {
	case explicit != nil:
		cfg = *explicit
	case preset != "":
		p, ok := PresetConfig(Preset(preset))
		if !ok {
			return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidInput, preset)
		}
		cfg = p
	default:
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
