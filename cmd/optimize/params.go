// Package main provides CMA-ES optimization for trail and emitter parameters.
package main

import (
	"fmt"

	"github.com/pthm-cable/physarum/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters. Emitter
// parameters apply to the emitter named Emitter.
type ParamVector struct {
	Specs   []ParamSpec
	Emitter string
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector(emitter string) *ParamVector {
	return &ParamVector{
		Emitter: emitter,
		Specs: []ParamSpec{
			// Trail
			{Name: "decay", Path: "trail.decay", Min: 0.002, Max: 0.2, Default: 0.02},
			{Name: "diffusion", Path: "trail.diffusion", Min: 0.0, Max: 1.0, Default: 0.5},
			{Name: "repulsion", Path: "trail.repulsion", Min: 0.0, Max: 1.0, Default: 0.0},
			// Emitter steering
			{Name: "sensor_angle", Path: "emitters[].sensor_angle", Min: 5, Max: 90, Default: 45},
			{Name: "rotation_angle", Path: "emitters[].rotation_angle", Min: 5, Max: 90, Default: 45},
			{Name: "sensor_offset", Path: "emitters[].sensor_offset", Min: 0.002, Max: 0.05, Default: 0.01},
			{Name: "step_size", Path: "emitters[].step_size", Min: 0.01, Max: 0.2, Default: 0.06},
			{Name: "deposit_amount", Path: "emitters[].deposit_amount", Min: 0.02, Max: 1.0, Default: 0.25},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct. Order must
// match Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	idx, ok := cfg.Derived.EmitterIndex[pv.Emitter]
	if !ok {
		return fmt.Errorf("%w: no emitter %q to tune", config.ErrInvalidConfig, pv.Emitter)
	}
	c := pv.Clamp(values)

	cfg.Trail.Decay = c[0]
	cfg.Trail.Diffusion = c[1]
	cfg.Trail.Repulsion = c[2]

	em := &cfg.Emitters[idx]
	em.SensorAngle = float32(c[3])
	em.RotationAngle = float32(c[4])
	em.SensorOffset = float32(c[5])
	em.StepSize = float32(c[6])
	em.DepositAmount = float32(c[7])
	return nil
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) ([]float64, error) {
	idx, ok := cfg.Derived.EmitterIndex[pv.Emitter]
	if !ok {
		return nil, fmt.Errorf("%w: no emitter %q to tune", config.ErrInvalidConfig, pv.Emitter)
	}
	em := cfg.Emitters[idx]
	return []float64{
		cfg.Trail.Decay,
		cfg.Trail.Diffusion,
		cfg.Trail.Repulsion,
		float64(em.SensorAngle),
		float64(em.RotationAngle),
		float64(em.SensorOffset),
		float64(em.StepSize),
		float64(em.DepositAmount),
	}, nil
}
