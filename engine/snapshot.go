package engine

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
)

// Params are the engine-wide numeric settings that hosts may change at run
// time with SetParams. Changes take effect at the next tick.
type Params struct {
	Decay             float32
	Diffusion         float32
	Repulsion         float32
	MaxValue          float32
	AdvectionStrength float32
	VelocityDecay     float32
	InfluenceWeight   float32
	FluidDrift        float32

	SynchronizeSensorAndRotation bool
}

// ParamsFromConfig reads Params from a loaded configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	t := cfg.Trail
	return Params{
		Decay:                        float32(t.Decay),
		Diffusion:                    float32(t.Diffusion),
		Repulsion:                    float32(t.Repulsion),
		MaxValue:                     float32(t.MaxValue),
		AdvectionStrength:            float32(t.AdvectionStrength),
		VelocityDecay:                float32(t.VelocityDecay),
		InfluenceWeight:              float32(t.InfluenceWeight),
		FluidDrift:                   float32(t.FluidDrift),
		SynchronizeSensorAndRotation: cfg.Tick.SynchronizeSensorAndRotation,
	}
}

// Validate rejects parameters no tick could run with.
func (p Params) Validate() error {
	switch {
	case p.Decay < 0 || p.Decay > 1:
		return fmt.Errorf("%w: decay %g outside [0,1]", ErrInvalidConfig, p.Decay)
	case p.Diffusion < 0 || p.Diffusion > 1:
		return fmt.Errorf("%w: diffusion %g outside [0,1]", ErrInvalidConfig, p.Diffusion)
	case p.Repulsion < 0:
		return fmt.Errorf("%w: negative repulsion", ErrInvalidConfig)
	case p.MaxValue <= 0:
		return fmt.Errorf("%w: max value %g must be positive", ErrInvalidConfig, p.MaxValue)
	case p.VelocityDecay < 0 || p.VelocityDecay > 1:
		return fmt.Errorf("%w: velocity decay %g outside [0,1]", ErrInvalidConfig, p.VelocityDecay)
	}
	return nil
}

// TickInput is what the host supplies every tick.
type TickInput struct {
	DT       float32
	Substeps int

	Gravity           mgl32.Vec2 // direction scaled by strength; tilts diffusion
	DirectionBias     mgl32.Vec2 // added to every sensor as dot(sensorDir, bias)
	StimuliIntensity  float32
	StimuliColorBlend bool

	// UseExternalVelocity advects with the bound fluid field instead of the
	// velocity field particles leave behind.
	UseExternalVelocity bool
}

// TickInputFromConfig reads the default per-tick input.
func TickInputFromConfig(cfg *config.Config) TickInput {
	return TickInput{
		DT:                  cfg.Derived.DT32,
		Substeps:            cfg.Tick.Substeps,
		Gravity:             cfg.Derived.Gravity,
		DirectionBias:       cfg.Derived.DirectionBias,
		StimuliIntensity:    float32(cfg.Tick.StimuliIntensity),
		StimuliColorBlend:   cfg.Tick.StimuliColorBlend,
		UseExternalVelocity: cfg.Tick.UseExternalVelocity,
	}
}

// Snapshot is the immutable configuration of one tick. Stages read it and
// nothing writes it once built, so a host changing parameters mid-tick can
// never be observed by a running stage.
type Snapshot struct {
	Tick     uint64
	DT       float32
	Substeps int

	Trail   systems.TrailParams
	Weights [8]float32

	AdvectionStrength   float32
	UseExternalVelocity bool
	VelocityDecay       float32

	InfluenceWeight   float32
	FluidDrift        float32
	StimuliIntensity  float32
	StimuliColorBlend bool
	DirectionBias     mgl32.Vec2

	// Emitters is index-aligned with the registry entries.
	Emitters []systems.EmitterParams
}

// buildSnapshot freezes params, input and the current emitter list.
func buildSnapshot(tick uint64, p Params, in TickInput, entries []*Entry) *Snapshot {
	s := &Snapshot{
		Tick:     tick,
		DT:       in.DT,
		Substeps: in.Substeps,
		Trail: systems.TrailParams{
			Decay:     p.Decay,
			Diffusion: p.Diffusion,
			Repulsion: p.Repulsion,
			MaxValue:  p.MaxValue,
			Gravity:   in.Gravity,
		},
		Weights:             systems.NeighbourWeights(in.Gravity),
		AdvectionStrength:   p.AdvectionStrength,
		UseExternalVelocity: in.UseExternalVelocity,
		VelocityDecay:       p.VelocityDecay,
		InfluenceWeight:     p.InfluenceWeight,
		FluidDrift:          p.FluidDrift,
		StimuliIntensity:    in.StimuliIntensity,
		StimuliColorBlend:   in.StimuliColorBlend,
		DirectionBias:       in.DirectionBias,
		Emitters:            make([]systems.EmitterParams, len(entries)),
	}
	for i, e := range entries {
		ep := e.Emitter.Params(p.SynchronizeSensorAndRotation)
		ep.PreviousPosition = e.lastPos
		s.Emitters[i] = ep
	}
	return s
}

// substepEmitter returns the emitter view for substep k of n: the emitter
// moves along the shortest wrapped path from its previous position, so
// distance-based spawning is spread evenly over the substeps.
func substepEmitter(ep *systems.EmitterParams, k, n int, fieldSize mgl32.Vec2) systems.EmitterParams {
	out := *ep
	if n <= 1 {
		return out
	}
	d := systems.WrapDelta(ep.PreviousPosition, ep.Position, fieldSize)
	from := ep.PreviousPosition.Add(d.Mul(float32(k) / float32(n)))
	to := ep.PreviousPosition.Add(d.Mul(float32(k+1) / float32(n)))
	out.PreviousPosition = systems.WrapPosition(from, fieldSize)
	out.Position = systems.WrapPosition(to, fieldSize)
	return out
}
