package game

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/systems"
)

// fieldToActor lifts a field position back into the scene's 3D space on the
// mapped plane. The unmapped axis is zero.
func fieldToActor(p mgl32.Vec2, mapping string) [3]float64 {
	m, err := systems.ParseMapping(mapping)
	if err != nil {
		m = systems.MappingXY
	}
	x, y := float64(p[0]), float64(p[1])
	switch m {
	case systems.MappingXZ:
		return [3]float64{x, 0, y}
	case systems.MappingYZ:
		return [3]float64{0, x, y}
	}
	return [3]float64{x, y, 0}
}

// emitterConfig returns the configured template for the named emitter.
func (g *Game) emitterConfig(name string) *systems.Emitter {
	idx, ok := g.cfg.Derived.EmitterIndex[name]
	if !ok {
		return nil
	}
	return &g.cfg.Emitters[idx]
}
