package renderer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/systems"
)

// ParticleRenderer draws individual particles and emitter markers.
type ParticleRenderer struct {
	Size float32
}

// NewParticleRenderer creates a particle renderer.
func NewParticleRenderer(size float32) *ParticleRenderer {
	return &ParticleRenderer{Size: size}
}

// Draw renders particles in their own color, faded by remaining life.
func (r *ParticleRenderer) Draw(v View, particles []systems.Particle) {
	rl.BeginBlendMode(rl.BlendAdditive)
	for i := range particles {
		p := &particles[i]
		life := float32(1)
		if p.Lifetime > 0 {
			life = max(0, 1-p.Age/p.Lifetime)
		}
		c := rl.Color{
			R: unit8(p.Color[0]),
			G: unit8(p.Color[1]),
			B: unit8(p.Color[2]),
			A: unit8(p.Color[3] * life),
		}
		if c.A == 0 {
			continue
		}
		rl.DrawCircleV(v.ToScreen(p.Pos), r.Size, c)
	}
	rl.EndBlendMode()
}

// Marker describes an emitter to annotate.
type Marker struct {
	Pos      rl.Vector2
	Label    string
	Live     int
	Capacity int
	Selected bool
}

// DrawMarkers outlines emitters and labels them with their occupancy.
func (r *ParticleRenderer) DrawMarkers(markers []Marker) {
	for _, m := range markers {
		col := rl.Color{R: 200, G: 200, B: 210, A: 180}
		if m.Selected {
			col = rl.Color{R: 255, G: 220, B: 80, A: 255}
		}
		rl.DrawCircleLines(int32(m.Pos.X), int32(m.Pos.Y), 8, col)

		occ := float32(0)
		if m.Capacity > 0 {
			occ = float32(m.Live) / float32(m.Capacity)
		}
		// Occupancy bar under the ring.
		rl.DrawRectangle(int32(m.Pos.X)-10, int32(m.Pos.Y)+11, 20, 3, rl.Color{R: 40, G: 40, B: 50, A: 200})
		rl.DrawRectangle(int32(m.Pos.X)-10, int32(m.Pos.Y)+11, int32(20*occ), 3, col)

		label := fmt.Sprintf("%s %d/%d", m.Label, m.Live, m.Capacity)
		rl.DrawText(label, int32(m.Pos.X)+12, int32(m.Pos.Y)-6, 10, col)
	}
}
