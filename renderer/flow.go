package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/systems"
)

// FlowRenderer draws a 2-channel vector field as a grid of short strokes.
type FlowRenderer struct {
	// Spacing is the stroke grid pitch in screen pixels.
	Spacing float32
	// Length is the stroke length in pixels for a unit vector.
	Length float32
	Color  rl.Color
}

// NewFlowRenderer creates a flow renderer.
func NewFlowRenderer(spacing, length float32) *FlowRenderer {
	return &FlowRenderer{
		Spacing: spacing,
		Length:  length,
		Color:   rl.Color{R: 50, G: 100, B: 130, A: 160},
	}
}

// Draw samples the field across the view and strokes each vector.
func (r *FlowRenderer) Draw(v View, field *systems.Grid) {
	if field == nil || field.IsNeutral() || field.C < 2 || r.Spacing <= 0 {
		return
	}

	rl.BeginBlendMode(rl.BlendAdditive)
	for sy := v.Y + r.Spacing/2; sy < v.Y+v.Height; sy += r.Spacing {
		for sx := v.X + r.Spacing/2; sx < v.X+v.Width; sx += r.Spacing {
			p := v.ToField(rl.Vector2{X: sx, Y: sy})
			u, w := systems.ToUV(p, v.Field)
			vec := field.SampleVec2(u, w)
			mag := vec.Len()
			if mag < 1e-4 {
				continue
			}

			// Saturate long vectors so strokes stay inside their cell.
			l := r.Length * float32(math.Tanh(float64(mag)))
			dir := vec.Mul(1 / mag)
			end := mgl32.Vec2{sx, sy}.Add(dir.Mul(l))

			col := r.Color
			col.A = uint8(float32(col.A) * min(1, 0.3+mag))
			rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: end[0], Y: end[1]}, 1.5, col)
			rl.DrawCircleV(rl.Vector2{X: end[0], Y: end[1]}, 1.5, col)
		}
	}
	rl.EndBlendMode()
}
