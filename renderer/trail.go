package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/lucasb-eyer/go-colorful"
)

// TrailRenderer tone-maps the trail field through a palette and draws it as
// a texture stretched over the field view.
type TrailRenderer struct {
	tex     fieldTexture
	palette [256]color.RGBA

	// Exposure is the trail value mapped to the brightest palette entry.
	Exposure float32
}

// NewTrailRenderer creates a renderer blending from low to high in Lab space.
func NewTrailRenderer(low, high colorful.Color, exposure float32) *TrailRenderer {
	r := &TrailRenderer{
		tex:      fieldTexture{filter: rl.FilterBilinear},
		Exposure: exposure,
	}
	for i := range r.palette {
		c := low.BlendLab(high, float64(i)/255).Clamped()
		cr, cg, cb := c.RGB255()
		r.palette[i] = color.RGBA{R: cr, G: cg, B: cb, A: 255}
	}
	return r
}

// DefaultTrailRenderer uses the same dark-to-amber palette as trail PNGs.
func DefaultTrailRenderer() *TrailRenderer {
	return NewTrailRenderer(
		colorful.Color{R: 0.02, G: 0.02, B: 0.05},
		colorful.Color{R: 1.0, G: 0.86, B: 0.35},
		1,
	)
}

// Update uploads a w*h trail buffer. Mismatched buffers are ignored.
func (r *TrailRenderer) Update(data []float32, w, h int) {
	if len(data) != w*h || w == 0 {
		return
	}
	r.tex.ensure(w, h)

	scale := float32(255)
	if r.Exposure > 0 {
		scale /= r.Exposure
	}
	for i, v := range data {
		idx := int(v * scale)
		idx = max(0, min(255, idx))
		r.tex.pixels[i] = r.palette[idx]
	}
	r.tex.upload()
}

// Draw renders the trail layer.
func (r *TrailRenderer) Draw(v View) {
	r.tex.draw(v, rl.White)
}

// Unload frees GPU resources.
func (r *TrailRenderer) Unload() {
	r.tex.unload()
}
