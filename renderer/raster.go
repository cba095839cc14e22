package renderer

import (
	"image/color"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// RasterRenderer draws the debug particle-count raster as a heatmap overlay.
type RasterRenderer struct {
	tex fieldTexture
}

// NewRasterRenderer creates a raster renderer with nearest filtering so
// individual cells stay visible.
func NewRasterRenderer() *RasterRenderer {
	return &RasterRenderer{tex: fieldTexture{filter: rl.FilterPoint}}
}

// Update uploads w*h per-cell counts, log-scaled against the busiest cell.
// Empty cells are transparent.
func (r *RasterRenderer) Update(counts []uint32, w, h int) {
	if len(counts) != w*h || w == 0 {
		return
	}
	r.tex.ensure(w, h)

	var peak uint32
	for _, c := range counts {
		peak = max(peak, c)
	}
	norm := float32(math.Log1p(float64(peak)))
	for i, c := range counts {
		if c == 0 || norm == 0 {
			r.tex.pixels[i] = color.RGBA{}
			continue
		}
		t := float32(math.Log1p(float64(c))) / norm
		r.tex.pixels[i] = heat(t)
	}
	r.tex.upload()
}

// Draw renders the overlay.
func (r *RasterRenderer) Draw(v View) {
	r.tex.draw(v, rl.White)
}

// Unload frees GPU resources.
func (r *RasterRenderer) Unload() {
	r.tex.unload()
}

// heat maps [0,1] onto blue-green-red with rising alpha.
func heat(t float32) color.RGBA {
	var cr, cg, cb float32
	if t < 0.5 {
		cg = t * 2
		cb = 1 - t*2
	} else {
		cr = (t - 0.5) * 2
		cg = 1 - (t-0.5)*2
	}
	return color.RGBA{
		R: uint8(cr * 255),
		G: uint8(cg * 255),
		B: uint8(cb * 255),
		A: uint8(80 + t*150),
	}
}
