package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/systems"
)

// StimuliRenderer draws the stimuli field underneath the trail. The
// displayed image eases toward newly bound data over a fraction of a second.
type StimuliRenderer struct {
	tex fieldTexture

	current  []float32 // target RGBA values
	display  []float32 // currently displayed values
	blending bool

	// Opacity scales the alpha of the whole layer.
	Opacity float32
}

// NewStimuliRenderer creates a stimuli renderer.
func NewStimuliRenderer(opacity float32) *StimuliRenderer {
	return &StimuliRenderer{
		tex:     fieldTexture{filter: rl.FilterBilinear},
		Opacity: opacity,
	}
}

// Update sets a new target field. Neutral fields clear the layer.
func (s *StimuliRenderer) Update(g *systems.Grid) {
	if g == nil || g.IsNeutral() || g.C != systems.FieldStimuli.Channels() {
		s.Unload()
		s.current, s.display = nil, nil
		return
	}
	if !s.tex.initialized || s.tex.w != g.W || s.tex.h != g.H {
		s.tex.ensure(g.W, g.H)
		s.current = make([]float32, len(g.Data))
		s.display = make([]float32, len(g.Data))
	}
	copy(s.current, g.Data)
	s.blending = true
}

// Step eases the displayed image toward the target by dt seconds.
func (s *StimuliRenderer) Step(dt float32) {
	if !s.tex.initialized || !s.blending {
		return
	}
	rate := min(3*dt, 1)
	done := true
	for i := range s.display {
		diff := s.current[i] - s.display[i]
		if diff > 0.001 || diff < -0.001 {
			s.display[i] += diff * rate
			done = false
		} else {
			s.display[i] = s.current[i]
		}
	}
	s.blending = !done
	s.upload()
}

// Draw renders the displayed image.
func (s *StimuliRenderer) Draw(v View) {
	if !s.tex.initialized {
		return
	}
	s.tex.draw(v, rl.White)
}

func (s *StimuliRenderer) upload() {
	for i := range s.tex.pixels {
		c := s.display[i*4 : i*4+4]
		s.tex.pixels[i] = color.RGBA{
			R: unit8(c[0]),
			G: unit8(c[1]),
			B: unit8(c[2]),
			A: unit8(c[3] * s.Opacity),
		}
	}
	s.tex.upload()
}

// Unload frees GPU resources.
func (s *StimuliRenderer) Unload() {
	s.tex.unload()
}

func unit8(v float32) uint8 {
	return uint8(max(0, min(1, v)) * 255)
}
