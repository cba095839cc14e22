package systems

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// NoiseParams configures procedural auxiliary fields.
type NoiseParams struct {
	Width, Height int
	Scale         float64 // features per tile at the first octave
	Octaves       int
	Lacunarity    float64 // frequency multiplier per octave
	Gain          float64 // amplitude multiplier per octave
	Contrast      float64 // exponent applied to the [0,1] noise; higher = sparser patches
	Strength      float64 // output scale
	Seed          int64
}

// tileFBM returns a w*h FBM field in [0, 1] that tiles seamlessly: each UV
// axis is mapped onto a circle in 4D noise space.
func tileFBM(p NoiseParams) []float64 {
	noise := opensimplex.NewNormalized(p.Seed)
	octaves := max(p.Octaves, 1)
	out := make([]float64, p.Width*p.Height)

	for y := 0; y < p.Height; y++ {
		av := 2 * math.Pi * (float64(y) + 0.5) / float64(p.Height)
		cv, sv := math.Cos(av), math.Sin(av)
		for x := 0; x < p.Width; x++ {
			au := 2 * math.Pi * (float64(x) + 0.5) / float64(p.Width)
			cu, su := math.Cos(au), math.Sin(au)

			sum, amp, norm := 0.0, 1.0, 0.0
			freq := p.Scale
			for o := 0; o < octaves; o++ {
				r := freq / (2 * math.Pi)
				sum += amp * noise.Eval4(cu*r, su*r, cv*r+float64(o)*17, sv*r)
				norm += amp
				amp *= p.Gain
				freq *= p.Lacunarity
			}
			v := sum / norm
			if p.Contrast > 0 && p.Contrast != 1 {
				v = math.Pow(v, p.Contrast)
			}
			out[y*p.Width+x] = v
		}
	}
	return out
}

// ProceduralStimuli builds a white RGBA stimuli field whose alpha follows
// tileable FBM noise.
func ProceduralStimuli(p NoiseParams) *Grid {
	n := tileFBM(p)
	g := NewGrid(p.Width, p.Height, FieldStimuli.Channels())
	s := strengthOr1(p.Strength)
	for i, v := range n {
		a := clamp01(float32(v * s))
		g.Data[4*i] = 1
		g.Data[4*i+1] = 1
		g.Data[4*i+2] = 1
		g.Data[4*i+3] = a
	}
	return g
}

// ProceduralInfluence builds a signed influence field in [-1, 1].
func ProceduralInfluence(p NoiseParams) *Grid {
	n := tileFBM(p)
	g := NewGrid(p.Width, p.Height, FieldInfluence.Channels())
	s := strengthOr1(p.Strength)
	for i, v := range n {
		g.Data[i] = clampFloat(float32((v*2-1)*s), -1, 1)
	}
	return g
}

// CurlFluid builds a divergence-free flow field from the curl of a tileable
// FBM potential: (dpsi/dy, -dpsi/dx), normalized to unit peak magnitude and
// scaled by Strength.
func CurlFluid(p NoiseParams) *Grid {
	psi := tileFBM(p)
	w, h := p.Width, p.Height
	g := NewGrid(w, h, FieldFluid.Channels())

	var peak float64
	for y := 0; y < h; y++ {
		yu := modInt(y-1, h)
		yd := modInt(y+1, h)
		for x := 0; x < w; x++ {
			xl := modInt(x-1, w)
			xr := modInt(x+1, w)
			vx := (psi[yd*w+x] - psi[yu*w+x]) / 2
			vy := -(psi[y*w+xr] - psi[y*w+xl]) / 2
			i := y*w + x
			g.Data[2*i] = float32(vx)
			g.Data[2*i+1] = float32(vy)
			peak = math.Max(peak, math.Hypot(vx, vy))
		}
	}
	if peak > 0 {
		s := float32(strengthOr1(p.Strength) / peak)
		for i := range g.Data {
			g.Data[i] *= s
		}
	}
	return g
}

func strengthOr1(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}
