package systems

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultLUTSamples is the sample count used when none is configured.
const DefaultLUTSamples = 64

// ColorLUT is a discretized color-over-life gradient: evenly spaced samples
// over age fraction [0, 1].
type ColorLUT struct {
	samples []mgl32.Vec4
}

// BuildColorLUT evaluates g at n evenly spaced fractions. A gradient without
// color keys is white; without alpha keys it is opaque.
func BuildColorLUT(g Gradient, n int) (*ColorLUT, error) {
	if n < 2 {
		n = 2
	}

	keys := append([]GradientKey(nil), g.Keys...)
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].T < keys[j].T })
	cols := make([]colorful.Color, len(keys))
	for i, k := range keys {
		c, err := colorful.Hex(k.Color)
		if err != nil {
			return nil, fmt.Errorf("gradient key %d: %w", i, err)
		}
		cols[i] = c
	}

	alpha := append([]AlphaKey(nil), g.Alpha...)
	sort.SliceStable(alpha, func(i, j int) bool { return alpha[i].T < alpha[j].T })

	blend, err := blendFunc(g.Blend)
	if err != nil {
		return nil, err
	}

	lut := &ColorLUT{samples: make([]mgl32.Vec4, n)}
	for i := range lut.samples {
		t := float32(i) / float32(n-1)
		c := evalColor(keys, cols, t, blend).Clamped()
		lut.samples[i] = mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), evalAlpha(alpha, t)}
	}
	return lut, nil
}

// Sample linearly interpolates the LUT at age fraction f (clamped to [0,1]).
func (l *ColorLUT) Sample(f float32) mgl32.Vec4 {
	f = clamp01(f)
	pos := f * float32(len(l.samples)-1)
	i := int(pos)
	if i >= len(l.samples)-1 {
		return l.samples[len(l.samples)-1]
	}
	t := pos - float32(i)
	a, b := l.samples[i], l.samples[i+1]
	return a.Add(b.Sub(a).Mul(t))
}

// Len returns the number of discrete samples.
func (l *ColorLUT) Len() int { return len(l.samples) }

type blender func(a, b colorful.Color, t float64) colorful.Color

func blendFunc(name string) (blender, error) {
	switch name {
	case "", "rgb":
		return colorful.Color.BlendRgb, nil
	case "linear":
		return colorful.Color.BlendLinearRgb, nil
	case "lab":
		return colorful.Color.BlendLab, nil
	}
	return nil, fmt.Errorf("unknown gradient blend %q", name)
}

func evalColor(keys []GradientKey, cols []colorful.Color, t float32, blend blender) colorful.Color {
	switch {
	case len(keys) == 0:
		return colorful.Color{R: 1, G: 1, B: 1}
	case t <= keys[0].T:
		return cols[0]
	case t >= keys[len(keys)-1].T:
		return cols[len(cols)-1]
	}
	for i := 1; i < len(keys); i++ {
		if t <= keys[i].T {
			span := keys[i].T - keys[i-1].T
			if span <= 0 {
				return cols[i]
			}
			return blend(cols[i-1], cols[i], float64((t-keys[i-1].T)/span))
		}
	}
	return cols[len(cols)-1]
}

func evalAlpha(keys []AlphaKey, t float32) float32 {
	switch {
	case len(keys) == 0:
		return 1
	case t <= keys[0].T:
		return keys[0].A
	case t >= keys[len(keys)-1].T:
		return keys[len(keys)-1].A
	}
	for i := 1; i < len(keys); i++ {
		if t <= keys[i].T {
			span := keys[i].T - keys[i-1].T
			if span <= 0 {
				return keys[i].A
			}
			f := (t - keys[i-1].T) / span
			return keys[i-1].A + (keys[i].A-keys[i-1].A)*f
		}
	}
	return keys[len(keys)-1].A
}
