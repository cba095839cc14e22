package systems

import "math"

const (
	twoPi    = 2 * math.Pi
	degToRad = math.Pi / 180
)

func clampFloat(v, lo, hi float32) float32 { return max(lo, min(hi, v)) }

func clamp01(v float32) float32 { return clampFloat(v, 0, 1) }

// normalizeAngle wraps a heading into [-Pi, Pi]. Headings drift by at most
// a rotation per step, so the loops run once or not at all in practice.
func normalizeAngle(a float32) float32 {
	for a > math.Pi {
		a -= twoPi
	}
	for a < -math.Pi {
		a += twoPi
	}
	return a
}

// fastSin is a parabolic sine with one refinement pass, good to about 1e-3.
// The move kernel calls it twice per particle per sensor, so it stays in
// float32 throughout.
func fastSin(x float32) float32 {
	const (
		b = 4 / math.Pi
		c = -4 / (math.Pi * math.Pi)
		p = 0.225
	)
	x = normalizeAngle(x)
	y := b*x + c*x*absf(x)
	return p*(y*absf(y)-y) + y
}

func fastCos(x float32) float32 { return fastSin(x + math.Pi/2) }

func absf(x float32) float32 { return math.Float32frombits(math.Float32bits(x) &^ (1 << 31)) }

func sqrtf(x float32) float32 { return float32(math.Sqrt(float64(x))) }

func atan2f(y, x float32) float32 { return float32(math.Atan2(float64(y), float64(x))) }
