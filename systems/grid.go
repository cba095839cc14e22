package systems

import "github.com/go-gl/mathgl/mgl32"

// Grid is a row-major multi-channel float32 raster. Channel c of cell (x, y)
// lives at Data[(y*W+x)*C+c].
//
// Grids are addressed in normalized UV space so that fields of different
// resolutions can be sampled from the same field-space position. All
// addressing wraps toroidally.
type Grid struct {
	W, H, C int
	Data    []float32
}

// NewGrid allocates a zeroed grid.
func NewGrid(w, h, c int) *Grid {
	return &Grid{W: w, H: h, C: c, Data: make([]float32, w*h*c)}
}

// NeutralGrid returns a 1x1 zero grid. Sampling it anywhere yields zero in
// every channel, which is the neutral value for stimuli, influence and fluid.
func NeutralGrid(c int) *Grid {
	return NewGrid(1, 1, c)
}

// Index returns the offset of channel 0 of cell (x, y). Coordinates wrap.
func (g *Grid) Index(x, y int) int {
	return (modInt(y, g.H)*g.W + modInt(x, g.W)) * g.C
}

// At returns channel c of cell (x, y).
func (g *Grid) At(x, y, c int) float32 {
	return g.Data[g.Index(x, y)+c]
}

// Set writes channel c of cell (x, y).
func (g *Grid) Set(x, y, c int, v float32) {
	g.Data[g.Index(x, y)+c] = v
}

// Texel maps a UV coordinate to the wrapped texel that contains it.
func (g *Grid) Texel(u, v float32) (int, int) {
	x := int(fract(u) * float32(g.W))
	y := int(fract(v) * float32(g.H))
	if x >= g.W {
		x = 0
	}
	if y >= g.H {
		y = 0
	}
	return x, y
}

// SampleNearest returns channel c of the texel containing (u, v).
func (g *Grid) SampleNearest(u, v float32, c int) float32 {
	x, y := g.Texel(u, v)
	return g.Data[(y*g.W+x)*g.C+c]
}

// SampleBilinear interpolates channel c at (u, v). Texel centres sit at
// ((x+0.5)/W, (y+0.5)/H), so sampling a centre returns that texel exactly.
func (g *Grid) SampleBilinear(u, v float32, c int) float32 {
	fx := fract(u)*float32(g.W) - 0.5
	fy := fract(v)*float32(g.H) - 0.5

	x0 := floorInt(fx)
	y0 := floorInt(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	x0 = modInt(x0, g.W)
	y0 = modInt(y0, g.H)
	x1 := x0 + 1
	if x1 >= g.W {
		x1 = 0
	}
	y1 := y0 + 1
	if y1 >= g.H {
		y1 = 0
	}

	i00 := (y0*g.W+x0)*g.C + c
	i10 := (y0*g.W+x1)*g.C + c
	i01 := (y1*g.W+x0)*g.C + c
	i11 := (y1*g.W+x1)*g.C + c

	a := g.Data[i00] + (g.Data[i10]-g.Data[i00])*tx
	b := g.Data[i01] + (g.Data[i11]-g.Data[i01])*tx
	return a + (b-a)*ty
}

// SampleVec2 bilinearly samples channels 0 and 1.
func (g *Grid) SampleVec2(u, v float32) mgl32.Vec2 {
	return mgl32.Vec2{g.SampleBilinear(u, v, 0), g.SampleBilinear(u, v, 1)}
}

// IsNeutral reports whether the grid is a placeholder with no content.
func (g *Grid) IsNeutral() bool {
	return g == nil || (g.W == 1 && g.H == 1 && allZero(g.Data))
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{W: g.W, H: g.H, C: g.C, Data: make([]float32, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// --- wrap helpers ---

// ToUV converts a field-space position to UV for a field of the given size.
func ToUV(p, size mgl32.Vec2) (float32, float32) {
	return p[0] / size[0], p[1] / size[1]
}

// WrapPosition folds p back into [0, size) on both axes.
func WrapPosition(p, size mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{wrapf(p[0], size[0]), wrapf(p[1], size[1])}
}

// WrapDelta returns the shortest toroidal displacement from a to b.
func WrapDelta(a, b, size mgl32.Vec2) mgl32.Vec2 {
	d := b.Sub(a)
	for i := 0; i < 2; i++ {
		half := size[i] / 2
		if d[i] > half {
			d[i] -= size[i]
		} else if d[i] < -half {
			d[i] += size[i]
		}
	}
	return d
}

func fract(x float32) float32 {
	if x >= 0 {
		return x - float32(int(x))
	}
	f := x - float32(int(x)-1)
	if f >= 1 {
		return 0
	}
	return f
}

func wrapf(x, max float32) float32 {
	if x >= 0 && x < max {
		return x
	}
	x = fract(x/max) * max
	if x >= max {
		x = 0
	}
	return x
}

func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func floorInt(x float32) int {
	i := int(x)
	if x < 0 && float32(i) != x {
		i--
	}
	return i
}

func allZero(data []float32) bool {
	for _, v := range data {
		if v != 0 {
			return false
		}
	}
	return true
}
