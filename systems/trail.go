package systems

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/blas/blas32"
)

// depositScale converts deposits to fixed point. Integer accumulation keeps
// concurrent deposits exactly associative, so the result never depends on
// which particle got there first.
const depositScale = 1 << 20

// TrailParams are the trail update inputs for one tick.
type TrailParams struct {
	Decay     float32 // fraction removed per tick, [0, 1]
	Diffusion float32 // fraction of a cell shared with its neighbours, [0, 1]
	Repulsion float32 // cap on any single neighbour contribution; 0 = no cap
	MaxValue  float32
	Gravity   mgl32.Vec2 // direction scaled by strength
}

// neighbourOffsets lists the 8-neighbourhood. Material at c-o flows into c
// along o.
var neighbourOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// NeighbourWeights returns diffusion weights for the 8 inflow directions.
// Without gravity they are the usual 3x3 blur (diagonals scaled by 1/sqrt2);
// gravity tilts them toward flows aligned with it. The weights sum to 1.
func NeighbourWeights(gravity mgl32.Vec2) [8]float32 {
	var w [8]float32
	var sum float32
	for i, o := range neighbourOffsets {
		dir := mgl32.Vec2{float32(o[0]), float32(o[1])}
		base := float32(1)
		if o[0] != 0 && o[1] != 0 {
			base = 1 / math.Sqrt2
		}
		bias := 1 + dir.Normalize().Dot(gravity)
		if bias < 0 {
			bias = 0
		}
		w[i] = base * bias
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Trail is the double-buffered deposit field plus the optional velocity
// field. Reads always come from the front buffer and writes go to the back
// buffer; Swap toggles which is which without copying.
type Trail struct {
	W, H int
	Size mgl32.Vec2

	buf   [2][]float32
	front int

	deposits []atomic.Int64

	vel      *Grid
	residue  []atomic.Int64
	velDirty atomic.Bool
}

// NewTrail allocates a w x h trail covering size field units.
func NewTrail(w, h int, size mgl32.Vec2) *Trail {
	n := w * h
	return &Trail{
		W:        w,
		H:        h,
		Size:     size,
		buf:      [2][]float32{make([]float32, n), make([]float32, n)},
		deposits: make([]atomic.Int64, n),
		vel:      NewGrid(w, h, 2),
		residue:  make([]atomic.Int64, 2*n),
	}
}

// Front returns the readable buffer. It stays valid until the next Swap.
func (t *Trail) Front() []float32 { return t.buf[t.front] }

// Back returns the buffer the next update writes.
func (t *Trail) Back() []float32 { return t.buf[1-t.front] }

// Swap makes the back buffer current.
func (t *Trail) Swap() { t.front = 1 - t.front }

// Cells returns the number of cells.
func (t *Trail) Cells() int { return t.W * t.H }

// CellOf returns the wrapped cell index containing field-space position p.
func (t *Trail) CellOf(p mgl32.Vec2) int {
	return CellIndex(p, t.Size, t.W, t.H)
}

// CellIndex returns the wrapped index of the cell containing p in a w x h
// grid spanning size field units.
func CellIndex(p, size mgl32.Vec2, w, h int) int {
	x := int(fract(p[0]/size[0]) * float32(w))
	y := int(fract(p[1]/size[1]) * float32(h))
	if x >= w {
		x = 0
	}
	if y >= h {
		y = 0
	}
	return y*w + x
}

// Sense reads the front buffer at the cell containing p.
func (t *Trail) Sense(p mgl32.Vec2) float32 {
	return t.buf[t.front][t.CellOf(p)]
}

// Deposit adds amount to cell's pending deposit. Safe for concurrent use.
func (t *Trail) Deposit(cell int, amount float32) {
	t.deposits[cell].Add(toFixed(amount))
}

// DepositVelocity adds v to the cell's pending velocity residue. Safe for
// concurrent use.
func (t *Trail) DepositVelocity(cell int, v mgl32.Vec2) {
	t.residue[2*cell].Add(toFixed(v[0]))
	t.residue[2*cell+1].Add(toFixed(v[1]))
	t.velDirty.Store(true)
}

// PendingDeposit returns the deposit accumulated for cell since the last
// update.
func (t *Trail) PendingDeposit(cell int) float32 {
	return fromFixed(t.deposits[cell].Load())
}

// PendingTotal sums all pending deposits.
func (t *Trail) PendingTotal() float64 {
	var sum int64
	for i := range t.deposits {
		sum += t.deposits[i].Load()
	}
	return float64(sum) / depositScale
}

// DecayAndDiffuse computes rows [y0, y1) of the back buffer from the front
// buffer and the pending deposits, then clears those rows' deposits:
//
//	next = clamp((1-decay)*((1-k)*v + sum_o min(k*w_o*v[c-o], repulsion)) + deposit, 0, max)
//
// Each row range owns its cells exclusively, so disjoint ranges may run
// concurrently.
func (t *Trail) DecayAndDiffuse(p TrailParams, weights *[8]float32, y0, y1 int) {
	src := t.buf[t.front]
	dst := t.buf[1-t.front]
	w, h := t.W, t.H
	keep := 1 - p.Decay
	k := p.Diffusion
	self := 1 - k

	var kw [8]float32
	for i := range kw {
		kw[i] = k * weights[i]
	}

	for y := y0; y < y1; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			i := row + x
			acc := self * src[i]
			if k > 0 {
				for n, o := range neighbourOffsets {
					sx := x - o[0]
					sy := y - o[1]
					if sx < 0 {
						sx += w
					} else if sx >= w {
						sx -= w
					}
					if sy < 0 {
						sy += h
					} else if sy >= h {
						sy -= h
					}
					c := kw[n] * src[sy*w+sx]
					if p.Repulsion > 0 && c > p.Repulsion {
						c = p.Repulsion
					}
					acc += c
				}
			}
			v := keep*acc + fromFixed(t.deposits[i].Swap(0))
			dst[i] = clampFloat(v, 0, p.MaxValue)
		}
	}
}

// Advect computes rows [y0, y1) of the back buffer by sampling the front
// buffer upstream of each cell centre: next[c] = front(c - strength*flow(c)).
// flow is sampled with its own resolution and measured in trail texels.
func (t *Trail) Advect(flow *Grid, strength float32, y0, y1 int) {
	src := &Grid{W: t.W, H: t.H, C: 1, Data: t.buf[t.front]}
	dst := t.buf[1-t.front]
	invW := 1 / float32(t.W)
	invH := 1 / float32(t.H)

	for y := y0; y < y1; y++ {
		v := (float32(y) + 0.5) * invH
		for x := 0; x < t.W; x++ {
			u := (float32(x) + 0.5) * invW
			f := flow.SampleVec2(u, v)
			dst[y*t.W+x] = src.SampleBilinear(u-strength*f[0]*invW, v-strength*f[1]*invH, 0)
		}
	}
}

// Velocity returns the velocity field (2 channels, trail resolution).
func (t *Trail) Velocity() *Grid { return t.vel }

// HasVelocity reports whether any particle ever left velocity residue.
func (t *Trail) HasVelocity() bool { return t.velDirty.Load() }

// DecayVelocity applies vel = vel*(1-rate) + residue to cells [lo, hi) and
// clears their residue. Each cell depends only on itself, so the update is
// done in place.
func (t *Trail) DecayVelocity(rate float32, lo, hi int) {
	data := t.vel.Data[2*lo : 2*hi]
	blas32.Scal(1-rate, blas32.Vector{N: len(data), Data: data, Inc: 1})
	for i := range data {
		data[i] += fromFixed(t.residue[2*lo+i].Swap(0))
	}
}

// Total sums the front buffer.
func (t *Trail) Total() float64 {
	var sum float64
	for _, v := range t.buf[t.front] {
		sum += float64(v)
	}
	return sum
}

// Reset zeroes both buffers, pending deposits and velocity.
func (t *Trail) Reset() {
	clear(t.buf[0])
	clear(t.buf[1])
	for i := range t.deposits {
		t.deposits[i].Store(0)
	}
	clear(t.vel.Data)
	for i := range t.residue {
		t.residue[i].Store(0)
	}
	t.velDirty.Store(false)
}

func toFixed(v float32) int64 {
	return int64(math.Round(float64(v) * depositScale))
}

func fromFixed(v int64) float32 {
	return float32(float64(v) / depositScale)
}
