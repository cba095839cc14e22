package systems

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Particle is a copy of one pool slot.
type Particle struct {
	Pos       mgl32.Vec2
	Heading   float32
	Color     mgl32.Vec4
	Age       float32
	Lifetime  float32
	Intensity float32
}

// Alive reports whether the particle has time left.
func (p Particle) Alive() bool { return p.Age < p.Lifetime }

// Pool is the fixed-capacity particle store owned by one emitter. Slots are
// stored SoA; a slot is dead when Age >= Lifetime, and a zeroed slot is the
// dead sentinel.
//
// ActiveList holds the indices of slots that were live at the last Compact;
// move passes iterate it so work scales with the live count. FreeList holds
// the dead slots spawn draws from.
type Pool struct {
	Pos       []mgl32.Vec2
	Heading   []float32
	Color     []mgl32.Vec4
	Age       []float32
	Lifetime  []float32
	Intensity []float32

	FreeList   []int
	ActiveList []int

	// Ticks counts completed move passes.
	Ticks uint64

	capacity int
	salt     uint32
	rng      *rand.Rand
	spawnAcc float32
	scratch  []int
}

// NewPool allocates capacity dead slots. The pool's RNG is seeded from
// seed alone, so two pools built with the same seed evolve identically.
func NewPool(capacity int, seed int64) *Pool {
	p := &Pool{
		Pos:        make([]mgl32.Vec2, capacity),
		Heading:    make([]float32, capacity),
		Color:      make([]mgl32.Vec4, capacity),
		Age:        make([]float32, capacity),
		Lifetime:   make([]float32, capacity),
		Intensity:  make([]float32, capacity),
		FreeList:   make([]int, capacity),
		ActiveList: make([]int, 0, capacity),
		capacity:   capacity,
		salt:       uint32(seed) ^ uint32(seed>>32),
		rng:        rand.New(rand.NewSource(seed)),
	}
	// Pop order hands out slot 0 first.
	for i := range p.FreeList {
		p.FreeList[i] = capacity - 1 - i
	}
	return p
}

// Capacity returns the fixed slot count.
func (p *Pool) Capacity() int { return p.capacity }

// Live returns the number of live particles as of the last Compact.
func (p *Pool) Live() int { return len(p.ActiveList) }

// Alive reports whether slot i holds a live particle.
func (p *Pool) Alive(i int) bool { return p.Age[i] < p.Lifetime[i] }

// Particle returns a copy of slot i.
func (p *Pool) Particle(i int) Particle {
	return Particle{
		Pos:       p.Pos[i],
		Heading:   p.Heading[i],
		Color:     p.Color[i],
		Age:       p.Age[i],
		Lifetime:  p.Lifetime[i],
		Intensity: p.Intensity[i],
	}
}

// Snapshot copies every slot, live or dead.
func (p *Pool) Snapshot() []Particle {
	out := make([]Particle, p.capacity)
	for i := range out {
		out[i] = p.Particle(i)
	}
	return out
}

// Positions appends the positions of live particles to dst.
func (p *Pool) Positions(dst []mgl32.Vec2) []mgl32.Vec2 {
	for _, i := range p.ActiveList {
		if p.Alive(i) {
			dst = append(dst, p.Pos[i])
		}
	}
	return dst
}

// Compact returns particles that died during the last move pass to the free
// list and compacts ActiveList. It must run single-threaded after the move
// barrier. Returns the number of particles that died.
func (p *Pool) Compact() int {
	died := 0
	writeIdx := 0
	for _, i := range p.ActiveList {
		if p.Alive(i) {
			p.ActiveList[writeIdx] = i
			writeIdx++
			continue
		}
		p.kill(i)
		p.FreeList = append(p.FreeList, i)
		died++
	}
	p.ActiveList = p.ActiveList[:writeIdx]
	return died
}

// kill zeroes slot i into the dead sentinel.
func (p *Pool) kill(i int) {
	p.Pos[i] = mgl32.Vec2{}
	p.Heading[i] = 0
	p.Color[i] = mgl32.Vec4{}
	p.Age[i] = 0
	p.Lifetime[i] = 0
	p.Intensity[i] = 0
}
