package systems

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// SpawnRetryBudget bounds rejection sampling for SpawnInsideStimuli. After
// this many rejected samples the last one is accepted.
const SpawnRetryBudget = 8

// SpawnContext is everything a spawn pass reads.
type SpawnContext struct {
	Emitter   *EmitterParams
	Aux       AuxFields
	FieldSize mgl32.Vec2
	LUT       *ColorLUT // required when the emitter uses color over life
}

// SpawnCount advances the pool's fractional spawn accumulator and returns
// how many particles this pass should emit. In distance mode the rate is
// per field unit travelled since the previous tick.
func (p *Pool) SpawnCount(ep *EmitterParams, fieldSize mgl32.Vec2, dt float32) int {
	switch ep.SpawnMode {
	case SpawnPerDistance:
		moved := WrapDelta(ep.PreviousPosition, ep.Position, fieldSize).Len()
		p.spawnAcc += ep.SpawnRate * moved
	default:
		p.spawnAcc += ep.SpawnRate * dt
	}
	n := int(p.spawnAcc)
	if n > 0 {
		p.spawnAcc -= float32(n)
	}
	return n
}

// Seed emits the emitter's initial fill into a freshly allocated pool.
func (p *Pool) Seed(ctx *SpawnContext) int {
	n := int(ctx.Emitter.InitialFill * float32(p.capacity))
	if n == 0 {
		return 0
	}
	return p.Spawn(ctx, n)
}

// Spawn initializes up to count particles in dead slots and returns how many
// were emitted. When no dead slot is left and the emitter recycles, the live
// particles with the largest age fraction are respawned instead; otherwise
// the excess is dropped. The live count never exceeds capacity.
func (p *Pool) Spawn(ctx *SpawnContext, count int) int {
	// Only particles that were live before this call may be recycled.
	prior := len(p.ActiveList)
	spawned := 0
	for spawned < count && len(p.FreeList) > 0 {
		i := p.FreeList[len(p.FreeList)-1]
		p.FreeList = p.FreeList[:len(p.FreeList)-1]
		p.initSlot(ctx, i)
		p.ActiveList = append(p.ActiveList, i)
		spawned++
	}

	if spawned < count && ctx.Emitter.RecycleOldest && prior > 0 {
		for _, i := range p.oldest(p.ActiveList[:prior], count-spawned) {
			p.initSlot(ctx, i)
			spawned++
		}
	}
	return spawned
}

// oldest returns up to n of the given slots ordered by descending age
// fraction.
func (p *Pool) oldest(slots []int, n int) []int {
	p.scratch = append(p.scratch[:0], slots...)
	sort.SliceStable(p.scratch, func(a, b int) bool {
		ia, ib := p.scratch[a], p.scratch[b]
		return p.Age[ia]/p.Lifetime[ia] > p.Age[ib]/p.Lifetime[ib]
	})
	if n > len(p.scratch) {
		n = len(p.scratch)
	}
	return p.scratch[:n]
}

func (p *Pool) initSlot(ctx *SpawnContext, i int) {
	ep := ctx.Emitter

	var pos mgl32.Vec2
	var angle float32
	for attempt := 0; attempt < SpawnRetryBudget; attempt++ {
		pos, angle = p.samplePosition(ep, ctx.FieldSize)
		if !ep.SpawnInsideStimuli {
			break
		}
		u, v := ToUV(pos, ctx.FieldSize)
		if ctx.Aux.StimuliIntensity(u, v) >= ep.StimuliThreshold {
			break
		}
	}

	heading := angle
	if ep.AlignToMotion {
		if d := WrapDelta(ep.PreviousPosition, ep.Position, ctx.FieldSize); d.Len() > 1e-6 {
			heading = atan2f(d[1], d[0])
		}
	}
	heading += (p.rng.Float32()*2 - 1) * ep.SensorAngleRad

	var col mgl32.Vec4
	switch {
	case ep.UseColorOverLife && ctx.LUT != nil:
		col = ctx.LUT.Sample(0)
	case p.rng.Float32() < ep.SecondaryColorProbability:
		col = ep.SecondaryColor.Vec4()
	default:
		col = ep.MainColor.Vec4()
	}

	p.Pos[i] = pos
	p.Heading[i] = normalizeAngle(heading)
	p.Color[i] = col
	p.Age[i] = 0
	p.Lifetime[i] = ep.LifetimeMin + p.rng.Float32()*(ep.LifetimeMax-ep.LifetimeMin)
	p.Intensity[i] = 0
}

// samplePosition draws a point uniformly (by area) from the emitter's
// annulus sector and returns it with its placement angle.
func (p *Pool) samplePosition(ep *EmitterParams, fieldSize mgl32.Vec2) (mgl32.Vec2, float32) {
	var angle float32
	if ep.FullCircle {
		angle = p.rng.Float32() * twoPi
	} else {
		angle = ep.ArcOffsetRad + p.sampleArc(ep)
	}

	r2 := ep.InnerRadius*ep.InnerRadius +
		p.rng.Float32()*(ep.Radius*ep.Radius-ep.InnerRadius*ep.InnerRadius)
	r := sqrtf(r2)

	pos := ep.Position.Add(mgl32.Vec2{fastCos(angle), fastSin(angle)}.Mul(r))
	return WrapPosition(pos, fieldSize), angle
}

// sampleArc returns an angle relative to the sector centre. The sector body
// is uniform; with feathering a linear falloff of ArcFeather*ArcLength is
// added past each edge.
func (p *Pool) sampleArc(ep *EmitterParams) float32 {
	body := ep.ArcLengthRad
	feather := ep.ArcFeather * body
	half := body / 2

	// Each ramp is a triangle of area feather/2, so both together weigh
	// feather against the body's length.
	if feather > 0 && p.rng.Float32()*(body+feather) >= body {
		x := feather * (1 - float32(math.Sqrt(float64(1-p.rng.Float32()))))
		if p.rng.Float32() < 0.5 {
			return -(half + x)
		}
		return half + x
	}
	return (p.rng.Float32() - 0.5) * body
}
