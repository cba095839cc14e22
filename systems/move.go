package systems

import "github.com/go-gl/mathgl/mgl32"

// MoveContext is the read-only input of a move pass. It is shared by all
// workers of the pass and must not change while the pass runs.
type MoveContext struct {
	Trail   *Trail
	Aux     AuxFields
	Emitter *EmitterParams
	LUT     *ColorLUT

	DT                float32
	StimuliIntensity  float32 // weight of stimuli intensity in sensing
	StimuliColorBlend bool    // pull particle color toward the stimuli color
	InfluenceWeight   float32
	DirectionBias     mgl32.Vec2
	FluidDrift        float32 // 0 disables drift along the fluid field
	Tick              uint64
}

// colorBlendRate is how fast a particle takes on the stimuli color, per
// second at full intensity.
const colorBlendRate = 4

// Move advances the particles at ActiveList[lo:hi]. Each particle only
// writes its own slot; trail deposits go through the trail's atomic
// accumulator. Disjoint ranges may therefore run concurrently.
func (p *Pool) Move(ctx *MoveContext, lo, hi int) {
	ep := ctx.Emitter
	tr := ctx.Trail
	size := tr.Size
	dt := ctx.DT
	step := ep.StepSize * dt
	sa := ep.SensorAngleRad
	ra := ep.RotationAngleRad
	off := ep.SensorOffset
	tick := uint32(ctx.Tick)
	useFluid := ctx.FluidDrift != 0

	for _, i := range p.ActiveList[lo:hi] {
		if !p.Alive(i) {
			continue
		}
		pos := p.Pos[i]
		h := p.Heading[i]

		left := p.sense(ctx, pos, h+sa, off)
		centre := p.sense(ctx, pos, h, off)
		right := p.sense(ctx, pos, h-sa, off)

		switch {
		case centre >= left && centre >= right:
		case left == right:
			if hashUnit(uint32(i), tick, p.salt) < 0.5 {
				h += ra
			} else {
				h -= ra
			}
		case left > right:
			h += ra
		default:
			h -= ra
		}
		h = normalizeAngle(h)

		dir := mgl32.Vec2{fastCos(h), fastSin(h)}
		next := pos.Add(dir.Mul(step))
		if useFluid {
			u, v := ToUV(pos, size)
			next = next.Add(ctx.Aux.FluidAt(u, v).Mul(ctx.FluidDrift * dt))
		}
		next = WrapPosition(next, size)

		u, v := ToUV(next, size)
		stim, intensity := ctx.Aux.StimuliAt(u, v)

		cell := tr.CellOf(next)
		amount := ep.DepositAmount
		if ep.IntensityScaledDeposit {
			amount *= intensity
		}
		if amount != 0 {
			tr.Deposit(cell, amount)
		}
		if ep.VelocityResidue != 0 {
			tr.DepositVelocity(cell, dir.Mul(ep.VelocityResidue))
		}

		age := p.Age[i] + dt
		col := p.Color[i]
		if ep.UseColorOverLife && ep.ColorOverLifeContinuous && ctx.LUT != nil {
			col = ctx.LUT.Sample(age / p.Lifetime[i])
		}
		if ctx.StimuliColorBlend && intensity > 0 {
			t := clamp01(intensity * colorBlendRate * dt)
			col = mgl32.Vec4{
				col[0] + (stim[0]-col[0])*t,
				col[1] + (stim[1]-col[1])*t,
				col[2] + (stim[2]-col[2])*t,
				col[3],
			}
		}

		p.Pos[i] = next
		p.Heading[i] = h
		p.Color[i] = col
		p.Intensity[i] = intensity
		p.Age[i] = age
	}
}

// EndMovePass records a completed move pass.
func (p *Pool) EndMovePass() { p.Ticks++ }

// sense evaluates the steering signal at the sensor offset along angle a.
func (p *Pool) sense(ctx *MoveContext, pos mgl32.Vec2, a, off float32) float32 {
	dir := mgl32.Vec2{fastCos(a), fastSin(a)}
	q := WrapPosition(pos.Add(dir.Mul(off)), ctx.Trail.Size)
	u, v := ToUV(q, ctx.Trail.Size)

	s := ctx.Trail.Sense(q)
	if ctx.StimuliIntensity != 0 {
		s += ctx.Aux.StimuliIntensity(u, v) * ctx.StimuliIntensity
	}
	if ctx.InfluenceWeight != 0 {
		s += ctx.Aux.InfluenceAt(u, v) * ctx.InfluenceWeight
	}
	return s + dir.Dot(ctx.DirectionBias)
}
