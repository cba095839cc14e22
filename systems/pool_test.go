package systems

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testEmitter() Emitter {
	em := DefaultEmitter()
	em.Capacity = 256
	em.LifetimeMin = 1
	em.LifetimeMax = 2
	return em
}

func testSpawnContext(em *Emitter) *SpawnContext {
	ep := em.Params(false)
	return &SpawnContext{
		Emitter:   &ep,
		Aux:       NeutralAux(),
		FieldSize: mgl32.Vec2{1, 1},
	}
}

func testMoveContext(tr *Trail, sc *SpawnContext) *MoveContext {
	return &MoveContext{
		Trail:   tr,
		Aux:     sc.Aux,
		Emitter: sc.Emitter,
		DT:      1.0 / 60.0,
	}
}

func step(p *Pool, sc *SpawnContext, mc *MoveContext, dt float32) {
	p.Spawn(sc, p.SpawnCount(sc.Emitter, sc.FieldSize, dt))
	p.Move(mc, 0, len(p.ActiveList))
	p.EndMovePass()
	p.Compact()
}

func TestNewPoolIsAllDead(t *testing.T) {
	p := NewPool(64, 1)
	if p.Capacity() != 64 {
		t.Errorf("expected capacity 64, got %d", p.Capacity())
	}
	if p.Live() != 0 {
		t.Errorf("expected no live particles, got %d", p.Live())
	}
	for i := 0; i < 64; i++ {
		if p.Alive(i) {
			t.Fatalf("slot %d should start dead", i)
		}
	}
	if len(p.FreeList) != 64 {
		t.Errorf("expected 64 free slots, got %d", len(p.FreeList))
	}
}

func TestSpawnNeverExceedsCapacity(t *testing.T) {
	for _, recycle := range []bool{false, true} {
		em := testEmitter()
		em.RecycleOldest = recycle
		sc := testSpawnContext(&em)
		p := NewPool(em.Capacity, 3)

		for _, n := range []int{10, 100, 1000, 0, 5000, 1} {
			p.Spawn(sc, n)
			if p.Live() > p.Capacity() {
				t.Fatalf("recycle=%v: live %d exceeds capacity %d", recycle, p.Live(), p.Capacity())
			}
			live := 0
			for i := 0; i < p.Capacity(); i++ {
				if p.Alive(i) {
					live++
				}
			}
			if live != p.Live() {
				t.Fatalf("recycle=%v: active list %d disagrees with live slots %d", recycle, p.Live(), live)
			}
		}
		if p.Live() != p.Capacity() {
			t.Errorf("recycle=%v: expected a full pool, got %d", recycle, p.Live())
		}
	}
}

func TestSpawnDropsExcessWithoutRecycling(t *testing.T) {
	em := testEmitter()
	sc := testSpawnContext(&em)
	p := NewPool(32, 1)

	if got := p.Spawn(sc, 40); got != 32 {
		t.Errorf("expected 32 spawned into an empty pool of 32, got %d", got)
	}
	if got := p.Spawn(sc, 5); got != 0 {
		t.Errorf("expected excess spawns to be dropped, got %d", got)
	}
}

func TestRecycleOldestReplacesLargestAgeFraction(t *testing.T) {
	em := testEmitter()
	em.RecycleOldest = true
	sc := testSpawnContext(&em)
	p := NewPool(32, 1)
	p.Spawn(sc, 32)

	for i := 0; i < 32; i++ {
		p.Lifetime[i] = 10
		p.Age[i] = 1
	}
	p.Age[17] = 9

	if got := p.Spawn(sc, 1); got != 1 {
		t.Fatalf("expected one recycled spawn, got %d", got)
	}
	if p.Age[17] != 0 {
		t.Errorf("expected the oldest slot to be respawned with age 0, got %f", p.Age[17])
	}
	if p.Live() != 32 {
		t.Errorf("recycling must not change the live count, got %d", p.Live())
	}
}

func TestRecycleSkipsSlotsFilledInSameCall(t *testing.T) {
	em := testEmitter()
	em.RecycleOldest = true
	sc := testSpawnContext(&em)
	p := NewPool(32, 1)

	if got := p.Spawn(sc, 100); got != 32 {
		t.Errorf("empty pool of 32 reported %d spawned", got)
	}
	if p.Live() != 32 {
		t.Errorf("expected 32 live, got %d", p.Live())
	}
	for _, i := range p.ActiveList {
		p.Age[i] = 0.5
	}

	// A second call recycles at most what was live before it.
	if got := p.Spawn(sc, 100); got != 32 {
		t.Errorf("full pool recycled %d, want 32", got)
	}
	for _, i := range p.ActiveList {
		if p.Age[i] != 0 {
			t.Fatalf("slot %d not recycled (age %f)", i, p.Age[i])
		}
	}
}

func TestSpawnPositionsInsideAnnulusSector(t *testing.T) {
	em := testEmitter()
	em.Radius = 0.2
	em.RadiusWidth = 0.05
	em.ArcLength = 90
	em.ArcOffset = 0
	sc := testSpawnContext(&em)
	p := NewPool(256, 9)
	p.Spawn(sc, 256)

	for _, i := range p.ActiveList {
		d := WrapDelta(em.Position, p.Pos[i], sc.FieldSize)
		r := d.Len()
		if r < 0.15-1e-3 || r > 0.2+1e-3 {
			t.Fatalf("particle %d at radius %f outside annulus [0.15, 0.2]", i, r)
		}
		a := math.Atan2(float64(d[1]), float64(d[0])) * 180 / math.Pi
		if a < -45.5 || a > 45.5 {
			t.Fatalf("particle %d at angle %f outside sector [-45, 45]", i, a)
		}
	}
}

func TestSpawnInsideStimuliPrefersStimulatedCells(t *testing.T) {
	em := testEmitter()
	em.Position = mgl32.Vec2{0.5, 0.5}
	em.Radius = 0.4
	em.SpawnInsideStimuli = true
	em.StimuliThreshold = 0.5
	sc := testSpawnContext(&em)

	stim := NewGrid(2, 1, 4)
	stim.Set(1, 0, 0, 1)
	stim.Set(1, 0, 1, 1)
	stim.Set(1, 0, 2, 1)
	stim.Set(1, 0, 3, 1)
	sc.Aux.Stimuli = stim

	p := NewPool(256, 4)
	p.Spawn(sc, 256)

	inside := 0
	for _, i := range p.ActiveList {
		if p.Pos[i][0] >= 0.5 {
			inside++
		}
	}
	if inside < 240 {
		t.Errorf("expected nearly all particles in the stimulated half, got %d/256", inside)
	}
}

func TestSpawnInsideStimuliTerminatesWithEmptyStimuli(t *testing.T) {
	em := testEmitter()
	em.SpawnInsideStimuli = true
	em.StimuliThreshold = 1
	sc := testSpawnContext(&em)
	p := NewPool(64, 2)

	if got := p.Spawn(sc, 64); got != 64 {
		t.Errorf("expected retry exhaustion to accept the last sample, spawned %d", got)
	}
}

func TestSpawnCountAccumulatesFractions(t *testing.T) {
	em := testEmitter()
	em.SpawnRate = 30
	ep := em.Params(false)
	p := NewPool(64, 1)

	total := 0
	for i := 0; i < 60; i++ {
		total += p.SpawnCount(&ep, mgl32.Vec2{1, 1}, 1.0/60.0)
	}
	if total < 29 || total > 30 {
		t.Errorf("expected ~30 spawns over one second at rate 30, got %d", total)
	}
}

func TestSpawnCountDistanceMode(t *testing.T) {
	em := testEmitter()
	em.SpawnMode = SpawnPerDistance
	em.SpawnRate = 100
	em.PreviousPosition = mgl32.Vec2{0.95, 0.5}
	em.Position = mgl32.Vec2{0.05, 0.5}
	ep := em.Params(false)
	p := NewPool(64, 1)

	// The shortest toroidal path is 0.1 units.
	if got := p.SpawnCount(&ep, mgl32.Vec2{1, 1}, 1); got < 9 || got > 10 {
		t.Errorf("expected ~10 spawns for 0.1 units at 100/unit, got %d", got)
	}
	em.PreviousPosition = em.Position
	ep = em.Params(false)
	if got := p.SpawnCount(&ep, mgl32.Vec2{1, 1}, 1); got > 1 {
		t.Errorf("expected no spawns for a stationary emitter, got %d", got)
	}
}

func TestSameSeedReproducesPool(t *testing.T) {
	em := testEmitter()
	em.SecondaryColorProbability = 0.5
	em.SecondaryColor = Color{1, 0, 0, 1}
	sc := testSpawnContext(&em)

	a := NewPool(128, 77)
	b := NewPool(128, 77)
	a.Spawn(sc, 100)
	b.Spawn(sc, 100)

	sa, sb := a.Snapshot(), b.Snapshot()
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("slot %d differs between identically seeded pools", i)
		}
	}
}

func TestAgeIsMonotonicUntilRespawn(t *testing.T) {
	em := testEmitter()
	em.LifetimeMin = 0.1
	em.LifetimeMax = 0.3
	em.SpawnRate = 3000
	sc := testSpawnContext(&em)
	tr := NewTrail(32, 32, sc.FieldSize)
	mc := testMoveContext(tr, sc)
	p := NewPool(em.Capacity, 5)

	dt := mc.DT
	prev := make([]float32, p.Capacity())
	for tick := 0; tick < 120; tick++ {
		step(p, sc, mc, dt)
		for i := 0; i < p.Capacity(); i++ {
			age := p.Age[i]
			if age < prev[i] && age > dt+1e-6 {
				t.Fatalf("tick %d slot %d: age went from %f to %f without a respawn", tick, i, prev[i], age)
			}
			prev[i] = age
		}
	}
}

func TestParticleDiesAtLifetime(t *testing.T) {
	em := testEmitter()
	em.LifetimeMin = 0.05
	em.LifetimeMax = 0.05
	sc := testSpawnContext(&em)
	tr := NewTrail(8, 8, sc.FieldSize)
	mc := testMoveContext(tr, sc)
	mc.DT = 0.02

	p := NewPool(32, 1)
	p.Spawn(sc, 1)
	for i := 0; i < 2; i++ {
		p.Move(mc, 0, p.Live())
		p.Compact()
	}
	if p.Live() != 1 {
		t.Fatalf("expected the particle alive at age 0.04, live=%d", p.Live())
	}
	p.Move(mc, 0, p.Live())
	if died := p.Compact(); died != 1 {
		t.Errorf("expected the particle to die at age 0.06 >= 0.05, died=%d", died)
	}
	if len(p.FreeList) != 32 {
		t.Errorf("expected the slot back on the free list, free=%d", len(p.FreeList))
	}
}

func TestMoveDepositsAtNewCell(t *testing.T) {
	em := testEmitter()
	em.DepositAmount = 0.5
	sc := testSpawnContext(&em)
	tr := NewTrail(16, 16, sc.FieldSize)
	mc := testMoveContext(tr, sc)

	p := NewPool(32, 1)
	p.Spawn(sc, 1)
	i := p.ActiveList[0]
	p.Move(mc, 0, 1)

	cell := tr.CellOf(p.Pos[i])
	if got := tr.PendingDeposit(cell); got != 0.5 {
		t.Errorf("expected deposit 0.5 at the particle's new cell, got %f", got)
	}
	if got := tr.PendingTotal(); got != 0.5 {
		t.Errorf("expected a single deposit, total %f", got)
	}
}

func TestMoveGoesStraightOnTies(t *testing.T) {
	em := testEmitter()
	sc := testSpawnContext(&em)
	tr := NewTrail(64, 64, sc.FieldSize)
	mc := testMoveContext(tr, sc)

	p := NewPool(32, 1)
	p.Spawn(sc, 1)
	i := p.ActiveList[0]
	h := p.Heading[i]
	p.Move(mc, 0, 1)

	if math.Abs(float64(p.Heading[i]-h)) > 1e-6 {
		t.Errorf("expected heading %f unchanged on a flat field, got %f", h, p.Heading[i])
	}
}

func TestMoveTurnsTowardStrongerSensor(t *testing.T) {
	em := testEmitter()
	sc := testSpawnContext(&em)
	tr := NewTrail(128, 128, sc.FieldSize)
	mc := testMoveContext(tr, sc)

	p := NewPool(32, 1)
	p.Spawn(sc, 1)
	i := p.ActiveList[0]
	p.Pos[i] = mgl32.Vec2{0.5, 0.5}
	p.Heading[i] = 0

	// Light up the left sensor only.
	sa := sc.Emitter.SensorAngleRad
	left := p.Pos[i].Add(mgl32.Vec2{fastCos(sa), fastSin(sa)}.Mul(em.SensorOffset))
	tr.Front()[tr.CellOf(left)] = 5

	p.Move(mc, 0, 1)
	want := sc.Emitter.RotationAngleRad
	if math.Abs(float64(p.Heading[i]-want)) > 1e-5 {
		t.Errorf("expected a left turn to %f, got heading %f", want, p.Heading[i])
	}
}

func TestMoveWrapsPositions(t *testing.T) {
	em := testEmitter()
	em.StepSize = 6 // 0.1 units per tick at 60 Hz
	sc := testSpawnContext(&em)
	tr := NewTrail(16, 16, sc.FieldSize)
	mc := testMoveContext(tr, sc)

	p := NewPool(32, 1)
	p.Spawn(sc, 1)
	i := p.ActiveList[0]
	p.Pos[i] = mgl32.Vec2{0.97, 0.5}
	p.Heading[i] = 0
	p.Move(mc, 0, 1)

	if x := p.Pos[i][0]; x < 0 || x >= 0.1 {
		t.Errorf("expected x to wrap to ~0.07, got %f", x)
	}
}

func BenchmarkMove(b *testing.B) {
	em := testEmitter()
	em.Capacity = 1 << 16
	sc := testSpawnContext(&em)
	tr := NewTrail(256, 256, sc.FieldSize)
	mc := testMoveContext(tr, sc)
	p := NewPool(em.Capacity, 1)
	p.Spawn(sc, em.Capacity)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Move(mc, 0, p.Live())
	}
}

func TestMoveOptionalBehaviours(t *testing.T) {
	green := mgl32.Vec4{0, 1, 0, 1}
	greenLum := Luminance(green)

	type fixture struct {
		p  *Pool
		i  int
		tr *Trail
		sc *SpawnContext
		mc *MoveContext
	}
	// move places the particle at the field centre heading +x and runs one
	// pass. With an empty trail and no bias it goes straight.
	move := func(f *fixture) {
		f.p.Pos[f.i] = mgl32.Vec2{0.5, 0.5}
		f.p.Heading[f.i] = 0
		f.p.Move(f.mc, 0, f.p.Live())
	}

	cases := []struct {
		name      string
		configure func(em *Emitter)
		stimuli   bool // uniform green stimuli field
		blend     bool
		check     func(t *testing.T, f *fixture)
	}{
		{
			name: "continuous color over life",
			configure: func(em *Emitter) {
				em.UseColorOverLife = true
				em.ColorOverLifeContinuous = true
				em.ColorOverLife = Gradient{Keys: []GradientKey{{T: 0, Color: "#ff0000"}, {T: 1, Color: "#0000ff"}}}
			},
			check: func(t *testing.T, f *fixture) {
				if c := f.p.Color[f.i]; !near(c, mgl32.Vec4{1, 0, 0, 1}, 1e-4) {
					t.Fatalf("spawn color %v, want the gradient start", c)
				}
				f.p.Lifetime[f.i] = 1
				f.p.Age[f.i] = 0.5 - f.mc.DT
				move(f)
				if c := f.p.Color[f.i]; !near(c, mgl32.Vec4{0.5, 0, 0.5, 1}, 2e-2) {
					t.Errorf("mid-life color %v, want halfway red to blue", c)
				}
			},
		},
		{
			name:    "stimuli color blend",
			stimuli: true,
			blend:   true,
			check: func(t *testing.T, f *fixture) {
				move(f)
				blend := greenLum * colorBlendRate * f.mc.DT
				want := mgl32.Vec4{1 - blend, 1, 1 - blend, 1}
				if c := f.p.Color[f.i]; !near(c, want, 1e-4) {
					t.Errorf("color %v, want %v", c, want)
				}
				if f.p.Intensity[f.i] != greenLum {
					t.Errorf("cached intensity %f, want %f", f.p.Intensity[f.i], greenLum)
				}
			},
		},
		{
			name: "align to motion",
			configure: func(em *Emitter) {
				em.AlignToMotion = true
				em.SensorAngle = 0 // no heading jitter
				em.PreviousPosition = mgl32.Vec2{0.5, 0.4}
			},
			check: func(t *testing.T, f *fixture) {
				if h := f.p.Heading[f.i]; math.Abs(float64(h)-math.Pi/2) > 1e-5 {
					t.Errorf("heading %f, want the emitter's motion direction %f", h, math.Pi/2)
				}
			},
		},
		{
			name:      "intensity scaled deposit",
			configure: func(em *Emitter) { em.IntensityScaledDeposit = true },
			stimuli:   true,
			check: func(t *testing.T, f *fixture) {
				move(f)
				got := f.tr.PendingDeposit(f.tr.CellOf(f.p.Pos[f.i]))
				want := f.sc.Emitter.DepositAmount * greenLum
				if math.Abs(float64(got-want)) > 1e-4 {
					t.Errorf("deposit %f, want %f", got, want)
				}
			},
		},
		{
			name:      "velocity residue",
			configure: func(em *Emitter) { em.VelocityResidue = 0.5 },
			check: func(t *testing.T, f *fixture) {
				move(f)
				if !f.tr.HasVelocity() {
					t.Fatal("move left no velocity residue")
				}
				cell := f.tr.CellOf(f.p.Pos[f.i])
				f.tr.DecayVelocity(1, 0, f.tr.Cells())
				vel := f.tr.Velocity().Data
				if vx, vy := vel[2*cell], vel[2*cell+1]; math.Abs(float64(vx-0.5)) > 1e-4 || math.Abs(float64(vy)) > 1e-4 {
					t.Errorf("velocity (%f, %f), want (0.5, 0)", vx, vy)
				}
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			em := testEmitter()
			em.LifetimeMin, em.LifetimeMax = 10, 10
			if c.configure != nil {
				c.configure(&em)
			}
			sc := testSpawnContext(&em)
			if c.stimuli {
				g := NewGrid(1, 1, 4)
				copy(g.Data, green[:])
				sc.Aux = AuxFields{Stimuli: g}.WithDefaults()
			}
			if em.UseColorOverLife {
				lut, err := BuildColorLUT(em.ColorOverLife, DefaultLUTSamples)
				if err != nil {
					t.Fatal(err)
				}
				sc.LUT = lut
			}
			tr := NewTrail(64, 64, sc.FieldSize)
			mc := testMoveContext(tr, sc)
			mc.LUT = sc.LUT
			mc.StimuliColorBlend = c.blend

			p := NewPool(32, 1)
			if p.Spawn(sc, 1) != 1 {
				t.Fatal("spawn failed")
			}
			c.check(t, &fixture{p: p, i: p.ActiveList[0], tr: tr, sc: sc, mc: mc})
		})
	}
}
