package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// testConfig returns the defaults shrunk to a 256x256 trail with no
// configured emitters or scene.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Trail.Width, cfg.Trail.Height = 256, 256
	cfg.Emitters = nil
	cfg.Scene.Actors = nil
	cfg.Derived.TrailW, cfg.Derived.TrailH = 256, 256
	cfg.Derived.EmitterIndex = map[string]int{}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	pool := NewWorkerPool(4)
	e, err := New(cfg, Options{Logger: quietLog, Backend: pool})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e
}

func testEmitter(name string, seed int64) systems.Emitter {
	em := systems.DefaultEmitter()
	em.Name = name
	em.Seed = seed
	em.Capacity = 1024
	return em
}

func mustAdd(t *testing.T, e *Engine, em systems.Emitter) Handle {
	t.Helper()
	res, err := e.AddEmitter(em)
	if err != nil {
		t.Fatalf("AddEmitter(%s): %v", em.Name, err)
	}
	return res.Handle
}

func mustTick(t *testing.T, e *Engine, in TickInput, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := e.Tick(in); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
}

func defaultInput(cfg *config.Config) TickInput {
	in := TickInputFromConfig(cfg)
	in.DT = 1.0 / 60
	in.Substeps = 1
	return in
}

func TestCapacitySaturates(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("burst", 1)
	em.SpawnRate = 7000
	em.LifetimeMin, em.LifetimeMax = 5, 10
	em.InitialFill = 0
	h := mustAdd(t, e, em)

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 10)

	info, ok := e.Emitter(h)
	if !ok {
		t.Fatal("emitter missing after ticks")
	}
	if info.Live != 1024 {
		t.Errorf("live = %d, want exactly 1024", info.Live)
	}
	if got := len(e.Particles(h)); got != 1024 {
		t.Errorf("particles = %d, want 1024", got)
	}
}

func TestFullDecayTrailMatchesDeposits(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("fill", 3)
	em.SpawnRate = 0
	em.InitialFill = 1
	em.DepositAmount = 0.25
	h := mustAdd(t, e, em)

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	p := e.Params()
	p.Decay = 1
	p.MaxValue = 1000
	if err := e.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 1)

	view := e.Trail()
	want := make([]float32, len(view.Data))
	positions := e.Positions(h, nil)
	if len(positions) != 1024 {
		t.Fatalf("positions = %d, want 1024", len(positions))
	}
	for _, pos := range positions {
		want[view.CellOf(pos)] += 0.25
	}
	for i := range want {
		if view.Data[i] != want[i] {
			t.Fatalf("cell %d = %v, want %v", i, view.Data[i], want[i])
		}
	}
}

func TestRemoveLeavesOtherPoolUntouched(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	a := mustAdd(t, e, testEmitter("a", 1))
	b := mustAdd(t, e, testEmitter("b", 2))
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 5)

	before := e.Particles(b)
	infoBefore, _ := e.Emitter(b)

	e.RemoveEmitter(a)
	if err := e.ApplyPending(); err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}

	if _, ok := e.Emitter(a); ok {
		t.Error("removed emitter still listed")
	}
	after := e.Particles(b)
	infoAfter, _ := e.Emitter(b)
	if infoAfter.Ticks != infoBefore.Ticks {
		t.Errorf("ticks changed: %d -> %d", infoBefore.Ticks, infoAfter.Ticks)
	}
	if len(after) != len(before) {
		t.Fatalf("live changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("particle %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestZeroDepositEmitterDoesNotAffectOthers(t *testing.T) {
	cfg := testConfig(t)
	in := defaultInput(cfg)

	ghost := testEmitter("ghost", 7)
	ghost.DepositAmount = 0
	ghost.SpawnRate = 3000

	withGhost := newTestEngine(t, cfg)
	mustAdd(t, withGhost, ghost)
	hb1 := mustAdd(t, withGhost, testEmitter("b", 2))

	alone := newTestEngine(t, cfg)
	hb2 := mustAdd(t, alone, testEmitter("b", 2))

	for _, e := range []*Engine{withGhost, alone} {
		if err := e.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		mustTick(t, e, in, 20)
	}

	p1 := withGhost.Particles(hb1)
	p2 := alone.Particles(hb2)
	if len(p1) != len(p2) {
		t.Fatalf("live differs: %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("particle %d differs: %+v vs %+v", i, p1[i], p2[i])
		}
	}
}

func TestReAddReproducesFreshPool(t *testing.T) {
	cfg := testConfig(t)
	em := testEmitter("seeded", 9)
	em.InitialFill = 0.5

	e := newTestEngine(t, cfg)
	h := mustAdd(t, e, em)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 3)

	e.RemoveEmitter(h)
	h2 := mustAdd(t, e, em)
	if h2 == h {
		t.Fatalf("handle %d reused", h)
	}
	if err := e.ApplyPending(); err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}

	fresh := newTestEngine(t, cfg)
	hf := mustAdd(t, fresh, em)
	if err := fresh.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	got := e.Particles(h2)
	want := fresh.Particles(hf)
	if len(got) != 512 || len(got) != len(want) {
		t.Fatalf("live = %d, fresh = %d, want 512", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("particle %d = %+v, fresh %+v", i, got[i], want[i])
		}
	}
}

type deadBackend struct{}

func (deadBackend) Workers() int              { return 0 }
func (deadBackend) Run(int, func(lo, hi int)) {}
func (deadBackend) Stop()                     {}

func TestUnavailableBackendDisablesEngine(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, Options{Logger: quietLog, Backend: deadBackend{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Initialize(); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Initialize = %v, want ErrBackendUnavailable", err)
	}
	if e.State() != Disabled {
		t.Errorf("state = %s, want disabled", e.State())
	}
	if _, err := e.Tick(defaultInput(cfg)); !errors.Is(err, ErrDisabled) {
		t.Errorf("Tick = %v, want ErrDisabled", err)
	}
	if _, err := e.AddEmitter(testEmitter("x", 1)); !errors.Is(err, ErrDisabled) {
		t.Errorf("AddEmitter = %v, want ErrDisabled", err)
	}
	if _, err := e.UpdateEmitter(Handle(1), testEmitter("x", 1)); !errors.Is(err, ErrDisabled) {
		t.Errorf("UpdateEmitter = %v, want ErrDisabled", err)
	}
	e.Shutdown()
	if e.State() != Disabled {
		t.Errorf("state after shutdown = %s, want disabled", e.State())
	}
}

func TestTickBeforeInitialize(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)
	if _, err := e.Tick(defaultInput(cfg)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Tick = %v, want ErrNotInitialized", err)
	}
}

func TestClampedCapacityIsReported(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("odd", 1)
	em.Capacity = 100
	res, err := e.AddEmitter(em)
	if err != nil {
		t.Fatalf("AddEmitter: %v", err)
	}
	if !res.Clamped || res.Capacity != 96 {
		t.Errorf("result = %+v, want clamped to 96", res)
	}

	em.Capacity = 10
	res, err = e.AddEmitter(em)
	if err != nil {
		t.Fatalf("AddEmitter: %v", err)
	}
	if !res.Clamped || res.Capacity != 32 {
		t.Errorf("result = %+v, want raised to 32", res)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := len(e.ClampedHandles()); got != 2 {
		t.Errorf("clamped handles = %d, want 2", got)
	}
}

func TestInvalidInputsRejected(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	p := e.Params()
	p.Decay = 2
	if err := e.SetParams(p); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("SetParams(decay=2) = %v, want ErrInvalidConfig", err)
	}

	em := testEmitter("bad", 1)
	em.LifetimeMin = 0
	if _, err := e.AddEmitter(em); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("AddEmitter(lifetime 0) = %v, want ErrInvalidConfig", err)
	}

	if err := e.Resize(100, 256); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Resize(100, 256) = %v, want ErrInvalidConfig", err)
	}
	if err := e.Resize(0, 256); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Resize(0, 256) = %v, want ErrInvalidConfig", err)
	}

	if err := e.BindStimuli(&systems.Grid{W: 2, H: 2, C: 1, Data: make([]float32, 4)}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("BindStimuli(1 channel) = %v, want ErrInvalidConfig", err)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	in := defaultInput(cfg)
	in.DT = -1
	if _, err := e.Tick(in); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Tick(dt=-1) = %v, want ErrInvalidConfig", err)
	}
	in = defaultInput(cfg)
	in.Substeps = 0
	if _, err := e.Tick(in); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Tick(substeps=0) = %v, want ErrInvalidConfig", err)
	}
	if e.TickCount() != 0 {
		t.Errorf("tick count = %d after rejected inputs, want 0", e.TickCount())
	}
}

func TestTrailMassBounded(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)
	mustAdd(t, e, testEmitter("a", 1))
	mustAdd(t, e, testEmitter("b", 2))
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	in := defaultInput(cfg)
	for i := 0; i < 30; i++ {
		s, err := e.Tick(in)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		limit := s.TrailBefore + s.Deposited
		if s.TrailAfter > limit+1e-3*math.Max(1, limit) {
			t.Fatalf("tick %d: after %v exceeds before %v + deposited %v", s.Tick, s.TrailAfter, s.TrailBefore, s.Deposited)
		}
		if s.Tick != uint64(i+1) {
			t.Errorf("tick = %d, want %d", s.Tick, i+1)
		}
	}
	if got, want := e.SimTime(), 30.0/60; math.Abs(got-want) > 1e-6 {
		t.Errorf("sim time = %v, want %v", got, want)
	}
}

func TestDebugRasterCountsLiveParticles(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)
	mustAdd(t, e, testEmitter("a", 1))
	e.SetDebug(true)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 4)

	raster := e.DebugRaster()
	if len(raster) != 256*256 {
		t.Fatalf("raster len = %d", len(raster))
	}
	var sum int
	for _, c := range raster {
		sum += int(c)
	}
	if sum != e.LiveTotal() {
		t.Errorf("raster sum = %d, live = %d", sum, e.LiveTotal())
	}

	e.SetDebug(false)
	mustTick(t, e, defaultInput(cfg), 1)
	if e.DebugRaster() != nil {
		t.Error("raster still allocated after disabling")
	}
}

func TestResizeReallocatesTrail(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)
	mustAdd(t, e, testEmitter("a", 1))
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustTick(t, e, defaultInput(cfg), 2)

	if err := e.Resize(8, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := e.ApplyPending(); err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}
	v := e.Trail()
	if v.W != 32 || v.H != 64 {
		t.Errorf("trail = %dx%d, want 32x64", v.W, v.H)
	}
	if v.Total() != 0 {
		t.Errorf("resized trail total = %v, want 0", v.Total())
	}
	mustTick(t, e, defaultInput(cfg), 1)
}

func TestMoveEmitterDistanceSpawn(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("trail", 4)
	em.SpawnMode = systems.SpawnPerDistance
	em.SpawnRate = 1000 // per field unit
	em.InitialFill = 0
	h := mustAdd(t, e, em)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	in := defaultInput(cfg)
	s, err := e.Tick(in)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s.Spawned != 0 {
		t.Errorf("stationary distance emitter spawned %d", s.Spawned)
	}

	e.MoveEmitter(h, mgl32.Vec2{0.6, 0.5})
	s, err = e.Tick(in)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s.Spawned < 99 || s.Spawned > 100 {
		t.Errorf("spawned = %d after moving 0.1, want ~100", s.Spawned)
	}
}

func TestWorkerPoolCoversRange(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Stop()

	for _, n := range []int{0, 1, 63, 64, 1000, 4099} {
		hits := make([]atomic.Int32, n)
		p.Run(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				hits[i].Add(1)
			}
		})
		for i := range hits {
			if c := hits[i].Load(); c != 1 {
				t.Fatalf("n=%d: index %d visited %d times", n, i, c)
			}
		}
	}
}

func TestRegistryCancelsPendingAdd(t *testing.T) {
	r := NewRegistry(32, 65535, quietLog)
	res, err := r.Add(testEmitter("a", 1))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	r.Move(res.Handle, mgl32.Vec2{0.1, 0.1})
	r.Remove(res.Handle)
	if r.Pending() {
		t.Error("ops still pending after cancelling the add")
	}

	allocs := 0
	added, removed := r.Apply(func(*Entry) { allocs++ })
	if added != 0 || removed != 0 || allocs != 0 || r.Len() != 0 {
		t.Errorf("apply: added=%d removed=%d allocs=%d len=%d", added, removed, allocs, r.Len())
	}

	// Unknown removes are no-ops
	r.Remove(999)
	r.Apply(func(*Entry) {})
	if r.Len() != 0 {
		t.Errorf("len = %d after unknown remove", r.Len())
	}
}

func TestSubstepsRunMovePerSubstepAndDecayOnce(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("steps", 5)
	em.SpawnRate = 0
	em.InitialFill = 1
	em.DepositAmount = 0
	h := mustAdd(t, e, em)

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	p := e.Params()
	p.Decay = 0.5
	p.Diffusion = 0
	p.MaxValue = 1000
	p.AdvectionStrength = 0
	if err := e.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if err := e.ApplyPending(); err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}
	front := e.trail.Front()
	for i := range front {
		front[i] = 1
	}

	before, _ := e.Emitter(h)
	in := defaultInput(cfg)
	in.Substeps = 3
	mustTick(t, e, in, 1)

	after, _ := e.Emitter(h)
	if got := after.Ticks - before.Ticks; got != 3 {
		t.Errorf("pool ticks advanced by %d, want 3", got)
	}
	view := e.Trail()
	for i, v := range view.Data {
		if v != 0.5 {
			t.Fatalf("cell %d = %v, want 0.5 after a single decay", i, v)
		}
	}
}

func TestAdvectionFollowsDecay(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg)

	em := testEmitter("drift", 9)
	em.SpawnRate = 0
	em.InitialFill = 1
	em.DepositAmount = 0.25
	h := mustAdd(t, e, em)

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	p := e.Params()
	p.Decay = 1
	p.Diffusion = 0
	p.MaxValue = 1000
	p.AdvectionStrength = 1
	p.FluidDrift = 0
	if err := e.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	// One texel per tick along +x everywhere.
	if err := e.BindFluid(&systems.Grid{W: 1, H: 1, C: 2, Data: []float32{1, 0}}); err != nil {
		t.Fatalf("BindFluid: %v", err)
	}

	in := defaultInput(cfg)
	in.UseExternalVelocity = true
	mustTick(t, e, in, 1)

	view := e.Trail()
	deposits := make([]float32, len(view.Data))
	for _, pos := range e.Positions(h, nil) {
		deposits[view.CellOf(pos)] += 0.25
	}
	// Full decay followed by advection leaves the deposits shifted one
	// column. The reverse order would have wiped the advected field.
	for y := 0; y < view.H; y++ {
		for x := 0; x < view.W; x++ {
			want := deposits[y*view.W+(x-1+view.W)%view.W]
			got := view.Data[y*view.W+x]
			if math.Abs(float64(got-want)) > 1e-4 {
				t.Fatalf("cell (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}
