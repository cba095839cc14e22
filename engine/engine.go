// Package engine runs the Physarum simulation. It owns the trail field and
// the emitter registry, and advances both through an ordered stage pipeline
// once per Tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
	"github.com/pthm-cable/physarum/telemetry"
)

// ErrInvalidConfig is returned for configuration and parameter values no
// tick could run with.
var ErrInvalidConfig = config.ErrInvalidConfig

var (
	// ErrBackendUnavailable means the compute backend cannot run stages.
	// The engine disables itself and never ticks again.
	ErrBackendUnavailable = errors.New("engine: compute backend unavailable")
	// ErrDisabled is returned by every operation of a disabled engine.
	ErrDisabled = errors.New("engine: disabled")
	// ErrNotInitialized is returned by Tick before Initialize.
	ErrNotInitialized = errors.New("engine: not initialized")
	// ErrBusy is returned when Tick is re-entered.
	ErrBusy = errors.New("engine: tick in progress")
)

// State is the engine lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Ready
	Stepping
	Disabled
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Stepping:
		return "stepping"
	case Disabled:
		return "disabled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Options configures an engine beyond its config file.
type Options struct {
	Logger  *slog.Logger             // default slog.Default()
	Backend Backend                  // default NewWorkerPool(cfg.Engine.Workers)
	Perf    *telemetry.PerfCollector // optional per-stage timing
}

// Engine is the simulation stepper. Initialize, Tick, Shutdown and the
// output accessors must be called from one owning goroutine. Emitter
// mutations, SetParams and field bindings may be called from anywhere; they
// are queued and applied between ticks.
type Engine struct {
	cfg     *config.Config
	log     *slog.Logger
	backend Backend
	perf    *telemetry.PerfCollector
	state   atomic.Int32

	mu            sync.Mutex
	pendingParams *Params
	pendingAux    map[systems.FieldKind]*systems.Grid
	pendingResize *[2]int
	pendingDebug  *bool

	registry *Registry
	params   Params
	trail    *systems.Trail
	aux      systems.AuxFields
	raster   []uint32
	debug    bool

	seed       int64
	lutSamples int
	tick       uint64
	simTime    float64

	// per-tick scratch
	offsets []int
	spawned []int
	died    []int
	moves   []systems.MoveContext
	eps     []systems.EmitterParams
}

// New creates an uninitialized engine. cfg must outlive the engine and is
// only read.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params := ParamsFromConfig(cfg)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	backend := opts.Backend
	if backend == nil {
		backend = NewWorkerPool(cfg.Engine.Workers)
	}
	lutSamples := cfg.Engine.ColorLUTSamples
	if lutSamples < 2 {
		lutSamples = systems.DefaultLUTSamples
	}

	return &Engine{
		cfg:        cfg,
		log:        log,
		backend:    backend,
		perf:       opts.Perf,
		registry:   NewRegistry(cfg.Engine.GroupSize, cfg.Engine.MaxDispatchGroups, log),
		params:     params,
		debug:      cfg.Engine.DebugParticles,
		seed:       cfg.Engine.Seed,
		lutSamples: lutSamples,
	}, nil
}

// State returns the lifecycle state. Safe for concurrent use.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Initialize validates the backend, allocates the trail and auxiliary
// fields, and applies queued registrations, seeding their pools. Calling it
// on a ready engine does nothing.
func (e *Engine) Initialize() error {
	switch e.State() {
	case Ready:
		return nil
	case Stepping:
		return ErrBusy
	case Disabled:
		return ErrDisabled
	}

	if e.backend == nil || e.backend.Workers() < 1 {
		e.setState(Disabled)
		e.log.Error("engine disabled", "error", ErrBackendUnavailable)
		return ErrBackendUnavailable
	}

	aux, err := loadAux(e.cfg)
	if err != nil {
		return fmt.Errorf("loading auxiliary fields: %w", err)
	}
	e.aux = aux.WithDefaults()

	d := e.cfg.Derived
	e.trail = systems.NewTrail(d.TrailW, d.TrailH, d.TrailSize)
	e.allocRaster()
	e.applyPending()

	e.setState(Ready)
	e.log.Info("engine initialized",
		"trail_w", e.trail.W,
		"trail_h", e.trail.H,
		"workers", e.backend.Workers(),
		"emitters", e.registry.Len(),
		"stimuli", !e.aux.Stimuli.IsNeutral(),
		"influence", !e.aux.Influence.IsNeutral(),
		"fluid", !e.aux.Fluid.IsNeutral(),
	)
	return nil
}

// Shutdown stops the workers and releases pools and fields. A disabled
// engine stays disabled; otherwise it returns to Uninitialized and may be
// initialized again.
func (e *Engine) Shutdown() {
	if e.backend != nil {
		e.backend.Stop()
	}
	e.registry.Clear()
	e.trail = nil
	e.raster = nil
	e.aux = systems.AuxFields{}
	e.tick = 0
	e.simTime = 0
	if e.State() != Disabled {
		e.setState(Uninitialized)
	}
	e.log.Info("engine shut down")
}

// AddEmitter validates em and queues its registration. The pool is
// allocated and seeded at Initialize or the start of the next tick. A
// capacity outside the dispatch limits is clamped, logged and flagged in
// the result; it never fails the add.
func (e *Engine) AddEmitter(em systems.Emitter) (AddResult, error) {
	if e.State() == Disabled {
		return AddResult{}, ErrDisabled
	}
	if err := e.checkGradient(em); err != nil {
		return AddResult{}, err
	}
	res, err := e.registry.Add(em)
	if err != nil {
		return AddResult{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return res, nil
}

// RemoveEmitter queues removal of h. Unknown handles are ignored.
func (e *Engine) RemoveEmitter(h Handle) { e.registry.Remove(h) }

// MoveEmitter queues a new position for h.
func (e *Engine) MoveEmitter(h Handle, pos mgl32.Vec2) { e.registry.Move(h, pos) }

// UpdateEmitter queues a configuration change for h. The emitter keeps its
// current position; a different capacity reallocates and reseeds the pool.
func (e *Engine) UpdateEmitter(h Handle, em systems.Emitter) (AddResult, error) {
	if e.State() == Disabled {
		return AddResult{}, ErrDisabled
	}
	if err := e.checkGradient(em); err != nil {
		return AddResult{}, err
	}
	res, err := e.registry.Update(h, em)
	if err != nil {
		return AddResult{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return res, nil
}

func (e *Engine) checkGradient(em systems.Emitter) error {
	if !em.UseColorOverLife {
		return nil
	}
	if _, err := systems.BuildColorLUT(em.ColorOverLife, 2); err != nil {
		return fmt.Errorf("%w: emitter %q color over life: %w", ErrInvalidConfig, em.Name, err)
	}
	return nil
}

// SetParams queues new engine parameters for the next tick.
func (e *Engine) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.pendingParams = &p
	e.mu.Unlock()
	return nil
}

// Params returns the parameters in effect.
func (e *Engine) Params() Params { return e.params }

// Bind queues g as the auxiliary field of the given kind. A nil grid binds
// the neutral field. Bindings are picked up at the start of each substep.
func (e *Engine) Bind(kind systems.FieldKind, g *systems.Grid) error {
	if g != nil {
		if g.C != kind.Channels() {
			return fmt.Errorf("%w: %s field needs %d channels, got %d", ErrInvalidConfig, kind, kind.Channels(), g.C)
		}
		if g.W <= 0 || g.H <= 0 || len(g.Data) != g.W*g.H*g.C {
			return fmt.Errorf("%w: malformed %s field %dx%d", ErrInvalidConfig, kind, g.W, g.H)
		}
	}
	e.mu.Lock()
	if e.pendingAux == nil {
		e.pendingAux = make(map[systems.FieldKind]*systems.Grid)
	}
	e.pendingAux[kind] = g
	e.mu.Unlock()
	return nil
}

// BindStimuli binds the stimuli field.
func (e *Engine) BindStimuli(g *systems.Grid) error { return e.Bind(systems.FieldStimuli, g) }

// BindInfluence binds the influence field.
func (e *Engine) BindInfluence(g *systems.Grid) error { return e.Bind(systems.FieldInfluence, g) }

// BindFluid binds the fluid field.
func (e *Engine) BindFluid(g *systems.Grid) error { return e.Bind(systems.FieldFluid, g) }

// SetDebug toggles the particle occupancy raster from the next tick.
func (e *Engine) SetDebug(on bool) {
	e.mu.Lock()
	e.pendingDebug = &on
	e.mu.Unlock()
}

// Resize queues a new trail resolution. The trail and velocity fields are
// reallocated empty at the start of the next tick.
func (e *Engine) Resize(w, h int) error {
	g := e.cfg.Engine.GroupSize
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: trail resolution %dx%d must be positive", ErrInvalidConfig, w, h)
	}
	w, h = max(w, g), max(h, g)
	if w%g != 0 || h%g != 0 {
		return fmt.Errorf("%w: trail resolution %dx%d must be a multiple of %d", ErrInvalidConfig, w, h, g)
	}
	e.mu.Lock()
	e.pendingResize = &[2]int{w, h}
	e.mu.Unlock()
	return nil
}

// ApplyPending applies queued registry mutations, parameters and bindings
// without ticking.
func (e *Engine) ApplyPending() error {
	switch e.State() {
	case Disabled:
		return ErrDisabled
	case Uninitialized:
		return ErrNotInitialized
	case Stepping:
		return ErrBusy
	}
	e.applyPending()
	return nil
}

func (e *Engine) applyPending() {
	e.mu.Lock()
	params := e.pendingParams
	resize := e.pendingResize
	debug := e.pendingDebug
	e.pendingParams, e.pendingResize, e.pendingDebug = nil, nil, nil
	e.mu.Unlock()

	if params != nil {
		e.params = *params
		e.log.Info("engine params updated", "decay", params.Decay, "diffusion", params.Diffusion)
	}
	if resize != nil && (resize[0] != e.trail.W || resize[1] != e.trail.H) {
		e.trail = systems.NewTrail(resize[0], resize[1], e.trail.Size)
		e.log.Info("trail resized", "trail_w", resize[0], "trail_h", resize[1])
	}
	if debug != nil {
		e.debug = *debug
	}
	if resize != nil || debug != nil {
		e.allocRaster()
	}
	e.refreshAux()
	e.registry.Apply(e.allocEntry)
}

// refreshAux swaps in queued field bindings.
func (e *Engine) refreshAux() {
	e.mu.Lock()
	bind := e.pendingAux
	e.pendingAux = nil
	e.mu.Unlock()

	for kind, g := range bind {
		switch kind {
		case systems.FieldStimuli:
			e.aux.Stimuli = g
		case systems.FieldInfluence:
			e.aux.Influence = g
		case systems.FieldFluid:
			e.aux.Fluid = g
		}
		e.log.Debug("field bound", "field", kind.String(), "neutral", g == nil)
	}
	if bind != nil {
		e.aux = e.aux.WithDefaults()
	}
}

func (e *Engine) allocRaster() {
	if !e.debug {
		e.raster = nil
		return
	}
	if n := e.trail.Cells(); len(e.raster) != n {
		e.raster = make([]uint32, n)
	}
}

// allocEntry builds the entry's color table and, when it has no pool yet,
// allocates and seeds one.
func (e *Engine) allocEntry(en *Entry) {
	if en.Emitter.UseColorOverLife {
		lut, err := systems.BuildColorLUT(en.Emitter.ColorOverLife, e.lutSamples)
		if err != nil {
			e.log.Warn("color over life disabled", "emitter", en.Emitter.Name, "error", err)
		}
		en.LUT = lut
	}
	if en.Pool != nil {
		return
	}

	en.Pool = systems.NewPool(en.Capacity, systems.PoolSeed(e.seed, en.Emitter.Seed))
	ep := en.Emitter.Params(e.params.SynchronizeSensorAndRotation)
	ep.PreviousPosition = en.lastPos
	ctx := systems.SpawnContext{Emitter: &ep, Aux: e.aux, FieldSize: e.trail.Size, LUT: en.LUT}
	seeded := en.Pool.Seed(&ctx)
	if seeded > 0 {
		e.log.Debug("emitter seeded", "emitter", en.Emitter.Name, "particles", seeded)
	}
}

// Tick advances the simulation by one tick. It fails without side effects
// unless the engine is Ready.
func (e *Engine) Tick(in TickInput) (telemetry.TickStats, error) {
	switch e.State() {
	case Disabled:
		return telemetry.TickStats{}, ErrDisabled
	case Uninitialized:
		return telemetry.TickStats{}, ErrNotInitialized
	case Stepping:
		return telemetry.TickStats{}, ErrBusy
	}
	if in.DT < 0 {
		return telemetry.TickStats{}, fmt.Errorf("%w: negative dt %g", ErrInvalidConfig, in.DT)
	}
	if in.Substeps < 1 {
		return telemetry.TickStats{}, fmt.Errorf("%w: substeps %d must be at least 1", ErrInvalidConfig, in.Substeps)
	}

	e.setState(Stepping)
	defer e.setState(Ready)

	if e.perf != nil {
		e.perf.StartTick()
		defer e.perf.EndTick()
	}

	e.phase(telemetry.PhaseBindings)
	e.applyPending()
	snap := buildSnapshot(e.tick, e.params, in, e.registry.Entries())

	stats := e.runPipeline(snap)

	for _, en := range e.registry.Entries() {
		en.lastPos = en.Emitter.Position
	}
	e.tick++
	e.simTime += float64(snap.DT) * float64(snap.Substeps)
	stats.Tick = e.tick
	stats.SimTime = e.simTime
	return stats, nil
}

func (e *Engine) phase(name string) {
	if e.perf != nil {
		e.perf.StartPhase(name)
	}
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 { return e.tick }

// SimTime returns the simulated seconds elapsed.
func (e *Engine) SimTime() float64 { return e.simTime }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }
