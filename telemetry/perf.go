package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the engine tick.
const (
	PhaseBindings  = "bindings"
	PhaseSpawn     = "spawn"
	PhaseMove      = "move"
	PhaseCompact   = "compact"
	PhaseTrail     = "trail"
	PhaseAdvect    = "advect"
	PhaseVelocity  = "velocity"
	PhaseDebug     = "debug"
	PhaseScene     = "scene"
	PhaseTelemetry = "telemetry"
)

// phaseOrder lists phases in pipeline order. Other names get slots after
// these on first use.
var phaseOrder = []string{
	PhaseBindings, PhaseSpawn, PhaseMove, PhaseCompact,
	PhaseTrail, PhaseAdvect, PhaseVelocity, PhaseDebug,
	PhaseScene, PhaseTelemetry,
}

// tickSample is one tick's timing, phases indexed by slot.
type tickSample struct {
	total  time.Duration
	phases []time.Duration
}

// PerfCollector keeps per-phase tick timings in a ring of the last N ticks.
// Not safe for concurrent use; the engine times phases from its own goroutine.
type PerfCollector struct {
	names []string
	slots map[string]int

	ring  []tickSample
	next  int
	count int

	cur       tickSample
	tickStart time.Time
	openAt    time.Time
	open      int // slot being timed, -1 when none

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector creates a collector averaging over window ticks
// (60 when window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	p := &PerfCollector{
		slots: make(map[string]int, len(phaseOrder)),
		ring:  make([]tickSample, window),
		open:  -1,
	}
	for _, name := range phaseOrder {
		p.slot(name)
	}
	return p
}

func (p *PerfCollector) slot(name string) int {
	if i, ok := p.slots[name]; ok {
		return i
	}
	i := len(p.names)
	p.names = append(p.names, name)
	p.slots[name] = i
	return i
}

func (p *PerfCollector) charge(s *tickSample, slot int, d time.Duration) {
	for len(s.phases) <= slot {
		s.phases = append(s.phases, 0)
	}
	s.phases[slot] += d
}

func (p *PerfCollector) closeOpen(now time.Time) {
	if p.open >= 0 {
		p.charge(&p.cur, p.open, now.Sub(p.openAt))
		p.open = -1
	}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.open = -1
	p.cur = tickSample{phases: make([]time.Duration, len(p.names))}
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closeOpen(now)
	p.open = p.slot(phase)
	p.openAt = now
}

// EndTick closes the running phase and stores the tick in the ring.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closeOpen(now)
	p.cur.total = now.Sub(p.tickStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// AddPhase charges d to phase of the most recently recorded tick. Hosts use
// it for work they do around the engine tick, such as scene updates.
func (p *PerfCollector) AddPhase(phase string, d time.Duration) {
	if p.count == 0 {
		return
	}
	last := &p.ring[(p.next+len(p.ring)-1)%len(p.ring)]
	p.charge(last, p.slot(phase), d)
	last.total += d
}

// RecordFrame marks a rendered frame; the gap to the previous call is the
// frame duration.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Average duration and share of the average tick, per phase.
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64

	// Graphics mode only.
	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the ticks currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	out := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frame,
	}
	if p.frame > 0 {
		out.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.count == 0 {
		return out
	}

	sums := make([]time.Duration, len(p.names))
	var total time.Duration
	for i, s := range p.ring[:p.count] {
		total += s.total
		if i == 0 || s.total < out.MinTickDuration {
			out.MinTickDuration = s.total
		}
		out.MaxTickDuration = max(out.MaxTickDuration, s.total)
		for slot, d := range s.phases {
			sums[slot] += d
		}
	}

	n := time.Duration(p.count)
	out.AvgTickDuration = total / n
	for slot, sum := range sums {
		if sum == 0 {
			continue
		}
		avg := sum / n
		name := p.names[slot]
		out.PhaseAvg[name] = avg
		if out.AvgTickDuration > 0 {
			out.PhasePct[name] = float64(avg) / float64(out.AvgTickDuration) * 100
		}
	}
	if out.AvgTickDuration > 0 {
		out.TicksPerSecond = float64(time.Second) / float64(out.AvgTickDuration)
	}
	return out
}

// LogStats logs the window summary, listing phases above 0.1% in pipeline
// order.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, phase := range phaseOrder {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd   uint64  `csv:"window_end"`
	AvgTickUS   int64   `csv:"avg_tick_us"`
	MinTickUS   int64   `csv:"min_tick_us"`
	MaxTickUS   int64   `csv:"max_tick_us"`
	TicksPerSec float64 `csv:"ticks_per_sec"`
	FPS         float64 `csv:"fps"`
	BindingsPct float64 `csv:"bindings_pct"`
	SpawnPct    float64 `csv:"spawn_pct"`
	MovePct     float64 `csv:"move_pct"`
	CompactPct  float64 `csv:"compact_pct"`
	TrailPct    float64 `csv:"trail_pct"`
	AdvectPct   float64 `csv:"advect_pct"`
	VelocityPct float64 `csv:"velocity_pct"`
	DebugPct    float64 `csv:"debug_pct"`
	ScenePct    float64 `csv:"scene_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:   windowEnd,
		AvgTickUS:   s.AvgTickDuration.Microseconds(),
		MinTickUS:   s.MinTickDuration.Microseconds(),
		MaxTickUS:   s.MaxTickDuration.Microseconds(),
		TicksPerSec: s.TicksPerSecond,
		FPS:         s.FPS,
		BindingsPct: s.PhasePct[PhaseBindings],
		SpawnPct:    s.PhasePct[PhaseSpawn],
		MovePct:     s.PhasePct[PhaseMove],
		CompactPct:  s.PhasePct[PhaseCompact],
		TrailPct:    s.PhasePct[PhaseTrail],
		AdvectPct:   s.PhasePct[PhaseAdvect],
		VelocityPct: s.PhasePct[PhaseVelocity],
		DebugPct:    s.PhasePct[PhaseDebug],
		ScenePct:    s.PhasePct[PhaseScene],
	}
}
