package engine

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/systems"
)

// TrailView is a read-only view of the current trail buffer. It stays valid
// until the next Tick starts.
type TrailView struct {
	W, H int
	Size mgl32.Vec2
	Data []float32
}

// At returns the value of cell (x, y).
func (v TrailView) At(x, y int) float32 { return v.Data[y*v.W+x] }

// CellOf returns the index of the cell containing field-space position p.
func (v TrailView) CellOf(p mgl32.Vec2) int { return systems.CellIndex(p, v.Size, v.W, v.H) }

// Total sums the view.
func (v TrailView) Total() float64 {
	var sum float64
	for _, x := range v.Data {
		sum += float64(x)
	}
	return sum
}

// Trail returns the current trail field. The zero view is returned before
// Initialize.
func (e *Engine) Trail() TrailView {
	if e.trail == nil {
		return TrailView{}
	}
	return TrailView{W: e.trail.W, H: e.trail.H, Size: e.trail.Size, Data: e.trail.Front()}
}

// Velocity returns the particle-written velocity field, or nil before
// Initialize.
func (e *Engine) Velocity() *systems.Grid {
	if e.trail == nil {
		return nil
	}
	return e.trail.Velocity()
}

// DebugRaster returns live particle counts per trail cell as of the last
// tick, or nil when the raster is disabled.
func (e *Engine) DebugRaster() []uint32 { return e.raster }

// Aux returns the bound auxiliary fields.
func (e *Engine) Aux() systems.AuxFields { return e.aux }

// Positions appends the positions of h's live particles to dst. Unknown
// handles append nothing.
func (e *Engine) Positions(h Handle, dst []mgl32.Vec2) []mgl32.Vec2 {
	en := e.registry.Lookup(h)
	if en == nil {
		return dst
	}
	return en.Pool.Positions(dst)
}

// Particles returns a copy of h's live particles in active-list order.
func (e *Engine) Particles(h Handle) []systems.Particle {
	en := e.registry.Lookup(h)
	if en == nil {
		return nil
	}
	out := make([]systems.Particle, 0, en.Pool.Live())
	for _, i := range en.Pool.ActiveList {
		if en.Pool.Alive(i) {
			out = append(out, en.Pool.Particle(i))
		}
	}
	return out
}

// EmitterInfo describes one registered emitter.
type EmitterInfo struct {
	Handle   Handle
	Name     string
	Position mgl32.Vec2
	Live     int
	Capacity int
	Clamped  bool
	Ticks    uint64 // move passes run by the pool
}

// LogValue implements slog.LogValuer for structured logging.
func (i EmitterInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("handle", i.Handle),
		slog.String("name", i.Name),
		slog.Int("live", i.Live),
		slog.Int("capacity", i.Capacity),
		slog.Bool("clamped", i.Clamped),
	)
}

// Emitters lists the applied emitters in registration order.
func (e *Engine) Emitters() []EmitterInfo {
	entries := e.registry.Entries()
	out := make([]EmitterInfo, len(entries))
	for i, en := range entries {
		out[i] = EmitterInfo{
			Handle:   en.Handle,
			Name:     en.Emitter.Name,
			Position: en.Emitter.Position,
			Live:     en.Pool.Live(),
			Capacity: en.Capacity,
			Clamped:  en.Clamped,
			Ticks:    en.Pool.Ticks,
		}
	}
	return out
}

// Emitter returns the info for h.
func (e *Engine) Emitter(h Handle) (EmitterInfo, bool) {
	for _, info := range e.Emitters() {
		if info.Handle == h {
			return info, true
		}
	}
	return EmitterInfo{}, false
}

// ClampedHandles lists applied emitters whose capacity was clamped.
func (e *Engine) ClampedHandles() []Handle {
	var out []Handle
	for _, en := range e.registry.Entries() {
		if en.Clamped {
			out = append(out, en.Handle)
		}
	}
	return out
}

// LiveTotal returns the live particle count across all pools.
func (e *Engine) LiveTotal() int {
	n := 0
	for _, en := range e.registry.Entries() {
		n += en.Pool.Live()
	}
	return n
}

// LogSummary logs the engine state and every emitter.
func (e *Engine) LogSummary() {
	attrs := []any{
		"state", e.State().String(),
		"tick", e.tick,
		"sim_time", e.simTime,
		"live", e.LiveTotal(),
	}
	if e.trail != nil {
		attrs = append(attrs, "trail_total", e.trail.Total())
	}
	e.log.Info("engine", attrs...)
	for _, info := range e.Emitters() {
		e.log.Info("emitter", "info", info)
	}
}
