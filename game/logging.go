package game

import (
	"time"
)

// logPerfStats logs the viewer's frame timings, slowest first.
func (g *Game) logPerfStats() {
	if g.viewer == nil {
		return
	}
	perf := g.viewer.perf
	total := perf.Total()
	attrs := []any{
		"tick", g.engine.TickCount(),
		"steps_per_update", g.stepsPerUpdate,
		"total_us", total.Microseconds(),
	}
	for _, name := range perf.SortedNames() {
		avg := perf.Avg(name)
		pct := float64(0)
		if total > 0 {
			pct = float64(avg) / float64(total) * 100
		}
		attrs = append(attrs, name+"_us", avg.Round(time.Microsecond).Microseconds(), name+"_pct", int(pct))
	}
	g.log.Info("frame perf", attrs...)
}

// logWorldState logs the engine, the scene and the last tick.
func (g *Game) logWorldState() {
	s := g.lastStats
	g.log.Info("world",
		"tick", s.Tick,
		"sim_time", s.SimTime,
		"actors", g.scene.Len(),
		"emitters", len(s.Emitters),
		"live", s.Live,
		"spawned", s.Spawned,
		"died", s.Died,
		"trail", s.TrailAfter,
		"paused", g.paused,
	)
	for _, h := range g.engine.ClampedHandles() {
		if info, ok := g.engine.Emitter(h); ok {
			g.log.Warn("emitter capacity clamped", "emitter", info)
		}
	}
}
