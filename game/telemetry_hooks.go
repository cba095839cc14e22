package game

import (
	"github.com/pthm-cable/physarum/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	tick := g.engine.TickCount()
	if !g.collector.ShouldFlush(tick) {
		return
	}

	sample := telemetry.Sample{
		Trail:             g.engine.Trail().Data,
		CoverageThreshold: g.cfg.Telemetry.CoverageThreshold,
		AgeFractions:      g.sampleAgeFractions(),
	}
	stats, emitters := g.collector.Flush(tick, sample)
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		g.log.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WriteEmitters(emitters); err != nil {
		g.log.Error("failed to write emitters", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		g.log.Error("failed to write perf", "error", err)
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			g.log.Error("failed to write bookmark", "error", err)
		}
		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}

// sampleAgeFractions collects age/lifetime of every live particle.
func (g *Game) sampleAgeFractions() []float64 {
	fractions := make([]float64, 0, g.engine.LiveTotal())
	for _, info := range g.engine.Emitters() {
		for _, p := range g.engine.Particles(info.Handle) {
			if p.Lifetime > 0 {
				fractions = append(fractions, float64(p.Age/p.Lifetime))
			}
		}
	}
	return fractions
}

// SaveSnapshot writes a snapshot of the current state to the snapshot
// directory and returns the JSON path.
func (g *Game) SaveSnapshot() (string, error) {
	return g.writeSnapshot(nil)
}

// saveSnapshot creates and saves a bookmark snapshot, logging failures.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	path, err := g.writeSnapshot(bookmark)
	if err != nil {
		g.log.Error("failed to save snapshot", "error", err)
		return
	}
	g.log.Info("snapshot saved", "path", path, "tick", g.engine.TickCount())
}

func (g *Game) writeSnapshot(bookmark *telemetry.Bookmark) (string, error) {
	dir := g.snapshotDir
	if dir == "" {
		dir = "snapshots"
	}
	snapshot := g.createSnapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, dir)
	if err != nil {
		return "", err
	}

	trail := g.engine.Trail()
	exposure := float32(snapshot.Trail.P99)
	if exposure <= 0 {
		exposure = float32(snapshot.Trail.Max)
	}
	if _, err := telemetry.SaveTrailPNG(snapshot, trail.Data, exposure, dir); err != nil {
		return path, err
	}
	return path, nil
}

// createSnapshot builds a snapshot from the current state.
func (g *Game) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	trail := g.engine.Trail()
	fs := telemetry.ComputeFieldStats(trail.Data, g.cfg.Telemetry.CoverageThreshold)

	snapshot := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Seed:        g.cfg.Engine.Seed,
		Tick:        g.engine.TickCount(),
		SimTime:     g.engine.SimTime(),
		TrailWidth:  trail.W,
		TrailHeight: trail.H,
		FieldWidth:  trail.Size[0],
		FieldHeight: trail.Size[1],
		Trail:       fs.Summary(),
		Bookmark:    bookmark,
	}

	for _, info := range g.engine.Emitters() {
		state := telemetry.EmitterState{
			Handle:   uint32(info.Handle),
			Name:     info.Name,
			X:        info.Position[0],
			Y:        info.Position[1],
			Live:     info.Live,
			Capacity: info.Capacity,
			Clamped:  info.Clamped,
		}
		if g.cfg.Telemetry.SnapshotParticles {
			state.Particles = telemetry.ParticleStates(g.engine.Particles(info.Handle))
		}
		snapshot.Emitters = append(snapshot.Emitters, state)
	}

	return snapshot
}
