// Package telemetry provides simulation statistics, bookmarking, snapshots
// and performance tracking.
package telemetry

import "log/slog"

// EmitterTick is one emitter's share of a tick.
type EmitterTick struct {
	Handle   uint32
	Name     string
	Live     int
	Capacity int
	Spawned  int
	Died     int
}

// TickStats summarizes one engine tick.
type TickStats struct {
	Tick    uint64
	SimTime float64

	Live    int
	Spawned int
	Died    int

	// Deposited is the total particle deposit folded into the trail this
	// tick. TrailBefore and TrailAfter are field totals around the update,
	// so TrailAfter <= TrailBefore + Deposited whenever nothing is advected.
	Deposited   float64
	TrailBefore float64
	TrailAfter  float64

	Emitters []EmitterTick
}

// LogValue implements slog.LogValuer for structured logging.
func (s TickStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", s.Tick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("live", s.Live),
		slog.Int("spawned", s.Spawned),
		slog.Int("died", s.Died),
		slog.Float64("deposited", s.Deposited),
		slog.Float64("trail_total", s.TrailAfter),
		slog.Int("emitters", len(s.Emitters)),
	)
}
