package telemetry

import "log/slog"

// LifetimeStats tracks one emitter over the run.
type LifetimeStats struct {
	Handle    uint32
	Name      string
	FirstTick uint64
	LastTick  uint64
	Removed   bool

	Spawned  int
	Died     int
	PeakLive int
	Capacity int
}

// LogValue implements slog.LogValuer for structured logging.
func (ls *LifetimeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("handle", ls.Handle),
		slog.String("name", ls.Name),
		slog.Uint64("first_tick", ls.FirstTick),
		slog.Uint64("last_tick", ls.LastTick),
		slog.Bool("removed", ls.Removed),
		slog.Int("spawned", ls.Spawned),
		slog.Int("died", ls.Died),
		slog.Int("peak_live", ls.PeakLive),
		slog.Int("capacity", ls.Capacity),
	)
}

// LifetimeTracker accumulates per-emitter statistics across ticks. An
// emitter missing from a tick's stats is marked removed.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
	order []uint32
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Record folds one tick into the tracked emitters.
func (lt *LifetimeTracker) Record(s TickStats) {
	seen := make(map[uint32]struct{}, len(s.Emitters))
	for _, et := range s.Emitters {
		seen[et.Handle] = struct{}{}
		ls := lt.stats[et.Handle]
		if ls == nil {
			ls = &LifetimeStats{Handle: et.Handle, FirstTick: s.Tick}
			lt.stats[et.Handle] = ls
			lt.order = append(lt.order, et.Handle)
		}
		ls.Name = et.Name
		ls.LastTick = s.Tick
		ls.Capacity = et.Capacity
		ls.Spawned += et.Spawned
		ls.Died += et.Died
		ls.PeakLive = max(ls.PeakLive, et.Live)
	}
	for h, ls := range lt.stats {
		if _, ok := seen[h]; !ok {
			ls.Removed = true
		}
	}
}

// Get returns the lifetime stats for a handle, or nil if not found.
func (lt *LifetimeTracker) Get(handle uint32) *LifetimeStats {
	return lt.stats[handle]
}

// All returns tracked stats in first-seen order.
func (lt *LifetimeTracker) All() []*LifetimeStats {
	out := make([]*LifetimeStats, 0, len(lt.order))
	for _, h := range lt.order {
		out = append(out, lt.stats[h])
	}
	return out
}

// Count returns the number of tracked emitters.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// ActiveCount returns the number of emitters present in the last tick.
func (lt *LifetimeTracker) ActiveCount() int {
	n := 0
	for _, ls := range lt.stats {
		if !ls.Removed {
			n++
		}
	}
	return n
}

// LogSummary logs every tracked emitter.
func (lt *LifetimeTracker) LogSummary(log *slog.Logger) {
	for _, ls := range lt.All() {
		log.Info("emitter lifetime", "emitter", ls)
	}
}
