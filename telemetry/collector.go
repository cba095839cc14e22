package telemetry

// EmitterRecord is one emitter's row in emitters.csv.
type EmitterRecord struct {
	WindowEnd uint64  `csv:"window_end"`
	Handle    uint32  `csv:"handle"`
	Name      string  `csv:"name"`
	Live      int     `csv:"live"`
	Capacity  int     `csv:"capacity"`
	Occupancy float64 `csv:"occupancy"`
	Spawned   int     `csv:"spawned"`
	Died      int     `csv:"died"`
}

// Sample is the state the caller reads from the engine at flush time.
type Sample struct {
	Trail             []float32 // current trail buffer
	CoverageThreshold float64
	AgeFractions      []float64 // age / lifetime per live particle
}

// Collector accumulates tick stats within time windows and produces
// WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks uint64
	dt                  float32

	// Current window tracking
	windowStartTick uint64

	// Event counters for current window
	spawned   int
	died      int
	deposited float64

	emitters map[uint32]*EmitterRecord
	order    []uint32
	last     TickStats
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// tickSec: simulated seconds per tick (dt times substeps)
func NewCollector(windowDurationSec float64, tickSec float32) *Collector {
	ticks := uint64(1)
	if tickSec > 0 {
		if n := uint64(windowDurationSec / float64(tickSec)); n > 1 {
			ticks = n
		}
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticks,
		dt:                  tickSec,
		emitters:            make(map[uint32]*EmitterRecord),
	}
}

// Record folds one tick into the current window.
func (c *Collector) Record(s TickStats) {
	c.spawned += s.Spawned
	c.died += s.Died
	c.deposited += s.Deposited
	for _, et := range s.Emitters {
		r, ok := c.emitters[et.Handle]
		if !ok {
			r = &EmitterRecord{Handle: et.Handle}
			c.emitters[et.Handle] = r
			c.order = append(c.order, et.Handle)
		}
		r.Name = et.Name
		r.Live = et.Live
		r.Capacity = et.Capacity
		r.Spawned += et.Spawned
		r.Died += et.Died
	}
	c.last = s
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats plus one record per emitter seen during the
// window, and resets counters for the next window. Emitters removed during
// the window report their last known live count.
func (c *Collector) Flush(currentTick uint64, sample Sample) (WindowStats, []EmitterRecord) {
	field := ComputeFieldStats(sample.Trail, sample.CoverageThreshold)
	ageMean, ageP10, ageP50, ageP90 := ComputeDistribution(sample.AgeFractions)

	simTime := c.last.SimTime
	if simTime == 0 {
		simTime = float64(currentTick) * float64(c.dt)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      simTime,

		Emitters: len(c.last.Emitters),
		Live:     c.last.Live,

		Spawned:   c.spawned,
		Died:      c.died,
		Deposited: c.deposited,

		TrailTotal: field.Total,
		TrailMean:  field.Mean,
		TrailStd:   field.Std,
		TrailP50:   field.P50,
		TrailP90:   field.P90,
		TrailP99:   field.P99,
		TrailMax:   field.Max,
		Coverage:   field.Coverage,

		AgeMean: ageMean,
		AgeP10:  ageP10,
		AgeP50:  ageP50,
		AgeP90:  ageP90,
	}
	for _, et := range c.last.Emitters {
		stats.Capacity += et.Capacity
	}
	if stats.Capacity > 0 {
		stats.Occupancy = float64(stats.Live) / float64(stats.Capacity)
	}
	if elapsed := float64(currentTick-c.windowStartTick) * float64(c.dt); elapsed > 0 {
		stats.SpawnRate = float64(c.spawned) / elapsed
		stats.DeathRate = float64(c.died) / elapsed
	}

	records := make([]EmitterRecord, 0, len(c.order))
	for _, h := range c.order {
		r := *c.emitters[h]
		r.WindowEnd = currentTick
		if r.Capacity > 0 {
			r.Occupancy = float64(r.Live) / float64(r.Capacity)
		}
		records = append(records, r)
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.spawned = 0
	c.died = 0
	c.deposited = 0
	clear(c.emitters)
	c.order = c.order[:0]

	return stats, records
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() uint64 {
	return c.windowDurationTicks
}
