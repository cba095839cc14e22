package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick uint64  `csv:"-"`
	WindowEndTick   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Emitters  int     `csv:"emitters"`
	Live      int     `csv:"live"`
	Capacity  int     `csv:"capacity"`
	Occupancy float64 `csv:"occupancy"` // live / capacity

	// Events during window
	Spawned   int     `csv:"spawned"`
	Died      int     `csv:"died"`
	SpawnRate float64 `csv:"spawn_rate"` // per simulated second
	DeathRate float64 `csv:"death_rate"`

	// Trail field (sampled at window end)
	Deposited  float64 `csv:"deposited"` // total deposit folded in during the window
	TrailTotal float64 `csv:"trail_total"`
	TrailMean  float64 `csv:"trail_mean"`
	TrailStd   float64 `csv:"trail_std"`
	TrailP50   float64 `csv:"trail_p50"`
	TrailP90   float64 `csv:"trail_p90"`
	TrailP99   float64 `csv:"trail_p99"`
	TrailMax   float64 `csv:"trail_max"`
	Coverage   float64 `csv:"coverage"` // fraction of cells above the coverage threshold

	// Age fraction (age / lifetime) of live particles
	AgeMean float64 `csv:"age_mean"`
	AgeP10  float64 `csv:"age_p10"`
	AgeP50  float64 `csv:"age_p50"`
	AgeP90  float64 `csv:"age_p90"`
}

// FieldStats summarizes the values of a scalar field.
type FieldStats struct {
	Total    float64
	Mean     float64
	Std      float64
	P50      float64
	P90      float64
	P99      float64
	Max      float64
	Coverage float64
}

// ComputeFieldStats summarizes data. Coverage is the fraction of values
// strictly above threshold.
func ComputeFieldStats(data []float32, threshold float64) FieldStats {
	if len(data) == 0 {
		return FieldStats{}
	}

	x := make([]float64, len(data))
	covered := 0
	for i, v := range data {
		x[i] = float64(v)
		if x[i] > threshold {
			covered++
		}
	}
	sort.Float64s(x)

	mean, std := stat.PopMeanStdDev(x, nil)
	return FieldStats{
		Total:    floats.Sum(x),
		Mean:     mean,
		Std:      std,
		P50:      stat.Quantile(0.50, stat.LinInterp, x, nil),
		P90:      stat.Quantile(0.90, stat.LinInterp, x, nil),
		P99:      stat.Quantile(0.99, stat.LinInterp, x, nil),
		Max:      floats.Max(x),
		Coverage: float64(covered) / float64(len(x)),
	}
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles of values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)

	// Sort for percentiles
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("emitters", s.Emitters),
		slog.Int("live", s.Live),
		slog.Int("capacity", s.Capacity),
		slog.Float64("occupancy", s.Occupancy),
		slog.Int("spawned", s.Spawned),
		slog.Int("died", s.Died),
		slog.Float64("spawn_rate", s.SpawnRate),
		slog.Float64("death_rate", s.DeathRate),
		slog.Float64("deposited", s.Deposited),
		slog.Float64("trail_total", s.TrailTotal),
		slog.Float64("trail_mean", s.TrailMean),
		slog.Float64("trail_std", s.TrailStd),
		slog.Float64("trail_p50", s.TrailP50),
		slog.Float64("trail_p90", s.TrailP90),
		slog.Float64("trail_p99", s.TrailP99),
		slog.Float64("trail_max", s.TrailMax),
		slog.Float64("coverage", s.Coverage),
		slog.Float64("age_mean", s.AgeMean),
		slog.Float64("age_p50", s.AgeP50),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"emitters", s.Emitters,
		"live", s.Live,
		"occupancy", s.Occupancy,
		"spawned", s.Spawned,
		"died", s.Died,
		"deposited", s.Deposited,
		"trail_total", s.TrailTotal,
		"trail_mean", s.TrailMean,
		"trail_p90", s.TrailP90,
		"trail_max", s.TrailMax,
		"coverage", s.Coverage,
		"age_mean", s.AgeMean,
		"age_p50", s.AgeP50,
	)
}
