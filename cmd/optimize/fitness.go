package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
	"github.com/pthm-cable/physarum/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params         *ParamVector
	maxTicks       uint64
	seeds          []int64
	configPath     string
	statsWindow    float64
	targetCoverage float64

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Every run reloads the config
// from configPath so runs never share state.
func NewFitnessEvaluator(params *ParamVector, maxTicks uint64, seeds []int64, configPath string, targetCoverage float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:         params,
		maxTicks:       maxTicks,
		seeds:          seeds,
		configPath:     configPath,
		statsWindow:    2.0,
		targetCoverage: targetCoverage,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is negative quality averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				slog.Warn("run failed", "seed", s, "error", err)
				return
			}
			qualities[idx] = fe.computeQuality(windows)
		}(i, seed)
	}
	wg.Wait()

	quality := stat.Mean(qualities, nil)
	fe.mu.Lock()
	fe.lastQuality = quality
	fe.mu.Unlock()
	return -quality
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return nil, err
	}
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var windows []telemetry.WindowStats
	g, err := game.NewGameWithOptions(cfg, game.Options{
		Seed:           seed,
		Headless:       true,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		if err := g.UpdateHeadless(); err != nil {
			return windows, err
		}
	}
	return windows, nil
}

// Quality component weights.
const (
	qualityWeightCoverage  = 0.40
	qualityWeightContrast  = 0.30
	qualityWeightStability = 0.30

	qualityWarmupWindows = 3 // skip first N windows (warmup)
)

// computeQuality scores a run in [0, 1]. A good network covers about the
// target fraction of the field, concentrates mass in filaments rather than a
// uniform haze, and holds a steady total once formed. A run whose particles
// die out scores zero.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var coverageSum, contrastSum float64
	totals := make([]float64, 0, len(valid))
	for _, w := range valid {
		if w.Live == 0 {
			return 0
		}
		d := (w.Coverage - fe.targetCoverage) / 0.15
		coverageSum += math.Exp(-d * d)
		if w.TrailP99 > 0 {
			contrastSum += clamp01((w.TrailP99 - w.TrailMean) / w.TrailP99)
		}
		totals = append(totals, w.TrailTotal)
	}
	n := float64(len(valid))

	stability := 0.0
	if len(totals) >= 2 {
		mean, std := stat.MeanStdDev(totals, nil)
		if mean > 0 {
			cv := std / mean
			stability = math.Exp(-25 * cv * cv)
		}
	}

	return clamp01(qualityWeightCoverage*coverageSum/n +
		qualityWeightContrast*contrastSum/n +
		qualityWeightStability*stability)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
