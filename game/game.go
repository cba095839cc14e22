// Package game hosts the simulation: it owns the engine and the actor scene,
// steps them, feeds telemetry and, outside headless mode, draws the result.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/scene"
	"github.com/pthm-cable/physarum/telemetry"
)

// Options holds runtime options that override or extend the config file.
type Options struct {
	Seed           int64 // 0 keeps cfg.Engine.Seed
	LogStats       bool  // log window stats via slog
	StatsWindowSec float64
	SnapshotDir    string // bookmark snapshots (empty = output dir, or off)
	OutputDir      string // CSV logs and config copy (empty = off)
	Headless       bool
	Substeps       int // 0 keeps cfg.Tick.Substeps
	StepsPerUpdate int
	Logger         *slog.Logger

	// StatsCallback, if set, receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the host state.
type Game struct {
	cfg    *config.Config
	log    *slog.Logger
	engine *engine.Engine
	scene  *scene.Scene
	input  engine.TickInput

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	lifetimeTracker  *telemetry.LifetimeTracker
	outputManager    *telemetry.OutputManager
	logStats         bool
	snapshotDir      string
	statsCallback    func(telemetry.WindowStats)
	lastStats        telemetry.TickStats

	// State
	headless       bool
	paused         bool
	stepsPerUpdate int
	err            error

	viewer *viewer
}

// NewGameWithOptions builds the engine and scene from cfg, populates the
// configured actors and initializes the engine. In graphical mode the
// raylib window must already be open.
func NewGameWithOptions(cfg *config.Config, opts Options) (*Game, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Seed != 0 {
		cfg.Engine.Seed = opts.Seed
	}

	input := engine.TickInputFromConfig(cfg)
	if opts.Substeps > 0 {
		input.Substeps = opts.Substeps
	}
	statsWindow := opts.StatsWindowSec
	if statsWindow <= 0 {
		statsWindow = cfg.Telemetry.StatsWindow
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	eng, err := engine.New(cfg, engine.Options{Logger: log, Perf: perf})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	sc, err := scene.New(cfg, eng, log)
	if err != nil {
		return nil, fmt.Errorf("creating scene: %w", err)
	}
	if err := sc.Populate(cfg.Scene.Actors); err != nil {
		return nil, err
	}
	if err := eng.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}

	out, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		eng.Shutdown()
		return nil, err
	}
	if err := out.WriteConfig(cfg); err != nil {
		log.Error("failed to write config", "error", err)
	}
	snapshotDir := opts.SnapshotDir
	if snapshotDir == "" {
		snapshotDir = out.SnapshotDir()
	}

	g := &Game{
		cfg:              cfg,
		log:              log,
		engine:           eng,
		scene:            sc,
		input:            input,
		collector:        telemetry.NewCollector(statsWindow, input.DT*float32(max(input.Substeps, 1))),
		perfCollector:    perf,
		bookmarkDetector: telemetry.NewBookmarkDetector(12),
		lifetimeTracker:  telemetry.NewLifetimeTracker(),
		outputManager:    out,
		logStats:         opts.LogStats,
		snapshotDir:      snapshotDir,
		statsCallback:    opts.StatsCallback,
		headless:         opts.Headless,
		stepsPerUpdate:   max(opts.StepsPerUpdate, 1),
	}
	if !g.headless {
		g.viewer = newViewer(cfg)
	}

	log.Info("game ready",
		"seed", cfg.Engine.Seed,
		"actors", sc.Len(),
		"emitters", len(eng.Emitters()),
		"substeps", input.Substeps,
		"stats_window_ticks", g.collector.WindowDurationTicks(),
	)
	return g, nil
}

// Step advances the scene and runs one engine tick.
func (g *Game) Step() error {
	if g.err != nil {
		return g.err
	}

	sceneStart := time.Now()
	if err := g.scene.Update(g.input.DT * float32(max(g.input.Substeps, 1))); err != nil {
		g.log.Warn("scene update", "error", err)
	}
	sceneDur := time.Since(sceneStart)

	stats, err := g.engine.Tick(g.input)
	if err != nil {
		if errors.Is(err, engine.ErrDisabled) || errors.Is(err, engine.ErrNotInitialized) {
			g.err = err
		}
		return err
	}
	g.perfCollector.AddPhase(telemetry.PhaseScene, sceneDur)

	telemetryStart := time.Now()
	g.lastStats = stats
	g.collector.Record(stats)
	g.lifetimeTracker.Record(stats)
	g.flushTelemetry()
	g.perfCollector.AddPhase(telemetry.PhaseTelemetry, time.Since(telemetryStart))
	return nil
}

// UpdateHeadless runs StepsPerUpdate ticks without touching raylib.
func (g *Game) UpdateHeadless() error {
	for i := 0; i < g.stepsPerUpdate; i++ {
		if err := g.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Update handles input and, unless paused, advances the simulation.
func (g *Game) Update() error {
	g.perfCollector.RecordFrame()
	g.handleInput()
	if g.paused {
		return nil
	}
	return g.UpdateHeadless()
}

// Spawn adds an actor at runtime.
func (g *Game) Spawn(a config.ActorConfig) (ecs.Entity, error) {
	return g.scene.Spawn(a)
}

// Unload logs summaries, closes outputs and shuts the engine down.
func (g *Game) Unload() {
	g.engine.LogSummary()
	g.lifetimeTracker.LogSummary(g.log)
	if err := g.outputManager.Close(); err != nil {
		g.log.Error("failed to close output", "error", err)
	}
	if g.viewer != nil {
		g.viewer.unload()
	}
	g.engine.Shutdown()
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() uint64 { return g.engine.TickCount() }

// Engine exposes the engine for tools and tests.
func (g *Game) Engine() *engine.Engine { return g.engine }

// Scene exposes the actor scene.
func (g *Game) Scene() *scene.Scene { return g.scene }

// LastStats returns the stats of the most recent tick.
func (g *Game) LastStats() telemetry.TickStats { return g.lastStats }
