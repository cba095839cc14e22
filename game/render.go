package game

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/camera"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/ui"
)

const panelWidth = 280

const controlsLegend = "SPACE pause  , . speed  TAB params  O overlays  S snapshot  click spawn/select  X remove  wheel zoom  right-drag pan  HOME reset view"

// viewer holds everything the graphical mode needs on top of the host.
type viewer struct {
	perf *PerfStats

	screenW, screenH float32
	cam              *camera.Camera

	trail     *renderer.TrailRenderer
	stimuli   *renderer.StimuliRenderer
	raster    *renderer.RasterRenderer
	flow      *renderer.FlowRenderer
	particles *renderer.ParticleRenderer

	overlays  *ui.OverlayRegistry
	hud       *ui.HUD
	controls  *ui.ControlsPanel
	inspector *ui.Inspector
	perfPanel *ui.PerfPanel

	stimuliStale bool
	showPanel    bool

	selected     ecs.Entity
	hasSelection bool
	spawnIndex   int // emitter used for click spawns
}

func newViewer(cfg *config.Config) *viewer {
	v := &viewer{
		perf:         NewPerfStats(),
		screenW:      float32(cfg.Screen.Width),
		screenH:      float32(cfg.Screen.Height),
		trail:        renderer.DefaultTrailRenderer(),
		stimuli:      renderer.NewStimuliRenderer(0.6),
		raster:       renderer.NewRasterRenderer(),
		flow:         renderer.NewFlowRenderer(24, 10),
		particles:    renderer.NewParticleRenderer(1),
		overlays:     ui.NewOverlayRegistry(),
		hud:          ui.NewHUD(),
		controls:     ui.NewControlsPanel(10, 100, 220),
		inspector:    ui.NewInspector(10, 100, 240),
		perfPanel:    ui.NewPerfPanel(10, 100),
		stimuliStale: true,
		showPanel:    true,
	}
	v.overlays.SetEnabled(ui.OverlayRaster, cfg.Engine.DebugParticles)
	v.cam = camera.New(renderer.Fit(v.screenW, v.screenH, cfg.Derived.TrailSize))
	return v
}

func (v *viewer) fit(cfg *config.Config) {
	v.cam.SetFrame(renderer.Fit(v.screenW, v.screenH, cfg.Derived.TrailSize))
}

func (v *viewer) unload() {
	v.trail.Unload()
	v.stimuli.Unload()
	v.raster.Unload()
}

// timed runs fn and records its duration under name.
func (v *viewer) timed(name string, fn func()) {
	start := time.Now()
	fn()
	v.perf.Record(name, time.Since(start))
}

// tiled draws a layer once per visible copy of the field.
func (v *viewer) tiled(draw func(renderer.View)) {
	for _, tv := range v.cam.Tiles() {
		draw(tv)
	}
}

func (v *viewer) on(id ui.OverlayID) bool { return v.overlays.IsEnabled(id) }

// Draw renders the current state.
func (g *Game) Draw() {
	v := g.viewer
	if v == nil {
		return
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	f := v.cam.Frame
	rl.BeginScissorMode(int32(f.X), int32(f.Y), int32(f.Width), int32(f.Height))

	if v.on(ui.OverlayStimuli) {
		v.timed("stimuli", func() {
			if v.stimuliStale {
				v.stimuli.Update(g.engine.Aux().Stimuli)
				v.stimuliStale = false
			}
			v.stimuli.Step(rl.GetFrameTime())
			v.tiled(v.stimuli.Draw)
		})
	}

	trail := g.engine.Trail()
	v.timed("trail", func() {
		v.trail.Update(trail.Data, trail.W, trail.H)
		v.tiled(v.trail.Draw)
	})

	if v.on(ui.OverlayRaster) {
		v.timed("raster", func() {
			if raster := g.engine.DebugRaster(); raster != nil {
				v.raster.Update(raster, trail.W, trail.H)
				v.tiled(v.raster.Draw)
			}
		})
	}

	if v.on(ui.OverlayFlow) {
		v.timed("flow", func() {
			field := g.engine.Velocity()
			if g.input.UseExternalVelocity {
				field = g.engine.Aux().Fluid
			}
			v.tiled(func(tv renderer.View) { v.flow.Draw(tv, field) })
		})
	}

	if v.on(ui.OverlayParticles) {
		v.timed("particles", func() {
			for _, info := range g.engine.Emitters() {
				ps := g.engine.Particles(info.Handle)
				v.tiled(func(tv renderer.View) { v.particles.Draw(tv, ps) })
			}
		})
	}

	rl.EndScissorMode()

	if v.on(ui.OverlayMarkers) {
		g.drawMarkers()
	}

	v.timed("ui", g.drawUI)

	rl.EndDrawing()

	if g.logStats && g.engine.TickCount()%600 == 0 {
		g.logPerfStats()
	}
}

// selectedInfo returns the engine view of the selected actor's emitter.
func (g *Game) selectedInfo() (engine.EmitterInfo, bool) {
	v := g.viewer
	if !v.hasSelection {
		return engine.EmitterInfo{}, false
	}
	h, ok := g.scene.Handle(v.selected)
	if !ok {
		return engine.EmitterInfo{}, false
	}
	return g.engine.Emitter(h)
}

func (g *Game) drawMarkers() {
	v := g.viewer
	sel, hasSel := g.selectedInfo()

	infos := g.engine.Emitters()
	markers := make([]renderer.Marker, 0, len(infos))
	for _, info := range infos {
		if !v.cam.IsVisible(info.Position, 0) {
			continue
		}
		markers = append(markers, renderer.Marker{
			Pos:      v.cam.ToScreen(info.Position),
			Label:    info.Name,
			Live:     info.Live,
			Capacity: info.Capacity,
			Selected: hasSel && info.Handle == sel.Handle,
		})
	}
	v.particles.DrawMarkers(markers)
}

// drawUI draws the HUD, the left-hand panels and the parameter panel.
func (g *Game) drawUI() {
	v := g.viewer
	s := g.lastStats

	capacity := 0
	infos := g.engine.Emitters()
	for _, info := range infos {
		capacity += info.Capacity
	}
	y := v.hud.Draw(ui.HUDData{
		Title:    "Physarum",
		Tick:     s.Tick,
		SimTime:  s.SimTime,
		Emitters: len(infos),
		Live:     s.Live,
		Capacity: capacity,
		Spawned:  s.Spawned,
		Died:     s.Died,
		Trail:    s.TrailAfter,
		Speed:    g.stepsPerUpdate,
		FPS:      rl.GetFPS(),
		Zoom:     v.cam.Zoom,
		Paused:   g.paused,
	})
	v.hud.DrawControls(int32(v.screenH), controlsLegend)

	if v.controls.IsVisible() {
		y = v.controls.Draw(v.overlays) + 10
	}
	if info, ok := g.selectedInfo(); ok {
		v.inspector.SetPosition(10, y)
		y = v.inspector.Draw(ui.InspectorData{Info: info, Emitter: g.emitterConfig(info.Name)}) + 10
	}
	if v.on(ui.OverlayPerf) {
		v.perfPanel.SetPosition(10, y)
		v.perfPanel.Draw(ui.PerfPanelData{Times: v.perf.Averages(), Total: v.perf.Total()}, v.perf.SortedNames())
	}

	if v.showPanel {
		g.drawPanel()
	}
}

// drawPanel draws parameter sliders and pushes changes to the engine.
func (g *Game) drawPanel() {
	v := g.viewer
	x := v.screenW - panelWidth - 10
	y := float32(10)
	rl.DrawRectangleRec(rl.Rectangle{X: x - 10, Y: 0, Width: panelWidth + 20, Height: v.screenH}, rl.Color{R: 15, G: 15, B: 20, A: 220})

	p := g.engine.Params()
	changed := false
	slider := func(label string, value *float32, lo, hi float32) {
		rl.DrawText(fmt.Sprintf("%s: %.3f", label, *value), int32(x), int32(y), 14, rl.LightGray)
		y += 16
		nv := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: panelWidth - 60, Height: 16}, "", "", *value, lo, hi)
		if nv != *value {
			*value = nv
			changed = true
		}
		y += 26
	}

	rl.DrawText("Trail", int32(x), int32(y), 18, rl.RayWhite)
	y += 24
	slider("Decay", &p.Decay, 0, 1)
	slider("Diffusion", &p.Diffusion, 0, 1)
	slider("Repulsion", &p.Repulsion, 0, 2)
	slider("Advection", &p.AdvectionStrength, 0, 10)
	slider("Velocity decay", &p.VelocityDecay, 0, 1)
	slider("Influence weight", &p.InfluenceWeight, 0, 4)
	slider("Fluid drift", &p.FluidDrift, 0, 1)
	if changed {
		g.setParams(p)
	}

	slider("Stimuli intensity", &g.input.StimuliIntensity, 0, 4)
	slider("Exposure", &v.trail.Exposure, 0.05, 10)

	y += 6
	button := func(col int, label string) bool {
		return gui.Button(rl.Rectangle{X: x + float32(col)*(panelWidth/2), Y: y, Width: panelWidth/2 - 10, Height: 26}, label)
	}
	if button(0, toggleText(p.SynchronizeSensorAndRotation, "Unsync turn", "Sync turn")) {
		p.SynchronizeSensorAndRotation = !p.SynchronizeSensorAndRotation
		g.setParams(p)
	}
	if button(1, toggleText(g.input.UseExternalVelocity, "Own velocity", "Fluid velocity")) {
		g.input.UseExternalVelocity = !g.input.UseExternalVelocity
	}
	y += 34

	if len(g.cfg.Emitters) > 0 {
		name := g.cfg.Emitters[v.spawnIndex].Name
		if button(0, "Spawn: "+name) {
			v.spawnIndex = (v.spawnIndex + 1) % len(g.cfg.Emitters)
		}
	}
	if button(1, "Snapshot") {
		g.snapshotNow()
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
