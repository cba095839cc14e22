package game

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/ui"
)

// pickRadius is the click distance, in screen pixels, that selects an actor.
const pickRadius = 12

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	v := g.viewer
	if v == nil {
		return
	}

	g.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > 1 {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < 10 {
		g.stepsPerUpdate++
	}
	// Single step while paused
	if g.paused && rl.IsKeyPressed(rl.KeyRight) {
		if err := g.Step(); err != nil {
			g.log.Error("step failed", "error", err)
		}
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		v.showPanel = !v.showPanel
	}
	if rl.IsKeyPressed(rl.KeyO) {
		v.controls.Toggle()
	}
	if key := rl.GetKeyPressed(); key != 0 {
		if id, on, ok := v.overlays.HandleKeyPress(key); ok {
			g.overlayToggled(id, on)
		}
	}
	if rl.IsKeyPressed(rl.KeyS) {
		g.snapshotNow()
	}
	if rl.IsKeyPressed(rl.KeyL) {
		g.logWorldState()
	}
	if rl.IsKeyPressed(rl.KeyX) || rl.IsKeyPressed(rl.KeyDelete) {
		g.removeSelected()
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		v.cam.Reset()
	}

	g.handleMouse()
}

// handleMouse zooms and pans the camera, and selects the actor under the
// cursor or spawns one on empty field space.
func (g *Game) handleMouse() {
	v := g.viewer
	mouse := rl.GetMousePosition()
	if v.showPanel && mouse.X >= v.screenW-panelWidth-20 {
		return
	}
	if v.controls.Contains(v.overlays, mouse) {
		if rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
			if id, on, ok := v.controls.Click(v.overlays, mouse); ok {
				g.overlayToggled(id, on)
			}
		}
		return
	}
	if !v.cam.Contains(mouse) {
		return
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.cam.ZoomAt(float32(math.Pow(1.15, float64(wheel))), mouse)
	}
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		v.cam.Pan(d.X, d.Y)
	}
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}

	p := v.cam.ToField(mouse)
	if e, ok := g.scene.Nearest(p, pickRadius/v.cam.PixelsPerUnit()); ok {
		v.selected, v.hasSelection = e, true
		return
	}

	if len(g.cfg.Emitters) == 0 {
		return
	}
	actor := config.ActorConfig{
		Emitter:  g.cfg.Emitters[v.spawnIndex].Name,
		Position: fieldToActor(p, g.cfg.Scene.Mapping),
	}
	e, err := g.scene.Spawn(actor)
	if err != nil {
		g.log.Warn("spawn failed", "error", err)
		return
	}
	v.selected, v.hasSelection = e, true
	g.applyIfPaused()
}

// overlayToggled forwards overlay changes that the engine needs to know about.
func (g *Game) overlayToggled(id ui.OverlayID, on bool) {
	if id == ui.OverlayRaster {
		g.engine.SetDebug(on)
		g.applyIfPaused()
	}
}

func (g *Game) removeSelected() {
	v := g.viewer
	if !v.hasSelection {
		return
	}
	g.scene.Despawn(v.selected)
	v.hasSelection = false
	g.applyIfPaused()
}

// handleResize checks for window resize and refits the field view.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	v := g.viewer
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.screenW && h == v.screenH {
		return
	}
	v.screenW, v.screenH = w, h
	v.fit(g.cfg)
}

// setParams queues new engine parameters.
func (g *Game) setParams(p engine.Params) {
	if err := g.engine.SetParams(p); err != nil {
		g.log.Warn("rejected parameters", "error", err)
		return
	}
	g.applyIfPaused()
}

// applyIfPaused applies queued engine changes right away so a paused view
// reflects them.
func (g *Game) applyIfPaused() {
	if !g.paused {
		return
	}
	if err := g.engine.ApplyPending(); err != nil {
		g.log.Warn("apply pending", "error", err)
	}
}

func (g *Game) snapshotNow() {
	path, err := g.SaveSnapshot()
	if err != nil {
		g.log.Error("failed to save snapshot", "error", err)
		return
	}
	g.log.Info("snapshot saved", "path", path, "tick", g.engine.TickCount())
}
