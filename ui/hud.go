package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title    string
	Tick     uint64
	SimTime  float64
	Emitters int
	Live     int
	Capacity int
	Spawned  int
	Died     int
	Trail    float64
	Speed    int
	FPS      int32
	Zoom     float32
	Paused   bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD and returns the Y just below it.
func (h *HUD) Draw(data HUDData) int32 {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Emitters: %d | Live: %d/%d | +%d -%d", data.Emitters, data.Live, data.Capacity, data.Spawned, data.Died),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | t=%.1fs | Speed: %dx | FPS: %d | Zoom: %.1fx | Trail: %.1f",
			data.Tick, data.SimTime, data.Speed, data.FPS, data.Zoom, data.Trail),
		10, 55, 16, rl.LightGray,
	)

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	rl.DrawText(status, 10, 75, 16, rl.Yellow)
	return 100
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-20, 12, rl.Gray)
}

// PerfPanelData holds frame section timings for display.
type PerfPanelData struct {
	Times map[string]time.Duration
	Total time.Duration
}

// PerfPanel renders the frame performance panel.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel, slowest section first.
func (p *PerfPanel) Draw(data PerfPanelData, sortedNames []string) {
	x, y := p.x, p.y

	rl.DrawText("Frame Performance", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("Total: %s", data.Total.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for i, name := range sortedNames {
		if i >= 12 {
			break
		}
		avg := data.Times[name]
		pct := float64(0)
		if data.Total > 0 {
			pct = float64(avg) / float64(data.Total) * 100
		}

		color := rl.LightGray
		if pct > 40 {
			color = rl.Red
		} else if pct > 20 {
			color = rl.Orange
		}
		rl.DrawText(
			fmt.Sprintf("%-12s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
