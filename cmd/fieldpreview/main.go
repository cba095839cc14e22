// Field preview tool - interactive tuning of procedural stimuli, influence
// and fluid fields.
//
// Usage: go run ./cmd/fieldpreview [-config path]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/systems"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

type mode int

const (
	modeStimuli mode = iota
	modeInfluence
	modeFluid
)

func (m mode) String() string {
	switch m {
	case modeInfluence:
		return "influence"
	case modeFluid:
		return "fluid"
	default:
		return "stimuli"
	}
}

// generate builds the field for the mode.
func generate(m mode, p systems.NoiseParams) *systems.Grid {
	switch m {
	case modeInfluence:
		return systems.ProceduralInfluence(p)
	case modeFluid:
		return systems.CurlFluid(p)
	default:
		return systems.ProceduralStimuli(p)
	}
}

// intensity maps a generated field to [0,1] per cell: stimuli alpha,
// influence rescaled from [-1,1], fluid magnitude relative to its peak.
func intensity(m mode, g *systems.Grid) []float32 {
	n := g.W * g.H
	out := make([]float32, n)
	switch m {
	case modeInfluence:
		for i := range out {
			out[i] = (g.Data[i] + 1) / 2
		}
	case modeFluid:
		var peak float32
		for i := range out {
			out[i] = float32(math.Hypot(float64(g.Data[2*i]), float64(g.Data[2*i+1])))
			peak = max(peak, out[i])
		}
		if peak > 0 {
			for i := range out {
				out[i] /= peak
			}
		}
	default:
		for i := range out {
			out[i] = g.Data[4*i+3]
		}
	}
	for i, v := range out {
		out[i] = min(max(v, 0), 1)
	}
	return out
}

// yamlSnippet renders the field config as a top-level YAML block.
func yamlSnippet(m mode, fc config.FieldConfig) (string, error) {
	fc.Source = "procedural"
	out, err := yaml.Marshal(map[string]config.FieldConfig{m.String(): fc})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func fieldConfig(cfg *config.Config, m mode) *config.FieldConfig {
	switch m {
	case modeInfluence:
		return &cfg.Influence
	case modeFluid:
		return &cfg.Fluid
	default:
		return &cfg.Stimuli
	}
}

// gradient builds a 256-entry dark-to-bright palette.
func gradient() [256]color.RGBA {
	stops := []colorful.Color{
		colorful.MustParseHex("#0a1440"),
		colorful.MustParseHex("#2860c8"),
		colorful.MustParseHex("#3cc8c8"),
		colorful.MustParseHex("#c8a032"),
		colorful.MustParseHex("#ffffff"),
	}
	var lut [256]color.RGBA
	for i := range lut {
		t := float64(i) / 255 * float64(len(stops)-1)
		k := min(int(t), len(stops)-2)
		c := stops[k].BlendLab(stops[k+1], t-float64(k)).Clamped()
		r, g, b := c.RGB255()
		lut[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return lut
}

func main() {
	configPath := flag.String("config", "", "Config YAML to start from (empty = defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defaults := *cfg

	rl.InitWindow(windowWidth, windowHeight, "Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	current := modeStimuli
	lut := gradient()
	flow := renderer.NewFlowRenderer(16, 12)
	view := renderer.View{X: 10, Y: 10, Width: previewSize, Height: previewSize, Field: mgl32.Vec2{1, 1}}

	var (
		texture   rl.Texture2D
		texW      int
		texH      int
		grid      *systems.Grid
		values    []float32
		regen     = true
		clipboard string
	)
	defer func() {
		if texW > 0 {
			rl.UnloadTexture(texture)
		}
	}()

	for !rl.WindowShouldClose() {
		fc := fieldConfig(cfg, current)

		if regen {
			grid = generate(current, fc.NoiseParams())
			values = intensity(current, grid)
			if texW != grid.W || texH != grid.H {
				if texW > 0 {
					rl.UnloadTexture(texture)
				}
				img := rl.GenImageColor(grid.W, grid.H, rl.Black)
				texture = rl.LoadTextureFromImage(img)
				rl.UnloadImage(img)
				rl.SetTextureFilter(texture, rl.FilterBilinear)
				texW, texH = grid.W, grid.H
			}
			pixels := make([]color.RGBA, len(values))
			for i, v := range values {
				pixels[i] = lut[int(v*255)]
			}
			rl.UpdateTexture(texture, pixels)
			regen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(texW), Height: float32(texH)},
			view.Rect(),
			rl.Vector2{},
			0,
			rl.White,
		)
		if current == modeFluid {
			flow.Draw(view, grid)
		}
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		var sum float32
		minVal, maxVal := float32(1), float32(0)
		for _, v := range values {
			sum += v
			minVal = min(minVal, v)
			maxVal = max(maxVal, v)
		}
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Min: %.3f  Max: %.3f  Avg: %.3f", minVal, maxVal, sum/float32(len(values))), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("%dx%d %s", grid.W, grid.H, current), 15, statsY+20, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)
		rl.DrawText("Procedural Field Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		slider := func(label, format string, value, lo, hi float64) float64 {
			rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			nv := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				"", "", float32(value), float32(lo), float32(hi),
			)
			rl.DrawText(fmt.Sprintf(format, value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			panelY += 35
			if float64(nv) != float64(float32(value)) {
				regen = true
				return float64(nv)
			}
			return value
		}

		fc.Scale = slider("Scale (features per tile)", "%.1f", fc.Scale, 1, 20)
		fc.Octaves = int(slider("Octaves (FBM detail level)", "%.0f", float64(fc.Octaves), 1, 6))
		fc.Lacunarity = slider("Lacunarity (frequency multiplier)", "%.2f", fc.Lacunarity, 1.5, 4)
		fc.Gain = slider("Gain (amplitude multiplier)", "%.2f", fc.Gain, 0.2, 0.9)
		fc.Contrast = slider("Contrast (higher = sparser)", "%.2f", fc.Contrast, 1, 5)
		fc.Strength = slider("Strength", "%.2f", fc.Strength, 0, 2)
		fc.Seed = int64(slider("Seed", "%.0f", float64(fc.Seed), 0, 99999))

		panelY += 10
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Mode: "+current.String()) {
			current = (current + 1) % 3
			regen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			fc.Seed = int64(rl.GetRandomValue(0, 99999))
			regen = true
		}
		panelY += 40
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Reset") {
			*fc = *fieldConfig(&defaults, current)
			regen = true
		}
		panelY += 50

		snippet, err := yamlSnippet(current, *fc)
		if err != nil {
			snippet = err.Error()
		}
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		rl.DrawText(snippet, int32(panelX), int32(panelY), 12, rl.Gray)

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) && snippet != clipboard {
			rl.SetClipboardText(snippet)
			clipboard = snippet
		}

		rl.EndDrawing()
	}
}
