package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/systems"
)

// InspectorData holds everything the emitter inspector shows.
type InspectorData struct {
	Info    engine.EmitterInfo
	Emitter *systems.Emitter // configured parameters; nil if unknown
}

// Occupancy returns live/capacity in [0, 1].
func (d InspectorData) Occupancy() float32 {
	if d.Info.Capacity == 0 {
		return 0
	}
	return float32(d.Info.Live) / float32(d.Info.Capacity)
}

func inspectorData(data any) InspectorData { return data.(InspectorData) }

func hasEmitter(data any) bool { return inspectorData(data).Emitter != nil }

func emitterField(get func(*systems.Emitter) float32) func(any) float32 {
	return func(data any) float32 { return get(inspectorData(data).Emitter) }
}

// InspectorSections describes the emitter inspector layout.
var InspectorSections = []SectionDescriptor{
	{
		Title: "Pool",
		Fields: []FieldDescriptor{
			{Label: "Handle", Widget: WidgetText, TextGetter: func(d any) string {
				return fmt.Sprintf("%d", inspectorData(d).Info.Handle)
			}},
			{Label: "Position", Widget: WidgetText, TextGetter: func(d any) string {
				p := inspectorData(d).Info.Position
				return fmt.Sprintf("(%.3f, %.3f)", p[0], p[1])
			}},
			{Label: "Live", Widget: WidgetText, TextGetter: func(d any) string {
				i := inspectorData(d).Info
				return fmt.Sprintf("%d / %d", i.Live, i.Capacity)
			}},
			{Label: "Occupancy", Widget: WidgetBar, Getter: func(d any) float32 { return inspectorData(d).Occupancy() }},
			{Label: "Move passes", Widget: WidgetText, TextGetter: func(d any) string {
				return fmt.Sprintf("%d", inspectorData(d).Info.Ticks)
			}},
			{Label: "Capacity", Widget: WidgetText, TextGetter: func(any) string { return "clamped" },
				Visible: func(d any) bool { return inspectorData(d).Info.Clamped }},
		},
	},
	{
		Title:   "Steering",
		Visible: hasEmitter,
		Fields: []FieldDescriptor{
			{Label: "Sensor angle", Widget: WidgetText, Format: "%.1f deg", Getter: emitterField(func(e *systems.Emitter) float32 { return e.SensorAngle })},
			{Label: "Rotation", Widget: WidgetText, Format: "%.1f deg", Getter: emitterField(func(e *systems.Emitter) float32 { return e.RotationAngle })},
			{Label: "Sensor offset", Widget: WidgetText, Format: "%.4f", Getter: emitterField(func(e *systems.Emitter) float32 { return e.SensorOffset })},
			{Label: "Step size", Widget: WidgetText, Format: "%.4f", Getter: emitterField(func(e *systems.Emitter) float32 { return e.StepSize })},
			{Label: "Deposit", Widget: WidgetText, Format: "%.3f", Getter: emitterField(func(e *systems.Emitter) float32 { return e.DepositAmount })},
		},
	},
	{
		Title:   "Emission",
		Visible: hasEmitter,
		Fields: []FieldDescriptor{
			{Label: "Spawn mode", Widget: WidgetText, TextGetter: func(d any) string {
				return string(inspectorData(d).Emitter.SpawnMode)
			}},
			{Label: "Rate", Widget: WidgetText, Format: "%.1f", Getter: emitterField(func(e *systems.Emitter) float32 { return e.SpawnRate })},
			{Label: "Lifetime", Widget: WidgetText, TextGetter: func(d any) string {
				e := inspectorData(d).Emitter
				return fmt.Sprintf("%.1f - %.1f s", e.LifetimeMin, e.LifetimeMax)
			}},
			{Label: "Main color", Widget: WidgetColorSwatch, ColorGetter: func(d any) rl.Color {
				return toRaylib(inspectorData(d).Emitter.MainColor)
			}},
			{Label: "Second color", Widget: WidgetColorSwatch, ColorGetter: func(d any) rl.Color {
				return toRaylib(inspectorData(d).Emitter.SecondaryColor)
			}, Visible: func(d any) bool {
				e := inspectorData(d).Emitter
				return e != nil && e.SecondaryColorProbability > 0
			}},
			{Label: "Over life", Widget: WidgetGradient, Gradient: lifeGradient, Visible: func(d any) bool {
				e := inspectorData(d).Emitter
				return e != nil && e.UseColorOverLife
			}},
		},
	},
}

// gradientSamples is the number of stripes in the color-over-life strip.
const gradientSamples = 32

func lifeGradient(data any) []rl.Color {
	lut, err := systems.BuildColorLUT(inspectorData(data).Emitter.ColorOverLife, gradientSamples)
	if err != nil {
		return nil
	}
	out := make([]rl.Color, gradientSamples)
	for i := range out {
		v := lut.Sample(float32(i) / (gradientSamples - 1))
		out[i] = rl.ColorFromNormalized(rl.Vector4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
	}
	return out
}

func toRaylib(c systems.Color) rl.Color {
	v := c.Vec4()
	return rl.ColorFromNormalized(rl.Vector4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
}

// Inspector renders the selected emitter's panel.
type Inspector struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewInspector creates a new inspector panel.
func NewInspector(x, y, width int32) *Inspector {
	return &Inspector{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the inspector position.
func (ins *Inspector) SetPosition(x, y int32) {
	ins.x = x
	ins.y = y
}

// Draw renders the inspector panel for the given data.
func (ins *Inspector) Draw(data InspectorData) int32 {
	r := ins.renderer
	padding := r.Theme.Padding

	height := padding*2 + r.Theme.LineHeight + 6
	for _, sd := range InspectorSections {
		height += r.SectionHeight(sd, data)
	}
	r.DrawPanel(ins.x, ins.y, ins.width, height)

	x := ins.x + padding
	y := ins.y + padding
	rl.DrawText(data.Info.Name, x, y, 16, rl.White)
	y += r.Theme.LineHeight + 6

	for _, sd := range InspectorSections {
		y = r.DrawSection(x, y, sd, data, ins.width-padding*2)
	}
	return ins.y + height
}
