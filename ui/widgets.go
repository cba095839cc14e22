package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Renderer draws panels and descriptor-driven sections in one theme.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel fills a bordered panel background.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a header line and returns the next Y.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

func (r *Renderer) label(x, y int32, label string) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	return x + r.Theme.LabelWidth
}

// DrawLabelValue draws "label: value" and returns the next Y.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	vx := r.label(x, y, label)
	rl.DrawText(value, vx, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.rowHeight(WidgetText)
}

// DrawBar draws a [0, 1] bar; a full bar switches to the warning fill.
func (r *Renderer) DrawBar(x, y int32, label string, value float32, width int32) int32 {
	t := r.Theme
	value = max(0, min(1, value))
	bx := r.label(x, y, label)
	bw := width - t.LabelWidth - 50

	fill := t.BarFill
	if value >= 1 {
		fill = t.BarFillWarn
	}
	rl.DrawRectangle(bx, y+2, bw, t.BarHeight, t.BarBg)
	rl.DrawRectangle(bx, y+2, int32(float32(bw)*value), t.BarHeight, fill)
	rl.DrawText(fmt.Sprintf("%.2f", value), bx+bw+5, y, t.FontSize, t.ValueColor)
	return y + r.rowHeight(WidgetBar)
}

// DrawColorSwatch draws a labelled color square.
func (r *Renderer) DrawColorSwatch(x, y int32, label string, color rl.Color) int32 {
	sx := r.label(x, y, label)
	rl.DrawRectangle(sx, y+1, 12, 12, color)
	return y + r.rowHeight(WidgetColorSwatch)
}

// DrawGradient draws colors as equal-width stripes filling the value column.
func (r *Renderer) DrawGradient(x, y int32, label string, colors []rl.Color, width int32) int32 {
	t := r.Theme
	gx := r.label(x, y, label)
	gw := width - t.LabelWidth
	rl.DrawRectangle(gx, y+2, gw, t.BarHeight, t.BarBg)
	if n := int32(len(colors)); n > 0 {
		for i, c := range colors {
			x0 := gx + gw*int32(i)/n
			x1 := gx + gw*int32(i+1)/n
			rl.DrawRectangle(x0, y+2, x1-x0, t.BarHeight, c)
		}
	}
	rl.DrawRectangleLines(gx, y+2, gw, t.BarHeight, t.PanelBorder)
	return y + r.rowHeight(WidgetGradient)
}

func (r *Renderer) rowHeight(w WidgetType) int32 {
	switch w {
	case WidgetBar, WidgetGradient:
		return r.Theme.LineHeight + 2
	case WidgetSpacer:
		return 6
	default:
		return r.Theme.LineHeight
	}
}

// DrawField draws one descriptor against data.
func (r *Renderer) DrawField(x, y int32, fd FieldDescriptor, data any, width int32) int32 {
	switch fd.Widget {
	case WidgetText:
		text := ""
		switch {
		case fd.TextGetter != nil:
			text = fd.TextGetter(data)
		case fd.Getter != nil:
			text = fmt.Sprintf(fd.Format, fd.Getter(data))
		}
		return r.DrawLabelValue(x, y, fd.Label, text)
	case WidgetBar:
		var v float32
		if fd.Getter != nil {
			v = fd.Getter(data)
		}
		return r.DrawBar(x, y, fd.Label, v, width)
	case WidgetColorSwatch:
		c := rl.White
		if fd.ColorGetter != nil {
			c = fd.ColorGetter(data)
		}
		return r.DrawColorSwatch(x, y, fd.Label, c)
	case WidgetGradient:
		var cs []rl.Color
		if fd.Gradient != nil {
			cs = fd.Gradient(data)
		}
		return r.DrawGradient(x, y, fd.Label, cs, width)
	}
	return y + r.rowHeight(fd.Widget)
}

func visible(pred func(any) bool, data any) bool { return pred == nil || pred(data) }

// DrawSection draws a titled group of fields, skipping hidden ones.
func (r *Renderer) DrawSection(x, y int32, sd SectionDescriptor, data any, width int32) int32 {
	if !visible(sd.Visible, data) {
		return y
	}
	if sd.Title != "" {
		y = r.DrawSectionHeader(x, y, sd.Title)
	}
	for _, fd := range sd.Fields {
		if visible(fd.Visible, data) {
			y = r.DrawField(x, y, fd, data, width)
		}
	}
	return y + 4
}

// SectionHeight returns the height DrawSection would use.
func (r *Renderer) SectionHeight(sd SectionDescriptor, data any) int32 {
	if !visible(sd.Visible, data) {
		return 0
	}
	var h int32 = 4
	if sd.Title != "" {
		h += r.Theme.LineHeight
	}
	for _, fd := range sd.Fields {
		if visible(fd.Visible, data) {
			h += r.rowHeight(fd.Widget)
		}
	}
	return h
}
