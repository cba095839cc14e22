package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// ControlsPanel lists overlays by category. Rows can be clicked to toggle.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a hidden controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool { return c.visible }

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Height returns the panel height for the registry's current contents.
func (c *ControlsPanel) Height(overlays *OverlayRegistry) int32 {
	t := c.renderer.Theme
	rows := int32(len(overlays.All()) + len(overlays.Categories()))
	return rows*t.LineHeight + t.Padding*2 + 20
}

// rowAt returns the overlay whose row contains the screen point.
func (c *ControlsPanel) rowAt(overlays *OverlayRegistry, p rl.Vector2) (OverlayID, bool) {
	t := c.renderer.Theme
	if p.X < float32(c.x) || p.X >= float32(c.x+c.width) {
		return "", false
	}
	y := c.y + t.Padding + 20
	for _, cat := range overlays.Categories() {
		y += t.LineHeight
		for _, desc := range overlays.ByCategory(cat) {
			if p.Y >= float32(y) && p.Y < float32(y+t.LineHeight) {
				return desc.ID, true
			}
			y += t.LineHeight
		}
	}
	return "", false
}

// Click toggles the overlay under p, if any, and reports which one changed
// and its new state.
func (c *ControlsPanel) Click(overlays *OverlayRegistry, p rl.Vector2) (OverlayID, bool, bool) {
	if !c.visible {
		return "", false, false
	}
	id, ok := c.rowAt(overlays, p)
	if !ok {
		return "", false, false
	}
	return id, overlays.Toggle(id), true
}

// Contains reports whether p lies on the visible panel.
func (c *ControlsPanel) Contains(overlays *OverlayRegistry, p rl.Vector2) bool {
	if !c.visible {
		return false
	}
	return p.X >= float32(c.x) && p.X < float32(c.x+c.width) &&
		p.Y >= float32(c.y) && p.Y < float32(c.y+c.Height(overlays))
}

// Draw renders the panel and returns the Y just below it.
func (c *ControlsPanel) Draw(overlays *OverlayRegistry) int32 {
	if !c.visible {
		return c.y
	}
	r := c.renderer
	t := r.Theme
	height := c.Height(overlays)
	r.DrawPanel(c.x, c.y, c.width, height)

	x := c.x + t.Padding
	y := c.y + t.Padding
	rl.DrawText("Overlays", x, y, 16, rl.White)
	y += 20

	mouse := rl.GetMousePosition()
	hover, hovering := c.rowAt(overlays, mouse)

	for _, cat := range overlays.Categories() {
		y = r.DrawSectionHeader(x, y, categoryLabel(cat))
		for _, desc := range overlays.ByCategory(cat) {
			if hovering && hover == desc.ID {
				rl.DrawRectangle(c.x+1, y, c.width-2, t.LineHeight, rl.Color{R: 40, G: 50, B: 60, A: 255})
			}
			c.drawRow(x, y, desc, overlays.IsEnabled(desc.ID), c.width-t.Padding*2)
			y += t.LineHeight
		}
	}
	return c.y + height
}

func (c *ControlsPanel) drawRow(x, y int32, desc OverlayDescriptor, enabled bool, width int32) {
	t := c.renderer.Theme

	box := rl.Color{R: 80, G: 80, B: 80, A: 255}
	name := t.LabelColor
	if enabled {
		box = rl.Color{R: 100, G: 200, B: 100, A: 255}
		name = rl.White
	}
	rl.DrawRectangle(x, y+2, 8, 8, box)
	rl.DrawText(desc.Name, x+14, y, t.FontSize, name)

	if desc.KeyLabel != "" {
		key := fmt.Sprintf("[%s]", desc.KeyLabel)
		rl.DrawText(key, x+width-rl.MeasureText(key, t.FontSize), y, t.FontSize, rl.Gray)
	}
}

// categoryLabel returns a display label for a category.
func categoryLabel(cat string) string {
	switch cat {
	case "visual":
		return "Visual"
	case "debug":
		return "Debug"
	default:
		return cat
	}
}
