// Package camera provides pan and zoom over the toroidal trail field.
package camera

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/systems"
)

// Camera controls which part of the field fills the frame. The field wraps,
// so panning past an edge shows the opposite side.
type Camera struct {
	// Center is the field position shown in the middle of the frame.
	Center mgl32.Vec2

	// Zoom level (1.0 = the whole field fits the frame)
	Zoom float32

	// Frame is the letterboxed screen rectangle the field occupies at zoom 1.
	Frame renderer.View

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centered on the field with the whole field visible.
func New(frame renderer.View) *Camera {
	return &Camera{
		Center:  frame.Field.Mul(0.5),
		Zoom:    1.0,
		Frame:   frame,
		MinZoom: 1.0,
		MaxZoom: 16.0,
	}
}

// PixelsPerUnit is the current screen scale of one field unit.
func (c *Camera) PixelsPerUnit() float32 {
	return c.Frame.Width / c.Frame.Field[0] * c.Zoom
}

func (c *Camera) mid() mgl32.Vec2 {
	return mgl32.Vec2{c.Frame.X + c.Frame.Width/2, c.Frame.Y + c.Frame.Height/2}
}

// View returns the mapping for the field copy that holds Center.
func (c *Camera) View() renderer.View {
	s := c.PixelsPerUnit()
	m := c.mid()
	return renderer.View{
		X:      m[0] - c.Center[0]*s,
		Y:      m[1] - c.Center[1]*s,
		Width:  c.Frame.Field[0] * s,
		Height: c.Frame.Field[1] * s,
		Field:  c.Frame.Field,
	}
}

// Tiles returns a view for every periodic copy of the field that overlaps
// the frame. Layers draw once per tile under a scissor set to the frame.
func (c *Camera) Tiles() []renderer.View {
	base := c.View()
	if base.Width <= 0 || base.Height <= 0 {
		return nil
	}
	f := c.Frame
	x0 := int(math.Floor(float64((f.X - base.X) / base.Width)))
	y0 := int(math.Floor(float64((f.Y - base.Y) / base.Height)))

	var tiles []renderer.View
	for ty := y0; base.Y+float32(ty)*base.Height < f.Y+f.Height; ty++ {
		for tx := x0; base.X+float32(tx)*base.Width < f.X+f.Width; tx++ {
			t := base
			t.X += float32(tx) * base.Width
			t.Y += float32(ty) * base.Height
			tiles = append(tiles, t)
		}
	}
	return tiles
}

// ToScreen maps a field position to the screen, picking the copy nearest
// the frame center.
func (c *Camera) ToScreen(p mgl32.Vec2) rl.Vector2 {
	d := systems.WrapDelta(c.Center, p, c.Frame.Field).Mul(c.PixelsPerUnit())
	m := c.mid()
	return rl.Vector2{X: m[0] + d[0], Y: m[1] + d[1]}
}

// ToField maps a screen point to a wrapped field position.
func (c *Camera) ToField(s rl.Vector2) mgl32.Vec2 {
	m := c.mid()
	d := mgl32.Vec2{s.X - m[0], s.Y - m[1]}.Mul(1 / c.PixelsPerUnit())
	return systems.WrapPosition(c.Center.Add(d), c.Frame.Field)
}

// Contains reports whether a screen point lies inside the frame.
func (c *Camera) Contains(s rl.Vector2) bool {
	f := c.Frame
	return s.X >= f.X && s.X < f.X+f.Width && s.Y >= f.Y && s.Y < f.Y+f.Height
}

// IsVisible returns true if a circle at p with the given field radius could
// be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(p mgl32.Vec2, radius float32) bool {
	d := systems.WrapDelta(c.Center, p, c.Frame.Field)
	s := c.PixelsPerUnit()
	halfW := c.Frame.Width/(2*s) + radius
	halfH := c.Frame.Height/(2*s) + radius
	return absf(d[0]) <= halfW && absf(d[1]) <= halfH
}

// SetFrame updates the frame after a window resize, keeping center and zoom.
func (c *Camera) SetFrame(frame renderer.View) {
	if frame.Field != c.Frame.Field {
		c.Center = systems.WrapPosition(c.Center, frame.Field)
	}
	c.Frame = frame
}

// Pan moves the view by a screen-space drag delta. Content follows the
// pointer and wraps around field boundaries.
func (c *Camera) Pan(dx, dy float32) {
	s := c.PixelsPerUnit()
	c.Center = systems.WrapPosition(c.Center.Sub(mgl32.Vec2{dx / s, dy / s}), c.Frame.Field)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomAt multiplies the zoom by factor while keeping the field position
// under the screen point anchor fixed.
func (c *Camera) ZoomAt(factor float32, anchor rl.Vector2) {
	m := c.mid()
	off := mgl32.Vec2{anchor.X - m[0], anchor.Y - m[1]}
	target := c.Center.Add(off.Mul(1 / c.PixelsPerUnit()))

	c.SetZoom(c.Zoom * factor)
	c.Center = systems.WrapPosition(target.Sub(off.Mul(1/c.PixelsPerUnit())), c.Frame.Field)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.Center = c.Frame.Field.Mul(0.5)
	c.Zoom = 1.0
}

// absf returns the absolute value of a float32.
func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
