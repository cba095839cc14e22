// Package renderer draws the simulation fields and emitters with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

// View maps field space onto a screen rectangle.
type View struct {
	X, Y          float32 // screen origin of the field
	Width, Height float32 // screen extent
	Field         mgl32.Vec2
}

// Fit returns a view that letterboxes a field of the given size into the
// screen, keeping its aspect ratio.
func Fit(screenW, screenH float32, field mgl32.Vec2) View {
	scale := min(screenW/field[0], screenH/field[1])
	w, h := field[0]*scale, field[1]*scale
	return View{X: (screenW - w) / 2, Y: (screenH - h) / 2, Width: w, Height: h, Field: field}
}

// ToScreen maps a field position to screen pixels.
func (v View) ToScreen(p mgl32.Vec2) rl.Vector2 {
	return rl.Vector2{
		X: v.X + p[0]/v.Field[0]*v.Width,
		Y: v.Y + p[1]/v.Field[1]*v.Height,
	}
}

// ToField maps a screen pixel to field space. The result is not wrapped.
func (v View) ToField(s rl.Vector2) mgl32.Vec2 {
	return mgl32.Vec2{
		(s.X - v.X) / v.Width * v.Field[0],
		(s.Y - v.Y) / v.Height * v.Field[1],
	}
}

// Rect is the screen rectangle the field covers.
func (v View) Rect() rl.Rectangle {
	return rl.Rectangle{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height}
}
