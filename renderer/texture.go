package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// fieldTexture is a CPU pixel buffer mirrored into a GPU texture. It is
// reallocated whenever the source resolution changes.
type fieldTexture struct {
	tex         rl.Texture2D
	w, h        int
	pixels      []color.RGBA
	filter      rl.TextureFilterMode
	initialized bool
}

func (t *fieldTexture) ensure(w, h int) {
	if t.initialized && t.w == w && t.h == h {
		return
	}
	t.unload()

	img := rl.GenImageColor(w, h, rl.Black)
	t.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(t.tex, t.filter)
	rl.SetTextureWrap(t.tex, rl.WrapRepeat)
	rl.UnloadImage(img)

	t.w, t.h = w, h
	t.pixels = make([]color.RGBA, w*h)
	t.initialized = true
}

func (t *fieldTexture) upload() {
	rl.UpdateTexture(t.tex, t.pixels)
}

func (t *fieldTexture) draw(v View, tint color.RGBA) {
	if !t.initialized {
		return
	}
	src := rl.Rectangle{X: 0, Y: 0, Width: float32(t.w), Height: float32(t.h)}
	rl.DrawTexturePro(t.tex, src, v.Rect(), rl.Vector2{}, 0, tint)
}

func (t *fieldTexture) unload() {
	if !t.initialized {
		return
	}
	rl.UnloadTexture(t.tex)
	t.initialized = false
}
