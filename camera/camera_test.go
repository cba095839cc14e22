package camera

import (
	"math"
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/renderer"
)

func testCamera() *Camera {
	// A 512x512 frame at (100, 0) over a 2x2 field: 256 px per unit.
	return New(renderer.View{X: 100, Y: 0, Width: 512, Height: 512, Field: mgl32.Vec2{2, 2}})
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 0.01 }

func TestNew(t *testing.T) {
	cam := testCamera()
	if cam.Center != (mgl32.Vec2{1, 1}) {
		t.Errorf("expected center (1, 1), got %v", cam.Center)
	}
	if cam.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0, got %f", cam.Zoom)
	}
	if got := cam.View(); got != cam.Frame {
		t.Errorf("default view %+v differs from frame %+v", got, cam.Frame)
	}
}

func TestDefaultHasSingleTile(t *testing.T) {
	tiles := testCamera().Tiles()
	if len(tiles) != 1 {
		t.Fatalf("expected 1 tile, got %d", len(tiles))
	}
}

func TestPannedViewTilesCoverFrame(t *testing.T) {
	cam := testCamera()
	cam.Pan(100, 60)
	tiles := cam.Tiles()
	if len(tiles) != 4 {
		t.Fatalf("expected 4 tiles after diagonal pan, got %d", len(tiles))
	}
	// Every frame corner must fall inside some tile.
	f := cam.Frame
	corners := []rl.Vector2{{X: f.X, Y: f.Y}, {X: f.X + f.Width - 1, Y: f.Y}, {X: f.X, Y: f.Y + f.Height - 1}, {X: f.X + f.Width - 1, Y: f.Y + f.Height - 1}}
	for _, c := range corners {
		covered := false
		for _, tv := range tiles {
			if c.X >= tv.X && c.X < tv.X+tv.Width && c.Y >= tv.Y && c.Y < tv.Y+tv.Height {
				covered = true
			}
		}
		if !covered {
			t.Errorf("corner %v not covered by any tile", c)
		}
	}
}

func TestScreenToFieldRoundtrip(t *testing.T) {
	cam := testCamera()
	cam.SetZoom(3)
	cam.Center = mgl32.Vec2{0.1, 1.9}

	for _, s := range []rl.Vector2{{X: 356, Y: 256}, {X: 120, Y: 10}, {X: 600, Y: 500}} {
		p := cam.ToField(s)
		if p[0] < 0 || p[0] >= 2 || p[1] < 0 || p[1] >= 2 {
			t.Errorf("ToField(%v) = %v outside the field", s, p)
		}
		back := cam.ToScreen(p)
		if !near(back.X, s.X) || !near(back.Y, s.Y) {
			t.Errorf("roundtrip failed: %v -> %v -> %v", s, p, back)
		}
	}
}

func TestToScreenPicksNearestCopy(t *testing.T) {
	cam := testCamera()
	cam.Center = mgl32.Vec2{0.1, 1}

	// A point just across the left seam appears left of center.
	s := cam.ToScreen(mgl32.Vec2{1.95, 1})
	if s.X >= 356 {
		t.Errorf("expected point left of frame center, got x=%f", s.X)
	}
	if !near(s.X, 356-0.15*256) {
		t.Errorf("x = %f, want %f", s.X, 356-0.15*256)
	}
}

func TestPanWraps(t *testing.T) {
	cam := testCamera()
	cam.Pan(-512*2, 0) // two field widths at 256 px/unit
	if !near(cam.Center[0], 1) {
		t.Errorf("expected center to wrap back to 1, got %f", cam.Center[0])
	}
	cam.Pan(128, 0)
	if !near(cam.Center[0], 0.5) {
		t.Errorf("expected center 0.5, got %f", cam.Center[0])
	}
}

func TestZoomClamp(t *testing.T) {
	cam := testCamera()
	cam.SetZoom(100)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}
	cam.SetZoom(0.1)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MinZoom, cam.Zoom)
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	cam := testCamera()
	anchor := rl.Vector2{X: 200, Y: 400}
	before := cam.ToField(anchor)
	cam.ZoomAt(2.5, anchor)
	after := cam.ToField(anchor)
	if !near(before[0], after[0]) || !near(before[1], after[1]) {
		t.Errorf("anchor moved from %v to %v", before, after)
	}
}

func TestIsVisible(t *testing.T) {
	cam := testCamera()
	cam.SetZoom(4) // half-extent 0.25 units
	if !cam.IsVisible(mgl32.Vec2{1.2, 1}, 0) {
		t.Error("point inside view should be visible")
	}
	if cam.IsVisible(mgl32.Vec2{1.5, 1}, 0.1) {
		t.Error("point outside view should not be visible")
	}
	if !cam.IsVisible(mgl32.Vec2{1.3, 1}, 0.1) {
		t.Error("radius should extend visibility")
	}
}

func TestReset(t *testing.T) {
	cam := testCamera()
	cam.Pan(50, 70)
	cam.SetZoom(3)
	cam.Reset()
	if cam.Center != (mgl32.Vec2{1, 1}) || cam.Zoom != 1 {
		t.Errorf("reset left center %v zoom %f", cam.Center, cam.Zoom)
	}
}
