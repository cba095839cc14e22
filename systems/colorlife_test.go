package systems

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b mgl32.Vec4, eps float32) bool {
	for i := range a {
		if absf(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestColorLUTEndpoints(t *testing.T) {
	g := Gradient{
		Keys:  []GradientKey{{T: 1, Color: "#0000ff"}, {T: 0, Color: "#ff0000"}},
		Alpha: []AlphaKey{{T: 0, A: 1}, {T: 1, A: 0}},
	}
	lut, err := BuildColorLUT(g, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lut.Len() != 16 {
		t.Errorf("expected 16 samples, got %d", lut.Len())
	}
	if got := lut.Sample(0); !near(got, mgl32.Vec4{1, 0, 0, 1}, 1e-5) {
		t.Errorf("expected opaque red at age 0, got %v", got)
	}
	if got := lut.Sample(1); !near(got, mgl32.Vec4{0, 0, 1, 0}, 1e-5) {
		t.Errorf("expected transparent blue at age 1, got %v", got)
	}
	if got := lut.Sample(0.5); !near(got, mgl32.Vec4{0.5, 0, 0.5, 0.5}, 0.04) {
		t.Errorf("expected purple midpoint in rgb blend, got %v", got)
	}
}

func TestColorLUTClampsFraction(t *testing.T) {
	lut, err := BuildColorLUT(Gradient{Keys: []GradientKey{{T: 0, Color: "#00ff00"}}}, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lut.Sample(-3); !near(got, mgl32.Vec4{0, 1, 0, 1}, 1e-5) {
		t.Errorf("expected clamped sample, got %v", got)
	}
	if got := lut.Sample(42); !near(got, mgl32.Vec4{0, 1, 0, 1}, 1e-5) {
		t.Errorf("expected clamped sample, got %v", got)
	}
}

func TestColorLUTEmptyGradientIsWhite(t *testing.T) {
	lut, err := BuildColorLUT(Gradient{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lut.Sample(0.3); !near(got, mgl32.Vec4{1, 1, 1, 1}, 1e-6) {
		t.Errorf("expected white, got %v", got)
	}
}

func TestColorLUTBlendSpaces(t *testing.T) {
	keys := []GradientKey{{T: 0, Color: "#ff0000"}, {T: 1, Color: "#00ff00"}}
	var mids []mgl32.Vec4
	for _, blend := range []string{"rgb", "linear", "lab"} {
		lut, err := BuildColorLUT(Gradient{Keys: keys, Blend: blend}, 33)
		if err != nil {
			t.Fatalf("blend %s: unexpected error: %v", blend, err)
		}
		mids = append(mids, lut.Sample(0.5))
	}
	if near(mids[0], mids[2], 1e-3) {
		t.Errorf("expected lab midpoint %v to differ from rgb midpoint %v", mids[2], mids[0])
	}
	// Linear-light blending of red and green is brighter at the midpoint.
	if mids[1][0] <= mids[0][0] {
		t.Errorf("expected linear midpoint red %f above rgb %f", mids[1][0], mids[0][0])
	}
}

func TestColorLUTErrors(t *testing.T) {
	if _, err := BuildColorLUT(Gradient{Keys: []GradientKey{{Color: "nope"}}}, 8); err == nil {
		t.Error("expected an error for a bad hex color")
	}
	if _, err := BuildColorLUT(Gradient{Blend: "hsv"}, 8); err == nil {
		t.Error("expected an error for an unknown blend")
	}
}

func TestColorLUTLinearBetweenSamples(t *testing.T) {
	lut, err := BuildColorLUT(Gradient{Keys: []GradientKey{{T: 0, Color: "#000000"}, {T: 1, Color: "#ffffff"}}}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := lut.Sample(0.25)
	if math.Abs(float64(got[0]-0.25)) > 1e-5 {
		t.Errorf("expected 0.25 grey between two samples, got %v", got)
	}
}
