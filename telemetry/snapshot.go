package telemetry

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/physarum/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the simulation state at one tick. The trail itself is
// written alongside as a PNG; the JSON carries its summary.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Tick    uint64  `json:"tick"`
	SimTime float64 `json:"sim_time"`

	TrailWidth  int     `json:"trail_width"`
	TrailHeight int     `json:"trail_height"`
	FieldWidth  float32 `json:"field_width"`
	FieldHeight float32 `json:"field_height"`

	Trail    TrailSummary   `json:"trail"`
	Emitters []EmitterState `json:"emitters"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// TrailSummary is the JSON form of FieldStats.
type TrailSummary struct {
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P99      float64 `json:"p99"`
	Max      float64 `json:"max"`
	Coverage float64 `json:"coverage"`
}

// Summary converts field stats for a snapshot.
func (fs FieldStats) Summary() TrailSummary {
	return TrailSummary(fs)
}

// EmitterState holds one emitter and, optionally, its live particles.
type EmitterState struct {
	Handle   uint32  `json:"handle"`
	Name     string  `json:"name"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Live     int     `json:"live"`
	Capacity int     `json:"capacity"`
	Clamped  bool    `json:"clamped,omitempty"`

	Particles []ParticleState `json:"particles,omitempty"`
}

// ParticleState is the JSON form of systems.Particle.
type ParticleState struct {
	X         float32    `json:"x"`
	Y         float32    `json:"y"`
	Heading   float32    `json:"heading"`
	Age       float32    `json:"age"`
	Lifetime  float32    `json:"lifetime"`
	Intensity float32    `json:"intensity"`
	Color     [4]float32 `json:"color"`
}

// ParticleStates converts particles for a snapshot.
func ParticleStates(ps []systems.Particle) []ParticleState {
	out := make([]ParticleState, len(ps))
	for i, p := range ps {
		out[i] = ParticleState{
			X:         p.Pos.X(),
			Y:         p.Pos.Y(),
			Heading:   p.Heading,
			Age:       p.Age,
			Lifetime:  p.Lifetime,
			Intensity: p.Intensity,
			Color:     p.Color,
		}
	}
	return out
}

func snapshotName(snapshot *Snapshot) string {
	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		// Sanitize bookmark type for filename
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	return name
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, snapshotName(snapshot)+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// Trail image palette, dark to bright.
var (
	trailLow  = colorful.Color{R: 0.02, G: 0.02, B: 0.05}
	trailHigh = colorful.Color{R: 1.0, G: 0.86, B: 0.35}
)

// TrailImage tone-maps a w*h trail buffer into an image. Values are scaled
// by 1/scale and clamped to [0,1] before the palette blend.
func TrailImage(data []float32, w, h int, scale float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if scale <= 0 {
		scale = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float64(data[y*w+x] / scale)
			t = max(0, min(1, t))
			c := trailLow.BlendLab(trailHigh, t).Clamped()
			r, g, b := c.RGB255()
			o := img.PixOffset(x, y)
			img.Pix[o+0] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 255
		}
	}
	return img
}

// SaveTrailPNG writes the trail next to its snapshot JSON and returns the
// path.
func SaveTrailPNG(snapshot *Snapshot, data []float32, scale float32, dir string) (string, error) {
	if len(data) != snapshot.TrailWidth*snapshot.TrailHeight {
		return "", fmt.Errorf("trail png: %d cells for %dx%d", len(data), snapshot.TrailWidth, snapshot.TrailHeight)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, snapshotName(snapshot)+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trail png: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, TrailImage(data, snapshot.TrailWidth, snapshot.TrailHeight, scale)); err != nil {
		return "", fmt.Errorf("encode trail png: %w", err)
	}
	return path, nil
}
