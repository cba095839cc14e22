package telemetry

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/systems"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:     SnapshotVersion,
		Seed:        42,
		Tick:        1000,
		SimTime:     16.5,
		TrailWidth:  256,
		TrailHeight: 256,
		FieldWidth:  1,
		FieldHeight: 1,
		Trail:       FieldStats{Total: 12.5, Max: 3, Coverage: 0.2}.Summary(),
		Emitters: []EmitterState{
			{
				Handle:   1,
				Name:     "center",
				X:        0.5,
				Y:        0.5,
				Live:     1,
				Capacity: 1024,
				Particles: ParticleStates([]systems.Particle{{
					Pos:      mgl32.Vec2{0.25, 0.75},
					Heading:  1.2,
					Color:    mgl32.Vec4{1, 0.5, 0, 1},
					Age:      0.5,
					Lifetime: 2,
				}}),
			},
		},
		Bookmark: &Bookmark{
			Type:        BookmarkNetworkStable,
			Tick:        1000,
			Description: "Test bookmark",
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Version != snapshot.Version {
		t.Errorf("Version mismatch: got %d, want %d", loaded.Version, snapshot.Version)
	}
	if loaded.Seed != snapshot.Seed {
		t.Errorf("Seed mismatch: got %d, want %d", loaded.Seed, snapshot.Seed)
	}
	if loaded.Tick != snapshot.Tick {
		t.Errorf("Tick mismatch: got %d, want %d", loaded.Tick, snapshot.Tick)
	}
	if loaded.Trail != snapshot.Trail {
		t.Errorf("Trail mismatch: got %+v, want %+v", loaded.Trail, snapshot.Trail)
	}
	if len(loaded.Emitters) != 1 || len(loaded.Emitters[0].Particles) != 1 {
		t.Fatalf("Emitters not loaded: %+v", loaded.Emitters)
	}
	if got := loaded.Emitters[0].Particles[0]; got != snapshot.Emitters[0].Particles[0] {
		t.Errorf("Particle mismatch: got %+v, want %+v", got, snapshot.Emitters[0].Particles[0])
	}
	if loaded.Bookmark == nil {
		t.Error("Bookmark not loaded")
	} else if loaded.Bookmark.Type != snapshot.Bookmark.Type {
		t.Errorf("Bookmark type mismatch: got %s, want %s", loaded.Bookmark.Type, snapshot.Bookmark.Type)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Tick:    5000,
		Bookmark: &Bookmark{
			Type: BookmarkTrailCollapse,
			Tick: 5000,
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	expected := filepath.Join(tmpDir, "snapshot_5000_trail_collapse.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Tick: 3000}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	expected = filepath.Join(tmpDir, "snapshot_3000.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}

func TestSaveTrailPNG(t *testing.T) {
	tmpDir := t.TempDir()
	snapshot := &Snapshot{Tick: 7, TrailWidth: 4, TrailHeight: 2}
	data := []float32{0, 0, 0, 0, 0, 0, 0, 10}

	path, err := SaveTrailPNG(snapshot, data, 1, tmpDir)
	if err != nil {
		t.Fatalf("SaveTrailPNG failed: %v", err)
	}
	if filepath.Base(path) != "snapshot_7.png" {
		t.Errorf("png name = %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 4x2", b)
	}
	dark, _, _, _ := img.At(0, 0).RGBA()
	bright, _, _, _ := img.At(3, 1).RGBA()
	if bright <= dark {
		t.Errorf("saturated cell (%d) not brighter than empty cell (%d)", bright, dark)
	}

	if _, err := SaveTrailPNG(snapshot, data[:3], 1, tmpDir); err == nil {
		t.Error("expected error for mismatched trail size")
	}
}
