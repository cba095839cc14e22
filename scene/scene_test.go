package scene

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/components"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/systems"
)

type fakeHost struct {
	next    engine.Handle
	live    map[engine.Handle]mgl32.Vec2
	adds    int
	removes int
}

func newFakeHost() *fakeHost {
	return &fakeHost{live: make(map[engine.Handle]mgl32.Vec2)}
}

func (h *fakeHost) AddEmitter(em systems.Emitter) (engine.AddResult, error) {
	h.next++
	h.adds++
	h.live[h.next] = em.Position
	return engine.AddResult{Handle: h.next, Capacity: em.Capacity}, nil
}

func (h *fakeHost) RemoveEmitter(handle engine.Handle) {
	h.removes++
	delete(h.live, handle)
}

func (h *fakeHost) MoveEmitter(handle engine.Handle, pos mgl32.Vec2) {
	if _, ok := h.live[handle]; ok {
		h.live[handle] = pos
	}
}

func newTestScene(t *testing.T, mapping string) (*Scene, *fakeHost) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scene.Mapping = mapping
	host := newFakeHost()
	s, err := New(cfg, host, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, host
}

func near(a, b mgl32.Vec2) bool {
	return math.Abs(float64(a[0]-b[0])) < 1e-4 && math.Abs(float64(a[1]-b[1])) < 1e-4
}

func TestSpawnRegistersEmitter(t *testing.T) {
	s, host := newTestScene(t, "xy")
	if _, err := s.Spawn(config.ActorConfig{Emitter: "core", Position: [3]float64{0.25, 0.75, 9}}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if s.Len() != 1 || len(host.live) != 1 {
		t.Fatalf("actors = %d, registered = %d", s.Len(), len(host.live))
	}
	if pos := host.live[s.Handles()[0]]; !near(pos, mgl32.Vec2{0.25, 0.75}) {
		t.Errorf("field position = %v, want (0.25, 0.75)", pos)
	}

	if _, err := s.Spawn(config.ActorConfig{Emitter: "nope"}); err == nil {
		t.Error("expected error for unknown emitter")
	}
}

func TestOrbitUsesMappedPlane(t *testing.T) {
	s, host := newTestScene(t, "xz")
	_, err := s.Spawn(config.ActorConfig{
		Emitter:     "core",
		Position:    [3]float64{0.5, 100, 0.5},
		OrbitRadius: 0.25,
		OrbitSpeed:  math.Pi, // half a turn per second
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	h := s.Handles()[0]
	if pos := host.live[h]; !near(pos, mgl32.Vec2{0.75, 0.5}) {
		t.Fatalf("start = %v, want (0.75, 0.5)", pos)
	}

	if err := s.Update(0.5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if pos := host.live[h]; !near(pos, mgl32.Vec2{0.5, 0.75}) {
		t.Errorf("after quarter turn = %v, want (0.5, 0.75)", pos)
	}
}

func TestDriftWrapsField(t *testing.T) {
	s, host := newTestScene(t, "xy")
	_, err := s.Spawn(config.ActorConfig{
		Emitter:  "core",
		Position: [3]float64{0.9, 0.5, 0},
		DriftX:   0.2,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := s.Update(1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if pos := host.live[s.Handles()[0]]; !near(pos, mgl32.Vec2{0.1, 0.5}) {
		t.Errorf("drifted position = %v, want wrapped (0.1, 0.5)", pos)
	}
}

func TestToggleRemovesAndReAdds(t *testing.T) {
	s, host := newTestScene(t, "xy")
	_, err := s.Spawn(config.ActorConfig{Emitter: "wanderer", Position: [3]float64{0.5, 0.5, 0}, TogglePeriod: 1})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	steps := []struct {
		dt         float32
		registered int
	}{
		{0.5, 1},
		{0.6, 0}, // 1.1s: off
		{0.5, 0},
		{0.5, 1}, // 2.1s: on again
	}
	for i, st := range steps {
		if err := s.Update(st.dt); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got := len(host.live); got != st.registered {
			t.Errorf("step %d: registered = %d, want %d", i, got, st.registered)
		}
	}
	if host.adds != 2 || host.removes != 1 {
		t.Errorf("adds/removes = %d/%d, want 2/1", host.adds, host.removes)
	}
}

func TestDespawnUnregisters(t *testing.T) {
	s, host := newTestScene(t, "xy")
	e, err := s.Spawn(config.ActorConfig{Emitter: "core", Position: [3]float64{0.5, 0.5, 0}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h, ok := s.Handle(e); !ok || host.live[h] == (mgl32.Vec2{}) {
		t.Fatalf("Handle = %v/%v", h, ok)
	}
	s.Despawn(e)
	s.Despawn(e) // already gone
	if _, ok := s.Handle(e); ok {
		t.Error("despawned actor still has a handle")
	}

	if s.Len() != 0 || len(host.live) != 0 || host.removes != 1 {
		t.Errorf("actors=%d live=%d removes=%d", s.Len(), len(host.live), host.removes)
	}
}

func TestPopulateFromDefaults(t *testing.T) {
	cfg := config.Defaults()
	host := newFakeHost()
	s, err := New(cfg, host, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Populate(cfg.Scene.Actors); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if s.Len() != len(cfg.Scene.Actors) {
		t.Errorf("actors = %d, want %d", s.Len(), len(cfg.Scene.Actors))
	}
	if err := s.Update(cfg.Derived.DT32); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestPositionVec3(t *testing.T) {
	var p components.Position
	p.Set(mgl32.Vec3{1, 2, 3})
	if p.Vec3() != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Vec3 = %v", p.Vec3())
	}
}

func TestNearestAcrossWrap(t *testing.T) {
	s, _ := newTestScene(t, "xy")
	seam, err := s.Spawn(config.ActorConfig{Emitter: "core", Position: [3]float64{0.02, 0.5, 0}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := s.Spawn(config.ActorConfig{Emitter: "core", Position: [3]float64{0.5, 0.5, 0}}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	got, ok := s.Nearest(mgl32.Vec2{0.97, 0.5}, 0.1)
	if !ok || got != seam {
		t.Errorf("Nearest = %v/%v, want the actor across the seam", got, ok)
	}
	if _, ok := s.Nearest(mgl32.Vec2{0.25, 0.1}, 0.05); ok {
		t.Error("expected no actor within radius")
	}
}
