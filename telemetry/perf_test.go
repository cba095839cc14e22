package telemetry

import (
	"testing"
	"time"
)

// runTicks records n ticks, each running the given phases for the given
// durations in order.
func runTicks(pc *PerfCollector, n int, phases []string, sleeps []time.Duration) {
	for i := 0; i < n; i++ {
		pc.StartTick()
		for j, ph := range phases {
			pc.StartPhase(ph)
			time.Sleep(sleeps[j])
		}
		pc.EndTick()
	}
}

func TestPerfCollectorTracksPhases(t *testing.T) {
	pc := NewPerfCollector(10)
	runTicks(pc, 5, []string{PhaseTrail, PhaseMove}, []time.Duration{100 * time.Microsecond, 200 * time.Microsecond})

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Fatal("expected positive average tick duration")
	}
	for _, ph := range []string{PhaseTrail, PhaseMove} {
		if stats.PhaseAvg[ph] <= 0 {
			t.Errorf("phase %s not tracked", ph)
		}
	}
	if _, ok := stats.PhaseAvg[PhaseSpawn]; ok {
		t.Error("unused phase should not appear")
	}
	if stats.MinTickDuration > stats.AvgTickDuration || stats.AvgTickDuration > stats.MaxTickDuration {
		t.Errorf("min/avg/max out of order: %v %v %v", stats.MinTickDuration, stats.AvgTickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollectorWindowWraps(t *testing.T) {
	pc := NewPerfCollector(5)
	runTicks(pc, 12, []string{PhaseTrail}, []time.Duration{10 * time.Microsecond})

	if pc.count != 5 {
		t.Errorf("window holds %d ticks, want 5", pc.count)
	}
	if stats := pc.Stats(); stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollectorCustomPhaseShare(t *testing.T) {
	pc := NewPerfCollector(10)
	runTicks(pc, 5, []string{"fast", "slow"}, []time.Duration{10 * time.Microsecond, 100 * time.Microsecond})

	stats := pc.Stats()
	if stats.PhasePct["slow"] <= stats.PhasePct["fast"] {
		t.Errorf("slow %.1f%% should exceed fast %.1f%%", stats.PhasePct["slow"], stats.PhasePct["fast"])
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("empty collector reported timings: %+v", stats)
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("phase maps should be non-nil")
	}
}

func TestPerfCollectorFrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	pc.RecordFrame()
	time.Sleep(16 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration < 15*time.Millisecond {
		t.Errorf("frame duration %v, want >= 15ms", stats.FrameDuration)
	}
	if stats.FPS < 20 || stats.FPS > 70 {
		t.Errorf("FPS %.1f outside the expected range", stats.FPS)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	stats := PerfStats{
		AvgTickDuration: 2 * time.Millisecond,
		PhasePct:        map[string]float64{PhaseMove: 60, PhaseTrail: 30, PhaseScene: 5},
	}
	row := stats.ToCSV(120)
	if row.WindowEnd != 120 || row.AvgTickUS != 2000 {
		t.Errorf("unexpected header fields %+v", row)
	}
	if row.MovePct != 60 || row.TrailPct != 30 || row.ScenePct != 5 || row.SpawnPct != 0 {
		t.Errorf("unexpected phase columns %+v", row)
	}
}

func TestPerfCollectorAddPhase(t *testing.T) {
	pc := NewPerfCollector(4)
	pc.AddPhase(PhaseScene, time.Millisecond) // no tick yet, ignored

	pc.StartTick()
	pc.StartPhase(PhaseTrail)
	pc.EndTick()
	pc.AddPhase(PhaseScene, 2*time.Millisecond)

	stats := pc.Stats()
	if got := stats.PhaseAvg[PhaseScene]; got != 2*time.Millisecond {
		t.Errorf("scene phase = %v, want 2ms", got)
	}
	if stats.AvgTickDuration < 2*time.Millisecond {
		t.Errorf("tick duration %v does not include host phase", stats.AvgTickDuration)
	}
}
