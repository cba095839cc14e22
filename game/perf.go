package game

import (
	"cmp"
	"slices"
	"time"
)

// perfSamples is the rolling window per name, about two seconds at 60fps.
const perfSamples = 120

// PerfStats tracks a rolling average of frame section timings.
type PerfStats struct {
	samples map[string]*ring
}

type ring struct {
	buf   [perfSamples]time.Duration
	next  int
	count int
	sum   time.Duration
}

// NewPerfStats creates a new performance stats tracker.
func NewPerfStats() *PerfStats {
	return &PerfStats{samples: make(map[string]*ring)}
}

// Record adds a duration sample for the named section.
func (p *PerfStats) Record(name string, d time.Duration) {
	r := p.samples[name]
	if r == nil {
		r = &ring{}
		p.samples[name] = r
	}
	if r.count == perfSamples {
		r.sum -= r.buf[r.next]
	} else {
		r.count++
	}
	r.buf[r.next] = d
	r.sum += d
	r.next = (r.next + 1) % perfSamples
}

// Avg returns the average duration for the named section.
func (p *PerfStats) Avg(name string) time.Duration {
	r := p.samples[name]
	if r == nil || r.count == 0 {
		return 0
	}
	return r.sum / time.Duration(r.count)
}

// Total returns the sum of all average durations.
func (p *PerfStats) Total() time.Duration {
	var total time.Duration
	for name := range p.samples {
		total += p.Avg(name)
	}
	return total
}

// SortedNames returns section names sorted by average duration (descending).
func (p *PerfStats) SortedNames() []string {
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(p.Avg(b), p.Avg(a))
	})
	return names
}

// Averages returns the average duration of every section.
func (p *PerfStats) Averages() map[string]time.Duration {
	avgs := make(map[string]time.Duration, len(p.samples))
	for name := range p.samples {
		avgs[name] = p.Avg(name)
	}
	return avgs
}
