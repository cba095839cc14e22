package engine

import (
	"sort"
	"sync/atomic"

	"github.com/pthm-cable/physarum/systems"
	"github.com/pthm-cable/physarum/telemetry"
)

// runPipeline executes the stages of one tick. Each backend Run is a full
// barrier, so a stage always sees every write of the stage before it.
//
//	substeps x { bindings, spawn, move, compact }
//	decay/diffuse, swap
//	advect, swap          (when a flow is available)
//	velocity decay        (when particles left velocity residue)
//	debug raster          (when enabled)
func (e *Engine) runPipeline(s *Snapshot) telemetry.TickStats {
	entries := e.registry.Entries()
	n := len(entries)
	e.spawned = resetCounts(e.spawned, n)
	e.died = resetCounts(e.died, n)
	size := e.trail.Size

	for k := 0; k < s.Substeps; k++ {
		if k > 0 {
			e.phase(telemetry.PhaseBindings)
			e.refreshAux()
		}

		e.phase(telemetry.PhaseSpawn)
		e.eps = e.eps[:0]
		for i, en := range entries {
			ep := substepEmitter(&s.Emitters[i], k, s.Substeps, size)
			e.eps = append(e.eps, ep)
			if count := en.Pool.SpawnCount(&ep, size, s.DT); count > 0 {
				ctx := systems.SpawnContext{Emitter: &ep, Aux: e.aux, FieldSize: size, LUT: en.LUT}
				e.spawned[i] += en.Pool.Spawn(&ctx, count)
			}
		}

		e.phase(telemetry.PhaseMove)
		e.moves = e.moves[:0]
		for i, en := range entries {
			e.moves = append(e.moves, systems.MoveContext{
				Trail:             e.trail,
				Aux:               e.aux,
				Emitter:           &e.eps[i],
				LUT:               en.LUT,
				DT:                s.DT,
				StimuliIntensity:  s.StimuliIntensity,
				StimuliColorBlend: s.StimuliColorBlend,
				InfluenceWeight:   s.InfluenceWeight,
				DirectionBias:     s.DirectionBias,
				FluidDrift:        s.FluidDrift,
				Tick:              s.Tick*uint64(s.Substeps) + uint64(k),
			})
		}
		e.forEachLive(entries, func(i, lo, hi int) {
			entries[i].Pool.Move(&e.moves[i], lo, hi)
		})

		e.phase(telemetry.PhaseCompact)
		for i, en := range entries {
			en.Pool.EndMovePass()
			e.died[i] += en.Pool.Compact()
		}
	}

	e.phase(telemetry.PhaseTrail)
	before := e.trail.Total()
	deposited := e.trail.PendingTotal()
	e.backend.Run(e.trail.H, func(y0, y1 int) {
		e.trail.DecayAndDiffuse(s.Trail, &s.Weights, y0, y1)
	})
	e.trail.Swap()

	if flow := e.advectionFlow(s); flow != nil {
		e.phase(telemetry.PhaseAdvect)
		e.backend.Run(e.trail.H, func(y0, y1 int) {
			e.trail.Advect(flow, s.AdvectionStrength, y0, y1)
		})
		e.trail.Swap()
	}

	if e.trail.HasVelocity() {
		e.phase(telemetry.PhaseVelocity)
		e.backend.Run(e.trail.Cells(), func(lo, hi int) {
			e.trail.DecayVelocity(s.VelocityDecay, lo, hi)
		})
	}

	if e.raster != nil {
		e.phase(telemetry.PhaseDebug)
		e.rasterize(entries)
	}

	stats := telemetry.TickStats{
		Deposited:   deposited,
		TrailBefore: before,
		TrailAfter:  e.trail.Total(),
		Emitters:    make([]telemetry.EmitterTick, n),
	}
	for i, en := range entries {
		live := en.Pool.Live()
		stats.Emitters[i] = telemetry.EmitterTick{
			Handle:   uint32(en.Handle),
			Name:     en.Emitter.Name,
			Live:     live,
			Capacity: en.Capacity,
			Spawned:  e.spawned[i],
			Died:     e.died[i],
		}
		stats.Live += live
		stats.Spawned += e.spawned[i]
		stats.Died += e.died[i]
	}
	return stats
}

// advectionFlow picks the field the trail is advected along, or nil when
// advection is off or there is nothing to advect with.
func (e *Engine) advectionFlow(s *Snapshot) *systems.Grid {
	if s.AdvectionStrength == 0 {
		return nil
	}
	if s.UseExternalVelocity {
		if e.aux.Fluid.IsNeutral() {
			return nil
		}
		return e.aux.Fluid
	}
	if !e.trail.HasVelocity() {
		return nil
	}
	return e.trail.Velocity()
}

// forEachLive fans the concatenated active lists of all pools out over the
// backend. fn receives a pool index and a range of that pool's ActiveList.
func (e *Engine) forEachLive(entries []*Entry, fn func(i, lo, hi int)) {
	e.offsets = e.offsets[:0]
	total := 0
	for _, en := range entries {
		e.offsets = append(e.offsets, total)
		total += en.Pool.Live()
	}
	offsets := e.offsets

	e.backend.Run(total, func(lo, hi int) {
		i := sort.Search(len(offsets), func(j int) bool { return offsets[j] > lo }) - 1
		for ; lo < hi && i < len(entries); i++ {
			start := offsets[i]
			end := start + entries[i].Pool.Live()
			if end <= lo {
				continue
			}
			stop := min(hi, end)
			fn(i, lo-start, stop-start)
			lo = stop
		}
	})
}

// rasterize counts live particles per trail cell.
func (e *Engine) rasterize(entries []*Entry) {
	clear(e.raster)
	tr := e.trail
	raster := e.raster
	e.forEachLive(entries, func(i, lo, hi int) {
		p := entries[i].Pool
		for _, slot := range p.ActiveList[lo:hi] {
			if p.Alive(slot) {
				atomic.AddUint32(&raster[tr.CellOf(p.Pos[slot])], 1)
			}
		}
	})
}

func resetCounts(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	s = s[:n]
	clear(s)
	return s
}
