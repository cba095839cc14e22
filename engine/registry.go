package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/physarum/systems"
)

// Handle identifies a registered emitter. Handles are never reused; zero is
// never issued.
type Handle uint32

// AddResult reports how an emitter registration was accepted.
type AddResult struct {
	Handle   Handle
	Capacity int  // pool capacity after clamping
	Clamped  bool // the requested capacity was changed
}

// Entry pairs an emitter with the pool it owns.
type Entry struct {
	Handle   Handle
	Emitter  systems.Emitter
	Pool     *systems.Pool
	LUT      *systems.ColorLUT
	Capacity int
	Clamped  bool

	lastPos mgl32.Vec2 // emitter position at the end of the previous tick
}

type opKind int

const (
	opAdd opKind = iota
	opRemove
	opMove
	opUpdate
)

type registryOp struct {
	kind     opKind
	handle   Handle
	emitter  systems.Emitter
	pos      mgl32.Vec2
	capacity int
	clamped  bool
}

// Registry is the insertion-ordered emitter list. Mutations may come from
// any goroutine; they are queued and only take effect in Apply, which the
// engine calls between ticks. Entry i always owns pool i.
type Registry struct {
	mu      sync.Mutex
	pending []registryOp
	next    Handle

	entries []*Entry

	groupSize int
	maxGroups int
	log       *slog.Logger
}

// NewRegistry creates an empty registry whose pool capacities are clamped
// to multiples of groupSize, at most groupSize*maxGroups.
func NewRegistry(groupSize, maxGroups int, log *slog.Logger) *Registry {
	return &Registry{groupSize: groupSize, maxGroups: maxGroups, log: log}
}

// Add validates em and queues its registration.
func (r *Registry) Add(em systems.Emitter) (AddResult, error) {
	if err := em.Validate(); err != nil {
		return AddResult{}, err
	}
	capacity, clamped := r.clamp(em)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.pending = append(r.pending, registryOp{kind: opAdd, handle: h, emitter: em, capacity: capacity, clamped: clamped})
	return AddResult{Handle: h, Capacity: capacity, Clamped: clamped}, nil
}

// Remove queues removal of h. A removal that reaches a not-yet-applied add
// cancels it; an unknown handle is ignored.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, op := range r.pending {
		if op.kind == opAdd && op.handle == h {
			kept := r.pending[:i]
			for _, rest := range r.pending[i+1:] {
				if rest.handle != h {
					kept = append(kept, rest)
				}
			}
			r.pending = kept
			return
		}
	}
	r.pending = append(r.pending, registryOp{kind: opRemove, handle: h})
}

// Move queues a position change for h.
func (r *Registry) Move(h Handle, pos mgl32.Vec2) {
	r.mu.Lock()
	r.pending = append(r.pending, registryOp{kind: opMove, handle: h, pos: pos})
	r.mu.Unlock()
}

// Update queues a configuration change for h. A different clamped capacity
// reallocates the pool.
func (r *Registry) Update(h Handle, em systems.Emitter) (AddResult, error) {
	if err := em.Validate(); err != nil {
		return AddResult{}, err
	}
	capacity, clamped := r.clamp(em)

	r.mu.Lock()
	r.pending = append(r.pending, registryOp{kind: opUpdate, handle: h, emitter: em, capacity: capacity, clamped: clamped})
	r.mu.Unlock()
	return AddResult{Handle: h, Capacity: capacity, Clamped: clamped}, nil
}

// Pending reports whether mutations are waiting for Apply.
func (r *Registry) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

func (r *Registry) clamp(em systems.Emitter) (int, bool) {
	capacity, clamped := systems.ClampCapacity(em.Capacity, r.groupSize, r.maxGroups)
	if clamped {
		r.log.Warn("emitter capacity clamped",
			"emitter", em.Name,
			"requested", em.Capacity,
			"capacity", capacity,
			"ceiling", r.groupSize*r.maxGroups,
		)
	}
	return capacity, clamped
}

// Apply drains the queue in order. alloc is called for every entry that
// needs a fresh pool (a new emitter or a capacity change) and for entries
// whose color settings changed; it must allocate and seed e.Pool.
func (r *Registry) Apply(alloc func(e *Entry)) (added, removed int) {
	r.mu.Lock()
	ops := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, op := range ops {
		switch op.kind {
		case opAdd:
			e := &Entry{
				Handle:   op.handle,
				Emitter:  op.emitter,
				Capacity: op.capacity,
				Clamped:  op.clamped,
				lastPos:  op.emitter.Position,
			}
			alloc(e)
			r.entries = append(r.entries, e)
			added++
			r.log.Info("emitter added", "handle", e.Handle, "emitter", e.Emitter.Name, "capacity", e.Capacity)

		case opRemove:
			i := r.index(op.handle)
			if i < 0 {
				continue
			}
			e := r.entries[i]
			e.Pool = nil
			e.LUT = nil
			copy(r.entries[i:], r.entries[i+1:])
			r.entries[len(r.entries)-1] = nil
			r.entries = r.entries[:len(r.entries)-1]
			removed++
			r.log.Info("emitter removed", "handle", e.Handle, "emitter", e.Emitter.Name)

		case opMove:
			if e := r.Lookup(op.handle); e != nil {
				e.Emitter.Position = op.pos
			}

		case opUpdate:
			e := r.Lookup(op.handle)
			if e == nil {
				continue
			}
			pos := e.Emitter.Position
			e.Emitter = op.emitter
			e.Emitter.Position = pos
			e.Clamped = op.clamped
			if op.capacity != e.Capacity {
				e.Capacity = op.capacity
				e.Pool = nil
				r.log.Info("emitter pool reallocated", "handle", e.Handle, "capacity", e.Capacity)
			}
			e.LUT = nil
			alloc(e)

		default:
			panic(fmt.Sprintf("engine: unknown registry op %d", op.kind))
		}
	}
	return added, removed
}

// Entries returns the applied entries in registration order. The slice is
// owned by the registry and changes on Apply.
func (r *Registry) Entries() []*Entry { return r.entries }

// Len returns the number of applied entries.
func (r *Registry) Len() int { return len(r.entries) }

// Lookup returns the applied entry for h, or nil.
func (r *Registry) Lookup(h Handle) *Entry {
	if i := r.index(h); i >= 0 {
		return r.entries[i]
	}
	return nil
}

// Clear drops every entry and pending mutation.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
	for i := range r.entries {
		r.entries[i] = nil
	}
	r.entries = r.entries[:0]
}

func (r *Registry) index(h Handle) int {
	for i, e := range r.entries {
		if e.Handle == h {
			return i
		}
	}
	return -1
}
