// Package scene is the host side of the simulation: actors living in an ECS
// world that own emitters and move them around. Each Update pushes actor
// state to the engine through its emitter API.
package scene

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/components"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/engine"
	"github.com/pthm-cable/physarum/systems"
)

// Host is the engine surface the scene drives.
type Host interface {
	AddEmitter(em systems.Emitter) (engine.AddResult, error)
	RemoveEmitter(h engine.Handle)
	MoveEmitter(h engine.Handle, pos mgl32.Vec2)
}

// Scene owns the actor world.
type Scene struct {
	world *ecs.World
	host  Host
	log   *slog.Logger

	actorMapper *ecs.Map5[
		components.Position,
		components.Orbit,
		components.Drift,
		components.Toggle,
		components.EmitterLink,
	]
	actorFilter *ecs.Filter5[
		components.Position,
		components.Orbit,
		components.Drift,
		components.Toggle,
		components.EmitterLink,
	]
	linkMap *ecs.Map1[components.EmitterLink]

	emitters  []systems.Emitter
	index     map[string]int
	mapping   systems.PositionMapping
	fieldSize mgl32.Vec2
	time      float64
}

// New creates an empty scene. Actors reference emitters of cfg by name.
func New(cfg *config.Config, host Host, log *slog.Logger) (*Scene, error) {
	mapping, err := systems.ParseMapping(cfg.Scene.Mapping)
	if err != nil {
		return nil, fmt.Errorf("%w: scene mapping: %w", config.ErrInvalidConfig, err)
	}
	if log == nil {
		log = slog.Default()
	}

	world := ecs.NewWorld()
	return &Scene{
		world: world,
		host:  host,
		log:   log,
		actorMapper: ecs.NewMap5[
			components.Position,
			components.Orbit,
			components.Drift,
			components.Toggle,
			components.EmitterLink,
		](world),
		actorFilter: ecs.NewFilter5[
			components.Position,
			components.Orbit,
			components.Drift,
			components.Toggle,
			components.EmitterLink,
		](world),
		linkMap:   ecs.NewMap1[components.EmitterLink](world),
		emitters:  cfg.Emitters,
		index:     cfg.Derived.EmitterIndex,
		mapping:   mapping,
		fieldSize: cfg.Derived.TrailSize,
	}, nil
}

// Populate spawns every configured actor.
func (s *Scene) Populate(actors []config.ActorConfig) error {
	for i, a := range actors {
		if _, err := s.Spawn(a); err != nil {
			return fmt.Errorf("scene actor %d: %w", i, err)
		}
	}
	return nil
}

// Spawn creates an actor and registers its emitter.
func (s *Scene) Spawn(a config.ActorConfig) (ecs.Entity, error) {
	idx, ok := s.index[a.Emitter]
	if !ok {
		return ecs.Entity{}, fmt.Errorf("%w: unknown emitter %q", config.ErrInvalidConfig, a.Emitter)
	}

	center := mgl32.Vec3{float32(a.Position[0]), float32(a.Position[1]), float32(a.Position[2])}
	orbit := components.Orbit{
		Center: center,
		Radius: float32(a.OrbitRadius),
		Speed:  float32(a.OrbitSpeed),
		Phase:  float32(a.OrbitPhase),
	}
	var pos components.Position
	pos.Set(s.orbitPosition(&orbit))
	drift := components.Drift{Velocity: mgl32.Vec3{float32(a.DriftX), float32(a.DriftY), float32(a.DriftZ)}}
	toggle := components.Toggle{Period: float32(a.TogglePeriod), Enabled: true}
	link := components.EmitterLink{Name: a.Emitter, Index: idx}

	if err := s.register(&pos, &link); err != nil {
		return ecs.Entity{}, err
	}
	e := s.actorMapper.NewEntity(&pos, &orbit, &drift, &toggle, &link)
	s.log.Debug("actor spawned", "emitter", a.Emitter, "handle", link.Handle)
	return e, nil
}

// Despawn removes an actor and unregisters its emitter.
func (s *Scene) Despawn(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	if link := s.linkMap.Get(e); link != nil && link.Registered {
		s.host.RemoveEmitter(engine.Handle(link.Handle))
	}
	s.world.RemoveEntity(e)
}

// Update advances actor motion and toggles by dt seconds and forwards the
// result to the host.
func (s *Scene) Update(dt float32) error {
	s.time += float64(dt)

	query := s.actorFilter.Query()
	var firstErr error
	for query.Next() {
		pos, orbit, drift, toggle, link := query.Get()

		orbit.Center = orbit.Center.Add(drift.Velocity.Mul(dt))
		if orbit.Radius != 0 {
			orbit.Phase = wrapAngle(orbit.Phase + orbit.Speed*dt)
		}
		pos.Set(s.orbitPosition(orbit))

		if toggle.Period > 0 {
			toggle.Timer += dt
			for toggle.Timer >= toggle.Period {
				toggle.Timer -= toggle.Period
				toggle.Enabled = !toggle.Enabled
			}
		}

		switch {
		case toggle.Enabled && !link.Registered:
			if err := s.register(pos, link); err != nil && firstErr == nil {
				firstErr = err
			}
		case !toggle.Enabled && link.Registered:
			s.host.RemoveEmitter(engine.Handle(link.Handle))
			link.Registered = false
			s.log.Debug("actor disabled", "emitter", link.Name, "handle", link.Handle)
		case link.Registered:
			s.host.MoveEmitter(engine.Handle(link.Handle), s.FieldPosition(*pos))
		}
	}
	return firstErr
}

func (s *Scene) register(pos *components.Position, link *components.EmitterLink) error {
	em := s.emitters[link.Index]
	em.Position = s.FieldPosition(*pos)
	res, err := s.host.AddEmitter(em)
	if err != nil {
		return fmt.Errorf("registering emitter %q: %w", link.Name, err)
	}
	link.Handle = uint32(res.Handle)
	link.Registered = true
	return nil
}

// FieldPosition maps a host position into wrapped field space.
func (s *Scene) FieldPosition(p components.Position) mgl32.Vec2 {
	return systems.WrapPosition(systems.MapPosition(p.Vec3(), s.mapping), s.fieldSize)
}

// orbitPosition places an orbit's current angle on the two mapped axes.
func (s *Scene) orbitPosition(o *components.Orbit) mgl32.Vec3 {
	if o.Radius == 0 {
		return o.Center
	}
	c := o.Radius * float32(math.Cos(float64(o.Phase)))
	d := o.Radius * float32(math.Sin(float64(o.Phase)))
	off := mgl32.Vec3{c, d, 0}
	switch s.mapping {
	case systems.MappingXZ:
		off = mgl32.Vec3{c, 0, d}
	case systems.MappingYZ:
		off = mgl32.Vec3{0, c, d}
	}
	return o.Center.Add(off)
}

// Len returns the number of actors.
func (s *Scene) Len() int {
	n := 0
	query := s.actorFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Handles lists the engine handles of enabled actors.
func (s *Scene) Handles() []engine.Handle {
	var out []engine.Handle
	query := s.actorFilter.Query()
	for query.Next() {
		_, _, _, _, link := query.Get()
		if link.Registered {
			out = append(out, engine.Handle(link.Handle))
		}
	}
	return out
}

// Handle returns the engine handle of an enabled actor.
func (s *Scene) Handle(e ecs.Entity) (engine.Handle, bool) {
	if !s.world.Alive(e) {
		return 0, false
	}
	link := s.linkMap.Get(e)
	if link == nil || !link.Registered {
		return 0, false
	}
	return engine.Handle(link.Handle), true
}

// Nearest returns the actor closest to field position p within radius,
// measured across the wrapped field.
func (s *Scene) Nearest(p mgl32.Vec2, radius float32) (ecs.Entity, bool) {
	var best ecs.Entity
	bestDist := radius * radius
	found := false

	query := s.actorFilter.Query()
	for query.Next() {
		pos, _, _, _, _ := query.Get()
		d := systems.WrapDelta(p, s.FieldPosition(*pos), s.fieldSize)
		if dist := d.Dot(d); dist <= bestDist {
			best, bestDist, found = query.Entity(), dist, true
		}
	}
	return best, found
}

// Time returns the scene time in seconds.
func (s *Scene) Time() float64 { return s.time }

func wrapAngle(a float32) float32 {
	const twoPi = 2 * math.Pi
	for a >= twoPi {
		a -= twoPi
	}
	for a < 0 {
		a += twoPi
	}
	return a
}
