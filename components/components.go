// Package components defines ECS components for the host scene.
package components

import "github.com/go-gl/mathgl/mgl32"

// Position is an actor's position in host 3D space.
type Position struct {
	X, Y, Z float32
}

// Vec3 returns the position as a vector.
func (p Position) Vec3() mgl32.Vec3 { return mgl32.Vec3{p.X, p.Y, p.Z} }

// Set replaces the position.
func (p *Position) Set(v mgl32.Vec3) { p.X, p.Y, p.Z = v[0], v[1], v[2] }

// Orbit moves an actor on a circle around Center in the mapped plane.
// A zero Radius pins the actor to Center.
type Orbit struct {
	Center mgl32.Vec3
	Radius float32
	Speed  float32 // radians per second
	Phase  float32 // current angle, radians
}

// Drift translates the orbit centre at a constant velocity.
type Drift struct {
	Velocity mgl32.Vec3
}

// Toggle flips an actor's emitter on and off every Period seconds.
// A zero Period keeps it on.
type Toggle struct {
	Period  float32
	Timer   float32
	Enabled bool
}
