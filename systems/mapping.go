package systems

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// PositionMapping selects which two axes of a host 3D position become
// field-space X and Y.
type PositionMapping string

const (
	MappingXY PositionMapping = "xy"
	MappingXZ PositionMapping = "xz"
	MappingYZ PositionMapping = "yz"
)

// ParseMapping validates a mapping name; empty means xy.
func ParseMapping(s string) (PositionMapping, error) {
	switch PositionMapping(s) {
	case "", MappingXY:
		return MappingXY, nil
	case MappingXZ, MappingYZ:
		return PositionMapping(s), nil
	}
	return "", fmt.Errorf("unknown position mapping %q", s)
}

// MapPosition projects p onto the field plane.
func MapPosition(p mgl32.Vec3, m PositionMapping) mgl32.Vec2 {
	switch m {
	case MappingXZ:
		return mgl32.Vec2{p[0], p[2]}
	case MappingYZ:
		return mgl32.Vec2{p[1], p[2]}
	}
	return mgl32.Vec2{p[0], p[1]}
}
