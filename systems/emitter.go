package systems

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// SpawnMode selects how an emitter's spawn rate is interpreted.
type SpawnMode string

const (
	// SpawnPerSecond emits SpawnRate particles per simulated second.
	SpawnPerSecond SpawnMode = "time"
	// SpawnPerDistance emits SpawnRate particles per field unit the emitter travels.
	SpawnPerDistance SpawnMode = "distance"
)

// Color is a straight-alpha RGBA color in [0, 1]. In YAML it is written
// either as a hex string ("#rrggbb" or "#rrggbbaa") or as a 4-element list.
type Color mgl32.Vec4

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseColor(value.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var rgba [4]float32
	if err := value.Decode(&rgba); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	*c = Color(rgba)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Color) MarshalYAML() (any, error) {
	return []float32{c[0], c[1], c[2], c[3]}, nil
}

// Vec4 returns the color as a vector.
func (c Color) Vec4() mgl32.Vec4 { return mgl32.Vec4(c) }

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	alpha := float32(1)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color %q: %w", s, err)
		}
		alpha = float32(a) / 255
		s = s[:7]
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	col = col.Clamped()
	return Color{float32(col.R), float32(col.G), float32(col.B), alpha}, nil
}

// GradientKey is a color stop of a color-over-life gradient.
type GradientKey struct {
	T     float32 `yaml:"t"`
	Color string  `yaml:"color"`
}

// AlphaKey is an alpha stop of a color-over-life gradient.
type AlphaKey struct {
	T float32 `yaml:"t"`
	A float32 `yaml:"a"`
}

// Gradient maps age fraction in [0, 1] to color. Blend selects the color
// space the keys are interpolated in: "rgb" (default), "linear" or "lab".
type Gradient struct {
	Keys  []GradientKey `yaml:"keys"`
	Alpha []AlphaKey    `yaml:"alpha"`
	Blend string        `yaml:"blend"`
}

// Emitter configures one emission source and the behavior of the particles
// it owns. Angles are in degrees; distances are in field units.
type Emitter struct {
	Name string `yaml:"name"`
	Seed int64  `yaml:"seed"`

	Position         mgl32.Vec2 `yaml:"position"`
	PreviousPosition mgl32.Vec2 `yaml:"-"`

	// Emission region: an annulus sector around Position.
	Radius      float32 `yaml:"radius"`
	RadiusWidth float32 `yaml:"radius_width"` // 0 = filled disc
	ArcLength   float32 `yaml:"arc_length"`   // 0 or >= 360 = full circle
	ArcOffset   float32 `yaml:"arc_offset"`
	ArcFeather  float32 `yaml:"arc_feather"` // soft edge as a fraction of ArcLength

	SpawnRate   float32   `yaml:"spawn_rate"`
	SpawnMode   SpawnMode `yaml:"spawn_mode"`
	Capacity    int       `yaml:"capacity"`
	InitialFill float32   `yaml:"initial_fill"` // fraction of capacity seeded on allocation

	LifetimeMin float32 `yaml:"lifetime_min"`
	LifetimeMax float32 `yaml:"lifetime_max"`

	MainColor                 Color    `yaml:"main_color"`
	SecondaryColor            Color    `yaml:"secondary_color"`
	SecondaryColorProbability float32  `yaml:"secondary_color_probability"`
	UseColorOverLife          bool     `yaml:"use_color_over_life"`
	ColorOverLifeContinuous   bool     `yaml:"color_over_life_continuous"`
	ColorOverLife             Gradient `yaml:"color_over_life"`

	SensorAngle   float32 `yaml:"sensor_angle"`
	RotationAngle float32 `yaml:"rotation_angle"`
	SensorOffset  float32 `yaml:"sensor_offset"`
	StepSize      float32 `yaml:"step_size"` // field units per second

	DepositAmount          float32 `yaml:"deposit_amount"`
	IntensityScaledDeposit bool    `yaml:"intensity_scaled_deposit"`
	VelocityResidue        float32 `yaml:"velocity_residue"`

	SpawnInsideStimuli bool    `yaml:"spawn_inside_stimuli"`
	StimuliThreshold   float32 `yaml:"stimuli_threshold"`
	AlignToMotion      bool    `yaml:"align_to_motion"`
	RecycleOldest      bool    `yaml:"recycle_oldest"`
}

// DefaultEmitter returns an emitter with the stock Physarum parameters.
func DefaultEmitter() Emitter {
	return Emitter{
		Name:          "emitter",
		Seed:          1,
		Position:      mgl32.Vec2{0.5, 0.5},
		Radius:        0.05,
		SpawnRate:     2000,
		SpawnMode:     SpawnPerSecond,
		Capacity:      8192,
		LifetimeMin:   4,
		LifetimeMax:   8,
		MainColor:     Color{1, 1, 1, 1},
		SensorAngle:   45,
		RotationAngle: 45,
		SensorOffset:  0.01,
		StepSize:      0.06,
		DepositAmount: 0.25,
	}
}

// ErrInvalidEmitter is wrapped by every Validate failure.
var ErrInvalidEmitter = errors.New("invalid emitter")

// Validate rejects configurations no tick could run with.
func (em *Emitter) Validate() error {
	switch {
	case em.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d must be positive", ErrInvalidEmitter, em.Capacity)
	case em.LifetimeMin <= 0:
		return fmt.Errorf("%w: lifetime_min %g must be positive", ErrInvalidEmitter, em.LifetimeMin)
	case em.LifetimeMax < em.LifetimeMin:
		return fmt.Errorf("%w: lifetime_max %g below lifetime_min %g", ErrInvalidEmitter, em.LifetimeMax, em.LifetimeMin)
	case em.Radius < 0 || em.RadiusWidth < 0:
		return fmt.Errorf("%w: negative radius", ErrInvalidEmitter)
	case em.SpawnRate < 0:
		return fmt.Errorf("%w: negative spawn_rate", ErrInvalidEmitter)
	case em.InitialFill < 0 || em.InitialFill > 1:
		return fmt.Errorf("%w: initial_fill %g outside [0,1]", ErrInvalidEmitter, em.InitialFill)
	case em.SecondaryColorProbability < 0 || em.SecondaryColorProbability > 1:
		return fmt.Errorf("%w: secondary_color_probability outside [0,1]", ErrInvalidEmitter)
	case em.ArcFeather < 0 || em.ArcFeather > 1:
		return fmt.Errorf("%w: arc_feather outside [0,1]", ErrInvalidEmitter)
	}
	switch em.SpawnMode {
	case "", SpawnPerSecond, SpawnPerDistance:
	default:
		return fmt.Errorf("%w: unknown spawn_mode %q", ErrInvalidEmitter, em.SpawnMode)
	}
	return nil
}

// EmitterParams is the per-tick, kernel-ready view of an Emitter: angles in
// radians and derived region bounds. It is built once per tick and never
// mutated while stages run.
type EmitterParams struct {
	Emitter

	SensorAngleRad   float32
	RotationAngleRad float32
	ArcLengthRad     float32
	ArcOffsetRad     float32
	FullCircle       bool
	InnerRadius      float32
}

// Params derives the kernel view. With syncRotation the rotation angle
// follows the sensor angle.
func (em *Emitter) Params(syncRotation bool) EmitterParams {
	p := EmitterParams{Emitter: *em}
	p.SensorAngleRad = em.SensorAngle * degToRad
	p.RotationAngleRad = em.RotationAngle * degToRad
	if syncRotation {
		p.RotationAngleRad = p.SensorAngleRad
	}
	p.ArcLengthRad = em.ArcLength * degToRad
	p.ArcOffsetRad = em.ArcOffset * degToRad
	p.FullCircle = em.ArcLength <= 0 || em.ArcLength >= 360
	if em.RadiusWidth > 0 && em.RadiusWidth < em.Radius {
		p.InnerRadius = em.Radius - em.RadiusWidth
	}
	if p.SpawnMode == "" {
		p.SpawnMode = SpawnPerSecond
	}
	return p
}

// ClampCapacity fits a requested capacity to the dispatch limits: a multiple
// of groupSize no larger than groupSize*maxGroups, and at least one group.
// The second result reports whether the value changed.
func ClampCapacity(requested, groupSize, maxGroups int) (int, bool) {
	ceiling := groupSize * maxGroups
	c := requested
	if c > ceiling {
		c = ceiling
	}
	c = c / groupSize * groupSize
	if c < groupSize {
		c = groupSize
	}
	return c, c != requested
}
