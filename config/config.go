// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/physarum/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig      `yaml:"screen"`
	Engine    EngineConfig      `yaml:"engine"`
	Trail     TrailConfig       `yaml:"trail"`
	Stimuli   FieldConfig       `yaml:"stimuli"`
	Influence FieldConfig       `yaml:"influence"`
	Fluid     FieldConfig       `yaml:"fluid"`
	Tick      TickConfig        `yaml:"tick"`
	Emitters  []systems.Emitter `yaml:"emitters"`
	Scene     SceneConfig       `yaml:"scene"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings for the viewer.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// EngineConfig holds engine-wide settings.
type EngineConfig struct {
	Seed              int64 `yaml:"seed"`
	Workers           int   `yaml:"workers"`             // 0 = GOMAXPROCS
	GroupSize         int   `yaml:"group_size"`          // parallel group size; capacities and resolutions are multiples of it
	MaxDispatchGroups int   `yaml:"max_dispatch_groups"` // capacity ceiling = group_size * this
	ColorLUTSamples   int   `yaml:"color_lut_samples"`
	DebugParticles    bool  `yaml:"debug_particles"` // rasterize particle occupancy each tick
}

// TrailConfig holds trail field parameters.
type TrailConfig struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	SizeX             float64 `yaml:"size_x"` // field-space extent
	SizeY             float64 `yaml:"size_y"`
	Decay             float64 `yaml:"decay"`     // fraction removed per tick
	Diffusion         float64 `yaml:"diffusion"` // fraction shared with neighbours per tick
	Repulsion         float64 `yaml:"repulsion"` // per-neighbour contribution cap (0 = off)
	MaxValue          float64 `yaml:"max_value"`
	AdvectionStrength float64 `yaml:"advection_strength"` // texels per unit flow (0 = off)
	VelocityDecay     float64 `yaml:"velocity_decay"`
	InfluenceWeight   float64 `yaml:"influence_weight"`
	FluidDrift        float64 `yaml:"fluid_drift"` // particle drift along the fluid field, field units/sec
}

// FieldConfig selects the source of an auxiliary field.
type FieldConfig struct {
	Source  string `yaml:"source"` // none | image | procedural
	Path    string `yaml:"path"`
	MaxSize int    `yaml:"max_size"` // downscale images larger than this

	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Scale      float64 `yaml:"scale"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
	Contrast   float64 `yaml:"contrast"`
	Strength   float64 `yaml:"strength"`
	Seed       int64   `yaml:"seed"`
}

// NoiseParams returns the procedural parameters of the field.
func (f FieldConfig) NoiseParams() systems.NoiseParams {
	return systems.NoiseParams{
		Width:      f.Width,
		Height:     f.Height,
		Scale:      f.Scale,
		Octaves:    f.Octaves,
		Lacunarity: f.Lacunarity,
		Gain:       f.Gain,
		Contrast:   f.Contrast,
		Strength:   f.Strength,
		Seed:       f.Seed,
	}
}

// TickConfig holds the default per-tick inputs.
type TickConfig struct {
	DT                           float64 `yaml:"dt"`
	Substeps                     int     `yaml:"substeps"`
	GravityX                     float64 `yaml:"gravity_x"`
	GravityY                     float64 `yaml:"gravity_y"`
	GravityStrength              float64 `yaml:"gravity_strength"`
	DirectionBiasX               float64 `yaml:"direction_bias_x"`
	DirectionBiasY               float64 `yaml:"direction_bias_y"`
	StimuliIntensity             float64 `yaml:"stimuli_intensity"`
	StimuliColorBlend            bool    `yaml:"stimuli_color_blend"`
	UseExternalVelocity          bool    `yaml:"use_external_velocity"`
	SynchronizeSensorAndRotation bool    `yaml:"synchronize_sensor_and_rotation"`
}

// SceneConfig describes the host scene that drives emitters.
type SceneConfig struct {
	Mapping string        `yaml:"mapping"` // xy | xz | yz
	Actors  []ActorConfig `yaml:"actors"`
}

// ActorConfig places one emitter in the scene and gives it motion.
type ActorConfig struct {
	Emitter      string     `yaml:"emitter"` // name from the emitters list
	Position     [3]float64 `yaml:"position"`
	OrbitRadius  float64    `yaml:"orbit_radius"`
	OrbitSpeed   float64    `yaml:"orbit_speed"` // radians per second
	OrbitPhase   float64    `yaml:"orbit_phase"`
	DriftX       float64    `yaml:"drift_x"`
	DriftY       float64    `yaml:"drift_y"`
	DriftZ       float64    `yaml:"drift_z"`
	TogglePeriod float64    `yaml:"toggle_period"` // seconds between enable/disable flips (0 = always on)
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	CoverageThreshold   float64 `yaml:"coverage_threshold"` // trail value a cell needs to count as covered
	SnapshotParticles   bool    `yaml:"snapshot_particles"` // include live particles in snapshot JSON
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32          float32
	TrailW        int // resolution after clamping up to one group
	TrailH        int
	TrailSize     mgl32.Vec2
	Gravity       mgl32.Vec2 // direction * strength
	DirectionBias mgl32.Vec2
	EmitterIndex  map[string]int // name -> index in Emitters
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded defaults without reading any file.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Tick.DT)

	// Resolutions below one group are raised to one group; zero and
	// negative values are left for Validate to reject.
	c.Derived.TrailW = c.Trail.Width
	c.Derived.TrailH = c.Trail.Height
	if g := c.Engine.GroupSize; g > 0 {
		if c.Derived.TrailW > 0 && c.Derived.TrailW < g {
			c.Derived.TrailW = g
		}
		if c.Derived.TrailH > 0 && c.Derived.TrailH < g {
			c.Derived.TrailH = g
		}
	}
	c.Derived.TrailSize = mgl32.Vec2{float32(c.Trail.SizeX), float32(c.Trail.SizeY)}

	g := mgl32.Vec2{float32(c.Tick.GravityX), float32(c.Tick.GravityY)}
	if g.Len() > 0 {
		g = g.Normalize().Mul(float32(c.Tick.GravityStrength))
	}
	c.Derived.Gravity = g
	c.Derived.DirectionBias = mgl32.Vec2{float32(c.Tick.DirectionBiasX), float32(c.Tick.DirectionBiasY)}

	// Apply defaults to emitters that don't specify all fields. Capacity is
	// left alone so that a missing or bad value is reported, not hidden.
	def := systems.DefaultEmitter()
	for i := range c.Emitters {
		em := &c.Emitters[i]
		if em.SpawnMode == "" {
			em.SpawnMode = def.SpawnMode
		}
		if em.LifetimeMin == 0 && em.LifetimeMax == 0 {
			em.LifetimeMin, em.LifetimeMax = def.LifetimeMin, def.LifetimeMax
		}
		if em.MainColor == (systems.Color{}) {
			em.MainColor = def.MainColor
		}
		if em.SensorOffset == 0 {
			em.SensorOffset = def.SensorOffset
		}
		if em.StepSize == 0 {
			em.StepSize = def.StepSize
		}
		if em.Seed == 0 {
			em.Seed = int64(i + 1)
		}
	}

	c.Derived.EmitterIndex = make(map[string]int, len(c.Emitters))
	for i, em := range c.Emitters {
		c.Derived.EmitterIndex[em.Name] = i
	}
}

// Validate rejects out-of-range values before any tick runs.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	g := c.Engine.GroupSize
	switch {
	case g <= 0:
		return invalid("engine.group_size %d must be positive", g)
	case c.Engine.MaxDispatchGroups <= 0:
		return invalid("engine.max_dispatch_groups %d must be positive", c.Engine.MaxDispatchGroups)
	case c.Engine.Workers < 0:
		return invalid("engine.workers %d must not be negative", c.Engine.Workers)
	case c.Trail.Width <= 0 || c.Trail.Height <= 0:
		return invalid("trail resolution %dx%d must be positive", c.Trail.Width, c.Trail.Height)
	case c.Derived.TrailW%g != 0 || c.Derived.TrailH%g != 0:
		return invalid("trail resolution %dx%d must be a multiple of group size %d", c.Trail.Width, c.Trail.Height, g)
	case c.Trail.SizeX <= 0 || c.Trail.SizeY <= 0:
		return invalid("trail size %gx%g must be positive", c.Trail.SizeX, c.Trail.SizeY)
	case c.Trail.Decay < 0 || c.Trail.Decay > 1:
		return invalid("trail.decay %g outside [0,1]", c.Trail.Decay)
	case c.Trail.Diffusion < 0 || c.Trail.Diffusion > 1:
		return invalid("trail.diffusion %g outside [0,1]", c.Trail.Diffusion)
	case c.Trail.Repulsion < 0:
		return invalid("trail.repulsion %g must not be negative", c.Trail.Repulsion)
	case c.Trail.MaxValue <= 0:
		return invalid("trail.max_value %g must be positive", c.Trail.MaxValue)
	case c.Trail.VelocityDecay < 0 || c.Trail.VelocityDecay > 1:
		return invalid("trail.velocity_decay %g outside [0,1]", c.Trail.VelocityDecay)
	case c.Tick.DT < 0:
		return invalid("tick.dt %g must not be negative", c.Tick.DT)
	case c.Tick.Substeps < 1:
		return invalid("tick.substeps %d must be at least 1", c.Tick.Substeps)
	}

	for name, f := range map[string]FieldConfig{"stimuli": c.Stimuli, "influence": c.Influence, "fluid": c.Fluid} {
		switch f.Source {
		case "", "none":
		case "image":
			if f.Path == "" {
				return invalid("%s.path required for image source", name)
			}
		case "procedural":
			if f.Width <= 0 || f.Height <= 0 {
				return invalid("%s procedural size %dx%d must be positive", name, f.Width, f.Height)
			}
		default:
			return invalid("%s.source %q unknown", name, f.Source)
		}
	}

	for i := range c.Emitters {
		if err := c.Emitters[i].Validate(); err != nil {
			return fmt.Errorf("%w: emitters[%d] %q: %w", ErrInvalidConfig, i, c.Emitters[i].Name, err)
		}
	}

	if _, err := systems.ParseMapping(c.Scene.Mapping); err != nil {
		return invalid("scene.mapping: %v", err)
	}
	for i, a := range c.Scene.Actors {
		if _, ok := c.Derived.EmitterIndex[a.Emitter]; !ok {
			return invalid("scene.actors[%d] references unknown emitter %q", i, a.Emitter)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
