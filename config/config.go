// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Chunk     ChunkConfig            `yaml:"chunk"`
	Physics   PhysicsConfig          `yaml:"physics"`
	Collision CollisionConfig        `yaml:"collision"`
	Boundary  BoundaryConfig         `yaml:"boundary"`
	Materials map[string]MaterialSet `yaml:"materials"`
	Screen    ScreenConfig           `yaml:"screen"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`

	// Derived values computed after loading.
	Derived DerivedConfig `yaml:"-"`
}

// ChunkConfig controls the lattice layout.
type ChunkConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// PhysicsConfig controls the per-tick velocity integration.
type PhysicsConfig struct {
	GravityX           float64 `yaml:"gravity_x"`
	GravityY           float64 `yaml:"gravity_y"`
	Drag               float64 `yaml:"drag"`
	FixedDeltaTime     float64 `yaml:"fixed_delta_time"`
	MaxUpdatesPerFrame int     `yaml:"max_updates_per_frame"`
}

// CollisionConfig controls the momentum solver's deterministic jitter.
type CollisionConfig struct {
	EdgeRotationEpsilon float64 `yaml:"edge_rotation_epsilon"`
}

// BoundaryConfig names the boundary policy ("absorb"). The resolver does
// not read it: a move toward a chunk outside the active set is classified
// Impossible and the cell stays put, and Simulation.SetCell outside the
// active set is ignored.
type BoundaryConfig struct {
	Policy string `yaml:"policy"`
}

// MaterialSet describes the physics constants for one tile type.
type MaterialSet struct {
	IsStatic      bool    `yaml:"is_static"`
	Mass          float64 `yaml:"mass"`
	GravityScale  float64 `yaml:"gravity_scale"`
	Bounciness    float64 `yaml:"bounciness"`
	ImpulseSplit  float64 `yaml:"impulse_split"`
	FrictionCoef  float64 `yaml:"friction_coef"`
}

// ScreenConfig holds display settings for the external renderer.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// TelemetryConfig controls optional CSV/structured output.
type TelemetryConfig struct {
	OutputDir   string `yaml:"output_dir"`
	WindowTicks int32  `yaml:"window_ticks"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FixedDeltaTime32 float32
	Gravity32        [2]float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
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
// If path is empty, only embedded defaults are used.
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
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// computeDerived calculates values derived from the loaded config.
func (c *Config) computeDerived() {
	c.Derived.FixedDeltaTime32 = float32(c.Physics.FixedDeltaTime)
	c.Derived.Gravity32 = [2]float32{float32(c.Physics.GravityX), float32(c.Physics.GravityY)}
}

// Material looks up the physics constants for a tile type name, falling back
// to a static zero-mass material if it is not configured.
func (c *Config) Material(name string) MaterialSet {
	if m, ok := c.Materials[name]; ok {
		return m
	}
	return MaterialSet{IsStatic: true}
}

// WriteYAML saves the configuration to a file, for reproducing a run.
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
