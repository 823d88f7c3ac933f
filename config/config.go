// Package config loads the boids demo configuration.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/boids"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every setting of a demo run.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Surface SurfaceConfig `yaml:"surface"`
	Params  ParamsConfig  `yaml:"params"`
	GPU     GPUConfig     `yaml:"gpu"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

// RunConfig holds the flock size and run length.
type RunConfig struct {
	Particles int    `yaml:"particles"`
	Frames    int    `yaml:"frames"`
	Seed      uint64 `yaml:"seed"` // Seed for particle placement
}

// SurfaceConfig holds the offscreen render target settings.
type SurfaceConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Format string `yaml:"format"` // bgra8 or rgba8
}

// ParamsConfig mirrors boids.Params.
type ParamsConfig struct {
	TriangleSize          float32 `yaml:"triangle_size"`
	MaxSpeed              float32 `yaml:"max_speed"`
	MaxSteeringForce      float32 `yaml:"max_steering_force"`
	EdgeAvoidanceForce    float32 `yaml:"edge_avoidance_force"`
	SeparationForce       float32 `yaml:"separation_force"`
	MaxSeparationDistance float32 `yaml:"max_separation_distance"`
	AlignmentForce        float32 `yaml:"alignment_force"`
	CohesionForce         float32 `yaml:"cohesion_force"`
	VisualRange           float32 `yaml:"visual_range"`
}

// GPUConfig selects the device.
type GPUConfig struct {
	Backend        string `yaml:"backend"`          // vulkan, metal, dx12, gl or software
	MemoryBudgetMB int    `yaml:"memory_budget_mb"` // 0 = unlimited
}

// OutputConfig controls the final snapshot.
type OutputConfig struct {
	Snapshot     string `yaml:"snapshot"`      // .png, .bmp or .tiff path; empty skips
	ScaleWidth   int    `yaml:"scale_width"`   // Resample to this width; 0 keeps the surface size
	ParticlesCSV string `yaml:"particles_csv"` // Final particle dump; empty skips
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

var backends = map[string]gputypes.Backend{
	"vulkan":   gputypes.BackendVulkan,
	"metal":    gputypes.BackendMetal,
	"dx12":     gputypes.BackendDX12,
	"gl":       gputypes.BackendGL,
	"software": gputypes.BackendEmpty,
}

var formats = map[string]gputypes.TextureFormat{
	"bgra8": gputypes.TextureFormatBGRA8Unorm,
	"rgba8": gputypes.TextureFormatRGBA8Unorm,
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var snapshotExts = []string{".png", ".bmp", ".tif", ".tiff"}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Load("")
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
		// Only keys present in the file overwrite the defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Run.Particles <= 0 {
		return fmt.Errorf("run.particles must be positive, got %d", c.Run.Particles)
	}
	if c.Run.Frames < 0 {
		return fmt.Errorf("run.frames must not be negative, got %d", c.Run.Frames)
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("surface size must be positive, got %dx%d", c.Surface.Width, c.Surface.Height)
	}
	if _, ok := formats[strings.ToLower(c.Surface.Format)]; !ok {
		return fmt.Errorf("surface.format %q is not one of bgra8, rgba8", c.Surface.Format)
	}
	if err := c.BoidsParams().Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if _, ok := backends[strings.ToLower(c.GPU.Backend)]; !ok {
		return fmt.Errorf("gpu.backend %q is not supported", c.GPU.Backend)
	}
	if c.GPU.MemoryBudgetMB < 0 {
		return fmt.Errorf("gpu.memory_budget_mb must not be negative, got %d", c.GPU.MemoryBudgetMB)
	}
	if c.Output.ScaleWidth < 0 {
		return fmt.Errorf("output.scale_width must not be negative, got %d", c.Output.ScaleWidth)
	}
	if s := c.Output.Snapshot; s != "" && !hasSnapshotExt(s) {
		return fmt.Errorf("output.snapshot %q must end in .png, .bmp, .tif or .tiff", s)
	}
	if s := c.Output.ParticlesCSV; s != "" && !strings.HasSuffix(strings.ToLower(s), ".csv") {
		return fmt.Errorf("output.particles_csv %q must end in .csv", s)
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

func hasSnapshotExt(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range snapshotExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// BoidsParams converts the params section.
func (c *Config) BoidsParams() boids.Params {
	p := c.Params
	return boids.Params{
		TriangleSize:          p.TriangleSize,
		MaxSpeed:              p.MaxSpeed,
		MaxSteeringForce:      p.MaxSteeringForce,
		EdgeAvoidanceForce:    p.EdgeAvoidanceForce,
		SeparationForce:       p.SeparationForce,
		MaxSeparationDistance: p.MaxSeparationDistance,
		AlignmentForce:        p.AlignmentForce,
		CohesionForce:         p.CohesionForce,
		VisualRange:           p.VisualRange,
	}
}

// Backend returns the configured GPU backend. Call Validate first.
func (c *Config) Backend() gputypes.Backend {
	return backends[strings.ToLower(c.GPU.Backend)]
}

// Format returns the configured surface format. Call Validate first.
func (c *Config) Format() gputypes.TextureFormat {
	return formats[strings.ToLower(c.Surface.Format)]
}

// LogLevel returns the configured log level, or info when unknown.
func (c *Config) LogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(c.Log.Level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// MemoryBudget returns the GPU memory budget in bytes.
func (c *Config) MemoryBudget() uint64 {
	return uint64(c.GPU.MemoryBudgetMB) << 20
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
