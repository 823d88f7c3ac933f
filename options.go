package boids

import "github.com/gogpu/boids/internal/gpu"

// ShaderName identifies one of the WGSL programs a controller loads.
type ShaderName = gpu.ShaderName

// Shader names passed to a ShaderLoader.
const (
	ShaderClearHash = gpu.ShaderClearHash
	ShaderBuildHash = gpu.ShaderBuildHash
	ShaderBehavior  = gpu.ShaderBehavior
	ShaderDraw      = gpu.ShaderDraw
)

// ShaderLoader returns the WGSL source for a shader. An error or an empty
// source fails Start with ErrShaderMissing.
type ShaderLoader = gpu.ShaderLoader

// EmbeddedShader returns the built-in source for name.
func EmbeddedShader(name ShaderName) (string, error) { return gpu.EmbeddedShader(name) }

// Option configures a Controller during creation.
//
// Example:
//
//	c := boids.NewController(dev, surface,
//	    boids.WithLabel("main-flock"),
//	    boids.WithShaderLoader(loadFromDisk))
type Option func(*options)

type options struct {
	shaders ShaderLoader
	label   string
	budget  uint64
}

func defaultOptions() options {
	return options{label: "flock"}
}

// WithShaderLoader overrides where the WGSL sources come from. The
// default serves the embedded shaders.
func WithShaderLoader(load ShaderLoader) Option {
	return func(o *options) {
		o.shaders = load
	}
}

// WithLabel names the controller in log records.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithMemoryBudget caps the GPU memory the flock buffers may hold. Start
// and Reset fail with an error wrapping ErrMemoryBudgetExceeded when the
// buffers do not fit. Zero means no cap.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.budget = bytes
	}
}
