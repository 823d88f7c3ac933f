package boids

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/boids/internal/gpu"
	"github.com/gogpu/boids/internal/gpu/flockcompute"
)

// MemoryStats reports buffer memory held on the GPU.
type MemoryStats = gpu.MemoryStats

// State is the lifecycle state of a Controller.
type State int

const (
	// Uninitialized means no GPU resources exist. AdvanceAndRender is a
	// no-op and parameter updates only change the stored snapshot.
	Uninitialized State = iota

	// Running means the flock pipeline is set up and frames can be drawn.
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Running:
		return "Running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller drives one flock on a device and draws it into a surface.
//
// The frame loop calls AdvanceAndRender once per frame. Parameter updates
// from another goroutine are serialized with frames, so they always land
// between two frames.
type Controller struct {
	mu sync.Mutex

	dev     *Device
	surface Surface
	opts    options

	state    State
	params   Params
	pipeline *gpu.FlockPipeline
	aspect   float32

	runID uuid.UUID
	log   *slog.Logger
}

// NewController returns an Uninitialized controller with default
// parameters. Start sets it up.
func NewController(dev *Device, surface Surface, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{
		dev:     dev,
		surface: surface,
		opts:    o,
		params:  DefaultParams(),
		log:     Logger().With("flock", o.label),
	}
}

// Create is NewController followed by Start.
func Create(dev *Device, surface Surface, particles []Particle, params Params, opts ...Option) (*Controller, error) {
	c := NewController(dev, surface, opts...)
	if err := c.Start(particles, params); err != nil {
		return nil, err
	}
	return c, nil
}

// Start allocates the flock buffers, loads and validates the shaders and
// creates the four stages. On success the controller is Running. On failure
// nothing is left allocated, the controller stays Uninitialized and Start
// may be retried.
func (c *Controller) Start(particles []Particle, params Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return ErrAlreadyRunning
	}
	if len(particles) == 0 {
		return ErrNoParticles
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if c.dev == nil {
		return ErrNoDevice
	}
	if c.surface == nil {
		return ErrNoSurface
	}

	aspect := surfaceAspect(c.surface)
	p, err := gpu.NewFlockPipeline(c.dev.device, c.dev.queue, c.dev.submitter, gpu.FlockConfig{
		Particles:    particles,
		TriangleSize: params.TriangleSize,
		Behavior:     params.behavior(),
		Aspect:       aspect,
		Format:       c.surface.Format(),
		Shaders:      c.opts.shaders,
		MemoryBudget: c.opts.budget,
	})
	if err != nil {
		return fmt.Errorf("boids: start: %w", err)
	}

	c.pipeline = p
	c.params = params
	c.aspect = aspect
	c.state = Running
	c.runID = uuid.New()
	c.log = Logger().With("flock", c.opts.label, "run", c.runID.String())
	c.log.Info("boids: controller running", "particles", len(particles), "aspect", aspect)
	return nil
}

func surfaceAspect(s Surface) float32 {
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// AdvanceAndRender advances the flock by one step and draws it: clear hash,
// build hash, behavior, particle copy-back and draw, submitted in that
// order, then presents the surface. It returns without waiting for the GPU.
// It is a no-op while Uninitialized.
func (c *Controller) AdvanceAndRender() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		return nil
	}

	if aspect := surfaceAspect(c.surface); aspect != c.aspect {
		if err := c.pipeline.SetAspect(aspect); err != nil {
			return fmt.Errorf("boids: update aspect: %w", err)
		}
		c.log.Debug("boids: aspect changed", "from", c.aspect, "to", aspect)
		c.aspect = aspect
	}

	view, err := c.surface.Acquire()
	if err != nil {
		return fmt.Errorf("boids: acquire surface: %w", err)
	}
	if err := c.pipeline.Frame(view); err != nil {
		return fmt.Errorf("boids: frame: %w", err)
	}
	if err := c.surface.Present(); err != nil {
		return fmt.Errorf("boids: present: %w", err)
	}
	return nil
}

// SetParameters applies updates in order. Every update is validated before
// any is applied, so an invalid update leaves the parameters unchanged.
// While Running, each changed group gets a fresh buffer bound to the
// behavior stage; other bindings are untouched. If the GPU update fails,
// neither group changes.
func (c *Controller) SetParameters(updates ...ParamUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.params
	var shape, behavior bool
	for _, u := range updates {
		switch u := u.(type) {
		case RenderShapeUpdate:
			shape = true
		case BehaviorUpdate:
			behavior = true
		case nil:
			return fmt.Errorf("%w: nil update", ErrInvalidParams)
		default:
			return fmt.Errorf("%w: unsupported update %T", ErrInvalidParams, u)
		}
		u.apply(&next)
	}
	if err := next.Validate(); err != nil {
		return err
	}

	if c.state != Running {
		c.params = next
		return nil
	}
	var size *float32
	if shape {
		size = &next.TriangleSize
	}
	var forces *flockcompute.Behavior
	if behavior {
		b := next.behavior()
		forces = &b
	}
	if err := c.pipeline.SetParams(size, forces); err != nil {
		return fmt.Errorf("boids: update parameters: %w", err)
	}
	c.params = next
	c.log.Debug("boids: parameters updated", "shape", shape, "behavior", behavior)
	return nil
}

// Parameters returns a snapshot of the current parameters.
func (c *Controller) Parameters() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ParticleCount returns the number of particles, or 0 while Uninitialized.
func (c *Controller) ParticleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline == nil {
		return 0
	}
	return c.pipeline.Count()
}

// Frames returns the number of frames submitted since Start.
func (c *Controller) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline == nil {
		return 0
	}
	return c.pipeline.Frames()
}

// RunID identifies the current run in log records. It is the zero UUID
// while Uninitialized.
func (c *Controller) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// MemoryStats reports the GPU memory held by the flock buffers.
func (c *Controller) MemoryStats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline == nil {
		return MemoryStats{}
	}
	return c.pipeline.MemoryStats()
}

// ReadParticles copies the particle buffer back to the host. It waits for
// every submitted frame, so it is meant for debugging and snapshots, not
// for the frame loop.
func (c *Controller) ReadParticles(ctx context.Context) ([]Particle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return nil, ErrNotRunning
	}
	ps, err := c.pipeline.ReadParticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("boids: read particles: %w", err)
	}
	return ps, nil
}

// Reset replaces the particle set of a running flock. The particle count
// may change.
func (c *Controller) Reset(particles []Particle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return ErrNotRunning
	}
	if len(particles) == 0 {
		return ErrNoParticles
	}
	if err := c.pipeline.Reset(particles); err != nil {
		return fmt.Errorf("boids: reset: %w", err)
	}
	c.log.Info("boids: flock reset", "particles", len(particles))
	return nil
}

// Close releases every GPU resource of the flock and returns the
// controller to Uninitialized. The device and surface are not closed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline != nil {
		c.pipeline.Close()
		c.pipeline = nil
	}
	if c.state == Running {
		c.log.Info("boids: controller closed")
	}
	c.state = Uninitialized
	c.runID = uuid.Nil
}
