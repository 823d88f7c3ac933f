package boids

import (
	"errors"

	"github.com/gogpu/boids/internal/gpu"
)

// Capability errors. Returned by device acquisition and Controller.Start.
var (
	// ErrNoDevice is returned when no GPU device is available.
	ErrNoDevice = errors.New("boids: no GPU device")

	// ErrNoAdapter is returned when a backend exposes no adapters.
	ErrNoAdapter = errors.New("boids: no GPU adapter")
)

// Configuration errors. Reported eagerly at Start or SetParameters.
var (
	// ErrNoParticles is returned when a flock would start with no particles.
	ErrNoParticles = errors.New("boids: no particles")

	// ErrInvalidParams is returned when a parameter is out of range.
	ErrInvalidParams = errors.New("boids: invalid parameters")

	// ErrNoSurface is returned when a controller has no surface to draw on.
	ErrNoSurface = errors.New("boids: no surface")
)

// State errors.
var (
	// ErrNotRunning is returned by operations that need a running flock.
	ErrNotRunning = errors.New("boids: controller is not running")

	// ErrAlreadyRunning is returned by Start on a running controller.
	ErrAlreadyRunning = errors.New("boids: controller is already running")
)

// Errors from the GPU layer, re-exported for errors.Is checks.
var (
	ErrShaderMissing   = gpu.ErrShaderMissing
	ErrBindingMismatch = gpu.ErrBindingMismatch
	ErrBufferTooSmall  = gpu.ErrBufferTooSmall
	ErrUnknownBinding  = gpu.ErrUnknownBinding

	ErrMemoryBudgetExceeded = gpu.ErrMemoryBudgetExceeded
)
