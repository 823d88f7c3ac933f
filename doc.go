// Package boids runs a flocking simulation on the GPU and draws it.
//
// Particles live in GPU storage buffers for their whole life. Each frame the
// GPU bins them into a 16x16 spatial hash, applies separation, alignment,
// cohesion and edge avoidance using only the neighbouring cells, and draws
// one triangle per particle. The host never reads particle data back on the
// frame path.
//
// # Quick Start
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
//	dev, err := boids.OpenDevice(gputypes.BackendVulkan)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	surface, err := boids.NewOffscreenSurface(dev, 1280, 720, gputypes.TextureFormatBGRA8Unorm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer surface.Close()
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	params := boids.DefaultParams()
//	flock, err := boids.Create(dev, surface, boids.RandomParticles(rng, 4096, params.MaxSpeed), params)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer flock.Close()
//
//	for range 600 {
//	    if err := flock.AdvanceAndRender(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Devices
//
// A Device comes from one of three places: OpenDevice picks an adapter on a
// registered HAL backend, NewDevice wraps a device and queue the caller
// already owns, and DeviceFromProvider takes them from a gpucontext host
// such as a gogpu window.
//
// # Parameters
//
// Params split into two groups that live in separate GPU buffers. A
// RenderShapeUpdate changes the triangle size; a BehaviorUpdate changes any
// subset of the steering forces. SetParameters validates every update before
// applying any of them and rebinds only the buffers that changed.
//
// # Logging
//
// The package logs through log/slog and is silent by default. Call
// SetLogger to see device, pipeline and controller events.
package boids
