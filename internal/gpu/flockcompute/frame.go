// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flockcompute

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/boids/internal/parallel"
)

// Frame is the CPU mirror of one GPU frame: clear, build, behavior, and the
// copy of the next-particle buffer back into the particle buffer.
type Frame struct {
	Particles []Particle
	Grid      Grid

	// Vertices holds the render output of the last Step, three per particle.
	Vertices [][3]mgl32.Vec2

	// Pool, when set, runs the behavior pass in workgroup-sized chunks.
	Pool *parallel.Pool

	next []Particle
}

// NewFrame copies ps into a new frame with an empty grid.
func NewFrame(ps []Particle) *Frame {
	cur := make([]Particle, len(ps))
	copy(cur, ps)
	return &Frame{
		Particles: cur,
		Grid:      NewGrid(),
		Vertices:  make([][3]mgl32.Vec2, len(ps)),
		next:      make([]Particle, len(ps)),
	}
}

// Step advances the frame by one tick. Every particle reads the grid and the
// particle set as they were before the tick, like the GPU invocations do.
func (f *Frame) Step(b Behavior, size, aspect float32) {
	f.Grid.Clear()
	f.Grid.Build(f.Particles)

	behave := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s := Steer(i, f.Particles, f.Grid, b)
			f.next[i] = Integrate(f.Particles[i], s, b)
			f.Vertices[i] = TriangleVertices(f.next[i], size, aspect)
		}
	}
	if f.Pool != nil {
		f.Pool.Dispatch(len(f.Particles), WorkgroupSize*WorkgroupSize, behave)
	} else {
		behave(0, len(f.Particles))
	}
	f.Particles, f.next = f.next, f.Particles
}
