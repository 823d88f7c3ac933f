// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flockcompute

import (
	"math/rand/v2"
	"testing"

	"github.com/gogpu/boids/internal/parallel"
)

// boundsEpsilon is the tolerated overshoot past a wall.
const boundsEpsilon = 1e-4

func TestFrameStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	b := DefaultBehavior()
	f := NewFrame(RandomParticles(rng, 128, b.MaxSpeed))

	for frame := 0; frame < 600; frame++ {
		f.Step(b, DefaultTriangleSize, 16.0/9.0)
		for i, p := range f.Particles {
			if p.X < DomainMin-boundsEpsilon || p.X > DomainMax+boundsEpsilon ||
				p.Y < DomainMin-boundsEpsilon || p.Y > DomainMax+boundsEpsilon {
				t.Fatalf("frame %d: particle %d at (%v, %v) left the domain", frame, i, p.X, p.Y)
			}
		}
	}

	if s := Summarize(f.Particles); s.MaxAbsCoord > DomainMax+boundsEpsilon {
		t.Errorf("MaxAbsCoord = %v, want <= %v", s.MaxAbsCoord, DomainMax+boundsEpsilon)
	}
}

func TestFrameStaysInBoundsFast(t *testing.T) {
	// Velocities far above the defaults push particles into the walls every
	// few frames.
	rng := rand.New(rand.NewPCG(7, 7))
	b := DefaultBehavior()
	b.MaxSpeed = 0.05
	f := NewFrame(RandomParticles(rng, 256, b.MaxSpeed))

	for frame := 0; frame < 600; frame++ {
		f.Step(b, DefaultTriangleSize, 1)
	}
	if s := Summarize(f.Particles); s.MaxAbsCoord > DomainMax+boundsEpsilon {
		t.Errorf("MaxAbsCoord = %v, want <= %v", s.MaxAbsCoord, DomainMax+boundsEpsilon)
	}
}

func TestFrameRespectsMaxSpeed(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	b := DefaultBehavior()
	f := NewFrame(RandomParticles(rng, 64, b.MaxSpeed*4))

	f.Step(b, DefaultTriangleSize, 1)
	s := Summarize(f.Particles)
	if s.MeanSpeed > float64(b.MaxSpeed)*1.0001 {
		t.Errorf("MeanSpeed = %v, want <= %v", s.MeanSpeed, b.MaxSpeed)
	}
}

func TestFramePoolMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	b := DefaultBehavior()
	ps := RandomParticles(rng, 1000, b.MaxSpeed)

	serial := NewFrame(ps)
	pooled := NewFrame(ps)
	pooled.Pool = parallel.NewPool(4)
	defer pooled.Pool.Close()

	for frame := 0; frame < 60; frame++ {
		serial.Step(b, DefaultTriangleSize, 1)
		pooled.Step(b, DefaultTriangleSize, 1)
	}
	for i := range ps {
		if serial.Particles[i] != pooled.Particles[i] {
			t.Fatalf("particle %d: pooled %+v, serial %+v", i, pooled.Particles[i], serial.Particles[i])
		}
		if serial.Vertices[i] != pooled.Vertices[i] {
			t.Fatalf("vertices %d differ", i)
		}
	}
}

func TestFrameVerticesFollowParticles(t *testing.T) {
	ps := []Particle{{X: 0.2, Y: -0.4, VX: 0, VY: 0.001}}
	f := NewFrame(ps)
	f.Step(DefaultBehavior(), 0.05, 1)

	p := f.Particles[0]
	tip := f.Vertices[0][0]
	if tip.X() != p.X {
		t.Errorf("tip.X = %v, want %v", tip.X(), p.X)
	}
	if tip.Y() <= p.Y {
		t.Errorf("tip.Y = %v, want above %v", tip.Y(), p.Y)
	}
	// NewFrame copies its input.
	if ps[0].Y != -0.4 {
		t.Errorf("input mutated: Y = %v", ps[0].Y)
	}
}

func TestWorkgroupCount(t *testing.T) {
	tests := []struct {
		n    int
		want uint32
	}{
		{0, 1},
		{1, 1},
		{128, 1},
		{256, 1},
		{257, 2},
		{1024, 2},
		{1025, 3},
		{10000, 7},
	}
	for _, tt := range tests {
		got := WorkgroupCount(tt.n)
		if got != tt.want {
			t.Errorf("WorkgroupCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
		threads := int(got) * WorkgroupSize
		if threads*threads < tt.n {
			t.Errorf("WorkgroupCount(%d) = %d covers only %d invocations", tt.n, got, threads*threads)
		}
	}
}

func TestDecodeParticlesRoundTrip(t *testing.T) {
	ps := []Particle{{X: 0.25, Y: -0.5, VX: 0.001, VY: -0.002}, {X: 1, Y: -1}}
	got, err := DecodeParticles(EncodeFloats(ParticleFloats(ps)))
	if err != nil {
		t.Fatalf("DecodeParticles() error = %v", err)
	}
	if len(got) != len(ps) || got[0] != ps[0] || got[1] != ps[1] {
		t.Errorf("DecodeParticles() = %v, want %v", got, ps)
	}

	if _, err := DecodeParticles(make([]byte, 15)); err == nil {
		t.Error("DecodeParticles(15 bytes) error = nil, want error")
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (Stats{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}

	ps := []Particle{
		{X: -0.5, Y: 0, VX: 0.003, VY: 0.004},
		{X: 0.5, Y: 1, VX: 0, VY: 0},
	}
	s := Summarize(ps)
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	if s.CentroidX != 0 || s.CentroidY != 0.5 {
		t.Errorf("centroid = (%v, %v), want (0, 0.5)", s.CentroidX, s.CentroidY)
	}
	if d := s.MeanSpeed - 0.0025; d > 1e-9 || d < -1e-9 {
		t.Errorf("MeanSpeed = %v, want 0.0025", s.MeanSpeed)
	}
	if s.MaxAbsCoord != 1 {
		t.Errorf("MaxAbsCoord = %v, want 1", s.MaxAbsCoord)
	}
	if s.SpeedStdDev <= 0 {
		t.Errorf("SpeedStdDev = %v, want > 0", s.SpeedStdDev)
	}
}
