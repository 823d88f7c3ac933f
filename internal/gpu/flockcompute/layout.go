// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package flockcompute is the CPU reference of the flock compute shaders.
//
// Every kernel here mirrors one WGSL stage in internal/gpu/shaders and works
// on the same byte layouts, so the GPU output can be checked against it and
// the simulation invariants can be tested without a device.
//
// Reference: internal/gpu/shaders/ (WGSL shaders)
package flockcompute

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Spatial hash geometry. These must match the constants in clear_hash.wgsl,
// build_hash.wgsl and behavior.wgsl.
const (
	// GridSize is the number of cells along each axis.
	GridSize = 16

	// CellCapacity is the number of particle index slots per cell.
	CellCapacity = 32

	// CellStride is the number of u32 words per cell: one counter followed
	// by CellCapacity slots.
	CellStride = CellCapacity + 1

	// DomainMin and DomainMax bound the simulation domain on both axes.
	DomainMin = -1.0
	DomainMax = 1.0

	// CellSize is the edge length of one grid cell in domain units.
	CellSize = (DomainMax - DomainMin) / GridSize

	// WorkgroupSize is the edge of the 2D workgroup used by every compute
	// stage (@workgroup_size(16, 16)).
	WorkgroupSize = 16

	// EdgeMargin is the distance from a wall at which edge avoidance starts.
	EdgeMargin = 0.1
)

// Byte sizes of the GPU records.
const (
	// ParticleStride is the size of one particle: vec2 center + vec2 velocity.
	ParticleStride = 16

	// VertexStride is the size of one particle's render output: three vec2.
	VertexStride = 24

	// HashBytes is the size of the whole spatial hash buffer.
	HashBytes = GridSize * GridSize * CellStride * 4

	// BehaviorFloats is the number of float32 values in the behavior buffer.
	BehaviorFloats = 8
)

// Particle is one boid: position and velocity in domain units.
// The field order is the GPU memory order.
type Particle struct {
	X, Y   float32
	VX, VY float32
}

// Behavior holds the steering knobs consumed by behavior.wgsl.
// The field order is the GPU memory order.
type Behavior struct {
	MaxSpeed              float32
	MaxSteeringForce      float32
	EdgeAvoidanceForce    float32
	SeparationForce       float32
	MaxSeparationDistance float32
	AlignmentForce        float32
	CohesionForce         float32
	VisualRange           float32
}

// DefaultTriangleSize is the default render size of one particle in clip
// space units.
const DefaultTriangleSize = 0.01

// DefaultBehavior returns the tuned default steering knobs.
func DefaultBehavior() Behavior {
	return Behavior{
		MaxSpeed:              0.001,
		MaxSteeringForce:      0.0001,
		EdgeAvoidanceForce:    0.05,
		SeparationForce:       1,
		MaxSeparationDistance: 0.02,
		AlignmentForce:        0.5,
		CohesionForce:         0.0125,
		VisualRange:           0.07,
	}
}

// Floats returns the behavior values in buffer order.
func (b Behavior) Floats() []float32 {
	return []float32{
		b.MaxSpeed,
		b.MaxSteeringForce,
		b.EdgeAvoidanceForce,
		b.SeparationForce,
		b.MaxSeparationDistance,
		b.AlignmentForce,
		b.CohesionForce,
		b.VisualRange,
	}
}

// ParticleFloats flattens particles into the float layout of the particle
// buffer.
func ParticleFloats(ps []Particle) []float32 {
	out := make([]float32, 0, len(ps)*4)
	for _, p := range ps {
		out = append(out, p.X, p.Y, p.VX, p.VY)
	}
	return out
}

// EncodeFloats packs float32 values as little-endian bytes.
func EncodeFloats(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeParticles unpacks a particle buffer. The byte length must be a
// multiple of ParticleStride.
func DecodeParticles(data []byte) ([]Particle, error) {
	if len(data)%ParticleStride != 0 {
		return nil, fmt.Errorf("flockcompute: particle data length %d is not a multiple of %d", len(data), ParticleStride)
	}
	ps := make([]Particle, len(data)/ParticleStride)
	for i := range ps {
		off := i * ParticleStride
		ps[i] = Particle{
			X:  math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			Y:  math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			VX: math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
			VY: math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:])),
		}
	}
	return ps, nil
}

// WorkgroupCount returns the per-axis workgroup count for a 2D dispatch over
// n particles: ceil(sqrt(n)/16), never less than one. The (count*16)² threads
// cover every particle; excess invocations exit early.
func WorkgroupCount(n int) uint32 {
	if n <= 0 {
		return 1
	}
	w := uint32(math.Ceil(math.Sqrt(float64(n)) / WorkgroupSize))
	if w == 0 {
		w = 1
	}
	for w*WorkgroupSize*w*WorkgroupSize < uint32(n) {
		w++
	}
	return w
}
