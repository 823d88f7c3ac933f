// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/boids/internal/gpu/flockcompute"
)

func newTestFlock(t *testing.T, n int) (*FlockPipeline, *RenderTarget) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	sub := NewSubmitter(device, queue)

	rng := rand.New(rand.NewPCG(7, 11))
	p, err := NewFlockPipeline(device, queue, sub, FlockConfig{
		Particles:    flockcompute.RandomParticles(rng, n, 0.001),
		TriangleSize: flockcompute.DefaultTriangleSize,
		Behavior:     flockcompute.DefaultBehavior(),
		Aspect:       1.5,
	})
	if err != nil {
		sub.Close()
		cleanup()
		t.Fatalf("NewFlockPipeline: %v", err)
	}
	target, err := NewRenderTarget(device, sub, 96, 64, 0)
	if err != nil {
		t.Fatalf("NewRenderTarget: %v", err)
	}
	t.Cleanup(func() {
		target.Close()
		p.Close()
		sub.Close()
		cleanup()
	})
	return p, target
}

func TestFlockPipelineFrames(t *testing.T) {
	for _, n := range []int{1, 2, 128, 1000} {
		p, target := newTestFlock(t, n)
		if p.Count() != n {
			t.Errorf("Count = %d, want %d", p.Count(), n)
		}
		for i := 0; i < 600; i++ {
			if err := p.Frame(target.View()); err != nil {
				t.Fatalf("n=%d frame %d: %v", n, i, err)
			}
		}
		if p.Frames() != 600 {
			t.Errorf("Frames = %d, want 600", p.Frames())
		}
	}
}

func TestFlockPipelineBufferSizes(t *testing.T) {
	p, _ := newTestFlock(t, 10)
	s := p.MemoryStats()
	want := uint64(4 + 4 + 4 + 10*16 + 10*16 + 10*24 + flockcompute.HashBytes + 32)
	if s.UsedBytes != want {
		t.Errorf("UsedBytes = %d, want %d", s.UsedBytes, want)
	}
	if s.BufferCount != int(FlockBufferCount) {
		t.Errorf("BufferCount = %d, want %d", s.BufferCount, FlockBufferCount)
	}
}

func TestFlockPipelineNoParticles(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	sub := NewSubmitter(device, queue)
	defer sub.Close()

	_, err := NewFlockPipeline(device, queue, sub, FlockConfig{Behavior: flockcompute.DefaultBehavior()})
	if !errors.Is(err, ErrNoParticles) {
		t.Errorf("error = %v, want ErrNoParticles", err)
	}
}

func TestFlockPipelineShaderMissing(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	sub := NewSubmitter(device, queue)
	defer sub.Close()

	_, err := NewFlockPipeline(device, queue, sub, FlockConfig{
		Particles: []flockcompute.Particle{{}},
		Shaders: func(n ShaderName) (string, error) {
			if n == ShaderBehavior {
				return "", nil
			}
			return EmbeddedShader(n)
		},
	})
	if !errors.Is(err, ErrShaderMissing) {
		t.Errorf("error = %v, want ErrShaderMissing", err)
	}
}

func TestFlockPipelineMisorderedShader(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	sub := NewSubmitter(device, queue)
	defer sub.Close()

	// The build shader declares particles at binding 0; swap in a shader
	// that expects the count first.
	swapped := `
struct Particle { pos: vec2<f32>, vel: vec2<f32> }
@group(0) @binding(0) var<storage, read> particle_count: u32;
@group(0) @binding(1) var<storage, read> particles: array<Particle>;
@group(0) @binding(2) var<storage, read_write> spatial_hash: array<atomic<u32>>;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < particle_count) {
        atomicAdd(&spatial_hash[u32(particles[gid.x].pos.x)], 1u);
    }
}
`
	_, err := NewFlockPipeline(device, queue, sub, FlockConfig{
		Particles: []flockcompute.Particle{{}},
		Shaders: func(n ShaderName) (string, error) {
			if n == ShaderBuildHash {
				return swapped, nil
			}
			return EmbeddedShader(n)
		},
	})
	if !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("error = %v, want ErrBindingMismatch", err)
	}
}

func TestFlockPipelineSetTriangleSizeRebindsOnlyTriangleSize(t *testing.T) {
	p, _ := newTestFlock(t, 16)

	before := make(map[string]hal.Buffer)
	for b := FlockBuffer(0); b < FlockBufferCount; b++ {
		before[b.String()] = p.BehaviorBinding(b.String())
	}

	if err := p.SetTriangleSize(0.02); err != nil {
		t.Fatalf("SetTriangleSize: %v", err)
	}

	for b := FlockBuffer(0); b < FlockBufferCount; b++ {
		changed := p.BehaviorBinding(b.String()) != before[b.String()]
		if want := b == BufTriangleSize; changed != want {
			t.Errorf("%s changed = %v, want %v", b, changed, want)
		}
	}
	if p.BehaviorBinding("triangle_size") != p.Buffer(BufTriangleSize) {
		t.Error("pipeline and stage disagree on the triangle size buffer")
	}
	if got := p.MemoryStats().ReleasedCount; got != 1 {
		t.Errorf("ReleasedCount = %d, want 1", got)
	}
}

func TestFlockPipelineSetBehaviorAndAspect(t *testing.T) {
	p, target := newTestFlock(t, 16)

	oldBehavior := p.Buffer(BufBehavior)
	b := flockcompute.DefaultBehavior()
	b.MaxSpeed = 0.002
	if err := p.SetBehavior(b); err != nil {
		t.Fatalf("SetBehavior: %v", err)
	}
	if p.Buffer(BufBehavior) == oldBehavior {
		t.Error("behavior buffer not replaced")
	}

	oldAspect := p.Buffer(BufAspectRatio)
	if err := p.SetAspect(2); err != nil {
		t.Fatalf("SetAspect: %v", err)
	}
	if p.BehaviorBinding("aspect_ratio") == oldAspect {
		t.Error("aspect buffer not rebound")
	}
	if err := p.Frame(target.View()); err != nil {
		t.Errorf("Frame after updates: %v", err)
	}
}

func TestFlockPipelineReset(t *testing.T) {
	p, target := newTestFlock(t, 16)

	if err := p.Reset(nil); !errors.Is(err, ErrNoParticles) {
		t.Errorf("Reset(nil) error = %v, want ErrNoParticles", err)
	}

	oldParticles := p.Buffer(BufParticles)
	ps := flockcompute.RandomParticles(rand.New(rand.NewPCG(1, 2)), 300, 0.001)
	if err := p.Reset(ps); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if p.Count() != 300 {
		t.Errorf("Count = %d, want 300", p.Count())
	}
	if p.Buffer(BufParticles) == oldParticles {
		t.Error("particle buffer not reallocated")
	}
	for _, name := range []string{"particles", "particle_count", "particles_next", "render_vertices"} {
		if p.BehaviorBinding(name) == nil {
			t.Errorf("behavior binding %q is nil", name)
		}
	}
	if p.draw.Buffer("render_vertices") != p.Buffer(BufRenderVertices) {
		t.Error("draw stage still binds the old vertex buffer")
	}
	if p.buildHash.Buffer("particles") != p.Buffer(BufParticles) {
		t.Error("build stage still binds the old particle buffer")
	}
	if err := p.Frame(target.View()); err != nil {
		t.Errorf("Frame after Reset: %v", err)
	}

	got, err := p.ReadParticles(t.Context())
	if err != nil {
		t.Fatalf("ReadParticles: %v", err)
	}
	if len(got) != 300 {
		t.Errorf("ReadParticles returned %d particles, want 300", len(got))
	}
}

func TestFlockPipelineResetSameCountWritesInPlace(t *testing.T) {
	p, _ := newTestFlock(t, 16)
	before := p.MemoryStats()
	particles := p.Buffer(BufParticles)

	ps := make([]flockcompute.Particle, 16)
	for i := range ps {
		ps[i] = flockcompute.Particle{X: float32(i) / 32, Y: -0.5, VX: 0.0005}
	}
	if err := p.Reset(ps); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if p.Buffer(BufParticles) != particles {
		t.Error("same-count Reset reallocated the particle buffer")
	}
	if after := p.MemoryStats(); after.ReleasedCount != before.ReleasedCount {
		t.Errorf("ReleasedCount = %d, want %d", after.ReleasedCount, before.ReleasedCount)
	}

	raw := bufferBytes(t, p.device, particles, 16*flockcompute.ParticleStride)
	got, err := flockcompute.DecodeParticles(raw)
	if err != nil {
		t.Fatalf("DecodeParticles: %v", err)
	}
	if !slices.Equal(got, ps) {
		t.Errorf("particle buffer = %v, want %v", got[:2], ps[:2])
	}
}

func TestFlockPipelineResetRollsBack(t *testing.T) {
	p, _ := newTestFlock(t, 16)

	var before [FlockBufferCount]hal.Buffer
	copy(before[:], p.buffers[:])
	stats := p.MemoryStats()

	// Build and behavior rebind; the draw stage refuses.
	p.draw.Close()
	ps := flockcompute.RandomParticles(rand.New(rand.NewPCG(3, 4)), 300, 0.001)
	if err := p.Reset(ps); !errors.Is(err, ErrStageClosed) {
		t.Fatalf("Reset error = %v, want ErrStageClosed", err)
	}

	if p.Count() != 16 {
		t.Errorf("Count = %d, want 16", p.Count())
	}
	for b := FlockBuffer(0); b < FlockBufferCount; b++ {
		if p.Buffer(b) != before[b] {
			t.Errorf("%s buffer replaced by a failed Reset", b)
		}
	}
	for _, b := range []FlockBuffer{BufParticles, BufParticleCount} {
		if p.buildHash.Buffer(b.String()) != before[b] {
			t.Errorf("build stage binds a new %s buffer", b)
		}
	}
	for _, b := range []FlockBuffer{BufParticleCount, BufParticles, BufParticlesNext, BufRenderVertices} {
		if p.BehaviorBinding(b.String()) != before[b] {
			t.Errorf("behavior stage binds a new %s buffer", b)
		}
	}
	after := p.MemoryStats()
	if after.BufferCount != stats.BufferCount || after.UsedBytes != stats.UsedBytes {
		t.Errorf("after rollback: %d buffers, %d bytes; want %d, %d",
			after.BufferCount, after.UsedBytes, stats.BufferCount, stats.UsedBytes)
	}
	if len(p.orphans) != 0 {
		t.Errorf("%d orphaned buffers, want 0", len(p.orphans))
	}
}

func TestFlockPipelineSetParams(t *testing.T) {
	size := float32(0.03)
	b := flockcompute.DefaultBehavior()
	b.CohesionForce = 0.02

	tests := []struct {
		name    string
		size    *float32
		b       *flockcompute.Behavior
		changed []FlockBuffer
	}{
		{"none", nil, nil, nil},
		{"size", &size, nil, []FlockBuffer{BufTriangleSize}},
		{"behavior", nil, &b, []FlockBuffer{BufBehavior}},
		{"both", &size, &b, []FlockBuffer{BufTriangleSize, BufBehavior}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestFlock(t, 8)
			var before [FlockBufferCount]hal.Buffer
			copy(before[:], p.buffers[:])

			if err := p.SetParams(tt.size, tt.b); err != nil {
				t.Fatalf("SetParams: %v", err)
			}
			for w := FlockBuffer(0); w < FlockBufferCount; w++ {
				changed := p.Buffer(w) != before[w]
				if want := slices.Contains(tt.changed, w); changed != want {
					t.Errorf("%s changed = %v, want %v", w, changed, want)
				}
				if p.BehaviorBinding(w.String()) != p.Buffer(w) {
					t.Errorf("behavior stage and pipeline disagree on %s", w)
				}
			}
		})
	}
}

func TestFlockPipelineSetParamsAllOrNothing(t *testing.T) {
	p, _ := newTestFlock(t, 8)
	var before [FlockBufferCount]hal.Buffer
	copy(before[:], p.buffers[:])
	stats := p.MemoryStats()

	// Room for the 4-byte triangle size, not for the 32-byte behavior.
	p.alloc.SetBudget(stats.UsedBytes + 8)

	size := float32(0.05)
	b := flockcompute.DefaultBehavior()
	if err := p.SetParams(&size, &b); !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("SetParams error = %v, want ErrMemoryBudgetExceeded", err)
	}
	for w := FlockBuffer(0); w < FlockBufferCount; w++ {
		if p.Buffer(w) != before[w] || p.BehaviorBinding(w.String()) != before[w] {
			t.Errorf("%s changed after a failed SetParams", w)
		}
	}
	after := p.MemoryStats()
	if after.BufferCount != stats.BufferCount || after.UsedBytes != stats.UsedBytes {
		t.Errorf("after failed SetParams: %d buffers, %d bytes; want %d, %d",
			after.BufferCount, after.UsedBytes, stats.BufferCount, stats.UsedBytes)
	}
}

// recordingEncoder wraps a real encoder and logs the commands of one frame.
type recordingEncoder struct {
	hal.CommandEncoder
	events *[]string
}

func (e recordingEncoder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	return recordingComputePass{e.CommandEncoder.BeginComputePass(desc), desc.Label, e.events}
}

func (e recordingEncoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	var size uint64
	for _, r := range regions {
		size += r.Size
	}
	*e.events = append(*e.events, fmt.Sprintf("copy %d", size))
	e.CommandEncoder.CopyBufferToBuffer(src, dst, regions)
}

func (e recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	return recordingRenderPass{e.CommandEncoder.BeginRenderPass(desc), desc.Label, e.events}
}

type recordingComputePass struct {
	hal.ComputePassEncoder
	label  string
	events *[]string
}

func (p recordingComputePass) Dispatch(x, y, z uint32) {
	*p.events = append(*p.events, fmt.Sprintf("dispatch %s %d %d %d", p.label, x, y, z))
	p.ComputePassEncoder.Dispatch(x, y, z)
}

type recordingRenderPass struct {
	hal.RenderPassEncoder
	label  string
	events *[]string
}

func (p recordingRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	*p.events = append(*p.events, fmt.Sprintf("draw %s %d", p.label, vertexCount))
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func TestFlockPipelineFrameOrder(t *testing.T) {
	tests := []struct {
		n    int
		want []string
	}{
		{1, []string{
			"dispatch flock_clear_hash 1 1 1",
			"dispatch flock_build_hash 1 1 1",
			"dispatch flock_behavior 1 1 1",
			"copy 16",
			"draw flock_draw 3",
		}},
		{1000, []string{
			"dispatch flock_clear_hash 1 1 1",
			"dispatch flock_build_hash 2 2 1",
			"dispatch flock_behavior 2 2 1",
			"copy 16000",
			"draw flock_draw 3000",
		}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			p, target := newTestFlock(t, tt.n)

			enc, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame_order"})
			if err != nil {
				t.Fatalf("CreateCommandEncoder: %v", err)
			}
			if err := enc.BeginEncoding("frame_order"); err != nil {
				t.Fatalf("BeginEncoding: %v", err)
			}
			defer enc.DiscardEncoding()

			var events []string
			if err := p.encodeFrame(recordingEncoder{enc, &events}, target.View()); err != nil {
				t.Fatalf("encodeFrame: %v", err)
			}
			if !slices.Equal(events, tt.want) {
				t.Errorf("frame commands:\n got %q\nwant %q", events, tt.want)
			}
		})
	}
}

func TestFlockPipelineFrameNilTarget(t *testing.T) {
	p, _ := newTestFlock(t, 4)
	if err := p.Frame(nil); !errors.Is(err, ErrNilTarget) {
		t.Errorf("Frame(nil) error = %v, want ErrNilTarget", err)
	}
}

func TestFlockBufferString(t *testing.T) {
	if got := BufSpatialHash.String(); got != "spatial_hash" {
		t.Errorf("BufSpatialHash = %q", got)
	}
	if got := FlockBuffer(42).String(); got != "FlockBuffer(42)" {
		t.Errorf("FlockBuffer(42) = %q", got)
	}
}
