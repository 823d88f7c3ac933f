// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/boids/internal/gpu/flockcompute"
)

// ErrNoParticles is returned when a flock is created or reset without
// particles.
var ErrNoParticles = errors.New("gpu: flock has no particles")

// FlockBuffer identifies one buffer of the flock pipeline. String returns
// the WGSL variable name the buffer is bound under.
type FlockBuffer int

// Flock buffers, in behavior-stage binding order.
const (
	BufTriangleSize FlockBuffer = iota
	BufAspectRatio
	BufParticleCount
	BufParticles
	BufParticlesNext
	BufRenderVertices
	BufSpatialHash
	BufBehavior

	// FlockBufferCount is the total number of flock buffers.
	FlockBufferCount
)

var flockBufferNames = [FlockBufferCount]string{
	BufTriangleSize:   "triangle_size",
	BufAspectRatio:    "aspect_ratio",
	BufParticleCount:  "particle_count",
	BufParticles:      "particles",
	BufParticlesNext:  "particles_next",
	BufRenderVertices: "render_vertices",
	BufSpatialHash:    "spatial_hash",
	BufBehavior:       "behavior",
}

func (b FlockBuffer) String() string {
	if b >= 0 && b < FlockBufferCount {
		return flockBufferNames[b]
	}
	return fmt.Sprintf("FlockBuffer(%d)", int(b))
}

// FlockConfig is the initial state of a flock pipeline.
type FlockConfig struct {
	Particles    []flockcompute.Particle
	TriangleSize float32
	Behavior     flockcompute.Behavior

	// Aspect is the target width divided by its height. Zero means 1.
	Aspect float32

	// Format is the color target format of the draw stage.
	Format gputypes.TextureFormat

	// Shaders resolves the WGSL sources. Nil serves the embedded ones.
	Shaders ShaderLoader

	// MemoryBudget caps the bytes held by flock buffers. Zero means no cap.
	MemoryBudget uint64
}

// FlockPipeline owns the flock buffers and the four stages that advance and
// draw the flock: clear hash, build hash, behavior and draw. A frame is one
// submission; queue order is the only synchronization with later frames.
type FlockPipeline struct {
	device    hal.Device
	submitter *Submitter
	alloc     *Allocator

	count   int
	buffers [FlockBufferCount]hal.Buffer

	clearHash *ComputeStage
	buildHash *ComputeStage
	behavior  *ComputeStage
	draw      *DrawStage

	frames uint64

	// orphans are buffers left bound by a failed Reset.
	orphans []hal.Buffer
}

// NewFlockPipeline allocates every buffer, validates and creates the four
// stages, and uploads the initial state. On failure everything already
// created is released.
func NewFlockPipeline(device hal.Device, queue hal.Queue, submitter *Submitter, cfg FlockConfig) (*FlockPipeline, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if len(cfg.Particles) == 0 {
		return nil, ErrNoParticles
	}
	sources, err := loadShaders(cfg.Shaders)
	if err != nil {
		return nil, err
	}

	p := &FlockPipeline{
		device:    device,
		submitter: submitter,
		alloc:     NewAllocator(device, queue, submitter),
	}
	p.alloc.SetBudget(cfg.MemoryBudget)
	if err := p.allocateAll(cfg); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.createStages(sources, cfg.Format); err != nil {
		p.Close()
		return nil, err
	}

	slogger().Info("gpu: flock pipeline ready",
		"particles", p.count,
		"workgroups", flockcompute.WorkgroupCount(p.count),
		"memory", p.alloc.Stats().String())
	return p, nil
}

func (p *FlockPipeline) allocateAll(cfg FlockConfig) error {
	aspect := cfg.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	var err error
	if p.buffers[BufTriangleSize], err = p.alloc.Allocate("triangle_size", 4, []float32{cfg.TriangleSize}, 0); err != nil {
		return err
	}
	if p.buffers[BufAspectRatio], err = p.alloc.Allocate("aspect_ratio", 4, []float32{aspect}, 0); err != nil {
		return err
	}
	if p.buffers[BufSpatialHash], err = p.alloc.Allocate("spatial_hash", flockcompute.HashBytes, nil, 0); err != nil {
		return err
	}
	behavior := cfg.Behavior.Floats()
	if p.buffers[BufBehavior], err = p.alloc.Allocate("behavior", uint64(len(behavior))*4, behavior, 0); err != nil {
		return err
	}
	counted, err := p.allocateCounted(cfg.Particles)
	if err != nil {
		return err
	}
	for k, buf := range counted {
		p.buffers[k] = buf
	}
	p.count = len(cfg.Particles)
	return nil
}

// allocateCounted creates the buffers whose size depends on the particle
// count. On failure the ones already created are released.
func (p *FlockPipeline) allocateCounted(ps []flockcompute.Particle) (map[FlockBuffer]hal.Buffer, error) {
	n := uint64(len(ps))
	out := make(map[FlockBuffer]hal.Buffer, 4)
	fail := func(err error) (map[FlockBuffer]hal.Buffer, error) {
		for _, buf := range out {
			p.alloc.Release(buf)
		}
		return nil, err
	}

	buf, err := p.alloc.AllocateUint32("particle_count", []uint32{uint32(n)}, 0)
	if err != nil {
		return fail(err)
	}
	out[BufParticleCount] = buf

	if buf, err = p.alloc.Allocate("particles", n*flockcompute.ParticleStride, flockcompute.ParticleFloats(ps), 0); err != nil {
		return fail(err)
	}
	out[BufParticles] = buf

	if buf, err = p.alloc.Allocate("particles_next", n*flockcompute.ParticleStride, nil, 0); err != nil {
		return fail(err)
	}
	out[BufParticlesNext] = buf

	if buf, err = p.alloc.Allocate("render_vertices", n*flockcompute.VertexStride, nil, 0); err != nil {
		return fail(err)
	}
	out[BufRenderVertices] = buf
	return out, nil
}

func (p *FlockPipeline) bind(access Access, which ...FlockBuffer) []Binding {
	out := make([]Binding, len(which))
	for i, b := range which {
		out[i] = Binding{Name: b.String(), Access: access, Buffer: p.buffers[b]}
	}
	return out
}

func (p *FlockPipeline) createStages(sources map[ShaderName]string, format gputypes.TextureFormat) error {
	var err error
	p.clearHash, err = NewComputeStage(p.device, p.submitter, ComputeStageDescriptor{
		Label:    "flock_clear_hash",
		Source:   sources[ShaderClearHash],
		Bindings: p.bind(ReadWrite, BufSpatialHash),
	})
	if err != nil {
		return err
	}

	p.buildHash, err = NewComputeStage(p.device, p.submitter, ComputeStageDescriptor{
		Label:  "flock_build_hash",
		Source: sources[ShaderBuildHash],
		Bindings: append(
			p.bind(ReadOnly, BufParticles, BufParticleCount),
			p.bind(ReadWrite, BufSpatialHash)...),
	})
	if err != nil {
		return err
	}

	bindings := p.bind(ReadOnly, BufTriangleSize, BufAspectRatio, BufParticleCount, BufParticles)
	bindings = append(bindings, p.bind(ReadWrite, BufParticlesNext, BufRenderVertices)...)
	bindings = append(bindings, p.bind(ReadOnly, BufSpatialHash, BufBehavior)...)
	p.behavior, err = NewComputeStage(p.device, p.submitter, ComputeStageDescriptor{
		Label:    "flock_behavior",
		Source:   sources[ShaderBehavior],
		Bindings: bindings,
	})
	if err != nil {
		return err
	}

	p.draw, err = NewDrawStage(p.device, p.submitter, DrawStageDescriptor{
		Label:      "flock_draw",
		Source:     sources[ShaderDraw],
		Bindings:   p.bind(ReadOnly, BufRenderVertices),
		Format:     format,
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	})
	return err
}

// Count returns the number of particles.
func (p *FlockPipeline) Count() int { return p.count }

// Frames returns the number of frames submitted.
func (p *FlockPipeline) Frames() uint64 { return p.frames }

// Buffer returns the current buffer for which.
func (p *FlockPipeline) Buffer(which FlockBuffer) hal.Buffer { return p.buffers[which] }

// BehaviorBinding returns the buffer the behavior stage currently binds
// under key.
func (p *FlockPipeline) BehaviorBinding(key string) hal.Buffer { return p.behavior.Buffer(key) }

// MemoryStats returns the buffer memory statistics of the pipeline.
func (p *FlockPipeline) MemoryStats() MemoryStats { return p.alloc.Stats() }

// storageBarrier makes storage writes of earlier passes visible to later
// passes in the same command buffer.
func storageBarrier(enc hal.CommandEncoder, from, to gputypes.BufferUsage, bufs ...hal.Buffer) {
	barriers := make([]hal.BufferBarrier, len(bufs))
	for i, b := range bufs {
		barriers[i] = hal.BufferBarrier{
			Buffer: b,
			Usage:  hal.BufferUsageTransition{OldUsage: from, NewUsage: to},
		}
	}
	enc.TransitionBuffers(barriers)
}

// Frame records and submits one frame into view. It does not wait for the
// GPU.
func (p *FlockPipeline) Frame(view hal.TextureView) error {
	if view == nil {
		return ErrNilTarget
	}
	_, err := p.submitter.Record("flock_frame", func(enc hal.CommandEncoder) error {
		return p.encodeFrame(enc, view)
	})
	if err != nil {
		return fmt.Errorf("gpu: flock frame %d: %w", p.frames, err)
	}
	p.frames++
	return nil
}

// encodeFrame records the passes of one frame in order: clear hash, build
// hash, behavior, copy of the next-particle buffer back into the particle
// buffer, and draw.
func (p *FlockPipeline) encodeFrame(enc hal.CommandEncoder, view hal.TextureView) error {
	w := flockcompute.WorkgroupCount(p.count)
	storage := gputypes.BufferUsageStorage
	particles := p.buffers[BufParticles]
	next := p.buffers[BufParticlesNext]

	if err := p.clearHash.Encode(enc, 1, 1, 1); err != nil {
		return err
	}
	storageBarrier(enc, storage, storage, p.buffers[BufSpatialHash])

	if err := p.buildHash.Encode(enc, w, w, 1); err != nil {
		return err
	}
	storageBarrier(enc, storage, storage, p.buffers[BufSpatialHash])

	if err := p.behavior.Encode(enc, w, w, 1); err != nil {
		return err
	}
	storageBarrier(enc, storage, gputypes.BufferUsageCopySrc, next)
	storageBarrier(enc, storage, gputypes.BufferUsageCopyDst, particles)
	enc.CopyBufferToBuffer(next, particles, []hal.BufferCopy{{
		Size: uint64(p.count) * flockcompute.ParticleStride,
	}})
	storageBarrier(enc, gputypes.BufferUsageCopyDst, storage, particles)
	storageBarrier(enc, gputypes.BufferUsageCopySrc, storage, next)
	storageBarrier(enc, storage, storage, p.buffers[BufRenderVertices])

	return p.draw.Encode(enc, view, uint32(p.count)*3)
}

// paramBuffer is the new contents of one parameter buffer.
type paramBuffer struct {
	which  FlockBuffer
	values []float32
}

// replace allocates new buffers for every change, then rebinds them on the
// behavior stage and releases the old ones. Only the behavior stage reads
// the parameter buffers. Either every change takes effect or none does.
func (p *FlockPipeline) replace(changes ...paramBuffer) error {
	fresh := make(map[FlockBuffer]hal.Buffer, len(changes))
	for _, c := range changes {
		buf, err := p.alloc.Allocate(c.which.String(), uint64(len(c.values))*4, c.values, 0)
		if err != nil {
			for _, b := range fresh {
				p.alloc.Release(b)
			}
			return err
		}
		fresh[c.which] = buf
	}

	rebinds := make([]stageRebind, len(changes))
	for i, c := range changes {
		rebinds[i] = stageRebind{p.behavior.UpdateBuffer, c.which}
	}
	for i, r := range rebinds {
		if err := r.update(r.which.String(), fresh[r.which]); err != nil {
			p.rollback(rebinds[:i], fresh)
			return err
		}
	}
	p.adopt(fresh)
	return nil
}

// SetTriangleSize replaces the triangle size buffer.
func (p *FlockPipeline) SetTriangleSize(size float32) error {
	return p.replace(paramBuffer{BufTriangleSize, []float32{size}})
}

// SetBehavior replaces the behavior buffer.
func (p *FlockPipeline) SetBehavior(b flockcompute.Behavior) error {
	return p.replace(paramBuffer{BufBehavior, b.Floats()})
}

// SetParams replaces the triangle size and behavior buffers together. A nil
// argument leaves that buffer alone. On error neither buffer changes.
func (p *FlockPipeline) SetParams(size *float32, b *flockcompute.Behavior) error {
	var changes []paramBuffer
	if size != nil {
		changes = append(changes, paramBuffer{BufTriangleSize, []float32{*size}})
	}
	if b != nil {
		changes = append(changes, paramBuffer{BufBehavior, b.Floats()})
	}
	if len(changes) == 0 {
		return nil
	}
	return p.replace(changes...)
}

// SetAspect replaces the aspect ratio buffer. Non-positive values mean 1.
func (p *FlockPipeline) SetAspect(aspect float32) error {
	if aspect <= 0 {
		aspect = 1
	}
	return p.replace(paramBuffer{BufAspectRatio, []float32{aspect}})
}

// Reset replaces the particle set. With the same count the particles are
// written into the existing buffer. Otherwise the count-dependent buffers
// are reallocated and every stage that binds them is rebound; if a rebind
// fails, the stages are rebound to the old buffers and the flock is left
// as it was.
func (p *FlockPipeline) Reset(ps []flockcompute.Particle) error {
	if len(ps) == 0 {
		return ErrNoParticles
	}
	if len(ps) == p.count {
		data := flockcompute.EncodeFloats(flockcompute.ParticleFloats(ps))
		if err := p.alloc.Write(p.buffers[BufParticles], data); err != nil {
			return err
		}
		slogger().Debug("gpu: flock reset in place", "particles", p.count)
		return nil
	}

	counted, err := p.allocateCounted(ps)
	if err != nil {
		return err
	}

	var rebinds []stageRebind
	for _, w := range []FlockBuffer{BufParticles, BufParticleCount} {
		rebinds = append(rebinds, stageRebind{p.buildHash.UpdateBuffer, w})
	}
	for _, w := range []FlockBuffer{BufParticleCount, BufParticles, BufParticlesNext, BufRenderVertices} {
		rebinds = append(rebinds, stageRebind{p.behavior.UpdateBuffer, w})
	}
	rebinds = append(rebinds, stageRebind{p.draw.UpdateBuffer, BufRenderVertices})

	for i, r := range rebinds {
		if err := r.update(r.which.String(), counted[r.which]); err != nil {
			p.rollback(rebinds[:i], counted)
			return err
		}
	}
	p.adopt(counted)
	p.count = len(ps)
	slogger().Debug("gpu: flock reset", "particles", p.count)
	return nil
}

// stageRebind is one binding of one stage that Reset points at a new buffer.
type stageRebind struct {
	update func(string, hal.Buffer) error
	which  FlockBuffer
}

// rollback rebinds the stages in done to the current buffers and releases
// the new set. A new buffer that cannot be unbound stays alive until Close.
func (p *FlockPipeline) rollback(done []stageRebind, counted map[FlockBuffer]hal.Buffer) {
	stuck := make(map[FlockBuffer]bool)
	for _, r := range done {
		if err := r.update(r.which.String(), p.buffers[r.which]); err != nil {
			slogger().Warn("gpu: flock reset rollback failed", "binding", r.which.String(), "err", err)
			stuck[r.which] = true
		}
	}
	for which, buf := range counted {
		if stuck[which] {
			p.orphans = append(p.orphans, buf)
			continue
		}
		p.alloc.Release(buf)
	}
}

// adopt swaps in the given buffers and releases the ones they replace.
func (p *FlockPipeline) adopt(bufs map[FlockBuffer]hal.Buffer) {
	for which, buf := range bufs {
		old := p.buffers[which]
		p.buffers[which] = buf
		p.alloc.Release(old)
	}
}

// ReadParticles reads the particle buffer back. It blocks until every
// submitted frame has completed or ctx is done.
func (p *FlockPipeline) ReadParticles(ctx context.Context) ([]flockcompute.Particle, error) {
	data, err := p.alloc.ReadBuffer(ctx, p.buffers[BufParticles], uint64(p.count)*flockcompute.ParticleStride)
	if err != nil {
		return nil, err
	}
	return flockcompute.DecodeParticles(data)
}

// Close releases the stages and every buffer. Stages release their
// objects first so no bind group outlives a buffer it references.
func (p *FlockPipeline) Close() {
	for _, s := range []*ComputeStage{p.clearHash, p.buildHash, p.behavior} {
		if s != nil {
			s.Close()
		}
	}
	if p.draw != nil {
		p.draw.Close()
	}
	p.clearHash, p.buildHash, p.behavior, p.draw = nil, nil, nil, nil

	for i, buf := range p.buffers {
		if buf != nil {
			p.alloc.Release(buf)
			p.buffers[i] = nil
		}
	}
	for _, buf := range p.orphans {
		p.alloc.Release(buf)
	}
	p.orphans = nil
	p.count = 0
}
