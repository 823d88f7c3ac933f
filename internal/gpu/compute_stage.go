// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// ComputeStageDescriptor describes one compute shader and its ordered
// buffer bindings. Bindings[k] is bound at @group(0) @binding(k).
type ComputeStageDescriptor struct {
	Label      string
	Source     string
	EntryPoint string
	Bindings   []Binding
}

// ComputeStage is one compute pipeline with a single bind group.
type ComputeStage struct {
	stageCore

	entryPoint string
	pipeline   hal.ComputePipeline
	workgroup  [3]uint32
}

// NewComputeStage validates desc against its shader and creates the
// pipeline. A binding whose name or access mode disagrees with the shader
// fails with ErrBindingMismatch.
func NewComputeStage(device hal.Device, submitter *Submitter, desc ComputeStageDescriptor) (*ComputeStage, error) {
	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	s := &ComputeStage{
		stageCore: stageCore{
			label:     desc.Label,
			device:    device,
			submitter: submitter,
		},
		entryPoint: entry,
	}

	refl, err := s.setup(desc.Source, desc.Bindings, gputypes.ShaderStageCompute)
	if err != nil {
		return nil, err
	}
	if err := refl.checkEntryPoint(desc.Label, entry, ir.StageCompute); err != nil {
		s.destroy()
		return nil, err
	}
	s.workgroup = refl.workgroups[entry]

	s.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: s.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     s.module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create compute pipeline for %s: %w", desc.Label, err)
	}

	slogger().Debug("gpu: compute stage created",
		"stage", desc.Label,
		"entry", entry,
		"bindings", len(desc.Bindings),
		"workgroup", s.workgroup)
	return s, nil
}

// Label returns the stage label.
func (s *ComputeStage) Label() string { return s.label }

// WorkgroupSize returns the @workgroup_size declared by the entry point.
func (s *ComputeStage) WorkgroupSize() [3]uint32 { return s.workgroup }

// Run records one dispatch of x*y*z workgroups and submits it. It does not
// wait for completion.
func (s *ComputeStage) Run(x, y, z uint32) error {
	_, err := s.submitter.Record(s.label, func(enc hal.CommandEncoder) error {
		return s.Encode(enc, x, y, z)
	})
	return err
}

// Encode records the dispatch into an encoder owned by the caller, so that
// several stages can share one submission.
func (s *ComputeStage) Encode(enc hal.CommandEncoder, x, y, z uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStageClosed
	}
	if x == 0 || y == 0 || z == 0 {
		return nil
	}

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: s.label})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	pass.Dispatch(x, y, z)
	pass.End()
	return nil
}

// UpdateBuffer rebinds the binding named key to buf. The stage does not
// take ownership of buf and does not release the buffer it replaces.
func (s *ComputeStage) UpdateBuffer(key string, buf hal.Buffer) error {
	return s.updateBuffer(key, buf)
}

// Buffer returns the buffer currently bound under key, or nil.
func (s *ComputeStage) Buffer(key string) hal.Buffer { return s.buffer(key) }

// Close releases the pipeline and its layouts. Bound buffers are not
// destroyed.
func (s *ComputeStage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.pipeline != nil {
		s.device.DestroyComputePipeline(s.pipeline)
		s.pipeline = nil
	}
	s.destroy()
}
