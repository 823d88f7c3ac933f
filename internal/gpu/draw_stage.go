// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// ErrNilTarget is returned when a draw stage runs without a color target.
var ErrNilTarget = errors.New("gpu: render target is nil")

// DrawStageDescriptor describes a vertex/fragment shader pair that pulls
// its vertices from storage buffers. Bindings are visible to the vertex
// stage only.
type DrawStageDescriptor struct {
	Label         string
	Source        string
	VertexEntry   string
	FragmentEntry string
	Bindings      []Binding
	Format        gputypes.TextureFormat
	ClearColor    gputypes.Color
}

// DrawStage is one render pipeline drawing a triangle list into a single
// color attachment.
type DrawStage struct {
	stageCore

	pipeline hal.RenderPipeline
	format   gputypes.TextureFormat
	clear    gputypes.Color
}

// NewDrawStage validates desc against its shader and creates the pipeline.
func NewDrawStage(device hal.Device, submitter *Submitter, desc DrawStageDescriptor) (*DrawStage, error) {
	vs, fs := desc.VertexEntry, desc.FragmentEntry
	if vs == "" {
		vs = "vs_main"
	}
	if fs == "" {
		fs = "fs_main"
	}
	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	s := &DrawStage{
		stageCore: stageCore{
			label:     desc.Label,
			device:    device,
			submitter: submitter,
		},
		format: format,
		clear:  desc.ClearColor,
	}

	refl, err := s.setup(desc.Source, desc.Bindings, gputypes.ShaderStageVertex)
	if err != nil {
		return nil, err
	}
	if err := refl.checkEntryPoint(desc.Label, vs, ir.StageVertex); err != nil {
		s.destroy()
		return nil, err
	}
	if err := refl.checkEntryPoint(desc.Label, fs, ir.StageFragment); err != nil {
		s.destroy()
		return nil, err
	}

	s.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: s.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     s.module,
			EntryPoint: vs,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     s.module,
			EntryPoint: fs,
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create render pipeline for %s: %w", desc.Label, err)
	}

	slogger().Debug("gpu: draw stage created",
		"stage", desc.Label,
		"format", format,
		"bindings", len(desc.Bindings))
	return s, nil
}

// Format returns the color target format the pipeline was built for.
func (s *DrawStage) Format() gputypes.TextureFormat { return s.format }

// Run clears view and draws vertexCount vertices as a triangle list in its
// own submission.
func (s *DrawStage) Run(view hal.TextureView, vertexCount uint32) error {
	_, err := s.submitter.Record(s.label, func(enc hal.CommandEncoder) error {
		return s.Encode(enc, view, vertexCount)
	})
	return err
}

// Encode records the render pass into an encoder owned by the caller. The
// pass is recorded even for zero vertices so the target is still cleared.
func (s *DrawStage) Encode(enc hal.CommandEncoder, view hal.TextureView, vertexCount uint32) error {
	if view == nil {
		return ErrNilTarget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStageClosed
	}

	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: s.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: s.clear,
		}},
	})
	if vertexCount > 0 {
		pass.SetPipeline(s.pipeline)
		pass.SetBindGroup(0, s.bindGroup, nil)
		pass.Draw(vertexCount, 1, 0, 0)
	}
	pass.End()
	return nil
}

// UpdateBuffer rebinds the binding named key to buf.
func (s *DrawStage) UpdateBuffer(key string, buf hal.Buffer) error {
	return s.updateBuffer(key, buf)
}

// Buffer returns the buffer currently bound under key, or nil.
func (s *DrawStage) Buffer(key string) hal.Buffer { return s.buffer(key) }

// Close releases the pipeline and its layouts.
func (s *DrawStage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.pipeline != nil {
		s.device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}
	s.destroy()
}
