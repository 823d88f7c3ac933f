// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// stageCore holds the objects shared by compute and draw stages: the shader
// module, the single bind group layout, the pipeline layout and the current
// bind group. A stage owns these; it never owns the buffers it binds.
type stageCore struct {
	mu sync.Mutex

	label     string
	device    hal.Device
	submitter *Submitter
	table     *bindingTable

	module         hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	bindGroup      hal.BindGroup

	closed bool
}

// setup validates the bindings against the shader and creates the module,
// layouts and first bind group. On failure nothing is left allocated.
func (c *stageCore) setup(source string, bindings []Binding, visibility gputypes.ShaderStages) (*shaderReflection, error) {
	if c.device == nil {
		return nil, ErrNilDevice
	}
	if c.submitter == nil {
		return nil, ErrNilSubmitter
	}
	table, err := newBindingTable(bindings, visibility)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.label, err)
	}
	refl, err := reflections.get(c.label, source)
	if err != nil {
		return nil, err
	}
	if err := refl.checkBindings(c.label, table.bindings); err != nil {
		return nil, err
	}
	c.table = table

	c.module, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  c.label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module for %s: %w", c.label, err)
	}

	c.bgLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   c.label + "_bgl",
		Entries: table.layoutEntries(),
	})
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("gpu: create bind group layout for %s: %w", c.label, err)
	}

	c.pipelineLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            c.label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{c.bgLayout},
	})
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("gpu: create pipeline layout for %s: %w", c.label, err)
	}

	c.bindGroup, err = c.createBindGroup()
	if err != nil {
		c.destroy()
		return nil, err
	}
	return refl, nil
}

func (c *stageCore) createBindGroup() (hal.BindGroup, error) {
	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   c.label + "_bg",
		Layout:  c.bgLayout,
		Entries: c.table.groupEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group for %s: %w", c.label, err)
	}
	return bg, nil
}

// updateBuffer rebinds key to buf. The previous bind group is released once
// in-flight work no longer references it. The old buffer is untouched.
func (c *stageCore) updateBuffer(key string, buf hal.Buffer) error {
	if buf == nil {
		return fmt.Errorf("%w: %s binding %q", ErrNilBuffer, c.label, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrStageClosed
	}
	i := c.table.index(key)
	if i < 0 {
		return fmt.Errorf("%w: %s has no binding %q", ErrUnknownBinding, c.label, key)
	}

	prev := c.table.bindings[i].Buffer
	c.table.bindings[i].Buffer = buf
	bg, err := c.createBindGroup()
	if err != nil {
		c.table.bindings[i].Buffer = prev
		return err
	}

	old := c.bindGroup
	c.bindGroup = bg
	c.release(func() { c.device.DestroyBindGroup(old) })

	slogger().Debug("gpu: stage binding updated",
		"stage", c.label,
		"binding", key,
		"index", i)
	return nil
}

// buffer returns the buffer currently bound under key, or nil.
func (c *stageCore) buffer(key string) hal.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.buffer(key)
}

func (c *stageCore) release(fn func()) {
	c.submitter.Defer(fn)
}

// destroy releases the stage-owned objects that exist.
func (c *stageCore) destroy() {
	if c.bindGroup != nil {
		bg := c.bindGroup
		c.release(func() { c.device.DestroyBindGroup(bg) })
		c.bindGroup = nil
	}
	if c.pipelineLayout != nil {
		c.device.DestroyPipelineLayout(c.pipelineLayout)
		c.pipelineLayout = nil
	}
	if c.bgLayout != nil {
		c.device.DestroyBindGroupLayout(c.bgLayout)
		c.bgLayout = nil
	}
	if c.module != nil {
		c.device.DestroyShaderModule(c.module)
		c.module = nil
	}
}
