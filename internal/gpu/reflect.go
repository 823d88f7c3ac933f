// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// shaderReflection is what a stage needs to know about its WGSL source:
// the group 0 resource declarations and the entry points.
type shaderReflection struct {
	globals     map[uint32]ir.GlobalVariable
	entryPoints map[string]ir.ShaderStage
	workgroups  map[string][3]uint32
}

// reflectShader parses and lowers WGSL source with naga.
func reflectShader(label, source string) (*shaderReflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("gpu: parse shader %s: %w", label, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("gpu: lower shader %s: %w", label, err)
	}

	r := &shaderReflection{
		globals:     make(map[uint32]ir.GlobalVariable),
		entryPoints: make(map[string]ir.ShaderStage, len(module.EntryPoints)),
		workgroups:  make(map[string][3]uint32, len(module.EntryPoints)),
	}
	for _, g := range module.GlobalVariables {
		if g.Binding == nil || g.Binding.Group != 0 {
			continue
		}
		r.globals[g.Binding.Binding] = g
	}
	for _, ep := range module.EntryPoints {
		r.entryPoints[ep.Name] = ep.Stage
		r.workgroups[ep.Name] = ep.Workgroup
	}
	return r, nil
}

// accessOf returns the access mode a declared global is bound with. Only
// storage buffers qualify: stages build storage layout entries for every
// binding, so a var<uniform> would not match its layout on the device.
func accessOf(g ir.GlobalVariable) (Access, bool) {
	switch g.Space {
	case ir.SpaceStorage:
		if g.Access == ir.StorageRead {
			return ReadOnly, true
		}
		return ReadWrite, true
	default:
		return 0, false
	}
}

// checkBindings verifies that the ordered bindings match the shader exactly:
// same count, binding k declared with the same name and access mode.
// Binding order mistakes corrupt data silently on the device, so they are
// rejected here at construction.
func (r *shaderReflection) checkBindings(label string, bindings []Binding) error {
	if len(r.globals) != len(bindings) {
		return fmt.Errorf("%w: %s declares %d bindings, stage lists %d",
			ErrBindingMismatch, label, len(r.globals), len(bindings))
	}
	for i, b := range bindings {
		g, ok := r.globals[uint32(i)]
		if !ok {
			return fmt.Errorf("%w: %s has no @binding(%d) for %q", ErrBindingMismatch, label, i, b.Name)
		}
		if g.Name != b.Name {
			return fmt.Errorf("%w: %s @binding(%d) is %q, stage lists %q",
				ErrBindingMismatch, label, i, g.Name, b.Name)
		}
		if g.Space == ir.SpaceUniform {
			return fmt.Errorf("%w: %s @binding(%d) %q is var<uniform>, stages bind storage buffers only",
				ErrBindingMismatch, label, i, g.Name)
		}
		access, ok := accessOf(g)
		if !ok {
			return fmt.Errorf("%w: %s @binding(%d) %q is not a buffer", ErrBindingMismatch, label, i, g.Name)
		}
		if access != b.Access {
			return fmt.Errorf("%w: %s @binding(%d) %q is %s in the shader, stage binds it %s",
				ErrBindingMismatch, label, i, g.Name, access, b.Access)
		}
	}
	return nil
}

// checkEntryPoint verifies that name exists with the given stage.
func (r *shaderReflection) checkEntryPoint(label, name string, stage ir.ShaderStage) error {
	got, ok := r.entryPoints[name]
	if !ok {
		return fmt.Errorf("%w: %s has no entry point %q", ErrBindingMismatch, label, name)
	}
	if got != stage {
		return fmt.Errorf("%w: %s entry point %q has the wrong stage", ErrBindingMismatch, label, name)
	}
	return nil
}
