// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Binding errors.
var (
	// ErrBindingMismatch is returned when a stage's ordered bindings do not
	// match the @group(0) @binding(N) declarations of its shader.
	ErrBindingMismatch = errors.New("gpu: stage bindings do not match shader declarations")

	// ErrUnknownBinding is returned by UpdateBuffer for a key the stage
	// does not bind.
	ErrUnknownBinding = errors.New("gpu: unknown binding")

	// ErrStageClosed is returned when running or updating a closed stage.
	ErrStageClosed = errors.New("gpu: stage is closed")
)

// Access is the shader access mode of a bound buffer.
type Access int

const (
	// ReadOnly binds the buffer as read-only storage.
	ReadOnly Access = iota
	// ReadWrite binds the buffer as read_write storage.
	ReadWrite
)

// String returns the WGSL spelling of the access mode.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read"
	case ReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Binding is one entry of a stage's binding table. The position in the
// stage's binding list is the @binding index; Name must equal the WGSL
// variable name declared at that index.
type Binding struct {
	Name   string
	Access Access
	Buffer hal.Buffer
}

// bindingTable owns the ordered bindings of one stage and builds its
// layout and bind group entries.
type bindingTable struct {
	bindings   []Binding
	visibility gputypes.ShaderStages
}

func newBindingTable(bindings []Binding, visibility gputypes.ShaderStages) (*bindingTable, error) {
	seen := make(map[string]bool, len(bindings))
	for i, b := range bindings {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: binding %d has no name", ErrBindingMismatch, i)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("%w: binding %q listed twice", ErrBindingMismatch, b.Name)
		}
		if b.Buffer == nil {
			return nil, fmt.Errorf("%w: binding %q", ErrNilBuffer, b.Name)
		}
		seen[b.Name] = true
	}
	copied := make([]Binding, len(bindings))
	copy(copied, bindings)
	return &bindingTable{bindings: copied, visibility: visibility}, nil
}

// layoutEntries returns the bind group layout entries in binding order.
func (t *bindingTable) layoutEntries() []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, len(t.bindings))
	for i, b := range t.bindings {
		kind := gputypes.BufferBindingTypeReadOnlyStorage
		if b.Access == ReadWrite {
			kind = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: t.visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: kind},
		}
	}
	return entries
}

// groupEntries returns the bind group entries for the current buffers.
func (t *bindingTable) groupEntries() []gputypes.BindGroupEntry {
	entries := make([]gputypes.BindGroupEntry, len(t.bindings))
	for i, b := range t.bindings {
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.BufferBinding{Buffer: b.Buffer.NativeHandle()},
		}
	}
	return entries
}

// index returns the binding index of key, or -1.
func (t *bindingTable) index(key string) int {
	for i, b := range t.bindings {
		if b.Name == key {
			return i
		}
	}
	return -1
}

// buffer returns the buffer bound under key, or nil.
func (t *bindingTable) buffer(key string) hal.Buffer {
	if i := t.index(key); i >= 0 {
		return t.bindings[i].Buffer
	}
	return nil
}
