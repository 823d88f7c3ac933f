// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferTooSmall is returned when the initial contents do not fit the
	// requested size. It is a configuration error, not a runtime condition.
	ErrBufferTooSmall = errors.New("gpu: initial data exceeds buffer size")

	// ErrInvalidBufferSize is returned for a zero or unaligned buffer size.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrNilBuffer is returned when a nil buffer is bound or read.
	ErrNilBuffer = errors.New("gpu: buffer is nil")

	// ErrNilDevice is returned when a component is created without a device.
	ErrNilDevice = errors.New("gpu: device is nil")
)

// DefaultBufferUsage is used when Allocate is called with zero usage:
// a storage buffer that can be written by the queue and copied from.
const DefaultBufferUsage = gputypes.BufferUsageStorage |
	gputypes.BufferUsageCopyDst |
	gputypes.BufferUsageCopySrc

// Allocator creates fixed-layout storage buffers. Buffers are never freed
// implicitly: callers replace and Release them explicitly.
type Allocator struct {
	device    hal.Device
	queue     hal.Queue
	submitter *Submitter
	ledger    *memoryLedger
}

// NewAllocator creates an allocator. Released buffers are destroyed once
// the submitter reports that no in-flight work can still read them.
func NewAllocator(device hal.Device, queue hal.Queue, submitter *Submitter) *Allocator {
	return &Allocator{
		device:    device,
		queue:     queue,
		submitter: submitter,
		ledger:    newMemoryLedger(),
	}
}

// SetBudget limits the total size of live buffers. Zero removes the limit.
// Buffers already allocated are not affected.
func (a *Allocator) SetBudget(bytes uint64) { a.ledger.setBudget(bytes) }

// Stats returns the allocator's memory statistics.
func (a *Allocator) Stats() MemoryStats { return a.ledger.stats() }

// Allocate creates a buffer of sizeBytes and uploads initial as
// little-endian float32 values. An empty initial leaves the buffer zeroed.
// A zero usage selects DefaultBufferUsage.
func (a *Allocator) Allocate(label string, sizeBytes uint64, initial []float32, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if uint64(len(initial))*4 > sizeBytes {
		return nil, fmt.Errorf("%w: %s needs %d bytes, size is %d", ErrBufferTooSmall, label, len(initial)*4, sizeBytes)
	}
	data := make([]byte, len(initial)*4)
	for i, v := range initial {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return a.AllocateBytes(label, sizeBytes, data, usage)
}

// AllocateUint32 creates a buffer holding the given u32 values.
func (a *Allocator) AllocateUint32(label string, values []uint32, usage gputypes.BufferUsage) (hal.Buffer, error) {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return a.AllocateBytes(label, uint64(len(data)), data, usage)
}

// AllocateBytes creates a buffer of sizeBytes with raw initial contents.
func (a *Allocator) AllocateBytes(label string, sizeBytes uint64, initial []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if sizeBytes == 0 || sizeBytes%4 != 0 {
		return nil, fmt.Errorf("%w: %s size %d", ErrInvalidBufferSize, label, sizeBytes)
	}
	if uint64(len(initial)) > sizeBytes {
		return nil, fmt.Errorf("%w: %s needs %d bytes, size is %d", ErrBufferTooSmall, label, len(initial), sizeBytes)
	}
	if usage == 0 {
		usage = DefaultBufferUsage
	}
	if len(initial) > 0 {
		usage |= gputypes.BufferUsageCopyDst
	}
	if err := a.ledger.reserve(label, sizeBytes); err != nil {
		return nil, err
	}

	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  sizeBytes,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	if len(initial) > 0 {
		if err := a.queue.WriteBuffer(buf, 0, initial); err != nil {
			a.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("gpu: upload buffer %s: %w", label, err)
		}
	}

	a.ledger.register(buf, label, sizeBytes)

	slogger().Debug("gpu: buffer allocated",
		"label", label,
		"size", sizeBytes,
		"initial_bytes", len(initial))
	return buf, nil
}

// Write replaces the leading bytes of buf with data.
func (a *Allocator) Write(buf hal.Buffer, data []byte) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if err := a.queue.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("gpu: write buffer: %w", err)
	}
	return nil
}

// Release destroys buf once no submitted work can still use it.
func (a *Allocator) Release(buf hal.Buffer) {
	if buf == nil {
		return
	}
	a.ledger.unregister(buf)
	a.submitter.Defer(func() { a.device.DestroyBuffer(buf) })
}
