// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ReadBuffer copies the first size bytes of src into a mappable staging
// buffer, waits for the copy to complete and returns the bytes. It blocks
// and is meant for debugging and tests, never for the frame path.
func (a *Allocator) ReadBuffer(ctx context.Context, src hal.Buffer, size uint64) ([]byte, error) {
	if src == nil {
		return nil, ErrNilBuffer
	}
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: readback size %d", ErrInvalidBufferSize, size)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer a.submitter.Defer(func() { a.device.DestroyBuffer(staging) })

	index, err := a.submitter.Record("readback", func(enc hal.CommandEncoder) error {
		enc.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{Size: size}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := a.submitter.Wait(ctx, index); err != nil {
		return nil, err
	}
	return mapRange(a.device, staging, size)
}

// mapRange maps buf and returns a copy of its first size bytes.
func mapRange(device hal.Device, buf hal.Buffer, size uint64) ([]byte, error) {
	mapping, err := device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("gpu: map staging buffer: %w", err)
	}
	defer func() {
		if err := device.UnmapBuffer(buf); err != nil {
			slogger().Warn("gpu: unmap staging buffer failed", "error", err)
		}
	}()
	if mapping.Ptr == nil {
		return nil, fmt.Errorf("gpu: map staging buffer: nil mapping")
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	return out, nil
}
