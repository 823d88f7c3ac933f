package gpu

import (
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop HAL backend. Noop buffers
// keep their bytes, submissions complete immediately and copy commands do
// nothing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// newTestAllocator returns an allocator and its submitter on a noop device.
func newTestAllocator(t *testing.T) (*Allocator, *Submitter, hal.Device) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	sub := NewSubmitter(device, queue)
	t.Cleanup(func() {
		sub.Close()
		cleanup()
	})
	return NewAllocator(device, queue, sub), sub, device
}

// bufferBytes maps a noop buffer and returns a copy of its contents.
func bufferBytes(t *testing.T, device hal.Device, buf hal.Buffer, size uint64) []byte {
	t.Helper()
	mapping, err := device.MapBuffer(buf, 0, size)
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	defer func() { _ = device.UnmapBuffer(buf) }()
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	return out
}
