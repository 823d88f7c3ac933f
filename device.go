package boids

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/boids/internal/gpu"
)

// Device is a GPU device and its queue, plus the submission tracker every
// controller on the device shares.
type Device struct {
	device hal.Device
	queue  hal.Queue

	submitter *gpu.Submitter

	// Set only when the device was opened by OpenDevice.
	instance hal.Instance
	name     string

	closeOnce sync.Once
}

// NewDevice wraps a device and queue owned by the caller. Close releases
// only what boids created on top of them.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	return &Device{
		device:    device,
		queue:     queue,
		submitter: gpu.NewSubmitter(device, queue),
	}, nil
}

// DeviceFromProvider shares the device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue.
func DeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL handles", ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrNoDevice)
	}
	d, err := NewDevice(device, queue)
	if err != nil {
		return nil, err
	}
	d.name = provider.AdapterInfo().Name
	return d, nil
}

// OpenDevice opens a standalone device on the given backend. The backend
// must be registered, usually by a blank import such as
// github.com/gogpu/wgpu/hal/vulkan. Discrete and integrated GPUs are
// preferred over other adapters.
func OpenDevice(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		var err error
		if b, err = hal.CreateBackend(backend); err != nil {
			return nil, fmt.Errorf("%w: backend %v: %w", ErrNoDevice, backend, err)
		}
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoDevice, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", ErrNoDevice, err)
	}

	d, err := NewDevice(openDev.Device, openDev.Queue)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.name = selected.Info.Name
	Logger().Info("boids: device opened", "backend", backend.String(), "adapter", d.name)
	return d, nil
}

// Name returns the adapter name, if known.
func (d *Device) Name() string { return d.name }

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// Close waits for deferred releases and, for devices opened by OpenDevice,
// destroys the device and instance. Controllers on the device must be
// closed first.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.submitter.Close()
		if d.instance != nil {
			d.device.Destroy()
			d.instance.Destroy()
		}
	})
}
