package gpucompute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device owns the hal instance, device and queue used by the compute
// renderer. When the device is shared from an external provider (the
// host engine's window), Close does not destroy it.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName string
	external    bool
}

// Probe checks whether a GPU compute device can be opened, without
// keeping it. Returns the adapter name on success.
func Probe() (adapter string, err error) {
	d, err := OpenDevice()
	if err != nil {
		return "", err
	}
	name := d.adapterName
	d.Close()
	return name, nil
}

// OpenDevice acquires the Vulkan hal backend, selects an adapter
// (preferring discrete, then integrated GPUs) and opens a device+queue.
func OpenDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", ErrNoAdapter, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				selected = &adapters[i]
				break
			}
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", ErrNoAdapter, err)
	}
	d := &Device{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}
	slogger().Info("gpucompute: device opened", "adapter", d.adapterName)
	return d, nil
}

// SharedDevice wraps an externally owned hal device and queue. The
// provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func SharedDevice(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpucompute: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpucompute: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpucompute: provider HalQueue is not hal.Queue")
	}
	return &Device{device: device, queue: queue, adapterName: "shared", external: true}, nil
}

// AdapterName returns the selected adapter's name.
func (d *Device) AdapterName() string { return d.adapterName }

// HalDevice exposes the raw device for resource creation.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue exposes the raw queue for uploads and submission.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// External reports whether the device is owned by an outside provider.
func (d *Device) External() bool { return d.external }

// Close releases the device and instance unless they are shared.
func (d *Device) Close() {
	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}
