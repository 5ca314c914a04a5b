// Package compute runs the physics broad phase as a WebGPU compute shader.
// It is independent of raylib's OpenGL rendering and optional: the native
// backend keeps its CPU grid when Initialize fails.
package compute

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// device is the process-wide WebGPU device the broad phases share.
type device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// kernel is one compiled compute entry point and its bind group layout.
type kernel struct {
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

// buffer is a GPU buffer bound at a fixed shader binding.
type buffer struct {
	buf  *wgpu.Buffer
	size uint64
}

var (
	shared   *device
	initOnce sync.Once
	initErr  error
)

// AdapterInfo describes the GPU the broad phase runs on.
type AdapterInfo struct {
	Name       string
	Vendor     string
	Backend    string
	DeviceType string
	Driver     string
}

// Initialize opens the GPU device once per process. Later calls return the
// same adapter or the same error.
func Initialize() (AdapterInfo, error) {
	initOnce.Do(func() {
		shared, initErr = openDevice()
	})
	if initErr != nil {
		return AdapterInfo{}, initErr
	}
	info := shared.adapter.GetInfo()
	return AdapterInfo{
		Name:       info.Name,
		Vendor:     info.VendorName,
		Backend:    info.BackendType.String(),
		DeviceType: info.AdapterType.String(),
		Driver:     info.DriverDescription,
	}, nil
}

func openDevice() (*device, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("compute: no GPU adapter: %w", err)
	}

	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("compute: no GPU device: %w", err)
	}

	return &device{instance: instance, adapter: adapter, device: dev, queue: dev.GetQueue()}, nil
}

// compile builds the compute pipeline for entry in wgsl.
func (d *device) compile(label, wgsl, entry string) (*kernel, error) {
	shader, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: wgsl},
	})
	if err != nil {
		return nil, fmt.Errorf("compute: compile %s: %w", label, err)
	}

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: entry,
		},
	})
	if err != nil {
		shader.Release()
		return nil, fmt.Errorf("compute: pipeline %s: %w", label, err)
	}
	return &kernel{shader: shader, pipeline: pipeline, layout: pipeline.GetBindGroupLayout(0)}, nil
}

func (k *kernel) release() {
	k.layout.Release()
	k.pipeline.Release()
	k.shader.Release()
}

func (d *device) newBuffer(label string, size uint64, usage wgpu.BufferUsage) (*buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("compute: buffer %s: %w", label, err)
	}
	return &buffer{buf: buf, size: size}, nil
}

func (b *buffer) release() {
	if b != nil {
		b.buf.Release()
	}
}

// upload writes data at the start of b.
func upload[T any](d *device, b *buffer, data []T) {
	d.queue.WriteBuffer(b.buf, 0, asBytes(data))
}

// run dispatches k over groups workgroups with bufs bound in binding order,
// and waits for the queue.
func (d *device) run(k *kernel, groups uint32, bufs ...*buffer) error {
	entries := make([]wgpu.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b.buf, Size: b.size}
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "broadphase",
		Layout:  k.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("compute: bind group: %w", err)
	}
	defer group.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("compute: command encoder: %w", err)
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
	pass.Release()

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("compute: finish commands: %w", err)
	}
	defer commands.Release()
	d.queue.Submit(commands)
	return nil
}

// download reads the first n elements of b back to the CPU. b must have
// been created with BufferUsageCopySrc.
func download[T any](d *device, b *buffer, n int) ([]T, error) {
	var zero [1]T
	size := uint64(len(asBytes(zero[:]))) * uint64(n)
	if size == 0 {
		return nil, nil
	}
	if size > b.size {
		size = b.size
	}

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: readback buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("compute: command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	commands, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("compute: finish readback: %w", err)
	}
	d.queue.Submit(commands)
	commands.Release()

	done := make(chan error, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("compute: map readback: %v", status)
			return
		}
		done <- nil
	})
	if err != nil {
		return nil, err
	}
	d.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}

	out := append([]T(nil), fromBytes[T](staging.GetMappedRange(0, uint(size)))...)
	staging.Unmap()
	return out, nil
}

func asBytes[T any](data []T) []byte {
	return wgpu.ToBytes(data)
}

func fromBytes[T any](data []byte) []T {
	return wgpu.FromBytes[T](data)
}
