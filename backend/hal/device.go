// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hal provides an rhi device on top of the gogpu/wgpu hardware
// abstraction layer.
//
// Each frame slot owns a fence. Submit signals the working slot's fence and
// then waits for the fence of the next slot, which guards the oldest frame
// still in flight. That wait is what lets the renderer recycle per-slot
// resources once Submit returns.
//
// Importing the package registers the "hal" backend, opened on Vulkan:
//
//	import _ "github.com/gogpu/rhi/backend/hal"
//
// A device owned by another gogpu component can be shared with
// NewFromProvider.
package hal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/rhi/driver"
)

func init() {
	driver.Register(driver.APIHAL, func() (driver.Device, error) {
		return Open(gputypes.BackendVulkan)
	})
}

// fenceTimeout bounds every fence wait.
const fenceTimeout = 5 * time.Second

// Default surface size.
const (
	DefaultSurfaceWidth  = 800
	DefaultSurfaceHeight = 600
)

// Device errors.
var (
	// ErrNoAdapter is returned when the HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("hal: no GPU adapter available")

	// ErrFenceTimeout is returned when a frame fence does not signal within
	// the timeout.
	ErrFenceTimeout = errors.New("hal: fence wait timed out")

	// ErrNotHALProvider is returned by NewFromProvider when the provider
	// does not expose a HAL device and queue.
	ErrNotHALProvider = errors.New("hal: provider does not expose HAL types")
)

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// slotState holds the submission of one frame slot.
type slotState struct {
	fence hal.Fence
	cmds  []hal.CommandBuffer
}

// Device is an rhi device backed by a HAL device and queue.
//
// Device is NOT safe for concurrent use.
type Device struct {
	log *slog.Logger

	instance hal.Instance // nil for shared devices
	device   hal.Device
	queue    hal.Queue
	external bool
	name     string
	limits   gputypes.Limits

	surface *Texture
	slots   []slotState
	spirv   bool

	released bool
}

// Open creates an instance of the given HAL backend and opens its first
// discrete or integrated adapter, falling back to the first adapter.
func Open(backend gputypes.Backend, opts ...Option) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("%w: HAL backend %v", driver.ErrBackendNotAvailable, backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("hal: create instance: %w", err)
	}
	d, err := openInstance(instance, opts)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openInstance(instance hal.Instance, opts []Option) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	limits := gputypes.DefaultLimits()
	open, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		return nil, fmt.Errorf("hal: open device: %w", err)
	}
	d, err := newDevice(open.Device, open.Queue, limits, selected.Info.Name, opts)
	if err != nil {
		open.Device.Destroy()
		return nil, err
	}
	d.instance = instance
	return d, nil
}

// NewFromDevice wraps a HAL device and queue owned by the caller. Release
// frees the resources the rhi device created but leaves the HAL device open.
func NewFromDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("hal: nil device or queue")
	}
	d, err := newDevice(device, queue, gputypes.DefaultLimits(), "external", opts)
	if err != nil {
		return nil, err
	}
	d.external = true
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, limits gputypes.Limits, name string, opts []Option) (*Device, error) {
	d := &Device{
		log:    slog.New(nopHandler{}),
		device: device,
		queue:  queue,
		name:   name,
		limits: limits,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.Resize(DefaultSurfaceWidth, DefaultSurfaceHeight); err != nil {
		return nil, err
	}
	return d, nil
}

// API returns "hal".
func (d *Device) API() string { return driver.APIHAL }

// AdapterName returns the name of the opened adapter.
func (d *Device) AdapterName() string { return d.name }

// Caps returns the device limits.
func (d *Device) Caps() driver.Caps {
	return driver.Caps{
		MaxTextureSize:            int(d.limits.MaxTextureDimension2D),
		MaxBufferSize:             int(min(d.limits.MaxBufferSize, 1<<31-1)),
		MinUniformOffsetAlignment: int(d.limits.MinUniformBufferOffsetAlignment),
	}
}

// SetLogger configures logging for the device.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.log = l
}

// NewDescriptorPool creates a descriptor pool. HAL bind groups are
// allocated individually, so the pool only enforces its capacity.
func (d *Device) NewDescriptorPool(desc driver.PoolDesc) (driver.DescriptorPool, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	return &DescriptorPool{dev: d, desc: desc}, nil
}

// Surface returns the offscreen color target.
func (d *Device) Surface() driver.Texture { return d.surface }

// Resize recreates the surface texture. The caller guarantees the old
// surface is idle.
func (d *Device) Resize(width, height int) error {
	if d.released {
		return driver.ErrDeviceReleased
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("hal: invalid surface size %dx%d", width, height)
	}
	if d.surface != nil && d.surface.width == width && d.surface.height == height {
		return nil
	}
	tex, err := d.newTexture(driver.TextureDesc{
		Label:  "hal_surface",
		Width:  width,
		Height: height,
		Format: driver.TextureFormatRGBA8Unorm,
		Usage:  driver.TextureUsageRenderTarget | driver.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("hal: resize surface: %w", err)
	}
	if d.surface != nil {
		d.surface.Destroy()
	}
	d.surface = tex
	d.log.Debug("hal: surface resized", "width", width, "height", height)
	return nil
}

// Submit queues the command buffers of one frame and signals the working
// slot's fence. It then waits for the slot the next frame will reuse, so
// every frame up to ID+1-Frames has completed on return.
func (d *Device) Submit(cmds []driver.CommandBuffer, frame driver.FrameInfo) error {
	if d.released {
		return driver.ErrDeviceReleased
	}
	if frame.Frames <= 0 || frame.Slot < 0 || frame.Slot >= frame.Frames {
		return fmt.Errorf("hal: invalid frame %+v", frame)
	}
	if len(d.slots) != frame.Frames {
		if err := d.WaitIdle(); err != nil {
			return err
		}
		d.slots = make([]slotState, frame.Frames)
	}

	owned := make([]*CommandBuffer, len(cmds))
	for i, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb.dev != d {
			return fmt.Errorf("hal: command buffer %d is not from this device", i)
		}
		if cb.raw == nil {
			return fmt.Errorf("hal: command buffer %q was discarded", cb.label)
		}
		owned[i] = cb
	}
	// The queue owns the handles from here on.
	raw := make([]hal.CommandBuffer, len(owned))
	for i, cb := range owned {
		raw[i] = cb.raw
		cb.raw = nil
	}

	slot := &d.slots[frame.Slot]
	if slot.fence != nil {
		// A slot is only reused after its fence was waited on.
		if err := d.retire(slot); err != nil {
			return err
		}
	}
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("hal: create fence: %w", err)
	}
	if err := d.queue.Submit(raw, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		for _, c := range raw {
			d.device.FreeCommandBuffer(c)
		}
		return fmt.Errorf("hal: submit frame %d: %w", frame.ID, err)
	}
	slot.fence = fence
	slot.cmds = raw
	d.log.Debug("hal: submit", "frame", frame.ID, "slot", frame.Slot, "cmds", len(raw))

	next := &d.slots[(frame.Slot+1)%frame.Frames]
	return d.retire(next)
}

// retire waits for a slot's fence and frees its submission.
func (d *Device) retire(s *slotState) error {
	if s.fence == nil {
		return nil
	}
	ok, err := d.device.Wait(s.fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("hal: wait fence: %w", err)
	}
	if !ok {
		return ErrFenceTimeout
	}
	d.device.DestroyFence(s.fence)
	for _, c := range s.cmds {
		d.device.FreeCommandBuffer(c)
	}
	s.fence = nil
	s.cmds = s.cmds[:0]
	return nil
}

// WaitIdle waits for every frame slot.
func (d *Device) WaitIdle() error {
	var errs []error
	for i := range d.slots {
		if err := d.retire(&d.slots[i]); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Release waits for the GPU and destroys the surface. The HAL device and
// instance are destroyed unless the device was shared.
func (d *Device) Release() {
	if d.released {
		return
	}
	if err := d.WaitIdle(); err != nil {
		d.log.Warn("hal: release", "err", err)
	}
	if d.surface != nil {
		d.surface.Destroy()
		d.surface = nil
	}
	d.released = true
	if d.external {
		return
	}
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.log.Info("hal: device released", "adapter", d.name)
}
