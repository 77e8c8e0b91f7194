// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package webgpu provides an rhi device on wgpu-native through the
// cogentcore/webgpu bindings.
//
// The bindings expose no per-submission fence, so Submit polls the device
// until the queue is empty. Every submitted frame has completed when
// Submit returns, which is stronger than the frame protocol requires.
//
// Importing the package registers the "webgpu" backend:
//
//	import _ "github.com/gogpu/rhi/backend/webgpu"
//
// The package requires cgo.
package webgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

func init() {
	driver.Register(driver.APIWebGPU, func() (driver.Device, error) {
		return Open()
	})
}

// Default surface size.
const (
	DefaultSurfaceWidth  = 800
	DefaultSurfaceHeight = 600
)

// WebGPU guaranteed limits.
const (
	maxTextureSize            = 8192
	maxBufferSize             = 256 << 20
	minUniformOffsetAlignment = 256
)

// ErrNoAdapter is returned when wgpu-native offers no adapter.
var ErrNoAdapter = errors.New("webgpu: no GPU adapter available")

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Device is an rhi device backed by a wgpu-native device.
//
// Device is NOT safe for concurrent use.
type Device struct {
	log *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surface  *Texture
	released bool
}

// Open requests a high-performance adapter and opens a device on it.
func Open() (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	d := &Device{
		log:      slog.New(nopHandler{}),
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}
	if err := d.Resize(DefaultSurfaceWidth, DefaultSurfaceHeight); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

// API returns "webgpu".
func (d *Device) API() string { return driver.APIWebGPU }

// Caps returns the limits every WebGPU implementation guarantees.
func (d *Device) Caps() driver.Caps {
	return driver.Caps{
		MaxTextureSize:            maxTextureSize,
		MaxBufferSize:             maxBufferSize,
		MinUniformOffsetAlignment: minUniformOffsetAlignment,
	}
}

// SetLogger configures logging for the device.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.log = l
}

// NewDescriptorPool creates a capacity-checked descriptor pool. Bind
// groups are allocated individually by wgpu-native.
func (d *Device) NewDescriptorPool(desc driver.PoolDesc) (driver.DescriptorPool, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	return &DescriptorPool{dev: d, desc: desc}, nil
}

// Surface returns the offscreen color target.
func (d *Device) Surface() driver.Texture { return d.surface }

// Resize recreates the surface texture.
func (d *Device) Resize(width, height int) error {
	if d.released {
		return driver.ErrDeviceReleased
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("webgpu: invalid surface size %dx%d", width, height)
	}
	if d.surface != nil && d.surface.width == width && d.surface.height == height {
		return nil
	}
	tex, err := d.newTexture(driver.TextureDesc{
		Label:  "webgpu_surface",
		Width:  width,
		Height: height,
		Format: driver.TextureFormatRGBA8Unorm,
		Usage:  driver.TextureUsageRenderTarget | driver.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("webgpu: resize surface: %w", err)
	}
	if d.surface != nil {
		d.surface.Destroy()
	}
	d.surface = tex
	return nil
}

// Submit submits the command buffers in order and waits for the queue.
func (d *Device) Submit(cmds []driver.CommandBuffer, frame driver.FrameInfo) error {
	if d.released {
		return driver.ErrDeviceReleased
	}
	raw := make([]*wgpu.CommandBuffer, 0, len(cmds))
	for i, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb.raw == nil {
			return fmt.Errorf("webgpu: command buffer %d is not a pending webgpu command buffer", i)
		}
		raw = append(raw, cb.raw)
	}
	d.queue.Submit(raw...)
	for i, c := range cmds {
		c.(*CommandBuffer).raw = nil
		raw[i].Release()
	}
	d.device.Poll(true, nil)
	d.log.Debug("webgpu: submit", "frame", frame.ID, "slot", frame.Slot, "cmds", len(raw))
	return nil
}

// WaitIdle polls the device until the queue is empty.
func (d *Device) WaitIdle() error {
	if d.released {
		return nil
	}
	d.device.Poll(true, nil)
	return nil
}

// Release destroys the surface and releases the wgpu-native objects.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.device.Poll(true, nil)
	if d.surface != nil {
		d.surface.Destroy()
		d.surface = nil
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	d.released = true
	d.log.Info("webgpu: device released")
}
