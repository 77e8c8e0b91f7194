// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package soft provides a CPU reference device for rhi.
//
// The soft device keeps every buffer and texture in host memory, records
// passes as plain command lists and executes only clears at submission.
// It exists for two reasons: it runs everywhere (headless CI, machines
// without a GPU), and it exposes the native-level state that tests need to
// check the frame protocol: buffer bytes, destroyed flags, descriptor set
// contents and the submitted command stream.
//
// Importing the package registers the "soft" backend:
//
//	import _ "github.com/gogpu/rhi/backend/soft"
package soft

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/parallel"
)

func init() {
	driver.Register(driver.APISoft, func() (driver.Device, error) {
		return New(), nil
	})
}

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Default surface size.
const (
	DefaultSurfaceWidth  = 64
	DefaultSurfaceHeight = 64
)

// Submission is one Submit call as seen by the device.
type Submission struct {
	Frame    driver.FrameInfo
	Commands []*CommandBuffer
}

// Device is the CPU reference device.
//
// Device is NOT safe for concurrent use.
type Device struct {
	log      *slog.Logger
	surface  *Texture
	released bool

	// workers is started by the first large clear.
	workers *parallel.Pool

	submissions []Submission
	live        Counters
	created     Counters
}

// Counters counts device objects by kind.
type Counters struct {
	Buffers   int
	Textures  int
	Samplers  int
	Layouts   int
	Pipelines int
	Pools     int
}

// New creates a soft device with a DefaultSurfaceWidth x
// DefaultSurfaceHeight surface.
func New() *Device {
	d := &Device{log: slog.New(nopHandler{})}
	d.surface = d.newTexture(driver.TextureDesc{
		Label:  "soft_surface",
		Width:  DefaultSurfaceWidth,
		Height: DefaultSurfaceHeight,
		Format: driver.TextureFormatRGBA8Unorm,
		Usage:  driver.TextureUsageRenderTarget | driver.TextureUsageCopySrc,
	})
	return d
}

// API returns "soft".
func (d *Device) API() string { return driver.APISoft }

// Caps returns the soft device limits.
func (d *Device) Caps() driver.Caps {
	return driver.Caps{
		MaxTextureSize:            8192,
		MaxBufferSize:             1 << 30,
		MinUniformOffsetAlignment: 256,
	}
}

// SetLogger configures logging for the device.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.log = l
}

// NewBuffer creates a host-memory buffer.
func (d *Device) NewBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("soft: invalid buffer size %d", desc.Size)
	}
	d.live.Buffers++
	d.created.Buffers++
	return &Buffer{dev: d, label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}, nil
}

// NewTexture creates a host-memory texture.
func (d *Device) NewTexture(desc driver.TextureDesc) (driver.Texture, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("soft: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	return d.newTexture(desc), nil
}

func (d *Device) newTexture(desc driver.TextureDesc) *Texture {
	d.live.Textures++
	d.created.Textures++
	return &Texture{
		dev:    d,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		pixels: make([]byte, desc.Width*desc.Height*desc.Format.BytesPerPixel()),
	}
}

// NewSampler creates a sampler.
func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	d.live.Samplers++
	d.created.Samplers++
	return &Sampler{dev: d, Desc: desc}, nil
}

// NewBindingLayout creates a binding layout.
func (d *Device) NewBindingLayout(label string, entries []driver.BindingLayoutEntry) (driver.BindingLayout, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	seen := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("soft: layout %q: duplicate binding %d", label, e.Binding)
		}
		seen[e.Binding] = true
	}
	d.live.Layouts++
	d.created.Layouts++
	return &BindingLayout{dev: d, label: label, entries: append([]driver.BindingLayoutEntry(nil), entries...)}, nil
}

// NewPipeline creates a pipeline. The shader is not compiled.
func (d *Device) NewPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	if desc.Shader.WGSL == "" && len(desc.Shader.SPIRV) == 0 {
		return nil, fmt.Errorf("soft: pipeline %q has no shader source", desc.Label)
	}
	d.live.Pipelines++
	d.created.Pipelines++
	return &Pipeline{dev: d, Desc: desc}, nil
}

// NewDescriptorPool creates a descriptor pool that enforces its capacity.
func (d *Device) NewDescriptorPool(desc driver.PoolDesc) (driver.DescriptorPool, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	d.live.Pools++
	d.created.Pools++
	return &DescriptorPool{dev: d, desc: desc}, nil
}

// BeginPass starts recording a pass.
func (d *Device) BeginPass(desc driver.PassDesc) (driver.Pass, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	target := d.surface
	if desc.Target != nil {
		t, ok := desc.Target.(*Texture)
		if !ok {
			return nil, fmt.Errorf("soft: pass target %T is not a soft texture", desc.Target)
		}
		target = t
	}
	if target.destroyed {
		return nil, fmt.Errorf("soft: pass %q targets a destroyed texture", desc.Label)
	}
	return &Pass{cmd: &CommandBuffer{Label: desc.Label, Target: target, Load: desc.Load, Clear: desc.Clear}}, nil
}

// Submit executes the clears of the command buffers in order and records
// the submission. Execution is synchronous, so every frame has completed
// when Submit returns.
func (d *Device) Submit(cmds []driver.CommandBuffer, frame driver.FrameInfo) error {
	if d.released {
		return driver.ErrDeviceReleased
	}
	sub := Submission{Frame: frame, Commands: make([]*CommandBuffer, 0, len(cmds))}
	for i, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			return fmt.Errorf("soft: command buffer %d is %T", i, c)
		}
		if cb.discarded {
			return fmt.Errorf("soft: command buffer %q was discarded", cb.Label)
		}
		if cb.Load == driver.LoadActionClear {
			cb.Target.fill(cb.Clear)
		}
		sub.Commands = append(sub.Commands, cb)
	}
	d.submissions = append(d.submissions, sub)
	d.log.Debug("soft: submit", "frame", frame.ID, "slot", frame.Slot, "cmds", len(cmds))
	return nil
}

// Surface returns the default color target.
func (d *Device) Surface() driver.Texture { return d.surface }

// Resize recreates the surface.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("soft: invalid surface size %dx%d", width, height)
	}
	if width == d.surface.width && height == d.surface.height {
		return nil
	}
	d.surface.Destroy()
	d.surface = d.newTexture(driver.TextureDesc{
		Label:  "soft_surface",
		Width:  width,
		Height: height,
		Format: driver.TextureFormatRGBA8Unorm,
	})
	return nil
}

// WaitIdle returns immediately; soft execution is synchronous.
func (d *Device) WaitIdle() error { return nil }

// Release marks the device released.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.surface.Destroy()
	if d.workers != nil {
		d.workers.Close()
		d.workers = nil
	}
	d.released = true
}

func (d *Device) pool() *parallel.Pool {
	if d.workers == nil {
		d.workers = parallel.NewPool(0)
	}
	return d.workers
}

// Released reports whether Release was called.
func (d *Device) Released() bool { return d.released }

// Submissions returns every submission so far.
func (d *Device) Submissions() []Submission { return d.submissions }

// Live returns the number of objects created and not yet destroyed.
func (d *Device) Live() Counters { return d.live }

// Created returns the number of objects created over the device lifetime.
func (d *Device) Created() Counters { return d.created }
