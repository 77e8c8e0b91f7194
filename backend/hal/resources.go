// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/driver"
)

// Buffer wraps a HAL buffer.
type Buffer struct {
	dev   *Device
	label string
	size  int
	raw   hal.Buffer
}

// NewBuffer creates a HAL buffer.
func (d *Device) NewBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("hal: invalid buffer size %d", desc.Size)
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(desc.Size),
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create buffer %q: %w", desc.Label, err)
	}
	return &Buffer{dev: d, label: desc.Label, size: desc.Size, raw: raw}, nil
}

// Size returns the size in bytes.
func (b *Buffer) Size() int { return b.size }

// Write queues a copy of data into the buffer at offset.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.raw == nil {
		return fmt.Errorf("hal: write to destroyed buffer %q", b.label)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("hal: write [%d, %d) out of bounds for buffer %q of %d bytes",
			offset, offset+len(data), b.label, b.size)
	}
	b.dev.queue.WriteBuffer(b.raw, uint64(offset), data)
	return nil
}

// Destroy frees the buffer. Destroying twice is a no-op.
func (b *Buffer) Destroy() {
	if b.raw == nil {
		return
	}
	b.dev.device.DestroyBuffer(b.raw)
	b.raw = nil
}

// Raw returns the HAL buffer, or nil after Destroy.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Texture wraps a HAL texture and its default view.
type Texture struct {
	dev    *Device
	label  string
	width  int
	height int
	format driver.TextureFormat
	raw    hal.Texture
	view   hal.TextureView
}

// NewTexture creates a HAL texture and its default view.
func (d *Device) NewTexture(desc driver.TextureDesc) (driver.Texture, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	return d.newTexture(desc)
}

func (d *Device) newTexture(desc driver.TextureDesc) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("hal: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	samples := desc.SampleCount
	if samples <= 0 {
		samples = 1
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{Label: desc.Label + "_view"})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("hal: create view of %q: %w", desc.Label, err)
	}
	return &Texture{
		dev:    d,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		raw:    raw,
		view:   view,
	}, nil
}

// Width returns the width in texels.
func (t *Texture) Width() int { return t.width }

// Height returns the height in texels.
func (t *Texture) Height() int { return t.height }

// Format returns the pixel format.
func (t *Texture) Format() driver.TextureFormat { return t.format }

// Write queues an upload of a full image with the given row pitch.
func (t *Texture) Write(pixels []byte, bytesPerRow int) error {
	if t.raw == nil {
		return fmt.Errorf("hal: write to destroyed texture %q", t.label)
	}
	row := t.width * t.format.BytesPerPixel()
	if bytesPerRow < row || len(pixels) < bytesPerRow*(t.height-1)+row {
		return fmt.Errorf("hal: texture %q: %d bytes with pitch %d too small for %dx%d",
			t.label, len(pixels), bytesPerRow, t.width, t.height)
	}
	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.height),
		},
		&hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	return nil
}

// Destroy frees the view and the texture. Destroying twice is a no-op.
func (t *Texture) Destroy() {
	if t.raw == nil {
		return
	}
	t.dev.device.DestroyTextureView(t.view)
	t.dev.device.DestroyTexture(t.raw)
	t.view = nil
	t.raw = nil
}

// View returns the default view, or nil after Destroy.
func (t *Texture) View() hal.TextureView { return t.view }

// Sampler wraps a HAL sampler.
type Sampler struct {
	dev *Device
	raw hal.Sampler
}

// NewSampler creates a HAL sampler.
func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	am := addressMode(desc.AddressMode)
	raw, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: am,
		AddressModeV: am,
		AddressModeW: am,
		MagFilter:    filterMode(desc.MagFilter),
		MinFilter:    filterMode(desc.MinFilter),
		MipmapFilter: filterMode(desc.MinFilter),
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create sampler %q: %w", desc.Label, err)
	}
	return &Sampler{dev: d, raw: raw}, nil
}

// Destroy frees the sampler.
func (s *Sampler) Destroy() {
	if s.raw == nil {
		return
	}
	s.dev.device.DestroySampler(s.raw)
	s.raw = nil
}

// BindingLayout wraps a HAL bind group layout.
type BindingLayout struct {
	dev     *Device
	label   string
	entries []driver.BindingLayoutEntry
	raw     hal.BindGroupLayout
}

// NewBindingLayout creates a HAL bind group layout.
func (d *Device) NewBindingLayout(label string, entries []driver.BindingLayoutEntry) (driver.BindingLayout, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	halEntries := make([]gputypes.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		he, err := layoutEntry(e)
		if err != nil {
			return nil, fmt.Errorf("hal: layout %q binding %d: %w", label, e.Binding, err)
		}
		halEntries[i] = he
	}
	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: halEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create layout %q: %w", label, err)
	}
	return &BindingLayout{
		dev:     d,
		label:   label,
		entries: append([]driver.BindingLayoutEntry(nil), entries...),
		raw:     raw,
	}, nil
}

// Entries returns the layout entries.
func (l *BindingLayout) Entries() []driver.BindingLayoutEntry { return l.entries }

// Destroy frees the layout.
func (l *BindingLayout) Destroy() {
	if l.raw == nil {
		return
	}
	l.dev.device.DestroyBindGroupLayout(l.raw)
	l.raw = nil
}

// Pipeline wraps a HAL render pipeline with its layout and shader module.
type Pipeline struct {
	dev    *Device
	label  string
	layout hal.PipelineLayout
	module hal.ShaderModule
	raw    hal.RenderPipeline
}

// NewPipeline compiles the shader and creates a render pipeline. WGSL is
// compiled to SPIR-V with naga; SPIR-V sources are used as given.
func (d *Device) NewPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	format, err := textureFormat(desc.ColorFormat)
	if err != nil {
		return nil, err
	}
	buffers, err := vertexLayouts(desc.Vertex)
	if err != nil {
		return nil, fmt.Errorf("hal: pipeline %q: %w", desc.Label, err)
	}
	layouts := make([]hal.BindGroupLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		hl, ok := l.(*BindingLayout)
		if !ok || hl.raw == nil {
			return nil, fmt.Errorf("hal: pipeline %q: layout %d is not a live hal layout", desc.Label, i)
		}
		layouts[i] = hl.raw
	}

	module, err := d.shaderModule(desc.Label, desc.Shader)
	if err != nil {
		return nil, err
	}
	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("hal: create pipeline layout %q: %w", desc.Label, err)
	}

	samples := desc.SampleCount
	if samples <= 0 {
		samples = 1
	}
	raw, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pl,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: entryPoint(desc.Shader.VertexEntry, "vs_main"),
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: entryPoint(desc.Shader.FragmentEntry, "fs_main"),
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     blendState(desc.Blend),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology(desc.Topology),
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: uint32(samples),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pl)
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("hal: create pipeline %q: %w", desc.Label, err)
	}
	return &Pipeline{dev: d, label: desc.Label, layout: pl, module: module, raw: raw}, nil
}

func entryPoint(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// Destroy frees the pipeline, its layout and its shader module.
func (p *Pipeline) Destroy() {
	if p.raw == nil {
		return
	}
	p.dev.device.DestroyRenderPipeline(p.raw)
	p.dev.device.DestroyPipelineLayout(p.layout)
	p.dev.device.DestroyShaderModule(p.module)
	p.raw = nil
}
