// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

// Buffer wraps a wgpu buffer.
type Buffer struct {
	dev   *Device
	label string
	size  int
	raw   *wgpu.Buffer
}

// NewBuffer creates a buffer.
func (d *Device) NewBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("webgpu: invalid buffer size %d", desc.Size)
	}
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             uint64(desc.Size),
		Usage:            bufferUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create buffer %q: %w", desc.Label, err)
	}
	return &Buffer{dev: d, label: desc.Label, size: desc.Size, raw: raw}, nil
}

// Size returns the size in bytes.
func (b *Buffer) Size() int { return b.size }

// Write queues a copy of data at offset.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.raw == nil {
		return fmt.Errorf("webgpu: write to destroyed buffer %q", b.label)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("webgpu: write [%d, %d) out of bounds for buffer %q of %d bytes",
			offset, offset+len(data), b.label, b.size)
	}
	if err := b.dev.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
		return fmt.Errorf("webgpu: write buffer %q: %w", b.label, err)
	}
	return nil
}

// Destroy releases the buffer.
func (b *Buffer) Destroy() {
	if b.raw == nil {
		return
	}
	b.raw.Release()
	b.raw = nil
}

// Texture wraps a wgpu texture and its default view.
type Texture struct {
	dev    *Device
	label  string
	width  int
	height int
	format driver.TextureFormat
	raw    *wgpu.Texture
	view   *wgpu.TextureView
}

// NewTexture creates a 2D texture and its default view.
func (d *Device) NewTexture(desc driver.TextureDesc) (driver.Texture, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	return d.newTexture(desc)
}

func (d *Device) newTexture(desc driver.TextureDesc) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("webgpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	samples := max(desc.SampleCount, 1)
	raw, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create texture %q: %w", desc.Label, err)
	}
	view, err := raw.CreateView(nil)
	if err != nil {
		raw.Release()
		return nil, fmt.Errorf("webgpu: create view of %q: %w", desc.Label, err)
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
		return fmt.Errorf("webgpu: write to destroyed texture %q", t.label)
	}
	row := t.width * t.format.BytesPerPixel()
	if bytesPerRow < row || len(pixels) < bytesPerRow*(t.height-1)+row {
		return fmt.Errorf("webgpu: texture %q: %d bytes with pitch %d too small for %dx%d",
			t.label, len(pixels), bytesPerRow, t.width, t.height)
	}
	size := wgpu.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1}
	t.dev.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Aspect:   wgpu.TextureAspectAll,
			Texture:  t.raw,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.height),
		},
		&size,
	)
	return nil
}

// Destroy releases the view and the texture.
func (t *Texture) Destroy() {
	if t.raw == nil {
		return
	}
	t.view.Release()
	t.raw.Release()
	t.view = nil
	t.raw = nil
}

// Sampler wraps a wgpu sampler.
type Sampler struct {
	raw *wgpu.Sampler
}

// NewSampler creates a sampler.
func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	am := addressMode(desc.AddressMode)
	raw, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  am,
		AddressModeV:  am,
		AddressModeW:  am,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilter(desc.MinFilter),
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create sampler %q: %w", desc.Label, err)
	}
	return &Sampler{raw: raw}, nil
}

// Destroy releases the sampler.
func (s *Sampler) Destroy() {
	if s.raw != nil {
		s.raw.Release()
		s.raw = nil
	}
}

// BindingLayout wraps a wgpu bind group layout.
type BindingLayout struct {
	dev     *Device
	label   string
	entries []driver.BindingLayoutEntry
	raw     *wgpu.BindGroupLayout
}

// NewBindingLayout creates a bind group layout.
func (d *Device) NewBindingLayout(label string, entries []driver.BindingLayoutEntry) (driver.BindingLayout, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	out := make([]wgpu.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		we, err := layoutEntry(e)
		if err != nil {
			return nil, fmt.Errorf("webgpu: layout %q binding %d: %w", label, e.Binding, err)
		}
		out[i] = we
	}
	raw, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: out,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create layout %q: %w", label, err)
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

// Destroy releases the layout.
func (l *BindingLayout) Destroy() {
	if l.raw != nil {
		l.raw.Release()
		l.raw = nil
	}
}

// Pipeline wraps a wgpu render pipeline with its layout and shader module.
type Pipeline struct {
	layout *wgpu.PipelineLayout
	module *wgpu.ShaderModule
	raw    *wgpu.RenderPipeline
}

// NewPipeline creates a render pipeline from WGSL or SPIR-V.
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
		return nil, fmt.Errorf("webgpu: pipeline %q: %w", desc.Label, err)
	}
	layouts := make([]*wgpu.BindGroupLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		wl, ok := l.(*BindingLayout)
		if !ok || wl.raw == nil {
			return nil, fmt.Errorf("webgpu: pipeline %q: layout %d is not a live webgpu layout", desc.Label, i)
		}
		layouts[i] = wl.raw
	}

	smd := &wgpu.ShaderModuleDescriptor{Label: desc.Label + "_shader"}
	switch {
	case len(desc.Shader.SPIRV) > 0:
		smd.SPIRVDescriptor = &wgpu.ShaderModuleSPIRVDescriptor{Code: spirvBytes(desc.Shader.SPIRV)}
	case desc.Shader.WGSL != "":
		smd.WGSLDescriptor = &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Shader.WGSL}
	default:
		return nil, fmt.Errorf("webgpu: pipeline %q has no shader source", desc.Label)
	}
	module, err := d.device.CreateShaderModule(smd)
	if err != nil {
		return nil, fmt.Errorf("webgpu: create shader module %q: %w", desc.Label, err)
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("webgpu: create pipeline layout %q: %w", desc.Label, err)
	}

	vs, fs := desc.Shader.VertexEntry, desc.Shader.FragmentEntry
	if vs == "" {
		vs = "vs_main"
	}
	if fs == "" {
		fs = "fs_main"
	}
	raw, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pl,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vs,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fs,
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     blendState(desc.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(max(desc.SampleCount, 1)),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		pl.Release()
		module.Release()
		return nil, fmt.Errorf("webgpu: create pipeline %q: %w", desc.Label, err)
	}
	return &Pipeline{layout: pl, module: module, raw: raw}, nil
}

// Destroy releases the pipeline, its layout and its shader module.
func (p *Pipeline) Destroy() {
	if p.raw == nil {
		return
	}
	p.raw.Release()
	p.layout.Release()
	p.module.Release()
	p.raw = nil
}
