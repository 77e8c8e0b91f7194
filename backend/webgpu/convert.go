// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

var bufferUsages = []struct {
	from driver.BufferUsage
	to   wgpu.BufferUsage
}{
	{driver.BufferUsageVertex, wgpu.BufferUsageVertex},
	{driver.BufferUsageIndex, wgpu.BufferUsageIndex},
	{driver.BufferUsageUniform, wgpu.BufferUsageUniform},
	{driver.BufferUsageStorage, wgpu.BufferUsageStorage},
	{driver.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
	{driver.BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
}

func bufferUsage(u driver.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for _, m := range bufferUsages {
		if u.Has(m.from) {
			out |= m.to
		}
	}
	return out
}

var textureUsages = []struct {
	from driver.TextureUsage
	to   wgpu.TextureUsage
}{
	{driver.TextureUsageSampled, wgpu.TextureUsageTextureBinding},
	{driver.TextureUsageStorage, wgpu.TextureUsageStorageBinding},
	{driver.TextureUsageRenderTarget, wgpu.TextureUsageRenderAttachment},
	{driver.TextureUsageCopySrc, wgpu.TextureUsageCopySrc},
	{driver.TextureUsageCopyDst, wgpu.TextureUsageCopyDst},
}

func textureUsage(u driver.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	for _, m := range textureUsages {
		if u.Has(m.from) {
			out |= m.to
		}
	}
	return out
}

func textureFormat(f driver.TextureFormat) (wgpu.TextureFormat, error) {
	switch f {
	case driver.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case driver.TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm, nil
	case driver.TextureFormatR8Unorm:
		return wgpu.TextureFormatR8Unorm, nil
	default:
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: texture format %v", driver.ErrUnsupported, f)
	}
}

func filterMode(f driver.FilterMode) wgpu.FilterMode {
	if f == driver.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func mipmapFilter(f driver.FilterMode) wgpu.MipmapFilterMode {
	if f == driver.FilterNearest {
		return wgpu.MipmapFilterModeNearest
	}
	return wgpu.MipmapFilterModeLinear
}

func addressMode(a driver.AddressMode) wgpu.AddressMode {
	switch a {
	case driver.AddressRepeat:
		return wgpu.AddressModeRepeat
	case driver.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}

func shaderStage(s driver.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&driver.StageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&driver.StageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	return out
}

func layoutEntry(e driver.BindingLayoutEntry) (wgpu.BindGroupLayoutEntry, error) {
	out := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStage(e.Stages),
	}
	switch e.Type {
	case driver.DescriptorUniformBuffer:
		out.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	case driver.DescriptorStorageBuffer:
		out.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
	case driver.DescriptorReadOnlyStorageBuffer:
		out.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
	case driver.DescriptorSampledTexture:
		out.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case driver.DescriptorStorageTexture:
		out.StorageTexture = wgpu.StorageTextureBindingLayout{
			Access:        wgpu.StorageTextureAccessWriteOnly,
			Format:        wgpu.TextureFormatRGBA8Unorm,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case driver.DescriptorSampler:
		out.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	default:
		return out, fmt.Errorf("%w: descriptor type %v", driver.ErrUnsupported, e.Type)
	}
	return out, nil
}

var vertexFormats = map[driver.VertexFormat]wgpu.VertexFormat{
	driver.VertexFloat32:   wgpu.VertexFormatFloat32,
	driver.VertexFloat32x2: wgpu.VertexFormatFloat32x2,
	driver.VertexFloat32x3: wgpu.VertexFormatFloat32x3,
	driver.VertexFloat32x4: wgpu.VertexFormatFloat32x4,
	driver.VertexUint32:    wgpu.VertexFormatUint32,
	driver.VertexUnorm8x4:  wgpu.VertexFormatUnorm8x4,
}

func vertexLayouts(in []driver.VertexLayout) ([]wgpu.VertexBufferLayout, error) {
	out := make([]wgpu.VertexBufferLayout, len(in))
	for i, l := range in {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			f, ok := vertexFormats[a.Format]
			if !ok {
				return nil, fmt.Errorf("%w: vertex buffer %d attribute %d format %d", driver.ErrUnsupported, i, j, a.Format)
			}
			attrs[j] = wgpu.VertexAttribute{
				Format:         f,
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		step := wgpu.VertexStepModeVertex
		if l.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    step,
			Attributes:  attrs,
		}
	}
	return out, nil
}

func topology(t driver.Topology) wgpu.PrimitiveTopology {
	switch t {
	case driver.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case driver.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case driver.TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func blendState(m driver.BlendMode) *wgpu.BlendState {
	over := func(src wgpu.BlendFactor) wgpu.BlendComponent {
		return wgpu.BlendComponent{
			SrcFactor: src,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		}
	}
	switch m {
	case driver.BlendPremultiplied:
		return &wgpu.BlendState{Color: over(wgpu.BlendFactorOne), Alpha: over(wgpu.BlendFactorOne)}
	case driver.BlendAlpha:
		return &wgpu.BlendState{Color: over(wgpu.BlendFactorSrcAlpha), Alpha: over(wgpu.BlendFactorOne)}
	case driver.BlendAdditive:
		add := wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		}
		return &wgpu.BlendState{Color: add, Alpha: add}
	default:
		return &wgpu.BlendStateReplace
	}
}

func indexFormat(f driver.IndexFormat) wgpu.IndexFormat {
	if f == driver.IndexFormatUint32 {
		return wgpu.IndexFormatUint32
	}
	return wgpu.IndexFormatUint16
}

// spirvBytes packs SPIR-V words into the little-endian byte stream wgpu
// expects.
func spirvBytes(words []uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}
