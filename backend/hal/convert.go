// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/driver"
)

func bufferUsage(u driver.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(driver.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(driver.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(driver.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(driver.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(driver.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(driver.BufferUsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

func textureFormat(f driver.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case driver.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case driver.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case driver.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, nil
	default:
		return 0, fmt.Errorf("%w: texture format %v", driver.ErrUnsupported, f)
	}
}

func textureUsage(u driver.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(driver.TextureUsageSampled) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(driver.TextureUsageStorage) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(driver.TextureUsageRenderTarget) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u.Has(driver.TextureUsageCopySrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(driver.TextureUsageCopyDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

func filterMode(f driver.FilterMode) gputypes.FilterMode {
	if f == driver.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func addressMode(a driver.AddressMode) gputypes.AddressMode {
	switch a {
	case driver.AddressRepeat:
		return gputypes.AddressModeRepeat
	case driver.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

// layoutEntry converts a binding layout entry. Storage textures are
// declared read-write in the surface format family; sampled textures are
// filterable float 2D views.
func layoutEntry(e driver.BindingLayoutEntry) (gputypes.BindGroupLayoutEntry, error) {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding}
	if e.Stages&driver.StageVertex != 0 {
		out.Visibility |= gputypes.ShaderStageVertex
	}
	if e.Stages&driver.StageFragment != 0 {
		out.Visibility |= gputypes.ShaderStageFragment
	}
	switch e.Type {
	case driver.DescriptorUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case driver.DescriptorStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case driver.DescriptorReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case driver.DescriptorSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case driver.DescriptorStorageTexture:
		out.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case driver.DescriptorSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	default:
		return out, fmt.Errorf("%w: descriptor type %v", driver.ErrUnsupported, e.Type)
	}
	return out, nil
}

func vertexFormat(f driver.VertexFormat) (gputypes.VertexFormat, error) {
	switch f {
	case driver.VertexFloat32:
		return gputypes.VertexFormatFloat32, nil
	case driver.VertexFloat32x2:
		return gputypes.VertexFormatFloat32x2, nil
	case driver.VertexFloat32x3:
		return gputypes.VertexFormatFloat32x3, nil
	case driver.VertexFloat32x4:
		return gputypes.VertexFormatFloat32x4, nil
	case driver.VertexUint32:
		return gputypes.VertexFormatUint32, nil
	case driver.VertexUnorm8x4:
		return gputypes.VertexFormatUnorm8x4, nil
	default:
		return 0, fmt.Errorf("%w: vertex format %d", driver.ErrUnsupported, f)
	}
}

func vertexLayouts(in []driver.VertexLayout) ([]gputypes.VertexBufferLayout, error) {
	out := make([]gputypes.VertexBufferLayout, len(in))
	for i, l := range in {
		attrs := make([]gputypes.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			f, err := vertexFormat(a.Format)
			if err != nil {
				return nil, fmt.Errorf("vertex buffer %d attribute %d: %w", i, j, err)
			}
			attrs[j] = gputypes.VertexAttribute{
				Format:         f,
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		step := gputypes.VertexStepModeVertex
		if l.PerInstance {
			step = gputypes.VertexStepModeInstance
		}
		out[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    step,
			Attributes:  attrs,
		}
	}
	return out, nil
}

func topology(t driver.Topology) gputypes.PrimitiveTopology {
	switch t {
	case driver.TopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case driver.TopologyLineList:
		return gputypes.PrimitiveTopologyLineList
	case driver.TopologyPointList:
		return gputypes.PrimitiveTopologyPointList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

// blendState returns nil for opaque writes.
func blendState(m driver.BlendMode) *gputypes.BlendState {
	switch m {
	case driver.BlendPremultiplied:
		b := gputypes.BlendStatePremultiplied()
		return &b
	case driver.BlendAlpha:
		return &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case driver.BlendAdditive:
		add := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		return &gputypes.BlendState{Color: add, Alpha: add}
	default:
		return nil
	}
}

func indexFormat(f driver.IndexFormat) gputypes.IndexFormat {
	if f == driver.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

func loadOp(a driver.LoadAction) gputypes.LoadOp {
	if a == driver.LoadActionLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func clearColor(c driver.Color) gputypes.Color {
	return gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}
