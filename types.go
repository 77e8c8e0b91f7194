package rhi

import "github.com/gogpu/rhi/driver"

// Value types shared with the driver contract.
type (
	// Color is a linear RGBA color.
	Color = driver.Color

	// BufferUsage is a bit set describing how a buffer is bound.
	BufferUsage = driver.BufferUsage

	// TextureFormat is a pixel format.
	TextureFormat = driver.TextureFormat

	// TextureUsage is a bit set describing how a texture is used.
	TextureUsage = driver.TextureUsage

	// SamplerDesc describes a sampler.
	SamplerDesc = driver.SamplerDesc

	// BindingLayoutEntry describes one binding of a descriptor set layout.
	BindingLayoutEntry = driver.BindingLayoutEntry

	// ShaderSource holds the shader code of a pipeline.
	ShaderSource = driver.ShaderSource

	// VertexLayout describes one vertex buffer slot.
	VertexLayout = driver.VertexLayout

	// VertexAttribute describes one attribute of a vertex buffer slot.
	VertexAttribute = driver.VertexAttribute
)

// Buffer usages.
const (
	BufferUsageVertex  = driver.BufferUsageVertex
	BufferUsageIndex   = driver.BufferUsageIndex
	BufferUsageUniform = driver.BufferUsageUniform
	BufferUsageStorage = driver.BufferUsageStorage
)

// Texture formats.
const (
	TextureFormatRGBA8Unorm = driver.TextureFormatRGBA8Unorm
	TextureFormatBGRA8Unorm = driver.TextureFormatBGRA8Unorm
	TextureFormatR8Unorm    = driver.TextureFormatR8Unorm
)

// Texture usages.
const (
	TextureUsageSampled      = driver.TextureUsageSampled
	TextureUsageStorage      = driver.TextureUsageStorage
	TextureUsageRenderTarget = driver.TextureUsageRenderTarget
)

// Descriptor types.
const (
	DescriptorUniformBuffer         = driver.DescriptorUniformBuffer
	DescriptorStorageBuffer         = driver.DescriptorStorageBuffer
	DescriptorReadOnlyStorageBuffer = driver.DescriptorReadOnlyStorageBuffer
	DescriptorSampledTexture        = driver.DescriptorSampledTexture
	DescriptorStorageTexture        = driver.DescriptorStorageTexture
	DescriptorSampler               = driver.DescriptorSampler
)

// Shader stages.
const (
	StageVertex   = driver.StageVertex
	StageFragment = driver.StageFragment
	StageAll      = driver.StageAll
)

// Vertex attribute formats.
const (
	VertexFloat32   = driver.VertexFloat32
	VertexFloat32x2 = driver.VertexFloat32x2
	VertexFloat32x3 = driver.VertexFloat32x3
	VertexFloat32x4 = driver.VertexFloat32x4
	VertexUint32    = driver.VertexUint32
	VertexUnorm8x4  = driver.VertexUnorm8x4
)
