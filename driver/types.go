package driver

import "fmt"

// BufferUsage is a bit set describing how a buffer is bound.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Has reports whether all flags in f are set in u.
func (u BufferUsage) Has(f BufferUsage) bool { return u&f == f }

// String returns the string representation of BufferUsage.
func (u BufferUsage) String() string {
	if u == 0 {
		return "None"
	}
	names := []string{"Vertex", "Index", "Uniform", "Storage", "CopySrc", "CopyDst"}
	s := ""
	for i, name := range names {
		if u&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	if rest := u &^ (1<<len(names) - 1); rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("Unknown(%#x)", uint32(rest))
	}
	return s
}

// IndexFormat is the element type of an index buffer.
type IndexFormat uint8

// Index formats.
const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Size returns the size of one index in bytes.
func (f IndexFormat) Size() int {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

// String returns the string representation of IndexFormat.
func (f IndexFormat) String() string {
	switch f {
	case IndexFormatUint16:
		return "Uint16"
	case IndexFormatUint32:
		return "Uint32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// TextureFormat is a pixel format.
type TextureFormat uint8

// Texture formats.
const (
	TextureFormatRGBA8Unorm TextureFormat = iota
	TextureFormatBGRA8Unorm
	TextureFormatR8Unorm
)

// BytesPerPixel returns the size of one texel in bytes.
func (f TextureFormat) BytesPerPixel() int {
	if f == TextureFormatR8Unorm {
		return 1
	}
	return 4
}

// String returns the string representation of TextureFormat.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// TextureUsage is a bit set describing how a texture is used.
type TextureUsage uint32

// Texture usage flags.
const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageRenderTarget
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// Has reports whether all flags in f are set in u.
func (u TextureUsage) Has(f TextureUsage) bool { return u&f == f }

// FilterMode selects texel filtering.
type FilterMode uint8

// Filter modes.
const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how out-of-range coordinates are resolved.
type AddressMode uint8

// Address modes.
const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// DescriptorType is the kind of resource a binding slot holds.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorReadOnlyStorageBuffer
	DescriptorSampledTexture
	DescriptorStorageTexture
	DescriptorSampler

	// NumDescriptorTypes is the number of descriptor types.
	NumDescriptorTypes
)

// IsBuffer reports whether the descriptor type binds a buffer.
func (t DescriptorType) IsBuffer() bool {
	return t <= DescriptorReadOnlyStorageBuffer
}

// IsTexture reports whether the descriptor type binds a texture.
func (t DescriptorType) IsTexture() bool {
	return t == DescriptorSampledTexture || t == DescriptorStorageTexture
}

// String returns the string representation of DescriptorType.
func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "UniformBuffer"
	case DescriptorStorageBuffer:
		return "StorageBuffer"
	case DescriptorReadOnlyStorageBuffer:
		return "ReadOnlyStorageBuffer"
	case DescriptorSampledTexture:
		return "SampledTexture"
	case DescriptorStorageTexture:
		return "StorageTexture"
	case DescriptorSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// DescriptorCounts holds one count per descriptor type.
type DescriptorCounts [NumDescriptorTypes]int

// Add returns the element-wise sum of c and o.
func (c DescriptorCounts) Add(o DescriptorCounts) DescriptorCounts {
	for i := range c {
		c[i] += o[i]
	}
	return c
}

// Sub returns the element-wise difference of c and o.
func (c DescriptorCounts) Sub(o DescriptorCounts) DescriptorCounts {
	for i := range c {
		c[i] -= o[i]
	}
	return c
}

// Fits reports whether used+need stays within c for every type.
func (c DescriptorCounts) Fits(used, need DescriptorCounts) bool {
	for i := range c {
		if used[i]+need[i] > c[i] {
			return false
		}
	}
	return true
}

// Uniform returns counts with n for every descriptor type.
func Uniform(n int) DescriptorCounts {
	var c DescriptorCounts
	for i := range c {
		c[i] = n
	}
	return c
}

// ShaderStage is a bit set of shader stages.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = 1 << iota
	StageFragment

	StageAll = StageVertex | StageFragment
)

// VertexFormat is the type of one vertex attribute.
type VertexFormat uint8

// Vertex formats.
const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
	VertexUnorm8x4
)

// Size returns the size of the attribute in bytes.
func (f VertexFormat) Size() int {
	switch f {
	case VertexFloat32, VertexUint32, VertexUnorm8x4:
		return 4
	case VertexFloat32x2:
		return 8
	case VertexFloat32x3:
		return 12
	case VertexFloat32x4:
		return 16
	default:
		return 0
	}
}

// Topology is the primitive assembly mode.
type Topology uint8

// Topologies.
const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// BlendMode selects a fixed color blend equation.
type BlendMode uint8

// Blend modes.
const (
	BlendNone BlendMode = iota
	BlendPremultiplied
	BlendAlpha
	BlendAdditive
)

// LoadAction selects what happens to an attachment when a pass begins.
type LoadAction uint8

// Load actions.
const (
	LoadActionClear LoadAction = iota
	LoadActionLoad
	LoadActionDontCare
)

// Color is a linear RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float32
}
