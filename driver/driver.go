package driver

import (
	"image"
	"log/slog"
)

// Caps describes device limits relevant to the rhi core.
type Caps struct {
	// MaxTextureSize is the largest texture dimension in texels.
	MaxTextureSize int

	// MaxBufferSize is the largest buffer size in bytes.
	MaxBufferSize int

	// MinUniformOffsetAlignment is the alignment of uniform buffer bind
	// offsets in bytes.
	MinUniformOffsetAlignment int
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  int
	Usage BufferUsage
}

// TextureDesc describes a 2D texture to create.
type TextureDesc struct {
	Label       string
	Width       int
	Height      int
	Format      TextureFormat
	Usage       TextureUsage
	SampleCount int
}

// SamplerDesc describes a sampler to create.
type SamplerDesc struct {
	Label       string
	MinFilter   FilterMode
	MagFilter   FilterMode
	AddressMode AddressMode
}

// BindingLayoutEntry describes one binding slot of a descriptor set layout.
// Entries are produced by shader reflection and consumed as opaque metadata.
type BindingLayoutEntry struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage

	// Count is the array length of the binding. Zero means 1.
	Count int
}

// Counts returns the number of descriptors of each type the entries need.
func Counts(entries []BindingLayoutEntry) DescriptorCounts {
	var c DescriptorCounts
	for _, e := range entries {
		n := e.Count
		if n <= 0 {
			n = 1
		}
		c[e.Type] += n
	}
	return c
}

// VertexAttribute describes one attribute inside a vertex buffer.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   int
}

// VertexLayout describes one vertex buffer slot of a pipeline.
type VertexLayout struct {
	Stride      int
	PerInstance bool
	Attributes  []VertexAttribute
}

// ShaderSource holds the shader program for a pipeline. Backends use the
// representation they support; WGSL is the common denominator.
type ShaderSource struct {
	WGSL  string
	SPIRV []uint32

	VertexEntry   string
	FragmentEntry string
}

// PipelineDesc describes a render pipeline.
type PipelineDesc struct {
	Label       string
	Shader      ShaderSource
	Layouts     []BindingLayout
	Vertex      []VertexLayout
	Topology    Topology
	ColorFormat TextureFormat
	Blend       BlendMode
	SampleCount int
}

// PoolDesc describes a descriptor pool.
type PoolDesc struct {
	Label   string
	MaxSets int
	PerType DescriptorCounts
}

// PassDesc describes a render pass.
type PassDesc struct {
	Label string

	// Target is the color attachment. Nil renders to the device surface.
	Target Texture

	Load  LoadAction
	Clear Color
}

// Binding is one resource written into a descriptor set.
type Binding struct {
	Binding uint32
	Type    DescriptorType

	Buffer Buffer
	Offset int
	// Size is the bound range in bytes. Zero binds to the end of the buffer.
	Size int

	Texture Texture
	Sampler Sampler
}

// FrameInfo identifies the frame a submission belongs to.
type FrameInfo struct {
	// ID is the unique, strictly increasing frame id.
	ID uint32

	// Slot is the working frame slot in [0, Frames).
	Slot int

	// Frames is the number of frames in flight.
	Frames int
}

// Device is an opened backend.
//
// A Device is used from a single goroutine: the one that owns the renderer.
type Device interface {
	// API returns the backend name the device was opened with.
	API() string

	// Caps returns the device limits.
	Caps() Caps

	NewBuffer(desc BufferDesc) (Buffer, error)
	NewTexture(desc TextureDesc) (Texture, error)
	NewSampler(desc SamplerDesc) (Sampler, error)
	NewBindingLayout(label string, entries []BindingLayoutEntry) (BindingLayout, error)
	NewPipeline(desc PipelineDesc) (Pipeline, error)
	NewDescriptorPool(desc PoolDesc) (DescriptorPool, error)

	// BeginPass starts recording a render pass.
	BeginPass(desc PassDesc) (Pass, error)

	// Submit queues command buffers in order. See the package documentation
	// for the completion guarantee on return.
	Submit(cmds []CommandBuffer, frame FrameInfo) error

	// Surface returns the default color target used by passes without an
	// explicit target, sized by Resize.
	Surface() Texture

	// Resize (re)creates the surface with the given size.
	Resize(width, height int) error

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Release destroys the device. The device must not be used afterwards.
	Release()

	// SetLogger configures logging for the device.
	SetLogger(l *slog.Logger)
}

// Buffer is a native GPU buffer.
type Buffer interface {
	// Size returns the size in bytes.
	Size() int

	// Write copies data into the buffer at offset (in bytes).
	Write(offset int, data []byte) error

	Destroy()
}

// Texture is a native 2D texture.
type Texture interface {
	Width() int
	Height() int
	Format() TextureFormat

	// Write uploads a full image with the given row pitch in bytes.
	Write(pixels []byte, bytesPerRow int) error

	Destroy()
}

// Sampler is a native sampler.
type Sampler interface {
	Destroy()
}

// BindingLayout is a native descriptor set layout.
type BindingLayout interface {
	Entries() []BindingLayoutEntry
	Destroy()
}

// Pipeline is a native render pipeline.
type Pipeline interface {
	Destroy()
}

// DescriptorPool is a fixed-capacity native descriptor pool.
type DescriptorPool interface {
	// Allocate allocates one set per layout. It fails with ErrFragmentedPool
	// or ErrOutOfPoolMemory when the pool cannot serve the request.
	Allocate(layouts []BindingLayout) ([]DescriptorSet, error)

	// Free returns sets previously allocated from this pool.
	Free(sets []DescriptorSet) error

	Destroy()
}

// DescriptorSet is a native descriptor set.
type DescriptorSet interface {
	// Write replaces the resources bound to the set. Callers only write a
	// set whose previous use by the GPU has retired.
	Write(bindings []Binding) error
}

// Pass records the commands of one render pass.
type Pass interface {
	SetPipeline(p Pipeline)
	SetDescriptorSet(index int, set DescriptorSet)
	SetVertexBuffer(slot int, b Buffer, offset int)
	SetIndexBuffer(b Buffer, format IndexFormat, offset int)
	SetViewport(r image.Rectangle)
	SetScissor(r image.Rectangle)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)
	DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)

	// End finishes recording and returns the command buffer.
	End() (CommandBuffer, error)
}

// CommandBuffer is a finished, not yet submitted, command sequence.
type CommandBuffer interface {
	// Discard releases a command buffer that will not be submitted.
	Discard()
}
