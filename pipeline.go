package rhi

import (
	"fmt"

	"github.com/gogpu/rhi/driver"
)

// Pipeline topologies and blend modes.
const (
	TopologyTriangleList  = driver.TopologyTriangleList
	TopologyTriangleStrip = driver.TopologyTriangleStrip
	TopologyLineList      = driver.TopologyLineList
	TopologyPointList     = driver.TopologyPointList

	BlendNone          = driver.BlendNone
	BlendPremultiplied = driver.BlendPremultiplied
	BlendAlpha         = driver.BlendAlpha
	BlendAdditive      = driver.BlendAdditive
)

// BindingLayout is the layout of one descriptor set: the reflected binding
// metadata of a shader, consumed as-is.
type BindingLayout struct {
	r        *Renderer
	label    string
	native   driver.BindingLayout
	entries  []BindingLayoutEntry
	counts   driver.DescriptorCounts
	disposed bool
}

// CreateBindingLayout creates a descriptor set layout from reflected
// binding entries.
func (r *Renderer) CreateBindingLayout(label string, entries ...BindingLayoutEntry) (*BindingLayout, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	seen := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if e.Type >= driver.NumDescriptorTypes {
			return nil, fmt.Errorf("%w: binding %d has type %v", ErrInvalidState, e.Binding, e.Type)
		}
		if seen[e.Binding] {
			return nil, fmt.Errorf("%w: binding %d declared twice", ErrInvalidState, e.Binding)
		}
		seen[e.Binding] = true
	}
	if label == "" {
		label = r.label("layout")
	}
	native, err := r.dev.NewBindingLayout(label, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: binding layout %s: %w", ErrAllocationFailure, label, err)
	}
	l := &BindingLayout{
		r:       r,
		label:   label,
		native:  native,
		entries: append([]BindingLayoutEntry(nil), entries...),
		counts:  driver.Counts(entries),
	}
	r.track(l)
	return l, nil
}

// Entries returns the binding entries of the layout.
func (l *BindingLayout) Entries() []BindingLayoutEntry { return l.entries }

// Dispose queues the layout for destruction. Dispose is idempotent.
func (l *BindingLayout) Dispose() { l.dispose() }

func (l *BindingLayout) dispose() {
	if l.disposed {
		return
	}
	l.disposed = true
	l.r.deferDestroy(l.native)
	l.r.untrack(l)
}

func (l *BindingLayout) entry(binding uint32) (BindingLayoutEntry, int, bool) {
	for i, e := range l.entries {
		if e.Binding == binding {
			return e, i, true
		}
	}
	return BindingLayoutEntry{}, -1, false
}

// PipelineDesc describes a render pipeline.
type PipelineDesc struct {
	Label  string
	Shader ShaderSource

	// Layouts are the descriptor set layouts, indexed by set number.
	Layouts []*BindingLayout

	// Vertex describes the vertex buffer slots.
	Vertex []VertexLayout

	Topology driver.Topology
	Blend    driver.BlendMode

	// ColorFormat is the format of the pass target, see
	// Renderer.SurfaceFormat.
	ColorFormat TextureFormat
}

// Pipeline is a render pipeline.
type Pipeline struct {
	r        *Renderer
	label    string
	native   driver.Pipeline
	layouts  []*BindingLayout
	vertex   []VertexLayout
	disposed bool
}

// CreatePipeline creates a render pipeline.
func (r *Renderer) CreatePipeline(desc PipelineDesc) (*Pipeline, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if desc.Shader.WGSL == "" && len(desc.Shader.SPIRV) == 0 {
		return nil, fmt.Errorf("%w: pipeline %s has no shader source", ErrInvalidState, desc.Label)
	}
	layouts := make([]driver.BindingLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		if l == nil {
			return nil, fmt.Errorf("%w: pipeline %s: nil layout %d", ErrInvalidState, desc.Label, i)
		}
		if err := r.checkOwner(l.r, "binding layout "+l.label); err != nil {
			return nil, err
		}
		if l.disposed {
			return nil, fmt.Errorf("%w: binding layout %s disposed", ErrInvalidState, l.label)
		}
		layouts[i] = l.native
	}
	if desc.Label == "" {
		desc.Label = r.label("pipeline")
	}
	native, err := r.dev.NewPipeline(driver.PipelineDesc{
		Label:       desc.Label,
		Shader:      desc.Shader,
		Layouts:     layouts,
		Vertex:      desc.Vertex,
		Topology:    desc.Topology,
		ColorFormat: desc.ColorFormat,
		Blend:       desc.Blend,
		SampleCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline %s: %w", ErrAllocationFailure, desc.Label, err)
	}
	p := &Pipeline{
		r:       r,
		label:   desc.Label,
		native:  native,
		layouts: append([]*BindingLayout(nil), desc.Layouts...),
		vertex:  append([]VertexLayout(nil), desc.Vertex...),
	}
	r.track(p)
	return p, nil
}

// Dispose queues the pipeline for destruction. Dispose is idempotent.
func (p *Pipeline) Dispose() { p.dispose() }

func (p *Pipeline) dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	p.r.deferDestroy(p.native)
	p.r.untrack(p)
}
