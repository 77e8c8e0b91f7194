// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

// DescriptorPool tracks bind group capacity for one pool. wgpu-native
// has no pool object, so exhaustion is reported by this accounting alone.
type DescriptorPool struct {
	dev      *Device
	desc     driver.PoolDesc
	usedSets int
	used     driver.DescriptorCounts
	sets     map[*DescriptorSet]struct{}
}

// Allocate allocates one set per layout.
func (p *DescriptorPool) Allocate(layouts []driver.BindingLayout) ([]driver.DescriptorSet, error) {
	var need driver.DescriptorCounts
	wl := make([]*BindingLayout, len(layouts))
	for i, l := range layouts {
		bl, ok := l.(*BindingLayout)
		if !ok || bl.dev != p.dev {
			return nil, fmt.Errorf("webgpu: pool %q: layout %d is not from this device", p.desc.Label, i)
		}
		wl[i] = bl
		need = need.Add(driver.Counts(bl.entries))
	}
	if p.usedSets+len(layouts) > p.desc.MaxSets || !p.desc.PerType.Fits(p.used, need) {
		return nil, fmt.Errorf("%w: pool %q", driver.ErrOutOfPoolMemory, p.desc.Label)
	}
	if p.sets == nil {
		p.sets = make(map[*DescriptorSet]struct{}, p.desc.MaxSets)
	}
	out := make([]driver.DescriptorSet, len(wl))
	for i, l := range wl {
		s := &DescriptorSet{pool: p, layout: l, counts: driver.Counts(l.entries)}
		p.sets[s] = struct{}{}
		out[i] = s
	}
	p.usedSets += len(wl)
	p.used = p.used.Add(need)
	return out, nil
}

// Free releases the sets' bind groups and returns their capacity.
func (p *DescriptorPool) Free(sets []driver.DescriptorSet) error {
	for i, s := range sets {
		ds, ok := s.(*DescriptorSet)
		if !ok || ds.pool != p {
			return fmt.Errorf("webgpu: set %d does not belong to pool %q", i, p.desc.Label)
		}
		if _, live := p.sets[ds]; !live {
			return fmt.Errorf("webgpu: set %d freed twice", i)
		}
	}
	for _, s := range sets {
		ds := s.(*DescriptorSet)
		ds.release()
		delete(p.sets, ds)
		p.usedSets--
		p.used = p.used.Sub(ds.counts)
	}
	return nil
}

// Destroy releases every bind group still allocated from the pool.
func (p *DescriptorPool) Destroy() {
	for s := range p.sets {
		s.release()
	}
	p.sets = nil
	p.usedSets = 0
	p.used = driver.DescriptorCounts{}
}

// DescriptorSet holds the bind group built by its most recent Write.
type DescriptorSet struct {
	pool   *DescriptorPool
	layout *BindingLayout
	counts driver.DescriptorCounts
	group  *wgpu.BindGroup
}

// Write replaces the set's bind group.
func (s *DescriptorSet) Write(bindings []driver.Binding) error {
	if s.layout.raw == nil {
		return fmt.Errorf("webgpu: write to set of destroyed layout %q", s.layout.label)
	}
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		e, err := bindGroupEntry(b)
		if err != nil {
			return fmt.Errorf("webgpu: layout %q: %w", s.layout.label, err)
		}
		entries[i] = e
	}
	group, err := s.pool.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   s.layout.label + "_set",
		Layout:  s.layout.raw,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create bind group for %q: %w", s.layout.label, err)
	}
	s.release()
	s.group = group
	return nil
}

func (s *DescriptorSet) release() {
	if s.group != nil {
		s.group.Release()
		s.group = nil
	}
}

func bindGroupEntry(b driver.Binding) (wgpu.BindGroupEntry, error) {
	e := wgpu.BindGroupEntry{Binding: b.Binding}
	switch {
	case b.Type.IsBuffer():
		buf, ok := b.Buffer.(*Buffer)
		if !ok || buf.raw == nil {
			return e, fmt.Errorf("binding %d: not a live webgpu buffer", b.Binding)
		}
		e.Buffer = buf.raw
		e.Offset = uint64(b.Offset)
		e.Size = wgpu.WholeSize
		if b.Size > 0 {
			e.Size = uint64(b.Size)
		}
	case b.Type.IsTexture():
		tex, ok := b.Texture.(*Texture)
		if !ok || tex.view == nil {
			return e, fmt.Errorf("binding %d: not a live webgpu texture", b.Binding)
		}
		e.TextureView = tex.view
	case b.Type == driver.DescriptorSampler:
		smp, ok := b.Sampler.(*Sampler)
		if !ok || smp.raw == nil {
			return e, fmt.Errorf("binding %d: not a live webgpu sampler", b.Binding)
		}
		e.Sampler = smp.raw
	default:
		return e, fmt.Errorf("%w: binding %d of type %v", driver.ErrUnsupported, b.Binding, b.Type)
	}
	return e, nil
}
