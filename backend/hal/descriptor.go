// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/driver"
)

// DescriptorPool accounts for descriptor sets against a fixed capacity.
// HAL bind groups carry their own storage, so the pool never fragments.
type DescriptorPool struct {
	dev      *Device
	desc     driver.PoolDesc
	usedSets int
	used     driver.DescriptorCounts
	sets     map[*DescriptorSet]struct{}
}

// Allocate allocates one set per layout, or fails with
// driver.ErrOutOfPoolMemory.
func (p *DescriptorPool) Allocate(layouts []driver.BindingLayout) ([]driver.DescriptorSet, error) {
	var need driver.DescriptorCounts
	hl := make([]*BindingLayout, len(layouts))
	for i, l := range layouts {
		bl, ok := l.(*BindingLayout)
		if !ok || bl.dev != p.dev {
			return nil, fmt.Errorf("hal: pool %q: layout %d is not from this device", p.desc.Label, i)
		}
		hl[i] = bl
		need = need.Add(driver.Counts(bl.entries))
	}
	if p.usedSets+len(layouts) > p.desc.MaxSets || !p.desc.PerType.Fits(p.used, need) {
		return nil, fmt.Errorf("%w: pool %q", driver.ErrOutOfPoolMemory, p.desc.Label)
	}
	if p.sets == nil {
		p.sets = make(map[*DescriptorSet]struct{})
	}
	out := make([]driver.DescriptorSet, len(layouts))
	for i, l := range hl {
		s := &DescriptorSet{pool: p, layout: l, counts: driver.Counts(l.entries)}
		p.sets[s] = struct{}{}
		out[i] = s
	}
	p.usedSets += len(layouts)
	p.used = p.used.Add(need)
	return out, nil
}

// Free destroys the sets' bind groups and returns their capacity.
func (p *DescriptorPool) Free(sets []driver.DescriptorSet) error {
	for i, s := range sets {
		ds, ok := s.(*DescriptorSet)
		if !ok || ds.pool != p {
			return fmt.Errorf("hal: set %d does not belong to pool %q", i, p.desc.Label)
		}
		if _, live := p.sets[ds]; !live {
			return fmt.Errorf("hal: set %d freed twice", i)
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

// Destroy destroys every bind group still allocated from the pool.
func (p *DescriptorPool) Destroy() {
	for s := range p.sets {
		s.release()
	}
	p.sets = nil
	p.usedSets = 0
	p.used = driver.DescriptorCounts{}
}

// DescriptorSet is a HAL bind group that is recreated on every write.
type DescriptorSet struct {
	pool   *DescriptorPool
	layout *BindingLayout
	counts driver.DescriptorCounts
	group  hal.BindGroup
}

// Write creates a bind group for the bindings and destroys the previous
// one. The caller guarantees the previous group is no longer in use.
func (s *DescriptorSet) Write(bindings []driver.Binding) error {
	if s.layout.raw == nil {
		return fmt.Errorf("hal: write to set of destroyed layout %q", s.layout.label)
	}
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		e, err := bindGroupEntry(b)
		if err != nil {
			return fmt.Errorf("hal: layout %q: %w", s.layout.label, err)
		}
		entries[i] = e
	}
	dev := s.pool.dev
	group, err := dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   s.layout.label + "_set",
		Layout:  s.layout.raw,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("hal: create bind group for %q: %w", s.layout.label, err)
	}
	s.release()
	s.group = group
	return nil
}

func (s *DescriptorSet) release() {
	if s.group != nil {
		s.pool.dev.device.DestroyBindGroup(s.group)
		s.group = nil
	}
}

func bindGroupEntry(b driver.Binding) (gputypes.BindGroupEntry, error) {
	e := gputypes.BindGroupEntry{Binding: b.Binding}
	switch {
	case b.Type.IsBuffer():
		buf, ok := b.Buffer.(*Buffer)
		if !ok || buf.raw == nil {
			return e, fmt.Errorf("binding %d: not a live hal buffer", b.Binding)
		}
		e.Resource = gputypes.BufferBinding{
			Buffer: buf.raw.NativeHandle(),
			Offset: uint64(b.Offset),
			Size:   uint64(b.Size),
		}
	case b.Type.IsTexture():
		tex, ok := b.Texture.(*Texture)
		if !ok || tex.view == nil {
			return e, fmt.Errorf("binding %d: not a live hal texture", b.Binding)
		}
		e.Resource = gputypes.TextureViewBinding{
			TextureView: tex.view.NativeHandle(),
		}
	case b.Type == driver.DescriptorSampler:
		smp, ok := b.Sampler.(*Sampler)
		if !ok || smp.raw == nil {
			return e, fmt.Errorf("binding %d: not a live hal sampler", b.Binding)
		}
		e.Resource = gputypes.SamplerBinding{
			Sampler: smp.raw.NativeHandle(),
		}
	default:
		return e, fmt.Errorf("%w: binding %d of type %v", driver.ErrUnsupported, b.Binding, b.Type)
	}
	return e, nil
}
