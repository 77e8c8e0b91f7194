// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"

	"github.com/gogpu/rhi/driver"
)

// DescriptorPool enforces set and per-type capacity like a native pool.
type DescriptorPool struct {
	dev       *Device
	desc      driver.PoolDesc
	usedSets  int
	used      driver.DescriptorCounts
	destroyed bool
}

// Allocate allocates one set per layout, or fails with
// driver.ErrOutOfPoolMemory.
func (p *DescriptorPool) Allocate(layouts []driver.BindingLayout) ([]driver.DescriptorSet, error) {
	if p.destroyed {
		return nil, fmt.Errorf("soft: allocate from destroyed pool %q", p.desc.Label)
	}
	var need driver.DescriptorCounts
	for _, l := range layouts {
		need = need.Add(driver.Counts(l.Entries()))
	}
	if p.usedSets+len(layouts) > p.desc.MaxSets || !p.desc.PerType.Fits(p.used, need) {
		return nil, fmt.Errorf("%w: pool %q", driver.ErrOutOfPoolMemory, p.desc.Label)
	}
	sets := make([]driver.DescriptorSet, len(layouts))
	for i, l := range layouts {
		sets[i] = &DescriptorSet{pool: p, layout: l, counts: driver.Counts(l.Entries())}
	}
	p.usedSets += len(layouts)
	p.used = p.used.Add(need)
	return sets, nil
}

// Free returns sets to the pool.
func (p *DescriptorPool) Free(sets []driver.DescriptorSet) error {
	for i, s := range sets {
		ds, ok := s.(*DescriptorSet)
		if !ok || ds.pool != p {
			return fmt.Errorf("soft: set %d does not belong to pool %q", i, p.desc.Label)
		}
		if ds.freed {
			return fmt.Errorf("soft: set %d freed twice", i)
		}
	}
	for _, s := range sets {
		ds := s.(*DescriptorSet)
		ds.freed = true
		p.usedSets--
		p.used = p.used.Sub(ds.counts)
	}
	return nil
}

// Destroy frees the pool.
func (p *DescriptorPool) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.dev.live.Pools--
}

// UsedSets returns the number of sets currently allocated.
func (p *DescriptorPool) UsedSets() int { return p.usedSets }

// DescriptorSet records the bindings written to it.
type DescriptorSet struct {
	pool     *DescriptorPool
	layout   driver.BindingLayout
	counts   driver.DescriptorCounts
	bindings []driver.Binding
	writes   int
	freed    bool
}

// Write replaces the recorded bindings after checking them against the
// layout.
func (s *DescriptorSet) Write(bindings []driver.Binding) error {
	if s.freed {
		return fmt.Errorf("soft: write to freed descriptor set")
	}
	for _, b := range bindings {
		entry, ok := findEntry(s.layout.Entries(), b.Binding)
		if !ok {
			return fmt.Errorf("soft: binding %d not in layout", b.Binding)
		}
		if entry.Type != b.Type {
			return fmt.Errorf("soft: binding %d is %v, got %v", b.Binding, entry.Type, b.Type)
		}
		switch {
		case b.Type.IsBuffer() && b.Buffer == nil,
			b.Type.IsTexture() && b.Texture == nil,
			b.Type == driver.DescriptorSampler && b.Sampler == nil:
			return fmt.Errorf("soft: binding %d has no %v resource", b.Binding, b.Type)
		}
	}
	s.bindings = append(s.bindings[:0], bindings...)
	s.writes++
	return nil
}

// Bindings returns the bindings of the last Write.
func (s *DescriptorSet) Bindings() []driver.Binding { return s.bindings }

// Writes returns the number of successful writes.
func (s *DescriptorSet) Writes() int { return s.writes }

// Freed reports whether the set was returned to its pool.
func (s *DescriptorSet) Freed() bool { return s.freed }

func findEntry(entries []driver.BindingLayoutEntry, binding uint32) (driver.BindingLayoutEntry, bool) {
	for _, e := range entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return driver.BindingLayoutEntry{}, false
}
