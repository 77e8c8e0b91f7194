package rhi

import (
	"errors"
	"fmt"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/descpool"
)

// slotBinding is the resource bound to one entry of a descriptor set.
type slotBinding struct {
	entry BindingLayoutEntry

	buf    BufferRef
	offset int
	size   int
	tex    *Texture
	smp    *Sampler
}

// setFrame is the native set backing a descriptor set in one frame slot.
type setFrame struct {
	lease   *descpool.Lease
	written []driver.Binding
	// used is the unique id of the last frame the native set was bound in.
	used uint32
}

// DescriptorSet binds buffers, textures and samplers to the entries of a
// BindingLayout.
//
// A DescriptorSet is backed by one native set per frame slot, allocated
// lazily from the descriptor pool manager. At draw time the native set of
// the working slot is rewritten when the native resources it points to
// changed, for example after a streaming buffer was resized. A native set
// that was already bound in the current frame is never rewritten; it is
// retired through deferred disposal and a new one is allocated.
type DescriptorSet struct {
	r        *Renderer
	label    string
	layout   *BindingLayout
	bindings []slotBinding
	frames   []setFrame
	disposed bool
}

// CreateDescriptorSet creates a descriptor set for layout. Every entry of
// the layout must be bound before the set is drawn with.
func (r *Renderer) CreateDescriptorSet(layout *BindingLayout) (*DescriptorSet, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, fmt.Errorf("%w: nil binding layout", ErrInvalidState)
	}
	if err := r.checkOwner(layout.r, "binding layout "+layout.label); err != nil {
		return nil, err
	}
	if layout.disposed {
		return nil, fmt.Errorf("%w: binding layout %s disposed", ErrInvalidState, layout.label)
	}
	s := &DescriptorSet{
		r:        r,
		label:    r.label("descriptor_set"),
		layout:   layout,
		bindings: make([]slotBinding, len(layout.entries)),
		frames:   make([]setFrame, r.clock.Frames()),
	}
	for i, e := range layout.entries {
		s.bindings[i].entry = e
	}
	r.track(s)
	return s, nil
}

// Layout returns the layout of the set.
func (s *DescriptorSet) Layout() *BindingLayout { return s.layout }

// BindBuffer binds the whole of b to a buffer entry.
func (s *DescriptorSet) BindBuffer(binding uint32, b BufferRef) error {
	return s.BindBufferRange(binding, b, 0, 0)
}

// BindBufferRange binds size bytes of b starting at offset bytes. A zero
// size binds to the end of the buffer.
func (s *DescriptorSet) BindBufferRange(binding uint32, b BufferRef, offset, size int) error {
	slot, err := s.slot(binding, "buffer", driver.DescriptorType.IsBuffer)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: nil buffer for binding %d", ErrInvalidState, binding)
	}
	if err := s.r.checkOwner(b.owner(), "buffer "+b.name()); err != nil {
		return err
	}
	if offset < 0 || size < 0 {
		return fmt.Errorf("%w: buffer range offset %d size %d", ErrOutOfRange, offset, size)
	}
	if align := s.r.dev.Caps().MinUniformOffsetAlignment; align > 0 &&
		slot.entry.Type == driver.DescriptorUniformBuffer && offset%align != 0 {
		return fmt.Errorf("%w: uniform offset %d is not aligned to %d", ErrOutOfRange, offset, align)
	}
	slot.buf, slot.offset, slot.size = b, offset, size
	return nil
}

// BindTexture binds t to a texture entry.
func (s *DescriptorSet) BindTexture(binding uint32, t *Texture) error {
	slot, err := s.slot(binding, "texture", driver.DescriptorType.IsTexture)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: nil texture for binding %d", ErrInvalidState, binding)
	}
	if err := s.r.checkOwner(t.r, "texture "+t.desc.Label); err != nil {
		return err
	}
	slot.tex = t
	return nil
}

// BindSampler binds smp to a sampler entry.
func (s *DescriptorSet) BindSampler(binding uint32, smp *Sampler) error {
	slot, err := s.slot(binding, "sampler", func(t driver.DescriptorType) bool {
		return t == driver.DescriptorSampler
	})
	if err != nil {
		return err
	}
	if smp == nil {
		return fmt.Errorf("%w: nil sampler for binding %d", ErrInvalidState, binding)
	}
	if err := s.r.checkOwner(smp.r, "sampler "+smp.label); err != nil {
		return err
	}
	slot.smp = smp
	return nil
}

// Dispose returns the native sets to the pool manager once the frames that
// may reference them have retired. Dispose is idempotent.
func (s *DescriptorSet) Dispose() { s.dispose() }

func (s *DescriptorSet) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	for i := range s.frames {
		s.retire(&s.frames[i])
	}
	s.r.untrack(s)
}

func (s *DescriptorSet) slot(binding uint32, kind string, accepts func(driver.DescriptorType) bool) (*slotBinding, error) {
	if s.disposed {
		return nil, fmt.Errorf("%w: descriptor set %s disposed", ErrInvalidState, s.label)
	}
	_, i, ok := s.layout.entry(binding)
	if !ok {
		return nil, fmt.Errorf("%w: binding %d not in layout %s", ErrInvalidState, binding, s.layout.label)
	}
	if t := s.bindings[i].entry.Type; !accepts(t) {
		return nil, fmt.Errorf("%w: binding %d is %v, not a %s", ErrInvalidState, binding, t, kind)
	}
	return &s.bindings[i], nil
}

// commit freezes every resource reachable from the set.
func (s *DescriptorSet) commit() {
	for _, b := range s.bindings {
		if b.buf != nil {
			b.buf.Commit()
		}
		if b.tex != nil {
			b.tex.Commit()
		}
	}
}

// resolve returns the native set of the working slot pointing at the
// current native resources.
func (s *DescriptorSet) resolve() (driver.DescriptorSet, error) {
	if s.disposed {
		return nil, fmt.Errorf("%w: descriptor set %s disposed", ErrInvalidState, s.label)
	}
	natives, err := s.natives()
	if err != nil {
		return nil, err
	}

	id := s.r.clock.UniqueFrameID()
	f := &s.frames[s.r.clock.WorkingFrame()]
	if f.lease != nil && bindingsEqual(f.written, natives) {
		f.used = id
		return f.lease.Sets[0], nil
	}
	if f.lease != nil && f.used == id {
		s.retire(f)
	}
	if f.lease == nil {
		lease, err := s.r.descriptors.Allocate(
			[]driver.BindingLayout{s.layout.native}, s.layout.counts)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptor set %s: %w", ErrAllocationFailure, s.label, err)
		}
		f.lease = lease
	}
	if err := f.lease.Sets[0].Write(natives); err != nil {
		return nil, fmt.Errorf("rhi: write descriptor set %s: %w", s.label, err)
	}
	f.written = natives
	f.used = id
	return f.lease.Sets[0], nil
}

// natives collects the native resources currently bound to the set.
func (s *DescriptorSet) natives() ([]driver.Binding, error) {
	out := make([]driver.Binding, len(s.bindings))
	for i, b := range s.bindings {
		nb := driver.Binding{Binding: b.entry.Binding, Type: b.entry.Type}
		var err error
		switch {
		case b.entry.Type.IsBuffer():
			if b.buf == nil {
				break
			}
			nb.Buffer, err = b.buf.native()
			nb.Offset, nb.Size = b.offset, b.size
		case b.entry.Type.IsTexture():
			if b.tex == nil {
				break
			}
			nb.Texture, err = b.tex.native()
		default:
			if b.smp == nil {
				break
			}
			nb.Sampler, err = b.smp.native()
		}
		if err != nil {
			return nil, err
		}
		if nb.Buffer == nil && nb.Texture == nil && nb.Sampler == nil {
			return nil, fmt.Errorf("%w: binding %d of descriptor set %s is unbound",
				ErrInvalidState, b.entry.Binding, s.label)
		}
		out[i] = nb
	}
	return out, nil
}

// retire returns a frame's native set to the pool manager after the
// current frame retires.
func (s *DescriptorSet) retire(f *setFrame) {
	if f.lease == nil {
		return
	}
	lease := f.lease
	m, log := s.r.descriptors, s.r.log
	s.r.deferFunc(func() {
		if err := m.Free(lease); err != nil && !errors.Is(err, descpool.ErrDoubleFree) {
			log.Warn("rhi: free descriptor set", "err", err)
		}
	})
	*f = setFrame{}
}

func bindingsEqual(a, b []driver.Binding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
