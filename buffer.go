package rhi

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/rhi/driver"
)

// BufferRef is a buffer that can be referenced by an encoder or a
// descriptor set. It is implemented by *StaticBuffer[T] and
// *StreamingBuffer[T].
type BufferRef interface {
	// Commit freezes the buffer contents for the current frame.
	Commit()

	owner() *Renderer
	elementSize() int
	// drawable returns the number of elements readable by the GPU in the
	// current frame.
	drawable() int
	// native returns the native buffer for the working frame slot.
	native() (driver.Buffer, error)
	name() string
}

// sizeOf returns the size of T in bytes.
func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// asBytes reinterprets the first count elements of data as raw bytes.
func asBytes[T any](data []T, count int) []byte {
	if count == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), count*sizeOf[T]())
}

// checkWrite validates a write of count elements taken from data.
func checkWrite[T any](data []T, count int) error {
	if count < 0 || count > len(data) {
		return fmt.Errorf("%w: count %d with %d elements provided", ErrOutOfRange, count, len(data))
	}
	return nil
}

// newNativeBuffer allocates a buffer holding count elements of size elem.
func (r *Renderer) newNativeBuffer(label string, usage BufferUsage, elem, count int) (driver.Buffer, error) {
	size := elem * count
	if caps := r.dev.Caps(); caps.MaxBufferSize > 0 && size > caps.MaxBufferSize {
		return nil, fmt.Errorf("%w: buffer %s of %d bytes exceeds device limit %d",
			ErrOutOfRange, label, size, caps.MaxBufferSize)
	}
	buf, err := r.dev.NewBuffer(driver.BufferDesc{
		Label: label,
		Size:  size,
		Usage: usage | driver.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: buffer %s: %w", ErrAllocationFailure, label, err)
	}
	return buf, nil
}

// StaticBuffer is a typed buffer written once and frozen when first
// referenced by an encoder.
//
// State machine:
//
//	Empty ──Allocate──► Allocated ──Set──► Allocated
//	                        │
//	                  Commit / first bind
//	                        ▼
//	                    Committed ──Dispose──► Disposed
//
// Set and Allocate fail with ErrInvalidState once committed.
type StaticBuffer[T any] struct {
	r     *Renderer
	label string
	usage BufferUsage

	buf       driver.Buffer
	count     int
	committed bool
	disposed  bool
}

// NewStaticBuffer creates a static buffer. A positive count allocates the
// backing storage immediately.
func NewStaticBuffer[T any](r *Renderer, usage BufferUsage, count int) (*StaticBuffer[T], error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if sizeOf[T]() == 0 {
		return nil, fmt.Errorf("%w: zero-sized element type", ErrInvalidState)
	}
	b := &StaticBuffer[T]{r: r, label: r.label("static"), usage: usage}
	if count > 0 {
		if err := b.Allocate(count); err != nil {
			return nil, err
		}
	}
	r.track(b)
	return b, nil
}

// Allocate replaces the backing storage with room for count elements.
// Previous contents are lost.
func (b *StaticBuffer[T]) Allocate(count int) error {
	if err := b.writable(); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%w: count %d", ErrOutOfRange, count)
	}
	if b.buf != nil {
		// Never referenced by an encoder while uncommitted.
		b.buf.Destroy()
		b.buf = nil
	}
	b.count = 0
	if count == 0 {
		return nil
	}
	buf, err := b.r.newNativeBuffer(b.label, b.usage, sizeOf[T](), count)
	if err != nil {
		return err
	}
	b.buf = buf
	b.count = count
	return nil
}

// Set writes data starting at element offset.
func (b *StaticBuffer[T]) Set(offset int, data []T) error {
	return b.SetN(offset, data, len(data))
}

// SetN writes the first count elements of data starting at element offset.
func (b *StaticBuffer[T]) SetN(offset int, data []T, count int) error {
	if err := b.writable(); err != nil {
		return err
	}
	if err := checkWrite(data, count); err != nil {
		return err
	}
	if offset < 0 || offset > b.count-count {
		return fmt.Errorf("%w: write %d elements at %d into %d elements", ErrOutOfRange, count, offset, b.count)
	}
	if count == 0 {
		return nil
	}
	if err := b.buf.Write(offset*sizeOf[T](), asBytes(data, count)); err != nil {
		return fmt.Errorf("rhi: write %s: %w", b.label, err)
	}
	return nil
}

// Commit freezes the contents. It is idempotent.
func (b *StaticBuffer[T]) Commit() { b.committed = true }

// Committed reports whether the contents are frozen.
func (b *StaticBuffer[T]) Committed() bool { return b.committed }

// Len returns the number of elements allocated.
func (b *StaticBuffer[T]) Len() int { return b.count }

// Native returns the backing native buffer, or nil when unallocated.
func (b *StaticBuffer[T]) Native() driver.Buffer { return b.buf }

// Dispose queues the backing storage for destruction after the frames that
// may reference it have retired. Dispose is idempotent.
func (b *StaticBuffer[T]) Dispose() { b.dispose() }

func (b *StaticBuffer[T]) dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	if b.buf != nil {
		b.r.deferDestroy(b.buf)
		b.buf = nil
	}
	b.r.untrack(b)
}

func (b *StaticBuffer[T]) writable() error {
	switch {
	case b.disposed:
		return fmt.Errorf("%w: static buffer %s disposed", ErrInvalidState, b.label)
	case b.committed:
		return fmt.Errorf("%w: static buffer %s is committed", ErrInvalidState, b.label)
	}
	return nil
}

func (b *StaticBuffer[T]) owner() *Renderer { return b.r }
func (b *StaticBuffer[T]) elementSize() int { return sizeOf[T]() }
func (b *StaticBuffer[T]) drawable() int    { return b.count }
func (b *StaticBuffer[T]) name() string     { return b.label }

func (b *StaticBuffer[T]) native() (driver.Buffer, error) {
	switch {
	case b.disposed:
		return nil, fmt.Errorf("%w: static buffer %s disposed", ErrInvalidState, b.label)
	case b.buf == nil:
		return nil, fmt.Errorf("%w: static buffer %s has no storage", ErrInvalidState, b.label)
	}
	return b.buf, nil
}

// streamSlot is the storage of a streaming buffer for one frame slot.
type streamSlot struct {
	buf      driver.Buffer
	capacity int
}

// StreamingBuffer is a typed buffer rewritten every frame. It keeps one
// native buffer per frame slot so the CPU writes the working slot while the
// GPU reads the others.
//
// Per frame the buffer must be Set (or Allocated) before it is Added to,
// and it is frozen for the rest of the frame when committed. Drawing with a
// streaming buffer that was not Set in the current frame fails with
// ErrCommitFailure.
//
// Slot storage is created lazily the first time a slot is written.
type StreamingBuffer[T any] struct {
	r     *Renderer
	label string
	usage BufferUsage

	slots    []streamSlot
	capacity int
	head     int

	setFrame       uint32
	committedFrame uint32
	disposed       bool
}

// NewStreamingBuffer creates a streaming buffer with room for capacity
// elements per frame slot.
func NewStreamingBuffer[T any](r *Renderer, usage BufferUsage, capacity int) (*StreamingBuffer[T], error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if sizeOf[T]() == 0 {
		return nil, fmt.Errorf("%w: zero-sized element type", ErrInvalidState)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrOutOfRange, capacity)
	}
	b := &StreamingBuffer[T]{
		r:        r,
		label:    r.label("streaming"),
		usage:    usage,
		slots:    make([]streamSlot, r.clock.Frames()),
		capacity: capacity,
	}
	r.track(b)
	return b, nil
}

// Allocate sets the per-slot capacity and starts the current frame with no
// elements. The working slot is resized if its capacity differs.
func (b *StreamingBuffer[T]) Allocate(capacity int) error {
	if err := b.writable(); err != nil {
		return err
	}
	if capacity < 0 {
		return fmt.Errorf("%w: capacity %d", ErrOutOfRange, capacity)
	}
	b.capacity = capacity
	if err := b.sizeWorkingSlot(); err != nil {
		return err
	}
	b.head = 0
	b.setFrame = b.r.clock.UniqueFrameID()
	return nil
}

// Set replaces the contents of the current frame with data, growing the
// capacity if needed.
func (b *StreamingBuffer[T]) Set(data []T) error {
	return b.SetN(data, len(data))
}

// SetN replaces the contents of the current frame with the first count
// elements of data.
func (b *StreamingBuffer[T]) SetN(data []T, count int) error {
	if err := b.writable(); err != nil {
		return err
	}
	if err := checkWrite(data, count); err != nil {
		return err
	}
	if count > b.capacity {
		b.capacity = count
	}
	if err := b.sizeWorkingSlot(); err != nil {
		return err
	}
	if err := b.write(0, data, count); err != nil {
		return err
	}
	b.head = count
	b.setFrame = b.r.clock.UniqueFrameID()
	return nil
}

// Add appends data after the elements written this frame.
func (b *StreamingBuffer[T]) Add(data []T) error {
	return b.AddN(data, len(data))
}

// AddN appends the first count elements of data. It fails with
// ErrInvalidState unless the buffer was Set this frame and with
// ErrOutOfRange when the slot capacity would be exceeded.
func (b *StreamingBuffer[T]) AddN(data []T, count int) error {
	if err := b.writable(); err != nil {
		return err
	}
	if id := b.r.clock.UniqueFrameID(); b.setFrame != id {
		return fmt.Errorf("%w: streaming buffer %s: Add before Set in frame %d", ErrInvalidState, b.label, id)
	}
	if err := checkWrite(data, count); err != nil {
		return err
	}
	slot := &b.slots[b.r.clock.WorkingFrame()]
	if b.head+count > slot.capacity {
		return fmt.Errorf("%w: streaming buffer %s: add %d elements at %d exceeds capacity %d",
			ErrOutOfRange, b.label, count, b.head, slot.capacity)
	}
	if err := b.write(b.head, data, count); err != nil {
		return err
	}
	b.head += count
	return nil
}

// Commit freezes the contents for the rest of the current frame. It is
// idempotent within a frame.
func (b *StreamingBuffer[T]) Commit() {
	b.committedFrame = b.r.clock.UniqueFrameID()
}

// Committed reports whether the buffer was committed in the current frame.
func (b *StreamingBuffer[T]) Committed() bool {
	return b.committedFrame == b.r.clock.UniqueFrameID()
}

// NumElementsThisFrame returns the number of elements written in the
// current frame, zero if the buffer was not Set this frame.
func (b *StreamingBuffer[T]) NumElementsThisFrame() int {
	if b.setFrame != b.r.clock.UniqueFrameID() {
		return 0
	}
	return b.head
}

// Capacity returns the per-slot capacity in elements.
func (b *StreamingBuffer[T]) Capacity() int { return b.capacity }

// NativeSlot returns the native buffer backing frame slot i, or nil when
// the slot was never written.
func (b *StreamingBuffer[T]) NativeSlot(i int) driver.Buffer {
	if i < 0 || i >= len(b.slots) {
		return nil
	}
	return b.slots[i].buf
}

// Dispose queues the storage of every slot for destruction after the
// frames that may reference it have retired. Dispose is idempotent.
func (b *StreamingBuffer[T]) Dispose() { b.dispose() }

func (b *StreamingBuffer[T]) dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	for i := range b.slots {
		if b.slots[i].buf != nil {
			b.r.deferDestroy(b.slots[i].buf)
		}
		b.slots[i] = streamSlot{}
	}
	b.r.untrack(b)
}

func (b *StreamingBuffer[T]) writable() error {
	switch {
	case b.disposed:
		return fmt.Errorf("%w: streaming buffer %s disposed", ErrInvalidState, b.label)
	case b.Committed():
		return fmt.Errorf("%w: streaming buffer %s is committed for frame %d",
			ErrInvalidState, b.label, b.r.clock.UniqueFrameID())
	}
	return nil
}

// sizeWorkingSlot makes the working slot hold exactly b.capacity elements.
// The slot's previous storage was last read by a frame that has retired or
// is retiring, so it goes through deferred disposal.
func (b *StreamingBuffer[T]) sizeWorkingSlot() error {
	slot := &b.slots[b.r.clock.WorkingFrame()]
	if slot.capacity == b.capacity && (slot.buf != nil || b.capacity == 0) {
		return nil
	}
	if slot.buf != nil {
		b.r.deferDestroy(slot.buf)
		*slot = streamSlot{}
	}
	if b.capacity == 0 {
		return nil
	}
	buf, err := b.r.newNativeBuffer(b.label, b.usage, sizeOf[T](), b.capacity)
	if err != nil {
		return err
	}
	*slot = streamSlot{buf: buf, capacity: b.capacity}
	return nil
}

func (b *StreamingBuffer[T]) write(at int, data []T, count int) error {
	if count == 0 {
		return nil
	}
	slot := b.slots[b.r.clock.WorkingFrame()]
	if err := slot.buf.Write(at*sizeOf[T](), asBytes(data, count)); err != nil {
		return fmt.Errorf("rhi: write %s: %w", b.label, err)
	}
	return nil
}

func (b *StreamingBuffer[T]) owner() *Renderer { return b.r }
func (b *StreamingBuffer[T]) elementSize() int { return sizeOf[T]() }
func (b *StreamingBuffer[T]) drawable() int    { return b.NumElementsThisFrame() }
func (b *StreamingBuffer[T]) name() string     { return b.label }

func (b *StreamingBuffer[T]) native() (driver.Buffer, error) {
	if b.disposed {
		return nil, fmt.Errorf("%w: streaming buffer %s disposed", ErrInvalidState, b.label)
	}
	id := b.r.clock.UniqueFrameID()
	if b.setFrame != id {
		return nil, fmt.Errorf("%w: streaming buffer %s was not set in frame %d", ErrCommitFailure, b.label, id)
	}
	slot := b.slots[b.r.clock.WorkingFrame()]
	if slot.buf == nil {
		return nil, fmt.Errorf("%w: streaming buffer %s has no storage", ErrInvalidState, b.label)
	}
	return slot.buf, nil
}
