// Package transient provides a per-frame free list for short-lived helper
// objects.
package transient

// Resetter is implemented by objects that can be cleared for reuse.
type Resetter interface {
	Reset()
}

// Pool hands out objects for the duration of one frame.
//
// Objects obtained with Get stay live until the next call to Reset, which
// returns every one of them to the free list at once. Unlike [sync.Pool],
// objects are never dropped behind the caller's back, so pointers handed
// out during a frame remain valid (and distinct) until Reset.
//
// Usage:
//
//	pool := transient.New(func() *scratch { return new(scratch) })
//	s := pool.Get()
//	// use s for the rest of the frame...
//	pool.Reset() // once per frame, after submission
//
// Pool is NOT safe for concurrent use.
type Pool[T Resetter] struct {
	newFn func() T
	free  []T
	live  []T
	// allocated counts objects created by newFn over the pool lifetime.
	allocated int
}

// New creates a pool that creates objects with newFn when the free list is
// empty.
func New[T Resetter](newFn func() T) *Pool[T] {
	return &Pool[T]{newFn: newFn}
}

// Get returns a reset object from the free list, creating one if needed.
func (p *Pool[T]) Get() T {
	var obj T
	if n := len(p.free); n > 0 {
		obj = p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
	} else {
		obj = p.newFn()
		p.allocated++
	}
	obj.Reset()
	p.live = append(p.live, obj)
	return obj
}

// Reset returns every object handed out since the previous Reset to the
// free list.
func (p *Pool[T]) Reset() {
	for i, obj := range p.live {
		obj.Reset()
		p.free = append(p.free, obj)
		var zero T
		p.live[i] = zero
	}
	p.live = p.live[:0]
}

// Warmup pre-allocates count objects into the free list.
func (p *Pool[T]) Warmup(count int) {
	for i := 0; i < count; i++ {
		p.free = append(p.free, p.newFn())
		p.allocated++
	}
}

// Live returns the number of objects handed out this frame.
func (p *Pool[T]) Live() int { return len(p.live) }

// Allocated returns the number of objects ever created by the pool.
func (p *Pool[T]) Allocated() int { return p.allocated }
