// Package disposal defers destruction of native GPU resources until the
// GPU can no longer reference them.
package disposal

// Disposable is a native resource with a destroy step.
type Disposable interface {
	Destroy()
}

// Func adapts a plain function to Disposable.
type Func func()

// Destroy calls f.
func (f Func) Destroy() { f() }

type entry struct {
	frame uint32
	res   Disposable
}

// Queue holds resources waiting for their frame to retire.
//
// A resource deferred during frame F is destroyed by the first Drain whose
// completed frame is at least F+N, where N is the queue lag (the number of
// frames in flight). Entries are destroyed in the order they were deferred.
//
// Queue is NOT safe for concurrent use. Cross-goroutine disposal goes
// through the renderer mailbox, which runs on the owning goroutine.
type Queue struct {
	lag     uint32
	entries []entry
	// destroyed counts entries destroyed over the queue lifetime.
	destroyed int
}

// New creates a queue that holds each resource for lag frames.
// A lag below 1 is clamped to 1.
func New(lag int) *Queue {
	if lag < 1 {
		lag = 1
	}
	return &Queue{lag: uint32(lag)}
}

// Defer queues res for destruction. frame is the unique id of the frame
// during which the resource was last usable. A nil res is ignored.
func (q *Queue) Defer(frame uint32, res Disposable) {
	if res == nil {
		return
	}
	q.entries = append(q.entries, entry{frame: frame, res: res})
}

// DeferFunc queues fn to run once frame has retired.
func (q *Queue) DeferFunc(frame uint32, fn func()) {
	if fn == nil {
		return
	}
	q.Defer(frame, Func(fn))
}

// Drain destroys every entry whose frame plus the lag is at most completed,
// and returns the number of entries destroyed.
func (q *Queue) Drain(completed uint32) int {
	n := 0
	for n < len(q.entries) && q.entries[n].frame+q.lag <= completed {
		n++
	}
	if n == 0 {
		return 0
	}
	ready := q.entries[:n]
	for i := range ready {
		ready[i].res.Destroy()
		ready[i].res = nil
	}
	q.entries = append(q.entries[:0], q.entries[n:]...)
	q.destroyed += n
	return n
}

// Flush destroys every entry regardless of frame. It is only safe once the
// device is idle.
func (q *Queue) Flush() int {
	n := len(q.entries)
	for i := range q.entries {
		q.entries[i].res.Destroy()
		q.entries[i].res = nil
	}
	q.entries = q.entries[:0]
	q.destroyed += n
	return n
}

// Len returns the number of resources waiting for destruction.
func (q *Queue) Len() int { return len(q.entries) }

// Lag returns the number of frames each resource is held.
func (q *Queue) Lag() int { return int(q.lag) }

// Destroyed returns the number of resources destroyed so far.
func (q *Queue) Destroyed() int { return q.destroyed }
