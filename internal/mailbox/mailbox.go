// Package mailbox runs closures posted from arbitrary goroutines on the one
// goroutine that owns a backend's command-recording context.
package mailbox

import (
	"errors"
	"sync"
)

// ErrClosed is returned when posting to a closed mailbox.
var ErrClosed = errors.New("mailbox: closed")

// Mailbox queues actions for the owning goroutine.
//
// Other goroutines either Post an action and continue, or Invoke it and
// block until the owner has run it. The owner calls Drain once per frame and
// whenever it needs pending actions applied before reusing a handle.
//
// Invoke must never be called from the owning goroutine: the owner is the
// only one that drains, so it would wait forever.
type Mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending []func()
	// posted and done count actions ever queued and ever run. An Invoke
	// caller holding ticket t waits until done >= t.
	posted uint64
	done   uint64
	closed bool
}

// New creates an empty mailbox.
func New() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Post queues fn and returns immediately.
func (m *Mailbox) Post(fn func()) error {
	_, err := m.enqueue(fn)
	return err
}

// Invoke queues fn and blocks until the owning goroutine has run it.
func (m *Mailbox) Invoke(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.pending = append(m.pending, fn)
	m.posted++
	ticket := m.posted
	for m.done < ticket {
		m.cond.Wait()
	}
	return nil
}

func (m *Mailbox) enqueue(fn func()) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.pending = append(m.pending, fn)
	m.posted++
	return m.posted, nil
}

// Drain runs every queued action on the calling goroutine and wakes blocked
// Invoke callers. Actions posted while draining run in the next Drain.
// It returns the number of actions run.
func (m *Mailbox) Drain() int {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range batch {
		if fn != nil {
			fn()
		}
	}

	if len(batch) > 0 {
		m.mu.Lock()
		m.done += uint64(len(batch))
		m.cond.Broadcast()
		m.mu.Unlock()
	}
	return len(batch)
}

// Pending returns the number of actions waiting to run.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close drains the remaining actions and rejects new ones.
// It must be called from the owning goroutine.
func (m *Mailbox) Close() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.closed = true
			m.cond.Broadcast()
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.Drain()
	}
}
