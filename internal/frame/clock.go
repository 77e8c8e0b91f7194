// Package frame tracks the rotating working-frame slot and the unique frame
// identifier shared by every frames-in-flight resource.
package frame

import "fmt"

// DefaultFramesInFlight is the number of frame slots used when none is
// configured.
const DefaultFramesInFlight = 3

// Clock tracks the working frame slot in [0, N) and a strictly increasing
// unique frame identifier.
//
// The identifier starts at 1 so that a zero-valued "last frame" field in a
// resource never matches the current frame.
//
// Clock is NOT safe for concurrent use. It is read and advanced only by the
// goroutine that owns the renderer.
type Clock struct {
	frames  int
	working int
	id      uint32
}

// NewClock returns a clock with the given number of frame slots.
// Values below 1 are clamped to 1.
func NewClock(frames int) *Clock {
	if frames < 1 {
		frames = 1
	}
	return &Clock{frames: frames, id: 1}
}

// Frames returns the number of frame slots (frames in flight).
func (c *Clock) Frames() int { return c.frames }

// WorkingFrame returns the slot currently writable by the CPU.
func (c *Clock) WorkingFrame() int { return c.working }

// UniqueFrameID returns the identifier of the current present cycle.
func (c *Clock) UniqueFrameID() uint32 { return c.id }

// Advance moves to the next present cycle. It is called exactly once per
// present.
func (c *Clock) Advance() {
	c.id++
	c.working = (c.working + 1) % c.frames
}

// Previous returns the slot used by the frame before the given slot.
func (c *Clock) Previous(slot int) int {
	return (slot + c.frames - 1) % c.frames
}

// String returns a human-readable representation of the clock state.
func (c *Clock) String() string {
	return fmt.Sprintf("Clock[slot %d/%d, frame %d]", c.working, c.frames, c.id)
}
