package rhi

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/descpool"
	"github.com/gogpu/rhi/internal/disposal"
	"github.com/gogpu/rhi/internal/frame"
	"github.com/gogpu/rhi/internal/mailbox"
	"github.com/gogpu/rhi/internal/transient"
)

// resource is implemented by every handle a renderer tracks so that
// Release can dispose what the caller left alive.
type resource interface {
	dispose()
}

// Renderer owns a device and drives the frame protocol.
//
// A Renderer is used from a single goroutine. Other goroutines only call
// Post and Invoke.
//
// Lifecycle:
//  1. Create with New
//  2. Create resources (buffers, textures, pipelines, descriptor sets)
//  3. Per frame: write streaming buffers, record passes, call Present
//  4. Call Release
type Renderer struct {
	dev driver.Device
	log *slog.Logger

	clock       *frame.Clock
	disposal    *disposal.Queue
	descriptors *descpool.Manager
	mailbox     *mailbox.Mailbox
	recorders   *transient.Pool[*recorder]

	encoders encoderList
	// open is the most recently created encoder, force-finished when the
	// next one is created.
	open *recorder

	live     map[resource]struct{}
	nextID   uint64
	presents uint64
	released bool

	lastPresent time.Time
	now         func() time.Time
	sleep       func(time.Duration)
}

// New creates a renderer.
//
// The device comes from WithDevice if given, otherwise from the backend
// named by WithBackend, otherwise from driver.Default.
func New(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev := o.device
	if dev == nil {
		var err error
		if o.backend != "" {
			dev, err = driver.Open(o.backend)
		} else {
			dev, err = driver.Default()
		}
		if err != nil {
			return nil, fmt.Errorf("rhi: open device: %w", err)
		}
	}

	log := o.bindLogger(dev)

	if o.surfaceWidth > 0 && o.surfaceHeight > 0 {
		if err := dev.Resize(o.surfaceWidth, o.surfaceHeight); err != nil {
			dev.Release()
			return nil, fmt.Errorf("rhi: size surface: %w", err)
		}
	}

	clock := frame.NewClock(o.framesInFlight)
	r := &Renderer{
		dev:      dev,
		log:      log,
		clock:    clock,
		disposal: disposal.New(clock.Frames()),
		mailbox:  mailbox.New(),
		live:     make(map[resource]struct{}),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	r.descriptors = descpool.New(dev.NewDescriptorPool, descpool.Config{
		Label:   "rhi_descriptors",
		MaxSets: o.poolSets,
		PerType: driver.Uniform(o.poolPerType),
	}, log)
	r.recorders = transient.New(func() *recorder { return &recorder{} })

	log.Info("rhi: renderer created",
		"backend", dev.API(),
		"frames_in_flight", clock.Frames())
	return r, nil
}

// Backend returns the name of the backend the device was opened with.
func (r *Renderer) Backend() string { return r.dev.API() }

// Device returns the underlying device.
func (r *Renderer) Device() driver.Device { return r.dev }

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int { return r.clock.Frames() }

// WorkingFrame returns the frame slot currently writable by the CPU.
func (r *Renderer) WorkingFrame() int { return r.clock.WorkingFrame() }

// UniqueFrameID returns the id of the current present cycle.
func (r *Renderer) UniqueFrameID() uint32 { return r.clock.UniqueFrameID() }

// SurfaceSize returns the size of the device surface.
func (r *Renderer) SurfaceSize() image.Point {
	s := r.dev.Surface()
	if s == nil {
		return image.Point{}
	}
	return image.Pt(s.Width(), s.Height())
}

// SurfaceFormat returns the pixel format of the device surface.
func (r *Renderer) SurfaceFormat() TextureFormat {
	if s := r.dev.Surface(); s != nil {
		return s.Format()
	}
	return TextureFormatRGBA8Unorm
}

// Resize resizes the device surface. It waits for the device to go idle and
// fails with ErrInvalidState while encoders are recorded for this frame.
func (r *Renderer) Resize(width, height int) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	if r.encoders.len() > 0 {
		return fmt.Errorf("%w: resize with %d encoders recorded this frame", ErrInvalidState, r.encoders.len())
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrOutOfRange, width, height)
	}
	if err := r.dev.WaitIdle(); err != nil {
		return fmt.Errorf("rhi: resize: %w", err)
	}
	if err := r.dev.Resize(width, height); err != nil {
		return fmt.Errorf("rhi: resize: %w", err)
	}
	return nil
}

// Present ends the current frame.
//
// In order, Present runs the work posted to the mailbox, finishes every
// encoder still open, submits all encoders in list order, resets the
// encoder list, destroys the resources whose retirement frame has passed,
// advances the frame clock and recycles per-frame helpers. It then sleeps
// until at least minElapsedSeconds have passed since the previous Present.
//
// Present always advances the frame, even when finishing or submitting an
// encoder failed; the errors are returned joined.
func (r *Renderer) Present(minElapsedSeconds float64) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	r.mailbox.Drain()

	id := r.clock.UniqueFrameID()
	var errs []error
	cmds := make([]driver.CommandBuffer, 0, r.encoders.len())
	for _, rec := range r.encoders.items {
		if err := rec.finish(); err != nil {
			errs = append(errs, err)
			continue
		}
		cmds = append(cmds, rec.cmd)
	}

	info := driver.FrameInfo{ID: id, Slot: r.clock.WorkingFrame(), Frames: r.clock.Frames()}
	if err := r.dev.Submit(cmds, info); err != nil {
		errs = append(errs, fmt.Errorf("rhi: submit frame %d: %w", id, err))
	}
	r.encoders.reset()
	r.open = nil

	if n := r.disposal.Drain(id); n > 0 {
		r.log.Debug("rhi: disposed resources", "frame", id, "count", n)
	}
	r.clock.Advance()
	r.recorders.Reset()
	r.presents++

	r.pace(minElapsedSeconds)
	return errors.Join(errs...)
}

// pace sleeps until minElapsedSeconds have passed since the last Present.
func (r *Renderer) pace(minElapsedSeconds float64) {
	now := r.now()
	if minElapsedSeconds > 0 && !r.lastPresent.IsZero() {
		target := r.lastPresent.Add(time.Duration(minElapsedSeconds * float64(time.Second)))
		if wait := target.Sub(now); wait > 0 {
			r.sleep(wait)
			now = target
		}
	}
	r.lastPresent = now
}

// Post queues fn to run on the renderer goroutine at the next Present or
// Sync. It never blocks and is safe to call from any goroutine.
func (r *Renderer) Post(fn func()) error {
	if err := r.mailbox.Post(fn); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return nil
}

// Invoke queues fn and blocks until the renderer goroutine has run it.
// It must not be called from the renderer goroutine.
func (r *Renderer) Invoke(fn func()) error {
	if err := r.mailbox.Invoke(fn); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return nil
}

// Sync runs the work posted to the mailbox now. It returns the number of
// actions run.
func (r *Renderer) Sync() int {
	return r.mailbox.Drain()
}

// Stats is a snapshot of the renderer bookkeeping.
type Stats struct {
	Frame          uint32
	Slot           int
	FramesInFlight int
	Presents       uint64

	// OpenEncoders is the number of encoders recorded this frame.
	OpenEncoders int

	// PendingDisposal is the number of native resources waiting for their
	// frame to retire.
	PendingDisposal int
	Disposed        int

	DescriptorPools        int
	DescriptorSetsUsed     int
	DescriptorSetsCapacity int
	FragmentationSkips     int

	LiveResources int
}

// String returns a human-readable string of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("Renderer[frame %d slot %d/%d, %d encoders, %d pending disposal, %d/%d descriptor sets in %d pools]",
		s.Frame, s.Slot, s.FramesInFlight, s.OpenEncoders, s.PendingDisposal,
		s.DescriptorSetsUsed, s.DescriptorSetsCapacity, s.DescriptorPools)
}

// Stats returns a snapshot of the renderer bookkeeping.
func (r *Renderer) Stats() Stats {
	ds := r.descriptors.Stats()
	return Stats{
		Frame:                  r.clock.UniqueFrameID(),
		Slot:                   r.clock.WorkingFrame(),
		FramesInFlight:         r.clock.Frames(),
		Presents:               r.presents,
		OpenEncoders:           r.encoders.len(),
		PendingDisposal:        r.disposal.Len(),
		Disposed:               r.disposal.Destroyed(),
		DescriptorPools:        ds.Pools,
		DescriptorSetsUsed:     ds.UsedSets,
		DescriptorSetsCapacity: ds.CapacitySets,
		FragmentationSkips:     ds.Skipped,
		LiveResources:          len(r.live),
	}
}

// Release disposes every live resource, waits for the device to go idle,
// destroys everything and releases the device. Encoders still open are
// discarded without submission. Release is idempotent.
func (r *Renderer) Release() {
	if r.released {
		return
	}
	r.mailbox.Close()

	for _, rec := range r.encoders.items {
		rec.discard()
	}
	r.encoders.reset()
	r.open = nil
	r.recorders.Reset()

	if err := r.dev.WaitIdle(); err != nil {
		r.log.Warn("rhi: wait idle on release", "err", err)
	}

	live := make([]resource, 0, len(r.live))
	for res := range r.live {
		live = append(live, res)
	}
	for _, res := range live {
		res.dispose()
	}
	n := r.disposal.Flush()
	r.descriptors.Destroy()
	r.dev.Release()
	r.released = true

	r.log.Info("rhi: renderer released", "backend", r.dev.API(), "disposed", n)
}

func (r *Renderer) checkLive() error {
	if r.released {
		return fmt.Errorf("%w: renderer released", ErrInvalidState)
	}
	return nil
}

// checkOwner reports ErrIncompatibleBackend when a handle created by another
// renderer crosses into this one.
func (r *Renderer) checkOwner(owner *Renderer, what string) error {
	if owner == r {
		return nil
	}
	other := "unknown"
	if owner != nil {
		other = owner.Backend()
	}
	return fmt.Errorf("%w: %s created by a %s renderer used with a %s renderer",
		ErrIncompatibleBackend, what, other, r.Backend())
}

func (r *Renderer) track(res resource)   { r.live[res] = struct{}{} }
func (r *Renderer) untrack(res resource) { delete(r.live, res) }

// deferDestroy queues a native object for destruction once the current
// frame has retired.
func (r *Renderer) deferDestroy(d disposal.Disposable) {
	r.disposal.Defer(r.clock.UniqueFrameID(), d)
}

func (r *Renderer) deferFunc(fn func()) {
	r.disposal.DeferFunc(r.clock.UniqueFrameID(), fn)
}

func (r *Renderer) label(kind string) string {
	r.nextID++
	return fmt.Sprintf("%s_%d", kind, r.nextID)
}
