package rhi

import (
	"log/slog"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/frame"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	// Best available registered backend, 3 frames in flight
//	r, err := rhi.New()
//
//	// Explicit backend and deeper pipelining
//	r, err := rhi.New(rhi.WithBackend("hal"), rhi.WithFramesInFlight(4))
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	backend        string
	device         driver.Device
	framesInFlight int
	poolSets       int
	poolPerType    int
	logger         *slog.Logger
	surfaceWidth   int
	surfaceHeight  int
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		backend:        "", // Will use driver.Default if empty
		framesInFlight: frame.DefaultFramesInFlight,
		poolSets:       512,
		poolPerType:    512,
	}
}

// WithBackend selects a registered backend by name ("hal", "webgpu",
// "soft"). The backend package must be imported for its registration.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithDevice uses an already opened device instead of the registry.
// The renderer takes ownership and releases the device on Release.
//
// Example:
//
//	dev := soft.New()
//	r, err := rhi.New(rhi.WithDevice(dev))
func WithDevice(dev driver.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithFramesInFlight sets the number of frame slots. Values below 1 are
// clamped to 1.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

// WithDescriptorPoolSize sets the capacity of every descriptor pool the
// renderer creates: sets per pool and descriptors of each type per pool.
func WithDescriptorPoolSize(sets, perType int) Option {
	return func(o *options) {
		o.poolSets = sets
		o.poolPerType = perType
	}
}

// WithLogger sets the renderer logger. It is propagated to the device.
// Without it the renderer uses Logger() at creation time.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSurfaceSize sizes the device surface at creation, as if Resize was
// called before the first frame.
func WithSurfaceSize(width, height int) Option {
	return func(o *options) {
		o.surfaceWidth = width
		o.surfaceHeight = height
	}
}
