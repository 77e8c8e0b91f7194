package rhi

import "errors"

// Protocol errors. Every error returned by rhi wraps one of these and can be
// tested with errors.Is. They report programmer errors in the caller and are
// never retried.
var (
	// ErrInvalidState is returned when an operation violates the commit or
	// frame protocol: writing a committed static buffer, modifying a
	// streaming buffer already committed this frame, Add without a Set this
	// frame, drawing without a bound pipeline, using a finished encoder or
	// using a disposed resource or released renderer.
	ErrInvalidState = errors.New("rhi: invalid state")

	// ErrOutOfRange is returned when an offset or count exceeds the
	// allocated capacity.
	ErrOutOfRange = errors.New("rhi: out of range")

	// ErrIncompatibleBackend is returned when a resource created by one
	// renderer is passed to another renderer's encoder or pipeline.
	ErrIncompatibleBackend = errors.New("rhi: incompatible backend")

	// ErrCommitFailure is returned at draw time when a referenced streaming
	// buffer was never populated for the current frame.
	ErrCommitFailure = errors.New("rhi: commit failure")

	// ErrAllocationFailure is returned when a native allocation fails.
	// A mid-frame allocation failure leaves no safe continuation.
	ErrAllocationFailure = errors.New("rhi: allocation failure")
)
