// Package driver defines the narrow contract every rhi backend implements.
//
// The rhi package owns the frame protocol (frame slots, commit state,
// descriptor pooling, deferred disposal). A backend only translates plain
// requests into native API calls: create a buffer, write bytes, record a
// draw, submit command buffers. Nothing in this package knows about frames
// beyond the FrameInfo passed to Submit.
//
// # Backend Registration
//
// Backends register a factory from an init function and are selected by
// name at runtime:
//
//	import _ "github.com/gogpu/rhi/backend/hal"
//
//	dev, err := driver.Open("hal")
//
// Default opens the first registered backend in priority order
// (hal, webgpu, soft).
//
// # Submission Contract
//
// Submit is the only synchronization point. When Submit for frame F returns,
// the GPU has finished every command buffer submitted for frames up to and
// including F+1-Frames, so the slot used by frame F+1 may be rewritten and
// resources retired Frames frames ago may be destroyed.
package driver
