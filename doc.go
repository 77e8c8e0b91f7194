// Package rhi provides a backend-agnostic explicit graphics API.
//
// # Overview
//
// rhi exposes one programming surface (buffers, textures, pipelines, passes)
// implemented on top of several native GPU APIs. Application code issues GPU
// work without backend-specific logic, and never sees a fence: CPU-side code
// mutates buffers and descriptor sets while the GPU is still consuming work
// from previous frames, and the renderer keeps the two from racing.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/rhi"
//		_ "github.com/gogpu/rhi/backend/hal"
//	)
//
//	r, err := rhi.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Release()
//
//	verts, _ := rhi.NewStaticBuffer[Vertex](r, rhi.BufferUsageVertex, 3)
//	_ = verts.Set(0, triangle)
//
//	for running {
//		enc, _ := r.CreatePassEncoder(rhi.PassDesc{Clear: &rhi.Color{A: 1}})
//		_ = enc.SetPipeline(pipeline, rhi.Bindings{Vertex: []rhi.BufferRef{verts}})
//		_ = enc.Draw(3, 1, 0, 0)
//		_ = r.Present(1.0 / 60)
//	}
//
// # Frame Protocol
//
// The renderer keeps N frames in flight (3 by default). Every resource that
// changes per frame has N physical copies, one per frame slot. The working
// slot rotates once per Present, and a 32-bit unique frame id increases by
// one per Present.
//
// Static buffers are written once. The first time an encoder references a
// static buffer it is committed, and every later write fails with
// ErrInvalidState.
//
// Streaming buffers are rewritten every frame into the working slot:
//
//	Allocate/Set -> Add... -> Commit (implicit at SetPipeline) -> Present
//
// Once a streaming buffer is committed in a frame, Set, Add and Allocate fail
// with ErrInvalidState until the next Present. Drawing with a streaming
// buffer that was not Set this frame fails with ErrCommitFailure.
//
// Resources are released with Dispose. The native objects are destroyed N
// frames later, once no in-flight command buffer can reference them.
//
// # Threading
//
// A Renderer and everything created from it are used from one goroutine.
// Other goroutines hand work to that goroutine with Post (fire and forget)
// or Invoke (block until it ran); the renderer runs posted work at Present
// and on Sync.
//
// # Backends
//
// Backends live under backend/ and register themselves on import:
//   - backend/hal: gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES, noop)
//   - backend/webgpu: wgpu-native through cogentcore/webgpu
//   - backend/soft: CPU reference device, used for tests
package rhi
