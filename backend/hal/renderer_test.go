// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal_test

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend/hal"
)

const quadShader = `
struct Uniforms {
    offset: vec2<f32>,
    pad: vec2<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;

@vertex
fn vs_main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos + u.offset, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.5, 0.0, 1.0);
}
`

func newNoopRenderer(t *testing.T, opts ...hal.Option) *rhi.Renderer {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	t.Cleanup(instance.Destroy)
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(openDev.Device.Destroy)

	dev, err := hal.NewFromDevice(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		t.Fatalf("NewFromDevice: %v", err)
	}
	r, err := rhi.New(rhi.WithDevice(dev), rhi.WithSurfaceSize(64, 64))
	if err != nil {
		t.Fatalf("rhi.New: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

// TestRendererFrames drives the full frame protocol on the HAL noop device.
func TestRendererFrames(t *testing.T) {
	for _, spirv := range []bool{false, true} {
		name := "wgsl"
		var opts []hal.Option
		if spirv {
			name = "spirv"
			opts = append(opts, hal.WithSPIRV())
		}
		t.Run(name, func(t *testing.T) {
			r := newNoopRenderer(t, opts...)

			layout, err := r.CreateBindingLayout("quad", rhi.BindingLayoutEntry{
				Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.StageVertex,
			})
			if err != nil {
				t.Fatalf("CreateBindingLayout: %v", err)
			}
			pipeline, err := r.CreatePipeline(rhi.PipelineDesc{
				Label:   "quad",
				Shader:  rhi.ShaderSource{WGSL: quadShader, VertexEntry: "vs_main", FragmentEntry: "fs_main"},
				Layouts: []*rhi.BindingLayout{layout},
				Vertex: []rhi.VertexLayout{{
					Stride:     8,
					Attributes: []rhi.VertexAttribute{{Location: 0, Format: rhi.VertexFloat32x2}},
				}},
				ColorFormat: r.SurfaceFormat(),
			})
			if err != nil {
				t.Fatalf("CreatePipeline: %v", err)
			}
			uniform, err := rhi.NewStreamingBuffer[[4]float32](r, rhi.BufferUsageUniform, 1)
			if err != nil {
				t.Fatal(err)
			}
			set, err := r.CreateDescriptorSet(layout)
			if err != nil {
				t.Fatal(err)
			}
			if err := set.BindBuffer(0, uniform); err != nil {
				t.Fatal(err)
			}
			verts, err := rhi.NewStaticBuffer[[2]float32](r, rhi.BufferUsageVertex, 3)
			if err != nil {
				t.Fatal(err)
			}
			if err := verts.Set(0, [][2]float32{{0, 0}, {1, 0}, {0, 1}}); err != nil {
				t.Fatal(err)
			}

			for frame := 0; frame < 5; frame++ {
				if err := uniform.Set([][4]float32{{float32(frame) * 0.1, 0, 0, 0}}); err != nil {
					t.Fatalf("frame %d: Set: %v", frame, err)
				}
				enc, err := r.CreatePassEncoder(rhi.PassDesc{Label: "quad", Clear: &rhi.Color{A: 1}})
				if err != nil {
					t.Fatalf("frame %d: CreatePassEncoder: %v", frame, err)
				}
				if err := enc.SetPipeline(pipeline, rhi.Bindings{
					Sets:   []*rhi.DescriptorSet{set},
					Vertex: []rhi.BufferRef{verts},
				}); err != nil {
					t.Fatalf("frame %d: SetPipeline: %v", frame, err)
				}
				if err := enc.Draw(3, 1, 0, 0); err != nil {
					t.Fatalf("frame %d: Draw: %v", frame, err)
				}
				if err := r.Present(0); err != nil {
					t.Fatalf("frame %d: Present: %v", frame, err)
				}
			}

			if got := r.UniqueFrameID(); got != 6 {
				t.Errorf("UniqueFrameID() = %d, want 6", got)
			}
			st := r.Stats()
			if st.DescriptorSetsUsed != r.FramesInFlight() {
				t.Errorf("descriptor sets used = %d, want one per frame slot (%d)", st.DescriptorSetsUsed, r.FramesInFlight())
			}
		})
	}
}

func TestRendererBackendName(t *testing.T) {
	r := newNoopRenderer(t)
	if got := r.Backend(); got != "hal" {
		t.Errorf("Backend() = %q, want %q", got, "hal")
	}
	if got := r.SurfaceSize(); got.X != 64 || got.Y != 64 {
		t.Errorf("SurfaceSize() = %v, want (64,64)", got)
	}
}
