package rhi

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/rhi/backend/soft"
)

const testShader = `
@group(0) @binding(0) var<uniform> offset: vec2<f32>;

@vertex
fn vs_main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos + offset, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

// testScene is a pipeline with one uniform set and one vertex buffer.
type testScene struct {
	layout   *BindingLayout
	pipeline *Pipeline
	uniform  *StreamingBuffer[[2]float32]
	set      *DescriptorSet
	verts    *StaticBuffer[vertex]
}

func newTestScene(t *testing.T, r *Renderer) *testScene {
	t.Helper()
	var s testScene
	var err error
	s.layout, err = r.CreateBindingLayout("scene", BindingLayoutEntry{
		Binding: 0, Type: DescriptorUniformBuffer, Stages: StageVertex,
	})
	if err != nil {
		t.Fatalf("CreateBindingLayout: %v", err)
	}
	s.pipeline, err = r.CreatePipeline(PipelineDesc{
		Label:   "scene",
		Shader:  ShaderSource{WGSL: testShader, VertexEntry: "vs_main", FragmentEntry: "fs_main"},
		Layouts: []*BindingLayout{s.layout},
		Vertex: []VertexLayout{{
			Stride:     8,
			Attributes: []VertexAttribute{{Location: 0}},
		}},
		ColorFormat: r.SurfaceFormat(),
	})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	s.uniform, err = NewStreamingBuffer[[2]float32](r, BufferUsageUniform, 1)
	if err != nil {
		t.Fatal(err)
	}
	s.set, err = r.CreateDescriptorSet(s.layout)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.set.BindBuffer(0, s.uniform); err != nil {
		t.Fatalf("BindBuffer: %v", err)
	}
	s.verts, err = NewStaticBuffer[vertex](r, BufferUsageVertex, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.verts.Set(0, []vertex{{0, 0}, {1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	return &s
}

func (s *testScene) bindings() Bindings {
	return Bindings{Sets: []*DescriptorSet{s.set}, Vertex: []BufferRef{s.verts}}
}

func TestEncoderDrawWithoutPipeline(t *testing.T) {
	r, _ := newTestRenderer(t)
	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if got := enc.State(); got != EncoderCreated {
		t.Errorf("State() = %v, want Created", got)
	}
	if err := enc.Draw(3, 1, 0, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Draw without pipeline error = %v, want ErrInvalidState", err)
	}
}

func TestEncoderSetPipelineCommits(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)
	if err := s.uniform.Set([][2]float32{{0.5, 0.5}}); err != nil {
		t.Fatal(err)
	}

	enc, err := r.CreatePassEncoder(PassDesc{Clear: &Color{A: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); err != nil {
		t.Fatalf("SetPipeline: %v", err)
	}
	if enc.State() != EncoderRecording {
		t.Errorf("State() = %v, want Recording", enc.State())
	}
	if !s.verts.Committed() {
		t.Error("vertex buffer not committed by SetPipeline")
	}
	if !s.uniform.Committed() {
		t.Error("uniform buffer in descriptor set not committed by SetPipeline")
	}
	if err := s.uniform.Set([][2]float32{{1, 1}}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Set of bound streaming buffer error = %v, want ErrInvalidState", err)
	}
}

func TestEncoderRecordsDraws(t *testing.T) {
	r, dev := newTestRenderer(t)
	s := newTestScene(t, r)
	if err := s.uniform.Set([][2]float32{{0.5, 0.5}}); err != nil {
		t.Fatal(err)
	}

	enc, err := r.CreatePassEncoder(PassDesc{Label: "main", Clear: &Color{R: 1, A: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); err != nil {
		t.Fatal(err)
	}
	if err := enc.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := enc.Draw(3, 2, 0, 0); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if enc.Draws() != 2 {
		t.Errorf("Draws() = %d, want 2", enc.Draws())
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}

	subs := dev.Submissions()
	if len(subs) != 1 || len(subs[0].Commands) != 1 {
		t.Fatalf("submissions = %+v", subs)
	}
	cb := subs[0].Commands[0]
	var ops []soft.Op
	for _, c := range cb.Commands {
		ops = append(ops, c.Op)
	}
	want := []soft.Op{
		soft.OpSetPipeline,
		soft.OpSetVertexBuffer,
		soft.OpSetDescriptorSet,
		soft.OpDraw,
		soft.OpDraw,
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d = %v, want %v", i, ops[i], want[i])
		}
	}
	if draws := cb.Draws(); draws[1].Args[1] != 2 {
		t.Errorf("second draw instances = %d, want 2", draws[1].Args[1])
	}
	if px := dev.Surface().(*soft.Texture).Pixels(); px[0] != 0xff || px[1] != 0 {
		t.Errorf("surface not cleared to red: %v", px[:4])
	}
}

func TestEncoderCommitFailure(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); err != nil {
		t.Fatal(err)
	}
	if err := enc.Draw(3, 1, 0, 0); !errors.Is(err, ErrCommitFailure) {
		t.Errorf("Draw with unset streaming buffer error = %v, want ErrCommitFailure", err)
	}
}

func TestEncoderStreamingContentFromEarlierFrame(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)
	if err := s.uniform.Set([][2]float32{{0, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); err != nil {
		t.Fatal(err)
	}
	if err := enc.Draw(3, 1, 0, 0); !errors.Is(err, ErrCommitFailure) {
		t.Errorf("Draw with buffer set in previous frame error = %v, want ErrCommitFailure", err)
	}
}

func TestEncoderFinish(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	if enc.State() != EncoderFinished {
		t.Errorf("State() = %v, want Finished", enc.State())
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetPipeline after Finish error = %v, want ErrInvalidState", err)
	}
	if err := enc.SetScissor(0, 0, 1, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetScissor after Finish error = %v, want ErrInvalidState", err)
	}
	if err := r.Present(0); err != nil {
		t.Fatalf("Present: %v", err)
	}
}

func TestEncoderStaleAfterPresent(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}
	// The next encoder reuses the pooled recorder.
	next, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.SetPipeline(s.pipeline, s.bindings()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetPipeline on stale encoder error = %v, want ErrInvalidState", err)
	}
	if err := enc.Finish(); err != nil {
		t.Errorf("Finish on stale encoder: %v", err)
	}
	if next.State() != EncoderCreated {
		t.Errorf("stale Finish changed the new encoder to %v", next.State())
	}
	if got := enc.CurrentDynamicScissor(); got != (image.Rectangle{}) {
		t.Errorf("stale CurrentDynamicScissor() = %v", got)
	}
}

func TestEncoderDynamicState(t *testing.T) {
	r, _ := newTestRenderer(t)
	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	full := image.Rect(0, 0, soft.DefaultSurfaceWidth, soft.DefaultSurfaceHeight)
	if got := enc.CurrentDynamicScissor(); got != full {
		t.Errorf("default scissor = %v, want %v", got, full)
	}
	if got := enc.CurrentDynamicViewport(); got != full {
		t.Errorf("default viewport = %v, want %v", got, full)
	}

	if err := enc.SetScissor(1, 2, 3, 4); err != nil {
		t.Fatal(err)
	}
	if err := enc.SetViewport(5, 6, 7, 8); err != nil {
		t.Fatal(err)
	}
	if got, want := enc.CurrentDynamicScissor(), image.Rect(1, 2, 4, 6); got != want {
		t.Errorf("scissor = %v, want %v", got, want)
	}
	if got, want := enc.CurrentDynamicViewport(), image.Rect(5, 6, 12, 14); got != want {
		t.Errorf("viewport = %v, want %v", got, want)
	}
	if err := enc.SetScissor(0, 0, -1, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative scissor error = %v, want ErrOutOfRange", err)
	}
}

func TestEncoderTargetTexture(t *testing.T) {
	r, _ := newTestRenderer(t)

	sampled, err := r.CreateTexture(TextureDesc{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreatePassEncoder(PassDesc{Target: sampled}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("pass into sampled-only texture error = %v, want ErrInvalidState", err)
	}

	target, err := r.CreateTexture(TextureDesc{Width: 8, Height: 2, Usage: TextureUsageRenderTarget})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := r.CreatePassEncoder(PassDesc{Target: target, Clear: &Color{G: 1, A: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := enc.CurrentDynamicViewport(), image.Rect(0, 0, 8, 2); got != want {
		t.Errorf("viewport = %v, want %v", got, want)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}
	px := target.Native().(*soft.Texture).Pixels()
	if px[0] != 0 || px[1] != 0xff {
		t.Errorf("target not cleared to green: %v", px[:4])
	}
	if target.Committed() {
		t.Error("render target committed by pass")
	}
}

func TestEncoderOrdering(t *testing.T) {
	r, dev := newTestRenderer(t)

	a, err := r.CreatePassEncoder(PassDesc{Label: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreatePassEncoder(PassDesc{Label: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreatePassEncoder(PassDesc{Label: "c", Before: a}); err != nil {
		t.Fatal(err)
	}
	if a.State() != EncoderFinished {
		t.Errorf("previous encoder state = %v, want Finished", a.State())
	}
	if got := r.Stats().OpenEncoders; got != 3 {
		t.Errorf("OpenEncoders = %d, want 3", got)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}

	cmds := dev.Submissions()[0].Commands
	var labels []string
	for _, c := range cmds {
		labels = append(labels, c.Label)
	}
	want := []string{"c", "a", "b"}
	if len(labels) != len(want) {
		t.Fatalf("submitted %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("submitted %v, want %v", labels, want)
			break
		}
	}
	if got := r.Stats().OpenEncoders; got != 0 {
		t.Errorf("OpenEncoders after Present = %d, want 0", got)
	}
}

func TestEncoderBeforeStaleEncoder(t *testing.T) {
	r, _ := newTestRenderer(t)
	a, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreatePassEncoder(PassDesc{Before: a}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Before stale encoder error = %v, want ErrInvalidState", err)
	}
}

func TestEncoderDrawIndexed(t *testing.T) {
	r, dev := newTestRenderer(t)
	s := newTestScene(t, r)
	if err := s.uniform.Set([][2]float32{{0, 0}}); err != nil {
		t.Fatal(err)
	}
	indices, err := NewStreamingBuffer[uint16](r, BufferUsageIndex, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := indices.Set([]uint16{0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	wide, err := NewStaticBuffer[[3]byte](r, BufferUsageIndex, 3)
	if err != nil {
		t.Fatal(err)
	}

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); err != nil {
		t.Fatal(err)
	}
	if err := enc.DrawIndexed(indices, 3, 1, 0, 0, 0); err != nil {
		t.Fatalf("DrawIndexed: %v", err)
	}
	if !indices.Committed() {
		t.Error("index buffer not committed by DrawIndexed")
	}
	if err := enc.DrawIndexed(indices, 3, 1, 1, 0, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("DrawIndexed past written indices error = %v, want ErrOutOfRange", err)
	}
	if err := enc.DrawIndexed(wide, 3, 1, 0, 0, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("DrawIndexed with 3-byte indices error = %v, want ErrInvalidState", err)
	}
	if err := r.Present(0); err != nil {
		t.Fatal(err)
	}

	var sawIndex bool
	for _, c := range dev.Submissions()[0].Commands[0].Commands {
		if c.Op == soft.OpSetIndexBuffer {
			sawIndex = true
			if c.IndexFormat.Size() != 2 {
				t.Errorf("index format = %v, want Uint16", c.IndexFormat)
			}
		}
	}
	if !sawIndex {
		t.Error("no index buffer bound")
	}
}

func TestEncoderDrawIndexedWithoutPipeline(t *testing.T) {
	r, _ := newTestRenderer(t)
	unset, err := NewStreamingBuffer[uint16](r, BufferUsageIndex, 3)
	if err != nil {
		t.Fatal(err)
	}
	written, err := NewStreamingBuffer[uint16](r, BufferUsageIndex, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := written.Set([]uint16{0, 1, 2}); err != nil {
		t.Fatal(err)
	}

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	for _, idx := range []*StreamingBuffer[uint16]{unset, written} {
		if err := enc.DrawIndexed(idx, 3, 1, 0, 0, 0); !errors.Is(err, ErrInvalidState) {
			t.Errorf("DrawIndexed without pipeline error = %v, want ErrInvalidState", err)
		}
		if idx.Committed() {
			t.Error("rejected DrawIndexed committed the index buffer")
		}
	}
	if err := unset.Set([]uint16{0, 1, 2}); err != nil {
		t.Errorf("Set after rejected DrawIndexed: %v", err)
	}
	if err := written.Add([]uint16{2, 1, 0}); err != nil {
		t.Errorf("Add after rejected DrawIndexed: %v", err)
	}
}

func TestEncoderPipelineMismatch(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := newTestScene(t, r)

	enc, err := r.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		b    Bindings
	}{
		{"missing set", Bindings{Vertex: []BufferRef{s.verts}}},
		{"missing vertex", Bindings{Sets: []*DescriptorSet{s.set}}},
		{"nil set", Bindings{Sets: []*DescriptorSet{nil}, Vertex: []BufferRef{s.verts}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := enc.SetPipeline(s.pipeline, tt.b); !errors.Is(err, ErrInvalidState) {
				t.Errorf("SetPipeline error = %v, want ErrInvalidState", err)
			}
		})
	}
	if err := enc.SetPipeline(nil, Bindings{}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetPipeline(nil) error = %v, want ErrInvalidState", err)
	}
}

func TestEncoderIncompatibleBackend(t *testing.T) {
	r1, _ := newTestRenderer(t)
	r2, _ := newTestRenderer(t)
	s := newTestScene(t, r1)

	enc, err := r2.CreatePassEncoder(PassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.SetPipeline(s.pipeline, s.bindings()); !errors.Is(err, ErrIncompatibleBackend) {
		t.Errorf("SetPipeline across renderers error = %v, want ErrIncompatibleBackend", err)
	}
	other, err := NewStaticBuffer[uint16](r1, BufferUsageIndex, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.DrawIndexed(other, 3, 1, 0, 0, 0); !errors.Is(err, ErrIncompatibleBackend) {
		t.Errorf("DrawIndexed across renderers error = %v, want ErrIncompatibleBackend", err)
	}
	tex, err := r1.CreateTexture(TextureDesc{Width: 1, Height: 1, Usage: TextureUsageRenderTarget})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r2.CreatePassEncoder(PassDesc{Target: tex}); !errors.Is(err, ErrIncompatibleBackend) {
		t.Errorf("pass into foreign texture error = %v, want ErrIncompatibleBackend", err)
	}
}
