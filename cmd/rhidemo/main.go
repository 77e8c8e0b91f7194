// Command rhidemo draws a textured quad for a number of frames on a chosen
// backend and prints the renderer statistics.
package main

import (
	"flag"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/rhi"
	_ "github.com/gogpu/rhi/backend/hal"
	_ "github.com/gogpu/rhi/backend/soft"
	_ "github.com/gogpu/rhi/backend/webgpu"
	"github.com/gogpu/rhi/driver"
)

const shader = `
struct Uniforms {
    offset: vec2<f32>,
    scale: vec2<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var smp: sampler;

struct VertexOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.pos = vec4<f32>(pos * u.scale + u.offset, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return textureSample(tex, smp, in.uv);
}
`

type vertex struct {
	Pos [2]float32
	UV  [2]float32
}

type uniforms struct {
	Offset [2]float32
	Scale  [2]float32
}

func main() {
	var (
		backend  = flag.String("backend", "", "backend name (hal, webgpu, soft); empty picks the best available")
		frames   = flag.Int("frames", 120, "number of frames to render")
		inFlight = flag.Int("inflight", 3, "frames in flight")
		fps      = flag.Float64("fps", 60, "frame rate cap, 0 disables pacing")
		width    = flag.Int("width", 800, "surface width")
		height   = flag.Int("height", 600, "surface height")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	log.Printf("available backends: %v", driver.Available())

	r, err := rhi.New(
		rhi.WithBackend(*backend),
		rhi.WithFramesInFlight(*inFlight),
		rhi.WithSurfaceSize(*width, *height),
	)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Release()

	if err := run(r, *frames, *fps); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
	log.Printf("%s: %s", r.Backend(), r.Stats())
}

func run(r *rhi.Renderer, frames int, fps float64) error {
	layout, err := r.CreateBindingLayout("quad",
		rhi.BindingLayoutEntry{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.StageVertex},
		rhi.BindingLayoutEntry{Binding: 1, Type: rhi.DescriptorSampledTexture, Stages: rhi.StageFragment},
		rhi.BindingLayoutEntry{Binding: 2, Type: rhi.DescriptorSampler, Stages: rhi.StageFragment},
	)
	if err != nil {
		return err
	}
	pipeline, err := r.CreatePipeline(rhi.PipelineDesc{
		Label:   "quad",
		Shader:  rhi.ShaderSource{WGSL: shader, VertexEntry: "vs_main", FragmentEntry: "fs_main"},
		Layouts: []*rhi.BindingLayout{layout},
		Vertex: []rhi.VertexLayout{{
			Stride: 16,
			Attributes: []rhi.VertexAttribute{
				{Location: 0, Format: rhi.VertexFloat32x2},
				{Location: 1, Offset: 8, Format: rhi.VertexFloat32x2},
			},
		}},
		Topology:    rhi.TopologyTriangleStrip,
		Blend:       rhi.BlendPremultiplied,
		ColorFormat: r.SurfaceFormat(),
	})
	if err != nil {
		return err
	}

	quad, err := rhi.NewStaticBuffer[vertex](r, rhi.BufferUsageVertex, 4)
	if err != nil {
		return err
	}
	if err := quad.Set(0, []vertex{
		{Pos: [2]float32{-1, -1}, UV: [2]float32{0, 1}},
		{Pos: [2]float32{1, -1}, UV: [2]float32{1, 1}},
		{Pos: [2]float32{-1, 1}, UV: [2]float32{0, 0}},
		{Pos: [2]float32{1, 1}, UV: [2]float32{1, 0}},
	}); err != nil {
		return err
	}

	tex, err := r.CreateTexture(rhi.TextureDesc{Label: "checker", Width: 64, Height: 64})
	if err != nil {
		return err
	}
	if err := tex.UploadImage(checker(32, 8)); err != nil {
		return err
	}
	smp, err := r.CreateSampler(rhi.SamplerDesc{Label: "checker"})
	if err != nil {
		return err
	}

	u, err := rhi.NewStreamingBuffer[uniforms](r, rhi.BufferUsageUniform, 1)
	if err != nil {
		return err
	}
	set, err := r.CreateDescriptorSet(layout)
	if err != nil {
		return err
	}
	if err := set.BindBuffer(0, u); err != nil {
		return err
	}
	if err := set.BindTexture(1, tex); err != nil {
		return err
	}
	if err := set.BindSampler(2, smp); err != nil {
		return err
	}

	var minElapsed float64
	if fps > 0 {
		minElapsed = 1 / fps
	}
	for i := range frames {
		phase := float64(i) / 30
		if err := u.Set([]uniforms{{
			Offset: [2]float32{float32(0.5 * math.Cos(phase)), float32(0.5 * math.Sin(phase))},
			Scale:  [2]float32{0.25, 0.25},
		}}); err != nil {
			return err
		}
		enc, err := r.CreatePassEncoder(rhi.PassDesc{Label: "quad", Clear: &rhi.Color{R: 0.1, G: 0.1, B: 0.15, A: 1}})
		if err != nil {
			return err
		}
		if err := enc.SetPipeline(pipeline, rhi.Bindings{
			Sets:   []*rhi.DescriptorSet{set},
			Vertex: []rhi.BufferRef{quad},
		}); err != nil {
			return err
		}
		if err := enc.Draw(4, 1, 0, 0); err != nil {
			return err
		}
		if err := r.Present(minElapsed); err != nil {
			return err
		}
	}
	return nil
}

// checker returns a size x size RGBA image of alternating cells. The
// renderer scales it to the texture size on upload.
func checker(size, cell int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 240, G: 200, B: 80, A: 255}
	dark := color.RGBA{R: 40, G: 60, B: 120, A: 255}
	for y := range size {
		for x := range size {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
