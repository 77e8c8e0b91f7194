// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rhi/driver"
)

// newNoopDevice opens an rhi device on the HAL noop backend.
func newNoopDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	d, err := openInstance(instance, opts)
	if err != nil {
		instance.Destroy()
		t.Fatalf("openInstance failed: %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

// createNoopHAL creates a raw noop device and queue.
func createNoopHAL(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func TestDeviceDefaults(t *testing.T) {
	d := newNoopDevice(t)

	if d.API() != driver.APIHAL {
		t.Errorf("API() = %q, want %q", d.API(), driver.APIHAL)
	}
	s := d.Surface()
	if s.Width() != DefaultSurfaceWidth || s.Height() != DefaultSurfaceHeight {
		t.Errorf("surface = %dx%d, want %dx%d", s.Width(), s.Height(), DefaultSurfaceWidth, DefaultSurfaceHeight)
	}
	caps := d.Caps()
	if caps.MaxTextureSize <= 0 || caps.MaxBufferSize <= 0 || caps.MinUniformOffsetAlignment <= 0 {
		t.Errorf("Caps() = %+v, want positive limits", caps)
	}
}

func TestDeviceResize(t *testing.T) {
	d := newNoopDevice(t)

	old := d.surface
	if err := d.Resize(32, 16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if d.surface == old {
		t.Fatal("Resize kept the old surface")
	}
	if old.raw != nil {
		t.Error("old surface not destroyed")
	}
	if d.surface.Width() != 32 || d.surface.Height() != 16 {
		t.Errorf("surface = %dx%d, want 32x16", d.surface.Width(), d.surface.Height())
	}
	if err := d.Resize(0, 16); err == nil {
		t.Error("Resize(0, 16) should fail")
	}
}

func TestBufferWrite(t *testing.T) {
	d := newNoopDevice(t)

	b, err := d.NewBuffer(driver.BufferDesc{Label: "test", Size: 16, Usage: driver.BufferUsageVertex | driver.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := b.Write(8, make([]byte, 8)); err != nil {
		t.Errorf("Write in bounds: %v", err)
	}
	if err := b.Write(12, make([]byte, 8)); err == nil {
		t.Error("Write past the end should fail")
	}
	b.Destroy()
	b.Destroy()
	if err := b.Write(0, []byte{1}); err == nil {
		t.Error("Write after Destroy should fail")
	}
}

func TestTextureWrite(t *testing.T) {
	d := newNoopDevice(t)

	tex, err := d.NewTexture(driver.TextureDesc{
		Label:  "tex",
		Width:  4,
		Height: 2,
		Format: driver.TextureFormatR8Unorm,
		Usage:  driver.TextureUsageSampled | driver.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	defer tex.Destroy()

	if err := tex.Write(make([]byte, 8), 4); err != nil {
		t.Errorf("Write: %v", err)
	}
	if err := tex.Write(make([]byte, 7), 4); err == nil {
		t.Error("short Write should fail")
	}
}

func TestSubmitRetiresNextSlot(t *testing.T) {
	d := newNoopDevice(t)

	submit := func(id uint32, slot int) {
		t.Helper()
		p, err := d.BeginPass(driver.PassDesc{Label: "frame", Load: driver.LoadActionClear})
		if err != nil {
			t.Fatalf("BeginPass: %v", err)
		}
		cmd, err := p.End()
		if err != nil {
			t.Fatalf("End: %v", err)
		}
		if err := d.Submit([]driver.CommandBuffer{cmd}, driver.FrameInfo{ID: id, Slot: slot, Frames: 2}); err != nil {
			t.Fatalf("Submit frame %d: %v", id, err)
		}
	}

	submit(1, 0)
	if d.slots[0].fence == nil {
		t.Fatal("slot 0 has no fence after frame 1")
	}
	submit(2, 1)
	if d.slots[0].fence != nil {
		t.Error("slot 0 not retired by frame 2")
	}
	if d.slots[1].fence == nil {
		t.Error("slot 1 has no fence after frame 2")
	}
	if err := d.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if d.slots[1].fence != nil {
		t.Error("WaitIdle left slot 1 in flight")
	}
}

func TestSubmitRejects(t *testing.T) {
	d := newNoopDevice(t)

	p, err := d.BeginPass(driver.PassDesc{Label: "discarded"})
	if err != nil {
		t.Fatalf("BeginPass: %v", err)
	}
	cmd, err := p.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := p.End(); !errors.Is(err, errPassEnded) {
		t.Errorf("second End = %v, want errPassEnded", err)
	}
	cmd.Discard()

	tests := []struct {
		name  string
		cmds  []driver.CommandBuffer
		frame driver.FrameInfo
	}{
		{"discarded", []driver.CommandBuffer{cmd}, driver.FrameInfo{ID: 1, Slot: 0, Frames: 2}},
		{"slot out of range", nil, driver.FrameInfo{ID: 1, Slot: 2, Frames: 2}},
		{"no frames", nil, driver.FrameInfo{ID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Submit(tt.cmds, tt.frame); err == nil {
				t.Error("Submit should fail")
			}
		})
	}
}

func TestSubmitRejectedBatchKeepsBuffers(t *testing.T) {
	d := newNoopDevice(t)

	end := func(label string) driver.CommandBuffer {
		t.Helper()
		p, err := d.BeginPass(driver.PassDesc{Label: label})
		if err != nil {
			t.Fatalf("BeginPass: %v", err)
		}
		cmd, err := p.End()
		if err != nil {
			t.Fatalf("End: %v", err)
		}
		return cmd
	}
	good := end("good")
	bad := end("bad")
	bad.Discard()

	frame := driver.FrameInfo{ID: 1, Slot: 0, Frames: 2}
	if err := d.Submit([]driver.CommandBuffer{good, bad}, frame); err == nil {
		t.Fatal("Submit with a discarded buffer should fail")
	}
	if good.(*CommandBuffer).raw == nil {
		t.Fatal("rejected Submit took the valid command buffer")
	}
	if err := d.Submit([]driver.CommandBuffer{good}, frame); err != nil {
		t.Fatalf("Submit after rejection: %v", err)
	}
	if good.(*CommandBuffer).raw != nil {
		t.Error("submitted command buffer still holds its handle")
	}
}

func TestDescriptorPoolCapacity(t *testing.T) {
	d := newNoopDevice(t)

	layout, err := d.NewBindingLayout("ubo", []driver.BindingLayoutEntry{
		{Binding: 0, Type: driver.DescriptorUniformBuffer, Stages: driver.StageVertex},
	})
	if err != nil {
		t.Fatalf("NewBindingLayout: %v", err)
	}
	defer layout.Destroy()

	pool, err := d.NewDescriptorPool(driver.PoolDesc{Label: "pool", MaxSets: 2, PerType: driver.Uniform(2)})
	if err != nil {
		t.Fatalf("NewDescriptorPool: %v", err)
	}
	defer pool.Destroy()

	sets, err := pool.Allocate([]driver.BindingLayout{layout, layout})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := pool.Allocate([]driver.BindingLayout{layout}); !driver.IsPoolExhausted(err) {
		t.Errorf("Allocate on full pool = %v, want pool exhausted", err)
	}
	if err := pool.Free(sets[:1]); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := pool.Free(sets[:1]); err == nil {
		t.Error("double Free should fail")
	}
	if _, err := pool.Allocate([]driver.BindingLayout{layout}); err != nil {
		t.Errorf("Allocate after Free: %v", err)
	}
}

func TestDescriptorSetWrite(t *testing.T) {
	d := newNoopDevice(t)

	layout, err := d.NewBindingLayout("ubo", []driver.BindingLayoutEntry{
		{Binding: 0, Type: driver.DescriptorUniformBuffer, Stages: driver.StageAll},
	})
	if err != nil {
		t.Fatalf("NewBindingLayout: %v", err)
	}
	defer layout.Destroy()
	buf, err := d.NewBuffer(driver.BufferDesc{Label: "ubo", Size: 256, Usage: driver.BufferUsageUniform})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Destroy()

	pool, _ := d.NewDescriptorPool(driver.PoolDesc{Label: "pool", MaxSets: 4, PerType: driver.Uniform(4)})
	defer pool.Destroy()
	sets, err := pool.Allocate([]driver.BindingLayout{layout})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	set := sets[0].(*DescriptorSet)

	binding := []driver.Binding{{Binding: 0, Type: driver.DescriptorUniformBuffer, Buffer: buf}}
	if err := set.Write(binding); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first := set.group
	if first == nil {
		t.Fatal("Write did not create a bind group")
	}
	if err := set.Write(binding); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if set.group == nil {
		t.Error("second Write left no bind group")
	}

	if err := set.Write([]driver.Binding{{Binding: 0, Type: driver.DescriptorUniformBuffer}}); err == nil {
		t.Error("Write without a buffer should fail")
	}
	if err := pool.Free(sets); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if set.group != nil {
		t.Error("Free kept the bind group")
	}
}

func TestBindingLayoutUnsupportedType(t *testing.T) {
	d := newNoopDevice(t)

	_, err := d.NewBindingLayout("bad", []driver.BindingLayoutEntry{
		{Binding: 0, Type: driver.NumDescriptorTypes},
	})
	if !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("NewBindingLayout = %v, want ErrUnsupported", err)
	}
}

func TestPipelineRequiresShader(t *testing.T) {
	d := newNoopDevice(t)

	_, err := d.NewPipeline(driver.PipelineDesc{Label: "empty"})
	if err == nil {
		t.Fatal("NewPipeline without a shader should fail")
	}
}

func TestCompileWGSL(t *testing.T) {
	words, err := CompileWGSL(`
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}
`)
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	const spirvMagic = 0x07230203
	if len(words) == 0 || words[0] != spirvMagic {
		t.Fatalf("CompileWGSL did not produce SPIR-V (%d words)", len(words))
	}
}

// testProvider is a gogpu device provider that exposes HAL types.
type testProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (testProvider) Device() gpucontext.Device   { return nil }
func (testProvider) Queue() gpucontext.Queue     { return nil }
func (testProvider) Adapter() gpucontext.Adapter { return nil }
func (testProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{}
}
func (testProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (p testProvider) HalDevice() any { return p.device }
func (p testProvider) HalQueue() any  { return p.queue }

// plainProvider does not expose HAL types.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{}
}
func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func TestNewFromProvider(t *testing.T) {
	device, queue := createNoopHAL(t)

	d, err := NewFromProvider(testProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	if !d.external {
		t.Error("shared device not marked external")
	}
	d.Release()

	// The HAL device stays usable after the shared device is released.
	if _, err := NewFromDevice(device, queue); err != nil {
		t.Errorf("NewFromDevice after Release: %v", err)
	}

	if _, err := NewFromProvider(plainProvider{}); !errors.Is(err, ErrNotHALProvider) {
		t.Errorf("NewFromProvider(plain) = %v, want ErrNotHALProvider", err)
	}
}

func TestBlendState(t *testing.T) {
	tests := []struct {
		mode driver.BlendMode
		nil  bool
	}{
		{driver.BlendNone, true},
		{driver.BlendPremultiplied, false},
		{driver.BlendAlpha, false},
		{driver.BlendAdditive, false},
	}
	for _, tt := range tests {
		if got := blendState(tt.mode); (got == nil) != tt.nil {
			t.Errorf("blendState(%d) nil = %v, want %v", tt.mode, got == nil, tt.nil)
		}
	}
}

func TestBufferUsage(t *testing.T) {
	got := bufferUsage(driver.BufferUsageVertex | driver.BufferUsageCopyDst)
	want := gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	if got != want {
		t.Errorf("bufferUsage = %v, want %v", got, want)
	}
}
