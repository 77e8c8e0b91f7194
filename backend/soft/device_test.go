// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/rhi/driver"
)

func TestRegistered(t *testing.T) {
	if !driver.IsRegistered(driver.APISoft) {
		t.Fatal("soft backend not registered")
	}
	dev, err := driver.Open(driver.APISoft)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Release()
	if dev.API() != driver.APISoft {
		t.Errorf("API() = %q, want %q", dev.API(), driver.APISoft)
	}
}

func TestBufferWriteBounds(t *testing.T) {
	d := New()
	b, err := d.NewBuffer(driver.BufferDesc{Label: "b", Size: 8, Usage: driver.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Write(4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(6, []byte{1, 2, 3}); err == nil {
		t.Error("Write past end succeeded")
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	if got := b.(*Buffer).Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes = %v, want %v", got, want)
	}

	if d.Live().Buffers != 1 {
		t.Errorf("live buffers = %d, want 1", d.Live().Buffers)
	}
	b.Destroy()
	b.Destroy()
	if d.Live().Buffers != 0 {
		t.Errorf("live buffers after Destroy = %d, want 0", d.Live().Buffers)
	}
	if err := b.Write(0, []byte{1}); err == nil {
		t.Error("Write after Destroy succeeded")
	}
}

func TestPoolCapacity(t *testing.T) {
	d := New()
	layout, err := d.NewBindingLayout("l", []driver.BindingLayoutEntry{{Binding: 0, Type: driver.DescriptorUniformBuffer}})
	if err != nil {
		t.Fatal(err)
	}
	pool, err := d.NewDescriptorPool(driver.PoolDesc{MaxSets: 2, PerType: driver.Uniform(2)})
	if err != nil {
		t.Fatal(err)
	}
	sets, err := pool.Allocate([]driver.BindingLayout{layout, layout})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Allocate([]driver.BindingLayout{layout}); !errors.Is(err, driver.ErrOutOfPoolMemory) {
		t.Errorf("Allocate on full pool err = %v, want ErrOutOfPoolMemory", err)
	}
	if err := pool.Free(sets[:1]); err != nil {
		t.Fatal(err)
	}
	if err := pool.Free(sets[:1]); err == nil {
		t.Error("double Free succeeded")
	}
	if _, err := pool.Allocate([]driver.BindingLayout{layout}); err != nil {
		t.Errorf("Allocate after Free: %v", err)
	}
}

func TestDescriptorSetWriteChecksLayout(t *testing.T) {
	d := New()
	layout, _ := d.NewBindingLayout("l", []driver.BindingLayoutEntry{{Binding: 0, Type: driver.DescriptorUniformBuffer}})
	pool, _ := d.NewDescriptorPool(driver.PoolDesc{MaxSets: 1, PerType: driver.Uniform(1)})
	sets, _ := pool.Allocate([]driver.BindingLayout{layout})
	buf, _ := d.NewBuffer(driver.BufferDesc{Size: 16})

	if err := sets[0].Write([]driver.Binding{{Binding: 1, Type: driver.DescriptorUniformBuffer, Buffer: buf}}); err == nil {
		t.Error("Write to unknown binding succeeded")
	}
	if err := sets[0].Write([]driver.Binding{{Binding: 0, Type: driver.DescriptorSampler}}); err == nil {
		t.Error("Write with wrong type succeeded")
	}
	if err := sets[0].Write([]driver.Binding{{Binding: 0, Type: driver.DescriptorUniformBuffer, Buffer: buf}}); err != nil {
		t.Errorf("Write: %v", err)
	}
	if n := len(sets[0].(*DescriptorSet).Bindings()); n != 1 {
		t.Errorf("Bindings = %d, want 1", n)
	}
}

func TestSubmitClearsTarget(t *testing.T) {
	d := New()
	if err := d.Resize(2, 2); err != nil {
		t.Fatal(err)
	}
	pass, err := d.BeginPass(driver.PassDesc{Label: "clear", Load: driver.LoadActionClear, Clear: driver.Color{R: 1, A: 1}})
	if err != nil {
		t.Fatal(err)
	}
	pass.Draw(3, 1, 0, 0)
	cmd, err := pass.End()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pass.End(); err == nil {
		t.Error("second End succeeded")
	}
	if err := d.Submit([]driver.CommandBuffer{cmd}, driver.FrameInfo{ID: 1, Frames: 3}); err != nil {
		t.Fatal(err)
	}

	img := d.Surface().(*Texture).Image()
	if c := img.RGBAAt(1, 1); c.R != 0xff || c.G != 0 || c.A != 0xff {
		t.Errorf("pixel = %v, want opaque red", c)
	}
	subs := d.Submissions()
	if len(subs) != 1 || len(subs[0].Commands[0].Draws()) != 1 {
		t.Errorf("submissions = %+v, want one with one draw", subs)
	}
}

func TestTextureWritePitch(t *testing.T) {
	d := New()
	tex, err := d.NewTexture(driver.TextureDesc{Width: 2, Height: 2, Format: driver.TextureFormatR8Unorm})
	if err != nil {
		t.Fatal(err)
	}
	// Rows padded to 4 bytes.
	src := []byte{1, 2, 0, 0, 3, 4}
	if err := tex.Write(src, 4); err != nil {
		t.Fatal(err)
	}
	if got := tex.(*Texture).Pixels(); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Pixels = %v, want [1 2 3 4]", got)
	}
}

func TestSubmitClearsLargeTargetInBands(t *testing.T) {
	d := New()
	defer d.Release()
	if err := d.Resize(640, 480); err != nil {
		t.Fatal(err)
	}
	pass, err := d.BeginPass(driver.PassDesc{Label: "clear", Clear: driver.Color{G: 1, A: 1}})
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := pass.End()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Submit([]driver.CommandBuffer{cmd}, driver.FrameInfo{ID: 1, Frames: 3}); err != nil {
		t.Fatal(err)
	}
	if d.workers == nil {
		t.Fatal("large clear did not start the worker pool")
	}

	img := d.Surface().(*Texture).Image()
	for _, p := range [][2]int{{0, 0}, {639, 0}, {320, 240}, {0, 479}, {639, 479}} {
		if c := img.RGBAAt(p[0], p[1]); c.R != 0 || c.G != 0xff || c.A != 0xff {
			t.Errorf("pixel %v = %v, want opaque green", p, c)
		}
	}

	d.Release()
	if d.workers != nil {
		t.Error("Release did not stop the worker pool")
	}
}
