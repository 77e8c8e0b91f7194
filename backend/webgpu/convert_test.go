// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

func TestBufferUsage(t *testing.T) {
	got := bufferUsage(driver.BufferUsageVertex | driver.BufferUsageCopyDst)
	want := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if got != want {
		t.Errorf("bufferUsage = %v, want %v", got, want)
	}
	if bufferUsage(0) != 0 {
		t.Error("bufferUsage(0) should be empty")
	}
}

func TestTextureUsage(t *testing.T) {
	got := textureUsage(driver.TextureUsageRenderTarget | driver.TextureUsageSampled)
	want := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	if got != want {
		t.Errorf("textureUsage = %v, want %v", got, want)
	}
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		in   driver.TextureFormat
		want wgpu.TextureFormat
	}{
		{driver.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8Unorm},
		{driver.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8Unorm},
		{driver.TextureFormatR8Unorm, wgpu.TextureFormatR8Unorm},
	}
	for _, tt := range tests {
		got, err := textureFormat(tt.in)
		if err != nil {
			t.Errorf("textureFormat(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("textureFormat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := textureFormat(driver.TextureFormat(200)); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("unknown format error = %v, want ErrUnsupported", err)
	}
}

func TestLayoutEntry(t *testing.T) {
	e, err := layoutEntry(driver.BindingLayoutEntry{
		Binding: 2,
		Type:    driver.DescriptorUniformBuffer,
		Stages:  driver.StageVertex | driver.StageFragment,
	})
	if err != nil {
		t.Fatalf("layoutEntry: %v", err)
	}
	if e.Binding != 2 {
		t.Errorf("Binding = %d, want 2", e.Binding)
	}
	if e.Visibility != wgpu.ShaderStageVertex|wgpu.ShaderStageFragment {
		t.Errorf("Visibility = %v", e.Visibility)
	}
	if e.Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("Buffer.Type = %v, want uniform", e.Buffer.Type)
	}

	e, err = layoutEntry(driver.BindingLayoutEntry{Type: driver.DescriptorSampler, Stages: driver.StageFragment})
	if err != nil {
		t.Fatalf("layoutEntry(sampler): %v", err)
	}
	if e.Sampler.Type != wgpu.SamplerBindingTypeFiltering {
		t.Errorf("Sampler.Type = %v, want filtering", e.Sampler.Type)
	}
}

func TestVertexLayouts(t *testing.T) {
	out, err := vertexLayouts([]driver.VertexLayout{{
		Stride:      12,
		PerInstance: true,
		Attributes: []driver.VertexAttribute{
			{Location: 0, Format: driver.VertexFloat32x2},
			{Location: 1, Offset: 8, Format: driver.VertexUnorm8x4},
		},
	}})
	if err != nil {
		t.Fatalf("vertexLayouts: %v", err)
	}
	if len(out) != 1 || len(out[0].Attributes) != 2 {
		t.Fatalf("vertexLayouts = %+v", out)
	}
	if out[0].StepMode != wgpu.VertexStepModeInstance {
		t.Errorf("StepMode = %v, want instance", out[0].StepMode)
	}
	if out[0].ArrayStride != 12 {
		t.Errorf("ArrayStride = %d, want 12", out[0].ArrayStride)
	}
	if a := out[0].Attributes[1]; a.Offset != 8 || a.Format != wgpu.VertexFormatUnorm8x4 || a.ShaderLocation != 1 {
		t.Errorf("attribute 1 = %+v", a)
	}

	_, err = vertexLayouts([]driver.VertexLayout{{
		Stride:     4,
		Attributes: []driver.VertexAttribute{{Format: driver.VertexFormat(99)}},
	}})
	if !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("unknown vertex format error = %v, want ErrUnsupported", err)
	}
}

func TestBlendState(t *testing.T) {
	if got := blendState(driver.BlendNone); *got != wgpu.BlendStateReplace {
		t.Errorf("BlendNone = %+v, want replace", *got)
	}
	pm := blendState(driver.BlendPremultiplied)
	if pm.Color.SrcFactor != wgpu.BlendFactorOne || pm.Color.DstFactor != wgpu.BlendFactorOneMinusSrcAlpha {
		t.Errorf("premultiplied color = %+v", pm.Color)
	}
	add := blendState(driver.BlendAdditive)
	if add.Color.DstFactor != wgpu.BlendFactorOne {
		t.Errorf("additive color = %+v", add.Color)
	}
}

func TestSamplerModes(t *testing.T) {
	if addressMode(driver.AddressRepeat) != wgpu.AddressModeRepeat {
		t.Error("AddressRepeat not mapped to repeat")
	}
	if addressMode(driver.AddressClampToEdge) != wgpu.AddressModeClampToEdge {
		t.Error("AddressClampToEdge not mapped to clamp")
	}
	if filterMode(driver.FilterNearest) != wgpu.FilterModeNearest {
		t.Error("FilterNearest not mapped to nearest")
	}
	if mipmapFilter(driver.FilterLinear) != wgpu.MipmapFilterModeLinear {
		t.Error("FilterLinear not mapped to linear mipmap filter")
	}
}

func TestSPIRVBytes(t *testing.T) {
	got := spirvBytes([]uint32{0x07230203, 0x00010000})
	want := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("spirvBytes = % x, want % x", got, want)
	}
	if got := spirvBytes(nil); len(got) != 0 {
		t.Errorf("spirvBytes(nil) = % x, want empty", got)
	}
}
