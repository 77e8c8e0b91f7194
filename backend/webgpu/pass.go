// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/rhi/driver"
)

var errPassEnded = errors.New("webgpu: render pass has already ended")

// BeginPass begins a render pass on the target, or on the surface when the
// target is nil.
func (d *Device) BeginPass(desc driver.PassDesc) (driver.Pass, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	target := d.surface
	if desc.Target != nil {
		t, ok := desc.Target.(*Texture)
		if !ok || t.dev != d {
			return nil, fmt.Errorf("webgpu: pass target %T is not from this device", desc.Target)
		}
		target = t
	}
	if target.view == nil {
		return nil, fmt.Errorf("webgpu: pass %q targets a destroyed texture", desc.Label)
	}

	cmd, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: create encoder %q: %w", desc.Label, err)
	}
	load := wgpu.LoadOpClear
	if desc.Load == driver.LoadActionLoad {
		load = wgpu.LoadOpLoad
	}
	c := desc.Clear
	rp := cmd.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     load,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
		}},
	})
	return &Pass{label: desc.Label, cmd: cmd, rp: rp}, nil
}

// Pass records into a wgpu render pass encoder.
type Pass struct {
	label string
	cmd   *wgpu.CommandEncoder
	rp    *wgpu.RenderPassEncoder
	ended bool
}

func (p *Pass) SetPipeline(pl driver.Pipeline) {
	if wp, ok := pl.(*Pipeline); ok && !p.ended {
		p.rp.SetPipeline(wp.raw)
	}
}

func (p *Pass) SetDescriptorSet(index int, set driver.DescriptorSet) {
	if ds, ok := set.(*DescriptorSet); ok && !p.ended {
		p.rp.SetBindGroup(uint32(index), ds.group, nil)
	}
}

func (p *Pass) SetVertexBuffer(slot int, b driver.Buffer, offset int) {
	if wb, ok := b.(*Buffer); ok && !p.ended {
		p.rp.SetVertexBuffer(uint32(slot), wb.raw, uint64(offset), wgpu.WholeSize)
	}
}

func (p *Pass) SetIndexBuffer(b driver.Buffer, format driver.IndexFormat, offset int) {
	if wb, ok := b.(*Buffer); ok && !p.ended {
		p.rp.SetIndexBuffer(wb.raw, indexFormat(format), uint64(offset), wgpu.WholeSize)
	}
}

func (p *Pass) SetViewport(r image.Rectangle) {
	if !p.ended {
		p.rp.SetViewport(float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 0, 1)
	}
}

func (p *Pass) SetScissor(r image.Rectangle) {
	if !p.ended {
		p.rp.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy()))
	}
}

func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	if !p.ended {
		p.rp.Draw(uint32(vertexCount), uint32(instanceCount), uint32(firstVertex), uint32(firstInstance))
	}
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	if !p.ended {
		p.rp.DrawIndexed(uint32(indexCount), uint32(instanceCount), uint32(firstIndex), int32(vertexOffset), uint32(firstInstance))
	}
}

// End ends the pass and finishes the command encoder. The pass encoder is
// released before Finish.
func (p *Pass) End() (driver.CommandBuffer, error) {
	if p.ended {
		return nil, errPassEnded
	}
	p.ended = true
	err := p.rp.End()
	p.rp.Release()
	if err != nil {
		p.cmd.Release()
		return nil, fmt.Errorf("webgpu: end pass %q: %w", p.label, err)
	}
	raw, err := p.cmd.Finish(nil)
	p.cmd.Release()
	if err != nil {
		return nil, fmt.Errorf("webgpu: finish %q: %w", p.label, err)
	}
	return &CommandBuffer{raw: raw}, nil
}

// CommandBuffer is a finished wgpu command buffer awaiting submission.
type CommandBuffer struct {
	raw *wgpu.CommandBuffer
}

// Discard releases a command buffer that will not be submitted.
func (c *CommandBuffer) Discard() {
	if c.raw != nil {
		c.raw.Release()
		c.raw = nil
	}
}
