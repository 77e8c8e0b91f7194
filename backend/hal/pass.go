// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/driver"
)

// errPassEnded is returned by End on an already ended pass.
var errPassEnded = errors.New("hal: render pass has already ended")

// BeginPass creates a command encoder and begins a render pass on the
// target, or on the surface when the target is nil.
func (d *Device) BeginPass(desc driver.PassDesc) (driver.Pass, error) {
	if d.released {
		return nil, driver.ErrDeviceReleased
	}
	target := d.surface
	if desc.Target != nil {
		t, ok := desc.Target.(*Texture)
		if !ok || t.dev != d {
			return nil, fmt.Errorf("hal: pass target %T is not from this device", desc.Target)
		}
		target = t
	}
	if target.view == nil {
		return nil, fmt.Errorf("hal: pass %q targets a destroyed texture", desc.Label)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: desc.Label})
	if err != nil {
		return nil, fmt.Errorf("hal: create encoder %q: %w", desc.Label, err)
	}
	if err := encoder.BeginEncoding(desc.Label); err != nil {
		return nil, fmt.Errorf("hal: begin encoding %q: %w", desc.Label, err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     loadOp(desc.Load),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor(desc.Clear),
		}},
	})
	return &Pass{dev: d, label: desc.Label, encoder: encoder, rp: rp}, nil
}

// Pass records into a HAL render pass.
type Pass struct {
	dev     *Device
	label   string
	encoder hal.CommandEncoder
	rp      hal.RenderPassEncoder
	ended   bool
}

// SetPipeline binds a render pipeline.
func (p *Pass) SetPipeline(pl driver.Pipeline) {
	if hp, ok := pl.(*Pipeline); ok && !p.ended {
		p.rp.SetPipeline(hp.raw)
	}
}

// SetDescriptorSet binds a set's bind group at index.
func (p *Pass) SetDescriptorSet(index int, set driver.DescriptorSet) {
	if ds, ok := set.(*DescriptorSet); ok && !p.ended {
		p.rp.SetBindGroup(uint32(index), ds.group, nil)
	}
}

// SetVertexBuffer binds a vertex buffer to slot.
func (p *Pass) SetVertexBuffer(slot int, b driver.Buffer, offset int) {
	if hb, ok := b.(*Buffer); ok && !p.ended {
		p.rp.SetVertexBuffer(uint32(slot), hb.raw, uint64(offset))
	}
}

// SetIndexBuffer binds the index buffer.
func (p *Pass) SetIndexBuffer(b driver.Buffer, format driver.IndexFormat, offset int) {
	if hb, ok := b.(*Buffer); ok && !p.ended {
		p.rp.SetIndexBuffer(hb.raw, indexFormat(format), uint64(offset))
	}
}

// SetViewport sets the viewport with a [0, 1] depth range.
func (p *Pass) SetViewport(r image.Rectangle) {
	if p.ended {
		return
	}
	p.rp.SetViewport(float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 0, 1)
}

// SetScissor sets the scissor rectangle.
func (p *Pass) SetScissor(r image.Rectangle) {
	if p.ended {
		return
	}
	p.rp.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy()))
}

// Draw records a non-indexed draw.
func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	if p.ended {
		return
	}
	p.rp.Draw(uint32(vertexCount), uint32(instanceCount), uint32(firstVertex), uint32(firstInstance))
}

// DrawIndexed records an indexed draw.
func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	if p.ended {
		return
	}
	p.rp.DrawIndexed(uint32(indexCount), uint32(instanceCount), uint32(firstIndex), int32(vertexOffset), uint32(firstInstance))
}

// End ends the render pass and finishes encoding.
func (p *Pass) End() (driver.CommandBuffer, error) {
	if p.ended {
		return nil, errPassEnded
	}
	p.ended = true
	p.rp.End()
	raw, err := p.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("hal: end encoding %q: %w", p.label, err)
	}
	return &CommandBuffer{dev: p.dev, label: p.label, raw: raw}, nil
}

// CommandBuffer is a finished HAL command buffer awaiting submission.
type CommandBuffer struct {
	dev   *Device
	label string
	raw   hal.CommandBuffer
}

// Discard frees a command buffer that will not be submitted.
func (c *CommandBuffer) Discard() {
	if c.raw == nil {
		return
	}
	c.dev.device.FreeCommandBuffer(c.raw)
	c.raw = nil
}
