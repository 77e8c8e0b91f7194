// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/rhi/driver"
)

// errPassEnded is returned by End on an already ended pass.
var errPassEnded = errors.New("soft: render pass has already ended")

// Op identifies a recorded command.
type Op int

// Recorded operations.
const (
	OpSetPipeline Op = iota
	OpSetDescriptorSet
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpSetViewport
	OpSetScissor
	OpDraw
	OpDrawIndexed
)

// String returns the string representation of Op.
func (o Op) String() string {
	switch o {
	case OpSetPipeline:
		return "SetPipeline"
	case OpSetDescriptorSet:
		return "SetDescriptorSet"
	case OpSetVertexBuffer:
		return "SetVertexBuffer"
	case OpSetIndexBuffer:
		return "SetIndexBuffer"
	case OpSetViewport:
		return "SetViewport"
	case OpSetScissor:
		return "SetScissor"
	case OpDraw:
		return "Draw"
	case OpDrawIndexed:
		return "DrawIndexed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// Command is one recorded pass command. Only the fields relevant to Op
// are set.
type Command struct {
	Op Op

	Pipeline    *Pipeline
	Set         *DescriptorSet
	Buffer      *Buffer
	IndexFormat driver.IndexFormat
	Index       int // descriptor set index or vertex buffer slot
	Offset      int
	Rect        image.Rectangle

	// Args holds the draw arguments in call order.
	Args [5]int
}

// CommandBuffer is a recorded pass.
type CommandBuffer struct {
	Label    string
	Target   *Texture
	Load     driver.LoadAction
	Clear    driver.Color
	Commands []Command

	discarded bool
}

// Discard marks the command buffer as not submitted.
func (c *CommandBuffer) Discard() { c.discarded = true }

// Discarded reports whether Discard was called.
func (c *CommandBuffer) Discarded() bool { return c.discarded }

// Draws returns the draw commands in order.
func (c *CommandBuffer) Draws() []Command {
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Op == OpDraw || cmd.Op == OpDrawIndexed {
			out = append(out, cmd)
		}
	}
	return out
}

// Pass records commands into a CommandBuffer.
type Pass struct {
	cmd   *CommandBuffer
	ended bool
}

func (p *Pass) record(c Command) {
	if p.ended {
		return
	}
	p.cmd.Commands = append(p.cmd.Commands, c)
}

// SetPipeline records a pipeline bind.
func (p *Pass) SetPipeline(pl driver.Pipeline) {
	sp, _ := pl.(*Pipeline)
	p.record(Command{Op: OpSetPipeline, Pipeline: sp})
}

// SetDescriptorSet records a descriptor set bind.
func (p *Pass) SetDescriptorSet(index int, set driver.DescriptorSet) {
	ds, _ := set.(*DescriptorSet)
	p.record(Command{Op: OpSetDescriptorSet, Index: index, Set: ds})
}

// SetVertexBuffer records a vertex buffer bind.
func (p *Pass) SetVertexBuffer(slot int, b driver.Buffer, offset int) {
	sb, _ := b.(*Buffer)
	p.record(Command{Op: OpSetVertexBuffer, Index: slot, Buffer: sb, Offset: offset})
}

// SetIndexBuffer records an index buffer bind.
func (p *Pass) SetIndexBuffer(b driver.Buffer, format driver.IndexFormat, offset int) {
	sb, _ := b.(*Buffer)
	p.record(Command{Op: OpSetIndexBuffer, Buffer: sb, IndexFormat: format, Offset: offset})
}

// SetViewport records a viewport change.
func (p *Pass) SetViewport(r image.Rectangle) {
	p.record(Command{Op: OpSetViewport, Rect: r})
}

// SetScissor records a scissor change.
func (p *Pass) SetScissor(r image.Rectangle) {
	p.record(Command{Op: OpSetScissor, Rect: r})
}

// Draw records a non-indexed draw.
func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	p.record(Command{Op: OpDraw, Args: [5]int{vertexCount, instanceCount, firstVertex, firstInstance}})
}

// DrawIndexed records an indexed draw.
func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	p.record(Command{Op: OpDrawIndexed, Args: [5]int{indexCount, instanceCount, firstIndex, vertexOffset, firstInstance}})
}

// End finishes the pass.
func (p *Pass) End() (driver.CommandBuffer, error) {
	if p.ended {
		return nil, errPassEnded
	}
	p.ended = true
	return p.cmd, nil
}
