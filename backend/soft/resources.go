// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/parallel"
)

// Buffer is a host-memory buffer.
type Buffer struct {
	dev       *Device
	label     string
	usage     driver.BufferUsage
	data      []byte
	destroyed bool
	writes    int
}

// Size returns the size in bytes.
func (b *Buffer) Size() int { return len(b.data) }

// Write copies data at offset.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.destroyed {
		return fmt.Errorf("soft: write to destroyed buffer %q", b.label)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("soft: write [%d, %d) out of bounds for buffer %q of %d bytes",
			offset, offset+len(data), b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	b.writes++
	return nil
}

// Destroy frees the buffer. Destroying twice is a no-op.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.dev.live.Buffers--
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() driver.BufferUsage { return b.usage }

// Destroyed reports whether Destroy was called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Writes returns the number of successful writes.
func (b *Buffer) Writes() int { return b.writes }

// Texture is a host-memory 2D texture.
type Texture struct {
	dev       *Device
	label     string
	width     int
	height    int
	format    driver.TextureFormat
	pixels    []byte
	destroyed bool
}

// Width returns the width in texels.
func (t *Texture) Width() int { return t.width }

// Height returns the height in texels.
func (t *Texture) Height() int { return t.height }

// Format returns the pixel format.
func (t *Texture) Format() driver.TextureFormat { return t.format }

// Write uploads a full image with the given row pitch.
func (t *Texture) Write(pixels []byte, bytesPerRow int) error {
	if t.destroyed {
		return fmt.Errorf("soft: write to destroyed texture %q", t.label)
	}
	row := t.width * t.format.BytesPerPixel()
	if bytesPerRow < row || len(pixels) < bytesPerRow*(t.height-1)+row {
		return fmt.Errorf("soft: texture %q: %d bytes with pitch %d too small for %dx%d",
			t.label, len(pixels), bytesPerRow, t.width, t.height)
	}
	for y := 0; y < t.height; y++ {
		copy(t.pixels[y*row:(y+1)*row], pixels[y*bytesPerRow:])
	}
	return nil
}

// Destroy frees the texture. Destroying twice is a no-op.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.dev.live.Textures--
}

// Destroyed reports whether Destroy was called.
func (t *Texture) Destroyed() bool { return t.destroyed }

// Pixels returns a copy of the texel data, tightly packed.
func (t *Texture) Pixels() []byte {
	return append([]byte(nil), t.pixels...)
}

// Image returns the texture as an RGBA image. BGRA textures are swizzled.
func (t *Texture) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for i := 0; i < t.width*t.height; i++ {
		switch t.format {
		case driver.TextureFormatR8Unorm:
			v := t.pixels[i]
			img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = v, v, v, 0xff
		case driver.TextureFormatBGRA8Unorm:
			p := t.pixels[i*4 : i*4+4]
			img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = p[2], p[1], p[0], p[3]
		default:
			copy(img.Pix[i*4:i*4+4], t.pixels[i*4:i*4+4])
		}
	}
	return img
}

// parallelFillTexels is the texel count above which clears are split into
// row bands on the device worker pool.
const parallelFillTexels = 256 * 256

func (t *Texture) fill(c driver.Color) {
	rgba := color.RGBA{R: unorm(c.R), G: unorm(c.G), B: unorm(c.B), A: unorm(c.A)}
	px := []byte{rgba.R, rgba.G, rgba.B, rgba.A}
	switch t.format {
	case driver.TextureFormatBGRA8Unorm:
		px = []byte{rgba.B, rgba.G, rgba.R, rgba.A}
	case driver.TextureFormatR8Unorm:
		px = px[:1]
	}
	fillRows := func(y0, y1 int) {
		row := t.width * len(px)
		for i := y0 * row; i < y1*row; i += len(px) {
			copy(t.pixels[i:], px)
		}
	}
	if t.width*t.height < parallelFillTexels {
		fillRows(0, t.height)
		return
	}
	pool := t.dev.pool()
	bands := parallel.Bands(t.height, pool.Workers(), 16)
	pool.Run(len(bands)-1, func(i int) {
		fillRows(bands[i], bands[i+1])
	})
}

func unorm(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}

// Sampler is a recorded sampler description.
type Sampler struct {
	dev       *Device
	Desc      driver.SamplerDesc
	destroyed bool
}

// Destroy frees the sampler.
func (s *Sampler) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.dev.live.Samplers--
}

// Destroyed reports whether Destroy was called.
func (s *Sampler) Destroyed() bool { return s.destroyed }

// BindingLayout is a recorded descriptor set layout.
type BindingLayout struct {
	dev       *Device
	label     string
	entries   []driver.BindingLayoutEntry
	destroyed bool
}

// Entries returns the layout entries.
func (l *BindingLayout) Entries() []driver.BindingLayoutEntry { return l.entries }

// Destroy frees the layout.
func (l *BindingLayout) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	l.dev.live.Layouts--
}

// Pipeline is a recorded pipeline description.
type Pipeline struct {
	dev       *Device
	Desc      driver.PipelineDesc
	destroyed bool
}

// Destroy frees the pipeline.
func (p *Pipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.dev.live.Pipelines--
}

// Destroyed reports whether Destroy was called.
func (p *Pipeline) Destroyed() bool { return p.destroyed }
