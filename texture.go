package rhi

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/rhi/driver"
)

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Label  string
	Width  int
	Height int

	// Format defaults to TextureFormatRGBA8Unorm.
	Format TextureFormat

	// Usage defaults to TextureUsageSampled.
	Usage TextureUsage
}

// Texture is a static 2D texture. Like a StaticBuffer it is frozen the
// first time a descriptor set referencing it is bound to an encoder.
// A texture used as a pass target is written by the GPU and never frozen.
type Texture struct {
	r    *Renderer
	desc TextureDesc
	tex  driver.Texture

	committed bool
	disposed  bool
}

// CreateTexture creates a texture.
func (r *Renderer) CreateTexture(desc TextureDesc) (*Texture, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: texture size %dx%d", ErrOutOfRange, desc.Width, desc.Height)
	}
	if limit := r.dev.Caps().MaxTextureSize; limit > 0 && (desc.Width > limit || desc.Height > limit) {
		return nil, fmt.Errorf("%w: texture size %dx%d exceeds device limit %d",
			ErrOutOfRange, desc.Width, desc.Height, limit)
	}
	if desc.Usage == 0 {
		desc.Usage = TextureUsageSampled
	}
	if desc.Label == "" {
		desc.Label = r.label("texture")
	}
	tex, err := r.dev.NewTexture(driver.TextureDesc{
		Label:       desc.Label,
		Width:       desc.Width,
		Height:      desc.Height,
		Format:      desc.Format,
		Usage:       desc.Usage | driver.TextureUsageCopyDst,
		SampleCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture %s: %w", ErrAllocationFailure, desc.Label, err)
	}
	t := &Texture{r: r, desc: desc, tex: tex}
	r.track(t)
	return t, nil
}

// Width returns the texture width in texels.
func (t *Texture) Width() int { return t.desc.Width }

// Height returns the texture height in texels.
func (t *Texture) Height() int { return t.desc.Height }

// Format returns the pixel format.
func (t *Texture) Format() TextureFormat { return t.desc.Format }

// Native returns the backing native texture.
func (t *Texture) Native() driver.Texture { return t.tex }

// Upload replaces the texture contents with tightly packed pixels in the
// texture format.
func (t *Texture) Upload(pixels []byte) error {
	if err := t.writable(); err != nil {
		return err
	}
	pitch := t.desc.Width * t.desc.Format.BytesPerPixel()
	if want := pitch * t.desc.Height; len(pixels) != want {
		return fmt.Errorf("%w: texture %s upload of %d bytes, want %d",
			ErrOutOfRange, t.desc.Label, len(pixels), want)
	}
	if err := t.tex.Write(pixels, pitch); err != nil {
		return fmt.Errorf("rhi: upload %s: %w", t.desc.Label, err)
	}
	return nil
}

// UploadImage converts img to the texture format and uploads it. An image
// of a different size is scaled to fit.
func (t *Texture) UploadImage(img image.Image) error {
	if err := t.writable(); err != nil {
		return err
	}
	bounds := image.Rect(0, 0, t.desc.Width, t.desc.Height)

	var dst draw.Image
	var pix func() []byte
	switch t.desc.Format {
	case TextureFormatR8Unorm:
		g := image.NewGray(bounds)
		dst, pix = g, func() []byte { return g.Pix }
	default:
		rgba := image.NewRGBA(bounds)
		dst, pix = rgba, func() []byte { return rgba.Pix }
	}

	src := img.Bounds()
	if src.Dx() == bounds.Dx() && src.Dy() == bounds.Dy() {
		draw.Draw(dst, bounds, img, src.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, bounds, img, src, draw.Src, nil)
	}

	p := pix()
	if t.desc.Format == TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(p); i += 4 {
			p[i], p[i+2] = p[i+2], p[i]
		}
	}
	return t.Upload(p)
}

// Commit freezes the contents. It is idempotent.
func (t *Texture) Commit() { t.committed = true }

// Committed reports whether the contents are frozen.
func (t *Texture) Committed() bool { return t.committed }

// Dispose queues the texture for destruction after the frames that may
// reference it have retired. Dispose is idempotent.
func (t *Texture) Dispose() { t.dispose() }

func (t *Texture) dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.r.deferDestroy(t.tex)
	t.r.untrack(t)
}

func (t *Texture) writable() error {
	switch {
	case t.disposed:
		return fmt.Errorf("%w: texture %s disposed", ErrInvalidState, t.desc.Label)
	case t.committed:
		return fmt.Errorf("%w: texture %s is committed", ErrInvalidState, t.desc.Label)
	}
	return nil
}

func (t *Texture) native() (driver.Texture, error) {
	if t.disposed {
		return nil, fmt.Errorf("%w: texture %s disposed", ErrInvalidState, t.desc.Label)
	}
	return t.tex, nil
}

// Sampler is a texture sampler.
type Sampler struct {
	r        *Renderer
	label    string
	smp      driver.Sampler
	disposed bool
}

// CreateSampler creates a sampler.
func (r *Renderer) CreateSampler(desc SamplerDesc) (*Sampler, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if desc.Label == "" {
		desc.Label = r.label("sampler")
	}
	smp, err := r.dev.NewSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: sampler %s: %w", ErrAllocationFailure, desc.Label, err)
	}
	s := &Sampler{r: r, label: desc.Label, smp: smp}
	r.track(s)
	return s, nil
}

// Dispose queues the sampler for destruction. Dispose is idempotent.
func (s *Sampler) Dispose() { s.dispose() }

func (s *Sampler) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.r.deferDestroy(s.smp)
	s.r.untrack(s)
}

func (s *Sampler) native() (driver.Sampler, error) {
	if s.disposed {
		return nil, fmt.Errorf("%w: sampler %s disposed", ErrInvalidState, s.label)
	}
	return s.smp, nil
}
