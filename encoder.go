package rhi

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/rhi/driver"
)

// EncoderState is the recording state of a PassEncoder.
type EncoderState int

const (
	// EncoderCreated is the state of a new encoder with no pipeline bound.
	EncoderCreated EncoderState = iota

	// EncoderRecording is the state after the first SetPipeline.
	EncoderRecording

	// EncoderFinished is the state after Finish. No further commands are
	// accepted.
	EncoderFinished
)

// String returns the string representation of the state.
func (s EncoderState) String() string {
	switch s {
	case EncoderCreated:
		return "Created"
	case EncoderRecording:
		return "Recording"
	case EncoderFinished:
		return "Finished"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PassDesc describes a render pass.
type PassDesc struct {
	Label string

	// Target is the color attachment. Nil renders to the device surface.
	Target *Texture

	// Clear clears the target before the pass. Nil keeps the existing
	// contents.
	Clear *Color

	// Before inserts the encoder immediately before another encoder of the
	// same frame instead of appending it.
	Before *PassEncoder
}

// Bindings are the resources bound together with a pipeline.
type Bindings struct {
	// Sets are the descriptor sets, indexed by set number.
	Sets []*DescriptorSet

	// Vertex are the vertex buffers, indexed by vertex buffer slot.
	Vertex []BufferRef
}

// recorder is the pooled state behind a PassEncoder.
type recorder struct {
	// gen changes every time the recorder is recycled; handles holding an
	// older value are stale.
	gen uint64

	r     *Renderer
	label string
	pass  driver.Pass
	state EncoderState
	cmd   driver.CommandBuffer

	area     image.Rectangle
	viewport image.Rectangle
	scissor  image.Rectangle

	pipeline *Pipeline
	sets     []*DescriptorSet
	vertex   []BufferRef

	boundSets   []driver.DescriptorSet
	boundVertex []driver.Buffer
	boundIndex  driver.Buffer
	indexFormat driver.IndexFormat

	draws int
}

// Reset clears the recorder for reuse and invalidates handles to it.
func (rec *recorder) Reset() {
	gen := rec.gen + 1
	*rec = recorder{
		gen:         gen,
		sets:        rec.sets[:0],
		vertex:      rec.vertex[:0],
		boundSets:   rec.boundSets[:0],
		boundVertex: rec.boundVertex[:0],
	}
}

// finish ends recording. It is idempotent.
func (rec *recorder) finish() error {
	if rec.state == EncoderFinished {
		if rec.cmd == nil {
			return fmt.Errorf("%w: encoder %s failed to finish", ErrInvalidState, rec.label)
		}
		return nil
	}
	rec.state = EncoderFinished
	cmd, err := rec.pass.End()
	if err != nil {
		return fmt.Errorf("rhi: finish encoder %s: %w", rec.label, err)
	}
	rec.cmd = cmd
	return nil
}

// discard drops the recorded commands without submitting them.
func (rec *recorder) discard() {
	if rec.state != EncoderFinished {
		rec.state = EncoderFinished
		if cmd, err := rec.pass.End(); err == nil {
			rec.cmd = cmd
		}
	}
	if rec.cmd != nil {
		rec.cmd.Discard()
		rec.cmd = nil
	}
}

// encoderList is the ordered list of encoders recorded in the current frame.
type encoderList struct {
	items []*recorder
}

func (l *encoderList) len() int { return len(l.items) }

func (l *encoderList) index(rec *recorder) int {
	return slices.Index(l.items, rec)
}

func (l *encoderList) append(rec *recorder) { l.items = append(l.items, rec) }

func (l *encoderList) insertBefore(rec, before *recorder) {
	i := l.index(before)
	if i < 0 {
		l.append(rec)
		return
	}
	l.items = slices.Insert(l.items, i, rec)
}

func (l *encoderList) reset() {
	clear(l.items)
	l.items = l.items[:0]
}

// PassEncoder records the commands of one render pass.
//
// State machine:
//
//	Created ──SetPipeline──► Recording ──Finish──► Finished
//	   │                                              ▲
//	   └──────────────────Finish──────────────────────┘
//
// An encoder is valid until the Present that submits it. The renderer
// finishes the previous encoder when a new one is created and every open
// encoder at Present.
type PassEncoder struct {
	rec *recorder
	gen uint64
}

// CreatePassEncoder starts a render pass.
func (r *Renderer) CreatePassEncoder(desc PassDesc) (*PassEncoder, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}

	var before *recorder
	if desc.Before != nil {
		rec, err := desc.Before.live()
		if err != nil {
			return nil, err
		}
		if err := r.checkOwner(rec.r, "encoder "+rec.label); err != nil {
			return nil, err
		}
		before = rec
	}

	pd := driver.PassDesc{Label: desc.Label, Load: driver.LoadActionLoad}
	if desc.Clear != nil {
		pd.Load = driver.LoadActionClear
		pd.Clear = *desc.Clear
	}
	var area image.Rectangle
	if t := desc.Target; t != nil {
		if err := r.checkOwner(t.r, "texture "+t.desc.Label); err != nil {
			return nil, err
		}
		native, err := t.native()
		if err != nil {
			return nil, err
		}
		if !t.desc.Usage.Has(TextureUsageRenderTarget) {
			return nil, fmt.Errorf("%w: texture %s is not a render target", ErrInvalidState, t.desc.Label)
		}
		pd.Target = native
		area = image.Rect(0, 0, t.desc.Width, t.desc.Height)
	} else {
		area = image.Rectangle{Max: r.SurfaceSize()}
	}

	if r.open != nil {
		if err := r.open.finish(); err != nil {
			r.log.Warn("rhi: finish previous encoder", "encoder", r.open.label, "err", err)
		}
		r.open = nil
	}

	if pd.Label == "" {
		pd.Label = r.label("pass")
	}
	pass, err := r.dev.BeginPass(pd)
	if err != nil {
		return nil, fmt.Errorf("rhi: begin pass %s: %w", pd.Label, err)
	}

	rec := r.recorders.Get()
	rec.r = r
	rec.label = pd.Label
	rec.pass = pass
	rec.area = area
	rec.viewport = area
	rec.scissor = area

	if before != nil {
		r.encoders.insertBefore(rec, before)
	} else {
		r.encoders.append(rec)
	}
	r.open = rec
	return &PassEncoder{rec: rec, gen: rec.gen}, nil
}

// live returns the recorder behind the handle, failing once the frame
// the encoder belonged to has been presented.
func (e *PassEncoder) live() (*recorder, error) {
	if e == nil || e.rec == nil {
		return nil, fmt.Errorf("%w: nil encoder", ErrInvalidState)
	}
	if e.rec.gen != e.gen || e.rec.r == nil {
		return nil, fmt.Errorf("%w: encoder used after its frame was presented", ErrInvalidState)
	}
	return e.rec, nil
}

// recording returns the recorder if it still accepts commands.
func (e *PassEncoder) recording() (*recorder, error) {
	rec, err := e.live()
	if err != nil {
		return nil, err
	}
	if rec.state == EncoderFinished {
		return nil, fmt.Errorf("%w: encoder %s is finished", ErrInvalidState, rec.label)
	}
	return rec, nil
}

// State returns the recording state. A stale encoder reports
// EncoderFinished.
func (e *PassEncoder) State() EncoderState {
	rec, err := e.live()
	if err != nil {
		return EncoderFinished
	}
	return rec.state
}

// SetPipeline binds a pipeline with its descriptor sets and vertex
// buffers. Every buffer and texture reachable from the bindings is
// committed.
func (e *PassEncoder) SetPipeline(p *Pipeline, b Bindings) error {
	rec, err := e.recording()
	if err != nil {
		return err
	}
	r := rec.r
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", ErrInvalidState)
	}
	if err := r.checkOwner(p.r, "pipeline "+p.label); err != nil {
		return err
	}
	if p.disposed {
		return fmt.Errorf("%w: pipeline %s disposed", ErrInvalidState, p.label)
	}
	if len(b.Sets) != len(p.layouts) {
		return fmt.Errorf("%w: pipeline %s takes %d descriptor sets, got %d",
			ErrInvalidState, p.label, len(p.layouts), len(b.Sets))
	}
	for i, s := range b.Sets {
		if s == nil {
			return fmt.Errorf("%w: nil descriptor set %d", ErrInvalidState, i)
		}
		if err := r.checkOwner(s.r, "descriptor set "+s.label); err != nil {
			return err
		}
		if s.layout != p.layouts[i] {
			return fmt.Errorf("%w: descriptor set %d layout %s does not match pipeline %s",
				ErrInvalidState, i, s.layout.label, p.label)
		}
	}
	if len(b.Vertex) != len(p.vertex) {
		return fmt.Errorf("%w: pipeline %s takes %d vertex buffers, got %d",
			ErrInvalidState, p.label, len(p.vertex), len(b.Vertex))
	}
	for i, vb := range b.Vertex {
		if vb == nil {
			return fmt.Errorf("%w: nil vertex buffer %d", ErrInvalidState, i)
		}
		if err := r.checkOwner(vb.owner(), "buffer "+vb.name()); err != nil {
			return err
		}
	}

	for _, s := range b.Sets {
		s.commit()
	}
	for _, vb := range b.Vertex {
		vb.Commit()
	}

	rec.pipeline = p
	rec.sets = append(rec.sets[:0], b.Sets...)
	rec.vertex = append(rec.vertex[:0], b.Vertex...)
	rec.boundSets = append(rec.boundSets[:0], make([]driver.DescriptorSet, len(b.Sets))...)
	rec.boundVertex = append(rec.boundVertex[:0], make([]driver.Buffer, len(b.Vertex))...)
	rec.pass.SetPipeline(p.native)
	rec.state = EncoderRecording
	return nil
}

// SetScissor sets the scissor rectangle in pixels.
func (e *PassEncoder) SetScissor(x, y, w, h int) error {
	rec, err := e.recording()
	if err != nil {
		return err
	}
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: scissor size %dx%d", ErrOutOfRange, w, h)
	}
	rec.scissor = image.Rect(x, y, x+w, y+h)
	rec.pass.SetScissor(rec.scissor.Intersect(rec.area))
	return nil
}

// SetViewport sets the viewport rectangle in pixels.
func (e *PassEncoder) SetViewport(x, y, w, h int) error {
	rec, err := e.recording()
	if err != nil {
		return err
	}
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: viewport size %dx%d", ErrOutOfRange, w, h)
	}
	rec.viewport = image.Rect(x, y, x+w, y+h)
	rec.pass.SetViewport(rec.viewport)
	return nil
}

// CurrentDynamicScissor returns the scissor rectangle, the full attachment
// unless SetScissor was called.
func (e *PassEncoder) CurrentDynamicScissor() image.Rectangle {
	rec, err := e.live()
	if err != nil {
		return image.Rectangle{}
	}
	return rec.scissor
}

// CurrentDynamicViewport returns the viewport rectangle, the full
// attachment unless SetViewport was called.
func (e *PassEncoder) CurrentDynamicViewport() image.Rectangle {
	rec, err := e.live()
	if err != nil {
		return image.Rectangle{}
	}
	return rec.viewport
}

// Draw draws non-indexed primitives.
func (e *PassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) error {
	rec, err := e.recording()
	if err != nil {
		return err
	}
	if vertexCount < 0 || instanceCount < 0 || firstVertex < 0 || firstInstance < 0 {
		return fmt.Errorf("%w: draw(%d, %d, %d, %d)", ErrOutOfRange,
			vertexCount, instanceCount, firstVertex, firstInstance)
	}
	if err := rec.prepare(); err != nil {
		return err
	}
	rec.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	rec.draws++
	return nil
}

// DrawIndexed draws indexed primitives using index as the index buffer.
// The index format follows the element size of the buffer: 2 bytes for
// uint16, 4 bytes for uint32.
func (e *PassEncoder) DrawIndexed(index BufferRef, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) error {
	rec, err := e.recording()
	if err != nil {
		return err
	}
	if err := rec.requirePipeline(); err != nil {
		return err
	}
	r := rec.r
	if index == nil {
		return fmt.Errorf("%w: nil index buffer", ErrInvalidState)
	}
	if err := r.checkOwner(index.owner(), "buffer "+index.name()); err != nil {
		return err
	}
	var format driver.IndexFormat
	switch index.elementSize() {
	case 2:
		format = driver.IndexFormatUint16
	case 4:
		format = driver.IndexFormatUint32
	default:
		return fmt.Errorf("%w: index buffer %s has %d-byte elements",
			ErrInvalidState, index.name(), index.elementSize())
	}
	if indexCount < 0 || instanceCount < 0 || firstIndex < 0 || firstInstance < 0 {
		return fmt.Errorf("%w: drawIndexed(%d, %d, %d, %d, %d)", ErrOutOfRange,
			indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	}

	index.Commit()
	native, err := index.native()
	if err != nil {
		return err
	}
	if n := index.drawable(); firstIndex+indexCount > n {
		return fmt.Errorf("%w: indices [%d, %d) of %s with %d elements",
			ErrOutOfRange, firstIndex, firstIndex+indexCount, index.name(), n)
	}
	if err := rec.prepare(); err != nil {
		return err
	}
	if rec.boundIndex != native || rec.indexFormat != format {
		rec.pass.SetIndexBuffer(native, format, 0)
		rec.boundIndex, rec.indexFormat = native, format
	}
	rec.pass.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	rec.draws++
	return nil
}

// prepare re-commits the buffers bound since SetPipeline and emits the
// native vertex buffers and descriptor sets that changed.
func (rec *recorder) prepare() error {
	if err := rec.requirePipeline(); err != nil {
		return err
	}
	for i, vb := range rec.vertex {
		vb.Commit()
		native, err := vb.native()
		if err != nil {
			return err
		}
		if rec.boundVertex[i] != native {
			rec.pass.SetVertexBuffer(i, native, 0)
			rec.boundVertex[i] = native
		}
	}
	for i, s := range rec.sets {
		s.commit()
		native, err := s.resolve()
		if err != nil {
			return err
		}
		if rec.boundSets[i] != native {
			rec.pass.SetDescriptorSet(i, native)
			rec.boundSets[i] = native
		}
	}
	return nil
}

func (rec *recorder) requirePipeline() error {
	if rec.pipeline == nil {
		return fmt.Errorf("%w: encoder %s has no pipeline, call SetPipeline first", ErrInvalidState, rec.label)
	}
	return nil
}

// Draws returns the number of draws recorded.
func (e *PassEncoder) Draws() int {
	rec, err := e.live()
	if err != nil {
		return 0
	}
	return rec.draws
}

// Finish ends recording. Calling Finish more than once, or on an encoder
// whose frame was presented, is a no-op.
func (e *PassEncoder) Finish() error {
	rec, err := e.live()
	if err != nil {
		return nil
	}
	if rec.r.open == rec {
		rec.r.open = nil
	}
	return rec.finish()
}
