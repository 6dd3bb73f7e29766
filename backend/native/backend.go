// Package native executes cmdbuf command buffers on a gogpu/wgpu HAL device.
//
// Buffers, textures and framebuffer views are created on the HAL device the
// first time a command buffer uses them. Pipelines and bind groups carry
// shader and layout state the cmdbuf objects do not describe, so their HAL
// objects are supplied by the caller through BindRenderPipeline,
// BindComputePipeline and BindBindGroup.
package native

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdbuf"
)

var (
	// ErrNilDevice is returned when a backend is created without a device.
	ErrNilDevice = errors.New("native: device is nil")

	// ErrNilQueue is returned when a backend is created without a queue.
	ErrNilQueue = errors.New("native: queue is nil")

	// ErrNotHALDevice is returned by NewFromProvider when the provider does
	// not expose HAL objects.
	ErrNotHALDevice = errors.New("native: provider does not expose a HAL device and queue")

	// ErrUnbound is returned when a command uses a pipeline or bind group
	// that has no HAL object.
	ErrUnbound = errors.New("native: object has no HAL binding")

	// ErrUnsupportedCommand is returned for commands the HAL cannot encode.
	ErrUnsupportedCommand = errors.New("native: command not supported")
)

// Option configures a Backend.
type Option func(*Backend)

// WithIndexFormat sets the index format used by indexed draws.
// The default is gputypes.IndexFormatUint32.
func WithIndexFormat(f gputypes.IndexFormat) Option {
	return func(b *Backend) {
		b.indexFormat = f
	}
}

// inFlight is a submitted command buffer awaiting completion.
type inFlight struct {
	index   uint64
	encoder hal.CommandEncoder
	buffer  hal.CommandBuffer
}

// Backend implements cmdbuf.Backend on a HAL device and queue.
// It is safe for concurrent use; command buffers are encoded one at a time.
type Backend struct {
	device      hal.Device
	queue       hal.Queue
	indexFormat gputypes.IndexFormat

	mu       sync.Mutex
	buffers  map[*cmdbuf.Buffer]hal.Buffer
	textures map[*cmdbuf.Texture]hal.Texture
	views    map[*cmdbuf.TextureView]hal.TextureView
	render   map[*cmdbuf.RenderPipeline]hal.RenderPipeline
	compute  map[*cmdbuf.ComputePipeline]hal.ComputePipeline
	groups   map[*cmdbuf.BindGroup]hal.BindGroup
	pending  []inFlight
	executed uint64
}

// New creates a Backend that encodes on device and submits to queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	b := &Backend{
		device:      device,
		queue:       queue,
		indexFormat: gputypes.IndexFormatUint32,
		buffers:     make(map[*cmdbuf.Buffer]hal.Buffer),
		textures:    make(map[*cmdbuf.Texture]hal.Texture),
		views:       make(map[*cmdbuf.TextureView]hal.TextureView),
		render:      make(map[*cmdbuf.RenderPipeline]hal.RenderPipeline),
		compute:     make(map[*cmdbuf.ComputePipeline]hal.ComputePipeline),
		groups:      make(map[*cmdbuf.BindGroup]hal.BindGroup),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NewFromProvider creates a Backend from the device and queue of p.
// Both must be HAL objects.
func NewFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	if p == nil {
		return nil, ErrNilDevice
	}
	device, ok := p.Device().(hal.Device)
	if !ok {
		return nil, errors.Wrapf(ErrNotHALDevice, "device is %T", p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, errors.Wrapf(ErrNotHALDevice, "queue is %T", p.Queue())
	}
	return New(device, queue, opts...)
}

// BindRenderPipeline associates p with its HAL pipeline.
func (b *Backend) BindRenderPipeline(p *cmdbuf.RenderPipeline, hp hal.RenderPipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render[p] = hp
}

// BindComputePipeline associates p with its HAL pipeline.
func (b *Backend) BindComputePipeline(p *cmdbuf.ComputePipeline, hp hal.ComputePipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compute[p] = hp
}

// BindBindGroup associates g with its HAL bind group.
func (b *Backend) BindBindGroup(g *cmdbuf.BindGroup, hg hal.BindGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[g] = hg
}

// Execute encodes cb into a HAL command buffer and submits it.
func (b *Backend) Execute(cb *cmdbuf.CommandBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reclaim()

	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: cb.Label()})
	if err != nil {
		return errors.Wrapf(err, "native: create encoder for %q", cb.Label())
	}
	if err := enc.BeginEncoding(cb.Label()); err != nil {
		enc.Destroy()
		return errors.Wrapf(err, "native: begin encoding %q", cb.Label())
	}

	r := newReplay(b, enc)
	if err := cb.Replay(r.command); err != nil {
		r.abort()
		enc.DiscardEncoding()
		enc.Destroy()
		return errors.Wrapf(err, "native: encode %q", cb.Label())
	}

	hcb, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return errors.Wrapf(err, "native: end encoding %q", cb.Label())
	}
	index, err := b.queue.Submit([]hal.CommandBuffer{hcb})
	if err != nil {
		b.device.FreeCommandBuffer(hcb)
		enc.Destroy()
		return errors.Wrapf(err, "native: submit %q", cb.Label())
	}
	b.pending = append(b.pending, inFlight{index: index, encoder: enc, buffer: hcb})
	b.executed++
	cmdbuf.Logger().Debug("native: command buffer submitted",
		"label", cb.Label(),
		"submission", index)
	return nil
}

// reclaim frees command buffers the queue has finished with.
func (b *Backend) reclaim() {
	done := b.queue.PollCompleted()
	kept := b.pending[:0]
	for _, f := range b.pending {
		if f.index > done {
			kept = append(kept, f)
			continue
		}
		b.device.FreeCommandBuffer(f.buffer)
		f.encoder.Destroy()
	}
	clear(b.pending[len(kept):])
	b.pending = kept
}

// Executed returns the number of command buffers submitted to the queue.
func (b *Backend) Executed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executed
}

// Pending returns the number of submitted command buffers not yet reclaimed.
func (b *Backend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Destroy waits for the device to go idle, then frees in-flight command
// buffers and every HAL object the backend created. Bound pipelines and
// bind groups belong to the caller and are not destroyed.
func (b *Backend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.device.WaitIdle()
	for _, f := range b.pending {
		b.device.FreeCommandBuffer(f.buffer)
		f.encoder.Destroy()
	}
	b.pending = nil
	for _, v := range b.views {
		b.device.DestroyTextureView(v)
	}
	for _, t := range b.textures {
		b.device.DestroyTexture(t)
	}
	for _, buf := range b.buffers {
		b.device.DestroyBuffer(buf)
	}
	clear(b.views)
	clear(b.textures)
	clear(b.buffers)
	if err != nil {
		return errors.Wrap(err, "native: wait idle")
	}
	return nil
}

func (b *Backend) buffer(buf *cmdbuf.Buffer) (hal.Buffer, error) {
	if hb, ok := b.buffers[buf]; ok {
		return hb, nil
	}
	hb, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: buf.Label(),
		Size:  buf.Size(),
		Usage: buf.AllowedUsage(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "native: create buffer %q", buf.Label())
	}
	b.buffers[buf] = hb
	return hb, nil
}

func (b *Backend) texture(t *cmdbuf.Texture) (hal.Texture, error) {
	if ht, ok := b.textures[t]; ok {
		return ht, nil
	}
	ht, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         t.Label(),
		Size:          hal.Extent3D{Width: t.Width(), Height: t.Height(), DepthOrArrayLayers: t.Depth()},
		MipLevelCount: t.MipLevelCount(),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.Format(),
		Usage:         t.AllowedUsage(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "native: create texture %q", t.Label())
	}
	b.textures[t] = ht
	return ht, nil
}

func (b *Backend) view(v *cmdbuf.TextureView) (hal.TextureView, error) {
	if hv, ok := b.views[v]; ok {
		return hv, nil
	}
	ht, err := b.texture(v.Texture())
	if err != nil {
		return nil, err
	}
	hv, err := b.device.CreateTextureView(ht, &hal.TextureViewDescriptor{
		Label:           v.Texture().Label(),
		Format:          v.Format(),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "native: create view of %q", v.Texture().Label())
	}
	b.views[v] = hv
	return hv, nil
}

func (b *Backend) renderPipeline(p *cmdbuf.RenderPipeline) (hal.RenderPipeline, error) {
	hp, ok := b.render[p]
	if !ok {
		return nil, errors.Wrapf(ErrUnbound, "render pipeline %q", p.Label())
	}
	return hp, nil
}

func (b *Backend) computePipeline(p *cmdbuf.ComputePipeline) (hal.ComputePipeline, error) {
	hp, ok := b.compute[p]
	if !ok {
		return nil, errors.Wrapf(ErrUnbound, "compute pipeline %q", p.Label())
	}
	return hp, nil
}

func (b *Backend) bindGroup(g *cmdbuf.BindGroup) (hal.BindGroup, error) {
	hg, ok := b.groups[g]
	if !ok {
		return nil, errors.Wrapf(ErrUnbound, "bind group %q", g.Label())
	}
	return hg, nil
}
