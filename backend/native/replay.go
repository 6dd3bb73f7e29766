package native

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdbuf"
)

// replay translates the commands of one command buffer into HAL encoder
// calls. Each subpass of a cmdbuf render pass is encoded as its own HAL
// render pass.
type replay struct {
	b   *Backend
	enc hal.CommandEncoder

	renderPass  *cmdbuf.RenderPass
	framebuffer *cmdbuf.Framebuffer
	subpass     uint32
	render      hal.RenderPassEncoder
	compute     hal.ComputePassEncoder

	// Last usage declared in this command buffer; zero when unknown.
	bufferUsage  map[*cmdbuf.Buffer]gputypes.BufferUsage
	textureUsage map[*cmdbuf.Texture]gputypes.TextureUsage
}

func newReplay(b *Backend, enc hal.CommandEncoder) *replay {
	return &replay{
		b:            b,
		enc:          enc,
		bufferUsage:  make(map[*cmdbuf.Buffer]gputypes.BufferUsage),
		textureUsage: make(map[*cmdbuf.Texture]gputypes.TextureUsage),
	}
}

// abort ends any pass left open by a failed replay.
func (r *replay) abort() {
	if r.render != nil {
		r.render.End()
		r.render = nil
	}
	if r.compute != nil {
		r.compute.End()
		r.compute = nil
	}
}

func (r *replay) command(c cmdbuf.Command) error {
	switch c := c.(type) {
	case *cmdbuf.BeginComputePassCmd:
		r.compute = r.enc.BeginComputePass(&hal.ComputePassDescriptor{})
	case *cmdbuf.EndComputePassCmd:
		r.compute.End()
		r.compute = nil
	case *cmdbuf.BeginRenderPassCmd:
		r.renderPass, r.framebuffer, r.subpass = c.RenderPass, c.Framebuffer, 0
	case *cmdbuf.BeginRenderSubpassCmd:
		desc, err := r.subpassDescriptor()
		if err != nil {
			return err
		}
		r.render = r.enc.BeginRenderPass(desc)
	case *cmdbuf.EndRenderSubpassCmd:
		r.render.End()
		r.render = nil
		r.subpass++
	case *cmdbuf.EndRenderPassCmd:
		r.renderPass, r.framebuffer = nil, nil

	case *cmdbuf.CopyBufferToBufferCmd:
		src, err := r.b.buffer(c.Source)
		if err != nil {
			return err
		}
		dst, err := r.b.buffer(c.Destination)
		if err != nil {
			return err
		}
		r.enc.CopyBufferToBuffer(src, dst, []hal.BufferCopy{{
			SrcOffset: c.SourceOffset,
			DstOffset: c.DestinationOffset,
			Size:      c.Size,
		}})
	case *cmdbuf.CopyBufferToTextureCmd:
		src, err := r.b.buffer(c.Source.Buffer)
		if err != nil {
			return err
		}
		dst, err := r.b.texture(c.Destination.Texture)
		if err != nil {
			return err
		}
		r.enc.CopyBufferToTexture(src, dst, []hal.BufferTextureCopy{bufferTextureCopy(c.Source, c.Destination, dst)})
	case *cmdbuf.CopyTextureToBufferCmd:
		src, err := r.b.texture(c.Source.Texture)
		if err != nil {
			return err
		}
		dst, err := r.b.buffer(c.Destination.Buffer)
		if err != nil {
			return err
		}
		r.enc.CopyTextureToBuffer(src, dst, []hal.BufferTextureCopy{bufferTextureCopy(c.Destination, c.Source, src)})

	case *cmdbuf.SetComputePipelineCmd:
		p, err := r.b.computePipeline(c.Pipeline)
		if err != nil {
			return err
		}
		r.compute.SetPipeline(p)
	case *cmdbuf.DispatchCmd:
		r.compute.Dispatch(c.X, c.Y, c.Z)

	case *cmdbuf.SetRenderPipelineCmd:
		p, err := r.b.renderPipeline(c.Pipeline)
		if err != nil {
			return err
		}
		r.render.SetPipeline(p)
	case *cmdbuf.SetBindGroupCmd:
		g, err := r.b.bindGroup(c.Group)
		if err != nil {
			return err
		}
		if r.render != nil {
			r.render.SetBindGroup(c.Index, g, nil)
		} else {
			r.compute.SetBindGroup(c.Index, g, nil)
		}
	case *cmdbuf.VertexBuffers:
		for i, buf := range c.Buffers {
			hb, err := r.b.buffer(buf)
			if err != nil {
				return err
			}
			r.render.SetVertexBuffer(c.StartSlot+uint32(i), hb, c.Offsets[i])
		}
	case *cmdbuf.SetIndexBufferCmd:
		hb, err := r.b.buffer(c.Buffer)
		if err != nil {
			return err
		}
		r.render.SetIndexBuffer(hb, r.b.indexFormat, c.Offset)
	case *cmdbuf.SetStencilReferenceCmd:
		r.render.SetStencilReference(c.Reference)
	case *cmdbuf.SetBlendColorCmd:
		r.render.SetBlendConstant(&gputypes.Color{
			R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A),
		})
	case *cmdbuf.DrawArraysCmd:
		r.render.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
	case *cmdbuf.DrawElementsCmd:
		r.render.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, 0, c.FirstInstance)

	case *cmdbuf.TransitionBufferUsageCmd:
		hb, err := r.b.buffer(c.Buffer)
		if err != nil {
			return err
		}
		r.enc.TransitionBuffers([]hal.BufferBarrier{{
			Buffer: hb,
			Usage:  hal.BufferUsageTransition{OldUsage: r.bufferUsage[c.Buffer], NewUsage: c.Usage},
		}})
		r.bufferUsage[c.Buffer] = c.Usage
	case *cmdbuf.TransitionTextureUsageCmd:
		ht, err := r.b.texture(c.Texture)
		if err != nil {
			return err
		}
		r.enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: ht,
			Range: hal.TextureRange{
				Aspect:          gputypes.TextureAspectAll,
				MipLevelCount:   c.Texture.MipLevelCount(),
				ArrayLayerCount: 1,
			},
			Usage: hal.TextureUsageTransition{OldUsage: r.textureUsage[c.Texture], NewUsage: c.Usage},
		}})
		r.textureUsage[c.Texture] = c.Usage

	default:
		// Push constants have no HAL encoder call.
		return errors.Wrapf(ErrUnsupportedCommand, "%v", c.ID())
	}
	return nil
}

// subpassDescriptor builds the HAL render pass for the current subpass.
func (r *replay) subpassDescriptor() (*hal.RenderPassDescriptor, error) {
	sp := r.renderPass.Subpass(r.subpass)
	desc := &hal.RenderPassDescriptor{Label: r.renderPass.Label()}
	for _, i := range sp.ColorAttachments {
		v, err := r.b.view(r.framebuffer.Attachment(i))
		if err != nil {
			return nil, err
		}
		load, store := r.attachmentOps(i)
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:    v,
			LoadOp:  load,
			StoreOp: store,
		})
	}
	if sp.HasDepthStencil {
		i := sp.DepthStencilAttachment
		v, err := r.b.view(r.framebuffer.Attachment(i))
		if err != nil {
			return nil, err
		}
		load, store := r.attachmentOps(i)
		ds := &hal.RenderPassDepthStencilAttachment{View: v, DepthClearValue: 1}
		format := r.renderPass.Attachment(i).Format
		if format.HasDepth() {
			ds.DepthLoadOp, ds.DepthStoreOp = load, store
		}
		if format.HasStencil() {
			ds.StencilLoadOp, ds.StencilStoreOp = load, store
		}
		desc.DepthStencilAttachment = ds
	}
	return desc, nil
}

// attachmentOps returns the ops of attachment i in the current subpass.
// The pass load op applies to the first subpass using the attachment and
// the pass store op to the last; subpasses in between keep the contents.
func (r *replay) attachmentOps(i uint32) (gputypes.LoadOp, gputypes.StoreOp) {
	a := r.renderPass.Attachment(i)
	load, store := gputypes.LoadOpLoad, gputypes.StoreOpStore
	first, last := attachmentUses(r.renderPass, i)
	if r.subpass == first {
		load = a.LoadOp
	}
	if r.subpass == last {
		store = a.StoreOp
	}
	return load, store
}

// attachmentUses returns the first and last subpass writing attachment i.
func attachmentUses(rp *cmdbuf.RenderPass, i uint32) (first, last uint32) {
	first = rp.SubpassCount()
	for s := range rp.SubpassCount() {
		sp := rp.Subpass(s)
		if !slices.Contains(sp.ColorAttachments, i) && (!sp.HasDepthStencil || sp.DepthStencilAttachment != i) {
			continue
		}
		first = min(first, s)
		last = s
	}
	return first, last
}

func bufferTextureCopy(b cmdbuf.BufferCopyLocation, t cmdbuf.TextureCopyLocation, tex hal.Texture) hal.BufferTextureCopy {
	return hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			Offset:       b.Offset,
			BytesPerRow:  b.RowPitch,
			RowsPerImage: t.Size.Height,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  tex,
			MipLevel: t.Level,
			Origin:   hal.Origin3D{X: t.Origin.X, Y: t.Origin.Y, Z: t.Origin.Z},
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{
			Width:              t.Size.Width,
			Height:             t.Size.Height,
			DepthOrArrayLayers: max(t.Size.DepthOrArrayLayers, 1),
		},
	}
}
