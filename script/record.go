package script

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf"
)

// record issues one script command on b.
func (r *runner) record(b *cmdbuf.CommandBufferBuilder, c *Command) error {
	switch c.Op {
	case "begin_compute_pass":
		return b.BeginComputePass()
	case "end_compute_pass":
		return b.EndComputePass()
	case "begin_render_pass":
		pass, err := lookup(r.renderPasses, "render pass", c.RenderPass)
		if err != nil {
			return err
		}
		fb, err := lookup(r.framebuffers, "framebuffer", c.Framebuffer)
		if err != nil {
			return err
		}
		return b.BeginRenderPass(pass, fb)
	case "begin_subpass":
		return b.BeginRenderSubpass()
	case "end_subpass":
		return b.EndRenderSubpass()
	case "end_render_pass":
		return b.EndRenderPass()

	case "transition_buffer":
		buf, err := lookup(r.buffers, "buffer", c.Buffer)
		if err != nil {
			return err
		}
		usage, err := parseFlags("buffer usage", bufferUsages, c.Usage)
		if err != nil {
			return err
		}
		return b.TransitionBufferUsage(buf, usage)
	case "transition_texture":
		tex, err := lookup(r.textures, "texture", c.Texture)
		if err != nil {
			return err
		}
		usage, err := parseFlags("texture usage", textureUsages, c.Usage)
		if err != nil {
			return err
		}
		return b.TransitionTextureUsage(tex, usage)

	case "copy_buffer_to_buffer":
		src, err := lookup(r.buffers, "buffer", c.Source)
		if err != nil {
			return err
		}
		dst, err := lookup(r.buffers, "buffer", c.Destination)
		if err != nil {
			return err
		}
		return b.CopyBufferToBuffer(src, c.SourceOffset, dst, c.DestinationOffset, c.Size)
	case "copy_buffer_to_texture":
		buf, tex, err := r.copyLocations(c)
		if err != nil {
			return err
		}
		return b.CopyBufferToTexture(buf, tex)
	case "copy_texture_to_buffer":
		buf, tex, err := r.copyLocations(c)
		if err != nil {
			return err
		}
		return b.CopyTextureToBuffer(tex, buf)

	case "set_compute_pipeline":
		p, err := lookup(r.compute, "compute pipeline", c.Pipeline)
		if err != nil {
			return err
		}
		return b.SetComputePipeline(p)
	case "set_render_pipeline":
		p, err := lookup(r.render, "render pipeline", c.Pipeline)
		if err != nil {
			return err
		}
		return b.SetRenderPipeline(p)
	case "set_bind_group":
		g, err := lookup(r.groups, "bind group", c.Group)
		if err != nil {
			return err
		}
		return b.SetBindGroup(c.Index, g)
	case "set_vertex_buffers":
		buffers := make([]*cmdbuf.Buffer, len(c.Buffers))
		for i, name := range c.Buffers {
			buf, err := lookup(r.buffers, "buffer", name)
			if err != nil {
				return err
			}
			buffers[i] = buf
		}
		offsets := c.Offsets
		if offsets == nil {
			offsets = make([]uint64, len(buffers))
		}
		return b.SetVertexBuffers(c.Slot, buffers, offsets)
	case "set_index_buffer":
		buf, err := lookup(r.buffers, "buffer", c.Buffer)
		if err != nil {
			return err
		}
		return b.SetIndexBuffer(buf, c.Offset)
	case "set_push_constants":
		stages, err := parseFlags("shader stage", shaderStages, c.Stages)
		if err != nil {
			return err
		}
		if c.Offset > math.MaxUint32 {
			return errors.Wrapf(ErrInvalidScript, "push constant offset %d does not fit 32 bits", c.Offset)
		}
		return b.SetPushConstants(stages, uint32(c.Offset), c.Values)
	case "set_stencil_reference":
		return b.SetStencilReference(c.Reference)
	case "set_blend_color":
		if len(c.Color) != 4 {
			return errors.Wrapf(ErrInvalidScript, "blend color needs 4 components, got %d", len(c.Color))
		}
		return b.SetBlendColor(c.Color[0], c.Color[1], c.Color[2], c.Color[3])

	case "dispatch":
		return b.Dispatch(max(c.X, 1), max(c.Y, 1), max(c.Z, 1))
	case "draw":
		return b.DrawArrays(c.Count, max(c.InstanceCount, 1), c.First, c.FirstInstance)
	case "draw_indexed":
		return b.DrawElements(c.Count, max(c.InstanceCount, 1), c.First, c.FirstInstance)
	}
	return errors.Wrapf(ErrInvalidScript, "unknown op %q", c.Op)
}

// copyLocations resolves the buffer and texture sides of a buffer/texture
// copy. Depth defaults to 1.
func (r *runner) copyLocations(c *Command) (cmdbuf.BufferCopyLocation, cmdbuf.TextureCopyLocation, error) {
	buf, err := lookup(r.buffers, "buffer", c.Buffer)
	if err != nil {
		return cmdbuf.BufferCopyLocation{}, cmdbuf.TextureCopyLocation{}, err
	}
	tex, err := lookup(r.textures, "texture", c.Texture)
	if err != nil {
		return cmdbuf.BufferCopyLocation{}, cmdbuf.TextureCopyLocation{}, err
	}
	depth := c.Depth
	if depth == 0 {
		depth = 1
	}
	return cmdbuf.BufferCopyLocation{Buffer: buf, Offset: c.Offset, RowPitch: c.RowPitch},
		cmdbuf.TextureCopyLocation{
			Texture: tex,
			Origin:  cmdbuf.Origin3D{X: c.X, Y: c.Y, Z: c.Z},
			Size:    gputypes.Extent3D{Width: c.Width, Height: c.Height, DepthOrArrayLayers: depth},
			Level:   c.Level,
		}, nil
}
