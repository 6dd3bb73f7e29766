package script

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf"
)

type releaser interface {
	Release()
}

// runner holds the objects a script creates, by name.
type runner struct {
	dev          *cmdbuf.Device
	buffers      map[string]*cmdbuf.Buffer
	textures     map[string]*cmdbuf.Texture
	samplers     map[string]*cmdbuf.Sampler
	shaders      map[string]*cmdbuf.ShaderModule
	layouts      map[string]*cmdbuf.BindGroupLayout
	groups       map[string]*cmdbuf.BindGroup
	inputs       map[string]*cmdbuf.InputState
	compute      map[string]*cmdbuf.ComputePipeline
	renderPasses map[string]*cmdbuf.RenderPass
	framebuffers map[string]*cmdbuf.Framebuffer
	render       map[string]*cmdbuf.RenderPipeline

	// owned is released when the run ends; the command buffer keeps its
	// own references.
	owned []releaser
}

// Run creates the script's objects on dev, applies its freezes and
// records its commands. The returned command buffer has passed
// validation; the caller owns it.
//
// Recording and validation errors are returned as produced by cmdbuf, so
// errors.Is works with the cmdbuf.Err* values.
func (s *Script) Run(dev *cmdbuf.Device) (*cmdbuf.CommandBuffer, error) {
	r := &runner{
		dev:          dev,
		buffers:      make(map[string]*cmdbuf.Buffer),
		textures:     make(map[string]*cmdbuf.Texture),
		samplers:     make(map[string]*cmdbuf.Sampler),
		shaders:      make(map[string]*cmdbuf.ShaderModule),
		layouts:      make(map[string]*cmdbuf.BindGroupLayout),
		groups:       make(map[string]*cmdbuf.BindGroup),
		inputs:       make(map[string]*cmdbuf.InputState),
		compute:      make(map[string]*cmdbuf.ComputePipeline),
		renderPasses: make(map[string]*cmdbuf.RenderPass),
		framebuffers: make(map[string]*cmdbuf.Framebuffer),
		render:       make(map[string]*cmdbuf.RenderPipeline),
	}
	defer r.release()

	if err := r.create(s); err != nil {
		return nil, err
	}
	if err := r.freeze(s.Freeze); err != nil {
		return nil, err
	}

	b := dev.CreateCommandBufferBuilder(s.Label)
	for i := range s.Commands {
		if err := r.record(b, &s.Commands[i]); err != nil {
			b.Release()
			return nil, errors.Wrapf(err, "command %d (%s)", i, s.Commands[i].Op)
		}
	}
	return b.GetResult()
}

func (r *runner) release() {
	for i := len(r.owned) - 1; i >= 0; i-- {
		r.owned[i].Release()
	}
}

func (r *runner) create(s *Script) error {
	for _, b := range s.Buffers {
		if err := r.createBuffer(b); err != nil {
			return err
		}
	}
	for _, t := range s.Textures {
		if err := r.createTexture(t); err != nil {
			return err
		}
	}
	for _, sm := range s.Samplers {
		sampler := r.dev.CreateSampler(cmdbuf.SamplerDescriptor{Label: sm.Name})
		r.owned = append(r.owned, sampler)
		r.samplers[sm.Name] = sampler
	}
	for _, sh := range s.Shaders {
		m, err := r.dev.CreateShaderModule(cmdbuf.ShaderModuleDescriptor{Label: sh.Name, WGSL: sh.WGSL})
		if err != nil {
			return err
		}
		r.owned = append(r.owned, m)
		r.shaders[sh.Name] = m
	}
	for _, l := range s.BindGroupLayouts {
		if err := r.createBindGroupLayout(l); err != nil {
			return err
		}
	}
	for _, g := range s.BindGroups {
		if err := r.createBindGroup(g); err != nil {
			return err
		}
	}
	for _, in := range s.InputStates {
		if err := r.createInputState(in); err != nil {
			return err
		}
	}
	for _, p := range s.Compute {
		if err := r.createComputePipeline(p); err != nil {
			return err
		}
	}
	for _, rp := range s.RenderPasses {
		if err := r.createRenderPass(rp); err != nil {
			return err
		}
	}
	for _, fb := range s.Framebuffers {
		if err := r.createFramebuffer(fb); err != nil {
			return err
		}
	}
	for _, p := range s.Render {
		if err := r.createRenderPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) createBuffer(b Buffer) error {
	usage, err := parseFlags("buffer usage", bufferUsages, b.Usage)
	if err != nil {
		return errors.Wrapf(err, "buffer %q", b.Name)
	}
	initial, err := parseFlags("buffer usage", bufferUsages, b.Initial)
	if err != nil {
		return errors.Wrapf(err, "buffer %q", b.Name)
	}
	buf, err := r.dev.CreateBuffer(cmdbuf.BufferDescriptor{
		Label:        b.Name,
		Size:         b.Size,
		Usage:        usage,
		InitialUsage: initial,
	})
	if err != nil {
		return err
	}
	r.owned = append(r.owned, buf)
	r.buffers[b.Name] = buf
	return nil
}

func (r *runner) createTexture(t Texture) error {
	format, err := parseFormat(t.Format)
	if err != nil {
		return errors.Wrapf(err, "texture %q", t.Name)
	}
	usage, err := parseFlags("texture usage", textureUsages, t.Usage)
	if err != nil {
		return errors.Wrapf(err, "texture %q", t.Name)
	}
	initial, err := parseFlags("texture usage", textureUsages, t.Initial)
	if err != nil {
		return errors.Wrapf(err, "texture %q", t.Name)
	}
	mips := t.Mips
	if mips == 0 {
		mips = 1
	}
	tex, err := r.dev.CreateTexture(cmdbuf.TextureDescriptor{
		Label:         t.Name,
		Format:        format,
		Size:          gputypes.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
		MipLevelCount: mips,
		Usage:         usage,
		InitialUsage:  initial,
	})
	if err != nil {
		return err
	}
	r.owned = append(r.owned, tex)
	r.textures[t.Name] = tex
	return nil
}

func (r *runner) createComputePipeline(p ComputePipeline) error {
	module, err := lookup(r.shaders, "shader", p.Shader)
	if err != nil {
		return errors.Wrapf(err, "compute pipeline %q", p.Name)
	}
	layout, err := r.pipelineLayout(p.Name, p.Layouts)
	if err != nil {
		return errors.Wrapf(err, "compute pipeline %q", p.Name)
	}
	entry := p.EntryPoint
	if entry == "" {
		entry = "main"
	}
	cp, err := r.dev.CreateComputePipeline(cmdbuf.ComputePipelineDescriptor{
		Label:   p.Name,
		Layout:  layout,
		Compute: cmdbuf.ProgrammableStage{Module: module, EntryPoint: entry},
	})
	if err != nil {
		return err
	}
	r.owned = append(r.owned, cp)
	r.compute[p.Name] = cp
	return nil
}

func (r *runner) createRenderPass(rp RenderPass) error {
	desc := cmdbuf.RenderPassDescriptor{Label: rp.Name}
	for _, name := range rp.Attachments {
		format, err := parseFormat(name)
		if err != nil {
			return errors.Wrapf(err, "render pass %q", rp.Name)
		}
		desc.Attachments = append(desc.Attachments, cmdbuf.AttachmentDescriptor{
			Format:  format,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		})
	}
	for _, sp := range rp.Subpasses {
		sd := cmdbuf.SubpassDescriptor{ColorAttachments: sp.Colors}
		if sp.DepthStencil != nil {
			sd.HasDepthStencil = true
			sd.DepthStencilAttachment = *sp.DepthStencil
		}
		desc.Subpasses = append(desc.Subpasses, sd)
	}
	pass, err := r.dev.CreateRenderPass(desc)
	if err != nil {
		return err
	}
	r.owned = append(r.owned, pass)
	r.renderPasses[rp.Name] = pass
	return nil
}

func (r *runner) createFramebuffer(fb Framebuffer) error {
	pass, err := lookup(r.renderPasses, "render pass", fb.RenderPass)
	if err != nil {
		return errors.Wrapf(err, "framebuffer %q", fb.Name)
	}
	desc := cmdbuf.FramebufferDescriptor{
		Label:      fb.Name,
		RenderPass: pass,
		Width:      fb.Width,
		Height:     fb.Height,
	}
	for _, name := range fb.Attachments {
		tex, err := lookup(r.textures, "texture", name)
		if err != nil {
			return errors.Wrapf(err, "framebuffer %q", fb.Name)
		}
		view := tex.CreateView()
		r.owned = append(r.owned, view)
		desc.Attachments = append(desc.Attachments, view)
	}
	framebuffer, err := r.dev.CreateFramebuffer(desc)
	if err != nil {
		return err
	}
	r.owned = append(r.owned, framebuffer)
	r.framebuffers[fb.Name] = framebuffer
	return nil
}

func (r *runner) freeze(list []Freeze) error {
	for _, f := range list {
		switch {
		case f.Buffer != "" && f.Texture == "":
			buf, err := lookup(r.buffers, "buffer", f.Buffer)
			if err != nil {
				return err
			}
			usage, err := parseFlags("buffer usage", bufferUsages, f.Usage)
			if err != nil {
				return err
			}
			if err := buf.FreezeUsage(usage); err != nil {
				return err
			}
		case f.Texture != "" && f.Buffer == "":
			tex, err := lookup(r.textures, "texture", f.Texture)
			if err != nil {
				return err
			}
			usage, err := parseFlags("texture usage", textureUsages, f.Usage)
			if err != nil {
				return err
			}
			if err := tex.FreezeUsage(usage); err != nil {
				return err
			}
		default:
			return errors.Wrap(ErrInvalidScript, "freeze needs exactly one of buffer or texture")
		}
	}
	return nil
}

func lookup[T any](m map[string]T, what, name string) (T, error) {
	v, ok := m[name]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrInvalidScript, "unknown %s %q", what, name)
	}
	return v, nil
}
