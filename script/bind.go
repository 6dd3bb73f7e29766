package script

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf"
)

func (r *runner) createBindGroupLayout(l BindGroupLayout) error {
	desc := cmdbuf.BindGroupLayoutDescriptor{Label: l.Name}
	for _, e := range l.Entries {
		entry, err := layoutEntry(e)
		if err != nil {
			return errors.Wrapf(err, "bind group layout %q", l.Name)
		}
		desc.Entries = append(desc.Entries, entry)
	}
	layout, err := r.dev.CreateBindGroupLayout(desc)
	if err != nil {
		return err
	}
	r.owned = append(r.owned, layout)
	r.layouts[l.Name] = layout
	return nil
}

func layoutEntry(e LayoutEntry) (gputypes.BindGroupLayoutEntry, error) {
	visibility, err := parseFlags("shader stage", visibilityStages, e.Visibility)
	if err != nil {
		return gputypes.BindGroupLayoutEntry{}, err
	}
	entry := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: visibility}
	switch e.Type {
	case "uniform", "storage", "read_only_storage":
		entry.Buffer = &gputypes.BufferBindingLayout{
			Type:             bufferBindingTypes[e.Type],
			HasDynamicOffset: e.DynamicOffset,
			MinBindingSize:   e.MinBindingSize,
		}
	case "sampler":
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case "texture":
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	default:
		return gputypes.BindGroupLayoutEntry{}, errors.Wrapf(ErrInvalidScript, "binding %d: unknown type %q", e.Binding, e.Type)
	}
	return entry, nil
}

func (r *runner) createBindGroup(g BindGroup) error {
	layout, err := lookup(r.layouts, "bind group layout", g.Layout)
	if err != nil {
		return errors.Wrapf(err, "bind group %q", g.Name)
	}
	desc := cmdbuf.BindGroupDescriptor{Label: g.Name, Layout: layout}
	for _, e := range g.Entries {
		entry, err := r.groupEntry(e)
		if err != nil {
			return errors.Wrapf(err, "bind group %q", g.Name)
		}
		desc.Entries = append(desc.Entries, entry)
	}
	group, err := r.dev.CreateBindGroup(desc)
	if err != nil {
		return err
	}
	r.owned = append(r.owned, group)
	r.groups[g.Name] = group
	return nil
}

func (r *runner) groupEntry(e GroupEntry) (cmdbuf.BindGroupEntry, error) {
	entry := cmdbuf.BindGroupEntry{Binding: e.Binding, Offset: e.Offset, Size: e.Size}
	var err error
	if e.Buffer != "" {
		if entry.Buffer, err = lookup(r.buffers, "buffer", e.Buffer); err != nil {
			return entry, err
		}
	}
	if e.Sampler != "" {
		if entry.Sampler, err = lookup(r.samplers, "sampler", e.Sampler); err != nil {
			return entry, err
		}
	}
	if e.Texture != "" {
		tex, err := lookup(r.textures, "texture", e.Texture)
		if err != nil {
			return entry, err
		}
		entry.TextureView = tex.CreateView()
		r.owned = append(r.owned, entry.TextureView)
	}
	return entry, nil
}

func (r *runner) createInputState(in InputState) error {
	desc := cmdbuf.InputStateDescriptor{Label: in.Name}
	for _, vi := range in.Inputs {
		layout := gputypes.VertexBufferLayout{ArrayStride: vi.Stride, StepMode: gputypes.VertexStepModeVertex}
		if vi.Instance {
			layout.StepMode = gputypes.VertexStepModeInstance
		}
		for _, a := range vi.Attributes {
			format, ok := vertexFormats[a.Format]
			if !ok {
				return errors.Wrapf(ErrInvalidScript, "input state %q: unknown vertex format %q", in.Name, a.Format)
			}
			layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
				Format:         format,
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		desc.Inputs = append(desc.Inputs, cmdbuf.VertexInput{Slot: vi.Slot, Layout: layout})
	}
	state, err := r.dev.CreateInputState(desc)
	if err != nil {
		return err
	}
	r.owned = append(r.owned, state)
	r.inputs[in.Name] = state
	return nil
}

// pipelineLayout creates a pipeline layout from bind group layout names.
func (r *runner) pipelineLayout(label string, names []string) (*cmdbuf.PipelineLayout, error) {
	desc := cmdbuf.PipelineLayoutDescriptor{Label: label}
	for _, name := range names {
		l, err := lookup(r.layouts, "bind group layout", name)
		if err != nil {
			return nil, err
		}
		desc.BindGroupLayouts = append(desc.BindGroupLayouts, l)
	}
	layout, err := r.dev.CreatePipelineLayout(desc)
	if err != nil {
		return nil, err
	}
	r.owned = append(r.owned, layout)
	return layout, nil
}

func (r *runner) createRenderPipeline(p RenderPipeline) error {
	module, err := lookup(r.shaders, "shader", p.Shader)
	if err != nil {
		return errors.Wrapf(err, "render pipeline %q", p.Name)
	}
	pass, err := lookup(r.renderPasses, "render pass", p.RenderPass)
	if err != nil {
		return errors.Wrapf(err, "render pipeline %q", p.Name)
	}
	var input *cmdbuf.InputState
	if p.InputState != "" {
		if input, err = lookup(r.inputs, "input state", p.InputState); err != nil {
			return errors.Wrapf(err, "render pipeline %q", p.Name)
		}
	}
	layout, err := r.pipelineLayout(p.Name, p.Layouts)
	if err != nil {
		return errors.Wrapf(err, "render pipeline %q", p.Name)
	}
	vertex, fragment := p.VertexEntry, p.FragmentEntry
	if vertex == "" {
		vertex = "vs_main"
	}
	if fragment == "" {
		fragment = "fs_main"
	}
	rp, err := r.dev.CreateRenderPipeline(cmdbuf.RenderPipelineDescriptor{
		Label:      p.Name,
		Layout:     layout,
		InputState: input,
		RenderPass: pass,
		Subpass:    p.Subpass,
		Vertex:     cmdbuf.ProgrammableStage{Module: module, EntryPoint: vertex},
		Fragment:   cmdbuf.ProgrammableStage{Module: module, EntryPoint: fragment},
	})
	if err != nil {
		return err
	}
	r.owned = append(r.owned, rp)
	r.render[p.Name] = rp
	return nil
}
