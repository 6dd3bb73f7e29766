package cmdbuf

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ShaderStage is a set of programmable pipeline stages.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	ShaderStageNone ShaderStage = 0
)

// String returns the stages joined by "|".
func (s ShaderStage) String() string {
	if s == ShaderStageNone {
		return "None"
	}
	var parts []string
	for _, st := range []struct {
		bit  ShaderStage
		name string
	}{
		{ShaderStageVertex, "Vertex"},
		{ShaderStageFragment, "Fragment"},
		{ShaderStageCompute, "Compute"},
	} {
		if s&st.bit != 0 {
			parts = append(parts, st.name)
			s &^= st.bit
		}
	}
	if s != 0 {
		parts = append(parts, "Unknown")
	}
	return strings.Join(parts, "|")
}

// PipelineLayoutDescriptor describes a pipeline layout. A nil entry leaves
// that bind group index unused.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []*BindGroupLayout
}

// PipelineLayout lists the bind group layouts a pipeline uses.
type PipelineLayout struct {
	refCounted
	label   string
	layouts [MaxBindGroups]*BindGroupLayout
	mask    uint32
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(desc PipelineLayoutDescriptor) (*PipelineLayout, error) {
	if len(desc.BindGroupLayouts) > MaxBindGroups {
		return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor,
			"pipeline layout %q: %d bind group layouts, at most %d", desc.Label, len(desc.BindGroupLayouts), MaxBindGroups))
	}
	pl := &PipelineLayout{label: desc.Label}
	for i, l := range desc.BindGroupLayouts {
		if l == nil {
			continue
		}
		l.Reference()
		pl.layouts[i] = l
		pl.mask |= 1 << i
	}
	pl.initRefs(func() {
		for _, l := range pl.layouts {
			if l != nil {
				l.Release()
			}
		}
	})
	return pl, nil
}

// Label returns the debug label.
func (pl *PipelineLayout) Label() string { return pl.label }

// BindGroupLayout returns the layout expected at index, or nil.
func (pl *PipelineLayout) BindGroupLayout(index uint32) *BindGroupLayout {
	if index >= MaxBindGroups {
		return nil
	}
	return pl.layouts[index]
}

// BindGroupsLayoutMask returns the mask of bind group indices the layout uses.
func (pl *PipelineLayout) BindGroupsLayoutMask() uint32 { return pl.mask }

// ProgrammableStage names a shader entry point.
type ProgrammableStage struct {
	Module     *ShaderModule
	EntryPoint string
}

func (s ProgrammableStage) validate(stage string) error {
	if s.Module == nil {
		return errors.Wrapf(ErrNilObject, "%s module", stage)
	}
	if s.EntryPoint == "" {
		return errors.Wrapf(ErrInvalidDescriptor, "%s entry point is empty", stage)
	}
	return nil
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label  string
	Layout *PipelineLayout

	// InputState may be nil for pipelines without vertex buffers.
	InputState *InputState

	RenderPass *RenderPass
	Subpass    uint32

	Vertex   ProgrammableStage
	Fragment ProgrammableStage
}

// RenderPipeline is the state used by draws in one subpass of a render pass.
type RenderPipeline struct {
	refCounted
	label      string
	layout     *PipelineLayout
	inputState *InputState
	renderPass *RenderPass
	subpass    uint32
	vertex     ProgrammableStage
	fragment   ProgrammableStage
}

// CreateRenderPipeline creates a render pipeline.
func (d *Device) CreateRenderPipeline(desc RenderPipelineDescriptor) (*RenderPipeline, error) {
	if err := validateRenderPipelineDescriptor(desc); err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "render pipeline %q", desc.Label))
	}
	input := desc.InputState
	if input == nil {
		input = d.emptyInputState
	}
	p := &RenderPipeline{
		label:      desc.Label,
		layout:     desc.Layout,
		inputState: input,
		renderPass: desc.RenderPass,
		subpass:    desc.Subpass,
		vertex:     desc.Vertex,
		fragment:   desc.Fragment,
	}
	held := []refCounter{
		p.layout, p.inputState, p.renderPass, p.vertex.Module, p.fragment.Module,
	}
	for _, o := range held {
		o.Reference()
	}
	p.initRefs(func() {
		for _, o := range held {
			o.Release()
		}
	})
	d.stats.pipelines.Add(1)
	return p, nil
}

func validateRenderPipelineDescriptor(desc RenderPipelineDescriptor) error {
	if desc.Layout == nil {
		return errors.Wrap(ErrNilObject, "layout")
	}
	if desc.RenderPass == nil {
		return errors.Wrap(ErrNilObject, "render pass")
	}
	if desc.Subpass >= desc.RenderPass.SubpassCount() {
		return errors.Wrapf(ErrInvalidDescriptor, "subpass %d, render pass has %d",
			desc.Subpass, desc.RenderPass.SubpassCount())
	}
	if err := desc.Vertex.validate("vertex"); err != nil {
		return err
	}
	return desc.Fragment.validate("fragment")
}

// Label returns the debug label.
func (p *RenderPipeline) Label() string { return p.label }

// Layout returns the pipeline layout.
func (p *RenderPipeline) Layout() *PipelineLayout { return p.layout }

// InputState returns the vertex input state.
func (p *RenderPipeline) InputState() *InputState { return p.inputState }

// RenderPass returns the render pass the pipeline was created for.
func (p *RenderPipeline) RenderPass() *RenderPass { return p.renderPass }

// Subpass returns the subpass index the pipeline was created for.
func (p *RenderPipeline) Subpass() uint32 { return p.subpass }

// IsCompatibleWith reports whether the pipeline can draw in subpass of rp.
func (p *RenderPipeline) IsCompatibleWith(rp *RenderPass, subpass uint32) bool {
	return p.subpass == subpass && p.renderPass.IsCompatibleWith(rp)
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label   string
	Layout  *PipelineLayout
	Compute ProgrammableStage
}

// ComputePipeline is the state used by dispatches.
type ComputePipeline struct {
	refCounted
	label   string
	layout  *PipelineLayout
	compute ProgrammableStage
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc ComputePipelineDescriptor) (*ComputePipeline, error) {
	if desc.Layout == nil {
		return nil, d.creationFailed(errors.Wrapf(ErrNilObject, "compute pipeline %q: layout", desc.Label))
	}
	if err := desc.Compute.validate("compute"); err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "compute pipeline %q", desc.Label))
	}
	p := &ComputePipeline{label: desc.Label, layout: desc.Layout, compute: desc.Compute}
	p.layout.Reference()
	p.compute.Module.Reference()
	p.initRefs(func() {
		p.compute.Module.Release()
		p.layout.Release()
	})
	d.stats.pipelines.Add(1)
	return p, nil
}

// Label returns the debug label.
func (p *ComputePipeline) Label() string { return p.label }

// Layout returns the pipeline layout.
func (p *ComputePipeline) Layout() *PipelineLayout { return p.layout }
