package cmdbuf

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf/command"
)

// passState is the scope the state tracker is in.
type passState uint8

const (
	passNone passState = iota
	passRender
	passRenderSubpass
	passCompute
)

func (s passState) String() string {
	switch s {
	case passNone:
		return "NoPass"
	case passRender:
		return "RenderPass"
	case passRenderSubpass:
		return "RenderSubpass"
	case passCompute:
		return "ComputePass"
	default:
		return "Unknown"
	}
}

// resourceSet is an insertion-ordered set of resources.
type resourceSet[T comparable] struct {
	index map[T]struct{}
	items []T
}

func (s *resourceSet[T]) add(v T) {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *resourceSet[T]) len() int { return len(s.items) }

func (s *resourceSet[T]) contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

const allBindGroups = 1<<MaxBindGroups - 1

// stateTracker validates a command stream one command at a time. It lives
// for one GetResult call and is not safe for concurrent use.
type stateTracker struct {
	pass        passState
	renderPass  *RenderPass
	framebuffer *Framebuffer
	subpasses   uint32 // subpasses begun in the current render pass

	renderPipeline  *RenderPipeline
	computePipeline *ComputePipeline
	lastLayout      *PipelineLayout

	bindGroups     [MaxBindGroups]*BindGroup
	bindGroupsSet  uint32
	inputsSet      uint32
	indexBufferSet bool

	buffersTransitioned  resourceSet[*Buffer]
	texturesTransitioned resourceSet[*Texture]
}

func newStateTracker() *stateTracker {
	return &stateTracker{}
}

// resetPipelineState clears everything bound inside a subpass or compute pass.
func (t *stateTracker) resetPipelineState() {
	t.renderPipeline = nil
	t.computePipeline = nil
	t.lastLayout = nil
	t.bindGroups = [MaxBindGroups]*BindGroup{}
	t.bindGroupsSet = 0
	t.inputsSet = 0
	t.indexBufferSet = false
}

func (t *stateTracker) beginRenderPass(rp *RenderPass, fb *Framebuffer) error {
	if t.pass != passNone {
		return errors.Wrapf(ErrPassNesting, "render pass begun inside %v", t.pass)
	}
	if rp == nil || fb == nil {
		return errors.Wrap(ErrPassNesting, "render pass begun without a render pass and framebuffer")
	}
	if !fb.RenderPass().IsCompatibleWith(rp) {
		return errors.Wrapf(ErrIncompatibleFramebuffer, "framebuffer %q, render pass %q", fb.Label(), rp.Label())
	}
	t.pass = passRender
	t.renderPass = rp
	t.framebuffer = fb
	t.subpasses = 0
	return nil
}

func (t *stateTracker) beginSubpass() error {
	switch {
	case t.pass == passRenderSubpass:
		return errors.Wrapf(ErrPassNesting, "subpass %d begun before subpass %d ended", t.subpasses+1, t.subpasses)
	case t.pass != passRender:
		return errors.Wrapf(ErrPassNesting, "subpass begun inside %v", t.pass)
	case t.subpasses >= t.renderPass.SubpassCount():
		return errors.Wrapf(ErrPassNesting, "render pass %q has only %d subpasses", t.renderPass.Label(), t.renderPass.SubpassCount())
	}

	subpass := t.renderPass.Subpass(t.subpasses)
	for _, i := range subpass.attachments() {
		tex := t.framebuffer.Attachment(i).Texture()
		if err := t.ensureTextureUsage(tex, gputypes.TextureUsageRenderAttachment); err != nil {
			return errors.Wrapf(err, "subpass %d attachment %d", t.subpasses, i)
		}
	}

	t.pass = passRenderSubpass
	t.resetPipelineState()
	return nil
}

func (t *stateTracker) endSubpass() error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrPassNesting, "subpass ended inside %v", t.pass)
	}
	t.subpasses++
	t.pass = passRender
	t.resetPipelineState()
	return nil
}

func (t *stateTracker) endRenderPass() error {
	switch {
	case t.pass == passRenderSubpass:
		return errors.Wrapf(ErrPassNesting, "render pass ended inside subpass %d", t.subpasses)
	case t.pass != passRender:
		return errors.Wrapf(ErrPassNesting, "render pass ended inside %v", t.pass)
	case t.subpasses != t.renderPass.SubpassCount():
		return errors.Wrapf(ErrPassNesting, "render pass ended after %d of %d subpasses",
			t.subpasses, t.renderPass.SubpassCount())
	}
	t.pass = passNone
	t.renderPass = nil
	t.framebuffer = nil
	t.subpasses = 0
	return nil
}

func (t *stateTracker) beginComputePass() error {
	if t.pass != passNone {
		return errors.Wrapf(ErrPassNesting, "compute pass begun inside %v", t.pass)
	}
	t.pass = passCompute
	t.resetPipelineState()
	return nil
}

func (t *stateTracker) endComputePass() error {
	if t.pass != passCompute {
		return errors.Wrapf(ErrPassNesting, "compute pass ended inside %v", t.pass)
	}
	t.pass = passNone
	t.resetPipelineState()
	return nil
}

func (t *stateTracker) setRenderPipeline(p *RenderPipeline) error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrOutsideRenderSubpass, "render pipeline %q set inside %v", p.Label(), t.pass)
	}
	if !p.IsCompatibleWith(t.renderPass, t.subpasses) {
		return errors.Wrapf(ErrIncompatiblePipeline, "pipeline %q targets subpass %d of %q, current is subpass %d of %q",
			p.Label(), p.Subpass(), p.RenderPass().Label(), t.subpasses, t.renderPass.Label())
	}
	t.setPipelineLayout(p.Layout())
	t.renderPipeline = p
	return nil
}

func (t *stateTracker) setComputePipeline(p *ComputePipeline) error {
	if t.pass != passCompute {
		return errors.Wrapf(ErrOutsideComputePass, "compute pipeline %q set inside %v", p.Label(), t.pass)
	}
	t.setPipelineLayout(p.Layout())
	t.computePipeline = p
	return nil
}

// setPipelineLayout keeps the bind groups whose index lies in the common
// prefix of identical layouts of the previous and the new pipeline layout.
// Bind groups set before any pipeline are all kept; draws check them.
func (t *stateTracker) setPipelineLayout(layout *PipelineLayout) {
	keep := uint32(allBindGroups)
	if t.lastLayout != nil {
		keep = 0
		for i := range uint32(MaxBindGroups) {
			l := layout.BindGroupLayout(i)
			if l == nil || l != t.lastLayout.BindGroupLayout(i) {
				break
			}
			keep |= 1 << i
		}
	}
	t.bindGroupsSet &= keep
	for i := range uint32(MaxBindGroups) {
		if keep&(1<<i) == 0 {
			t.bindGroups[i] = nil
		}
	}
	t.lastLayout = layout
}

func (t *stateTracker) setBindGroup(index uint32, group *BindGroup) error {
	if t.pass != passRenderSubpass && t.pass != passCompute {
		return errors.Wrapf(ErrOutsidePass, "bind group %d set inside %v", index, t.pass)
	}
	if index >= MaxBindGroups {
		return errors.Wrapf(ErrBindGroupIndexOutOfRange, "index %d", index)
	}
	err := group.forEachResource(func(kind bindingKind, e BindGroupEntry) error {
		switch {
		case kind.isBuffer():
			return t.validateCanUseBufferAs(e.Buffer, kind.bufferUsage())
		case kind == bindingSampledTexture:
			return t.validateCanUseTextureAs(e.TextureView.Texture(), gputypes.TextureUsageTextureBinding)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "bind group %q", group.Label())
	}
	if t.lastLayout != nil {
		if want := t.lastLayout.BindGroupLayout(index); want != nil && want != group.Layout() {
			return errors.Wrapf(ErrIncompatibleBindGroup, "bind group %q at index %d", group.Label(), index)
		}
	}
	t.bindGroups[index] = group
	t.bindGroupsSet |= 1 << index
	return nil
}

func (t *stateTracker) setVertexBuffers(start uint32, buffers []*Buffer) error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrOutsideRenderSubpass, "vertex buffers set inside %v", t.pass)
	}
	for i, b := range buffers {
		if err := t.validateCanUseBufferAs(b, gputypes.BufferUsageVertex); err != nil {
			return errors.Wrapf(err, "vertex slot %d", start+uint32(i))
		}
		t.inputsSet |= 1 << (start + uint32(i))
	}
	return nil
}

func (t *stateTracker) setIndexBuffer(b *Buffer) error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrOutsideRenderSubpass, "index buffer set inside %v", t.pass)
	}
	if err := t.validateCanUseBufferAs(b, gputypes.BufferUsageIndex); err != nil {
		return err
	}
	t.indexBufferSet = true
	return nil
}

func (t *stateTracker) setPushConstants(stages ShaderStage) error {
	var allowed ShaderStage
	switch t.pass {
	case passCompute:
		allowed = ShaderStageCompute
	case passRenderSubpass:
		allowed = ShaderStageVertex | ShaderStageFragment
	default:
		return errors.Wrapf(ErrPushConstantStages, "push constants set inside %v", t.pass)
	}
	if stages&^allowed != 0 {
		return errors.Wrapf(ErrPushConstantStages, "stages %v inside %v", stages, t.pass)
	}
	return nil
}

func (t *stateTracker) setRenderState(id command.ID) error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrOutsideRenderSubpass, "%v inside %v", id, t.pass)
	}
	return nil
}

func (t *stateTracker) validateCanDraw(indexed bool) error {
	if t.pass != passRenderSubpass {
		return errors.Wrapf(ErrOutsideRenderSubpass, "draw inside %v", t.pass)
	}
	p := t.renderPipeline
	if p == nil {
		return errors.Wrap(ErrNoPipeline, "draw")
	}
	if missing := p.InputState().RequiredSlots() &^ t.inputsSet; missing != 0 {
		return errors.Wrapf(ErrVertexBuffersNotSet, "pipeline %q needs vertex slot %d",
			p.Label(), bits.TrailingZeros32(missing))
	}
	if indexed && !t.indexBufferSet {
		return errors.Wrap(ErrIndexBufferNotSet, "indexed draw")
	}
	return t.validateBindGroups(p.Label(), p.Layout())
}

func (t *stateTracker) validateCanDispatch() error {
	if t.pass != passCompute {
		return errors.Wrapf(ErrOutsideComputePass, "dispatch inside %v", t.pass)
	}
	p := t.computePipeline
	if p == nil {
		return errors.Wrap(ErrNoPipeline, "dispatch")
	}
	return t.validateBindGroups(p.Label(), p.Layout())
}

func (t *stateTracker) validateBindGroups(pipeline string, layout *PipelineLayout) error {
	mask := layout.BindGroupsLayoutMask()
	if missing := mask &^ t.bindGroupsSet; missing != 0 {
		return errors.Wrapf(ErrBindGroupsNotSet, "pipeline %q needs bind group %d",
			pipeline, bits.TrailingZeros32(missing))
	}
	for i := range uint32(MaxBindGroups) {
		if mask&(1<<i) != 0 && t.bindGroups[i].Layout() != layout.BindGroupLayout(i) {
			return errors.Wrapf(ErrIncompatibleBindGroup, "pipeline %q, bind group %q at index %d",
				pipeline, t.bindGroups[i].Label(), i)
		}
	}
	return nil
}

func (t *stateTracker) validateCanCopy() error {
	if t.pass != passNone {
		return errors.Wrapf(ErrCopyInPass, "copy inside %v", t.pass)
	}
	return nil
}

func (t *stateTracker) transitionBufferUsage(b *Buffer, usage gputypes.BufferUsage) error {
	if err := b.TransitionUsage(usage); err != nil {
		return err
	}
	t.buffersTransitioned.add(b)
	return nil
}

func (t *stateTracker) transitionTextureUsage(tex *Texture, usage gputypes.TextureUsage) error {
	if err := tex.TransitionUsage(usage); err != nil {
		return err
	}
	t.texturesTransitioned.add(tex)
	return nil
}

// ensureTextureUsage makes usage available on tex, transitioning it when
// it is not frozen with that usage. A texture frozen in another usage is
// not allowed the usage.
func (t *stateTracker) ensureTextureUsage(tex *Texture, usage gputypes.TextureUsage) error {
	if tex.HasFrozenUsage(usage) {
		return nil
	}
	if !tex.IsTransitionPossible(usage) {
		return errors.Wrapf(ErrUsageNotAllowed, "texture %q (allowed %#x, frozen %t) cannot be used as %#x",
			tex.Label(), uint64(tex.AllowedUsage()), tex.IsFrozen(), uint64(usage))
	}
	return t.transitionTextureUsage(tex, usage)
}

func (t *stateTracker) validateCanUseBufferAs(b *Buffer, usage gputypes.BufferUsage) error {
	if !b.HasUsage(usage) {
		return errors.Wrapf(ErrUsageNotDeclared, "buffer %q has usage %#x, needs %#x",
			b.Label(), uint64(b.CurrentUsage()), uint64(usage))
	}
	return nil
}

func (t *stateTracker) validateCanUseTextureAs(tex *Texture, usage gputypes.TextureUsage) error {
	if !tex.HasUsage(usage) {
		return errors.Wrapf(ErrUsageNotDeclared, "texture %q has usage %#x, needs %#x",
			tex.Label(), uint64(tex.CurrentUsage()), uint64(usage))
	}
	return nil
}

func (t *stateTracker) validateEndCommandBuffer() error {
	if t.pass != passNone {
		return errors.Wrapf(ErrOpenPass, "stream ended inside %v", t.pass)
	}
	return nil
}
