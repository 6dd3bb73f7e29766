package cmdbuf

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf/command"
)

// CommandBufferBuilder records commands into a CommandBuffer.
//
// Each recording method first runs the checks it can do on its own
// arguments. A failing call is reported to Device.HandleError, returns the
// error and records nothing; recording may continue, but GetResult will
// fail. Everything that depends on the order of commands (pass nesting,
// bound pipelines, declared usages, copy geometry) is checked once by
// GetResult.
//
// A builder is used from one goroutine at a time.
//
// Example:
//
//	b := dev.CreateCommandBufferBuilder("frame")
//	_ = b.BeginRenderPass(pass, framebuffer)
//	_ = b.BeginRenderSubpass()
//	_ = b.SetRenderPipeline(pipeline)
//	_ = b.SetVertexBuffers(0, []*cmdbuf.Buffer{vertices}, []uint64{0})
//	_ = b.DrawArrays(3, 1, 0, 0)
//	_ = b.EndRenderSubpass()
//	_ = b.EndRenderPass()
//	cb, err := b.GetResult()
type CommandBufferBuilder struct {
	device *Device
	label  string

	allocator        *command.Allocator
	iterator         *command.Iterator
	movedToIterator  bool
	commandsAcquired bool
	consumed         bool

	// recordErr is the first error reported by a recording call.
	recordErr error
}

// CreateCommandBufferBuilder creates an empty builder.
func (d *Device) CreateCommandBufferBuilder(label string) *CommandBufferBuilder {
	return &CommandBufferBuilder{
		device:    d,
		label:     label,
		allocator: command.NewAllocator(),
	}
}

// Label returns the debug label.
func (b *CommandBufferBuilder) Label() string { return b.label }

// Len returns the number of commands recorded so far.
func (b *CommandBufferBuilder) Len() int {
	if b.movedToIterator {
		return b.iterator.Len()
	}
	return b.allocator.Len()
}

func (b *CommandBufferBuilder) fail(err error) error {
	if b.recordErr == nil {
		b.recordErr = err
	}
	b.device.HandleError(err)
	return err
}

// check runs the builder state check shared by every recording call.
func (b *CommandBufferBuilder) check(op command.ID) error {
	if b.consumed {
		return b.fail(errors.Wrapf(ErrBuilderConsumed, "%v", op))
	}
	return nil
}

func (b *CommandBufferBuilder) checkNil(op command.ID, what string, isNil bool) error {
	if isNil {
		return b.fail(errors.Wrapf(ErrNilArgument, "%v: %s", op, what))
	}
	return nil
}

// BeginComputePass opens a compute pass.
func (b *CommandBufferBuilder) BeginComputePass() error {
	if err := b.check(command.BeginComputePass); err != nil {
		return err
	}
	command.Allocate[BeginComputePassCmd](b.allocator, command.BeginComputePass)
	return nil
}

// EndComputePass closes the compute pass.
func (b *CommandBufferBuilder) EndComputePass() error {
	if err := b.check(command.EndComputePass); err != nil {
		return err
	}
	command.Allocate[EndComputePassCmd](b.allocator, command.EndComputePass)
	return nil
}

// BeginRenderPass opens a render pass rendering to framebuffer.
func (b *CommandBufferBuilder) BeginRenderPass(rp *RenderPass, fb *Framebuffer) error {
	const op = command.BeginRenderPass
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "render pass", rp == nil); err != nil {
		return err
	}
	if err := b.checkNil(op, "framebuffer", fb == nil); err != nil {
		return err
	}
	rp.Reference()
	fb.Reference()
	cmd := command.Allocate[BeginRenderPassCmd](b.allocator, op)
	cmd.RenderPass = rp
	cmd.Framebuffer = fb
	return nil
}

// BeginRenderSubpass opens the next subpass of the render pass.
func (b *CommandBufferBuilder) BeginRenderSubpass() error {
	if err := b.check(command.BeginRenderSubpass); err != nil {
		return err
	}
	command.Allocate[BeginRenderSubpassCmd](b.allocator, command.BeginRenderSubpass)
	return nil
}

// EndRenderSubpass closes the current subpass.
func (b *CommandBufferBuilder) EndRenderSubpass() error {
	if err := b.check(command.EndRenderSubpass); err != nil {
		return err
	}
	command.Allocate[EndRenderSubpassCmd](b.allocator, command.EndRenderSubpass)
	return nil
}

// EndRenderPass closes the render pass. Every subpass must have been
// begun and ended.
func (b *CommandBufferBuilder) EndRenderPass() error {
	if err := b.check(command.EndRenderPass); err != nil {
		return err
	}
	command.Allocate[EndRenderPassCmd](b.allocator, command.EndRenderPass)
	return nil
}

// CopyBufferToBuffer copies size bytes from src to dst.
func (b *CommandBufferBuilder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) error {
	const op = command.CopyBufferToBuffer
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "source", src == nil); err != nil {
		return err
	}
	if err := b.checkNil(op, "destination", dst == nil); err != nil {
		return err
	}
	src.Reference()
	dst.Reference()
	cmd := command.Allocate[CopyBufferToBufferCmd](b.allocator, op)
	*cmd = CopyBufferToBufferCmd{
		Source:            src,
		SourceOffset:      srcOffset,
		Destination:       dst,
		DestinationOffset: dstOffset,
		Size:              size,
	}
	return nil
}

// CopyBufferToTexture copies rows of src into a region of dst. A zero
// RowPitch selects tightly packed rows.
func (b *CommandBufferBuilder) CopyBufferToTexture(src BufferCopyLocation, dst TextureCopyLocation) error {
	const op = command.CopyBufferToTexture
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "buffer", src.Buffer == nil); err != nil {
		return err
	}
	if err := b.checkNil(op, "texture", dst.Texture == nil); err != nil {
		return err
	}
	if src.RowPitch == 0 {
		src.RowPitch = defaultRowPitch(dst.Texture, dst.Size.Width)
	}
	src.Buffer.Reference()
	dst.Texture.Reference()
	cmd := command.Allocate[CopyBufferToTextureCmd](b.allocator, op)
	cmd.Source = src
	cmd.Destination = dst
	return nil
}

// CopyTextureToBuffer copies a region of src into rows of dst. A zero
// RowPitch selects tightly packed rows.
func (b *CommandBufferBuilder) CopyTextureToBuffer(src TextureCopyLocation, dst BufferCopyLocation) error {
	const op = command.CopyTextureToBuffer
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "texture", src.Texture == nil); err != nil {
		return err
	}
	if err := b.checkNil(op, "buffer", dst.Buffer == nil); err != nil {
		return err
	}
	if dst.RowPitch == 0 {
		dst.RowPitch = defaultRowPitch(src.Texture, src.Size.Width)
	}
	src.Texture.Reference()
	dst.Buffer.Reference()
	cmd := command.Allocate[CopyTextureToBufferCmd](b.allocator, op)
	cmd.Source = src
	cmd.Destination = dst
	return nil
}

// Dispatch runs the compute pipeline over x*y*z workgroups.
func (b *CommandBufferBuilder) Dispatch(x, y, z uint32) error {
	if err := b.check(command.Dispatch); err != nil {
		return err
	}
	cmd := command.Allocate[DispatchCmd](b.allocator, command.Dispatch)
	cmd.X, cmd.Y, cmd.Z = x, y, z
	return nil
}

// DrawArrays draws vertexCount vertices of instanceCount instances.
func (b *CommandBufferBuilder) DrawArrays(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := b.check(command.DrawArrays); err != nil {
		return err
	}
	cmd := command.Allocate[DrawArraysCmd](b.allocator, command.DrawArrays)
	*cmd = DrawArraysCmd{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	}
	return nil
}

// DrawElements draws indexCount indices of instanceCount instances.
func (b *CommandBufferBuilder) DrawElements(indexCount, instanceCount, firstIndex, firstInstance uint32) error {
	if err := b.check(command.DrawElements); err != nil {
		return err
	}
	cmd := command.Allocate[DrawElementsCmd](b.allocator, command.DrawElements)
	*cmd = DrawElementsCmd{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		FirstInstance: firstInstance,
	}
	return nil
}

// SetComputePipeline binds p for the following dispatches.
func (b *CommandBufferBuilder) SetComputePipeline(p *ComputePipeline) error {
	const op = command.SetComputePipeline
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "pipeline", p == nil); err != nil {
		return err
	}
	p.Reference()
	command.Allocate[SetComputePipelineCmd](b.allocator, op).Pipeline = p
	return nil
}

// SetRenderPipeline binds p for the following draws.
func (b *CommandBufferBuilder) SetRenderPipeline(p *RenderPipeline) error {
	const op = command.SetRenderPipeline
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "pipeline", p == nil); err != nil {
		return err
	}
	p.Reference()
	command.Allocate[SetRenderPipelineCmd](b.allocator, op).Pipeline = p
	return nil
}

// SetPushConstants writes values at word offset of the push constant
// block, visible to stages.
func (b *CommandBufferBuilder) SetPushConstants(stages ShaderStage, offset uint32, values []uint32) error {
	const op = command.SetPushConstants
	if err := b.check(op); err != nil {
		return err
	}
	if uint64(offset)+uint64(len(values)) > MaxPushConstants {
		return b.fail(errors.Wrapf(ErrPushConstantsOutOfRange, "offset %d count %d, at most %d words",
			offset, len(values), MaxPushConstants))
	}
	cmd := command.Allocate[SetPushConstantsCmd](b.allocator, op)
	cmd.Stages = stages
	cmd.Offset = offset
	cmd.Count = uint32(len(values))
	copy(command.AllocateData[uint32](b.allocator, len(values)), values)
	return nil
}

// SetStencilReference sets the stencil reference value.
func (b *CommandBufferBuilder) SetStencilReference(reference uint32) error {
	if err := b.check(command.SetStencilReference); err != nil {
		return err
	}
	command.Allocate[SetStencilReferenceCmd](b.allocator, command.SetStencilReference).Reference = reference
	return nil
}

// SetBlendColor sets the constant blend color.
func (b *CommandBufferBuilder) SetBlendColor(r, g, bl, a float32) error {
	if err := b.check(command.SetBlendColor); err != nil {
		return err
	}
	cmd := command.Allocate[SetBlendColorCmd](b.allocator, command.SetBlendColor)
	*cmd = SetBlendColorCmd{R: r, G: g, B: bl, A: a}
	return nil
}

// SetBindGroup binds group at index.
func (b *CommandBufferBuilder) SetBindGroup(index uint32, group *BindGroup) error {
	const op = command.SetBindGroup
	if err := b.check(op); err != nil {
		return err
	}
	if index >= MaxBindGroups {
		return b.fail(errors.Wrapf(ErrBindGroupIndexOutOfRange, "index %d, at most %d", index, MaxBindGroups-1))
	}
	if err := b.checkNil(op, "bind group", group == nil); err != nil {
		return err
	}
	group.Reference()
	cmd := command.Allocate[SetBindGroupCmd](b.allocator, op)
	cmd.Index = index
	cmd.Group = group
	return nil
}

// SetIndexBuffer binds buffer as the index buffer, starting at offset.
func (b *CommandBufferBuilder) SetIndexBuffer(buffer *Buffer, offset uint64) error {
	const op = command.SetIndexBuffer
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "buffer", buffer == nil); err != nil {
		return err
	}
	buffer.Reference()
	cmd := command.Allocate[SetIndexBufferCmd](b.allocator, op)
	cmd.Buffer = buffer
	cmd.Offset = offset
	return nil
}

// SetVertexBuffers binds buffers[i] at slot startSlot+i, starting at
// offsets[i].
func (b *CommandBufferBuilder) SetVertexBuffers(startSlot uint32, buffers []*Buffer, offsets []uint64) error {
	const op = command.SetVertexBuffers
	if err := b.check(op); err != nil {
		return err
	}
	if len(buffers) != len(offsets) {
		return b.fail(errors.Wrapf(ErrVertexBufferMismatch, "%d buffers, %d offsets", len(buffers), len(offsets)))
	}
	if uint64(startSlot)+uint64(len(buffers)) > MaxVertexInputs {
		return b.fail(errors.Wrapf(ErrVertexSlotOutOfRange, "slots %d..%d, at most %d",
			startSlot, uint64(startSlot)+uint64(len(buffers)), MaxVertexInputs))
	}
	for i, buf := range buffers {
		if buf == nil {
			return b.fail(errors.Wrapf(ErrNilArgument, "%v: buffer %d", op, i))
		}
	}

	cmd := command.Allocate[SetVertexBuffersCmd](b.allocator, op)
	cmd.StartSlot = startSlot
	cmd.Count = uint32(len(buffers))
	refs := command.AllocateData[*Buffer](b.allocator, len(buffers))
	for i, buf := range buffers {
		buf.Reference()
		refs[i] = buf
	}
	copy(command.AllocateData[uint64](b.allocator, len(offsets)), offsets)
	return nil
}

// TransitionBufferUsage declares that buffer is used as usage from this
// point of the command buffer on.
func (b *CommandBufferBuilder) TransitionBufferUsage(buffer *Buffer, usage gputypes.BufferUsage) error {
	const op = command.TransitionBufferUsage
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "buffer", buffer == nil); err != nil {
		return err
	}
	buffer.Reference()
	cmd := command.Allocate[TransitionBufferUsageCmd](b.allocator, op)
	cmd.Buffer = buffer
	cmd.Usage = usage
	return nil
}

// TransitionTextureUsage declares that texture is used as usage from this
// point of the command buffer on.
func (b *CommandBufferBuilder) TransitionTextureUsage(texture *Texture, usage gputypes.TextureUsage) error {
	const op = command.TransitionTextureUsage
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.checkNil(op, "texture", texture == nil); err != nil {
		return err
	}
	texture.Reference()
	cmd := command.Allocate[TransitionTextureUsageCmd](b.allocator, op)
	cmd.Texture = texture
	cmd.Usage = usage
	return nil
}

// GetResult validates the recorded commands and returns the finished
// command buffer. The builder is consumed: later calls on it fail.
//
// On failure no command buffer is returned and the references held by the
// recorded commands are released. The returned error is the first
// recording error, or else the first validation error.
func (b *CommandBufferBuilder) GetResult() (*CommandBuffer, error) {
	if b.consumed {
		return nil, b.fail(errors.Wrap(ErrBuilderConsumed, "GetResult"))
	}
	b.consumed = true
	b.moveToIterator()

	if b.recordErr != nil {
		b.freeCommands()
		return nil, errors.Wrapf(b.recordErr, "command buffer %q", b.label)
	}

	tracker := newStateTracker()
	if err := b.validateGetResult(tracker); err != nil {
		err = errors.Wrapf(err, "command buffer %q", b.label)
		b.device.HandleError(err)
		b.freeCommands()
		return nil, err
	}

	it, err := b.acquireCommands()
	if err != nil {
		return nil, err
	}
	cb := newCommandBuffer(b.device, b.label, it, tracker)
	Logger().Debug("cmdbuf: command buffer finished",
		"label", b.label,
		"commands", it.Len(),
		"buffers_transitioned", tracker.buffersTransitioned.len(),
		"textures_transitioned", tracker.texturesTransitioned.len())
	return cb, nil
}

// validateGetResult replays every command through t.
func (b *CommandBufferBuilder) validateGetResult(t *stateTracker) error {
	it := b.iterator
	it.Reset()
	defer it.Reset()

	index := 0
	for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
		if err := decodeCommand(it, id).validate(t); err != nil {
			return errors.Wrapf(err, "command %d (%v)", index, id)
		}
		index++
	}
	return t.validateEndCommandBuffer()
}

func (b *CommandBufferBuilder) moveToIterator() {
	if !b.movedToIterator {
		b.iterator = b.allocator.MoveToIterator()
		b.movedToIterator = true
	}
}

// acquireCommands hands the command stream to its final owner. It
// succeeds once.
func (b *CommandBufferBuilder) acquireCommands() (*command.Iterator, error) {
	if b.commandsAcquired {
		return nil, errors.Wrapf(ErrAlreadyAcquired, "command buffer %q", b.label)
	}
	b.moveToIterator()
	b.commandsAcquired = true
	return b.iterator, nil
}

func (b *CommandBufferBuilder) freeCommands() {
	if !b.commandsAcquired {
		freeCommands(b.iterator)
	}
}

// Release abandons the builder, releasing the references held by the
// recorded commands. It is a no-op after a successful GetResult, whose
// command buffer owns the commands.
func (b *CommandBufferBuilder) Release() {
	b.consumed = true
	b.moveToIterator()
	b.freeCommands()
}
