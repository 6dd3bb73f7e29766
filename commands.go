package cmdbuf

import (
	"strconv"

	"github.com/gogpu/gputypes"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/cmdbuf/command"
)

// Command is one decoded record of a command buffer, as yielded by
// CommandBuffer.Replay. The concrete types are the *XxxCmd structs of this
// package, plus *PushConstants and *VertexBuffers for the commands that
// carry trailing data.
type Command interface {
	ID() command.ID
}

// record is the behaviour every decoded command has. All passes over a
// command stream (validation, release, dump, replay) go through it.
type record interface {
	Command
	// validate runs the command through the state tracker.
	validate(t *stateTracker) error
	// release drops the references the record holds.
	release()
	// writeJSON writes the command operands to an open JSON object.
	writeJSON(obj *jwriter.ObjectState)
}

// commandTable decodes the record of each command ID from an iterator
// positioned right after NextCommandID. It is the only place that knows how
// each command is laid out in the stream.
var commandTable = [command.Count]func(*command.Iterator) record{
	command.BeginComputePass:       readFixed[BeginComputePassCmd, *BeginComputePassCmd],
	command.BeginRenderPass:        readFixed[BeginRenderPassCmd, *BeginRenderPassCmd],
	command.BeginRenderSubpass:     readFixed[BeginRenderSubpassCmd, *BeginRenderSubpassCmd],
	command.CopyBufferToBuffer:     readFixed[CopyBufferToBufferCmd, *CopyBufferToBufferCmd],
	command.CopyBufferToTexture:    readFixed[CopyBufferToTextureCmd, *CopyBufferToTextureCmd],
	command.CopyTextureToBuffer:    readFixed[CopyTextureToBufferCmd, *CopyTextureToBufferCmd],
	command.Dispatch:               readFixed[DispatchCmd, *DispatchCmd],
	command.DrawArrays:             readFixed[DrawArraysCmd, *DrawArraysCmd],
	command.DrawElements:           readFixed[DrawElementsCmd, *DrawElementsCmd],
	command.EndComputePass:         readFixed[EndComputePassCmd, *EndComputePassCmd],
	command.EndRenderPass:          readFixed[EndRenderPassCmd, *EndRenderPassCmd],
	command.EndRenderSubpass:       readFixed[EndRenderSubpassCmd, *EndRenderSubpassCmd],
	command.SetComputePipeline:     readFixed[SetComputePipelineCmd, *SetComputePipelineCmd],
	command.SetPushConstants:       readPushConstants,
	command.SetStencilReference:    readFixed[SetStencilReferenceCmd, *SetStencilReferenceCmd],
	command.SetBlendColor:          readFixed[SetBlendColorCmd, *SetBlendColorCmd],
	command.SetBindGroup:           readFixed[SetBindGroupCmd, *SetBindGroupCmd],
	command.SetIndexBuffer:         readFixed[SetIndexBufferCmd, *SetIndexBufferCmd],
	command.SetRenderPipeline:      readFixed[SetRenderPipelineCmd, *SetRenderPipelineCmd],
	command.SetVertexBuffers:       readVertexBuffers,
	command.TransitionBufferUsage:  readFixed[TransitionBufferUsageCmd, *TransitionBufferUsageCmd],
	command.TransitionTextureUsage: readFixed[TransitionTextureUsageCmd, *TransitionTextureUsageCmd],
}

// readFixed decodes a command without trailing data.
func readFixed[T any, P interface {
	*T
	record
}](it *command.Iterator) record {
	return P(command.NextCommand[T](it))
}

func readPushConstants(it *command.Iterator) record {
	cmd := command.NextCommand[SetPushConstantsCmd](it)
	return &PushConstants{
		SetPushConstantsCmd: cmd,
		Values:              command.NextData[uint32](it, int(cmd.Count)),
	}
}

func readVertexBuffers(it *command.Iterator) record {
	cmd := command.NextCommand[SetVertexBuffersCmd](it)
	return &VertexBuffers{
		SetVertexBuffersCmd: cmd,
		Buffers:             command.NextData[*Buffer](it, int(cmd.Count)),
		Offsets:             command.NextData[uint64](it, int(cmd.Count)),
	}
}

// decodeCommand reads the command announced by NextCommandID.
func decodeCommand(it *command.Iterator, id command.ID) record {
	return commandTable[id](it)
}

// skipCommand advances past the command announced by NextCommandID.
func skipCommand(it *command.Iterator, id command.ID) {
	commandTable[id](it)
}

// freeCommands releases the references held by every record and marks the
// stream destroyed, so it runs at most once per stream.
func freeCommands(it *command.Iterator) {
	if it.IsDestroyed() {
		return
	}
	it.Reset()
	for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
		decodeCommand(it, id).release()
	}
	it.DataWasDestroyed()
}

// Origin3D is the texel origin of a texture copy.
type Origin3D struct {
	X, Y, Z uint32
}

// BufferCopyLocation is the buffer side of a buffer/texture copy.
type BufferCopyLocation struct {
	Buffer *Buffer
	Offset uint64
	// RowPitch is the distance in bytes between rows in the buffer.
	RowPitch uint32
}

// TextureCopyLocation is the texture side of a buffer/texture copy.
type TextureCopyLocation struct {
	Texture *Texture
	Origin  Origin3D
	Size    gputypes.Extent3D
	Level   uint32
}

func (l BufferCopyLocation) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Buffer").String(l.Buffer.Label())
	writeUint(obj.Name("Offset"), l.Offset)
	obj.Name("RowPitch").Int(int(l.RowPitch))
}

func (l TextureCopyLocation) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Texture").String(l.Texture.Label())
	origin := obj.Name("Origin").Array()
	origin.Int(int(l.Origin.X))
	origin.Int(int(l.Origin.Y))
	origin.Int(int(l.Origin.Z))
	origin.End()
	size := obj.Name("Size").Array()
	size.Int(int(l.Size.Width))
	size.Int(int(l.Size.Height))
	size.Int(int(l.Size.DepthOrArrayLayers))
	size.End()
	obj.Name("Level").Int(int(l.Level))
}

// BeginComputePassCmd opens a compute pass.
type BeginComputePassCmd struct{}

func (*BeginComputePassCmd) ID() command.ID                     { return command.BeginComputePass }
func (*BeginComputePassCmd) validate(t *stateTracker) error     { return t.beginComputePass() }
func (*BeginComputePassCmd) release()                           {}
func (*BeginComputePassCmd) writeJSON(obj *jwriter.ObjectState) {}

// BeginRenderPassCmd opens a render pass on a framebuffer.
type BeginRenderPassCmd struct {
	RenderPass  *RenderPass
	Framebuffer *Framebuffer
}

func (*BeginRenderPassCmd) ID() command.ID { return command.BeginRenderPass }
func (c *BeginRenderPassCmd) validate(t *stateTracker) error {
	return t.beginRenderPass(c.RenderPass, c.Framebuffer)
}
func (c *BeginRenderPassCmd) release() {
	c.RenderPass.Release()
	c.Framebuffer.Release()
}
func (c *BeginRenderPassCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("RenderPass").String(c.RenderPass.Label())
	obj.Name("Framebuffer").String(c.Framebuffer.Label())
}

// BeginRenderSubpassCmd opens the next subpass of the current render pass.
type BeginRenderSubpassCmd struct{}

func (*BeginRenderSubpassCmd) ID() command.ID                     { return command.BeginRenderSubpass }
func (*BeginRenderSubpassCmd) validate(t *stateTracker) error     { return t.beginSubpass() }
func (*BeginRenderSubpassCmd) release()                           {}
func (*BeginRenderSubpassCmd) writeJSON(obj *jwriter.ObjectState) {}

// CopyBufferToBufferCmd copies Size bytes between two buffers.
type CopyBufferToBufferCmd struct {
	Source            *Buffer
	SourceOffset      uint64
	Destination       *Buffer
	DestinationOffset uint64
	Size              uint64
}

func (*CopyBufferToBufferCmd) ID() command.ID                   { return command.CopyBufferToBuffer }
func (c *CopyBufferToBufferCmd) validate(t *stateTracker) error { return t.copyBufferToBuffer(c) }
func (c *CopyBufferToBufferCmd) release() {
	c.Source.Release()
	c.Destination.Release()
}
func (c *CopyBufferToBufferCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Source").String(c.Source.Label())
	writeUint(obj.Name("SourceOffset"), c.SourceOffset)
	obj.Name("Destination").String(c.Destination.Label())
	writeUint(obj.Name("DestinationOffset"), c.DestinationOffset)
	writeUint(obj.Name("Size"), c.Size)
}

// CopyBufferToTextureCmd uploads buffer rows into a texture region.
type CopyBufferToTextureCmd struct {
	Source      BufferCopyLocation
	Destination TextureCopyLocation
}

func (*CopyBufferToTextureCmd) ID() command.ID                   { return command.CopyBufferToTexture }
func (c *CopyBufferToTextureCmd) validate(t *stateTracker) error { return t.copyBufferToTexture(c) }
func (c *CopyBufferToTextureCmd) release() {
	c.Source.Buffer.Release()
	c.Destination.Texture.Release()
}
func (c *CopyBufferToTextureCmd) writeJSON(obj *jwriter.ObjectState) {
	src := obj.Name("Source").Object()
	c.Source.writeJSON(&src)
	src.End()
	dst := obj.Name("Destination").Object()
	c.Destination.writeJSON(&dst)
	dst.End()
}

// CopyTextureToBufferCmd reads a texture region back into buffer rows.
type CopyTextureToBufferCmd struct {
	Source      TextureCopyLocation
	Destination BufferCopyLocation
}

func (*CopyTextureToBufferCmd) ID() command.ID                   { return command.CopyTextureToBuffer }
func (c *CopyTextureToBufferCmd) validate(t *stateTracker) error { return t.copyTextureToBuffer(c) }
func (c *CopyTextureToBufferCmd) release() {
	c.Source.Texture.Release()
	c.Destination.Buffer.Release()
}
func (c *CopyTextureToBufferCmd) writeJSON(obj *jwriter.ObjectState) {
	src := obj.Name("Source").Object()
	c.Source.writeJSON(&src)
	src.End()
	dst := obj.Name("Destination").Object()
	c.Destination.writeJSON(&dst)
	dst.End()
}

// DispatchCmd runs the compute pipeline over X*Y*Z workgroups.
type DispatchCmd struct {
	X, Y, Z uint32
}

func (*DispatchCmd) ID() command.ID                 { return command.Dispatch }
func (*DispatchCmd) validate(t *stateTracker) error { return t.validateCanDispatch() }
func (*DispatchCmd) release()                       {}
func (c *DispatchCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("X").Int(int(c.X))
	obj.Name("Y").Int(int(c.Y))
	obj.Name("Z").Int(int(c.Z))
}

// DrawArraysCmd draws non-indexed primitives.
type DrawArraysCmd struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

func (*DrawArraysCmd) ID() command.ID                 { return command.DrawArrays }
func (*DrawArraysCmd) validate(t *stateTracker) error { return t.validateCanDraw(false) }
func (*DrawArraysCmd) release()                       {}
func (c *DrawArraysCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("VertexCount").Int(int(c.VertexCount))
	obj.Name("InstanceCount").Int(int(c.InstanceCount))
	obj.Name("FirstVertex").Int(int(c.FirstVertex))
	obj.Name("FirstInstance").Int(int(c.FirstInstance))
}

// DrawElementsCmd draws indexed primitives.
type DrawElementsCmd struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	FirstInstance uint32
}

func (*DrawElementsCmd) ID() command.ID                 { return command.DrawElements }
func (*DrawElementsCmd) validate(t *stateTracker) error { return t.validateCanDraw(true) }
func (*DrawElementsCmd) release()                       {}
func (c *DrawElementsCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("IndexCount").Int(int(c.IndexCount))
	obj.Name("InstanceCount").Int(int(c.InstanceCount))
	obj.Name("FirstIndex").Int(int(c.FirstIndex))
	obj.Name("FirstInstance").Int(int(c.FirstInstance))
}

// EndComputePassCmd closes the compute pass.
type EndComputePassCmd struct{}

func (*EndComputePassCmd) ID() command.ID                     { return command.EndComputePass }
func (*EndComputePassCmd) validate(t *stateTracker) error     { return t.endComputePass() }
func (*EndComputePassCmd) release()                           {}
func (*EndComputePassCmd) writeJSON(obj *jwriter.ObjectState) {}

// EndRenderPassCmd closes the render pass.
type EndRenderPassCmd struct{}

func (*EndRenderPassCmd) ID() command.ID                     { return command.EndRenderPass }
func (*EndRenderPassCmd) validate(t *stateTracker) error     { return t.endRenderPass() }
func (*EndRenderPassCmd) release()                           {}
func (*EndRenderPassCmd) writeJSON(obj *jwriter.ObjectState) {}

// EndRenderSubpassCmd closes the current subpass.
type EndRenderSubpassCmd struct{}

func (*EndRenderSubpassCmd) ID() command.ID                     { return command.EndRenderSubpass }
func (*EndRenderSubpassCmd) validate(t *stateTracker) error     { return t.endSubpass() }
func (*EndRenderSubpassCmd) release()                           {}
func (*EndRenderSubpassCmd) writeJSON(obj *jwriter.ObjectState) {}

// SetComputePipelineCmd binds a compute pipeline.
type SetComputePipelineCmd struct {
	Pipeline *ComputePipeline
}

func (*SetComputePipelineCmd) ID() command.ID { return command.SetComputePipeline }
func (c *SetComputePipelineCmd) validate(t *stateTracker) error {
	return t.setComputePipeline(c.Pipeline)
}
func (c *SetComputePipelineCmd) release() { c.Pipeline.Release() }
func (c *SetComputePipelineCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Pipeline").String(c.Pipeline.Label())
}

// SetPushConstantsCmd is the header of a push constant update. The words
// follow it in the stream; Replay yields them as *PushConstants.
type SetPushConstantsCmd struct {
	Stages ShaderStage
	Offset uint32
	Count  uint32
}

func (*SetPushConstantsCmd) ID() command.ID { return command.SetPushConstants }

// PushConstants is a decoded SetPushConstants command.
type PushConstants struct {
	*SetPushConstantsCmd
	Values []uint32
}

func (c *PushConstants) validate(t *stateTracker) error { return t.setPushConstants(c.Stages) }
func (*PushConstants) release()                         {}
func (c *PushConstants) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Stages").String(c.Stages.String())
	obj.Name("Offset").Int(int(c.Offset))
	values := obj.Name("Values").Array()
	for _, v := range c.Values {
		values.Int(int(v))
	}
	values.End()
}

// SetStencilReferenceCmd sets the stencil reference value.
type SetStencilReferenceCmd struct {
	Reference uint32
}

func (*SetStencilReferenceCmd) ID() command.ID { return command.SetStencilReference }
func (*SetStencilReferenceCmd) validate(t *stateTracker) error {
	return t.setRenderState(command.SetStencilReference)
}
func (*SetStencilReferenceCmd) release() {}
func (c *SetStencilReferenceCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Reference").Int(int(c.Reference))
}

// SetBlendColorCmd sets the constant blend color.
type SetBlendColorCmd struct {
	R, G, B, A float32
}

func (*SetBlendColorCmd) ID() command.ID { return command.SetBlendColor }
func (*SetBlendColorCmd) validate(t *stateTracker) error {
	return t.setRenderState(command.SetBlendColor)
}
func (*SetBlendColorCmd) release() {}
func (c *SetBlendColorCmd) writeJSON(obj *jwriter.ObjectState) {
	color := obj.Name("Color").Array()
	for _, v := range [...]float32{c.R, c.G, c.B, c.A} {
		color.Float64(float64(v))
	}
	color.End()
}

// SetBindGroupCmd binds a bind group at Index.
type SetBindGroupCmd struct {
	Index uint32
	Group *BindGroup
}

func (*SetBindGroupCmd) ID() command.ID                   { return command.SetBindGroup }
func (c *SetBindGroupCmd) validate(t *stateTracker) error { return t.setBindGroup(c.Index, c.Group) }
func (c *SetBindGroupCmd) release()                       { c.Group.Release() }
func (c *SetBindGroupCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Index").Int(int(c.Index))
	obj.Name("Group").String(c.Group.Label())
}

// SetIndexBufferCmd binds the index buffer.
type SetIndexBufferCmd struct {
	Buffer *Buffer
	Offset uint64
}

func (*SetIndexBufferCmd) ID() command.ID                   { return command.SetIndexBuffer }
func (c *SetIndexBufferCmd) validate(t *stateTracker) error { return t.setIndexBuffer(c.Buffer) }
func (c *SetIndexBufferCmd) release()                       { c.Buffer.Release() }
func (c *SetIndexBufferCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Buffer").String(c.Buffer.Label())
	writeUint(obj.Name("Offset"), c.Offset)
}

// SetRenderPipelineCmd binds a render pipeline.
type SetRenderPipelineCmd struct {
	Pipeline *RenderPipeline
}

func (*SetRenderPipelineCmd) ID() command.ID { return command.SetRenderPipeline }
func (c *SetRenderPipelineCmd) validate(t *stateTracker) error {
	return t.setRenderPipeline(c.Pipeline)
}
func (c *SetRenderPipelineCmd) release() { c.Pipeline.Release() }
func (c *SetRenderPipelineCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Pipeline").String(c.Pipeline.Label())
}

// SetVertexBuffersCmd is the header of a vertex buffer update. The buffers
// and offsets follow it in the stream; Replay yields them as *VertexBuffers.
type SetVertexBuffersCmd struct {
	StartSlot uint32
	Count     uint32
}

func (*SetVertexBuffersCmd) ID() command.ID { return command.SetVertexBuffers }

// VertexBuffers is a decoded SetVertexBuffers command.
type VertexBuffers struct {
	*SetVertexBuffersCmd
	Buffers []*Buffer
	Offsets []uint64
}

func (c *VertexBuffers) validate(t *stateTracker) error {
	return t.setVertexBuffers(c.StartSlot, c.Buffers)
}
func (c *VertexBuffers) release() {
	for _, b := range c.Buffers {
		b.Release()
	}
}
func (c *VertexBuffers) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("StartSlot").Int(int(c.StartSlot))
	buffers := obj.Name("Buffers").Array()
	for i, b := range c.Buffers {
		o := buffers.Object()
		o.Name("Buffer").String(b.Label())
		writeUint(o.Name("Offset"), c.Offsets[i])
		o.End()
	}
	buffers.End()
}

// TransitionBufferUsageCmd declares a new usage for a buffer.
type TransitionBufferUsageCmd struct {
	Buffer *Buffer
	Usage  gputypes.BufferUsage
}

func (*TransitionBufferUsageCmd) ID() command.ID { return command.TransitionBufferUsage }
func (c *TransitionBufferUsageCmd) validate(t *stateTracker) error {
	return t.transitionBufferUsage(c.Buffer, c.Usage)
}
func (c *TransitionBufferUsageCmd) release() { c.Buffer.Release() }
func (c *TransitionBufferUsageCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Buffer").String(c.Buffer.Label())
	writeUint(obj.Name("Usage"), uint64(c.Usage))
}

// TransitionTextureUsageCmd declares a new usage for a texture.
type TransitionTextureUsageCmd struct {
	Texture *Texture
	Usage   gputypes.TextureUsage
}

func (*TransitionTextureUsageCmd) ID() command.ID { return command.TransitionTextureUsage }
func (c *TransitionTextureUsageCmd) validate(t *stateTracker) error {
	return t.transitionTextureUsage(c.Texture, c.Usage)
}
func (c *TransitionTextureUsageCmd) release() { c.Texture.Release() }
func (c *TransitionTextureUsageCmd) writeJSON(obj *jwriter.ObjectState) {
	obj.Name("Texture").String(c.Texture.Label())
	writeUint(obj.Name("Usage"), uint64(c.Usage))
}

// writeUint writes v as an exact JSON number.
func writeUint(w *jwriter.Writer, v uint64) {
	w.Raw(strconv.AppendUint(nil, v, 10))
}
