// Package command implements the in-process command stream used by
// command buffers.
//
// A command stream is written once through an [Allocator] and read back
// sequentially through an [Iterator]. Each logical command is one header
// record, tagged with an [ID], optionally followed by trailing data arrays
// for variable-arity commands (vertex buffer lists, push constant words).
//
// The stream is typed: records are stored as Go values rather than raw bytes,
// so reading a record with the wrong type or the wrong trailing length panics
// instead of silently reinterpreting memory.
//
// # Ownership
//
// An Allocator is owned by exactly one writer. [Allocator.MoveToIterator]
// transfers its contents to a new Iterator; after that the Allocator rejects
// further writes. An Iterator has a single reader at a time and may be reset
// for another full pass with [Iterator.Reset].
//
// # Example
//
//	type dispatch struct{ X, Y, Z uint32 }
//
//	alloc := command.NewAllocator()
//	cmd := command.Allocate[dispatch](alloc, command.Dispatch)
//	cmd.X, cmd.Y, cmd.Z = 8, 8, 1
//
//	it := alloc.MoveToIterator()
//	for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
//	    switch id {
//	    case command.Dispatch:
//	        d := command.NextCommand[dispatch](it)
//	        _ = d
//	    }
//	}
//
// The stream layout is process-internal: it has no stability guarantee and
// is not a wire format.
package command

// ID identifies the kind of a recorded command.
type ID uint8

const (
	BeginComputePass ID = iota
	BeginRenderPass
	BeginRenderSubpass
	CopyBufferToBuffer
	CopyBufferToTexture
	CopyTextureToBuffer
	Dispatch
	DrawArrays
	DrawElements
	EndComputePass
	EndRenderPass
	EndRenderSubpass
	SetComputePipeline
	SetPushConstants
	SetStencilReference
	SetBlendColor
	SetBindGroup
	SetIndexBuffer
	SetRenderPipeline
	SetVertexBuffers
	TransitionBufferUsage
	TransitionTextureUsage

	numIDs
)

// Count is the number of distinct command IDs.
// Tables indexed by ID use it as their length.
const Count = int(numIDs)

var idNames = [...]string{
	BeginComputePass:       "BeginComputePass",
	BeginRenderPass:        "BeginRenderPass",
	BeginRenderSubpass:     "BeginRenderSubpass",
	CopyBufferToBuffer:     "CopyBufferToBuffer",
	CopyBufferToTexture:    "CopyBufferToTexture",
	CopyTextureToBuffer:    "CopyTextureToBuffer",
	Dispatch:               "Dispatch",
	DrawArrays:             "DrawArrays",
	DrawElements:           "DrawElements",
	EndComputePass:         "EndComputePass",
	EndRenderPass:          "EndRenderPass",
	EndRenderSubpass:       "EndRenderSubpass",
	SetComputePipeline:     "SetComputePipeline",
	SetPushConstants:       "SetPushConstants",
	SetStencilReference:    "SetStencilReference",
	SetBlendColor:          "SetBlendColor",
	SetBindGroup:           "SetBindGroup",
	SetIndexBuffer:         "SetIndexBuffer",
	SetRenderPipeline:      "SetRenderPipeline",
	SetVertexBuffers:       "SetVertexBuffers",
	TransitionBufferUsage:  "TransitionBufferUsage",
	TransitionTextureUsage: "TransitionTextureUsage",
}

// String returns the name of the command.
func (id ID) String() string {
	if id.IsValid() {
		return idNames[id]
	}
	return "Unknown"
}

// IsValid reports whether id names a known command.
func (id ID) IsValid() bool {
	return id < numIDs
}
