package cmdbuf

import (
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/cmdbuf/command"
)

func TestCommandTableComplete(t *testing.T) {
	for i, read := range commandTable {
		if read == nil {
			t.Errorf("commandTable[%v] is nil", command.ID(i))
		}
	}
}

// TestDecodeMatchesID writes one record of every command and checks that
// decoding yields a record with the same ID and consumes it completely.
func TestDecodeMatchesID(t *testing.T) {
	alloc := command.NewAllocator()
	for i := range command.Count {
		id := command.ID(i)
		switch id {
		case command.SetPushConstants:
			h := command.Allocate[SetPushConstantsCmd](alloc, id)
			h.Count = 2
			copy(command.AllocateData[uint32](alloc, 2), []uint32{7, 9})
		case command.SetVertexBuffers:
			h := command.Allocate[SetVertexBuffersCmd](alloc, id)
			h.Count = 1
			command.AllocateData[*Buffer](alloc, 1)
			command.AllocateData[uint64](alloc, 1)
		default:
			allocateZero(alloc, id)
		}
	}

	it := alloc.MoveToIterator()
	n := 0
	for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
		r := decodeCommand(it, id)
		if r.ID() != id {
			t.Errorf("decodeCommand(%v).ID() = %v", id, r.ID())
		}
		if pc, ok := r.(*PushConstants); ok && len(pc.Values) != 2 {
			t.Errorf("PushConstants.Values = %v, want 2 words", pc.Values)
		}
		n++
	}
	if n != command.Count {
		t.Errorf("decoded %d commands, want %d", n, command.Count)
	}
}

// allocateZero writes a zero-valued fixed command.
func allocateZero(a *command.Allocator, id command.ID) {
	switch id {
	case command.BeginComputePass:
		command.Allocate[BeginComputePassCmd](a, id)
	case command.BeginRenderPass:
		command.Allocate[BeginRenderPassCmd](a, id)
	case command.BeginRenderSubpass:
		command.Allocate[BeginRenderSubpassCmd](a, id)
	case command.CopyBufferToBuffer:
		command.Allocate[CopyBufferToBufferCmd](a, id)
	case command.CopyBufferToTexture:
		command.Allocate[CopyBufferToTextureCmd](a, id)
	case command.CopyTextureToBuffer:
		command.Allocate[CopyTextureToBufferCmd](a, id)
	case command.Dispatch:
		command.Allocate[DispatchCmd](a, id)
	case command.DrawArrays:
		command.Allocate[DrawArraysCmd](a, id)
	case command.DrawElements:
		command.Allocate[DrawElementsCmd](a, id)
	case command.EndComputePass:
		command.Allocate[EndComputePassCmd](a, id)
	case command.EndRenderPass:
		command.Allocate[EndRenderPassCmd](a, id)
	case command.EndRenderSubpass:
		command.Allocate[EndRenderSubpassCmd](a, id)
	case command.SetComputePipeline:
		command.Allocate[SetComputePipelineCmd](a, id)
	case command.SetStencilReference:
		command.Allocate[SetStencilReferenceCmd](a, id)
	case command.SetBlendColor:
		command.Allocate[SetBlendColorCmd](a, id)
	case command.SetBindGroup:
		command.Allocate[SetBindGroupCmd](a, id)
	case command.SetIndexBuffer:
		command.Allocate[SetIndexBufferCmd](a, id)
	case command.SetRenderPipeline:
		command.Allocate[SetRenderPipelineCmd](a, id)
	case command.TransitionBufferUsage:
		command.Allocate[TransitionBufferUsageCmd](a, id)
	case command.TransitionTextureUsage:
		command.Allocate[TransitionTextureUsageCmd](a, id)
	}
}

func TestShaderStageString(t *testing.T) {
	tests := []struct {
		stages ShaderStage
		want   string
	}{
		{ShaderStageNone, "None"},
		{ShaderStageVertex, "Vertex"},
		{ShaderStageVertex | ShaderStageFragment, "Vertex|Fragment"},
		{ShaderStageVertex | ShaderStageFragment | ShaderStageCompute, "Vertex|Fragment|Compute"},
	}
	for _, tt := range tests {
		if got := tt.stages.String(); got != tt.want {
			t.Errorf("ShaderStage(%d).String() = %q, want %q", uint32(tt.stages), got, tt.want)
		}
	}
}

func TestWriteJSONLargeOffsets(t *testing.T) {
	d := newTestDevice(t)
	buf := mustBuffer(t, d, 64, gputypes.BufferUsageIndex|gputypes.BufferUsageVertex|gputypes.BufferUsageCopySrc, 0)

	tests := []struct {
		name string
		cmd  record
		want string
	}{
		{"index buffer", &SetIndexBufferCmd{Buffer: buf, Offset: math.MaxUint64}, `"Offset":18446744073709551615`},
		{"vertex buffers", &VertexBuffers{SetVertexBuffersCmd: &SetVertexBuffersCmd{Count: 1}, Buffers: []*Buffer{buf}, Offsets: []uint64{1<<63 + 8}}, `"Offset":9223372036854775816`},
		{"buffer copy", &CopyBufferToBufferCmd{Source: buf, Destination: buf, SourceOffset: math.MaxUint64, Size: 1 << 63}, `"SourceOffset":18446744073709551615`},
		{"buffer location", &CopyBufferToTextureCmd{Source: BufferCopyLocation{Buffer: buf, Offset: math.MaxUint64}, Destination: TextureCopyLocation{Texture: mustTexture(t, d, 4, 4, gputypes.TextureUsageCopyDst, 0)}}, `"Offset":18446744073709551615`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := jwriter.NewWriter()
			obj := w.Object()
			tt.cmd.writeJSON(&obj)
			obj.End()
			if err := w.Error(); err != nil {
				t.Fatalf("writeJSON() error = %v", err)
			}
			out := string(w.Bytes())
			if !strings.Contains(out, tt.want) {
				t.Errorf("writeJSON() = %s, want %s", out, tt.want)
			}
			if strings.Contains(out, ":-") {
				t.Errorf("writeJSON() = %s, has a negative value", out)
			}
		})
	}
}
