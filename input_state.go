package cmdbuf

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// VertexInput describes the vertex buffer bound at one slot.
type VertexInput struct {
	Slot   uint32
	Layout gputypes.VertexBufferLayout
}

// InputStateDescriptor describes the vertex inputs of a render pipeline.
type InputStateDescriptor struct {
	Label  string
	Inputs []VertexInput
}

// InputState describes which vertex buffer slots a render pipeline reads.
type InputState struct {
	refCounted
	label  string
	inputs [MaxVertexInputs]*gputypes.VertexBufferLayout
	slots  uint32
}

// CreateInputState creates an input state.
func (d *Device) CreateInputState(desc InputStateDescriptor) (*InputState, error) {
	s := &InputState{label: desc.Label}
	attributes := 0
	for _, in := range desc.Inputs {
		if in.Slot >= MaxVertexInputs {
			return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor,
				"input state %q: slot %d >= %d", desc.Label, in.Slot, MaxVertexInputs))
		}
		if s.slots&(1<<in.Slot) != 0 {
			return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor,
				"input state %q: slot %d declared twice", desc.Label, in.Slot))
		}
		attributes += len(in.Layout.Attributes)
		layout := in.Layout
		layout.Attributes = append([]gputypes.VertexAttribute(nil), in.Layout.Attributes...)
		s.inputs[in.Slot] = &layout
		s.slots |= 1 << in.Slot
	}
	if attributes > MaxVertexAttributes {
		return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor,
			"input state %q: %d attributes, at most %d", desc.Label, attributes, MaxVertexAttributes))
	}
	s.initRefs(nil)
	return s, nil
}

// Label returns the debug label.
func (s *InputState) Label() string { return s.label }

// RequiredSlots returns the mask of vertex buffer slots that must be bound
// before drawing.
func (s *InputState) RequiredSlots() uint32 { return s.slots }

// Input returns the layout of the buffer at slot.
func (s *InputState) Input(slot uint32) (gputypes.VertexBufferLayout, bool) {
	if slot >= MaxVertexInputs || s.inputs[slot] == nil {
		return gputypes.VertexBufferLayout{}, false
	}
	return *s.inputs[slot], true
}
