package cmdbuf

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// writableBufferUsages are the buffer usages that write to the buffer.
// A buffer can be in only one of them at a time.
var writableBufferUsages = gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is the set of usages the buffer may ever be transitioned to.
	Usage gputypes.BufferUsage

	// InitialUsage is the declared usage right after creation. It must be
	// a legal usage for the buffer; zero declares no usage.
	InitialUsage gputypes.BufferUsage
}

// Buffer is a linear block of device memory with declared usage tracking.
//
// A buffer is always in one declared usage. Command buffers move it between
// usages with TransitionBufferUsage; FreezeUsage pins it to one usage for
// the rest of its life.
type Buffer struct {
	refCounted
	device *Device
	label  string
	size   uint64
	usage  usageState[gputypes.BufferUsage]
}

// CreateBuffer creates a buffer.
func (d *Device) CreateBuffer(desc BufferDescriptor) (*Buffer, error) {
	if desc.Usage == 0 {
		return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor, "buffer %q: no allowed usage", desc.Label))
	}
	if !isUsagePossible(desc.Usage, writableBufferUsages, desc.InitialUsage) {
		return nil, d.creationFailed(errors.Wrapf(ErrInvalidDescriptor,
			"buffer %q: initial usage %#x is not legal for allowed usage %#x",
			desc.Label, uint64(desc.InitialUsage), uint64(desc.Usage)))
	}

	b := &Buffer{device: d, label: desc.Label, size: desc.Size}
	b.usage.init(desc.Usage, writableBufferUsages, desc.InitialUsage)
	b.initRefs(nil)
	d.stats.buffers.Add(1)
	return b, nil
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// AllowedUsage returns the usages fixed at creation.
func (b *Buffer) AllowedUsage() gputypes.BufferUsage { return b.usage.allowed }

// CurrentUsage returns the declared usage.
func (b *Buffer) CurrentUsage() gputypes.BufferUsage { return b.usage.Current() }

// IsFrozen reports whether the usage has been frozen.
func (b *Buffer) IsFrozen() bool { return b.usage.IsFrozen() }

// HasUsage reports whether usage is part of the declared usage.
func (b *Buffer) HasUsage(usage gputypes.BufferUsage) bool { return b.usage.has(usage) }

// HasFrozenUsage reports whether the buffer is frozen in a usage containing usage.
func (b *Buffer) HasFrozenUsage(usage gputypes.BufferUsage) bool { return b.usage.hasFrozen(usage) }

// IsTransitionPossible reports whether the buffer can be transitioned to usage.
func (b *Buffer) IsTransitionPossible(usage gputypes.BufferUsage) bool {
	return b.usage.isTransitionPossible(usage)
}

// TransitionUsage changes the declared usage immediately.
func (b *Buffer) TransitionUsage(usage gputypes.BufferUsage) error {
	if err := b.usage.transition(usage); err != nil {
		return errors.Wrapf(err, "buffer %q", b.label)
	}
	return nil
}

// FreezeUsage transitions the buffer to usage and pins it there. Command
// buffers that transitioned the buffer before it was frozen fail at submit.
func (b *Buffer) FreezeUsage(usage gputypes.BufferUsage) error {
	if err := b.usage.freeze(usage); err != nil {
		return errors.Wrapf(err, "buffer %q", b.label)
	}
	return nil
}
