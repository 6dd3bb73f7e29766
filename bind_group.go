package cmdbuf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// bindingKind is the kind of resource bound at one binding number.
type bindingKind uint8

const (
	bindingUniformBuffer bindingKind = iota
	bindingStorageBuffer
	bindingReadOnlyStorageBuffer
	bindingSampler
	bindingSampledTexture
)

func (k bindingKind) String() string {
	switch k {
	case bindingUniformBuffer:
		return "UniformBuffer"
	case bindingStorageBuffer:
		return "StorageBuffer"
	case bindingReadOnlyStorageBuffer:
		return "ReadOnlyStorageBuffer"
	case bindingSampler:
		return "Sampler"
	case bindingSampledTexture:
		return "SampledTexture"
	default:
		return fmt.Sprintf("bindingKind(%d)", k)
	}
}

func (k bindingKind) isBuffer() bool {
	return k <= bindingReadOnlyStorageBuffer
}

// bufferUsage returns the buffer usage a bound buffer must be in.
func (k bindingKind) bufferUsage() gputypes.BufferUsage {
	if k == bindingUniformBuffer {
		return gputypes.BufferUsageUniform
	}
	return gputypes.BufferUsageStorage
}

type layoutBinding struct {
	binding uint32
	kind    bindingKind
	// minSize is the smallest buffer range a group may bind.
	minSize uint64
	// detail encodes every descriptor field of the entry.
	detail string
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []gputypes.BindGroupLayoutEntry
}

// BindGroupLayout describes the bindings of a bind group.
//
// Layouts are deduplicated by the device: creating two layouts from equal
// descriptors returns the same object, so two layouts are compatible
// exactly when they are the same pointer.
type BindGroupLayout struct {
	refCounted
	label    string
	key      string
	bindings []layoutBinding
}

// CreateBindGroupLayout creates or reuses a bind group layout. Every call
// returns a reference that the caller must Release.
func (d *Device) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (*BindGroupLayout, error) {
	bindings, err := layoutBindings(desc.Entries)
	if err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "bind group layout %q", desc.Label))
	}
	key := layoutKey(bindings)

	layout, _ := d.layouts.Acquire(key, (*BindGroupLayout).tryReference, func() *BindGroupLayout {
		l := &BindGroupLayout{label: desc.Label, key: key, bindings: bindings}
		l.initRefs(func() { d.layouts.Remove(key, l) })
		return l
	})
	return layout, nil
}

func layoutBindings(entries []gputypes.BindGroupLayoutEntry) ([]layoutBinding, error) {
	bindings := make([]layoutBinding, 0, len(entries))
	for _, e := range entries {
		kind, err := entryKind(e)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %d", e.Binding)
		}
		b := layoutBinding{binding: e.Binding, kind: kind, detail: entryDetail(e)}
		if e.Buffer != nil {
			b.minSize = e.Buffer.MinBindingSize
		}
		bindings = append(bindings, b)
	}
	slices.SortFunc(bindings, func(a, b layoutBinding) int {
		return int(a.binding) - int(b.binding)
	})
	for i := 1; i < len(bindings); i++ {
		if bindings[i].binding == bindings[i-1].binding {
			return nil, errors.Wrapf(ErrInvalidDescriptor, "binding %d declared twice", bindings[i].binding)
		}
	}
	return bindings, nil
}

func entryKind(e gputypes.BindGroupLayoutEntry) (bindingKind, error) {
	n := 0
	var kind bindingKind
	if e.Buffer != nil {
		n++
		switch e.Buffer.Type {
		case gputypes.BufferBindingTypeStorage:
			kind = bindingStorageBuffer
		case gputypes.BufferBindingTypeReadOnlyStorage:
			kind = bindingReadOnlyStorageBuffer
		default:
			kind = bindingUniformBuffer
		}
	}
	if e.Sampler != nil {
		n++
		kind = bindingSampler
	}
	if e.Texture != nil {
		n++
		kind = bindingSampledTexture
	}
	if e.StorageTexture != nil {
		return 0, errors.Wrap(ErrInvalidDescriptor, "storage texture bindings are not supported")
	}
	if n != 1 {
		return 0, errors.Wrapf(ErrInvalidDescriptor, "entry declares %d resource kinds, want 1", n)
	}
	return kind, nil
}

// entryDetail encodes the visibility and the resource layout of e.
func entryDetail(e gputypes.BindGroupLayoutEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "v%d", e.Visibility)
	switch {
	case e.Buffer != nil:
		fmt.Fprintf(&sb, ",b%d,%t,%d", e.Buffer.Type, e.Buffer.HasDynamicOffset, e.Buffer.MinBindingSize)
	case e.Sampler != nil:
		fmt.Fprintf(&sb, ",s%d", e.Sampler.Type)
	case e.Texture != nil:
		fmt.Fprintf(&sb, ",t%d,%d,%t", e.Texture.SampleType, e.Texture.ViewDimension, e.Texture.Multisampled)
	}
	return sb.String()
}

func layoutKey(bindings []layoutBinding) string {
	var sb strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&sb, "%d:%d:%s;", b.binding, b.kind, b.detail)
	}
	return sb.String()
}

// Label returns the label of the descriptor that first created the layout.
func (l *BindGroupLayout) Label() string { return l.label }

// BindingCount returns the number of bindings.
func (l *BindGroupLayout) BindingCount() int { return len(l.bindings) }

func (l *BindGroupLayout) find(binding uint32) (int, bool) {
	return slices.BinarySearchFunc(l.bindings, binding, func(b layoutBinding, n uint32) int {
		return int(b.binding) - int(n)
	})
}

// BindGroupEntry binds one resource. Exactly one of Buffer, Sampler and
// TextureView must be set, matching the layout entry of the same binding.
type BindGroupEntry struct {
	Binding uint32

	Buffer *Buffer
	Offset uint64
	// Size of the bound range; 0 binds the rest of the buffer.
	Size uint64

	Sampler     *Sampler
	TextureView *TextureView
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []BindGroupEntry
}

// BindGroup is a set of resources matching a BindGroupLayout.
type BindGroup struct {
	refCounted
	label   string
	layout  *BindGroupLayout
	entries []BindGroupEntry // in layout order
}

// CreateBindGroup creates a bind group. The group keeps its layout and all
// bound resources alive.
func (d *Device) CreateBindGroup(desc BindGroupDescriptor) (*BindGroup, error) {
	entries, err := bindGroupEntries(desc)
	if err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "bind group %q", desc.Label))
	}

	g := &BindGroup{label: desc.Label, layout: desc.Layout, entries: entries}
	desc.Layout.Reference()
	for _, e := range entries {
		switch {
		case e.Buffer != nil:
			e.Buffer.Reference()
		case e.Sampler != nil:
			e.Sampler.Reference()
		case e.TextureView != nil:
			e.TextureView.Reference()
		}
	}
	g.initRefs(g.releaseResources)
	d.stats.bindGroups.Add(1)
	return g, nil
}

func bindGroupEntries(desc BindGroupDescriptor) ([]BindGroupEntry, error) {
	if desc.Layout == nil {
		return nil, errors.Wrap(ErrNilObject, "layout")
	}
	layout := desc.Layout
	if len(desc.Entries) != len(layout.bindings) {
		return nil, errors.Wrapf(ErrInvalidDescriptor, "%d entries for a layout with %d bindings",
			len(desc.Entries), len(layout.bindings))
	}

	entries := make([]BindGroupEntry, len(layout.bindings))
	seen := make([]bool, len(layout.bindings))
	for _, e := range desc.Entries {
		i, ok := layout.find(e.Binding)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidDescriptor, "binding %d is not in the layout", e.Binding)
		}
		if seen[i] {
			return nil, errors.Wrapf(ErrInvalidDescriptor, "binding %d set twice", e.Binding)
		}
		seen[i] = true
		if err := validateBindGroupEntry(e, layout.bindings[i]); err != nil {
			return nil, errors.Wrapf(err, "binding %d", e.Binding)
		}
		entries[i] = e
	}
	return entries, nil
}

func validateBindGroupEntry(e BindGroupEntry, binding layoutBinding) error {
	kind := binding.kind
	set := 0
	for _, isSet := range []bool{e.Buffer != nil, e.Sampler != nil, e.TextureView != nil} {
		if isSet {
			set++
		}
	}
	if set != 1 {
		return errors.Wrapf(ErrInvalidDescriptor, "%d resources set, want 1", set)
	}

	switch {
	case kind.isBuffer():
		if e.Buffer == nil {
			return errors.Wrapf(ErrInvalidDescriptor, "%v binding needs a buffer", kind)
		}
		if want := kind.bufferUsage(); e.Buffer.AllowedUsage()&want == 0 {
			return errors.Wrapf(ErrInvalidDescriptor, "buffer %q does not allow usage %#x", e.Buffer.Label(), uint64(want))
		}
		if e.Offset > e.Buffer.Size() || e.Size > e.Buffer.Size()-e.Offset {
			return errors.Wrapf(ErrInvalidDescriptor, "range [%d, +%d) exceeds buffer %q of size %d",
				e.Offset, e.Size, e.Buffer.Label(), e.Buffer.Size())
		}
		size := e.Size
		if size == 0 {
			size = e.Buffer.Size() - e.Offset
		}
		if size < binding.minSize {
			return errors.Wrapf(ErrInvalidDescriptor, "bound range of %d bytes is below the minimum binding size %d",
				size, binding.minSize)
		}
	case kind == bindingSampler:
		if e.Sampler == nil {
			return errors.Wrap(ErrInvalidDescriptor, "sampler binding needs a sampler")
		}
	case kind == bindingSampledTexture:
		if e.TextureView == nil {
			return errors.Wrap(ErrInvalidDescriptor, "texture binding needs a texture view")
		}
		tex := e.TextureView.Texture()
		if tex.AllowedUsage()&gputypes.TextureUsageTextureBinding == 0 {
			return errors.Wrapf(ErrInvalidDescriptor, "texture %q does not allow sampling", tex.Label())
		}
	}
	return nil
}

func (g *BindGroup) releaseResources() {
	for _, e := range g.entries {
		switch {
		case e.Buffer != nil:
			e.Buffer.Release()
		case e.Sampler != nil:
			e.Sampler.Release()
		case e.TextureView != nil:
			e.TextureView.Release()
		}
	}
	g.layout.Release()
}

// Label returns the debug label.
func (g *BindGroup) Label() string { return g.label }

// Layout returns the layout the group was created with.
func (g *BindGroup) Layout() *BindGroupLayout { return g.layout }

// forEachResource calls fn for every bound resource with its binding kind.
func (g *BindGroup) forEachResource(fn func(kind bindingKind, e BindGroupEntry) error) error {
	for i, e := range g.entries {
		if err := fn(g.layout.bindings[i].kind, e); err != nil {
			return err
		}
	}
	return nil
}
