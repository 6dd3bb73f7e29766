package cmdbuf

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// writableTextureUsages are the texture usages that write to the texture.
var writableTextureUsages = gputypes.TextureUsageCopyDst | gputypes.TextureUsageRenderAttachment

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Format gputypes.TextureFormat

	// Size is the size of mip level 0. DepthOrArrayLayers must be 0 or 1.
	Size gputypes.Extent3D

	// MipLevelCount defaults to 1.
	MipLevelCount uint32

	Usage        gputypes.TextureUsage
	InitialUsage gputypes.TextureUsage
}

// Texture is a 2D image with declared usage tracking.
type Texture struct {
	refCounted
	device *Device
	label  string
	format gputypes.TextureFormat
	width  uint32
	height uint32
	levels uint32
	usage  usageState[gputypes.TextureUsage]
}

// CreateTexture creates a texture.
func (d *Device) CreateTexture(desc TextureDescriptor) (*Texture, error) {
	if err := validateTextureDescriptor(&desc); err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "texture %q", desc.Label))
	}
	t := &Texture{
		device: d,
		label:  desc.Label,
		format: desc.Format,
		width:  desc.Size.Width,
		height: desc.Size.Height,
		levels: desc.MipLevelCount,
	}
	t.usage.init(desc.Usage, writableTextureUsages, desc.InitialUsage)
	t.initRefs(nil)
	d.stats.textures.Add(1)
	return t, nil
}

func validateTextureDescriptor(desc *TextureDescriptor) error {
	if !isKnownFormat(desc.Format) {
		return errors.Wrapf(ErrInvalidDescriptor, "unsupported format %v", desc.Format)
	}
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return errors.Wrapf(ErrInvalidDescriptor, "empty size %dx%d", desc.Size.Width, desc.Size.Height)
	}
	if desc.Size.DepthOrArrayLayers > 1 {
		return errors.Wrapf(ErrInvalidDescriptor, "depth %d, only 2D textures are supported", desc.Size.DepthOrArrayLayers)
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = 1
	}
	if maxLevels := maxMipLevels(desc.Size.Width, desc.Size.Height); desc.MipLevelCount > maxLevels {
		return errors.Wrapf(ErrInvalidDescriptor, "%d mip levels, at most %d", desc.MipLevelCount, maxLevels)
	}
	if desc.Usage == 0 {
		return errors.Wrap(ErrInvalidDescriptor, "no allowed usage")
	}
	if !isUsagePossible(desc.Usage, writableTextureUsages, desc.InitialUsage) {
		return errors.Wrapf(ErrInvalidDescriptor, "initial usage %#x is not legal for allowed usage %#x",
			uint64(desc.InitialUsage), uint64(desc.Usage))
	}
	return nil
}

// maxMipLevels returns the length of the full mip chain of a w x h texture.
func maxMipLevels(w, h uint32) uint32 {
	return uint32(bits.Len32(max(w, h)))
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Width returns the width of mip level 0.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height of mip level 0.
func (t *Texture) Height() uint32 { return t.height }

// Depth returns the depth, always 1.
func (t *Texture) Depth() uint32 { return 1 }

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 { return t.levels }

// levelSize returns the size of mip level, which must exist.
func (t *Texture) levelSize(level uint32) (w, h uint32) {
	return max(t.width>>level, 1), max(t.height>>level, 1)
}

// AllowedUsage returns the usages fixed at creation.
func (t *Texture) AllowedUsage() gputypes.TextureUsage { return t.usage.allowed }

// CurrentUsage returns the declared usage.
func (t *Texture) CurrentUsage() gputypes.TextureUsage { return t.usage.Current() }

// IsFrozen reports whether the usage has been frozen.
func (t *Texture) IsFrozen() bool { return t.usage.IsFrozen() }

// HasUsage reports whether usage is part of the declared usage.
func (t *Texture) HasUsage(usage gputypes.TextureUsage) bool { return t.usage.has(usage) }

// HasFrozenUsage reports whether the texture is frozen in a usage containing usage.
func (t *Texture) HasFrozenUsage(usage gputypes.TextureUsage) bool { return t.usage.hasFrozen(usage) }

// IsTransitionPossible reports whether the texture can be transitioned to usage.
func (t *Texture) IsTransitionPossible(usage gputypes.TextureUsage) bool {
	return t.usage.isTransitionPossible(usage)
}

// TransitionUsage changes the declared usage immediately.
func (t *Texture) TransitionUsage(usage gputypes.TextureUsage) error {
	if err := t.usage.transition(usage); err != nil {
		return errors.Wrapf(err, "texture %q", t.label)
	}
	return nil
}

// FreezeUsage transitions the texture to usage and pins it there.
func (t *Texture) FreezeUsage(usage gputypes.TextureUsage) error {
	if err := t.usage.freeze(usage); err != nil {
		return errors.Wrapf(err, "texture %q", t.label)
	}
	return nil
}

// TextureView is a view of a whole texture, used as a framebuffer
// attachment or a sampled binding.
type TextureView struct {
	refCounted
	texture *Texture
}

// CreateView creates a view of the texture. The view keeps the texture alive.
func (t *Texture) CreateView() *TextureView {
	t.Reference()
	v := &TextureView{texture: t}
	v.initRefs(t.Release)
	return v
}

// Texture returns the viewed texture.
func (v *TextureView) Texture() *Texture { return v.texture }

// Format returns the format of the viewed texture.
func (v *TextureView) Format() gputypes.TextureFormat { return v.texture.format }

// Sampler describes how sampled textures are filtered. This package only
// tracks its lifetime.
type Sampler struct {
	refCounted
	label string
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label string
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc SamplerDescriptor) *Sampler {
	s := &Sampler{label: desc.Label}
	s.initRefs(nil)
	return s
}

// Label returns the debug label.
func (s *Sampler) Label() string { return s.label }
