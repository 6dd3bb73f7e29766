package cmdbuf

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// AttachmentDescriptor describes one attachment of a render pass.
type AttachmentDescriptor struct {
	Format  gputypes.TextureFormat
	LoadOp  gputypes.LoadOp
	StoreOp gputypes.StoreOp
}

// SubpassDescriptor lists the attachments a subpass renders to, by index
// into the render pass attachments.
type SubpassDescriptor struct {
	ColorAttachments       []uint32
	HasDepthStencil        bool
	DepthStencilAttachment uint32
}

// attachments returns all attachment indices the subpass writes.
func (s SubpassDescriptor) attachments() []uint32 {
	if !s.HasDepthStencil {
		return s.ColorAttachments
	}
	return append(slices.Clone(s.ColorAttachments), s.DepthStencilAttachment)
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label       string
	Attachments []AttachmentDescriptor
	Subpasses   []SubpassDescriptor
}

// RenderPass describes attachments and an ordered list of subpasses.
type RenderPass struct {
	refCounted
	label       string
	attachments []AttachmentDescriptor
	subpasses   []SubpassDescriptor
}

// CreateRenderPass creates a render pass.
func (d *Device) CreateRenderPass(desc RenderPassDescriptor) (*RenderPass, error) {
	if err := validateRenderPassDescriptor(desc); err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "render pass %q", desc.Label))
	}
	rp := &RenderPass{
		label:       desc.Label,
		attachments: slices.Clone(desc.Attachments),
		subpasses:   make([]SubpassDescriptor, len(desc.Subpasses)),
	}
	for i, s := range desc.Subpasses {
		s.ColorAttachments = slices.Clone(s.ColorAttachments)
		rp.subpasses[i] = s
	}
	rp.initRefs(nil)
	return rp, nil
}

func validateRenderPassDescriptor(desc RenderPassDescriptor) error {
	if len(desc.Subpasses) == 0 {
		return errors.Wrap(ErrInvalidDescriptor, "no subpasses")
	}
	n := uint32(len(desc.Attachments))
	for i, a := range desc.Attachments {
		if !isKnownFormat(a.Format) {
			return errors.Wrapf(ErrInvalidDescriptor, "attachment %d: unsupported format %v", i, a.Format)
		}
	}
	for i, s := range desc.Subpasses {
		if len(s.ColorAttachments) > MaxColorAttachments {
			return errors.Wrapf(ErrInvalidDescriptor, "subpass %d: %d color attachments, at most %d",
				i, len(s.ColorAttachments), MaxColorAttachments)
		}
		for _, a := range s.ColorAttachments {
			if a >= n {
				return errors.Wrapf(ErrInvalidDescriptor, "subpass %d: attachment %d out of range", i, a)
			}
			if isDepthStencilFormat(desc.Attachments[a].Format) {
				return errors.Wrapf(ErrInvalidDescriptor, "subpass %d: attachment %d is depth-stencil", i, a)
			}
		}
		if s.HasDepthStencil {
			a := s.DepthStencilAttachment
			if a >= n || !isDepthStencilFormat(desc.Attachments[a].Format) {
				return errors.Wrapf(ErrInvalidDescriptor, "subpass %d: invalid depth-stencil attachment %d", i, a)
			}
		}
	}
	return nil
}

// Label returns the debug label.
func (rp *RenderPass) Label() string { return rp.label }

// AttachmentCount returns the number of attachments.
func (rp *RenderPass) AttachmentCount() uint32 { return uint32(len(rp.attachments)) }

// Attachment returns the descriptor of attachment i.
func (rp *RenderPass) Attachment(i uint32) AttachmentDescriptor { return rp.attachments[i] }

// SubpassCount returns the number of subpasses.
func (rp *RenderPass) SubpassCount() uint32 { return uint32(len(rp.subpasses)) }

// Subpass returns the description of subpass i.
func (rp *RenderPass) Subpass(i uint32) SubpassDescriptor { return rp.subpasses[i] }

// IsCompatibleWith reports whether a framebuffer or pipeline built for
// other can be used with rp: same attachment formats and same subpasses.
func (rp *RenderPass) IsCompatibleWith(other *RenderPass) bool {
	if rp == other {
		return true
	}
	if other == nil || len(rp.attachments) != len(other.attachments) || len(rp.subpasses) != len(other.subpasses) {
		return false
	}
	for i, a := range rp.attachments {
		if a.Format != other.attachments[i].Format {
			return false
		}
	}
	for i, s := range rp.subpasses {
		o := other.subpasses[i]
		if !slices.Equal(s.ColorAttachments, o.ColorAttachments) || s.HasDepthStencil != o.HasDepthStencil {
			return false
		}
		if s.HasDepthStencil && s.DepthStencilAttachment != o.DepthStencilAttachment {
			return false
		}
	}
	return true
}

// FramebufferDescriptor describes a framebuffer.
type FramebufferDescriptor struct {
	Label       string
	RenderPass  *RenderPass
	Width       uint32
	Height      uint32
	Attachments []*TextureView
}

// Framebuffer binds texture views to the attachments of a render pass.
type Framebuffer struct {
	refCounted
	label       string
	renderPass  *RenderPass
	width       uint32
	height      uint32
	attachments []*TextureView
}

// CreateFramebuffer creates a framebuffer. It keeps its render pass and
// attachment views alive.
func (d *Device) CreateFramebuffer(desc FramebufferDescriptor) (*Framebuffer, error) {
	if err := validateFramebufferDescriptor(desc); err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "framebuffer %q", desc.Label))
	}
	fb := &Framebuffer{
		label:       desc.Label,
		renderPass:  desc.RenderPass,
		width:       desc.Width,
		height:      desc.Height,
		attachments: slices.Clone(desc.Attachments),
	}
	fb.renderPass.Reference()
	for _, v := range fb.attachments {
		v.Reference()
	}
	fb.initRefs(func() {
		for _, v := range fb.attachments {
			v.Release()
		}
		fb.renderPass.Release()
	})
	return fb, nil
}

func validateFramebufferDescriptor(desc FramebufferDescriptor) error {
	rp := desc.RenderPass
	if rp == nil {
		return errors.Wrap(ErrNilObject, "render pass")
	}
	if len(desc.Attachments) != len(rp.attachments) {
		return errors.Wrapf(ErrInvalidDescriptor, "%d attachments for a render pass with %d",
			len(desc.Attachments), len(rp.attachments))
	}
	for i, v := range desc.Attachments {
		if v == nil {
			return errors.Wrapf(ErrNilObject, "attachment %d", i)
		}
		if v.Format() != rp.attachments[i].Format {
			return errors.Wrapf(ErrInvalidDescriptor, "attachment %d: format %v, render pass wants %v",
				i, v.Format(), rp.attachments[i].Format)
		}
		tex := v.Texture()
		if tex.Width() != desc.Width || tex.Height() != desc.Height {
			return errors.Wrapf(ErrInvalidDescriptor, "attachment %d: size %dx%d, framebuffer is %dx%d",
				i, tex.Width(), tex.Height(), desc.Width, desc.Height)
		}
		if tex.AllowedUsage()&gputypes.TextureUsageRenderAttachment == 0 {
			return errors.Wrapf(ErrInvalidDescriptor, "attachment %d: texture %q does not allow rendering", i, tex.Label())
		}
	}
	return nil
}

// Label returns the debug label.
func (fb *Framebuffer) Label() string { return fb.label }

// RenderPass returns the render pass the framebuffer was created for.
func (fb *Framebuffer) RenderPass() *RenderPass { return fb.renderPass }

// Width returns the width in pixels.
func (fb *Framebuffer) Width() uint32 { return fb.width }

// Height returns the height in pixels.
func (fb *Framebuffer) Height() uint32 { return fb.height }

// Attachment returns the view bound to attachment i.
func (fb *Framebuffer) Attachment(i uint32) *TextureView { return fb.attachments[i] }
