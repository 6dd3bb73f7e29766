package cmdbuf

import (
	"testing"

	"github.com/gogpu/gputypes"
)

// spirvMagic is a minimal SPIR-V binary: the magic number alone.
var spirvMagic = []byte{0x03, 0x02, 0x23, 0x07}

func fakeCompiler(string) ([]byte, error) {
	return spirvMagic, nil
}

// newTestDevice creates a device whose shader compiler never fails.
func newTestDevice(t *testing.T, opts ...DeviceOption) *Device {
	t.Helper()
	opts = append([]DeviceOption{WithLabel(t.Name()), WithShaderCompiler(fakeCompiler)}, opts...)
	return NewDevice(opts...)
}

func mustBuffer(t *testing.T, d *Device, size uint64, allowed, initial gputypes.BufferUsage) *Buffer {
	t.Helper()
	b, err := d.CreateBuffer(BufferDescriptor{Label: "buf", Size: size, Usage: allowed, InitialUsage: initial})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	return b
}

func mustTexture(t *testing.T, d *Device, w, h uint32, allowed, initial gputypes.TextureUsage) *Texture {
	t.Helper()
	tex, err := d.CreateTexture(TextureDescriptor{
		Label:        "tex",
		Format:       gputypes.TextureFormatRGBA8Unorm,
		Size:         gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		Usage:        allowed,
		InitialUsage: initial,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	return tex
}

func mustShader(t *testing.T, d *Device) *ShaderModule {
	t.Helper()
	m, err := d.CreateShaderModule(ShaderModuleDescriptor{Label: "shader", WGSL: "@vertex fn main() {}"})
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	return m
}

// renderFixture is a single-attachment render pass with a pipeline that
// reads one vertex buffer at slot 0.
type renderFixture struct {
	target      *Texture
	pass        *RenderPass
	framebuffer *Framebuffer
	input       *InputState
	layout      *PipelineLayout
	pipeline    *RenderPipeline
	vertices    *Buffer
}

func newRenderFixture(t *testing.T, d *Device, subpasses int, groups ...*BindGroupLayout) *renderFixture {
	t.Helper()
	f := &renderFixture{}

	f.target = mustTexture(t, d, 64, 64,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding, 0)
	if err := f.target.FreezeUsage(gputypes.TextureUsageRenderAttachment); err != nil {
		t.Fatalf("FreezeUsage() error = %v", err)
	}

	desc := RenderPassDescriptor{
		Label: "pass",
		Attachments: []AttachmentDescriptor{{
			Format:  gputypes.TextureFormatRGBA8Unorm,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	}
	for range subpasses {
		desc.Subpasses = append(desc.Subpasses, SubpassDescriptor{ColorAttachments: []uint32{0}})
	}
	var err error
	if f.pass, err = d.CreateRenderPass(desc); err != nil {
		t.Fatalf("CreateRenderPass() error = %v", err)
	}
	f.framebuffer, err = d.CreateFramebuffer(FramebufferDescriptor{
		Label:       "framebuffer",
		RenderPass:  f.pass,
		Width:       64,
		Height:      64,
		Attachments: []*TextureView{f.target.CreateView()},
	})
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}

	f.input, err = d.CreateInputState(InputStateDescriptor{
		Label: "input",
		Inputs: []VertexInput{{
			Slot: 0,
			Layout: gputypes.VertexBufferLayout{
				ArrayStride: 8,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			},
		}},
	})
	if err != nil {
		t.Fatalf("CreateInputState() error = %v", err)
	}
	if f.layout, err = d.CreatePipelineLayout(PipelineLayoutDescriptor{Label: "layout", BindGroupLayouts: groups}); err != nil {
		t.Fatalf("CreatePipelineLayout() error = %v", err)
	}
	f.pipeline = f.pipelineFor(t, d, 0)
	f.vertices = mustBuffer(t, d, 256, gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, gputypes.BufferUsageVertex)
	f.vertices.label = "vertices"
	return f
}

func (f *renderFixture) pipelineFor(t *testing.T, d *Device, subpass uint32) *RenderPipeline {
	t.Helper()
	shader := mustShader(t, d)
	p, err := d.CreateRenderPipeline(RenderPipelineDescriptor{
		Label:      "pipeline",
		Layout:     f.layout,
		InputState: f.input,
		RenderPass: f.pass,
		Subpass:    subpass,
		Vertex:     ProgrammableStage{Module: shader, EntryPoint: "vs_main"},
		Fragment:   ProgrammableStage{Module: shader, EntryPoint: "fs_main"},
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline() error = %v", err)
	}
	return p
}

// recordTriangle records a complete single-subpass draw.
func (f *renderFixture) recordTriangle(b *CommandBufferBuilder) {
	_ = b.BeginRenderPass(f.pass, f.framebuffer)
	_ = b.BeginRenderSubpass()
	_ = b.SetRenderPipeline(f.pipeline)
	_ = b.SetVertexBuffers(0, []*Buffer{f.vertices}, []uint64{0})
	_ = b.DrawArrays(3, 1, 0, 0)
	_ = b.EndRenderSubpass()
	_ = b.EndRenderPass()
}

// errorRecorder collects errors passed to the device error callback.
type errorRecorder struct {
	errs []error
}

func (r *errorRecorder) option() DeviceOption {
	return WithErrorCallback(func(err error) { r.errs = append(r.errs, err) })
}
