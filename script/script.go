// Package script loads YAML command scripts and records them into command
// buffers. It exists so that recording scenarios can be written and
// checked without Go code, by the cmdbufcheck tool and by tests.
//
// A script declares resources, optionally freezes some of them, then lists
// the commands to record:
//
//	label: upload
//	buffers:
//	  - {name: staging, size: 16384, usage: [copy_src, copy_dst], initial: [copy_dst]}
//	textures:
//	  - {name: atlas, format: rgba8unorm, width: 64, height: 64, usage: [copy_dst, texture_binding]}
//	commands:
//	  - {op: transition_buffer, buffer: staging, usage: [copy_src]}
//	  - {op: transition_texture, texture: atlas, usage: [copy_dst]}
//	  - {op: copy_buffer_to_texture, buffer: staging, texture: atlas, width: 64, height: 64}
package script

import (
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScript is returned for scripts that cannot be run: malformed
// YAML, unknown names, unknown operations.
var ErrInvalidScript = errors.New("invalid script")

// Script is a parsed command script.
type Script struct {
	Label            string            `yaml:"label"`
	Buffers          []Buffer          `yaml:"buffers"`
	Textures         []Texture         `yaml:"textures"`
	Samplers         []Sampler         `yaml:"samplers"`
	Shaders          []Shader          `yaml:"shaders"`
	BindGroupLayouts []BindGroupLayout `yaml:"bind_group_layouts"`
	BindGroups       []BindGroup       `yaml:"bind_groups"`
	InputStates      []InputState      `yaml:"input_states"`
	Compute          []ComputePipeline `yaml:"compute_pipelines"`
	RenderPasses     []RenderPass      `yaml:"render_passes"`
	Framebuffers     []Framebuffer     `yaml:"framebuffers"`
	Render           []RenderPipeline  `yaml:"render_pipelines"`
	Freeze           []Freeze          `yaml:"freeze"`
	Commands         []Command         `yaml:"commands"`
}

// Buffer declares a buffer.
type Buffer struct {
	Name    string   `yaml:"name"`
	Size    uint64   `yaml:"size"`
	Usage   []string `yaml:"usage"`
	Initial []string `yaml:"initial"`
}

// Texture declares a 2D texture.
type Texture struct {
	Name    string   `yaml:"name"`
	Format  string   `yaml:"format"`
	Width   uint32   `yaml:"width"`
	Height  uint32   `yaml:"height"`
	Mips    uint32   `yaml:"mips"`
	Usage   []string `yaml:"usage"`
	Initial []string `yaml:"initial"`
}

// Shader declares a WGSL shader module.
type Shader struct {
	Name string `yaml:"name"`
	WGSL string `yaml:"wgsl"`
}

// Sampler declares a sampler.
type Sampler struct {
	Name string `yaml:"name"`
}

// BindGroupLayout declares a bind group layout.
type BindGroupLayout struct {
	Name    string        `yaml:"name"`
	Entries []LayoutEntry `yaml:"entries"`
}

// LayoutEntry declares one binding of a layout. Type is one of uniform,
// storage, read_only_storage, sampler and texture.
type LayoutEntry struct {
	Binding        uint32   `yaml:"binding"`
	Visibility     []string `yaml:"visibility"`
	Type           string   `yaml:"type"`
	DynamicOffset  bool     `yaml:"dynamic_offset"`
	MinBindingSize uint64   `yaml:"min_binding_size"`
}

// BindGroup declares a bind group of a named layout.
type BindGroup struct {
	Name    string       `yaml:"name"`
	Layout  string       `yaml:"layout"`
	Entries []GroupEntry `yaml:"entries"`
}

// GroupEntry binds one resource by name: a buffer range, a sampler, or a
// view of a whole texture.
type GroupEntry struct {
	Binding uint32 `yaml:"binding"`
	Buffer  string `yaml:"buffer"`
	Offset  uint64 `yaml:"offset"`
	Size    uint64 `yaml:"size"`
	Sampler string `yaml:"sampler"`
	Texture string `yaml:"texture"`
}

// InputState declares the vertex buffers read by render pipelines.
type InputState struct {
	Name   string        `yaml:"name"`
	Inputs []VertexInput `yaml:"inputs"`
}

// VertexInput is the layout of the vertex buffer at one slot.
type VertexInput struct {
	Slot       uint32            `yaml:"slot"`
	Stride     uint64            `yaml:"stride"`
	Instance   bool              `yaml:"instance"`
	Attributes []VertexAttribute `yaml:"attributes"`
}

// VertexAttribute is one attribute of a vertex input.
type VertexAttribute struct {
	Format   string `yaml:"format"`
	Offset   uint64 `yaml:"offset"`
	Location uint32 `yaml:"location"`
}

// ComputePipeline declares a compute pipeline. Layouts names the bind
// group layouts of its pipeline layout, by index.
type ComputePipeline struct {
	Name       string   `yaml:"name"`
	Shader     string   `yaml:"shader"`
	EntryPoint string   `yaml:"entry_point"`
	Layouts    []string `yaml:"layouts"`
}

// RenderPipeline declares a render pipeline for one subpass of a render
// pass. Both stages come from the same shader module.
type RenderPipeline struct {
	Name          string   `yaml:"name"`
	Shader        string   `yaml:"shader"`
	VertexEntry   string   `yaml:"vertex_entry"`
	FragmentEntry string   `yaml:"fragment_entry"`
	Layouts       []string `yaml:"layouts"`
	InputState    string   `yaml:"input_state"`
	RenderPass    string   `yaml:"render_pass"`
	Subpass       uint32   `yaml:"subpass"`
}

// RenderPass declares a render pass. Attachments are texture format names.
type RenderPass struct {
	Name        string    `yaml:"name"`
	Attachments []string  `yaml:"attachments"`
	Subpasses   []Subpass `yaml:"subpasses"`
}

// Subpass lists attachment indices of the enclosing render pass.
type Subpass struct {
	Colors       []uint32 `yaml:"colors"`
	DepthStencil *uint32  `yaml:"depth_stencil"`
}

// Framebuffer binds textures, by name, to a render pass.
type Framebuffer struct {
	Name        string   `yaml:"name"`
	RenderPass  string   `yaml:"render_pass"`
	Width       uint32   `yaml:"width"`
	Height      uint32   `yaml:"height"`
	Attachments []string `yaml:"attachments"`
}

// Freeze pins a buffer or a texture to a usage before recording.
type Freeze struct {
	Buffer  string   `yaml:"buffer"`
	Texture string   `yaml:"texture"`
	Usage   []string `yaml:"usage"`
}

// Command is one recorded command. Op selects the builder method; the
// other fields are its operands and are ignored when the method does not
// take them.
type Command struct {
	Op string `yaml:"op"`

	Buffer      string   `yaml:"buffer"`
	Texture     string   `yaml:"texture"`
	Usage       []string `yaml:"usage"`
	RenderPass  string   `yaml:"render_pass"`
	Framebuffer string   `yaml:"framebuffer"`
	Pipeline    string   `yaml:"pipeline"`
	Group       string   `yaml:"group"`
	Index       uint32   `yaml:"index"`

	// Copies.
	Source            string `yaml:"source"`
	Destination       string `yaml:"destination"`
	SourceOffset      uint64 `yaml:"source_offset"`
	DestinationOffset uint64 `yaml:"destination_offset"`
	Size              uint64 `yaml:"size"`
	Offset            uint64 `yaml:"offset"`
	RowPitch          uint32 `yaml:"row_pitch"`
	X                 uint32 `yaml:"x"`
	Y                 uint32 `yaml:"y"`
	Z                 uint32 `yaml:"z"`
	Width             uint32 `yaml:"width"`
	Height            uint32 `yaml:"height"`
	Depth             uint32 `yaml:"depth"`
	Level             uint32 `yaml:"level"`

	// Bindings and state.
	Slot      uint32    `yaml:"slot"`
	Buffers   []string  `yaml:"buffers"`
	Offsets   []uint64  `yaml:"offsets"`
	Stages    []string  `yaml:"stages"`
	Values    []uint32  `yaml:"values"`
	Reference uint32    `yaml:"reference"`
	Color     []float32 `yaml:"color"`

	// Draws and dispatches.
	Count         uint32 `yaml:"count"`
	InstanceCount uint32 `yaml:"instance_count"`
	First         uint32 `yaml:"first"`
	FirstInstance uint32 `yaml:"first_instance"`
}

// Load parses a script. Unknown keys are rejected.
func Load(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrInvalidScript, "empty script")
		}
		return nil, errors.Wrapf(ErrInvalidScript, "%v", err)
	}
	return &s, nil
}
