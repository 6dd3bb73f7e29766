package cmdbuf

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// ShaderModuleDescriptor describes a shader module to create from WGSL.
type ShaderModuleDescriptor struct {
	Label string
	WGSL  string
}

// ShaderModule holds compiled SPIR-V.
type ShaderModule struct {
	refCounted
	label string
	spirv []uint32
}

// CreateShaderModule compiles WGSL with the device shader compiler.
func (d *Device) CreateShaderModule(desc ShaderModuleDescriptor) (*ShaderModule, error) {
	code, err := d.compiler(desc.WGSL)
	if err != nil {
		return nil, d.creationFailed(markAs(errors.Wrapf(err, "compile shader module %q", desc.Label), ErrShaderCompilation))
	}
	words, err := spirvWords(code)
	if err != nil {
		return nil, d.creationFailed(errors.Wrapf(err, "shader module %q", desc.Label))
	}
	m := &ShaderModule{label: desc.Label, spirv: words}
	m.initRefs(nil)
	return m, nil
}

// spirvWords converts a little-endian SPIR-V binary to 32-bit words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Wrapf(ErrShaderCompilation, "SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// Label returns the debug label.
func (m *ShaderModule) Label() string { return m.label }

// SPIRV returns the compiled words.
func (m *ShaderModule) SPIRV() []uint32 { return m.spirv }
