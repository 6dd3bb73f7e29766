package script

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf"
)

var bufferUsages = map[string]gputypes.BufferUsage{
	"vertex":   gputypes.BufferUsageVertex,
	"index":    gputypes.BufferUsageIndex,
	"uniform":  gputypes.BufferUsageUniform,
	"storage":  gputypes.BufferUsageStorage,
	"copy_src": gputypes.BufferUsageCopySrc,
	"copy_dst": gputypes.BufferUsageCopyDst,
}

var textureUsages = map[string]gputypes.TextureUsage{
	"copy_src":          gputypes.TextureUsageCopySrc,
	"copy_dst":          gputypes.TextureUsageCopyDst,
	"texture_binding":   gputypes.TextureUsageTextureBinding,
	"sampled":           gputypes.TextureUsageTextureBinding,
	"render_attachment": gputypes.TextureUsageRenderAttachment,
}

var textureFormats = map[string]gputypes.TextureFormat{
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"depth24plus_stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

var shaderStages = map[string]cmdbuf.ShaderStage{
	"vertex":   cmdbuf.ShaderStageVertex,
	"fragment": cmdbuf.ShaderStageFragment,
	"compute":  cmdbuf.ShaderStageCompute,
}

var visibilityStages = map[string]gputypes.ShaderStages{
	"vertex":   gputypes.ShaderStageVertex,
	"fragment": gputypes.ShaderStageFragment,
	"compute":  gputypes.ShaderStageCompute,
}

var bufferBindingTypes = map[string]gputypes.BufferBindingType{
	"uniform":           gputypes.BufferBindingTypeUniform,
	"storage":           gputypes.BufferBindingTypeStorage,
	"read_only_storage": gputypes.BufferBindingTypeReadOnlyStorage,
}

var vertexFormats = map[string]gputypes.VertexFormat{
	"float32":   gputypes.VertexFormatFloat32,
	"float32x2": gputypes.VertexFormatFloat32x2,
	"float32x3": gputypes.VertexFormatFloat32x3,
	"float32x4": gputypes.VertexFormatFloat32x4,
	"uint32":    gputypes.VertexFormatUint32,
	"unorm8x4":  gputypes.VertexFormatUnorm8x4,
}

type flags interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// parseFlags ORs together the values of names.
func parseFlags[T flags](what string, table map[string]T, names []string) (T, error) {
	var v T
	for _, n := range names {
		f, ok := table[n]
		if !ok {
			return 0, errors.Wrapf(ErrInvalidScript, "unknown %s %q", what, n)
		}
		v |= f
	}
	return v, nil
}

func parseFormat(name string) (gputypes.TextureFormat, error) {
	f, ok := textureFormats[name]
	if !ok {
		return gputypes.TextureFormatUndefined, errors.Wrapf(ErrInvalidScript, "unknown texture format %q", name)
	}
	return f, nil
}
