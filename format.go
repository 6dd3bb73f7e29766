package cmdbuf

import "github.com/gogpu/gputypes"

// texelBlockSize returns the size in bytes of one texel of f, or 0 for
// formats that cannot be copied to or from buffers.
func texelBlockSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 0
	}
}

func isDepthStencilFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// isKnownFormat reports whether textures of format f can be created.
func isKnownFormat(f gputypes.TextureFormat) bool {
	return texelBlockSize(f) != 0 || isDepthStencilFormat(f)
}
