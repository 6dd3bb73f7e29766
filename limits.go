package cmdbuf

// Fixed limits forming part of the validation contract with callers.
const (
	// MaxBindGroups is the number of bind group indices a pipeline layout can use.
	MaxBindGroups = 4

	// MaxVertexInputs is the number of vertex buffer slots.
	MaxVertexInputs = 16

	// MaxVertexAttributes is the number of vertex attributes an input state can declare.
	MaxVertexAttributes = 16

	// MaxPushConstants is the number of 32-bit push constant words.
	MaxPushConstants = 32

	// MaxColorAttachments is the number of color attachments a subpass can write.
	MaxColorAttachments = 4

	// TextureRowPitchAlignment is the required alignment, in bytes, of the row
	// pitch of buffer<->texture copies.
	TextureRowPitchAlignment = 256
)
