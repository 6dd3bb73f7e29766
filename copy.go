package cmdbuf

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

func (t *stateTracker) copyBufferToBuffer(c *CopyBufferToBufferCmd) error {
	if err := t.validateCanCopy(); err != nil {
		return err
	}
	if err := validateBufferRange(c.Source, c.SourceOffset, c.Size); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := validateBufferRange(c.Destination, c.DestinationOffset, c.Size); err != nil {
		return errors.Wrap(err, "destination")
	}
	if err := t.validateCanUseBufferAs(c.Source, gputypes.BufferUsageCopySrc); err != nil {
		return err
	}
	return t.validateCanUseBufferAs(c.Destination, gputypes.BufferUsageCopyDst)
}

func (t *stateTracker) copyBufferToTexture(c *CopyBufferToTextureCmd) error {
	if err := t.validateCanCopy(); err != nil {
		return err
	}
	if err := validateBufferTextureCopy(c.Source, c.Destination); err != nil {
		return err
	}
	if err := t.validateCanUseBufferAs(c.Source.Buffer, gputypes.BufferUsageCopySrc); err != nil {
		return err
	}
	return t.validateCanUseTextureAs(c.Destination.Texture, gputypes.TextureUsageCopyDst)
}

func (t *stateTracker) copyTextureToBuffer(c *CopyTextureToBufferCmd) error {
	if err := t.validateCanCopy(); err != nil {
		return err
	}
	if err := validateBufferTextureCopy(c.Destination, c.Source); err != nil {
		return err
	}
	if err := t.validateCanUseTextureAs(c.Source.Texture, gputypes.TextureUsageCopySrc); err != nil {
		return err
	}
	return t.validateCanUseBufferAs(c.Destination.Buffer, gputypes.BufferUsageCopyDst)
}

// validateBufferTextureCopy checks the geometry shared by both directions
// of buffer/texture copies.
func validateBufferTextureCopy(buf BufferCopyLocation, tex TextureCopyLocation) error {
	texelSize := texelBlockSize(tex.Texture.Format())
	if texelSize == 0 {
		return errors.Wrapf(ErrFormatNotCopyable, "texture %q format %v", tex.Texture.Label(), tex.Texture.Format())
	}
	if err := validateRowPitch(buf.RowPitch, tex.Size.Width, texelSize); err != nil {
		return err
	}
	if err := validateTextureCopyRange(tex); err != nil {
		return err
	}
	if buf.Offset%uint64(texelSize) != 0 {
		return errors.Wrapf(ErrTexelOffsetAlignment, "offset %d, texel size %d", buf.Offset, texelSize)
	}
	size, ok := textureCopyBufferSize(tex.Size, buf.RowPitch, texelSize)
	if !ok {
		return errors.Wrapf(ErrCopyOutOfBounds, "copy of %dx%dx%d texels overflows",
			tex.Size.Width, tex.Size.Height, tex.Size.DepthOrArrayLayers)
	}
	return validateBufferRange(buf.Buffer, buf.Offset, size)
}

// defaultRowPitch is the row pitch used when a copy passes 0: tightly
// packed rows, without alignment.
func defaultRowPitch(tex *Texture, width uint32) uint32 {
	return texelBlockSize(tex.Format()) * width
}

func validateRowPitch(rowPitch, width, texelSize uint32) error {
	if rowPitch%TextureRowPitchAlignment != 0 {
		return errors.Wrapf(ErrRowPitchAlignment, "row pitch %d", rowPitch)
	}
	if uint64(rowPitch) < uint64(width)*uint64(texelSize) {
		return errors.Wrapf(ErrRowPitchTooSmall, "row pitch %d for %d texels of %d bytes", rowPitch, width, texelSize)
	}
	return nil
}

func validateTextureCopyRange(tex TextureCopyLocation) error {
	t := tex.Texture
	if tex.Level >= t.MipLevelCount() {
		return errors.Wrapf(ErrMipLevelOutOfRange, "texture %q level %d, has %d", t.Label(), tex.Level, t.MipLevelCount())
	}
	if tex.Origin.Z != 0 || tex.Size.DepthOrArrayLayers != 1 {
		return errors.Wrapf(ErrUnsupportedCopyDepth, "z %d depth %d", tex.Origin.Z, tex.Size.DepthOrArrayLayers)
	}
	w, h := t.levelSize(tex.Level)
	if uint64(tex.Origin.X)+uint64(tex.Size.Width) > uint64(w) ||
		uint64(tex.Origin.Y)+uint64(tex.Size.Height) > uint64(h) {
		return errors.Wrapf(ErrCopyOutOfBounds, "texture %q region (%d,%d)+(%dx%d) exceeds level %d size %dx%d",
			t.Label(), tex.Origin.X, tex.Origin.Y, tex.Size.Width, tex.Size.Height, tex.Level, w, h)
	}
	return nil
}

func validateBufferRange(b *Buffer, offset, size uint64) error {
	end, carry := bits.Add64(offset, size, 0)
	if carry != 0 || end > b.Size() {
		return errors.Wrapf(ErrCopyOutOfBounds, "buffer %q range [%d, +%d) exceeds size %d", b.Label(), offset, size, b.Size())
	}
	return nil
}

// textureCopyBufferSize returns the bytes a copy of size touches in a
// buffer with the given row pitch: every row but the last takes a full
// pitch, the last only its texels. ok is false on 64-bit overflow.
func textureCopyBufferSize(size gputypes.Extent3D, rowPitch, texelSize uint32) (n uint64, ok bool) {
	if size.Width == 0 || size.Height == 0 || size.DepthOrArrayLayers == 0 {
		return 0, true
	}
	rows := uint64(rowPitch) * uint64(size.Height-1)
	last := uint64(size.Width) * uint64(texelSize)
	image, carry := bits.Add64(rows, last, 0)
	if carry != 0 {
		return 0, false
	}
	hi, total := bits.Mul64(image, uint64(size.DepthOrArrayLayers))
	if hi != 0 {
		return 0, false
	}
	return total, true
}
