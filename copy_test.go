package cmdbuf

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

func TestTextureCopyBufferSize(t *testing.T) {
	tests := []struct {
		name      string
		size      gputypes.Extent3D
		rowPitch  uint32
		texelSize uint32
		want      uint64
		wantOK    bool
	}{
		{"single row", gputypes.Extent3D{Width: 64, Height: 1, DepthOrArrayLayers: 1}, 256, 4, 256, true},
		{"last row is tight", gputypes.Extent3D{Width: 10, Height: 3, DepthOrArrayLayers: 1}, 256, 4, 2*256 + 40, true},
		{"empty", gputypes.Extent3D{Width: 0, Height: 3, DepthOrArrayLayers: 1}, 256, 4, 0, true},
		{"large", gputypes.Extent3D{Width: math.MaxUint32, Height: 2, DepthOrArrayLayers: 1}, math.MaxUint32, 4, 5 * math.MaxUint32, true},
		{"image overflow", gputypes.Extent3D{Width: math.MaxUint32, Height: math.MaxUint32, DepthOrArrayLayers: 1}, math.MaxUint32, 4, 0, false},
		{"depth overflow", gputypes.Extent3D{Width: 1, Height: 1<<31 + 1, DepthOrArrayLayers: 8}, 1 << 31, 4, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := textureCopyBufferSize(tt.size, tt.rowPitch, tt.texelSize)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("textureCopyBufferSize() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBufferTextureCopyValidation(t *testing.T) {
	d := newTestDevice(t)
	buf := mustBuffer(t, d, 4096, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst, gputypes.BufferUsageCopySrc)
	tex, err := d.CreateTexture(TextureDescriptor{
		Label:         "mipmapped",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Size:          gputypes.Extent3D{Width: 16, Height: 8, DepthOrArrayLayers: 1},
		MipLevelCount: 2,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
		InitialUsage:  gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	depth, err := d.CreateTexture(TextureDescriptor{
		Label:  "depth",
		Format: gputypes.TextureFormatDepth24PlusStencil8,
		Size:   gputypes.Extent3D{Width: 16, Height: 8, DepthOrArrayLayers: 1},
		Usage:  gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}

	extent := func(w, h, depth uint32) gputypes.Extent3D {
		return gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: depth}
	}
	tests := []struct {
		name    string
		src     BufferCopyLocation
		dst     TextureCopyLocation
		wantErr error
	}{
		{"whole level 0", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(16, 8, 1)}, nil},
		{"whole level 1", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(8, 4, 1), Level: 1}, nil},
		{"level 1 too wide", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(9, 4, 1), Level: 1}, ErrCopyOutOfBounds},
		{"origin past edge", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Origin: Origin3D{X: 8}, Size: extent(9, 1, 1)}, ErrCopyOutOfBounds},
		{"missing level", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(1, 1, 1), Level: 2}, ErrMipLevelOutOfRange},
		{"depth", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(1, 1, 2)}, ErrUnsupportedCopyDepth},
		{"z origin", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: tex, Origin: Origin3D{Z: 1}, Size: extent(1, 1, 1)}, ErrUnsupportedCopyDepth},
		{"unaligned offset", BufferCopyLocation{Buffer: buf, Offset: 2, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(1, 1, 1)}, ErrTexelOffsetAlignment},
		{"buffer too small", BufferCopyLocation{Buffer: buf, Offset: 2304, RowPitch: 256}, TextureCopyLocation{Texture: tex, Size: extent(16, 8, 1)}, ErrCopyOutOfBounds},
		{"depth format", BufferCopyLocation{Buffer: buf, RowPitch: 256}, TextureCopyLocation{Texture: depth, Size: extent(1, 1, 1)}, ErrFormatNotCopyable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newStateTracker()
			err := tr.copyBufferToTexture(&CopyBufferToTextureCmd{Source: tt.src, Destination: tt.dst})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("copyBufferToTexture() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("copyBufferToTexture() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCopyUsagesMustBeDeclared(t *testing.T) {
	d := newTestDevice(t)
	buf := mustBuffer(t, d, 4096, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst, gputypes.BufferUsageCopyDst)
	tex := mustTexture(t, d, 16, 16, gputypes.TextureUsageCopySrc|gputypes.TextureUsageCopyDst, gputypes.TextureUsageCopyDst)
	region := TextureCopyLocation{Texture: tex, Size: gputypes.Extent3D{Width: 16, Height: 16, DepthOrArrayLayers: 1}}
	pitch := BufferCopyLocation{Buffer: buf, RowPitch: 256}

	tr := newStateTracker()
	if err := tr.copyBufferToTexture(&CopyBufferToTextureCmd{Source: pitch, Destination: region}); !errors.Is(err, ErrUsageNotDeclared) {
		t.Errorf("upload from a CopyDst buffer error = %v, want ErrUsageNotDeclared", err)
	}
	if err := tr.copyTextureToBuffer(&CopyTextureToBufferCmd{Source: region, Destination: pitch}); !errors.Is(err, ErrUsageNotDeclared) {
		t.Errorf("readback from a CopyDst texture error = %v, want ErrUsageNotDeclared", err)
	}
	if err := tex.TransitionUsage(gputypes.TextureUsageCopySrc); err != nil {
		t.Fatalf("TransitionUsage() error = %v", err)
	}
	if err := tr.copyTextureToBuffer(&CopyTextureToBufferCmd{Source: region, Destination: pitch}); err != nil {
		t.Errorf("readback error = %v", err)
	}
}

func TestCopyBufferToBuffer(t *testing.T) {
	d := newTestDevice(t)
	src := mustBuffer(t, d, 128, gputypes.BufferUsageCopySrc, gputypes.BufferUsageCopySrc)
	dst := mustBuffer(t, d, 64, gputypes.BufferUsageCopyDst, gputypes.BufferUsageCopyDst)

	tests := []struct {
		name    string
		cmd     CopyBufferToBufferCmd
		inPass  bool
		wantErr error
	}{
		{"ok", CopyBufferToBufferCmd{Source: src, Destination: dst, Size: 64}, false, nil},
		{"source range", CopyBufferToBufferCmd{Source: src, SourceOffset: 100, Destination: dst, Size: 32}, false, ErrCopyOutOfBounds},
		{"destination range", CopyBufferToBufferCmd{Source: src, Destination: dst, DestinationOffset: 1, Size: 64}, false, ErrCopyOutOfBounds},
		{"offset overflow", CopyBufferToBufferCmd{Source: src, SourceOffset: math.MaxUint64, Destination: dst, Size: 2}, false, ErrCopyOutOfBounds},
		{"swapped", CopyBufferToBufferCmd{Source: dst, Destination: src, Size: 8}, false, ErrUsageNotDeclared},
		{"in pass", CopyBufferToBufferCmd{Source: src, Destination: dst, Size: 8}, true, ErrCopyInPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newStateTracker()
			if tt.inPass {
				_ = tr.beginComputePass()
			}
			err := tr.copyBufferToBuffer(&tt.cmd)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("copyBufferToBuffer() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("copyBufferToBuffer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
