package gpucompute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// VolumeDesc describes the voxel grid handed to the texture factory.
// Voxels are contiguous row-major x→y→z, 16-bit little-endian samples.
type VolumeDesc struct {
	Voxels []byte
	Width  int
	Height int
	Depth  int
	Signed bool
}

// VolumeTexture is the GPU form of one dataset: a sampled 3-D texture
// for the host-engine material path plus a packed storage buffer for
// the compute path. Both are uploaded once and cached by dataset
// identity.
type VolumeTexture struct {
	Texture hal.Texture
	View    hal.TextureView

	// Buffer holds the same voxels as tightly packed 16-bit samples
	// (two per u32 word) for in-shader filtering on the compute path.
	Buffer     hal.Buffer
	BufferSize uint64

	Width, Height, Depth int
	Signed               bool

	dev *Device
}

// GenerateVolumeTexture allocates and uploads the 3-D texture and the
// companion storage buffer. Row and slice strides follow from the voxel
// size: bytesPerRow = 2×width, rowsPerImage = height. Allocation
// failures return ErrAllocation; the caller may retry at reduced
// resolution or fall back to CPU rendering.
func GenerateVolumeTexture(dev *Device, desc VolumeDesc) (*VolumeTexture, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNotReady
	}
	w, h, d := uint32(desc.Width), uint32(desc.Height), uint32(desc.Depth)
	format := gputypes.TextureFormatR16Uint
	if desc.Signed {
		format = gputypes.TextureFormatR16Sint
	}

	tex, err := dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "volren_volume",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: d},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension3D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create 3-D texture %dx%dx%d: %v", ErrAllocation, w, h, d, err)
	}
	view, err := dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "volren_volume_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension3D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		dev.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: create 3-D texture view: %v", ErrAllocation, err)
	}

	bytesPerRow := 2 * w
	dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		desc.Voxels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: d},
	)

	// Pack the voxels two-per-word for the compute path. An odd sample
	// count gets one pad word so the buffer length is word-aligned.
	bufSize := uint64((len(desc.Voxels) + 3) / 4 * 4)
	buf, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "volren_volume_storage",
		Size:  bufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		dev.device.DestroyTextureView(view)
		dev.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: create volume storage buffer (%d bytes): %v", ErrAllocation, bufSize, err)
	}
	payload := desc.Voxels
	if uint64(len(payload)) != bufSize {
		padded := make([]byte, bufSize)
		copy(padded, payload)
		payload = padded
	}
	dev.queue.WriteBuffer(buf, 0, payload)

	slogger().Debug("gpucompute: volume uploaded",
		"dims", fmt.Sprintf("%dx%dx%d", w, h, d),
		"bytes", len(desc.Voxels), "signed", desc.Signed)

	return &VolumeTexture{
		Texture: tex, View: view,
		Buffer: buf, BufferSize: bufSize,
		Width: desc.Width, Height: desc.Height, Depth: desc.Depth,
		Signed: desc.Signed,
		dev:    dev,
	}, nil
}

// Destroy releases the texture, view and buffer. Idempotent.
func (t *VolumeTexture) Destroy() {
	if t == nil || t.dev == nil || t.dev.device == nil {
		return
	}
	if t.View != nil {
		t.dev.device.DestroyTextureView(t.View)
		t.View = nil
	}
	if t.Texture != nil {
		t.dev.device.DestroyTexture(t.Texture)
		t.Texture = nil
	}
	if t.Buffer != nil {
		t.dev.device.DestroyBuffer(t.Buffer)
		t.Buffer = nil
	}
}

// TransferTexture is the GPU form of one transfer function: a 1-D RGBA8
// lookup texture for the host-engine path plus a packed storage buffer
// for the compute path. LUT holds the CPU copy for byte comparison.
type TransferTexture struct {
	Texture hal.Texture
	View    hal.TextureView

	Buffer     hal.Buffer
	BufferSize uint64

	LUT []byte // RGBA8, Samples entries

	Samples int

	dev *Device
}

// GenerateTransferTexture uploads an RGBA8 lookup table (4 bytes per
// sample) as a 1-D texture and a storage buffer.
func GenerateTransferTexture(dev *Device, lut []byte) (*TransferTexture, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNotReady
	}
	if len(lut) == 0 || len(lut)%4 != 0 {
		return nil, fmt.Errorf("%w: LUT length %d is not a multiple of 4", ErrAllocation, len(lut))
	}
	samples := len(lut) / 4

	tex, err := dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "volren_transfer",
		Size:          hal.Extent3D{Width: uint32(samples), Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension1D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create 1-D transfer texture (%d samples): %v", ErrAllocation, samples, err)
	}
	view, err := dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "volren_transfer_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension1D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		dev.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: create transfer texture view: %v", ErrAllocation, err)
	}
	dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		lut,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(len(lut)), RowsPerImage: 1},
		&hal.Extent3D{Width: uint32(samples), Height: 1, DepthOrArrayLayers: 1},
	)

	buf, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "volren_transfer_storage",
		Size:  uint64(len(lut)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		dev.device.DestroyTextureView(view)
		dev.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: create transfer storage buffer: %v", ErrAllocation, err)
	}
	dev.queue.WriteBuffer(buf, 0, lut)

	lutCopy := make([]byte, len(lut))
	copy(lutCopy, lut)

	return &TransferTexture{
		Texture: tex, View: view,
		Buffer: buf, BufferSize: uint64(len(lut)),
		LUT:     lutCopy,
		Samples: samples,
		dev:     dev,
	}, nil
}

// Destroy releases the texture, view and buffer. Idempotent.
func (t *TransferTexture) Destroy() {
	if t == nil || t.dev == nil || t.dev.device == nil {
		return
	}
	if t.View != nil {
		t.dev.device.DestroyTextureView(t.View)
		t.View = nil
	}
	if t.Texture != nil {
		t.dev.device.DestroyTexture(t.Texture)
		t.Texture = nil
	}
	if t.Buffer != nil {
		t.dev.device.DestroyBuffer(t.Buffer)
		t.Buffer = nil
	}
}
