package gpucompute

import (
	"bytes"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Slot indexes the fixed binding table. The order matches the
// @binding(...) declarations in raymarch.wgsl.
type Slot int

const (
	SlotRenderUniforms Slot = iota
	SlotCameraUniforms
	SlotVolume
	SlotLUT
	SlotOutput

	slotCount
)

// The slot table and the shader's binding list must agree; a mismatch
// here fails to compile rather than silently binding the wrong resource.
var _ [raymarchBindingCount]struct{} = [slotCount]struct{}{}

func (s Slot) String() string {
	switch s {
	case SlotRenderUniforms:
		return "render_uniforms"
	case SlotCameraUniforms:
		return "camera_uniforms"
	case SlotVolume:
		return "volume"
	case SlotLUT:
		return "lut"
	case SlotOutput:
		return "output"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// storageRef identifies a bound storage buffer by handle and size.
type storageRef struct {
	buf  hal.Buffer
	size uint64
}

// BindingManager encodes all GPU-visible resources of the ray-march
// pass into one bind group, with per-slot dirty tracking: a slot is
// re-uploaded (uniforms) or re-bound (storage buffers) only when its
// new content differs from the shadow copy of what is currently bound.
// MarkNeedsUpdate forces a slot on the next encode after an out-of-band
// invalidation. Owned exclusively by the compute renderer.
type BindingManager struct {
	dev    *Device
	layout hal.BindGroupLayout

	uniformBufs [slotCount]hal.Buffer
	shadows     [slotCount][]byte
	storage     [slotCount]storageRef
	dirty       [slotCount]bool
	uploads     [slotCount]int

	bindGroup hal.BindGroup
	bindDirty bool

	outW, outH int
	outputBuf  hal.Buffer
	stagingBuf hal.Buffer
	outputSize uint64
}

// NewBindingManager creates a manager bound to dev and layout.
func NewBindingManager(dev *Device, layout hal.BindGroupLayout) *BindingManager {
	return &BindingManager{dev: dev, layout: layout, bindDirty: true}
}

// Uploads returns how many times the slot's content was actually
// written to the GPU. Diagnostic; drives the dirty-tracking tests.
func (m *BindingManager) Uploads(s Slot) int { return m.uploads[s] }

// MarkNeedsUpdate flags a slot so the next encode re-uploads or
// re-binds it even if the content compares equal.
func (m *BindingManager) MarkNeedsUpdate(s Slot) {
	m.dirty[s] = true
	m.bindDirty = true
}

// needsUpload compares data against the slot's shadow copy, honoring a
// pending MarkNeedsUpdate. On true, the shadow is replaced and the
// upload counted; the caller must then perform the GPU write.
func (m *BindingManager) needsUpload(s Slot, data []byte) bool {
	if !m.dirty[s] && m.shadows[s] != nil && bytes.Equal(m.shadows[s], data) {
		return false
	}
	shadow := make([]byte, len(data))
	copy(shadow, data)
	m.shadows[s] = shadow
	m.dirty[s] = false
	m.uploads[s]++
	return true
}

// EncodeUniform writes data into the slot's uniform buffer when it
// differs byte-for-byte from what is currently bound. The buffer is
// allocated lazily at the size of the first upload.
func (m *BindingManager) EncodeUniform(s Slot, data []byte) error {
	if !m.needsUpload(s, data) {
		return nil
	}
	if m.uniformBufs[s] == nil {
		if m.dev == nil || m.dev.device == nil {
			return ErrNotReady
		}
		buf, err := m.dev.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "volren_" + s.String(),
			Size:  uint64(len(data)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("%w: create %s buffer: %v", ErrAllocation, s, err)
		}
		m.uniformBufs[s] = buf
		m.bindDirty = true
	}
	m.dev.queue.WriteBuffer(m.uniformBufs[s], 0, data)
	slogger().Debug("gpucompute: uniform uploaded", "slot", s.String(), "bytes", len(data))
	return nil
}

// EncodeStorage binds an externally owned storage buffer (the cached
// volume or LUT) into a slot. Re-binding the same handle and size is a
// no-op unless the slot was marked for update.
func (m *BindingManager) EncodeStorage(s Slot, buf hal.Buffer, size uint64) {
	ref := storageRef{buf: buf, size: size}
	if !m.dirty[s] && m.storage[s] == ref {
		return
	}
	m.storage[s] = ref
	m.dirty[s] = false
	m.uploads[s]++
	m.bindDirty = true
}

// EncodeOutputTarget (re)allocates the output and readback buffers only
// when the viewport dimensions change.
func (m *BindingManager) EncodeOutputTarget(w, h int) error {
	if w == m.outW && h == m.outH && m.outputBuf != nil {
		return nil
	}
	if m.dev == nil || m.dev.device == nil {
		return ErrNotReady
	}
	m.destroyOutput()

	size := uint64(w) * uint64(h) * 4
	out, err := m.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "volren_output",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("%w: create output buffer %dx%d: %v", ErrAllocation, w, h, err)
	}
	staging, err := m.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "volren_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		m.dev.device.DestroyBuffer(out)
		return fmt.Errorf("%w: create staging buffer %dx%d: %v", ErrAllocation, w, h, err)
	}
	m.outputBuf = out
	m.stagingBuf = staging
	m.outputSize = size
	m.outW, m.outH = w, h
	m.storage[SlotOutput] = storageRef{buf: out, size: size}
	m.uploads[SlotOutput]++
	m.bindDirty = true
	slogger().Debug("gpucompute: output target allocated", "w", w, "h", h)
	return nil
}

// OutputBuffers returns the current output and staging buffers and size.
func (m *BindingManager) OutputBuffers() (out, staging hal.Buffer, size uint64) {
	return m.outputBuf, m.stagingBuf, m.outputSize
}

// BindGroup returns the bind group over the current slot contents,
// rebuilding it only when a binding changed.
func (m *BindingManager) BindGroup() (hal.BindGroup, error) {
	if !m.bindDirty && m.bindGroup != nil {
		return m.bindGroup, nil
	}
	if m.dev == nil || m.dev.device == nil {
		return nil, ErrNotReady
	}
	for _, s := range []Slot{SlotRenderUniforms, SlotCameraUniforms} {
		if m.uniformBufs[s] == nil {
			return nil, fmt.Errorf("%w: %s not encoded", ErrNotReady, s)
		}
	}
	for _, s := range []Slot{SlotVolume, SlotLUT, SlotOutput} {
		if m.storage[s].buf == nil {
			return nil, fmt.Errorf("%w: %s not encoded", ErrNotReady, s)
		}
	}
	if m.bindGroup != nil {
		m.dev.device.DestroyBindGroup(m.bindGroup)
		m.bindGroup = nil
	}
	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{Buffer: m.uniformBufs[SlotRenderUniforms].NativeHandle(), Offset: 0, Size: uint64(len(m.shadows[SlotRenderUniforms]))}},
		{Binding: 1, Resource: gputypes.BufferBinding{Buffer: m.uniformBufs[SlotCameraUniforms].NativeHandle(), Offset: 0, Size: uint64(len(m.shadows[SlotCameraUniforms]))}},
		{Binding: 2, Resource: gputypes.BufferBinding{Buffer: m.storage[SlotVolume].buf.NativeHandle(), Offset: 0, Size: m.storage[SlotVolume].size}},
		{Binding: 3, Resource: gputypes.BufferBinding{Buffer: m.storage[SlotLUT].buf.NativeHandle(), Offset: 0, Size: m.storage[SlotLUT].size}},
		{Binding: 4, Resource: gputypes.BufferBinding{Buffer: m.storage[SlotOutput].buf.NativeHandle(), Offset: 0, Size: m.storage[SlotOutput].size}},
	}
	bg, err := m.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "volren_bind",
		Layout:  m.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group: %v", ErrAllocation, err)
	}
	m.bindGroup = bg
	m.bindDirty = false
	return bg, nil
}

func (m *BindingManager) destroyOutput() {
	if m.dev == nil || m.dev.device == nil {
		return
	}
	if m.outputBuf != nil {
		m.dev.device.DestroyBuffer(m.outputBuf)
		m.outputBuf = nil
	}
	if m.stagingBuf != nil {
		m.dev.device.DestroyBuffer(m.stagingBuf)
		m.stagingBuf = nil
	}
	m.outW, m.outH = 0, 0
	m.storage[SlotOutput] = storageRef{}
}

// Destroy releases everything the manager owns. Cached volume and LUT
// buffers belong to the ResourceCache and are not touched.
func (m *BindingManager) Destroy() {
	if m.dev == nil || m.dev.device == nil {
		return
	}
	if m.bindGroup != nil {
		m.dev.device.DestroyBindGroup(m.bindGroup)
		m.bindGroup = nil
	}
	for s := Slot(0); s < slotCount; s++ {
		if m.uniformBufs[s] != nil {
			m.dev.device.DestroyBuffer(m.uniformBufs[s])
			m.uniformBufs[s] = nil
		}
	}
	m.destroyOutput()
}
