package gpucompute

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Frame carries everything one compute render needs. The volume and LUT
// resolve through the resource cache; uniforms go through the binding
// manager's dirty tracking.
type Frame struct {
	Width  int
	Height int

	VolumeKey DatasetKey
	Volume    VolumeDesc

	LUT []byte

	Render RenderUniforms
	Camera CameraUniforms
}

// ComputeRenderer owns the ray-march compute pipeline, the resource
// cache and the binding manager. Not safe for concurrent use; the
// root renderer serializes access.
type ComputeRenderer struct {
	dev      *Device
	cache    *ResourceCache
	bindings *BindingManager

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// NewComputeRenderer validates the embedded shader and builds the
// compute pipeline on dev. Shader failures return ErrShader; the caller
// falls back one tier.
func NewComputeRenderer(dev *Device) (*ComputeRenderer, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNotReady
	}
	if err := validateShader(); err != nil {
		return nil, err
	}
	r := &ComputeRenderer{dev: dev}
	if err := r.createPipeline(); err != nil {
		r.Destroy()
		return nil, err
	}
	r.cache = NewResourceCache(dev)
	r.bindings = NewBindingManager(dev, r.bindLayout)
	return r, nil
}

func (r *ComputeRenderer) createPipeline() error {
	shader, err := r.dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "volren_raymarch",
		Source: hal.ShaderSource{WGSL: raymarchShaderWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: compile raymarch shader: %v", ErrShader, err)
	}
	r.shader = shader

	bindLayout, err := r.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "volren_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group layout: %v", ErrShader, err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "volren_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: create pipeline layout: %v", ErrShader, err)
	}
	r.pipeLayout = pipeLayout

	pipeline, err := r.dev.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "volren_raymarch_pipeline",
		Layout:  r.pipeLayout,
		Compute: hal.ComputeState{Module: r.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("%w: create compute pipeline: %v", ErrShader, err)
	}
	r.pipeline = pipeline
	return nil
}

// Cache exposes the resource cache for invalidation signals.
func (r *ComputeRenderer) Cache() *ResourceCache { return r.cache }

// OutputHandle returns the GPU buffer holding the most recently
// rendered frame, for zero-copy consumption by a presenting host. Nil
// until a frame has been dispatched.
func (r *ComputeRenderer) OutputHandle() any {
	if r.bindings == nil {
		return nil
	}
	out, _, _ := r.bindings.OutputBuffers()
	if out == nil {
		return nil
	}
	return out
}

// Bindings exposes the binding manager for MarkNeedsUpdate signals.
func (r *ComputeRenderer) Bindings() *BindingManager { return r.bindings }

// Render executes one ray-march dispatch and returns the RGBA pixels,
// row-major, 4 bytes per pixel.
func (r *ComputeRenderer) Render(f Frame) ([]byte, error) {
	volume, volHit, err := r.cache.Volume(f.VolumeKey, f.Volume)
	if err != nil {
		return nil, err
	}
	transfer, tfHit, err := r.cache.Transfer(f.LUT)
	if err != nil {
		return nil, err
	}
	slogger().Debug("gpucompute: resources resolved",
		"volume_cached", volHit, "transfer_cached", tfHit)

	if err := r.bindings.EncodeUniform(SlotRenderUniforms, f.Render.toBytes()); err != nil {
		return nil, err
	}
	if err := r.bindings.EncodeUniform(SlotCameraUniforms, f.Camera.toBytes()); err != nil {
		return nil, err
	}
	r.bindings.EncodeStorage(SlotVolume, volume.Buffer, volume.BufferSize)
	r.bindings.EncodeStorage(SlotLUT, transfer.Buffer, transfer.BufferSize)
	if err := r.bindings.EncodeOutputTarget(f.Width, f.Height); err != nil {
		return nil, err
	}
	bg, err := r.bindings.BindGroup()
	if err != nil {
		return nil, err
	}
	return r.dispatch(bg, f.Width, f.Height)
}

func (r *ComputeRenderer) dispatch(bg hal.BindGroup, w, h int) ([]byte, error) {
	out, staging, size := r.bindings.OutputBuffers()

	encoder, err := r.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "volren_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("volren_raymarch"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "volren_pass"})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((uint32(w)+7)/8, (uint32(h)+7)/8, 1)
	pass.End()
	encoder.CopyBufferToBuffer(out, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer r.dev.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.dev.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer r.dev.device.DestroyFence(fence)
	if err := r.dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := r.dev.device.Wait(fence, 1, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return nil, fmt.Errorf("wait for GPU: fence timeout")
	}

	pixels := make([]byte, size)
	if err := r.dev.queue.ReadBuffer(staging, 0, pixels); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return pixels, nil
}

// Destroy releases the pipeline, cache and bindings. Idempotent.
func (r *ComputeRenderer) Destroy() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	if r.bindings != nil {
		r.bindings.Destroy()
		r.bindings = nil
	}
	if r.cache != nil {
		r.cache.Destroy()
		r.cache = nil
	}
	if r.pipeline != nil {
		r.dev.device.DestroyComputePipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		r.dev.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.dev.device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.dev.device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
}
