package volren

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/volren/volren/internal/gpucompute"
	"github.com/volren/volren/internal/softrender"
)

// defaultSamplingDistance applies when neither an override, the
// request, nor the dataset recommends a step length.
const defaultSamplingDistance = 1.0 / 256

// overrides is the renderer-local persistent override state, layered
// above request values until cleared. Never stored on the request or
// dataset types.
type overrides struct {
	compositing  *CompositingMode
	windowMinMax *[2]float32
	sampling     *float32
	lighting     *bool
}

// Renderer is the single-writer serialized rendering unit. All calls
// are queued onto one worker goroutine in FIFO order, so cached
// textures, bindings and overrides are never raced. Callers block until
// their job completes; a cancelled context abandons the wait and the
// eventual result is discarded (advisory cancellation — in-flight GPU
// work is never aborted mid-dispatch).
type Renderer struct {
	jobs      chan func()
	done      chan struct{}
	closeOnce sync.Once
	stopped   sync.WaitGroup

	// Worker-owned state. Touched only from the worker goroutine.
	ov      overrides
	compute *gpucompute.ComputeRenderer
	soft    *softrender.Renderer

	lutTF  *TransferFunction
	lutVal []byte

	// onFallback is invoked on the worker goroutine whenever a GPU
	// render fails and the frame is produced on the CPU instead. The
	// coordinator uses it to record backend transitions.
	onFallback func(error)
}

// NewRenderer creates a serialized renderer. compute may be nil, in
// which case every frame renders on the CPU path.
func NewRenderer(compute *gpucompute.ComputeRenderer) *Renderer {
	r := &Renderer{
		jobs:    make(chan func(), 16),
		done:    make(chan struct{}),
		compute: compute,
		soft:    softrender.New(),
	}
	r.stopped.Add(1)
	go r.worker()
	return r
}

func (r *Renderer) worker() {
	defer r.stopped.Done()
	for {
		select {
		case <-r.done:
			// Drain queued jobs so blocked callers are released.
			for {
				select {
				case job := <-r.jobs:
					job()
				default:
					return
				}
			}
		case job := <-r.jobs:
			job()
		}
	}
}

// submit queues fn and waits for completion. The context only governs
// the caller's wait, not the job's execution.
func (r *Renderer) submit(ctx context.Context, fn func()) error {
	select {
	case <-r.done:
		return ErrRendererClosed
	default:
	}
	doneCh := make(chan struct{})
	wrapped := func() {
		fn()
		close(doneCh)
	}
	select {
	case r.jobs <- wrapped:
	case <-r.done:
		return ErrRendererClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setCompute installs the compute pipeline through the serialized
// queue, so in-flight renders never observe a half-swapped backend.
func (r *Renderer) setCompute(compute *gpucompute.ComputeRenderer) {
	_ = r.submit(context.Background(), func() { r.compute = compute })
}

// Close stops the worker. Queued jobs are drained; subsequent calls
// return ErrRendererClosed.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.stopped.Wait()
	r.soft.Close()
}

// SendCommand applies a persistent override. The override outlives the
// request that prompted it and wins over request-embedded values until
// ClearOverrides.
func (r *Renderer) SendCommand(ctx context.Context, cmd Command) error {
	return r.submit(ctx, func() {
		switch c := cmd.(type) {
		case SetCompositing:
			m := c.Mode
			r.ov.compositing = &m
		case SetWindow:
			lo, hi := c.Min, c.Max
			if lo > hi {
				lo, hi = hi, lo
			}
			w := [2]float32{lo, hi}
			r.ov.windowMinMax = &w
		case SetSamplingStep:
			d := c.Distance
			r.ov.sampling = &d
		case SetLighting:
			e := c.Enabled
			r.ov.lighting = &e
		case ClearOverrides:
			r.ov = overrides{}
		}
		Logger().Debug("volren: command applied", "command", fmt.Sprintf("%T", cmd))
	})
}

// UpdatePreset returns the preset library adapted to the dataset, with
// the named preset first when it exists. Runs on the serialized queue
// so it observes a consistent dataset.
func (r *Renderer) UpdatePreset(ctx context.Context, id string, d *VolumeDataset) ([]Preset, error) {
	var out []Preset
	err := r.submit(ctx, func() {
		ps := Presets(d)
		for i, p := range ps {
			if p.ID == id && i > 0 {
				ps[0], ps[i] = ps[i], ps[0]
				break
			}
		}
		out = ps
	})
	return out, err
}

// RefreshHistogram computes the dataset's intensity histogram,
// restricted to the MPR slab when plane is non-nil.
func (r *Renderer) RefreshHistogram(ctx context.Context, d *VolumeDataset, plane *PlaneDescriptor) (Histogram, error) {
	var h Histogram
	if d == nil {
		return h, nil
	}
	err := r.submit(ctx, func() {
		h = ComputeHistogram(d, plane, HistogramBins)
	})
	return h, err
}

// RenderImage renders one frame. GPU failures fall back to the CPU path
// rather than surfacing mid-render errors; a nil dataset yields a
// well-formed placeholder frame.
func (r *Renderer) RenderImage(ctx context.Context, req RenderRequest) (RenderResult, error) {
	var res RenderResult
	err := r.submit(ctx, func() {
		res = r.renderLocked(req)
	})
	return res, err
}

// renderLocked runs on the worker goroutine.
func (r *Renderer) renderLocked(req RenderRequest) RenderResult {
	req = req.sanitized()
	d := req.Dataset

	// Parameter layering, highest priority first: persistent override,
	// request value, dataset recommendation, dataset full range.
	compositing := req.Compositing
	if r.ov.compositing != nil {
		compositing = *r.ov.compositing
	}
	lighting := req.Lighting
	if r.ov.lighting != nil {
		lighting = *r.ov.lighting
	}
	sampling := req.SamplingDistance
	if sampling <= samplingFloor {
		if d != nil && d.RecommendedSampling() > 0 {
			sampling = d.RecommendedSampling()
		} else {
			sampling = defaultSamplingDistance
		}
	}
	if r.ov.sampling != nil && *r.ov.sampling > samplingFloor {
		sampling = *r.ov.sampling
	}
	var winMin, winMax float32
	switch {
	case r.ov.windowMinMax != nil:
		winMin, winMax = r.ov.windowMinMax[0], r.ov.windowMinMax[1]
	case req.HasWindow:
		winMin, winMax = req.WindowMin, req.WindowMax
	case d != nil:
		if lo, hi, ok := d.RecommendedWindow(); ok {
			winMin, winMax = lo, hi
		} else {
			winMin, winMax = d.IntensityRange()
		}
	default:
		winMin, winMax = 0, 1
	}

	window := ResolveWindow(winMin, winMax, d, req.Transfer)
	steps := StepCount(sampling)
	meta := RenderMeta{
		Width:            req.Width,
		Height:           req.Height,
		SamplingDistance: sampling,
		Steps:            steps,
		Compositing:      compositing,
		Quality:          req.Quality,
		Window:           window,
		Lighting:         lighting,
		Backend:          "cpu",
	}

	if d == nil {
		// Placeholder frame: an absent dataset (for example a failed
		// load upstream) still yields an opaque black result.
		img := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 255
		}
		return RenderResult{Image: img, Meta: meta}
	}

	frame := gpucompute.Frame{
		Width:  req.Width,
		Height: req.Height,
		VolumeKey: gpucompute.DatasetKey{
			Ptr:  d.Identity().Ptr,
			Size: d.Identity().Size,
		},
		Volume: volumeDesc(d),
		LUT:    r.lutFor(req.Transfer),
		Render: gpucompute.RenderUniforms{
			Method:      uint32(compositing),
			Steps:       uint32(steps),
			Width:       uint32(req.Width),
			Height:      uint32(req.Height),
			WinMin:      window.MinHU,
			WinMax:      window.MaxHU,
			DataMin:     minOf(d),
			DataMax:     maxOf(d),
			DimX:        uint32(dimX(d)),
			DimY:        uint32(dimY(d)),
			DimZ:        uint32(dimZ(d)),
			Lighting:    boolFlag(lighting),
			GateMin:     req.Gate.Min,
			GateMax:     req.Gate.Max,
			GateEnabled: boolFlag(req.Gate.Enabled),
			SignedData:  boolFlag(d.Format() == PixelInt16),
			TfMin:       window.TfMin,
			TfMax:       window.TfMax,
		},
	}
	cam := ResolveCamera(req.Camera, req.Width, req.Height)
	frame.Camera = gpucompute.CameraUniforms{
		InvViewProj: cam.InvViewProj,
		Eye:         cam.Eye,
		Near:        cam.Near,
		Far:         cam.Far,
	}

	reduced := req.Quality == QualityLow
	if reduced {
		frame.Width = (req.Width + 1) / 2
		frame.Height = (req.Height + 1) / 2
		frame.Render.Width = uint32(frame.Width)
		frame.Render.Height = uint32(frame.Height)
	}

	if r.compute != nil {
		pixels, err := r.renderCompute(frame)
		if err == nil {
			img := rgbaImage(pixels, frame.Width, frame.Height)
			if reduced {
				img = upscale(img, req.Width, req.Height)
			}
			meta.Backend = "compute"
			return RenderResult{
				Image:   img,
				Texture: r.compute.OutputHandle(),
				Meta:    meta,
			}
		}
		err = fmt.Errorf("%w: %w", ErrFallbackToCPU, err)
		Logger().Warn("volren: compute render failed, falling back to CPU", "error", err)
		if r.onFallback != nil {
			r.onFallback(err)
		}
	}

	img := r.soft.Render(frame, false)
	if reduced {
		img = upscale(img, req.Width, req.Height)
	}
	return RenderResult{Image: img, Meta: meta}
}

// renderCompute dispatches the frame, retrying once after an allocation
// failure with invalidated caches before giving up.
func (r *Renderer) renderCompute(frame gpucompute.Frame) ([]byte, error) {
	pixels, err := r.compute.Render(frame)
	if err == nil {
		return pixels, nil
	}
	if errors.Is(err, gpucompute.ErrAllocation) {
		Logger().Warn("volren: allocation failed, retrying once", "error", err)
		r.compute.Cache().InvalidateVolume()
		r.compute.Cache().InvalidateTransfer()
		return r.compute.Render(frame)
	}
	return nil, err
}

// RenderPlaneImage resamples an MPR slice (including slab blending)
// into a w×h image on the CPU path.
func (r *Renderer) RenderPlaneImage(ctx context.Context, d *VolumeDataset, desc PlaneDescriptor, tf *TransferFunction, w, h int) (RenderResult, error) {
	var res RenderResult
	err := r.submit(ctx, func() {
		res = r.renderPlaneLocked(d, desc, tf, w, h)
	})
	return res, err
}

func (r *Renderer) renderPlaneLocked(d *VolumeDataset, desc PlaneDescriptor, tf *TransferFunction, w, h int) RenderResult {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	meta := RenderMeta{Width: w, Height: h, Backend: "cpu"}
	if d == nil {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		return RenderResult{Image: img, Meta: meta}
	}
	var winMin, winMax float32
	if r.ov.windowMinMax != nil {
		winMin, winMax = r.ov.windowMinMax[0], r.ov.windowMinMax[1]
	} else if lo, hi, ok := d.RecommendedWindow(); ok {
		winMin, winMax = lo, hi
	} else {
		winMin, winMax = d.IntensityRange()
	}
	window := ResolveWindow(winMin, winMax, d, tf)
	meta.Window = window

	basis := ComputePlane(desc, d)
	blend := softrender.PlaneSingle
	switch desc.Blend {
	case BlendAverageSlab:
		blend = softrender.PlaneAverage
	case BlendMaxSlab:
		blend = softrender.PlaneMax
	}
	img := r.soft.RenderPlane(volumeDesc(d), softrender.PlaneInput{
		Origin:  basis.Origin,
		U:       basis.U,
		V:       basis.V,
		Normal:  basis.Normal(),
		Offsets: desc.SlabOffsets(d),
		Blend:   blend,
		WinMin:  window.MinHU,
		WinMax:  window.MaxHU,
		TfMin:   window.TfMin,
		TfMax:   window.TfMax,
		LUT:     r.lutFor(tf),
	}, w, h)
	return RenderResult{Image: img, Meta: meta}
}

// lutFor returns the sampled lookup table for tf, cached against the
// last transfer snapshot so unchanged functions skip resampling.
func (r *Renderer) lutFor(tf *TransferFunction) []byte {
	if tf == nil {
		return grayscaleLUT()
	}
	if r.lutTF != nil && r.lutTF.Equal(tf) {
		return r.lutVal
	}
	r.lutTF = tf.Clone()
	r.lutVal = tf.SampleLUT(LUTSize)
	return r.lutVal
}

var (
	grayLUT     []byte
	grayLUTOnce sync.Once
)

// grayscaleLUT is the identity ramp used when no transfer function is
// supplied.
func grayscaleLUT() []byte {
	grayLUTOnce.Do(func() {
		grayLUT = make([]byte, LUTSize*4)
		for i := range LUTSize {
			v := byte(i * 255 / (LUTSize - 1))
			grayLUT[i*4+0] = v
			grayLUT[i*4+1] = v
			grayLUT[i*4+2] = v
			grayLUT[i*4+3] = 255
		}
	})
	return grayLUT
}

func volumeDesc(d *VolumeDataset) gpucompute.VolumeDesc {
	w, h, dp := d.Dims()
	return gpucompute.VolumeDesc{
		Voxels: d.Voxels(),
		Width:  w, Height: h, Depth: dp,
		Signed: d.Format() == PixelInt16,
	}
}

func rgbaImage(pixels []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pixels)
	return img
}

func upscale(img *image.RGBA, w, h int) *image.RGBA {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	full := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(full, full.Bounds(), img, img.Bounds(), draw.Src, nil)
	return full
}

func minOf(d *VolumeDataset) float32 { lo, _ := d.IntensityRange(); return lo }
func maxOf(d *VolumeDataset) float32 { _, hi := d.IntensityRange(); return hi }
func dimX(d *VolumeDataset) int      { w, _, _ := d.Dims(); return w }
func dimY(d *VolumeDataset) int      { _, h, _ := d.Dims(); return h }
func dimZ(d *VolumeDataset) int      { _, _, dp := d.Dims(); return dp }

func boolFlag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
