package volren

import (
	"context"
	"errors"
	"testing"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r := NewRenderer(nil)
	t.Cleanup(r.Close)
	return r
}

func gradientDataset(t *testing.T) *VolumeDataset {
	t.Helper()
	vals := make([]int16, 8*8*8)
	for z := 0; z < 8; z++ {
		for i := 0; i < 64; i++ {
			vals[z*64+i] = int16(z * 100)
		}
	}
	d, err := NewVolumeDataset(int16Volume(vals), 8, 8, 8, unitSpacing(), PixelInt16, 0, 700,
		WithRecommendedWindow(100, 600))
	if err != nil {
		t.Fatalf("NewVolumeDataset() error = %v", err)
	}
	return d
}

func TestRenderImageCPUPath(t *testing.T) {
	r := testRenderer(t)
	res, err := r.RenderImage(context.Background(), RenderRequest{
		Dataset:     gradientDataset(t),
		Width:       32,
		Height:      24,
		Camera:      DefaultCamera(),
		Compositing: CompositingMIP,
	})
	if err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}
	if res.Image == nil {
		t.Fatal("RenderImage() returned no image")
	}
	b := res.Image.Bounds()
	if b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("image size = %dx%d, want 32x24", b.Dx(), b.Dy())
	}
	if res.Meta.Backend != "cpu" {
		t.Errorf("Backend = %q, want cpu without a compute pipeline", res.Meta.Backend)
	}
	if res.Meta.Compositing != CompositingMIP {
		t.Errorf("Compositing = %v, want mip", res.Meta.Compositing)
	}
	if res.Texture != nil {
		t.Errorf("Texture = %v, want nil zero-copy handle on the CPU path", res.Texture)
	}
}

func TestRenderImageProducesContent(t *testing.T) {
	r := testRenderer(t)
	res, err := r.RenderImage(context.Background(), RenderRequest{
		Dataset:          gradientDataset(t),
		Width:            16,
		Height:           16,
		Camera:           DefaultCamera(),
		Compositing:      CompositingMIP,
		SamplingDistance: 1.0 / 64,
	})
	if err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}
	// MIP through a bright volume must light up the center pixel.
	c := res.Image.RGBAAt(8, 8)
	if c.R == 0 && c.G == 0 && c.B == 0 {
		t.Errorf("center pixel black, want a maximum-intensity projection hit")
	}
}

func TestRenderImageNilDatasetPlaceholder(t *testing.T) {
	r := testRenderer(t)
	res, err := r.RenderImage(context.Background(), RenderRequest{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}
	c := res.Image.RGBAAt(4, 4)
	if c.R != 0 || c.G != 0 || c.B != 0 || c.A != 255 {
		t.Errorf("placeholder pixel = %+v, want opaque black", c)
	}
}

func TestRenderImageWindowLayering(t *testing.T) {
	r := testRenderer(t)
	ctx := context.Background()
	d := gradientDataset(t)
	req := RenderRequest{Dataset: d, Width: 4, Height: 4, Camera: DefaultCamera()}

	// No request window: the dataset recommendation applies.
	res, err := r.RenderImage(ctx, req)
	if err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}
	if res.Meta.Window.MinHU != 100 || res.Meta.Window.MaxHU != 600 {
		t.Errorf("window = [%v, %v], want recommended [100, 600]", res.Meta.Window.MinHU, res.Meta.Window.MaxHU)
	}

	// Request window beats the recommendation.
	req.HasWindow, req.WindowMin, req.WindowMax = true, 200, 500
	res, _ = r.RenderImage(ctx, req)
	if res.Meta.Window.MinHU != 200 || res.Meta.Window.MaxHU != 500 {
		t.Errorf("window = [%v, %v], want request [200, 500]", res.Meta.Window.MinHU, res.Meta.Window.MaxHU)
	}

	// A persistent override beats the request.
	if err := r.SendCommand(ctx, SetWindow{Min: 300, Max: 400}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	res, _ = r.RenderImage(ctx, req)
	if res.Meta.Window.MinHU != 300 || res.Meta.Window.MaxHU != 400 {
		t.Errorf("window = [%v, %v], want override [300, 400]", res.Meta.Window.MinHU, res.Meta.Window.MaxHU)
	}

	// Clearing restores the request layer.
	if err := r.SendCommand(ctx, ClearOverrides{}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	res, _ = r.RenderImage(ctx, req)
	if res.Meta.Window.MinHU != 200 || res.Meta.Window.MaxHU != 500 {
		t.Errorf("window after clear = [%v, %v], want request [200, 500]", res.Meta.Window.MinHU, res.Meta.Window.MaxHU)
	}
}

func TestRenderImageOverrideOutlivesRequests(t *testing.T) {
	r := testRenderer(t)
	ctx := context.Background()
	d := gradientDataset(t)

	if err := r.SendCommand(ctx, SetCompositing{Mode: CompositingSurface}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := r.RenderImage(ctx, RenderRequest{Dataset: d, Width: 2, Height: 2, Camera: DefaultCamera(), Compositing: CompositingDVR})
		if err != nil {
			t.Fatalf("RenderImage() error = %v", err)
		}
		if res.Meta.Compositing != CompositingSurface {
			t.Fatalf("render %d: Compositing = %v, want persistent surface override", i, res.Meta.Compositing)
		}
	}
}

func TestRenderImageSamplingLayering(t *testing.T) {
	r := testRenderer(t)
	ctx := context.Background()
	d, _ := NewVolumeDataset(int16Volume(make([]int16, 8)), 2, 2, 2, unitSpacing(), PixelInt16, 0, 1,
		WithRecommendedSampling(1.0/128))
	req := RenderRequest{Dataset: d, Width: 2, Height: 2, Camera: DefaultCamera()}

	res, _ := r.RenderImage(ctx, req)
	if res.Meta.SamplingDistance != 1.0/128 || res.Meta.Steps != 128 {
		t.Errorf("sampling = %v/%d steps, want recommended 1/128", res.Meta.SamplingDistance, res.Meta.Steps)
	}

	req.SamplingDistance = 1.0 / 64
	res, _ = r.RenderImage(ctx, req)
	if res.Meta.Steps != 64 {
		t.Errorf("steps = %d, want request 64", res.Meta.Steps)
	}

	if err := r.SendCommand(ctx, SetSamplingStep{Distance: 1.0 / 32}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	res, _ = r.RenderImage(ctx, req)
	if res.Meta.Steps != 32 {
		t.Errorf("steps = %d, want override 32", res.Meta.Steps)
	}
}

func TestRenderImageLowQualityKeepsViewport(t *testing.T) {
	r := testRenderer(t)
	res, err := r.RenderImage(context.Background(), RenderRequest{
		Dataset: gradientDataset(t),
		Width:   33, Height: 17,
		Camera:  DefaultCamera(),
		Quality: QualityLow,
	})
	if err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 33 || b.Dy() != 17 {
		t.Errorf("low-quality image = %dx%d, want upscaled back to 33x17", b.Dx(), b.Dy())
	}
}

func TestRendererClosed(t *testing.T) {
	r := NewRenderer(nil)
	r.Close()
	_, err := r.RenderImage(context.Background(), RenderRequest{Width: 1, Height: 1})
	if !errors.Is(err, ErrRendererClosed) {
		t.Errorf("RenderImage after Close = %v, want ErrRendererClosed", err)
	}
	if err := r.SendCommand(context.Background(), ClearOverrides{}); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("SendCommand after Close = %v, want ErrRendererClosed", err)
	}
	r.Close() // idempotent
}

func TestRenderImageContextCancelled(t *testing.T) {
	r := testRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RenderImage(ctx, RenderRequest{Width: 1, Height: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RenderImage with cancelled context = %v, want context.Canceled", err)
	}
}

func TestRenderPlaneImage(t *testing.T) {
	r := testRenderer(t)
	d := gradientDataset(t)
	plane := NewPlaneDescriptor(AxisZ, 6, d)
	res, err := r.RenderPlaneImage(context.Background(), d, plane, nil, 16, 16)
	if err != nil {
		t.Fatalf("RenderPlaneImage() error = %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("plane image = %dx%d, want 16x16", b.Dx(), b.Dy())
	}
	// Slice 6 holds value 600, well inside the recommended window, so
	// the resampled slice cannot be black.
	c := res.Image.RGBAAt(8, 8)
	if c.R == 0 && c.G == 0 && c.B == 0 {
		t.Errorf("slice pixel black, want windowed intensity")
	}
}

func TestUpdatePresetReordersLibrary(t *testing.T) {
	r := testRenderer(t)
	ps, err := r.UpdatePreset(context.Background(), "ct-lung", nil)
	if err != nil {
		t.Fatalf("UpdatePreset() error = %v", err)
	}
	if len(ps) == 0 || ps[0].ID != "ct-lung" {
		t.Errorf("first preset = %v, want ct-lung promoted", ps)
	}
}

func TestRefreshHistogram(t *testing.T) {
	r := testRenderer(t)
	h, err := r.RefreshHistogram(context.Background(), gradientDataset(t), nil)
	if err != nil {
		t.Fatalf("RefreshHistogram() error = %v", err)
	}
	if len(h.Counts) != HistogramBins {
		t.Errorf("len(Counts) = %d, want %d", len(h.Counts), HistogramBins)
	}
}
