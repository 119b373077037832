package softrender

import (
	"encoding/binary"
	"testing"

	"cogentcore.org/core/math32"

	"github.com/volren/volren/internal/gpucompute"
)

// zRampVolume fills each z-slice of a dim³ cube with z*step.
func zRampVolume(dim int, step int16) gpucompute.VolumeDesc {
	buf := make([]byte, dim*dim*dim*2)
	for z := 0; z < dim; z++ {
		for i := 0; i < dim*dim; i++ {
			binary.LittleEndian.PutUint16(buf[(z*dim*dim+i)*2:], uint16(int16(z)*step))
		}
	}
	return gpucompute.VolumeDesc{Voxels: buf, Width: dim, Height: dim, Depth: dim, Signed: true}
}

func zSliceInput(pos float32) PlaneInput {
	return PlaneInput{
		Origin: math32.Vec3(0, 1, pos),
		U:      math32.Vec3(1, 0, 0),
		V:      math32.Vec3(0, -1, 0),
		Normal: math32.Vec3(0, 0, -1),
		WinMin: 0, WinMax: 300,
		TfMin: 0, TfMax: 1,
		LUT: grayRamp(256),
	}
}

func TestRenderPlaneSingleSlice(t *testing.T) {
	r := New()
	defer r.Close()
	vd := zRampVolume(4, 100)

	// Slice index 3 sits at normalized position (3+0.5)/4 and holds
	// the value 300, which windows to full white.
	in := zSliceInput(0.875)
	in.Offsets = []float32{0}
	img := r.RenderPlane(vd, in, 8, 8)
	c := img.RGBAAt(4, 4)
	if c.R < 250 {
		t.Errorf("slice 3 pixel R = %d, want ~255", c.R)
	}
	// The slice is constant, so corners match the center.
	if corner := img.RGBAAt(0, 0); corner.R != c.R {
		t.Errorf("corner R = %d, center R = %d, want uniform slice", corner.R, c.R)
	}

	// Slice 0 windows to black.
	img = r.RenderPlane(vd, zSliceInput(0.125), 8, 8)
	if c := img.RGBAAt(4, 4); c.R != 0 {
		t.Errorf("slice 0 pixel R = %d, want 0", c.R)
	}
}

func TestRenderPlaneSlabBlends(t *testing.T) {
	r := New()
	defer r.Close()
	vd := zRampVolume(4, 100)

	// A slab centered between slices 1 and 2 spans values 100..200.
	offsets := []float32{-0.125, 0, 0.125}
	center := float32(0.5)

	avg := zSliceInput(center)
	avg.Offsets = offsets
	avg.Blend = PlaneAverage
	avgImg := r.RenderPlane(vd, avg, 4, 4)

	max := zSliceInput(center)
	max.Offsets = offsets
	max.Blend = PlaneMax
	maxImg := r.RenderPlane(vd, max, 4, 4)

	a, m := avgImg.RGBAAt(2, 2), maxImg.RGBAAt(2, 2)
	if m.R <= a.R {
		t.Errorf("max blend R = %d, want above average blend R = %d over a ramp", m.R, a.R)
	}
}

func TestRenderPlaneOutsideVolume(t *testing.T) {
	r := New()
	defer r.Close()
	vd := zRampVolume(4, 100)
	in := zSliceInput(2.5) // entirely outside the unit cube
	img := r.RenderPlane(vd, in, 4, 4)
	c := img.RGBAAt(2, 2)
	if c.R != 0 || c.G != 0 || c.B != 0 || c.A != 255 {
		t.Errorf("outside pixel = %+v, want opaque black", c)
	}
}

func TestRenderPlaneClampsViewport(t *testing.T) {
	r := New()
	defer r.Close()
	img := r.RenderPlane(zRampVolume(2, 1), zSliceInput(0.5), 0, -4)
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("viewport = %dx%d, want clamped 1x1", b.Dx(), b.Dy())
	}
}
