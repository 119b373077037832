package softrender

import (
	"image"

	"cogentcore.org/core/math32"

	"github.com/volren/volren/internal/gpucompute"
)

// Plane blend codes for RenderPlane.
const (
	PlaneSingle = iota
	PlaneAverage
	PlaneMax
)

// PlaneInput describes one MPR slice extraction: the plane basis in
// normalized texture space, the slab offsets along the plane normal
// (a single zero offset for plain slices), and the windowing/transfer
// parameters shared with the ray-march path.
type PlaneInput struct {
	Origin math32.Vector3
	U      math32.Vector3
	V      math32.Vector3
	Normal math32.Vector3

	Offsets []float32
	Blend   int

	WinMin, WinMax float32
	TfMin, TfMax   float32
	LUT            []byte
}

// RenderPlane resamples the volume across the plane into a w×h image,
// collapsing slab samples per the blend mode. Points outside the unit
// volume contribute nothing (single/max) or are skipped (average).
func (r *Renderer) RenderPlane(vd gpucompute.VolumeDesc, in PlaneInput, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	vol := volume{
		voxels: vd.Voxels,
		w:      vd.Width, h: vd.Height, d: vd.Depth,
		signed: vd.Signed,
	}
	offs := in.Offsets
	if len(offs) == 0 {
		offs = []float32{0}
	}
	r.pool.forRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			fv := (float32(y) + 0.5) / float32(h)
			for x := 0; x < w; x++ {
				fu := (float32(x) + 0.5) / float32(w)
				base := in.Origin.
					Add(in.U.MulScalar(fu)).
					Add(in.V.MulScalar(fv))

				var acc float32
				var count int
				best := -math32.Infinity
				for _, off := range offs {
					p := base.Add(in.Normal.MulScalar(off))
					if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 || p.Z < 0 || p.Z > 1 {
						continue
					}
					s := vol.sample(p)
					acc += s
					count++
					if s > best {
						best = s
					}
				}

				var raw float32
				ok := count > 0
				switch in.Blend {
				case PlaneMax:
					raw = best
				case PlaneAverage:
					if ok {
						raw = acc / float32(count)
					}
				default:
					if ok {
						raw = acc / float32(count) // single slice has one offset
					}
				}

				var c [4]byte
				if ok {
					n := windowNormalize(raw, in.WinMin, in.WinMax)
					c = intensityColor(in.LUT, n, in.TfMin, in.TfMax)
				} else {
					c = [4]byte{0, 0, 0, 255}
				}
				i := img.PixOffset(x, y)
				img.Pix[i+0] = c[0]
				img.Pix[i+1] = c[1]
				img.Pix[i+2] = c[2]
				img.Pix[i+3] = c[3]
			}
		}
	})
	return img
}
