// Package softrender is the software ray marcher: the same windowing,
// transfer lookup, gating, lighting and compositing rules as the GPU
// compute shader, run on CPU worker goroutines. It serves as the final
// fallback tier and as the reference the GPU output is judged against.
package softrender

import (
	"image"

	"cogentcore.org/core/math32"
	"golang.org/x/image/draw"

	"github.com/volren/volren/internal/gpucompute"
)

// Lighting model constants. Phong with a headlight (the light rides the
// camera); the gradient is a central difference at one-voxel offset.
const (
	kAmbient   = 0.1
	kDiffuse   = 0.7
	kSpecular  = 0.2
	shininess  = 32.0
	earlyAlpha = 0.95
	surfaceThr = 0.5
)

// Renderer runs ray marching on a worker pool. Safe to reuse across
// frames; not safe for concurrent Render calls (the root renderer
// serializes).
type Renderer struct {
	pool *rowPool
}

// New starts a renderer with GOMAXPROCS workers.
func New() *Renderer {
	return &Renderer{pool: newRowPool(0)}
}

// Close stops the worker pool.
func (r *Renderer) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Render marches the frame on the CPU. When reduced is true the frame
// is rendered at half resolution and upscaled to the requested viewport
// (the low-quality interactive tier). Never fails.
func (r *Renderer) Render(f gpucompute.Frame, reduced bool) *image.RGBA {
	w, h := f.Width, f.Height
	rw, rh := w, h
	if reduced {
		rw, rh = (w+1)/2, (h+1)/2
		if rw < 1 {
			rw = 1
		}
		if rh < 1 {
			rh = 1
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, rw, rh))
	vol := volume{
		voxels: f.Volume.Voxels,
		w:      f.Volume.Width, h: f.Volume.Height, d: f.Volume.Depth,
		signed: f.Volume.Signed,
	}
	r.pool.forRows(rh, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < rw; x++ {
				c := marchPixel(&vol, f, x, y, rw, rh)
				i := img.PixOffset(x, y)
				img.Pix[i+0] = c[0]
				img.Pix[i+1] = c[1]
				img.Pix[i+2] = c[2]
				img.Pix[i+3] = c[3]
			}
		}
	})
	if !reduced || (rw == w && rh == h) {
		return img
	}
	full := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(full, full.Bounds(), img, img.Bounds(), draw.Src, nil)
	slogger().Debug("softrender: upscaled reduced frame", "from", rw, "to", w)
	return full
}

// volume adapts the packed voxel buffer for CPU sampling.
type volume struct {
	voxels  []byte
	w, h, d int
	signed  bool
}

func (v *volume) at(x, y, z int) float32 {
	x = clampi(x, 0, v.w-1)
	y = clampi(y, 0, v.h-1)
	z = clampi(z, 0, v.d-1)
	i := 2 * (x + y*v.w + z*v.w*v.h)
	raw := uint16(v.voxels[i]) | uint16(v.voxels[i+1])<<8
	if v.signed {
		return float32(int16(raw))
	}
	return float32(raw)
}

func (v *volume) sample(p math32.Vector3) float32 {
	fx := p.X*float32(v.w) - 0.5
	fy := p.Y*float32(v.h) - 0.5
	fz := p.Z*float32(v.d) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	z0 := int(math32.Floor(fz))
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	tz := fz - float32(z0)

	c00 := lerp(v.at(x0, y0, z0), v.at(x0+1, y0, z0), tx)
	c10 := lerp(v.at(x0, y0+1, z0), v.at(x0+1, y0+1, z0), tx)
	c01 := lerp(v.at(x0, y0, z0+1), v.at(x0+1, y0, z0+1), tx)
	c11 := lerp(v.at(x0, y0+1, z0+1), v.at(x0+1, y0+1, z0+1), tx)
	return lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
}

func (v *volume) gradient(p math32.Vector3) math32.Vector3 {
	dx := 1 / float32(v.w)
	dy := 1 / float32(v.h)
	dz := 1 / float32(v.d)
	return math32.Vec3(
		v.sample(math32.Vec3(p.X+dx, p.Y, p.Z))-v.sample(math32.Vec3(p.X-dx, p.Y, p.Z)),
		v.sample(math32.Vec3(p.X, p.Y+dy, p.Z))-v.sample(math32.Vec3(p.X, p.Y-dy, p.Z)),
		v.sample(math32.Vec3(p.X, p.Y, p.Z+dz))-v.sample(math32.Vec3(p.X, p.Y, p.Z-dz)),
	)
}

func marchPixel(vol *volume, f gpucompute.Frame, x, y, w, h int) [4]byte {
	u := f.Render
	ndcX := (float32(x)+0.5)/float32(w)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(h)*2

	near := unproject(&f.Camera.InvViewProj, ndcX, ndcY, 0)
	far := unproject(&f.Camera.InvViewProj, ndcX, ndcY, 1)
	dir := far.Sub(near)
	segLen := dir.Length()
	if segLen < 1e-9 {
		return [4]byte{0, 0, 0, 255}
	}
	dir = dir.MulScalar(1 / segLen)

	tEntry, tExit, hit := intersectBox(near, dir)
	if !hit {
		return [4]byte{0, 0, 0, 255}
	}

	steps := int(u.Steps)
	if steps < 1 {
		steps = 1
	}
	dt := (tExit - tEntry) / float32(steps)
	viewDir := dir.Negate()

	var accRGB math32.Vector3
	var accA float32
	best := -math32.Infinity
	worst := math32.Infinity
	var sum float32
	var count int

march:
	for i := 0; i < steps; i++ {
		t := tEntry + (float32(i)+0.5)*dt
		p := near.Add(dir.MulScalar(t))
		raw := vol.sample(p)

		if u.GateEnabled != 0 && (raw < u.GateMin || raw > u.GateMax) {
			continue
		}
		n := windowNormalize(raw, u.WinMin, u.WinMax)

		switch u.Method {
		case gpucompute.MethodDVR:
			s := lutLookup(f.LUT, n, u.TfMin, u.TfMax)
			rgb := math32.Vec3(s[0], s[1], s[2])
			if u.Lighting != 0 && s[3] > 0.001 {
				rgb = shade(rgb, vol, p, viewDir)
			}
			accRGB = accRGB.Add(rgb.MulScalar((1 - accA) * s[3]))
			accA += (1 - accA) * s[3]
			if accA > earlyAlpha {
				break march
			}
		case gpucompute.MethodMIP:
			if n > best {
				best = n
			}
		case gpucompute.MethodMinIP:
			if n < worst {
				worst = n
			}
		case gpucompute.MethodAverage:
			sum += n
			count++
		default: // surface
			if n >= surfaceThr {
				s := lutLookup(f.LUT, n, u.TfMin, u.TfMax)
				rgb := math32.Vec3(s[0], s[1], s[2])
				if u.Lighting != 0 {
					rgb = shade(rgb, vol, p, viewDir)
				}
				accRGB = rgb
				accA = 1
				break march
			}
		}
	}

	switch u.Method {
	case gpucompute.MethodMIP:
		if best > -math32.Infinity {
			return intensityColor(f.LUT, best, u.TfMin, u.TfMax)
		}
		return [4]byte{0, 0, 0, 255}
	case gpucompute.MethodMinIP:
		if worst < math32.Infinity {
			return intensityColor(f.LUT, worst, u.TfMin, u.TfMax)
		}
		return [4]byte{0, 0, 0, 255}
	case gpucompute.MethodAverage:
		if count > 0 {
			return intensityColor(f.LUT, sum/float32(count), u.TfMin, u.TfMax)
		}
		return [4]byte{0, 0, 0, 255}
	default:
		return [4]byte{
			toByte(accRGB.X), toByte(accRGB.Y), toByte(accRGB.Z), 255,
		}
	}
}

// intensityColor blends the LUT color with the plain grayscale intensity
// by the LUT alpha, matching the compute shader's projection modes.
func intensityColor(lut []byte, n, tfMin, tfMax float32) [4]byte {
	s := lutLookup(lut, n, tfMin, tfMax)
	r := s[0]*s[3] + n*(1-s[3])
	g := s[1]*s[3] + n*(1-s[3])
	b := s[2]*s[3] + n*(1-s[3])
	return [4]byte{toByte(r), toByte(g), toByte(b), 255}
}

func shade(color math32.Vector3, vol *volume, p, viewDir math32.Vector3) math32.Vector3 {
	g := vol.gradient(p)
	glen := g.Length()
	if glen < 1e-6 {
		return color
	}
	n := g.MulScalar(1 / glen)
	// Headlight: the light rides the camera, so the light direction and
	// the Blinn half-vector both collapse to the view direction.
	ndl := math32.Abs(n.Dot(viewDir))
	spec := math32.Pow(ndl, shininess)
	lit := color.MulScalar(kAmbient + kDiffuse*ndl)
	return lit.Add(math32.Vec3(1, 1, 1).MulScalar(kSpecular * spec))
}

func unproject(inv *math32.Matrix4, x, y, depth float32) math32.Vector3 {
	clip := math32.Vector4{X: x, Y: y, Z: depth, W: 1}
	world := clip.MulMatrix4(inv)
	if world.W == 0 {
		return math32.Vec3(x, y, depth)
	}
	return math32.Vec3(world.X/world.W, world.Y/world.W, world.Z/world.W)
}

// intersectBox is the slab test of a ray against the unit cube.
func intersectBox(origin, dir math32.Vector3) (tEntry, tExit float32, hit bool) {
	tEntry = 0
	tExit = math32.Infinity
	o := [3]float32{origin.X, origin.Y, origin.Z}
	d := [3]float32{dir.X, dir.Y, dir.Z}
	for i := 0; i < 3; i++ {
		if math32.Abs(d[i]) < 1e-12 {
			if o[i] < 0 || o[i] > 1 {
				return 0, 0, false
			}
			continue
		}
		t0 := (0 - o[i]) / d[i]
		t1 := (1 - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tEntry {
			tEntry = t0
		}
		if t1 < tExit {
			tExit = t1
		}
	}
	return tEntry, tExit, tEntry <= tExit
}

func windowNormalize(v, lo, hi float32) float32 {
	span := hi - lo
	if span <= 0 {
		if v >= lo {
			return 1
		}
		return 0
	}
	return math32.Clamp((v-lo)/span, 0, 1)
}

// lutLookup addresses the RGBA8 lookup table through the normalized
// window position, returning channels in [0,1].
func lutLookup(lut []byte, normalized, tfMin, tfMax float32) [4]float32 {
	n := len(lut) / 4
	if n == 0 {
		v := math32.Clamp(normalized, 0, 1)
		return [4]float32{v, v, v, v}
	}
	coord := tfMin + (tfMax-tfMin)*math32.Clamp(normalized, 0, 1)
	idx := int(math32.Clamp(coord, 0, 1) * float32(n-1))
	return [4]float32{
		float32(lut[idx*4+0]) / 255,
		float32(lut[idx*4+1]) / 255,
		float32(lut[idx*4+2]) / 255,
		float32(lut[idx*4+3]) / 255,
	}
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func toByte(v float32) byte {
	return byte(math32.Clamp(v, 0, 1)*255 + 0.5)
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
