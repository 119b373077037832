package volren

import (
	"errors"
	"fmt"
	"unsafe"

	"cogentcore.org/core/math32"
)

// PixelFormat describes the storage format of a voxel sample.
type PixelFormat int

const (
	// PixelInt16 is signed 16-bit little-endian, the native CT format
	// (intensities in Hounsfield units, typically [-1024, 3071]).
	PixelInt16 PixelFormat = iota

	// PixelUint16 is unsigned 16-bit little-endian, common for MRI.
	PixelUint16
)

// BytesPerVoxel returns the storage size of one sample.
func (f PixelFormat) BytesPerVoxel() int { return 2 }

func (f PixelFormat) String() string {
	switch f {
	case PixelInt16:
		return "int16"
	case PixelUint16:
		return "uint16"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// PatientGeometry carries the world-space placement of the volume as
// supplied by the ingestion bridge: direction cosines of image rows and
// columns plus the world position of the first voxel. Used to express
// MPR planes in patient coordinates before re-projecting them into
// texture space.
type PatientGeometry struct {
	RowDir   math32.Vector3 // direction of increasing x, unit length
	ColDir   math32.Vector3 // direction of increasing y, unit length
	Position math32.Vector3 // world position of voxel (0,0,0)
}

// Normal returns the slice-stacking direction (increasing z).
func (g PatientGeometry) Normal() math32.Vector3 {
	return g.RowDir.Cross(g.ColDir).Normal()
}

// DatasetIdentity is a cheap cache key distinguishing datasets without
// content hashing: the voxel buffer's base address plus its byte count.
// Two datasets sharing the same backing buffer are considered identical.
type DatasetIdentity struct {
	Ptr  uintptr
	Size int
}

// VolumeDataset is an immutable 3-D voxel grid handed in fully
// constructed by an external loader. The engine never parses vendor
// imaging formats itself. Replaced wholesale when a new dataset is
// applied; never mutated in place.
type VolumeDataset struct {
	voxels  []byte
	width   int
	height  int
	depth   int
	spacing math32.Vector3 // physical voxel size per axis, mm
	format  PixelFormat

	intensityMin float32 // closed intensity range, HU for CT
	intensityMax float32

	geometry *PatientGeometry // nil when no patient placement is known

	// Optional acquisition-time recommendations. Zero values mean
	// "none"; the renderer falls through to the dataset full range.
	recWindowMin  float32
	recWindowMax  float32
	hasRecWindow  bool
	recSampleDist float32 // fraction of volume diagonal per step, 0 = none
}

var errDatasetEmpty = errors.New("volren: dataset voxel buffer is empty")

// DatasetOption customizes optional dataset metadata at construction.
type DatasetOption func(*VolumeDataset)

// WithGeometry attaches world-space patient geometry.
func WithGeometry(g PatientGeometry) DatasetOption {
	return func(d *VolumeDataset) {
		gc := g
		gc.RowDir = gc.RowDir.Normal()
		gc.ColDir = gc.ColDir.Normal()
		d.geometry = &gc
	}
}

// WithRecommendedWindow attaches an acquisition-recommended HU window.
func WithRecommendedWindow(minHU, maxHU float32) DatasetOption {
	return func(d *VolumeDataset) {
		if minHU > maxHU {
			minHU, maxHU = maxHU, minHU
		}
		d.recWindowMin, d.recWindowMax = minHU, maxHU
		d.hasRecWindow = true
	}
}

// WithRecommendedSampling attaches a recommended sampling distance
// (fraction of the volume diagonal per ray step).
func WithRecommendedSampling(dist float32) DatasetOption {
	return func(d *VolumeDataset) {
		if dist > 0 {
			d.recSampleDist = dist
		}
	}
}

// NewVolumeDataset validates and constructs an immutable dataset.
// The voxel buffer is contiguous row-major x→y→z and must hold exactly
// width×height×depth samples of the given format. The intensity range is
// normalized so that min ≤ max. Spacing components that are zero or
// negative are replaced with 1.
func NewVolumeDataset(voxels []byte, width, height, depth int, spacing math32.Vector3, format PixelFormat, intensityMin, intensityMax float32, opts ...DatasetOption) (*VolumeDataset, error) {
	if len(voxels) == 0 {
		return nil, errDatasetEmpty
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("volren: invalid dataset dimensions %dx%dx%d", width, height, depth)
	}
	want := width * height * depth * format.BytesPerVoxel()
	if len(voxels) != want {
		return nil, fmt.Errorf("volren: voxel buffer is %d bytes, want %d for %dx%dx%d %s",
			len(voxels), want, width, height, depth, format)
	}
	if intensityMin > intensityMax {
		intensityMin, intensityMax = intensityMax, intensityMin
	}
	if spacing.X <= 0 {
		spacing.X = 1
	}
	if spacing.Y <= 0 {
		spacing.Y = 1
	}
	if spacing.Z <= 0 {
		spacing.Z = 1
	}
	d := &VolumeDataset{
		voxels:       voxels,
		width:        width,
		height:       height,
		depth:        depth,
		spacing:      spacing,
		format:       format,
		intensityMin: intensityMin,
		intensityMax: intensityMax,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Identity returns the lightweight cache key for this dataset.
func (d *VolumeDataset) Identity() DatasetIdentity {
	return DatasetIdentity{
		Ptr:  uintptr(unsafe.Pointer(unsafe.SliceData(d.voxels))),
		Size: len(d.voxels),
	}
}

// Voxels returns the raw sample buffer. Callers must not modify it.
func (d *VolumeDataset) Voxels() []byte { return d.voxels }

// Dims returns the grid dimensions (width, height, depth).
func (d *VolumeDataset) Dims() (w, h, dp int) { return d.width, d.height, d.depth }

// Spacing returns the physical voxel size per axis.
func (d *VolumeDataset) Spacing() math32.Vector3 { return d.spacing }

// Format returns the voxel storage format.
func (d *VolumeDataset) Format() PixelFormat { return d.format }

// IntensityRange returns the closed intensity range [min, max].
func (d *VolumeDataset) IntensityRange() (minHU, maxHU float32) {
	return d.intensityMin, d.intensityMax
}

// Geometry returns the patient placement, or nil if unknown.
func (d *VolumeDataset) Geometry() *PatientGeometry { return d.geometry }

// RecommendedWindow returns the acquisition-recommended HU window.
// ok is false when the dataset carries no recommendation.
func (d *VolumeDataset) RecommendedWindow() (minHU, maxHU float32, ok bool) {
	return d.recWindowMin, d.recWindowMax, d.hasRecWindow
}

// RecommendedSampling returns the recommended sampling distance, or 0.
func (d *VolumeDataset) RecommendedSampling() float32 { return d.recSampleDist }

// Extent returns the physical size of the volume per axis.
func (d *VolumeDataset) Extent() math32.Vector3 {
	return math32.Vec3(
		float32(d.width)*d.spacing.X,
		float32(d.height)*d.spacing.Y,
		float32(d.depth)*d.spacing.Z,
	)
}

// Diagonal returns the physical length of the volume diagonal.
func (d *VolumeDataset) Diagonal() float32 { return d.Extent().Length() }

// VoxelAt returns the decoded sample at grid position (x, y, z).
// Coordinates are clamped to the grid, so out-of-range access reads the
// nearest border voxel (matching clamp-to-edge texture addressing).
func (d *VolumeDataset) VoxelAt(x, y, z int) float32 {
	x = clampInt(x, 0, d.width-1)
	y = clampInt(y, 0, d.height-1)
	z = clampInt(z, 0, d.depth-1)
	i := 2 * (x + y*d.width + z*d.width*d.height)
	raw := uint16(d.voxels[i]) | uint16(d.voxels[i+1])<<8
	if d.format == PixelInt16 {
		return float32(int16(raw))
	}
	return float32(raw)
}

// SampleNormalized trilinearly samples the volume at normalized texture
// coordinates in [0,1]^3, clamping to the borders.
func (d *VolumeDataset) SampleNormalized(u, v, w float32) float32 {
	fx := u*float32(d.width) - 0.5
	fy := v*float32(d.height) - 0.5
	fz := w*float32(d.depth) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	z0 := int(math32.Floor(fz))
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	tz := fz - float32(z0)

	c000 := d.VoxelAt(x0, y0, z0)
	c100 := d.VoxelAt(x0+1, y0, z0)
	c010 := d.VoxelAt(x0, y0+1, z0)
	c110 := d.VoxelAt(x0+1, y0+1, z0)
	c001 := d.VoxelAt(x0, y0, z0+1)
	c101 := d.VoxelAt(x0+1, y0, z0+1)
	c011 := d.VoxelAt(x0, y0+1, z0+1)
	c111 := d.VoxelAt(x0+1, y0+1, z0+1)

	c00 := c000 + (c100-c000)*tx
	c10 := c010 + (c110-c010)*tx
	c01 := c001 + (c101-c001)*tx
	c11 := c011 + (c111-c011)*tx
	c0 := c00 + (c10-c00)*ty
	c1 := c01 + (c11-c01)*ty
	return c0 + (c1-c0)*tz
}

// WorldFromTexture converts normalized texture coordinates into patient
// world coordinates. Returns p unchanged when no geometry is attached.
func (d *VolumeDataset) WorldFromTexture(p math32.Vector3) math32.Vector3 {
	g := d.geometry
	if g == nil {
		return p
	}
	ext := d.Extent()
	out := g.Position
	out.SetAdd(g.RowDir.MulScalar(p.X * ext.X))
	out.SetAdd(g.ColDir.MulScalar(p.Y * ext.Y))
	out.SetAdd(g.Normal().MulScalar(p.Z * ext.Z))
	return out
}

// TextureFromWorld converts patient world coordinates into normalized
// texture coordinates, the inverse of WorldFromTexture. Returns p
// unchanged when no geometry is attached.
func (d *VolumeDataset) TextureFromWorld(p math32.Vector3) math32.Vector3 {
	g := d.geometry
	if g == nil {
		return p
	}
	ext := d.Extent()
	rel := p.Sub(g.Position)
	return math32.Vec3(
		rel.Dot(g.RowDir)/ext.X,
		rel.Dot(g.ColDir)/ext.Y,
		rel.Dot(g.Normal())/ext.Z,
	)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
