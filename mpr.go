package volren

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// Axis identifies a principal dataset axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// BlendMode selects how an MPR slab collapses into a single slice.
type BlendMode int

const (
	// BlendSingle samples only the plane itself.
	BlendSingle BlendMode = iota

	// BlendAverageSlab averages samples across the slab thickness.
	BlendAverageSlab

	// BlendMaxSlab keeps the maximum sample across the slab thickness.
	BlendMaxSlab
)

// PlaneDescriptor selects an axis-aligned or oblique MPR slice. The
// integer Index and normalized Position are kept mutually consistent
// through SetIndex/SetPosition. Thickness and Steps are snapped to odd
// integers ≥ 1 so the slab's center sample coincides with the plane.
type PlaneDescriptor struct {
	Axis     Axis
	Index    int
	Position float32        // normalized [0,1] equivalent of Index
	Rotation math32.Vector3 // accumulated per-axis oblique rotation, radians
	Blend    BlendMode

	ThicknessVox int // slab thickness in voxels, odd ≥ 1
	Steps        int // samples across the slab, odd ≥ 1
}

// NewPlaneDescriptor creates a single-slice descriptor at the given
// voxel index, clamped to the dataset extent along the axis.
func NewPlaneDescriptor(axis Axis, index int, d *VolumeDataset) PlaneDescriptor {
	p := PlaneDescriptor{Axis: axis, Blend: BlendSingle, ThicknessVox: 1, Steps: 1}
	p.SetIndex(index, d)
	return p
}

// axisDim returns the dataset extent along the descriptor's axis.
func (p *PlaneDescriptor) axisDim(d *VolumeDataset) int {
	if d == nil {
		return 1
	}
	w, h, dp := d.Dims()
	switch p.Axis {
	case AxisX:
		return w
	case AxisY:
		return h
	default:
		return dp
	}
}

// SetIndex sets the voxel index and recomputes the normalized position.
func (p *PlaneDescriptor) SetIndex(index int, d *VolumeDataset) {
	n := p.axisDim(d)
	p.Index = clampInt(index, 0, n-1)
	p.Position = (float32(p.Index) + 0.5) / float32(n)
}

// SetPosition sets the normalized position and recomputes the index.
func (p *PlaneDescriptor) SetPosition(pos float32, d *VolumeDataset) {
	n := p.axisDim(d)
	pos = clamp32(pos, 0, 1)
	p.Index = clampInt(int(pos*float32(n)), 0, n-1)
	p.Position = (float32(p.Index) + 0.5) / float32(n)
}

// SetSlab configures a slab of the given thickness and sample count,
// both snapped to odd integers ≥ 1.
func (p *PlaneDescriptor) SetSlab(blend BlendMode, thicknessVox, steps int) {
	p.Blend = blend
	p.ThicknessVox = SnapOdd(thicknessVox)
	p.Steps = SnapOdd(steps)
}

// SnapOdd snaps n to the nearest odd integer ≥ 1, rounding even values
// up so a requested extent is never shrunk.
func SnapOdd(n int) int {
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}

// PlaneBasis is an oblique plane in normalized texture space: Origin is
// one corner, U and V span the slice. Normal() gives the marching and
// camera-alignment direction.
type PlaneBasis struct {
	Origin math32.Vector3
	U      math32.Vector3
	V      math32.Vector3
}

// Normal returns the unit plane normal cross(U, V).
func (b PlaneBasis) Normal() math32.Vector3 {
	return b.U.Cross(b.V).Normal()
}

// Center returns the plane's midpoint.
func (b PlaneBasis) Center() math32.Vector3 {
	return b.Origin.Add(b.U.MulScalar(0.5)).Add(b.V.MulScalar(0.5))
}

// axisBasis returns the axis-aligned plane at the descriptor's
// normalized position. Z-axis slices get a vertical flip (origin at the
// top edge, V pointing down) to preserve the anatomical up/down
// convention of axial images.
func (p PlaneDescriptor) axisBasis() PlaneBasis {
	switch p.Axis {
	case AxisX:
		return PlaneBasis{
			Origin: math32.Vec3(p.Position, 0, 0),
			U:      math32.Vec3(0, 1, 0),
			V:      math32.Vec3(0, 0, 1),
		}
	case AxisY:
		return PlaneBasis{
			Origin: math32.Vec3(0, p.Position, 0),
			U:      math32.Vec3(1, 0, 0),
			V:      math32.Vec3(0, 0, 1),
		}
	default:
		return PlaneBasis{
			Origin: math32.Vec3(0, 1, p.Position),
			U:      math32.Vec3(1, 0, 0),
			V:      math32.Vec3(0, -1, 0),
		}
	}
}

// ComputePlane derives the oblique plane basis for the descriptor.
// The axis-aligned plane at the descriptor's position is rotated about
// the volume center by the accumulated per-axis rotation. When the
// dataset carries patient geometry, the rotation is applied in world
// space and the basis re-projected into texture space, so oblique
// angles stay anatomically correct under anisotropic spacing; otherwise
// the rotation happens directly in texture space.
func ComputePlane(p PlaneDescriptor, d *VolumeDataset) PlaneBasis {
	base := p.axisBasis()

	var q math32.Quat
	q.SetFromEuler(p.Rotation)

	if d != nil && d.Geometry() != nil {
		wOrigin := d.WorldFromTexture(base.Origin)
		wU := d.WorldFromTexture(base.Origin.Add(base.U)).Sub(wOrigin)
		wV := d.WorldFromTexture(base.Origin.Add(base.V)).Sub(wOrigin)
		wCenter := d.WorldFromTexture(volumeCenter)

		wOrigin = wOrigin.Sub(wCenter).MulQuat(q).Add(wCenter)
		wU = wU.MulQuat(q)
		wV = wV.MulQuat(q)

		origin := d.TextureFromWorld(wOrigin)
		return PlaneBasis{
			Origin: origin,
			U:      d.TextureFromWorld(wOrigin.Add(wU)).Sub(origin),
			V:      d.TextureFromWorld(wOrigin.Add(wV)).Sub(origin),
		}
	}

	return PlaneBasis{
		Origin: base.Origin.Sub(volumeCenter).MulQuat(q).Add(volumeCenter),
		U:      base.U.MulQuat(q),
		V:      base.V.MulQuat(q),
	}
}

// AlignedCamera places a viewer perpendicular to the slice: at the plane
// center, offset along the plane normal far enough to frame the whole
// volume.
func AlignedCamera(b PlaneBasis) Camera {
	const dist = float32(volumeRadius * 2.5)
	center := b.Center()
	up := b.V.Negate().Normal()
	return Camera{
		Eye:     center.Add(b.Normal().MulScalar(dist)),
		Target:  center,
		Up:      up,
		FovYDeg: 45,
	}
}

// SlabOffsets returns the signed offsets along the plane normal, in
// normalized texture units, at which slab samples are taken: Steps
// samples spread across ThicknessVox voxels, centered on the plane.
// A single-slice descriptor returns one zero offset.
func (p PlaneDescriptor) SlabOffsets(d *VolumeDataset) []float32 {
	steps := SnapOdd(p.Steps)
	thickness := SnapOdd(p.ThicknessVox)
	if p.Blend == BlendSingle || steps == 1 {
		return []float32{0}
	}
	n := p.axisDim(d)
	total := float32(thickness) / float32(n) // slab extent, normalized
	offs := make([]float32, steps)
	for i := range steps {
		offs[i] = total * (float32(i)/float32(steps-1) - 0.5)
	}
	return offs
}
