package volren

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestSnapOdd(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1}, {0, 1}, {1, 1}, {2, 3}, {3, 3}, {4, 5}, {7, 7}, {10, 11},
	}
	for _, tt := range tests {
		if got := SnapOdd(tt.in); got != tt.want {
			t.Errorf("SnapOdd(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetIndexSetPositionConsistency(t *testing.T) {
	d, _ := NewVolumeDataset(int16Volume(make([]int16, 4*4*10)), 4, 4, 10, unitSpacing(), PixelInt16, 0, 1)
	p := NewPlaneDescriptor(AxisZ, 3, d)
	if want := float32(3.5) / 10; abs32(p.Position-want) > 1e-6 {
		t.Errorf("Position after index 3 = %v, want %v", p.Position, want)
	}

	p.SetPosition(0.35, d)
	if p.Index != 3 {
		t.Errorf("Index after SetPosition(0.35) = %d, want 3", p.Index)
	}

	// Index and position round-trip through each other.
	for idx := 0; idx < 10; idx++ {
		p.SetIndex(idx, d)
		pos := p.Position
		p.SetPosition(pos, d)
		if p.Index != idx {
			t.Errorf("round trip of index %d via position %v gives %d", idx, pos, p.Index)
		}
	}

	// Out-of-range indices clamp.
	p.SetIndex(-5, d)
	if p.Index != 0 {
		t.Errorf("SetIndex(-5) = %d, want clamped 0", p.Index)
	}
	p.SetIndex(99, d)
	if p.Index != 9 {
		t.Errorf("SetIndex(99) = %d, want clamped 9", p.Index)
	}
}

func TestAxisBasisZFlip(t *testing.T) {
	p := PlaneDescriptor{Axis: AxisZ, Position: 0.5}
	b := p.axisBasis()
	if b.Origin.Y != 1 {
		t.Errorf("z-slice origin = %v, want top edge y=1", b.Origin)
	}
	if b.V.Y != -1 {
		t.Errorf("z-slice V = %v, want pointing down", b.V)
	}
	// The flip keeps U unchanged so handedness, and with it the
	// marching normal, flips sign relative to +Z.
	n := b.Normal()
	if n.Z != -1 {
		t.Errorf("z-slice normal = %v, want -Z", n)
	}

	for _, axis := range []Axis{AxisX, AxisY} {
		b := PlaneDescriptor{Axis: axis, Position: 0.5}.axisBasis()
		n := b.Normal()
		if math32.Abs(n.Length()-1) > 1e-6 {
			t.Errorf("axis %v normal not unit: %v", axis, n)
		}
	}
}

func TestComputePlaneIdentityRotation(t *testing.T) {
	p := PlaneDescriptor{Axis: AxisX, Position: 0.25}
	b := ComputePlane(p, nil)
	want := p.axisBasis()
	if b.Origin != want.Origin || b.U != want.U || b.V != want.V {
		t.Errorf("identity rotation changed the basis: %+v vs %+v", b, want)
	}
}

func TestComputePlaneRotationAboutCenter(t *testing.T) {
	// Rotating the center slice about the volume center must keep its
	// midpoint fixed.
	p := PlaneDescriptor{Axis: AxisZ, Position: 0.5, Rotation: math32.Vec3(0.3, 0.7, 0.1)}
	b := ComputePlane(p, nil)
	c := b.Center()
	if c.Sub(volumeCenter).Length() > 1e-5 {
		t.Errorf("rotated center slice midpoint = %v, want volume center", c)
	}
	// Spanning vectors keep unit length under pure rotation.
	if math32.Abs(b.U.Length()-1) > 1e-5 || math32.Abs(b.V.Length()-1) > 1e-5 {
		t.Errorf("rotation must preserve span lengths: |U|=%v |V|=%v", b.U.Length(), b.V.Length())
	}
}

func TestSlabOffsets(t *testing.T) {
	d, _ := NewVolumeDataset(int16Volume(make([]int16, 4*4*10)), 4, 4, 10, unitSpacing(), PixelInt16, 0, 1)

	single := PlaneDescriptor{Axis: AxisZ, Blend: BlendSingle, ThicknessVox: 9, Steps: 9}
	if offs := single.SlabOffsets(d); len(offs) != 1 || offs[0] != 0 {
		t.Errorf("single-slice offsets = %v, want [0]", offs)
	}

	slab := PlaneDescriptor{Axis: AxisZ, Blend: BlendAverageSlab, ThicknessVox: 5, Steps: 5}
	offs := slab.SlabOffsets(d)
	if len(offs) != 5 {
		t.Fatalf("len(offsets) = %d, want 5", len(offs))
	}
	// Centered: symmetric around zero, spanning thickness/depth.
	if abs32(offs[2]) > 1e-6 {
		t.Errorf("middle offset = %v, want 0", offs[2])
	}
	if abs32(offs[0]+offs[4]) > 1e-6 {
		t.Errorf("offsets not symmetric: %v", offs)
	}
	if want := float32(0.25); abs32(offs[4]-want) > 1e-6 {
		t.Errorf("outer offset = %v, want half of 5/10 = %v", offs[4], want)
	}

	// Even slab parameters snap up to odd.
	even := PlaneDescriptor{Axis: AxisZ, Blend: BlendMaxSlab, ThicknessVox: 4, Steps: 2}
	if offs := even.SlabOffsets(d); len(offs) != 3 {
		t.Errorf("even steps snap to %d offsets, want 3", len(offs))
	}
}

func TestAlignedCamera(t *testing.T) {
	b := PlaneDescriptor{Axis: AxisZ, Position: 0.5}.axisBasis()
	cam := AlignedCamera(b)
	if cam.Target != b.Center() {
		t.Errorf("aligned target = %v, want plane center %v", cam.Target, b.Center())
	}
	view := cam.Target.Sub(cam.Eye).Normal()
	if math32.Abs(math32.Abs(view.Dot(b.Normal()))-1) > 1e-5 {
		t.Errorf("view direction %v not perpendicular to slice", view)
	}
	if cam.Up.Dot(b.V) >= 0 {
		t.Errorf("up %v must oppose V %v to undo the vertical flip", cam.Up, b.V)
	}
	dist := cam.Eye.Sub(cam.Target).Length()
	if math32.Abs(dist-2.5*volumeRadius) > 1e-5 {
		t.Errorf("eye distance = %v, want %v", dist, 2.5*volumeRadius)
	}
}

func TestComputePlaneTinyVolumeClampsIndex(t *testing.T) {
	// A z index far beyond a single-voxel dataset clamps to slice 0 and
	// still yields a finite basis with the vertical flip applied.
	d, err := NewVolumeDataset(int16Volume([]int16{50}), 1, 1, 1, unitSpacing(), PixelInt16, 0, 100)
	if err != nil {
		t.Fatalf("NewVolumeDataset() error = %v", err)
	}
	p := NewPlaneDescriptor(AxisZ, 10, d)
	if p.Index != 0 {
		t.Fatalf("Index = %d, want clamp to 0", p.Index)
	}
	if p.Position != 0.5 {
		t.Errorf("Position = %v, want 0.5 for the only slice", p.Position)
	}
	b := ComputePlane(p, d)
	for _, v := range []math32.Vector3{b.Origin, b.U, b.V} {
		if math32.IsNaN(v.X) || math32.IsNaN(v.Y) || math32.IsNaN(v.Z) {
			t.Fatalf("basis contains NaN: %+v", b)
		}
	}
	if b.V != math32.Vec3(0, -1, 0) {
		t.Errorf("V = %v, want (0,-1,0) for the z-axis flip", b.V)
	}
	if n := b.Normal(); n.Z != -1 {
		t.Errorf("Normal() = %v, want -z", n)
	}
}
