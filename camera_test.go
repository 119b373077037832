package volren

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestResolveCameraDegeneratePose(t *testing.T) {
	// Eye on top of target resolves to the default pose instead of a
	// NaN basis.
	cm := ResolveCamera(Camera{Eye: volumeCenter, Target: volumeCenter, Up: math32.Vec3(0, 1, 0), FovYDeg: 45}, 100, 100)
	for i, v := range cm.InvViewProj {
		if math32.IsNaN(v) {
			t.Fatalf("InvViewProj[%d] is NaN", i)
		}
	}
	if cm.Near <= 0 {
		t.Errorf("Near = %v, want positive", cm.Near)
	}
	if cm.Far <= cm.Near {
		t.Errorf("Far = %v, want > Near %v", cm.Far, cm.Near)
	}
}

func TestResolveCameraParallelUp(t *testing.T) {
	// Up parallel to the view direction is repaired, not propagated.
	cm := ResolveCamera(Camera{
		Eye:     math32.Vec3(0.5, 3, 0.5),
		Target:  volumeCenter,
		Up:      math32.Vec3(0, 1, 0), // looking straight down +up = degenerate
		FovYDeg: 45,
	}, 64, 64)
	for i, v := range cm.View {
		if math32.IsNaN(v) {
			t.Fatalf("View[%d] is NaN", i)
		}
	}
}

func TestResolveCameraNearFarTrackDistance(t *testing.T) {
	near := ResolveCamera(Camera{Eye: math32.Vec3(0.5, 0.5, -1), Target: volumeCenter, Up: math32.Vec3(0, 1, 0), FovYDeg: 45}, 64, 64)
	far := ResolveCamera(Camera{Eye: math32.Vec3(0.5, 0.5, -10), Target: volumeCenter, Up: math32.Vec3(0, 1, 0), FovYDeg: 45}, 64, 64)
	if far.Near <= near.Near {
		t.Errorf("near plane must move out with the camera: %v vs %v", near.Near, far.Near)
	}
	if far.Far <= near.Far {
		t.Errorf("far plane must move out with the camera: %v vs %v", near.Far, far.Far)
	}
}

func TestResolveCameraUnprojectsEyeRay(t *testing.T) {
	// The NDC center at the near plane must unproject close to the
	// view axis between eye and target.
	eye := math32.Vec3(0.5, 0.5, -1.5)
	cm := ResolveCamera(Camera{Eye: eye, Target: volumeCenter, Up: math32.Vec3(0, 1, 0), FovYDeg: 45}, 128, 128)
	p := math32.Vector4{X: 0, Y: 0, Z: 0, W: 1}.MulMatrix4(&cm.InvViewProj)
	if p.W == 0 {
		t.Fatalf("unprojected center has W=0")
	}
	world := math32.Vec3(p.X/p.W, p.Y/p.W, p.Z/p.W)
	// The ray through the viewport center runs along +Z here, so the
	// unprojected point shares X and Y with the eye.
	if math32.Abs(world.X-eye.X) > 1e-3 || math32.Abs(world.Y-eye.Y) > 1e-3 {
		t.Errorf("unprojected center = %v, want on the axis x=%v y=%v", world, eye.X, eye.Y)
	}
}

func TestDefaultCamera(t *testing.T) {
	def := DefaultCamera()
	if def.Target != volumeCenter {
		t.Errorf("default target = %v, want volume center", def.Target)
	}
	if def.FovYDeg <= 0 || def.FovYDeg >= 180 {
		t.Errorf("default fov = %v, want a usable angle", def.FovYDeg)
	}
}
