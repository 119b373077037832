package volren

import "cogentcore.org/core/math32"

// CameraMatrices is the fully resolved camera state uploaded to the
// renderer: view, projection, and the inverse view-projection used for
// per-pixel ray reconstruction.
type CameraMatrices struct {
	View        math32.Matrix4
	Proj        math32.Matrix4
	InvViewProj math32.Matrix4
	Eye         math32.Vector3
	Near        float32
	Far         float32
}

// volumeCenter and volumeRadius describe the unit volume the camera
// frames: the bounding sphere of [0,1]^3.
var volumeCenter = math32.Vec3(0.5, 0.5, 0.5)

const volumeRadius = 0.8660254 // sqrt(3)/2

// ResolveCamera builds the camera matrices for a viewport. The up vector
// is repaired when it is parallel to the view direction (degenerate
// cross product): first to world +Y, then to +X when the view direction
// itself runs along +Y. Near/far planes derive from the eye's distance
// to the volume center so depth precision follows the camera.
func ResolveCamera(c Camera, width, height int) CameraMatrices {
	forward := c.Target.Sub(c.Eye)
	if forward.Length() == 0 {
		def := DefaultCamera()
		c.Eye, c.Target = def.Eye, def.Target
		forward = c.Target.Sub(c.Eye)
	}
	forward = forward.Normal()

	up := c.Up
	if up.Length() == 0 {
		up = math32.Vec3(0, 1, 0)
	}
	up = up.Normal()
	if forward.Cross(up).Length() < 1e-6 {
		up = math32.Vec3(0, 1, 0)
		if forward.Cross(up).Length() < 1e-6 {
			up = math32.Vec3(1, 0, 0)
		}
	}

	var lookq math32.Quat
	lookq.SetFromRotationMatrix(math32.NewLookAt(c.Eye, c.Target, up))
	var camWorld math32.Matrix4
	camWorld.SetTransform(c.Eye, lookq, math32.Vec3(1, 1, 1))
	view, _ := camWorld.Inverse()

	dist := c.Eye.Sub(volumeCenter).Length()
	near := dist - volumeRadius
	if near < 1e-3 {
		near = 1e-3
	}
	far := dist + 2*volumeRadius

	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	fov := c.FovYDeg
	if fov <= 0 || fov >= 180 {
		fov = DefaultCamera().FovYDeg
	}
	var proj math32.Matrix4
	proj.SetPerspective(fov, aspect, near, far)

	var viewProj math32.Matrix4
	viewProj.MulMatrices(&proj, view)
	inv, err := viewProj.Inverse()
	if err != nil {
		inv = math32.Identity4() // rays collapse but never NaN
	}

	return CameraMatrices{
		View:        *view,
		Proj:        proj,
		InvViewProj: *inv,
		Eye:         c.Eye,
		Near:        near,
		Far:         far,
	}
}
