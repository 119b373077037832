package volren

import (
	"fmt"
	"image"

	"cogentcore.org/core/math32"
)

// CompositingMode selects how ray samples combine into one pixel.
type CompositingMode int

const (
	// CompositingDVR is front-to-back direct volume rendering with
	// early ray termination.
	CompositingDVR CompositingMode = iota

	// CompositingMIP keeps the maximum normalized sample along the ray.
	CompositingMIP

	// CompositingMinIP keeps the minimum normalized sample.
	CompositingMinIP

	// CompositingAverage keeps the running mean of samples.
	CompositingAverage

	// CompositingSurface shades the first sample crossing an implicit
	// threshold using its local gradient normal.
	CompositingSurface
)

func (m CompositingMode) String() string {
	switch m {
	case CompositingDVR:
		return "dvr"
	case CompositingMIP:
		return "mip"
	case CompositingMinIP:
		return "minip"
	case CompositingAverage:
		return "average"
	case CompositingSurface:
		return "surface"
	default:
		return fmt.Sprintf("CompositingMode(%d)", int(m))
	}
}

// Quality is an advisory rendering quality hint.
type Quality int

const (
	// QualityHigh renders at full viewport resolution.
	QualityHigh Quality = iota

	// QualityLow renders at half resolution and upscales, for
	// interactive camera movement.
	QualityLow
)

// Camera describes the viewer in normalized dataset space, where the
// volume occupies the unit cube [0,1]^3.
type Camera struct {
	Eye     math32.Vector3
	Target  math32.Vector3
	Up      math32.Vector3
	FovYDeg float32 // vertical field of view, degrees
}

// DefaultCamera looks at the volume center from in front of it.
func DefaultCamera() Camera {
	return Camera{
		Eye:     math32.Vec3(0.5, 0.5, -1.5),
		Target:  math32.Vec3(0.5, 0.5, 0.5),
		Up:      math32.Vec3(0, 1, 0),
		FovYDeg: 45,
	}
}

// HuGate discards samples outside [Min, Max] HU before compositing.
type HuGate struct {
	Min     float32
	Max     float32
	Enabled bool
}

// RenderRequest is the immutable input of one render. Equality-comparable
// so results can be cached by request value. Optional fields use a Set
// flag rather than pointers to keep the type comparable.
type RenderRequest struct {
	Dataset  *VolumeDataset
	Transfer *TransferFunction

	Width  int
	Height int

	Camera Camera

	// SamplingDistance is the ray step length as a fraction of the
	// volume diagonal. Zero, negative, or NaN values are sanitized to
	// a floor, never rejected.
	SamplingDistance float32

	Compositing CompositingMode
	Quality     Quality

	// Optional HU window. When unset, the renderer layers down to the
	// dataset's recommended window and then its full range.
	WindowMin float32
	WindowMax float32
	HasWindow bool

	Gate     HuGate
	Lighting bool
}

// samplingFloor is the epsilon guarding the step-count division. A
// sanitized distance of samplingFloor yields the maximum step count.
const samplingFloor = 1e-4

// sanitized returns a copy with degenerate fields defensively repaired:
// viewport clamped to at least 1×1, non-finite or non-positive sampling
// distance floored, and a degenerate camera basis replaced with the
// default camera. Malformed requests are never rejected.
func (r RenderRequest) sanitized() RenderRequest {
	if r.Width < 1 {
		r.Width = 1
	}
	if r.Height < 1 {
		r.Height = 1
	}
	if math32.IsNaN(r.SamplingDistance) || r.SamplingDistance <= 0 {
		r.SamplingDistance = samplingFloor
	}
	def := DefaultCamera()
	if r.Camera.FovYDeg <= 0 || r.Camera.FovYDeg >= 180 {
		r.Camera.FovYDeg = def.FovYDeg
	}
	if r.Camera.Up.Length() == 0 {
		r.Camera.Up = def.Up
	}
	if r.Camera.Eye.Sub(r.Camera.Target).Length() == 0 {
		r.Camera.Eye = def.Eye
		r.Camera.Target = def.Target
	}
	if r.HasWindow && r.WindowMin > r.WindowMax {
		r.WindowMin, r.WindowMax = r.WindowMax, r.WindowMin
	}
	return r
}

// StepCount converts a sampling distance into the ray step count:
// max(1, round(1 / max(dist, floor))).
func StepCount(dist float32) int {
	if math32.IsNaN(dist) || dist < samplingFloor {
		dist = samplingFloor
	}
	n := int(math32.Round(1 / dist))
	if n < 1 {
		n = 1
	}
	return n
}

// RenderMeta echoes the effective parameters a render actually used,
// after override layering and sanitization.
type RenderMeta struct {
	Width            int
	Height           int
	SamplingDistance float32
	Steps            int
	Compositing      CompositingMode
	Quality          Quality
	Window           HuWindowMapping
	Lighting         bool
	Backend          string // "compute", "hostengine", or "cpu"
}

// TextureHandle is an opaque GPU reference to the rendered frame for
// zero-copy display: the compute path's output buffer. Nil when the
// frame was produced on the CPU.
type TextureHandle any

// RenderResult is the complete output of one render: a displayable
// raster, an optional GPU handle to the same frame, and the effective
// parameters. Never partial.
type RenderResult struct {
	Image   *image.RGBA
	Texture TextureHandle
	Meta    RenderMeta
}

// Command is a persistent renderer-local override. Applied via
// Renderer.SendCommand, a command outlives individual requests and takes
// precedence over request-embedded values until cleared. Overrides live
// in the renderer, never in the request or dataset value types.
type Command interface{ isCommand() }

// SetCompositing overrides the compositing mode.
type SetCompositing struct{ Mode CompositingMode }

// SetWindow overrides the HU window bounds.
type SetWindow struct{ Min, Max float32 }

// SetSamplingStep overrides the sampling distance.
type SetSamplingStep struct{ Distance float32 }

// SetLighting overrides the gradient-lighting flag.
type SetLighting struct{ Enabled bool }

// ClearOverrides removes all persistent overrides.
type ClearOverrides struct{}

func (SetCompositing) isCommand()  {}
func (SetWindow) isCommand()       {}
func (SetSamplingStep) isCommand() {}
func (SetLighting) isCommand()     {}
func (ClearOverrides) isCommand()  {}
