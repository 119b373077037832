package volren

import "errors"

// Sentinel errors for the rendering engine. Only ErrCapabilityUnavailable
// is fatal: it is surfaced once at startup when no GPU exists at all and
// even the CPU path cannot serve (nil dataset). Everything else degrades
// one tier and is logged, never returned mid-render.
var (
	// ErrCapabilityUnavailable indicates no rendering capability exists
	// for the call (no GPU and the CPU fallback also failed).
	ErrCapabilityUnavailable = errors.New("volren: rendering capability unavailable")

	// ErrResourceAllocation indicates a GPU texture or buffer allocation
	// failed. Recovered by one retry, then CPU fallback.
	ErrResourceAllocation = errors.New("volren: GPU resource allocation failed")

	// ErrShaderBuild indicates a compute or material shader pipeline
	// failed to validate or build. Recovered by falling back one tier.
	ErrShaderBuild = errors.New("volren: shader pipeline build failed")

	// ErrFallbackToCPU indicates a GPU path cannot handle this render.
	// The renderer transparently switches to the software ray marcher.
	ErrFallbackToCPU = errors.New("volren: falling back to CPU rendering")

	// ErrRendererClosed is returned for calls submitted after Close.
	ErrRendererClosed = errors.New("volren: renderer is closed")
)
