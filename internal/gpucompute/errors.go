package gpucompute

import "errors"

var (
	// ErrNoAdapter indicates no usable GPU adapter was found.
	ErrNoAdapter = errors.New("gpucompute: no GPU adapters available")

	// ErrAllocation indicates a buffer or texture allocation failed.
	ErrAllocation = errors.New("gpucompute: resource allocation failed")

	// ErrShader indicates the compute shader failed validation or the
	// pipeline failed to build.
	ErrShader = errors.New("gpucompute: shader pipeline build failed")

	// ErrNotReady indicates the device has not been initialized.
	ErrNotReady = errors.New("gpucompute: device not initialized")
)
