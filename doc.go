// Package volren renders 3-D medical volumetric datasets (CT/MRI voxel
// grids) by GPU ray marching, mapping raw intensities to color and opacity
// through a transfer function and compositing them along view rays into a
// 2-D image. It also derives oblique cross-sections (multi-planar
// reconstruction, MPR) from the same volume.
//
// The package assumes exactly one dataset and one transfer function active
// at a time, driven by a single logical viewer session. Rendering is
// serialized behind a single-writer work queue per Renderer instance;
// concurrent callers are queued and served one render at a time.
//
// Three rendering paths exist, selected by the Coordinator:
//
//   - compute: a wgpu compute pipeline marching rays on the GPU
//     (internal/gpucompute)
//   - host engine: cached textures and uniforms bound into a host 3-D
//     scene graph's material slot (internal/hostbridge)
//   - cpu: a software ray marcher used when no GPU is available or a
//     GPU path fails (internal/softrender)
//
// Failures degrade one tier at a time and are logged, never surfaced
// mid-render: a render call either returns a complete RenderResult or,
// only when no path at all can produce an image, an error.
//
// By default volren produces no log output. Call SetLogger to enable it.
package volren
