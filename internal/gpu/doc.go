// Package gpu runs the flock on a WebGPU device through the gogpu/wgpu HAL.
//
// The package is built from a few small parts:
//
//   - Allocator creates storage buffers, uploads their initial
//     contents and tracks them against an optional memory budget.
//   - ComputeStage and DrawStage wrap one WGSL entry point each. Bindings are
//     matched to the shader by name using naga reflection, so a stage can be
//     rebound to a new buffer with UpdateBuffer without recreating pipelines.
//   - Submitter tracks in-flight submissions and defers buffer release until
//     the GPU no longer uses them.
//   - FlockPipeline owns the buffers and the four stages of a flock: clear
//     the spatial hash, build it, apply the steering behavior and draw one
//     triangle per particle into a render target.
//
// Host-side mirrors of the shader layouts live in package flockcompute,
// which also carries a CPU reference of each pass used by the tests.
//
// All GPU work is recorded and submitted on the caller's goroutine. A frame
// is a single submission; buffer contents are read back only on request.
package gpu
