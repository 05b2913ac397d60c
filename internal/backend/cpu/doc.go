// Package cpu implements the compute kernels behind MicroNet layers.
//
// The kernels operate on flat row-major float32 slices and never allocate
// tensors themselves; layers own the buffers and pass views in. The package
// provides:
//   - Gemm: C = alpha*op(A)*op(B) + beta*C with per-orientation tiled kernels
//   - Im2Col / Col2Im: sliding-window expansion and its scatter-add adjoint
//   - Convolution and deconvolution forward/backward built on Im2Col + Gemm
//   - Max, average and random pooling with index masks
//   - Output-size and padding inference for "same"/"valid" windows
//
// Batch-level loops run through internal/parallel: each worker owns a
// disjoint range of batch elements. Reductions over the batch axis (weight and
// bias gradients) go through per-worker scratch buffers that are summed on the
// calling goroutine.
package cpu
