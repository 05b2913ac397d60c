// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu exposes the CPU compute kernels behind MicroNet layers:
// a blocked float32 gemm, im2col/col2im and output-size inference for
// convolution, deconvolution and pooling.
//
//	cpu.Gemm(false, true, m, n, k, 1, a, b, 0, c) // c = a·bᵀ
package cpu

import (
	internalcpu "github.com/VectorFist/MicroNet/internal/backend/cpu"
)

// Padding selects valid or same convolution padding.
type Padding = internalcpu.Padding

// Padding modes.
const (
	PaddingValid = internalcpu.PaddingValid
	PaddingSame  = internalcpu.PaddingSame
)

// Geometry describes one image plane and its sliding window.
type Geometry = internalcpu.Geometry

// Gemm computes c = alpha·op(a)·op(b) + beta·c for row-major matrices, where
// op(a) is m×k and op(b) is k×n.
func Gemm(transA, transB bool, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) {
	internalcpu.Gemm(transA, transB, m, n, k, alpha, a, b, beta, c)
}

// Im2Col unfolds the windows of img into the columns of col.
func Im2Col(img []float32, g Geometry, col []float32) {
	internalcpu.Im2Col(img, g, col)
}

// Col2Im folds col back into img, summing overlapping windows.
func Col2Im(col []float32, g Geometry, img []float32) {
	internalcpu.Col2Im(col, g, img)
}

// ConvOutputSize returns the convolution output extent and leading pad.
func ConvOutputSize(in, kernel, stride int, padding Padding) (out, pad int, err error) {
	return internalcpu.ConvOutputSize(in, kernel, stride, padding)
}

// DeconvOutputSize returns the deconvolution output extent and leading pad.
func DeconvOutputSize(in, kernel, stride int, padding Padding) (out, pad int, err error) {
	return internalcpu.DeconvOutputSize(in, kernel, stride, padding)
}

// PoolOutputSize returns the pooling output extent.
func PoolOutputSize(in, kernel, stride, pad int) (int, error) {
	return internalcpu.PoolOutputSize(in, kernel, stride, pad)
}

// ErrInvalidGeometry is returned when a window configuration yields no output.
var ErrInvalidGeometry = internalcpu.ErrInvalidGeometry
