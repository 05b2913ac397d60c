// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the 4-D float32 tensors MicroNet layers operate on.
//
// A Tensor holds a value buffer and a gradient buffer of identical length,
// shaped (n, c, h, w) in row-major order:
//
//	t := tensor.New(tensor.NewShape(2, 3, 4, 4))
//	t.Data()[t.Offset(1, 2, 0, 3)] = 1
//
// Parameters are tensors with Trainable() set and a stable ID used by model
// persistence to recognise shared parameters.
package tensor

import (
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Shape is a 4-D shape (n, c, h, w).
type Shape = tensor.Shape

// Tensor is a 4-D float32 tensor with a gradient buffer.
type Tensor = tensor.Tensor

// NewShape returns the shape (n, c, h, w).
func NewShape(n, c, h, w int) Shape {
	return tensor.NewShape(n, c, h, w)
}

// New creates a zero-filled trainable tensor.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice creates a tensor holding a copy of data. len(data) must equal
// shape.Count().
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}
