package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// BatchMiddleSplit splits the batch into its first and second halves. The
// batch size must be even.
type BatchMiddleSplit struct {
	base
}

// NewBatchMiddleSplit creates a BatchMiddleSplit layer.
func NewBatchMiddleSplit(name string) *BatchMiddleSplit {
	return &BatchMiddleSplit{base: base{name: name}}
}

// Kind implements Layer.
func (l *BatchMiddleSplit) Kind() Kind { return KindBatchMiddleSplit }

// InferShape implements Layer.
func (l *BatchMiddleSplit) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if in[0].Num()%2 != 0 {
		return nil, shapeErrorf(l, "batch size %d is odd", in[0].Num())
	}
	half := in[0]
	half[0] /= 2
	return []tensor.Shape{half, half}, nil
}

// Setup implements Layer.
func (l *BatchMiddleSplit) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *BatchMiddleSplit) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, half := in[0].Data(), in[0].Count()/2
	copy(out[0].Data(), x[:half])
	copy(out[1].Data(), x[half:])
	return nil
}

// Backward implements Layer.
func (l *BatchMiddleSplit) Backward(in, out []*tensor.Tensor) error {
	dx, half := in[0].Grad(), in[0].Count()/2
	cpu.AddTo(dx[:half], out[0].Grad())
	cpu.AddTo(dx[half:], out[1].Grad())
	return nil
}

// HyperParams implements Layer.
func (l *BatchMiddleSplit) HyperParams() HyperParams { return NewHyperParams() }
