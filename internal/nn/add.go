package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Add sums two or more tensors of identical shape element-wise.
type Add struct {
	base
}

// NewAdd creates an Add layer.
func NewAdd(name string) *Add {
	return &Add{base: base{name: name}}
}

// Kind implements Layer.
func (l *Add) Kind() Kind { return KindAdd }

// InferShape implements Layer.
func (l *Add) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) < 2 {
		return nil, shapeErrorf(l, "needs at least 2 inputs, got %d", len(in))
	}
	for i, s := range in[1:] {
		if s != in[0] {
			return nil, shapeErrorf(l, "input %d has shape %v, expected %v", i+1, s, in[0])
		}
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *Add) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Add) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	y := out[0].Data()
	copy(y, in[0].Data())
	for _, x := range in[1:] {
		cpu.AddTo(y, x.Data())
	}
	return nil
}

// Backward implements Layer.
func (l *Add) Backward(in, out []*tensor.Tensor) error {
	dy := out[0].Grad()
	for _, x := range in {
		cpu.AddTo(x.Grad(), dy)
	}
	return nil
}

// HyperParams implements Layer.
func (l *Add) HyperParams() HyperParams { return NewHyperParams() }
