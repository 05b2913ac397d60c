package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Concatenate joins two or more tensors along one axis (0..3). All inputs
// must agree on every other axis.
type Concatenate struct {
	base
	axis int
}

// NewConcatenate creates a Concatenate layer.
func NewConcatenate(name string, axis int) (*Concatenate, error) {
	if axis < 0 || axis > 3 {
		return nil, configErrorf(KindConcatenate, "axis must be in [0, 3], got %d", axis)
	}
	return &Concatenate{base: base{name: name}, axis: axis}, nil
}

// Kind implements Layer.
func (l *Concatenate) Kind() Kind { return KindConcatenate }

// InferShape implements Layer.
func (l *Concatenate) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if len(in) < 2 {
		return nil, shapeErrorf(l, "needs at least 2 inputs, got %d", len(in))
	}
	out := in[0]
	for i, s := range in[1:] {
		if !s.EqualExcept(in[0], l.axis) {
			return nil, shapeErrorf(l, "input %d has shape %v, incompatible with %v on axis %d", i+1, s, in[0], l.axis)
		}
		out[l.axis] += s[l.axis]
	}
	return []tensor.Shape{out}, nil
}

// Setup implements Layer.
func (l *Concatenate) Setup([]tensor.Shape) error { return nil }

// blocks returns the number of outer blocks and the per-input block sizes.
func (l *Concatenate) blocks(in []*tensor.Tensor) (outer int, sizes []int) {
	outer = 1
	for a := 0; a < l.axis; a++ {
		outer *= in[0].Shape()[a]
	}
	sizes = make([]int, len(in))
	for i, t := range in {
		sizes[i] = t.Count() / max(outer, 1)
	}
	return outer, sizes
}

// Forward implements Layer.
func (l *Concatenate) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	outer, sizes := l.blocks(in)
	y, pos := out[0].Data(), 0
	for o := 0; o < outer; o++ {
		for i, t := range in {
			copy(y[pos:pos+sizes[i]], t.Data()[o*sizes[i]:(o+1)*sizes[i]])
			pos += sizes[i]
		}
	}
	return nil
}

// Backward implements Layer.
func (l *Concatenate) Backward(in, out []*tensor.Tensor) error {
	outer, sizes := l.blocks(in)
	dy, pos := out[0].Grad(), 0
	for o := 0; o < outer; o++ {
		for i, t := range in {
			cpu.AddTo(t.Grad()[o*sizes[i]:(o+1)*sizes[i]], dy[pos:pos+sizes[i]])
			pos += sizes[i]
		}
	}
	return nil
}

// HyperParams implements Layer.
func (l *Concatenate) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["axis"] = l.axis
	return hp
}
