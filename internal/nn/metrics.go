package nn

import (
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// ArgMax writes, at every (n, h, w), the index of the largest channel as a
// float. Ties go to the lowest index. It has no gradient.
type ArgMax struct {
	base
}

// NewArgMax creates an ArgMax layer.
func NewArgMax(name string) *ArgMax {
	return &ArgMax{base: base{name: name}}
}

// Kind implements Layer.
func (l *ArgMax) Kind() Kind { return KindArgMax }

// InferShape implements Layer.
func (l *ArgMax) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if in[0].Channels() == 0 {
		return nil, shapeErrorf(l, "input %v has no channels", in[0])
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), 1, in[0].Height(), in[0].Width())}, nil
}

// Setup implements Layer.
func (l *ArgMax) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *ArgMax) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	argmaxChannels(in[0].Data(), in[0].Shape(), out[0].Data())
	return nil
}

// Backward implements Layer.
func (l *ArgMax) Backward(_, _ []*tensor.Tensor) error { return nil }

// HyperParams implements Layer.
func (l *ArgMax) HyperParams() HyperParams { return NewHyperParams() }

func argmaxChannels(x []float32, s tensor.Shape, dst []float32) {
	_ = forEachLabel(s, func(li, off, plane int) error {
		best := 0
		for c := 1; c < s.Channels(); c++ {
			if x[off+c*plane] > x[off+best*plane] {
				best = c
			}
		}
		dst[li] = float32(best)
		return nil
	})
}

// Accuracy compares the channel argmax of its first input against the class
// labels of its second and outputs the fraction that match, shaped
// (1, 1, 1, 1). It has no gradient.
type Accuracy struct {
	base
	pred []float32
}

// NewAccuracy creates an Accuracy layer.
func NewAccuracy(name string) *Accuracy {
	return &Accuracy{base: base{name: name}}
}

// Kind implements Layer.
func (l *Accuracy) Kind() Kind { return KindAccuracy }

// InferShape implements Layer.
func (l *Accuracy) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := checkClassLabels(l, in); err != nil {
		return nil, err
	}
	return []tensor.Shape{scalarShape}, nil
}

// Setup implements Layer.
func (l *Accuracy) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Accuracy) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	labels := in[1].Data()
	l.pred = growFloats(l.pred, len(labels))
	argmaxChannels(in[0].Data(), in[0].Shape(), l.pred)
	correct := 0
	for i, p := range l.pred {
		if p == labels[i] {
			correct++
		}
	}
	out[0].Data()[0] = float32(correct) / float32(len(labels))
	return nil
}

// Backward implements Layer.
func (l *Accuracy) Backward(_, _ []*tensor.Tensor) error { return nil }

// HyperParams implements Layer.
func (l *Accuracy) HyperParams() HyperParams { return NewHyperParams() }
