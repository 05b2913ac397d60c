package nn

import (
	"math"

	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Softmax normalizes over the channel axis at every (n, h, w) position.
type Softmax struct {
	base
}

// NewSoftmax creates a Softmax layer.
func NewSoftmax(name string) *Softmax {
	return &Softmax{base: base{name: name}}
}

// Kind implements Layer.
func (l *Softmax) Kind() Kind { return KindSoftmax }

// InferShape implements Layer.
func (l *Softmax) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *Softmax) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Softmax) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	softmaxChannels(in[0].Data(), out[0].Data(), in[0].Shape())
	return nil
}

// Backward implements Layer.
//
//	dx_c += y_c · (dy_c - Σ_k y_k·dy_k)
func (l *Softmax) Backward(in, out []*tensor.Tensor) error {
	s := in[0].Shape()
	y, dy, dx := out[0].Data(), out[0].Grad(), in[0].Grad()
	c, plane := s.Channels(), s.Height()*s.Width()
	parallel.For(s.Num(), func(n int) {
		for p := 0; p < plane; p++ {
			off := n*c*plane + p
			var dot float32
			for k := 0; k < c; k++ {
				i := off + k*plane
				dot += y[i] * dy[i]
			}
			for k := 0; k < c; k++ {
				i := off + k*plane
				dx[i] += y[i] * (dy[i] - dot)
			}
		}
	}, parallel.BatchConfig())
	return nil
}

// HyperParams implements Layer.
func (l *Softmax) HyperParams() HyperParams { return NewHyperParams() }

// softmaxChannels writes the channel-wise softmax of x into y. The maximum is
// subtracted before exponentiation.
func softmaxChannels(x, y []float32, s tensor.Shape) {
	c, plane := s.Channels(), s.Height()*s.Width()
	parallel.For(s.Num(), func(n int) {
		for p := 0; p < plane; p++ {
			off := n*c*plane + p
			hi := float32(math.Inf(-1))
			for k := 0; k < c; k++ {
				hi = max(hi, x[off+k*plane])
			}
			var sum float64
			for k := 0; k < c; k++ {
				i := off + k*plane
				e := math.Exp(float64(x[i] - hi))
				y[i] = float32(e)
				sum += e
			}
			for k := 0; k < c; k++ {
				y[off+k*plane] /= float32(sum)
			}
		}
	}, parallel.BatchConfig())
}
