package nn

import (
	"math/rand/v2"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Dropout zeroes each element with probability 1-keepProb during training and
// scales survivors by 1/keepProb. At inference it is the identity.
type Dropout struct {
	base
	keepProb float32
	mask     []bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout layer. keepProb defaults to 0.5 when zero.
func NewDropout(name string, keepProb float32) (*Dropout, error) {
	if keepProb == 0 {
		keepProb = 0.5
	}
	if keepProb < 0 || keepProb > 1 {
		return nil, configErrorf(KindDropout, "keep_prob must be in (0, 1], got %g", keepProb)
	}
	return &Dropout{base: base{name: name}, keepProb: keepProb, rng: NewRand()}, nil
}

// Kind implements Layer.
func (l *Dropout) Kind() Kind { return KindDropout }

// InferShape implements Layer.
func (l *Dropout) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *Dropout) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Dropout) Forward(in, out []*tensor.Tensor, train bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y := in[0].Data(), out[0].Data()
	if !train {
		l.mask = l.mask[:0]
		copy(y, x)
		return nil
	}
	if cap(l.mask) < len(x) {
		l.mask = make([]bool, len(x))
	}
	l.mask = l.mask[:len(x)]
	for i := range x {
		l.mask[i] = l.rng.Float32() < l.keepProb
		if l.mask[i] {
			y[i] = x[i] / l.keepProb
		} else {
			y[i] = 0
		}
	}
	return nil
}

// Backward implements Layer.
func (l *Dropout) Backward(in, out []*tensor.Tensor) error {
	dx, dy := in[0].Grad(), out[0].Grad()
	if len(l.mask) != len(dx) {
		for i := range dx {
			dx[i] += dy[i]
		}
		return nil
	}
	for i, keep := range l.mask {
		if keep {
			dx[i] += dy[i] / l.keepProb
		}
	}
	return nil
}

// HyperParams implements Layer.
func (l *Dropout) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Floats["keep_prob"] = l.keepProb
	return hp
}
