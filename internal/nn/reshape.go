package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Reshape reinterprets its input under a new shape with the same element
// count. At most one target dimension may be -1; it is inferred.
type Reshape struct {
	base
	target [4]int
}

// NewReshape creates a Reshape layer with target (n, c, h, w).
func NewReshape(name string, n, c, h, w int) (*Reshape, error) {
	target := [4]int{n, c, h, w}
	wild := 0
	for _, d := range target {
		switch {
		case d == -1:
			wild++
		case d <= 0:
			return nil, configErrorf(KindReshape, "dimension %d must be positive or -1", d)
		}
	}
	if wild > 1 {
		return nil, configErrorf(KindReshape, "at most one dimension may be -1, got %v", target)
	}
	return &Reshape{base: base{name: name}, target: target}, nil
}

// Kind implements Layer.
func (l *Reshape) Kind() Kind { return KindReshape }

// InferShape implements Layer.
func (l *Reshape) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	count, known, wild := in[0].Count(), 1, -1
	for i, d := range l.target {
		if d == -1 {
			wild = i
			continue
		}
		known *= d
	}
	out := tensor.Shape(l.target)
	if wild >= 0 {
		if count%known != 0 {
			return nil, shapeErrorf(l, "cannot infer dimension %d of %v from %d elements", wild, l.target, count)
		}
		out[wild] = count / known
	}
	if out.Count() != count {
		return nil, shapeErrorf(l, "target %v has %d elements, input %v has %d", out, out.Count(), in[0], count)
	}
	return []tensor.Shape{out}, nil
}

// Setup implements Layer.
func (l *Reshape) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Reshape) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	copy(out[0].Data(), in[0].Data())
	return nil
}

// Backward implements Layer.
func (l *Reshape) Backward(in, out []*tensor.Tensor) error {
	cpu.AddTo(in[0].Grad(), out[0].Grad())
	return nil
}

// HyperParams implements Layer.
func (l *Reshape) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["n"] = l.target[0]
	hp.Ints["c"] = l.target[1]
	hp.Ints["h"] = l.target[2]
	hp.Ints["w"] = l.target[3]
	return hp
}
