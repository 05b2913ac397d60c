package nn

import (
	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Border gives per-side extents for padding and cropping.
type Border struct {
	Top, Bottom, Left, Right int
}

func (b Border) validate(kind Kind) error {
	if b.Top < 0 || b.Bottom < 0 || b.Left < 0 || b.Right < 0 {
		return configErrorf(kind, "border %+v must not be negative", b)
	}
	return nil
}

// copyWindow visits every (n, c, row, col) of a rows×cols window and calls f
// with the flat index into the larger tensor (shifted by top/left) and the
// flat index into the smaller one.
func copyWindow(large, small tensor.Shape, top, left int, f func(li, si int)) {
	parallel.For(small.Num(), func(n int) {
		for c := 0; c < small.Channels(); c++ {
			for r := 0; r < small.Height(); r++ {
				for q := 0; q < small.Width(); q++ {
					f(large.Offset(n, c, r+top, q+left), small.Offset(n, c, r, q))
				}
			}
		}
	}, parallel.BatchConfig())
}

// PaddingImage surrounds each spatial plane with a constant border.
type PaddingImage struct {
	base
	border Border
	value  float32
}

// NewPaddingImage creates a PaddingImage layer filling the border with value.
func NewPaddingImage(name string, border Border, value float32) (*PaddingImage, error) {
	if err := border.validate(KindPaddingImage); err != nil {
		return nil, err
	}
	return &PaddingImage{base: base{name: name}, border: border, value: value}, nil
}

// Kind implements Layer.
func (l *PaddingImage) Kind() Kind { return KindPaddingImage }

// InferShape implements Layer.
func (l *PaddingImage) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	b := l.border
	return []tensor.Shape{tensor.NewShape(in[0].Num(), in[0].Channels(),
		in[0].Height()+b.Top+b.Bottom, in[0].Width()+b.Left+b.Right)}, nil
}

// Setup implements Layer.
func (l *PaddingImage) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *PaddingImage) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y := in[0].Data(), out[0].Data()
	Constant(y, l.value)
	copyWindow(out[0].Shape(), in[0].Shape(), l.border.Top, l.border.Left, func(o, i int) { y[o] = x[i] })
	return nil
}

// Backward implements Layer.
func (l *PaddingImage) Backward(in, out []*tensor.Tensor) error {
	dx, dy := in[0].Grad(), out[0].Grad()
	copyWindow(out[0].Shape(), in[0].Shape(), l.border.Top, l.border.Left, func(o, i int) { dx[i] += dy[o] })
	return nil
}

// HyperParams implements Layer.
func (l *PaddingImage) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["padding_top"] = l.border.Top
	hp.Ints["padding_bottom"] = l.border.Bottom
	hp.Ints["padding_left"] = l.border.Left
	hp.Ints["padding_right"] = l.border.Right
	hp.Floats["padding_value"] = l.value
	return hp
}

// CroppingImage removes a border from each spatial plane.
type CroppingImage struct {
	base
	border Border
}

// NewCroppingImage creates a CroppingImage layer.
func NewCroppingImage(name string, border Border) (*CroppingImage, error) {
	if err := border.validate(KindCroppingImage); err != nil {
		return nil, err
	}
	return &CroppingImage{base: base{name: name}, border: border}, nil
}

// Kind implements Layer.
func (l *CroppingImage) Kind() Kind { return KindCroppingImage }

// InferShape implements Layer.
func (l *CroppingImage) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	b := l.border
	h, w := in[0].Height()-b.Top-b.Bottom, in[0].Width()-b.Left-b.Right
	if h <= 0 || w <= 0 {
		return nil, shapeErrorf(l, "cropping %+v leaves nothing of %v", b, in[0])
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), in[0].Channels(), h, w)}, nil
}

// Setup implements Layer.
func (l *CroppingImage) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *CroppingImage) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y := in[0].Data(), out[0].Data()
	copyWindow(in[0].Shape(), out[0].Shape(), l.border.Top, l.border.Left, func(i, o int) { y[o] = x[i] })
	return nil
}

// Backward implements Layer.
func (l *CroppingImage) Backward(in, out []*tensor.Tensor) error {
	dx, dy := in[0].Grad(), out[0].Grad()
	copyWindow(in[0].Shape(), out[0].Shape(), l.border.Top, l.border.Left, func(i, o int) { dx[i] += dy[o] })
	return nil
}

// HyperParams implements Layer.
func (l *CroppingImage) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["cropping_top"] = l.border.Top
	hp.Ints["cropping_bottom"] = l.border.Bottom
	hp.Ints["cropping_left"] = l.border.Left
	hp.Ints["cropping_right"] = l.border.Right
	return hp
}
