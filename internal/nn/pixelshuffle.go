package nn

import (
	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// PixelShuffle rearranges (n, c, h, w) into (n, c/f², h*f, w*f).
//
// Input channel c lands in output channel c/f² at offset
// ((c%f²)/f, (c%f²)%f) inside each f×f output block.
type PixelShuffle struct {
	base
	factor int
}

// NewPixelShuffle creates a PixelShuffle layer with upscale factor f.
func NewPixelShuffle(name string, factor int) (*PixelShuffle, error) {
	if factor <= 0 {
		return nil, configErrorf(KindPixelShuffle, "upscale factor must be positive, got %d", factor)
	}
	return &PixelShuffle{base: base{name: name}, factor: factor}, nil
}

// Kind implements Layer.
func (l *PixelShuffle) Kind() Kind { return KindPixelShuffle }

// InferShape implements Layer.
func (l *PixelShuffle) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	f2 := l.factor * l.factor
	if in[0].Channels()%f2 != 0 {
		return nil, shapeErrorf(l, "%d channels not divisible by %d", in[0].Channels(), f2)
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), in[0].Channels()/f2,
		in[0].Height()*l.factor, in[0].Width()*l.factor)}, nil
}

// Setup implements Layer.
func (l *PixelShuffle) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *PixelShuffle) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y := in[0].Data(), out[0].Data()
	l.walk(in[0].Shape(), out[0].Shape(), func(i, o int) { y[o] = x[i] })
	return nil
}

// Backward implements Layer.
func (l *PixelShuffle) Backward(in, out []*tensor.Tensor) error {
	dx, dy := in[0].Grad(), out[0].Grad()
	l.walk(in[0].Shape(), out[0].Shape(), func(i, o int) { dx[i] += dy[o] })
	return nil
}

// walk visits every (input, output) index pair. The mapping is a bijection,
// so samples can run in parallel.
func (l *PixelShuffle) walk(is, os tensor.Shape, f func(i, o int)) {
	f1, f2 := l.factor, l.factor*l.factor
	parallel.For(is.Num(), func(n int) {
		for c := 0; c < is.Channels(); c++ {
			oc, sub := c/f2, c%f2
			for h := 0; h < is.Height(); h++ {
				oh := h*f1 + sub/f1
				for w := 0; w < is.Width(); w++ {
					f(is.Offset(n, c, h, w), os.Offset(n, oc, oh, w*f1+sub%f1))
				}
			}
		}
	}, parallel.BatchConfig())
}

// HyperParams implements Layer.
func (l *PixelShuffle) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["upscale_factor"] = l.factor
	return hp
}
