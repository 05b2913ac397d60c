package nn

import (
	"math"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

// minProb is the smallest normal float32; probabilities are clamped to it
// before taking a logarithm.
const minProb = 0x1p-126

var scalarShape = tensor.NewShape(1, 1, 1, 1)

// Losses take (logits, labels) and produce (loss, prob): a (1, 1, 1, 1) mean
// loss and the normalized probabilities. Backward reads only the loss
// gradient; the probability output is a view for metrics and carries no
// gradient of its own. Labels never receive a gradient.

// checkClassLabels validates (n, c, h, w) logits against (n, 1, h, w) class
// index labels.
func checkClassLabels(l Layer, in []tensor.Shape) error {
	if err := expectInputs(l, in, 2); err != nil {
		return err
	}
	logits, labels := in[0], in[1]
	if logits.Channels() == 0 || logits.Count()/logits.Channels() != labels.Count() {
		return shapeErrorf(l, "labels %v do not match logits %v", labels, logits)
	}
	return nil
}

// classIndex returns the label at flat position (n, h, w) as a channel index.
func classIndex(l Layer, labels []float32, i, channels int) (int, error) {
	c := int(labels[i])
	if c < 0 || c >= channels || float32(c) != labels[i] {
		return 0, shapeErrorf(l, "label %g at %d is not a class index in [0, %d)", labels[i], i, channels)
	}
	return c, nil
}

// forEachLabel calls f with (label flat index, offset of channel 0 in the
// logits, channel stride) for every (n, h, w) position.
func forEachLabel(s tensor.Shape, f func(li, off, plane int) error) error {
	plane := s.Height() * s.Width()
	for n := 0; n < s.Num(); n++ {
		for p := 0; p < plane; p++ {
			if err := f(n*plane+p, n*s.Channels()*plane+p, plane); err != nil {
				return err
			}
		}
	}
	return nil
}

// SoftmaxLoss is the softmax cross-entropy against class-index labels.
type SoftmaxLoss struct {
	base
}

// NewSoftmaxLoss creates a SoftmaxLoss layer.
func NewSoftmaxLoss(name string) *SoftmaxLoss {
	return &SoftmaxLoss{base: base{name: name}}
}

// Kind implements Layer.
func (l *SoftmaxLoss) Kind() Kind { return KindSoftmaxLoss }

// InferShape implements Layer.
func (l *SoftmaxLoss) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := checkClassLabels(l, in); err != nil {
		return nil, err
	}
	return []tensor.Shape{scalarShape, in[0]}, nil
}

// Setup implements Layer.
func (l *SoftmaxLoss) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *SoftmaxLoss) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	s, labels := in[0].Shape(), in[1].Data()
	prob := out[1].Data()
	softmaxChannels(in[0].Data(), prob, s)
	var loss float64
	err := forEachLabel(s, func(li, off, plane int) error {
		c, err := classIndex(l, labels, li, s.Channels())
		if err != nil {
			return err
		}
		loss -= math.Log(float64(max(prob[off+c*plane], minProb)))
		return nil
	})
	if err != nil {
		return err
	}
	out[0].Data()[0] = float32(loss / float64(in[1].Count()))
	return nil
}

// Backward implements Layer.
//
//	dlogits += (prob - onehot(label)) · g / count(labels)
func (l *SoftmaxLoss) Backward(in, out []*tensor.Tensor) error {
	s, labels := in[0].Shape(), in[1].Data()
	prob, dx := out[1].Data(), in[0].Grad()
	scale := out[0].Grad()[0] / float32(in[1].Count())
	return forEachLabel(s, func(li, off, plane int) error {
		t, err := classIndex(l, labels, li, s.Channels())
		if err != nil {
			return err
		}
		for c := 0; c < s.Channels(); c++ {
			i := off + c*plane
			dx[i] += (prob[i] - step(c == t)) * scale
		}
		return nil
	})
}

// HyperParams implements Layer.
func (l *SoftmaxLoss) HyperParams() HyperParams { return NewHyperParams() }

// FocalLoss down-weights well-classified positions of the softmax
// cross-entropy: loss = -mean((1-p_t)^γ · log p_t).
type FocalLoss struct {
	base
	gamma float32
}

// NewFocalLoss creates a FocalLoss layer. gamma defaults to 2 when zero.
func NewFocalLoss(name string, gamma float32) (*FocalLoss, error) {
	if gamma == 0 {
		gamma = 2
	}
	if gamma < 0 {
		return nil, configErrorf(KindFocalLoss, "gamma must not be negative, got %g", gamma)
	}
	return &FocalLoss{base: base{name: name}, gamma: gamma}, nil
}

// Kind implements Layer.
func (l *FocalLoss) Kind() Kind { return KindFocalLoss }

// InferShape implements Layer.
func (l *FocalLoss) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := checkClassLabels(l, in); err != nil {
		return nil, err
	}
	return []tensor.Shape{scalarShape, in[0]}, nil
}

// Setup implements Layer.
func (l *FocalLoss) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *FocalLoss) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	s, labels := in[0].Shape(), in[1].Data()
	prob := out[1].Data()
	softmaxChannels(in[0].Data(), prob, s)
	gamma := float64(l.gamma)
	var loss float64
	err := forEachLabel(s, func(li, off, plane int) error {
		c, err := classIndex(l, labels, li, s.Channels())
		if err != nil {
			return err
		}
		pt := float64(prob[off+c*plane])
		loss -= math.Pow(1-pt, gamma) * math.Log(max(pt, minProb))
		return nil
	})
	if err != nil {
		return err
	}
	out[0].Data()[0] = float32(loss / float64(in[1].Count()))
	return nil
}

// Backward implements Layer.
//
// With p_t the probability of the label class:
//
//	c == t: (1-p_t)^γ · (γ·p_t·log p_t + p_t - 1)
//	c != t: (1-p_t)^γ · p_c - γ·(1-p_t)^(γ-1) · p_t·p_c·log p_t
func (l *FocalLoss) Backward(in, out []*tensor.Tensor) error {
	s, labels := in[0].Shape(), in[1].Data()
	prob, dx := out[1].Data(), in[0].Grad()
	scale := float64(out[0].Grad()[0]) / float64(in[1].Count())
	gamma := float64(l.gamma)
	return forEachLabel(s, func(li, off, plane int) error {
		t, err := classIndex(l, labels, li, s.Channels())
		if err != nil {
			return err
		}
		pt := float64(prob[off+t*plane])
		logPt := math.Log(max(pt, minProb))
		for c := 0; c < s.Channels(); c++ {
			i := off + c*plane
			var g float64
			if c == t {
				g = math.Pow(1-pt, gamma) * (gamma*pt*logPt + pt - 1)
			} else {
				pc := float64(prob[i])
				g = math.Pow(1-pt, gamma)*pc - gamma*math.Pow(1-pt, gamma-1)*pt*pc*logPt
			}
			dx[i] += float32(g * scale)
		}
		return nil
	})
}

// HyperParams implements Layer.
func (l *FocalLoss) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Floats["gamma"] = l.gamma
	return hp
}

// SigmoidLoss is the element-wise sigmoid cross-entropy against labels of the
// same shape as the logits, in the overflow-free form
//
//	-(x·(y - [x≥0]) - log(1 + exp(x - 2x·[x≥0])))
type SigmoidLoss struct {
	base
}

// NewSigmoidLoss creates a SigmoidLoss layer.
func NewSigmoidLoss(name string) *SigmoidLoss {
	return &SigmoidLoss{base: base{name: name}}
}

// Kind implements Layer.
func (l *SigmoidLoss) Kind() Kind { return KindSigmoidLoss }

// InferShape implements Layer.
func (l *SigmoidLoss) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 2); err != nil {
		return nil, err
	}
	if in[0] != in[1] {
		return nil, shapeErrorf(l, "labels %v do not match logits %v", in[1], in[0])
	}
	return []tensor.Shape{scalarShape, in[0]}, nil
}

// Setup implements Layer.
func (l *SigmoidLoss) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *SigmoidLoss) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y, prob := in[0].Data(), in[1].Data(), out[1].Data()
	var loss float64
	for i := range x {
		prob[i] = sigmoid(x[i])
		xi, pos := float64(x[i]), float64(step(x[i] >= 0))
		loss -= xi*(float64(y[i])-pos) - math.Log1p(math.Exp(xi-2*xi*pos))
	}
	out[0].Data()[0] = float32(loss / float64(len(x)))
	return nil
}

// Backward implements Layer.
func (l *SigmoidLoss) Backward(in, out []*tensor.Tensor) error {
	y, prob, dx := in[1].Data(), out[1].Data(), in[0].Grad()
	scale := out[0].Grad()[0] / float32(len(dx))
	for i := range dx {
		dx[i] += (prob[i] - y[i]) * scale
	}
	return nil
}

// HyperParams implements Layer.
func (l *SigmoidLoss) HyperParams() HyperParams { return NewHyperParams() }

// L2Loss is the mean squared difference of two same-shape tensors. Both
// inputs receive a gradient.
type L2Loss struct {
	base
}

// NewL2Loss creates an L2Loss layer.
func NewL2Loss(name string) *L2Loss {
	return &L2Loss{base: base{name: name}}
}

// Kind implements Layer.
func (l *L2Loss) Kind() Kind { return KindL2Loss }

// InferShape implements Layer.
func (l *L2Loss) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 2); err != nil {
		return nil, err
	}
	if in[0] != in[1] {
		return nil, shapeErrorf(l, "target %v does not match prediction %v", in[1], in[0])
	}
	return []tensor.Shape{scalarShape}, nil
}

// Setup implements Layer.
func (l *L2Loss) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *L2Loss) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	a, b := in[0].Data(), in[1].Data()
	var loss float64
	for i := range a {
		d := float64(a[i] - b[i])
		loss += d * d
	}
	out[0].Data()[0] = float32(loss / float64(len(a)))
	return nil
}

// Backward implements Layer.
func (l *L2Loss) Backward(in, out []*tensor.Tensor) error {
	a, b := in[0].Data(), in[1].Data()
	da, db := in[0].Grad(), in[1].Grad()
	scale := 2 * out[0].Grad()[0] / float32(len(a))
	for i := range a {
		da[i] += scale * (a[i] - b[i])
		db[i] += scale * (b[i] - a[i])
	}
	return nil
}

// HyperParams implements Layer.
func (l *L2Loss) HyperParams() HyperParams { return NewHyperParams() }
