package nn

import (
	"math"

	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// normEps is added to the variance before the square root.
const normEps = 1e-8

// runningMomentum weights the previous running statistic.
const runningMomentum = 0.1

// Indices into BatchNormalization params.
const (
	bnMean = iota
	bnVar
	bnRunningMean
	bnRunningVar
	bnGamma
	bnBeta
)

// BatchNormalization normalizes each channel over (n, h, w).
//
// Parameters, all (1, c, 1, 1):
//   - mean, var: statistics of the last training batch (fixed)
//   - running_mean, running_var: 0.1*old + 0.9*new, the first pass copies (fixed)
//   - gamma, beta: scale and shift (trainable)
//
// Inference normalizes with the running statistics.
type BatchNormalization struct {
	base
	iter      int
	xhat      []float32
	lastTrain bool
}

// NewBatchNormalization creates a BatchNormalization layer. iter is the number
// of training passes already folded into the running statistics.
func NewBatchNormalization(name string, iter int) *BatchNormalization {
	return &BatchNormalization{base: base{name: name}, iter: iter}
}

// Kind implements Layer.
func (l *BatchNormalization) Kind() Kind { return KindBatchNormalization }

// InferShape implements Layer.
func (l *BatchNormalization) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if l.params != nil && l.params[bnGamma].Channels() != in[0].Channels() {
		return nil, shapeErrorf(l, "input has %d channels, statistics expect %d", in[0].Channels(), l.params[bnGamma].Channels())
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *BatchNormalization) Setup(in []tensor.Shape) error {
	if l.params != nil {
		return nil
	}
	l.params = channelParams(in[0].Channels(), 6)
	for _, i := range []int{bnMean, bnVar, bnRunningMean, bnRunningVar} {
		l.params[i].SetTrainable(false)
	}
	Constant(l.params[bnRunningVar].Data(), 1)
	Constant(l.params[bnGamma].Data(), 1)
	return nil
}

// Forward implements Layer.
func (l *BatchNormalization) Forward(in, out []*tensor.Tensor, train bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	s := in[0].Shape()
	x, y := in[0].Data(), out[0].Data()
	mean, variance := l.params[bnMean].Data(), l.params[bnVar].Data()
	rmean, rvar := l.params[bnRunningMean].Data(), l.params[bnRunningVar].Data()
	gamma, beta := l.params[bnGamma].Data(), l.params[bnBeta].Data()
	l.xhat = growFloats(l.xhat, len(x))
	l.lastTrain = train

	useMean, useVar := rmean, rvar
	if train {
		channelStats(x, s, mean, variance)
		if l.iter == 0 {
			copy(rmean, mean)
			copy(rvar, variance)
		} else {
			for c := range rmean {
				rmean[c] = runningMomentum*rmean[c] + (1-runningMomentum)*mean[c]
				rvar[c] = runningMomentum*rvar[c] + (1-runningMomentum)*variance[c]
			}
		}
		l.iter++
		useMean, useVar = mean, variance
	}

	plane := s.Height() * s.Width()
	parallel.For(s.Channels(), func(c int) {
		inv := invStd(useVar[c])
		forEachInChannel(s, c, plane, func(i int) {
			l.xhat[i] = (x[i] - useMean[c]) * inv
			y[i] = gamma[c]*l.xhat[i] + beta[c]
		})
	}, parallel.BatchConfig())
	return nil
}

// Backward implements Layer.
func (l *BatchNormalization) Backward(in, out []*tensor.Tensor) error {
	s := in[0].Shape()
	dy, dx := out[0].Grad(), in[0].Grad()
	gamma := l.params[bnGamma].Data()
	dgamma, dbeta := l.params[bnGamma].Grad(), l.params[bnBeta].Grad()
	variance := l.params[bnVar].Data()
	if !l.lastTrain {
		variance = l.params[bnRunningVar].Data()
	}
	plane := s.Height() * s.Width()
	m := float32(s.Num() * plane)

	parallel.For(s.Channels(), func(c int) {
		var sumDy, sumDyXhat float32
		forEachInChannel(s, c, plane, func(i int) {
			sumDy += dy[i]
			sumDyXhat += dy[i] * l.xhat[i]
		})
		dgamma[c] += sumDyXhat
		dbeta[c] += sumDy
		k := gamma[c] * invStd(variance[c])
		if !l.lastTrain {
			forEachInChannel(s, c, plane, func(i int) { dx[i] += k * dy[i] })
			return
		}
		forEachInChannel(s, c, plane, func(i int) {
			dx[i] += k * (dy[i] - sumDy/m - l.xhat[i]*sumDyXhat/m)
		})
	}, parallel.BatchConfig())
	return nil
}

// HyperParams implements Layer.
func (l *BatchNormalization) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["iter"] = l.iter
	return hp
}

// InstanceNormalization normalizes each (sample, channel) plane over (h, w)
// with per-channel gamma and beta, both (1, c, 1, 1). Planes must hold more
// than one element.
type InstanceNormalization struct {
	base
	xhat   []float32
	invStd []float32
}

// NewInstanceNormalization creates an InstanceNormalization layer.
func NewInstanceNormalization(name string) *InstanceNormalization {
	return &InstanceNormalization{base: base{name: name}}
}

// Kind implements Layer.
func (l *InstanceNormalization) Kind() Kind { return KindInstanceNormalization }

// InferShape implements Layer.
func (l *InstanceNormalization) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if in[0].Height()*in[0].Width() == 1 {
		return nil, shapeErrorf(l, "spatial size of %v must exceed 1", in[0])
	}
	if l.params != nil && l.params[0].Channels() != in[0].Channels() {
		return nil, shapeErrorf(l, "input has %d channels, gamma expects %d", in[0].Channels(), l.params[0].Channels())
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *InstanceNormalization) Setup(in []tensor.Shape) error {
	if l.params != nil {
		return nil
	}
	l.params = channelParams(in[0].Channels(), 2)
	Constant(l.params[0].Data(), 1)
	return nil
}

// Forward implements Layer.
func (l *InstanceNormalization) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	s := in[0].Shape()
	x, y := in[0].Data(), out[0].Data()
	gamma, beta := l.params[0].Data(), l.params[1].Data()
	channels, plane := s.Channels(), s.Height()*s.Width()
	l.xhat = growFloats(l.xhat, len(x))
	l.invStd = growFloats(l.invStd, s.Num()*channels)

	parallel.ForBatch(s.Num(), channels, func(n, c int) {
		g := n*channels + c
		xs := x[g*plane : (g+1)*plane]
		var mean, variance float32
		for _, v := range xs {
			mean += v
		}
		mean /= float32(plane)
		for _, v := range xs {
			variance += (v - mean) * (v - mean)
		}
		inv := invStd(variance / float32(plane))
		l.invStd[g] = inv
		for p, v := range xs {
			i := g*plane + p
			l.xhat[i] = (v - mean) * inv
			y[i] = gamma[c]*l.xhat[i] + beta[c]
		}
	}, parallel.BatchConfig())
	return nil
}

// Backward implements Layer.
func (l *InstanceNormalization) Backward(in, out []*tensor.Tensor) error {
	s := in[0].Shape()
	dy, dx := out[0].Grad(), in[0].Grad()
	gamma := l.params[0].Data()
	dgamma, dbeta := l.params[0].Grad(), l.params[1].Grad()
	channels, plane := s.Channels(), s.Height()*s.Width()
	m := float32(plane)

	sumDy := make([]float32, s.Num()*channels)
	sumDyXhat := make([]float32, s.Num()*channels)
	parallel.ForBatch(s.Num(), channels, func(n, c int) {
		g := n*channels + c
		for p := 0; p < plane; p++ {
			i := g*plane + p
			sumDy[g] += dy[i]
			sumDyXhat[g] += dy[i] * l.xhat[i]
		}
		k := gamma[c] * l.invStd[g]
		for p := 0; p < plane; p++ {
			i := g*plane + p
			dx[i] += k * (dy[i] - sumDy[g]/m - l.xhat[i]*sumDyXhat[g]/m)
		}
	}, parallel.BatchConfig())
	for g := range sumDy {
		dgamma[g%channels] += sumDyXhat[g]
		dbeta[g%channels] += sumDy[g]
	}
	return nil
}

// HyperParams implements Layer.
func (l *InstanceNormalization) HyperParams() HyperParams { return NewHyperParams() }

// channelParams allocates count zeroed trainable (1, c, 1, 1) tensors.
func channelParams(channels, count int) []*tensor.Tensor {
	params := make([]*tensor.Tensor, count)
	for i := range params {
		params[i] = tensor.New(tensor.NewShape(1, channels, 1, 1))
	}
	return params
}

// channelStats writes per-channel mean and biased variance of x.
func channelStats(x []float32, s tensor.Shape, mean, variance []float32) {
	plane := s.Height() * s.Width()
	m := float64(s.Num() * plane)
	parallel.For(s.Channels(), func(c int) {
		var sum float64
		forEachInChannel(s, c, plane, func(i int) { sum += float64(x[i]) })
		mu := sum / m
		var sq float64
		forEachInChannel(s, c, plane, func(i int) {
			d := float64(x[i]) - mu
			sq += d * d
		})
		mean[c], variance[c] = float32(mu), float32(sq/m)
	}, parallel.BatchConfig())
}

// forEachInChannel calls f with every flat index of channel c.
func forEachInChannel(s tensor.Shape, c, plane int, f func(i int)) {
	stride := s.Channels() * plane
	for n := 0; n < s.Num(); n++ {
		off := n*stride + c*plane
		for p := 0; p < plane; p++ {
			f(off + p)
		}
	}
}

func invStd(variance float32) float32 {
	return float32(1 / math.Sqrt(float64(variance)+normEps))
}

func growFloats(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
