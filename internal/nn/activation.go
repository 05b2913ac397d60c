package nn

import (
	"math"

	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// ActivationFunc names an element-wise nonlinearity.
type ActivationFunc string

// Supported activations.
const (
	ReLU      ActivationFunc = "relu"
	LeakyReLU ActivationFunc = "leaky_relu"
	ReLU6     ActivationFunc = "relu6"
	Sigmoid   ActivationFunc = "sigmoid"
	Tanh      ActivationFunc = "tanh"
	ELU       ActivationFunc = "elu"
	SELU      ActivationFunc = "selu"
	PReLU     ActivationFunc = "prelu"
	Sin       ActivationFunc = "sin"
)

// SELU constants.
const (
	seluAlpha  = 1.67326324
	seluLambda = 1.05070099
)

// preluInit is the initial per-channel PReLU slope.
const preluInit = 0.25

// ActivationConfig configures an Activation layer.
type ActivationConfig struct {
	Func       ActivationFunc
	LeakyAlpha float32 // leaky_relu slope (default: 0.2).
}

// Activation applies an element-wise nonlinearity. PReLU carries one
// trainable slope per channel, shaped (1, c, 1, 1).
type Activation struct {
	base
	cfg ActivationConfig
}

// NewActivation creates an Activation layer.
func NewActivation(name string, cfg ActivationConfig) (*Activation, error) {
	switch cfg.Func {
	case ReLU, LeakyReLU, ReLU6, Sigmoid, Tanh, ELU, SELU, PReLU, Sin:
	default:
		return nil, configErrorf(KindActivation, "unknown activation %q", cfg.Func)
	}
	if cfg.LeakyAlpha == 0 {
		cfg.LeakyAlpha = 0.2
	}
	return &Activation{base: base{name: name}, cfg: cfg}, nil
}

// Kind implements Layer.
func (l *Activation) Kind() Kind { return KindActivation }

// InferShape implements Layer.
func (l *Activation) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if l.cfg.Func == PReLU && l.params != nil && l.params[0].Channels() != in[0].Channels() {
		return nil, shapeErrorf(l, "input has %d channels, slopes expect %d", in[0].Channels(), l.params[0].Channels())
	}
	return []tensor.Shape{in[0]}, nil
}

// Setup implements Layer.
func (l *Activation) Setup(in []tensor.Shape) error {
	if l.cfg.Func != PReLU || l.params != nil {
		return nil
	}
	slope := tensor.New(tensor.NewShape(1, in[0].Channels(), 1, 1))
	Constant(slope.Data(), preluInit)
	l.params = []*tensor.Tensor{slope}
	return nil
}

// Forward implements Layer.
func (l *Activation) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	x, y := in[0].Data(), out[0].Data()
	if l.cfg.Func == PReLU {
		plane := in[0].Height() * in[0].Width()
		slope := l.params[0].Data()
		parallel.ForRange(len(x), func(start, end int) {
			for i := start; i < end; i++ {
				if x[i] > 0 {
					y[i] = x[i]
				} else {
					y[i] = slope[(i/plane)%len(slope)] * x[i]
				}
			}
		}, parallel.DefaultConfig())
		return nil
	}
	f := l.forwardFunc()
	parallel.ForRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			y[i] = f(x[i])
		}
	}, parallel.DefaultConfig())
	return nil
}

// Backward implements Layer.
func (l *Activation) Backward(in, out []*tensor.Tensor) error {
	x, y, dy, dx := in[0].Data(), out[0].Data(), out[0].Grad(), in[0].Grad()
	if l.cfg.Func == PReLU {
		plane := in[0].Height() * in[0].Width()
		slope, dslope := l.params[0].Data(), l.params[0].Grad()
		// Slope gradients collide across samples; keep it serial.
		for i := range x {
			c := (i / plane) % len(slope)
			if x[i] > 0 {
				dx[i] += dy[i]
			} else {
				dx[i] += slope[c] * dy[i]
				dslope[c] += x[i] * dy[i]
			}
		}
		return nil
	}
	df := l.derivative()
	parallel.ForRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			dx[i] += df(x[i], y[i]) * dy[i]
		}
	}, parallel.DefaultConfig())
	return nil
}

func (l *Activation) forwardFunc() func(float32) float32 {
	alpha := l.cfg.LeakyAlpha
	switch l.cfg.Func {
	case ReLU:
		return func(x float32) float32 { return max(x, 0) }
	case LeakyReLU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return alpha * x
		}
	case ReLU6:
		return func(x float32) float32 { return min(max(x, 0), 6) }
	case Sigmoid:
		return sigmoid
	case Tanh:
		return func(x float32) float32 { return float32(math.Tanh(float64(x))) }
	case ELU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return float32(math.Expm1(float64(x)))
		}
	case SELU:
		return func(x float32) float32 {
			if x > 0 {
				return seluLambda * x
			}
			return seluLambda * seluAlpha * float32(math.Expm1(float64(x)))
		}
	default:
		return func(x float32) float32 { return float32(math.Sin(float64(x))) }
	}
}

// derivative returns dy/dx given the input x and output y.
func (l *Activation) derivative() func(x, y float32) float32 {
	alpha := l.cfg.LeakyAlpha
	switch l.cfg.Func {
	case ReLU:
		return func(x, _ float32) float32 { return step(x > 0) }
	case LeakyReLU:
		return func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return alpha
		}
	case ReLU6:
		return func(x, _ float32) float32 { return step(x > 0 && x < 6) }
	case Sigmoid:
		return func(_, y float32) float32 { return y * (1 - y) }
	case Tanh:
		return func(_, y float32) float32 { return 1 - y*y }
	case ELU:
		return func(x, y float32) float32 {
			if x > 0 {
				return 1
			}
			return y + 1
		}
	case SELU:
		return func(x, y float32) float32 {
			if x > 0 {
				return seluLambda
			}
			return y + seluLambda*seluAlpha
		}
	default:
		return func(x, _ float32) float32 { return float32(math.Cos(float64(x))) }
	}
}

// HyperParams implements Layer.
func (l *Activation) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Strings["activation"] = string(l.cfg.Func)
	hp.Floats["leaky_alpha"] = l.cfg.LeakyAlpha
	hp.Floats["selu_alpha"] = seluAlpha
	hp.Floats["selu_lambda"] = seluLambda
	return hp
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func step(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
