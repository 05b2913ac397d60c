package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// DenseConfig configures a fully connected layer.
type DenseConfig struct {
	Units      int     // Output features (required).
	InitMean   float32 // Weight init mean (default: 0).
	InitStddev float32 // Weight init stddev (default: 0.1).
	BiasValue  float32 // Constant bias init (default: 0).
}

// Dense is a fully connected layer: y = x·W + b.
//
// The input is flattened per sample, so an (n, c, h, w) input has
// in = c*h*w features.
//
// Parameters:
//   - weights: (in, units, 1, 1), truncated-normal init
//   - bias: (1, units, 1, 1), constant init
//
// Output shape: (n, units, 1, 1).
type Dense struct {
	base
	cfg DenseConfig
}

// NewDense creates a Dense layer. Parameters are allocated when the layer is
// first called on a tensor.
func NewDense(name string, cfg DenseConfig) (*Dense, error) {
	if cfg.Units <= 0 {
		return nil, configErrorf(KindDense, "units must be positive, got %d", cfg.Units)
	}
	if cfg.InitStddev == 0 {
		cfg.InitStddev = 0.1
	}
	return &Dense{base: base{name: name}, cfg: cfg}, nil
}

// Kind implements Layer.
func (l *Dense) Kind() Kind { return KindDense }

// InferShape implements Layer.
func (l *Dense) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if l.params != nil {
		if want := l.params[0].Num(); perSample(in[0]) != want {
			return nil, shapeErrorf(l, "input has %d features per sample, weights expect %d", perSample(in[0]), want)
		}
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), l.cfg.Units, 1, 1)}, nil
}

// Setup implements Layer.
func (l *Dense) Setup(in []tensor.Shape) error {
	if l.params != nil {
		return nil
	}
	w := tensor.New(tensor.NewShape(perSample(in[0]), l.cfg.Units, 1, 1))
	b := tensor.New(tensor.NewShape(1, l.cfg.Units, 1, 1))
	TruncatedNormal(w.Data(), l.cfg.InitMean, l.cfg.InitStddev)
	Constant(b.Data(), l.cfg.BiasValue)
	l.params = []*tensor.Tensor{w, b}
	return nil
}

// Forward implements Layer.
func (l *Dense) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	n, k, u := in[0].Num(), perSample(in[0].Shape()), l.cfg.Units
	w, b := l.params[0], l.params[1]

	cpu.Gemm(false, false, n, u, k, 1, in[0].Data(), w.Data(), 0, out[0].Data())
	cpu.GemmWith(parallel.Serial(), false, false, n, u, 1, 1, onesOf(n), b.Data(), 1, out[0].Data())
	return nil
}

// Backward implements Layer.
func (l *Dense) Backward(in, out []*tensor.Tensor) error {
	n, k, u := in[0].Num(), perSample(in[0].Shape()), l.cfg.Units
	w, b := l.params[0], l.params[1]
	dy := out[0].Grad()

	// dW += xᵀ·dy, db += 1ᵀ·dy, dx += dy·Wᵀ
	cpu.Gemm(true, false, k, u, n, 1, in[0].Data(), dy, 1, w.Grad())
	cpu.GemmWith(parallel.Serial(), true, false, 1, u, n, 1, onesOf(n), dy, 1, b.Grad())
	cpu.Gemm(false, true, n, k, u, 1, dy, w.Data(), 1, in[0].Grad())
	return nil
}

// HyperParams implements Layer.
func (l *Dense) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Ints["units"] = l.cfg.Units
	hp.Floats["init_mean"] = l.cfg.InitMean
	hp.Floats["init_stddev"] = l.cfg.InitStddev
	hp.Floats["init_bias_value"] = l.cfg.BiasValue
	return hp
}

func onesOf(n int) []float32 {
	ones := make([]float32, n)
	Constant(ones, 1)
	return ones
}
