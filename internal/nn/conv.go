package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// ConvConfig configures Convolution and Deconvolution layers.
type ConvConfig struct {
	Filters          int         // Output channels (required).
	KernelH, KernelW int         // Window size (required).
	StrideH, StrideW int         // Window step (default: 1).
	Padding          cpu.Padding // "valid" or "same" (default: "valid").
	InitMean         float32     // Weight init mean (default: 0).
	InitStddev       float32     // Weight init stddev (default: 0.1).
	BiasValue        float32     // Constant bias init (default: 0).
}

func (c *ConvConfig) normalize(kind Kind) error {
	if c.Filters <= 0 || c.KernelH <= 0 || c.KernelW <= 0 {
		return configErrorf(kind, "filters=%d kernel=%dx%d must be positive", c.Filters, c.KernelH, c.KernelW)
	}
	if c.StrideH == 0 {
		c.StrideH = 1
	}
	if c.StrideW == 0 {
		c.StrideW = 1
	}
	if c.StrideH < 0 || c.StrideW < 0 {
		return configErrorf(kind, "stride %dx%d must be positive", c.StrideH, c.StrideW)
	}
	switch c.Padding {
	case "":
		c.Padding = cpu.PaddingValid
	case cpu.PaddingValid, cpu.PaddingSame:
	default:
		return configErrorf(kind, "unknown padding %q", c.Padding)
	}
	if c.InitStddev == 0 {
		c.InitStddev = 0.1
	}
	return nil
}

func (c ConvConfig) hyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Strings["padding"] = string(c.Padding)
	hp.Ints["filters"] = c.Filters
	hp.Ints["kernel_h"] = c.KernelH
	hp.Ints["kernel_w"] = c.KernelW
	hp.Ints["stride_h"] = c.StrideH
	hp.Ints["stride_w"] = c.StrideW
	hp.Floats["init_mean"] = c.InitMean
	hp.Floats["init_stddev"] = c.InitStddev
	hp.Floats["init_bias_value"] = c.BiasValue
	return hp
}

func convConfigFrom(hp HyperParams) ConvConfig {
	return ConvConfig{
		Filters:    hp.Int("filters", 0),
		KernelH:    hp.Int("kernel_h", 0),
		KernelW:    hp.Int("kernel_w", 0),
		StrideH:    hp.Int("stride_h", 1),
		StrideW:    hp.Int("stride_w", 1),
		Padding:    cpu.Padding(hp.String("padding", string(cpu.PaddingValid))),
		InitMean:   hp.Float("init_mean", 0),
		InitStddev: hp.Float("init_stddev", 0.1),
		BiasValue:  hp.Float("init_bias_value", 0),
	}
}

// Convolution is a 2D convolution computed as im2col + gemm per sample.
//
// Parameters:
//   - weights: (filters, c, kh, kw)
//   - bias: (1, filters, 1, 1)
type Convolution struct {
	base
	cfg ConvConfig
}

// NewConvolution creates a Convolution layer.
func NewConvolution(name string, cfg ConvConfig) (*Convolution, error) {
	if err := cfg.normalize(KindConvolution); err != nil {
		return nil, err
	}
	return &Convolution{base: base{name: name}, cfg: cfg}, nil
}

// Kind implements Layer.
func (l *Convolution) Kind() Kind { return KindConvolution }

func (l *Convolution) geometry(in tensor.Shape) (cpu.Geometry, error) {
	oh, ph, err := cpu.ConvOutputSize(in.Height(), l.cfg.KernelH, l.cfg.StrideH, l.cfg.Padding)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	ow, pw, err := cpu.ConvOutputSize(in.Width(), l.cfg.KernelW, l.cfg.StrideW, l.cfg.Padding)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	return cpu.Geometry{
		Channels: in.Channels(), Height: in.Height(), Width: in.Width(),
		KernelH: l.cfg.KernelH, KernelW: l.cfg.KernelW,
		StrideH: l.cfg.StrideH, StrideW: l.cfg.StrideW,
		PadH: ph, PadW: pw,
		OutH: oh, OutW: ow,
	}, nil
}

// InferShape implements Layer.
func (l *Convolution) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if l.params != nil && l.params[0].Channels() != in[0].Channels() {
		return nil, shapeErrorf(l, "input has %d channels, weights expect %d", in[0].Channels(), l.params[0].Channels())
	}
	g, err := l.geometry(in[0])
	if err != nil {
		return nil, err
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), l.cfg.Filters, g.OutH, g.OutW)}, nil
}

// Setup implements Layer.
func (l *Convolution) Setup(in []tensor.Shape) error {
	if l.params != nil {
		return nil
	}
	w := tensor.New(tensor.NewShape(l.cfg.Filters, in[0].Channels(), l.cfg.KernelH, l.cfg.KernelW))
	b := tensor.New(tensor.NewShape(1, l.cfg.Filters, 1, 1))
	TruncatedNormal(w.Data(), l.cfg.InitMean, l.cfg.InitStddev)
	Constant(b.Data(), l.cfg.BiasValue)
	l.params = []*tensor.Tensor{w, b}
	return nil
}

// Forward implements Layer.
func (l *Convolution) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cpu.ConvForward(in[0].Data(), l.params[0].Data(), l.params[1].Data(), out[0].Data(),
		in[0].Num(), l.cfg.Filters, g, parallel.BatchConfig())
	return nil
}

// Backward implements Layer.
func (l *Convolution) Backward(in, out []*tensor.Tensor) error {
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cpu.ConvBackward(in[0].Data(), l.params[0].Data(), out[0].Grad(),
		in[0].Grad(), l.params[0].Grad(), l.params[1].Grad(),
		in[0].Num(), l.cfg.Filters, g, parallel.BatchConfig())
	return nil
}

// HyperParams implements Layer.
func (l *Convolution) HyperParams() HyperParams { return l.cfg.hyperParams() }

// Deconvolution is a transposed 2D convolution: the adjoint of Convolution
// with the same window configuration.
//
// Parameters:
//   - weights: (c, filters, kh, kw)
//   - bias: (1, filters, 1, 1)
//
// Output extent per axis is (in-1)*stride + k for "valid" and in*stride for
// "same".
type Deconvolution struct {
	base
	cfg ConvConfig
}

// NewDeconvolution creates a Deconvolution layer.
func NewDeconvolution(name string, cfg ConvConfig) (*Deconvolution, error) {
	if err := cfg.normalize(KindDeconvolution); err != nil {
		return nil, err
	}
	return &Deconvolution{base: base{name: name}, cfg: cfg}, nil
}

// Kind implements Layer.
func (l *Deconvolution) Kind() Kind { return KindDeconvolution }

// geometry describes the output image and the input grid.
func (l *Deconvolution) geometry(in tensor.Shape) (cpu.Geometry, error) {
	oh, ph, err := cpu.DeconvOutputSize(in.Height(), l.cfg.KernelH, l.cfg.StrideH, l.cfg.Padding)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	ow, pw, err := cpu.DeconvOutputSize(in.Width(), l.cfg.KernelW, l.cfg.StrideW, l.cfg.Padding)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	return cpu.Geometry{
		Channels: l.cfg.Filters, Height: oh, Width: ow,
		KernelH: l.cfg.KernelH, KernelW: l.cfg.KernelW,
		StrideH: l.cfg.StrideH, StrideW: l.cfg.StrideW,
		PadH: ph, PadW: pw,
		OutH: in.Height(), OutW: in.Width(),
	}, nil
}

// InferShape implements Layer.
func (l *Deconvolution) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	if l.params != nil && l.params[0].Num() != in[0].Channels() {
		return nil, shapeErrorf(l, "input has %d channels, weights expect %d", in[0].Channels(), l.params[0].Num())
	}
	g, err := l.geometry(in[0])
	if err != nil {
		return nil, err
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), l.cfg.Filters, g.Height, g.Width)}, nil
}

// Setup implements Layer.
func (l *Deconvolution) Setup(in []tensor.Shape) error {
	if l.params != nil {
		return nil
	}
	w := tensor.New(tensor.NewShape(in[0].Channels(), l.cfg.Filters, l.cfg.KernelH, l.cfg.KernelW))
	b := tensor.New(tensor.NewShape(1, l.cfg.Filters, 1, 1))
	TruncatedNormal(w.Data(), l.cfg.InitMean, l.cfg.InitStddev)
	Constant(b.Data(), l.cfg.BiasValue)
	l.params = []*tensor.Tensor{w, b}
	return nil
}

// Forward implements Layer.
func (l *Deconvolution) Forward(in, out []*tensor.Tensor, _ bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cpu.DeconvForward(in[0].Data(), l.params[0].Data(), l.params[1].Data(), out[0].Data(),
		in[0].Num(), in[0].Channels(), g, parallel.BatchConfig())
	return nil
}

// Backward implements Layer.
func (l *Deconvolution) Backward(in, out []*tensor.Tensor) error {
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cpu.DeconvBackward(in[0].Data(), l.params[0].Data(), out[0].Grad(),
		in[0].Grad(), l.params[0].Grad(), l.params[1].Grad(),
		in[0].Num(), in[0].Channels(), g, parallel.BatchConfig())
	return nil
}

// HyperParams implements Layer.
func (l *Deconvolution) HyperParams() HyperParams { return l.cfg.hyperParams() }
