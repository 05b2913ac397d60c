package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/parallel"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// PoolMode selects the pooling reduction.
type PoolMode string

// Pooling modes.
const (
	PoolMax    PoolMode = "max"
	PoolAvg    PoolMode = "avg"
	PoolRandom PoolMode = "random" // Stochastic pooling; averages at inference.
)

// PoolConfig configures a Pooling layer.
type PoolConfig struct {
	Mode             PoolMode // Default: max.
	KernelH, KernelW int      // Window size (required).
	StrideH, StrideW int      // Default: kernel size.
	PadH, PadW       int      // Explicit zero padding.
}

// Pooling reduces each window of each channel to one value.
//
// Output extent per axis is ceil((in + 2*pad - k)/stride) + 1; windows that
// run past the border are clipped.
type Pooling struct {
	base
	cfg   PoolConfig
	mask  []int
	seed  uint64
	calls uint64
}

// NewPooling creates a Pooling layer.
func NewPooling(name string, cfg PoolConfig) (*Pooling, error) {
	if cfg.Mode == "" {
		cfg.Mode = PoolMax
	}
	switch cfg.Mode {
	case PoolMax, PoolAvg, PoolRandom:
	default:
		return nil, configErrorf(KindPooling, "unknown mode %q", cfg.Mode)
	}
	if cfg.KernelH <= 0 || cfg.KernelW <= 0 {
		return nil, configErrorf(KindPooling, "kernel %dx%d must be positive", cfg.KernelH, cfg.KernelW)
	}
	if cfg.StrideH == 0 {
		cfg.StrideH = cfg.KernelH
	}
	if cfg.StrideW == 0 {
		cfg.StrideW = cfg.KernelW
	}
	if cfg.StrideH < 0 || cfg.StrideW < 0 || cfg.PadH < 0 || cfg.PadW < 0 {
		return nil, configErrorf(KindPooling, "stride %dx%d and pad %dx%d must not be negative",
			cfg.StrideH, cfg.StrideW, cfg.PadH, cfg.PadW)
	}
	return &Pooling{base: base{name: name}, cfg: cfg, seed: NewRand().Uint64()}, nil
}

// Kind implements Layer.
func (l *Pooling) Kind() Kind { return KindPooling }

func (l *Pooling) geometry(in tensor.Shape) (cpu.Geometry, error) {
	oh, err := cpu.PoolOutputSize(in.Height(), l.cfg.KernelH, l.cfg.StrideH, l.cfg.PadH)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	ow, err := cpu.PoolOutputSize(in.Width(), l.cfg.KernelW, l.cfg.StrideW, l.cfg.PadW)
	if err != nil {
		return cpu.Geometry{}, shapeErrorf(l, "%v", err)
	}
	return cpu.Geometry{
		Channels: in.Channels(), Height: in.Height(), Width: in.Width(),
		KernelH: l.cfg.KernelH, KernelW: l.cfg.KernelW,
		StrideH: l.cfg.StrideH, StrideW: l.cfg.StrideW,
		PadH: l.cfg.PadH, PadW: l.cfg.PadW,
		OutH: oh, OutW: ow,
	}, nil
}

// InferShape implements Layer.
func (l *Pooling) InferShape(in []tensor.Shape) ([]tensor.Shape, error) {
	if err := expectInputs(l, in, 1); err != nil {
		return nil, err
	}
	g, err := l.geometry(in[0])
	if err != nil {
		return nil, err
	}
	return []tensor.Shape{tensor.NewShape(in[0].Num(), in[0].Channels(), g.OutH, g.OutW)}, nil
}

// Setup implements Layer.
func (l *Pooling) Setup([]tensor.Shape) error { return nil }

// Forward implements Layer.
func (l *Pooling) Forward(in, out []*tensor.Tensor, train bool) error {
	if err := reshapeOutputs(l, in, out); err != nil {
		return err
	}
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cfg := parallel.BatchConfig()
	x, y, n := in[0].Data(), out[0].Data(), in[0].Num()
	switch l.effectiveMode(train) {
	case PoolMax:
		l.mask = growMask(l.mask, out[0].Count())
		cpu.MaxPoolForward(x, y, l.mask, n, g, cfg)
	case PoolRandom:
		l.mask = growMask(l.mask, out[0].Count())
		l.calls++
		cpu.RandomPoolForward(x, y, l.mask, n, g, l.seed+l.calls, cfg)
	default:
		l.mask = l.mask[:0]
		cpu.AvgPoolForward(x, y, n, g, cfg)
	}
	return nil
}

// Backward implements Layer.
func (l *Pooling) Backward(in, out []*tensor.Tensor) error {
	g, err := l.geometry(in[0].Shape())
	if err != nil {
		return err
	}
	cfg := parallel.BatchConfig()
	if len(l.mask) == out[0].Count() && l.cfg.Mode != PoolAvg {
		cpu.MaskPoolBackward(out[0].Grad(), in[0].Grad(), l.mask, in[0].Num(), g, cfg)
		return nil
	}
	cpu.AvgPoolBackward(out[0].Grad(), in[0].Grad(), in[0].Num(), g, cfg)
	return nil
}

// effectiveMode maps random pooling to average pooling outside training.
func (l *Pooling) effectiveMode(train bool) PoolMode {
	if l.cfg.Mode == PoolRandom && !train {
		return PoolAvg
	}
	return l.cfg.Mode
}

// HyperParams implements Layer.
func (l *Pooling) HyperParams() HyperParams {
	hp := NewHyperParams()
	hp.Strings["mode"] = string(l.cfg.Mode)
	hp.Ints["kernel_h"] = l.cfg.KernelH
	hp.Ints["kernel_w"] = l.cfg.KernelW
	hp.Ints["stride_h"] = l.cfg.StrideH
	hp.Ints["stride_w"] = l.cfg.StrideW
	hp.Ints["pad_h"] = l.cfg.PadH
	hp.Ints["pad_w"] = l.cfg.PadW
	return hp
}

func growMask(mask []int, n int) []int {
	if cap(mask) < n {
		return make([]int, n)
	}
	return mask[:n]
}
