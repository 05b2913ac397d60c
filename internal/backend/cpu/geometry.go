package cpu

import (
	"github.com/pkg/errors"
)

// Padding selects how a sliding window treats image borders.
type Padding string

// Padding modes.
const (
	PaddingValid Padding = "valid" // No padding; windows stay inside the image.
	PaddingSame  Padding = "same"  // Symmetric zero padding so out = ceil(in/stride).
)

// ErrInvalidGeometry is returned when a window configuration yields no output.
var ErrInvalidGeometry = errors.New("invalid window geometry")

// Geometry describes a sliding window over a C×H×W image stack and the
// resulting OutH×OutW grid of window positions.
//
// For convolution and pooling the image is the layer input. For
// deconvolution the image is the layer output and the grid is the input.
type Geometry struct {
	Channels, Height, Width int
	KernelH, KernelW        int
	StrideH, StrideW        int
	PadH, PadW              int
	OutH, OutW              int
}

// ColRows returns the number of rows of the column matrix (C*KH*KW).
func (g Geometry) ColRows() int { return g.Channels * g.KernelH * g.KernelW }

// ColCols returns the number of columns of the column matrix (OutH*OutW).
func (g Geometry) ColCols() int { return g.OutH * g.OutW }

// ImageSize returns C*H*W.
func (g Geometry) ImageSize() int { return g.Channels * g.Height * g.Width }

// window returns the clipped [hs, he) × [ws, we) input window of cell (oh, ow).
func (g Geometry) window(oh, ow int) (hs, he, ws, we int) {
	hs = oh*g.StrideH - g.PadH
	ws = ow*g.StrideW - g.PadW
	he = min(hs+g.KernelH, g.Height)
	we = min(ws+g.KernelW, g.Width)
	hs = max(hs, 0)
	ws = max(ws, 0)
	return hs, he, ws, we
}

// ConvOutputSize returns the output extent and leading pad of a convolution
// along one axis.
//
// "same": out = ceil(in/stride), pad = floor(total/2) where total is the
// padding needed for out windows. Any odd remainder falls on the trailing
// edge. "valid": out = floor((in-kernel)/stride) + 1, pad = 0.
func ConvOutputSize(in, kernel, stride int, padding Padding) (out, pad int, err error) {
	if in <= 0 || kernel <= 0 || stride <= 0 {
		return 0, 0, errors.Wrapf(ErrInvalidGeometry, "conv: in=%d kernel=%d stride=%d", in, kernel, stride)
	}
	switch padding {
	case PaddingSame:
		out = (in + stride - 1) / stride
		total := max((out-1)*stride+kernel-in, 0)
		return out, total / 2, nil
	case PaddingValid, "":
		if kernel > in {
			return 0, 0, errors.Wrapf(ErrInvalidGeometry, "conv: kernel %d larger than input %d with valid padding", kernel, in)
		}
		return (in-kernel)/stride + 1, 0, nil
	default:
		return 0, 0, errors.Errorf("conv: unknown padding %q", padding)
	}
}

// DeconvOutputSize returns the output extent and pad of a transposed
// convolution along one axis.
//
// "valid": out = (in-1)*stride + kernel, pad = 0.
// "same": out = in*stride, pad = ((in-1)*stride + kernel - out)/2, floored at 0.
func DeconvOutputSize(in, kernel, stride int, padding Padding) (out, pad int, err error) {
	if in <= 0 || kernel <= 0 || stride <= 0 {
		return 0, 0, errors.Wrapf(ErrInvalidGeometry, "deconv: in=%d kernel=%d stride=%d", in, kernel, stride)
	}
	switch padding {
	case PaddingSame:
		out = in * stride
		return out, max(((in-1)*stride+kernel-out)/2, 0), nil
	case PaddingValid, "":
		return (in-1)*stride + kernel, 0, nil
	default:
		return 0, 0, errors.Errorf("deconv: unknown padding %q", padding)
	}
}

// PoolOutputSize returns ceil((in + 2*pad - kernel)/stride) + 1.
func PoolOutputSize(in, kernel, stride, pad int) (int, error) {
	if in <= 0 || kernel <= 0 || stride <= 0 || pad < 0 {
		return 0, errors.Wrapf(ErrInvalidGeometry, "pool: in=%d kernel=%d stride=%d pad=%d", in, kernel, stride, pad)
	}
	span := in + 2*pad - kernel
	if span < 0 {
		return 0, errors.Wrapf(ErrInvalidGeometry, "pool: kernel %d larger than padded input %d", kernel, in+2*pad)
	}
	return (span+stride-1)/stride + 1, nil
}
