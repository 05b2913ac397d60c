package nn

import (
	"github.com/pkg/errors"
)

// New rebuilds a layer of the given kind from its persisted hyper-parameters.
//
// Missing entries take the same defaults as the typed constructors.
// Parameters are not restored; callers pass them through SetParams.
func New(kind Kind, name string, hp HyperParams) (Layer, error) {
	switch kind {
	case KindAdd:
		return NewAdd(name), nil
	case KindDense:
		return checked(NewDense(name, DenseConfig{
			Units:      hp.Int("units", 0),
			InitMean:   hp.Float("init_mean", 0),
			InitStddev: hp.Float("init_stddev", 0.1),
			BiasValue:  hp.Float("init_bias_value", 0),
		}))
	case KindConvolution:
		return checked(NewConvolution(name, convConfigFrom(hp)))
	case KindDeconvolution:
		return checked(NewDeconvolution(name, convConfigFrom(hp)))
	case KindPooling:
		return checked(NewPooling(name, PoolConfig{
			Mode:    PoolMode(hp.String("mode", string(PoolMax))),
			KernelH: hp.Int("kernel_h", 0),
			KernelW: hp.Int("kernel_w", 0),
			StrideH: hp.Int("stride_h", 0),
			StrideW: hp.Int("stride_w", 0),
			PadH:    hp.Int("pad_h", 0),
			PadW:    hp.Int("pad_w", 0),
		}))
	case KindActivation:
		return checked(NewActivation(name, ActivationConfig{
			Func:       ActivationFunc(hp.String("activation", "")),
			LeakyAlpha: hp.Float("leaky_alpha", 0.2),
		}))
	case KindSoftmax:
		return NewSoftmax(name), nil
	case KindConcatenate:
		return checked(NewConcatenate(name, hp.Int("axis", 1)))
	case KindReshape:
		return checked(NewReshape(name, hp.Int("n", -1), hp.Int("c", 0), hp.Int("h", 0), hp.Int("w", 0)))
	case KindDropout:
		return checked(NewDropout(name, hp.Float("keep_prob", 0.5)))
	case KindBatchNormalization:
		return NewBatchNormalization(name, hp.Int("iter", 0)), nil
	case KindInstanceNormalization:
		return NewInstanceNormalization(name), nil
	case KindPixelShuffle:
		return checked(NewPixelShuffle(name, hp.Int("upscale_factor", 0)))
	case KindPaddingImage:
		return checked(NewPaddingImage(name, Border{
			Top:    hp.Int("padding_top", 0),
			Bottom: hp.Int("padding_bottom", 0),
			Left:   hp.Int("padding_left", 0),
			Right:  hp.Int("padding_right", 0),
		}, hp.Float("padding_value", 0)))
	case KindCroppingImage:
		return checked(NewCroppingImage(name, Border{
			Top:    hp.Int("cropping_top", 0),
			Bottom: hp.Int("cropping_bottom", 0),
			Left:   hp.Int("cropping_left", 0),
			Right:  hp.Int("cropping_right", 0),
		}))
	case KindBatchMiddleSplit:
		return NewBatchMiddleSplit(name), nil
	case KindSoftmaxLoss:
		return NewSoftmaxLoss(name), nil
	case KindSigmoidLoss:
		return NewSigmoidLoss(name), nil
	case KindFocalLoss:
		return checked(NewFocalLoss(name, hp.Float("gamma", 2)))
	case KindL2Loss:
		return NewL2Loss(name), nil
	case KindArgMax:
		return NewArgMax(name), nil
	case KindAccuracy:
		return NewAccuracy(name), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%v", kind)
}

// checked converts a typed constructor result to Layer without leaking a
// typed nil on error.
func checked[L Layer](l L, err error) (Layer, error) {
	if err != nil {
		return nil, err
	}
	return l, nil
}
