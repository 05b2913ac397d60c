package nn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the layer kinds.
type Kind int

// Layer kinds. The string form of each kind is its persisted type name.
const (
	KindAdd Kind = iota
	KindDense
	KindConvolution
	KindDeconvolution
	KindPooling
	KindActivation
	KindSoftmax
	KindConcatenate
	KindReshape
	KindDropout
	KindBatchNormalization
	KindInstanceNormalization
	KindPixelShuffle
	KindPaddingImage
	KindCroppingImage
	KindBatchMiddleSplit
	KindSoftmaxLoss
	KindSigmoidLoss
	KindFocalLoss
	KindL2Loss
	KindArgMax
	KindAccuracy

	numKinds
)

var kindNames = [numKinds]string{
	KindAdd:                   "Add",
	KindDense:                 "Dense",
	KindConvolution:           "Convolution",
	KindDeconvolution:         "Deconvolution",
	KindPooling:               "Pooling",
	KindActivation:            "Activation",
	KindSoftmax:               "Softmax",
	KindConcatenate:           "Concatenate",
	KindReshape:               "Reshape",
	KindDropout:               "Dropout",
	KindBatchNormalization:    "BatchNormalization",
	KindInstanceNormalization: "InstanceNormalization",
	KindPixelShuffle:          "PixelShuffle",
	KindPaddingImage:          "PaddingImage",
	KindCroppingImage:         "CroppingImage",
	KindBatchMiddleSplit:      "BatchMiddleSplit",
	KindSoftmaxLoss:           "SoftmaxLoss",
	KindSigmoidLoss:           "SigmoidLoss",
	KindFocalLoss:             "FocalLoss",
	KindL2Loss:                "L2Loss",
	KindArgMax:                "ArgMax",
	KindAccuracy:              "Accuracy",
}

// String returns the persisted type name of the kind.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every layer kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind maps a persisted type name back to its kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", name)
}
