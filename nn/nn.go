// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/nn"
)

// Layer is the operation contract implemented by every layer kind.
type Layer = nn.Layer

// Kind enumerates the layer kinds.
type Kind = nn.Kind

// Layer kinds.
const (
	KindAdd                   = nn.KindAdd
	KindDense                 = nn.KindDense
	KindConvolution           = nn.KindConvolution
	KindDeconvolution         = nn.KindDeconvolution
	KindPooling               = nn.KindPooling
	KindActivation            = nn.KindActivation
	KindSoftmax               = nn.KindSoftmax
	KindConcatenate           = nn.KindConcatenate
	KindReshape               = nn.KindReshape
	KindDropout               = nn.KindDropout
	KindBatchNormalization    = nn.KindBatchNormalization
	KindInstanceNormalization = nn.KindInstanceNormalization
	KindPixelShuffle          = nn.KindPixelShuffle
	KindPaddingImage          = nn.KindPaddingImage
	KindCroppingImage         = nn.KindCroppingImage
	KindBatchMiddleSplit      = nn.KindBatchMiddleSplit
	KindSoftmaxLoss           = nn.KindSoftmaxLoss
	KindSigmoidLoss           = nn.KindSigmoidLoss
	KindFocalLoss             = nn.KindFocalLoss
	KindL2Loss                = nn.KindL2Loss
	KindArgMax                = nn.KindArgMax
	KindAccuracy              = nn.KindAccuracy
)

// HyperParams is the generic map view of a layer configuration.
type HyperParams = nn.HyperParams

// ShapeError reports a violated shape precondition.
type ShapeError = nn.ShapeError

// Errors.
var (
	ErrShapeMismatch = nn.ErrShapeMismatch
	ErrInvalidConfig = nn.ErrInvalidConfig
	ErrUnknownKind   = nn.ErrUnknownKind
)

// New rebuilds a layer of the given kind from its hyper-parameters.
func New(kind Kind, name string, hp HyperParams) (Layer, error) {
	return nn.New(kind, name, hp)
}

// ParseKind returns the kind with the given persisted name.
func ParseKind(name string) (Kind, error) {
	return nn.ParseKind(name)
}

// SetSeed reseeds parameter initialization.
func SetSeed(seed uint64) {
	nn.SetSeed(seed)
}

// Dense

// DenseConfig configures a Dense layer.
type DenseConfig = nn.DenseConfig

// Dense is a fully connected layer.
type Dense = nn.Dense

// NewDense creates a Dense layer.
func NewDense(name string, cfg DenseConfig) (*Dense, error) {
	return nn.NewDense(name, cfg)
}

// Convolution

// ConvConfig configures Convolution and Deconvolution layers.
type ConvConfig = nn.ConvConfig

// Padding modes for ConvConfig.
const (
	PaddingValid = cpu.PaddingValid
	PaddingSame  = cpu.PaddingSame
)

// Convolution is a 2-D convolution over (c, h, w) planes.
type Convolution = nn.Convolution

// NewConvolution creates a Convolution layer.
func NewConvolution(name string, cfg ConvConfig) (*Convolution, error) {
	return nn.NewConvolution(name, cfg)
}

// Deconvolution is a transposed 2-D convolution.
type Deconvolution = nn.Deconvolution

// NewDeconvolution creates a Deconvolution layer.
func NewDeconvolution(name string, cfg ConvConfig) (*Deconvolution, error) {
	return nn.NewDeconvolution(name, cfg)
}

// Pooling

// PoolMode selects max, average or stochastic pooling.
type PoolMode = nn.PoolMode

// Pooling modes.
const (
	PoolMax    = nn.PoolMax
	PoolAvg    = nn.PoolAvg
	PoolRandom = nn.PoolRandom
)

// PoolConfig configures a Pooling layer.
type PoolConfig = nn.PoolConfig

// Pooling reduces each window of each channel to one value.
type Pooling = nn.Pooling

// NewPooling creates a Pooling layer.
func NewPooling(name string, cfg PoolConfig) (*Pooling, error) {
	return nn.NewPooling(name, cfg)
}

// Activations

// ActivationFunc names an element-wise nonlinearity.
type ActivationFunc = nn.ActivationFunc

// Activation functions.
const (
	ReLU      = nn.ReLU
	LeakyReLU = nn.LeakyReLU
	ReLU6     = nn.ReLU6
	Sigmoid   = nn.Sigmoid
	Tanh      = nn.Tanh
	ELU       = nn.ELU
	SELU      = nn.SELU
	PReLU     = nn.PReLU
	Sin       = nn.Sin
)

// ActivationConfig configures an Activation layer.
type ActivationConfig = nn.ActivationConfig

// Activation applies an element-wise nonlinearity.
type Activation = nn.Activation

// NewActivation creates an Activation layer.
func NewActivation(name string, cfg ActivationConfig) (*Activation, error) {
	return nn.NewActivation(name, cfg)
}

// Softmax normalizes over the channel axis.
type Softmax = nn.Softmax

// NewSoftmax creates a Softmax layer.
func NewSoftmax(name string) *Softmax {
	return nn.NewSoftmax(name)
}

// Structural layers

// Add sums two or more same-shape inputs.
type Add = nn.Add

// NewAdd creates an Add layer.
func NewAdd(name string) *Add {
	return nn.NewAdd(name)
}

// Concatenate joins its inputs along one axis.
type Concatenate = nn.Concatenate

// NewConcatenate creates a Concatenate layer along axis 0..3.
func NewConcatenate(name string, axis int) (*Concatenate, error) {
	return nn.NewConcatenate(name, axis)
}

// Reshape changes the shape keeping the element order.
type Reshape = nn.Reshape

// NewReshape creates a Reshape layer; at most one dimension may be -1.
func NewReshape(name string, n, c, h, w int) (*Reshape, error) {
	return nn.NewReshape(name, n, c, h, w)
}

// PixelShuffle moves channel blocks into space.
type PixelShuffle = nn.PixelShuffle

// NewPixelShuffle creates a PixelShuffle layer.
func NewPixelShuffle(name string, factor int) (*PixelShuffle, error) {
	return nn.NewPixelShuffle(name, factor)
}

// Border is a per-edge pixel count.
type Border = nn.Border

// PaddingImage pads the spatial borders with a constant.
type PaddingImage = nn.PaddingImage

// NewPaddingImage creates a PaddingImage layer.
func NewPaddingImage(name string, border Border, value float32) (*PaddingImage, error) {
	return nn.NewPaddingImage(name, border, value)
}

// CroppingImage removes spatial borders.
type CroppingImage = nn.CroppingImage

// NewCroppingImage creates a CroppingImage layer.
func NewCroppingImage(name string, border Border) (*CroppingImage, error) {
	return nn.NewCroppingImage(name, border)
}

// BatchMiddleSplit splits the batch axis into two halves.
type BatchMiddleSplit = nn.BatchMiddleSplit

// NewBatchMiddleSplit creates a BatchMiddleSplit layer.
func NewBatchMiddleSplit(name string) *BatchMiddleSplit {
	return nn.NewBatchMiddleSplit(name)
}

// Regularization and normalization

// Dropout is inverted dropout.
type Dropout = nn.Dropout

// NewDropout creates a Dropout layer keeping each value with keepProb.
func NewDropout(name string, keepProb float32) (*Dropout, error) {
	return nn.NewDropout(name, keepProb)
}

// BatchNormalization normalizes each channel over the batch.
type BatchNormalization = nn.BatchNormalization

// NewBatchNormalization creates a BatchNormalization layer; iter is the
// number of training passes already seen.
func NewBatchNormalization(name string, iter int) *BatchNormalization {
	return nn.NewBatchNormalization(name, iter)
}

// InstanceNormalization normalizes each channel of each sample.
type InstanceNormalization = nn.InstanceNormalization

// NewInstanceNormalization creates an InstanceNormalization layer.
func NewInstanceNormalization(name string) *InstanceNormalization {
	return nn.NewInstanceNormalization(name)
}

// Losses and metrics

// SoftmaxLoss is softmax cross-entropy against class-index labels.
type SoftmaxLoss = nn.SoftmaxLoss

// NewSoftmaxLoss creates a SoftmaxLoss layer.
func NewSoftmaxLoss(name string) *SoftmaxLoss {
	return nn.NewSoftmaxLoss(name)
}

// SigmoidLoss is binary cross-entropy on logits.
type SigmoidLoss = nn.SigmoidLoss

// NewSigmoidLoss creates a SigmoidLoss layer.
func NewSigmoidLoss(name string) *SigmoidLoss {
	return nn.NewSigmoidLoss(name)
}

// FocalLoss is the focal variant of SoftmaxLoss.
type FocalLoss = nn.FocalLoss

// NewFocalLoss creates a FocalLoss layer.
func NewFocalLoss(name string, gamma float32) (*FocalLoss, error) {
	return nn.NewFocalLoss(name, gamma)
}

// L2Loss is the mean squared error.
type L2Loss = nn.L2Loss

// NewL2Loss creates an L2Loss layer.
func NewL2Loss(name string) *L2Loss {
	return nn.NewL2Loss(name)
}

// ArgMax outputs the index of the largest channel.
type ArgMax = nn.ArgMax

// NewArgMax creates an ArgMax layer.
func NewArgMax(name string) *ArgMax {
	return nn.NewArgMax(name)
}

// Accuracy outputs the fraction of correct predictions.
type Accuracy = nn.Accuracy

// NewAccuracy creates an Accuracy layer.
func NewAccuracy(name string) *Accuracy {
	return nn.NewAccuracy(name)
}
