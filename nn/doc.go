// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the MicroNet layers.
//
// # Overview
//
// Every layer implements Layer: shape inference, parameter setup, forward
// and backward over 4-D tensors. Layers carry no wiring; the autodiff graph
// connects them and schedules their passes.
//
//   - Linear and convolution: Dense, Convolution, Deconvolution
//   - Shape: Reshape, Concatenate, PixelShuffle, PaddingImage,
//     CroppingImage, BatchMiddleSplit
//   - Activations: Activation (relu, leaky_relu, relu6, sigmoid, tanh, elu,
//     selu, prelu, sin), Softmax
//   - Regularization and normalization: Dropout, BatchNormalization,
//     InstanceNormalization
//   - Pooling: max, average and stochastic
//   - Losses: SoftmaxLoss, SigmoidLoss, FocalLoss, L2Loss
//   - Metrics: ArgMax, Accuracy
//
// # Basic Usage
//
//	conv, err := nn.NewConvolution("conv1", nn.ConvConfig{
//	    Filters: 16,
//	    KernelH: 3,
//	    KernelW: 3,
//	    Padding: nn.PaddingSame,
//	})
//	if err != nil {
//	    return err
//	}
//	h, err := g.Call1(conv, img)
//
// # Persistence
//
// HyperParams is the generic view of a layer configuration written to model
// files; New rebuilds any layer kind from it.
package nn
