// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the MicroNet optimizers and their step-decay
// learning-rate schedule.
//
// Example:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 1e-3, DecayLocs: []float32{0.5, 0.75}})
//	opt.SetTotalIterations(1000)
//	for it := range 1000 {
//	    // forward, backward
//	    g.Update(opt, it)
//	}
package optim

import (
	"github.com/VectorFist/MicroNet/internal/optim"
)

// Optimizer updates parameter tensors from their gradients.
type Optimizer = optim.Optimizer

// Schedule is a step decay of the learning rate.
type Schedule = optim.Schedule

// NewSchedule returns a schedule with sorted decay locations.
func NewSchedule(base float32, decayLocs []float32) Schedule {
	return optim.NewSchedule(base, decayLocs)
}

// Persisted optimizer type names.
const (
	TypeSGD     = optim.TypeSGD
	TypeAdaGrad = optim.TypeAdaGrad
	TypeRMSProp = optim.TypeRMSProp
	TypeAdam    = optim.TypeAdam
)

// ErrUnknownType is returned by New for an unknown optimizer type.
var ErrUnknownType = optim.ErrUnknownType

// New rebuilds an optimizer from its persisted type, base rate, decay
// locations and hyper-parameters.
func New(typ string, base float32, decayLocs []float32, hp map[string]float32) (Optimizer, error) {
	return optim.New(typ, base, decayLocs, hp)
}

// SGD (Stochastic Gradient Descent)

// SGD is gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// AdaGrad

// AdaGrad scales each step by the accumulated squared gradients.
type AdaGrad = optim.AdaGrad

// AdaGradConfig configures AdaGrad.
type AdaGradConfig = optim.AdaGradConfig

// NewAdaGrad creates an AdaGrad optimizer.
func NewAdaGrad(config AdaGradConfig) *AdaGrad {
	return optim.NewAdaGrad(config)
}

// RMSProp

// RMSProp scales each step by a running average of squared gradients.
type RMSProp = optim.RMSProp

// RMSPropConfig configures RMSProp.
type RMSPropConfig = optim.RMSPropConfig

// NewRMSProp creates an RMSProp optimizer.
func NewRMSProp(config RMSPropConfig) *RMSProp {
	return optim.NewRMSProp(config)
}

// Adam (Adaptive Moment Estimation)

// Adam is the Adam optimizer with bias correction.
type Adam = optim.Adam

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}
