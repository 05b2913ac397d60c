// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package net trains and runs MicroNet classifiers.
//
// Example:
//
//	clf, err := net.NewClassifyNet("mnist", 1, 28, 28, body)
//	if err != nil {
//	    return err
//	}
//	clf.SetOptimizer(optim.NewAdam(optim.AdamConfig{LR: 1e-3}))
//	history, err := clf.Fit(train, net.FitConfig{BatchSize: 64, Epochs: 5})
//	...
//	metrics, err := clf.Evaluate(test, 256)
package net

import (
	"github.com/VectorFist/MicroNet/internal/net"
	"github.com/VectorFist/MicroNet/internal/serialization"
)

// Key names of ClassifyNet.
const (
	KeyImg    = net.KeyImg
	KeyLabel  = net.KeyLabel
	KeyLoss   = net.KeyLoss
	KeyProb   = net.KeyProb
	KeyAcc    = net.KeyAcc
	KeyArgMax = net.KeyArgMax
)

// Errors.
var (
	ErrMissingKey  = net.ErrMissingKey
	ErrNoOptimizer = net.ErrNoOptimizer
	ErrEmptyData   = net.ErrEmptyData
)

// MissingKeyError names the key an operation required.
type MissingKeyError = net.MissingKeyError

// ClassifyNet is a classifier graph with its optimizer.
type ClassifyNet = net.ClassifyNet

// BodyFunc builds the body of a classifier and returns its logits.
type BodyFunc = net.BodyFunc

// FitConfig configures ClassifyNet.Fit.
type FitConfig = net.FitConfig

// Metrics are mean loss and accuracy over a dataset.
type Metrics = net.Metrics

// EpochStats reports one epoch of Fit.
type EpochStats = net.EpochStats

// DataProvider serves batches from columns of samples.
type DataProvider = net.DataProvider

// WriteOptions configures ClassifyNet.Save.
type WriteOptions = serialization.WriteOptions

// Parameter encodings for WriteOptions.
const (
	EncodingFloat32 = serialization.EncodingFloat32
	EncodingFloat16 = serialization.EncodingFloat16
)

// NewClassifyNet builds a classifier for (c, h, w) samples around body.
func NewClassifyNet(name string, c, h, w int, body BodyFunc) (*ClassifyNet, error) {
	return net.NewClassifyNet(name, c, h, w, body)
}

// NewDataProvider creates a provider over equally long columns.
func NewDataProvider(columns [][][]float32, shuffle bool, seed uint64) (*DataProvider, error) {
	return net.NewDataProvider(columns, shuffle, seed)
}

// Load reads a classifier written by ClassifyNet.Save.
func Load(path string) (*ClassifyNet, error) {
	return net.Load(path)
}
